package workflow

import "time"

// Event is a state change or timer callback worth telling a client about.
type Event struct {
	Type string                 `json:"type"`
	At   time.Time              `json:"at"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventStageChanged    = "stage.changed"
	EventNotice          = "notice"
	EventOTPExpired      = "otp.expired"
	EventLoaderDone      = "loader.done"
	EventLoaderFailed    = "loader.failed"
	EventPaymentStage    = "payment.stage"
	EventPaymentResult   = "payment.result"
	EventIdentifierReady = "payment.identifier_issued"
	EventStatusResolved  = "payment.status_resolved"
	EventLinkShared      = "payment.link_shared"
	EventSessionReset    = "session.reset"
	EventWizardStarted   = "wizard.started"
)

// Notifier receives events. It must not block and must not call back into
// the component that emitted the event.
type Notifier func(Event)

// NewEvent stamps an event with the current time.
func NewEvent(typ string, data map[string]interface{}) Event {
	return Event{Type: typ, At: time.Now(), Data: data}
}

// Emit calls n when it is set.
func (n Notifier) Emit(typ string, data map[string]interface{}) {
	if n != nil {
		n(NewEvent(typ, data))
	}
}
