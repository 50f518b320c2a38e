// Package session holds the WizardSession: the active wizard, the
// application record it writes and the event stream clients watch.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pensionflow/internal/contribution"
	"pensionflow/internal/domain"
	"pensionflow/internal/notification"
	"pensionflow/internal/payment"
	"pensionflow/internal/registration"
	"pensionflow/internal/verification"
	"pensionflow/internal/workflow"
	apperrors "pensionflow/pkg/errors"
	"pensionflow/pkg/logger"
)

// Kind is the wizard a session is running.
type Kind string

const (
	KindDashboard    Kind = "DASHBOARD"
	KindRegistration Kind = "REGISTRATION"
	KindContribution Kind = "CONTRIBUTION"
)

// Config carries what every wizard of a session needs.
type Config struct {
	Registration registration.Config
	Contribution contribution.Config
	Gateway      verification.Gateway
	// Notifications delivers payment links and confirmations to the
	// subscriber. Optional.
	Notifications notification.Service
	// EventBuffer is the per-subscriber channel size.
	EventBuffer int
}

const notifyTimeout = 15 * time.Second

// Session is one operator's workflow. It owns a single record; starting a
// new application replaces it.
type Session struct {
	mu     sync.Mutex
	id     string
	cfg    Config
	logger logger.Logger

	kind           Kind
	correlationID  string
	lastPaymentRef string
	notice         string
	record         *domain.Record
	dialogs        *workflow.Dialogs
	registration   *registration.Wizard
	contribution   *contribution.Wizard
	closed         bool

	createdAt time.Time
	touchedAt time.Time

	subMu   sync.Mutex
	subs    map[int]chan workflow.Event
	nextSub int
}

func New(cfg Config, log logger.Logger) *Session {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 32
	}
	id := uuid.New().String()
	now := time.Now()
	return &Session{
		id:        id,
		cfg:       cfg,
		logger:    logger.With(log, map[string]interface{}{"session_id": id}),
		kind:      KindDashboard,
		record:    domain.NewRecord(),
		dialogs:   &workflow.Dialogs{},
		createdAt: now,
		touchedAt: now,
		subs:      make(map[int]chan workflow.Event),
	}
}

func (s *Session) ID() string { return s.id }

// touch marks the session as used. Callers hold s.mu.
func (s *Session) touchLocked() { s.touchedAt = time.Now() }

// IdleSince reports when the session was last used.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

func (s *Session) Touch() {
	s.mu.Lock()
	s.touchLocked()
	s.mu.Unlock()
}

// notify observes wizard events before fanning them out.
func (s *Session) notify(e workflow.Event) {
	switch e.Type {
	case workflow.EventPaymentResult:
		if e.Data["outcome"] == payment.OutcomeSuccess {
			s.setLastPaymentRef(e.Data["reference"])
			s.deliver(notification.TypePaymentSuccess, e.Data)
		}
	case workflow.EventStatusResolved:
		s.setLastPaymentRef(e.Data["reference"])
	case workflow.EventLinkShared:
		s.deliver(notification.TypePaymentLink, e.Data)
	}
	s.publish(e)
}

// deliver sends a subscriber notification in the background. Failures are
// logged only; they never affect the workflow.
func (s *Session) deliver(typ string, data map[string]interface{}) {
	if s.cfg.Notifications == nil {
		return
	}
	s.mu.Lock()
	v := s.record.Snapshot()
	kind := s.kind
	s.mu.Unlock()

	to := notification.Recipient{Mobile: v.Mobile, Email: v.Email}
	if kind == KindContribution && v.Contribution.Mobile != "" {
		to.Mobile = v.Contribution.Mobile
	}
	if m, ok := data["mobile"].(string); ok && m != "" {
		to.Mobile = m
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.cfg.Notifications.Notify(ctx, typ, to, data); err != nil {
			s.logger.Warn("subscriber notification failed", map[string]interface{}{
				"type":  typ,
				"error": err.Error(),
			})
		}
	}()
}

func (s *Session) setLastPaymentRef(v interface{}) {
	ref, ok := v.(string)
	if !ok || ref == "" {
		return
	}
	s.mu.Lock()
	s.lastPaymentRef = ref
	s.mu.Unlock()
}

// closeWizardLocked detaches the active wizard and returns a func that
// closes it. The func must run without s.mu held.
func (s *Session) closeWizardLocked() func() {
	r, c := s.registration, s.contribution
	s.registration, s.contribution = nil, nil
	s.dialogs.Reset()
	return func() {
		if r != nil {
			r.Close()
		}
		if c != nil {
			c.Close()
		}
	}
}

func (s *Session) openLocked() error {
	if s.closed {
		return fmt.Errorf("%w: session closed", apperrors.ErrInvalidTransition)
	}
	return nil
}

// StartRegistration begins a fresh application on a new record.
func (s *Session) StartRegistration() (*registration.Wizard, error) {
	s.mu.Lock()
	if err := s.openLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.kind != KindDashboard {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is in progress", apperrors.ErrInvalidTransition, s.kind)
	}
	s.record = domain.NewRecord()
	s.kind = KindRegistration
	s.correlationID = uuid.New().String()
	s.notice = ""
	s.touchLocked()
	w := registration.New(s.cfg.Registration, registration.Options{
		Record:    s.record,
		Gateway:   s.cfg.Gateway,
		Dialogs:   s.dialogs,
		Notify:    s.notify,
		OnHandoff: s.handoff,
	}, logger.With(s.logger, map[string]interface{}{"correlation_id": s.correlationID}))
	s.registration = w
	corr := s.correlationID
	s.mu.Unlock()

	s.logger.Info("registration started", map[string]interface{}{"correlation_id": corr})
	s.publish(workflow.NewEvent(workflow.EventWizardStarted, map[string]interface{}{
		"kind":           KindRegistration,
		"correlation_id": corr,
	}))
	return w, nil
}

// StartContribution begins a contribution from the dashboard.
func (s *Session) StartContribution() (*contribution.Wizard, error) {
	s.mu.Lock()
	if err := s.openLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.kind != KindDashboard {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is in progress", apperrors.ErrInvalidTransition, s.kind)
	}
	s.record = domain.NewRecord()
	w := s.startContributionLocked("")
	corr := s.correlationID
	s.mu.Unlock()

	s.logger.Info("contribution started", map[string]interface{}{"correlation_id": corr})
	s.publish(workflow.NewEvent(workflow.EventWizardStarted, map[string]interface{}{
		"kind":           KindContribution,
		"correlation_id": corr,
	}))
	return w, nil
}

func (s *Session) startContributionLocked(notice string) *contribution.Wizard {
	s.kind = KindContribution
	s.correlationID = uuid.New().String()
	s.notice = notice
	s.touchLocked()
	w := contribution.New(s.cfg.Contribution, contribution.Options{
		Record:  s.record,
		Gateway: s.cfg.Gateway,
		Dialogs: s.dialogs,
		Notify:  s.notify,
		Notice:  notice,
	}, logger.With(s.logger, map[string]interface{}{"correlation_id": s.correlationID}))
	s.contribution = w
	return w
}

// handoff moves a registration that routing diverted into the
// contribution flow. The notice is carried across.
func (s *Session) handoff(notice string) {
	s.mu.Lock()
	if s.closed || s.kind != KindRegistration {
		s.mu.Unlock()
		return
	}
	closeOld := s.closeWizardLocked()
	s.startContributionLocked(notice)
	corr := s.correlationID
	s.mu.Unlock()

	closeOld()

	s.logger.Info("registration handed off", map[string]interface{}{
		"notice":         notice,
		"correlation_id": corr,
	})
	s.publish(workflow.NewEvent(workflow.EventWizardStarted, map[string]interface{}{
		"kind":           KindContribution,
		"correlation_id": corr,
		"notice":         notice,
	}))
}

// AnotherContribution loops a successful legacy contribution back into a
// fresh attempt on the same session.
func (s *Session) AnotherContribution() (*contribution.Wizard, error) {
	s.mu.Lock()
	if err := s.openLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.kind != KindContribution || s.contribution == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: no contribution in progress", apperrors.ErrInvalidTransition)
	}
	m := s.contribution.Payment()
	if m == nil || m.SuccessAction() != payment.ActionAnotherContribution {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: contribution has no payment to follow up", apperrors.ErrInvalidTransition)
	}
	if res, ok := m.Result(); !ok || res.Outcome != payment.OutcomeSuccess {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: payment has not succeeded", apperrors.ErrInvalidTransition)
	}

	closeOld := s.closeWizardLocked()
	s.record.ResetContribution()
	w := s.startContributionLocked("")
	corr := s.correlationID
	s.mu.Unlock()

	closeOld()
	s.logger.Info("contribution restarted", map[string]interface{}{"correlation_id": corr})
	s.publish(workflow.NewEvent(workflow.EventWizardStarted, map[string]interface{}{
		"kind":           KindContribution,
		"correlation_id": corr,
	}))
	return w, nil
}

// ReturnToDashboard abandons the active wizard and discards the record.
func (s *Session) ReturnToDashboard() {
	s.mu.Lock()
	closeOld := s.closeWizardLocked()
	s.kind = KindDashboard
	s.record = domain.NewRecord()
	s.correlationID = ""
	s.notice = ""
	s.touchLocked()
	s.mu.Unlock()

	closeOld()
	s.logger.Info("session reset", nil)
	s.publish(workflow.NewEvent(workflow.EventSessionReset, nil))
}

// Registration returns the active registration wizard.
func (s *Session) Registration() (*registration.Wizard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registration == nil {
		return nil, apperrors.Wrap(apperrors.ErrNoActiveWizard, "registration")
	}
	s.touchLocked()
	return s.registration, nil
}

// Contribution returns the active contribution wizard.
func (s *Session) Contribution() (*contribution.Wizard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contribution == nil {
		return nil, apperrors.Wrap(apperrors.ErrNoActiveWizard, "contribution")
	}
	s.touchLocked()
	return s.contribution, nil
}

// Payment returns the payment machine of whichever wizard is active.
func (s *Session) Payment() (*payment.Machine, error) {
	s.mu.Lock()
	r, c := s.registration, s.contribution
	s.mu.Unlock()

	var m *payment.Machine
	switch {
	case r != nil:
		m = r.Payment()
	case c != nil:
		m = c.Payment()
	}
	if m == nil {
		return nil, apperrors.Wrap(apperrors.ErrNoActiveWizard, "payment")
	}
	return m, nil
}

func (s *Session) Kind() Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

func (s *Session) Record() *domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

// Close stops the active wizard and every subscription.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	closeOld := s.closeWizardLocked()
	s.mu.Unlock()

	closeOld()

	s.subMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subMu.Unlock()
}

// View is a point-in-time snapshot of the session.
type View struct {
	ID             string             `json:"id"`
	Kind           Kind               `json:"kind"`
	Stage          string             `json:"stage,omitempty"`
	StageIndex     int                `json:"stage_index"`
	CorrelationID  string             `json:"correlation_id,omitempty"`
	LastPaymentRef string             `json:"last_payment_ref,omitempty"`
	Notice         string             `json:"notice,omitempty"`
	Registration   *registration.View `json:"registration,omitempty"`
	Contribution   *contribution.View `json:"contribution,omitempty"`
	Record         domain.Values      `json:"record"`
	CreatedAt      time.Time          `json:"created_at"`
}

func (s *Session) View() View {
	s.mu.Lock()
	v := View{
		ID:             s.id,
		Kind:           s.kind,
		CorrelationID:  s.correlationID,
		LastPaymentRef: s.lastPaymentRef,
		Notice:         s.notice,
		CreatedAt:      s.createdAt,
	}
	r, c, rec := s.registration, s.contribution, s.record
	s.mu.Unlock()

	v.Record = rec.Snapshot()
	switch {
	case r != nil:
		rv := r.View()
		v.Registration = &rv
		v.Stage, v.StageIndex = rv.Stage.String(), rv.StageIndex
		if rv.Notice != "" {
			v.Notice = rv.Notice
		}
	case c != nil:
		cv := c.View()
		v.Contribution = &cv
		v.Stage, v.StageIndex = cv.Stage.String(), cv.StageIndex
		if cv.Notice != "" {
			v.Notice = cv.Notice
		}
	}
	return v
}
