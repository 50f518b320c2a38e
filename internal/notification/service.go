// Package notification delivers subscriber messages (payment links and
// payment confirmations) over email and SMS.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pensionflow/pkg/logger"
)

// Channel represents the delivery method.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

// Notification types.
const (
	TypePaymentLink    = "PAYMENT_LINK_SHARED"
	TypePaymentSuccess = "PAYMENT_SUCCESS"
)

// Recipient is where a notification goes. Empty fields skip that channel.
type Recipient struct {
	Mobile string
	Email  string
}

// Notification represents a message to be sent.
type Notification struct {
	ID        string
	Type      string
	Channel   Channel
	To        string
	Subject   string
	Body      string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

// Service defines the notification service interface.
type Service interface {
	Notify(ctx context.Context, eventType string, to Recipient, data map[string]interface{}) error
}

// Mailer sends a single email.
type Mailer interface {
	Send(to, subject, body string) error
}

// DefaultService renders the templates and hands emails to the mailer.
// Without a mailer, and always for SMS, delivery is simulated by logging.
type DefaultService struct {
	logger logger.Logger
	mailer Mailer
}

// NewService creates a new notification service. m may be nil.
func NewService(log logger.Logger, m Mailer) *DefaultService {
	if log == nil {
		log = logger.NewNop()
	}
	return &DefaultService{logger: log, mailer: m}
}

// Notify renders eventType and sends it on every channel the recipient
// has an address for. The first delivery error is returned after all
// channels were attempted.
func (s *DefaultService) Notify(ctx context.Context, eventType string, to Recipient, data map[string]interface{}) error {
	subject, body, err := render(eventType, data)
	if err != nil {
		return err
	}

	var first error
	for _, target := range []struct {
		ch   Channel
		addr string
	}{
		{ChannelSMS, to.Mobile},
		{ChannelEmail, to.Email},
	} {
		if strings.TrimSpace(target.addr) == "" {
			continue
		}
		n := &Notification{
			ID:        uuid.New().String(),
			Type:      eventType,
			Channel:   target.ch,
			To:        target.addr,
			Subject:   subject,
			Body:      body,
			Metadata:  data,
			CreatedAt: time.Now(),
		}
		if err := s.SendRaw(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func render(eventType string, data map[string]interface{}) (string, string, error) {
	switch eventType {
	case TypePaymentLink:
		return "NPS contribution payment link",
			fmt.Sprintf("Complete your NPS contribution of Rs. %v using the payment link for reference %v.",
				data["amount"], data["reference"]), nil
	case TypePaymentSuccess:
		return "NPS payment successful",
			fmt.Sprintf("Your NPS payment for reference %v was successful. Transaction ID %v.",
				data["reference"], data["transaction_id"]), nil
	}
	return "", "", fmt.Errorf("unknown notification type %q", eventType)
}

// SendRaw handles the actual delivery.
func (s *DefaultService) SendRaw(ctx context.Context, n *Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if n.Channel == ChannelEmail && s.mailer != nil {
		if err := s.mailer.Send(n.To, n.Subject, n.Body); err != nil {
			s.logger.Error("Email delivery failed", map[string]interface{}{
				"notification_id": n.ID,
				"type":            n.Type,
				"error":           err.Error(),
			})
			return err
		}
	}

	s.logger.Info("Notification Sent", map[string]interface{}{
		"notification_id": n.ID,
		"channel":         n.Channel,
		"type":            n.Type,
		"to":              mask(n.To),
		"subject":         n.Subject,
	})
	return nil
}

func mask(addr string) string {
	if at := strings.IndexByte(addr, '@'); at > 1 {
		return addr[:1] + strings.Repeat("*", at-1) + addr[at:]
	}
	if len(addr) > 4 {
		return strings.Repeat("X", len(addr)-4) + addr[len(addr)-4:]
	}
	return addr
}
