package notification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pensionflow/pkg/logger"
)

// MockMailer is a mock implementation of Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(to, subject, body string) error {
	args := m.Called(to, subject, body)
	return args.Error(0)
}

func TestNotify_PaymentLinkGoesToEmailAndSMS(t *testing.T) {
	mailer := &MockMailer{}
	mailer.On("Send", "anita@example.com", "NPS contribution payment link", mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, "BSE-NPS-4821") && strings.Contains(body, "2500")
	})).Return(nil).Once()

	svc := NewService(logger.NewNop(), mailer)
	err := svc.Notify(context.Background(), TypePaymentLink,
		Recipient{Mobile: "9123456789", Email: "anita@example.com"},
		map[string]interface{}{"reference": "BSE-NPS-4821", "amount": "2500"})

	require.NoError(t, err)
	mailer.AssertExpectations(t)
}

func TestNotify_SkipsMissingAddresses(t *testing.T) {
	mailer := &MockMailer{}
	svc := NewService(logger.NewNop(), mailer)

	err := svc.Notify(context.Background(), TypePaymentSuccess, Recipient{Mobile: "9123456789"},
		map[string]interface{}{"reference": "BSE-NPS-1001", "transaction_id": "BD1"})

	require.NoError(t, err)
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotify_ReportsMailerFailure(t *testing.T) {
	mailer := &MockMailer{}
	mailer.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	svc := NewService(logger.NewNop(), mailer)
	err := svc.Notify(context.Background(), TypePaymentSuccess, Recipient{Mobile: "9123456789", Email: "a@b.com"}, nil)
	assert.EqualError(t, err, "smtp down")
}

func TestNotify_UnknownType(t *testing.T) {
	svc := NewService(nil, nil)
	err := svc.Notify(context.Background(), "SOMETHING", Recipient{Mobile: "9123456789"}, nil)
	assert.Error(t, err)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "XXXXXX6789", mask("9123456789"))
	assert.Equal(t, "a****@example.com", mask("anita@example.com"))
}
