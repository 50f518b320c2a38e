package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"pensionflow/internal/verification"
	"pensionflow/pkg/config"
	apperrors "pensionflow/pkg/errors"
	"pensionflow/pkg/logger"
)

// MockGateway is a mock implementation of verification.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) SendOTP(ctx context.Context, mobile string) (verification.Dispatch, error) {
	args := m.Called(ctx, mobile)
	return args.Get(0).(verification.Dispatch), args.Error(1)
}

func (m *MockGateway) VerifyOTP(ctx context.Context, mobile, code string) (bool, error) {
	args := m.Called(ctx, mobile, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockGateway) CheckIdentityRegistry(ctx context.Context, pan string) (verification.RegistryResult, error) {
	args := m.Called(ctx, pan)
	return args.Get(0).(verification.RegistryResult), args.Error(1)
}

func (m *MockGateway) CheckMobileRegistry(ctx context.Context, mobile string) (verification.RegistryResult, error) {
	args := m.Called(ctx, mobile)
	return args.Get(0).(verification.RegistryResult), args.Error(1)
}

const (
	testSecret = "test-secret"
	testMobile = "9000000001"
)

func newService(t *testing.T, gw verification.Gateway, otpTimer time.Duration) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)

	svc, err := NewService(
		config.AuthConfig{Username: "operator", PasswordHash: string(hash), Mobile: testMobile},
		config.JWTConfig{Secret: testSecret, Expiration: time.Hour},
		otpTimer, gw, logger.NewNop(),
	)
	require.NoError(t, err)
	return svc
}

func validLogin() *LoginRequest {
	return &LoginRequest{
		Role:       "member",
		EntityCode: "6543",
		Username:   "operator",
		Password:   "s3cret!",
		Captcha:    "x7k2p",
	}
}

func TestNewService_RequiresPassword(t *testing.T) {
	_, err := NewService(config.AuthConfig{Username: "operator"}, config.JWTConfig{Secret: testSecret}, time.Minute, &MockGateway{}, nil)
	assert.Error(t, err)

	svc, err := NewService(config.AuthConfig{Username: "operator", Password: "dev"}, config.JWTConfig{Secret: testSecret}, time.Minute, &MockGateway{}, nil)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword(svc.hash, []byte("dev")))
}

func TestLogin_RequiresAllFields(t *testing.T) {
	svc := newService(t, &MockGateway{}, time.Minute)

	for _, mutate := range []func(r *LoginRequest){
		func(r *LoginRequest) { r.Username = "" },
		func(r *LoginRequest) { r.Password = "" },
		func(r *LoginRequest) { r.Captcha = " " },
	} {
		req := validLogin()
		mutate(req)
		_, err := svc.Login(context.Background(), req)
		ve, ok := apperrors.AsValidation(err)
		require.True(t, ok)
		assert.Equal(t, msgFillAll, ve.Message)
	}
}

func TestLogin_RejectsUnknownRole(t *testing.T) {
	svc := newService(t, &MockGateway{}, time.Minute)
	req := validLogin()
	req.Role = "EXCHANGE"

	_, err := svc.Login(context.Background(), req)
	ve, ok := apperrors.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "role", ve.Field)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	gw := &MockGateway{}
	svc := newService(t, gw, time.Minute)

	req := validLogin()
	req.Password = "wrong"
	_, err := svc.Login(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	req = validLogin()
	req.Username = "someone"
	_, err = svc.Login(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	gw.AssertNotCalled(t, "SendOTP", mock.Anything, mock.Anything)
}

func TestLogin_GatewayFailure(t *testing.T) {
	gw := &MockGateway{}
	gw.On("SendOTP", mock.Anything, testMobile).Return(verification.Dispatch{}, apperrors.ErrGatewayUnavailable)
	svc := newService(t, gw, time.Minute)

	_, err := svc.Login(context.Background(), validLogin())
	assert.ErrorIs(t, err, apperrors.ErrGatewayUnavailable)
	assert.Empty(t, svc.challenges)
}

func TestLoginAndVerify_IssuesToken(t *testing.T) {
	gw := &MockGateway{}
	gw.On("SendOTP", mock.Anything, testMobile).Return(verification.Dispatch{Reference: "ref-1", Mobile: testMobile}, nil)
	gw.On("VerifyOTP", mock.Anything, testMobile, "111111").Return(false, nil).Once()
	gw.On("VerifyOTP", mock.Anything, testMobile, "654321").Return(true, nil).Once()
	svc := newService(t, gw, time.Minute)

	ch, err := svc.Login(context.Background(), validLogin())
	require.NoError(t, err)
	assert.NotEmpty(t, ch.ID)
	assert.Equal(t, "XXXXXX0001", ch.Mobile)
	assert.True(t, ch.OTP.Open)
	assert.False(t, ch.OTP.ResendEnabled)
	assert.Greater(t, ch.ExpiresIn, 0)

	_, err = svc.VerifyOTP(context.Background(), ch.ID, "111111")
	assert.True(t, apperrors.IsValidation(err))

	tok, err := svc.VerifyOTP(context.Background(), ch.ID, "654321")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, "MEMBER/6543/operator", tok.Subject)

	parsed, err := jwt.Parse(tok.AccessToken, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "MEMBER/6543/operator", claims["sub"])
	assert.Equal(t, RoleMember, claims["role"])
	assert.Equal(t, "HS256", parsed.Method.Alg())

	_, err = svc.VerifyOTP(context.Background(), ch.ID, "654321")
	assert.ErrorIs(t, err, apperrors.ErrChallengeNotFound)
	gw.AssertExpectations(t)
}

func TestResendOTP_OnlyAfterCountdown(t *testing.T) {
	gw := &MockGateway{}
	gw.On("SendOTP", mock.Anything, testMobile).Return(verification.Dispatch{Mobile: testMobile}, nil)
	svc := newService(t, gw, 20*time.Millisecond)

	ch, err := svc.Login(context.Background(), validLogin())
	require.NoError(t, err)

	_, err = svc.ResendOTP(context.Background(), ch.ID)
	assert.ErrorIs(t, err, apperrors.ErrResendNotAllowed)

	time.Sleep(40 * time.Millisecond)
	again, err := svc.ResendOTP(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, ch.ID, again.ID)
	gw.AssertNumberOfCalls(t, "SendOTP", 2)

	_, err = svc.ResendOTP(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrChallengeNotFound)
}

func TestSweep_DropsOldChallenges(t *testing.T) {
	gw := &MockGateway{}
	gw.On("SendOTP", mock.Anything, testMobile).Return(verification.Dispatch{}, nil)
	svc := newService(t, gw, time.Minute)

	ch, err := svc.Login(context.Background(), validLogin())
	require.NoError(t, err)

	assert.Equal(t, 0, svc.Sweep(time.Minute))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, svc.Sweep(time.Millisecond))

	_, err = svc.VerifyOTP(context.Background(), ch.ID, "123456")
	assert.ErrorIs(t, err, apperrors.ErrChallengeNotFound)
}
