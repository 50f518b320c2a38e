package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pensionflow/pkg/logger"

	apperrors "pensionflow/pkg/errors"
)

// MockGateway is a mock implementation of Gateway
type MockGateway struct {
	mock.Mock
	delay time.Duration
}

func (m *MockGateway) wait(ctx context.Context) error {
	if m.delay == 0 {
		return nil
	}
	select {
	case <-time.After(m.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockGateway) SendOTP(ctx context.Context, mobile string) (Dispatch, error) {
	if err := m.wait(ctx); err != nil {
		return Dispatch{}, err
	}
	args := m.Called(ctx, mobile)
	return args.Get(0).(Dispatch), args.Error(1)
}

func (m *MockGateway) VerifyOTP(ctx context.Context, mobile, code string) (bool, error) {
	if err := m.wait(ctx); err != nil {
		return false, err
	}
	args := m.Called(ctx, mobile, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockGateway) CheckIdentityRegistry(ctx context.Context, pan string) (RegistryResult, error) {
	if err := m.wait(ctx); err != nil {
		return RegistryResult{}, err
	}
	args := m.Called(ctx, pan)
	return args.Get(0).(RegistryResult), args.Error(1)
}

func (m *MockGateway) CheckMobileRegistry(ctx context.Context, mobile string) (RegistryResult, error) {
	if err := m.wait(ctx); err != nil {
		return RegistryResult{}, err
	}
	args := m.Called(ctx, mobile)
	return args.Get(0).(RegistryResult), args.Error(1)
}

func fastSimulated(t *testing.T, strict bool) *Simulated {
	t.Helper()
	s, err := NewSimulated(SimulatedConfig{
		LatencyMin: time.Millisecond,
		LatencyMax: 3 * time.Millisecond,
		Strict:     strict,
	}, logger.NewNop())
	require.NoError(t, err)
	return s
}

func TestSimulated_PermissiveAcceptsAnySixDigits(t *testing.T) {
	s := fastSimulated(t, false)
	ctx := context.Background()

	ok, err := s.VerifyOTP(ctx, "9876543211", "000111")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.VerifyOTP(ctx, "9876543211", "12345")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSimulated_StrictRequiresIssuedCode(t *testing.T) {
	s := fastSimulated(t, true)
	ctx := context.Background()

	ok, err := s.VerifyOTP(ctx, "9876543211", "123456")
	require.NoError(t, err)
	assert.False(t, ok, "nothing issued yet")

	d, err := s.SendOTP(ctx, "9876543211")
	require.NoError(t, err)
	require.Len(t, d.Code, 6)
	assert.NotEmpty(t, d.Reference)

	wrong := "000000"
	if d.Code == wrong {
		wrong = "111111"
	}
	ok, _ = s.VerifyOTP(ctx, "9876543211", wrong)
	assert.False(t, ok)

	ok, err = s.VerifyOTP(ctx, "9876543211", d.Code)
	require.NoError(t, err)
	assert.True(t, ok)

	// codes are single use
	ok, _ = s.VerifyOTP(ctx, "9876543211", d.Code)
	assert.False(t, ok)
}

func TestSimulated_SuccessiveCodesDiffer(t *testing.T) {
	s := fastSimulated(t, true)
	ctx := context.Background()
	first, err := s.SendOTP(ctx, "9000000001")
	require.NoError(t, err)
	second, err := s.SendOTP(ctx, "9000000001")
	require.NoError(t, err)

	// only the latest code verifies
	if first.Code != second.Code {
		ok, _ := s.VerifyOTP(ctx, "9000000001", first.Code)
		assert.False(t, ok)
	}
	ok, _ := s.VerifyOTP(ctx, "9000000001", second.Code)
	assert.True(t, ok)
}

func TestSimulated_RegistriesMatch(t *testing.T) {
	s := fastSimulated(t, false)
	r, err := s.CheckIdentityRegistry(context.Background(), "ABCDE1234C")
	require.NoError(t, err)
	assert.True(t, r.Matched)
	assert.Equal(t, RegistryIdentity, r.Registry)
}

func TestSimulated_HonoursCancellation(t *testing.T) {
	s, err := NewSimulated(SimulatedConfig{LatencyMin: time.Second, LatencyMax: time.Second}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.SendOTP(ctx, "9876543210")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithTimeout_MapsDeadline(t *testing.T) {
	gw := &MockGateway{delay: 200 * time.Millisecond}
	bounded := WithTimeout(gw, 20*time.Millisecond)

	_, err := bounded.CheckIdentityRegistry(context.Background(), "ABCDE1234C")
	assert.ErrorIs(t, err, apperrors.ErrTimeoutExceeded)
	gw.AssertNotCalled(t, "CheckIdentityRegistry", mock.Anything, mock.Anything)
}

func TestWithTimeout_PassesThrough(t *testing.T) {
	gw := new(MockGateway)
	gw.On("VerifyOTP", mock.Anything, "9876543211", "123456").Return(true, nil)

	ok, err := WithTimeout(gw, time.Second).VerifyOTP(context.Background(), "9876543211", "123456")
	require.NoError(t, err)
	assert.True(t, ok)
	gw.AssertExpectations(t)

	assert.Same(t, Gateway(gw), WithTimeout(gw, 0))
}

func TestWithTimeout_CallerCancelIsNotTimeout(t *testing.T) {
	gw := &MockGateway{delay: 200 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := WithTimeout(gw, time.Second).SendOTP(ctx, "9876543211")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, apperrors.ErrTimeoutExceeded)
}

func TestCheckRegistries_WaitsOutFloor(t *testing.T) {
	gw := new(MockGateway)
	gw.On("CheckIdentityRegistry", mock.Anything, "ABCDE1234C").
		Return(RegistryResult{Registry: RegistryIdentity, Matched: true}, nil)
	gw.On("CheckMobileRegistry", mock.Anything, "9876543211").
		Return(RegistryResult{Registry: RegistryMobile, Matched: true}, nil)

	start := time.Now()
	report, err := CheckRegistries(context.Background(), gw, "ABCDE1234C", "9876543211", 60*time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.True(t, report.Matched())
	assert.GreaterOrEqual(t, report.Elapsed, 60*time.Millisecond)
	gw.AssertExpectations(t)
}

func TestCheckRegistries_RunsConcurrently(t *testing.T) {
	gw := &MockGateway{delay: 50 * time.Millisecond}
	gw.On("CheckIdentityRegistry", mock.Anything, mock.Anything).Return(RegistryResult{Matched: true}, nil)
	gw.On("CheckMobileRegistry", mock.Anything, mock.Anything).Return(RegistryResult{Matched: true}, nil)

	start := time.Now()
	_, err := CheckRegistries(context.Background(), gw, "P", "M", 0)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 95*time.Millisecond)
}

func TestCheckRegistries_PropagatesFailure(t *testing.T) {
	boom := errors.New("registry down")
	gw := new(MockGateway)
	gw.On("CheckIdentityRegistry", mock.Anything, mock.Anything).Return(RegistryResult{}, boom)
	gw.On("CheckMobileRegistry", mock.Anything, mock.Anything).Return(RegistryResult{Matched: true}, nil).Maybe()

	_, err := CheckRegistries(context.Background(), gw, "P", "M", time.Millisecond)
	assert.ErrorIs(t, err, boom)
}
