package verification

import (
	"context"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"

	"pensionflow/internal/workflow"
	"pensionflow/pkg/logger"
)

var sixDigits = regexp.MustCompile(`^\d{6}$`)

// SimulatedConfig tunes the simulated gateway.
type SimulatedConfig struct {
	LatencyMin time.Duration
	LatencyMax time.Duration
	// Strict requires the code from the most recent SendOTP for the
	// mobile. Otherwise any six-digit code is accepted.
	Strict bool
	// Secret is a base32 HOTP secret. A random one is generated when empty.
	Secret string
}

// Simulated resolves every call after a random latency inside the
// configured band. Registry checks always match.
type Simulated struct {
	cfg    SimulatedConfig
	logger logger.Logger

	mu       sync.Mutex
	counter  uint64
	issued   map[string]issuedCode
	rnd      *rand.Rand
	validate hotp.ValidateOpts
}

type issuedCode struct {
	counter uint64
	code    string
}

func NewSimulated(cfg SimulatedConfig, log logger.Logger) (*Simulated, error) {
	if cfg.LatencyMax < cfg.LatencyMin {
		cfg.LatencyMax = cfg.LatencyMin
	}
	if cfg.Secret == "" {
		key, err := hotp.Generate(hotp.GenerateOpts{
			Issuer:      "pensionflow",
			AccountName: "verification-gateway",
		})
		if err != nil {
			return nil, err
		}
		cfg.Secret = key.Secret()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Simulated{
		cfg:    cfg,
		logger: log,
		issued: make(map[string]issuedCode),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		validate: hotp.ValidateOpts{
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		},
	}, nil
}

func (s *Simulated) latency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	span := s.cfg.LatencyMax - s.cfg.LatencyMin
	if span <= 0 {
		return s.cfg.LatencyMin
	}
	return s.cfg.LatencyMin + time.Duration(s.rnd.Int63n(int64(span)+1))
}

func (s *Simulated) SendOTP(ctx context.Context, mobile string) (Dispatch, error) {
	if err := workflow.Sleep(ctx, s.latency()); err != nil {
		return Dispatch{}, err
	}

	s.mu.Lock()
	s.counter++
	n := s.counter
	s.mu.Unlock()

	code, err := hotp.GenerateCodeCustom(s.cfg.Secret, n, s.validate)
	if err != nil {
		return Dispatch{}, err
	}

	s.mu.Lock()
	s.issued[mobile] = issuedCode{counter: n, code: code}
	s.mu.Unlock()

	d := Dispatch{
		Reference: uuid.New().String(),
		Mobile:    mobile,
		SentAt:    time.Now(),
		Code:      code,
	}
	s.logger.Debug("OTP dispatched", map[string]interface{}{
		"reference": d.Reference,
		"mobile":    maskMobile(mobile),
	})
	return d, nil
}

func (s *Simulated) VerifyOTP(ctx context.Context, mobile, code string) (bool, error) {
	if err := workflow.Sleep(ctx, s.latency()); err != nil {
		return false, err
	}
	code = strings.TrimSpace(code)
	if !sixDigits.MatchString(code) {
		return false, nil
	}
	if !s.cfg.Strict {
		return true, nil
	}

	s.mu.Lock()
	last, ok := s.issued[mobile]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	valid, err := hotp.ValidateCustom(code, last.counter, s.cfg.Secret, s.validate)
	if err != nil {
		return false, nil
	}
	if valid {
		s.mu.Lock()
		delete(s.issued, mobile)
		s.mu.Unlock()
	}
	return valid, nil
}

func (s *Simulated) CheckIdentityRegistry(ctx context.Context, pan string) (RegistryResult, error) {
	return s.check(ctx, RegistryIdentity)
}

func (s *Simulated) CheckMobileRegistry(ctx context.Context, mobile string) (RegistryResult, error) {
	return s.check(ctx, RegistryMobile)
}

func (s *Simulated) check(ctx context.Context, registry string) (RegistryResult, error) {
	start := time.Now()
	if err := workflow.Sleep(ctx, s.latency()); err != nil {
		return RegistryResult{}, err
	}
	return RegistryResult{Registry: registry, Matched: true, Latency: time.Since(start)}, nil
}

func maskMobile(m string) string {
	if len(m) <= 4 {
		return m
	}
	return strings.Repeat("*", len(m)-4) + m[len(m)-4:]
}
