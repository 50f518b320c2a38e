// Package auth implements the operator console login: password check,
// a login OTP step and access token issuance.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pensionflow/internal/verification"
	"pensionflow/internal/workflow"
	"pensionflow/pkg/config"
	apperrors "pensionflow/pkg/errors"
	"pensionflow/pkg/logger"
)

// Operator entities selectable on the login screen.
const (
	RoleMember = "MEMBER"
	RoleAMC    = "AMC"
)

const msgFillAll = "Please fill in all fields"

// Service authenticates console operators.
type Service struct {
	mu         sync.Mutex
	username   string
	hash       []byte
	mobile     string
	jwtSecret  string
	jwtExpiry  time.Duration
	otpTimer   time.Duration
	gw         verification.Gateway
	challenges map[string]*challenge
	logger     logger.Logger
}

type challenge struct {
	id        string
	subject   string
	role      string
	gate      *verification.OTPGate
	createdAt time.Time
}

// LoginRequest captures the login form.
type LoginRequest struct {
	Role       string `json:"role"`
	EntityCode string `json:"entity_code"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Captcha    string `json:"captcha"`
}

// Challenge is returned after a successful password check. The login
// completes once the OTP sent for it is verified.
type Challenge struct {
	ID        string                   `json:"challenge_id"`
	Mobile    string                   `json:"mobile"`
	OTP       verification.OTPGateView `json:"otp"`
	Dispatch  *verification.Dispatch   `json:"-"`
	ExpiresIn int                      `json:"expires_in"`
}

// TokenResponse is returned when the login OTP is verified.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Subject     string    `json:"subject"`
	Role        string    `json:"role"`
}

// NewService builds the service from configuration. When no password hash
// is configured the plain development password is hashed here.
func NewService(cfg config.AuthConfig, jwtCfg config.JWTConfig, otpTimer time.Duration, gw verification.Gateway, log logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.NewNop()
	}
	hash := []byte(strings.TrimSpace(cfg.PasswordHash))
	if len(hash) == 0 {
		if cfg.Password == "" {
			return nil, fmt.Errorf("operator password not configured")
		}
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to hash operator password")
		}
		log.Warn("Using plain operator password from environment", nil)
	}
	return &Service{
		username:   cfg.Username,
		hash:       hash,
		mobile:     cfg.Mobile,
		jwtSecret:  jwtCfg.Secret,
		jwtExpiry:  jwtCfg.Expiration,
		otpTimer:   otpTimer,
		gw:         gw,
		challenges: make(map[string]*challenge),
		logger:     log,
	}, nil
}

// Login checks the credentials and sends a login OTP to the operator's
// registered mobile.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*Challenge, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" || strings.TrimSpace(req.Captcha) == "" {
		return nil, apperrors.Invalid("", msgFillAll)
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role == "" {
		role = RoleMember
	}
	if role != RoleMember && role != RoleAMC {
		return nil, apperrors.Invalid("role", "Please select a valid entity")
	}

	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(req.Username)), []byte(s.username)) == 1
	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(req.Password)); err != nil || !userOK {
		s.logger.Warn("Operator login rejected", map[string]interface{}{"username": req.Username})
		return nil, apperrors.ErrInvalidCredentials
	}

	c := &challenge{
		id:        uuid.New().String(),
		subject:   fmt.Sprintf("%s/%s/%s", role, strings.TrimSpace(req.EntityCode), s.username),
		role:      role,
		createdAt: time.Now(),
	}
	c.gate = verification.NewOTPGate(s.gw, verification.OTPGateConfig{
		Dialogs: &workflow.Dialogs{},
		Kind:    workflow.DialogLoginOTP,
		Resend:  s.otpTimer,
	})

	d, err := c.gate.Open(ctx, s.mobile)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to send login otp")
	}

	s.mu.Lock()
	s.challenges[c.id] = c
	s.mu.Unlock()

	s.logger.Info("Login OTP sent", map[string]interface{}{
		"challenge_id": c.id,
		"subject":      c.subject,
	})
	return s.challengeView(c, &d), nil
}

// ResendOTP sends a new code once the resend countdown has run out.
func (s *Service) ResendOTP(ctx context.Context, challengeID string) (*Challenge, error) {
	c, err := s.lookup(challengeID)
	if err != nil {
		return nil, err
	}
	d, err := c.gate.Resend(ctx)
	if err != nil {
		return nil, err
	}
	return s.challengeView(c, &d), nil
}

// VerifyOTP completes the login and issues an access token. A wrong code
// leaves the challenge open for another attempt.
func (s *Service) VerifyOTP(ctx context.Context, challengeID, code string) (*TokenResponse, error) {
	c, err := s.lookup(challengeID)
	if err != nil {
		return nil, err
	}
	if err := c.gate.Verify(ctx, code); err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.challenges, c.id)
	s.mu.Unlock()

	s.logger.Info("Operator logged in", map[string]interface{}{"subject": c.subject})
	return s.generateToken(c.subject, c.role)
}

// Sweep drops challenges older than maxAge and returns how many went.
func (s *Service) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	s.mu.Lock()
	var stale []*challenge
	for id, c := range s.challenges {
		if c.createdAt.Before(cutoff) {
			stale = append(stale, c)
			delete(s.challenges, id)
		}
	}
	s.mu.Unlock()

	for _, c := range stale {
		c.gate.Dismiss()
	}
	return len(stale)
}

func (s *Service) lookup(id string) (*challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok {
		return nil, apperrors.ErrChallengeNotFound
	}
	return c, nil
}

func (s *Service) challengeView(c *challenge, d *verification.Dispatch) *Challenge {
	v := c.gate.View()
	return &Challenge{
		ID:        c.id,
		Mobile:    maskMobile(s.mobile),
		OTP:       v,
		Dispatch:  d,
		ExpiresIn: v.SecondsLeft,
	}
}

func (s *Service) generateToken(subject, role string) (*TokenResponse, error) {
	now := time.Now()
	expiresAt := now.Add(s.jwtExpiry)

	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to sign token")
	}

	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Subject:     subject,
		Role:        role,
	}, nil
}

func maskMobile(m string) string {
	if len(m) <= 4 {
		return m
	}
	return strings.Repeat("X", len(m)-4) + m[len(m)-4:]
}
