package verification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"pensionflow/internal/workflow"
	apperrors "pensionflow/pkg/errors"
)

// OTPGateConfig configures an OTPGate.
type OTPGateConfig struct {
	// Dialogs is the session-wide overlay guard the gate registers with.
	Dialogs *workflow.Dialogs
	Kind    workflow.DialogKind
	// Resend is the countdown before a new code may be requested.
	Resend time.Duration
	Notify workflow.Notifier
}

// OTPGate is a one-at-a-time OTP dialog: it sends a code, runs a resend
// countdown and verifies what the user enters. Dismissing the dialog
// cancels the countdown and discards any verification still in flight.
type OTPGate struct {
	mu        sync.Mutex
	gw        Gateway
	cfg       OTPGateConfig
	epoch     workflow.Epoch
	countdown *workflow.Countdown
	mobile    string
	open      bool
	busy      bool
	verified  bool
}

// OTPGateView is a snapshot of the gate.
type OTPGateView struct {
	Open          bool   `json:"open"`
	Verified      bool   `json:"verified"`
	Mobile        string `json:"mobile,omitempty"`
	SecondsLeft   int    `json:"seconds_left"`
	ResendEnabled bool   `json:"resend_enabled"`
}

func NewOTPGate(gw Gateway, cfg OTPGateConfig) *OTPGate {
	if cfg.Dialogs == nil {
		cfg.Dialogs = &workflow.Dialogs{}
	}
	return &OTPGate{gw: gw, cfg: cfg}
}

// Open shows the dialog for mobile, sends a code and starts the resend
// countdown. If sending fails the dialog is closed again.
func (g *OTPGate) Open(ctx context.Context, mobile string) (Dispatch, error) {
	g.mu.Lock()
	if g.verified {
		g.mu.Unlock()
		return Dispatch{}, fmt.Errorf("%w: already verified", apperrors.ErrInvalidTransition)
	}
	if g.open {
		g.mu.Unlock()
		return Dispatch{}, fmt.Errorf("%w: otp dialog already open", apperrors.ErrInvalidTransition)
	}
	if err := g.cfg.Dialogs.Open(g.cfg.Kind); err != nil {
		g.mu.Unlock()
		return Dispatch{}, err
	}
	g.open = true
	g.mobile = strings.TrimSpace(mobile)
	g.startCountdownLocked()
	token := g.epoch.Current()
	g.busy = true
	g.mu.Unlock()

	d, err := g.gw.SendOTP(ctx, g.mobile)

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.epoch.Valid(token) {
		return Dispatch{}, apperrors.ErrStaleResult
	}
	g.busy = false
	if err != nil {
		g.closeLocked()
		return Dispatch{}, err
	}
	return d, nil
}

func (g *OTPGate) startCountdownLocked() {
	if g.countdown != nil {
		g.countdown.Cancel()
	}
	kind := g.cfg.Kind
	notify := g.cfg.Notify
	g.countdown = workflow.NewCountdown(g.cfg.Resend, func() {
		notify.Emit(workflow.EventOTPExpired, map[string]interface{}{"dialog": kind})
	})
}

// Resend sends a new code. It is only allowed once the countdown is at zero.
func (g *OTPGate) Resend(ctx context.Context) (Dispatch, error) {
	g.mu.Lock()
	if !g.open || g.busy {
		g.mu.Unlock()
		return Dispatch{}, fmt.Errorf("%w: otp dialog not ready", apperrors.ErrInvalidTransition)
	}
	if !g.countdown.ResendEnabled() {
		g.mu.Unlock()
		return Dispatch{}, apperrors.ErrResendNotAllowed
	}
	g.countdown.Restart()
	token := g.epoch.Current()
	mobile := g.mobile
	g.busy = true
	g.mu.Unlock()

	d, err := g.gw.SendOTP(ctx, mobile)

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.epoch.Valid(token) {
		return Dispatch{}, apperrors.ErrStaleResult
	}
	g.busy = false
	return d, err
}

// Verify checks a six-digit code. A rejected code leaves the dialog open
// for another attempt.
func (g *OTPGate) Verify(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)

	g.mu.Lock()
	if !g.open || g.busy {
		g.mu.Unlock()
		return fmt.Errorf("%w: otp dialog not ready", apperrors.ErrInvalidTransition)
	}
	if len(code) != 6 || strings.Trim(code, "0123456789") != "" {
		g.mu.Unlock()
		return apperrors.Invalid("otp", "Please enter the 6-digit OTP")
	}
	token := g.epoch.Current()
	mobile := g.mobile
	g.busy = true
	g.mu.Unlock()

	ok, err := g.gw.VerifyOTP(ctx, mobile, code)

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.epoch.Valid(token) {
		return apperrors.ErrStaleResult
	}
	g.busy = false
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Invalid("otp", "Invalid OTP. Please try again")
	}
	g.verified = true
	g.closeLocked()
	return nil
}

// Dismiss closes the dialog without verifying.
func (g *OTPGate) Dismiss() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open {
		g.closeLocked()
	}
}

// Reset dismisses the dialog and forgets a previous verification.
func (g *OTPGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.open {
		g.closeLocked()
	}
	g.verified = false
	g.mobile = ""
}

func (g *OTPGate) closeLocked() {
	g.epoch.Advance()
	g.busy = false
	g.open = false
	if g.countdown != nil {
		g.countdown.Cancel()
	}
	g.cfg.Dialogs.Close(g.cfg.Kind)
}

func (g *OTPGate) Verified() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verified
}

// Mobile is the number the gate was last opened for.
func (g *OTPGate) Mobile() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mobile
}

func (g *OTPGate) View() OTPGateView {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := OTPGateView{Open: g.open, Verified: g.verified, Mobile: g.mobile}
	if g.open && g.countdown != nil {
		v.SecondsLeft = g.countdown.Seconds()
		v.ResendEnabled = g.countdown.ResendEnabled()
	}
	return v
}
