// Package registration is the new-account wizard: nine ordinal stages from
// BASIC to PAYMENT, with the KYC verification gate nested inside BASIC.
package registration

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pensionflow/internal/domain"
	"pensionflow/internal/payment"
	"pensionflow/internal/verification"
	"pensionflow/internal/workflow"
	"pensionflow/pkg/config"
	apperrors "pensionflow/pkg/errors"
	"pensionflow/pkg/logger"
	"pensionflow/pkg/validator"
)

// Config holds timings and thresholds.
type Config struct {
	LoaderFloor        time.Duration
	ExistingCheckFloor time.Duration
	MobileOTPTimer     time.Duration
	Tier1Minimum       decimal.Decimal
	Tier2Minimum       decimal.Decimal
	Payment            payment.Config
}

func NewConfig(w config.WorkflowConfig, p config.PaymentConfig) Config {
	return Config{
		LoaderFloor:        w.LoaderFloor,
		ExistingCheckFloor: w.ExistingCheckFloor,
		MobileOTPTimer:     w.MobileOTPTimer,
		Tier1Minimum:       p.Tier1Minimum,
		Tier2Minimum:       p.Tier2Minimum,
		Payment:            payment.NewConfig(w, p),
	}
}

// Options wire the wizard into its session.
type Options struct {
	Record  *domain.Record
	Gateway verification.Gateway
	Dialogs *workflow.Dialogs
	Notify  workflow.Notifier
	// OnHandoff is called when routing sends the user to the contribution
	// flow. The wizard is finished afterwards.
	OnHandoff func(notice string)
	// OnPaymentSuccess runs after the record has been frozen.
	OnPaymentSuccess func(payment.Result)
}

// Wizard drives one registration. All methods are safe for concurrent use;
// blocking gateway calls run without holding the wizard's lock.
type Wizard struct {
	mu        sync.Mutex
	cfg       Config
	opts      Options
	record    *domain.Record
	dialogs   *workflow.Dialogs
	logger    logger.Logger
	validator *validator.Validator

	stage      Stage
	basic      BasicState
	mobileGate *verification.OTPGate
	epoch      workflow.Epoch
	busy       bool
	notice     string
	reference  string
	payment    *payment.Machine
	handedOff  bool
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	after  []func()
	rnd    *rand.Rand
}

func New(cfg Config, opts Options, log logger.Logger) *Wizard {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Record == nil {
		opts.Record = domain.NewRecord()
	}
	if opts.Dialogs == nil {
		opts.Dialogs = &workflow.Dialogs{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Wizard{
		cfg:       cfg,
		opts:      opts,
		record:    opts.Record,
		dialogs:   opts.Dialogs,
		logger:    log,
		validator: validator.New(),
		stage:     StageBasic,
		basic:     Form{},
		mobileGate: verification.NewOTPGate(opts.Gateway, verification.OTPGateConfig{
			Dialogs: opts.Dialogs,
			Kind:    workflow.DialogMobileOTP,
			Resend:  cfg.MobileOTPTimer,
			Notify:  opts.Notify,
		}),
		ctx:    ctx,
		cancel: cancel,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (w *Wizard) unlock() {
	after := w.after
	w.after = nil
	w.mu.Unlock()
	for _, fn := range after {
		fn()
	}
}

func (w *Wizard) emitLocked(typ string, data map[string]interface{}) {
	n := w.opts.Notify
	if n == nil {
		return
	}
	ev := workflow.NewEvent(typ, data)
	w.after = append(w.after, func() { n(ev) })
}

func (w *Wizard) noticeLocked(msg string) {
	w.notice = msg
	w.emitLocked(workflow.EventNotice, map[string]interface{}{"message": msg})
}

func (w *Wizard) activeLocked() error {
	if w.closed || w.handedOff {
		return fmt.Errorf("%w: registration is finished", apperrors.ErrInvalidTransition)
	}
	if w.busy {
		return fmt.Errorf("%w: verification in progress", apperrors.ErrInvalidTransition)
	}
	return nil
}

func (w *Wizard) stageLocked(s Stage) error {
	if err := w.activeLocked(); err != nil {
		return err
	}
	if w.stage != s {
		return fmt.Errorf("%w: registration is at %s, not %s", apperrors.ErrInvalidTransition, w.stage, s)
	}
	return nil
}

func (w *Wizard) moveLocked(to Stage) {
	if to == w.stage {
		return
	}
	w.logger.Debug("registration transition", map[string]interface{}{
		"from": w.stage.String(),
		"to":   to.String(),
	})
	from := w.stage
	w.stage = to
	w.notice = ""
	w.emitLocked(workflow.EventStageChanged, map[string]interface{}{
		"wizard": "registration",
		"from":   from,
		"to":     to,
	})
}

// Set writes a record field. Only the stage that owns the field may write
// it, and BASIC fields only while the details form is showing.
func (w *Wizard) Set(f domain.Field, value string) error {
	w.mu.Lock()
	defer w.unlock()

	owner, ok := owners[f]
	if !ok {
		if domain.KnownField(f) {
			return fmt.Errorf("%w: %s is not a registration field", apperrors.ErrInvalidTransition, f)
		}
		return apperrors.Wrap(apperrors.ErrUnknownField, string(f))
	}
	if err := w.stageLocked(owner); err != nil {
		return err
	}
	if owner == StageBasic {
		if _, ok := w.basic.(Form); !ok {
			return fmt.Errorf("%w: details are locked during verification", apperrors.ErrInvalidTransition)
		}
	}
	if f == domain.FieldMobile && w.mobileGate.View().Open {
		return fmt.Errorf("%w: mobile number is locked while the OTP dialog is open", apperrors.ErrInvalidTransition)
	}
	return w.record.Set(f, value)
}

// SetMirror switches a "same as" toggle from the stage that shows it.
func (w *Wizard) SetMirror(kind domain.MirrorKind, on bool) error {
	w.mu.Lock()
	defer w.unlock()
	owner, ok := mirrorOwners[kind]
	if !ok {
		return apperrors.Wrap(apperrors.ErrUnknownField, string(kind))
	}
	if err := w.stageLocked(owner); err != nil {
		return err
	}
	return w.record.SetMirror(kind, on)
}

func (w *Wizard) SetBank(i int, f domain.BankField, value string) error {
	w.mu.Lock()
	defer w.unlock()
	if err := w.stageLocked(StageBank); err != nil {
		return err
	}
	return w.record.SetBank(i, f, value)
}

func (w *Wizard) AddBank() (int, error) {
	w.mu.Lock()
	defer w.unlock()
	if err := w.stageLocked(StageBank); err != nil {
		return 0, err
	}
	return w.record.AddBank()
}

func (w *Wizard) RemoveBank(i int) error {
	w.mu.Lock()
	defer w.unlock()
	if err := w.stageLocked(StageBank); err != nil {
		return err
	}
	return w.record.RemoveBank(i)
}

func (w *Wizard) SetNominee(i int, f domain.NomineeField, value string) error {
	w.mu.Lock()
	defer w.unlock()
	if err := w.stageLocked(StageNominee); err != nil {
		return err
	}
	return w.record.SetNominee(i, f, value)
}

func (w *Wizard) AddNominee() (int, error) {
	w.mu.Lock()
	defer w.unlock()
	if err := w.stageLocked(StageNominee); err != nil {
		return 0, err
	}
	return w.record.AddNominee()
}

func (w *Wizard) RemoveNominee(i int) error {
	w.mu.Lock()
	defer w.unlock()
	if err := w.stageLocked(StageNominee); err != nil {
		return err
	}
	return w.record.RemoveNominee(i)
}

// Advance runs the current stage's guard and moves forward. On BASIC it
// starts the routing decision; on REVIEW it generates the payment
// reference and enters PAYMENT. A failed guard returns a ValidationError
// and leaves the wizard where it was.
func (w *Wizard) Advance() error {
	w.mu.Lock()
	defer w.unlock()
	if err := w.activeLocked(); err != nil {
		return err
	}

	switch w.stage {
	case StageBasic:
		return w.startLocked()
	case StageReview:
		return w.confirmLocked()
	case StagePayment:
		return fmt.Errorf("%w: payment is in progress", apperrors.ErrInvalidTransition)
	}

	if err := w.guardFor(w.stage)(w.record.Snapshot()); err != nil {
		w.notice = errorNotice(err)
		return err
	}
	w.moveLocked(w.stage + 1)
	return nil
}

// confirmLocked re-checks every earlier guard so that an inconsistent
// record never reaches the payment workflow.
func (w *Wizard) confirmLocked() error {
	v := w.record.Snapshot()
	for s := StagePersonal; s <= StageReview; s++ {
		if err := w.guardFor(s)(v); err != nil {
			w.notice = errorNotice(err)
			return err
		}
	}

	w.reference = fmt.Sprintf("BSE-NPS-%d", 1000+w.rnd.Intn(9000))
	base := v.Tier1.Amount
	if v.Tier.HasVoluntary() {
		base = base.Add(v.Tier2.Amount)
	}

	record := w.record
	onSuccess := w.opts.OnPaymentSuccess
	w.payment = payment.NewMachine(w.cfg.Payment, payment.Options{
		Reference:       w.reference,
		BaseAmount:      base,
		IssueIdentifier: true,
		SuccessAction:   payment.ActionReturnToDashboard,
		Dialogs:         w.dialogs,
		Notify:          w.opts.Notify,
		OnSuccess: func(res payment.Result) {
			record.Freeze()
			if onSuccess != nil {
				onSuccess(res)
			}
		},
	}, w.logger)

	w.logger.Info("registration submitted for payment", map[string]interface{}{
		"reference": w.reference,
		"tier":      v.Tier,
		"amount":    base.String(),
	})
	w.moveLocked(StagePayment)
	return nil
}

// Back returns one stage. In BASIC it leaves any verification sub-state
// for the form. From PAYMENT it is only allowed before a mode is chosen.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.unlock()
	if w.closed || w.handedOff {
		return fmt.Errorf("%w: registration is finished", apperrors.ErrInvalidTransition)
	}

	switch w.stage {
	case StageBasic:
		return w.cancelBasicLocked()
	case StagePayment:
		if w.payment.Stage() != payment.StageSummary {
			return fmt.Errorf("%w: use the payment's own navigation", apperrors.ErrInvalidTransition)
		}
		m := w.payment
		w.payment = nil
		w.reference = ""
		w.after = append(w.after, m.Close)
	}
	w.moveLocked(w.stage - 1)
	return nil
}

// GoTo jumps from REVIEW back to an earlier stage.
func (w *Wizard) GoTo(target Stage) error {
	w.mu.Lock()
	defer w.unlock()
	if err := w.stageLocked(StageReview); err != nil {
		return err
	}
	if target < StageBasic || target >= StageReview {
		return fmt.Errorf("%w: cannot jump to %s", apperrors.ErrInvalidTransition, target)
	}
	w.moveLocked(target)
	return nil
}

// Payment is the payment machine once REVIEW has been confirmed.
func (w *Wizard) Payment() *payment.Machine {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.payment
}

func (w *Wizard) Stage() Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stage
}

// Basic returns the current BASIC sub-state.
func (w *Wizard) Basic() BasicState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.basic
}

func (w *Wizard) Record() *domain.Record {
	return w.record
}

// Close cancels background checks, timers and the payment machine, then
// waits for background work to stop.
func (w *Wizard) Close() {
	w.mu.Lock()
	w.closed = true
	w.epoch.Advance()
	w.cancel()
	m := w.payment
	w.unlock()

	w.mobileGate.Dismiss()
	if m != nil {
		m.Close()
	}
	w.wg.Wait()
}

// View is a point-in-time snapshot of the wizard.
type View struct {
	Stage      Stage                    `json:"stage"`
	StageIndex int                      `json:"stage_index"`
	Basic      BasicView                `json:"basic"`
	MobileOTP  verification.OTPGateView `json:"mobile_otp"`
	Busy       bool                     `json:"busy"`
	Notice     string                   `json:"notice,omitempty"`
	Reference  string                   `json:"reference,omitempty"`
	Payment    *payment.View            `json:"payment,omitempty"`
	HandedOff  bool                     `json:"handed_off"`
}

func (w *Wizard) View() View {
	w.mu.Lock()
	v := View{
		Stage:      w.stage,
		StageIndex: int(w.stage),
		Basic:      describeBasic(w.basic),
		Busy:       w.busy,
		Notice:     w.notice,
		Reference:  w.reference,
		HandedOff:  w.handedOff,
	}
	m := w.payment
	w.mu.Unlock()

	v.MobileOTP = w.mobileGate.View()
	if m != nil {
		pv := m.View()
		v.Payment = &pv
	}
	return v
}

func errorNotice(err error) string {
	if ve, ok := apperrors.AsValidation(err); ok {
		return ve.Message
	}
	return err.Error()
}
