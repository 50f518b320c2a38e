// Package contribution implements the top-up flow for an existing
// account: BASIC -> REVIEW -> PAYMENT. Legacy accounts pay through the
// full payment workflow; every other account is sent a payment link and
// then watches a status poller.
package contribution

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"pensionflow/internal/domain"
	"pensionflow/internal/payment"
	"pensionflow/internal/verification"
	"pensionflow/internal/workflow"
	"pensionflow/pkg/config"
	apperrors "pensionflow/pkg/errors"
	"pensionflow/pkg/logger"
	"pensionflow/pkg/validator"
)

// LegacySuffix marks accounts that keep the original payment journey.
const LegacySuffix = "1111"

// IsLegacy reports whether pran belongs to a legacy account.
func IsLegacy(pran string) bool {
	return strings.HasSuffix(strings.TrimSpace(pran), LegacySuffix)
}

type Stage int

const (
	StageBasic Stage = iota
	StageReview
	StagePayment
)

var stageNames = [...]string{"BASIC", "REVIEW", "PAYMENT"}

func (s Stage) String() string {
	if s < StageBasic || s > StagePayment {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Notices and guard messages.
const (
	NoticeMobileOK   = "Mobile verified successfully"
	NoticeLinkShared = "Payment link has been shared on Email/SMS."

	msgBasicInvalid  = "Please enter valid PRAN, DOB, and 10-digit mobile number"
	msgRecheckBasic  = "Please re-check PRAN, DOB and mobile number"
	msgMobileFirst   = "Please verify your mobile number first"
	msgConsent       = "Please accept the consent to proceed"
	msgAmount        = "Please enter a valid investment amount"
	msgDeclaration   = "Please accept the declaration to proceed"
	msgMobileDigits  = "Mobile number must be 10 digits"
	msgMobileChanged = "Mobile number changed after the OTP was sent. Please verify again"
)

// Config holds timings used by the wizard and its payment steps.
type Config struct {
	MobileOTPTimer time.Duration
	Payment        payment.Config
}

func NewConfig(w config.WorkflowConfig, p config.PaymentConfig) Config {
	return Config{
		MobileOTPTimer: w.MobileOTPTimer,
		Payment:        payment.NewConfig(w, p),
	}
}

// Options wire the wizard into its session.
type Options struct {
	Record  *domain.Record
	Gateway verification.Gateway
	Dialogs *workflow.Dialogs
	Notify  workflow.Notifier
	// Notice is shown on BASIC when the flow was entered by a handoff.
	Notice string
	// OnPaymentSuccess runs after the record has been frozen.
	OnPaymentSuccess func(payment.Result)
}

var owners = map[domain.Field]Stage{
	domain.FieldContributionPRAN:     StageBasic,
	domain.FieldContributionDOB:      StageBasic,
	domain.FieldContributionMobile:   StageBasic,
	domain.FieldContributionConsent:  StageBasic,
	domain.FieldContributionAmount:   StageReview,
	domain.FieldContributionDeclared: StageReview,
}

type basicInput struct {
	PRAN   string `json:"pran" validate:"pran"`
	DOB    string `json:"dob" validate:"dob"`
	Mobile string `json:"mobile" validate:"mobile"`
}

// Wizard drives one contribution attempt.
type Wizard struct {
	mu        sync.Mutex
	cfg       Config
	opts      Options
	record    *domain.Record
	dialogs   *workflow.Dialogs
	logger    logger.Logger
	validator *validator.Validator

	stage       Stage
	mobileGate  *verification.OTPGate
	notice      string
	reference   string
	linkPending bool
	payment     *payment.Machine
	poller      *payment.StatusPoller
	closed      bool

	after []func()
	rnd   *rand.Rand
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
	return &Wizard{
		cfg:       cfg,
		opts:      opts,
		record:    opts.Record,
		dialogs:   opts.Dialogs,
		logger:    log,
		validator: validator.New(),
		stage:     StageBasic,
		notice:    opts.Notice,
		mobileGate: verification.NewOTPGate(opts.Gateway, verification.OTPGateConfig{
			Dialogs: opts.Dialogs,
			Kind:    workflow.DialogMobileOTP,
			Resend:  cfg.MobileOTPTimer,
			Notify:  opts.Notify,
		}),
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
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

func (w *Wizard) stageLocked(s Stage) error {
	if w.closed {
		return fmt.Errorf("%w: contribution is closed", apperrors.ErrInvalidTransition)
	}
	if w.stage != s {
		return fmt.Errorf("%w: contribution is at %s, not %s", apperrors.ErrInvalidTransition, w.stage, s)
	}
	return nil
}

func (w *Wizard) moveLocked(to Stage) {
	if to == w.stage {
		return
	}
	w.logger.Debug("contribution transition", map[string]interface{}{
		"from": w.stage.String(),
		"to":   to.String(),
	})
	from := w.stage
	w.stage = to
	w.notice = ""
	w.emitLocked(workflow.EventStageChanged, map[string]interface{}{
		"wizard": "contribution",
		"from":   from,
		"to":     to,
	})
}

// Set writes a contribution field from the stage that shows it.
func (w *Wizard) Set(f domain.Field, value string) error {
	w.mu.Lock()
	defer w.unlock()

	owner, ok := owners[f]
	if !ok {
		if domain.KnownField(f) {
			return fmt.Errorf("%w: %s is not a contribution field", apperrors.ErrInvalidTransition, f)
		}
		return apperrors.Wrap(apperrors.ErrUnknownField, string(f))
	}
	if err := w.stageLocked(owner); err != nil {
		return err
	}
	if w.linkPending {
		return fmt.Errorf("%w: payment link already shared", apperrors.ErrInvalidTransition)
	}
	if f == domain.FieldContributionMobile && w.mobileGate.View().Open {
		return fmt.Errorf("%w: mobile number is locked while the OTP dialog is open", apperrors.ErrInvalidTransition)
	}
	return w.record.Set(f, value)
}

// SendMobileOTP opens the mobile OTP dialog for the contribution mobile.
func (w *Wizard) SendMobileOTP(ctx context.Context) (verification.Dispatch, error) {
	w.mu.Lock()
	if err := w.stageLocked(StageBasic); err != nil {
		w.unlock()
		return verification.Dispatch{}, err
	}
	mobile := w.record.Get(domain.FieldContributionMobile)
	w.unlock()

	if !w.validator.Var(mobile, "mobile") {
		return verification.Dispatch{}, apperrors.Invalid(string(domain.FieldContributionMobile), msgMobileDigits)
	}
	return w.mobileGate.Open(ctx, mobile)
}

func (w *Wizard) ResendMobileOTP(ctx context.Context) (verification.Dispatch, error) {
	w.mu.Lock()
	if err := w.stageLocked(StageBasic); err != nil {
		w.unlock()
		return verification.Dispatch{}, err
	}
	w.unlock()
	return w.mobileGate.Resend(ctx)
}

func (w *Wizard) VerifyMobileOTP(ctx context.Context, code string) error {
	w.mu.Lock()
	if err := w.stageLocked(StageBasic); err != nil {
		w.unlock()
		return err
	}
	w.unlock()

	if err := w.mobileGate.Verify(ctx, code); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.unlock()
	if strings.TrimSpace(w.record.Get(domain.FieldContributionMobile)) != w.mobileGate.Mobile() {
		w.mobileGate.Reset()
		return apperrors.Invalid(string(domain.FieldContributionMobile), msgMobileChanged)
	}
	w.record.MarkContributionMobileVerified()
	w.noticeLocked(NoticeMobileOK)
	return nil
}

func (w *Wizard) DismissMobileOTP() {
	w.mobileGate.Dismiss()
}

func (w *Wizard) checkBasic(c domain.Contribution, message string) error {
	in := basicInput{PRAN: c.PRAN, DOB: c.DOB, Mobile: c.Mobile}
	if err := w.validator.Check(in); err != nil {
		if ve, ok := apperrors.AsValidation(err); ok {
			return apperrors.Invalid("contribution_"+ve.Field, message)
		}
		return err
	}
	if !c.MobileVerified {
		return apperrors.Invalid(string(domain.FieldContributionMobile), msgMobileFirst)
	}
	if !c.Consent {
		return apperrors.Invalid(string(domain.FieldContributionConsent), msgConsent)
	}
	return nil
}

func checkReview(c domain.Contribution) error {
	if !c.Amount.IsPositive() {
		return apperrors.Invalid(string(domain.FieldContributionAmount), msgAmount)
	}
	if !c.Declared {
		return apperrors.Invalid(string(domain.FieldContributionDeclared), msgDeclaration)
	}
	return nil
}

// Advance runs the current stage's guard. From REVIEW a legacy account
// enters the payment workflow; any other account gets the payment-link
// notice, which Acknowledge dismisses.
func (w *Wizard) Advance() error {
	w.mu.Lock()
	defer w.unlock()
	if w.closed {
		return fmt.Errorf("%w: contribution is closed", apperrors.ErrInvalidTransition)
	}

	c := w.record.Snapshot().Contribution
	switch w.stage {
	case StageBasic:
		if err := w.checkBasic(c, msgBasicInvalid); err != nil {
			w.notice = errorNotice(err)
			return err
		}
		w.moveLocked(StageReview)
		return nil
	case StageReview:
		if w.linkPending {
			return fmt.Errorf("%w: acknowledge the payment link first", apperrors.ErrInvalidTransition)
		}
		err := w.checkBasic(c, msgRecheckBasic)
		if err == nil {
			err = checkReview(c)
		}
		if err != nil {
			w.notice = errorNotice(err)
			return err
		}
		return w.submitLocked(c)
	}
	return fmt.Errorf("%w: payment is in progress", apperrors.ErrInvalidTransition)
}

func (w *Wizard) newReference() string {
	return fmt.Sprintf("BSE-NPS-%d", 1000+w.rnd.Intn(9000))
}

func (w *Wizard) submitLocked(c domain.Contribution) error {
	if !IsLegacy(c.PRAN) {
		if err := w.dialogs.Open(workflow.DialogPaymentLinkNotice); err != nil {
			return err
		}
		w.linkPending = true
		w.reference = w.newReference()
		w.logger.Info("contribution payment link shared", map[string]interface{}{
			"reference": w.reference,
			"amount":    c.Amount.String(),
		})
		w.noticeLocked(NoticeLinkShared)
		w.emitLocked(workflow.EventLinkShared, map[string]interface{}{
			"reference": w.reference,
			"amount":    c.Amount.String(),
			"mobile":    c.Mobile,
		})
		return nil
	}

	w.reference = w.newReference()
	record := w.record
	onSuccess := w.opts.OnPaymentSuccess
	w.payment = payment.NewMachine(w.cfg.Payment, payment.Options{
		Reference:       w.reference,
		BaseAmount:      c.Amount,
		IssueIdentifier: false,
		SuccessAction:   payment.ActionAnotherContribution,
		Dialogs:         w.dialogs,
		Notify:          w.opts.Notify,
		OnSuccess: func(res payment.Result) {
			record.Freeze()
			if onSuccess != nil {
				onSuccess(res)
			}
		},
	}, w.logger)
	w.logger.Info("legacy contribution submitted for payment", map[string]interface{}{
		"reference": w.reference,
		"amount":    c.Amount.String(),
	})
	w.moveLocked(StagePayment)
	return nil
}

// Acknowledge closes the payment-link notice and starts the status poller.
func (w *Wizard) Acknowledge() error {
	w.mu.Lock()
	defer w.unlock()
	if err := w.stageLocked(StageReview); err != nil {
		return err
	}
	if !w.linkPending {
		return fmt.Errorf("%w: no payment link to acknowledge", apperrors.ErrInvalidTransition)
	}
	w.dialogs.Close(workflow.DialogPaymentLinkNotice)
	w.linkPending = false
	amount := w.record.Snapshot().Contribution.Amount
	w.poller = payment.NewStatusPoller(w.cfg.Payment, w.reference, amount, w.opts.Notify, w.logger)
	w.moveLocked(StagePayment)
	return nil
}

// Back returns one stage. From PAYMENT it is only allowed on the legacy
// journey before a mode is chosen.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.unlock()
	if w.closed {
		return fmt.Errorf("%w: contribution is closed", apperrors.ErrInvalidTransition)
	}

	switch w.stage {
	case StageBasic:
		return fmt.Errorf("%w: already at the first stage", apperrors.ErrInvalidTransition)
	case StageReview:
		if w.linkPending {
			w.dialogs.Close(workflow.DialogPaymentLinkNotice)
			w.linkPending = false
			w.reference = ""
		}
	case StagePayment:
		if w.payment == nil || w.payment.Stage() != payment.StageSummary {
			return fmt.Errorf("%w: payment cannot be left from here", apperrors.ErrInvalidTransition)
		}
		m := w.payment
		w.payment = nil
		w.reference = ""
		w.after = append(w.after, m.Close)
	}
	w.moveLocked(w.stage - 1)
	return nil
}

func (w *Wizard) Stage() Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stage
}

// Payment is the payment machine of a legacy contribution.
func (w *Wizard) Payment() *payment.Machine {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.payment
}

// Poller is the status poller of a payment-link contribution.
func (w *Wizard) Poller() *payment.StatusPoller {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.poller
}

func (w *Wizard) Record() *domain.Record {
	return w.record
}

// Close stops the OTP countdown, the payment machine and the poller.
func (w *Wizard) Close() {
	w.mu.Lock()
	w.closed = true
	m, p := w.payment, w.poller
	if w.linkPending {
		w.dialogs.Close(workflow.DialogPaymentLinkNotice)
		w.linkPending = false
	}
	w.unlock()

	w.mobileGate.Dismiss()
	if m != nil {
		m.Close()
	}
	if p != nil {
		p.Close()
	}
}

// View is a point-in-time snapshot of the wizard.
type View struct {
	Stage          Stage                    `json:"stage"`
	StageIndex     int                      `json:"stage_index"`
	MobileOTP      verification.OTPGateView `json:"mobile_otp"`
	Notice         string                   `json:"notice,omitempty"`
	Reference      string                   `json:"reference,omitempty"`
	Legacy         bool                     `json:"legacy"`
	LinkNoticeOpen bool                     `json:"link_notice_open"`
	Payment        *payment.View            `json:"payment,omitempty"`
	Status         *payment.StatusView      `json:"status,omitempty"`
}

func (w *Wizard) View() View {
	w.mu.Lock()
	v := View{
		Stage:          w.stage,
		StageIndex:     int(w.stage),
		Notice:         w.notice,
		Reference:      w.reference,
		Legacy:         IsLegacy(w.record.Get(domain.FieldContributionPRAN)),
		LinkNoticeOpen: w.linkPending,
	}
	m, p := w.payment, w.poller
	w.mu.Unlock()

	v.MobileOTP = w.mobileGate.View()
	if m != nil {
		pv := m.View()
		v.Payment = &pv
	}
	if p != nil {
		sv := p.View()
		v.Status = &sv
	}
	return v
}

func errorNotice(err error) string {
	if ve, ok := apperrors.AsValidation(err); ok {
		return ve.Message
	}
	return err.Error()
}
