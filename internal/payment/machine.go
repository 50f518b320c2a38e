// Package payment simulates the payment-gateway checkout shared by both
// wizards, and the standalone status poller used after a payment link is
// shared.
package payment

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pensionflow/internal/catalog"
	"pensionflow/internal/workflow"
	apperrors "pensionflow/pkg/errors"
	"pensionflow/pkg/logger"
	"pensionflow/pkg/validator"
)

// Options configure one invocation of the payment workflow.
type Options struct {
	// Reference is the application or payment reference shown on the
	// summary and receipt.
	Reference  string
	BaseAmount decimal.Decimal
	// IssueIdentifier enables the pending-then-issued identifier overlay
	// after a successful payment.
	IssueIdentifier bool
	SuccessAction   SuccessAction
	// Dialogs is the session-wide overlay guard. A private one is used
	// when nil.
	Dialogs *workflow.Dialogs
	Notify  workflow.Notifier
	// OnSuccess runs once per successful payment, outside the machine's lock.
	OnSuccess func(Result)
}

// Machine is the payment workflow: SUMMARY -> MODE_SELECT -> CONFIRM ->
// GATEWAY -> RESULT. Blocking steps release the lock while they wait; if
// the user backs out meanwhile the step's result is discarded.
type Machine struct {
	mu      sync.Mutex
	cfg     Config
	opts    Options
	logger  logger.Logger
	dialogs *workflow.Dialogs
	epoch   workflow.Epoch

	stage      Stage
	mode       Mode
	gateway    GatewayState
	processing bool
	result     *Result
	pendingID  string
	issueTimer *workflow.Timer
	closed     bool

	after []func()
	rnd   *rand.Rand
	now   func() time.Time
}

func NewMachine(cfg Config, opts Options, log logger.Logger) *Machine {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.SuccessAction == "" {
		opts.SuccessAction = ActionReturnToDashboard
	}
	d := opts.Dialogs
	if d == nil {
		d = &workflow.Dialogs{}
	}
	return &Machine{
		cfg:     cfg,
		opts:    opts,
		logger:  log,
		dialogs: d,
		stage:   StageSummary,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

// unlock releases m.mu and then runs deferred notifications.
func (m *Machine) unlock() {
	after := m.after
	m.after = nil
	m.mu.Unlock()
	for _, fn := range after {
		fn()
	}
}

func (m *Machine) emitLocked(typ string, data map[string]interface{}) {
	n := m.opts.Notify
	if n == nil {
		return
	}
	ev := workflow.NewEvent(typ, data)
	m.after = append(m.after, func() { n(ev) })
}

func (m *Machine) readyLocked(stage Stage) error {
	if m.closed {
		return fmt.Errorf("%w: payment closed", apperrors.ErrInvalidTransition)
	}
	if m.processing {
		return fmt.Errorf("%w: payment step in progress", apperrors.ErrInvalidTransition)
	}
	if m.stage != stage {
		return fmt.Errorf("%w: payment is at %s, not %s", apperrors.ErrInvalidTransition, m.stage, stage)
	}
	return nil
}

func (m *Machine) moveLocked(to Stage) error {
	if !CanTransition(m.stage, to) {
		return fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, m.stage, to)
	}
	m.logger.Debug("payment transition", map[string]interface{}{
		"reference": m.opts.Reference,
		"from":      m.stage,
		"to":        to,
	})
	m.stage = to
	m.emitLocked(workflow.EventPaymentStage, map[string]interface{}{"stage": to})
	return nil
}

// beginLocked marks a blocking step as started and returns its epoch token.
func (m *Machine) beginLocked() uint64 {
	m.processing = true
	return m.epoch.Current()
}

// wait sleeps d with the lock released. On success it returns with m.mu
// held; on error the lock is not held.
func (m *Machine) wait(ctx context.Context, token uint64, d time.Duration) error {
	err := workflow.Sleep(ctx, d)
	m.mu.Lock()
	if !m.epoch.Valid(token) {
		m.unlock()
		return apperrors.ErrStaleResult
	}
	m.processing = false
	if err != nil {
		m.unlock()
		return err
	}
	return nil
}

// Proceed leaves the summary.
func (m *Machine) Proceed() error {
	m.mu.Lock()
	defer m.unlock()
	if err := m.readyLocked(StageSummary); err != nil {
		return err
	}
	return m.moveLocked(StageModeSelect)
}

// SelectMode chooses UPI or net banking.
func (m *Machine) SelectMode(mode Mode) error {
	m.mu.Lock()
	defer m.unlock()
	if err := m.readyLocked(StageModeSelect); err != nil {
		return err
	}
	if mode != ModeUPI && mode != ModeNetBanking {
		return apperrors.Invalid("mode", "Please select a payment mode")
	}
	m.mode = mode
	return nil
}

// Initiate opens the confirmation overlay. A mode must be chosen.
func (m *Machine) Initiate() error {
	m.mu.Lock()
	defer m.unlock()
	if err := m.readyLocked(StageModeSelect); err != nil {
		return err
	}
	if m.mode == ModeNone {
		return apperrors.Invalid("mode", "Please select a payment mode")
	}
	if err := m.dialogs.Open(workflow.DialogPaymentConfirm); err != nil {
		return err
	}
	return m.moveLocked(StageConfirm)
}

// CancelConfirm dismisses the confirmation overlay.
func (m *Machine) CancelConfirm() error {
	m.mu.Lock()
	defer m.unlock()
	if err := m.readyLocked(StageConfirm); err != nil {
		return err
	}
	m.dialogs.Close(workflow.DialogPaymentConfirm)
	return m.moveLocked(StageModeSelect)
}

// Confirm accepts the overlay and, after the redirect delay, enters the
// gateway: the UPI form directly, or the net-banking landing page.
func (m *Machine) Confirm(ctx context.Context) error {
	m.mu.Lock()
	if err := m.readyLocked(StageConfirm); err != nil {
		m.unlock()
		return err
	}
	m.dialogs.Close(workflow.DialogPaymentConfirm)
	token := m.beginLocked()
	m.unlock()

	if err := m.wait(ctx, token, m.cfg.RedirectDelay); err != nil {
		return err
	}
	defer m.unlock()

	if m.mode == ModeNetBanking {
		m.gateway = NetBanking{Step: StepLanding}
	} else {
		m.gateway = UPIForm{}
	}
	return m.moveLocked(StageGateway)
}

func (m *Machine) upiLocked() error {
	if err := m.readyLocked(StageGateway); err != nil {
		return err
	}
	if _, ok := m.gateway.(UPIForm); !ok {
		return fmt.Errorf("%w: not on the UPI form", apperrors.ErrInvalidTransition)
	}
	return nil
}

func (m *Machine) netBankingLocked(step NetBankingStep) (NetBanking, error) {
	if err := m.readyLocked(StageGateway); err != nil {
		return NetBanking{}, err
	}
	nb, ok := m.gateway.(NetBanking)
	if !ok || nb.Step != step {
		return NetBanking{}, fmt.Errorf("%w: net banking is not at %s", apperrors.ErrInvalidTransition, step)
	}
	return nb, nil
}

// PayUPI submits a UPI handle. fail@upi always fails; any other handle
// succeeds, with a hint unless it is success@upi.
func (m *Machine) PayUPI(ctx context.Context, handle string) error {
	handle = strings.TrimSpace(handle)

	m.mu.Lock()
	if err := m.upiLocked(); err != nil {
		m.unlock()
		return err
	}
	if !validator.IsUPIHandle(handle) {
		m.unlock()
		return apperrors.Invalid("upi_id", "Invalid UPI ID")
	}
	token := m.beginLocked()
	m.unlock()

	if err := m.wait(ctx, token, m.cfg.UPIVerifyDelay); err != nil {
		return err
	}
	defer m.unlock()

	switch handle {
	case UPIFailureHandle:
		return m.finishLocked(OutcomeFailure, "")
	case UPISuccessHandle:
		return m.finishLocked(OutcomeSuccess, "")
	}
	return m.finishLocked(OutcomeSuccess, UPIDemoNotice)
}

// SelectBank picks a bank on the net-banking landing page.
func (m *Machine) SelectBank(bank string) error {
	m.mu.Lock()
	defer m.unlock()
	nb, err := m.netBankingLocked(StepLanding)
	if err != nil {
		return err
	}
	b, ok := catalog.NetBankingBankByCode(strings.TrimSpace(bank))
	if !ok {
		return apperrors.Invalid("bank", "Please select a bank")
	}
	nb.Bank = b.Name
	nb.Step = StepRedirect
	m.gateway = nb
	return nil
}

// ContinueRedirect leaves the simulated redirect page for the bank login.
func (m *Machine) ContinueRedirect() error {
	m.mu.Lock()
	defer m.unlock()
	nb, err := m.netBankingLocked(StepRedirect)
	if err != nil {
		return err
	}
	nb.Step = StepLogin
	m.gateway = nb
	return nil
}

// Login signs in to the simulated bank.
func (m *Machine) Login(ctx context.Context, userID, password string) error {
	m.mu.Lock()
	if _, err := m.netBankingLocked(StepLogin); err != nil {
		m.unlock()
		return err
	}
	if strings.TrimSpace(userID) == "" || password == "" {
		m.unlock()
		return apperrors.Invalid("user_id", "Please enter your bank credentials")
	}
	token := m.beginLocked()
	m.unlock()

	if err := m.wait(ctx, token, m.cfg.BankLoginDelay); err != nil {
		return err
	}
	defer m.unlock()

	nb := m.gateway.(NetBanking)
	nb.Step = StepReview
	m.gateway = nb
	return nil
}

// ConfirmTransaction accepts the bank's review page.
func (m *Machine) ConfirmTransaction() error {
	m.mu.Lock()
	defer m.unlock()
	nb, err := m.netBankingLocked(StepReview)
	if err != nil {
		return err
	}
	nb.Step = StepOTP
	m.gateway = nb
	return nil
}

// SubmitBankOTP completes net banking. 12345 always fails; any other
// five-digit code succeeds.
func (m *Machine) SubmitBankOTP(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)

	m.mu.Lock()
	if _, err := m.netBankingLocked(StepOTP); err != nil {
		m.unlock()
		return err
	}
	if len(code) != 5 || strings.Trim(code, "0123456789") != "" {
		m.unlock()
		return apperrors.Invalid("otp", "Please enter the 5-digit OTP")
	}
	token := m.beginLocked()
	m.unlock()

	if err := m.wait(ctx, token, m.cfg.NetBankingOTPDelay); err != nil {
		return err
	}
	defer m.unlock()

	if code == NetBankingFailOTP {
		return m.finishLocked(OutcomeFailure, "")
	}
	return m.finishLocked(OutcomeSuccess, "")
}

// Back returns to the parent of the current stage. Leaving while a step
// is in flight is allowed; that step's result is then discarded.
func (m *Machine) Back() error {
	m.mu.Lock()
	defer m.unlock()
	if m.closed {
		return fmt.Errorf("%w: payment closed", apperrors.ErrInvalidTransition)
	}

	var to Stage
	switch m.stage {
	case StageModeSelect:
		to = StageSummary
	case StageConfirm:
		m.dialogs.Close(workflow.DialogPaymentConfirm)
		to = StageModeSelect
	case StageGateway:
		m.gateway = nil
		to = StageModeSelect
	default:
		return fmt.Errorf("%w: cannot go back from %s", apperrors.ErrInvalidTransition, m.stage)
	}
	m.epoch.Advance()
	m.processing = false
	return m.moveLocked(to)
}

// Retry returns a failed payment to the summary.
func (m *Machine) Retry() error {
	m.mu.Lock()
	defer m.unlock()
	if err := m.readyLocked(StageResult); err != nil {
		return err
	}
	if m.result == nil || m.result.Outcome != OutcomeFailure {
		return fmt.Errorf("%w: only a failed payment can be retried", apperrors.ErrInvalidTransition)
	}
	m.result = nil
	m.mode = ModeNone
	m.gateway = nil
	return m.moveLocked(StageSummary)
}

// Close cancels pending timers and in-flight steps. The machine rejects
// every operation afterwards.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.unlock()
	m.closed = true
	m.epoch.Advance()
	m.processing = false
	m.issueTimer.Cancel()
	m.dialogs.Close(workflow.DialogPaymentConfirm)
}

func (m *Machine) finishLocked(outcome Outcome, notice string) error {
	res := &Result{
		Outcome:       outcome,
		TransactionID: fmt.Sprintf("BD%d", m.now().UnixMilli()),
		BankReference: fmt.Sprintf("BNK%06d", 100000+m.rnd.Intn(900000)),
		Issuance:      IssuanceNone,
		Notice:        notice,
		CompletedAt:   m.now(),
	}
	m.gateway = nil
	m.pendingID = ""

	if outcome == OutcomeSuccess && m.opts.IssueIdentifier {
		res.Issuance = IssuancePending
		m.pendingID = fmt.Sprintf("1100%08d", 10000000+m.rnd.Intn(90000000))
		token := m.epoch.Current()
		m.issueTimer = workflow.After(m.cfg.IssuanceDelay, func() { m.reveal(token) })
	}
	m.result = res

	if err := m.moveLocked(StageResult); err != nil {
		return err
	}

	fields := map[string]interface{}{
		"reference":      m.opts.Reference,
		"outcome":        outcome,
		"transaction_id": res.TransactionID,
		"mode":           m.mode,
	}
	if outcome == OutcomeFailure {
		m.logger.Warn("payment failed", fields)
	} else {
		m.logger.Info("payment succeeded", fields)
	}
	m.emitLocked(workflow.EventPaymentResult, map[string]interface{}{
		"reference":      m.opts.Reference,
		"outcome":        outcome,
		"transaction_id": res.TransactionID,
		"bank_reference": res.BankReference,
		"issuance":       res.Issuance,
		"notice":         notice,
	})

	if outcome == OutcomeSuccess && m.opts.OnSuccess != nil {
		snapshot := *res
		cb := m.opts.OnSuccess
		m.after = append(m.after, func() { cb(snapshot) })
	}
	return nil
}

func (m *Machine) reveal(token uint64) {
	m.mu.Lock()
	defer m.unlock()
	if !m.epoch.Valid(token) || m.result == nil || m.result.Issuance != IssuancePending {
		return
	}
	m.result.Issuance = IssuanceIssued
	m.result.Identifier = m.pendingID
	m.logger.Info("identifier issued", map[string]interface{}{
		"reference":  m.opts.Reference,
		"identifier": m.pendingID,
	})
	m.emitLocked(workflow.EventIdentifierReady, map[string]interface{}{
		"identifier": m.pendingID,
	})
}

// Stage returns the current top-level stage.
func (m *Machine) Stage() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

// Result returns a copy of the terminal result, if any.
func (m *Machine) Result() (Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.result == nil {
		return Result{}, false
	}
	return *m.result, true
}

// SuccessAction is the follow-up chosen by the invoking wizard.
func (m *Machine) SuccessAction() SuccessAction {
	return m.opts.SuccessAction
}

func (m *Machine) Reference() string {
	return m.opts.Reference
}
