package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"pensionflow/pkg/config"
)

// Stage is a top-level state of the payment workflow.
type Stage string

const (
	StageSummary    Stage = "SUMMARY"
	StageModeSelect Stage = "MODE_SELECT"
	StageConfirm    Stage = "CONFIRM"
	StageGateway    Stage = "GATEWAY"
	StageResult     Stage = "RESULT"
)

// transitions is the legal-transition table. Every stage move is checked
// against it.
var transitions = map[Stage][]Stage{
	StageSummary:    {StageModeSelect},
	StageModeSelect: {StageConfirm, StageSummary},
	StageConfirm:    {StageGateway, StageModeSelect},
	StageGateway:    {StageResult, StageModeSelect},
	StageResult:     {StageSummary},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Stage) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Mode string

const (
	ModeNone       Mode = ""
	ModeUPI        Mode = "UPI"
	ModeNetBanking Mode = "NET_BANKING"
)

// Label is the mode as printed on receipts.
func (m Mode) Label() string {
	if m == ModeUPI {
		return "UPI"
	}
	return "Net Banking"
}

// NetBankingStep is a sub-state of the net-banking gateway.
type NetBankingStep string

const (
	StepLanding  NetBankingStep = "LANDING"
	StepRedirect NetBankingStep = "REDIRECT"
	StepLogin    NetBankingStep = "LOGIN"
	StepReview   NetBankingStep = "REVIEW"
	StepOTP      NetBankingStep = "OTP"
)

// GatewayState is the sub-state held while in GATEWAY. It is one of
// UPIForm or NetBanking.
type GatewayState interface {
	gatewayState()
}

// UPIForm is the QR / VPA entry form.
type UPIForm struct{}

// NetBanking is the simulated bank site.
type NetBanking struct {
	Step NetBankingStep
	Bank string
}

func (UPIForm) gatewayState()    {}
func (NetBanking) gatewayState() {}

type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// Issuance is the identifier-issuance sub-state of a successful RESULT.
type Issuance string

const (
	IssuanceNone    Issuance = "NONE"
	IssuancePending Issuance = "PENDING"
	IssuanceIssued  Issuance = "ISSUED"
)

// SuccessAction is the follow-up offered on a successful RESULT.
type SuccessAction string

const (
	ActionReturnToDashboard   SuccessAction = "RETURN_TO_DASHBOARD"
	ActionAnotherContribution SuccessAction = "ANOTHER_CONTRIBUTION"
)

// Label is the button caption for the action.
func (a SuccessAction) Label() string {
	if a == ActionAnotherContribution {
		return "Make Another Contribution"
	}
	return "Create New Application"
}

// Sentinel gateway inputs with deterministic outcomes.
const (
	UPISuccessHandle  = "success@upi"
	UPIFailureHandle  = "fail@upi"
	NetBankingFailOTP = "12345"

	UPIDemoNotice = "Demo tip: use success@upi or fail@upi to force outcome."
)

// Result is the terminal record of a payment attempt.
type Result struct {
	Outcome       Outcome   `json:"outcome"`
	TransactionID string    `json:"transaction_id"`
	BankReference string    `json:"bank_reference"`
	Issuance      Issuance  `json:"issuance"`
	Identifier    string    `json:"identifier,omitempty"`
	Notice        string    `json:"notice,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Amounts is the payable breakdown shown on the summary.
type Amounts struct {
	Base           decimal.Decimal `json:"base"`
	ConvenienceFee decimal.Decimal `json:"convenience_fee"`
	TaxSurcharge   decimal.Decimal `json:"tax_surcharge"`
	Total          decimal.Decimal `json:"total"`
}

// Config holds fees and simulated delays.
type Config struct {
	ConvenienceFee     decimal.Decimal
	TaxSurcharge       decimal.Decimal
	RedirectDelay      time.Duration
	UPIVerifyDelay     time.Duration
	BankLoginDelay     time.Duration
	NetBankingOTPDelay time.Duration
	IssuanceDelay      time.Duration
	StatusAutoResolve  time.Duration
	StatusRefreshDelay time.Duration
}

// NewConfig picks the payment settings out of the service configuration.
func NewConfig(w config.WorkflowConfig, p config.PaymentConfig) Config {
	return Config{
		ConvenienceFee:     p.ConvenienceFee,
		TaxSurcharge:       p.TaxSurcharge,
		RedirectDelay:      w.RedirectDelay,
		UPIVerifyDelay:     w.UPIVerifyDelay,
		BankLoginDelay:     w.BankLoginDelay,
		NetBankingOTPDelay: w.NetBankingOTPDelay,
		IssuanceDelay:      w.IssuanceDelay,
		StatusAutoResolve:  w.StatusAutoResolve,
		StatusRefreshDelay: w.StatusRefreshDelay,
	}
}

// Payable computes base + convenience fee + tax surcharge.
func (c Config) Payable(base decimal.Decimal) Amounts {
	return Amounts{
		Base:           base,
		ConvenienceFee: c.ConvenienceFee,
		TaxSurcharge:   c.TaxSurcharge,
		Total:          base.Add(c.ConvenienceFee).Add(c.TaxSurcharge),
	}
}
