package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "pensionflow/pkg/errors"
)

// GatewayView is the serialisable form of GatewayState.
type GatewayView struct {
	Kind Mode           `json:"kind"`
	Step NetBankingStep `json:"step,omitempty"`
	Bank string         `json:"bank,omitempty"`
}

// View is a point-in-time snapshot of the machine.
type View struct {
	Reference     string        `json:"reference"`
	Stage         Stage         `json:"stage"`
	Mode          Mode          `json:"mode,omitempty"`
	Gateway       *GatewayView  `json:"gateway,omitempty"`
	Processing    bool          `json:"processing"`
	Amounts       Amounts       `json:"amounts"`
	Result        *Result       `json:"result,omitempty"`
	SuccessAction SuccessAction `json:"success_action"`
	SuccessLabel  string        `json:"success_label"`
}

func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		Reference:     m.opts.Reference,
		Stage:         m.stage,
		Mode:          m.mode,
		Processing:    m.processing,
		Amounts:       m.cfg.Payable(m.opts.BaseAmount),
		SuccessAction: m.opts.SuccessAction,
		SuccessLabel:  m.opts.SuccessAction.Label(),
	}
	switch g := m.gateway.(type) {
	case UPIForm:
		v.Gateway = &GatewayView{Kind: ModeUPI}
	case NetBanking:
		v.Gateway = &GatewayView{Kind: ModeNetBanking, Step: g.Step, Bank: g.Bank}
	}
	if m.result != nil {
		r := *m.result
		v.Result = &r
	}
	return v
}

// Receipt renders the downloadable acknowledgement. It is only available
// once the payment has a result.
func (m *Machine) Receipt() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stage != StageResult || m.result == nil {
		return "", fmt.Errorf("%w: no payment result yet", apperrors.ErrInvalidTransition)
	}
	return renderReceipt(m.opts.Reference, m.mode, *m.result, m.cfg.Payable(m.opts.BaseAmount).Total, m.now()), nil
}

// ReceiptFilename is the suggested download name.
func (m *Machine) ReceiptFilename() string {
	ref := m.opts.Reference
	if ref == "" {
		ref = "payment"
	}
	return fmt.Sprintf("BSE-NPS-Receipt-%s.txt", ref)
}

func renderReceipt(ref string, mode Mode, r Result, total decimal.Decimal, at time.Time) string {
	status := "Failed"
	if r.Outcome == OutcomeSuccess {
		status = "Success"
	}
	lines := []string{
		"Application ID: " + ref,
		"PRAN: " + orNA(r.Identifier),
		"Payment Mode: " + mode.Label(),
		"Transaction ID: " + orNA(r.TransactionID),
		"Bank Ref No: " + orNA(r.BankReference),
		"Amount: " + FormatINR(total),
		"Status: " + status,
		"Date & Time: " + at.Format("02/01/2006, 15:04:05"),
	}
	return strings.Join(lines, "\n")
}

func orNA(s string) string {
	if s == "" {
		return "NA"
	}
	return s
}

// FormatINR renders an amount with the rupee sign and Indian digit
// grouping, e.g. ₹ 1,00,506.96.
func FormatINR(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-2:]

	var grouped string
	if len(intPart) <= 3 {
		grouped = intPart
	} else {
		head, tail := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
		var parts []string
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		if head != "" {
			parts = append([]string{head}, parts...)
		}
		grouped = strings.Join(parts, ",") + "," + tail
	}

	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return fmt.Sprintf("₹ %s%s.%s", sign, grouped, frac)
}
