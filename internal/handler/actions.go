package handler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"pensionflow/internal/domain"
	"pensionflow/internal/payment"
	"pensionflow/internal/registration"
	"pensionflow/internal/session"
	apperrors "pensionflow/pkg/errors"
)

// ActionRequest is the command envelope posted to a session.
type ActionRequest struct {
	Action string     `json:"action" validate:"required"`
	Args   ActionArgs `json:"args"`
}

// ActionArgs is the union of every action's arguments. Each action reads
// only the keys it needs.
type ActionArgs struct {
	Field     string `json:"field,omitempty"`
	Value     string `json:"value,omitempty"`
	Mirror    string `json:"mirror,omitempty"`
	On        bool   `json:"on,omitempty"`
	Index     int    `json:"index,omitempty"`
	Code      string `json:"code,omitempty"`
	CreateNew bool   `json:"create_new,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Handle    string `json:"handle,omitempty"`
	Bank      string `json:"bank,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Password  string `json:"password,omitempty"`
}

// actionFunc runs one command against a session. The returned value, if
// any, is sent back next to the session snapshot.
type actionFunc func(ctx context.Context, s *session.Session, a ActionArgs) (interface{}, error)

var actions = map[string]actionFunc{
	"session.return_to_dashboard": func(_ context.Context, s *session.Session, _ ActionArgs) (interface{}, error) {
		s.ReturnToDashboard()
		return nil, nil
	},
	"session.another_contribution": func(_ context.Context, s *session.Session, _ ActionArgs) (interface{}, error) {
		_, err := s.AnotherContribution()
		return nil, err
	},

	"registration.set": onRegistration(func(_ context.Context, w *registration.Wizard, a ActionArgs) (interface{}, error) {
		return nil, w.Set(domain.Field(a.Field), a.Value)
	}),
	"registration.set_mirror": onRegistration(func(_ context.Context, w *registration.Wizard, a ActionArgs) (interface{}, error) {
		kind := domain.MirrorKind(a.Mirror)
		if !kind.Valid() {
			return nil, apperrors.Wrap(apperrors.ErrUnknownField, a.Mirror)
		}
		return nil, w.SetMirror(kind, a.On)
	}),
	"registration.set_bank": onRegistration(func(_ context.Context, w *registration.Wizard, a ActionArgs) (interface{}, error) {
		return nil, w.SetBank(a.Index, domain.BankField(a.Field), a.Value)
	}),
	"registration.add_bank": onRegistration(func(_ context.Context, w *registration.Wizard, _ ActionArgs) (interface{}, error) {
		i, err := w.AddBank()
		return map[string]int{"index": i}, err
	}),
	"registration.remove_bank": onRegistration(func(_ context.Context, w *registration.Wizard, a ActionArgs) (interface{}, error) {
		return nil, w.RemoveBank(a.Index)
	}),
	"registration.set_nominee": onRegistration(func(_ context.Context, w *registration.Wizard, a ActionArgs) (interface{}, error) {
		return nil, w.SetNominee(a.Index, domain.NomineeField(a.Field), a.Value)
	}),
	"registration.add_nominee": onRegistration(func(_ context.Context, w *registration.Wizard, _ ActionArgs) (interface{}, error) {
		i, err := w.AddNominee()
		return map[string]int{"index": i}, err
	}),
	"registration.remove_nominee": onRegistration(func(_ context.Context, w *registration.Wizard, a ActionArgs) (interface{}, error) {
		return nil, w.RemoveNominee(a.Index)
	}),
	"registration.send_mobile_otp": onRegistration(func(ctx context.Context, w *registration.Wizard, _ ActionArgs) (interface{}, error) {
		d, err := w.SendMobileOTP(ctx)
		return d, err
	}),
	"registration.resend_mobile_otp": onRegistration(func(ctx context.Context, w *registration.Wizard, _ ActionArgs) (interface{}, error) {
		d, err := w.ResendMobileOTP(ctx)
		return d, err
	}),
	"registration.verify_mobile_otp": onRegistration(func(ctx context.Context, w *registration.Wizard, a ActionArgs) (interface{}, error) {
		return nil, w.VerifyMobileOTP(ctx, a.Code)
	}),
	"registration.dismiss_mobile_otp": onRegistration(func(_ context.Context, w *registration.Wizard, _ ActionArgs) (interface{}, error) {
		w.DismissMobileOTP()
		return nil, nil
	}),
	"registration.choose_existing": onRegistration(func(_ context.Context, w *registration.Wizard, a ActionArgs) (interface{}, error) {
		return nil, w.ChooseExisting(a.CreateNew)
	}),
	"registration.verify_primary_otp": onRegistration(func(ctx context.Context, w *registration.Wizard, a ActionArgs) (interface{}, error) {
		return nil, w.VerifyPrimaryOTP(ctx, a.Code)
	}),
	"registration.retry_loader": onRegistration(func(_ context.Context, w *registration.Wizard, _ ActionArgs) (interface{}, error) {
		return nil, w.RetryLoader()
	}),
	"registration.submit_kyc_otp": onRegistration(func(_ context.Context, w *registration.Wizard, a ActionArgs) (interface{}, error) {
		return nil, w.SubmitKYCOTP(a.Code)
	}),
	"registration.advance": onRegistration(func(_ context.Context, w *registration.Wizard, _ ActionArgs) (interface{}, error) {
		return nil, w.Advance()
	}),
	"registration.back": onRegistration(func(_ context.Context, w *registration.Wizard, _ ActionArgs) (interface{}, error) {
		return nil, w.Back()
	}),
	"registration.goto": onRegistration(func(_ context.Context, w *registration.Wizard, a ActionArgs) (interface{}, error) {
		stage, ok := registration.ParseStage(a.Stage)
		if !ok {
			return nil, apperrors.Invalid("stage", fmt.Sprintf("Unknown stage %q", a.Stage))
		}
		return nil, w.GoTo(stage)
	}),

	"contribution.set": func(_ context.Context, s *session.Session, a ActionArgs) (interface{}, error) {
		w, err := s.Contribution()
		if err != nil {
			return nil, err
		}
		return nil, w.Set(domain.Field(a.Field), a.Value)
	},
	"contribution.send_mobile_otp": func(ctx context.Context, s *session.Session, _ ActionArgs) (interface{}, error) {
		w, err := s.Contribution()
		if err != nil {
			return nil, err
		}
		return w.SendMobileOTP(ctx)
	},
	"contribution.resend_mobile_otp": func(ctx context.Context, s *session.Session, _ ActionArgs) (interface{}, error) {
		w, err := s.Contribution()
		if err != nil {
			return nil, err
		}
		return w.ResendMobileOTP(ctx)
	},
	"contribution.verify_mobile_otp": func(ctx context.Context, s *session.Session, a ActionArgs) (interface{}, error) {
		w, err := s.Contribution()
		if err != nil {
			return nil, err
		}
		return nil, w.VerifyMobileOTP(ctx, a.Code)
	},
	"contribution.dismiss_mobile_otp": func(_ context.Context, s *session.Session, _ ActionArgs) (interface{}, error) {
		w, err := s.Contribution()
		if err != nil {
			return nil, err
		}
		w.DismissMobileOTP()
		return nil, nil
	},
	"contribution.advance": func(_ context.Context, s *session.Session, _ ActionArgs) (interface{}, error) {
		w, err := s.Contribution()
		if err != nil {
			return nil, err
		}
		return nil, w.Advance()
	},
	"contribution.acknowledge": func(_ context.Context, s *session.Session, _ ActionArgs) (interface{}, error) {
		w, err := s.Contribution()
		if err != nil {
			return nil, err
		}
		return nil, w.Acknowledge()
	},
	"contribution.back": func(_ context.Context, s *session.Session, _ ActionArgs) (interface{}, error) {
		w, err := s.Contribution()
		if err != nil {
			return nil, err
		}
		return nil, w.Back()
	},
	"contribution.refresh_status": func(_ context.Context, s *session.Session, _ ActionArgs) (interface{}, error) {
		w, err := s.Contribution()
		if err != nil {
			return nil, err
		}
		p := w.Poller()
		if p == nil {
			return nil, fmt.Errorf("%w: no payment link pending", apperrors.ErrInvalidTransition)
		}
		p.Refresh()
		return nil, nil
	},

	"payment.proceed": onPayment(func(_ context.Context, m *payment.Machine, _ ActionArgs) error {
		return m.Proceed()
	}),
	"payment.select_mode": onPayment(func(_ context.Context, m *payment.Machine, a ActionArgs) error {
		return m.SelectMode(payment.Mode(strings.ToUpper(strings.TrimSpace(a.Mode))))
	}),
	"payment.initiate": onPayment(func(_ context.Context, m *payment.Machine, _ ActionArgs) error {
		return m.Initiate()
	}),
	"payment.cancel_confirm": onPayment(func(_ context.Context, m *payment.Machine, _ ActionArgs) error {
		return m.CancelConfirm()
	}),
	"payment.confirm": onPayment(func(ctx context.Context, m *payment.Machine, _ ActionArgs) error {
		return m.Confirm(ctx)
	}),
	"payment.pay_upi": onPayment(func(ctx context.Context, m *payment.Machine, a ActionArgs) error {
		return m.PayUPI(ctx, a.Handle)
	}),
	"payment.select_bank": onPayment(func(_ context.Context, m *payment.Machine, a ActionArgs) error {
		return m.SelectBank(a.Bank)
	}),
	"payment.continue_redirect": onPayment(func(_ context.Context, m *payment.Machine, _ ActionArgs) error {
		return m.ContinueRedirect()
	}),
	"payment.login": onPayment(func(ctx context.Context, m *payment.Machine, a ActionArgs) error {
		return m.Login(ctx, a.UserID, a.Password)
	}),
	"payment.confirm_transaction": onPayment(func(_ context.Context, m *payment.Machine, _ ActionArgs) error {
		return m.ConfirmTransaction()
	}),
	"payment.submit_otp": onPayment(func(ctx context.Context, m *payment.Machine, a ActionArgs) error {
		return m.SubmitBankOTP(ctx, a.Code)
	}),
	"payment.back": onPayment(func(_ context.Context, m *payment.Machine, _ ActionArgs) error {
		return m.Back()
	}),
	"payment.retry": onPayment(func(_ context.Context, m *payment.Machine, _ ActionArgs) error {
		return m.Retry()
	}),
}

func onRegistration(fn func(context.Context, *registration.Wizard, ActionArgs) (interface{}, error)) actionFunc {
	return func(ctx context.Context, s *session.Session, a ActionArgs) (interface{}, error) {
		w, err := s.Registration()
		if err != nil {
			return nil, err
		}
		return fn(ctx, w, a)
	}
}

func onPayment(fn func(context.Context, *payment.Machine, ActionArgs) error) actionFunc {
	return func(ctx context.Context, s *session.Session, a ActionArgs) (interface{}, error) {
		m, err := s.Payment()
		if err != nil {
			return nil, err
		}
		return nil, fn(ctx, m, a)
	}
}

// ActionNames lists the supported actions in order.
func ActionNames() []string {
	names := make([]string, 0, len(actions))
	for n := range actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
