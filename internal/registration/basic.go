package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pensionflow/internal/domain"
	"pensionflow/internal/routing"
	"pensionflow/internal/verification"
	"pensionflow/internal/workflow"
	apperrors "pensionflow/pkg/errors"
)

// Sentinel KYC OTPs with deterministic failures.
const (
	KYCAFailOTP = "000000"
	KYCBFailOTP = "123456"
)

// Notices shown by the KYC gate.
const (
	NoticeKYCAFallback   = "CKYC verification failed. Continue with DigiLocker."
	NoticeKYCANotFound   = "CKYC records not found. Continue with DigiLocker."
	NoticeKYCBFailed     = "DigiLocker OTP failed. Please retry from Basic Details."
	NoticeKYCBNotFound   = "DigiLocker verification failed. Please retry from Basic Details."
	NoticeMobileOK       = "Mobile verified successfully"
	NoticeGatewayFailed  = "Something went wrong while verifying your details. Please retry."
	NoticeGatewayTimeout = "Verification service timed out. Please retry."
)

const msgMobileChanged = "Mobile number changed after the OTP was sent. Please verify again"

func sourceFor(r routing.Route) domain.KYCSource {
	if r == routing.RouteExternalKYCB {
		return domain.KYCSourceB
	}
	return domain.KYCSourceA
}

func (w *Wizard) formLocked() error {
	if err := w.stageLocked(StageBasic); err != nil {
		return err
	}
	if _, ok := w.basic.(Form); !ok {
		return fmt.Errorf("%w: not on the details form", apperrors.ErrInvalidTransition)
	}
	return nil
}

// SendMobileOTP opens the inline mobile OTP dialog.
func (w *Wizard) SendMobileOTP(ctx context.Context) (verification.Dispatch, error) {
	w.mu.Lock()
	if err := w.formLocked(); err != nil {
		w.unlock()
		return verification.Dispatch{}, err
	}
	mobile := w.record.Get(domain.FieldMobile)
	w.unlock()

	if !w.validator.Var(mobile, "mobile") {
		return verification.Dispatch{}, apperrors.Invalid(string(domain.FieldMobile), "Mobile number must be 10 digits")
	}
	return w.mobileGate.Open(ctx, mobile)
}

func (w *Wizard) ResendMobileOTP(ctx context.Context) (verification.Dispatch, error) {
	w.mu.Lock()
	if err := w.formLocked(); err != nil {
		w.unlock()
		return verification.Dispatch{}, err
	}
	w.unlock()
	return w.mobileGate.Resend(ctx)
}

// VerifyMobileOTP checks the inline mobile OTP. On success the mobile
// number becomes read-only.
func (w *Wizard) VerifyMobileOTP(ctx context.Context, code string) error {
	w.mu.Lock()
	if err := w.formLocked(); err != nil {
		w.unlock()
		return err
	}
	w.unlock()

	if err := w.mobileGate.Verify(ctx, code); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.unlock()
	if strings.TrimSpace(w.record.Get(domain.FieldMobile)) != w.mobileGate.Mobile() {
		w.mobileGate.Reset()
		return apperrors.Invalid(string(domain.FieldMobile), msgMobileChanged)
	}
	w.record.MarkMobileVerified()
	w.noticeLocked(NoticeMobileOK)
	return nil
}

func (w *Wizard) DismissMobileOTP() {
	w.mobileGate.Dismiss()
}

// startLocked validates BASIC and acts on the routing decision.
func (w *Wizard) startLocked() error {
	if _, ok := w.basic.(Form); !ok {
		return fmt.Errorf("%w: verification already started", apperrors.ErrInvalidTransition)
	}
	v := w.record.Snapshot()
	if v.KYCVerified {
		w.moveLocked(StagePersonal)
		return nil
	}
	if err := w.guardBasic(v); err != nil {
		w.notice = errorNotice(err)
		return err
	}

	route := routing.Decide(v.PAN, v.Mobile)
	w.logger.Info("registration route decided", map[string]interface{}{
		"route": route,
	})

	switch route {
	case routing.RouteExistingAccount:
		if err := w.dialogs.Open(workflow.DialogExistingChoice); err != nil {
			return err
		}
		w.basic = ExistingCheck{}
		w.spawnExistingCheckLocked(v.PAN, v.Mobile)
	case routing.RouteExternalKYCA, routing.RouteExternalKYCB:
		w.basic = Loader{Source: sourceFor(route)}
		w.spawnLoaderLocked(sourceFor(route), v.PAN, v.Mobile)
	default:
		w.handoffLocked(routing.DefaultNotice)
	}
	return nil
}

func (w *Wizard) spawnExistingCheckLocked(pan, mobile string) {
	token := w.epoch.Current()
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		_, err := verification.CheckRegistries(w.ctx, w.opts.Gateway, pan, mobile, w.cfg.ExistingCheckFloor)
		w.finishExistingCheck(token, err)
	}()
}

func (w *Wizard) finishExistingCheck(token uint64, err error) {
	w.mu.Lock()
	defer w.unlock()
	if !w.epoch.Valid(token) {
		return
	}
	if err != nil {
		w.dialogs.Close(workflow.DialogExistingChoice)
		w.failLoaderLocked(domain.KYCSourceNone, err)
		return
	}
	w.basic = ExistingChoice{}
	w.emitLocked(workflow.EventLoaderDone, map[string]interface{}{"check": "existing_account"})
}

func (w *Wizard) spawnLoaderLocked(source domain.KYCSource, pan, mobile string) {
	token := w.epoch.Current()
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		report, err := verification.CheckRegistries(w.ctx, w.opts.Gateway, pan, mobile, w.cfg.LoaderFloor)
		w.finishLoader(token, source, report, err)
	}()
}

func (w *Wizard) finishLoader(token uint64, source domain.KYCSource, report verification.RegistryReport, err error) {
	w.mu.Lock()
	defer w.unlock()
	if !w.epoch.Valid(token) {
		return
	}
	if err != nil {
		w.failLoaderLocked(source, err)
		return
	}

	if !report.Matched() {
		w.logger.Warn("registry check not matched", map[string]interface{}{
			"source":   source,
			"identity": report.Identity.Matched,
			"mobile":   report.Mobile.Matched,
		})
		if source == domain.KYCSourceB {
			w.basic = Form{}
			w.noticeLocked(NoticeKYCBNotFound)
			return
		}
		source = domain.KYCSourceB
		w.basic = KYCOTP{Source: source, FallbackNotice: NoticeKYCANotFound}
		w.noticeLocked(NoticeKYCANotFound)
	} else {
		w.basic = KYCOTP{Source: source}
	}

	if err := w.dialogs.Open(workflow.DialogKYCOTP); err != nil {
		w.failLoaderLocked(source, err)
		return
	}
	w.emitLocked(workflow.EventLoaderDone, map[string]interface{}{
		"source":     source,
		"elapsed_ms": report.Elapsed.Milliseconds(),
	})
}

func (w *Wizard) failLoaderLocked(source domain.KYCSource, err error) {
	msg := NoticeGatewayFailed
	if errors.Is(err, apperrors.ErrTimeoutExceeded) {
		msg = NoticeGatewayTimeout
		w.logger.Error("verification gateway timed out", map[string]interface{}{
			"source": source,
			"error":  err.Error(),
		})
	} else {
		w.logger.Warn("registry check failed", map[string]interface{}{
			"source": source,
			"error":  err.Error(),
		})
	}
	w.basic = LoaderError{Source: source, Message: msg}
	w.notice = msg
	w.emitLocked(workflow.EventLoaderFailed, map[string]interface{}{
		"source":  source,
		"message": msg,
	})
}

// RetryLoader re-runs the check that failed.
func (w *Wizard) RetryLoader() error {
	w.mu.Lock()
	defer w.unlock()
	if err := w.stageLocked(StageBasic); err != nil {
		return err
	}
	le, ok := w.basic.(LoaderError)
	if !ok {
		return fmt.Errorf("%w: nothing to retry", apperrors.ErrInvalidTransition)
	}
	v := w.record.Snapshot()
	if le.Source == domain.KYCSourceNone {
		if err := w.dialogs.Open(workflow.DialogExistingChoice); err != nil {
			return err
		}
		w.basic = ExistingCheck{}
		w.spawnExistingCheckLocked(v.PAN, v.Mobile)
		return nil
	}
	w.basic = Loader{Source: le.Source}
	w.spawnLoaderLocked(le.Source, v.PAN, v.Mobile)
	return nil
}

// ChooseExisting answers the existing-account dialog. Creating a new
// account re-routes by the mobile number; contributing hands off to the
// contribution flow.
func (w *Wizard) ChooseExisting(createNew bool) error {
	w.mu.Lock()
	defer w.unlock()
	if err := w.stageLocked(StageBasic); err != nil {
		return err
	}
	if _, ok := w.basic.(ExistingChoice); !ok {
		return fmt.Errorf("%w: no existing-account choice pending", apperrors.ErrInvalidTransition)
	}
	w.dialogs.Close(workflow.DialogExistingChoice)

	if !createNew {
		w.handoffLocked(routing.ExistingNotice)
		return nil
	}
	mobile := w.record.Get(domain.FieldMobile)
	d := routing.RouteForExistingCreate(mobile)
	if !d.ViaPrimaryOTP {
		w.handoffLocked(d.Notice)
		return nil
	}

	source := sourceFor(d.Route)
	w.basic = PrimaryOTP{Source: source}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if _, err := w.opts.Gateway.SendOTP(w.ctx, mobile); err != nil {
			w.logger.Warn("primary otp dispatch failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	return nil
}

// VerifyPrimaryOTP checks the full-screen OTP and starts the loader.
func (w *Wizard) VerifyPrimaryOTP(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)

	w.mu.Lock()
	if err := w.stageLocked(StageBasic); err != nil {
		w.unlock()
		return err
	}
	st, ok := w.basic.(PrimaryOTP)
	if !ok {
		w.unlock()
		return fmt.Errorf("%w: not on the OTP screen", apperrors.ErrInvalidTransition)
	}
	if !w.validator.Var(code, "otp6") {
		w.unlock()
		return apperrors.Invalid("otp", "Please enter the 6-digit OTP")
	}
	v := w.record.Snapshot()
	token := w.epoch.Current()
	w.busy = true
	w.unlock()

	verified, err := w.opts.Gateway.VerifyOTP(ctx, v.Mobile, code)

	w.mu.Lock()
	defer w.unlock()
	if !w.epoch.Valid(token) {
		return apperrors.ErrStaleResult
	}
	w.busy = false
	if err != nil {
		return err
	}
	if !verified {
		return apperrors.Invalid("otp", "Invalid OTP. Please try again")
	}
	w.basic = Loader{Source: st.Source}
	w.spawnLoaderLocked(st.Source, v.PAN, v.Mobile)
	return nil
}

// SubmitKYCOTP completes the KYC gate. The source-A sentinel falls back
// to source B without re-running the loader; the source-B sentinel sends
// the user back to the form. Any other six-digit code verifies.
func (w *Wizard) SubmitKYCOTP(code string) error {
	code = strings.TrimSpace(code)

	w.mu.Lock()
	defer w.unlock()
	if err := w.stageLocked(StageBasic); err != nil {
		return err
	}
	st, ok := w.basic.(KYCOTP)
	if !ok {
		return fmt.Errorf("%w: not on the KYC OTP screen", apperrors.ErrInvalidTransition)
	}
	if !w.validator.Var(code, "otp6") {
		return apperrors.Invalid("otp", "Please enter the 6-digit OTP")
	}

	switch {
	case st.Source == domain.KYCSourceA && code == KYCAFailOTP:
		w.logger.Warn("kyc source failed, falling back", map[string]interface{}{
			"from": domain.KYCSourceA,
			"to":   domain.KYCSourceB,
		})
		w.basic = KYCOTP{Source: domain.KYCSourceB, FallbackNotice: NoticeKYCAFallback}
		w.noticeLocked(NoticeKYCAFallback)
		return nil
	case st.Source == domain.KYCSourceB && code == KYCBFailOTP:
		w.logger.Warn("kyc source failed", map[string]interface{}{"source": domain.KYCSourceB})
		w.dialogs.Close(workflow.DialogKYCOTP)
		w.basic = Form{}
		w.noticeLocked(NoticeKYCBFailed)
		return nil
	}

	if err := w.record.ApplyKYC(st.Source, identityFromName(w.record.Get(domain.FieldFullName))); err != nil {
		return err
	}
	w.dialogs.Close(workflow.DialogKYCOTP)
	w.basic = Form{}
	w.logger.Info("kyc verified", map[string]interface{}{"source": st.Source})
	w.moveLocked(StagePersonal)
	w.noticeLocked("KYC verified via " + st.Source.DisplayName())
	return nil
}

// cancelBasicLocked leaves any verification sub-state for the form. A
// check still in flight completes but its result is discarded.
func (w *Wizard) cancelBasicLocked() error {
	switch w.basic.(type) {
	case Form:
		return fmt.Errorf("%w: already at the first stage", apperrors.ErrInvalidTransition)
	case ExistingCheck, ExistingChoice:
		w.dialogs.Close(workflow.DialogExistingChoice)
	case KYCOTP:
		w.dialogs.Close(workflow.DialogKYCOTP)
	}
	w.epoch.Advance()
	w.busy = false
	w.basic = Form{}
	return nil
}

func (w *Wizard) handoffLocked(notice string) {
	w.handedOff = true
	w.epoch.Advance()
	w.notice = notice
	w.logger.Info("registration handed off to contribution", map[string]interface{}{"notice": notice})
	if fn := w.opts.OnHandoff; fn != nil {
		w.after = append(w.after, func() { fn(notice) })
	}
}

// identityFromName builds the verified identity returned by the simulated
// KYC sources. The name on the PAN is split into first, middle and last.
func identityFromName(fullName string) domain.Identity {
	parts := strings.Fields(fullName)
	id := domain.Identity{
		FirstName:      "RAJESH",
		ResidentStatus: "Resident Indian",
		BirthCountry:   "India",
		BirthCity:      "Mumbai",
		Nationality:    "Indian",
	}
	if len(parts) > 0 {
		id.FirstName = parts[0]
	}
	switch {
	case len(parts) == 2:
		id.LastName = parts[1]
	case len(parts) > 2:
		id.MiddleName = parts[1]
		id.LastName = strings.Join(parts[2:], " ")
	}
	addr := domain.Address{
		Line1:   "123, Gandhi Nagar",
		Line2:   "Near Central Park",
		Line3:   "Worli",
		City:    "Mumbai",
		State:   "Maharashtra",
		Pincode: "400001",
		Country: "India",
	}
	id.Permanent = addr
	id.Resident = addr
	return id
}
