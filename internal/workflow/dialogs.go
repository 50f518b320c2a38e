package workflow

import (
	"sync"
	"sync/atomic"

	apperrors "pensionflow/pkg/errors"
)

// DialogKind names a modal overlay.
type DialogKind string

const (
	DialogNone              DialogKind = ""
	DialogMobileOTP         DialogKind = "mobile_otp"
	DialogKYCOTP            DialogKind = "kyc_otp"
	DialogExistingChoice    DialogKind = "existing_choice"
	DialogPaymentConfirm    DialogKind = "payment_confirm"
	DialogPaymentLinkNotice DialogKind = "payment_link_notice"
	DialogLoginOTP          DialogKind = "login_otp"
)

// Dialogs allows at most one overlay open at a time.
type Dialogs struct {
	mu   sync.Mutex
	open DialogKind
}

// Open opens k. Re-opening the dialog that is already open is a no-op;
// opening any other while one is open fails with ErrDialogOpen.
func (d *Dialogs) Open(k DialogKind) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open != DialogNone && d.open != k {
		return apperrors.Wrap(apperrors.ErrDialogOpen, string(d.open))
	}
	d.open = k
	return nil
}

// Close closes k if it is the open dialog.
func (d *Dialogs) Close(k DialogKind) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open != k {
		return false
	}
	d.open = DialogNone
	return true
}

func (d *Dialogs) Current() DialogKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *Dialogs) IsOpen(k DialogKind) bool {
	return d.Current() == k
}

// Reset closes whatever is open.
func (d *Dialogs) Reset() {
	d.mu.Lock()
	d.open = DialogNone
	d.mu.Unlock()
}

// Epoch tags async work with the screen it was started from. Advancing the
// epoch when the user leaves the screen invalidates in-flight results.
type Epoch struct {
	n atomic.Uint64
}

func (e *Epoch) Current() uint64 { return e.n.Load() }

// Advance invalidates every outstanding token and returns the new one.
func (e *Epoch) Advance() uint64 { return e.n.Add(1) }

// Valid reports whether token is still current.
func (e *Epoch) Valid(token uint64) bool { return e.n.Load() == token }
