package verification

import (
	"context"
	"errors"
	"time"

	apperrors "pensionflow/pkg/errors"
)

// timeoutGateway bounds every call of the wrapped gateway.
type timeoutGateway struct {
	next    Gateway
	ceiling time.Duration
}

// WithTimeout wraps g so that any call running past ceiling fails with
// ErrTimeoutExceeded. A non-positive ceiling returns g unchanged.
func WithTimeout(g Gateway, ceiling time.Duration) Gateway {
	if ceiling <= 0 {
		return g
	}
	return &timeoutGateway{next: g, ceiling: ceiling}
}

func (t *timeoutGateway) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, t.ceiling)
}

func mapTimeout(parent context.Context, err error) error {
	if err == nil {
		return nil
	}
	// only our own deadline is a gateway timeout; a cancelled caller is not
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return apperrors.ErrTimeoutExceeded
	}
	return err
}

func (t *timeoutGateway) SendOTP(ctx context.Context, mobile string) (Dispatch, error) {
	c, cancel := t.bound(ctx)
	defer cancel()
	d, err := t.next.SendOTP(c, mobile)
	return d, mapTimeout(ctx, err)
}

func (t *timeoutGateway) VerifyOTP(ctx context.Context, mobile, code string) (bool, error) {
	c, cancel := t.bound(ctx)
	defer cancel()
	ok, err := t.next.VerifyOTP(c, mobile, code)
	return ok, mapTimeout(ctx, err)
}

func (t *timeoutGateway) CheckIdentityRegistry(ctx context.Context, pan string) (RegistryResult, error) {
	c, cancel := t.bound(ctx)
	defer cancel()
	r, err := t.next.CheckIdentityRegistry(c, pan)
	return r, mapTimeout(ctx, err)
}

func (t *timeoutGateway) CheckMobileRegistry(ctx context.Context, mobile string) (RegistryResult, error) {
	c, cancel := t.bound(ctx)
	defer cancel()
	r, err := t.next.CheckMobileRegistry(c, mobile)
	return r, mapTimeout(ctx, err)
}
