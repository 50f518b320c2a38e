package verification

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"pensionflow/internal/workflow"
)

// RegistryReport is the combined identity and mobile registry outcome.
type RegistryReport struct {
	Identity RegistryResult `json:"identity"`
	Mobile   RegistryResult `json:"mobile"`
	Elapsed  time.Duration  `json:"elapsed"`
}

// Matched reports whether both registries matched.
func (r RegistryReport) Matched() bool {
	return r.Identity.Matched && r.Mobile.Matched
}

// CheckRegistries runs the identity and mobile checks in parallel and
// returns no sooner than floor after it was called, even when both checks
// resolve faster. The first failure cancels the other check.
func CheckRegistries(ctx context.Context, gw Gateway, pan, mobile string, floor time.Duration) (RegistryReport, error) {
	start := time.Now()
	var report RegistryReport

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := gw.CheckIdentityRegistry(gctx, pan)
		if err != nil {
			return err
		}
		report.Identity = res
		return nil
	})
	g.Go(func() error {
		res, err := gw.CheckMobileRegistry(gctx, mobile)
		if err != nil {
			return err
		}
		report.Mobile = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return RegistryReport{}, err
	}

	if err := workflow.WaitFloor(ctx, start, floor); err != nil {
		return RegistryReport{}, err
	}
	report.Elapsed = time.Since(start)
	return report, nil
}
