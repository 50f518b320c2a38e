// Package allocation validates percentage splits: scheme allocations
// across asset buckets and nominee shares.
package allocation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"pensionflow/internal/domain"
	apperrors "pensionflow/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Sum adds the shares.
func Sum(shares []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, s := range shares {
		total = total.Add(s)
	}
	return total
}

// Validate accepts a set of shares iff every share lies in [0, 100] and
// they sum to exactly 100.
func Validate(shares []decimal.Decimal) error {
	for i, s := range shares {
		if s.IsNegative() || s.GreaterThan(hundred) {
			return fmt.Errorf("share %d out of range: %s", i+1, s)
		}
	}
	if total := Sum(shares); !total.Equal(hundred) {
		return fmt.Errorf("allocation must total 100%%, got %s%%", total)
	}
	return nil
}

// ValidateTier checks one tier's allocation. AUTO mode is checked against
// the preset, so a tampered AUTO allocation still fails.
func ValidateTier(label string, ts domain.TierScheme) error {
	if ts.Mode == domain.ModeAuto && !ts.Allocation.Equal(domain.AutoPreset()) {
		return apperrors.Invalid("allocation", fmt.Sprintf("%s allocation must match the auto preset", label))
	}
	if err := Validate(ts.Allocation.Values()); err != nil {
		return apperrors.Invalid("allocation", fmt.Sprintf("%s allocation must be exactly 100%%", label))
	}
	return nil
}

// NomineesRequired reports whether nominee details must be validated:
// always on the mandatory tier, otherwise only once any nominee field has
// been touched.
func NomineesRequired(tier domain.Tier, nominees []domain.Nominee) bool {
	if tier == domain.TierBase {
		return true
	}
	for _, n := range nominees {
		if n.Touched() {
			return true
		}
	}
	return false
}

// ValidateNominees checks nominee completeness and that shares total 100.
func ValidateNominees(tier domain.Tier, nominees []domain.Nominee) error {
	if !NomineesRequired(tier, nominees) {
		return nil
	}
	shares := make([]decimal.Decimal, 0, len(nominees))
	for _, n := range nominees {
		if !n.HasName() || n.Relation == "" || n.DOB == "" || !n.Share.IsPositive() {
			return apperrors.Invalid("nominees", "Please fill all nominee details correctly")
		}
		shares = append(shares, n.Share)
	}
	if err := Validate(shares); err != nil {
		return apperrors.Invalid("nominees",
			fmt.Sprintf("Total allocation must be 100%%. Current: %s%%", Sum(shares)))
	}
	return nil
}
