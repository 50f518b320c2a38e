package allocation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"pensionflow/internal/domain"
	apperrors "pensionflow/pkg/errors"
)

func d(vals ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewFromInt(v)
	}
	return out
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(d(50, 25, 25, 0)))
	assert.NoError(t, Validate(d(100, 0, 0, 0)))
	assert.Error(t, Validate(d(50, 25, 25, 1)))
	assert.Error(t, Validate(d(0, 0, 0, 0)))
	// sums to 100 but with an out-of-range share
	assert.Error(t, Validate(d(150, -50, 0, 0)))
	assert.Error(t, Validate(d(-10, 10, 0, 0)))
}

func TestValidate_Fractions(t *testing.T) {
	shares := []decimal.Decimal{
		decimal.RequireFromString("33.33"),
		decimal.RequireFromString("33.33"),
		decimal.RequireFromString("33.34"),
	}
	assert.NoError(t, Validate(shares))
}

func TestValidate_Idempotent(t *testing.T) {
	shares := d(40, 30, 20, 10)
	for i := 0; i < 3; i++ {
		assert.NoError(t, Validate(shares))
	}
}

func TestValidateTier(t *testing.T) {
	auto := domain.TierScheme{Mode: domain.ModeAuto, Allocation: domain.AutoPreset()}
	assert.NoError(t, ValidateTier("Tier I", auto))

	tampered := auto
	tampered.Allocation.Equity = decimal.NewFromInt(40)
	tampered.Allocation.Alternative = decimal.NewFromInt(10)
	assert.True(t, apperrors.IsValidation(ValidateTier("Tier I", tampered)))

	active := domain.TierScheme{Mode: domain.ModeActive, Allocation: domain.Allocation{
		Equity: decimal.NewFromInt(70), CorporateDebt: decimal.NewFromInt(10),
		GovtSecurities: decimal.NewFromInt(15), Alternative: decimal.NewFromInt(4),
	}}
	err := ValidateTier("Tier II", active)
	ve, ok := apperrors.AsValidation(err)
	assert.True(t, ok)
	assert.Equal(t, "Tier II allocation must be exactly 100%", ve.Message)
}

func nominee(name string, share int64) domain.Nominee {
	return domain.Nominee{FirstName: name, Relation: "Spouse", DOB: "1990-01-01", Share: decimal.NewFromInt(share)}
}

func TestValidateNominees(t *testing.T) {
	ok := []domain.Nominee{nominee("A", 60), nominee("B", 40)}
	assert.NoError(t, ValidateNominees(domain.TierBase, ok))

	short := []domain.Nominee{nominee("A", 60), nominee("B", 30)}
	err := ValidateNominees(domain.TierBase, short)
	ve, isVE := apperrors.AsValidation(err)
	assert.True(t, isVE)
	assert.Equal(t, "Total allocation must be 100%. Current: 90%", ve.Message)

	incomplete := []domain.Nominee{{FirstName: "A", Share: decimal.NewFromInt(100)}}
	assert.Error(t, ValidateNominees(domain.TierBase, incomplete))
}

func TestValidateNominees_OptionalTier(t *testing.T) {
	untouched := []domain.Nominee{{Title: "Mr"}}
	assert.NoError(t, ValidateNominees(domain.TierBasePlusVoluntary, untouched))

	touched := []domain.Nominee{{FirstName: "A"}}
	assert.Error(t, ValidateNominees(domain.TierBasePlusVoluntary, touched))
}
