package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pensionflow/pkg/errors"
)

func TestNewRecord_Defaults(t *testing.T) {
	v := NewRecord().Snapshot()

	assert.Equal(t, "Resident Indian", v.ResidentStatus)
	assert.Equal(t, "Indian", v.Nationality)
	assert.Equal(t, KYCSourceNone, v.KYCSource)
	assert.True(t, v.Tier1.Amount.Equal(decimal.NewFromInt(500)))
	assert.True(t, v.Contribution.Amount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, ModeAuto, v.Tier1.Mode)
	assert.True(t, v.Tier1.Allocation.Equal(AutoPreset()))
	require.Len(t, v.Banks, 1)
	assert.Equal(t, "Savings", v.Banks[0].AccountType)
	require.Len(t, v.Nominees, 1)
	assert.True(t, v.Nominees[0].Share.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "No", v.FATCA.IsUSPerson)
	assert.Equal(t, "India", v.FATCA.TaxResidency)
}

func TestSetGet(t *testing.T) {
	r := NewRecord()
	require.NoError(t, r.Set(FieldPAN, " abcde1234c "))
	assert.Equal(t, "ABCDE1234C", r.Get(FieldPAN))

	require.NoError(t, r.Set(FieldTier1Amount, "750.50"))
	assert.Equal(t, "750.5", r.Get(FieldTier1Amount))

	err := r.Set(FieldTier1Amount, "lots")
	assert.True(t, apperrors.IsValidation(err))

	err = r.Set(Field("nope"), "x")
	assert.ErrorIs(t, err, apperrors.ErrUnknownField)
	assert.Equal(t, "", r.Get(Field("nope")))
}

func TestSet_PincodeFillsAddress(t *testing.T) {
	r := NewRecord()
	require.NoError(t, r.Set(FieldPermPincode, "560001"))
	v := r.Snapshot()
	assert.Equal(t, "Bengaluru", v.PermanentAddress.City)
	assert.Equal(t, "Karnataka", v.PermanentAddress.State)

	// unknown pincode leaves the city alone
	require.NoError(t, r.Set(FieldPermPincode, "999999"))
	assert.Equal(t, "Bengaluru", r.Get(FieldPermCity))
}

func TestKYCFieldsFreezeAfterVerification(t *testing.T) {
	r := NewRecord()
	require.NoError(t, r.Set(FieldFirstName, "Before"))

	require.NoError(t, r.ApplyKYC(KYCSourceA, Identity{
		FirstName: "RAJESH", LastName: "KUMAR",
		ResidentStatus: "Resident Indian", Nationality: "Indian",
		Permanent: Address{Line1: "1 Main Rd", City: "Mumbai", State: "Maharashtra", Pincode: "400001", Country: "India"},
	}))

	v := r.Snapshot()
	assert.True(t, v.KYCVerified)
	assert.Equal(t, KYCSourceA, v.KYCSource)
	assert.Equal(t, "RAJESH", v.FirstName)

	for _, f := range []Field{FieldFirstName, FieldLastName, FieldResidentStatus, FieldBirthCity, FieldPermCity, FieldNationality} {
		assert.ErrorIs(t, r.Set(f, "x"), apperrors.ErrReadOnlyField, f)
	}
	// non-KYC fields stay editable
	assert.NoError(t, r.Set(FieldOccupation, "Engineer"))
}

func TestMobileLocksOnceVerified(t *testing.T) {
	r := NewRecord()
	require.NoError(t, r.Set(FieldMobile, "9876543211"))
	r.MarkMobileVerified()
	assert.ErrorIs(t, r.Set(FieldMobile, "9999999999"), apperrors.ErrReadOnlyField)

	require.NoError(t, r.Set(FieldContributionMobile, "9876543210"))
	r.MarkContributionMobileVerified()
	assert.ErrorIs(t, r.Set(FieldContributionMobile, "1"), apperrors.ErrReadOnlyField)
}

func TestFATCADerivedFromPermanentAddress(t *testing.T) {
	r := NewRecord()
	require.NoError(t, r.Set(FieldPermAddressLine1, "12 Park St"))
	require.NoError(t, r.Set(FieldPermAddressLine2, "Near Lake"))
	require.NoError(t, r.Set(FieldPermPincode, "700001"))

	v := r.Snapshot()
	assert.Equal(t, "12 Park St, Near Lake", v.FATCA.AddressLine)
	assert.Equal(t, "Kolkata", v.FATCA.City)
	assert.Equal(t, "700001", v.FATCA.Pincode)

	assert.ErrorIs(t, r.Set(FieldFATCACity, "X"), apperrors.ErrReadOnlyField)
	assert.ErrorIs(t, r.Set(FieldIsUSPerson, "Yes"), apperrors.ErrReadOnlyField)
	assert.ErrorIs(t, r.Set(FieldTaxResidency, "USA"), apperrors.ErrReadOnlyField)
}

func TestAutoModeLocksBuckets(t *testing.T) {
	r := NewRecord()
	assert.ErrorIs(t, r.Set(FieldTier1Equity, "70"), apperrors.ErrReadOnlyField)

	require.NoError(t, r.Set(FieldTier1Mode, "active"))
	require.NoError(t, r.Set(FieldTier1Equity, "70"))
	require.NoError(t, r.Set(FieldTier1AltAssets, "5"))

	// back to AUTO restores the preset
	require.NoError(t, r.Set(FieldTier1Mode, "AUTO"))
	assert.True(t, r.Snapshot().Tier1.Allocation.Equal(AutoPreset()))

	assert.True(t, apperrors.IsValidation(r.Set(FieldTier1Mode, "SOMETIMES")))
}

func TestFreeze(t *testing.T) {
	r := NewRecord()
	r.Freeze()
	assert.True(t, r.Frozen())
	assert.ErrorIs(t, r.Set(FieldEmail, "a@b.c"), apperrors.ErrReadOnlyField)
	_, err := r.AddBank()
	assert.ErrorIs(t, err, apperrors.ErrReadOnlyField)
	assert.ErrorIs(t, r.SetMirror(MirrorBank, true), apperrors.ErrReadOnlyField)

	r.ResetContribution()
	assert.False(t, r.Frozen())
}

func TestResetContribution(t *testing.T) {
	r := NewRecord()
	require.NoError(t, r.Set(FieldContributionPRAN, "123456781111"))
	require.NoError(t, r.Set(FieldContributionAmount, "2500"))
	r.MarkContributionMobileVerified()
	require.NoError(t, r.Set(FieldEmail, "keep@example.com"))

	r.ResetContribution()
	v := r.Snapshot()
	assert.Empty(t, v.Contribution.PRAN)
	assert.False(t, v.Contribution.MobileVerified)
	assert.True(t, v.Contribution.Amount.Equal(DefaultContributionAmount))
	assert.Equal(t, "keep@example.com", v.Email)
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewRecord()
	v := r.Snapshot()
	v.Banks[0].IFSC = "CHANGED"
	assert.Empty(t, r.Snapshot().Banks[0].IFSC)
}

func TestNomineeHelpers(t *testing.T) {
	n := Nominee{Title: "Mrs", FirstName: "Asha", LastName: "Rao", DOB: "1990-06-15"}
	assert.Equal(t, "Mrs Asha Rao", n.Name())
	assert.Equal(t, 33, n.Age(time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 34, n.Age(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, Nominee{DOB: "bad"}.Age(time.Now()))
	assert.True(t, n.Touched())
	assert.False(t, Nominee{Title: "Mr"}.Touched())
}
