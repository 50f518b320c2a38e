package validator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "pensionflow/pkg/errors"
)

type basicForm struct {
	Name   string          `json:"name" validate:"required"`
	PAN    string          `json:"pan" validate:"pan"`
	Mobile string          `json:"mobile" validate:"mobile"`
	DOB    string          `json:"dob" validate:"dob"`
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
}

func validForm() basicForm {
	return basicForm{
		Name:   "Rajesh Kumar",
		PAN:    "ABCDE1234C",
		Mobile: "9876543211",
		DOB:    "1990-01-15",
		Amount: decimal.NewFromInt(500),
	}
}

func TestCheck_Valid(t *testing.T) {
	v := New()
	assert.NoError(t, v.Check(validForm()))
}

func TestCheck_ReportsFirstFieldByJSONName(t *testing.T) {
	v := New()
	f := validForm()
	f.Mobile = "98765"

	err := v.Check(f)
	require.Error(t, err)
	ve, ok := apperrors.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "mobile", ve.Field)
	assert.Equal(t, "Mobile number must be 10 digits", ve.Message)
}

func TestCheck_DecimalAmount(t *testing.T) {
	v := New()
	f := validForm()
	f.Amount = decimal.Zero

	err := v.Check(f)
	require.Error(t, err)
	ve, _ := apperrors.AsValidation(err)
	assert.Equal(t, "amount", ve.Field)
}

func TestValidateStructured(t *testing.T) {
	v := New()
	errs := v.ValidateStructured(basicForm{})
	assert.Contains(t, errs, "name")
	assert.Contains(t, errs, "pan")
	assert.Contains(t, errs, "dob")
	assert.Nil(t, v.ValidateStructured(validForm()))
}

func TestVar(t *testing.T) {
	v := New()
	assert.True(t, v.Var("123456789012", "pran"))
	assert.False(t, v.Var("12345678901", "pran"))
	assert.True(t, v.Var("400001", "pincode"))
	assert.False(t, v.Var("4000", "pincode"))
	assert.True(t, v.Var("12345", "otp5"))
	assert.False(t, v.Var("1234a6", "otp6"))
	assert.True(t, v.Var("someone@upi", "upi"))
	assert.False(t, v.Var("someone", "upi"))
}

func TestIsUPIHandle(t *testing.T) {
	assert.True(t, IsUPIHandle("success@upi"))
	assert.False(t, IsUPIHandle("@upi"))
	assert.False(t, IsUPIHandle("name@"))
	assert.False(t, IsUPIHandle(""))
}

func TestIsDate(t *testing.T) {
	assert.True(t, IsDate("1985-07-04"))
	assert.False(t, IsDate("04/07/1985"))
	assert.False(t, IsDate("2999-01-01"))
}
