package registration

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"pensionflow/internal/allocation"
	"pensionflow/internal/catalog"
	"pensionflow/internal/domain"
	apperrors "pensionflow/pkg/errors"
)

// basicInput is the BASIC form as checked before routing.
type basicInput struct {
	FullName string `json:"full_name" validate:"required"`
	PAN      string `json:"pan" validate:"pan"`
	DOB      string `json:"dob" validate:"dob"`
	Mobile   string `json:"mobile" validate:"mobile"`
	Email    string `json:"email" validate:"required,email"`
}

const basicMissing = "Please fill Name, PAN, DOB, Mobile and Email"

func (w *Wizard) guardBasic(v domain.Values) error {
	in := basicInput{FullName: v.FullName, PAN: v.PAN, DOB: v.DOB, Mobile: v.Mobile, Email: v.Email}
	if err := w.validator.Check(in); err != nil {
		if ve, ok := apperrors.AsValidation(err); ok {
			return apperrors.Invalid(ve.Field, basicMissing)
		}
		return err
	}
	if !v.MobileVerified {
		return apperrors.Invalid("mobile", "Please verify your mobile number first")
	}
	return nil
}

func guardPersonal(v domain.Values) error {
	required := []struct {
		field domain.Field
		value string
		label string
	}{
		{domain.FieldFirstName, v.FirstName, "first name"},
		{domain.FieldGender, v.Gender, "gender"},
		{domain.FieldFatherName, v.FatherName, "father's name"},
		{domain.FieldOccupation, v.Occupation, "occupation"},
		{domain.FieldResidentStatus, v.ResidentStatus, "resident status"},
		{domain.FieldNationality, v.Nationality, "nationality"},
		{domain.FieldPermAddressLine1, v.PermanentAddress.Line1, "permanent address"},
		{domain.FieldPermCity, v.PermanentAddress.City, "permanent city"},
		{domain.FieldPermState, v.PermanentAddress.State, "permanent state"},
		{domain.FieldPermPincode, v.PermanentAddress.Pincode, "permanent pincode"},
		{domain.FieldAddressLine1, v.ResidentAddress.Line1, "correspondence address"},
		{domain.FieldCity, v.ResidentAddress.City, "correspondence city"},
		{domain.FieldState, v.ResidentAddress.State, "correspondence state"},
		{domain.FieldPincode, v.ResidentAddress.Pincode, "correspondence pincode"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return apperrors.Invalid(string(r.field), "Please enter "+r.label)
		}
	}
	return nil
}

func guardFATCA(v domain.Values) error {
	f := v.FATCA
	if f.AddressLine == "" || f.City == "" || f.State == "" || f.Pincode == "" || f.Country == "" {
		return apperrors.Invalid("fatca_address", "FATCA address details are missing (check Permanent Address)")
	}
	if !catalog.LookupPincode(f.Pincode).Valid {
		return apperrors.Invalid(string(domain.FieldFATCAPincode), "Invalid FATCA pin code (check Permanent Address)")
	}
	requiresTIN := v.ResidentStatus != "Resident Indian" || !f.Domestic()
	if requiresTIN && strings.TrimSpace(f.TIN) == "" {
		return apperrors.Invalid(string(domain.FieldTIN), "Please enter TIN for NRI tax residency")
	}
	if !f.Declared {
		return apperrors.Invalid(string(domain.FieldFATCADeclared), "Please accept the FATCA declaration")
	}
	return nil
}

func guardAccountType(v domain.Values) error {
	if !v.Tier.Valid() {
		return apperrors.Invalid(string(domain.FieldTier), "Please select an account type")
	}
	if _, ok := catalog.FundManagerByID(v.FundManager); !ok {
		return apperrors.Invalid(string(domain.FieldFundManager), "Please select a fund manager")
	}
	return nil
}

func (w *Wizard) guardScheme(v domain.Values) error {
	type tier struct {
		label   string
		scheme  domain.TierScheme
		minimum decimal.Decimal
		field   domain.Field
		enabled bool
	}
	tiers := []tier{
		{"Tier I", v.Tier1, w.cfg.Tier1Minimum, domain.FieldTier1Amount, true},
		{"Tier II", v.Tier2, w.cfg.Tier2Minimum, domain.FieldTier2Amount, v.Tier.HasVoluntary()},
	}
	manager, _ := catalog.FundManagerByID(v.FundManager)

	for _, t := range tiers {
		if !t.enabled {
			continue
		}
		if _, ok := catalog.SchemeByID(t.scheme.SchemeID); !ok {
			return apperrors.Invalid("scheme", fmt.Sprintf("Please select a scheme for %s", t.label))
		}
		if err := allocation.ValidateTier(t.label, t.scheme); err != nil {
			return err
		}
		if manager.ID != "" && !manager.Supports(catalog.BucketAlternative) &&
			t.scheme.Allocation.Alternative.IsPositive() {
			return apperrors.Invalid("allocation",
				fmt.Sprintf("%s does not offer Scheme A for %s", manager.Name, t.label))
		}
		if t.scheme.Amount.LessThan(t.minimum) {
			return apperrors.Invalid(string(t.field), fmt.Sprintf("Minimum %s contribution is ₹%s", t.label, t.minimum))
		}
	}
	if !v.SchemeAgreed {
		return apperrors.Invalid(string(domain.FieldSchemeAgreed), "Please accept the terms and conditions")
	}
	return nil
}

func guardBank(v domain.Values) error {
	for _, b := range v.Banks {
		if b.Touched() && (b.IFSC == "" || b.AccountNumber == "") {
			return apperrors.Invalid("banks", "Please complete IFSC and Account Number for any bank account you started")
		}
	}
	return nil
}

func guardNominee(v domain.Values) error {
	return allocation.ValidateNominees(v.Tier, v.Nominees)
}

func guardReview(v domain.Values) error {
	if !v.ReviewDeclared {
		return apperrors.Invalid(string(domain.FieldReviewDeclared), "Please accept the declaration to proceed")
	}
	return nil
}

// guardFor returns the advance guard of a data-collection stage.
func (w *Wizard) guardFor(s Stage) func(domain.Values) error {
	switch s {
	case StageBasic:
		return w.guardBasic
	case StagePersonal:
		return guardPersonal
	case StageFATCA:
		return guardFATCA
	case StageAccountType:
		return guardAccountType
	case StageScheme:
		return w.guardScheme
	case StageBank:
		return guardBank
	case StageNominee:
		return guardNominee
	case StageReview:
		return guardReview
	}
	return nil
}
