package domain

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "pensionflow/pkg/errors"
)

// Field is the key of a scalar record field.
type Field string

const (
	FieldFullName Field = "full_name"
	FieldPAN      Field = "pan"
	FieldDOB      Field = "dob"
	FieldMobile   Field = "mobile"
	FieldEmail    Field = "email"

	FieldTitle          Field = "title"
	FieldFirstName      Field = "first_name"
	FieldMiddleName     Field = "middle_name"
	FieldLastName       Field = "last_name"
	FieldGender         Field = "gender"
	FieldMaritalStatus  Field = "marital_status"
	FieldFatherName     Field = "father_name"
	FieldMotherName     Field = "mother_name"
	FieldOccupation     Field = "occupation"
	FieldIncomeRange    Field = "income_range"
	FieldPEPStatus      Field = "pep_status"
	FieldResidentStatus Field = "resident_status"
	FieldBirthCountry   Field = "birth_country"
	FieldBirthCity      Field = "birth_city"
	FieldNationality    Field = "nationality"

	FieldAddressLine1 Field = "address_line1"
	FieldAddressLine2 Field = "address_line2"
	FieldAddressLine3 Field = "address_line3"
	FieldCity         Field = "city"
	FieldState        Field = "state"
	FieldPincode      Field = "pincode"
	FieldCountry      Field = "country"

	FieldPermAddressLine1 Field = "perm_address_line1"
	FieldPermAddressLine2 Field = "perm_address_line2"
	FieldPermAddressLine3 Field = "perm_address_line3"
	FieldPermCity         Field = "perm_city"
	FieldPermState        Field = "perm_state"
	FieldPermPincode      Field = "perm_pincode"
	FieldPermCountry      Field = "perm_country"

	FieldFATCAAddressLine Field = "fatca_address_line"
	FieldFATCACity        Field = "fatca_city"
	FieldFATCAState       Field = "fatca_state"
	FieldFATCAPincode     Field = "fatca_pincode"
	FieldFATCACountry     Field = "fatca_country"
	FieldTIN              Field = "tin"
	FieldTaxResidency     Field = "tax_residency"
	FieldIsUSPerson       Field = "is_us_person"
	FieldFATCADeclared    Field = "fatca_declared"

	FieldTier        Field = "tier"
	FieldFundManager Field = "fund_manager"

	FieldTier1Mode      Field = "tier1_mode"
	FieldTier1Scheme    Field = "tier1_scheme"
	FieldTier1Amount    Field = "tier1_amount"
	FieldTier1Equity    Field = "tier1_equity"
	FieldTier1CorpDebt  Field = "tier1_corp_debt"
	FieldTier1GovtSec   Field = "tier1_govt_sec"
	FieldTier1AltAssets Field = "tier1_alt_assets"

	FieldTier2Mode      Field = "tier2_mode"
	FieldTier2Scheme    Field = "tier2_scheme"
	FieldTier2Amount    Field = "tier2_amount"
	FieldTier2Equity    Field = "tier2_equity"
	FieldTier2CorpDebt  Field = "tier2_corp_debt"
	FieldTier2GovtSec   Field = "tier2_govt_sec"
	FieldTier2AltAssets Field = "tier2_alt_assets"

	FieldSchemeAgreed   Field = "scheme_agreed"
	FieldReviewDeclared Field = "review_declared"

	FieldContributionPRAN     Field = "contribution_pran"
	FieldContributionDOB      Field = "contribution_dob"
	FieldContributionMobile   Field = "contribution_mobile"
	FieldContributionAmount   Field = "contribution_amount"
	FieldContributionConsent  Field = "contribution_consent"
	FieldContributionDeclared Field = "contribution_declared"
)

type access int

const (
	accessOpen access = iota
	// accessKYC fields freeze once the record is KYC verified.
	accessKYC
	// accessDerived fields are computed and never user-writable.
	accessDerived
)

type fieldDef struct {
	get    func(v *Values) string
	set    func(v *Values, s string) error
	access access
	// mirror marks the field as the dependent side of a mirror.
	mirror MirrorKind
	// bucketOf is 1 or 2 for allocation fields, locked while the tier is AUTO.
	bucketOf int
}

func str(p func(v *Values) *string) (func(*Values) string, func(*Values, string) error) {
	return func(v *Values) string { return *p(v) },
		func(v *Values, s string) error {
			*p(v) = strings.TrimSpace(s)
			return nil
		}
}

func upper(p func(v *Values) *string) (func(*Values) string, func(*Values, string) error) {
	return func(v *Values) string { return *p(v) },
		func(v *Values, s string) error {
			*p(v) = strings.ToUpper(strings.TrimSpace(s))
			return nil
		}
}

func flag(f Field, p func(v *Values) *bool) (func(*Values) string, func(*Values, string) error) {
	return func(v *Values) string { return strconv.FormatBool(*p(v)) },
		func(v *Values, s string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(s))
			if err != nil {
				return apperrors.Invalid(string(f), "must be true or false")
			}
			*p(v) = b
			return nil
		}
}

func amount(f Field, p func(v *Values) *decimal.Decimal) (func(*Values) string, func(*Values, string) error) {
	return func(v *Values) string { return p(v).String() },
		func(v *Values, s string) error {
			s = strings.TrimSpace(s)
			if s == "" {
				*p(v) = decimal.Zero
				return nil
			}
			d, err := decimal.NewFromString(s)
			if err != nil {
				return apperrors.Invalid(string(f), "must be a number")
			}
			*p(v) = d
			return nil
		}
}

func def(get func(*Values) string, set func(*Values, string) error) fieldDef {
	return fieldDef{get: get, set: set}
}

func (s fieldDef) kyc() fieldDef                 { s.access = accessKYC; return s }
func (s fieldDef) derived() fieldDef             { s.access = accessDerived; return s }
func (s fieldDef) mirrors(k MirrorKind) fieldDef { s.mirror = k; return s }
func (s fieldDef) bucket(tier int) fieldDef      { s.bucketOf = tier; return s }

func tierField(v *Values, tier int) *TierScheme {
	if tier == 2 {
		return &v.Tier2
	}
	return &v.Tier1
}

func mode(f Field, tier int) (func(*Values) string, func(*Values, string) error) {
	return func(v *Values) string { return string(tierField(v, tier).Mode) },
		func(v *Values, s string) error {
			m := InvestmentMode(strings.ToUpper(strings.TrimSpace(s)))
			if m != ModeAuto && m != ModeActive {
				return apperrors.Invalid(string(f), "must be AUTO or ACTIVE")
			}
			tierField(v, tier).Mode = m
			return nil
		}
}

func tierSpecs(tier int, modeF, schemeF, amountF, eq, cd, gs, alt Field) map[Field]fieldDef {
	t := func(v *Values) *TierScheme { return tierField(v, tier) }
	out := map[Field]fieldDef{
		modeF:   def(mode(modeF, tier)),
		schemeF: def(upper(func(v *Values) *string { return &t(v).SchemeID })),
		amountF: def(amount(amountF, func(v *Values) *decimal.Decimal { return &t(v).Amount })),
		eq:      def(amount(eq, func(v *Values) *decimal.Decimal { return &t(v).Allocation.Equity })).bucket(tier),
		cd:      def(amount(cd, func(v *Values) *decimal.Decimal { return &t(v).Allocation.CorporateDebt })).bucket(tier),
		gs:      def(amount(gs, func(v *Values) *decimal.Decimal { return &t(v).Allocation.GovtSecurities })).bucket(tier),
		alt:     def(amount(alt, func(v *Values) *decimal.Decimal { return &t(v).Allocation.Alternative })).bucket(tier),
	}
	if tier == 2 {
		for _, f := range []Field{modeF, schemeF, eq, cd, gs, alt} {
			out[f] = out[f].mirrors(MirrorTier2Scheme)
		}
	}
	return out
}

var fields = buildFields()

func buildFields() map[Field]fieldDef {
	m := map[Field]fieldDef{
		FieldFullName: def(str(func(v *Values) *string { return &v.FullName })).kyc(),
		FieldPAN:      def(upper(func(v *Values) *string { return &v.PAN })).kyc(),
		FieldDOB:      def(str(func(v *Values) *string { return &v.DOB })).kyc(),
		FieldMobile:   def(str(func(v *Values) *string { return &v.Mobile })),
		FieldEmail:    def(str(func(v *Values) *string { return &v.Email })),

		FieldTitle:          def(str(func(v *Values) *string { return &v.Title })).kyc(),
		FieldFirstName:      def(str(func(v *Values) *string { return &v.FirstName })).kyc(),
		FieldMiddleName:     def(str(func(v *Values) *string { return &v.MiddleName })).kyc(),
		FieldLastName:       def(str(func(v *Values) *string { return &v.LastName })).kyc(),
		FieldGender:         def(str(func(v *Values) *string { return &v.Gender })),
		FieldMaritalStatus:  def(str(func(v *Values) *string { return &v.MaritalStatus })),
		FieldFatherName:     def(str(func(v *Values) *string { return &v.FatherName })),
		FieldMotherName:     def(str(func(v *Values) *string { return &v.MotherName })),
		FieldOccupation:     def(str(func(v *Values) *string { return &v.Occupation })),
		FieldIncomeRange:    def(str(func(v *Values) *string { return &v.IncomeRange })),
		FieldPEPStatus:      def(str(func(v *Values) *string { return &v.PEPStatus })),
		FieldResidentStatus: def(str(func(v *Values) *string { return &v.ResidentStatus })).kyc(),
		FieldBirthCountry:   def(str(func(v *Values) *string { return &v.BirthCountry })).kyc(),
		FieldBirthCity:      def(str(func(v *Values) *string { return &v.BirthCity })).kyc(),
		FieldNationality:    def(str(func(v *Values) *string { return &v.Nationality })).kyc(),

		FieldAddressLine1: def(str(func(v *Values) *string { return &v.ResidentAddress.Line1 })).mirrors(MirrorResidentAddress),
		FieldAddressLine2: def(str(func(v *Values) *string { return &v.ResidentAddress.Line2 })).mirrors(MirrorResidentAddress),
		FieldAddressLine3: def(str(func(v *Values) *string { return &v.ResidentAddress.Line3 })).mirrors(MirrorResidentAddress),
		FieldCity:         def(str(func(v *Values) *string { return &v.ResidentAddress.City })).mirrors(MirrorResidentAddress),
		FieldState:        def(str(func(v *Values) *string { return &v.ResidentAddress.State })).mirrors(MirrorResidentAddress),
		FieldPincode:      def(str(func(v *Values) *string { return &v.ResidentAddress.Pincode })).mirrors(MirrorResidentAddress),
		FieldCountry:      def(str(func(v *Values) *string { return &v.ResidentAddress.Country })).mirrors(MirrorResidentAddress),

		FieldPermAddressLine1: def(str(func(v *Values) *string { return &v.PermanentAddress.Line1 })).kyc(),
		FieldPermAddressLine2: def(str(func(v *Values) *string { return &v.PermanentAddress.Line2 })).kyc(),
		FieldPermAddressLine3: def(str(func(v *Values) *string { return &v.PermanentAddress.Line3 })).kyc(),
		FieldPermCity:         def(str(func(v *Values) *string { return &v.PermanentAddress.City })).kyc(),
		FieldPermState:        def(str(func(v *Values) *string { return &v.PermanentAddress.State })).kyc(),
		FieldPermPincode:      def(str(func(v *Values) *string { return &v.PermanentAddress.Pincode })).kyc(),
		FieldPermCountry:      def(str(func(v *Values) *string { return &v.PermanentAddress.Country })).kyc(),

		FieldFATCAAddressLine: def(str(func(v *Values) *string { return &v.FATCA.AddressLine })).derived(),
		FieldFATCACity:        def(str(func(v *Values) *string { return &v.FATCA.City })).derived(),
		FieldFATCAState:       def(str(func(v *Values) *string { return &v.FATCA.State })).derived(),
		FieldFATCAPincode:     def(str(func(v *Values) *string { return &v.FATCA.Pincode })).derived(),
		FieldFATCACountry:     def(str(func(v *Values) *string { return &v.FATCA.Country })).derived(),
		FieldTaxResidency:     def(str(func(v *Values) *string { return &v.FATCA.TaxResidency })).derived(),
		FieldIsUSPerson:       def(str(func(v *Values) *string { return &v.FATCA.IsUSPerson })).derived(),
		FieldTIN:              def(upper(func(v *Values) *string { return &v.FATCA.TIN })),
		FieldFATCADeclared:    def(flag(FieldFATCADeclared, func(v *Values) *bool { return &v.FATCA.Declared })),

		FieldFundManager: def(upper(func(v *Values) *string { return &v.FundManager })),

		FieldSchemeAgreed:   def(flag(FieldSchemeAgreed, func(v *Values) *bool { return &v.SchemeAgreed })),
		FieldReviewDeclared: def(flag(FieldReviewDeclared, func(v *Values) *bool { return &v.ReviewDeclared })),

		FieldContributionPRAN:     def(str(func(v *Values) *string { return &v.Contribution.PRAN })),
		FieldContributionDOB:      def(str(func(v *Values) *string { return &v.Contribution.DOB })),
		FieldContributionMobile:   def(str(func(v *Values) *string { return &v.Contribution.Mobile })),
		FieldContributionAmount:   def(amount(FieldContributionAmount, func(v *Values) *decimal.Decimal { return &v.Contribution.Amount })),
		FieldContributionConsent:  def(flag(FieldContributionConsent, func(v *Values) *bool { return &v.Contribution.Consent })),
		FieldContributionDeclared: def(flag(FieldContributionDeclared, func(v *Values) *bool { return &v.Contribution.Declared })),
	}

	m[FieldTier] = def(
		func(v *Values) string { return string(v.Tier) },
		func(v *Values, s string) error {
			t := Tier(strings.ToUpper(strings.TrimSpace(s)))
			if s != "" && !t.Valid() {
				return apperrors.Invalid(string(FieldTier), "unknown tier")
			}
			v.Tier = t
			return nil
		},
	)

	for f, s := range tierSpecs(1, FieldTier1Mode, FieldTier1Scheme, FieldTier1Amount,
		FieldTier1Equity, FieldTier1CorpDebt, FieldTier1GovtSec, FieldTier1AltAssets) {
		m[f] = s
	}
	for f, s := range tierSpecs(2, FieldTier2Mode, FieldTier2Scheme, FieldTier2Amount,
		FieldTier2Equity, FieldTier2CorpDebt, FieldTier2GovtSec, FieldTier2AltAssets) {
		m[f] = s
	}
	return m
}

// KnownField reports whether f is a scalar record field.
func KnownField(f Field) bool {
	_, ok := fields[f]
	return ok
}

// BankField is the key of a bank-account field.
type BankField string

const (
	BankIFSC          BankField = "ifsc"
	BankAccountNumber BankField = "account_number"
	BankAccountType   BankField = "account_type"
)

// NomineeField is the key of a nominee field.
type NomineeField string

const (
	NomineeTitle      NomineeField = "title"
	NomineeFirstName  NomineeField = "first_name"
	NomineeMiddleName NomineeField = "middle_name"
	NomineeLastName   NomineeField = "last_name"
	NomineeRelation   NomineeField = "relation"
	NomineeDOB        NomineeField = "dob"
	NomineeShare      NomineeField = "share"
)

// mirrored reports whether the field is copied from nominee 1 while the
// nominee mirror is on. Share is never mirrored.
func (f NomineeField) mirrored() bool {
	return f != NomineeShare
}
