package domain

import (
	"sync"

	"github.com/shopspring/decimal"

	"pensionflow/internal/catalog"
	apperrors "pensionflow/pkg/errors"
)

// Values is the plain data of an ApplicationRecord. Snapshots hand out
// copies of it; mutation goes through Record.
type Values struct {
	// Identity
	FullName       string `json:"full_name"`
	PAN            string `json:"pan"`
	DOB            string `json:"dob"`
	Mobile         string `json:"mobile"`
	Email          string `json:"email"`
	MobileVerified bool   `json:"mobile_verified"`

	// KYC
	KYCVerified bool      `json:"kyc_verified"`
	KYCSource   KYCSource `json:"kyc_source"`

	// Personal
	Title          string `json:"title"`
	FirstName      string `json:"first_name"`
	MiddleName     string `json:"middle_name"`
	LastName       string `json:"last_name"`
	Gender         string `json:"gender"`
	MaritalStatus  string `json:"marital_status"`
	FatherName     string `json:"father_name"`
	MotherName     string `json:"mother_name"`
	Occupation     string `json:"occupation"`
	IncomeRange    string `json:"income_range"`
	PEPStatus      string `json:"pep_status"`
	ResidentStatus string `json:"resident_status"`
	BirthCountry   string `json:"birth_country"`
	BirthCity      string `json:"birth_city"`
	Nationality    string `json:"nationality"`

	ResidentAddress  Address `json:"resident_address"`
	PermanentAddress Address `json:"permanent_address"`
	FATCA            FATCA   `json:"fatca"`

	// Financial
	Tier           Tier       `json:"tier"`
	FundManager    string     `json:"fund_manager"`
	Tier1          TierScheme `json:"tier1"`
	Tier2          TierScheme `json:"tier2"`
	SchemeAgreed   bool       `json:"scheme_agreed"`
	ReviewDeclared bool       `json:"review_declared"`

	Banks    []BankAccount `json:"banks"`
	Nominees []Nominee     `json:"nominees"`

	Contribution Contribution `json:"contribution"`

	Mirrors Mirrors `json:"mirrors"`
	Frozen  bool    `json:"frozen"`
}

const (
	MaxBanks    = 3
	MaxNominees = 3
)

// DefaultContributionAmount seeds both the tier-1 and contribution amounts.
var DefaultContributionAmount = decimal.NewFromInt(500)

// Record is the ApplicationRecord owned by one session. Every write goes
// through Set or one of the collection methods so that read-only rules and
// mirror derivations are applied in one place.
type Record struct {
	mu sync.RWMutex
	v  Values
}

// NewRecord returns a record carrying the creation defaults.
func NewRecord() *Record {
	r := &Record{v: defaults()}
	r.derive()
	return r
}

func defaults() Values {
	return Values{
		KYCSource:        KYCSourceNone,
		Title:            "Mr",
		PEPStatus:        "No",
		ResidentStatus:   "Resident Indian",
		Nationality:      "Indian",
		ResidentAddress:  Address{Country: "India"},
		PermanentAddress: Address{Country: "India"},
		FATCA:            FATCA{Country: "India", TaxResidency: "India", IsUSPerson: "No"},
		Tier1:            TierScheme{Mode: ModeAuto, Amount: DefaultContributionAmount, Allocation: AutoPreset()},
		Tier2:            TierScheme{Mode: ModeAuto, Amount: decimal.Zero, Allocation: AutoPreset()},
		Banks:            []BankAccount{{AccountType: "Savings"}},
		Nominees:         []Nominee{{Share: decimal.NewFromInt(100)}},
		Contribution:     Contribution{Amount: DefaultContributionAmount},
	}
}

// Snapshot returns a deep copy of the record's values.
func (r *Record) Snapshot() Values {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.v
	out.Banks = append([]BankAccount(nil), r.v.Banks...)
	out.Nominees = append([]Nominee(nil), r.v.Nominees...)
	return out
}

// Get reads a scalar field. Unknown fields read as "".
func (r *Record) Get(f Field) string {
	s, ok := fields[f]
	if !ok {
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return s.get(&r.v)
}

// Set writes a scalar field and re-runs derivations.
func (r *Record) Set(f Field, value string) error {
	s, ok := fields[f]
	if !ok {
		return apperrors.Wrap(apperrors.ErrUnknownField, string(f))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writable(f, s); err != nil {
		return err
	}
	if err := s.set(&r.v, value); err != nil {
		return err
	}
	r.afterSet(f)
	r.derive()
	return nil
}

func (r *Record) writable(f Field, s fieldDef) error {
	switch {
	case r.v.Frozen:
		return apperrors.Wrap(apperrors.ErrReadOnlyField, string(f))
	case s.access == accessDerived:
		return apperrors.Wrap(apperrors.ErrReadOnlyField, string(f))
	case s.access == accessKYC && r.v.KYCVerified:
		return apperrors.Wrap(apperrors.ErrReadOnlyField, string(f))
	case f == FieldMobile && r.v.MobileVerified:
		return apperrors.Wrap(apperrors.ErrReadOnlyField, string(f))
	case f == FieldContributionMobile && r.v.Contribution.MobileVerified:
		return apperrors.Wrap(apperrors.ErrReadOnlyField, string(f))
	case s.mirror != "" && r.v.Mirrors.On(s.mirror):
		return apperrors.Wrap(apperrors.ErrMirroredField, string(f))
	case s.bucketOf != 0 && tierField(&r.v, s.bucketOf).Mode == ModeAuto:
		return apperrors.Wrap(apperrors.ErrReadOnlyField, string(f))
	}
	return nil
}

// afterSet fills city, state and country from the postal directory when a
// known pincode is entered.
func (r *Record) afterSet(f Field) {
	var addr *Address
	switch f {
	case FieldPermPincode:
		addr = &r.v.PermanentAddress
	case FieldPincode:
		addr = &r.v.ResidentAddress
	default:
		return
	}
	if res := catalog.LookupPincode(addr.Pincode); res.Found {
		addr.City = res.City
		addr.State = res.State
		addr.Country = res.Country
	}
}

// MarkMobileVerified records a successful registration mobile OTP. The
// mobile number becomes read-only.
func (r *Record) MarkMobileVerified() {
	r.mu.Lock()
	r.v.MobileVerified = true
	r.mu.Unlock()
}

// MarkContributionMobileVerified is MarkMobileVerified for the
// contribution mobile.
func (r *Record) MarkContributionMobileVerified() {
	r.mu.Lock()
	r.v.Contribution.MobileVerified = true
	r.mu.Unlock()
}

// ApplyKYC seeds the record with a verified identity and freezes the
// KYC-sourced fields.
func (r *Record) ApplyKYC(source KYCSource, id Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.v.Frozen {
		return apperrors.ErrReadOnlyField
	}

	r.v.FirstName = id.FirstName
	r.v.MiddleName = id.MiddleName
	r.v.LastName = id.LastName
	r.v.ResidentStatus = id.ResidentStatus
	r.v.BirthCountry = id.BirthCountry
	r.v.BirthCity = id.BirthCity
	r.v.Nationality = id.Nationality
	r.v.PermanentAddress = id.Permanent
	if !r.v.Mirrors.ResidentAddress {
		r.v.ResidentAddress = id.Resident
	}
	r.v.KYCVerified = true
	r.v.KYCSource = source
	r.derive()
	return nil
}

// Freeze makes the whole record read-only. Called once payment succeeds.
func (r *Record) Freeze() {
	r.mu.Lock()
	r.v.Frozen = true
	r.mu.Unlock()
}

func (r *Record) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.v.Frozen
}

// ResetContribution clears the contribution fields for a fresh attempt on
// the same session and lifts the payment freeze.
func (r *Record) ResetContribution() {
	r.mu.Lock()
	r.v.Contribution = Contribution{Amount: DefaultContributionAmount}
	r.v.Frozen = false
	r.mu.Unlock()
}
