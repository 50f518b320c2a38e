package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tier is the account variant being opened.
type Tier string

const (
	TierBase              Tier = "TIER_BASE"
	TierBasePlusVoluntary Tier = "TIER_BASE_PLUS_VOLUNTARY"
)

func (t Tier) Valid() bool {
	return t == TierBase || t == TierBasePlusVoluntary
}

// HasVoluntary reports whether the voluntary tier is active.
func (t Tier) HasVoluntary() bool { return t == TierBasePlusVoluntary }

// InvestmentMode selects preset or user-specified allocation.
type InvestmentMode string

const (
	ModeAuto   InvestmentMode = "AUTO"
	ModeActive InvestmentMode = "ACTIVE"
)

// KYCSource identifies which external identity path verified the record.
type KYCSource string

const (
	KYCSourceNone KYCSource = "NONE"
	KYCSourceA    KYCSource = "EXTERNAL_KYC_A"
	KYCSourceB    KYCSource = "EXTERNAL_KYC_B"
)

// DisplayName is the provider label shown to the user.
func (s KYCSource) DisplayName() string {
	switch s {
	case KYCSourceA:
		return "CKYC"
	case KYCSourceB:
		return "DigiLocker"
	}
	return ""
}

// Address is one of the three parallel address blocks.
type Address struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2"`
	Line3   string `json:"line3"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Country string `json:"country"`
}

// Lines joins the non-empty address lines with ", ".
func (a Address) Lines() string {
	parts := make([]string, 0, 3)
	for _, l := range []string{a.Line1, a.Line2, a.Line3} {
		if s := strings.TrimSpace(l); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// FATCA is the tax-declaration block. Its address is always derived from
// the permanent address.
type FATCA struct {
	AddressLine  string `json:"address_line"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
	Country      string `json:"country"`
	TIN          string `json:"tin"`
	TaxResidency string `json:"tax_residency"`
	IsUSPerson   string `json:"is_us_person"`
	Declared     bool   `json:"declared"`
}

// Domestic reports whether the declarant is a domestic tax resident.
func (f FATCA) Domestic() bool {
	return strings.EqualFold(f.IsUSPerson, "No") && strings.EqualFold(f.TaxResidency, "India")
}

// Allocation splits a tier's contribution across the four buckets, in
// percent.
type Allocation struct {
	Equity         decimal.Decimal `json:"equity"`
	CorporateDebt  decimal.Decimal `json:"corporate_debt"`
	GovtSecurities decimal.Decimal `json:"govt_securities"`
	Alternative    decimal.Decimal `json:"alternative"`
}

// AutoPreset is the fixed allocation applied in AUTO mode.
func AutoPreset() Allocation {
	return Allocation{
		Equity:         decimal.NewFromInt(50),
		CorporateDebt:  decimal.NewFromInt(25),
		GovtSecurities: decimal.NewFromInt(25),
		Alternative:    decimal.Zero,
	}
}

// Values returns the four shares in bucket order E, C, G, A.
func (a Allocation) Values() []decimal.Decimal {
	return []decimal.Decimal{a.Equity, a.CorporateDebt, a.GovtSecurities, a.Alternative}
}

func (a Allocation) Equal(b Allocation) bool {
	return a.Equity.Equal(b.Equity) &&
		a.CorporateDebt.Equal(b.CorporateDebt) &&
		a.GovtSecurities.Equal(b.GovtSecurities) &&
		a.Alternative.Equal(b.Alternative)
}

// TierScheme is the scheme selection for one tier.
type TierScheme struct {
	Mode       InvestmentMode  `json:"mode"`
	SchemeID   string          `json:"scheme_id"`
	Amount     decimal.Decimal `json:"amount"`
	Allocation Allocation      `json:"allocation"`
}

type BankAccount struct {
	IFSC          string `json:"ifsc"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountType   string `json:"account_type"`
}

// Touched reports whether the user has entered anything into the account.
func (b BankAccount) Touched() bool {
	return b.IFSC != "" || b.AccountNumber != ""
}

type Nominee struct {
	Title      string          `json:"title"`
	FirstName  string          `json:"first_name"`
	MiddleName string          `json:"middle_name"`
	LastName   string          `json:"last_name"`
	Relation   string          `json:"relation"`
	DOB        string          `json:"dob"`
	Share      decimal.Decimal `json:"share"`
}

// Name is the display name built from the title and name parts.
func (n Nominee) Name() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{n.Title, n.FirstName, n.MiddleName, n.LastName} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// HasName reports whether any name part other than the title is set.
func (n Nominee) HasName() bool {
	return strings.TrimSpace(n.FirstName+n.MiddleName+n.LastName) != ""
}

// Touched reports whether any nominee field carries user input.
func (n Nominee) Touched() bool {
	return n.HasName() || n.Relation != "" || n.DOB != "" || !n.Share.IsZero()
}

// Age returns completed years at now, or -1 when DOB does not parse.
func (n Nominee) Age(now time.Time) int {
	return AgeOn(n.DOB, now)
}

// AgeOn computes completed years between a YYYY-MM-DD date and now.
func AgeOn(dob string, now time.Time) int {
	born, err := time.Parse("2006-01-02", strings.TrimSpace(dob))
	if err != nil {
		return -1
	}
	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	return age
}

// Contribution holds the existing-account top-up fields.
type Contribution struct {
	PRAN           string          `json:"pran"`
	DOB            string          `json:"dob"`
	Mobile         string          `json:"mobile"`
	MobileVerified bool            `json:"mobile_verified"`
	Amount         decimal.Decimal `json:"amount"`
	Consent        bool            `json:"consent"`
	Declared       bool            `json:"declared"`
}

// MirrorKind names a one-directional "same as" derivation.
type MirrorKind string

const (
	MirrorResidentAddress MirrorKind = "same_address"
	MirrorBank            MirrorKind = "same_bank"
	MirrorNominee         MirrorKind = "same_nominee"
	MirrorTier2Scheme     MirrorKind = "same_as_tier1"
)

func (k MirrorKind) Valid() bool {
	switch k {
	case MirrorResidentAddress, MirrorBank, MirrorNominee, MirrorTier2Scheme:
		return true
	}
	return false
}

// Mirrors records which derivations are switched on.
type Mirrors struct {
	ResidentAddress bool `json:"same_address"`
	Bank            bool `json:"same_bank"`
	Nominee         bool `json:"same_nominee"`
	Tier2Scheme     bool `json:"same_as_tier1"`
}

func (m Mirrors) On(k MirrorKind) bool {
	switch k {
	case MirrorResidentAddress:
		return m.ResidentAddress
	case MirrorBank:
		return m.Bank
	case MirrorNominee:
		return m.Nominee
	case MirrorTier2Scheme:
		return m.Tier2Scheme
	}
	return false
}

func (m *Mirrors) set(k MirrorKind, on bool) {
	switch k {
	case MirrorResidentAddress:
		m.ResidentAddress = on
	case MirrorBank:
		m.Bank = on
	case MirrorNominee:
		m.Nominee = on
	case MirrorTier2Scheme:
		m.Tier2Scheme = on
	}
}

// Identity is the verified identity returned by a KYC provider.
type Identity struct {
	FirstName      string
	MiddleName     string
	LastName       string
	ResidentStatus string
	BirthCountry   string
	BirthCity      string
	Nationality    string
	Permanent      Address
	Resident       Address
}
