package registration

import (
	"fmt"
	"strings"

	"pensionflow/internal/domain"
)

// Stage is a top-level registration stage. Stages are ordinal.
type Stage int

const (
	StageBasic Stage = iota
	StagePersonal
	StageFATCA
	StageAccountType
	StageScheme
	StageBank
	StageNominee
	StageReview
	StagePayment
)

var stageNames = [...]string{
	"BASIC", "PERSONAL", "FATCA", "ACCOUNT_TYPE", "SCHEME", "BANK", "NOMINEE", "REVIEW", "PAYMENT",
}

func (s Stage) String() string {
	if s < StageBasic || s > StagePayment {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStage accepts a stage name, case-insensitively.
func ParseStage(name string) (Stage, bool) {
	for i, n := range stageNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Stage(i), true
		}
	}
	return 0, false
}

// BasicState is the sub-state of the BASIC stage. It is one of Form,
// PrimaryOTP, ExistingCheck, ExistingChoice, Loader, LoaderError or KYCOTP.
type BasicState interface {
	basicState()
}

// Form is the details form with its inline mobile OTP gate.
type Form struct{}

// PrimaryOTP is the full-screen OTP entered before the loader when
// creating a new account over an existing one.
type PrimaryOTP struct {
	Source domain.KYCSource
}

// ExistingCheck is the registry check run before the existing-account choice.
type ExistingCheck struct{}

// ExistingChoice asks whether to create a new account or contribute to the
// existing one.
type ExistingChoice struct{}

// Loader runs the identity and mobile registry checks.
type Loader struct {
	Source domain.KYCSource
}

// LoaderError is entered when a registry check could not complete.
// Source is NONE when the failed check was the existing-account check.
type LoaderError struct {
	Source  domain.KYCSource
	Message string
}

// KYCOTP is the OTP screen of a KYC source.
type KYCOTP struct {
	Source         domain.KYCSource
	FallbackNotice string
}

func (Form) basicState()           {}
func (PrimaryOTP) basicState()     {}
func (ExistingCheck) basicState()  {}
func (ExistingChoice) basicState() {}
func (Loader) basicState()         {}
func (LoaderError) basicState()    {}
func (KYCOTP) basicState()         {}

// BasicView is the serialisable form of BasicState.
type BasicView struct {
	Kind           string           `json:"kind"`
	Source         domain.KYCSource `json:"source,omitempty"`
	FallbackNotice string           `json:"fallback_notice,omitempty"`
	Message        string           `json:"message,omitempty"`
}

func describeBasic(s BasicState) BasicView {
	switch st := s.(type) {
	case Form:
		return BasicView{Kind: "FORM"}
	case PrimaryOTP:
		return BasicView{Kind: "PRIMARY_OTP", Source: st.Source}
	case ExistingCheck:
		return BasicView{Kind: "EXISTING_CHECK"}
	case ExistingChoice:
		return BasicView{Kind: "EXISTING_CHOICE"}
	case Loader:
		return BasicView{Kind: "LOADER", Source: st.Source}
	case LoaderError:
		return BasicView{Kind: "LOADER_ERROR", Source: st.Source, Message: st.Message}
	case KYCOTP:
		return BasicView{Kind: "KYC_OTP", Source: st.Source, FallbackNotice: st.FallbackNotice}
	}
	return BasicView{Kind: "UNKNOWN"}
}

// owners maps every registration field to the stage allowed to write it.
var owners = buildOwners()

func buildOwners() map[domain.Field]Stage {
	m := make(map[domain.Field]Stage)
	put := func(s Stage, fs ...domain.Field) {
		for _, f := range fs {
			m[f] = s
		}
	}
	put(StageBasic, domain.FieldFullName, domain.FieldPAN, domain.FieldDOB, domain.FieldMobile, domain.FieldEmail)
	put(StagePersonal,
		domain.FieldTitle, domain.FieldFirstName, domain.FieldMiddleName, domain.FieldLastName,
		domain.FieldGender, domain.FieldMaritalStatus, domain.FieldFatherName, domain.FieldMotherName,
		domain.FieldOccupation, domain.FieldIncomeRange, domain.FieldPEPStatus, domain.FieldResidentStatus,
		domain.FieldBirthCountry, domain.FieldBirthCity, domain.FieldNationality,
		domain.FieldAddressLine1, domain.FieldAddressLine2, domain.FieldAddressLine3,
		domain.FieldCity, domain.FieldState, domain.FieldPincode, domain.FieldCountry,
		domain.FieldPermAddressLine1, domain.FieldPermAddressLine2, domain.FieldPermAddressLine3,
		domain.FieldPermCity, domain.FieldPermState, domain.FieldPermPincode, domain.FieldPermCountry,
	)
	put(StageFATCA,
		domain.FieldFATCAAddressLine, domain.FieldFATCACity, domain.FieldFATCAState,
		domain.FieldFATCAPincode, domain.FieldFATCACountry, domain.FieldTIN,
		domain.FieldTaxResidency, domain.FieldIsUSPerson, domain.FieldFATCADeclared,
	)
	put(StageAccountType, domain.FieldTier, domain.FieldFundManager)
	put(StageScheme,
		domain.FieldTier1Mode, domain.FieldTier1Scheme, domain.FieldTier1Amount,
		domain.FieldTier1Equity, domain.FieldTier1CorpDebt, domain.FieldTier1GovtSec, domain.FieldTier1AltAssets,
		domain.FieldTier2Mode, domain.FieldTier2Scheme, domain.FieldTier2Amount,
		domain.FieldTier2Equity, domain.FieldTier2CorpDebt, domain.FieldTier2GovtSec, domain.FieldTier2AltAssets,
		domain.FieldSchemeAgreed,
	)
	put(StageReview, domain.FieldReviewDeclared)
	return m
}

var mirrorOwners = map[domain.MirrorKind]Stage{
	domain.MirrorResidentAddress: StagePersonal,
	domain.MirrorTier2Scheme:     StageScheme,
	domain.MirrorBank:            StageBank,
	domain.MirrorNominee:         StageNominee,
}
