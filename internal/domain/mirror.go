package domain

import (
	"pensionflow/internal/catalog"
	apperrors "pensionflow/pkg/errors"
)

// SetMirror switches a "same as" derivation. Turning it on copies the
// source into the dependent fields at once and keeps them in step with
// later source edits. Turning it off leaves the dependent fields holding
// their last mirrored values.
func (r *Record) SetMirror(kind MirrorKind, on bool) error {
	if !kind.Valid() {
		return apperrors.Wrap(apperrors.ErrUnknownField, string(kind))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.v.Frozen {
		return apperrors.ErrReadOnlyField
	}
	if kind == MirrorBank && on && len(r.v.Banks) < 2 {
		r.v.Banks = append(r.v.Banks, BankAccount{})
	}
	r.v.Mirrors.set(kind, on)
	r.derive()
	return nil
}

// Mirror reports whether kind is on.
func (r *Record) Mirror(kind MirrorKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.v.Mirrors.On(kind)
}

// derive re-applies every derivation from its sources. Each runs one way
// only, so repeated calls are idempotent. Callers hold r.mu.
func (r *Record) derive() {
	v := &r.v

	if v.Tier1.Mode == ModeAuto {
		v.Tier1.Allocation = AutoPreset()
	}
	if v.Mirrors.Tier2Scheme {
		v.Tier2.Mode = v.Tier1.Mode
		v.Tier2.SchemeID = v.Tier1.SchemeID
		v.Tier2.Allocation = v.Tier1.Allocation
	} else if v.Tier2.Mode == ModeAuto {
		v.Tier2.Allocation = AutoPreset()
	}

	if v.Mirrors.ResidentAddress {
		v.ResidentAddress = v.PermanentAddress
	}

	p := v.PermanentAddress
	v.FATCA.AddressLine = p.Lines()
	v.FATCA.City = p.City
	v.FATCA.State = p.State
	v.FATCA.Pincode = p.Pincode
	v.FATCA.Country = p.Country
	v.FATCA.TaxResidency = "India"
	v.FATCA.IsUSPerson = "No"

	for i := range v.Banks {
		v.Banks[i].BankName = catalog.BankNameForIFSC(v.Banks[i].IFSC)
	}
	if v.Mirrors.Bank && len(v.Banks) >= 2 {
		v.Banks[1] = v.Banks[0]
	}

	if v.Mirrors.Nominee && len(v.Nominees) > 1 {
		src := v.Nominees[0]
		for i := 1; i < len(v.Nominees); i++ {
			n := &v.Nominees[i]
			n.Title = src.Title
			n.FirstName = src.FirstName
			n.MiddleName = src.MiddleName
			n.LastName = src.LastName
			n.Relation = src.Relation
			n.DOB = src.DOB
		}
	}
}
