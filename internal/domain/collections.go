package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "pensionflow/pkg/errors"
)

func (r *Record) checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("%w: %d", apperrors.ErrIndexRange, i)
	}
	return nil
}

// SetBank writes one field of bank account i.
func (r *Record) SetBank(i int, f BankField, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.v.Frozen {
		return apperrors.ErrReadOnlyField
	}
	if err := r.checkIndex(i, len(r.v.Banks)); err != nil {
		return err
	}
	if i == 1 && r.v.Mirrors.Bank {
		return apperrors.Wrap(apperrors.ErrMirroredField, "bank 2")
	}

	b := &r.v.Banks[i]
	value = strings.TrimSpace(value)
	switch f {
	case BankIFSC:
		b.IFSC = strings.ToUpper(value)
	case BankAccountNumber:
		b.AccountNumber = value
	case BankAccountType:
		b.AccountType = value
	default:
		return apperrors.Wrap(apperrors.ErrUnknownField, string(f))
	}
	r.derive()
	return nil
}

// AddBank appends an empty account and returns its index. Adding an
// account switches the bank mirror off, leaving account 2 as it was.
func (r *Record) AddBank() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.v.Frozen {
		return 0, apperrors.ErrReadOnlyField
	}
	if len(r.v.Banks) >= MaxBanks {
		return 0, apperrors.Wrap(apperrors.ErrLimitReached, "Maximum 3 bank accounts allowed")
	}
	r.v.Mirrors.Bank = false
	r.v.Banks = append(r.v.Banks, BankAccount{AccountType: "Savings"})
	return len(r.v.Banks) - 1, nil
}

func (r *Record) RemoveBank(i int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.v.Frozen {
		return apperrors.ErrReadOnlyField
	}
	if err := r.checkIndex(i, len(r.v.Banks)); err != nil {
		return err
	}
	if len(r.v.Banks) <= 1 {
		return apperrors.Wrap(apperrors.ErrLimitReached, "at least one bank account is required")
	}
	if i <= 1 && r.v.Mirrors.Bank {
		return apperrors.Wrap(apperrors.ErrMirroredField, "bank 2")
	}
	r.v.Banks = append(r.v.Banks[:i], r.v.Banks[i+1:]...)
	r.derive()
	return nil
}

// SetNominee writes one field of nominee i.
func (r *Record) SetNominee(i int, f NomineeField, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.v.Frozen {
		return apperrors.ErrReadOnlyField
	}
	if err := r.checkIndex(i, len(r.v.Nominees)); err != nil {
		return err
	}
	if i > 0 && r.v.Mirrors.Nominee && f.mirrored() {
		return apperrors.Wrap(apperrors.ErrMirroredField, fmt.Sprintf("nominee %d %s", i+1, f))
	}

	n := &r.v.Nominees[i]
	value = strings.TrimSpace(value)
	switch f {
	case NomineeTitle:
		n.Title = value
	case NomineeFirstName:
		n.FirstName = value
	case NomineeMiddleName:
		n.MiddleName = value
	case NomineeLastName:
		n.LastName = value
	case NomineeRelation:
		n.Relation = value
	case NomineeDOB:
		n.DOB = value
	case NomineeShare:
		if value == "" {
			n.Share = decimal.Zero
			break
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return apperrors.Invalid("share", "must be a number")
		}
		n.Share = d
	default:
		return apperrors.Wrap(apperrors.ErrUnknownField, string(f))
	}
	r.derive()
	return nil
}

// AddNominee appends a nominee with a zero share. With the nominee mirror
// on the new entry is filled from nominee 1 immediately.
func (r *Record) AddNominee() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.v.Frozen {
		return 0, apperrors.ErrReadOnlyField
	}
	if len(r.v.Nominees) >= MaxNominees {
		return 0, apperrors.Wrap(apperrors.ErrLimitReached, "Maximum 3 nominees allowed")
	}
	r.v.Nominees = append(r.v.Nominees, Nominee{Share: decimal.Zero})
	r.derive()
	return len(r.v.Nominees) - 1, nil
}

func (r *Record) RemoveNominee(i int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.v.Frozen {
		return apperrors.ErrReadOnlyField
	}
	if err := r.checkIndex(i, len(r.v.Nominees)); err != nil {
		return err
	}
	if len(r.v.Nominees) <= 1 {
		return apperrors.Wrap(apperrors.ErrLimitReached, "at least one nominee is required")
	}
	r.v.Nominees = append(r.v.Nominees[:i], r.v.Nominees[i+1:]...)
	r.derive()
	return nil
}
