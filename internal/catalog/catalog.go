// Package catalog holds the static reference data the workflow reads:
// fund managers, schemes, IFSC bank prefixes, net-banking banks and the
// postal-code directory.
package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Bucket is one of the four asset classes an allocation is split across.
type Bucket string

const (
	BucketEquity         Bucket = "E"
	BucketCorporateDebt  Bucket = "C"
	BucketGovtSecurities Bucket = "G"
	BucketAlternative    Bucket = "A"
)

// Buckets lists every bucket in display order.
var Buckets = []Bucket{BucketEquity, BucketCorporateDebt, BucketGovtSecurities, BucketAlternative}

type FundManager struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Code      string          `json:"code"`
	MinAmount decimal.Decimal `json:"min_amount"`
	Buckets   []Bucket        `json:"buckets"`
}

// Supports reports whether the manager offers bucket b.
func (f FundManager) Supports(b Bucket) bool {
	for _, s := range f.Buckets {
		if s == b {
			return true
		}
	}
	return false
}

type Scheme struct {
	ID        Bucket          `json:"id"`
	Name      string          `json:"name"`
	Risk      string          `json:"risk"`
	Return    string          `json:"return"`
	MinAmount decimal.Decimal `json:"min_amount"`
	// MaxShare is the bucket ceiling as displayed; empty means no limit.
	MaxShare string `json:"max_share,omitempty"`
}

var allBuckets = []Bucket{BucketEquity, BucketCorporateDebt, BucketGovtSecurities, BucketAlternative}
var noAlternative = []Bucket{BucketEquity, BucketCorporateDebt, BucketGovtSecurities}

var fundManagers = []FundManager{
	{ID: "SBI", Name: "SBI Pension Fund", Code: "SBI", MinAmount: decimal.NewFromInt(500), Buckets: allBuckets},
	{ID: "LIC", Name: "LIC Pension Fund", Code: "LIC", MinAmount: decimal.NewFromInt(500), Buckets: noAlternative},
	{ID: "UTI", Name: "UTI Retirement Solutions", Code: "UTI", MinAmount: decimal.NewFromInt(500), Buckets: allBuckets},
	{ID: "HDFC", Name: "HDFC Pension Fund", Code: "HDFC", MinAmount: decimal.NewFromInt(500), Buckets: allBuckets},
	{ID: "ICICI", Name: "ICICI Pru Pension Fund", Code: "ICI", MinAmount: decimal.NewFromInt(500), Buckets: allBuckets},
	{ID: "KOTAK", Name: "Kotak Pension Fund", Code: "KTK", MinAmount: decimal.NewFromInt(500), Buckets: allBuckets},
	{ID: "ADITYA", Name: "Aditya Birla Sun Life", Code: "ADI", MinAmount: decimal.NewFromInt(500), Buckets: allBuckets},
	{ID: "TATA", Name: "Tata Pension Management", Code: "TAT", MinAmount: decimal.NewFromInt(500), Buckets: allBuckets},
	{ID: "MAX", Name: "Max Life Pension Fund", Code: "MAX", MinAmount: decimal.NewFromInt(500), Buckets: noAlternative},
	{ID: "AXIS", Name: "Axis Pension Fund", Code: "AXI", MinAmount: decimal.NewFromInt(500), Buckets: allBuckets},
}

var schemes = []Scheme{
	{ID: BucketEquity, Name: "Scheme E (Equity)", Risk: "AGGRESSIVE", Return: "14.2%", MinAmount: decimal.NewFromInt(500)},
	{ID: BucketCorporateDebt, Name: "Scheme C (Corp Debt)", Risk: "MEDIUM", Return: "9.8%", MinAmount: decimal.NewFromInt(500)},
	{ID: BucketGovtSecurities, Name: "Scheme G (Govt Sec)", Risk: "CONSERVATIVE", Return: "8.1%", MinAmount: decimal.NewFromInt(500)},
	{ID: BucketAlternative, Name: "Scheme A (Alt Asset)", Risk: "AGGRESSIVE", Return: "11.5%", MinAmount: decimal.NewFromInt(500), MaxShare: "5%"},
}

// FundManagers returns a copy of the fund-manager list.
func FundManagers() []FundManager {
	out := make([]FundManager, len(fundManagers))
	copy(out, fundManagers)
	return out
}

// FundManagerByID looks a manager up by id, case-insensitively.
func FundManagerByID(id string) (FundManager, bool) {
	for _, f := range fundManagers {
		if strings.EqualFold(f.ID, id) {
			return f, true
		}
	}
	return FundManager{}, false
}

func Schemes() []Scheme {
	out := make([]Scheme, len(schemes))
	copy(out, schemes)
	return out
}

func SchemeByID(id string) (Scheme, bool) {
	for _, s := range schemes {
		if strings.EqualFold(string(s.ID), id) {
			return s, true
		}
	}
	return Scheme{}, false
}
