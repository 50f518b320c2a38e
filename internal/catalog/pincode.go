package catalog

import "strings"

// PincodeResult separates "not a pincode" (Valid=false) from "valid but
// not in the directory" (Valid=true, Found=false).
type PincodeResult struct {
	Pincode string `json:"pincode"`
	Valid   bool   `json:"valid"`
	Found   bool   `json:"found"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

type place struct {
	city, state string
}

var pincodes = map[string]place{
	"400001": {"Mumbai", "Maharashtra"},
	"110001": {"New Delhi", "Delhi"},
	"560001": {"Bengaluru", "Karnataka"},
	"600001": {"Chennai", "Tamil Nadu"},
	"700001": {"Kolkata", "West Bengal"},
	"500001": {"Hyderabad", "Telangana"},
	"411001": {"Pune", "Maharashtra"},
	"302001": {"Jaipur", "Rajasthan"},
}

// LookupPincode strips non-digits, keeps the first six and resolves them
// against the directory.
func LookupPincode(pin string) PincodeResult {
	var b strings.Builder
	for _, r := range pin {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			if b.Len() == 6 {
				break
			}
		}
	}
	clean := b.String()
	if len(clean) != 6 {
		return PincodeResult{Pincode: clean}
	}
	p, ok := pincodes[clean]
	if !ok {
		return PincodeResult{Pincode: clean, Valid: true, Country: "India"}
	}
	return PincodeResult{Pincode: clean, Valid: true, Found: true, City: p.city, State: p.state, Country: "India"}
}
