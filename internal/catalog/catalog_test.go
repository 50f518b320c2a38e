package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBankNameForIFSC(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"HDFC0001234", "HDFC BANK LIMITED"},
		{"sbin0000001", "STATE BANK OF INDIA"},
		{"ZZZZ0000001", "FOUND BANK ZZZZ"},
		{"ABCD", "FOUND BANK ABCD"},
		{"HDF", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, BankNameForIFSC(tt.in))
		})
	}
}

func TestLookupPincode(t *testing.T) {
	found := LookupPincode("400001")
	assert.True(t, found.Valid)
	assert.True(t, found.Found)
	assert.Equal(t, "Mumbai", found.City)
	assert.Equal(t, "Maharashtra", found.State)

	unknown := LookupPincode("999999")
	assert.True(t, unknown.Valid)
	assert.False(t, unknown.Found)
	assert.Equal(t, "India", unknown.Country)

	invalid := LookupPincode("12a4")
	assert.False(t, invalid.Valid)

	// non-digits are stripped before the length check
	spaced := LookupPincode("560 001")
	assert.True(t, spaced.Found)
	assert.Equal(t, "560001", spaced.Pincode)
}

func TestFundManagers(t *testing.T) {
	all := FundManagers()
	require.Len(t, all, 10)

	lic, ok := FundManagerByID("lic")
	require.True(t, ok)
	assert.False(t, lic.Supports(BucketAlternative))
	assert.True(t, lic.Supports(BucketEquity))

	_, ok = FundManagerByID("NOPE")
	assert.False(t, ok)

	// returned slices are copies
	all[0].Name = "changed"
	again := FundManagers()
	assert.Equal(t, "SBI Pension Fund", again[0].Name)
}

func TestSchemesAndBanks(t *testing.T) {
	s, ok := SchemeByID("a")
	require.True(t, ok)
	assert.Equal(t, "5%", s.MaxShare)

	b, ok := NetBankingBankByCode("Canara Bank")
	require.True(t, ok)
	assert.Equal(t, "CANARA", b.Code)
	assert.True(t, KnownIFSCPrefix("utib"))
}
