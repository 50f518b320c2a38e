package catalog

import "strings"

var ifscPrefixes = map[string]string{
	"HDFC": "HDFC BANK LIMITED",
	"ICIC": "ICICI BANK LIMITED",
	"SBIN": "STATE BANK OF INDIA",
	"UTIB": "AXIS BANK LIMITED",
	"BARB": "BANK OF BARODA",
}

// BankNameForIFSC derives a display bank name from the first four
// characters of an IFSC. Unknown prefixes get a placeholder label; inputs
// shorter than four characters yield "".
func BankNameForIFSC(ifsc string) string {
	ifsc = strings.ToUpper(strings.TrimSpace(ifsc))
	if len(ifsc) < 4 {
		return ""
	}
	prefix := ifsc[:4]
	if name, ok := ifscPrefixes[prefix]; ok {
		return name
	}
	return "FOUND BANK " + prefix
}

// KnownIFSCPrefix reports whether prefix is in the lookup table.
func KnownIFSCPrefix(prefix string) bool {
	_, ok := ifscPrefixes[strings.ToUpper(prefix)]
	return ok
}

// NetBankingBank is a bank offered on the net-banking landing page.
type NetBankingBank struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Popular bool   `json:"popular"`
}

var netBankingBanks = []NetBankingBank{
	{Code: "SBI", Name: "SBI", Popular: true},
	{Code: "HDFC", Name: "HDFC", Popular: true},
	{Code: "ICICI", Name: "ICICI", Popular: true},
	{Code: "AXIS", Name: "AXIS", Popular: true},
	{Code: "KOTAK", Name: "KOTAK", Popular: true},
	{Code: "BOB", Name: "Bank of Baroda"},
	{Code: "CANARA", Name: "Canara Bank"},
	{Code: "UNION", Name: "Union Bank of India"},
	{Code: "INDIAN", Name: "Indian Bank"},
	{Code: "CBI", Name: "Central Bank of India"},
	{Code: "BOI", Name: "Bank of India"},
	{Code: "UCO", Name: "UCO Bank"},
	{Code: "IOB", Name: "Indian Overseas Bank"},
	{Code: "PSB", Name: "Punjab & Sind Bank"},
	{Code: "IDBI", Name: "IDBI Bank"},
	{Code: "YES", Name: "Yes Bank"},
	{Code: "INDUSIND", Name: "IndusInd Bank"},
	{Code: "FEDERAL", Name: "Federal Bank"},
	{Code: "SIB", Name: "South Indian Bank"},
	{Code: "KVB", Name: "Karur Vysya Bank"},
	{Code: "RBL", Name: "RBL Bank"},
	{Code: "CUB", Name: "City Union Bank"},
	{Code: "DCB", Name: "DCB Bank"},
	{Code: "JKB", Name: "Jammu & Kashmir Bank"},
	{Code: "BANDHAN", Name: "Bandhan Bank"},
	{Code: "AUSFB", Name: "AU Small Finance Bank"},
	{Code: "UJJIVAN", Name: "Ujjivan Small Finance Bank"},
	{Code: "EQUITAS", Name: "Equitas Small Finance Bank"},
}

func NetBankingBanks() []NetBankingBank {
	out := make([]NetBankingBank, len(netBankingBanks))
	copy(out, netBankingBanks)
	return out
}

// NetBankingBankByCode matches on code or display name.
func NetBankingBankByCode(code string) (NetBankingBank, bool) {
	for _, b := range netBankingBanks {
		if strings.EqualFold(b.Code, code) || strings.EqualFold(b.Name, code) {
			return b, true
		}
	}
	return NetBankingBank{}, false
}
