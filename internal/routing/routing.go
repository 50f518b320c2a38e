// Package routing decides which enrollment path a PAN/mobile pair takes.
package routing

import "strings"

// Route is the enrollment path chosen for a PAN/mobile pair.
type Route string

const (
	RouteExistingAccount    Route = "EXISTING_ACCOUNT"
	RouteExternalKYCA       Route = "EXTERNAL_KYC_A"
	RouteExternalKYCB       Route = "EXTERNAL_KYC_B"
	RouteDirectContribution Route = "DIRECT_CONTRIBUTION"
)

// Markers are the trailing characters the decision keys on.
const (
	MarkerExisting = 'E'
	MarkerKYCA     = 'C'
	MarkerKYCB     = 'D'
	MarkerMobile   = '1'
	// MarkerMobileKYCB selects KYC-B when creating a new account over an
	// existing one.
	MarkerMobileKYCB = '2'
)

// ExistingNotice is shown when an existing account diverts the user to
// the contribution flow.
const ExistingNotice = "Existing PRAN detected. Redirecting to Contribution flow."

// DefaultNotice accompanies a direct-contribution route.
const DefaultNotice = "Based on PAN/Mobile rules, you are being redirected to the Contribution flow."

func last(s string) byte {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	c := s[len(s)-1]
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	return c
}

// Decide maps a PAN and mobile number to a route. It is pure and total:
// any input, including an unmapped PAN marker, yields a route.
func Decide(pan, mobile string) Route {
	p, m := last(pan), last(mobile)
	switch {
	case p == MarkerExisting:
		return RouteExistingAccount
	case p == MarkerKYCA && m == MarkerMobile:
		return RouteExternalKYCA
	case p == MarkerKYCB && m == MarkerMobile:
		return RouteExternalKYCB
	}
	return RouteDirectContribution
}

// ExistingCreateDecision is the outcome of choosing "create new anyway" on
// an existing account.
type ExistingCreateDecision struct {
	Route Route
	// ViaPrimaryOTP is set when the KYC route starts with a primary OTP
	// screen rather than the loader.
	ViaPrimaryOTP bool
	Notice        string
}

// RouteForExistingCreate re-routes by the mobile number's last digit.
func RouteForExistingCreate(mobile string) ExistingCreateDecision {
	switch last(mobile) {
	case MarkerMobile:
		return ExistingCreateDecision{Route: RouteExternalKYCA, ViaPrimaryOTP: true}
	case MarkerMobileKYCB:
		return ExistingCreateDecision{Route: RouteExternalKYCB, ViaPrimaryOTP: true}
	}
	return ExistingCreateDecision{Route: RouteDirectContribution, Notice: ExistingNotice}
}
