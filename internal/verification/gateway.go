// Package verification defines the Verification Gateway contract the
// wizards depend on, a simulated implementation and the combined registry
// check used by the KYC loader.
package verification

import (
	"context"
	"time"
)

// Dispatch describes an OTP that was sent.
type Dispatch struct {
	Reference string    `json:"reference"`
	Mobile    string    `json:"mobile"`
	SentAt    time.Time `json:"sent_at"`
	// Code is only populated by simulated gateways.
	Code string `json:"-"`
}

// RegistryResult is the outcome of a registry lookup.
type RegistryResult struct {
	Registry string        `json:"registry"`
	Matched  bool          `json:"matched"`
	Latency  time.Duration `json:"latency"`
}

// Gateway is the external verification collaborator. Implementations may
// be slow; callers bound them with a context deadline.
type Gateway interface {
	SendOTP(ctx context.Context, mobile string) (Dispatch, error)
	VerifyOTP(ctx context.Context, mobile, code string) (bool, error)
	CheckIdentityRegistry(ctx context.Context, pan string) (RegistryResult, error)
	CheckMobileRegistry(ctx context.Context, mobile string) (RegistryResult, error)
}

// Registry names reported in results.
const (
	RegistryIdentity = "identity"
	RegistryMobile   = "mobile"
)
