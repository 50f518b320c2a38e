// Package config loads and validates service configuration.
package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidateCore ensures critical configuration is present and usable.
func (c *Config) ValidateCore() error {
	var missing []string

	if strings.TrimSpace(c.Server.Port) == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" ||
		(c.Env == "production" && c.JWT.Secret == "change-this-secret") {
		missing = append(missing, "JWT_SECRET")
	}
	if strings.TrimSpace(c.Auth.PasswordHash) == "" &&
		(c.Env == "production" || c.Auth.Password == "") {
		missing = append(missing, "OPERATOR_PASSWORD_HASH")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return c.Workflow.Validate()
}

// Validate rejects timings the engine cannot run with. Countdowns and the
// gateway ceiling must be positive; delays and floors may be zero.
func (w WorkflowConfig) Validate() error {
	positive := []struct {
		key string
		d   time.Duration
	}{
		{"WF_MOBILE_OTP_TIMER", w.MobileOTPTimer},
		{"WF_LOGIN_OTP_TIMER", w.LoginOTPTimer},
		{"GATEWAY_TIMEOUT", w.GatewayTimeout},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("%s must be positive", p.key)
		}
	}

	delays := []struct {
		key string
		d   time.Duration
	}{
		{"WF_LOADER_FLOOR", w.LoaderFloor},
		{"WF_EXISTING_CHECK_FLOOR", w.ExistingCheckFloor},
		{"WF_REDIRECT_DELAY", w.RedirectDelay},
		{"WF_UPI_VERIFY_DELAY", w.UPIVerifyDelay},
		{"WF_BANK_LOGIN_DELAY", w.BankLoginDelay},
		{"WF_NETBANKING_OTP_DELAY", w.NetBankingOTPDelay},
		{"WF_ISSUANCE_DELAY", w.IssuanceDelay},
		{"WF_STATUS_AUTO_RESOLVE", w.StatusAutoResolve},
		{"WF_STATUS_REFRESH_DELAY", w.StatusRefreshDelay},
	}
	for _, p := range delays {
		if p.d < 0 {
			return fmt.Errorf("%s must not be negative", p.key)
		}
	}

	if w.GatewayLatencyMin < 0 || w.GatewayLatencyMax < w.GatewayLatencyMin {
		return fmt.Errorf("invalid gateway latency band: %s..%s", w.GatewayLatencyMin, w.GatewayLatencyMax)
	}
	return nil
}
