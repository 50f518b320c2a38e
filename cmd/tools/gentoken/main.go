// Command gentoken mints an operator access token for local testing,
// skipping the login OTP.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pensionflow/pkg/config"
)

func main() {
	role := flag.String("role", "MEMBER", "operator entity (MEMBER or AMC)")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg := config.Load()
	if cfg.Env == "production" {
		fmt.Fprintln(os.Stderr, "refusing to mint tokens in production")
		os.Exit(1)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  fmt.Sprintf("%s//%s", *role, cfg.Auth.Username),
		"role": *role,
		"iat":  now.Unix(),
		"exp":  now.Add(*ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWT.Secret))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(signed)
}
