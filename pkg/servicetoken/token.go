/**
 * @description
 * This package mints short-lived service-to-service credentials. The execution
 * worker runs long after the customer's own session may have expired, so it
 * authenticates to the account-service and transaction-service with its own
 * fixed non-human identity instead of forwarding the caller's token. A fresh
 * token is minted per processing attempt and never reused across transfers.
 */
package servicetoken

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const serviceSubject = "fund-transfer-service"

// Minter issues HS256-signed bearer tokens for the service identity.
type Minter struct {
	secret   []byte
	validity time.Duration
}

// NewMinter creates a Minter signing with the shared inter-service secret.
func NewMinter(secret string, validity time.Duration) *Minter {
	if validity <= 0 {
		validity = time.Hour
	}
	return &Minter{secret: []byte(secret), validity: validity}
}

// Mint returns a ready-to-send Authorization header value ("Bearer <token>").
func (m *Minter) Mint() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   serviceSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.validity)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}
	return "Bearer " + signed, nil
}
