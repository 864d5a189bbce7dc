// Package jwt issues and verifies the session tokens of bistro users.
package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/KretovDmitry/bistro/internal/models/claims"
	"github.com/golang-jwt/jwt/v4"
)

// Issuer is stamped into every token and required on the way back.
const Issuer = "bistro"

const bearer = "Bearer "

// BuildString signs a session token for userID and returns it with the Bearer scheme.
func BuildString(userID int, secret string, tokenExp time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims.Auth{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   strconv.Itoa(userID),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenExp)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
	})

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return bearer + signed, nil
}

// GetUserID verifies the token and returns the user it was issued to.
func GetUserID(tokenString, secret string) (int, error) {
	c := new(claims.Auth)

	token, err := jwt.ParseWithClaims(strings.TrimPrefix(tokenString, bearer), c,
		func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return 0, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return 0, errors.New("invalid token")
	}

	if !c.VerifyIssuer(Issuer, true) {
		return 0, fmt.Errorf("unexpected issuer %q", c.Issuer)
	}

	if c.UserID <= 0 {
		return 0, errors.New("token without user")
	}

	// Subject and uid are written together; a mismatch means the token was not ours.
	if c.Subject != strconv.Itoa(c.UserID) {
		return 0, fmt.Errorf("subject %q does not match user %d", c.Subject, c.UserID)
	}

	return c.UserID, nil
}
