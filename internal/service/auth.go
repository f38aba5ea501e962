package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"portalproxy-backend/internal/components/chrono"

	"github.com/golang-jwt/jwt/v5"
)

type AuthConfig struct {
	// Secret is the HS256 key shared with the host application.
	Secret   string `json:"secret"`
	Issuer   string `json:"issuer"`
	Audience string `json:"audience"`
}

// Principal is an authenticated user of the host application.
type Principal struct {
	Subject string
}

var (
	errMissingToken = errors.New("missing bearer token")
	errNoSubject    = errors.New("token has no subject")
)

// Verifier checks the tokens the host application issues to its users.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	time     chrono.API
}

func NewVerifier(config AuthConfig, time chrono.API) (Verifier, error) {
	if config.Secret == "" {
		return Verifier{}, errors.New("auth secret is required")
	}
	return Verifier{
		secret:   []byte(config.Secret),
		issuer:   config.Issuer,
		audience: config.Audience,
		time:     time,
	}, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Verify validates an Authorization header value.
func (v Verifier) Verify(header string) (Principal, error) {
	token, ok := bearerToken(header)
	if !ok {
		return Principal{}, errMissingToken
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.time.Now),
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		options = append(options, jwt.WithAudience(v.audience))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, options...)
	if err != nil {
		return Principal{}, fmt.Errorf("verify token: %w", err)
	}
	if claims.Subject == "" {
		return Principal{}, errNoSubject
	}
	return Principal{Subject: claims.Subject}, nil
}

// Mint signs a token for `subject` that the verifier will accept until `ttl` passes.
func (v Verifier) Mint(subject string, ttl time.Duration) (string, error) {
	now := v.time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
