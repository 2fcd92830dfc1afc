package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func buildClaims(t *testing.T, mutate func(*jwt.Builder) *jwt.Builder) jwt.Token {
	t.Helper()
	now := time.Now()
	b := jwt.NewBuilder().
		Issuer("backend-cargo").
		Audience([]string{"cargotrack-frontend"}).
		Subject("42").
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(15 * time.Minute))
	if mutate != nil {
		b = mutate(b)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	return tok
}

func cargoValidator() TokenValidator {
	return TokenValidator{
		Issuer:    "backend-cargo",
		Audience:  "cargotrack-frontend",
		ClockSkew: time.Second,
		Algorithm: jwa.HS256,
	}
}

func TestTokenValidatorAccepts(t *testing.T) {
	tok := buildClaims(t, nil)
	require.NoError(t, cargoValidator().Validate(tok, jwa.HS256, time.Now()))
}

func TestTokenValidatorIssuerMismatch(t *testing.T) {
	tok := buildClaims(t, func(b *jwt.Builder) *jwt.Builder {
		return b.Issuer("some-other-service")
	})
	require.Error(t, cargoValidator().Validate(tok, jwa.HS256, time.Now()))
}

func TestTokenValidatorAudienceMismatch(t *testing.T) {
	tok := buildClaims(t, func(b *jwt.Builder) *jwt.Builder {
		return b.Audience([]string{"mobile-app"})
	})
	require.Error(t, cargoValidator().Validate(tok, jwa.HS256, time.Now()))
}

func TestTokenValidatorExpired(t *testing.T) {
	tok := buildClaims(t, nil)
	require.Error(t, cargoValidator().Validate(tok, jwa.HS256, time.Now().Add(time.Hour)))
}

func TestTokenValidatorNotYetValid(t *testing.T) {
	tok := buildClaims(t, nil)
	require.Error(t, cargoValidator().Validate(tok, jwa.HS256, time.Now().Add(-time.Hour)))
}

func TestTokenValidatorAlgorithmMismatch(t *testing.T) {
	tok := buildClaims(t, nil)
	require.Error(t, cargoValidator().Validate(tok, jwa.RS256, time.Now()))
}
