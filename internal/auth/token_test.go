package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("secret", time.Hour, "servicedesk-lite")

	raw, err := tokens.Issue("user-123")
	req.NoError(err)

	claims, err := tokens.Parse(raw)
	req.NoError(err)
	req.Equal("user-123", claims.UserID)
	req.Equal("user-123", claims.Subject)
	req.Equal("servicedesk-lite", claims.Issuer)
}

func TestParseRejects(t *testing.T) {
	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tokens := NewTokens("secret", time.Hour, "servicedesk-lite")
	tokens.now = func() time.Time { return issued }

	valid, err := tokens.Issue("user-1")
	require.NoError(t, err)

	otherSecret := NewTokens("other", time.Hour, "servicedesk-lite")
	otherSecret.now = tokens.now
	forged, err := otherSecret.Issue("user-1")
	require.NoError(t, err)

	otherIssuer := NewTokens("secret", time.Hour, "someone-else")
	otherIssuer.now = tokens.now
	wrongIssuer, err := otherIssuer.Issue("user-1")
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "user-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":      "not-a-jwt",
		"wrong secret": forged,
		"wrong issuer": wrongIssuer,
		"alg none":     noneAlg,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Parse(raw)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	t.Run("expired", func(t *testing.T) {
		tokens.now = func() time.Time { return issued.Add(2 * time.Hour) }
		_, err := tokens.Parse(valid)
		require.ErrorIs(t, err, ErrInvalidToken)
		require.ErrorIs(t, err, jwt.ErrTokenExpired)
	})
}
