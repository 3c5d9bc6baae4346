package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/quotaledger/internal/clock"
	"github.com/smallbiznis/quotaledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T, issuer string) (*Verifier, *clock.FakeClock) {
	t.Helper()
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	v, err := NewVerifier(config.Config{AuthJWTSecret: "s3cret", AuthJWTIssuer: issuer}, fake)
	require.NoError(t, err)
	return v, fake
}

func TestVerifyRoundTrip(t *testing.T) {
	v, _ := newTestVerifier(t, "ministry")

	token, err := v.Issue("regulator-1", "regulator", time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "regulator-1", id.Subject)
	assert.Equal(t, "regulator", id.Role)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v, fake := newTestVerifier(t, "")

	token, err := v.Issue("holder-a", "", time.Minute)
	require.NoError(t, err)

	fake.Advance(2 * time.Minute)
	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignSignatureAndIssuer(t *testing.T) {
	v, _ := newTestVerifier(t, "ministry")

	other, _ := newTestVerifier(t, "someone-else")
	token, err := other.Issue("holder-a", "", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "holder-a",
			Issuer:    "ministry",
			ExpiresAt: jwt.NewNumericDate(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)),
		},
	})
	raw, err := forged.SignedString([]byte("wrong"))
	require.NoError(t, err)
	_, err = v.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRequiresExpiryAndSubject(t *testing.T) {
	v, _ := newTestVerifier(t, "")

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "holder-a"},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = v.Verify(noExp)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSub, err := v.Issue(" ", "", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(noSub)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier(config.Config{}, clock.NewSystemClock())
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer  abc "))
	assert.Empty(t, BearerToken("Basic abc"))
	assert.Empty(t, BearerToken(""))
}
