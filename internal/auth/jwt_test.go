package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", false},
		{"bearer abc", "abc", false},
		{"Bearer   spaced  ", "spaced", false},
		{"", "", true},
		{"Basic dXNlcjpwYXNz", "", true},
		{"Bearer", "", true},
		{"Bearer ", "", true},
	}
	for _, tt := range tests {
		got, err := ExtractToken(tt.header)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnauthorized, tt.header)
			continue
		}
		require.NoError(t, err, tt.header)
		assert.Equal(t, tt.want, got)
	}
}

func TestIssueAndVerify(t *testing.T) {
	v, err := NewVerifier("test-secret", "unfold")
	require.NoError(t, err)

	token, err := v.Issue("user-42", time.Hour)
	require.NoError(t, err)

	owner, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", owner)
}

func TestVerifyRejects(t *testing.T) {
	v, _ := NewVerifier("test-secret", "unfold")
	other, _ := NewVerifier("other-secret", "unfold")
	wrongIssuer, _ := NewVerifier("test-secret", "someone-else")

	expired := &Verifier{secret: []byte("test-secret"), issuer: "unfold", now: func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}}
	expiredToken, err := expired.Issue("user-42", time.Hour)
	require.NoError(t, err)

	forged, _ := other.Issue("user-42", time.Hour)
	foreign, _ := wrongIssuer.Issue("user-42", time.Hour)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-42",
		Issuer:    "unfold",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "user-42",
		Issuer:  "unfold",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "unfold",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":       "not-a-token",
		"expired":       expiredToken,
		"wrong secret":  forged,
		"wrong issuer":  foreign,
		"alg none":      none,
		"no expiry":     noExpiry,
		"empty subject": noSubject,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier("", "unfold")
	assert.Error(t, err)
}

func TestIssueRequiresOwner(t *testing.T) {
	v, _ := NewVerifier("test-secret", "unfold")
	_, err := v.Issue("", time.Hour)
	assert.Error(t, err)
}
