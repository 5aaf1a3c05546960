package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/core"
)

const testSecret = "test-secret-0123456789"

func TestIssueAndVerify(t *testing.T) {
	userID := core.NewID()
	issuer := NewIssuer(testSecret, "expenses", time.Hour)

	token, exp, err := issuer.Issue(userID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	got, err := NewVerifier(testSecret, "expenses").Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestVerifyRejects(t *testing.T) {
	userID := core.NewID()
	good, _, err := NewIssuer(testSecret, "expenses", time.Hour).Issue(userID)
	require.NoError(t, err)

	expiredIssuer := NewIssuer(testSecret, "expenses", time.Hour)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := expiredIssuer.Issue(userID)
	require.NoError(t, err)

	foreign, _, err := NewIssuer("another-secret-9876543210", "expenses", time.Hour).Issue(userID)
	require.NoError(t, err)

	otherIssuer, _, err := NewIssuer(testSecret, "someone-else", time.Hour).Issue(userID)
	require.NoError(t, err)

	badSubject, _, err := NewIssuer(testSecret, "expenses", time.Hour).Issue("not-an-id")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    "expenses",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"absent", ""},
		{"malformed", "not.a.token"},
		{"garbage", "abc"},
		{"expired", expired},
		{"unrecognized key", foreign},
		{"wrong issuer", otherIssuer},
		{"invalid subject", badSubject},
		{"unsigned", none},
		{"tampered", good + "x"},
	}

	verifier := NewVerifier(testSecret, "expenses")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrUnauthenticated), "got %v", err)
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("testpassword")
	require.NoError(t, err)
	assert.NotEqual(t, "testpassword", hash)

	ok, err := CheckPassword(hash, "testpassword")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CheckPassword("not-a-hash", "x")
	assert.Error(t, err)
}
