package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func TestTokenRoundTrip(t *testing.T) {
	token, exp, err := GenerateToken(secret, 7, "cashier", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.EqualValues(t, 7, claims.UserId)
	assert.Equal(t, "cashier", claims.Username)
}

func TestParseToken_Rejects(t *testing.T) {
	expired, _, err := GenerateToken(secret, 7, "cashier", -time.Minute)
	require.NoError(t, err)
	anonymous, _, err := GenerateToken(secret, 0, "nobody", time.Hour)
	require.NoError(t, err)
	foreign, _, err := GenerateToken([]byte("other"), 7, "cashier", time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"no user id":   anonymous,
		"wrong secret": foreign,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(secret, token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
