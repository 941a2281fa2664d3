package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/smallbiznis/periodpay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestDecodeWithoutVerification(t *testing.T) {
	d := NewDecoder(config.Config{}, zaptest.NewLogger(t))
	token := sign(t, "whatever", jwt.MapClaims{
		"userId":     "user-1",
		"username":   "amy",
		"email":      "amy@example.com",
		"locale":     "zh-TW",
		"avatar_uri": "https://cdn.example.com/a.png",
	})

	id, err := d.Decode("Bearer " + token)
	require.NoError(t, err)
	assert.False(t, d.Verifies())
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, "amy", id.Username)
	assert.Equal(t, "amy@example.com", id.Email)
	assert.Equal(t, "zh-TW", id.Locale)
	assert.Equal(t, "https://cdn.example.com/a.png", id.AvatarURI)
}

func TestDecodeAcceptsNumericUserIDAndBareToken(t *testing.T) {
	d := NewDecoder(config.Config{}, nil)
	token := sign(t, "x", jwt.MapClaims{"userId": 42, "email": "n@example.com"})

	id, err := d.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "42", id.UserID)
}

func TestDecodeMissingAndMalformed(t *testing.T) {
	d := NewDecoder(config.Config{}, nil)

	_, err := d.Decode("")
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = d.Decode("Bearer ")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = d.Decode("Bearer not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeVerifiesWhenSecretConfigured(t *testing.T) {
	d := NewDecoder(config.Config{IdentityJWTSecret: "s3cret"}, nil)
	require.True(t, d.Verifies())

	good := sign(t, "s3cret", jwt.MapClaims{"userId": "u1", "exp": time.Now().Add(time.Hour).Unix()})
	id, err := d.Decode("Bearer " + good)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)

	forged := sign(t, "other", jwt.MapClaims{"userId": "u1"})
	_, err = d.Decode("Bearer " + forged)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := sign(t, "s3cret", jwt.MapClaims{"userId": "u1", "exp": time.Now().Add(-time.Hour).Unix()})
	_, err = d.Decode("Bearer " + expired)
	require.ErrorIs(t, err, ErrInvalidToken)
}
