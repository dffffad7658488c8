package jwt

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestService_RoundTrip(t *testing.T) {
	svc := NewService(testSecret, 15*time.Minute)

	token, expiresIn, err := svc.GenerateAccessToken("device-1", "farmer-1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), expiresIn)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "device-1", claims.DeviceID)
	assert.Equal(t, "farmer-1", claims.UserID)
	assert.Equal(t, "device-1", claims.Subject)
}

func TestService_Expired(t *testing.T) {
	svc := NewService(testSecret, time.Minute)
	issued := time.Now().Add(-time.Hour)
	svc.now = func() time.Time { return issued }

	token, _, err := svc.GenerateAccessToken("device-1", "farmer-1")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_WrongSecret(t *testing.T) {
	token, _, err := NewService(testSecret, time.Minute).GenerateAccessToken("device-1", "farmer-1")
	require.NoError(t, err)

	_, err = NewService("another-secret-another-secret-xx", time.Minute).ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		DeviceID: "device-1",
		UserID:   "farmer-1",
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, claims).SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewService(testSecret, time.Minute).ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_Garbage(t *testing.T) {
	_, err := NewService(testSecret, time.Minute).ValidateAccessToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
