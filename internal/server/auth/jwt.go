// Package auth mints and reads device secrets. A secret is an HS256 token
// naming its device; the server still compares it byte for byte with the
// stored copy, the signature only lets garbage be rejected without a lookup.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/booksync/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const nonceBytes = 16

// Claims carries the device id next to the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	DeviceID string
}

// GenerateDeviceSecret mints a fresh secret for deviceID. Secrets do not
// expire; deactivating the device revokes them.
func GenerateDeviceSecret(deviceID string, secretKey []byte) (string, error) {
	nonce, err := common.RandomToken(nonceBytes)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       nonce,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
		DeviceID: deviceID,
	})

	return token.SignedString(secretKey)
}

// DeviceIDFromSecret checks the signature of a presented secret and returns
// the device it was minted for.
func DeviceIDFromSecret(secret string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(secret, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) || errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return "", common.ErrInvalidToken
		}
		return "", err
	}

	if !token.Valid || claims.DeviceID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.DeviceID, nil
}
