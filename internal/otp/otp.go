// Package otp issues one-time codes bound to a hashed device token.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/pampermomma/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	codeDigits        = 6
	deviceTokenLength = 10
	digits            = "0123456789"
	deviceAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateCode returns a 6-digit numeric code.
func GenerateCode() (string, error) {
	return randomString(digits, codeDigits)
}

// GenerateDeviceToken returns a random alphanumeric token and its bcrypt
// hash. Only the hash is stored; the plain token goes back to the client.
func GenerateDeviceToken(cost int) (plain, hash string, err error) {
	plain, err = randomString(deviceAlphabet, deviceTokenLength)
	if err != nil {
		return "", "", err
	}

	h, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash device token: %w", err)
	}
	return plain, string(h), nil
}

// randomString draws n characters uniformly from alphabet.
func randomString(alphabet string, n int) (string, error) {
	limit := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to read random: %w", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}

// DeviceMatches reports whether token is the one hashed into r.
func DeviceMatches(r *models.OTPRequest, token string) bool {
	if token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(r.DeviceIdentity), []byte(token)) == nil
}

// Expired reports whether r is older than ttl at now.
func Expired(r *models.OTPRequest, ttl time.Duration, now time.Time) bool {
	return now.After(r.CreatedAt.Add(ttl))
}

// IsValid requires both a matching device token and an unexpired record.
func IsValid(r *models.OTPRequest, token string, ttl time.Duration, now time.Time) bool {
	return !Expired(r, ttl, now) && DeviceMatches(r, token)
}

// CodeEqual compares codes in constant time.
func CodeEqual(provided, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(stored)) == 1
}

func PasswordResetRef(email string) string {
	return "password-reset:" + models.NormalizeEmail(email)
}

func EmailVerificationRef(email string) string {
	return "email-verification:" + models.NormalizeEmail(email)
}

func WithdrawalRef(registryID, userID uuid.UUID) string {
	return "withdrawal:" + registryID.String() + ":" + userID.String()
}
