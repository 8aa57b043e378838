package otp

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidLink = errors.New("invalid or expired link")

// LinkClaims are embedded in emailed links so the frontend can finish a
// reset or verification in one request.
type LinkClaims struct {
	Email          string `json:"email"`
	OTP            string `json:"otp"`
	DeviceIdentity string `json:"device_identity"`
	jwt.RegisteredClaims
}

func SignLink(secret, email, code, deviceToken string, ttl time.Duration, now time.Time) (string, error) {
	claims := LinkClaims{
		Email:          email,
		OTP:            code,
		DeviceIdentity: deviceToken,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign link token: %w", err)
	}
	return s, nil
}

func ParseLink(secret, raw string) (*LinkClaims, error) {
	var claims LinkClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidLink
	}
	if claims.Email == "" || claims.OTP == "" || claims.DeviceIdentity == "" {
		return nil, ErrInvalidLink
	}
	return &claims, nil
}
