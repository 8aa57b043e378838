package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/pampermomma/backend/internal/config"
	"github.com/pampermomma/backend/internal/models"
	"github.com/pampermomma/backend/internal/otp"
	"gorm.io/gorm"
)

var (
	ErrInvalidOTP     = errors.New("invalid or expired OTP")
	ErrOTPNotVerified = errors.New("OTP not verified or has expired")
)

// OTPService stores one-time codes per purpose reference. A flow issues a
// code, verifies it (flipping IsVerified), then consumes the verified record
// and purges the reference once the guarded action succeeds.
type OTPService struct {
	db         *gorm.DB
	ttl        time.Duration
	bcryptCost int
	now        func() time.Time
}

func NewOTPService(db *gorm.DB, cfg *config.Config) *OTPService {
	return &OTPService{
		db:         db,
		ttl:        cfg.OTPTTL(),
		bcryptCost: cfg.BcryptCost,
		now:        time.Now,
	}
}

func (s *OTPService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a record for ref and returns the code and the plain device
// token the client must present later.
func (s *OTPService) Issue(ref string) (code, deviceToken string, err error) {
	code, err = otp.GenerateCode()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate otp: %w", err)
	}
	deviceToken, hash, err := otp.GenerateDeviceToken(s.bcryptCost)
	if err != nil {
		return "", "", err
	}

	record := models.OTPRequest{
		Ref:            ref,
		OTP:            code,
		DeviceIdentity: hash,
		CreatedAt:      s.now(),
	}
	if err := s.db.Create(&record).Error; err != nil {
		return "", "", fmt.Errorf("failed to store otp: %w", err)
	}
	return code, deviceToken, nil
}

// CheckCode finds the newest record for ref with the given code and requires it
// to be valid for deviceToken. It does not change the record.
func (s *OTPService) CheckCode(ref, code, deviceToken string) (*models.OTPRequest, error) {
	var records []models.OTPRequest
	if err := s.db.Where("ref = ?", ref).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load otp: %w", err)
	}
	for i := range records {
		if !otp.CodeEqual(code, records[i].OTP) {
			continue
		}
		if !otp.IsValid(&records[i], deviceToken, s.ttl, s.now()) {
			return nil, ErrInvalidOTP
		}
		return &records[i], nil
	}
	return nil, ErrInvalidOTP
}

// Verify checks the code and marks the record verified.
func (s *OTPService) Verify(ref, code, deviceToken string) error {
	record, err := s.CheckCode(ref, code, deviceToken)
	if err != nil {
		return err
	}
	if err := s.db.Model(record).Update("is_verified", true).Error; err != nil {
		return fmt.Errorf("failed to mark otp verified: %w", err)
	}
	return nil
}

// Consume requires the newest verified record for ref to still be valid for
// deviceToken. The caller purges ref after the guarded action.
func (s *OTPService) Consume(ref, deviceToken string) error {
	var record models.OTPRequest
	err := s.db.Where("ref = ? AND is_verified = ?", ref, true).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOTPNotVerified
		}
		return fmt.Errorf("failed to load otp: %w", err)
	}
	if !otp.IsValid(&record, deviceToken, s.ttl, s.now()) {
		return ErrOTPNotVerified
	}
	return nil
}

// Purge deletes every record for ref using tx, which may be a transaction.
func (s *OTPService) Purge(tx *gorm.DB, ref string) error {
	if tx == nil {
		tx = s.db
	}
	return tx.Where("ref = ?", ref).Delete(&models.OTPRequest{}).Error
}
