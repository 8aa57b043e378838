package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pampermomma/backend/internal/config"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/models"
	"github.com/pampermomma/backend/internal/otp"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken         = errors.New("a user with that email already exists")
	ErrWrongPassword      = errors.New("the old password is not correct")
	ErrPhoneTaken         = errors.New("this phone number is already in use")
	ErrEmailDelivery      = errors.New("failed to send OTP")
	ErrPasswordNotAllowed = errors.New("password cannot be empty")
)

// otpFlow describes one email-confirmed flow: how its reference is built,
// which email it sends and where the emailed link points.
type otpFlow struct {
	ref     func(email string) string
	send    func(ctx context.Context, email, code, link string) error
	linkURL string
}

type AccountService struct {
	db    *gorm.DB
	cfg   *config.Config
	otps  *OTPService
	auth  *AuthService
	email EmailSender
	now   func() time.Time

	passwordReset     otpFlow
	emailVerification otpFlow
}

func NewAccountService(db *gorm.DB, cfg *config.Config, otps *OTPService, auth *AuthService, email EmailSender) *AccountService {
	s := &AccountService{
		db:    db,
		cfg:   cfg,
		otps:  otps,
		auth:  auth,
		email: email,
		now:   time.Now,
	}
	s.passwordReset = otpFlow{
		ref:     otp.PasswordResetRef,
		send:    email.PasswordResetOTP,
		linkURL: cfg.FrontendPasswordResetURL,
	}
	s.emailVerification = otpFlow{
		ref:     otp.EmailVerificationRef,
		send:    email.EmailVerificationOTP,
		linkURL: cfg.FrontendVerifyEmailURL,
	}
	return s
}

func (s *AccountService) Signup(req *dto.SignupRequest) (*models.User, error) {
	email := models.NormalizeEmail(req.Email)

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:     email,
		Password:  hash,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		IsActive:  true,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

func (s *AccountService) Profile(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.Preload("PhoneNumber").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *AccountService) UpdateProfile(userID uuid.UUID, req *dto.UpdateProfileRequest) (*models.User, error) {
	updates := map[string]interface{}{}
	if req.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*req.LastName)
	}
	if len(updates) > 0 {
		if err := s.db.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update profile: %w", err)
		}
	}
	return s.Profile(userID)
}

func (s *AccountService) ChangePassword(userID uuid.UUID, req *dto.ChangePasswordRequest) error {
	user, err := s.Profile(userID)
	if err != nil {
		return err
	}
	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)) != nil {
		return ErrWrongPassword
	}
	return s.setPassword(s.db, user.ID, req.NewPassword)
}

// AddPhoneNumber sets or replaces the user's phone number. A changed number
// must be verified again.
func (s *AccountService) AddPhoneNumber(userID uuid.UUID, req *dto.AddPhoneNumberRequest) (*models.PhoneNumber, error) {
	mobile := strings.TrimSpace(req.Mobile)

	var phone models.PhoneNumber
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.PhoneNumber{}).
			Where("mobile = ? AND user_id <> ?", mobile, userID).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrPhoneTaken
		}

		err := tx.Where("user_id = ?", userID).First(&phone).Error
		switch {
		case err == nil:
			return tx.Model(&phone).Updates(map[string]interface{}{
				"mobile":      mobile,
				"is_verified": false,
			}).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			phone = models.PhoneNumber{UserID: userID, Mobile: mobile}
			return tx.Create(&phone).Error
		default:
			return err
		}
	})
	if err != nil {
		if errors.Is(err, ErrPhoneTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save phone number: %w", err)
	}
	phone.Mobile = mobile
	phone.IsVerified = false
	return &phone, nil
}

func (s *AccountService) SendPasswordResetOTP(ctx context.Context, email string) (string, error) {
	return s.sendOTP(ctx, s.passwordReset, email)
}

func (s *AccountService) VerifyPasswordResetOTP(req *dto.VerifyOTPRequest) error {
	return s.otps.Verify(s.passwordReset.ref(req.Email), req.OTP, req.DeviceIdentity)
}

func (s *AccountService) ResetPassword(req *dto.ResetPasswordRequest) error {
	ref := s.passwordReset.ref(req.Email)
	if err := s.otps.Consume(ref, req.DeviceIdentity); err != nil {
		return err
	}
	return s.completePasswordReset(ref, req.Email, req.NewPassword)
}

func (s *AccountService) ResetPasswordWithToken(req *dto.ResetPasswordWithTokenRequest) error {
	claims, err := otp.ParseLink(s.cfg.JWTSecret, req.Token)
	if err != nil {
		return err
	}
	ref := s.passwordReset.ref(claims.Email)
	if err := s.otps.Verify(ref, claims.OTP, claims.DeviceIdentity); err != nil {
		return err
	}
	return s.completePasswordReset(ref, claims.Email, req.NewPassword)
}

func (s *AccountService) SendEmailVerificationOTP(ctx context.Context, email string) (string, error) {
	return s.sendOTP(ctx, s.emailVerification, email)
}

func (s *AccountService) VerifyEmailVerificationOTP(req *dto.VerifyOTPRequest) error {
	return s.otps.Verify(s.emailVerification.ref(req.Email), req.OTP, req.DeviceIdentity)
}

func (s *AccountService) VerifyEmail(req *dto.VerifyEmailRequest) error {
	ref := s.emailVerification.ref(req.Email)
	if err := s.otps.Consume(ref, req.DeviceIdentity); err != nil {
		return err
	}
	return s.completeEmailVerification(ref, req.Email)
}

func (s *AccountService) VerifyEmailWithToken(req *dto.VerifyEmailWithTokenRequest) error {
	claims, err := otp.ParseLink(s.cfg.JWTSecret, req.Token)
	if err != nil {
		return err
	}
	ref := s.emailVerification.ref(claims.Email)
	if err := s.otps.Verify(ref, claims.OTP, claims.DeviceIdentity); err != nil {
		return err
	}
	return s.completeEmailVerification(ref, claims.Email)
}

func (s *AccountService) sendOTP(ctx context.Context, flow otpFlow, email string) (string, error) {
	email = models.NormalizeEmail(email)
	user, err := s.findByEmail(email)
	if err != nil {
		return "", err
	}

	code, device, err := s.otps.Issue(flow.ref(email))
	if err != nil {
		return "", err
	}

	link := ""
	if flow.linkURL != "" {
		token, err := otp.SignLink(s.cfg.JWTSecret, user.Email, code, device, s.otps.TTL(), s.now())
		if err != nil {
			return "", err
		}
		link = strings.TrimRight(flow.linkURL, "/") + "/?token=" + token
	}

	if err := flow.send(ctx, user.Email, code, link); err != nil {
		slog.Error("failed to send otp email", "user_id", user.ID.String(), "action", "send_otp", "error", err.Error())
		return "", ErrEmailDelivery
	}
	return device, nil
}

func (s *AccountService) completePasswordReset(ref, email, newPassword string) error {
	user, err := s.findByEmail(email)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.setPassword(tx, user.ID, newPassword); err != nil {
			return err
		}
		return s.otps.Purge(tx, ref)
	})
}

func (s *AccountService) completeEmailVerification(ref, email string) error {
	user, err := s.findByEmail(email)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Update("email_verified", true).Error; err != nil {
			return fmt.Errorf("failed to verify email: %w", err)
		}
		return s.otps.Purge(tx, ref)
	})
}

func (s *AccountService) setPassword(tx *gorm.DB, userID uuid.UUID, password string) error {
	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("password", hash).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return s.auth.RevokeAll(tx, userID)
}

func (s *AccountService) hashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrPasswordNotAllowed
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (s *AccountService) findByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", models.NormalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ToProfileResponse renders the caller's own account.
func ToProfileResponse(user *models.User) dto.ProfileResponse {
	resp := dto.ProfileResponse{
		ID:            user.ID,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		EmailVerified: user.EmailVerified,
		IsActive:      user.IsActive,
		DateJoined:    user.CreatedAt,
		LastLogin:     user.LastLogin,
	}
	if user.PhoneNumber != nil {
		resp.PhoneNumber = &dto.PhoneNumberResponse{
			Mobile:     user.PhoneNumber.Mobile,
			IsVerified: user.PhoneNumber.IsVerified,
		}
	}
	return resp
}
