package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pampermomma/backend/internal/config"
	"github.com/pampermomma/backend/internal/dto"
	"github.com/pampermomma/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("no active account found with the given credentials")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrInvalidAccessToken = errors.New("token is invalid or expired")
	ErrFederatedDisabled  = errors.New("federated sign-in is not configured")
	ErrFederatedNoEmail   = errors.New("federated identity has no email")
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountDeactivated = errors.New("account is deactivated")
)

const tokenTypeAccess = "access"

type AuthService struct {
	db        *gorm.DB
	cfg       *config.Config
	federated IdentityVerifier
	now       func() time.Time
}

// NewAuthService builds the service. federated may be nil when no identity
// provider is configured.
func NewAuthService(db *gorm.DB, cfg *config.Config, federated IdentityVerifier) *AuthService {
	return &AuthService{
		db:        db,
		cfg:       cfg,
		federated: federated,
		now:       time.Now,
	}
}

func (s *AuthService) FederatedEnabled() bool {
	return s.federated != nil
}

func (s *AuthService) Login(req *dto.LoginRequest) (*dto.AuthResponse, error) {
	var user models.User
	if err := s.db.Preload("PhoneNumber").Where("email = ?", models.NormalizeEmail(req.Email)).First(&user).Error; err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive || user.Password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.db.Model(&user).Update("last_login", now).Error; err != nil {
		slog.Warn("failed to record last login", "user_id", user.ID.String(), "error", err)
	}
	user.LastLogin = &now

	return s.generateTokenPair(&user)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *AuthService) Refresh(req *dto.RefreshRequest) (*dto.AuthResponse, error) {
	tokenHash := hashToken(req.Refresh)

	var stored models.RefreshToken
	if err := s.db.Where("token_hash = ? AND revoked = ?", tokenHash, false).First(&stored).Error; err != nil {
		return nil, ErrInvalidToken
	}

	if err := s.db.Model(&stored).Update("revoked", true).Error; err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if s.now().After(stored.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	var user models.User
	if err := s.db.Preload("PhoneNumber").First(&user, "id = ?", stored.UserID).Error; err != nil {
		return nil, ErrInvalidToken
	}
	if !user.IsActive {
		return nil, ErrInvalidToken
	}

	return s.generateTokenPair(&user)
}

// ParseAccessToken validates a locally issued access token and returns its
// subject.
func (s *AuthService) ParseAccessToken(raw string) (uuid.UUID, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidAccessToken
	}
	return SubjectFromClaims(token)
}

// SubjectFromClaims extracts the user id from a verified access token.
func SubjectFromClaims(token *jwt.Token) (uuid.UUID, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrInvalidAccessToken
	}
	if typ, _ := claims["typ"].(string); typ != tokenTypeAccess {
		return uuid.Nil, ErrInvalidAccessToken
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, ErrInvalidAccessToken
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrInvalidAccessToken
	}
	return id, nil
}

func (s *AuthService) Logout(req *dto.LogoutRequest) error {
	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ?", hashToken(req.Refresh)).
		Update("revoked", true).Error
}

// RevokeAll revokes every refresh token of a user, e.g. after a password
// change.
func (s *AuthService) RevokeAll(tx *gorm.DB, userID uuid.UUID) error {
	if tx == nil {
		tx = s.db
	}
	return tx.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
}

// AuthenticateFederated verifies an external ID token and resolves it to a
// local user, linking an existing account by email or provisioning a new one.
func (s *AuthService) AuthenticateFederated(ctx context.Context, rawToken string) (*models.User, error) {
	if s.federated == nil {
		return nil, ErrFederatedDisabled
	}

	identity, err := s.federated.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	email := models.NormalizeEmail(identity.Email)
	var user models.User
	q := s.db.Where("federated_uid = ?", identity.UID)
	if email != "" {
		q = q.Or("email = ?", email)
	}
	err = q.First(&user).Error

	switch {
	case err == nil:
		if !user.IsActive {
			return nil, ErrAccountDeactivated
		}
		if user.FederatedUID == nil || *user.FederatedUID != identity.UID || !user.EmailVerified {
			uid := identity.UID
			if err := s.db.Model(&user).Updates(map[string]interface{}{
				"federated_uid":  uid,
				"email_verified": true,
			}).Error; err != nil {
				return nil, fmt.Errorf("failed to link federated account: %w", err)
			}
			user.FederatedUID = &uid
			user.EmailVerified = true
		}
		return &user, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		if email == "" {
			return nil, ErrFederatedNoEmail
		}
		first, last := splitName(identity.Name)
		uid := identity.UID
		user = models.User{
			Email:         email,
			FirstName:     first,
			LastName:      last,
			FederatedUID:  &uid,
			EmailVerified: true,
			IsActive:      true,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create federated user: %w", err)
		}
		slog.Info("federated user provisioned", "user_id", user.ID.String())
		return &user, nil

	default:
		return nil, fmt.Errorf("failed to look up federated user: %w", err)
	}
}

func (s *AuthService) generateTokenPair(user *models.User) (*dto.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.generateRefreshToken(user)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		Access:  accessToken,
		Refresh: refreshToken,
		User:    ToUserResponse(user),
	}, nil
}

func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"typ":   tokenTypeAccess,
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.AccessTTL()).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) generateRefreshToken(user *models.User) (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	rawToken := base64.URLEncoding.EncodeToString(rawBytes)

	record := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: s.now().Add(s.cfg.RefreshTTL()),
	}
	if err := s.db.Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return rawToken, nil
}

func ToUserResponse(user *models.User) dto.UserResponse {
	resp := dto.UserResponse{
		ID:                  user.ID,
		FullName:            user.FullName(),
		Email:               user.Email,
		IsActive:            user.IsActive,
		DateJoined:          user.CreatedAt,
		LastLogin:           user.LastLogin,
		HasFederatedAccount: user.HasFederatedAccount(),
		HasPhoneNumber:      user.HasPhoneNumber(),
	}
	if user.HasPhoneNumber() {
		mobile := user.PhoneNumber.Mobile
		resp.PhoneNumber = &mobile
	}
	return resp
}

func splitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	parts := strings.SplitN(name, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}
