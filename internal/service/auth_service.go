package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/pdb-slot-api/internal/models"
	appErrors "github.com/noah-isme/pdb-slot-api/pkg/errors"
)

type lecturerLookup interface {
	Get(ctx context.Context, nip string) (*models.Lecturer, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
	AdminUsername     string
	AdminPassword     string
}

// AuthService authenticates the administrator and lecturers and issues access tokens.
type AuthService struct {
	lecturers lecturerLookup
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	adminHash []byte
}

// NewAuthService constructs an AuthService instance. The admin password is
// hashed once here so the plain text is not kept around.
func NewAuthService(lecturers lecturerLookup, validate *validator.Validate, logger *zap.Logger, config AuthConfig) (*AuthService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 12 * time.Hour
	}
	svc := &AuthService{lecturers: lecturers, validator: validate, logger: logger, config: config}
	if config.AdminUsername != "" && config.AdminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(config.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		svc.adminHash = hash
	}
	svc.config.AdminPassword = ""
	return svc, nil
}

// Login authenticates the administrator by username or a lecturer by NIP.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	info, err := s.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}

	issuedAt := time.Now().UTC()
	accessToken, err := s.generateAccessToken(info, issuedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	s.logger.Info("login succeeded", zap.String("user_id", info.ID), zap.String("role", string(info.Role)))

	return &models.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		User:        info,
	}, nil
}

func (s *AuthService) authenticate(ctx context.Context, req models.LoginRequest) (models.UserInfo, error) {
	invalid := appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")

	if s.adminHash != nil && subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.config.AdminUsername)) == 1 {
		if err := bcrypt.CompareHashAndPassword(s.adminHash, []byte(req.Password)); err != nil {
			return models.UserInfo{}, invalid
		}
		return models.UserInfo{ID: s.config.AdminUsername, Name: "Administrator", Role: models.RoleAdmin}, nil
	}

	lecturer, err := s.lecturers.Get(ctx, req.Username)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return models.UserInfo{}, invalid
		}
		return models.UserInfo{}, wrapStoreErr(err, "failed to fetch lecturer")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(lecturer.PasswordHash), []byte(req.Password)); err != nil {
		return models.UserInfo{}, invalid
	}
	snapshot := lecturer.Snapshot()
	return models.UserInfo{ID: lecturer.NIP, Name: snapshot.DisplayName, Title: snapshot.Title, Role: models.RoleLecturer}, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	switch claims.Role {
	case models.RoleAdmin, models.RoleLecturer:
	default:
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token role")
	}

	return claims, nil
}

func (s *AuthService) generateAccessToken(user models.UserInfo, issuedAt time.Time) (string, error) {
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessTokenSecret))
}
