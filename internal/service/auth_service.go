package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/openlearnhq/lms-api/internal/models"
	"github.com/openlearnhq/lms-api/internal/validation"
	appErrors "github.com/openlearnhq/lms-api/pkg/errors"
)

const bcryptCost = 12

type authUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

type outboxAppender interface {
	Append(ctx context.Context, topic string, payload interface{}) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	Secret     string
	Expiration time.Duration
}

// AuthService provides registration, login and token verification.
type AuthService struct {
	users     authUserRepository
	outbox    outboxAppender
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserRepository, outbox outboxAppender, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.Expiration <= 0 {
		config.Expiration = 24 * time.Hour
	}
	return &AuthService{users: users, outbox: outbox, validator: validate, logger: logger, config: config}
}

// HashPassword hashes a plaintext password with bcrypt.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext matches the stored hash.
func (s *AuthService) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken issues an HS256 access token for the user. The expiry is
// always issued-at plus the configured lifetime.
func (s *AuthService) GenerateToken(user *models.User) (string, error) {
	now := time.Now().UTC()
	claims := models.TokenClaims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Expiration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}
	return signed, nil
}

// VerifyToken parses and validates an access token, distinguishing expired
// tokens from malformed or forged ones.
func (s *AuthService) VerifyToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrTokenExpired, "token has expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	if !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

// Register creates an account from an untrusted payload and returns the
// issued token alongside the public profile. Emails are stored lowercase.
// Self-registration is limited to student and instructor roles; admin
// accounts are granted through the user admin API.
func (s *AuthService) Register(ctx context.Context, data map[string]interface{}) (*models.AuthResponse, error) {
	result := validation.ValidateCreateUser(data)
	if !result.Valid {
		return nil, appErrors.Validation(toFieldErrors(result.Errors))
	}

	email := strings.ToLower(strings.TrimSpace(data["email"].(string)))
	name := strings.TrimSpace(data["name"].(string))
	password := data["password"].(string)
	role := models.RoleStudent
	if raw, ok := data["role"].(string); ok {
		role = models.Role(raw)
	}
	if role == models.RoleAdmin {
		return nil, appErrors.Validation([]appErrors.FieldError{{Field: "role", Message: "Role must be student or instructor"}})
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrEmailExists, "")
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Email: email, PasswordHash: hash, Name: name, Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrEmailExists, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	if s.outbox != nil {
		if err := s.outbox.Append(ctx, models.TopicUserRegistered, map[string]interface{}{
			"user_id": user.ID,
			"email":   user.Email,
			"role":    user.Role,
		}); err != nil {
			s.logger.Warn("failed to record registration event", zap.Error(err))
		}
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Token: token, User: profileOf(user)}, nil
}

// Login authenticates a user and returns an issued token. Lookup failures
// and password mismatches are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if !s.CheckPassword(user.PasswordHash, req.Password) {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Token: token, User: profileOf(user)}, nil
}

// Profile returns the public projection of the authenticated user.
func (s *AuthService) Profile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUserNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	profile := profileOf(user)
	return &profile, nil
}

func profileOf(user *models.User) models.UserProfile {
	return models.UserProfile{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

func toFieldErrors(errs []validation.FieldError) []appErrors.FieldError {
	out := make([]appErrors.FieldError, 0, len(errs))
	for _, e := range errs {
		out = append(out, appErrors.FieldError{Field: e.Field, Message: e.Message})
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
