package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/openlearnhq/lms-api/internal/models"
	appErrors "github.com/openlearnhq/lms-api/pkg/errors"
)

type mockUserRepo struct {
	users        map[int64]*models.User
	byEmail      map[string]*models.User
	createErr    error
	nextID       int64
	createdUsers []*models.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:   map[int64]*models.User{},
		byEmail: map[string]*models.User{},
		nextID:  1,
	}
}

func (m *mockUserRepo) add(user *models.User) *models.User {
	if user.ID == 0 {
		user.ID = m.nextID
		m.nextID++
	}
	m.users[user.ID] = user
	m.byEmail[user.Email] = user
	return user
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	user.CreatedAt = time.Now().UTC()
	m.add(user)
	m.createdUsers = append(m.createdUsers, user)
	return nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := m.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, ok := m.byEmail[email]
	return ok, nil
}

type mockOutbox struct {
	topics []string
}

func (m *mockOutbox) Append(ctx context.Context, topic string, payload interface{}) error {
	m.topics = append(m.topics, topic)
	return nil
}

func newAuthService(repo *mockUserRepo, outbox *mockOutbox) *AuthService {
	return NewAuthService(repo, outbox, validator.New(), zap.NewNop(), AuthConfig{
		Secret:     "test-secret",
		Expiration: 24 * time.Hour,
	})
}

func TestRegisterStoresLowercaseEmail(t *testing.T) {
	repo := newMockUserRepo()
	outbox := &mockOutbox{}
	svc := newAuthService(repo, outbox)

	resp, err := svc.Register(context.Background(), map[string]interface{}{
		"email":    "Student@Example.COM",
		"name":     "Student",
		"password": "secret1",
		"role":     "student",
	})
	require.NoError(t, err)
	assert.Equal(t, "student@example.com", resp.User.Email)
	assert.NotEmpty(t, resp.Token)
	assert.Contains(t, outbox.topics, models.TopicUserRegistered)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	repo.add(&models.User{Email: "taken@example.com", Name: "First", Role: models.RoleStudent})
	svc := newAuthService(repo, &mockOutbox{})

	_, err := svc.Register(context.Background(), map[string]interface{}{
		"email":    "Taken@example.com",
		"name":     "Second",
		"password": "secret1",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrEmailExists.Code, appErr.Code)
	assert.Equal(t, 409, appErr.Status)
}

func TestRegisterAccumulatesValidationErrors(t *testing.T) {
	svc := newAuthService(newMockUserRepo(), &mockOutbox{})

	_, err := svc.Register(context.Background(), map[string]interface{}{
		"email":    "bad",
		"password": "ab",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Len(t, appErr.Details, 3)
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthService(repo, &mockOutbox{})

	_, err := svc.Register(context.Background(), map[string]interface{}{
		"email":    "boss@example.com",
		"name":     "Boss",
		"password": "secret1",
		"role":     "admin",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Len(t, appErr.Details, 1)
	assert.Equal(t, "role", appErr.Details[0].Field)
	assert.Empty(t, repo.createdUsers)

	resp, err := svc.Register(context.Background(), map[string]interface{}{
		"email":    "teach@example.com",
		"name":     "Teacher",
		"password": "secret1",
		"role":     "instructor",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleInstructor, resp.User.Role)
}

func TestHashPasswordSaltsAndVerifies(t *testing.T) {
	svc := newAuthService(newMockUserRepo(), &mockOutbox{})

	first, err := svc.HashPassword("secret1")
	require.NoError(t, err)
	second, err := svc.HashPassword("secret1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, svc.CheckPassword(first, "secret1"))
	assert.True(t, svc.CheckPassword(second, "secret1"))
	assert.False(t, svc.CheckPassword(first, "secret2"))
}

func TestLogin(t *testing.T) {
	repo := newMockUserRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.add(&models.User{Email: "student@example.com", PasswordHash: string(hash), Name: "Student", Role: models.RoleStudent})
	svc := newAuthService(repo, &mockOutbox{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "Student@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "student@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "missing@example.com", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestGenerateTokenLifetime(t *testing.T) {
	svc := newAuthService(newMockUserRepo(), &mockOutbox{})
	user := &models.User{ID: 42, Email: "student@example.com", Role: models.RoleStudent}

	token, err := svc.GenerateToken(user)
	require.NoError(t, err)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, int64(24*60*60), claims.ExpiresAt.Unix()-claims.IssuedAt.Unix())
}

func TestVerifyTokenDistinguishesFailures(t *testing.T) {
	svc := newAuthService(newMockUserRepo(), &mockOutbox{})

	_, err := svc.VerifyToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
	assert.True(t, errors.Is(err, jwt.ErrTokenMalformed))

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, models.TokenClaims{
		Email: "x@example.com",
		Role:  models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-48 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-24 * time.Hour)),
		},
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = svc.VerifyToken(signed)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTokenExpired.Code, appErrors.FromError(err).Code)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, models.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	forgedSigned, err := forged.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)
	_, err = svc.VerifyToken(forgedSigned)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
	assert.True(t, errors.Is(err, jwt.ErrTokenSignatureInvalid))
	assert.False(t, errors.Is(err, jwt.ErrTokenMalformed))
}

func TestProfile(t *testing.T) {
	repo := newMockUserRepo()
	user := repo.add(&models.User{Email: "student@example.com", PasswordHash: "hash", Name: "Student", Role: models.RoleStudent})
	svc := newAuthService(repo, &mockOutbox{})

	profile, err := svc.Profile(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, profile.Email)

	_, err = svc.Profile(context.Background(), 999)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUserNotFound.Code, appErrors.FromError(err).Code)
}
