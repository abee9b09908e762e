package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/openlearnhq/lms-api/internal/authz"
	"github.com/openlearnhq/lms-api/internal/models"
	"github.com/openlearnhq/lms-api/internal/validation"
	appErrors "github.com/openlearnhq/lms-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) (*models.User, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type passwordHasher interface {
	HashPassword(password string) (string, error)
}

// UserList bundles a page of profiles with pagination metadata.
type UserList struct {
	Users      []models.UserProfile `json:"users"`
	Pagination models.Pagination    `json:"pagination"`
}

// UserService implements account administration. Listing and deletion are
// admin-only; users may read and update themselves.
type UserService struct {
	users  userRepository
	hasher passwordHasher
	logger *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(users userRepository, hasher passwordHasher, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, hasher: hasher, logger: logger}
}

// List returns a page of user profiles. Admin only.
func (s *UserService) List(ctx context.Context, actor authz.Actor, role, page, limit, search interface{}) (*UserList, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can list users")
	}

	pagination := validation.ValidatePagination(page, limit)
	filter := models.UserFilter{
		Search: validation.SanitizeSearch(search),
		Page:   pagination.Page,
		Limit:  pagination.Limit,
	}
	if raw, ok := role.(string); ok && raw != "" {
		r := models.Role(raw)
		if !r.Valid() {
			return nil, appErrors.Validation([]appErrors.FieldError{{Field: "role", Message: "Invalid role"}})
		}
		filter.Role = &r
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	profiles := make([]models.UserProfile, 0, len(users))
	for i := range users {
		profiles = append(profiles, profileOf(&users[i]))
	}

	pagination.Total = total
	pagination.TotalPages = int(math.Ceil(float64(total) / float64(pagination.Limit)))
	return &UserList{Users: profiles, Pagination: pagination}, nil
}

// Get returns a user profile. Admins may read anyone; others only
// themselves.
func (s *UserService) Get(ctx context.Context, actor authz.Actor, id int64) (*models.UserProfile, error) {
	if id <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidID, "")
	}
	if actor.Role != models.RoleAdmin && actor.ID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view other users")
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUserNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	profile := profileOf(user)
	return &profile, nil
}

// Update applies a partial update to a user. Role changes are reserved to
// admins; for everyone else the field is silently dropped. Emails are
// stored lowercase and must stay unique.
func (s *UserService) Update(ctx context.Context, actor authz.Actor, id int64, data map[string]interface{}) (*models.UserProfile, error) {
	if id <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidID, "")
	}
	if actor.Role != models.RoleAdmin && actor.ID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot update other users")
	}

	if actor.Role != models.RoleAdmin {
		filtered := make(map[string]interface{}, len(data))
		for k, v := range data {
			if k == "role" {
				continue
			}
			filtered[k] = v
		}
		data = filtered
	}

	result := validation.ValidateUpdateUser(data)
	if !result.Valid {
		return nil, appErrors.Validation(toFieldErrors(result.Errors))
	}

	updates := map[string]interface{}{}
	if raw, present := data["email"]; present {
		email := strings.ToLower(strings.TrimSpace(raw.(string)))
		taken, err := s.users.ExistsByEmail(ctx, email)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
		}
		if taken {
			current, err := s.users.FindByID(ctx, id)
			if err != nil || current.Email != email {
				return nil, appErrors.Clone(appErrors.ErrEmailExists, "")
			}
		}
		updates["email"] = email
	}
	if raw, present := data["name"]; present {
		updates["name"] = strings.TrimSpace(raw.(string))
	}
	if raw, present := data["password"]; present {
		hash, err := s.hasher.HashPassword(raw.(string))
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
	}
	if raw, present := data["role"]; present {
		updates["role"] = models.Role(raw.(string))
	}

	user, err := s.users.Update(ctx, id, updates)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUserNotFound, "")
		}
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrEmailExists, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	profile := profileOf(user)
	return &profile, nil
}

// Delete removes a user. Admin only; admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor authz.Actor, id int64) error {
	if id <= 0 {
		return appErrors.Clone(appErrors.ErrInvalidID, "")
	}
	if actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can delete users")
	}
	if actor.ID == id {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete your own account")
	}

	deleted, err := s.users.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrUserNotFound, "")
	}
	return nil
}
