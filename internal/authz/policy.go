// Package authz holds the role-based decision functions consulted by every
// read/write path touching ownership-sensitive entities. Functions here are
// pure: they never touch storage and never return errors.
package authz

import "github.com/openlearnhq/lms-api/internal/models"

// Actor identifies the authenticated entity performing a request. A nil
// *Actor means the request is anonymous.
type Actor struct {
	ID   int64
	Role models.Role
}

// Scope describes which course rows a listing may return.
type Scope int

const (
	// ScopePublished restricts listings to published courses.
	ScopePublished Scope = iota
	// ScopeOwn restricts listings to courses owned by the actor.
	ScopeOwn
	// ScopeAll allows every row.
	ScopeAll
)

// CanViewCourse reports whether the actor may see the course. Callers must
// translate a false result into a not-found, never a forbidden, so that
// unpublished courses do not leak their existence.
func CanViewCourse(actor *Actor, course *models.Course) bool {
	if course == nil {
		return false
	}
	if course.Published {
		return true
	}
	if actor == nil {
		return false
	}
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleInstructor:
		return actor.ID == course.InstructorID
	case models.RoleStudent:
		return false
	}
	return false
}

// CanModifyCourse reports whether the actor may update or toggle the
// course. Students never qualify; instructors only for courses they own.
func CanModifyCourse(course *models.Course, actorID int64, role models.Role) bool {
	if course == nil {
		return false
	}
	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleInstructor:
		return actorID == course.InstructorID
	case models.RoleStudent:
		return false
	}
	return false
}

// CanDeleteCourse is admin-only, independent of ownership.
func CanDeleteCourse(role models.Role) bool {
	return role == models.RoleAdmin
}

// CanCreateCourse reports whether the role may create courses at all.
func CanCreateCourse(role models.Role) bool {
	switch role {
	case models.RoleAdmin, models.RoleInstructor:
		return true
	}
	return false
}

// FilterCourseUpdate strips fields the acting role is not allowed to set.
// instructor_id is honored only for admins; for everyone else it is
// silently removed from the update set, not rejected.
func FilterCourseUpdate(updates map[string]any, role models.Role) map[string]any {
	if role == models.RoleAdmin {
		return updates
	}
	filtered := make(map[string]any, len(updates))
	for k, v := range updates {
		if k == "instructor_id" {
			continue
		}
		filtered[k] = v
	}
	return filtered
}

// ListScope returns the widest course listing scope the actor may use.
// Anonymous actors and students see published rows only.
func ListScope(actor *Actor) Scope {
	if actor == nil {
		return ScopePublished
	}
	switch actor.Role {
	case models.RoleAdmin:
		return ScopeAll
	case models.RoleInstructor:
		return ScopeOwn
	}
	return ScopePublished
}
