package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openlearnhq/lms-api/internal/models"
)

func course(published bool, instructorID int64) *models.Course {
	return &models.Course{ID: 10, Published: published, InstructorID: instructorID}
}

func TestCanViewCourse(t *testing.T) {
	unpublished := course(false, 7)
	published := course(true, 7)

	assert.True(t, CanViewCourse(nil, published))
	assert.False(t, CanViewCourse(nil, unpublished))

	student := &Actor{ID: 3, Role: models.RoleStudent}
	assert.True(t, CanViewCourse(student, published))
	assert.False(t, CanViewCourse(student, unpublished))

	owner := &Actor{ID: 7, Role: models.RoleInstructor}
	other := &Actor{ID: 8, Role: models.RoleInstructor}
	assert.True(t, CanViewCourse(owner, unpublished))
	assert.False(t, CanViewCourse(other, unpublished))

	admin := &Actor{ID: 1, Role: models.RoleAdmin}
	assert.True(t, CanViewCourse(admin, unpublished))

	assert.False(t, CanViewCourse(admin, nil))
}

func TestCanModifyCourse(t *testing.T) {
	c := course(true, 7)

	assert.False(t, CanModifyCourse(c, 7, models.RoleStudent))
	assert.False(t, CanModifyCourse(c, 8, models.RoleInstructor))
	assert.True(t, CanModifyCourse(c, 7, models.RoleInstructor))
	assert.True(t, CanModifyCourse(c, 99, models.RoleAdmin))
	assert.False(t, CanModifyCourse(nil, 1, models.RoleAdmin))
}

func TestCanDeleteCourse(t *testing.T) {
	assert.True(t, CanDeleteCourse(models.RoleAdmin))
	assert.False(t, CanDeleteCourse(models.RoleInstructor))
	assert.False(t, CanDeleteCourse(models.RoleStudent))
}

func TestFilterCourseUpdate(t *testing.T) {
	updates := map[string]any{"title": "New", "instructor_id": 5}

	filtered := FilterCourseUpdate(updates, models.RoleInstructor)
	assert.NotContains(t, filtered, "instructor_id")
	assert.Contains(t, filtered, "title")

	kept := FilterCourseUpdate(updates, models.RoleAdmin)
	assert.Contains(t, kept, "instructor_id")
}

func TestListScope(t *testing.T) {
	assert.Equal(t, ScopePublished, ListScope(nil))
	assert.Equal(t, ScopePublished, ListScope(&Actor{ID: 2, Role: models.RoleStudent}))
	assert.Equal(t, ScopeOwn, ListScope(&Actor{ID: 2, Role: models.RoleInstructor}))
	assert.Equal(t, ScopeAll, ListScope(&Actor{ID: 2, Role: models.RoleAdmin}))
}
