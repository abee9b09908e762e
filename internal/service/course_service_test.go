package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openlearnhq/lms-api/internal/authz"
	"github.com/openlearnhq/lms-api/internal/models"
	appErrors "github.com/openlearnhq/lms-api/pkg/errors"
)

type mockCourseRepo struct {
	courses    map[int64]*models.Course
	nextID     int64
	lastFilter models.CourseFilter
	updates    map[string]interface{}
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{courses: map[int64]*models.Course{}, nextID: 1}
}

func (m *mockCourseRepo) add(course *models.Course) *models.Course {
	if course.ID == 0 {
		course.ID = m.nextID
		m.nextID++
	}
	m.courses[course.ID] = course
	return course
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.CreatedAt = time.Now().UTC()
	m.add(course)
	return nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	course, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *course
	return &copied, nil
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	m.lastFilter = filter
	var out []models.Course
	for _, course := range m.courses {
		if filter.PublishedOnly && !course.Published {
			continue
		}
		if filter.InstructorID != nil && course.InstructorID != *filter.InstructorID {
			continue
		}
		out = append(out, *course)
	}
	return out, len(out), nil
}

func (m *mockCourseRepo) Update(ctx context.Context, id int64, updates map[string]interface{}) (*models.Course, error) {
	course, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	m.updates = updates
	if title, ok := updates["title"].(string); ok {
		course.Title = title
	}
	if description, ok := updates["description"].(*string); ok {
		course.Description = description
	}
	if price, ok := updates["price_cents"].(int64); ok {
		course.PriceCents = price
	}
	if published, ok := updates["published"].(bool); ok {
		course.Published = published
	}
	if instructorID, ok := updates["instructor_id"].(int64); ok {
		course.InstructorID = instructorID
	}
	copied := *course
	return &copied, nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, id int64) (bool, error) {
	if _, ok := m.courses[id]; !ok {
		return false, nil
	}
	delete(m.courses, id)
	return true, nil
}

type staticCounter struct{ value int }

func (c staticCounter) CountByCourse(ctx context.Context, courseID int64) (int, error) {
	return c.value, nil
}

type staticQuizCounter struct{ quizzes, questions int }

func (c staticQuizCounter) CountsByCourse(ctx context.Context, courseID int64) (int, int, error) {
	return c.quizzes, c.questions, nil
}

type staticStats struct{ stats models.EnrollmentStats }

func (c staticStats) StatsByCourse(ctx context.Context, courseID int64) (*models.EnrollmentStats, error) {
	copied := c.stats
	return &copied, nil
}

type memoryCache struct {
	values map[string][]byte
	sets   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	c.sets++
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	delete(c.values, key)
	return nil
}

type courseFixture struct {
	svc     *CourseService
	courses *mockCourseRepo
	users   *mockUserRepo
	cache   *memoryCache
	outbox  *mockOutbox
}

func newCourseFixture() *courseFixture {
	courses := newMockCourseRepo()
	users := newMockUserRepo()
	cache := newMemoryCache()
	outbox := &mockOutbox{}
	svc := NewCourseService(
		courses,
		users,
		staticCounter{value: 3},
		staticQuizCounter{quizzes: 2, questions: 9},
		staticStats{stats: models.EnrollmentStats{Active: 4, Completed: 2, AverageProgress: 62.5}},
		staticCounter{value: 2},
		cache,
		outbox,
		zap.NewNop(),
		time.Minute,
	)
	return &courseFixture{svc: svc, courses: courses, users: users, cache: cache, outbox: outbox}
}

func TestCourseCreateForbiddenForStudents(t *testing.T) {
	f := newCourseFixture()

	_, err := f.svc.Create(context.Background(), authz.Actor{ID: 1, Role: models.RoleStudent}, map[string]interface{}{
		"title":       "Go",
		"price_cents": 0,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCourseCreateInstructorOwnsCourse(t *testing.T) {
	f := newCourseFixture()

	course, err := f.svc.Create(context.Background(), authz.Actor{ID: 7, Role: models.RoleInstructor}, map[string]interface{}{
		"title":         "Intro to Go",
		"description":   "  ",
		"price_cents":   49.99,
		"instructor_id": 99,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), course.InstructorID)
	assert.Equal(t, int64(4999), course.PriceCents)
	assert.Nil(t, course.Description)
	assert.Contains(t, f.outbox.topics, models.TopicCourseCreated)
}

func TestCourseCreateAlwaysStartsUnpublished(t *testing.T) {
	f := newCourseFixture()

	course, err := f.svc.Create(context.Background(), authz.Actor{ID: 7, Role: models.RoleInstructor}, map[string]interface{}{
		"title":       "Intro to Go",
		"price_cents": 0,
		"published":   true,
	})
	require.NoError(t, err)
	assert.False(t, course.Published)
}

func TestCourseCreateAdminAssignsInstructor(t *testing.T) {
	f := newCourseFixture()
	instructor := f.users.add(&models.User{Email: "teach@example.com", Name: "Teacher", Role: models.RoleInstructor})

	course, err := f.svc.Create(context.Background(), authz.Actor{ID: 1, Role: models.RoleAdmin}, map[string]interface{}{
		"title":         "Intro to Go",
		"price_cents":   0,
		"instructor_id": float64(instructor.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, instructor.ID, course.InstructorID)

	course, err = f.svc.Create(context.Background(), authz.Actor{ID: 1, Role: models.RoleAdmin}, map[string]interface{}{
		"title":         "Advanced Go",
		"price_cents":   0,
		"instructor_id": strconv.FormatInt(instructor.ID, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, instructor.ID, course.InstructorID)
}

func TestCourseGetHidesUnpublished(t *testing.T) {
	f := newCourseFixture()
	course := f.courses.add(&models.Course{Title: "Draft", InstructorID: 7})

	_, err := f.svc.Get(context.Background(), &authz.Actor{ID: 3, Role: models.RoleStudent}, course.ID)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrCourseNotFound.Code, appErr.Code)
	assert.Equal(t, 404, appErr.Status)

	got, err := f.svc.Get(context.Background(), &authz.Actor{ID: 7, Role: models.RoleInstructor}, course.ID)
	require.NoError(t, err)
	assert.Equal(t, course.ID, got.ID)
}

func TestCourseGetInvalidID(t *testing.T) {
	f := newCourseFixture()
	_, err := f.svc.Get(context.Background(), nil, 0)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidID.Code, appErrors.FromError(err).Code)
}

func TestCourseListScopes(t *testing.T) {
	f := newCourseFixture()
	f.courses.add(&models.Course{Title: "Published", Published: true, InstructorID: 7})
	f.courses.add(&models.Course{Title: "Draft", InstructorID: 7})

	list, err := f.svc.List(context.Background(), nil, nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, f.courses.lastFilter.PublishedOnly)
	assert.Len(t, list.Courses, 1)
	assert.Equal(t, 1, list.Pagination.Page)
	assert.Equal(t, 10, list.Pagination.Limit)
	assert.Equal(t, 1, list.Pagination.TotalPages)

	list, err = f.svc.List(context.Background(), &authz.Actor{ID: 7, Role: models.RoleInstructor}, "2", "50", nil)
	require.NoError(t, err)
	require.NotNil(t, f.courses.lastFilter.InstructorID)
	assert.Equal(t, int64(7), *f.courses.lastFilter.InstructorID)
	assert.Equal(t, 2, list.Pagination.Page)

	_, err = f.svc.List(context.Background(), &authz.Actor{ID: 1, Role: models.RoleAdmin}, nil, "500", nil)
	require.NoError(t, err)
	assert.False(t, f.courses.lastFilter.PublishedOnly)
	assert.Equal(t, 10, f.courses.lastFilter.Limit)
}

func TestCourseUpdateStripsInstructorForNonAdmins(t *testing.T) {
	f := newCourseFixture()
	course := f.courses.add(&models.Course{Title: "Go", Published: true, InstructorID: 7})

	updated, err := f.svc.Update(context.Background(), authz.Actor{ID: 7, Role: models.RoleInstructor}, course.ID, map[string]interface{}{
		"title":         "Go Advanced",
		"instructor_id": 99,
	})
	require.NoError(t, err)
	assert.Equal(t, "Go Advanced", updated.Title)
	assert.Equal(t, int64(7), updated.InstructorID)
	assert.NotContains(t, f.courses.updates, "instructor_id")
}

func TestCourseUpdateEmptySetReturnsCurrent(t *testing.T) {
	f := newCourseFixture()
	course := f.courses.add(&models.Course{Title: "Go", Published: true, InstructorID: 7})

	updated, err := f.svc.Update(context.Background(), authz.Actor{ID: 7, Role: models.RoleInstructor}, course.ID, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "Go", updated.Title)
}

func TestCourseUpdateForbiddenForOtherInstructor(t *testing.T) {
	f := newCourseFixture()
	course := f.courses.add(&models.Course{Title: "Go", Published: true, InstructorID: 7})

	_, err := f.svc.Update(context.Background(), authz.Actor{ID: 8, Role: models.RoleInstructor}, course.ID, map[string]interface{}{"title": "X"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCourseDeleteAdminOnly(t *testing.T) {
	f := newCourseFixture()
	course := f.courses.add(&models.Course{Title: "Go", Published: true, InstructorID: 7})

	err := f.svc.Delete(context.Background(), authz.Actor{ID: 7, Role: models.RoleInstructor}, course.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, f.svc.Delete(context.Background(), authz.Actor{ID: 1, Role: models.RoleAdmin}, course.ID))

	err = f.svc.Delete(context.Background(), authz.Actor{ID: 1, Role: models.RoleAdmin}, course.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCourseNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseOverviewAggregatesAndCaches(t *testing.T) {
	f := newCourseFixture()
	course := f.courses.add(&models.Course{Title: "Go", Published: true, InstructorID: 404})

	overview, err := f.svc.Overview(context.Background(), nil, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", overview.InstructorName)
	assert.Equal(t, 3, overview.LessonCount)
	assert.Equal(t, 4, overview.ActiveEnrollments)
	assert.Equal(t, 2, overview.CompletedEnrollments)
	assert.Equal(t, 63, overview.AverageProgress)
	assert.Equal(t, 2, overview.QuizCount)
	assert.Equal(t, 9, overview.QuestionCount)
	assert.Equal(t, 2, overview.CertificatesIssued)
	assert.Equal(t, 1, f.cache.sets)

	// Second read comes from the cache.
	again, err := f.svc.Overview(context.Background(), nil, course.ID)
	require.NoError(t, err)
	assert.Equal(t, overview.LessonCount, again.LessonCount)
	assert.Equal(t, 1, f.cache.sets)
}
