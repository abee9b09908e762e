package validation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePrice(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  *int64
	}{
		{"whole cents int", 4999, ptr(4999)},
		{"whole cents float", float64(4999), ptr(4999)},
		{"decimal currency", 49.99, ptr(4999)},
		{"decimal string", "49.99", ptr(4999)},
		{"half rounds up", 49.995, ptr(5000)},
		{"zero", float64(0), ptr(0)},
		{"nan", math.NaN(), nil},
		{"infinity", math.Inf(1), nil},
		{"nil", nil, nil},
		{"non numeric string", "invalid", nil},
		{"bool", true, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizePrice(tc.input)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tc.want, *got)
		})
	}
}

func TestValidatePagination(t *testing.T) {
	cases := []struct {
		name        string
		page, limit any
		wantPage    int
		wantLimit   int
	}{
		{"empty defaults", nil, nil, 1, 10},
		{"negative page clamps", "-5", nil, 1, 10},
		{"limit above max resets to default", nil, "150", 1, 10},
		{"zero limit resets", nil, "0", 1, 10},
		{"unparsable resets", "abc", "xyz", 1, 10},
		{"valid values", "3", "25", 3, 25},
		{"numeric values", float64(2), float64(100), 2, 100},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := ValidatePagination(tc.page, tc.limit)
			assert.Equal(t, tc.wantPage, p.Page)
			assert.Equal(t, tc.wantLimit, p.Limit)
		})
	}
}

func TestSanitizeSearch(t *testing.T) {
	assert.Equal(t, "golang", SanitizeSearch("  golang "))
	assert.Equal(t, "", SanitizeSearch("   "))
	assert.Equal(t, "", SanitizeSearch(42))
	assert.Equal(t, "", SanitizeSearch(nil))
}

func TestValidateCreateUser(t *testing.T) {
	res := ValidateCreateUser(map[string]any{
		"email":    "student@example.com",
		"name":     "Student",
		"password": "secret1",
		"role":     "student",
	})
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)

	res = ValidateCreateUser(map[string]any{
		"email":    "not-an-email",
		"name":     "  ",
		"password": "abc",
		"role":     "teacher",
	})
	require.False(t, res.Valid)
	assert.Len(t, res.Errors, 4)
	assert.Equal(t, "email", res.Errors[0].Field)
	assert.Equal(t, "Invalid email format", res.Errors[0].Message)
}

func TestValidateCreateUserMissingFields(t *testing.T) {
	res := ValidateCreateUser(map[string]any{})
	require.False(t, res.Valid)
	fields := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"email", "name", "password"}, fields)
}

func TestValidateCreateUserEmailShapes(t *testing.T) {
	invalid := []string{"a@b", "@example.com", "a@@example.com", "a b@example.com", "plain"}
	for _, email := range invalid {
		res := ValidateCreateUser(map[string]any{"email": email, "name": "N", "password": "secret1"})
		assert.False(t, res.Valid, "expected %q to be rejected", email)
	}
	res := ValidateCreateUser(map[string]any{"email": "a@sub.example.com", "name": "N", "password": "secret1"})
	assert.True(t, res.Valid)
}

func TestValidateCreateCourse(t *testing.T) {
	res := ValidateCreateCourse(map[string]any{
		"title":       "Intro to Go",
		"price_cents": 49.99,
	})
	assert.True(t, res.Valid)

	res = ValidateCreateCourse(map[string]any{})
	require.False(t, res.Valid)
	assert.Equal(t, "Title is required and must be a string", res.Errors[0].Message)

	res = ValidateCreateCourse(map[string]any{
		"title":         "T",
		"description":   42,
		"price_cents":   "invalid",
		"instructor_id": -1,
	})
	require.False(t, res.Valid)
	assert.Len(t, res.Errors, 3)
}

func TestValidateUpdateCourseTitleMessages(t *testing.T) {
	res := ValidateUpdateCourse(map[string]any{"title": "  "})
	require.False(t, res.Valid)
	assert.Equal(t, "Title cannot be empty", res.Errors[0].Message)

	res = ValidateUpdateCourse(map[string]any{"title": 7})
	require.False(t, res.Valid)
	assert.Equal(t, "Title is required and must be a string", res.Errors[0].Message)

	res = ValidateUpdateCourse(map[string]any{})
	assert.True(t, res.Valid)
}

func TestValidateUpdateCourseOptionalPrice(t *testing.T) {
	res := ValidateUpdateCourse(map[string]any{"price_cents": -5})
	assert.False(t, res.Valid)

	res = ValidateUpdateCourse(map[string]any{"price_cents": "19.90"})
	assert.True(t, res.Valid)
}

func ptr(v int64) *int64 { return &v }
