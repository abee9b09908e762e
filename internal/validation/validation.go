// Package validation checks and normalizes untrusted request input before
// it reaches a service. Unlike struct-tag validation, these functions
// operate on the raw decoded JSON object and accumulate every violation.
package validation

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/openlearnhq/lms-api/internal/models"
)

// FieldError is a single violated rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Result accumulates all violations found; callers decide via Valid.
type Result struct {
	Valid  bool
	Errors []FieldError
}

func (r *Result) add(field, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, FieldError{Field: field, Message: message})
}

func newResult() Result {
	return Result{Valid: true}
}

// emailPattern is deliberately permissive: one "@" with a non-empty local
// part and a dotted domain.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateCreateUser checks a registration payload.
func ValidateCreateUser(data map[string]any) Result {
	res := newResult()

	email, ok := data["email"].(string)
	if !ok || !emailPattern.MatchString(email) {
		res.add("email", "Invalid email format")
	}

	validateName(data, &res, true)

	password, ok := data["password"].(string)
	if !ok || len(password) < 6 {
		res.add("password", "Password must be at least 6 characters")
	}

	validateRole(data, &res)

	return res
}

// ValidateUpdateUser checks a user update payload; every field is optional
// but must be well-formed when present.
func ValidateUpdateUser(data map[string]any) Result {
	res := newResult()

	if raw, present := data["email"]; present {
		email, ok := raw.(string)
		if !ok || !emailPattern.MatchString(email) {
			res.add("email", "Invalid email format")
		}
	}

	if _, present := data["name"]; present {
		validateName(data, &res, false)
	}

	if raw, present := data["password"]; present {
		password, ok := raw.(string)
		if !ok || len(password) < 6 {
			res.add("password", "Password must be at least 6 characters")
		}
	}

	validateRole(data, &res)

	return res
}

// ValidateCreateCourse checks a course creation payload.
func ValidateCreateCourse(data map[string]any) Result {
	res := newResult()

	title, ok := data["title"].(string)
	if !ok || strings.TrimSpace(title) == "" {
		res.add("title", "Title is required and must be a string")
	} else if len(title) > 255 {
		res.add("title", "Title must be at most 255 characters")
	}

	validateDescription(data, &res)

	if cents := NormalizePrice(data["price_cents"]); cents == nil || *cents < 0 {
		res.add("price_cents", "Price must be a non-negative integer")
	}

	validateInstructorID(data, &res)

	return res
}

// ValidateUpdateCourse checks a partial course update payload.
func ValidateUpdateCourse(data map[string]any) Result {
	res := newResult()

	if raw, present := data["title"]; present {
		title, ok := raw.(string)
		if !ok {
			res.add("title", "Title is required and must be a string")
		} else if strings.TrimSpace(title) == "" {
			res.add("title", "Title cannot be empty")
		} else if len(title) > 255 {
			res.add("title", "Title must be at most 255 characters")
		}
	}

	validateDescription(data, &res)

	if raw, present := data["price_cents"]; present {
		if cents := NormalizePrice(raw); cents == nil || *cents < 0 {
			res.add("price_cents", "Price must be a non-negative integer")
		}
	}

	validateInstructorID(data, &res)

	return res
}

func validateName(data map[string]any, res *Result, required bool) {
	raw, present := data["name"]
	if !present {
		if required {
			res.add("name", "Name is required")
		}
		return
	}
	name, ok := raw.(string)
	if !ok || strings.TrimSpace(name) == "" {
		res.add("name", "Name is required")
		return
	}
	if len(name) > 255 {
		res.add("name", "Name must be at most 255 characters")
	}
}

func validateRole(data map[string]any, res *Result) {
	raw, present := data["role"]
	if !present {
		return
	}
	role, ok := raw.(string)
	if !ok || !models.Role(role).Valid() {
		res.add("role", "Invalid role")
	}
}

func validateDescription(data map[string]any, res *Result) {
	raw, present := data["description"]
	if !present || raw == nil {
		return
	}
	if _, ok := raw.(string); !ok {
		res.add("description", "Description must be a string")
	}
}

func validateInstructorID(data map[string]any, res *Result) {
	raw, present := data["instructor_id"]
	if !present {
		return
	}
	id, ok := toInt64(raw)
	if !ok || id <= 0 {
		res.add("instructor_id", "Instructor id must be a positive integer")
	}
}

// NormalizePrice converts a number or numeric string into integer cents.
// Whole values are treated as already-in-cents; fractional values are read
// as decimal currency and rounded half-up to the nearest cent. Returns nil
// for non-finite, non-numeric, or absent input.
func NormalizePrice(value any) *int64 {
	var f float64
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}

	var cents int64
	if f == math.Trunc(f) {
		cents = int64(f)
	} else {
		// Half-up at the cent; the epsilon absorbs float representation
		// drift so 49.995 lands on 5000.
		cents = int64(math.Floor(f*100 + 0.5 + 1e-9))
	}
	return &cents
}

// ValidatePagination derives page and limit from raw query values. It
// clamps to defaults instead of rejecting: page defaults to 1, limit to
// 10; an unparsable, non-positive, or >100 limit resets to 10.
func ValidatePagination(page, limit any) models.Pagination {
	p := models.Pagination{Page: 1, Limit: 10}

	if v, ok := toInt64(page); ok && v >= 1 {
		p.Page = int(v)
	}
	if v, ok := toInt64(limit); ok && v >= 1 && v <= 100 {
		p.Limit = int(v)
	}

	return p
}

// SanitizeSearch returns the trimmed search term, or "" when the value is
// not a string or trims to empty. Non-string values are dropped silently
// rather than treated as an error.
func SanitizeSearch(value any) string {
	s, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}
