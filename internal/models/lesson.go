package models

import "time"

// Lesson represents a unit of course content.
type Lesson struct {
	ID        int64     `db:"id" json:"id"`
	CourseID  int64     `db:"course_id" json:"course_id"`
	Title     string    `db:"title" json:"title"`
	Content   *string   `db:"content" json:"content"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CreateLessonRequest is the payload for adding a lesson to a course.
type CreateLessonRequest struct {
	Title    string  `json:"title" validate:"required,max=255"`
	Content  *string `json:"content"`
	Position int     `json:"position" validate:"gte=0"`
}

// UpdateLessonRequest carries optional lesson mutations.
type UpdateLessonRequest struct {
	Title    *string `json:"title" validate:"omitempty,min=1,max=255"`
	Content  *string `json:"content"`
	Position *int    `json:"position" validate:"omitempty,gte=0"`
}
