package models

import "time"

// Outbox event topics emitted by the services.
const (
	TopicUserRegistered   = "user.registered"
	TopicCourseCreated    = "course.created"
	TopicCourseUpdated    = "course.updated"
	TopicCourseDeleted    = "course.deleted"
	TopicCoursePublished  = "course.published"
	TopicEnrolled         = "enrollment.created"
	TopicCourseCompleted  = "enrollment.completed"
	TopicCertificateIssue = "certificate.issued"
)

// OutboxEvent is a pending integration event written in the same
// transaction scope as the domain mutation that produced it.
type OutboxEvent struct {
	ID           string     `db:"id" json:"id"`
	Topic        string     `db:"topic" json:"topic"`
	Payload      []byte     `db:"payload" json:"payload"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	DispatchedAt *time.Time `db:"dispatched_at" json:"dispatched_at,omitempty"`
}
