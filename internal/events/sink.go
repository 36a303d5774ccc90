// Package events delivers mutation notifications to external consumers.
// Publishing happens after a mutation commits and is best effort: a failed
// publish is logged, never surfaced, and never rolls anything back.
package events

import (
	"context"
	"time"
)

// Event types emitted by the services.
const (
	TypeInstituteCreated    = "institute.created"
	TypeCourseAdded         = "course.added"
	TypeCourseUpdated       = "course.updated"
	TypeCourseRemoved       = "course.removed"
	TypeAdminAdded          = "institute.admin_added"
	TypeBalanceWithdrawn    = "institute.balance_withdrawn"
	TypeStudentCreated      = "student.created"
	TypeStudentFunded       = "student.funded"
	TypeEnrollmentRequested = "enrollment.requested"
	TypeStudentEnrolled     = "enrollment.created"
	TypeGrantRequested      = "grant.requested"
	TypeGrantApproved       = "grant.approved"
)

// Event describes one committed mutation.
type Event struct {
	Type        string      `json:"type"`
	InstituteID string      `json:"institute_id,omitempty"`
	EntityID    string      `json:"entity_id"`
	Payload     interface{} `json:"payload,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// Sink receives events after successful mutations.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// NopSink discards every event.
type NopSink struct{}

// Publish implements Sink.
func (NopSink) Publish(context.Context, Event) error {
	return nil
}
