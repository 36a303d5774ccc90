package models

import "time"

// Enrollment is the immutable record created once per successful enrollment.
// Student name is copied at enrollment time so the record stays stable when
// the student profile changes; there are no live cross-aggregate references.
type Enrollment struct {
	ID          string    `db:"id" json:"id"`
	InstituteID string    `db:"institute_id" json:"institute_id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	StudentName string    `db:"student_name" json:"student_name"`
	FeePaid     int64     `db:"fee_paid" json:"fee_paid"`
	EnrolledOn  string    `db:"enrolled_on" json:"enrolled_on"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// EnrollmentRequest is a pending intent to enroll. It never checks capacity
// or balance and may be pruned independently of enrollments.
type EnrollmentRequest struct {
	ID          string    `db:"id" json:"id"`
	InstituteID string    `db:"institute_id" json:"institute_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	HomeAddress string    `db:"home_address" json:"home_address"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	CourseID  string
	StudentID string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
