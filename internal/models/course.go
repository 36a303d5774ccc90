package models

import "time"

// Course belongs to exactly one institute. Title is unique per institute and
// serves as the course key; capacity is always positive. The enrolled roster
// lives in the enrollments table, ordered by enrollment time.
type Course struct {
	ID          string    `db:"id" json:"id"`
	InstituteID string    `db:"institute_id" json:"institute_id"`
	Title       string    `db:"title" json:"title"`
	Instructor  string    `db:"instructor" json:"instructor"`
	Capacity    int64     `db:"capacity" json:"capacity"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with its current roster size.
type CourseDetail struct {
	Course
	EnrolledCount int64 `db:"enrolled_count" json:"enrolled_count"`
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
