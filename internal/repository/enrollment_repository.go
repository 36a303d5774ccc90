package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupay/institute-ledger-api/internal/ledger"
	"github.com/edupay/institute-ledger-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments and enrollment
// requests, including the atomic fee-escrow enrollment path.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// EnrollParams carries the inputs of one enrollment attempt.
type EnrollParams struct {
	InstituteID string
	CourseID    string
	StudentID   string
	EnrolledOn  string
	Now         time.Time
}

// EnrollAtomic performs capacity check, fee transfer and enrollment record
// creation as one transaction. Rows are locked course, institute, student in
// that order; any precondition failure rolls everything back, so no fee is
// taken without an enrollment and no enrollment exists without its fee.
// Failure modes: sql.ErrNoRows (course, institute or student missing),
// ErrCourseFull, ledger.ErrInsufficientBalance.
func (r *EnrollmentRepository) EnrollAtomic(ctx context.Context, p EnrollParams) (*models.Enrollment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enrollment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var course struct {
		Capacity int64 `db:"capacity"`
	}
	if err := tx.GetContext(ctx, &course, `SELECT capacity FROM courses WHERE id = $1 AND institute_id = $2 FOR UPDATE`,
		p.CourseID, p.InstituteID); err != nil {
		return nil, err
	}

	var enrolled int64
	if err := tx.GetContext(ctx, &enrolled, `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`, p.CourseID); err != nil {
		return nil, fmt.Errorf("count enrolled: %w", err)
	}
	if enrolled >= course.Capacity {
		return nil, ErrCourseFull
	}

	var institute struct {
		Fees    int64          `db:"fees"`
		Balance ledger.Balance `db:"balance"`
	}
	if err := tx.GetContext(ctx, &institute, `SELECT fees, balance FROM institutes WHERE id = $1 FOR UPDATE`,
		p.InstituteID); err != nil {
		return nil, err
	}

	var student struct {
		FullName string         `db:"full_name"`
		Balance  ledger.Balance `db:"balance"`
	}
	if err := tx.GetContext(ctx, &student, `SELECT full_name, balance FROM students WHERE id = $1 FOR UPDATE`,
		p.StudentID); err != nil {
		return nil, err
	}

	if err := ledger.Transfer(&student.Balance, &institute.Balance, institute.Fees); err != nil {
		return nil, err
	}

	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx, `UPDATE students SET balance = $2, updated_at = $3 WHERE id = $1`,
		p.StudentID, student.Balance, now); err != nil {
		return nil, fmt.Errorf("debit student: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE institutes SET balance = $2, updated_at = $3 WHERE id = $1`,
		p.InstituteID, institute.Balance, now); err != nil {
		return nil, fmt.Errorf("credit institute: %w", err)
	}

	enrollment := &models.Enrollment{
		ID:          uuid.NewString(),
		InstituteID: p.InstituteID,
		CourseID:    p.CourseID,
		StudentID:   p.StudentID,
		StudentName: student.FullName,
		FeePaid:     institute.Fees,
		EnrolledOn:  p.EnrolledOn,
		CreatedAt:   now,
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO enrollments (id, institute_id, course_id, student_id, student_name, fee_paid, enrolled_on, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		enrollment.ID, enrollment.InstituteID, enrollment.CourseID, enrollment.StudentID,
		enrollment.StudentName, enrollment.FeePaid, enrollment.EnrolledOn, enrollment.CreatedAt); err != nil {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment: %w", err)
	}
	return enrollment, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, institute_id, course_id, student_id, student_name, fee_paid, enrolled_on, created_at
        FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// List returns enrollments for an institute filtered by the provided criteria,
// ordered by enrollment time (the roster order).
func (r *EnrollmentRepository) List(ctx context.Context, instituteID string, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	base := `FROM enrollments e WHERE e.institute_id = $1`
	args := []interface{}{instituteID}

	if filter.CourseID != "" {
		base += fmt.Sprintf(" AND e.course_id = $%d", len(args)+1)
		args = append(args, filter.CourseID)
	}
	if filter.StudentID != "" {
		base += fmt.Sprintf(" AND e.student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.institute_id, e.course_id, e.student_id, e.student_name, e.fee_paid, e.enrolled_on, e.created_at
        %s ORDER BY e.created_at %s LIMIT %d OFFSET %d`, base, order, size, offset)

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// CreateRequest records an intent to enroll.
func (r *EnrollmentRepository) CreateRequest(ctx context.Context, request *models.EnrollmentRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollment_requests (id, institute_id, student_id, home_address, created_at)
        VALUES (:id, :institute_id, :student_id, :home_address, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create enrollment request: %w", err)
	}
	return nil
}

// ListRequests returns pending enrollment requests for an institute.
func (r *EnrollmentRepository) ListRequests(ctx context.Context, instituteID string) ([]models.EnrollmentRequest, error) {
	const query = `SELECT id, institute_id, student_id, home_address, created_at
        FROM enrollment_requests WHERE institute_id = $1 ORDER BY created_at`
	var requests []models.EnrollmentRequest
	if err := r.db.SelectContext(ctx, &requests, query, instituteID); err != nil {
		return nil, fmt.Errorf("list enrollment requests: %w", err)
	}
	return requests, nil
}

// DeleteRequest prunes a pending enrollment request.
func (r *EnrollmentRepository) DeleteRequest(ctx context.Context, instituteID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM enrollment_requests WHERE id = $1 AND institute_id = $2`, id, instituteID)
	if err != nil {
		return fmt.Errorf("delete enrollment request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment request: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
