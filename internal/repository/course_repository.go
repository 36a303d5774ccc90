package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupay/institute-ledger-api/internal/models"
)

// CourseRepository manages persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, institute_id, title, instructor, capacity, created_at, updated_at)
        VALUES (:id, :institute_id, :title, :instructor, :capacity, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// FindByID returns a course scoped to its institute.
func (r *CourseRepository) FindByID(ctx context.Context, instituteID, id string) (*models.Course, error) {
	const query = `SELECT id, institute_id, title, instructor, capacity, created_at, updated_at
        FROM courses WHERE id = $1 AND institute_id = $2`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id, instituteID); err != nil {
		return nil, err
	}
	return &course, nil
}

// ExistsByTitle checks whether the institute already has a course with the
// title, optionally excluding an ID.
func (r *CourseRepository) ExistsByTitle(ctx context.Context, instituteID, title, excludeID string) (bool, error) {
	query := "SELECT 1 FROM courses WHERE institute_id = $1 AND title = $2"
	args := []interface{}{instituteID, title}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course title: %w", err)
	}
	return true, nil
}

// Update replaces the course fields in place. The enrolled roster is not
// touched; lowering capacity never evicts enrolled students.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, instructor = :instructor, capacity = :capacity, updated_at = :updated_at
        WHERE id = :id AND institute_id = :institute_id`
	result, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a course and, by cascade, nothing else: enrollment records
// reference the institute and survive as immutable history.
func (r *CourseRepository) Delete(ctx context.Context, instituteID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1 AND institute_id = $2`, id, instituteID)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns courses with roster sizes for an institute.
func (r *CourseRepository) List(ctx context.Context, instituteID string, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	base := `FROM courses c WHERE c.institute_id = $1`
	args := []interface{}{instituteID}

	if filter.Search != "" {
		base += fmt.Sprintf(" AND (LOWER(c.title) LIKE $%d OR LOWER(c.instructor) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	allowedSorts := map[string]string{
		"title":      "c.title",
		"capacity":   "c.capacity",
		"created_at": "c.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "c.created_at"
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

	query := fmt.Sprintf(`SELECT c.id, c.institute_id, c.title, c.instructor, c.capacity, c.created_at, c.updated_at,
        (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS enrolled_count
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}
