package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupay/institute-ledger-api/internal/models"
)

func TestCourseRepositoryExistsByTitle(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM courses WHERE institute_id = $1 AND title = $2 LIMIT 1")).
		WithArgs("inst-1", "Calculus I").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByTitle(context.Background(), "inst-1", "Calculus I", "")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM courses WHERE institute_id = $1 AND title = $2 LIMIT 1")).
		WithArgs("inst-1", "Linear Algebra").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err = repo.ExistsByTitle(context.Background(), "inst-1", "Linear Algebra", "")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdateMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("UPDATE courses SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	course := &models.Course{ID: "missing", InstituteID: "inst-1", Title: "Calculus I", Instructor: "A. Byron", Capacity: 30}
	err := repo.Update(context.Background(), course)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE id = $1 AND institute_id = $2")).
		WithArgs("course-1", "inst-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "inst-1", "course-1"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE id = $1 AND institute_id = $2")).
		WithArgs("missing", "inst-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "inst-1", "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryDeleteKeepsEnrollmentHistory(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	courses := NewCourseRepository(db)
	enrollments := NewEnrollmentRepository(db)

	// Removing the course only touches the courses table; the enrollment
	// records written against it stay readable afterwards.
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE id = $1 AND institute_id = $2")).
		WithArgs("course-1", "inst-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, courses.Delete(context.Background(), "inst-1", "course-1"))

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "institute_id", "course_id", "student_id", "student_name", "fee_paid", "enrolled_on", "created_at"}).
		AddRow("enr-1", "inst-1", "course-1", "stu-1", "Ada Lovelace", int64(100), "2026-02-01", now)
	mock.ExpectQuery("SELECT e.id, e.institute_id").
		WithArgs("inst-1", "course-1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("inst-1", "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	kept, total, err := enrollments.List(context.Background(), "inst-1", models.EnrollmentFilter{CourseID: "course-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, kept, 1)
	assert.Equal(t, "course-1", kept[0].CourseID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListIncludesRosterSize(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "institute_id", "title", "instructor", "capacity", "created_at", "updated_at", "enrolled_count"}).
		AddRow("course-1", "inst-1", "Calculus I", "A. Byron", int64(30), now, now, int64(12))
	mock.ExpectQuery("SELECT c.id, c.institute_id").
		WithArgs("inst-1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("inst-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	courses, total, err := repo.List(context.Background(), "inst-1", models.CourseFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, courses, 1)
	assert.Equal(t, int64(12), courses[0].EnrolledCount)
	require.NoError(t, mock.ExpectationsWereMet())
}
