package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupay/institute-ledger-api/internal/ledger"
	"github.com/edupay/institute-ledger-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollAtomicSuccess(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM courses WHERE id = $1 AND institute_id = $2 FOR UPDATE")).
		WithArgs("course-1", "inst-1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT fees, balance FROM institutes WHERE id = $1 FOR UPDATE")).
		WithArgs("inst-1").
		WillReturnRows(sqlmock.NewRows([]string{"fees", "balance"}).AddRow(int64(100), int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT full_name, balance FROM students WHERE id = $1 FOR UPDATE")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"full_name", "balance"}).AddRow("Ada Lovelace", int64(150)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET balance = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("stu-1", int64(50), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE institutes SET balance = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("inst-1", int64(100), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WithArgs(sqlmock.AnyArg(), "inst-1", "course-1", "stu-1", "Ada Lovelace", int64(100), "2024-09-01", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment, err := repo.EnrollAtomic(context.Background(), EnrollParams{
		InstituteID: "inst-1",
		CourseID:    "course-1",
		StudentID:   "stu-1",
		EnrolledOn:  "2024-09-01",
		Now:         time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", enrollment.StudentName)
	assert.Equal(t, int64(100), enrollment.FeePaid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollAtomicCourseFull(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM courses WHERE id = $1 AND institute_id = $2 FOR UPDATE")).
		WithArgs("course-1", "inst-1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectRollback()

	_, err := repo.EnrollAtomic(context.Background(), EnrollParams{
		InstituteID: "inst-1",
		CourseID:    "course-1",
		StudentID:   "stu-2",
	})
	require.ErrorIs(t, err, ErrCourseFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollAtomicInsufficientBalanceRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT capacity FROM courses WHERE id = $1 AND institute_id = $2 FOR UPDATE")).
		WithArgs("course-1", "inst-1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(int64(10)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT fees, balance FROM institutes WHERE id = $1 FOR UPDATE")).
		WithArgs("inst-1").
		WillReturnRows(sqlmock.NewRows([]string{"fees", "balance"}).AddRow(int64(100), int64(500)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT full_name, balance FROM students WHERE id = $1 FOR UPDATE")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"full_name", "balance"}).AddRow("Ada Lovelace", int64(40)))
	mock.ExpectRollback()

	_, err := repo.EnrollAtomic(context.Background(), EnrollParams{
		InstituteID: "inst-1",
		CourseID:    "course-1",
		StudentID:   "stu-1",
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateRequest(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollment_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	request := &models.EnrollmentRequest{InstituteID: "inst-1", StudentID: "stu-1", HomeAddress: "12 Byron Row"}
	require.NoError(t, repo.CreateRequest(context.Background(), request))
	assert.NotEmpty(t, request.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListOrdersByCreation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "institute_id", "course_id", "student_id", "student_name", "fee_paid", "enrolled_on", "created_at"}).
		AddRow("enr-1", "inst-1", "course-1", "stu-1", "Ada Lovelace", int64(100), "2024-09-01", now).
		AddRow("enr-2", "inst-1", "course-1", "stu-2", "Alan Turing", int64(100), "2024-09-02", now.Add(time.Minute))
	mock.ExpectQuery("SELECT e.id, e.institute_id").
		WithArgs("inst-1", "course-1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("inst-1", "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	enrollments, total, err := repo.List(context.Background(), "inst-1", models.EnrollmentFilter{CourseID: "course-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, enrollments, 2)
	assert.Equal(t, "enr-1", enrollments[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
