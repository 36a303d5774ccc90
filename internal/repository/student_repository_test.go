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

func TestStudentRepositoryDeposit(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET balance = balance + $2, updated_at = $3 WHERE id = $1")).
		WithArgs("stu-1", int64(100), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Deposit(context.Background(), "stu-1", 100))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDepositMissingStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET balance = balance + $2, updated_at = $3 WHERE id = $1")).
		WithArgs("missing", int64(100), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Deposit(context.Background(), "missing", 100)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "full_name", "email", "home_address", "balance", "owner_id", "created_at", "updated_at"}).
		AddRow("stu-1", "Ada Lovelace", "ada@example.com", "12 Byron Row", int64(150), "owner-1", now, now)
	mock.ExpectQuery("SELECT id, full_name, email").
		WithArgs("stu-1").
		WillReturnRows(rows)

	student, err := repo.FindByID(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", student.FullName)
	assert.Equal(t, int64(150), student.Balance.Amount())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateStartsAtZero(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	student := &models.Student{FullName: "Ada Lovelace", Email: "ada@example.com", OwnerID: "owner-1"}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.NotEmpty(t, student.ID)
	assert.Equal(t, int64(0), student.Balance.Amount())
	require.NoError(t, mock.ExpectationsWereMet())
}
