package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupay/institute-ledger-api/internal/ledger"
	"github.com/edupay/institute-ledger-api/internal/models"
)

// InstituteRepository manages persistence for institute aggregates and their
// role table.
type InstituteRepository struct {
	db *sqlx.DB
}

// NewInstituteRepository constructs an InstituteRepository.
func NewInstituteRepository(db *sqlx.DB) *InstituteRepository {
	return &InstituteRepository{db: db}
}

// Create persists a new institute with a zero balance.
func (r *InstituteRepository) Create(ctx context.Context, institute *models.Institute) error {
	if institute.ID == "" {
		institute.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if institute.CreatedAt.IsZero() {
		institute.CreatedAt = now
	}
	institute.UpdatedAt = now
	const query = `INSERT INTO institutes (id, name, email, phone, fees, balance, owner_id, capability, created_at, updated_at)
        VALUES (:id, :name, :email, :phone, :fees, :balance, :owner_id, :capability, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, institute); err != nil {
		return fmt.Errorf("create institute: %w", err)
	}
	return nil
}

// FindByID returns an institute by its ID.
func (r *InstituteRepository) FindByID(ctx context.Context, id string) (*models.Institute, error) {
	const query = `SELECT id, name, email, phone, fees, balance, owner_id, capability, created_at, updated_at
        FROM institutes WHERE id = $1`
	var institute models.Institute
	if err := r.db.GetContext(ctx, &institute, query, id); err != nil {
		return nil, err
	}
	return &institute, nil
}

// ListAdmins returns the institute's role table.
func (r *InstituteRepository) ListAdmins(ctx context.Context, instituteID string) ([]models.InstituteAdmin, error) {
	const query = `SELECT institute_id, principal, role, created_at
        FROM institute_admins WHERE institute_id = $1 ORDER BY created_at`
	var admins []models.InstituteAdmin
	if err := r.db.SelectContext(ctx, &admins, query, instituteID); err != nil {
		return nil, fmt.Errorf("list institute admins: %w", err)
	}
	return admins, nil
}

// AddAdmin inserts a principal into the role table. The insert is a union:
// re-adding an existing principal is a no-op.
func (r *InstituteRepository) AddAdmin(ctx context.Context, admin *models.InstituteAdmin) error {
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO institute_admins (institute_id, principal, role, created_at)
        VALUES (:institute_id, :principal, :role, :created_at)
        ON CONFLICT (institute_id, principal) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, admin); err != nil {
		return fmt.Errorf("add institute admin: %w", err)
	}
	return nil
}

// WithdrawAtomic moves amount out of the institute balance and records the
// payout as one transaction. It fails with ledger.ErrInsufficientBalance when
// the balance does not cover the amount, leaving state untouched.
func (r *InstituteRepository) WithdrawAtomic(ctx context.Context, instituteID string, amount int64, paidTo string) (*models.Withdrawal, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin withdrawal: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var balance ledger.Balance
	if err := tx.GetContext(ctx, &balance, `SELECT balance FROM institutes WHERE id = $1 FOR UPDATE`, instituteID); err != nil {
		return nil, err
	}

	funds, err := balance.Withdraw(amount)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE institutes SET balance = $2, updated_at = $3 WHERE id = $1`,
		instituteID, balance, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("update institute balance: %w", err)
	}

	withdrawal := &models.Withdrawal{
		ID:          uuid.NewString(),
		InstituteID: instituteID,
		Amount:      funds.Amount(),
		PaidTo:      paidTo,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO withdrawals (id, institute_id, amount, paid_to, created_at)
        VALUES ($1, $2, $3, $4, $5)`,
		withdrawal.ID, withdrawal.InstituteID, withdrawal.Amount, withdrawal.PaidTo, withdrawal.CreatedAt); err != nil {
		return nil, fmt.Errorf("record withdrawal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit withdrawal: %w", err)
	}
	return withdrawal, nil
}

// ListWithdrawals returns the payout log for an institute, oldest first.
func (r *InstituteRepository) ListWithdrawals(ctx context.Context, instituteID string) ([]models.Withdrawal, error) {
	const query = `SELECT id, institute_id, amount, paid_to, created_at
        FROM withdrawals WHERE institute_id = $1 ORDER BY created_at`
	var withdrawals []models.Withdrawal
	if err := r.db.SelectContext(ctx, &withdrawals, query, instituteID); err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	return withdrawals, nil
}

// Summary aggregates the institute's dashboard figures.
func (r *InstituteRepository) Summary(ctx context.Context, instituteID string) (*models.InstituteSummary, error) {
	const query = `SELECT i.id AS institute_id, i.balance, i.fees,
        (SELECT COUNT(*) FROM courses c WHERE c.institute_id = i.id) AS course_count,
        (SELECT COUNT(*) FROM enrollments e WHERE e.institute_id = i.id) AS enrollment_count,
        (SELECT COUNT(*) FROM grant_requests g WHERE g.institute_id = i.id AND NOT g.approved) AS pending_grants
        FROM institutes i WHERE i.id = $1`
	var row struct {
		InstituteID     string `db:"institute_id"`
		Balance         int64  `db:"balance"`
		Fees            int64  `db:"fees"`
		CourseCount     int    `db:"course_count"`
		EnrollmentCount int    `db:"enrollment_count"`
		PendingGrants   int    `db:"pending_grants"`
	}
	if err := r.db.GetContext(ctx, &row, query, instituteID); err != nil {
		return nil, err
	}
	return &models.InstituteSummary{
		InstituteID:     row.InstituteID,
		Balance:         row.Balance,
		Fees:            row.Fees,
		CourseCount:     row.CourseCount,
		EnrollmentCount: row.EnrollmentCount,
		PendingGrants:   row.PendingGrants,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}
