package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupay/institute-ledger-api/internal/ledger"
	"github.com/edupay/institute-ledger-api/internal/models"
)

// GrantRepository handles persistence of grant requests and approvals.
type GrantRepository struct {
	db *sqlx.DB
}

// NewGrantRepository constructs the repository.
func NewGrantRepository(db *sqlx.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// CreateRequest persists a new grant request in the pending state.
func (r *GrantRepository) CreateRequest(ctx context.Context, request *models.GrantRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	request.Approved = false
	const query = `INSERT INTO grant_requests (id, institute_id, student_id, amount_requested, reason, approved, created_at)
        VALUES (:id, :institute_id, :student_id, :amount_requested, :reason, :approved, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create grant request: %w", err)
	}
	return nil
}

// FindRequestByID returns a grant request scoped to its institute.
func (r *GrantRepository) FindRequestByID(ctx context.Context, instituteID, id string) (*models.GrantRequest, error) {
	const query = `SELECT id, institute_id, student_id, amount_requested, reason, approved, created_at
        FROM grant_requests WHERE id = $1 AND institute_id = $2`
	var request models.GrantRequest
	if err := r.db.GetContext(ctx, &request, query, id, instituteID); err != nil {
		return nil, err
	}
	return &request, nil
}

// ApproveParams carries the inputs of one approval attempt.
type ApproveParams struct {
	InstituteID    string
	RequestID      string
	ApprovedBy     string
	AmountApproved int64
	Reason         string
	Now            time.Time
}

// ApproveAtomic flips the request to its terminal approved state, moves the
// approved amount from the institute to the requesting student and writes the
// audit record, all as one transaction. Failure modes: sql.ErrNoRows (request,
// institute or student missing), ErrGrantAlreadyApproved,
// ledger.ErrInsufficientBalance. On failure nothing is mutated.
func (r *GrantRepository) ApproveAtomic(ctx context.Context, p ApproveParams) (*models.GrantApproval, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approval: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var request models.GrantRequest
	if err := tx.GetContext(ctx, &request, `SELECT id, institute_id, student_id, amount_requested, reason, approved, created_at
        FROM grant_requests WHERE id = $1 AND institute_id = $2 FOR UPDATE`, p.RequestID, p.InstituteID); err != nil {
		return nil, err
	}
	if request.Approved {
		return nil, ErrGrantAlreadyApproved
	}

	var institute struct {
		Balance ledger.Balance `db:"balance"`
	}
	if err := tx.GetContext(ctx, &institute, `SELECT balance FROM institutes WHERE id = $1 FOR UPDATE`,
		p.InstituteID); err != nil {
		return nil, err
	}

	var student struct {
		Balance ledger.Balance `db:"balance"`
	}
	if err := tx.GetContext(ctx, &student, `SELECT balance FROM students WHERE id = $1 FOR UPDATE`,
		request.StudentID); err != nil {
		return nil, err
	}

	if err := ledger.Transfer(&institute.Balance, &student.Balance, p.AmountApproved); err != nil {
		return nil, err
	}

	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx, `UPDATE grant_requests SET approved = TRUE WHERE id = $1`, request.ID); err != nil {
		return nil, fmt.Errorf("approve grant request: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE institutes SET balance = $2, updated_at = $3 WHERE id = $1`,
		p.InstituteID, institute.Balance, now); err != nil {
		return nil, fmt.Errorf("debit institute: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE students SET balance = $2, updated_at = $3 WHERE id = $1`,
		request.StudentID, student.Balance, now); err != nil {
		return nil, fmt.Errorf("credit student: %w", err)
	}

	approval := &models.GrantApproval{
		ID:             uuid.NewString(),
		GrantRequestID: request.ID,
		ApprovedBy:     p.ApprovedBy,
		AmountApproved: p.AmountApproved,
		Reason:         p.Reason,
		CreatedAt:      now,
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO grant_approvals (id, grant_request_id, approved_by, amount_approved, reason, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		approval.ID, approval.GrantRequestID, approval.ApprovedBy, approval.AmountApproved, approval.Reason, approval.CreatedAt); err != nil {
		return nil, fmt.Errorf("record grant approval: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approval: %w", err)
	}
	return approval, nil
}

// ListRequests returns grant requests for an institute.
func (r *GrantRepository) ListRequests(ctx context.Context, instituteID string, filter models.GrantFilter) ([]models.GrantRequest, int, error) {
	base := `FROM grant_requests g WHERE g.institute_id = $1`
	args := []interface{}{instituteID}

	if filter.StudentID != "" {
		base += fmt.Sprintf(" AND g.student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.Approved != nil {
		base += fmt.Sprintf(" AND g.approved = $%d", len(args)+1)
		args = append(args, *filter.Approved)
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
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

	query := fmt.Sprintf(`SELECT g.id, g.institute_id, g.student_id, g.amount_requested, g.reason, g.approved, g.created_at
        %s ORDER BY g.created_at %s LIMIT %d OFFSET %d`, base, order, size, offset)

	var requests []models.GrantRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list grant requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count grant requests: %w", err)
	}
	return requests, total, nil
}

// ListApprovals returns the approval audit records for an institute's
// requests, oldest first.
func (r *GrantRepository) ListApprovals(ctx context.Context, instituteID string) ([]models.GrantApproval, error) {
	const query = `SELECT a.id, a.grant_request_id, a.approved_by, a.amount_approved, a.reason, a.created_at
        FROM grant_approvals a
        JOIN grant_requests g ON g.id = a.grant_request_id
        WHERE g.institute_id = $1 ORDER BY a.created_at`
	var approvals []models.GrantApproval
	if err := r.db.SelectContext(ctx, &approvals, query, instituteID); err != nil {
		return nil, fmt.Errorf("list grant approvals: %w", err)
	}
	return approvals, nil
}

// ListApprovalDetails returns approvals joined with the receiving student,
// oldest first. Used for statement generation.
func (r *GrantRepository) ListApprovalDetails(ctx context.Context, instituteID string) ([]models.GrantApprovalDetail, error) {
	const query = `SELECT a.id, a.grant_request_id, a.approved_by, a.amount_approved, a.reason, a.created_at,
        g.student_id, s.full_name AS student_name
        FROM grant_approvals a
        JOIN grant_requests g ON g.id = a.grant_request_id
        JOIN students s ON s.id = g.student_id
        WHERE g.institute_id = $1 ORDER BY a.created_at`
	var details []models.GrantApprovalDetail
	if err := r.db.SelectContext(ctx, &details, query, instituteID); err != nil {
		return nil, fmt.Errorf("list grant approval details: %w", err)
	}
	return details, nil
}
