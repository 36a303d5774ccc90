package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/edupay/institute-ledger-api/internal/authz"
	"github.com/edupay/institute-ledger-api/internal/models"
	appErrors "github.com/edupay/institute-ledger-api/pkg/errors"
	"github.com/edupay/institute-ledger-api/pkg/export"
)

type statementEnrollmentSource interface {
	List(ctx context.Context, instituteID string, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
}

type statementGrantSource interface {
	ListApprovalDetails(ctx context.Context, instituteID string) ([]models.GrantApprovalDetail, error)
}

type statementWithdrawalSource interface {
	ListWithdrawals(ctx context.Context, instituteID string) ([]models.Withdrawal, error)
}

// StatementFormat selects the export rendering.
type StatementFormat string

// Supported statement formats.
const (
	FormatCSV StatementFormat = "csv"
	FormatPDF StatementFormat = "pdf"
)

// StatementService derives an institute's chronological financial statement
// from its immutable records: enrollment fees in, grant payouts and
// withdrawals out.
type StatementService struct {
	enrollments statementEnrollmentSource
	grants      statementGrantSource
	withdrawals statementWithdrawalSource
	auth        authorizer
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewStatementService constructs StatementService.
func NewStatementService(enrollments statementEnrollmentSource, grants statementGrantSource, withdrawals statementWithdrawalSource, institutes instituteAuthzReader, policy authz.Policy, logger *zap.Logger) *StatementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatementService{
		enrollments: enrollments,
		grants:      grants,
		withdrawals: withdrawals,
		auth:        newAuthorizer(institutes, policy),
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// Entries returns the statement lines in chronological order. Admin privilege
// is required; the statement exposes every balance movement of the institute.
func (s *StatementService) Entries(ctx context.Context, instituteID string, actor authz.Actor) ([]models.StatementEntry, error) {
	if _, err := s.auth.require(ctx, instituteID, actor, authz.Admin()); err != nil {
		return nil, err
	}

	var enrollments []models.Enrollment
	for page := 1; ; page++ {
		batch, total, err := s.enrollments.List(ctx, instituteID, models.EnrollmentFilter{Page: page, PageSize: 100})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
		}
		enrollments = append(enrollments, batch...)
		if len(batch) == 0 || len(enrollments) >= total {
			break
		}
	}
	approvals, err := s.grants.ListApprovalDetails(ctx, instituteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grant approvals")
	}
	withdrawals, err := s.withdrawals.ListWithdrawals(ctx, instituteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load withdrawals")
	}

	entries := make([]models.StatementEntry, 0, len(enrollments)+len(approvals)+len(withdrawals))
	for _, e := range enrollments {
		entries = append(entries, models.StatementEntry{
			OccurredAt:   e.CreatedAt,
			Kind:         models.StatementKindEnrollmentFee,
			Counterparty: e.StudentName,
			Amount:       e.FeePaid,
			Direction:    models.DirectionCredit,
		})
	}
	for _, a := range approvals {
		entries = append(entries, models.StatementEntry{
			OccurredAt:   a.CreatedAt,
			Kind:         models.StatementKindGrantPayout,
			Counterparty: a.StudentName,
			Amount:       a.AmountApproved,
			Direction:    models.DirectionDebit,
		})
	}
	for _, w := range withdrawals {
		entries = append(entries, models.StatementEntry{
			OccurredAt:   w.CreatedAt,
			Kind:         models.StatementKindWithdrawal,
			Counterparty: w.PaidTo,
			Amount:       w.Amount,
			Direction:    models.DirectionDebit,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].OccurredAt.Before(entries[j].OccurredAt)
	})
	return entries, nil
}

// Export renders the statement in the requested format.
func (s *StatementService) Export(ctx context.Context, instituteID string, actor authz.Actor, format StatementFormat) ([]byte, string, error) {
	entries, err := s.Entries(ctx, instituteID, actor)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Date", "Kind", "Counterparty", "Direction", "Amount"},
		Rows:    make([][]string, 0, len(entries)),
	}
	for _, entry := range entries {
		dataset.Rows = append(dataset.Rows, []string{
			entry.OccurredAt.Format("2006-01-02 15:04:05"),
			entry.Kind,
			entry.Counterparty,
			entry.Direction,
			fmt.Sprintf("%d", entry.Amount),
		})
	}

	switch format {
	case FormatCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv statement")
		}
		return payload, "text/csv", nil
	case FormatPDF:
		payload, err := s.pdf.Render(dataset, "Institute Statement")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf statement")
		}
		return payload, "application/pdf", nil
	}
	return nil, "", appErrors.Clone(appErrors.ErrInvalidInput, "unsupported statement format")
}
