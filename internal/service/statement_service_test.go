package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupay/institute-ledger-api/internal/authz"
	"github.com/edupay/institute-ledger-api/internal/models"
	appErrors "github.com/edupay/institute-ledger-api/pkg/errors"
)

type mockStatementSource struct {
	enrollments []models.Enrollment
	approvals   []models.GrantApprovalDetail
	withdrawals []models.Withdrawal
}

func (m *mockStatementSource) List(ctx context.Context, instituteID string, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	if filter.Page > 1 {
		return nil, len(m.enrollments), nil
	}
	return m.enrollments, len(m.enrollments), nil
}

func (m *mockStatementSource) ListApprovalDetails(ctx context.Context, instituteID string) ([]models.GrantApprovalDetail, error) {
	return m.approvals, nil
}

func (m *mockStatementSource) ListWithdrawals(ctx context.Context, instituteID string) ([]models.Withdrawal, error) {
	return m.withdrawals, nil
}

func newStatementFixture() (*StatementService, *mockStatementSource) {
	base := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	source := &mockStatementSource{
		enrollments: []models.Enrollment{
			{ID: "enr-1", StudentName: "Ada Lovelace", FeePaid: 100, CreatedAt: base},
			{ID: "enr-2", StudentName: "Alan Turing", FeePaid: 100, CreatedAt: base.Add(2 * time.Hour)},
		},
		approvals: []models.GrantApprovalDetail{
			{GrantApproval: models.GrantApproval{ID: "appr-1", AmountApproved: 50, CreatedAt: base.Add(time.Hour)}, StudentID: "stu-1", StudentName: "Ada Lovelace"},
		},
		withdrawals: []models.Withdrawal{
			{ID: "wd-1", Amount: 75, PaidTo: "acct-9", CreatedAt: base.Add(3 * time.Hour)},
		},
	}
	svc := NewStatementService(source, source, source, seededInstituteRepo(), authz.Default(), nil)
	return svc, source
}

func TestStatementServiceEntriesChronological(t *testing.T) {
	svc, _ := newStatementFixture()

	entries, err := svc.Entries(context.Background(), "inst-1", authz.Actor{Principal: "admin-1"})
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, models.StatementKindEnrollmentFee, entries[0].Kind)
	assert.Equal(t, models.StatementKindGrantPayout, entries[1].Kind)
	assert.Equal(t, models.StatementKindEnrollmentFee, entries[2].Kind)
	assert.Equal(t, models.StatementKindWithdrawal, entries[3].Kind)

	assert.Equal(t, models.DirectionCredit, entries[0].Direction)
	assert.Equal(t, models.DirectionDebit, entries[1].Direction)
	assert.Equal(t, "Ada Lovelace", entries[1].Counterparty)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].OccurredAt.Before(entries[i-1].OccurredAt))
	}
}

func TestStatementServiceEntriesRequiresAdmin(t *testing.T) {
	svc, _ := newStatementFixture()

	_, err := svc.Entries(context.Background(), "inst-1", authz.Actor{Principal: "stranger"})
	require.ErrorIs(t, err, appErrors.ErrNotAuthorized)
}

func TestStatementServiceExportCSV(t *testing.T) {
	svc, _ := newStatementFixture()

	payload, contentType, err := svc.Export(context.Background(), "inst-1", authz.Actor{Principal: "owner-1"}, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	body := string(payload)
	assert.True(t, strings.HasPrefix(body, "Date,Kind,Counterparty,Direction,Amount"))
	assert.Contains(t, body, "ENROLLMENT_FEE")
	assert.Contains(t, body, "GRANT_PAYOUT")
	assert.Contains(t, body, "WITHDRAWAL")
	assert.Contains(t, body, "acct-9")
}

func TestStatementServiceExportPDF(t *testing.T) {
	svc, _ := newStatementFixture()

	payload, contentType, err := svc.Export(context.Background(), "inst-1", authz.Actor{Principal: "owner-1"}, FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestStatementServiceExportUnknownFormat(t *testing.T) {
	svc, _ := newStatementFixture()

	_, _, err := svc.Export(context.Background(), "inst-1", authz.Actor{Principal: "owner-1"}, StatementFormat("xml"))
	require.ErrorIs(t, err, appErrors.ErrInvalidInput)
}
