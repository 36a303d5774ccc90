package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupay/institute-ledger-api/internal/authz"
	"github.com/edupay/institute-ledger-api/internal/events"
	"github.com/edupay/institute-ledger-api/internal/ledger"
	"github.com/edupay/institute-ledger-api/internal/models"
	"github.com/edupay/institute-ledger-api/internal/repository"
	appErrors "github.com/edupay/institute-ledger-api/pkg/errors"
)

type mockGrantRepo struct {
	requests   map[string]models.GrantRequest
	approveErr error
	approvals  []models.GrantApproval
	lastParams repository.ApproveParams
}

func (m *mockGrantRepo) CreateRequest(ctx context.Context, request *models.GrantRequest) error {
	if m.requests == nil {
		m.requests = make(map[string]models.GrantRequest)
	}
	if request.ID == "" {
		request.ID = "grant-1"
	}
	request.Approved = false
	m.requests[request.ID] = *request
	return nil
}

func (m *mockGrantRepo) FindRequestByID(ctx context.Context, instituteID, id string) (*models.GrantRequest, error) {
	if r, ok := m.requests[id]; ok && r.InstituteID == instituteID {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGrantRepo) ApproveAtomic(ctx context.Context, p repository.ApproveParams) (*models.GrantApproval, error) {
	m.lastParams = p
	if m.approveErr != nil {
		return nil, m.approveErr
	}
	approval := models.GrantApproval{
		ID:             "appr-1",
		GrantRequestID: p.RequestID,
		ApprovedBy:     p.ApprovedBy,
		AmountApproved: p.AmountApproved,
		Reason:         p.Reason,
		CreatedAt:      time.Now().UTC(),
	}
	m.approvals = append(m.approvals, approval)
	return &approval, nil
}

func (m *mockGrantRepo) ListRequests(ctx context.Context, instituteID string, filter models.GrantFilter) ([]models.GrantRequest, int, error) {
	var out []models.GrantRequest
	for _, r := range m.requests {
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *mockGrantRepo) ListApprovals(ctx context.Context, instituteID string) ([]models.GrantApproval, error) {
	return m.approvals, nil
}

func newGrantFixture() (*GrantService, *mockGrantRepo, *recordSink) {
	repo := &mockGrantRepo{requests: map[string]models.GrantRequest{
		"grant-1": {ID: "grant-1", InstituteID: "inst-1", StudentID: "stu-1", AmountRequested: 250, Reason: "books"},
	}}
	students := &mockStudentReader{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", FullName: "Ada Lovelace", OwnerID: "owner-stu"},
	}}
	sink := &recordSink{}
	svc := NewGrantService(repo, students, seededInstituteRepo(), authz.Default(), nil, sink, nil, nil)
	return svc, repo, sink
}

func TestGrantServiceCreateRequestStartsPending(t *testing.T) {
	svc, repo, sink := newGrantFixture()

	request, err := svc.CreateRequest(context.Background(), "inst-1", CreateGrantRequest{
		StudentID:       "stu-1",
		AmountRequested: 0,
		Reason:          "zero grants are allowed",
	})
	require.NoError(t, err)
	assert.False(t, request.Approved)
	assert.Len(t, repo.requests, 2)
	require.Len(t, sink.events, 1)
	assert.Equal(t, events.TypeGrantRequested, sink.events[0].Type)
}

func TestGrantServiceCreateRequestRejectsNegativeAmount(t *testing.T) {
	svc, _, _ := newGrantFixture()

	_, err := svc.CreateRequest(context.Background(), "inst-1", CreateGrantRequest{
		StudentID:       "stu-1",
		AmountRequested: -10,
	})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestGrantServiceApproveByOwner(t *testing.T) {
	svc, repo, sink := newGrantFixture()

	approval, err := svc.Approve(context.Background(), "inst-1", "grant-1", authz.Actor{Principal: "owner-1"}, ApproveGrantRequest{
		AmountApproved: 200,
		Reason:         "approved in part",
	})
	require.NoError(t, err)
	assert.Equal(t, "owner-1", approval.ApprovedBy)
	assert.Equal(t, int64(200), repo.lastParams.AmountApproved)
	require.Len(t, sink.events, 1)
	assert.Equal(t, events.TypeGrantApproved, sink.events[0].Type)
}

func TestGrantServiceApproveByFinancialAdvisor(t *testing.T) {
	svc, _, _ := newGrantFixture()

	_, err := svc.Approve(context.Background(), "inst-1", "grant-1", authz.Actor{Principal: "advisor-1"}, ApproveGrantRequest{AmountApproved: 200})
	require.NoError(t, err)
}

func TestGrantServiceApproveByAdminRole(t *testing.T) {
	svc, repo, _ := newGrantFixture()

	approval, err := svc.Approve(context.Background(), "inst-1", "grant-1", authz.Actor{Principal: "bursar-1"}, ApproveGrantRequest{AmountApproved: 150})
	require.NoError(t, err)
	assert.Equal(t, "bursar-1", approval.ApprovedBy)
	assert.Equal(t, int64(150), repo.lastParams.AmountApproved)
}

func TestGrantServiceApproveDeniedForOtherRoles(t *testing.T) {
	svc, repo, _ := newGrantFixture()

	// admin-1 holds the registrar role, which cannot approve grants.
	_, err := svc.Approve(context.Background(), "inst-1", "grant-1", authz.Actor{Principal: "admin-1"}, ApproveGrantRequest{AmountApproved: 200})
	require.ErrorIs(t, err, appErrors.ErrNotAuthorized)
	assert.Empty(t, repo.approvals)
}

func TestGrantServiceApproveAlreadyApproved(t *testing.T) {
	svc, repo, _ := newGrantFixture()
	repo.approveErr = repository.ErrGrantAlreadyApproved

	_, err := svc.Approve(context.Background(), "inst-1", "grant-1", authz.Actor{Principal: "owner-1"}, ApproveGrantRequest{AmountApproved: 200})
	require.ErrorIs(t, err, appErrors.ErrAlreadyApproved)
}

func TestGrantServiceApproveMapsInsufficientBalance(t *testing.T) {
	svc, repo, _ := newGrantFixture()
	repo.approveErr = ledger.ErrInsufficientBalance

	_, err := svc.Approve(context.Background(), "inst-1", "grant-1", authz.Actor{Principal: "owner-1"}, ApproveGrantRequest{AmountApproved: 9000})
	require.ErrorIs(t, err, appErrors.ErrInsufficientBalance)
}

func TestGrantServiceListApprovalsRequiresAdmin(t *testing.T) {
	svc, _, _ := newGrantFixture()

	_, err := svc.ListApprovals(context.Background(), "inst-1", authz.Actor{Principal: "stranger"})
	require.ErrorIs(t, err, appErrors.ErrNotAuthorized)

	_, err = svc.ListApprovals(context.Background(), "inst-1", authz.Actor{Principal: "admin-1"})
	require.NoError(t, err)
}
