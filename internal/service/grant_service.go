package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edupay/institute-ledger-api/internal/authz"
	"github.com/edupay/institute-ledger-api/internal/events"
	"github.com/edupay/institute-ledger-api/internal/ledger"
	"github.com/edupay/institute-ledger-api/internal/models"
	"github.com/edupay/institute-ledger-api/internal/repository"
	appErrors "github.com/edupay/institute-ledger-api/pkg/errors"
)

// Admin roles allowed to approve grants alongside the owner. Role names are
// free-form strings; these are the two the approval path recognizes.
const (
	RoleInstituteAdmin   = "admin"
	RoleFinancialAdvisor = "financial_advisor"
)

type grantRepository interface {
	CreateRequest(ctx context.Context, request *models.GrantRequest) error
	FindRequestByID(ctx context.Context, instituteID, id string) (*models.GrantRequest, error)
	ApproveAtomic(ctx context.Context, p repository.ApproveParams) (*models.GrantApproval, error)
	ListRequests(ctx context.Context, instituteID string, filter models.GrantFilter) ([]models.GrantRequest, int, error)
	ListApprovals(ctx context.Context, instituteID string) ([]models.GrantApproval, error)
}

// CreateGrantRequest describes a new financial grant request.
type CreateGrantRequest struct {
	StudentID       string `json:"student_id" validate:"required"`
	AmountRequested int64  `json:"amount_requested" validate:"gte=0"`
	Reason          string `json:"reason"`
}

// ApproveGrantRequest approves a pending request, possibly with a different
// amount than was asked for.
type ApproveGrantRequest struct {
	AmountApproved int64  `json:"amount_approved" validate:"gte=0"`
	Reason         string `json:"reason"`
}

// GrantService orchestrates the two-state grant workflow.
type GrantService struct {
	repo      grantRepository
	students  studentReader
	auth      authorizer
	metrics   *MetricsService
	sink      events.Sink
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGrantService constructs GrantService.
func NewGrantService(repo grantRepository, students studentReader, institutes instituteAuthzReader, policy authz.Policy, metrics *MetricsService, sink events.Sink, validate *validator.Validate, logger *zap.Logger) *GrantService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &GrantService{
		repo:      repo,
		students:  students,
		auth:      newAuthorizer(institutes, policy),
		metrics:   metrics,
		sink:      sink,
		validator: validate,
		logger:    logger,
	}
}

// CreateRequest records a new grant request in the pending state. Valid input
// always succeeds; a zero amount is allowed.
func (s *GrantService) CreateRequest(ctx context.Context, instituteID string, req CreateGrantRequest) (*models.GrantRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grant request payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	request := &models.GrantRequest{
		InstituteID:     instituteID,
		StudentID:       req.StudentID,
		AmountRequested: req.AmountRequested,
		Reason:          req.Reason,
	}
	if err := s.repo.CreateRequest(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grant request")
	}
	s.publish(ctx, events.Event{Type: events.TypeGrantRequested, InstituteID: instituteID, EntityID: request.ID})
	return request, nil
}

// Approve flips a pending request to its terminal approved state and moves
// the approved amount from the institute to the student, atomically. Owners
// and admins holding an approval-capable role may approve.
func (s *GrantService) Approve(ctx context.Context, instituteID, requestID string, actor authz.Actor, req ApproveGrantRequest) (*models.GrantApproval, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}
	if _, err := s.auth.require(ctx, instituteID, actor, authz.Role(RoleInstituteAdmin, RoleFinancialAdvisor)); err != nil {
		return nil, err
	}

	approval, err := s.repo.ApproveAtomic(ctx, repository.ApproveParams{
		InstituteID:    instituteID,
		RequestID:      requestID,
		ApprovedBy:     actor.Principal,
		AmountApproved: req.AmountApproved,
		Reason:         req.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrGrantAlreadyApproved):
			s.metrics.RecordLedgerOperation("grant_approve", "already_approved")
			return nil, appErrors.Clone(appErrors.ErrAlreadyApproved, "")
		case errors.Is(err, ledger.ErrInsufficientBalance):
			s.metrics.RecordLedgerOperation("grant_approve", "insufficient_balance")
			return nil, appErrors.Clone(appErrors.ErrInsufficientBalance, "institute balance does not cover the grant")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grant request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve grant")
	}
	s.metrics.RecordLedgerOperation("grant_approve", "committed")
	s.publish(ctx, events.Event{Type: events.TypeGrantApproved, InstituteID: instituteID, EntityID: approval.GrantRequestID, Payload: approval})
	return approval, nil
}

// GetRequest returns a grant request scoped to its institute.
func (s *GrantService) GetRequest(ctx context.Context, instituteID, id string) (*models.GrantRequest, error) {
	request, err := s.repo.FindRequestByID(ctx, instituteID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grant request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grant request")
	}
	return request, nil
}

// ListRequests returns grant requests matching the filter.
func (s *GrantService) ListRequests(ctx context.Context, instituteID string, filter models.GrantFilter) ([]models.GrantRequest, *models.Pagination, error) {
	requests, total, err := s.repo.ListRequests(ctx, instituteID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grant requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return requests, pagination, nil
}

// ListApprovals returns the approval audit log to admin-level callers.
func (s *GrantService) ListApprovals(ctx context.Context, instituteID string, actor authz.Actor) ([]models.GrantApproval, error) {
	if _, err := s.auth.require(ctx, instituteID, actor, authz.Admin()); err != nil {
		return nil, err
	}
	approvals, err := s.repo.ListApprovals(ctx, instituteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grant approvals")
	}
	return approvals, nil
}

func (s *GrantService) publish(ctx context.Context, ev events.Event) {
	ev.OccurredAt = time.Now().UTC()
	if err := s.sink.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", ev.Type), zap.Error(err))
	}
}
