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

type enrollmentRepository interface {
	EnrollAtomic(ctx context.Context, p repository.EnrollParams) (*models.Enrollment, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, instituteID string, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	CreateRequest(ctx context.Context, request *models.EnrollmentRequest) error
	ListRequests(ctx context.Context, instituteID string) ([]models.EnrollmentRequest, error)
	DeleteRequest(ctx context.Context, instituteID, id string) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// RequestEnrollmentRequest records an intent to enroll.
type RequestEnrollmentRequest struct {
	StudentID   string `json:"student_id" validate:"required"`
	HomeAddress string `json:"home_address"`
}

// EnrollRequest performs an actual enrollment.
type EnrollRequest struct {
	CourseID   string `json:"course_id" validate:"required"`
	StudentID  string `json:"student_id" validate:"required"`
	EnrolledOn string `json:"enrolled_on" validate:"required"`
}

// EnrollmentService orchestrates enrollment intents and the fee-escrow
// enrollment itself.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	auth      authorizer
	metrics   *MetricsService
	sink      events.Sink
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, institutes instituteAuthzReader, policy authz.Policy, metrics *MetricsService, sink events.Sink, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &EnrollmentService{
		repo:      repo,
		students:  students,
		auth:      newAuthorizer(institutes, policy),
		metrics:   metrics,
		sink:      sink,
		validator: validate,
		logger:    logger,
	}
}

// Request records an enrollment intent. It never checks capacity or balance;
// the intent is a plain record that may be pruned independently.
func (s *EnrollmentService) Request(ctx context.Context, instituteID string, req RequestEnrollmentRequest) (*models.EnrollmentRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment request payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	request := &models.EnrollmentRequest{
		InstituteID: instituteID,
		StudentID:   req.StudentID,
		HomeAddress: req.HomeAddress,
	}
	if err := s.repo.CreateRequest(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record enrollment request")
	}
	s.publish(ctx, events.Event{Type: events.TypeEnrollmentRequested, InstituteID: instituteID, EntityID: request.ID})
	return request, nil
}

// Enroll moves the institute fee from the student to the institute and
// appends the student to the course roster as one transaction. The caller
// must be the student's owning principal.
func (s *EnrollmentService) Enroll(ctx context.Context, instituteID, caller string, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if caller == "" || caller != student.OwnerID {
		return nil, appErrors.Clone(appErrors.ErrNotAuthorized, "only the student owner may enroll the student")
	}

	enrollment, err := s.repo.EnrollAtomic(ctx, repository.EnrollParams{
		InstituteID: instituteID,
		CourseID:    req.CourseID,
		StudentID:   req.StudentID,
		EnrolledOn:  req.EnrolledOn,
		Now:         time.Now().UTC(),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCourseFull):
			s.metrics.RecordLedgerOperation("enroll", "insufficient_capacity")
			return nil, appErrors.Clone(appErrors.ErrInsufficientCapacity, "")
		case errors.Is(err, ledger.ErrInsufficientBalance):
			s.metrics.RecordLedgerOperation("enroll", "insufficient_balance")
			return nil, appErrors.Clone(appErrors.ErrInsufficientBalance, "student balance does not cover the fee")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course or institute not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}
	s.metrics.RecordLedgerOperation("enroll", "committed")
	s.publish(ctx, events.Event{Type: events.TypeStudentEnrolled, InstituteID: instituteID, EntityID: enrollment.ID, Payload: enrollment})
	return enrollment, nil
}

// List returns enrollments for the institute in roster order.
func (s *EnrollmentService) List(ctx context.Context, instituteID string, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, instituteID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
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
	return enrollments, pagination, nil
}

// ListRequests returns pending enrollment intents to admin-level callers.
func (s *EnrollmentService) ListRequests(ctx context.Context, instituteID string, actor authz.Actor) ([]models.EnrollmentRequest, error) {
	if _, err := s.auth.require(ctx, instituteID, actor, authz.Admin()); err != nil {
		return nil, err
	}
	requests, err := s.repo.ListRequests(ctx, instituteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollment requests")
	}
	return requests, nil
}

// PruneRequest deletes a pending enrollment intent. Pruning never touches
// enrollments.
func (s *EnrollmentService) PruneRequest(ctx context.Context, instituteID, id string, actor authz.Actor) error {
	if _, err := s.auth.require(ctx, instituteID, actor, authz.Admin()); err != nil {
		return err
	}
	if err := s.repo.DeleteRequest(ctx, instituteID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment request not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prune enrollment request")
	}
	return nil
}

func (s *EnrollmentService) publish(ctx context.Context, ev events.Event) {
	ev.OccurredAt = time.Now().UTC()
	if err := s.sink.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", ev.Type), zap.Error(err))
	}
}
