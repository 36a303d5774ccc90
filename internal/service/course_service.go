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
	"github.com/edupay/institute-ledger-api/internal/models"
	appErrors "github.com/edupay/institute-ledger-api/pkg/errors"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, instituteID, id string) (*models.Course, error)
	ExistsByTitle(ctx context.Context, instituteID, title, excludeID string) (bool, error)
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, instituteID, id string) error
	List(ctx context.Context, instituteID string, filter models.CourseFilter) ([]models.CourseDetail, int, error)
}

// CourseRequest describes course creation and update payloads.
type CourseRequest struct {
	Title      string `json:"title" validate:"required"`
	Instructor string `json:"instructor" validate:"required"`
	Capacity   int64  `json:"capacity" validate:"gt=0"`
}

// CourseService orchestrates the course catalog of an institute.
type CourseService struct {
	repo      courseRepository
	auth      authorizer
	sink      events.Sink
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, institutes instituteAuthzReader, policy authz.Policy, sink events.Sink, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	return &CourseService{
		repo:      repo,
		auth:      newAuthorizer(institutes, policy),
		sink:      sink,
		validator: validate,
		logger:    logger,
	}
}

// Create adds a course to the institute catalog. Titles are unique per
// institute.
func (s *CourseService) Create(ctx context.Context, instituteID string, actor authz.Actor, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, err := s.auth.require(ctx, instituteID, actor, authz.Admin()); err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByTitle(ctx, instituteID, req.Title, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course title")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "course title already in use")
	}
	course := &models.Course{
		InstituteID: instituteID,
		Title:       req.Title,
		Instructor:  req.Instructor,
		Capacity:    req.Capacity,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.publish(ctx, events.Event{Type: events.TypeCourseAdded, InstituteID: instituteID, EntityID: course.ID})
	return course, nil
}

// Get returns a course scoped to its institute.
func (s *CourseService) Get(ctx context.Context, instituteID, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, instituteID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// List returns the institute's courses with their roster sizes.
func (s *CourseService) List(ctx context.Context, instituteID string, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, instituteID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
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
	return courses, pagination, nil
}

// Update replaces a course's mutable fields. Lowering capacity below the
// current roster size never evicts anyone; it only blocks new enrollments
// until the count drops.
func (s *CourseService) Update(ctx context.Context, instituteID, id string, actor authz.Actor, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, err := s.auth.require(ctx, instituteID, actor, authz.Admin()); err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByTitle(ctx, instituteID, req.Title, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course title")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "course title already in use")
	}
	course := &models.Course{
		ID:          id,
		InstituteID: instituteID,
		Title:       req.Title,
		Instructor:  req.Instructor,
		Capacity:    req.Capacity,
	}
	if err := s.repo.Update(ctx, course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.publish(ctx, events.Event{Type: events.TypeCourseUpdated, InstituteID: instituteID, EntityID: id})
	return course, nil
}

// Delete removes a course. Enrollment records reference the course by key
// only and survive the removal as immutable history.
func (s *CourseService) Delete(ctx context.Context, instituteID, id string, actor authz.Actor) error {
	if _, err := s.auth.require(ctx, instituteID, actor, authz.Admin()); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, instituteID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.publish(ctx, events.Event{Type: events.TypeCourseRemoved, InstituteID: instituteID, EntityID: id})
	return nil
}

func (s *CourseService) publish(ctx context.Context, ev events.Event) {
	ev.OccurredAt = time.Now().UTC()
	if err := s.sink.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", ev.Type), zap.Error(err))
	}
}
