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

type mockStudentReader struct {
	students map[string]models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockEnrollmentRepo struct {
	enrollErr   error
	lastParams  repository.EnrollParams
	enrollments []models.Enrollment
	requests    []models.EnrollmentRequest
	deleted     []string
}

func (m *mockEnrollmentRepo) EnrollAtomic(ctx context.Context, p repository.EnrollParams) (*models.Enrollment, error) {
	m.lastParams = p
	if m.enrollErr != nil {
		return nil, m.enrollErr
	}
	enrollment := models.Enrollment{
		ID:          "enr-1",
		InstituteID: p.InstituteID,
		CourseID:    p.CourseID,
		StudentID:   p.StudentID,
		StudentName: "Ada Lovelace",
		FeePaid:     100,
		EnrolledOn:  p.EnrolledOn,
		CreatedAt:   time.Now().UTC(),
	}
	m.enrollments = append(m.enrollments, enrollment)
	return &enrollment, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	for _, e := range m.enrollments {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) List(ctx context.Context, instituteID string, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	return m.enrollments, len(m.enrollments), nil
}

func (m *mockEnrollmentRepo) CreateRequest(ctx context.Context, request *models.EnrollmentRequest) error {
	if request.ID == "" {
		request.ID = "req-1"
	}
	m.requests = append(m.requests, *request)
	return nil
}

func (m *mockEnrollmentRepo) ListRequests(ctx context.Context, instituteID string) ([]models.EnrollmentRequest, error) {
	return m.requests, nil
}

func (m *mockEnrollmentRepo) DeleteRequest(ctx context.Context, instituteID, id string) error {
	for i, r := range m.requests {
		if r.ID == id {
			m.requests = append(m.requests[:i], m.requests[i+1:]...)
			m.deleted = append(m.deleted, id)
			return nil
		}
	}
	return sql.ErrNoRows
}

func newEnrollmentFixture() (*EnrollmentService, *mockEnrollmentRepo, *recordSink) {
	repo := &mockEnrollmentRepo{}
	students := &mockStudentReader{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", FullName: "Ada Lovelace", OwnerID: "owner-stu"},
	}}
	sink := &recordSink{}
	svc := NewEnrollmentService(repo, students, seededInstituteRepo(), authz.Default(), nil, sink, nil, nil)
	return svc, repo, sink
}

func TestEnrollmentServiceEnrollSucceedsForOwner(t *testing.T) {
	svc, repo, sink := newEnrollmentFixture()

	enrollment, err := svc.Enroll(context.Background(), "inst-1", "owner-stu", EnrollRequest{
		CourseID:   "course-1",
		StudentID:  "stu-1",
		EnrolledOn: "2024-09-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", enrollment.StudentName)
	assert.Equal(t, "course-1", repo.lastParams.CourseID)
	require.Len(t, sink.events, 1)
	assert.Equal(t, events.TypeStudentEnrolled, sink.events[0].Type)
}

func TestEnrollmentServiceEnrollDeniedForNonOwner(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "inst-1", "someone-else", EnrollRequest{
		CourseID:   "course-1",
		StudentID:  "stu-1",
		EnrolledOn: "2024-09-01",
	})
	require.ErrorIs(t, err, appErrors.ErrNotAuthorized)
	assert.Empty(t, repo.enrollments)
}

func TestEnrollmentServiceEnrollMapsCourseFull(t *testing.T) {
	svc, repo, sink := newEnrollmentFixture()
	repo.enrollErr = repository.ErrCourseFull

	_, err := svc.Enroll(context.Background(), "inst-1", "owner-stu", EnrollRequest{
		CourseID:   "course-1",
		StudentID:  "stu-1",
		EnrolledOn: "2024-09-01",
	})
	require.ErrorIs(t, err, appErrors.ErrInsufficientCapacity)
	assert.Empty(t, sink.events)
}

func TestEnrollmentServiceEnrollMapsInsufficientBalance(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()
	repo.enrollErr = ledger.ErrInsufficientBalance

	_, err := svc.Enroll(context.Background(), "inst-1", "owner-stu", EnrollRequest{
		CourseID:   "course-1",
		StudentID:  "stu-1",
		EnrolledOn: "2024-09-01",
	})
	require.ErrorIs(t, err, appErrors.ErrInsufficientBalance)
}

func TestEnrollmentServiceEnrollUnknownStudent(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Enroll(context.Background(), "inst-1", "owner-stu", EnrollRequest{
		CourseID:   "course-1",
		StudentID:  "ghost",
		EnrolledOn: "2024-09-01",
	})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestEnrollmentServiceRequestNeverChecksBalance(t *testing.T) {
	svc, repo, sink := newEnrollmentFixture()

	// stu-1 has a zero balance; intents are recorded regardless.
	request, err := svc.Request(context.Background(), "inst-1", RequestEnrollmentRequest{
		StudentID:   "stu-1",
		HomeAddress: "12 Byron Row",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, request.ID)
	require.Len(t, repo.requests, 1)
	require.Len(t, sink.events, 1)
	assert.Equal(t, events.TypeEnrollmentRequested, sink.events[0].Type)
}

func TestEnrollmentServicePruneRequest(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()
	repo.requests = []models.EnrollmentRequest{{ID: "req-9", InstituteID: "inst-1", StudentID: "stu-1"}}

	err := svc.PruneRequest(context.Background(), "inst-1", "req-9", authz.Actor{Principal: "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"req-9"}, repo.deleted)

	err = svc.PruneRequest(context.Background(), "inst-1", "req-9", authz.Actor{Principal: "admin-1"})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestEnrollmentServicePruneRequiresAdmin(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()
	repo.requests = []models.EnrollmentRequest{{ID: "req-9", InstituteID: "inst-1", StudentID: "stu-1"}}

	err := svc.PruneRequest(context.Background(), "inst-1", "req-9", authz.Actor{Principal: "stranger"})
	require.ErrorIs(t, err, appErrors.ErrNotAuthorized)
	require.Len(t, repo.requests, 1)
}
