package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupay/institute-ledger-api/internal/authz"
	"github.com/edupay/institute-ledger-api/internal/models"
	appErrors "github.com/edupay/institute-ledger-api/pkg/errors"
)

type mockCourseRepo struct {
	courses map[string]models.Course
	titles  map[string]string
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if m.courses == nil {
		m.courses = make(map[string]models.Course)
	}
	if course.ID == "" {
		course.ID = "generated"
	}
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, instituteID, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok && c.InstituteID == instituteID {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) ExistsByTitle(ctx context.Context, instituteID, title, excludeID string) (bool, error) {
	if id, ok := m.titles[title]; ok {
		return excludeID == "" || id != excludeID, nil
	}
	return false, nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	if _, ok := m.courses[course.ID]; !ok {
		return sql.ErrNoRows
	}
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, instituteID, id string) error {
	if _, ok := m.courses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.courses, id)
	return nil
}

func (m *mockCourseRepo) List(ctx context.Context, instituteID string, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	var out []models.CourseDetail
	for _, c := range m.courses {
		out = append(out, models.CourseDetail{Course: c})
	}
	return out, len(out), nil
}

func newCourseFixture() (*CourseService, *mockCourseRepo) {
	repo := &mockCourseRepo{
		courses: map[string]models.Course{
			"course-1": {ID: "course-1", InstituteID: "inst-1", Title: "Calculus I", Instructor: "A. Byron", Capacity: 30},
		},
		titles: map[string]string{"Calculus I": "course-1"},
	}
	svc := NewCourseService(repo, seededInstituteRepo(), authz.Default(), nil, nil, nil)
	return svc, repo
}

func TestCourseServiceCreateRequiresAdmin(t *testing.T) {
	svc, repo := newCourseFixture()

	_, err := svc.Create(context.Background(), "inst-1", authz.Actor{Principal: "stranger"}, CourseRequest{
		Title:      "Linear Algebra",
		Instructor: "A. Byron",
		Capacity:   25,
	})
	require.ErrorIs(t, err, appErrors.ErrNotAuthorized)

	course, err := svc.Create(context.Background(), "inst-1", authz.Actor{Principal: "admin-1"}, CourseRequest{
		Title:      "Linear Algebra",
		Instructor: "A. Byron",
		Capacity:   25,
	})
	require.NoError(t, err)
	assert.Equal(t, "inst-1", course.InstituteID)
	assert.Len(t, repo.courses, 2)
}

func TestCourseServiceCreateDuplicateTitle(t *testing.T) {
	svc, _ := newCourseFixture()

	_, err := svc.Create(context.Background(), "inst-1", authz.Actor{Principal: "owner-1"}, CourseRequest{
		Title:      "Calculus I",
		Instructor: "A. Byron",
		Capacity:   25,
	})
	require.ErrorIs(t, err, appErrors.ErrDuplicateKey)
}

func TestCourseServiceCreateRejectsNonPositiveCapacity(t *testing.T) {
	svc, _ := newCourseFixture()

	_, err := svc.Create(context.Background(), "inst-1", authz.Actor{Principal: "owner-1"}, CourseRequest{
		Title:      "Linear Algebra",
		Instructor: "A. Byron",
		Capacity:   0,
	})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCourseServiceUpdateKeepsTitleWhenUnchanged(t *testing.T) {
	svc, repo := newCourseFixture()

	course, err := svc.Update(context.Background(), "inst-1", "course-1", authz.Actor{Principal: "owner-1"}, CourseRequest{
		Title:      "Calculus I",
		Instructor: "New Instructor",
		Capacity:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, "New Instructor", course.Instructor)
	assert.Equal(t, int64(10), repo.courses["course-1"].Capacity)
}

func TestCourseServiceUpdateMissingCourse(t *testing.T) {
	svc, _ := newCourseFixture()

	_, err := svc.Update(context.Background(), "inst-1", "ghost", authz.Actor{Principal: "owner-1"}, CourseRequest{
		Title:      "Topology",
		Instructor: "A. Byron",
		Capacity:   5,
	})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCourseServiceDelete(t *testing.T) {
	svc, repo := newCourseFixture()

	err := svc.Delete(context.Background(), "inst-1", "course-1", authz.Actor{Principal: "owner-1"})
	require.NoError(t, err)
	assert.Empty(t, repo.courses)

	err = svc.Delete(context.Background(), "inst-1", "course-1", authz.Actor{Principal: "owner-1"})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}
