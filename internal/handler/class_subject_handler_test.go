package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edubase/reportcard-api/internal/models"
	"github.com/edubase/reportcard-api/internal/service"
)

type subjectResolverMock struct {
	subjects       []service.ResolvedSubject
	err            error
	lastClassID    string
	lastDepartment *string
	lastStudentID  string
	upserted       *models.ClassSubjectMapping
}

func (m *subjectResolverMock) SubjectsForClass(ctx context.Context, classID string, department *string) ([]service.ResolvedSubject, error) {
	m.lastClassID = classID
	m.lastDepartment = department
	return m.subjects, m.err
}

func (m *subjectResolverMock) SubjectsForStudent(ctx context.Context, studentID string) ([]service.ResolvedSubject, error) {
	m.lastStudentID = studentID
	return m.subjects, m.err
}

func (m *subjectResolverMock) UpsertMapping(ctx context.Context, mapping *models.ClassSubjectMapping) error {
	m.upserted = mapping
	return m.err
}

func TestClassSubjectHandlerClassSubjects(t *testing.T) {
	mock := &subjectResolverMock{subjects: []service.ResolvedSubject{
		{SubjectID: "math", SubjectName: "Mathematics", IsCompulsory: true},
	}}
	h := NewClassSubjectHandler(mock, &schedulerMock{})
	c, w := newTestContext(t, http.MethodGet, "/classes/class-1/subjects?department=science", nil)
	c.Params = gin.Params{{Key: "id", Value: "class-1"}}

	h.ClassSubjects(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "class-1", mock.lastClassID)
	require.NotNil(t, mock.lastDepartment)
	assert.Equal(t, "science", *mock.lastDepartment)
	assert.Contains(t, w.Body.String(), "Mathematics")
}

func TestClassSubjectHandlerClassSubjectsNoDepartment(t *testing.T) {
	mock := &subjectResolverMock{}
	h := NewClassSubjectHandler(mock, &schedulerMock{})
	c, w := newTestContext(t, http.MethodGet, "/classes/class-1/subjects", nil)
	c.Params = gin.Params{{Key: "id", Value: "class-1"}}

	h.ClassSubjects(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, mock.lastDepartment)
}

func TestClassSubjectHandlerStudentSubjects(t *testing.T) {
	mock := &subjectResolverMock{subjects: []service.ResolvedSubject{{SubjectID: "bio"}}}
	h := NewClassSubjectHandler(mock, &schedulerMock{})
	c, w := newTestContext(t, http.MethodGet, "/students/student-1/subjects", nil)
	c.Params = gin.Params{{Key: "id", Value: "student-1"}}

	h.StudentSubjects(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student-1", mock.lastStudentID)
}

func TestClassSubjectHandlerUpsertMappingQueuesRepair(t *testing.T) {
	mock := &subjectResolverMock{}
	scheduler := &schedulerMock{jobID: "job-9"}
	h := NewClassSubjectHandler(mock, scheduler)
	c, w := newTestContext(t, http.MethodPost, "/classes/class-1/subjects", UpsertMappingRequest{
		SubjectID: "physics", IsCompulsory: true,
	})
	c.Params = gin.Params{{Key: "id", Value: "class-1"}}

	h.UpsertMapping(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mock.upserted)
	assert.Equal(t, "class-1", mock.upserted.ClassID)
	assert.Equal(t, "physics", mock.upserted.SubjectID)
	assert.Equal(t, "class-1", scheduler.lastClassID)
	assert.Contains(t, w.Body.String(), `"repair_job_id":"job-9"`)
}

func TestClassSubjectHandlerUpsertMappingRequiresSubject(t *testing.T) {
	h := NewClassSubjectHandler(&subjectResolverMock{}, &schedulerMock{})
	c, w := newTestContext(t, http.MethodPost, "/classes/class-1/subjects", UpsertMappingRequest{})
	c.Params = gin.Params{{Key: "id", Value: "class-1"}}

	h.UpsertMapping(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
