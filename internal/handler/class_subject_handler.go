package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edubase/reportcard-api/internal/models"
	"github.com/edubase/reportcard-api/internal/service"
	appErrors "github.com/edubase/reportcard-api/pkg/errors"
	"github.com/edubase/reportcard-api/pkg/response"
)

type subjectResolver interface {
	SubjectsForClass(ctx context.Context, classID string, department *string) ([]service.ResolvedSubject, error)
	SubjectsForStudent(ctx context.Context, studentID string) ([]service.ResolvedSubject, error)
	UpsertMapping(ctx context.Context, mapping *models.ClassSubjectMapping) error
}

// ClassSubjectHandler exposes subject resolution and mapping endpoints.
type ClassSubjectHandler struct {
	resolver  subjectResolver
	scheduler maintenanceScheduler
}

// NewClassSubjectHandler constructs handler.
func NewClassSubjectHandler(resolver subjectResolver, scheduler maintenanceScheduler) *ClassSubjectHandler {
	return &ClassSubjectHandler{resolver: resolver, scheduler: scheduler}
}

// UpsertMappingRequest links a subject to a class, optionally narrowed
// to a department.
type UpsertMappingRequest struct {
	SubjectID    string  `json:"subject_id" binding:"required"`
	Department   *string `json:"department"`
	IsCompulsory bool    `json:"is_compulsory"`
}

// ClassSubjects returns the effective subject list for a class, viewed
// through an optional department.
func (h *ClassSubjectHandler) ClassSubjects(c *gin.Context) {
	var department *string
	if raw, ok := c.GetQuery("department"); ok {
		department = &raw
	}
	subjects, err := h.resolver.SubjectsForClass(c.Request.Context(), c.Param("id"), department)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// StudentSubjects returns the effective subject list for a student.
func (h *ClassSubjectHandler) StudentSubjects(c *gin.Context) {
	subjects, err := h.resolver.SubjectsForStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// UpsertMapping writes a class-subject mapping and queues a repair of
// the class's report cards so items follow the new subject list.
func (h *ClassSubjectHandler) UpsertMapping(c *gin.Context) {
	var req UpsertMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	mapping := &models.ClassSubjectMapping{
		ClassID:      c.Param("id"),
		SubjectID:    req.SubjectID,
		Department:   req.Department,
		IsCompulsory: req.IsCompulsory,
	}
	if err := h.resolver.UpsertMapping(c.Request.Context(), mapping); err != nil {
		response.Error(c, err)
		return
	}
	jobID, err := h.scheduler.ScheduleClassRepair(mapping.ClassID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"mapping": mapping, "repair_job_id": jobID}, nil)
}
