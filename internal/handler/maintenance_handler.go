package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edubase/reportcard-api/internal/service"
	appErrors "github.com/edubase/reportcard-api/pkg/errors"
	"github.com/edubase/reportcard-api/pkg/response"
)

type maintenanceService interface {
	CleanupReportCards(ctx context.Context, classIDs []string) (*service.MaintenanceResult, error)
	AddMissingSubjects(ctx context.Context, classIDs []string) (*service.MaintenanceResult, error)
	SyncExamResultsToReportCards(ctx context.Context, examID string) (*service.MaintenanceResult, error)
}

type maintenanceScheduler interface {
	ScheduleTermSync(termID string) (string, error)
	ScheduleClassRepair(classID string) (string, error)
}

// MaintenanceHandler exposes bulk report-card repair endpoints. The
// class-scoped repairs run inline; term-wide syncs are queued because
// they touch every exam result in a term.
type MaintenanceHandler struct {
	maintenance maintenanceService
	scheduler   maintenanceScheduler
}

// NewMaintenanceHandler constructs handler.
func NewMaintenanceHandler(maintenance maintenanceService, scheduler maintenanceScheduler) *MaintenanceHandler {
	return &MaintenanceHandler{maintenance: maintenance, scheduler: scheduler}
}

// ClassScopeRequest names the classes a bulk repair applies to.
type ClassScopeRequest struct {
	ClassIDs []string `json:"class_ids" binding:"required,min=1"`
}

// TermSyncRequest scopes a term-wide score re-sync.
type TermSyncRequest struct {
	TermID string `json:"term_id"`
}

// Cleanup removes report-card items whose subjects are no longer
// mapped to each student.
func (h *MaintenanceHandler) Cleanup(c *gin.Context) {
	var req ClassScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.maintenance.CleanupReportCards(c.Request.Context(), req.ClassIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// AddMissingSubjects backfills report-card items for newly mapped
// subjects.
func (h *MaintenanceHandler) AddMissingSubjects(c *gin.Context) {
	var req ClassScopeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.maintenance.AddMissingSubjects(c.Request.Context(), req.ClassIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SyncMissingScores queues a term-wide exam score re-sync and returns
// the job reference.
func (h *MaintenanceHandler) SyncMissingScores(c *gin.Context) {
	var req TermSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	jobID, err := h.scheduler.ScheduleTermSync(req.TermID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"job_id": jobID, "status": "queued"}, nil)
}

// SyncExamResults pushes every result of one exam onto report cards.
func (h *MaintenanceHandler) SyncExamResults(c *gin.Context) {
	result, err := h.maintenance.SyncExamResultsToReportCards(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
