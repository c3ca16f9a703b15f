package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edubase/reportcard-api/internal/models"
	"github.com/edubase/reportcard-api/internal/service"
	appErrors "github.com/edubase/reportcard-api/pkg/errors"
	"github.com/edubase/reportcard-api/pkg/response"
)

type reportCardService interface {
	GetReportCardWithItems(ctx context.Context, reportCardID string) (*models.ReportCardWithItems, error)
	ListReportCards(ctx context.Context, classID, termID string) ([]models.ReportCard, error)
	SyncExamScore(ctx context.Context, studentID, examID string, score, maxScore float64) *service.SyncResult
	OverrideItemScore(ctx context.Context, itemID string, req service.OverrideItemRequest) (*models.ReportCardItem, error)
	UpdateStatus(ctx context.Context, reportCardID string, newStatus models.ReportCardStatus, userID string) (*models.ReportCard, error)
	GenerateReportCardsForClass(ctx context.Context, req service.GenerateRequest) (*service.BulkSeedResult, error)
}

type exportService interface {
	ExportCSV(ctx context.Context, reportCardID string) ([]byte, error)
	ExportPDF(ctx context.Context, reportCardID string) ([]byte, error)
}

// ReportCardHandler exposes report card endpoints.
type ReportCardHandler struct {
	reportCards reportCardService
	exports     exportService
}

// NewReportCardHandler constructs handler.
func NewReportCardHandler(reportCards reportCardService, exports exportService) *ReportCardHandler {
	return &ReportCardHandler{reportCards: reportCards, exports: exports}
}

// SyncScoreRequest is the payload sent by the exam submission flow.
type SyncScoreRequest struct {
	StudentID string  `json:"student_id" binding:"required"`
	ExamID    string  `json:"exam_id" binding:"required"`
	Score     float64 `json:"score"`
	MaxScore  float64 `json:"max_score"`
}

// UpdateStatusRequest moves a report card through its lifecycle.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	UserID string `json:"user_id" binding:"required"`
}

// Get returns one report card with its items and signatures.
func (h *ReportCardHandler) Get(c *gin.Context) {
	card, err := h.reportCards.GetReportCardWithItems(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

// List returns the report cards of a class and term.
func (h *ReportCardHandler) List(c *gin.Context) {
	classID := c.Query("classId")
	termID := c.Query("termId")
	if classID == "" || termID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classId and termId required"))
		return
	}
	cards, err := h.reportCards.ListReportCards(c.Request.Context(), classID, termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cards, nil)
}

// SyncScore propagates a submitted exam result onto the student's
// report card. The response is 200 even when the sync is skipped or
// fails on missing data; the outcome is in the body.
func (h *ReportCardHandler) SyncScore(c *gin.Context) {
	var req SyncScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result := h.reportCards.SyncExamScore(c.Request.Context(), req.StudentID, req.ExamID, req.Score, req.MaxScore)
	response.JSON(c, http.StatusOK, result, nil)
}

// OverrideItem applies a manual score override to one report card item.
func (h *ReportCardHandler) OverrideItem(c *gin.Context) {
	var req service.OverrideItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.reportCards.OverrideItemScore(c.Request.Context(), c.Param("itemId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// UpdateStatus transitions a report card between draft, finalized and
// published.
func (h *ReportCardHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	status := models.ReportCardStatus(req.Status)
	if !status.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status)))
		return
	}
	card, err := h.reportCards.UpdateStatus(c.Request.Context(), c.Param("id"), status, req.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

// Generate seeds report cards for every active student in a class.
func (h *ReportCardHandler) Generate(c *gin.Context) {
	var req service.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.reportCards.GenerateReportCardsForClass(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ExportCSV streams a report card as a CSV download.
func (h *ReportCardHandler) ExportCSV(c *gin.Context) {
	id := c.Param("id")
	payload, err := h.exports.ExportCSV(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"report-card-%s.csv\"", id))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/csv", payload)
}

// ExportPDF streams a report card as a PDF download.
func (h *ReportCardHandler) ExportPDF(c *gin.Context) {
	id := c.Param("id")
	payload, err := h.exports.ExportPDF(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"report-card-%s.pdf\"", id))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", payload)
}
