package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	ReportCards   *ReportCardHandler
	Maintenance   *MaintenanceHandler
	ClassSubjects *ClassSubjectHandler
	Metrics       *MetricsHandler
}

// RegisterRoutes mounts the API surface under the given prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers) {
	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(prefix)

	cards := api.Group("/report-cards")
	cards.GET("", h.ReportCards.List)
	cards.POST("/sync", h.ReportCards.SyncScore)
	cards.POST("/generate", h.ReportCards.Generate)
	cards.GET("/:id", h.ReportCards.Get)
	cards.PATCH("/:id/status", h.ReportCards.UpdateStatus)
	cards.GET("/:id/export/csv", h.ReportCards.ExportCSV)
	cards.GET("/:id/export/pdf", h.ReportCards.ExportPDF)
	cards.PATCH("/items/:itemId/override", h.ReportCards.OverrideItem)

	maintenance := api.Group("/maintenance")
	maintenance.POST("/cleanup", h.Maintenance.Cleanup)
	maintenance.POST("/add-missing-subjects", h.Maintenance.AddMissingSubjects)
	maintenance.POST("/sync-missing-scores", h.Maintenance.SyncMissingScores)

	api.POST("/exams/:id/sync-report-cards", h.Maintenance.SyncExamResults)

	api.GET("/classes/:id/subjects", h.ClassSubjects.ClassSubjects)
	api.POST("/classes/:id/subjects", h.ClassSubjects.UpsertMapping)
	api.GET("/students/:id/subjects", h.ClassSubjects.StudentSubjects)
}
