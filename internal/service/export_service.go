package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/edubase/reportcard-api/internal/models"
	"github.com/edubase/reportcard-api/pkg/export"
)

type reportCardExportSource interface {
	GetReportCardWithItems(ctx context.Context, reportCardID string) (*models.ReportCardWithItems, error)
}

// ExportService renders report cards as CSV or PDF documents.
type ExportService struct {
	source reportCardExportSource
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(source reportCardExportSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		source: source,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

var reportCardHeaders = []string{"Subject", "Test", "Exam", "Total", "Percentage", "Grade", "Remarks"}

// ExportCSV renders a report card as CSV bytes.
func (s *ExportService) ExportCSV(ctx context.Context, reportCardID string) ([]byte, error) {
	card, err := s.source.GetReportCardWithItems(ctx, reportCardID)
	if err != nil {
		return nil, err
	}
	return s.csv.Render(s.dataset(card))
}

// ExportPDF renders a report card as a PDF document.
func (s *ExportService) ExportPDF(ctx context.Context, reportCardID string) ([]byte, error) {
	card, err := s.source.GetReportCardWithItems(ctx, reportCardID)
	if err != nil {
		return nil, err
	}

	headerLines := []string{
		fmt.Sprintf("Student: %s", card.StudentName),
		fmt.Sprintf("Class: %s    Term: %s", card.ClassName, card.TermName),
		fmt.Sprintf("Status: %s", card.Status),
	}
	summaryLines := []string{
		fmt.Sprintf("Total: %.2f    Average: %.2f (%.2f%%)    Overall Grade: %s",
			card.TotalScore, card.AverageScore, card.AveragePercentage, card.OverallGrade),
	}
	if card.Position != nil {
		summaryLines = append(summaryLines,
			fmt.Sprintf("Position: %d of %d", *card.Position, card.TotalStudentsInClass))
	}
	if card.TeacherRemarks != nil && *card.TeacherRemarks != "" {
		summaryLines = append(summaryLines, fmt.Sprintf("Teacher's Remarks: %s", *card.TeacherRemarks))
	}
	if card.PrincipalRemarks != nil && *card.PrincipalRemarks != "" {
		summaryLines = append(summaryLines, fmt.Sprintf("Principal's Remarks: %s", *card.PrincipalRemarks))
	}

	return s.pdf.Render(s.dataset(card), "Student Report Card", headerLines, summaryLines)
}

func (s *ExportService) dataset(card *models.ReportCardWithItems) export.Dataset {
	rows := make([]map[string]string, 0, len(card.Items))
	for _, item := range card.Items {
		rows = append(rows, map[string]string{
			"Subject":    item.SubjectName,
			"Test":       formatComponent(item.TestScore, item.TestMaxScore),
			"Exam":       formatComponent(item.ExamScore, item.ExamMaxScore),
			"Total":      strconv.FormatFloat(item.ObtainedMarks, 'f', 2, 64),
			"Percentage": strconv.FormatFloat(item.Percentage, 'f', 2, 64),
			"Grade":      item.Grade,
			"Remarks":    item.Remarks,
		})
	}
	return export.Dataset{Headers: reportCardHeaders, Rows: rows}
}

func formatComponent(score, max *float64) string {
	if score == nil || max == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f/%.1f", *score, *max)
}
