package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/edubase/reportcard-api/internal/models"
	appErrors "github.com/edubase/reportcard-api/pkg/errors"
)

type reportCardMaintainer interface {
	ReconcileReportCard(ctx context.Context, reportCardID string, backfill bool) (int, error)
	PruneStaleItems(ctx context.Context, reportCardID string) (int, error)
	SyncExamScore(ctx context.Context, studentID, examID string, score, maxScore float64) *SyncResult
}

type reportCardLister interface {
	ListByClassAndTerm(ctx context.Context, classID, termID string) ([]models.ReportCard, error)
}

type examResultLister interface {
	ListScoreRowsByExam(ctx context.Context, examID string) ([]models.ExamScoreRow, error)
	ListScoreRowsByTerm(ctx context.Context, termID string) ([]models.ExamScoreRow, error)
}

// MaintenanceResult summarises a bulk repair run. Per-item failures are
// collected so one bad record never aborts the batch.
type MaintenanceResult struct {
	Processed int      `json:"processed"`
	Added     int      `json:"added"`
	Removed   int      `json:"removed"`
	Synced    int      `json:"synced"`
	Errors    []string `json:"errors"`
}

// MaintenanceService hosts the long-running bulk repair operations.
// Students are processed sequentially; these run on demand from the
// background queue, not on a schedule.
type MaintenanceService struct {
	reportCards reportCardLister
	results     examResultLister
	maintainer  reportCardMaintainer
	ranker      classRanker
	terms       termReader
	logger      *zap.Logger
}

// NewMaintenanceService constructs MaintenanceService.
func NewMaintenanceService(reportCards reportCardLister, results examResultLister, maintainer reportCardMaintainer, ranker classRanker, terms termReader, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{
		reportCards: reportCards,
		results:     results,
		maintainer:  maintainer,
		ranker:      ranker,
		terms:       terms,
		logger:      logger,
	}
}

// CleanupReportCards removes report-card items whose subjects are no
// longer mapped to each student, across the given classes for the
// current term.
func (s *MaintenanceService) CleanupReportCards(ctx context.Context, classIDs []string) (*MaintenanceResult, error) {
	term, err := s.currentTerm(ctx)
	if err != nil {
		return nil, err
	}
	result := &MaintenanceResult{Errors: []string{}}
	for _, classID := range classIDs {
		cards, err := s.reportCards.ListByClassAndTerm(ctx, classID, term.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("class %s: list report cards: %v", classID, err))
			continue
		}
		for _, card := range cards {
			result.Processed++
			removed, err := s.maintainer.PruneStaleItems(ctx, card.ID)
			result.Removed += removed
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("report card %s: %v", card.ID, err))
			}
		}
		if err := s.ranker.Rank(ctx, classID, term.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("rank class %s: %v", classID, err))
		}
	}
	return result, nil
}

// AddMissingSubjects adds resolver subjects absent from existing report
// cards, backfilling scores from recorded exam results.
func (s *MaintenanceService) AddMissingSubjects(ctx context.Context, classIDs []string) (*MaintenanceResult, error) {
	term, err := s.currentTerm(ctx)
	if err != nil {
		return nil, err
	}
	result := &MaintenanceResult{Errors: []string{}}
	for _, classID := range classIDs {
		cards, err := s.reportCards.ListByClassAndTerm(ctx, classID, term.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("class %s: list report cards: %v", classID, err))
			continue
		}
		for _, card := range cards {
			result.Processed++
			added, err := s.maintainer.ReconcileReportCard(ctx, card.ID, true)
			result.Added += added
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("report card %s: %v", card.ID, err))
			}
		}
		if err := s.ranker.Rank(ctx, classID, term.ID); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("rank class %s: %v", classID, err))
		}
	}
	return result, nil
}

// SyncAllMissingExamScores re-syncs every recorded exam result for the
// term onto report cards. Sync is idempotent, so results already
// reflected are simply rewritten with identical values.
func (s *MaintenanceService) SyncAllMissingExamScores(ctx context.Context, termID string) (*MaintenanceResult, error) {
	if termID == "" {
		term, err := s.currentTerm(ctx)
		if err != nil {
			return nil, err
		}
		termID = term.ID
	}
	rows, err := s.results.ListScoreRowsByTerm(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exam results")
	}
	return s.syncRows(ctx, rows), nil
}

// SyncExamResultsToReportCards pushes every result of one exam onto the
// owning students' report cards.
func (s *MaintenanceService) SyncExamResultsToReportCards(ctx context.Context, examID string) (*MaintenanceResult, error) {
	rows, err := s.results.ListScoreRowsByExam(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exam results")
	}
	return s.syncRows(ctx, rows), nil
}

func (s *MaintenanceService) syncRows(ctx context.Context, rows []models.ExamScoreRow) *MaintenanceResult {
	result := &MaintenanceResult{Errors: []string{}}
	for _, row := range rows {
		result.Processed++
		sync := s.maintainer.SyncExamScore(ctx, row.StudentID, row.ExamID, row.Score, row.MaxScore)
		if !sync.Success {
			result.Errors = append(result.Errors, fmt.Sprintf("student %s exam %s: %s", row.StudentID, row.ExamID, sync.Message))
			continue
		}
		result.Synced++
	}
	return result
}

func (s *MaintenanceService) currentTerm(ctx context.Context) (*models.AcademicTerm, error) {
	term, err := s.terms.Current(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no current academic term configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current term")
	}
	return term, nil
}
