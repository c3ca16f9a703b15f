package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/edubase/reportcard-api/internal/models"
	appErrors "github.com/edubase/reportcard-api/pkg/errors"
)

type rankingReportCardRepo interface {
	ListForRanking(ctx context.Context, classID, termID string) ([]models.ReportCard, error)
	UpdatePositions(ctx context.Context, updates []models.PositionUpdate) error
}

// RankingService computes class rank positions. Rank is a full snapshot
// recompute from stored scores, so re-running it after a concurrent
// mutation simply overwrites with consistent values.
type RankingService struct {
	reportCards rankingReportCardRepo
	basis       models.RankingBasis
	logger      *zap.Logger
	metrics     *MetricsService
}

// NewRankingService constructs RankingService.
func NewRankingService(reportCards rankingReportCardRepo, basis models.RankingBasis, metrics *MetricsService, logger *zap.Logger) *RankingService {
	if basis != models.RankingBasisTotal {
		basis = models.RankingBasisAverage
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingService{reportCards: reportCards, basis: basis, metrics: metrics, logger: logger}
}

// Rank assigns a position and the class size to every report card in
// the class and term. Ties share a position and the next distinct score
// resumes at its 1-based index, so scores 90,90,80 rank 1,1,3. Only
// report cards belonging to currently-active students are considered.
func (s *RankingService) Rank(ctx context.Context, classID, termID string) error {
	cards, err := s.reportCards.ListForRanking(ctx, classID, termID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report cards for ranking")
	}
	if len(cards) == 0 {
		return nil
	}

	scores := make([]float64, len(cards))
	for i, card := range cards {
		scores[i] = s.scoreOf(card)
	}
	order := make([]int, len(cards))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	updates := make([]models.PositionUpdate, len(cards))
	position := 1
	for rank, idx := range order {
		if rank > 0 && scores[idx] != scores[order[rank-1]] {
			position = rank + 1
		}
		updates[rank] = models.PositionUpdate{
			ReportCardID:         cards[idx].ID,
			Position:             position,
			TotalStudentsInClass: len(cards),
		}
	}

	if err := s.reportCards.UpdatePositions(ctx, updates); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist rank positions")
	}
	if s.metrics != nil {
		s.metrics.RecordRankRecompute()
	}
	s.logger.Debug("class ranked",
		zap.String("class_id", classID),
		zap.String("term_id", termID),
		zap.Int("report_cards", len(cards)),
		zap.String("basis", string(s.basis)))
	return nil
}

func (s *RankingService) scoreOf(card models.ReportCard) float64 {
	if s.basis == models.RankingBasisTotal {
		return card.TotalScore
	}
	return card.AverageScore
}
