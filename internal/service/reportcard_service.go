package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edubase/reportcard-api/internal/models"
	appErrors "github.com/edubase/reportcard-api/pkg/errors"
)

type reportCardRepo interface {
	FindByID(ctx context.Context, id string) (*models.ReportCard, error)
	FindByStudentAndTerm(ctx context.Context, studentID, termID string) (*models.ReportCard, error)
	Create(ctx context.Context, card *models.ReportCard) error
	GetWithItems(ctx context.Context, id string) (*models.ReportCardWithItems, error)
	ListItems(ctx context.Context, reportCardID string) ([]models.ReportCardItem, error)
	FindItem(ctx context.Context, reportCardID, subjectID string) (*models.ReportCardItem, error)
	FindItemByID(ctx context.Context, itemID string) (*models.ReportCardItem, error)
	CreateItem(ctx context.Context, item *models.ReportCardItem) error
	UpdateItem(ctx context.Context, item *models.ReportCardItem) error
	DeleteItems(ctx context.Context, reportCardID string, subjectIDs []string) error
	ListByClassAndTerm(ctx context.Context, classID, termID string) ([]models.ReportCard, error)
	UpdateTotals(ctx context.Context, id string, totalScore, averageScore, averagePercentage float64, overallGrade string) error
	UpdateStatusFields(ctx context.Context, card *models.ReportCard) error
}

type examReader interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	LatestScore(ctx context.Context, studentID, subjectID, termID string, examTypes []string) (*models.ExamScoreRow, error)
}

type termReader interface {
	Current(ctx context.Context) (*models.AcademicTerm, error)
	FindByID(ctx context.Context, id string) (*models.AcademicTerm, error)
}

type studentDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListActiveByClass(ctx context.Context, classID string) ([]models.Student, error)
}

type subjectResolver interface {
	SubjectsForStudent(ctx context.Context, studentID string) ([]ResolvedSubject, error)
	SubjectsForClass(ctx context.Context, classID string, department *string) ([]ResolvedSubject, error)
}

type classRanker interface {
	Rank(ctx context.Context, classID, termID string) error
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	AdminsWithSignature(ctx context.Context) ([]models.User, error)
}

type auditSink interface {
	Insert(ctx context.Context, log *models.AuditLog) error
}

// SyncResult is the structured outcome of a score sync. Data
// availability problems surface here rather than as errors, so exam
// submission flows can log and continue.
type SyncResult struct {
	Success         bool   `json:"success"`
	ReportCardID    string `json:"report_card_id,omitempty"`
	IsNewReportCard bool   `json:"is_new_report_card"`
	Message         string `json:"message"`
}

// OverrideItemRequest carries a manual score override for one item.
type OverrideItemRequest struct {
	TestScore      *float64 `json:"test_score"`
	TestMaxScore   *float64 `json:"test_max_score"`
	ExamScore      *float64 `json:"exam_score"`
	ExamMaxScore   *float64 `json:"exam_max_score"`
	TeacherRemarks *string  `json:"teacher_remarks"`
	OverriddenBy   string   `json:"overridden_by" validate:"required"`
}

// GenerateRequest seeds report cards for a whole class.
type GenerateRequest struct {
	ClassID      string `json:"class_id" validate:"required"`
	TermID       string `json:"term_id" validate:"required"`
	GradingScale string `json:"grading_scale"`
	GeneratedBy  string `json:"generated_by" validate:"required"`
}

// BulkSeedResult summarises a class-wide generation run.
type BulkSeedResult struct {
	Processed  int      `json:"processed"`
	Created    int      `json:"created"`
	ItemsAdded int      `json:"items_added"`
	Errors     []string `json:"errors"`
}

// ReportCardService orchestrates report-card construction, score sync,
// overrides and the status lifecycle.
type ReportCardService struct {
	reportCards  reportCardRepo
	exams        examReader
	students     studentDirectory
	classes      classReader
	terms        termReader
	users        userReader
	resolver     subjectResolver
	ranker       classRanker
	audit        auditSink
	cache        *CacheService
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	weights      models.SystemWeights
	defaultScale string
}

// NewReportCardService constructs ReportCardService.
func NewReportCardService(
	reportCards reportCardRepo,
	exams examReader,
	students studentDirectory,
	classes classReader,
	terms termReader,
	users userReader,
	resolver subjectResolver,
	ranker classRanker,
	audit auditSink,
	cache *CacheService,
	metrics *MetricsService,
	weights models.SystemWeights,
	defaultScale string,
	validate *validator.Validate,
	logger *zap.Logger,
) *ReportCardService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultScale == "" {
		defaultScale = "standard"
	}
	return &ReportCardService{
		reportCards:  reportCards,
		exams:        exams,
		students:     students,
		classes:      classes,
		terms:        terms,
		users:        users,
		resolver:     resolver,
		ranker:       ranker,
		audit:        audit,
		cache:        cache,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		weights:      weights,
		defaultScale: defaultScale,
	}
}

// SyncExamScore propagates one exam result onto the student's report
// card for the exam's term. It is idempotent: repeating the call with
// identical arguments leaves stored state unchanged. Data availability
// problems are reported in the result, never as a panic or error.
func (s *ReportCardService) SyncExamScore(ctx context.Context, studentID, examID string, score, maxScore float64) *SyncResult {
	start := time.Now()
	result, err := s.syncExamScore(ctx, studentID, examID, score, maxScore)
	if err != nil {
		s.metrics.RecordSync(SyncOutcomeFailed, time.Since(start))
		s.logger.Warn("exam score sync failed",
			zap.String("student_id", studentID),
			zap.String("exam_id", examID),
			zap.Error(err))
		return &SyncResult{Success: false, Message: err.Error()}
	}
	outcome := SyncOutcomeOK
	if result.Message == syncSkippedMessage || result.Message == syncLockedMessage {
		outcome = SyncOutcomeSkipped
	}
	s.metrics.RecordSync(outcome, time.Since(start))
	return result
}

const (
	syncSkippedMessage = "item manually overridden; sync skipped"
	syncLockedMessage  = "report card is locked; sync skipped"
)

func (s *ReportCardService) syncExamScore(ctx context.Context, studentID, examID string, score, maxScore float64) (*SyncResult, error) {
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("exam %s not found", examID)
		}
		return nil, fmt.Errorf("load exam: %w", err)
	}
	if exam.SubjectID == "" || exam.ClassID == "" || exam.TermID == "" {
		return nil, fmt.Errorf("exam %s is missing subject, class or term", examID)
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("student %s not found", studentID)
		}
		return nil, fmt.Errorf("load student: %w", err)
	}

	card, isNew, err := s.findOrCreateReportCard(ctx, student, exam)
	if err != nil {
		return nil, err
	}
	if card.Locked {
		// Finalized and published cards only change through the
		// explicit override path.
		return &SyncResult{Success: true, ReportCardID: card.ID, Message: syncLockedMessage}, nil
	}
	if !isNew {
		// Add-only reconciliation; pruning stale subjects is a
		// separate maintenance operation.
		if _, err := s.addMissingItems(ctx, card, false); err != nil {
			return nil, err
		}
	}

	item, err := s.findOrCreateItem(ctx, card, exam.SubjectID)
	if err != nil {
		return nil, err
	}
	if item.IsOverridden {
		return &SyncResult{Success: true, ReportCardID: card.ID, IsNewReportCard: isNew, Message: syncSkippedMessage}, nil
	}

	switch models.ClassifyExamType(exam.ExamType) {
	case models.BucketExam:
		item.ExamScore = &score
		item.ExamMaxScore = &maxScore
		item.ExamExamID = &exam.ID
		item.ExamExamCreatedBy = &exam.CreatedBy
	default:
		item.TestScore = &score
		item.TestMaxScore = &maxScore
		item.TestExamID = &exam.ID
		item.TestExamCreatedBy = &exam.CreatedBy
	}

	s.applyWeighting(item, s.scaleFor(card))
	if err := s.reportCards.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("update report card item: %w", err)
	}
	if err := s.Recalculate(ctx, card.ID, s.scaleFor(card)); err != nil {
		return nil, err
	}
	if err := s.ranker.Rank(ctx, card.ClassID, card.TermID); err != nil {
		return nil, err
	}
	s.cache.InvalidateClassTerm(ctx, card.ClassID, card.TermID)
	s.recordAudit(ctx, nil, models.AuditActionScoreSync, "report_card_item", item.ID, nil, map[string]interface{}{
		"exam_id": exam.ID, "score": score, "max_score": maxScore,
	})

	message := "exam score synced"
	if isNew {
		message = "report card created and exam score synced"
	}
	return &SyncResult{Success: true, ReportCardID: card.ID, IsNewReportCard: isNew, Message: message}, nil
}

// OverrideItemScore applies a manual score override. It is the only
// path allowed to modify an overridden item and works on locked cards.
func (s *ReportCardService) OverrideItemScore(ctx context.Context, itemID string, req OverrideItemRequest) (*models.ReportCardItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid override payload")
	}
	item, err := s.reportCards.FindItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report card item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report card item")
	}
	card, err := s.reportCards.FindByID(ctx, item.ReportCardID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report card")
	}

	before := *item
	if req.TestScore != nil {
		item.TestScore = req.TestScore
	}
	if req.TestMaxScore != nil {
		item.TestMaxScore = req.TestMaxScore
	}
	if req.ExamScore != nil {
		item.ExamScore = req.ExamScore
	}
	if req.ExamMaxScore != nil {
		item.ExamMaxScore = req.ExamMaxScore
	}

	s.applyWeighting(item, s.scaleFor(card))
	if req.TeacherRemarks != nil {
		item.Remarks = *req.TeacherRemarks
	}
	now := time.Now().UTC()
	item.IsOverridden = true
	item.OverriddenBy = &req.OverriddenBy
	item.OverriddenAt = &now

	if err := s.reportCards.UpdateItem(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist override")
	}
	if err := s.Recalculate(ctx, card.ID, s.scaleFor(card)); err != nil {
		return nil, err
	}
	if err := s.ranker.Rank(ctx, card.ClassID, card.TermID); err != nil {
		return nil, err
	}
	s.cache.InvalidateClassTerm(ctx, card.ClassID, card.TermID)
	s.metrics.RecordOverride()
	s.recordAudit(ctx, &req.OverriddenBy, models.AuditActionScoreOverride, "report_card_item", item.ID, &before, item)
	return item, nil
}

// Recalculate recomputes a report card's aggregate totals from its
// items. A card with zero items is left untouched.
func (s *ReportCardService) Recalculate(ctx context.Context, reportCardID, gradingScale string) error {
	items, err := s.reportCards.ListItems(ctx, reportCardID)
	if err != nil {
		return fmt.Errorf("list report card items: %w", err)
	}
	if len(items) == 0 {
		return nil
	}
	total := 0.0
	totalMax := 0.0
	for _, item := range items {
		total += item.ObtainedMarks
		max := item.TotalMarks
		if max <= 0 {
			max = 100
		}
		totalMax += max
	}
	averageScore := safeNumber(total / float64(len(items)))
	averagePercentage := safeNumber(total / totalMax * 100)
	cfg := ResolveGradingConfig(gradingScale, s.weights)
	overallGrade, _ := ClassifyGrade(averagePercentage, cfg)
	if err := s.reportCards.UpdateTotals(ctx, reportCardID, safeNumber(total), averageScore, averagePercentage, overallGrade); err != nil {
		return fmt.Errorf("update report card totals: %w", err)
	}
	return nil
}

// UpdateStatus drives the draft/finalized/published lifecycle.
// Re-requesting the current status is a no-op. Finalizing refreshes
// every non-overridden item from the latest exam results, recomputes
// totals and re-ranks the class so finalized data is never stale.
func (s *ReportCardService) UpdateStatus(ctx context.Context, reportCardID string, newStatus models.ReportCardStatus, userID string) (*models.ReportCard, error) {
	card, err := s.reportCards.FindByID(ctx, reportCardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report card")
	}
	if card.Status == newStatus {
		return card, nil
	}
	if err := ValidateTransition(card.Status, newStatus); err != nil {
		return nil, err
	}

	previous := card.Status
	now := time.Now().UTC()
	switch newStatus {
	case models.StatusFinalized:
		card.FinalizedAt = &now
		card.PublishedAt = nil
		card.Locked = true
	case models.StatusPublished:
		card.PublishedAt = &now
		card.Locked = true
	case models.StatusDraft:
		card.FinalizedAt = nil
		card.PublishedAt = nil
		card.Locked = false
	}
	card.Status = newStatus

	// The status is persisted only after the recompute succeeds; a
	// failed finalize must leave the card in its previous status.
	if newStatus == models.StatusFinalized {
		if err := s.refreshScores(ctx, card); err != nil {
			return nil, err
		}
		if err := s.Recalculate(ctx, card.ID, s.scaleFor(card)); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to recalculate report card")
		}
		if err := s.ranker.Rank(ctx, card.ClassID, card.TermID); err != nil {
			return nil, err
		}
	}
	if err := s.reportCards.UpdateStatusFields(ctx, card); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update report card status")
	}
	s.cache.InvalidateClassTerm(ctx, card.ClassID, card.TermID)
	s.metrics.RecordStatusTransition(string(newStatus))
	s.recordAudit(ctx, &userID, models.AuditActionStatusChange, "report_card", card.ID,
		map[string]interface{}{"status": previous},
		map[string]interface{}{"status": newStatus})
	return card, nil
}

// GenerateReportCardsForClass seeds (or repairs) report cards for every
// active student in a class, backfilling scores from already-recorded
// exam results. Per-student failures are collected, not thrown: one bad
// record must not abort the class.
func (s *ReportCardService) GenerateReportCardsForClass(ctx context.Context, req GenerateRequest) (*BulkSeedResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate payload")
	}
	term, err := s.terms.FindByID(ctx, req.TermID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	students, err := s.students.ListActiveByClass(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	result := &BulkSeedResult{Errors: []string{}}
	for _, student := range students {
		result.Processed++
		created, added, err := s.generateForStudent(ctx, student, term.ID, req)
		if created {
			result.Created++
		}
		result.ItemsAdded += added
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("student %s: %v", student.ID, err))
		}
	}

	if err := s.ranker.Rank(ctx, req.ClassID, term.ID); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("rank class %s: %v", req.ClassID, err))
	}
	s.cache.InvalidateClassTerm(ctx, req.ClassID, term.ID)
	s.recordAudit(ctx, &req.GeneratedBy, models.AuditActionReportCardCreate, "class", req.ClassID, nil, map[string]interface{}{
		"term_id": term.ID, "created": result.Created, "processed": result.Processed,
	})
	return result, nil
}

// GetReportCardWithItems returns the full read model for one report
// card, with signature fallbacks: a missing teacher signature falls
// back to the class teacher's profile, a missing principal signature to
// the highest-privilege admin profile carrying one.
func (s *ReportCardService) GetReportCardWithItems(ctx context.Context, reportCardID string) (*models.ReportCardWithItems, error) {
	card, err := s.reportCards.FindByID(ctx, reportCardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report card")
	}

	key := ReportCardKey(card.ClassID, card.TermID, card.ID)
	cached := &models.ReportCardWithItems{}
	if s.cache.Get(ctx, key, cached) {
		return cached, nil
	}

	full, err := s.reportCards.GetWithItems(ctx, reportCardID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report card items")
	}
	s.fillSignatures(ctx, full)
	s.cache.Set(ctx, key, full)
	return full, nil
}

func (s *ReportCardService) fillSignatures(ctx context.Context, card *models.ReportCardWithItems) {
	if !hasSignature(card.TeacherSignature) {
		if class, err := s.classes.FindByID(ctx, card.ClassID); err == nil && class.TeacherID != nil {
			if teacher, err := s.users.FindByID(ctx, *class.TeacherID); err == nil && hasSignature(teacher.Signature) {
				card.TeacherSignature = teacher.Signature
			}
		}
	}
	if !hasSignature(card.PrincipalSignature) {
		if admins, err := s.users.AdminsWithSignature(ctx); err == nil && len(admins) > 0 {
			card.PrincipalSignature = admins[0].Signature
		}
	}
}

func hasSignature(sig *string) bool {
	return sig != nil && *sig != ""
}

func (s *ReportCardService) findOrCreateReportCard(ctx context.Context, student *models.Student, exam *models.Exam) (*models.ReportCard, bool, error) {
	card, err := s.reportCards.FindByStudentAndTerm(ctx, student.ID, exam.TermID)
	if err == nil {
		return card, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("find report card: %w", err)
	}

	scale := exam.GradingScale
	if scale == "" {
		scale = s.defaultScale
	}
	card = &models.ReportCard{
		StudentID:     student.ID,
		ClassID:       student.ClassID,
		TermID:        exam.TermID,
		Status:        models.StatusDraft,
		GradingScale:  scale,
		AutoGenerated: true,
		GeneratedAt:   time.Now().UTC(),
	}
	if err := s.reportCards.Create(ctx, card); err != nil {
		return nil, false, fmt.Errorf("create report card: %w", err)
	}
	if _, err := s.addMissingItems(ctx, card, false); err != nil {
		return nil, false, err
	}
	return card, true, nil
}

// addMissingItems reconciles a card's items against the resolver's
// current output, adding what is missing. When backfill is set, newly
// added items are populated from already-recorded exam results.
func (s *ReportCardService) addMissingItems(ctx context.Context, card *models.ReportCard, backfill bool) (int, error) {
	subjects, err := s.resolver.SubjectsForStudent(ctx, card.StudentID)
	if err != nil {
		return 0, fmt.Errorf("resolve subjects: %w", err)
	}
	items, err := s.reportCards.ListItems(ctx, card.ID)
	if err != nil {
		return 0, fmt.Errorf("list report card items: %w", err)
	}
	existing := make(map[string]struct{}, len(items))
	for _, item := range items {
		existing[item.SubjectID] = struct{}{}
	}

	added := 0
	for _, subject := range subjects {
		if _, ok := existing[subject.SubjectID]; ok {
			continue
		}
		item := &models.ReportCardItem{
			ReportCardID: card.ID,
			SubjectID:    subject.SubjectID,
			TotalMarks:   100,
		}
		if err := s.reportCards.CreateItem(ctx, item); err != nil {
			return added, fmt.Errorf("create item for subject %s: %w", subject.SubjectID, err)
		}
		added++
		if backfill {
			if _, err := s.applyLatestScores(ctx, card, item); err != nil {
				return added, err
			}
		}
	}
	return added, nil
}

func (s *ReportCardService) findOrCreateItem(ctx context.Context, card *models.ReportCard, subjectID string) (*models.ReportCardItem, error) {
	item, err := s.reportCards.FindItem(ctx, card.ID, subjectID)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find report card item: %w", err)
	}
	item = &models.ReportCardItem{
		ReportCardID: card.ID,
		SubjectID:    subjectID,
		TotalMarks:   100,
	}
	if err := s.reportCards.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create report card item: %w", err)
	}
	return item, nil
}

// applyLatestScores pulls the most recent test and exam results for the
// item's subject and recomputes the item when anything was found.
// Overridden items are never touched.
func (s *ReportCardService) applyLatestScores(ctx context.Context, card *models.ReportCard, item *models.ReportCardItem) (bool, error) {
	if item.IsOverridden {
		return false, nil
	}
	changed := false
	if row, err := s.exams.LatestScore(ctx, card.StudentID, item.SubjectID, card.TermID, models.BucketTest.Types()); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("load latest test score: %w", err)
		}
	} else if row != nil {
		item.TestScore = &row.Score
		item.TestMaxScore = &row.MaxScore
		item.TestExamID = &row.ExamID
		item.TestExamCreatedBy = &row.CreatedBy
		changed = true
	}
	if row, err := s.exams.LatestScore(ctx, card.StudentID, item.SubjectID, card.TermID, models.BucketExam.Types()); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("load latest exam score: %w", err)
		}
	} else if row != nil {
		item.ExamScore = &row.Score
		item.ExamMaxScore = &row.MaxScore
		item.ExamExamID = &row.ExamID
		item.ExamExamCreatedBy = &row.CreatedBy
		changed = true
	}
	if !changed {
		return false, nil
	}
	s.applyWeighting(item, s.scaleFor(card))
	if err := s.reportCards.UpdateItem(ctx, item); err != nil {
		return false, fmt.Errorf("update report card item: %w", err)
	}
	return true, nil
}

// refreshScores re-pulls every non-overridden item from the latest exam
// results. Used on finalize so the locked data reflects current inputs.
func (s *ReportCardService) refreshScores(ctx context.Context, card *models.ReportCard) error {
	items, err := s.reportCards.ListItems(ctx, card.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report card items")
	}
	for i := range items {
		if _, err := s.applyLatestScores(ctx, card, &items[i]); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refresh item scores")
		}
	}
	return nil
}

func (s *ReportCardService) generateForStudent(ctx context.Context, student models.Student, termID string, req GenerateRequest) (created bool, added int, err error) {
	card, err := s.reportCards.FindByStudentAndTerm(ctx, student.ID, termID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return false, 0, fmt.Errorf("find report card: %w", err)
		}
		scale := req.GradingScale
		if scale == "" {
			scale = s.defaultScale
		}
		card = &models.ReportCard{
			StudentID:    student.ID,
			ClassID:      student.ClassID,
			TermID:       termID,
			Status:       models.StatusDraft,
			GradingScale: scale,
			GeneratedBy:  &req.GeneratedBy,
			GeneratedAt:  time.Now().UTC(),
		}
		if err := s.reportCards.Create(ctx, card); err != nil {
			return false, 0, fmt.Errorf("create report card: %w", err)
		}
		created = true
	}

	subjects, err := s.resolver.SubjectsForStudent(ctx, student.ID)
	if err != nil {
		return created, 0, err
	}
	added, err = s.addMissingItems(ctx, card, true)
	if err != nil {
		return created, added, err
	}
	if err := s.Recalculate(ctx, card.ID, s.scaleFor(card)); err != nil {
		return created, added, err
	}
	if len(subjects) == 0 {
		// Empty resolution means the administrator has not configured
		// subjects for this class yet; the card stays with zero items.
		return created, added, fmt.Errorf("no subjects configured for class %s", student.ClassID)
	}
	return created, added, nil
}

func (s *ReportCardService) applyWeighting(item *models.ReportCardItem, gradingScale string) {
	cfg := ResolveGradingConfig(gradingScale, s.weights)
	ws := ComputeWeightedScore(item.TestScore, item.TestMaxScore, item.ExamScore, item.ExamMaxScore, cfg)
	item.TestWeightedScore = ws.TestWeighted
	item.ExamWeightedScore = ws.ExamWeighted
	item.ObtainedMarks = ws.WeightedScore
	if item.TotalMarks <= 0 {
		item.TotalMarks = 100
	}
	item.Percentage = ws.Percentage
	item.Grade, item.Remarks = ClassifyGrade(ws.Percentage, cfg)
}

func (s *ReportCardService) scaleFor(card *models.ReportCard) string {
	if card.GradingScale != "" {
		return card.GradingScale
	}
	return s.defaultScale
}

// ReconcileReportCard adds any resolver subjects missing from the card,
// optionally backfilling scores from recorded exam results, and
// recomputes totals when something was added.
func (s *ReportCardService) ReconcileReportCard(ctx context.Context, reportCardID string, backfill bool) (int, error) {
	card, err := s.reportCards.FindByID(ctx, reportCardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("report card %s not found", reportCardID)
		}
		return 0, fmt.Errorf("load report card: %w", err)
	}
	added, err := s.addMissingItems(ctx, card, backfill)
	if err != nil {
		return added, err
	}
	if added > 0 {
		if err := s.Recalculate(ctx, card.ID, s.scaleFor(card)); err != nil {
			return added, err
		}
		s.cache.InvalidateClassTerm(ctx, card.ClassID, card.TermID)
	}
	return added, nil
}

// PruneStaleItems deletes items whose subject is no longer in the
// resolver's output for the student, then recomputes totals. Used when
// class/department mappings change.
func (s *ReportCardService) PruneStaleItems(ctx context.Context, reportCardID string) (int, error) {
	card, err := s.reportCards.FindByID(ctx, reportCardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("report card %s not found", reportCardID)
		}
		return 0, fmt.Errorf("load report card: %w", err)
	}
	subjects, err := s.resolver.SubjectsForStudent(ctx, card.StudentID)
	if err != nil {
		return 0, fmt.Errorf("resolve subjects: %w", err)
	}
	valid := make(map[string]struct{}, len(subjects))
	for _, subject := range subjects {
		valid[subject.SubjectID] = struct{}{}
	}
	items, err := s.reportCards.ListItems(ctx, card.ID)
	if err != nil {
		return 0, fmt.Errorf("list report card items: %w", err)
	}
	var stale []string
	for _, item := range items {
		if _, ok := valid[item.SubjectID]; !ok {
			stale = append(stale, item.SubjectID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := s.reportCards.DeleteItems(ctx, card.ID, stale); err != nil {
		return 0, fmt.Errorf("delete stale items: %w", err)
	}
	if err := s.Recalculate(ctx, card.ID, s.scaleFor(card)); err != nil {
		return len(stale), err
	}
	s.cache.InvalidateClassTerm(ctx, card.ClassID, card.TermID)
	return len(stale), nil
}

// ListReportCards returns the report cards for a class and term.
func (s *ReportCardService) ListReportCards(ctx context.Context, classID, termID string) ([]models.ReportCard, error) {
	cards, err := s.reportCards.ListByClassAndTerm(ctx, classID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report cards")
	}
	return cards, nil
}

// recordAudit writes an audit entry; failures are logged and swallowed
// so auditing can never fail a business operation.
func (s *ReportCardService) recordAudit(ctx context.Context, userID *string, action, resource, resourceID string, oldValues, newValues interface{}) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		CreatedAt:  time.Now().UTC(),
	}
	if oldValues != nil {
		if raw, err := json.Marshal(oldValues); err == nil {
			entry.OldValues = raw
		}
	}
	if newValues != nil {
		if raw, err := json.Marshal(newValues); err == nil {
			entry.NewValues = raw
		}
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}
