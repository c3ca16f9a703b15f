package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edubase/reportcard-api/internal/models"
)

type reportCardRepoStub struct {
	cards map[string]*models.ReportCard
	items map[string]*models.ReportCardItem

	nextCard int
	nextItem int

	createdItems int
	deletedItems []string
}

func newReportCardRepoStub() *reportCardRepoStub {
	return &reportCardRepoStub{
		cards: map[string]*models.ReportCard{},
		items: map[string]*models.ReportCardItem{},
	}
}

func (r *reportCardRepoStub) FindByID(ctx context.Context, id string) (*models.ReportCard, error) {
	if card, ok := r.cards[id]; ok {
		copy := *card
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *reportCardRepoStub) FindByStudentAndTerm(ctx context.Context, studentID, termID string) (*models.ReportCard, error) {
	for _, card := range r.cards {
		if card.StudentID == studentID && card.TermID == termID {
			copy := *card
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *reportCardRepoStub) Create(ctx context.Context, card *models.ReportCard) error {
	r.nextCard++
	if card.ID == "" {
		card.ID = fmt.Sprintf("rc-%d", r.nextCard)
	}
	stored := *card
	r.cards[card.ID] = &stored
	return nil
}

func (r *reportCardRepoStub) GetWithItems(ctx context.Context, id string) (*models.ReportCardWithItems, error) {
	card, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, _ := r.ListItems(ctx, id)
	return &models.ReportCardWithItems{ReportCard: *card, Items: items}, nil
}

func (r *reportCardRepoStub) ListItems(ctx context.Context, reportCardID string) ([]models.ReportCardItem, error) {
	var items []models.ReportCardItem
	for _, item := range r.items {
		if item.ReportCardID == reportCardID {
			items = append(items, *item)
		}
	}
	return items, nil
}

func (r *reportCardRepoStub) FindItem(ctx context.Context, reportCardID, subjectID string) (*models.ReportCardItem, error) {
	for _, item := range r.items {
		if item.ReportCardID == reportCardID && item.SubjectID == subjectID {
			copy := *item
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *reportCardRepoStub) FindItemByID(ctx context.Context, itemID string) (*models.ReportCardItem, error) {
	if item, ok := r.items[itemID]; ok {
		copy := *item
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *reportCardRepoStub) CreateItem(ctx context.Context, item *models.ReportCardItem) error {
	r.nextItem++
	if item.ID == "" {
		item.ID = fmt.Sprintf("item-%d", r.nextItem)
	}
	stored := *item
	r.items[item.ID] = &stored
	r.createdItems++
	return nil
}

func (r *reportCardRepoStub) UpdateItem(ctx context.Context, item *models.ReportCardItem) error {
	stored := *item
	r.items[item.ID] = &stored
	return nil
}

func (r *reportCardRepoStub) DeleteItems(ctx context.Context, reportCardID string, subjectIDs []string) error {
	stale := make(map[string]struct{}, len(subjectIDs))
	for _, id := range subjectIDs {
		stale[id] = struct{}{}
	}
	for id, item := range r.items {
		if item.ReportCardID != reportCardID {
			continue
		}
		if _, ok := stale[item.SubjectID]; ok {
			delete(r.items, id)
			r.deletedItems = append(r.deletedItems, item.SubjectID)
		}
	}
	return nil
}

func (r *reportCardRepoStub) ListByClassAndTerm(ctx context.Context, classID, termID string) ([]models.ReportCard, error) {
	var cards []models.ReportCard
	for _, card := range r.cards {
		if card.ClassID == classID && card.TermID == termID {
			cards = append(cards, *card)
		}
	}
	return cards, nil
}

func (r *reportCardRepoStub) UpdateTotals(ctx context.Context, id string, totalScore, averageScore, averagePercentage float64, overallGrade string) error {
	card, ok := r.cards[id]
	if !ok {
		return sql.ErrNoRows
	}
	card.TotalScore = totalScore
	card.AverageScore = averageScore
	card.AveragePercentage = averagePercentage
	card.OverallGrade = overallGrade
	return nil
}

func (r *reportCardRepoStub) UpdateStatusFields(ctx context.Context, card *models.ReportCard) error {
	stored, ok := r.cards[card.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Status = card.Status
	stored.Locked = card.Locked
	stored.FinalizedAt = card.FinalizedAt
	stored.PublishedAt = card.PublishedAt
	return nil
}

func (r *reportCardRepoStub) itemBySubject(reportCardID, subjectID string) *models.ReportCardItem {
	for _, item := range r.items {
		if item.ReportCardID == reportCardID && item.SubjectID == subjectID {
			return item
		}
	}
	return nil
}

type examReaderStub struct {
	exams  map[string]*models.Exam
	latest map[string]*models.ExamScoreRow
}

func newExamReaderStub() *examReaderStub {
	return &examReaderStub{exams: map[string]*models.Exam{}, latest: map[string]*models.ExamScoreRow{}}
}

func latestKey(studentID, subjectID, termID, bucket string) string {
	return studentID + "|" + subjectID + "|" + termID + "|" + bucket
}

func (e *examReaderStub) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	if exam, ok := e.exams[id]; ok {
		copy := *exam
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (e *examReaderStub) LatestScore(ctx context.Context, studentID, subjectID, termID string, examTypes []string) (*models.ExamScoreRow, error) {
	bucket := models.BucketTest.String()
	for _, t := range examTypes {
		if t == models.ExamTypeExam {
			bucket = models.BucketExam.String()
			break
		}
	}
	if row, ok := e.latest[latestKey(studentID, subjectID, termID, bucket)]; ok {
		copy := *row
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type termReaderStub struct {
	current *models.AcademicTerm
	terms   map[string]*models.AcademicTerm
}

func (t *termReaderStub) Current(ctx context.Context) (*models.AcademicTerm, error) {
	if t.current == nil {
		return nil, sql.ErrNoRows
	}
	copy := *t.current
	return &copy, nil
}

func (t *termReaderStub) FindByID(ctx context.Context, id string) (*models.AcademicTerm, error) {
	if term, ok := t.terms[id]; ok {
		copy := *term
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type studentDirectoryStub struct {
	students map[string]*models.Student
	byClass  map[string][]models.Student
}

func (s *studentDirectoryStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if st, ok := s.students[id]; ok {
		copy := *st
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *studentDirectoryStub) ListActiveByClass(ctx context.Context, classID string) ([]models.Student, error) {
	return s.byClass[classID], nil
}

type resolverStub struct {
	byStudent map[string][]ResolvedSubject
	byClass   map[string][]ResolvedSubject
}

func (r *resolverStub) SubjectsForStudent(ctx context.Context, studentID string) ([]ResolvedSubject, error) {
	return r.byStudent[studentID], nil
}

func (r *resolverStub) SubjectsForClass(ctx context.Context, classID string, department *string) ([]ResolvedSubject, error) {
	return r.byClass[classID], nil
}

type rankerStub struct {
	calls     int
	lastClass string
	lastTerm  string
	err       error
}

func (r *rankerStub) Rank(ctx context.Context, classID, termID string) error {
	r.calls++
	r.lastClass = classID
	r.lastTerm = termID
	return r.err
}

type userReaderStub struct {
	users  map[string]*models.User
	admins []models.User
}

func (u *userReaderStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := u.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (u *userReaderStub) AdminsWithSignature(ctx context.Context) ([]models.User, error) {
	return u.admins, nil
}

type auditStub struct {
	entries []*models.AuditLog
}

func (a *auditStub) Insert(ctx context.Context, entry *models.AuditLog) error {
	a.entries = append(a.entries, entry)
	return nil
}

type reportCardFixture struct {
	svc      *ReportCardService
	repo     *reportCardRepoStub
	exams    *examReaderStub
	terms    *termReaderStub
	students *studentDirectoryStub
	classes  *classReaderStub
	users    *userReaderStub
	resolver *resolverStub
	ranker   *rankerStub
	audit    *auditStub
}

func newReportCardFixture() *reportCardFixture {
	f := &reportCardFixture{
		repo:     newReportCardRepoStub(),
		exams:    newExamReaderStub(),
		terms:    &termReaderStub{terms: map[string]*models.AcademicTerm{}},
		students: &studentDirectoryStub{students: map[string]*models.Student{}, byClass: map[string][]models.Student{}},
		classes:  &classReaderStub{classes: map[string]*models.Class{}},
		users:    &userReaderStub{users: map[string]*models.User{}},
		resolver: &resolverStub{byStudent: map[string][]ResolvedSubject{}, byClass: map[string][]ResolvedSubject{}},
		ranker:   &rankerStub{},
		audit:    &auditStub{},
	}
	f.svc = NewReportCardService(
		f.repo, f.exams, f.students, f.classes, f.terms, f.users,
		f.resolver, f.ranker, f.audit,
		nil, nil, models.SystemWeights{}, "standard", nil, nil,
	)
	return f
}

// seedStudent registers a student taking maths and english.
func (f *reportCardFixture) seedStudent() {
	f.students.students["student-1"] = &models.Student{ID: "student-1", ClassID: "class-1", Active: true}
	f.resolver.byStudent["student-1"] = []ResolvedSubject{
		{SubjectID: "math", SubjectName: "Mathematics"},
		{SubjectID: "eng", SubjectName: "English"},
	}
}

func (f *reportCardFixture) seedExam(id, subjectID, examType string) {
	f.exams.exams[id] = &models.Exam{
		ID:        id,
		SubjectID: subjectID,
		ClassID:   "class-1",
		TermID:    "term-1",
		ExamType:  examType,
		CreatedBy: "teacher-1",
	}
}

func TestSyncExamScoreCreatesReportCard(t *testing.T) {
	f := newReportCardFixture()
	f.seedStudent()
	f.seedExam("exam-1", "math", models.ExamTypeTest)

	result := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 15, 20)
	require.True(t, result.Success)
	require.True(t, result.IsNewReportCard)
	require.NotEmpty(t, result.ReportCardID)

	card := f.repo.cards[result.ReportCardID]
	require.NotNil(t, card)
	require.Equal(t, models.StatusDraft, card.Status)
	require.True(t, card.AutoGenerated)

	// Every resolver subject gets an item, not just the synced one.
	items, _ := f.repo.ListItems(context.Background(), card.ID)
	require.Len(t, items, 2)

	item := f.repo.itemBySubject(card.ID, "math")
	require.NotNil(t, item)
	require.InDelta(t, 15, *item.TestScore, 1e-9)
	require.InDelta(t, 20, *item.TestMaxScore, 1e-9)
	require.Nil(t, item.ExamScore)
	require.InDelta(t, 30, item.ObtainedMarks, 1e-9) // 15/20 * 40
	require.Equal(t, "exam-1", *item.TestExamID)
	require.Equal(t, "teacher-1", *item.TestExamCreatedBy)

	require.Equal(t, 1, f.ranker.calls)
	require.Equal(t, "class-1", f.ranker.lastClass)
	require.Equal(t, "term-1", f.ranker.lastTerm)
}

func TestSyncExamScoreExamBucket(t *testing.T) {
	f := newReportCardFixture()
	f.seedStudent()
	f.seedExam("exam-1", "math", models.ExamTypeFinal)

	result := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 45, 60)
	require.True(t, result.Success)

	item := f.repo.itemBySubject(result.ReportCardID, "math")
	require.NotNil(t, item)
	require.Nil(t, item.TestScore)
	require.InDelta(t, 45, *item.ExamScore, 1e-9)
	require.InDelta(t, 45, item.ObtainedMarks, 1e-9) // 45/60 * 60
	require.Equal(t, "exam-1", *item.ExamExamID)
}

func TestSyncExamScoreIdempotent(t *testing.T) {
	f := newReportCardFixture()
	f.seedStudent()
	f.seedExam("exam-1", "math", models.ExamTypeTest)

	first := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 15, 20)
	require.True(t, first.Success)
	itemsBefore, _ := f.repo.ListItems(context.Background(), first.ReportCardID)
	cardBefore := *f.repo.cards[first.ReportCardID]

	second := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 15, 20)
	require.True(t, second.Success)
	require.False(t, second.IsNewReportCard)
	require.Equal(t, first.ReportCardID, second.ReportCardID)

	itemsAfter, _ := f.repo.ListItems(context.Background(), first.ReportCardID)
	require.Len(t, itemsAfter, len(itemsBefore))
	cardAfter := *f.repo.cards[first.ReportCardID]
	require.Equal(t, cardBefore.TotalScore, cardAfter.TotalScore)
	require.Equal(t, cardBefore.AverageScore, cardAfter.AverageScore)
	require.Len(t, f.repo.cards, 1)
}

func TestSyncExamScoreSkipsOverriddenItem(t *testing.T) {
	f := newReportCardFixture()
	f.seedStudent()
	f.seedExam("exam-1", "math", models.ExamTypeTest)

	result := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 15, 20)
	require.True(t, result.Success)

	item := f.repo.itemBySubject(result.ReportCardID, "math")
	override := "admin-1"
	item.IsOverridden = true
	item.OverriddenBy = &override
	manual := 19.0
	item.TestScore = &manual

	again := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 5, 20)
	require.True(t, again.Success)
	require.Contains(t, again.Message, "overridden")

	item = f.repo.itemBySubject(result.ReportCardID, "math")
	require.InDelta(t, 19, *item.TestScore, 1e-9)
}

func TestSyncExamScoreMissingData(t *testing.T) {
	f := newReportCardFixture()
	f.seedStudent()

	result := f.svc.SyncExamScore(context.Background(), "student-1", "missing-exam", 10, 20)
	require.False(t, result.Success)
	require.Contains(t, result.Message, "not found")

	f.exams.exams["broken"] = &models.Exam{ID: "broken", ExamType: models.ExamTypeTest}
	result = f.svc.SyncExamScore(context.Background(), "student-1", "broken", 10, 20)
	require.False(t, result.Success)

	f.seedExam("exam-1", "math", models.ExamTypeTest)
	result = f.svc.SyncExamScore(context.Background(), "ghost", "exam-1", 10, 20)
	require.False(t, result.Success)
	require.Contains(t, result.Message, "not found")
}

func TestSyncAddsNewlyMappedSubjects(t *testing.T) {
	f := newReportCardFixture()
	f.seedStudent()
	f.seedExam("exam-1", "math", models.ExamTypeTest)

	result := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 15, 20)
	require.True(t, result.Success)
	items, _ := f.repo.ListItems(context.Background(), result.ReportCardID)
	require.Len(t, items, 2)

	// A new subject is mapped after the card exists; the next sync adds
	// it without touching anything else.
	f.resolver.byStudent["student-1"] = append(f.resolver.byStudent["student-1"],
		ResolvedSubject{SubjectID: "bio", SubjectName: "Biology"})

	result = f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 15, 20)
	require.True(t, result.Success)
	items, _ = f.repo.ListItems(context.Background(), result.ReportCardID)
	require.Len(t, items, 3)
	require.NotNil(t, f.repo.itemBySubject(result.ReportCardID, "bio"))
}

func TestOverrideItemScore(t *testing.T) {
	f := newReportCardFixture()
	f.seedStudent()
	f.seedExam("exam-1", "math", models.ExamTypeTest)

	result := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 15, 20)
	item := f.repo.itemBySubject(result.ReportCardID, "math")

	remarks := "Reviewed after appeal"
	updated, err := f.svc.OverrideItemScore(context.Background(), item.ID, OverrideItemRequest{
		TestScore:      f64(18),
		ExamScore:      f64(50),
		ExamMaxScore:   f64(60),
		TeacherRemarks: &remarks,
		OverriddenBy:   "admin-1",
	})
	require.NoError(t, err)
	require.True(t, updated.IsOverridden)
	require.Equal(t, "admin-1", *updated.OverriddenBy)
	require.NotNil(t, updated.OverriddenAt)
	require.Equal(t, remarks, updated.Remarks)
	// 18/20*40 + 50/60*60 = 36 + 50
	require.InDelta(t, 86, updated.ObtainedMarks, 1e-9)

	// Untouched fields keep their synced values.
	require.InDelta(t, 20, *updated.TestMaxScore, 1e-9)

	// Sync can no longer modify the item.
	again := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 2, 20)
	require.True(t, again.Success)
	stored := f.repo.itemBySubject(result.ReportCardID, "math")
	require.InDelta(t, 18, *stored.TestScore, 1e-9)
}

func TestOverrideItemScoreValidation(t *testing.T) {
	f := newReportCardFixture()

	_, err := f.svc.OverrideItemScore(context.Background(), "item-1", OverrideItemRequest{TestScore: f64(10)})
	require.Error(t, err)

	_, err = f.svc.OverrideItemScore(context.Background(), "missing", OverrideItemRequest{OverriddenBy: "admin-1"})
	require.Error(t, err)
}

func TestOverrideWorksOnLockedCard(t *testing.T) {
	f := newReportCardFixture()
	f.seedStudent()
	f.seedExam("exam-1", "math", models.ExamTypeTest)

	result := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 15, 20)
	_, err := f.svc.UpdateStatus(context.Background(), result.ReportCardID, models.StatusFinalized, "admin-1")
	require.NoError(t, err)
	require.True(t, f.repo.cards[result.ReportCardID].Locked)

	item := f.repo.itemBySubject(result.ReportCardID, "math")
	_, err = f.svc.OverrideItemScore(context.Background(), item.ID, OverrideItemRequest{
		TestScore:    f64(20),
		OverriddenBy: "admin-1",
	})
	require.NoError(t, err)
}

func TestUpdateStatusLifecycle(t *testing.T) {
	f := newReportCardFixture()
	f.seedStudent()
	f.seedExam("exam-1", "math", models.ExamTypeTest)
	result := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 15, 20)

	// Draft cannot skip straight to published.
	_, err := f.svc.UpdateStatus(context.Background(), result.ReportCardID, models.StatusPublished, "admin-1")
	require.Error(t, err)

	card, err := f.svc.UpdateStatus(context.Background(), result.ReportCardID, models.StatusFinalized, "admin-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusFinalized, card.Status)
	require.NotNil(t, card.FinalizedAt)
	require.Nil(t, card.PublishedAt)
	require.True(t, card.Locked)

	card, err = f.svc.UpdateStatus(context.Background(), result.ReportCardID, models.StatusPublished, "admin-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusPublished, card.Status)
	require.NotNil(t, card.PublishedAt)
	require.True(t, card.Locked)

	card, err = f.svc.UpdateStatus(context.Background(), result.ReportCardID, models.StatusDraft, "admin-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusDraft, card.Status)
	require.Nil(t, card.FinalizedAt)
	require.Nil(t, card.PublishedAt)
	require.False(t, card.Locked)

	// Re-requesting the current status is a silent no-op.
	card, err = f.svc.UpdateStatus(context.Background(), result.ReportCardID, models.StatusDraft, "admin-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusDraft, card.Status)
}

func TestUpdateStatusFinalizeRefreshesScores(t *testing.T) {
	f := newReportCardFixture()
	f.seedStudent()
	f.seedExam("exam-1", "math", models.ExamTypeTest)
	result := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 10, 20)

	// A retake recorded after the sync; finalize must pick it up.
	f.exams.latest[latestKey("student-1", "math", "term-1", "test")] = &models.ExamScoreRow{
		ExamID: "exam-2", SubjectID: "math", ExamType: models.ExamTypeTest,
		CreatedBy: "teacher-2", StudentID: "student-1", Score: 18, MaxScore: 20,
	}

	rankCalls := f.ranker.calls
	_, err := f.svc.UpdateStatus(context.Background(), result.ReportCardID, models.StatusFinalized, "admin-1")
	require.NoError(t, err)

	item := f.repo.itemBySubject(result.ReportCardID, "math")
	require.InDelta(t, 18, *item.TestScore, 1e-9)
	require.Equal(t, "exam-2", *item.TestExamID)
	require.Greater(t, f.ranker.calls, rankCalls)
}

func TestSyncSkipsLockedCard(t *testing.T) {
	f := newReportCardFixture()
	f.seedStudent()
	f.seedExam("exam-1", "math", models.ExamTypeTest)
	result := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 15, 20)

	// Keep the finalize refresh on the synced value.
	f.exams.latest[latestKey("student-1", "math", "term-1", "test")] = &models.ExamScoreRow{
		ExamID: "exam-1", SubjectID: "math", ExamType: models.ExamTypeTest,
		CreatedBy: "teacher-1", StudentID: "student-1", Score: 15, MaxScore: 20,
	}
	_, err := f.svc.UpdateStatus(context.Background(), result.ReportCardID, models.StatusFinalized, "admin-1")
	require.NoError(t, err)

	synced := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 5, 20)
	require.True(t, synced.Success)
	require.Contains(t, synced.Message, "locked")
	require.Equal(t, result.ReportCardID, synced.ReportCardID)

	item := f.repo.itemBySubject(result.ReportCardID, "math")
	require.InDelta(t, 15, *item.TestScore, 1e-9)

	// Reopening the card makes it syncable again.
	_, err = f.svc.UpdateStatus(context.Background(), result.ReportCardID, models.StatusDraft, "admin-1")
	require.NoError(t, err)
	synced = f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 5, 20)
	require.True(t, synced.Success)
	item = f.repo.itemBySubject(result.ReportCardID, "math")
	require.InDelta(t, 5, *item.TestScore, 1e-9)
}

func TestUpdateStatusFinalizeFailureKeepsStatus(t *testing.T) {
	f := newReportCardFixture()
	f.seedStudent()
	f.seedExam("exam-1", "math", models.ExamTypeTest)
	result := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 15, 20)

	f.ranker.err = errors.New("rank failed")
	_, err := f.svc.UpdateStatus(context.Background(), result.ReportCardID, models.StatusFinalized, "admin-1")
	require.Error(t, err)

	card := f.repo.cards[result.ReportCardID]
	require.Equal(t, models.StatusDraft, card.Status)
	require.False(t, card.Locked)
	require.Nil(t, card.FinalizedAt)
}

func TestUpdateStatusNotFound(t *testing.T) {
	f := newReportCardFixture()
	_, err := f.svc.UpdateStatus(context.Background(), "missing", models.StatusFinalized, "admin-1")
	require.Error(t, err)
}

func TestGenerateReportCardsForClass(t *testing.T) {
	f := newReportCardFixture()
	f.terms.terms["term-1"] = &models.AcademicTerm{ID: "term-1", Name: "First Term"}
	f.students.byClass["class-1"] = []models.Student{
		{ID: "student-1", ClassID: "class-1", Active: true},
		{ID: "student-2", ClassID: "class-1", Active: true},
	}
	f.resolver.byStudent["student-1"] = []ResolvedSubject{{SubjectID: "math"}, {SubjectID: "eng"}}
	f.resolver.byStudent["student-2"] = []ResolvedSubject{{SubjectID: "math"}, {SubjectID: "eng"}}

	// Recorded result to backfill for student-1.
	f.exams.latest[latestKey("student-1", "math", "term-1", "test")] = &models.ExamScoreRow{
		ExamID: "exam-1", SubjectID: "math", ExamType: models.ExamTypeTest,
		CreatedBy: "teacher-1", StudentID: "student-1", Score: 16, MaxScore: 20,
	}

	result, err := f.svc.GenerateReportCardsForClass(context.Background(), GenerateRequest{
		ClassID: "class-1", TermID: "term-1", GeneratedBy: "admin-1",
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Processed)
	require.Equal(t, 2, result.Created)
	require.Equal(t, 4, result.ItemsAdded)
	require.Empty(t, result.Errors)
	require.Equal(t, 1, f.ranker.calls)

	card, err := f.repo.FindByStudentAndTerm(context.Background(), "student-1", "term-1")
	require.NoError(t, err)
	item := f.repo.itemBySubject(card.ID, "math")
	require.NotNil(t, item.TestScore)
	require.InDelta(t, 16, *item.TestScore, 1e-9)
	require.InDelta(t, 32, item.ObtainedMarks, 1e-9)
}

func TestGenerateReportCardsZeroSubjects(t *testing.T) {
	f := newReportCardFixture()
	f.terms.terms["term-1"] = &models.AcademicTerm{ID: "term-1"}
	f.students.byClass["class-2"] = []models.Student{{ID: "student-9", ClassID: "class-2", Active: true}}

	result, err := f.svc.GenerateReportCardsForClass(context.Background(), GenerateRequest{
		ClassID: "class-2", TermID: "term-1", GeneratedBy: "admin-1",
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)
	require.Equal(t, 1, result.Created)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "no subjects configured")

	// The card itself still exists, with zero items.
	card, err := f.repo.FindByStudentAndTerm(context.Background(), "student-9", "term-1")
	require.NoError(t, err)
	items, _ := f.repo.ListItems(context.Background(), card.ID)
	require.Empty(t, items)
}

func TestGenerateReportCardsValidation(t *testing.T) {
	f := newReportCardFixture()
	_, err := f.svc.GenerateReportCardsForClass(context.Background(), GenerateRequest{ClassID: "class-1"})
	require.Error(t, err)
}

func TestGetReportCardWithItemsSignatureFallback(t *testing.T) {
	f := newReportCardFixture()
	f.seedStudent()
	f.seedExam("exam-1", "math", models.ExamTypeTest)
	teacherID := "teacher-1"
	f.classes.classes["class-1"] = &models.Class{ID: "class-1", Name: "SS1 Gold", TeacherID: &teacherID}
	teacherSig := "sig://teacher"
	principalSig := "sig://principal"
	f.users.users["teacher-1"] = &models.User{ID: "teacher-1", Role: models.RoleTeacher, Signature: &teacherSig}
	f.users.admins = []models.User{{ID: "admin-1", Role: models.RoleAdmin, Signature: &principalSig}}

	result := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 15, 20)

	full, err := f.svc.GetReportCardWithItems(context.Background(), result.ReportCardID)
	require.NoError(t, err)
	require.NotNil(t, full.TeacherSignature)
	require.Equal(t, teacherSig, *full.TeacherSignature)
	require.NotNil(t, full.PrincipalSignature)
	require.Equal(t, principalSig, *full.PrincipalSignature)
	require.Len(t, full.Items, 2)
}

func TestRecalculateAggregates(t *testing.T) {
	f := newReportCardFixture()
	f.seedStudent()
	f.seedExam("exam-1", "math", models.ExamTypeTest)
	f.seedExam("exam-2", "eng", models.ExamTypeFinal)

	f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 20, 20) // math: 40
	result := f.svc.SyncExamScore(context.Background(), "student-1", "exam-2", 60, 60)

	card := f.repo.cards[result.ReportCardID]
	require.InDelta(t, 100, card.TotalScore, 1e-9) // 40 + 60
	require.InDelta(t, 50, card.AverageScore, 1e-9)
	require.InDelta(t, 50, card.AveragePercentage, 1e-9)
	require.Equal(t, "E", card.OverallGrade)
}

func TestReconcileAndPrune(t *testing.T) {
	f := newReportCardFixture()
	f.seedStudent()
	f.seedExam("exam-1", "math", models.ExamTypeTest)
	result := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 15, 20)

	// English is unmapped, biology appears.
	f.resolver.byStudent["student-1"] = []ResolvedSubject{
		{SubjectID: "math"},
		{SubjectID: "bio"},
	}

	added, err := f.svc.ReconcileReportCard(context.Background(), result.ReportCardID, false)
	require.NoError(t, err)
	require.Equal(t, 1, added)

	removed, err := f.svc.PruneStaleItems(context.Background(), result.ReportCardID)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Equal(t, []string{"eng"}, f.repo.deletedItems)

	items, _ := f.repo.ListItems(context.Background(), result.ReportCardID)
	require.Len(t, items, 2)

	// Second prune is a no-op.
	removed, err = f.svc.PruneStaleItems(context.Background(), result.ReportCardID)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestAuditTrailWritten(t *testing.T) {
	f := newReportCardFixture()
	f.seedStudent()
	f.seedExam("exam-1", "math", models.ExamTypeTest)

	result := f.svc.SyncExamScore(context.Background(), "student-1", "exam-1", 15, 20)
	_, err := f.svc.UpdateStatus(context.Background(), result.ReportCardID, models.StatusFinalized, "admin-1")
	require.NoError(t, err)

	actions := make([]string, 0, len(f.audit.entries))
	for _, entry := range f.audit.entries {
		actions = append(actions, entry.Action)
	}
	require.Contains(t, actions, models.AuditActionScoreSync)
	require.Contains(t, actions, models.AuditActionStatusChange)
}

func f64(v float64) *float64 { return &v }
