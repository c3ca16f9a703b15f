package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edubase/reportcard-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

var reportCardCols = []string{
	"id", "student_id", "class_id", "term_id", "status", "grading_scale",
	"total_score", "average_score", "average_percentage", "overall_grade",
	"position", "total_students_in_class", "locked", "auto_generated", "generated_by",
	"teacher_remarks", "principal_remarks", "teacher_signature", "principal_signature",
	"generated_at", "finalized_at", "published_at", "created_at", "updated_at",
}

func reportCardRow(id, studentID string, average float64) []driver.Value {
	now := time.Now()
	return []driver.Value{
		id, studentID, "class-1", "term-1", "draft", "standard",
		average * 8, average, average, "B",
		nil, 0, false, true, nil,
		nil, nil, nil, nil,
		now, nil, nil, now, now,
	}
}

func TestReportCardRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	rows := sqlmock.NewRows(reportCardCols).AddRow(reportCardRow("rc-1", "student-1", 82.5)...)
	mock.ExpectQuery("SELECT (.+) FROM report_cards WHERE id").
		WithArgs("rc-1").
		WillReturnRows(rows)

	card, err := repo.FindByID(context.Background(), "rc-1")
	require.NoError(t, err)
	assert.Equal(t, "rc-1", card.ID)
	assert.Equal(t, models.StatusDraft, card.Status)
	assert.InDelta(t, 82.5, card.AverageScore, 1e-9)
}

func TestReportCardRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM report_cards WHERE id").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "ghost")
	require.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestReportCardRepositoryCreateAssignsDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectExec("INSERT INTO report_cards").
		WillReturnResult(sqlmock.NewResult(1, 1))

	card := &models.ReportCard{StudentID: "student-1", ClassID: "class-1", TermID: "term-1"}
	require.NoError(t, repo.Create(context.Background(), card))
	assert.NotEmpty(t, card.ID)
	assert.Equal(t, models.StatusDraft, card.Status)
	assert.False(t, card.GeneratedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryUpdatePositions(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE report_cards SET position").
		WithArgs(1, 2, sqlmock.AnyArg(), "rc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE report_cards SET position").
		WithArgs(2, 2, sqlmock.AnyArg(), "rc-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	updates := []models.PositionUpdate{
		{ReportCardID: "rc-1", Position: 1, TotalStudentsInClass: 2},
		{ReportCardID: "rc-2", Position: 2, TotalStudentsInClass: 2},
	}
	require.NoError(t, repo.UpdatePositions(context.Background(), updates))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryUpdatePositionsEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	require.NoError(t, repo.UpdatePositions(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryUpdatePositionsRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE report_cards SET position").
		WithArgs(1, 1, sqlmock.AnyArg(), "rc-1").
		WillReturnError(errors.New("write failed"))
	mock.ExpectRollback()

	err := repo.UpdatePositions(context.Background(), []models.PositionUpdate{
		{ReportCardID: "rc-1", Position: 1, TotalStudentsInClass: 1},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryUpdateTotals(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectExec("UPDATE report_cards").
		WithArgs(540.0, 67.5, 67.5, "B3", sqlmock.AnyArg(), "rc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateTotals(context.Background(), "rc-1", 540, 67.5, 67.5, "B3"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryListForRankingFiltersInactive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	rows := sqlmock.NewRows(reportCardCols).
		AddRow(reportCardRow("rc-1", "student-1", 90)...).
		AddRow(reportCardRow("rc-2", "student-2", 70)...)
	mock.ExpectQuery("JOIN students st ON st.id = rc.student_id").
		WithArgs("class-1", "term-1").
		WillReturnRows(rows)

	cards, err := repo.ListForRanking(context.Background(), "class-1", "term-1")
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "rc-1", cards[0].ID)
}

func TestReportCardRepositoryDeleteItems(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectExec("DELETE FROM report_card_items").
		WithArgs("rc-1", "math", "bio").
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.DeleteItems(context.Background(), "rc-1", []string{"math", "bio"}))
	require.NoError(t, repo.DeleteItems(context.Background(), "rc-1", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardRepositoryCreateItem(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectExec("INSERT INTO report_card_items").
		WillReturnResult(sqlmock.NewResult(1, 1))

	item := &models.ReportCardItem{ReportCardID: "rc-1", SubjectID: "math", TotalMarks: 100}
	require.NoError(t, repo.CreateItem(context.Background(), item))
	assert.NotEmpty(t, item.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
