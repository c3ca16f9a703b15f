package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/edubase/reportcard-api/internal/models"
	appErrors "github.com/edubase/reportcard-api/pkg/errors"
)

type mappingStore interface {
	ListByClass(ctx context.Context, classID string) ([]models.ClassSubjectMapping, error)
	Upsert(ctx context.Context, mapping *models.ClassSubjectMapping) error
}

type assignmentReader interface {
	ListActiveByStudent(ctx context.Context, studentID string) ([]models.StudentSubjectAssignment, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

// ResolvedSubject is one entry of a resolved subject list.
type ResolvedSubject struct {
	SubjectID    string `json:"subject_id"`
	SubjectName  string `json:"subject_name"`
	Category     string `json:"category"`
	IsCompulsory bool   `json:"is_compulsory"`
}

// SubjectResolverService is the single source of truth for which
// subjects a student takes in a term.
type SubjectResolverService struct {
	mappings    mappingStore
	assignments assignmentReader
	students    studentReader
	classes     classReader
	logger      *zap.Logger
}

// NewSubjectResolverService constructs SubjectResolverService.
func NewSubjectResolverService(mappings mappingStore, assignments assignmentReader, students studentReader, classes classReader, logger *zap.Logger) *SubjectResolverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectResolverService{mappings: mappings, assignments: assignments, students: students, classes: classes, logger: logger}
}

var seniorLevelPattern = regexp.MustCompile(`(?i)(senior\s+secondary|\bsss?\s*[1-3]\b)`)

// IsSeniorLevel reports whether a class level (or name) denotes a senior
// secondary class, where departments affect subject selection.
func IsSeniorLevel(level string) bool {
	return seniorLevelPattern.MatchString(level)
}

// NormalizeDepartment trims and lowercases a department value; empty or
// whitespace-only values normalise to nil. This is the only place
// department strings are normalised.
func NormalizeDepartment(raw *string) *string {
	if raw == nil {
		return nil
	}
	dept := strings.ToLower(strings.TrimSpace(*raw))
	if dept == "" {
		return nil
	}
	return &dept
}

// SubjectsForClass resolves the subject list for a class and optional
// department from the class-subject mappings. A class with no mappings
// resolves to an empty list: that means the administrator has not
// configured subjects yet, and callers must not substitute a default.
func (s *SubjectResolverService) SubjectsForClass(ctx context.Context, classID string, department *string) ([]ResolvedSubject, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	mappings, err := s.mappings.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class subject mappings")
	}

	senior := IsSeniorLevel(class.Level) || IsSeniorLevel(class.Name)
	dept := NormalizeDepartment(department)

	resolved := make([]ResolvedSubject, 0, len(mappings))
	seen := make(map[string]struct{}, len(mappings))
	for _, m := range mappings {
		mappingDept := NormalizeDepartment(m.Department)
		include := false
		switch {
		case mappingDept == nil:
			// Department-less mappings apply to the whole class.
			include = true
		case senior && dept != nil:
			include = *mappingDept == *dept
		}
		if !include {
			continue
		}
		if _, ok := seen[m.SubjectID]; ok {
			continue
		}
		seen[m.SubjectID] = struct{}{}
		resolved = append(resolved, ResolvedSubject{
			SubjectID:    m.SubjectID,
			SubjectName:  m.SubjectName,
			Category:     m.SubjectCategory,
			IsCompulsory: m.IsCompulsory,
		})
	}
	return resolved, nil
}

// UpsertMapping creates or refreshes a class-subject mapping. The
// department is normalised here, at the single point of entry, so no
// other component ever re-normalises it. Callers are expected to run
// the report-card maintenance operations afterwards so existing cards
// pick up the change.
func (s *SubjectResolverService) UpsertMapping(ctx context.Context, mapping *models.ClassSubjectMapping) error {
	if mapping.ClassID == "" || mapping.SubjectID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "class and subject are required")
	}
	mapping.Department = NormalizeDepartment(mapping.Department)
	if err := s.mappings.Upsert(ctx, mapping); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert class subject mapping")
	}
	return nil
}

// SubjectsForStudent resolves the subject list for a single student.
// Active per-student assignments for the student's current class take
// full precedence over the class/department mapping.
func (s *SubjectResolverService) SubjectsForStudent(ctx context.Context, studentID string) ([]ResolvedSubject, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	assignments, err := s.assignments.ListActiveByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subject assignments")
	}

	overrides := make([]ResolvedSubject, 0, len(assignments))
	seen := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		// Assignments from a previous class are stale, not overrides.
		if a.ClassID != student.ClassID {
			continue
		}
		if _, ok := seen[a.SubjectID]; ok {
			continue
		}
		seen[a.SubjectID] = struct{}{}
		overrides = append(overrides, ResolvedSubject{
			SubjectID:   a.SubjectID,
			SubjectName: a.SubjectName,
			Category:    a.SubjectCategory,
		})
	}
	if len(overrides) > 0 {
		return overrides, nil
	}

	return s.SubjectsForClass(ctx, student.ClassID, student.Department)
}
