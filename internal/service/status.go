package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/edubase/reportcard-api/internal/models"
	appErrors "github.com/edubase/reportcard-api/pkg/errors"
)

// allowedTransitions encodes the report-card lifecycle. Draft cards must
// be finalized before they can be published; finalized and published
// cards can always be reopened.
var allowedTransitions = map[models.ReportCardStatus][]models.ReportCardStatus{
	models.StatusDraft:     {models.StatusFinalized},
	models.StatusFinalized: {models.StatusDraft, models.StatusPublished},
	models.StatusPublished: {models.StatusDraft, models.StatusFinalized},
}

// CanTransition reports whether moving from one status to another is
// permitted. Requesting the current status is treated as a permitted
// no-op by callers, not by this table.
func CanTransition(from, to models.ReportCardStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a typed error naming the invalid transition
// and the allowed targets, or nil when the transition is permitted.
func ValidateTransition(from, to models.ReportCardStatus) error {
	if !to.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown report card status %q", to))
	}
	if CanTransition(from, to) {
		return nil
	}
	targets := make([]string, 0, len(allowedTransitions[from]))
	for _, allowed := range allowedTransitions[from] {
		targets = append(targets, string(allowed))
	}
	sort.Strings(targets)
	return appErrors.Clone(appErrors.ErrInvalidTransition,
		fmt.Sprintf("cannot move report card from %q to %q; allowed: %s", from, to, strings.Join(targets, ", ")))
}
