package core

import (
	"sort"
	"strings"

	"ehscore/pkg/domain"
)

var activityStatuses = map[domain.ActivityStatus]struct{}{
	domain.ActivityPending:    {},
	domain.ActivityInProgress: {},
	domain.ActivityCompleted:  {},
}

var activityPriorities = map[domain.ActivityPriority]struct{}{
	domain.PriorityLow:    {},
	domain.PriorityMedium: {},
	domain.PriorityHigh:   {},
}

// validateActivityForm applies the checks of the activity form path. Activities
// generated from findings skip them until they are edited.
func validateActivityForm(a Activity) error {
	switch {
	case strings.TrimSpace(a.Description) == "":
		return domain.ValidationError{Entity: domain.EntityActivity, Field: "description", Message: "required"}
	case a.CommitmentDate.IsZero():
		return domain.ValidationError{Entity: domain.EntityActivity, Field: "commitmentDate", Message: "required"}
	case strings.TrimSpace(a.ResponsibleUserID) == "":
		return domain.ValidationError{Entity: domain.EntityActivity, Field: "responsibleUserId", Message: "required"}
	}
	if _, err := a.CommitmentDate.Time(); err != nil {
		return domain.ValidationError{Entity: domain.EntityActivity, Field: "commitmentDate", Message: "must be YYYY-MM-DD"}
	}
	if _, ok := activityStatuses[a.Status]; !ok {
		return domain.ValidationError{Entity: domain.EntityActivity, Field: "status", Message: "unknown status " + string(a.Status)}
	}
	if _, ok := activityPriorities[a.Priority]; !ok {
		return domain.ValidationError{Entity: domain.EntityActivity, Field: "priority", Message: "unknown priority " + string(a.Priority)}
	}
	if a.EstimatedCost.IsNegative() {
		return domain.ValidationError{Entity: domain.EntityActivity, Field: "estimatedCost", Message: "must not be negative"}
	}
	return nil
}

// SetActivityStatus changes status to any known value.
func SetActivityStatus(a Activity, status domain.ActivityStatus) (Activity, error) {
	if _, ok := activityStatuses[status]; !ok {
		return a, domain.ValidationError{Entity: domain.EntityActivity, Field: "status", Message: "unknown status " + string(status)}
	}
	a.Status = status
	return a, nil
}

func sortActivities(items []Activity) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CommitmentDate < items[j].CommitmentDate
	})
}
