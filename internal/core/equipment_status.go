package core

import (
	"math"
	"time"

	"ehscore/pkg/domain"
)

// DueSoonDays is the window in which equipment is flagged as due soon.
const DueSoonDays = 7

// EquipmentStanding is the derived inspection standing of one equipment item.
type EquipmentStanding struct {
	Equipment     SafetyEquipment
	Status        domain.EquipmentStatus
	NextDue       domain.Date
	DaysUntilNext int
}

// EquipmentStatusAt derives the standing of eq on the given day. Dates are
// compared at day granularity in UTC.
func EquipmentStatusAt(eq SafetyEquipment, now time.Time) EquipmentStanding {
	standing := EquipmentStanding{Equipment: eq, Status: domain.EquipmentNeverInspected}
	last, err := eq.LastInspectionDate.Time()
	if eq.LastInspectionDate.IsZero() || err != nil {
		return standing
	}
	next := last.AddDate(0, 0, eq.InspectionFrequency)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(math.Ceil(next.Sub(today).Hours() / 24))
	standing.NextDue = domain.DateOf(next)
	standing.DaysUntilNext = days
	switch {
	case days < 1:
		standing.Status = domain.EquipmentOverdue
	case days <= DueSoonDays:
		standing.Status = domain.EquipmentDueSoon
	default:
		standing.Status = domain.EquipmentCompliant
	}
	return standing
}
