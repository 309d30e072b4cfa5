package core

import (
	"fmt"

	"ehscore/pkg/domain"
)

// ResolutionKind distinguishes a live reference from a dangling one.
type ResolutionKind int

// Resolution kinds.
const (
	// Unknown means no reference was recorded.
	Unknown ResolutionKind = iota
	// Found means the referenced entity exists.
	Found
	// Deleted means the reference points at an entity that no longer exists.
	Deleted
)

func (k ResolutionKind) String() string {
	switch k {
	case Found:
		return "found"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of looking up a cross-collection reference.
type Resolution[T any] struct {
	Kind  ResolutionKind
	ID    string
	Value T
}

// OK reports whether the reference resolved to a live entity.
func (r Resolution[T]) OK() bool { return r.Kind == Found }

// Resolve finds id in items.
func Resolve[T identified](id string, items []T) Resolution[T] {
	if id == "" {
		return Resolution[T]{Kind: Unknown}
	}
	if idx := indexOf(items, id); idx >= 0 {
		return Resolution[T]{Kind: Found, ID: id, Value: items[idx]}
	}
	return Resolution[T]{Kind: Deleted, ID: id}
}

// NotAvailable is shown in place of an unresolved label.
const NotAvailable = "N/A"

// WasteOrPlaceholder returns the referenced waste or the placeholder shown for
// logs whose waste was removed.
func WasteOrPlaceholder(r Resolution[Waste]) Waste {
	if r.Kind == Found {
		return r.Value
	}
	return Waste{
		Base:            domain.Base{ID: "deleted-" + r.ID},
		Name:            "Residuo Eliminado",
		Type:            domain.WasteNonHazardous,
		StorageLocation: NotAvailable,
		DisposalMethod:  NotAvailable,
	}
}

// EmployeeLabel returns the employee name or N/A.
func EmployeeLabel(r Resolution[Employee]) string {
	if r.Kind == Found {
		return r.Value.Name
	}
	return NotAvailable
}

// UserLabel returns the user full name or N/A.
func UserLabel(r Resolution[User]) string {
	if r.Kind == Found {
		return r.Value.FullName
	}
	return NotAvailable
}

// PpeLabel returns "name (size)" or N/A.
func PpeLabel(r Resolution[PpeItem]) string {
	if r.Kind != Found {
		return NotAvailable
	}
	if r.Value.Size == "" {
		return r.Value.Name
	}
	return fmt.Sprintf("%s (%s)", r.Value.Name, r.Value.Size)
}

func referencedBy(entity EntityType, id string, by EntityType, byID string) error {
	return domain.DeleteGuardViolation{Entity: entity, ID: id, ReferencedBy: by, ReferenceID: byID}
}

func guardWasteDelete(id string, logs []WasteLog) error {
	for _, l := range logs {
		if l.WasteID == id {
			return referencedBy(domain.EntityWaste, id, domain.EntityWasteLog, l.ID)
		}
	}
	return nil
}

func guardPpeDelete(id string, deliveries []PpeDelivery, movements []StockMovement) error {
	for _, d := range deliveries {
		if d.PpeID == id {
			return referencedBy(domain.EntityPpeItem, id, domain.EntityPpeDelivery, d.ID)
		}
	}
	for _, m := range movements {
		if m.PpeID == id {
			return referencedBy(domain.EntityPpeItem, id, domain.EntityStockMovement, m.ID)
		}
	}
	return nil
}

func guardJhaDelete(id string, permits []WorkPermit) error {
	for _, p := range permits {
		if p.JhaID == id && p.Status != domain.PermitClosed {
			return referencedBy(domain.EntityJha, id, domain.EntityWorkPermit, p.ID)
		}
	}
	return nil
}

// employeeRefs holds the collections that point at employees.
type employeeRefs struct {
	deliveries  []PpeDelivery
	incidents   []Incident
	inspections []Inspection
	trainings   []Training
}

func guardEmployeeDelete(id string, refs employeeRefs) error {
	for _, d := range refs.deliveries {
		if d.EmployeeID == id {
			return referencedBy(domain.EntityEmployee, id, domain.EntityPpeDelivery, d.ID)
		}
	}
	for _, in := range refs.incidents {
		if in.EmployeeID != nil && *in.EmployeeID == id {
			return referencedBy(domain.EntityEmployee, id, domain.EntityIncident, in.ID)
		}
	}
	for _, in := range refs.inspections {
		if in.EmployeeID == id {
			return referencedBy(domain.EntityEmployee, id, domain.EntityInspection, in.ID)
		}
	}
	for _, tr := range refs.trainings {
		for _, a := range tr.Attendees {
			if a == id {
				return referencedBy(domain.EntityEmployee, id, domain.EntityTraining, tr.ID)
			}
		}
	}
	return nil
}

// userRefs holds the collections that point at users.
type userRefs struct {
	deliveries []PpeDelivery
	permits    []WorkPermit
	audits     []Audit
	wasteLogs  []WasteLog
	logs       []SafetyInspectionLog
	activities []Activity
}

func guardUserDelete(id string, actor User, refs userRefs) error {
	if id == actor.ID {
		return domain.DeleteGuardViolation{Entity: domain.EntityUser, ID: id, Message: "users cannot delete their own account"}
	}
	for _, d := range refs.deliveries {
		if d.RequestedByUserID == id || d.ApprovedByUserID == id {
			return referencedBy(domain.EntityUser, id, domain.EntityPpeDelivery, d.ID)
		}
	}
	for _, p := range refs.permits {
		if p.RequesterUserID == id || p.ApproverUserID == id || p.CloserUserID == id {
			return referencedBy(domain.EntityUser, id, domain.EntityWorkPermit, p.ID)
		}
	}
	for _, a := range refs.audits {
		if a.LeadAuditorID == id {
			return referencedBy(domain.EntityUser, id, domain.EntityAudit, a.ID)
		}
	}
	for _, l := range refs.wasteLogs {
		if l.RecordedByUserID == id {
			return referencedBy(domain.EntityUser, id, domain.EntityWasteLog, l.ID)
		}
	}
	for _, l := range refs.logs {
		if l.InspectorID == id {
			return referencedBy(domain.EntityUser, id, domain.EntitySafetyInspectionLog, l.ID)
		}
	}
	for _, a := range refs.activities {
		if a.ResponsibleUserID == id {
			return referencedBy(domain.EntityUser, id, domain.EntityActivity, a.ID)
		}
	}
	return nil
}
