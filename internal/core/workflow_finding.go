package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ehscore/pkg/domain"
)

// CorrectiveActionPolicy controls whether a finding may spawn more than one
// corrective action.
type CorrectiveActionPolicy string

// Supported policies.
const (
	CorrectiveActionsAllow  CorrectiveActionPolicy = "allow"
	CorrectiveActionsSingle CorrectiveActionPolicy = "single"
)

// ParseCorrectiveActionPolicy validates a configured policy; empty selects allow.
func ParseCorrectiveActionPolicy(raw string) (CorrectiveActionPolicy, error) {
	switch p := CorrectiveActionPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "", CorrectiveActionsAllow:
		return CorrectiveActionsAllow, nil
	case CorrectiveActionsSingle:
		return p, nil
	default:
		return "", fmt.Errorf("unknown corrective action policy %q", raw)
	}
}

const correctiveSummaryRunes = 100

// CloseFinding moves Abierta to Cerrada.
func CloseFinding(f AuditFinding) (AuditFinding, error) {
	if f.Status != domain.FindingOpen {
		return f, domain.IllegalTransitionError{Entity: domain.EntityAuditFinding, ID: f.ID, From: string(f.Status), Action: "close"}
	}
	f.Status = domain.FindingClosed
	return f, nil
}

// CorrectiveActionFor builds the follow-up activity for an open
// non-conformity. The finding itself is not modified.
func CorrectiveActionFor(f AuditFinding, id string, now time.Time) (Activity, error) {
	if f.Type != domain.FindingNonConformity {
		return Activity{}, domain.IllegalTransitionError{
			Entity: domain.EntityAuditFinding,
			ID:     f.ID,
			From:   string(f.Status),
			Action: "create corrective action",
			Reason: fmt.Sprintf("finding type %q is not a non-conformity", f.Type),
		}
	}
	if f.Status != domain.FindingOpen {
		return Activity{}, domain.IllegalTransitionError{Entity: domain.EntityAuditFinding, ID: f.ID, From: string(f.Status), Action: "create corrective action"}
	}
	priority := domain.PriorityMedium
	if f.Severity == domain.SeverityMajor {
		priority = domain.PriorityHigh
	}
	return Activity{
		Base:             domain.Base{ID: id},
		RegistrationDate: domain.DateOf(now),
		Description:      fmt.Sprintf("Acción Correctiva para Hallazgo: %s... (Ref: %s)", truncateRunes(f.Description, correctiveSummaryRunes), f.Reference),
		Type:             domain.ActivityInternal,
		EstimatedCost:    decimal.Zero,
		Priority:         priority,
		Status:           domain.ActivityPending,
		Comments:         "Generado a partir del hallazgo de auditoría ID: " + f.ID,
		SourceAuditID:    f.AuditID,
		SourceFindingID:  f.ID,
	}, nil
}

func checkCorrectivePolicy(policy CorrectiveActionPolicy, f AuditFinding, activities []Activity) error {
	if policy != CorrectiveActionsSingle {
		return nil
	}
	for _, a := range activities {
		if a.SourceFindingID == f.ID {
			return domain.IllegalTransitionError{
				Entity: domain.EntityAuditFinding,
				ID:     f.ID,
				From:   string(f.Status),
				Action: "create corrective action",
				Reason: "activity " + a.ID + " already tracks this finding",
			}
		}
	}
	return nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
