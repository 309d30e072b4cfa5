package core

import (
	"context"
	"strings"

	"ehscore/pkg/domain"
)

var findingTypes = map[domain.AuditFindingType]struct{}{
	domain.FindingNonConformity: {},
	domain.FindingObservation:   {},
	domain.FindingImprovement:   {},
}

func validateAudit(a Audit) error {
	switch {
	case strings.TrimSpace(a.Title) == "":
		return domain.ValidationError{Entity: domain.EntityAudit, Field: "title", Message: "required"}
	case a.StartDate.IsZero():
		return domain.ValidationError{Entity: domain.EntityAudit, Field: "startDate", Message: "required"}
	case !a.EndDate.IsZero() && a.EndDate < a.StartDate:
		return domain.ValidationError{Entity: domain.EntityAudit, Field: "endDate", Message: "must not precede startDate"}
	}
	return nil
}

// CreateAudit records an audit with the next AUD folio and no findings.
func (s *Service) CreateAudit(ctx context.Context, actorID string, a Audit) (Audit, Result, error) {
	var created Audit
	res, err := s.run(ctx, "create_audit", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageAudits, "create audits"); err != nil {
			return "", err
		}
		if err := validateAudit(a); err != nil {
			return "", err
		}
		existing, err := listEntities[Audit](tx, domain.KeyAudits)
		if err != nil {
			return "", err
		}
		a.ID = tx.NewID()
		a.Folio = FolioAudit.Next(folios(existing, func(v Audit) string { return v.Folio }))
		a.Findings = []AuditFinding{}
		if a.AuditorIDs == nil {
			a.AuditorIDs = []string{}
		}
		created, err = insertEntity(tx, domain.KeyAudits, domain.EntityAudit, a)
		return a.ID, err
	})
	return created, res, err
}

// UpdateAudit edits audit header fields. Findings change only through the
// finding operations.
func (s *Service) UpdateAudit(ctx context.Context, actorID, id string, mutator func(*Audit) error) (Audit, Result, error) {
	var updated Audit
	res, err := s.run(ctx, "update_audit", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageAudits, "update audits"); err != nil {
			return id, err
		}
		var err error
		updated, err = updateEntity(tx, domain.KeyAudits, domain.EntityAudit, id, func(a *Audit) error {
			folio, findings := a.Folio, a.Findings
			if err := mutator(a); err != nil {
				return err
			}
			if a.Folio != folio {
				return domain.ValidationError{Entity: domain.EntityAudit, Field: "folio", Message: "cannot be changed"}
			}
			a.Findings = findings
			return validateAudit(*a)
		})
		return id, err
	})
	return updated, res, err
}

// DeleteAudit removes an audit and its findings.
func (s *Service) DeleteAudit(ctx context.Context, actorID, id string) (Result, error) {
	return s.run(ctx, "delete_audit", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageAudits, "delete audits"); err != nil {
			return id, err
		}
		_, err := deleteEntity[Audit](tx, domain.KeyAudits, domain.EntityAudit, id)
		return id, err
	})
}

// ListAudits returns audits newest first.
func (s *Service) ListAudits(ctx context.Context) ([]Audit, error) {
	var out []Audit
	err := s.view(ctx, "list_audits", func(tx *Transaction) error {
		var err error
		out, err = listEntities[Audit](tx, domain.KeyAudits)
		return err
	})
	newestFirst(out, func(a Audit) domain.Date { return a.StartDate }, func(a Audit) string { return a.Folio })
	return out, err
}

// AddFinding appends an open finding to an audit.
func (s *Service) AddFinding(ctx context.Context, actorID, auditID string, f AuditFinding) (AuditFinding, Result, error) {
	var created AuditFinding
	res, err := s.run(ctx, "add_finding", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageAudits, "record findings"); err != nil {
			return "", err
		}
		if strings.TrimSpace(f.Description) == "" {
			return "", domain.ValidationError{Entity: domain.EntityAuditFinding, Field: "description", Message: "required"}
		}
		if _, ok := findingTypes[f.Type]; !ok {
			return "", domain.ValidationError{Entity: domain.EntityAuditFinding, Field: "type", Message: "unknown type " + string(f.Type)}
		}
		switch f.Severity {
		case "":
			f.Severity = domain.SeverityMinor
		case domain.SeverityMajor, domain.SeverityMinor:
		default:
			return "", domain.ValidationError{Entity: domain.EntityAuditFinding, Field: "severity", Message: "unknown severity " + string(f.Severity)}
		}
		f.ID = tx.NewID()
		f.AuditID = auditID
		f.Status = domain.FindingOpen
		_, err := updateEntity(tx, domain.KeyAudits, domain.EntityAudit, auditID, func(a *Audit) error {
			a.Findings = append(a.Findings, f)
			return nil
		})
		created = f
		return f.ID, err
	})
	return created, res, err
}

// CloseFinding closes an open finding.
func (s *Service) CloseFinding(ctx context.Context, actorID, auditID, findingID string) (AuditFinding, Result, error) {
	var closed AuditFinding
	res, err := s.run(ctx, "close_finding", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageAudits, "close findings"); err != nil {
			return findingID, err
		}
		_, err := updateEntity(tx, domain.KeyAudits, domain.EntityAudit, auditID, func(a *Audit) error {
			f, idx, ok := a.FindFinding(findingID)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityAuditFinding, ID: findingID}
			}
			next, err := CloseFinding(f)
			if err != nil {
				return err
			}
			findings := append([]AuditFinding(nil), a.Findings...)
			findings[idx] = next
			a.Findings = findings
			closed = next
			return nil
		})
		return findingID, err
	})
	return closed, res, err
}

// CreateCorrectiveAction opens a pending activity for an open
// non-conformity. The finding stays open.
func (s *Service) CreateCorrectiveAction(ctx context.Context, actorID, auditID, findingID string) (Activity, Result, error) {
	var created Activity
	res, err := s.run(ctx, "create_corrective_action", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageAudits, "create corrective actions"); err != nil {
			return "", err
		}
		audit, err := getEntity[Audit](tx, domain.KeyAudits, domain.EntityAudit, auditID)
		if err != nil {
			return "", err
		}
		f, _, ok := audit.FindFinding(findingID)
		if !ok {
			return "", domain.NotFoundError{Entity: domain.EntityAuditFinding, ID: findingID}
		}
		activity, err := CorrectiveActionFor(f, tx.NewID(), tx.Now())
		if err != nil {
			return "", err
		}
		existing, err := listEntities[Activity](tx, domain.KeyActivities)
		if err != nil {
			return "", err
		}
		if err := checkCorrectivePolicy(s.policy, f, existing); err != nil {
			return "", err
		}
		created, err = insertEntity(tx, domain.KeyActivities, domain.EntityActivity, activity)
		return activity.ID, err
	})
	return created, res, err
}

func checkResponsible(tx *Transaction, a Activity) error {
	_, err := getEntity[User](tx, domain.KeyUsers, domain.EntityUser, a.ResponsibleUserID)
	return err
}

// CreateActivity adds a follow-up task through the form path.
func (s *Service) CreateActivity(ctx context.Context, actorID string, a Activity) (Activity, Result, error) {
	var created Activity
	res, err := s.run(ctx, "create_activity", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageActivities, "create activities"); err != nil {
			return "", err
		}
		if a.RegistrationDate.IsZero() {
			a.RegistrationDate = tx.Today()
		}
		if err := validateActivityForm(a); err != nil {
			return "", err
		}
		if err := checkResponsible(tx, a); err != nil {
			return "", err
		}
		a.ID = tx.NewID()
		var err error
		created, err = insertEntity(tx, domain.KeyActivities, domain.EntityActivity, a)
		return a.ID, err
	})
	return created, res, err
}

// UpdateActivity edits an activity through the form path. Links to the
// originating audit finding are kept.
func (s *Service) UpdateActivity(ctx context.Context, actorID, id string, mutator func(*Activity) error) (Activity, Result, error) {
	var updated Activity
	res, err := s.run(ctx, "update_activity", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageActivities, "update activities"); err != nil {
			return id, err
		}
		var err error
		updated, err = updateEntity(tx, domain.KeyActivities, domain.EntityActivity, id, func(a *Activity) error {
			auditID, findingID := a.SourceAuditID, a.SourceFindingID
			if err := mutator(a); err != nil {
				return err
			}
			a.SourceAuditID, a.SourceFindingID = auditID, findingID
			if err := validateActivityForm(*a); err != nil {
				return err
			}
			return checkResponsible(tx, *a)
		})
		return id, err
	})
	return updated, res, err
}

// SetActivityStatus changes only the status of an activity.
func (s *Service) SetActivityStatus(ctx context.Context, actorID, id string, status domain.ActivityStatus) (Activity, Result, error) {
	var updated Activity
	res, err := s.run(ctx, "set_activity_status", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageActivities, "update activity status"); err != nil {
			return id, err
		}
		var err error
		updated, err = updateEntity(tx, domain.KeyActivities, domain.EntityActivity, id, func(a *Activity) error {
			next, err := SetActivityStatus(*a, status)
			if err != nil {
				return err
			}
			*a = next
			return nil
		})
		return id, err
	})
	return updated, res, err
}

// DeleteActivity removes an activity.
func (s *Service) DeleteActivity(ctx context.Context, actorID, id string) (Result, error) {
	return s.run(ctx, "delete_activity", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageActivities, "delete activities"); err != nil {
			return id, err
		}
		_, err := deleteEntity[Activity](tx, domain.KeyActivities, domain.EntityActivity, id)
		return id, err
	})
}

// ListActivities returns activities ordered by commitment date, undated first.
func (s *Service) ListActivities(ctx context.Context) ([]Activity, error) {
	var out []Activity
	err := s.view(ctx, "list_activities", func(tx *Transaction) error {
		var err error
		out, err = listEntities[Activity](tx, domain.KeyActivities)
		return err
	})
	sortActivities(out)
	return out, err
}
