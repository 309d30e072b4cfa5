package core

import (
	"context"
	"strings"

	"ehscore/pkg/domain"
)

var riskLevels = map[domain.JhaRiskLevel]struct{}{
	domain.RiskLow:    {},
	domain.RiskMedium: {},
	domain.RiskHigh:   {},
}

// normalizeJha validates a JHA and assigns ids to new steps and hazards.
func normalizeJha(tx *Transaction, j *Jha) error {
	if strings.TrimSpace(j.Title) == "" {
		return domain.ValidationError{Entity: domain.EntityJha, Field: "title", Message: "required"}
	}
	if j.CreationDate.IsZero() {
		j.CreationDate = tx.Today()
	}
	if j.Steps == nil {
		j.Steps = []domain.JhaStep{}
	}
	for i := range j.Steps {
		step := &j.Steps[i]
		if step.ID == "" {
			step.ID = tx.NewID()
		}
		if step.Hazards == nil {
			step.Hazards = []domain.JhaHazard{}
		}
		for k := range step.Hazards {
			h := &step.Hazards[k]
			if h.ID == "" {
				h.ID = tx.NewID()
			}
			if _, ok := riskLevels[h.RiskLevel]; !ok {
				return domain.ValidationError{Entity: domain.EntityJha, Field: "steps.hazards.riskLevel", Message: "unknown risk level " + string(h.RiskLevel)}
			}
		}
	}
	return nil
}

// CreateJha records a job hazard analysis.
func (s *Service) CreateJha(ctx context.Context, actorID string, j Jha) (Jha, Result, error) {
	var created Jha
	res, err := s.run(ctx, "create_jha", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageJha, "create job hazard analyses"); err != nil {
			return "", err
		}
		if err := normalizeJha(tx, &j); err != nil {
			return "", err
		}
		j.ID = tx.NewID()
		var err error
		created, err = insertEntity(tx, domain.KeyJhas, domain.EntityJha, j)
		return j.ID, err
	})
	return created, res, err
}

// UpdateJha replaces a JHA's content, steps and hazards included.
func (s *Service) UpdateJha(ctx context.Context, actorID, id string, mutator func(*Jha) error) (Jha, Result, error) {
	var updated Jha
	res, err := s.run(ctx, "update_jha", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageJha, "update job hazard analyses"); err != nil {
			return id, err
		}
		var err error
		updated, err = updateEntity(tx, domain.KeyJhas, domain.EntityJha, id, func(j *Jha) error {
			if err := mutator(j); err != nil {
				return err
			}
			return normalizeJha(tx, j)
		})
		return id, err
	})
	return updated, res, err
}

// DeleteJha removes a JHA unless an open work permit relies on it.
func (s *Service) DeleteJha(ctx context.Context, actorID, id string) (Result, error) {
	return s.run(ctx, "delete_jha", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageJha, "delete job hazard analyses"); err != nil {
			return id, err
		}
		permits, err := listEntities[WorkPermit](tx, domain.KeyWorkPermits)
		if err != nil {
			return id, err
		}
		if _, err := getEntity[Jha](tx, domain.KeyJhas, domain.EntityJha, id); err != nil {
			return id, err
		}
		if err := guardJhaDelete(id, permits); err != nil {
			return id, err
		}
		_, err = deleteEntity[Jha](tx, domain.KeyJhas, domain.EntityJha, id)
		return id, err
	})
}

// ListJhas returns all analyses.
func (s *Service) ListJhas(ctx context.Context) ([]Jha, error) {
	var out []Jha
	err := s.view(ctx, "list_jhas", func(tx *Transaction) error {
		var err error
		out, err = listEntities[Jha](tx, domain.KeyJhas)
		return err
	})
	newestFirst(out, func(j Jha) domain.Date { return j.CreationDate }, func(j Jha) string { return j.Title })
	return out, err
}

var permitTypes = func() map[domain.WorkPermitType]struct{} {
	set := make(map[domain.WorkPermitType]struct{}, len(domain.WorkPermitTypes))
	for _, t := range domain.WorkPermitTypes {
		set[t] = struct{}{}
	}
	return set
}()

func validatePermit(tx *Transaction, p WorkPermit) error {
	if strings.TrimSpace(p.Title) == "" {
		return domain.ValidationError{Entity: domain.EntityWorkPermit, Field: "title", Message: "required"}
	}
	if _, ok := permitTypes[p.Type]; !ok {
		return domain.ValidationError{Entity: domain.EntityWorkPermit, Field: "type", Message: "unknown type " + string(p.Type)}
	}
	if p.ValidFrom != "" && p.ValidTo != "" && p.ValidTo < p.ValidFrom {
		return domain.ValidationError{Entity: domain.EntityWorkPermit, Field: "validTo", Message: "must not precede validFrom"}
	}
	if p.JhaID != "" {
		if _, err := getEntity[Jha](tx, domain.KeyJhas, domain.EntityJha, p.JhaID); err != nil {
			return err
		}
	}
	return nil
}

// CreatePermit requests a work permit with the next PT folio.
func (s *Service) CreatePermit(ctx context.Context, actorID string, p WorkPermit) (WorkPermit, Result, error) {
	var created WorkPermit
	res, err := s.run(ctx, "create_permit", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageWorkPermits, "request work permits"); err != nil {
			return "", err
		}
		if err := validatePermit(tx, p); err != nil {
			return "", err
		}
		existing, err := listEntities[WorkPermit](tx, domain.KeyWorkPermits)
		if err != nil {
			return "", err
		}
		p.ID = tx.NewID()
		p.Folio = FolioPermit.Next(folios(existing, func(v WorkPermit) string { return v.Folio }))
		p.Status = domain.PermitRequested
		p.RequesterUserID = actor.ID
		p.ApproverUserID, p.CloserUserID, p.CloseDate = "", "", ""
		if p.RequestDate.IsZero() {
			p.RequestDate = tx.Today()
		}
		if p.Equipment == nil {
			p.Equipment = []string{}
		}
		if p.Ppe == nil {
			p.Ppe = []string{}
		}
		created, err = insertEntity(tx, domain.KeyWorkPermits, domain.EntityWorkPermit, p)
		return p.ID, err
	})
	return created, res, err
}

// UpdatePermit edits a permit that is not closed. Status and workflow
// stamps only change through transitions.
func (s *Service) UpdatePermit(ctx context.Context, actorID, id string, mutator func(*WorkPermit) error) (WorkPermit, Result, error) {
	var updated WorkPermit
	res, err := s.run(ctx, "update_permit", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageWorkPermits, "update work permits"); err != nil {
			return id, err
		}
		var err error
		updated, err = updateEntity(tx, domain.KeyWorkPermits, domain.EntityWorkPermit, id, func(p *WorkPermit) error {
			if err := checkPermitMutable(*p, "edit"); err != nil {
				return err
			}
			before := *p
			if err := mutator(p); err != nil {
				return err
			}
			switch {
			case p.Status != before.Status:
				return domain.ValidationError{Entity: domain.EntityWorkPermit, Field: "status", Message: "changes only through workflow transitions"}
			case p.Folio != before.Folio:
				return domain.ValidationError{Entity: domain.EntityWorkPermit, Field: "folio", Message: "cannot be changed"}
			}
			p.RequesterUserID = before.RequesterUserID
			p.ApproverUserID = before.ApproverUserID
			p.CloserUserID = before.CloserUserID
			p.CloseDate = before.CloseDate
			return validatePermit(tx, *p)
		})
		return id, err
	})
	return updated, res, err
}

// DeletePermit removes a permit that is not closed.
func (s *Service) DeletePermit(ctx context.Context, actorID, id string) (Result, error) {
	return s.run(ctx, "delete_permit", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageWorkPermits, "delete work permits"); err != nil {
			return id, err
		}
		p, err := getEntity[WorkPermit](tx, domain.KeyWorkPermits, domain.EntityWorkPermit, id)
		if err != nil {
			return id, err
		}
		if err := checkPermitMutable(p, "delete"); err != nil {
			return id, err
		}
		_, err = deleteEntity[WorkPermit](tx, domain.KeyWorkPermits, domain.EntityWorkPermit, id)
		return id, err
	})
}

// ListPermits returns permits newest first.
func (s *Service) ListPermits(ctx context.Context) ([]WorkPermit, error) {
	var out []WorkPermit
	err := s.view(ctx, "list_permits", func(tx *Transaction) error {
		var err error
		out, err = listEntities[WorkPermit](tx, domain.KeyWorkPermits)
		return err
	})
	newestFirst(out, func(p WorkPermit) domain.Date { return p.RequestDate }, func(p WorkPermit) string { return p.Folio })
	return out, err
}

// ApprovePermit approves a requested permit.
func (s *Service) ApprovePermit(ctx context.Context, actorID, id string) (WorkPermit, Result, error) {
	return s.transitionPermit(ctx, "approve_permit", actorID, id, func(p WorkPermit, actor User, tx *Transaction) (WorkPermit, error) {
		return ApprovePermit(p, actor)
	})
}

// RejectPermit rejects a requested permit.
func (s *Service) RejectPermit(ctx context.Context, actorID, id string) (WorkPermit, Result, error) {
	return s.transitionPermit(ctx, "reject_permit", actorID, id, func(p WorkPermit, actor User, tx *Transaction) (WorkPermit, error) {
		return RejectPermit(p, actor)
	})
}

// StartPermit marks an approved permit as in progress.
func (s *Service) StartPermit(ctx context.Context, actorID, id string) (WorkPermit, Result, error) {
	return s.transitionPermit(ctx, "start_permit", actorID, id, func(p WorkPermit, actor User, tx *Transaction) (WorkPermit, error) {
		return StartPermit(p, actor)
	})
}

// ClosePermit closes an approved or in-progress permit.
func (s *Service) ClosePermit(ctx context.Context, actorID, id string) (WorkPermit, Result, error) {
	return s.transitionPermit(ctx, "close_permit", actorID, id, func(p WorkPermit, actor User, tx *Transaction) (WorkPermit, error) {
		return ClosePermit(p, actor, tx.Now())
	})
}

func (s *Service) transitionPermit(ctx context.Context, op, actorID, id string, transition func(WorkPermit, User, *Transaction) (WorkPermit, error)) (WorkPermit, Result, error) {
	var updated WorkPermit
	res, err := s.run(ctx, op, actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageWorkPermits, "change work permit status"); err != nil {
			return id, err
		}
		var err error
		updated, err = updateEntity(tx, domain.KeyWorkPermits, domain.EntityWorkPermit, id, func(p *WorkPermit) error {
			next, err := transition(*p, actor, tx)
			if err != nil {
				return err
			}
			*p = next
			return nil
		})
		return id, err
	})
	return updated, res, err
}
