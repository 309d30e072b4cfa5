package core

import (
	"time"

	"ehscore/pkg/domain"
)

// permitTransitions lists, per action, the states it may start from.
var permitTransitions = map[string][]domain.WorkPermitStatus{
	"approve": {domain.PermitRequested},
	"reject":  {domain.PermitRequested},
	"start":   {domain.PermitApproved},
	"close":   {domain.PermitApproved, domain.PermitInProgress},
}

func checkPermitTransition(p WorkPermit, action string) error {
	for _, from := range permitTransitions[action] {
		if p.Status == from {
			return nil
		}
	}
	return domain.IllegalTransitionError{Entity: domain.EntityWorkPermit, ID: p.ID, From: string(p.Status), Action: action}
}

func requireReviewer(actor User, action string) error {
	if actor.Level == domain.LevelOperator || actor.Level == "" {
		return domain.AuthorizationError{UserID: actor.ID, Level: actor.Level, Action: action + " work permits"}
	}
	return nil
}

// ApprovePermit moves Solicitado to Aprobado and records the approver.
func ApprovePermit(p WorkPermit, actor User) (WorkPermit, error) {
	if err := checkPermitTransition(p, "approve"); err != nil {
		return p, err
	}
	if err := requireReviewer(actor, "approve"); err != nil {
		return p, err
	}
	p.Status = domain.PermitApproved
	p.ApproverUserID = actor.ID
	return p, nil
}

// RejectPermit moves Solicitado to Rechazado; the rejecter is stored as approver.
func RejectPermit(p WorkPermit, actor User) (WorkPermit, error) {
	if err := checkPermitTransition(p, "reject"); err != nil {
		return p, err
	}
	if err := requireReviewer(actor, "reject"); err != nil {
		return p, err
	}
	p.Status = domain.PermitRejected
	p.ApproverUserID = actor.ID
	return p, nil
}

// StartPermit moves Aprobado to En Progreso.
func StartPermit(p WorkPermit, _ User) (WorkPermit, error) {
	if err := checkPermitTransition(p, "start"); err != nil {
		return p, err
	}
	p.Status = domain.PermitInProgress
	return p, nil
}

// ClosePermit moves Aprobado or En Progreso to Cerrado, stamping closer and date.
func ClosePermit(p WorkPermit, actor User, now time.Time) (WorkPermit, error) {
	if err := checkPermitTransition(p, "close"); err != nil {
		return p, err
	}
	p.Status = domain.PermitClosed
	p.CloserUserID = actor.ID
	p.CloseDate = domain.DateOf(now)
	return p, nil
}

// checkPermitMutable rejects edits and deletes of closed permits.
func checkPermitMutable(p WorkPermit, action string) error {
	if p.Status == domain.PermitClosed {
		return domain.IllegalTransitionError{
			Entity: domain.EntityWorkPermit,
			ID:     p.ID,
			From:   string(p.Status),
			Action: action,
			Reason: "closed permits are read-only",
		}
	}
	return nil
}
