package core

import (
	"context"
	"fmt"

	"ehscore/pkg/domain"
)

// LifecycleTransitionRule blocks unknown states and moves out of terminal
// states on the stateful entities.
func LifecycleTransitionRule() domain.Rule {
	return lifecycleTransitionRule{}
}

type lifecycleTransitionRule struct{}

type lifecycleState struct {
	id    string
	state string
}

type lifecycleMachine struct {
	label     string
	terminal  map[string]struct{}
	valid     map[string]struct{}
	extractor func(payload domain.ChangePayload) ([]lifecycleState, bool)
}

func singleState[T any](get func(T) lifecycleState) func(domain.ChangePayload) ([]lifecycleState, bool) {
	return func(payload domain.ChangePayload) ([]lifecycleState, bool) {
		v, ok := domain.DecodeChangePayload[T](payload)
		if !ok {
			return nil, false
		}
		return []lifecycleState{get(v)}, true
	}
}

var lifecycleMachines = map[domain.EntityType]lifecycleMachine{
	domain.EntityPpeDelivery: {
		label:    "ppe delivery",
		terminal: toSet(string(domain.ApprovalApproved)),
		valid:    toSet(string(domain.ApprovalPending), string(domain.ApprovalApproved)),
		extractor: singleState(func(d PpeDelivery) lifecycleState {
			return lifecycleState{id: d.ID, state: string(d.Status)}
		}),
	},
	domain.EntityWorkPermit: {
		label:    "work permit",
		terminal: toSet(string(domain.PermitRejected), string(domain.PermitClosed)),
		valid: toSet(
			string(domain.PermitRequested),
			string(domain.PermitApproved),
			string(domain.PermitRejected),
			string(domain.PermitInProgress),
			string(domain.PermitClosed),
		),
		extractor: singleState(func(p WorkPermit) lifecycleState {
			return lifecycleState{id: p.ID, state: string(p.Status)}
		}),
	},
	domain.EntityActivity: {
		label: "activity",
		valid: toSet(
			string(domain.ActivityPending),
			string(domain.ActivityInProgress),
			string(domain.ActivityCompleted),
		),
		extractor: singleState(func(a Activity) lifecycleState {
			return lifecycleState{id: a.ID, state: string(a.Status)}
		}),
	},
	// Findings travel inside their audit.
	domain.EntityAudit: {
		label:    "audit finding",
		terminal: toSet(string(domain.FindingClosed)),
		valid:    toSet(string(domain.FindingOpen), string(domain.FindingClosed)),
		extractor: func(payload domain.ChangePayload) ([]lifecycleState, bool) {
			audit, ok := domain.DecodeChangePayload[Audit](payload)
			if !ok {
				return nil, false
			}
			out := make([]lifecycleState, 0, len(audit.Findings))
			for _, f := range audit.Findings {
				out = append(out, lifecycleState{id: f.ID, state: string(f.Status)})
			}
			return out, true
		},
	},
}

func (lifecycleTransitionRule) Name() string { return "lifecycle_transition" }

func (lifecycleTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		machine, ok := lifecycleMachines[change.Entity]
		if !ok {
			continue
		}
		after, ok := machine.extractor(change.After)
		if !ok {
			continue
		}
		invalid := false
		for _, s := range after {
			if _, valid := machine.valid[s.state]; !valid {
				invalid = true
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "lifecycle_transition",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("%s %s is set to invalid state %s", machine.label, s.id, s.state),
					Entity:   change.Entity,
					EntityID: change.ID,
				})
			}
		}
		if invalid {
			continue
		}

		before, ok := machine.extractor(change.Before)
		if !ok {
			continue
		}
		afterByID := make(map[string]string, len(after))
		for _, s := range after {
			afterByID[s.id] = s.state
		}
		for _, s := range before {
			if _, terminal := machine.terminal[s.state]; !terminal {
				continue
			}
			next, present := afterByID[s.id]
			if !present || next == s.state {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "lifecycle_transition",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("cannot move %s %s from terminal state %s to %s", machine.label, s.id, s.state, next),
				Entity:   change.Entity,
				EntityID: change.ID,
			})
		}
	}
	return res, nil
}

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
