package core

import (
	"context"
	"fmt"

	"ehscore/pkg/domain"
)

// FolioUniquenessRule blocks a created or re-numbered record from taking a
// folio another record in its family already holds. Duplicates that were
// already stored are left alone so legacy snapshots stay editable.
func FolioUniquenessRule() domain.Rule {
	return folioUniquenessRule{}
}

type folioUniquenessRule struct{}

func (folioUniquenessRule) Name() string { return "folio_unique" }

var folioEntities = map[domain.EntityType]struct{}{
	domain.EntityIncident:    {},
	domain.EntityPpeDelivery: {},
	domain.EntityAudit:       {},
	domain.EntityWorkPermit:  {},
	domain.EntityWasteLog:    {},
}

type folioOwner struct {
	ID    string `json:"id"`
	Folio string `json:"folio"`
}

// assignedFolio returns the folio a change gives its record, or false when the
// change leaves the folio as it was.
func assignedFolio(change domain.Change) (folioOwner, bool) {
	after, ok := domain.DecodeChangePayload[folioOwner](change.After)
	if !ok || after.Folio == "" {
		return folioOwner{}, false
	}
	if after.ID == "" {
		after.ID = change.ID
	}
	if change.Action == domain.ActionUpdate {
		if before, ok := domain.DecodeChangePayload[folioOwner](change.Before); ok && before.Folio == after.Folio {
			return folioOwner{}, false
		}
	}
	return after, true
}

func folioOwners(view domain.RuleView, entity domain.EntityType) []folioOwner {
	var owners []folioOwner
	switch entity {
	case domain.EntityIncident:
		for _, v := range view.ListIncidents() {
			owners = append(owners, folioOwner{v.ID, v.Folio})
		}
	case domain.EntityPpeDelivery:
		for _, v := range view.ListPpeDeliveries() {
			owners = append(owners, folioOwner{v.ID, v.Folio})
		}
	case domain.EntityAudit:
		for _, v := range view.ListAudits() {
			owners = append(owners, folioOwner{v.ID, v.Folio})
		}
	case domain.EntityWorkPermit:
		for _, v := range view.ListWorkPermits() {
			owners = append(owners, folioOwner{v.ID, v.Folio})
		}
	case domain.EntityWasteLog:
		for _, v := range view.ListWasteLogs() {
			owners = append(owners, folioOwner{v.ID, v.Folio})
		}
	}
	return owners
}

func (folioUniquenessRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	cache := make(map[domain.EntityType][]folioOwner)
	for _, change := range changes {
		if _, ok := folioEntities[change.Entity]; !ok || change.Action == domain.ActionDelete {
			continue
		}
		assigned, ok := assignedFolio(change)
		if !ok {
			continue
		}
		owners, loaded := cache[change.Entity]
		if !loaded {
			owners = folioOwners(view, change.Entity)
			cache[change.Entity] = owners
		}
		for _, o := range owners {
			if o.Folio != assigned.Folio || o.ID == assigned.ID {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "folio_unique",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("%s folio %s used by %s and %s", change.Entity, assigned.Folio, o.ID, assigned.ID),
				Entity:   change.Entity,
				EntityID: assigned.ID,
			})
			break
		}
	}
	return res, nil
}
