package core

import (
	"context"
	"fmt"

	"ehscore/pkg/domain"
)

// StockNonNegativeRule blocks any PPE item whose stock drops below zero.
func StockNonNegativeRule() domain.Rule {
	return stockNonNegativeRule{}
}

type stockNonNegativeRule struct{}

func (stockNonNegativeRule) Name() string { return "stock_non_negative" }

func (stockNonNegativeRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityPpeItem || change.Action == domain.ActionDelete {
			continue
		}
		item, ok := view.FindPpeItem(change.ID)
		if !ok {
			continue
		}
		if item.Stock.IsNegative() {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "stock_non_negative",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("ppe item %s (%s) stock is negative: %s", item.Name, item.ID, item.Stock.String()),
				Entity:   domain.EntityPpeItem,
				EntityID: item.ID,
			})
		}
	}
	return res, nil
}
