package core

import (
	"time"

	"github.com/shopspring/decimal"

	"ehscore/pkg/domain"
)

// AdjustStock applies delta to item. A withdrawal larger than the available
// stock fails with InsufficientStockError and leaves item unchanged.
func AdjustStock(item PpeItem, delta decimal.Decimal) (PpeItem, error) {
	next := item.Stock.Add(delta)
	if next.IsNegative() {
		return item, domain.InsufficientStockError{PpeID: item.ID, Available: item.Stock, Requested: delta.Neg()}
	}
	item.Stock = next
	return item, nil
}

// ApproveDelivery moves a pending delivery to Aprobado and deducts its
// quantity from item. Both values are returned together so they can be
// persisted in one batch.
func ApproveDelivery(item PpeItem, delivery PpeDelivery, approver User) (PpeItem, PpeDelivery, error) {
	if delivery.Status != domain.ApprovalPending {
		return item, delivery, domain.IllegalTransitionError{
			Entity: domain.EntityPpeDelivery,
			ID:     delivery.ID,
			From:   string(delivery.Status),
			Action: "approve",
		}
	}
	if approver.Level != domain.LevelAdmin {
		return item, delivery, domain.AuthorizationError{UserID: approver.ID, Level: approver.Level, Action: "approve ppe deliveries"}
	}
	if item.ID != delivery.PpeID {
		return item, delivery, domain.ValidationError{Entity: domain.EntityPpeDelivery, Field: "ppeId", Message: "does not match the supplied item"}
	}
	adjusted, err := AdjustStock(item, decimal.NewFromInt(int64(delivery.Quantity)).Neg())
	if err != nil {
		return item, delivery, err
	}
	delivery.Status = domain.ApprovalApproved
	delivery.ApprovedByUserID = approver.ID
	return adjusted, delivery, nil
}

func stockMovement(id string, before, after PpeItem, kind domain.MovementKind, deliveryID, userID string, at time.Time) StockMovement {
	return StockMovement{
		Base:        domain.Base{ID: id},
		PpeID:       after.ID,
		Kind:        kind,
		Delta:       after.Stock.Sub(before.Stock),
		StockBefore: before.Stock,
		StockAfter:  after.Stock,
		DeliveryID:  deliveryID,
		UserID:      userID,
		RecordedAt:  at,
	}
}

// applyStockChange persists an adjusted item and appends its ledger entry.
func applyStockChange(tx *Transaction, before, after PpeItem, kind domain.MovementKind, deliveryID, userID string) (StockMovement, error) {
	if _, err := updateEntity(tx, domain.KeyPpeItems, domain.EntityPpeItem, after.ID, func(p *PpeItem) error {
		p.Stock = after.Stock
		return nil
	}); err != nil {
		return StockMovement{}, err
	}
	mv := stockMovement(tx.NewID(), before, after, kind, deliveryID, userID, tx.Now())
	return insertEntity(tx, domain.KeyStockMovements, domain.EntityStockMovement, mv)
}
