package core

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"ehscore/pkg/domain"
)

func validatePpeItem(item PpeItem) error {
	switch {
	case strings.TrimSpace(item.Name) == "":
		return domain.ValidationError{Entity: domain.EntityPpeItem, Field: "name", Message: "required"}
	case strings.TrimSpace(item.Type) == "":
		return domain.ValidationError{Entity: domain.EntityPpeItem, Field: "type", Message: "required"}
	case strings.TrimSpace(item.Size) == "":
		return domain.ValidationError{Entity: domain.EntityPpeItem, Field: "size", Message: "required"}
	case item.Stock.IsNegative():
		return domain.ValidationError{Entity: domain.EntityPpeItem, Field: "stock", Message: "must not be negative"}
	}
	return nil
}

// CreatePpeItem adds a catalogue item with its initial stock. A positive
// initial stock is recorded as a receipt in the movement ledger.
func (s *Service) CreatePpeItem(ctx context.Context, actorID string, item PpeItem) (PpeItem, Result, error) {
	var created PpeItem
	res, err := s.run(ctx, "create_ppe_item", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManagePpe, "create ppe items"); err != nil {
			return "", err
		}
		if err := validatePpeItem(item); err != nil {
			return "", err
		}
		item.ID = tx.NewID()
		initial := item
		item.Stock = decimal.Zero
		var err error
		if created, err = insertEntity(tx, domain.KeyPpeItems, domain.EntityPpeItem, item); err != nil {
			return "", err
		}
		if initial.Stock.IsPositive() {
			if _, err := applyStockChange(tx, created, initial, domain.MovementReceipt, "", actor.ID); err != nil {
				return created.ID, err
			}
			created = initial
		}
		return created.ID, nil
	})
	if err == nil {
		s.observeStock(created)
	}
	return created, res, err
}

// UpdatePpeItem edits descriptive fields. Stock only changes through the ledger.
func (s *Service) UpdatePpeItem(ctx context.Context, actorID, id string, mutator func(*PpeItem) error) (PpeItem, Result, error) {
	var updated PpeItem
	res, err := s.run(ctx, "update_ppe_item", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManagePpe, "update ppe items"); err != nil {
			return id, err
		}
		var err error
		updated, err = updateEntity(tx, domain.KeyPpeItems, domain.EntityPpeItem, id, func(p *PpeItem) error {
			stock := p.Stock
			if err := mutator(p); err != nil {
				return err
			}
			if !p.Stock.Equal(stock) {
				return domain.ValidationError{Entity: domain.EntityPpeItem, Field: "stock", Message: "use receive or withdraw to change stock"}
			}
			return validatePpeItem(*p)
		})
		return id, err
	})
	return updated, res, err
}

// DeletePpeItem removes an item that no delivery or movement references.
func (s *Service) DeletePpeItem(ctx context.Context, actorID, id string) (Result, error) {
	return s.run(ctx, "delete_ppe_item", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManagePpe, "delete ppe items"); err != nil {
			return id, err
		}
		deliveries, err := listEntities[PpeDelivery](tx, domain.KeyPpeDeliveries)
		if err != nil {
			return id, err
		}
		movements, err := listEntities[StockMovement](tx, domain.KeyStockMovements)
		if err != nil {
			return id, err
		}
		if _, err := getEntity[PpeItem](tx, domain.KeyPpeItems, domain.EntityPpeItem, id); err != nil {
			return id, err
		}
		if err := guardPpeDelete(id, deliveries, movements); err != nil {
			return id, err
		}
		_, err = deleteEntity[PpeItem](tx, domain.KeyPpeItems, domain.EntityPpeItem, id)
		return id, err
	})
}

// ListPpeItems returns the catalogue sorted by name.
func (s *Service) ListPpeItems(ctx context.Context) ([]PpeItem, error) {
	var items []PpeItem
	err := s.view(ctx, "list_ppe_items", func(tx *Transaction) error {
		var err error
		items, err = listEntities[PpeItem](tx, domain.KeyPpeItems)
		return err
	})
	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, err
}

// GetPpeItem returns one item.
func (s *Service) GetPpeItem(ctx context.Context, id string) (PpeItem, error) {
	var item PpeItem
	err := s.view(ctx, "get_ppe_item", func(tx *Transaction) error {
		var err error
		item, err = getEntity[PpeItem](tx, domain.KeyPpeItems, domain.EntityPpeItem, id)
		return err
	})
	return item, err
}

// ReceiveStock adds quantity to an item's stock.
func (s *Service) ReceiveStock(ctx context.Context, actorID, ppeID string, quantity decimal.Decimal) (PpeItem, StockMovement, error) {
	return s.moveStock(ctx, "receive_stock", actorID, ppeID, quantity, domain.MovementReceipt)
}

// WithdrawStock removes quantity from an item's stock; it fails with
// InsufficientStockError when quantity exceeds the available stock.
func (s *Service) WithdrawStock(ctx context.Context, actorID, ppeID string, quantity decimal.Decimal) (PpeItem, StockMovement, error) {
	return s.moveStock(ctx, "withdraw_stock", actorID, ppeID, quantity, domain.MovementWithdrawal)
}

func (s *Service) moveStock(ctx context.Context, op, actorID, ppeID string, quantity decimal.Decimal, kind domain.MovementKind) (PpeItem, StockMovement, error) {
	var (
		after PpeItem
		mv    StockMovement
	)
	_, err := s.run(ctx, op, actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManagePpe, "adjust ppe stock"); err != nil {
			return ppeID, err
		}
		if !quantity.IsPositive() {
			return ppeID, domain.ValidationError{Entity: domain.EntityStockMovement, Field: "quantity", Message: "must be positive"}
		}
		before, err := getEntity[PpeItem](tx, domain.KeyPpeItems, domain.EntityPpeItem, ppeID)
		if err != nil {
			return ppeID, err
		}
		delta := quantity
		if kind == domain.MovementWithdrawal {
			delta = quantity.Neg()
		}
		if after, err = AdjustStock(before, delta); err != nil {
			return ppeID, err
		}
		mv, err = applyStockChange(tx, before, after, kind, "", actor.ID)
		return ppeID, err
	})
	if err != nil {
		return PpeItem{}, StockMovement{}, err
	}
	s.observeStock(after)
	return after, mv, nil
}

// ListStockMovements returns the ledger oldest first, optionally for one item.
func (s *Service) ListStockMovements(ctx context.Context, ppeID string) ([]StockMovement, error) {
	var out []StockMovement
	err := s.view(ctx, "list_stock_movements", func(tx *Transaction) error {
		all, err := listEntities[StockMovement](tx, domain.KeyStockMovements)
		if err != nil {
			return err
		}
		for _, mv := range all {
			if ppeID == "" || mv.PpeID == ppeID {
				out = append(out, mv)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, err
}

var deliveryTypes = map[domain.DeliveryType]struct{}{
	domain.DeliveryIngreso:    {},
	domain.DeliveryRenovacion: {},
	domain.DeliveryReposicion: {},
	domain.DeliveryVisitas:    {},
}

// RequestDelivery records a pending delivery with the next F folio. Stock is
// untouched until approval.
func (s *Service) RequestDelivery(ctx context.Context, actorID string, d PpeDelivery) (PpeDelivery, Result, error) {
	var created PpeDelivery
	res, err := s.run(ctx, "request_delivery", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManagePpe, "request ppe deliveries"); err != nil {
			return "", err
		}
		if d.Quantity <= 0 {
			return "", domain.ValidationError{Entity: domain.EntityPpeDelivery, Field: "quantity", Message: "must be positive"}
		}
		if _, ok := deliveryTypes[d.DeliveryType]; !ok {
			return "", domain.ValidationError{Entity: domain.EntityPpeDelivery, Field: "deliveryType", Message: "unknown delivery type " + string(d.DeliveryType)}
		}
		if _, err := getEntity[Employee](tx, domain.KeyEmployees, domain.EntityEmployee, d.EmployeeID); err != nil {
			return "", err
		}
		if _, err := getEntity[PpeItem](tx, domain.KeyPpeItems, domain.EntityPpeItem, d.PpeID); err != nil {
			return "", err
		}
		existing, err := listEntities[PpeDelivery](tx, domain.KeyPpeDeliveries)
		if err != nil {
			return "", err
		}
		d.ID = tx.NewID()
		d.Folio = FolioDelivery.Next(folios(existing, func(v PpeDelivery) string { return v.Folio }))
		d.Status = domain.ApprovalPending
		d.RequestedByUserID = actor.ID
		d.ApprovedByUserID = ""
		if d.Date.IsZero() {
			d.Date = tx.Today()
		}
		created, err = insertEntity(tx, domain.KeyPpeDeliveries, domain.EntityPpeDelivery, d)
		return d.ID, err
	})
	return created, res, err
}

// ApproveDelivery approves a pending delivery and deducts its quantity in the
// same transaction.
func (s *Service) ApproveDelivery(ctx context.Context, actorID, deliveryID string) (PpeDelivery, Result, error) {
	var (
		approved PpeDelivery
		item     PpeItem
	)
	res, err := s.run(ctx, "approve_delivery", actorID, func(tx *Transaction, actor User) (string, error) {
		d, err := getEntity[PpeDelivery](tx, domain.KeyPpeDeliveries, domain.EntityPpeDelivery, deliveryID)
		if err != nil {
			return deliveryID, err
		}
		before, err := getEntity[PpeItem](tx, domain.KeyPpeItems, domain.EntityPpeItem, d.PpeID)
		if err != nil {
			return deliveryID, err
		}
		item, approved, err = ApproveDelivery(before, d, actor)
		if err != nil {
			return deliveryID, err
		}
		if _, err := updateEntity(tx, domain.KeyPpeDeliveries, domain.EntityPpeDelivery, deliveryID, func(p *PpeDelivery) error {
			*p = approved
			return nil
		}); err != nil {
			return deliveryID, err
		}
		_, err = applyStockChange(tx, before, item, domain.MovementDelivery, deliveryID, actor.ID)
		return deliveryID, err
	})
	if err != nil {
		return PpeDelivery{}, res, err
	}
	s.observeStock(item)
	return approved, res, nil
}

// ListDeliveries returns deliveries newest first.
func (s *Service) ListDeliveries(ctx context.Context) ([]PpeDelivery, error) {
	var out []PpeDelivery
	err := s.view(ctx, "list_deliveries", func(tx *Transaction) error {
		var err error
		out, err = listEntities[PpeDelivery](tx, domain.KeyPpeDeliveries)
		return err
	})
	newestFirst(out, func(d PpeDelivery) domain.Date { return d.Date }, func(d PpeDelivery) string { return d.Folio })
	return out, err
}

// DeliveryDetail pairs a delivery with its resolved employee and PPE item.
type DeliveryDetail struct {
	Delivery PpeDelivery
	Employee Resolution[Employee]
	Ppe      Resolution[PpeItem]
}

// ListDeliveryDetails returns deliveries newest first with their references
// resolved in the same read.
func (s *Service) ListDeliveryDetails(ctx context.Context) ([]DeliveryDetail, error) {
	var out []DeliveryDetail
	err := s.view(ctx, "list_delivery_details", func(tx *Transaction) error {
		deliveries, err := listEntities[PpeDelivery](tx, domain.KeyPpeDeliveries)
		if err != nil {
			return err
		}
		employees, err := listEntities[Employee](tx, domain.KeyEmployees)
		if err != nil {
			return err
		}
		items, err := listEntities[PpeItem](tx, domain.KeyPpeItems)
		if err != nil {
			return err
		}
		newestFirst(deliveries, func(d PpeDelivery) domain.Date { return d.Date }, func(d PpeDelivery) string { return d.Folio })
		for _, d := range deliveries {
			out = append(out, DeliveryDetail{Delivery: d, Employee: Resolve(d.EmployeeID, employees), Ppe: Resolve(d.PpeID, items)})
		}
		return nil
	})
	return out, err
}
