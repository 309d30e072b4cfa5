package core

import (
	"context"
	"sort"
	"strings"

	"ehscore/pkg/domain"
)

var equipmentTypes = func() map[domain.EquipmentType]struct{} {
	set := make(map[domain.EquipmentType]struct{}, len(domain.EquipmentTypes))
	for _, t := range domain.EquipmentTypes {
		set[t] = struct{}{}
	}
	return set
}()

func validateEquipment(eq SafetyEquipment) error {
	if strings.TrimSpace(eq.Name) == "" {
		return domain.ValidationError{Entity: domain.EntitySafetyEquipment, Field: "name", Message: "required"}
	}
	if _, ok := equipmentTypes[eq.Type]; !ok {
		return domain.ValidationError{Entity: domain.EntitySafetyEquipment, Field: "type", Message: "unknown type " + string(eq.Type)}
	}
	if eq.InspectionFrequency <= 0 {
		return domain.ValidationError{Entity: domain.EntitySafetyEquipment, Field: "inspectionFrequency", Message: "must be a positive number of days"}
	}
	if !eq.LastInspectionDate.IsZero() {
		if _, err := eq.LastInspectionDate.Time(); err != nil {
			return domain.ValidationError{Entity: domain.EntitySafetyEquipment, Field: "lastInspectionDate", Message: "must be YYYY-MM-DD"}
		}
	}
	return nil
}

// CreateEquipment registers safety equipment.
func (s *Service) CreateEquipment(ctx context.Context, actorID string, eq SafetyEquipment) (SafetyEquipment, Result, error) {
	var created SafetyEquipment
	res, err := s.run(ctx, "create_equipment", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageSafetyInspection, "register safety equipment"); err != nil {
			return "", err
		}
		if err := validateEquipment(eq); err != nil {
			return "", err
		}
		eq.ID = tx.NewID()
		var err error
		created, err = insertEntity(tx, domain.KeySafetyEquipment, domain.EntitySafetyEquipment, eq)
		return eq.ID, err
	})
	return created, res, err
}

// UpdateEquipment edits safety equipment.
func (s *Service) UpdateEquipment(ctx context.Context, actorID, id string, mutator func(*SafetyEquipment) error) (SafetyEquipment, Result, error) {
	var updated SafetyEquipment
	res, err := s.run(ctx, "update_equipment", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageSafetyInspection, "update safety equipment"); err != nil {
			return id, err
		}
		var err error
		updated, err = updateEntity(tx, domain.KeySafetyEquipment, domain.EntitySafetyEquipment, id, func(eq *SafetyEquipment) error {
			if err := mutator(eq); err != nil {
				return err
			}
			return validateEquipment(*eq)
		})
		return id, err
	})
	return updated, res, err
}

// DeleteEquipment removes equipment together with its inspection history.
func (s *Service) DeleteEquipment(ctx context.Context, actorID, id string) (Result, error) {
	return s.run(ctx, "delete_equipment", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageSafetyInspection, "delete safety equipment"); err != nil {
			return id, err
		}
		if _, err := deleteEntity[SafetyEquipment](tx, domain.KeySafetyEquipment, domain.EntitySafetyEquipment, id); err != nil {
			return id, err
		}
		logs, err := listEntities[SafetyInspectionLog](tx, domain.KeySafetyInspectionLogs)
		if err != nil {
			return id, err
		}
		for _, l := range logs {
			if l.EquipmentID != id {
				continue
			}
			if _, err := deleteEntity[SafetyInspectionLog](tx, domain.KeySafetyInspectionLogs, domain.EntitySafetyInspectionLog, l.ID); err != nil {
				return id, err
			}
		}
		return id, nil
	})
}

var inspectionOutcomes = map[domain.SafetyInspectionLogStatus]struct{}{
	domain.EquipmentOK:             {},
	domain.EquipmentNeedsRepair:    {},
	domain.EquipmentNeedsReplacing: {},
}

// LogEquipmentInspection appends an inspection log and advances the
// equipment's last inspection date unless the log is older.
func (s *Service) LogEquipmentInspection(ctx context.Context, actorID string, log SafetyInspectionLog) (SafetyInspectionLog, Result, error) {
	var created SafetyInspectionLog
	res, err := s.run(ctx, "log_equipment_inspection", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageSafetyInspection, "log equipment inspections"); err != nil {
			return "", err
		}
		if _, ok := inspectionOutcomes[log.Status]; !ok {
			return "", domain.ValidationError{Entity: domain.EntitySafetyInspectionLog, Field: "status", Message: "unknown status " + string(log.Status)}
		}
		if log.InspectionDate.IsZero() {
			log.InspectionDate = tx.Today()
		}
		if _, err := log.InspectionDate.Time(); err != nil {
			return "", domain.ValidationError{Entity: domain.EntitySafetyInspectionLog, Field: "inspectionDate", Message: "must be YYYY-MM-DD"}
		}
		eq, err := getEntity[SafetyEquipment](tx, domain.KeySafetyEquipment, domain.EntitySafetyEquipment, log.EquipmentID)
		if err != nil {
			return "", err
		}
		log.ID = tx.NewID()
		log.InspectorID = actor.ID
		if created, err = insertEntity(tx, domain.KeySafetyInspectionLogs, domain.EntitySafetyInspectionLog, log); err != nil {
			return log.ID, err
		}
		if eq.LastInspectionDate.IsZero() || log.InspectionDate >= eq.LastInspectionDate {
			_, err = updateEntity(tx, domain.KeySafetyEquipment, domain.EntitySafetyEquipment, eq.ID, func(e *SafetyEquipment) error {
				e.LastInspectionDate = log.InspectionDate
				return nil
			})
		}
		return log.ID, err
	})
	return created, res, err
}

// ListEquipmentLogs returns the inspection history of one equipment item,
// newest first.
func (s *Service) ListEquipmentLogs(ctx context.Context, equipmentID string) ([]SafetyInspectionLog, error) {
	var out []SafetyInspectionLog
	err := s.view(ctx, "list_equipment_logs", func(tx *Transaction) error {
		all, err := listEntities[SafetyInspectionLog](tx, domain.KeySafetyInspectionLogs)
		for _, l := range all {
			if l.EquipmentID == equipmentID {
				out = append(out, l)
			}
		}
		return err
	})
	newestFirst(out, func(l SafetyInspectionLog) domain.Date { return l.InspectionDate }, func(l SafetyInspectionLog) string { return l.ID })
	return out, err
}

// EquipmentStatuses derives the inspection standing of every equipment item,
// most urgent first.
func (s *Service) EquipmentStatuses(ctx context.Context) ([]EquipmentStanding, error) {
	var out []EquipmentStanding
	err := s.view(ctx, "equipment_statuses", func(tx *Transaction) error {
		all, err := listEntities[SafetyEquipment](tx, domain.KeySafetyEquipment)
		for _, eq := range all {
			out = append(out, EquipmentStatusAt(eq, tx.Now()))
		}
		return err
	})
	sort.SliceStable(out, func(i, j int) bool {
		ni := out[i].Status == domain.EquipmentNeverInspected
		nj := out[j].Status == domain.EquipmentNeverInspected
		if ni != nj {
			return ni
		}
		return out[i].DaysUntilNext < out[j].DaysUntilNext
	})
	return out, err
}
