package core

import (
	"context"
	"io"
	"sort"
	"strings"

	"ehscore/internal/blob"
	"ehscore/pkg/domain"
)

var wasteTypes = map[domain.WasteType]struct{}{
	domain.WasteHazardous:    {},
	domain.WasteNonHazardous: {},
	domain.WasteRecyclable:   {},
}

var wasteUnits = func() map[domain.WasteUnit]struct{} {
	set := make(map[domain.WasteUnit]struct{}, len(domain.WasteUnits))
	for _, u := range domain.WasteUnits {
		set[u] = struct{}{}
	}
	return set
}()

func validateWaste(w Waste) error {
	if strings.TrimSpace(w.Name) == "" {
		return domain.ValidationError{Entity: domain.EntityWaste, Field: "name", Message: "required"}
	}
	if _, ok := wasteTypes[w.Type]; !ok {
		return domain.ValidationError{Entity: domain.EntityWaste, Field: "type", Message: "unknown type " + string(w.Type)}
	}
	return nil
}

// CreateWaste catalogues a waste stream.
func (s *Service) CreateWaste(ctx context.Context, actorID string, w Waste) (Waste, Result, error) {
	var created Waste
	res, err := s.run(ctx, "create_waste", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageWaste, "catalogue waste"); err != nil {
			return "", err
		}
		if err := validateWaste(w); err != nil {
			return "", err
		}
		w.ID = tx.NewID()
		var err error
		created, err = insertEntity(tx, domain.KeyWastes, domain.EntityWaste, w)
		return w.ID, err
	})
	return created, res, err
}

// UpdateWaste edits a waste stream.
func (s *Service) UpdateWaste(ctx context.Context, actorID, id string, mutator func(*Waste) error) (Waste, Result, error) {
	var updated Waste
	res, err := s.run(ctx, "update_waste", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageWaste, "update waste"); err != nil {
			return id, err
		}
		var err error
		updated, err = updateEntity(tx, domain.KeyWastes, domain.EntityWaste, id, func(w *Waste) error {
			if err := mutator(w); err != nil {
				return err
			}
			return validateWaste(*w)
		})
		return id, err
	})
	return updated, res, err
}

// DeleteWaste removes a waste stream that has no disposal logs.
func (s *Service) DeleteWaste(ctx context.Context, actorID, id string) (Result, error) {
	return s.run(ctx, "delete_waste", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageWaste, "delete waste"); err != nil {
			return id, err
		}
		if _, err := getEntity[Waste](tx, domain.KeyWastes, domain.EntityWaste, id); err != nil {
			return id, err
		}
		logs, err := listEntities[WasteLog](tx, domain.KeyWasteLogs)
		if err != nil {
			return id, err
		}
		if err := guardWasteDelete(id, logs); err != nil {
			return id, err
		}
		_, err = deleteEntity[Waste](tx, domain.KeyWastes, domain.EntityWaste, id)
		return id, err
	})
}

// ListWastes returns the catalogue sorted by name.
func (s *Service) ListWastes(ctx context.Context) ([]Waste, error) {
	var out []Waste
	err := s.view(ctx, "list_wastes", func(tx *Transaction) error {
		var err error
		out, err = listEntities[Waste](tx, domain.KeyWastes)
		return err
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

// RecordWasteLog records a disposal with the next RD folio.
func (s *Service) RecordWasteLog(ctx context.Context, actorID string, l WasteLog) (WasteLog, Result, error) {
	var created WasteLog
	res, err := s.run(ctx, "record_waste_log", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageWaste, "record waste disposals"); err != nil {
			return "", err
		}
		if !l.Quantity.IsPositive() {
			return "", domain.ValidationError{Entity: domain.EntityWasteLog, Field: "quantity", Message: "must be positive"}
		}
		if _, ok := wasteUnits[l.Unit]; !ok {
			return "", domain.ValidationError{Entity: domain.EntityWasteLog, Field: "unit", Message: "unknown unit " + string(l.Unit)}
		}
		if l.Cost != nil && l.Cost.IsNegative() {
			return "", domain.ValidationError{Entity: domain.EntityWasteLog, Field: "cost", Message: "must not be negative"}
		}
		if _, err := getEntity[Waste](tx, domain.KeyWastes, domain.EntityWaste, l.WasteID); err != nil {
			return "", err
		}
		existing, err := listEntities[WasteLog](tx, domain.KeyWasteLogs)
		if err != nil {
			return "", err
		}
		l.ID = tx.NewID()
		l.Folio = FolioWasteLog.Next(folios(existing, func(v WasteLog) string { return v.Folio }))
		l.RecordedByUserID = actor.ID
		l.ManifestURL = ""
		if l.Date.IsZero() {
			l.Date = tx.Today()
		}
		created, err = insertEntity(tx, domain.KeyWasteLogs, domain.EntityWasteLog, l)
		return l.ID, err
	})
	return created, res, err
}

// DeleteWasteLog removes a disposal record and its manifest.
func (s *Service) DeleteWasteLog(ctx context.Context, actorID, id string) (Result, error) {
	var removed WasteLog
	res, err := s.run(ctx, "delete_waste_log", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageWaste, "delete waste disposals"); err != nil {
			return id, err
		}
		var err error
		removed, err = deleteEntity[WasteLog](tx, domain.KeyWasteLogs, domain.EntityWasteLog, id)
		return id, err
	})
	if err == nil {
		s.dropAttachment(ctx, removed.ManifestURL)
	}
	return res, err
}

// WasteLogDetail pairs a disposal log with its resolved waste.
type WasteLogDetail struct {
	Log   WasteLog
	Waste Waste
	Kind  ResolutionKind
}

// ListWasteLogs returns disposal logs newest first. Logs whose waste was
// removed carry the placeholder waste.
func (s *Service) ListWasteLogs(ctx context.Context) ([]WasteLogDetail, error) {
	var out []WasteLogDetail
	err := s.view(ctx, "list_waste_logs", func(tx *Transaction) error {
		logs, err := listEntities[WasteLog](tx, domain.KeyWasteLogs)
		if err != nil {
			return err
		}
		wastes, err := listEntities[Waste](tx, domain.KeyWastes)
		if err != nil {
			return err
		}
		newestFirst(logs, func(l WasteLog) domain.Date { return l.Date }, func(l WasteLog) string { return l.Folio })
		for _, l := range logs {
			r := Resolve(l.WasteID, wastes)
			out = append(out, WasteLogDetail{Log: l, Waste: WasteOrPlaceholder(r), Kind: r.Kind})
		}
		return nil
	})
	return out, err
}

// UploadWasteManifest stores the disposal manifest of a waste log.
func (s *Service) UploadWasteManifest(ctx context.Context, actorID, logID, filename, contentType string, r io.Reader) (blob.Info, error) {
	return s.replaceAttachment(ctx, "upload_waste_manifest", actorID, domain.PermManageWaste, blob.KindWasteManifest, logID, filename, contentType, r,
		func(tx *Transaction, key string) (string, error) {
			var previous string
			_, err := updateEntity(tx, domain.KeyWasteLogs, domain.EntityWasteLog, logID, func(l *WasteLog) error {
				previous = l.ManifestURL
				l.ManifestURL = key
				return nil
			})
			return previous, err
		})
}
