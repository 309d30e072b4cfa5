package core

import (
	"context"
	"fmt"

	"ehscore/pkg/domain"
)

func existingFolios[T any](tx *Transaction, key string, folio func(T) string) ([]string, error) {
	items, err := listEntities[T](tx, key)
	if err != nil {
		return nil, err
	}
	return folios(items, folio), nil
}

// PeekFolio returns the folio the next record of family would receive. It
// does not reserve it.
func (s *Service) PeekFolio(ctx context.Context, family FolioFamily) (string, error) {
	var next string
	err := s.view(ctx, "peek_folio", func(tx *Transaction) error {
		var (
			existing []string
			err      error
		)
		switch family.Prefix {
		case FolioIncident.Prefix:
			existing, err = existingFolios(tx, domain.KeyIncidents, func(v Incident) string { return v.Folio })
		case FolioDelivery.Prefix:
			existing, err = existingFolios(tx, domain.KeyPpeDeliveries, func(v PpeDelivery) string { return v.Folio })
		case FolioAudit.Prefix:
			existing, err = existingFolios(tx, domain.KeyAudits, func(v Audit) string { return v.Folio })
		case FolioPermit.Prefix:
			existing, err = existingFolios(tx, domain.KeyWorkPermits, func(v WorkPermit) string { return v.Folio })
		case FolioWasteLog.Prefix:
			existing, err = existingFolios(tx, domain.KeyWasteLogs, func(v WasteLog) string { return v.Folio })
		default:
			return fmt.Errorf("unknown folio family %q", family.Name)
		}
		if err != nil {
			return err
		}
		next = family.Next(existing)
		return nil
	})
	return next, err
}
