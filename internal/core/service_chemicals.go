package core

import (
	"context"
	"io"
	"sort"
	"strings"

	"ehscore/internal/blob"
	"ehscore/pkg/domain"
)

var pictogramKeys = func() map[domain.PictogramKey]struct{} {
	set := make(map[domain.PictogramKey]struct{}, len(domain.PictogramKeys))
	for _, k := range domain.PictogramKeys {
		set[k] = struct{}{}
	}
	return set
}()

// normalizeChemical validates a chemical and reduces its pictograms to a set.
func normalizeChemical(c *Chemical) error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return domain.ValidationError{Entity: domain.EntityChemical, Field: "name", Message: "required"}
	case strings.TrimSpace(c.Provider) == "":
		return domain.ValidationError{Entity: domain.EntityChemical, Field: "provider", Message: "required"}
	case strings.TrimSpace(c.Location) == "":
		return domain.ValidationError{Entity: domain.EntityChemical, Field: "location", Message: "required"}
	}
	seen := make(map[domain.PictogramKey]struct{}, len(c.Pictograms))
	out := make([]domain.PictogramKey, 0, len(c.Pictograms))
	for _, p := range c.Pictograms {
		if _, ok := pictogramKeys[p]; !ok {
			return domain.ValidationError{Entity: domain.EntityChemical, Field: "pictograms", Message: "unknown pictogram " + string(p)}
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	c.Pictograms = out
	return nil
}

// CreateChemical adds a substance to the inventory.
func (s *Service) CreateChemical(ctx context.Context, actorID string, c Chemical) (Chemical, Result, error) {
	var created Chemical
	res, err := s.run(ctx, "create_chemical", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageChemicals, "register chemicals"); err != nil {
			return "", err
		}
		if err := normalizeChemical(&c); err != nil {
			return "", err
		}
		c.ID = tx.NewID()
		var err error
		created, err = insertEntity(tx, domain.KeyChemicals, domain.EntityChemical, c)
		return c.ID, err
	})
	return created, res, err
}

// UpdateChemical edits a substance. The SDS key changes only through upload.
func (s *Service) UpdateChemical(ctx context.Context, actorID, id string, mutator func(*Chemical) error) (Chemical, Result, error) {
	var updated Chemical
	res, err := s.run(ctx, "update_chemical", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageChemicals, "update chemicals"); err != nil {
			return id, err
		}
		var err error
		updated, err = updateEntity(tx, domain.KeyChemicals, domain.EntityChemical, id, func(c *Chemical) error {
			sds := c.SdsURL
			if err := mutator(c); err != nil {
				return err
			}
			c.SdsURL = sds
			return normalizeChemical(c)
		})
		return id, err
	})
	return updated, res, err
}

// DeleteChemical removes a substance and its safety data sheet.
func (s *Service) DeleteChemical(ctx context.Context, actorID, id string) (Result, error) {
	var removed Chemical
	res, err := s.run(ctx, "delete_chemical", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageChemicals, "delete chemicals"); err != nil {
			return id, err
		}
		var err error
		removed, err = deleteEntity[Chemical](tx, domain.KeyChemicals, domain.EntityChemical, id)
		return id, err
	})
	if err == nil {
		s.dropAttachment(ctx, removed.SdsURL)
	}
	return res, err
}

// ListChemicals returns the inventory sorted by name.
func (s *Service) ListChemicals(ctx context.Context) ([]Chemical, error) {
	var out []Chemical
	err := s.view(ctx, "list_chemicals", func(tx *Transaction) error {
		var err error
		out, err = listEntities[Chemical](tx, domain.KeyChemicals)
		return err
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

// UploadSafetyDataSheet stores a PDF safety data sheet for a chemical.
func (s *Service) UploadSafetyDataSheet(ctx context.Context, actorID, chemicalID, filename string, r io.Reader) (blob.Info, error) {
	return s.replaceAttachment(ctx, "upload_sds", actorID, domain.PermManageChemicals, blob.KindSafetyDataSheet, chemicalID, filename, "application/pdf", r,
		func(tx *Transaction, key string) (string, error) {
			var previous string
			_, err := updateEntity(tx, domain.KeyChemicals, domain.EntityChemical, chemicalID, func(c *Chemical) error {
				previous = c.SdsURL
				c.SdsURL = key
				return nil
			})
			return previous, err
		})
}
