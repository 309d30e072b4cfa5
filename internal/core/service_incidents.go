package core

import (
	"context"
	"io"
	"strings"

	"ehscore/internal/blob"
	"ehscore/pkg/domain"
)

var eventTypes = map[domain.EventType]struct{}{
	domain.EventAccident:        {},
	domain.EventIncident:        {},
	domain.EventUnsafeCondition: {},
	domain.EventUnsafeAct:       {},
}

func validateIncident(tx *Transaction, in Incident) error {
	if in.Date.IsZero() {
		return domain.ValidationError{Entity: domain.EntityIncident, Field: "date", Message: "required"}
	}
	if _, ok := eventTypes[in.EventType]; !ok {
		return domain.ValidationError{Entity: domain.EntityIncident, Field: "eventType", Message: "unknown event type " + string(in.EventType)}
	}
	if strings.TrimSpace(in.Description) == "" {
		return domain.ValidationError{Entity: domain.EntityIncident, Field: "description", Message: "required"}
	}
	if in.EmployeeID != nil && *in.EmployeeID != "" {
		if _, err := getEntity[Employee](tx, domain.KeyEmployees, domain.EntityEmployee, *in.EmployeeID); err != nil {
			return err
		}
	}
	return nil
}

// CreateIncident records an incident with the next I folio.
func (s *Service) CreateIncident(ctx context.Context, actorID string, in Incident) (Incident, Result, error) {
	var created Incident
	res, err := s.run(ctx, "create_incident", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageIncidents, "report incidents"); err != nil {
			return "", err
		}
		if err := validateIncident(tx, in); err != nil {
			return "", err
		}
		existing, err := listEntities[Incident](tx, domain.KeyIncidents)
		if err != nil {
			return "", err
		}
		in.ID = tx.NewID()
		in.Folio = FolioIncident.Next(folios(existing, func(v Incident) string { return v.Folio }))
		created, err = insertEntity(tx, domain.KeyIncidents, domain.EntityIncident, in)
		return in.ID, err
	})
	return created, res, err
}

// UpdateIncident edits an incident. The folio and evidence key are kept.
func (s *Service) UpdateIncident(ctx context.Context, actorID, id string, mutator func(*Incident) error) (Incident, Result, error) {
	var updated Incident
	res, err := s.run(ctx, "update_incident", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageIncidents, "update incidents"); err != nil {
			return id, err
		}
		var err error
		updated, err = updateEntity(tx, domain.KeyIncidents, domain.EntityIncident, id, func(in *Incident) error {
			folio, evidence := in.Folio, in.EvidenceImageURL
			if err := mutator(in); err != nil {
				return err
			}
			if in.Folio != folio {
				return domain.ValidationError{Entity: domain.EntityIncident, Field: "folio", Message: "cannot be changed"}
			}
			in.EvidenceImageURL = evidence
			return validateIncident(tx, *in)
		})
		return id, err
	})
	return updated, res, err
}

// ListIncidents returns incidents newest first.
func (s *Service) ListIncidents(ctx context.Context) ([]Incident, error) {
	var out []Incident
	err := s.view(ctx, "list_incidents", func(tx *Transaction) error {
		var err error
		out, err = listEntities[Incident](tx, domain.KeyIncidents)
		return err
	})
	newestFirst(out, func(i Incident) domain.Date { return i.Date }, func(i Incident) string { return i.Folio })
	return out, err
}

// AttachIncidentEvidence stores an evidence image and links it to the incident.
func (s *Service) AttachIncidentEvidence(ctx context.Context, actorID, incidentID, filename, contentType string, r io.Reader) (blob.Info, error) {
	return s.replaceAttachment(ctx, "attach_incident_evidence", actorID, domain.PermManageIncidents, blob.KindIncidentEvidence, incidentID, filename, contentType, r,
		func(tx *Transaction, key string) (string, error) {
			var previous string
			_, err := updateEntity(tx, domain.KeyIncidents, domain.EntityIncident, incidentID, func(in *Incident) error {
				previous = in.EvidenceImageURL
				in.EvidenceImageURL = key
				return nil
			})
			return previous, err
		})
}
