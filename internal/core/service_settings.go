package core

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ehscore/internal/blob"
	"ehscore/pkg/domain"
)

func settingsDocument(tx *Transaction) (*AppSettings, error) {
	return document(tx, domain.KeyAppSettings, domain.DefaultAppSettings)
}

// Settings returns the company settings, or the defaults when none are stored.
func (s *Service) Settings(ctx context.Context) (AppSettings, error) {
	var out AppSettings
	err := s.view(ctx, "get_settings", func(tx *Transaction) error {
		doc, err := settingsDocument(tx)
		if err != nil {
			return err
		}
		out = *doc
		return nil
	})
	return out, err
}

// UpdateSettings edits company details. The logo changes only through upload.
func (s *Service) UpdateSettings(ctx context.Context, actorID string, mutator func(*AppSettings) error) (AppSettings, Result, error) {
	var out AppSettings
	res, err := s.run(ctx, "update_settings", actorID, func(tx *Transaction, actor User) (string, error) {
		if err := requirePermission(actor, domain.PermManageSettings, "change settings"); err != nil {
			return "", err
		}
		doc, err := settingsDocument(tx)
		if err != nil {
			return "", err
		}
		next := *doc
		if err := mutator(&next); err != nil {
			return "", err
		}
		next.CompanyLogo = doc.CompanyLogo
		if strings.TrimSpace(next.CompanyName) == "" {
			return "", domain.ValidationError{Entity: domain.EntitySettings, Field: "companyName", Message: "required"}
		}
		tx.recordChange(domain.EntitySettings, ActionUpdate, domain.KeyAppSettings, *doc, next)
		*doc = next
		tx.touch(domain.KeyAppSettings)
		out = next
		return domain.KeyAppSettings, nil
	})
	return out, res, err
}

// UploadCompanyLogo stores the logo printed on generated documents.
func (s *Service) UploadCompanyLogo(ctx context.Context, actorID, filename, contentType string, r io.Reader) (blob.Info, error) {
	return s.replaceAttachment(ctx, "upload_company_logo", actorID, domain.PermManageSettings, blob.KindCompanyLogo, "company", filename, contentType, r,
		func(tx *Transaction, key string) (string, error) {
			doc, err := settingsDocument(tx)
			if err != nil {
				return "", err
			}
			previous := doc.CompanyLogo
			before := *doc
			doc.CompanyLogo = key
			tx.recordChange(domain.EntitySettings, ActionUpdate, domain.KeyAppSettings, before, *doc)
			tx.touch(domain.KeyAppSettings)
			return previous, nil
		})
}

// Dashboard windows.
const (
	upcomingTrainingDays = 15
	hazardousWasteDays   = 30
)

// DashboardSummary holds the landing-page counters.
type DashboardSummary struct {
	Employees            int
	Incidents            int
	Trainings            int
	TotalPpeStock        decimal.Decimal
	HazardousWasteKg     decimal.Decimal
	UpcomingTrainings    []Training
	RecentIncidents      []Incident
	OpenFindings         int
	PendingDeliveries    int
	EquipmentOverdue     int
	PendingActivities    int
	PermitsAwaitingCheck int
}

// Dashboard computes the summary counters as of the service clock.
func (s *Service) Dashboard(ctx context.Context) (DashboardSummary, error) {
	var out DashboardSummary
	err := s.view(ctx, "dashboard", func(tx *Transaction) error {
		today := tx.Now().UTC().Truncate(24 * time.Hour)
		employees, err := listEntities[Employee](tx, domain.KeyEmployees)
		if err != nil {
			return err
		}
		incidents, err := listEntities[Incident](tx, domain.KeyIncidents)
		if err != nil {
			return err
		}
		trainings, err := listEntities[Training](tx, domain.KeyTrainings)
		if err != nil {
			return err
		}
		items, err := listEntities[PpeItem](tx, domain.KeyPpeItems)
		if err != nil {
			return err
		}
		wastes, err := listEntities[Waste](tx, domain.KeyWastes)
		if err != nil {
			return err
		}
		logs, err := listEntities[WasteLog](tx, domain.KeyWasteLogs)
		if err != nil {
			return err
		}
		audits, err := listEntities[Audit](tx, domain.KeyAudits)
		if err != nil {
			return err
		}
		deliveries, err := listEntities[PpeDelivery](tx, domain.KeyPpeDeliveries)
		if err != nil {
			return err
		}
		equipment, err := listEntities[SafetyEquipment](tx, domain.KeySafetyEquipment)
		if err != nil {
			return err
		}
		activities, err := listEntities[Activity](tx, domain.KeyActivities)
		if err != nil {
			return err
		}
		permits, err := listEntities[WorkPermit](tx, domain.KeyWorkPermits)
		if err != nil {
			return err
		}

		out.Employees = len(employees)
		out.Incidents = len(incidents)
		out.Trainings = len(trainings)
		out.TotalPpeStock = decimal.Zero
		for _, item := range items {
			out.TotalPpeStock = out.TotalPpeStock.Add(item.Stock)
		}

		horizon := domain.DateOf(today.AddDate(0, 0, upcomingTrainingDays))
		for _, t := range trainings {
			if t.Date >= domain.DateOf(today) && t.Date <= horizon {
				out.UpcomingTrainings = append(out.UpcomingTrainings, t)
			}
		}
		sortByDate(out.UpcomingTrainings, func(t Training) domain.Date { return t.Date })

		newestFirst(incidents, func(i Incident) domain.Date { return i.Date }, func(i Incident) string { return i.Folio })
		if len(incidents) > 5 {
			incidents = incidents[:5]
		}
		out.RecentIncidents = incidents

		since := domain.DateOf(today.AddDate(0, 0, -hazardousWasteDays))
		out.HazardousWasteKg = decimal.Zero
		for _, l := range logs {
			w := WasteOrPlaceholder(Resolve(l.WasteID, wastes))
			if w.Type == domain.WasteHazardous && l.Unit == "Kg" && l.Date >= since {
				out.HazardousWasteKg = out.HazardousWasteKg.Add(l.Quantity)
			}
		}

		for _, a := range audits {
			for _, f := range a.Findings {
				if f.Status == domain.FindingOpen {
					out.OpenFindings++
				}
			}
		}
		for _, d := range deliveries {
			if d.Status == domain.ApprovalPending {
				out.PendingDeliveries++
			}
		}
		for _, eq := range equipment {
			if EquipmentStatusAt(eq, tx.Now()).Status == domain.EquipmentOverdue {
				out.EquipmentOverdue++
			}
		}
		for _, a := range activities {
			if a.Status != domain.ActivityCompleted {
				out.PendingActivities++
			}
		}
		for _, p := range permits {
			if p.Status == domain.PermitRequested {
				out.PermitsAwaitingCheck++
			}
		}
		return nil
	})
	return out, err
}
