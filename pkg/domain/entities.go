// Package domain defines the persistent EHS entities, value types, and
// rule evaluation primitives shared by the ehscore service and its backends.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Quantities and costs are written as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and error values.
const (
	EntityEmployee            EntityType = "employee"
	EntityPpeItem             EntityType = "ppe_item"
	EntityPpeDelivery         EntityType = "ppe_delivery"
	EntityStockMovement       EntityType = "ppe_stock_movement"
	EntityIncident            EntityType = "incident"
	EntityInspection          EntityType = "inspection"
	EntityTraining            EntityType = "training"
	EntitySafetyEquipment     EntityType = "safety_equipment"
	EntitySafetyInspectionLog EntityType = "safety_inspection_log"
	EntityJha                 EntityType = "jha"
	EntityChemical            EntityType = "chemical"
	EntityWorkPermit          EntityType = "work_permit"
	EntityWaste               EntityType = "waste"
	EntityWasteLog            EntityType = "waste_log"
	EntityAudit               EntityType = "audit"
	EntityAuditFinding        EntityType = "audit_finding"
	EntityActivity            EntityType = "activity"
	EntityUser                EntityType = "user"
	EntitySettings            EntityType = "app_settings"
)

// Date is a calendar date serialised as YYYY-MM-DD, matching the stored layout.
type Date string

// DateLayout is the layout used for every Date value.
const DateLayout = "2006-01-02"

// DateOf formats t as a Date.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// Time parses the date at midnight UTC.
func (d Date) Time() (time.Time, error) {
	return time.Parse(DateLayout, string(d))
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d == "" }

// Base contains common fields for all top-level records.
type Base struct {
	ID string `json:"id"`
}

// Identifier returns the record id.
func (b Base) Identifier() string { return b.ID }

// Employee is a person on the payroll referenced by incidents, inspections,
// trainings and PPE deliveries.
type Employee struct {
	Base
	EmployeeNumber string `json:"employeeNumber"`
	Name           string `json:"name"`
	Department     string `json:"department"`
	Position       string `json:"position"`
}

// PpeItem is a stocked personal protective equipment article.
type PpeItem struct {
	Base
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Size  string          `json:"size"`
	Stock decimal.Decimal `json:"stock"`
}

// DeliveryType classifies why PPE was handed out.
type DeliveryType string

// Delivery types offered by the request form.
const (
	DeliveryIngreso    DeliveryType = "Ingreso"
	DeliveryRenovacion DeliveryType = "Renovación"
	DeliveryReposicion DeliveryType = "Reposición"
	DeliveryVisitas    DeliveryType = "Visitas"
)

// ApprovalStatus is the PPE delivery workflow state.
type ApprovalStatus string

// PPE delivery states. Aprobado is terminal.
const (
	ApprovalPending  ApprovalStatus = "En espera"
	ApprovalApproved ApprovalStatus = "Aprobado"
)

// PpeDelivery is a request to hand PPE to an employee. Stock is only
// consumed when the delivery is approved.
type PpeDelivery struct {
	Base
	Folio             string         `json:"folio"`
	EmployeeID        string         `json:"employeeId"`
	PpeID             string         `json:"ppeId"`
	Quantity          int            `json:"quantity"`
	Date              Date           `json:"date"`
	DeliveryType      DeliveryType   `json:"deliveryType"`
	RenewalDate       Date           `json:"renewalDate,omitempty"`
	Status            ApprovalStatus `json:"status"`
	RequestedByUserID string         `json:"requestedByUserId"`
	ApprovedByUserID  string         `json:"approvedByUserId,omitempty"`
}

// MovementKind labels a stock ledger entry.
type MovementKind string

// Stock movement kinds. Delivery approvals are recorded as MovementDelivery.
const (
	MovementReceipt    MovementKind = "ingreso"
	MovementWithdrawal MovementKind = "salida"
	MovementDelivery   MovementKind = "entrega"
)

// StockMovement is an append-only record of one PPE stock mutation.
type StockMovement struct {
	Base
	PpeID       string          `json:"ppeId"`
	Kind        MovementKind    `json:"kind"`
	Delta       decimal.Decimal `json:"delta"`
	StockBefore decimal.Decimal `json:"stockBefore"`
	StockAfter  decimal.Decimal `json:"stockAfter"`
	DeliveryID  string          `json:"deliveryId,omitempty"`
	UserID      string          `json:"userId"`
	RecordedAt  time.Time       `json:"recordedAt"`
}

// EventType classifies an incident report.
type EventType string

// Incident event types.
const (
	EventAccident        EventType = "Accidente"
	EventIncident        EventType = "Incidente"
	EventUnsafeCondition EventType = "Condición Insegura"
	EventUnsafeAct       EventType = "Acto Inseguro"
)

// Incident is an investigated safety event. Its folio never changes after creation.
type Incident struct {
	Base
	Folio              string    `json:"folio"`
	EmployeeID         *string   `json:"employeeId"`
	Date               Date      `json:"date"`
	Time               string    `json:"time"`
	EventType          EventType `json:"eventType"`
	MachineOrOperation string    `json:"machineOrOperation"`
	Area               string    `json:"area"`
	Description        string    `json:"description"`
	Treatment          string    `json:"treatment"`
	EvidenceImageURL   string    `json:"evidenceImageUrl,omitempty"`
}

// TrainingType distinguishes in-house from external courses.
type TrainingType string

// Training types.
const (
	TrainingInternal TrainingType = "Interna"
	TrainingExternal TrainingType = "Externa"
)

// Training records a course session and its attendees (employee ids).
type Training struct {
	Base
	Topic         string       `json:"topic"`
	Date          Date         `json:"date"`
	TrainingType  TrainingType `json:"trainingType"`
	Instructor    string       `json:"instructor"`
	DurationHours float64      `json:"durationHours"`
	Attendees     []string     `json:"attendees"`
}

// ViolationType is one entry of the PPE-use violation catalogue.
type ViolationType string

// ViolationTypes is the fixed violation catalogue.
var ViolationTypes = []ViolationType{
	"Falta de lentes de seguridad",
	"Falta de botas de seguridad",
	"Falta de mascarilla / respirador",
	"Falta de mandil / delantal",
	"Falta de guantes",
	"Falta de casco",
	"Uso incorrecto del equipo",
	"Equipo en mal estado",
}

// Inspection is an append-only PPE-use inspection of one employee.
type Inspection struct {
	Base
	EmployeeID   string          `json:"employeeId"`
	Date         Date            `json:"date"`
	Violation    bool            `json:"violation"`
	Violations   []ViolationType `json:"violations"`
	Observations string          `json:"observations"`
}

// EquipmentType classifies safety equipment.
type EquipmentType string

// EquipmentTypes lists accepted safety equipment types.
var EquipmentTypes = []EquipmentType{
	"Extintor", "Hidrante", "Salida de Emergencia", "Lámpara de Emergencia",
	"Rampa", "Lavaojos", "Ducha de Seguridad", "Otro",
}

// SafetyEquipment is a periodically inspected fixture (extinguisher, eyewash...).
type SafetyEquipment struct {
	Base
	Name                string        `json:"name"`
	Type                EquipmentType `json:"type"`
	Location            string        `json:"location"`
	InspectionFrequency int           `json:"inspectionFrequency"`
	LastInspectionDate  Date          `json:"lastInspectionDate,omitempty"`
}

// SafetyInspectionLogStatus is the outcome of one equipment inspection.
type SafetyInspectionLogStatus string

// Equipment inspection outcomes.
const (
	EquipmentOK             SafetyInspectionLogStatus = "OK"
	EquipmentNeedsRepair    SafetyInspectionLogStatus = "Reparación Requerida"
	EquipmentNeedsReplacing SafetyInspectionLogStatus = "Reemplazo Requerido"
)

// SafetyInspectionLog records one inspection of a SafetyEquipment.
type SafetyInspectionLog struct {
	Base
	EquipmentID    string                    `json:"equipmentId"`
	InspectionDate Date                      `json:"inspectionDate"`
	Status         SafetyInspectionLogStatus `json:"status"`
	Notes          string                    `json:"notes"`
	InspectorID    string                    `json:"inspectorId"`
}

// EquipmentStatus is the derived inspection standing of safety equipment.
type EquipmentStatus string

// Derived equipment states; never stored.
const (
	EquipmentNeverInspected EquipmentStatus = "Nunca"
	EquipmentOverdue        EquipmentStatus = "Vencido"
	EquipmentDueSoon        EquipmentStatus = "Próximo a Vencer"
	EquipmentCompliant      EquipmentStatus = "En Regla"
)

// ActivityType distinguishes internal from contracted work.
type ActivityType string

// Activity types.
const (
	ActivityInternal ActivityType = "Interna"
	ActivityExternal ActivityType = "Externa"
)

// ActivityPriority orders follow-up work.
type ActivityPriority string

// Activity priorities.
const (
	PriorityLow    ActivityPriority = "Baja"
	PriorityMedium ActivityPriority = "Media"
	PriorityHigh   ActivityPriority = "Alta"
)

// ActivityStatus tracks follow-up progress.
type ActivityStatus string

// Activity statuses.
const (
	ActivityPending    ActivityStatus = "Pendiente"
	ActivityInProgress ActivityStatus = "En Progreso"
	ActivityCompleted  ActivityStatus = "Completada"
)

// Activity is a follow-up task, optionally generated from an audit finding.
type Activity struct {
	Base
	RegistrationDate  Date             `json:"registrationDate"`
	CommitmentDate    Date             `json:"commitmentDate"`
	Description       string           `json:"description"`
	Type              ActivityType     `json:"type"`
	Provider          string           `json:"provider,omitempty"`
	EstimatedCost     decimal.Decimal  `json:"estimatedCost"`
	Priority          ActivityPriority `json:"priority"`
	Status            ActivityStatus   `json:"status"`
	Comments          string           `json:"comments"`
	ResponsibleUserID string           `json:"responsibleUserId"`
	SourceAuditID     string           `json:"sourceAuditId,omitempty"`
	SourceFindingID   string           `json:"sourceFindingId,omitempty"`
}

// JhaRiskLevel grades a hazard.
type JhaRiskLevel string

// JHA risk levels.
const (
	RiskLow    JhaRiskLevel = "Bajo"
	RiskMedium JhaRiskLevel = "Medio"
	RiskHigh   JhaRiskLevel = "Alto"
)

// JhaHazard is one hazard identified for a step.
type JhaHazard struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Controls    string       `json:"controls"`
	RiskLevel   JhaRiskLevel `json:"riskLevel"`
}

// JhaStep is one ordered step of a job.
type JhaStep struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Hazards     []JhaHazard `json:"hazards"`
}

// Jha is a job hazard analysis. Steps and hazards are owned by the analysis
// and replaced wholesale on edit.
type Jha struct {
	Base
	Title        string    `json:"title"`
	Area         string    `json:"area"`
	CreationDate Date      `json:"creationDate"`
	Steps        []JhaStep `json:"steps"`
}

// PictogramKey is a GHS hazard pictogram identifier.
type PictogramKey string

// PictogramKeys lists the accepted GHS pictograms.
var PictogramKeys = []PictogramKey{
	"explosive", "flammable", "oxidizing", "compressed_gas", "corrosive",
	"toxic", "harmful", "health_hazard", "environmental_hazard",
}

// Chemical is an inventoried substance. SdsURL holds the attachment key of its
// safety data sheet.
type Chemical struct {
	Base
	Name       string         `json:"name"`
	Provider   string         `json:"provider"`
	CasNumber  string         `json:"casNumber,omitempty"`
	Location   string         `json:"location"`
	SdsURL     string         `json:"sdsUrl"`
	Pictograms []PictogramKey `json:"pictograms"`
}

// WorkPermitType classifies a permit to work.
type WorkPermitType string

// WorkPermitTypes lists accepted permit types.
var WorkPermitTypes = []WorkPermitType{
	"Trabajo en Caliente", "Trabajo en Altura", "Espacio Confinado", "Eléctrico", "Otro",
}

// WorkPermitStatus is the permit lifecycle state.
type WorkPermitStatus string

// Work permit states. Rechazado and Cerrado are terminal.
const (
	PermitRequested  WorkPermitStatus = "Solicitado"
	PermitApproved   WorkPermitStatus = "Aprobado"
	PermitRejected   WorkPermitStatus = "Rechazado"
	PermitInProgress WorkPermitStatus = "En Progreso"
	PermitClosed     WorkPermitStatus = "Cerrado"
)

// WorkPermit authorises hazardous work for a time window.
type WorkPermit struct {
	Base
	Folio           string           `json:"folio"`
	Title           string           `json:"title"`
	Type            WorkPermitType   `json:"type"`
	Status          WorkPermitStatus `json:"status"`
	RequestDate     Date             `json:"requestDate"`
	ValidFrom       string           `json:"validFrom,omitempty"`
	ValidTo         string           `json:"validTo,omitempty"`
	CloseDate       Date             `json:"closeDate,omitempty"`
	RequesterUserID string           `json:"requesterUserId"`
	ApproverUserID  string           `json:"approverUserId,omitempty"`
	CloserUserID    string           `json:"closerUserId,omitempty"`
	Description     string           `json:"description"`
	Location        string           `json:"location"`
	Equipment       []string         `json:"equipment"`
	Ppe             []string         `json:"ppe"`
	JhaID           string           `json:"jhaId,omitempty"`
	Notes           string           `json:"notes,omitempty"`
}

// WasteType classifies a waste stream.
type WasteType string

// Waste types.
const (
	WasteHazardous    WasteType = "Peligroso"
	WasteNonHazardous WasteType = "No Peligroso"
	WasteRecyclable   WasteType = "Reciclable"
)

// WasteUnit is the unit a disposal quantity is measured in.
type WasteUnit string

// WasteUnits lists accepted disposal units.
var WasteUnits = []WasteUnit{"Kg", "L", "Unidades", "Tambores"}

// Waste is a catalogued waste stream.
type Waste struct {
	Base
	Name            string    `json:"name"`
	Type            WasteType `json:"type"`
	StorageLocation string    `json:"storageLocation"`
	DisposalMethod  string    `json:"disposalMethod"`
}

// WasteLog records one disposal of a catalogued waste.
type WasteLog struct {
	Base
	Folio            string           `json:"folio"`
	WasteID          string           `json:"wasteId"`
	Date             Date             `json:"date"`
	Quantity         decimal.Decimal  `json:"quantity"`
	Unit             WasteUnit        `json:"unit"`
	ManifestNumber   string           `json:"manifestNumber,omitempty"`
	ManifestURL      string           `json:"manifestUrl,omitempty"`
	DisposalCompany  string           `json:"disposalCompany,omitempty"`
	Cost             *decimal.Decimal `json:"cost,omitempty"`
	RecordedByUserID string           `json:"recordedByUserId"`
}

// AuditFindingType classifies a finding.
type AuditFindingType string

// Audit finding types. Only non-conformities produce corrective actions.
const (
	FindingNonConformity AuditFindingType = "No Conformidad"
	FindingObservation   AuditFindingType = "Observación"
	FindingImprovement   AuditFindingType = "Oportunidad de Mejora"
)

// AuditFindingSeverity grades a non-conformity.
type AuditFindingSeverity string

// Finding severities.
const (
	SeverityMajor AuditFindingSeverity = "Mayor"
	SeverityMinor AuditFindingSeverity = "Menor"
)

// AuditFindingStatus is the finding lifecycle state.
type AuditFindingStatus string

// Finding states. Cerrada is terminal.
const (
	FindingOpen   AuditFindingStatus = "Abierta"
	FindingClosed AuditFindingStatus = "Cerrada"
)

// AuditFinding is embedded in its Audit and has no independent lifecycle.
type AuditFinding struct {
	ID          string               `json:"id"`
	AuditID     string               `json:"auditId"`
	Description string               `json:"description"`
	Type        AuditFindingType     `json:"type"`
	Severity    AuditFindingSeverity `json:"severity"`
	Status      AuditFindingStatus   `json:"status"`
	Reference   string               `json:"reference"`
}

// Audit is a compliance audit with its findings.
type Audit struct {
	Base
	Folio         string         `json:"folio"`
	Title         string         `json:"title"`
	Standard      string         `json:"standard"`
	Scope         string         `json:"scope"`
	StartDate     Date           `json:"startDate"`
	EndDate       Date           `json:"endDate"`
	LeadAuditorID string         `json:"leadAuditorId"`
	AuditorIDs    []string       `json:"auditorIds"`
	Findings      []AuditFinding `json:"findings"`
}

// FindFinding returns the embedded finding with the given id.
func (a Audit) FindFinding(id string) (AuditFinding, int, bool) {
	for i, f := range a.Findings {
		if f.ID == id {
			return f, i, true
		}
	}
	return AuditFinding{}, -1, false
}

// AppSettings carries company details printed on documents.
type AppSettings struct {
	CompanyName    string `json:"companyName"`
	CompanyAddress string `json:"companyAddress"`
	CompanyPhone   string `json:"companyPhone"`
	CompanyLogo    string `json:"companyLogo"`
}

// DefaultAppSettings mirrors the values shipped with a fresh installation.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		CompanyName:    "EHS Integral Management",
		CompanyAddress: "123 Safety Avenue, Compliance City, 12345",
		CompanyPhone:   "(555) 123-4567",
	}
}
