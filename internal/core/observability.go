package core

import (
	"context"
	"time"

	"ehscore/pkg/domain"
)

// Clock supplies the service time source.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now implements Clock. A nil function falls back to the UTC wall clock.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f()
}

// Logger is the structured logging surface used by the service. *slog.Logger
// satisfies it directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AuditStatus is the outcome recorded for an audited operation.
type AuditStatus string

// Audit outcomes.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one mutating service call.
type AuditEntry struct {
	Operation string
	Entity    domain.EntityType
	Action    domain.Action
	EntityID  string
	Actor     string
	Status    AuditStatus
	Duration  time.Duration
	Timestamp time.Time
	Error     string
}

// AuditRecorder receives audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MetricsRecorder observes operation latency and outcome.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// StockObserver is implemented by metrics recorders that track PPE stock levels.
type StockObserver interface {
	ObserveStock(item PpeItem)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// TraceSpan is ended once per traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type operationMeta struct {
	entity domain.EntityType
	action domain.Action
}

// auditedOperations maps mutating operations to the entity and action they
// record. Operations missing here are traced and measured but not audited.
var auditedOperations = map[string]operationMeta{
	"create_employee":          {domain.EntityEmployee, domain.ActionCreate},
	"update_employee":          {domain.EntityEmployee, domain.ActionUpdate},
	"delete_employee":          {domain.EntityEmployee, domain.ActionDelete},
	"create_ppe_item":          {domain.EntityPpeItem, domain.ActionCreate},
	"update_ppe_item":          {domain.EntityPpeItem, domain.ActionUpdate},
	"delete_ppe_item":          {domain.EntityPpeItem, domain.ActionDelete},
	"receive_stock":            {domain.EntityPpeItem, domain.ActionUpdate},
	"withdraw_stock":           {domain.EntityPpeItem, domain.ActionUpdate},
	"request_delivery":         {domain.EntityPpeDelivery, domain.ActionCreate},
	"approve_delivery":         {domain.EntityPpeDelivery, domain.ActionUpdate},
	"create_incident":          {domain.EntityIncident, domain.ActionCreate},
	"update_incident":          {domain.EntityIncident, domain.ActionUpdate},
	"attach_incident_evidence": {domain.EntityIncident, domain.ActionUpdate},
	"record_inspection":        {domain.EntityInspection, domain.ActionCreate},
	"create_training":          {domain.EntityTraining, domain.ActionCreate},
	"update_training":          {domain.EntityTraining, domain.ActionUpdate},
	"delete_training":          {domain.EntityTraining, domain.ActionDelete},
	"create_equipment":         {domain.EntitySafetyEquipment, domain.ActionCreate},
	"update_equipment":         {domain.EntitySafetyEquipment, domain.ActionUpdate},
	"delete_equipment":         {domain.EntitySafetyEquipment, domain.ActionDelete},
	"log_equipment_inspection": {domain.EntitySafetyInspectionLog, domain.ActionCreate},
	"create_jha":               {domain.EntityJha, domain.ActionCreate},
	"update_jha":               {domain.EntityJha, domain.ActionUpdate},
	"delete_jha":               {domain.EntityJha, domain.ActionDelete},
	"create_chemical":          {domain.EntityChemical, domain.ActionCreate},
	"update_chemical":          {domain.EntityChemical, domain.ActionUpdate},
	"delete_chemical":          {domain.EntityChemical, domain.ActionDelete},
	"upload_sds":               {domain.EntityChemical, domain.ActionUpdate},
	"create_permit":            {domain.EntityWorkPermit, domain.ActionCreate},
	"update_permit":            {domain.EntityWorkPermit, domain.ActionUpdate},
	"delete_permit":            {domain.EntityWorkPermit, domain.ActionDelete},
	"approve_permit":           {domain.EntityWorkPermit, domain.ActionUpdate},
	"reject_permit":            {domain.EntityWorkPermit, domain.ActionUpdate},
	"start_permit":             {domain.EntityWorkPermit, domain.ActionUpdate},
	"close_permit":             {domain.EntityWorkPermit, domain.ActionUpdate},
	"create_waste":             {domain.EntityWaste, domain.ActionCreate},
	"update_waste":             {domain.EntityWaste, domain.ActionUpdate},
	"delete_waste":             {domain.EntityWaste, domain.ActionDelete},
	"record_waste_log":         {domain.EntityWasteLog, domain.ActionCreate},
	"delete_waste_log":         {domain.EntityWasteLog, domain.ActionDelete},
	"upload_waste_manifest":    {domain.EntityWasteLog, domain.ActionUpdate},
	"create_audit":             {domain.EntityAudit, domain.ActionCreate},
	"update_audit":             {domain.EntityAudit, domain.ActionUpdate},
	"delete_audit":             {domain.EntityAudit, domain.ActionDelete},
	"add_finding":              {domain.EntityAuditFinding, domain.ActionCreate},
	"close_finding":            {domain.EntityAuditFinding, domain.ActionUpdate},
	"create_corrective_action": {domain.EntityActivity, domain.ActionCreate},
	"create_activity":          {domain.EntityActivity, domain.ActionCreate},
	"update_activity":          {domain.EntityActivity, domain.ActionUpdate},
	"delete_activity":          {domain.EntityActivity, domain.ActionDelete},
	"set_activity_status":      {domain.EntityActivity, domain.ActionUpdate},
	"create_user":              {domain.EntityUser, domain.ActionCreate},
	"update_user":              {domain.EntityUser, domain.ActionUpdate},
	"set_user_password":        {domain.EntityUser, domain.ActionUpdate},
	"delete_user":              {domain.EntityUser, domain.ActionDelete},
	"bootstrap":                {domain.EntityUser, domain.ActionCreate},
	"update_settings":          {domain.EntitySettings, domain.ActionUpdate},
	"upload_company_logo":      {domain.EntitySettings, domain.ActionUpdate},
}
