package domain

import "context"

// Collection keys. Each key holds one whole JSON document: an array of
// entities, or a single object for settings and schema metadata.
const (
	KeyEmployees            = "employees"
	KeyPpeItems             = "ppe_items"
	KeyPpeDeliveries        = "ppe_deliveries"
	KeyStockMovements       = "ppe_stock_movements"
	KeyIncidents            = "incidents"
	KeyInspections          = "inspections"
	KeyTrainings            = "trainings"
	KeySafetyEquipment      = "safety_equipment"
	KeySafetyInspectionLogs = "safety_inspection_logs"
	KeyJhas                 = "jhas"
	KeyChemicals            = "chemicals"
	KeyWorkPermits          = "work_permits"
	KeyWastes               = "wastes"
	KeyWasteLogs            = "waste_logs"
	KeyAudits               = "audits"
	KeyActivities           = "activities"
	KeyUsers                = "users"
	KeyAppSettings          = "app_settings"
	KeySchemaMeta           = "schema_meta"
)

// CollectionKeys lists every persisted key in load order.
var CollectionKeys = []string{
	KeyEmployees,
	KeyPpeItems,
	KeyPpeDeliveries,
	KeyStockMovements,
	KeyIncidents,
	KeyInspections,
	KeyTrainings,
	KeySafetyEquipment,
	KeySafetyInspectionLogs,
	KeyJhas,
	KeyChemicals,
	KeyWorkPermits,
	KeyWastes,
	KeyWasteLogs,
	KeyAudits,
	KeyActivities,
	KeyUsers,
	KeyAppSettings,
	KeySchemaMeta,
}

// Record is one stored collection. Version is the value observed at load
// time; a missing key loads with Version 0 and a nil Payload. A CheckOnly
// record carries no payload: Save only asserts its version.
type Record struct {
	Key       string
	Payload   []byte
	Version   int64
	CheckOnly bool
}

// KeyedStore persists whole collections by key. Save replaces every supplied
// record atomically and bumps each version by one; CheckOnly records are
// compared but neither written nor bumped. When any stored version differs
// from Record.Version the batch is rejected with a PersistenceError wrapping
// ErrVersionConflict and nothing is written.
type KeyedStore interface {
	Load(ctx context.Context, key string) (Record, error)
	Save(ctx context.Context, records ...Record) error
}

// SchemaMeta is stored under KeySchemaMeta.
type SchemaMeta struct {
	Version int `json:"version"`
}
