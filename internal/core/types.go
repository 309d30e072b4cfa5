package core

import "ehscore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Severity           = domain.Severity
	Rule               = domain.Rule
	RuleView           = domain.RuleView
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError

	Employee            = domain.Employee
	PpeItem             = domain.PpeItem
	PpeDelivery         = domain.PpeDelivery
	StockMovement       = domain.StockMovement
	Incident            = domain.Incident
	Inspection          = domain.Inspection
	Training            = domain.Training
	SafetyEquipment     = domain.SafetyEquipment
	SafetyInspectionLog = domain.SafetyInspectionLog
	Jha                 = domain.Jha
	Chemical            = domain.Chemical
	WorkPermit          = domain.WorkPermit
	Waste               = domain.Waste
	WasteLog            = domain.WasteLog
	Audit               = domain.Audit
	AuditFinding        = domain.AuditFinding
	Activity            = domain.Activity
	User                = domain.User
	AppSettings         = domain.AppSettings
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(StockNonNegativeRule())
	engine.Register(LifecycleTransitionRule())
	engine.Register(FolioUniquenessRule())
	return engine
}
