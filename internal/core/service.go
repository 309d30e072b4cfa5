package core

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ehscore/internal/blob"
	"ehscore/internal/infra/persistence/memory"
	"ehscore/pkg/domain"
)

// ErrAttachmentsDisabled is returned by upload operations when the service
// has no attachment store.
var ErrAttachmentsDisabled = errors.New("attachments are not configured")

// Service exposes the transactional EHS operations. Each mutating call runs
// in exactly one store transaction.
type Service struct {
	store       *Store
	clock       Clock
	logger      Logger
	audit       AuditRecorder
	metrics     MetricsRecorder
	tracer      Tracer
	attachments *blob.Attachments
	policy      CorrectiveActionPolicy
	bcryptCost  int
}

// ServiceOption configures optional collaborators.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clock       Clock
	logger      Logger
	audit       AuditRecorder
	metrics     MetricsRecorder
	tracer      Tracer
	engine      *RulesEngine
	attachments *blob.Attachments
	policy      CorrectiveActionPolicy
	bcryptCost  int
	newID       func() string
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:      ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:     noopLogger{},
		audit:      noopAuditRecorder{},
		metrics:    noopMetricsRecorder{},
		tracer:     noopTracer{},
		policy:     CorrectiveActionsAllow,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder sets the audit trail sink.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithRulesEngine replaces the default rules engine.
func WithRulesEngine(engine *RulesEngine) ServiceOption {
	return func(o *serviceOptions) {
		if engine != nil {
			o.engine = engine
		}
	}
}

// WithAttachments enables uploads through the given attachment store.
func WithAttachments(a *blob.Attachments) ServiceOption {
	return func(o *serviceOptions) { o.attachments = a }
}

// WithCorrectiveActionPolicy sets the duplicate policy for corrective actions.
func WithCorrectiveActionPolicy(p CorrectiveActionPolicy) ServiceOption {
	return func(o *serviceOptions) {
		if p != "" {
			o.policy = p
		}
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) ServiceOption {
	return func(o *serviceOptions) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			o.bcryptCost = cost
		}
	}
}

// WithIDGenerator overrides entity id generation.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(o *serviceOptions) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// NewService constructs a service over kv. Without WithRulesEngine the
// default rule set is used.
func NewService(kv domain.KeyedStore, opts ...ServiceOption) *Service {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.engine == nil {
		cfg.engine = NewDefaultRulesEngine()
	}
	store := NewStore(kv, cfg.engine)
	store.nowFn = cfg.clock.Now
	if cfg.newID != nil {
		store.newID = cfg.newID
	}
	return &Service{
		store:       store,
		clock:       cfg.clock,
		logger:      cfg.logger,
		audit:       cfg.audit,
		metrics:     cfg.metrics,
		tracer:      cfg.tracer,
		attachments: cfg.attachments,
		policy:      cfg.policy,
		bcryptCost:  cfg.bcryptCost,
	}
}

// NewInMemoryService builds a service over a fresh in-memory KeyedStore.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(), append([]ServiceOption{WithRulesEngine(engine)}, opts...)...)
}

// Store returns the transactional store.
func (s *Service) Store() *Store { return s.store }

// CorrectiveActionPolicy returns the configured duplicate policy.
func (s *Service) CorrectiveActionPolicy() CorrectiveActionPolicy { return s.policy }

// run executes one audited mutating operation. fn returns the id of the
// affected entity.
func (s *Service) run(ctx context.Context, op, actorID string, fn func(tx *Transaction, actor User) (string, error)) (Result, error) {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	var entityID string
	res, err := s.store.RunInTransaction(ctx, func(tx *Transaction) error {
		actor, err := actorFor(tx, actorID)
		if err != nil {
			return err
		}
		entityID, err = fn(tx, actor)
		return err
	})
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.logger.Error("operation failed", "op", op, "actor", actorID, "entity_id", entityID, "error", err)
		s.recordAudit(ctx, op, actorID, entityID, duration, err)
		return res, err
	}
	for _, v := range res.Violations {
		s.logger.Warn("rule violation", "op", op, "rule", v.Rule, "severity", v.Severity, "message", v.Message)
	}
	s.logger.Info("operation completed", "op", op, "actor", actorID, "entity_id", entityID, "duration", duration)
	s.recordAudit(ctx, op, actorID, entityID, duration, nil)
	return res, nil
}

// view executes a read-only operation with tracing and metrics.
func (s *Service) view(ctx context.Context, op string, fn func(tx *Transaction) error) error {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := s.store.View(ctx, fn)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, s.clock.Now().Sub(start))
	if err != nil {
		s.logger.Error("read failed", "op", op, "error", err)
	}
	return err
}

func (s *Service) recordAudit(ctx context.Context, op, actorID, entityID string, duration time.Duration, err error) {
	meta, ok := auditedOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Actor:     actorID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func (s *Service) observeStock(items ...PpeItem) {
	obs, ok := s.metrics.(StockObserver)
	if !ok {
		return
	}
	for _, item := range items {
		obs.ObserveStock(item)
	}
}

// systemActor is used for operations that run without a logged-in user.
const systemActor = ""

func actorFor(tx *Transaction, actorID string) (User, error) {
	if actorID == systemActor {
		return User{}, nil
	}
	user, err := getEntity[User](tx, domain.KeyUsers, domain.EntityUser, actorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return User{}, domain.AuthorizationError{UserID: actorID, Action: "act as unknown user"}
		}
		return User{}, err
	}
	return user, nil
}

func requirePermission(actor User, perm domain.Permission, action string) error {
	if actor.HasPermission(perm) {
		return nil
	}
	return domain.AuthorizationError{UserID: actor.ID, Permission: perm, Action: action}
}

func requireLevel(actor User, level domain.UserLevel, action string) error {
	if actor.Level == level {
		return nil
	}
	return domain.AuthorizationError{UserID: actor.ID, Level: actor.Level, Action: action}
}

func folios[T any](items []T, folio func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, folio(item))
	}
	return out
}

// newestFirst sorts by date descending, then folio descending.
func newestFirst[T any](items []T, date func(T) domain.Date, folio func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := date(items[i]), date(items[j])
		if di != dj {
			return di > dj
		}
		return folio(items[i]) > folio(items[j])
	})
}

// sortByDate sorts by date ascending.
func sortByDate[T any](items []T, date func(T) domain.Date) {
	sort.SliceStable(items, func(i, j int) bool { return date(items[i]) < date(items[j]) })
}
