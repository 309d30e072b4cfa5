package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ehscore/pkg/domain"
)

// Store runs read-modify-write units over a KeyedStore. Collections are
// loaded lazily on first access within a transaction and only touched
// collections are written back, in a single batch that also asserts the
// versions of every collection the transaction read.
type Store struct {
	mu     sync.Mutex
	kv     domain.KeyedStore
	engine *RulesEngine
	nowFn  func() time.Time
	newID  func() string
}

// NewStore constructs a store over kv with the provided rules engine.
func NewStore(kv domain.KeyedStore, engine *RulesEngine) *Store {
	if engine == nil {
		engine = NewRulesEngine()
	}
	return &Store{
		kv:     kv,
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Engine returns the rules engine evaluated before every commit.
func (s *Store) Engine() *RulesEngine { return s.engine }

// KeyedStore returns the backing collection store.
func (s *Store) KeyedStore() domain.KeyedStore { return s.kv }

type bucket struct {
	key     string
	version int64
	value   any
	empty   []byte
	dirty   bool
}

// Transaction is one unit of work. It is not safe for concurrent use.
type Transaction struct {
	ctx     context.Context
	store   *Store
	buckets map[string]*bucket
	changes []Change
	now     time.Time
	readErr error
}

func (s *Store) begin(ctx context.Context) *Transaction {
	return &Transaction{
		ctx:     ctx,
		store:   s,
		buckets: make(map[string]*bucket),
		now:     s.nowFn(),
	}
}

// RunInTransaction executes fn, evaluates rules against the recorded changes
// and persists every touched collection atomically. Nothing is written when fn
// fails, a rule blocks, or the batch save fails.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx *Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.begin(ctx)
	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if len(tx.changes) > 0 {
		res, err := s.engine.Evaluate(ctx, transactionView{tx: tx}, tx.changes)
		if err != nil {
			return Result{}, err
		}
		if tx.readErr != nil {
			return Result{}, tx.readErr
		}
		result = res
		if res.HasBlocking() {
			return res, RuleViolationError{Result: res}
		}
	}
	if err := tx.commit(); err != nil {
		return result, err
	}
	return result, nil
}

// View executes fn against freshly loaded state without writing anything.
func (s *Store) View(ctx context.Context, fn func(tx *Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.begin(ctx))
}

// Now returns the transaction timestamp.
func (tx *Transaction) Now() time.Time { return tx.now }

// Today returns the transaction date.
func (tx *Transaction) Today() domain.Date { return domain.DateOf(tx.now) }

// NewID returns a fresh entity identifier.
func (tx *Transaction) NewID() string { return tx.store.newID() }

func (tx *Transaction) load(key string, newValue func() any, empty []byte) (*bucket, error) {
	if b, ok := tx.buckets[key]; ok {
		return b, nil
	}
	rec, err := tx.store.kv.Load(tx.ctx, key)
	if err != nil {
		return nil, err
	}
	value := newValue()
	if len(rec.Payload) > 0 && !bytes.Equal(bytes.TrimSpace(rec.Payload), []byte("null")) {
		if err := json.Unmarshal(rec.Payload, value); err != nil {
			return nil, domain.PersistenceError{Key: key, Op: "decode", Err: err}
		}
	}
	b := &bucket{key: key, version: rec.Version, value: value, empty: empty}
	tx.buckets[key] = b
	return b, nil
}

func (tx *Transaction) touch(key string) {
	if b, ok := tx.buckets[key]; ok {
		b.dirty = true
	}
}

func (tx *Transaction) commit() error {
	var records []domain.Record
	for _, key := range domain.CollectionKeys {
		b, ok := tx.buckets[key]
		if !ok || !b.dirty {
			continue
		}
		payload, err := json.Marshal(b.value)
		if err != nil {
			return domain.PersistenceError{Key: key, Op: "encode", Err: err}
		}
		if bytes.Equal(payload, []byte("null")) {
			payload = b.empty
		}
		records = append(records, domain.Record{Key: key, Payload: payload, Version: b.version})
	}
	if len(records) == 0 {
		return nil
	}
	// Collections read but not written are asserted at their loaded versions.
	for _, key := range domain.CollectionKeys {
		if b, ok := tx.buckets[key]; ok && !b.dirty {
			records = append(records, domain.Record{Key: key, Version: b.version, CheckOnly: true})
		}
	}
	if err := tx.store.kv.Save(tx.ctx, records...); err != nil {
		return fmt.Errorf("persist transaction: %w", err)
	}
	return nil
}

func (tx *Transaction) recordChange(entity EntityType, action Action, id string, before, after any) {
	tx.changes = append(tx.changes, Change{
		Entity: entity,
		Action: action,
		ID:     id,
		Before: payloadOf(before),
		After:  payloadOf(after),
	})
}

func payloadOf(v any) domain.ChangePayload {
	if v == nil {
		return domain.ChangePayload{}
	}
	p, err := domain.NewChangePayloadFromValue(v)
	if err != nil {
		return domain.ChangePayload{}
	}
	return p
}

// collection returns the decoded slice stored under key.
func collection[T any](tx *Transaction, key string) (*[]T, error) {
	b, err := tx.load(key, func() any { return new([]T) }, []byte("[]"))
	if err != nil {
		return nil, err
	}
	return b.value.(*[]T), nil
}

// document returns the decoded object stored under key, or def when absent.
func document[T any](tx *Transaction, key string, def func() T) (*T, error) {
	b, err := tx.load(key, func() any {
		v := def()
		return &v
	}, nil)
	if err != nil {
		return nil, err
	}
	return b.value.(*T), nil
}

type identified interface{ Identifier() string }

func indexOf[T identified](items []T, id string) int {
	for i, item := range items {
		if item.Identifier() == id {
			return i
		}
	}
	return -1
}

func getEntity[T identified](tx *Transaction, key string, entity EntityType, id string) (T, error) {
	var zero T
	items, err := collection[T](tx, key)
	if err != nil {
		return zero, err
	}
	idx := indexOf(*items, id)
	if idx < 0 {
		return zero, domain.NotFoundError{Entity: entity, ID: id}
	}
	return (*items)[idx], nil
}

func listEntities[T any](tx *Transaction, key string) ([]T, error) {
	items, err := collection[T](tx, key)
	if err != nil {
		return nil, err
	}
	return append([]T(nil), (*items)...), nil
}

func insertEntity[T identified](tx *Transaction, key string, entity EntityType, item T) (T, error) {
	var zero T
	items, err := collection[T](tx, key)
	if err != nil {
		return zero, err
	}
	id := item.Identifier()
	if id == "" {
		return zero, domain.ValidationError{Entity: entity, Field: "id", Message: "required"}
	}
	if indexOf(*items, id) >= 0 {
		return zero, fmt.Errorf("%s %q already exists", entity, id)
	}
	*items = append(*items, item)
	tx.touch(key)
	tx.recordChange(entity, ActionCreate, id, nil, item)
	return item, nil
}

func updateEntity[T identified](tx *Transaction, key string, entity EntityType, id string, mutator func(*T) error) (T, error) {
	var zero T
	items, err := collection[T](tx, key)
	if err != nil {
		return zero, err
	}
	idx := indexOf(*items, id)
	if idx < 0 {
		return zero, domain.NotFoundError{Entity: entity, ID: id}
	}
	before := payloadOf((*items)[idx])
	current := (*items)[idx]
	if err := mutator(&current); err != nil {
		return zero, err
	}
	if current.Identifier() != id {
		return zero, domain.ValidationError{Entity: entity, Field: "id", Message: "cannot be changed"}
	}
	(*items)[idx] = current
	tx.touch(key)
	tx.changes = append(tx.changes, Change{Entity: entity, Action: ActionUpdate, ID: id, Before: before, After: payloadOf(current)})
	return current, nil
}

func deleteEntity[T identified](tx *Transaction, key string, entity EntityType, id string) (T, error) {
	var zero T
	items, err := collection[T](tx, key)
	if err != nil {
		return zero, err
	}
	idx := indexOf(*items, id)
	if idx < 0 {
		return zero, domain.NotFoundError{Entity: entity, ID: id}
	}
	removed := (*items)[idx]
	*items = append((*items)[:idx:idx], (*items)[idx+1:]...)
	tx.touch(key)
	tx.recordChange(entity, ActionDelete, id, removed, nil)
	return removed, nil
}

// transactionView exposes the in-flight state to rules. Load failures are
// remembered on the transaction and abort the commit.
type transactionView struct {
	tx *Transaction
}

func viewList[T any](v transactionView, key string) []T {
	items, err := listEntities[T](v.tx, key)
	if err != nil {
		if v.tx.readErr == nil {
			v.tx.readErr = err
		}
		return nil
	}
	return items
}

func (v transactionView) ListPpeItems() []PpeItem { return viewList[PpeItem](v, domain.KeyPpeItems) }
func (v transactionView) ListPpeDeliveries() []PpeDelivery {
	return viewList[PpeDelivery](v, domain.KeyPpeDeliveries)
}
func (v transactionView) ListIncidents() []Incident { return viewList[Incident](v, domain.KeyIncidents) }
func (v transactionView) ListWorkPermits() []WorkPermit {
	return viewList[WorkPermit](v, domain.KeyWorkPermits)
}
func (v transactionView) ListWasteLogs() []WasteLog { return viewList[WasteLog](v, domain.KeyWasteLogs) }
func (v transactionView) ListAudits() []Audit       { return viewList[Audit](v, domain.KeyAudits) }
func (v transactionView) ListActivities() []Activity {
	return viewList[Activity](v, domain.KeyActivities)
}

func (v transactionView) FindPpeItem(id string) (PpeItem, bool) {
	for _, item := range v.ListPpeItems() {
		if item.ID == id {
			return item, true
		}
	}
	return PpeItem{}, false
}
