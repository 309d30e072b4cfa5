package core

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"ehscore/internal/infra/persistence/memory"
	"ehscore/pkg/domain"
)

func newRuleStore() *Store {
	return NewStore(memory.NewStore(), NewDefaultRulesEngine())
}

func seed[T identified](t *testing.T, s *Store, key string, entity EntityType, items ...T) {
	t.Helper()
	if _, err := s.RunInTransaction(context.Background(), func(tx *Transaction) error {
		for _, item := range items {
			if _, err := insertEntity(tx, key, entity, item); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
}

func expectBlocked(t *testing.T, rule string, err error) {
	t.Helper()
	var violation RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation from %s, got %v", rule, err)
	}
	for _, v := range violation.Result.Violations {
		if v.Rule == rule && v.Severity == SeverityBlock {
			return
		}
	}
	t.Fatalf("expected blocking %s violation, got %+v", rule, violation.Result.Violations)
}

func TestStockNonNegativeRuleBlocksCommit(t *testing.T) {
	s := newRuleStore()
	seed(t, s, domain.KeyPpeItems, domain.EntityPpeItem, PpeItem{Base: domain.Base{ID: "p1"}, Name: "Casco", Stock: decimal.NewFromInt(1)})

	_, err := s.RunInTransaction(context.Background(), func(tx *Transaction) error {
		_, err := updateEntity(tx, domain.KeyPpeItems, domain.EntityPpeItem, "p1", func(p *PpeItem) error {
			p.Stock = decimal.NewFromInt(-1)
			return nil
		})
		return err
	})
	expectBlocked(t, "stock_non_negative", err)

	err = s.View(context.Background(), func(tx *Transaction) error {
		item, err := getEntity[PpeItem](tx, domain.KeyPpeItems, domain.EntityPpeItem, "p1")
		if err != nil {
			return err
		}
		if !item.Stock.Equal(decimal.NewFromInt(1)) {
			t.Fatalf("blocked transaction must not persist, got stock %s", item.Stock)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestLifecycleRuleBlocksLeavingTerminalStates(t *testing.T) {
	cases := []struct {
		name   string
		seed   func(t *testing.T, s *Store)
		mutate func(tx *Transaction) error
	}{
		{
			name: "approved delivery",
			seed: func(t *testing.T, s *Store) {
				seed(t, s, domain.KeyPpeDeliveries, domain.EntityPpeDelivery, PpeDelivery{Base: domain.Base{ID: "d1"}, Folio: "F-0001", Status: domain.ApprovalApproved})
			},
			mutate: func(tx *Transaction) error {
				_, err := updateEntity(tx, domain.KeyPpeDeliveries, domain.EntityPpeDelivery, "d1", func(d *PpeDelivery) error {
					d.Status = domain.ApprovalPending
					return nil
				})
				return err
			},
		},
		{
			name: "closed permit",
			seed: func(t *testing.T, s *Store) {
				seed(t, s, domain.KeyWorkPermits, domain.EntityWorkPermit, WorkPermit{Base: domain.Base{ID: "w1"}, Folio: "PT-0001", Status: domain.PermitClosed})
			},
			mutate: func(tx *Transaction) error {
				_, err := updateEntity(tx, domain.KeyWorkPermits, domain.EntityWorkPermit, "w1", func(p *WorkPermit) error {
					p.Status = domain.PermitInProgress
					return nil
				})
				return err
			},
		},
		{
			name: "closed finding",
			seed: func(t *testing.T, s *Store) {
				seed(t, s, domain.KeyAudits, domain.EntityAudit, Audit{
					Base:     domain.Base{ID: "a1"},
					Folio:    "AUD-0001",
					Findings: []AuditFinding{{ID: "f1", AuditID: "a1", Status: domain.FindingClosed}},
				})
			},
			mutate: func(tx *Transaction) error {
				_, err := updateEntity(tx, domain.KeyAudits, domain.EntityAudit, "a1", func(a *Audit) error {
					a.Findings = []AuditFinding{{ID: "f1", AuditID: "a1", Status: domain.FindingOpen}}
					return nil
				})
				return err
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newRuleStore()
			tc.seed(t, s)
			_, err := s.RunInTransaction(context.Background(), tc.mutate)
			expectBlocked(t, "lifecycle_transition", err)
		})
	}
}

func TestLifecycleRuleRejectsUnknownStates(t *testing.T) {
	s := newRuleStore()
	_, err := s.RunInTransaction(context.Background(), func(tx *Transaction) error {
		_, err := insertEntity(tx, domain.KeyActivities, domain.EntityActivity, Activity{Base: domain.Base{ID: "act1"}, Status: "Archivada"})
		return err
	})
	expectBlocked(t, "lifecycle_transition", err)
}

func TestLifecycleRuleAllowsDeletingTerminalRecords(t *testing.T) {
	s := newRuleStore()
	seed(t, s, domain.KeyWorkPermits, domain.EntityWorkPermit, WorkPermit{Base: domain.Base{ID: "w1"}, Folio: "PT-0001", Status: domain.PermitRejected})
	_, err := s.RunInTransaction(context.Background(), func(tx *Transaction) error {
		_, err := deleteEntity[WorkPermit](tx, domain.KeyWorkPermits, domain.EntityWorkPermit, "w1")
		return err
	})
	if err != nil {
		t.Fatalf("delete rejected permit: %v", err)
	}
}

func TestFolioUniquenessRule(t *testing.T) {
	s := newRuleStore()
	seed(t, s, domain.KeyIncidents, domain.EntityIncident, Incident{Base: domain.Base{ID: "i1"}, Folio: "I-0001"})

	_, err := s.RunInTransaction(context.Background(), func(tx *Transaction) error {
		_, err := insertEntity(tx, domain.KeyIncidents, domain.EntityIncident, Incident{Base: domain.Base{ID: "i2"}, Folio: "I-0001"})
		return err
	})
	expectBlocked(t, "folio_unique", err)

	// Legacy rows without a folio do not collide.
	_, err = s.RunInTransaction(context.Background(), func(tx *Transaction) error {
		for _, id := range []string{"i3", "i4"} {
			if _, err := insertEntity(tx, domain.KeyIncidents, domain.EntityIncident, Incident{Base: domain.Base{ID: id}}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("empty folios should not collide: %v", err)
	}
}

func TestFolioUniquenessRuleIgnoresStoredDuplicates(t *testing.T) {
	backend := memory.NewStore()
	legacy := NewStore(backend, nil)
	seed(t, legacy, domain.KeyIncidents, domain.EntityIncident,
		Incident{Base: domain.Base{ID: "i1"}, Folio: "I-0001"},
		Incident{Base: domain.Base{ID: "i2"}, Folio: "I-0001"},
		Incident{Base: domain.Base{ID: "i3"}, Folio: "I-0002"},
	)
	s := NewStore(backend, NewDefaultRulesEngine())

	if _, err := s.RunInTransaction(context.Background(), func(tx *Transaction) error {
		_, err := updateEntity(tx, domain.KeyIncidents, domain.EntityIncident, "i2", func(in *Incident) error {
			in.Description = "corregido"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("editing a stored duplicate must commit: %v", err)
	}

	_, err := s.RunInTransaction(context.Background(), func(tx *Transaction) error {
		_, err := updateEntity(tx, domain.KeyIncidents, domain.EntityIncident, "i3", func(in *Incident) error {
			in.Folio = "I-0001"
			return nil
		})
		return err
	})
	expectBlocked(t, "folio_unique", err)

	_, err = s.RunInTransaction(context.Background(), func(tx *Transaction) error {
		_, err := insertEntity(tx, domain.KeyIncidents, domain.EntityIncident, Incident{Base: domain.Base{ID: "i4"}, Folio: "I-0002"})
		return err
	})
	expectBlocked(t, "folio_unique", err)
}

func TestDefaultEngineRuleOrder(t *testing.T) {
	got := newRuleStore().Engine().Rules()
	want := []string{"stock_non_negative", "lifecycle_transition", "folio_unique"}
	if len(got) != len(want) {
		t.Fatalf("expected rules %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected rules %v, got %v", want, got)
		}
	}
}

func TestEmptyEngineCommitsWithoutRules(t *testing.T) {
	s := NewStore(memory.NewStore(), nil)
	res, err := s.RunInTransaction(context.Background(), func(tx *Transaction) error {
		_, err := insertEntity(tx, domain.KeyPpeItems, domain.EntityPpeItem, PpeItem{Base: domain.Base{ID: "p1"}, Stock: decimal.NewFromInt(-3)})
		return err
	})
	if err != nil {
		t.Fatalf("expected commit without rules, got %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("expected no violations, got %+v", res.Violations)
	}
}
