package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
		contains string
	}{
		{ValidationError{Entity: EntityPpeItem, Field: "name", Message: "is required"}, ErrValidation, "ppe_item.name: is required"},
		{ValidationError{Entity: EntityAudit, Message: "bad"}, ErrValidation, "audit: bad"},
		{InsufficientStockError{PpeID: "p1", Available: decimal.NewFromInt(2), Requested: decimal.NewFromInt(5)}, ErrInsufficientStock, "has 2 in stock, 5 requested"},
		{IllegalTransitionError{Entity: EntityWorkPermit, ID: "w1", From: "Cerrado", Action: "approve", Reason: "closed"}, ErrIllegalTransition, `in state "Cerrado": closed`},
		{DeleteGuardViolation{Entity: EntityWaste, ID: "w1", ReferencedBy: EntityWasteLog, ReferenceID: "l1"}, ErrDeleteGuard, "still referenced by"},
		{DeleteGuardViolation{Entity: EntityUser, ID: "u1", Message: "cannot delete yourself"}, ErrDeleteGuard, "cannot delete yourself"},
		{NotFoundError{Entity: EntityEmployee, ID: "e9"}, ErrNotFound, "e9 not found"},
		{PersistenceError{Key: KeyUsers, Op: "save", Err: ErrVersionConflict}, ErrPersistence, "save users: version conflict"},
		{AuthorizationError{UserID: "u1", Permission: PermManagePpe, Action: "receive stock"}, ErrForbidden, "lacks permission manage_ppe"},
		{AuthorizationError{UserID: "u1", Level: LevelOperator, Action: "approve"}, ErrForbidden, "with level"},
		{AuthorizationError{UserID: "ghost", Action: "act"}, ErrForbidden, `user "ghost" may not act`},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("op: %w", tc.err)
		if !errors.Is(wrapped, tc.sentinel) {
			t.Fatalf("%T should match %v", tc.err, tc.sentinel)
		}
		if !strings.Contains(tc.err.Error(), tc.contains) {
			t.Fatalf("%T message %q lacks %q", tc.err, tc.err.Error(), tc.contains)
		}
	}
}

func TestPersistenceErrorUnwrapsConflict(t *testing.T) {
	err := fmt.Errorf("persist transaction: %w", PersistenceError{Op: "save", Err: ErrVersionConflict})
	if !errors.Is(err, ErrVersionConflict) || !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected both persistence and conflict to match: %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("unexpected match")
	}
}

func TestRuleViolationErrorMessage(t *testing.T) {
	err := RuleViolationError{Result: Result{Violations: []Violation{
		{Rule: "w", Severity: SeverityWarn, Message: "soft"},
		{Rule: "b", Severity: SeverityBlock, Message: "stock below zero"},
	}}}
	if err.Error() != "transaction blocked by rules: stock below zero" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if (RuleViolationError{}).Error() != "transaction blocked by rules" {
		t.Fatalf("unexpected empty message")
	}
}
