package parser

import (
	"testing"

	"github.com/forte-labs/policy-compiler/ast"
)

func TestParseCondition_OperatorPrecedence(t *testing.T) {
	expr, err := ParseCondition("3 == 3 AND (1 == 1 OR (2 == 2 AND 3 == 3))")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	top, ok := expr.(*ast.Binary)
	if !ok || top.Op != "AND" {
		t.Fatalf("top node = %#v, want AND binary", expr)
	}
	right, ok := top.R.(*ast.Binary)
	if !ok || right.Op != "OR" {
		t.Fatalf("right operand = %#v, want OR binary", top.R)
	}
}

// NOT wraps a whole cmp, not just an atom: `NOT a == b AND c` must parse
// as `(NOT (a == b)) AND c` (spec §6 grammar: not_expr := "NOT" not_expr | cmp).
func TestParseCondition_NotWrapsComparison(t *testing.T) {
	expr, err := ParseCondition("NOT value == 5 AND FC:ok")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	top, ok := expr.(*ast.Binary)
	if !ok || top.Op != "AND" {
		t.Fatalf("top node = %#v, want AND binary", expr)
	}
	not, ok := top.L.(*ast.Unary)
	if !ok || not.Op != "NOT" {
		t.Fatalf("left operand = %#v, want NOT unary", top.L)
	}
	if _, ok := not.X.(*ast.Binary); !ok {
		t.Fatalf("NOT operand = %#v, want a comparison binary", not.X)
	}
}

func TestParseCondition_ArithmeticPrecedence(t *testing.T) {
	expr, err := ParseCondition("value + sAND > 5")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	cmp, ok := expr.(*ast.Binary)
	if !ok || cmp.Op != ">" {
		t.Fatalf("top node = %#v, want > binary", expr)
	}
	add, ok := cmp.L.(*ast.Binary)
	if !ok || add.Op != "+" {
		t.Fatalf("comparison left = %#v, want + binary", cmp.L)
	}
}

func TestParseCondition_KeywordWordBoundary(t *testing.T) {
	expr, err := ParseCondition("sAND == 1 AND 2 == sAND")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	top, ok := expr.(*ast.Binary)
	if !ok || top.Op != "AND" {
		t.Fatalf("top node = %#v, want AND binary", expr)
	}
	left, ok := top.L.(*ast.Binary)
	if !ok {
		t.Fatalf("left operand = %#v, want binary", top.L)
	}
	ident, ok := left.L.(*ast.Ident)
	if !ok || ident.Name != "sAND" || ident.Namespace != ast.Unprefixed {
		t.Fatalf("left.L = %#v, want plain identifier sAND", left.L)
	}
}

func TestParseCondition_MappedTrackerIndex(t *testing.T) {
	expr, err := ParseCondition("TR:trackerOne(to) == true")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	eq, ok := expr.(*ast.Binary)
	if !ok || eq.Op != "==" {
		t.Fatalf("top node = %#v, want == binary", expr)
	}
	mi, ok := eq.L.(*ast.MappedIndex)
	if !ok {
		t.Fatalf("left operand = %#v, want MappedIndex", eq.L)
	}
	if mi.Tracker.Name != "trackerOne" || mi.Tracker.Namespace != ast.TrackerRef {
		t.Errorf("tracker = %#v, want TR:trackerOne", mi.Tracker)
	}
	key, ok := mi.Key.(*ast.Ident)
	if !ok || key.Name != "to" {
		t.Errorf("key = %#v, want identifier to", mi.Key)
	}
}

func TestParseCondition_ForeignCallAndParameterNamespaces(t *testing.T) {
	expr, err := ParseCondition("FC:leaderboard > 100 AND value == 100")
	if err != nil {
		t.Fatalf("ParseCondition: %v", err)
	}
	top, ok := expr.(*ast.Binary)
	if !ok || top.Op != "AND" {
		t.Fatalf("top node = %#v, want AND binary", expr)
	}
	gt, ok := top.L.(*ast.Binary)
	if !ok || gt.Op != ">" {
		t.Fatalf("left = %#v, want > binary", top.L)
	}
	fc, ok := gt.L.(*ast.Ident)
	if !ok || fc.Namespace != ast.ForeignCallRef || fc.Name != "leaderboard" {
		t.Errorf("gt.L = %#v, want FC:leaderboard", gt.L)
	}
}

func TestParseCondition_UnexpectedTrailingToken(t *testing.T) {
	if _, err := ParseCondition("1 == 1)"); err == nil {
		t.Error("expected an error for an unbalanced trailing paren, got nil")
	}
}

func TestParseCondition_MismatchedParens(t *testing.T) {
	if _, err := ParseCondition("(1 == 1"); err == nil {
		t.Error("expected an error for a missing closing paren, got nil")
	}
}

func TestParseEffectExpression_PlainTrackerUpdate(t *testing.T) {
	expr, err := ParseEffectExpression("TRU:testOne -= 1")
	if err != nil {
		t.Fatalf("ParseEffectExpression: %v", err)
	}
	tu, ok := expr.(*ast.TrackerUpdate)
	if !ok {
		t.Fatalf("got %#v, want *ast.TrackerUpdate", expr)
	}
	if tu.Target.Name != "testOne" || tu.Target.Namespace != ast.TrackerUpdateRef {
		t.Errorf("target = %#v, want TRU:testOne", tu.Target)
	}
	if tu.Op != "-=" {
		t.Errorf("op = %q, want -=", tu.Op)
	}
	if tu.Key != nil {
		t.Errorf("key = %#v, want nil for a plain tracker update", tu.Key)
	}
}

func TestParseEffectExpression_MappedTrackerUpdate(t *testing.T) {
	expr, err := ParseEffectExpression("TRU:trackerOne(to) = 5")
	if err != nil {
		t.Fatalf("ParseEffectExpression: %v", err)
	}
	tu, ok := expr.(*ast.TrackerUpdate)
	if !ok {
		t.Fatalf("got %#v, want *ast.TrackerUpdate", expr)
	}
	if tu.Key == nil {
		t.Fatal("key = nil, want the mapped-tracker key expression")
	}
	if tu.Op != "=" {
		t.Errorf("op = %q, want =", tu.Op)
	}
}

// An effect that does not start with TRU: falls through to the plain
// condition grammar, so a bare boolean expression is accepted.
func TestParseEffectExpression_BareBooleanEffect(t *testing.T) {
	expr, err := ParseEffectExpression("FC:isAllowed AND value > 0")
	if err != nil {
		t.Fatalf("ParseEffectExpression: %v", err)
	}
	if _, ok := expr.(*ast.Binary); !ok {
		t.Fatalf("got %#v, want a plain boolean expression", expr)
	}
}

func TestParseEffectExpression_TRUNotEligibleAsOperand(t *testing.T) {
	if _, err := ParseEffectExpression("TRU:x = 1 AND TRU:y = 2"); err == nil {
		t.Error("expected an error: TRU: is not a valid AND operand, got nil")
	}
}
