package reverse

import (
	"math/big"
	"testing"

	"github.com/forte-labs/policy-compiler/ast"
	"github.com/forte-labs/policy-compiler/ir"
)

func n(memo int, v int64) ir.Instruction {
	return ir.Instruction{Op: ir.OpN, Operands: []*big.Int{big.NewInt(v)}, Memo: memo}
}

func nBig(memo int, v string) ir.Instruction {
	val, _ := new(big.Int).SetString(v, 10)
	return ir.Instruction{Op: ir.OpN, Operands: []*big.Int{val}, Memo: memo}
}

func plh(memo, idx int) ir.Instruction {
	return ir.Instruction{Op: ir.OpPLH, Operands: []*big.Int{big.NewInt(int64(idx))}, Memo: memo}
}

func bin(op ir.Op, memo, l, r int) ir.Instruction {
	return ir.Instruction{Op: op, Operands: []*big.Int{big.NewInt(int64(l)), big.NewInt(int64(r))}, Memo: memo}
}

// Scenario 6 (spec §8): the fully worked reverse-parse example.
func TestReverse_Scenario6(t *testing.T) {
	stream := ir.Stream{
		plh(0, 0),
		n(1, 1),
		bin(ir.OpEq, 2, 0, 1),
		plh(3, 1),
		nBig(4, "16045690984833335000"),
		bin(ir.OpEq, 5, 3, 4),
		bin(ir.OpAnd, 6, 2, 5),
		plh(7, 2),
		plh(8, 3),
		n(9, 1),
		bin(ir.OpEq, 10, 8, 9),
		bin(ir.OpAnd, 11, 7, 10),
		plh(12, 4),
		n(13, 500),
		bin(ir.OpLt, 14, 12, 13),
		bin(ir.OpAnd, 15, 11, 14),
		bin(ir.OpOr, 16, 6, 15),
	}
	labels := []string{"FC:isAllowed", "to", "FC:isSuperCoolGuy", "FC:isRich", "FC:creditRisk"}

	got, err := Reverse(stream, Options{Labels: labels})
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}

	want := "( FC:isAllowed == 1 AND to == 16045690984833335000 ) OR ( ( FC:isSuperCoolGuy AND FC:isRich == 1 ) AND FC:creditRisk < 500 )"
	if got != want {
		t.Errorf("Reverse() =\n%s\nwant\n%s", got, want)
	}
}

// A literal used directly as an AND/OR operand renders as true/false;
// the same literal wrapped in a comparison renders as a plain decimal
// (spec §4.7, disambiguated against spec §8 scenario 6).
func TestReverse_BoolLiteralOnlyInDirectAndOrPosition(t *testing.T) {
	stream := ir.Stream{
		plh(0, 0),
		n(1, 1),
		bin(ir.OpAnd, 2, 0, 1),
	}
	got, err := Reverse(stream, Options{Labels: []string{"FC:flag"}})
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	want := "FC:flag AND true"
	if got != want {
		t.Errorf("Reverse() = %q, want %q", got, want)
	}
}

func TestReverse_ComparisonLiteralStaysDecimal(t *testing.T) {
	stream := ir.Stream{
		plh(0, 0),
		n(1, 1),
		bin(ir.OpEq, 2, 0, 1),
	}
	got, err := Reverse(stream, Options{Labels: []string{"FC:isRich"}})
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	want := "FC:isRich == 1"
	if got != want {
		t.Errorf("Reverse() = %q, want %q", got, want)
	}
}

func TestReverse_MappedTrackerIndex(t *testing.T) {
	stream := ir.Stream{
		plh(0, 0),
		{Op: ir.OpPLHM, Operands: []*big.Int{big.NewInt(1), big.NewInt(0)}, Memo: 1},
		n(2, 1),
		bin(ir.OpEq, 3, 1, 2),
	}
	got, err := Reverse(stream, Options{
		Labels:       []string{"to"},
		TrackerNames: map[int]string{1: "trackerOne"},
	})
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	want := "trackerOne(to) == 1"
	if got != want {
		t.Errorf("Reverse() = %q, want %q", got, want)
	}
}

func TestReverse_TrackerUpdate(t *testing.T) {
	stream := ir.Stream{
		plh(0, 0),
		n(1, 1),
		bin(ir.OpSub, 2, 0, 1),
		{Op: ir.OpTRU, Operands: []*big.Int{big.NewInt(4), big.NewInt(2), big.NewInt(1)}, Memo: -1},
	}
	got, err := Reverse(stream, Options{
		Labels:       []string{"TR:testOne"},
		TrackerNames: map[int]string{4: "testOne"},
	})
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	want := "TRU:testOne -= 1"
	if got != want {
		t.Errorf("Reverse() = %q, want %q", got, want)
	}
}

func TestReverse_AddressChecksumHint(t *testing.T) {
	addrVal, _ := new(big.Int).SetString("89205A3A3b2A69De6Dbf7f01ED13B2108B2c43e7", 16)
	stream := ir.Stream{
		nBig(0, addrVal.String()),
	}
	got, err := Reverse(stream, Options{
		LiteralTypes: map[int]ast.PrimitiveType{0: ast.ADDRESS},
	})
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if got == addrVal.String() {
		t.Error("address literal rendered as plain decimal even with a LiteralTypes hint supplied")
	}
}

func TestReverse_EmptyStream(t *testing.T) {
	if _, err := Reverse(ir.Stream{}, Options{}); err == nil {
		t.Error("expected an error reversing an empty instruction stream, got nil")
	}
}
