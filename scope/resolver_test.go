package scope

import (
	"testing"

	"github.com/forte-labs/policy-compiler/ast"
	"github.com/forte-labs/policy-compiler/ir"
)

func testFn() ast.CallingFunction {
	return ast.CallingFunction{
		Name: "transfer",
		EncodedValues: []ast.EncodedParam{
			{Type: ast.ADDRESS, Name: "to"},
			{Type: ast.UINT256, Name: "value"},
		},
	}
}

func TestResolve_Parameter(t *testing.T) {
	tables := NewTables(nil, nil, nil)
	r := NewResolver(tables, testFn())

	idx, typ, err := r.Resolve(&ast.Ident{Namespace: ast.Unprefixed, Name: "value"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if idx != 0 || typ != ast.UINT256 {
		t.Errorf("got (%d, %s), want (0, UINT256)", idx, typ)
	}
}

func TestResolve_DedupBySameReference(t *testing.T) {
	tables := NewTables(nil, nil, nil)
	r := NewResolver(tables, testFn())

	idx1, _, err := r.Resolve(&ast.Ident{Namespace: ast.Unprefixed, Name: "value"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	idx2, _, err := r.Resolve(&ast.Ident{Namespace: ast.Unprefixed, Name: "value"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if idx1 != idx2 {
		t.Errorf("same identifier resolved to different indices: %d vs %d", idx1, idx2)
	}
	if len(r.Descriptors()) != 1 {
		t.Errorf("got %d descriptors, want 1 (deduped)", len(r.Descriptors()))
	}
}

// TR:x and TRU:x refer to the same tracker but live in different
// namespaces, so they must NOT collapse to one descriptor (spec §4.3).
func TestResolve_NamespacesDoNotCollapse(t *testing.T) {
	trackers := []ast.Tracker{{ID: 1, Name: "testOne", Type: ast.UINT256, InitialValue: "0"}}
	tables := NewTables(trackers, nil, nil)
	r := NewResolver(tables, testFn())

	idxRead, _, err := r.Resolve(&ast.Ident{Namespace: ast.TrackerRef, Name: "testOne"})
	if err != nil {
		t.Fatalf("Resolve TR: %v", err)
	}
	idxUpdate, _, err := r.Resolve(&ast.Ident{Namespace: ast.TrackerUpdateRef, Name: "testOne"})
	if err != nil {
		t.Fatalf("Resolve TRU: %v", err)
	}
	if idxRead == idxUpdate {
		t.Error("TR:testOne and TRU:testOne collapsed to the same placeholder descriptor")
	}
	if len(r.Descriptors()) != 2 {
		t.Errorf("got %d descriptors, want 2", len(r.Descriptors()))
	}
}

func TestResolve_FirstUseOrder(t *testing.T) {
	tables := NewTables(nil, nil, []ast.ForeignCall{
		{ID: 1, Name: "leaderboard", ReturnType: ast.UINT256},
	})
	r := NewResolver(tables, testFn())

	if _, _, err := r.Resolve(&ast.Ident{Namespace: ast.ForeignCallRef, Name: "leaderboard"}); err != nil {
		t.Fatalf("Resolve FC: %v", err)
	}
	if _, _, err := r.Resolve(&ast.Ident{Namespace: ast.Unprefixed, Name: "value"}); err != nil {
		t.Fatalf("Resolve value: %v", err)
	}

	descs := r.Descriptors()
	if len(descs) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(descs))
	}
	if descs[0].Flags != ir.FlagForeignCall {
		t.Errorf("descriptor[0].Flags = %v, want FlagForeignCall (FC:leaderboard used first)", descs[0].Flags)
	}
	if descs[1].Flags != ir.FlagPlainParameter {
		t.Errorf("descriptor[1].Flags = %v, want FlagPlainParameter (value used second)", descs[1].Flags)
	}
}

func TestResolve_Globals(t *testing.T) {
	tables := NewTables(nil, nil, nil)
	r := NewResolver(tables, testFn())

	cases := []struct {
		name string
		typ  ast.PrimitiveType
		flag ir.PlaceholderFlags
	}{
		{"BLOCK_NUMBER", ast.UINT256, ir.FlagBlockNumber},
		{"BLOCK_TIMESTAMP", ast.UINT256, ir.FlagBlockTimestamp},
		{"MSG_SENDER", ast.ADDRESS, ir.FlagMsgSender},
		{"MSG_DATA", ast.BYTES, ir.FlagMsgData},
		{"TX_ORIGIN", ast.ADDRESS, ir.FlagTxOrigin},
	}
	for _, c := range cases {
		idx, typ, err := r.Resolve(&ast.Ident{Namespace: ast.GlobalRef, Name: c.name})
		if err != nil {
			t.Fatalf("Resolve GV:%s: %v", c.name, err)
		}
		if typ != c.typ {
			t.Errorf("GV:%s type = %s, want %s", c.name, typ, c.typ)
		}
		if r.Descriptors()[idx].Flags != c.flag {
			t.Errorf("GV:%s flag = %v, want %v", c.name, r.Descriptors()[idx].Flags, c.flag)
		}
	}
}

func TestResolve_UndeclaredIdentifier(t *testing.T) {
	tables := NewTables(nil, nil, nil)
	r := NewResolver(tables, testFn())

	if _, _, err := r.Resolve(&ast.Ident{Namespace: ast.Unprefixed, Name: "nope"}); err == nil {
		t.Error("expected an error resolving an undeclared parameter, got nil")
	}
	if _, _, err := r.Resolve(&ast.Ident{Namespace: ast.TrackerRef, Name: "nope"}); err == nil {
		t.Error("expected an error resolving an undeclared tracker, got nil")
	}
	if _, _, err := r.Resolve(&ast.Ident{Namespace: ast.GlobalRef, Name: "NOPE"}); err == nil {
		t.Error("expected an error resolving an undeclared global, got nil")
	}
}

func TestTables_TrackerID_MappedFlag(t *testing.T) {
	tables := NewTables(
		[]ast.Tracker{{ID: 4, Name: "testOne", Type: ast.UINT256}},
		[]ast.MappedTracker{{ID: 1, Name: "trackerOne", KeyType: ast.ADDRESS, ValueType: ast.BOOL}},
		nil,
	)

	id, mapped, _, valType, ok := tables.TrackerID("testOne")
	if !ok || id != 4 || mapped || valType != ast.UINT256 {
		t.Errorf("TrackerID(testOne) = (%d, %v, _, %s, %v), want (4, false, UINT256, true)", id, mapped, valType, ok)
	}

	id, mapped, keyType, valType, ok := tables.TrackerID("trackerOne")
	if !ok || id != 1 || !mapped || keyType != ast.ADDRESS || valType != ast.BOOL {
		t.Errorf("TrackerID(trackerOne) = (%d, %v, %s, %s, %v), want (1, true, ADDRESS, BOOL, true)", id, mapped, keyType, valType, ok)
	}
}
