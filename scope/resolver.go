// Package scope resolves identifiers into one of the four namespaces
// spec §4.3 defines — function parameter, tracker, foreign call, global
// variable — and allocates the placeholder descriptors the emitter later
// addresses by index. It plays the role the teacher's parser.SymbolTable
// plays for ARM labels, generalized from one flat label namespace to the
// policy compiler's four disjoint ones.
package scope

import (
	"fmt"

	"github.com/forte-labs/policy-compiler/ast"
	"github.com/forte-labs/policy-compiler/ir"
)

// trackerEntry describes one declared tracker or mapped tracker.
type trackerEntry struct {
	id      int
	typ     ast.PrimitiveType // value type (for mapped trackers, the value type)
	keyType ast.PrimitiveType // only meaningful when mapped
	mapped  bool
}

// globalEntry describes one of the five well-known environment values.
type globalEntry struct {
	typ  ast.PrimitiveType
	flag ir.PlaceholderFlags
}

var globals = map[string]globalEntry{
	"BLOCK_NUMBER":    {typ: ast.UINT256, flag: ir.FlagBlockNumber},
	"BLOCK_TIMESTAMP": {typ: ast.UINT256, flag: ir.FlagBlockTimestamp},
	"MSG_SENDER":      {typ: ast.ADDRESS, flag: ir.FlagMsgSender},
	"MSG_DATA":        {typ: ast.BYTES, flag: ir.FlagMsgData},
	"TX_ORIGIN":       {typ: ast.ADDRESS, flag: ir.FlagTxOrigin},
}

// Tables holds the policy-wide namespaces (trackers, mapped trackers,
// foreign calls) that every rule's resolver is seeded with; the fixed
// global set lives in the package-level globals table. Parameters are per-rule and supplied separately via
// NewResolver, since each rule has its own CallingFunction.
type Tables struct {
	trackers     map[string]trackerEntry
	foreignCalls map[string]ast.ForeignCall
}

// NewTables builds the shared namespace tables from a policy's declared
// trackers, mapped trackers, and foreign calls (spec §4.8 step 1 — ids
// are assumed already assigned by the caller).
func NewTables(trackers []ast.Tracker, mapped []ast.MappedTracker, foreignCalls []ast.ForeignCall) *Tables {
	t := &Tables{
		trackers:     make(map[string]trackerEntry, len(trackers)+len(mapped)),
		foreignCalls: make(map[string]ast.ForeignCall, len(foreignCalls)),
	}
	for _, tr := range trackers {
		t.trackers[tr.Name] = trackerEntry{id: tr.ID, typ: tr.Type}
	}
	for _, mt := range mapped {
		t.trackers[mt.Name] = trackerEntry{id: mt.ID, typ: mt.ValueType, keyType: mt.KeyType, mapped: true}
	}
	for _, fc := range foreignCalls {
		t.foreignCalls[fc.Name] = fc
	}
	return t
}

// Resolver resolves identifiers for a single compilation unit (one
// condition, or the shared effect list of one rule) and accumulates that
// unit's placeholder descriptor array in first-use order (spec §4.3,
// §4.5 "Placeholder descriptors are numbered in first-use order").
type Resolver struct {
	tables     *Tables
	params     []ast.EncodedParam
	paramIndex map[string]int

	descriptors []ir.PlaceholderDescriptor
	index       map[dedupKey]int
}

// dedupKey distinguishes namespaces so that, per spec §4.3, "distinct
// prefixed and unprefixed names referring semantically to the same slot
// allocate distinct descriptors."
type dedupKey struct {
	ns   ast.Namespace
	name string
}

// NewResolver creates a Resolver for one rule's calling function,
// backed by the policy-wide Tables.
func NewResolver(tables *Tables, fn ast.CallingFunction) *Resolver {
	paramIndex := make(map[string]int, len(fn.EncodedValues))
	for i, p := range fn.EncodedValues {
		paramIndex[p.Name] = i
	}
	return &Resolver{
		tables:     tables,
		params:     fn.EncodedValues,
		paramIndex: paramIndex,
		index:      make(map[dedupKey]int),
	}
}

// Descriptors returns the placeholder descriptor array accumulated so far,
// in first-use order.
func (r *Resolver) Descriptors() []ir.PlaceholderDescriptor {
	return r.descriptors
}

// Resolve maps one Ident to a placeholder index (for PLH/PLHM operands)
// and its declared type, allocating a new descriptor on first use and
// reusing the existing one on subsequent references (spec §4.3, §4.5).
func (r *Resolver) Resolve(id *ast.Ident) (placeholderIndex int, typ ast.PrimitiveType, err error) {
	key := dedupKey{ns: id.Namespace, name: id.Name}
	if idx, ok := r.index[key]; ok {
		return idx, ast.PrimitiveType(r.descriptors[idx].PType), nil
	}

	var desc ir.PlaceholderDescriptor
	switch id.Namespace {
	case ast.TrackerRef, ast.TrackerUpdateRef:
		entry, ok := r.tables.trackers[id.Name]
		if !ok {
			return 0, 0, fmt.Errorf("undeclared tracker: %s%s", id.Namespace, id.Name)
		}
		typ = entry.typ
		desc = ir.PlaceholderDescriptor{PType: int(entry.typ), TypeSpecificIndex: entry.id, Flags: ir.FlagTracker}

	case ast.ForeignCallRef:
		entry, ok := r.tables.foreignCalls[id.Name]
		if !ok {
			return 0, 0, fmt.Errorf("undeclared foreign call: FC:%s", id.Name)
		}
		typ = entry.ReturnType
		desc = ir.PlaceholderDescriptor{PType: int(entry.ReturnType), TypeSpecificIndex: entry.ID, Flags: ir.FlagForeignCall}

	case ast.GlobalRef:
		g, ok := globals[id.Name]
		if !ok {
			return 0, 0, fmt.Errorf("undeclared global variable: GV:%s", id.Name)
		}
		typ = g.typ
		desc = ir.PlaceholderDescriptor{PType: int(g.typ), TypeSpecificIndex: 0, Flags: g.flag}

	case ast.Unprefixed:
		slot, ok := r.paramIndex[id.Name]
		if !ok {
			return 0, 0, fmt.Errorf("undeclared identifier: %s", id.Name)
		}
		typ = r.params[slot].Type
		desc = ir.PlaceholderDescriptor{PType: int(typ), TypeSpecificIndex: slot, Flags: ir.FlagPlainParameter}

	default:
		return 0, 0, fmt.Errorf("unknown namespace for identifier %q", id.Name)
	}

	idx := len(r.descriptors)
	r.descriptors = append(r.descriptors, desc)
	r.index[key] = idx
	return idx, typ, nil
}

// TrackerID returns the engine-assigned id for a tracker name, used by
// the effect compiler to fill the TRU/TRUM tracker-id operand directly
// (spec §4.6 — that operand is the tracker id, not a placeholder index).
func (t *Tables) TrackerID(name string) (id int, mapped bool, keyType, valType ast.PrimitiveType, ok bool) {
	entry, found := t.trackers[name]
	if !found {
		return 0, false, 0, 0, false
	}
	return entry.id, entry.mapped, entry.keyType, entry.typ, true
}

// MappedTrackerKeyType returns the declared key type for a mapped
// tracker. The emitter does not consult it: a `name(key)` key literal is
// encoded by its own literal type.
func (t *Tables) MappedTrackerKeyType(name string) (ast.PrimitiveType, bool) {
	entry, ok := t.trackers[name]
	if !ok || !entry.mapped {
		return 0, false
	}
	return entry.keyType, true
}

// ForeignCallReturnType returns a foreign call's declared return type.
func (t *Tables) ForeignCallReturnType(name string) (ast.PrimitiveType, bool) {
	fc, ok := t.foreignCalls[name]
	if !ok {
		return 0, false
	}
	return fc.ReturnType, true
}

// ForeignCallID returns a foreign call's engine-assigned id.
func (t *Tables) ForeignCallID(name string) (int, bool) {
	fc, ok := t.foreignCalls[name]
	if !ok {
		return 0, false
	}
	return fc.ID, true
}
