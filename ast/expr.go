package ast

// Namespace tags which of the five identifier forms an Ident names
// (spec §4.1, §4.3): a bare function-parameter name, or one of the four
// prefixed forms (TR:, TRU:, FC:, GV:).
type Namespace int

const (
	Unprefixed Namespace = iota
	TrackerRef           // TR:name
	TrackerUpdateRef     // TRU:name (update target, effect context only)
	ForeignCallRef       // FC:name
	GlobalRef            // GV:NAME
)

func (n Namespace) String() string {
	switch n {
	case Unprefixed:
		return ""
	case TrackerRef:
		return "TR:"
	case TrackerUpdateRef:
		return "TRU:"
	case ForeignCallRef:
		return "FC:"
	case GlobalRef:
		return "GV:"
	default:
		return "?:"
	}
}

// Expr is the closed sum type of expression AST nodes (spec §4.4, §6
// grammar). Every concrete node implements exprNode as a marker; callers
// exhaustively type-switch over the six variants below.
type Expr interface {
	exprNode()
}

// Literal is an atom whose value is known at parse time: an integer,
// boolean, address, string, or raw-bytes constant (spec §4.2).
type Literal struct {
	Type PrimitiveType
	Raw  string // source text, e.g. "100", "true", "0xDEAD...", `"hello"`
}

func (*Literal) exprNode() {}

// Ident is a name reference in one of the five namespaces (spec §4.3).
// Name is the identifier text with any prefix already stripped.
type Ident struct {
	Namespace Namespace
	Name      string
}

func (*Ident) exprNode() {}

// MappedIndex is `name(key)` where name resolved to a mapped tracker
// (spec §4.4). Key is itself a fully general expression.
type MappedIndex struct {
	Tracker *Ident
	Key     Expr
}

func (*MappedIndex) exprNode() {}

// Unary is the prefix `NOT` operator (spec §4.4); it is the only unary
// operator in the grammar.
type Unary struct {
	Op string // "NOT"
	X  Expr
}

func (*Unary) exprNode() {}

// Binary is any of the arithmetic, comparison, or boolean infix operators
// (spec §4.4); all are left-associative.
type Binary struct {
	Op   string
	L, R Expr
}

func (*Binary) exprNode() {}

// TrackerUpdate is an effect-only assignment form: `TRU:name op= rhs` or
// `TRU:name(key) op= rhs` (spec §4.4, §4.6). Key is nil for the plain
// (non-mapped) tracker form.
type TrackerUpdate struct {
	Target *Ident
	Key    Expr // nil for plain tracker updates
	Op     string
	RHS    Expr
}

func (*TrackerUpdate) exprNode() {}
