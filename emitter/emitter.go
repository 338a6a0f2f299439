// Package emitter lowers a parsed expression tree into the flat,
// memo-referencing instruction stream spec §4.5 defines — the compiler
// backend step. It mirrors the teacher's encoder package in spirit (a
// mnemonic-dispatch translation from a structured in-memory form to a
// flat instruction representation) generalized from ARM mnemonics to
// this grammar's postfix opcode set.
package emitter

import (
	"fmt"
	"math/big"

	"github.com/forte-labs/policy-compiler/ast"
	"github.com/forte-labs/policy-compiler/encoding"
	"github.com/forte-labs/policy-compiler/ir"
	"github.com/forte-labs/policy-compiler/scope"
)

// Emitter lowers one expression tree to one instruction stream. A fresh
// Emitter is used per condition and per effect; a rule's condition has
// its own scope.Resolver and all of its effects share a second one, so
// placeholder indices stay correctly scoped (spec
// §4.5 "the condition's descriptor array is disjoint from the effects'
// effectPlaceHolders array").
type Emitter struct {
	resolver *scope.Resolver
	tables   *scope.Tables
	stream   ir.Stream
	memo     int
}

// New creates an Emitter backed by a rule-scoped Resolver and the
// policy-wide Tables.
func New(resolver *scope.Resolver, tables *scope.Tables) *Emitter {
	return &Emitter{resolver: resolver, tables: tables}
}

// Emit lowers expr to its instruction stream and returns it along with the
// expression's result type.
func (e *Emitter) Emit(expr ast.Expr) (ir.Stream, ast.PrimitiveType, error) {
	_, typ, err := e.emitExpr(expr)
	if err != nil {
		return nil, 0, err
	}
	return e.stream, typ, nil
}

// Stream returns the instructions emitted so far, for callers (the effect
// compiler) that drive pushes directly rather than through Emit.
func (e *Emitter) Stream() ir.Stream {
	return e.stream
}

// EmitExpr is the exported form of emitExpr, for callers that need to
// lower a sub-expression (e.g. a tracker-update's current value or rhs)
// and keep composing afterward.
func (e *Emitter) EmitExpr(expr ast.Expr) (memo int, typ ast.PrimitiveType, err error) {
	return e.emitExpr(expr)
}

// push appends a producer instruction and returns its memo index (spec
// §4.5: "memo indices are assigned sequentially beginning at 0; every
// producer increments the counter by exactly one").
func (e *Emitter) push(op ir.Op, operands ...*big.Int) int {
	memo := e.memo
	e.stream = append(e.stream, ir.Instruction{Op: op, Operands: operands, Memo: memo})
	e.memo++
	return memo
}

func memoOperand(m int) *big.Int {
	return big.NewInt(int64(m))
}

// pushTerminal appends a non-producing instruction (TRU/TRUM — spec §3
// "memo index... counting only producers"): it occupies no memo slot and
// cannot be referenced as an operand by anything that follows.
func (e *Emitter) pushTerminal(op ir.Op, operands ...*big.Int) {
	e.stream = append(e.stream, ir.Instruction{Op: op, Operands: operands, Memo: -1})
}

func (e *Emitter) emitExpr(expr ast.Expr) (memo int, typ ast.PrimitiveType, err error) {
	switch n := expr.(type) {
	case *ast.Literal:
		return e.emitLiteral(n)
	case *ast.Ident:
		return e.emitIdent(n)
	case *ast.MappedIndex:
		return e.emitMappedIndex(n)
	case *ast.Unary:
		return e.emitUnary(n)
	case *ast.Binary:
		return e.emitBinary(n)
	default:
		return 0, 0, fmt.Errorf("emitter: unhandled expression node %T", expr)
	}
}

func (e *Emitter) emitLiteral(n *ast.Literal) (int, ast.PrimitiveType, error) {
	val, err := encoding.Encode(n.Raw, n.Type)
	if err != nil {
		return 0, 0, err
	}
	return e.push(ir.OpN, val), n.Type, nil
}

func (e *Emitter) emitIdent(n *ast.Ident) (int, ast.PrimitiveType, error) {
	idx, typ, err := e.resolver.Resolve(n)
	if err != nil {
		return 0, 0, err
	}
	return e.push(ir.OpPLH, memoOperand(idx)), typ, nil
}

// emitMappedIndex lowers `name(key)` to `PLHM <tracker-id> <key-memo>`.
// Unlike a plain TR: reference, the mapped form addresses the tracker
// directly by its declared id rather than through a placeholder
// descriptor (spec §3 scenario 5).
func (e *Emitter) emitMappedIndex(n *ast.MappedIndex) (int, ast.PrimitiveType, error) {
	keyMemo, _, err := e.emitExpr(n.Key)
	if err != nil {
		return 0, 0, err
	}
	id, mapped, _, valType, ok := e.tables.TrackerID(n.Tracker.Name)
	if !ok {
		return 0, 0, fmt.Errorf("undeclared tracker: TR:%s", n.Tracker.Name)
	}
	if !mapped {
		return 0, 0, fmt.Errorf("tracker %q is not a mapped tracker, cannot be indexed", n.Tracker.Name)
	}
	return e.push(ir.OpPLHM, big.NewInt(int64(id)), memoOperand(keyMemo)), valType, nil
}

func (e *Emitter) emitUnary(n *ast.Unary) (int, ast.PrimitiveType, error) {
	if n.Op != "NOT" {
		return 0, 0, fmt.Errorf("unsupported unary operator %q", n.Op)
	}
	xMemo, xType, err := e.emitExpr(n.X)
	if err != nil {
		return 0, 0, err
	}
	if xType != ast.BOOL {
		return 0, 0, fmt.Errorf("NOT applied to non-boolean operand of type %s", xType)
	}
	return e.push(ir.OpNot, memoOperand(xMemo)), ast.BOOL, nil
}

func (e *Emitter) emitBinary(n *ast.Binary) (int, ast.PrimitiveType, error) {
	lMemo, lType, err := e.emitExpr(n.L)
	if err != nil {
		return 0, 0, err
	}
	rMemo, rType, err := e.emitExpr(n.R)
	if err != nil {
		return 0, 0, err
	}
	op, ok := ir.BinaryOp(n.Op)
	if !ok {
		return 0, 0, fmt.Errorf("unsupported binary operator %q", n.Op)
	}

	var resultType ast.PrimitiveType
	switch op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv:
		if lType != ast.UINT256 || rType != ast.UINT256 {
			return 0, 0, fmt.Errorf("operator %q requires uint256 operands, got %s and %s", n.Op, lType, rType)
		}
		resultType = ast.UINT256
	case ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte:
		if lType != ast.UINT256 || rType != ast.UINT256 {
			return 0, 0, fmt.Errorf("operator %q requires uint256 operands, got %s and %s", n.Op, lType, rType)
		}
		resultType = ast.BOOL
	case ir.OpEq, ir.OpNeq:
		if lType != rType {
			return 0, 0, fmt.Errorf("operator %q requires matching operand types, got %s and %s", n.Op, lType, rType)
		}
		resultType = ast.BOOL
	case ir.OpAnd, ir.OpOr:
		if lType != ast.BOOL || rType != ast.BOOL {
			return 0, 0, fmt.Errorf("operator %q requires boolean operands, got %s and %s", n.Op, lType, rType)
		}
		resultType = ast.BOOL
	default:
		return 0, 0, fmt.Errorf("unsupported binary operator %q", n.Op)
	}

	return e.push(op, memoOperand(lMemo), memoOperand(rMemo)), resultType, nil
}
