package emitter

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/forte-labs/policy-compiler/ast"
	"github.com/forte-labs/policy-compiler/ir"
	"github.com/forte-labs/policy-compiler/parser"
	"github.com/forte-labs/policy-compiler/scope"
)

// trackerUpdateOps maps a tracker-update assignment operator to the
// binary opcode that combines the tracker's current value with the rhs,
// and to the op-flag TRU/TRUM carry as their final operand (spec §4.6).
var trackerUpdateOps = map[string]struct {
	binOp ir.Op
	flag  int64
}{
	"=":  {ir.OpAssign, 0},
	"-=": {ir.OpSub, 1},
	"+=": {ir.OpAdd, 2},
	"*=": {ir.OpMul, 3},
	"/=": {ir.OpDiv, 4},
}

// CompileEffect classifies one effect string as REVERT, EVENT, or
// EXPRESSION and compiles it accordingly (spec §4.6).
func CompileEffect(text string, resolver *scope.Resolver, tables *scope.Tables) (ir.Effect, error) {
	trimmed := strings.TrimSpace(text)

	switch {
	case trimmed == "revert":
		return ir.Effect{Type: ir.EffectRevert}, nil

	case strings.HasPrefix(trimmed, "revert("):
		inner := strings.TrimSuffix(strings.TrimPrefix(trimmed, "revert("), ")")
		inner = strings.Trim(strings.TrimSpace(inner), `"`)
		return ir.Effect{Type: ir.EffectRevert, Text: inner}, nil

	case strings.HasPrefix(trimmed, "emit "):
		words := strings.TrimSpace(strings.TrimPrefix(trimmed, "emit "))
		return ir.Effect{Type: ir.EffectEvent, Text: words}, nil

	default:
		expr, err := parser.ParseEffectExpression(trimmed)
		if err != nil {
			return ir.Effect{}, err
		}
		stream, err := compileEffectExpr(expr, resolver, tables)
		if err != nil {
			return ir.Effect{}, err
		}
		return ir.Effect{Type: ir.EffectExpression, InstructionSet: stream}, nil
	}
}

func compileEffectExpr(expr ast.Expr, resolver *scope.Resolver, tables *scope.Tables) (ir.Stream, error) {
	em := New(resolver, tables)
	if tu, ok := expr.(*ast.TrackerUpdate); ok {
		if err := lowerTrackerUpdate(em, tu, tables); err != nil {
			return nil, err
		}
		return em.Stream(), nil
	}
	stream, typ, err := em.Emit(expr)
	if err != nil {
		return nil, err
	}
	if typ != ast.BOOL {
		return nil, fmt.Errorf("effect expression must be boolean, got %s", typ)
	}
	return stream, nil
}

// lowerTrackerUpdate implements spec §4.6's lowering: the instructions for
// the tracker's current value, then for rhs, then the combining binary
// op, then a terminal TRU/TRUM carrying the tracker id, result memo,
// (key memo, for the mapped form), and op-flag.
func lowerTrackerUpdate(em *Emitter, tu *ast.TrackerUpdate, tables *scope.Tables) error {
	ops, ok := trackerUpdateOps[tu.Op]
	if !ok {
		return fmt.Errorf("unsupported tracker-update operator %q", tu.Op)
	}

	id, mapped, _, valType, ok := tables.TrackerID(tu.Target.Name)
	if !ok {
		return fmt.Errorf("undeclared tracker: TRU:%s", tu.Target.Name)
	}

	if tu.Key == nil {
		if mapped {
			return fmt.Errorf("tracker %q is mapped, update requires a key: TRU:%s(key)", tu.Target.Name, tu.Target.Name)
		}
		curMemo, _, err := em.EmitExpr(tu.Target)
		if err != nil {
			return err
		}
		rhsMemo, rhsType, err := em.EmitExpr(tu.RHS)
		if err != nil {
			return err
		}
		if rhsType != valType {
			return fmt.Errorf("tracker %q is of type %s, cannot assign %s", tu.Target.Name, valType, rhsType)
		}
		resultMemo := em.push(ops.binOp, memoOperand(curMemo), memoOperand(rhsMemo))
		em.pushTerminal(ir.OpTRU, big.NewInt(int64(id)), memoOperand(resultMemo), big.NewInt(ops.flag))
		return nil
	}

	if !mapped {
		return fmt.Errorf("tracker %q is not mapped, cannot use TRU:%s(key)", tu.Target.Name, tu.Target.Name)
	}
	keyMemo, _, err := em.EmitExpr(tu.Key)
	if err != nil {
		return err
	}
	curMemo := em.push(ir.OpPLHM, big.NewInt(int64(id)), memoOperand(keyMemo))
	rhsMemo, rhsType, err := em.EmitExpr(tu.RHS)
	if err != nil {
		return err
	}
	if rhsType != valType {
		return fmt.Errorf("mapped tracker %q is of type %s, cannot assign %s", tu.Target.Name, valType, rhsType)
	}
	resultMemo := em.push(ops.binOp, memoOperand(curMemo), memoOperand(rhsMemo))
	em.pushTerminal(ir.OpTRUM, big.NewInt(int64(id)), memoOperand(resultMemo), memoOperand(keyMemo), big.NewInt(ops.flag))
	return nil
}
