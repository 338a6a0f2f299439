// Package reverse reconstructs surface syntax from a compiled instruction
// stream (spec §4.7) — the inverse of lexer+parser+emitter at the
// structural level. It mirrors the teacher's vm.SymbolResolver, which
// turns raw register/address values back into readable operand text for
// disassembly; here the "disassembly" target is the policy surface
// grammar instead of ARM mnemonics.
package reverse

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/forte-labs/policy-compiler/ast"
	"github.com/forte-labs/policy-compiler/ir"
)

// Override restores a pre-encoded string/bytes literal at a given
// instruction-stream position, since the 256-bit digest pushed by the
// emitter cannot be inverted (spec §4.7).
type Override struct {
	InstructionIndex int
	OriginalData     string
}

// Options carries the auxiliary tables the reverse parser needs beyond
// the bare instruction stream: placeholder labels (indexed by
// placeholder index, e.g. "TR:balance", "FC:isAllowed", parameter
// names), tracker names (indexed by tracker id, for PLHM/TRU/TRUM which
// address trackers directly), string/bytes literal overrides, and an
// optional literal-type hint used only to print address literals in
// checksum form (spec §4.7); the instruction stream alone carries no
// type tags for its N operands; omit LiteralTypes when unavailable.
type Options struct {
	Labels       []string
	TrackerNames map[int]string
	Overrides    []Override
	LiteralTypes map[int]ast.PrimitiveType // instruction-stream index -> type, ADDRESS entries only need be present
}

// Reverse reconstructs a single parenthesized surface-syntax string from
// a compiled instruction stream (spec §4.7).
func Reverse(stream ir.Stream, opts Options) (string, error) {
	ovr := make(map[int]string, len(opts.Overrides))
	for _, o := range opts.Overrides {
		ovr[o.InstructionIndex] = o.OriginalData
	}

	r := &reverser{
		stream:       stream,
		labels:       opts.Labels,
		trackerNames: opts.TrackerNames,
		overrides:    ovr,
		literalTypes: opts.LiteralTypes,
		frag:         make(map[int]string),
		isLiteral:    make(map[int]bool),
		litVal:       make(map[int]*big.Int),
		producerAt:   make(map[int]ir.Instruction),
	}
	return r.run()
}

type reverser struct {
	stream       ir.Stream
	labels       []string
	trackerNames map[int]string
	overrides    map[int]string
	literalTypes map[int]ast.PrimitiveType

	frag       map[int]string // producer memo -> rendered fragment
	isLiteral  map[int]bool   // producer memo -> true if it was an N instruction
	litVal     map[int]*big.Int
	producerAt map[int]ir.Instruction // producer memo -> its instruction

	trackerStmt string
	sawTracker  bool
}

func (r *reverser) run() (string, error) {
	var lastMemo = -1

	for idx, instr := range r.stream {
		switch instr.Op {
		case ir.OpN:
			val := instr.Operands[0]
			text := val.String()
			if t, ok := r.literalTypes[idx]; ok && t == ast.ADDRESS {
				text = common.BigToAddress(val).Hex()
			}
			if s, ok := r.overrides[idx]; ok {
				text = s
			}
			r.frag[instr.Memo] = text
			r.isLiteral[instr.Memo] = true
			r.litVal[instr.Memo] = val
			r.producerAt[instr.Memo] = instr
			lastMemo = instr.Memo

		case ir.OpPLH:
			phIdx := int(instr.Operands[0].Int64())
			if phIdx < 0 || phIdx >= len(r.labels) {
				return "", fmt.Errorf("reverse: placeholder index %d out of range", phIdx)
			}
			r.frag[instr.Memo] = r.labels[phIdx]
			r.producerAt[instr.Memo] = instr
			lastMemo = instr.Memo

		case ir.OpPLHM:
			trackerID := int(instr.Operands[0].Int64())
			keyMemo := int(instr.Operands[1].Int64())
			name, ok := r.trackerNames[trackerID]
			if !ok {
				return "", fmt.Errorf("reverse: unknown tracker id %d", trackerID)
			}
			r.frag[instr.Memo] = fmt.Sprintf("%s(%s)", name, r.frag[keyMemo])
			r.producerAt[instr.Memo] = instr
			lastMemo = instr.Memo

		case ir.OpNot:
			xMemo := int(instr.Operands[0].Int64())
			r.frag[instr.Memo] = fmt.Sprintf("NOT %s", r.renderOperand(xMemo, true))
			r.producerAt[instr.Memo] = instr
			lastMemo = instr.Memo

		case ir.OpAnd, ir.OpOr:
			lMemo := int(instr.Operands[0].Int64())
			rMemo := int(instr.Operands[1].Int64())
			l := r.renderOperand(lMemo, true)
			rr := r.renderOperand(rMemo, true)
			r.frag[instr.Memo] = fmt.Sprintf("( %s %s %s )", l, opSymbol(instr.Op), rr)
			r.producerAt[instr.Memo] = instr
			lastMemo = instr.Memo

		case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv,
			ir.OpEq, ir.OpNeq, ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte, ir.OpAssign:
			lMemo := int(instr.Operands[0].Int64())
			rMemo := int(instr.Operands[1].Int64())
			l := r.renderOperand(lMemo, false)
			rr := r.renderOperand(rMemo, false)
			r.frag[instr.Memo] = fmt.Sprintf("%s %s %s", l, opSymbol(instr.Op), rr)
			r.producerAt[instr.Memo] = instr
			lastMemo = instr.Memo

		case ir.OpTRU:
			stmt, err := r.reconstructTRU(instr)
			if err != nil {
				return "", err
			}
			r.trackerStmt, r.sawTracker = stmt, true

		case ir.OpTRUM:
			stmt, err := r.reconstructTRUM(instr)
			if err != nil {
				return "", err
			}
			r.trackerStmt, r.sawTracker = stmt, true

		default:
			return "", fmt.Errorf("reverse: unsupported opcode %s", instr.Op)
		}
	}

	if r.sawTracker {
		return r.trackerStmt, nil
	}
	if lastMemo < 0 {
		return "", fmt.Errorf("reverse: empty instruction stream")
	}
	return stripOutermostParens(r.frag[lastMemo]), nil
}

// renderOperand returns a producer memo's rendered fragment. When
// boolContext is true and the memo was a bare N literal (not wrapped in
// a comparison), it renders as true/false instead of a bare digit, since
// a literal consumed directly by AND/OR/NOT must be boolean (spec §4.7
// "bool literals as their memo-context operand's type dictates").
func (r *reverser) renderOperand(memo int, boolContext bool) string {
	if boolContext && r.isLiteral[memo] {
		if r.litVal[memo].Sign() != 0 {
			return "true"
		}
		return "false"
	}
	return r.frag[memo]
}

// reconstructTRU inverts the TRU lowering from spec §4.6: the current
// value (implicit in the tracker name) is discarded and only the
// original rhs operand of the combining binary op is kept.
func (r *reverser) reconstructTRU(instr ir.Instruction) (string, error) {
	trackerID := int(instr.Operands[0].Int64())
	resultMemo := int(instr.Operands[1].Int64())
	flag := instr.Operands[2].Int64()

	name, ok := r.trackerNames[trackerID]
	if !ok {
		return "", fmt.Errorf("reverse: unknown tracker id %d", trackerID)
	}
	opText, err := flagToOp(flag)
	if err != nil {
		return "", err
	}
	combining, ok := r.producerAt[resultMemo]
	if !ok || len(combining.Operands) < 2 {
		return "", fmt.Errorf("reverse: malformed TRU result memo %d", resultMemo)
	}
	rhsMemo := int(combining.Operands[1].Int64())
	return fmt.Sprintf("TRU:%s %s %s", name, opText, r.renderOperand(rhsMemo, false)), nil
}

// reconstructTRUM is the mapped-tracker analogue of reconstructTRU.
func (r *reverser) reconstructTRUM(instr ir.Instruction) (string, error) {
	trackerID := int(instr.Operands[0].Int64())
	resultMemo := int(instr.Operands[1].Int64())
	keyMemo := int(instr.Operands[2].Int64())
	flag := instr.Operands[3].Int64()

	name, ok := r.trackerNames[trackerID]
	if !ok {
		return "", fmt.Errorf("reverse: unknown tracker id %d", trackerID)
	}
	opText, err := flagToOp(flag)
	if err != nil {
		return "", err
	}
	combining, ok := r.producerAt[resultMemo]
	if !ok || len(combining.Operands) < 2 {
		return "", fmt.Errorf("reverse: malformed TRUM result memo %d", resultMemo)
	}
	rhsMemo := int(combining.Operands[1].Int64())
	return fmt.Sprintf("TRU:%s(%s) %s %s", name, r.frag[keyMemo], opText, r.renderOperand(rhsMemo, false)), nil
}

func flagToOp(flag int64) (string, error) {
	switch flag {
	case 0:
		return "=", nil
	case 1:
		return "-=", nil
	case 2:
		return "+=", nil
	case 3:
		return "*=", nil
	case 4:
		return "/=", nil
	default:
		return "", fmt.Errorf("reverse: unknown tracker-update op-flag %d", flag)
	}
}

func opSymbol(op ir.Op) string {
	return op.String()
}

// stripOutermostParens removes exactly one redundant enclosing paren
// pair if the whole string is wrapped in one (spec §4.7 "a final pass
// removes the outermost pair if the whole expression is wrapped").
func stripOutermostParens(s string) string {
	if !strings.HasPrefix(s, "( ") || !strings.HasSuffix(s, " )") {
		return s
	}
	depth := 0
	for i, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return s // the first '(' closes before the string ends: not a true outer wrap
			}
		}
	}
	return strings.TrimSuffix(strings.TrimPrefix(s, "( "), " )")
}
