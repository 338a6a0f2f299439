// Package ir defines the flat, memo-referencing instruction stream the
// emitter produces (spec §3, §4.5) — the compiled artifact's wire format.
// It plays the role the teacher's vm package plays for ARM machine code:
// a closed set of opcodes, each with a fixed arity, addressed by position
// rather than by pointer.
package ir

import "math/big"

// Op is the closed set of instruction tokens from spec §3.
type Op int

const (
	OpN    Op = iota // push literal
	OpPLH            // push placeholder value
	OpPLHM           // push mapped-tracker value
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpAnd
	OpOr
	OpNot
	OpAssign
	OpTRU  // update tracker
	OpTRUM // update mapped tracker
)

// Arity is the number of integer operands each opcode carries (spec §3
// table). It does not count the producer/consumer memo-index bookkeeping
// layered on top by the emitter — only the literal operand count.
func (o Op) Arity() int {
	switch o {
	case OpN:
		return 1
	case OpPLH:
		return 1
	case OpPLHM:
		return 2
	case OpAdd, OpSub, OpMul, OpDiv,
		OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte,
		OpAnd, OpOr, OpAssign:
		return 2
	case OpNot:
		return 1
	case OpTRU:
		return 3
	case OpTRUM:
		return 4
	default:
		return 0
	}
}

// IsProducer reports whether an instruction of this opcode occupies a
// memo slot (spec §3 "Memo index"): literals, placeholders, and every
// unary/binary operator each count once; TRU/TRUM are terminal (side
// effecting) and do not produce a consumable value.
func (o Op) IsProducer() bool {
	switch o {
	case OpTRU, OpTRUM:
		return false
	default:
		return true
	}
}

func (o Op) String() string {
	switch o {
	case OpN:
		return "N"
	case OpPLH:
		return "PLH"
	case OpPLHM:
		return "PLHM"
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpEq:
		return "=="
	case OpNeq:
		return "!="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpNot:
		return "NOT"
	case OpAssign:
		return "="
	case OpTRU:
		return "TRU"
	case OpTRUM:
		return "TRUM"
	default:
		return "?"
	}
}

// BinaryOp maps a surface infix operator token to its opcode.
func BinaryOp(tok string) (Op, bool) {
	switch tok {
	case "+":
		return OpAdd, true
	case "-":
		return OpSub, true
	case "*":
		return OpMul, true
	case "/":
		return OpDiv, true
	case "==":
		return OpEq, true
	case "!=":
		return OpNeq, true
	case "<":
		return OpLt, true
	case "<=":
		return OpLte, true
	case ">":
		return OpGt, true
	case ">=":
		return OpGte, true
	case "AND":
		return OpAnd, true
	case "OR":
		return OpOr, true
	default:
		return OpN, false
	}
}

// Instruction is one token followed by its integer operands, each a
// 256-bit unsigned integer in emitted form (spec §3). Memo is the
// producer's own position in the stream (only meaningful when
// Op.IsProducer() is true); Operands holds memo-index references for
// operators, or the encoded literal/placeholder-index values for N/PLH/PLHM.
type Instruction struct {
	Op       Op
	Operands []*big.Int
	Memo     int
}

// Stream is an ordered instruction sequence — the compiled form of one
// condition or effect expression.
type Stream []Instruction

// PlaceholderFlags is the bitfield from spec §3.
type PlaceholderFlags uint8

const (
	FlagForeignCall     PlaceholderFlags = 0x01
	FlagTracker         PlaceholderFlags = 0x02
	FlagMsgSender       PlaceholderFlags = 0x04
	FlagBlockTimestamp  PlaceholderFlags = 0x08
	FlagMsgData         PlaceholderFlags = 0x0C
	FlagBlockNumber     PlaceholderFlags = 0x10
	FlagTxOrigin        PlaceholderFlags = 0x14
	FlagPlainParameter  PlaceholderFlags = 0x00
)

// PlaceholderDescriptor is {pType, typeSpecificIndex, flags} from spec §3.
type PlaceholderDescriptor struct {
	PType             int // ast.PrimitiveType, stored as int to avoid an import cycle
	TypeSpecificIndex int
	Flags             PlaceholderFlags
}

// EffectType is the closed set from spec §3.
type EffectType int

const (
	EffectRevert EffectType = iota
	EffectEvent
	EffectExpression
)

func (t EffectType) String() string {
	switch t {
	case EffectRevert:
		return "REVERT"
	case EffectEvent:
		return "EVENT"
	case EffectExpression:
		return "EXPRESSION"
	default:
		return "UNKNOWN"
	}
}

// Effect is one compiled positive/negative effect (spec §3).
type Effect struct {
	Type           EffectType
	Text           string // REVERT message or EVENT name; empty for EXPRESSION
	InstructionSet Stream // compiled stream; empty for REVERT/EVENT
}

// CompiledRule is the artifact produced for one policy rule (spec §3).
type CompiledRule struct {
	Name               string
	Condition          Stream
	PositiveEffects    []Effect
	NegativeEffects    []Effect
	PlaceHolders       []PlaceholderDescriptor
	EffectPlaceHolders []PlaceholderDescriptor
}

// Artifact is the whole compiled policy: one CompiledRule per rule that
// compiled successfully. The policy assembler withholds this entirely if
// any rule fails (spec §7).
type Artifact struct {
	Rules []CompiledRule
}
