// Package ast defines the typed policy input record (spec §6) and the
// expression abstract syntax tree the parser builds from rule, effect,
// tracker, and foreign-call source strings (spec §4.4).
//
// The external JSON-schema validator is out of scope (spec §1): this
// package assumes its caller already holds a typed *Policy, but carries
// json tags (and a custom PrimitiveType codec) so cmd/policyc can decode
// a §6-shaped record directly with encoding/json.
package ast

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PrimitiveType is the closed set of value types from spec §3.
type PrimitiveType int

const (
	UINT256 PrimitiveType = iota
	STRING
	ADDRESS
	BYTES
	BOOL
	VOID
)

func (t PrimitiveType) String() string {
	switch t {
	case UINT256:
		return "UINT256"
	case STRING:
		return "STRING"
	case ADDRESS:
		return "ADDRESS"
	case BYTES:
		return "BYTES"
	case BOOL:
		return "BOOL"
	case VOID:
		return "VOID"
	default:
		return "UNKNOWN"
	}
}

// ParsePrimitiveType maps a schema type tag string to its PrimitiveType.
func ParsePrimitiveType(s string) (PrimitiveType, bool) {
	switch s {
	case "uint256":
		return UINT256, true
	case "string":
		return STRING, true
	case "address":
		return ADDRESS, true
	case "bytes":
		return BYTES, true
	case "bool":
		return BOOL, true
	case "void":
		return VOID, true
	default:
		return VOID, false
	}
}

// UnmarshalJSON decodes a §3 type tag string ("uint256", "address", ...)
// via ParsePrimitiveType; the JSON wire form is always the tag, never the
// underlying int, since that int has no meaning outside this program.
func (t *PrimitiveType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	pt, ok := ParsePrimitiveType(s)
	if !ok {
		return fmt.Errorf("unknown type tag: %q", s)
	}
	*t = pt
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON, round-tripping through the
// same lowercase tag spelling the input record uses.
func (t PrimitiveType) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ToLower(t.String()))
}

// EncodedParam is one `type name` slot of a CallingFunction's encodedValues.
type EncodedParam struct {
	Type PrimitiveType `json:"type"`
	Name string        `json:"name"`
}

// CallingFunction is the user-code function whose invocation triggers a
// rule check (spec §3). Order of EncodedValues is significant: slot index
// is the placeholder index for parameter references.
type CallingFunction struct {
	Name          string         `json:"name"`
	Signature     string         `json:"functionSignature"`
	EncodedValues []EncodedParam `json:"encodedValues"`
}

// Tracker is plain, scalar, engine-owned persistent state (spec §3).
type Tracker struct {
	ID           int           `json:"-"`
	Name         string        `json:"name"`
	Type         PrimitiveType `json:"type"`
	InitialValue string        `json:"initialValue"`
}

// MappedTracker is a Tracker keyed by a value (spec §3).
type MappedTracker struct {
	ID            int           `json:"-"`
	Name          string        `json:"name"`
	KeyType       PrimitiveType `json:"keyType"`
	ValueType     PrimitiveType `json:"valueType"`
	InitialKeys   []string      `json:"initialKeys"`
	InitialValues []string      `json:"initialValues"`
}

// EType is the namespace tag for a ForeignCall's encoded indices (spec §3).
type EType int

const (
	EParameter EType = iota
	EForeignCall
	ETracker
	EMappedTracker
)

// EncodedIndex is one {eType, index} tuple referencing a value passed into
// a foreign call. Derived by the policy assembler from ValuesToPass /
// MappedTrackerKeyValues, never itself part of the input record.
type EncodedIndex struct {
	EType EType `json:"-"`
	Index int   `json:"-"`
}

// ForeignCall is an external read whose result participates in rule
// evaluation (spec §3).
type ForeignCall struct {
	ID                      int            `json:"-"`
	Name                    string         `json:"name"`
	Address                 string         `json:"address"`
	Function                string         `json:"function"`
	ReturnType              PrimitiveType  `json:"returnType"`
	ValuesToPass            string         `json:"valuesToPass"`           // raw comma list, resolved into EncodedIndices
	MappedTrackerKeyValues  string         `json:"mappedTrackerKeyValues"` // raw comma list, resolved into MappedTrackerKeyIndices
	EncodedIndices          []EncodedIndex `json:"-"`
	MappedTrackerKeyIndices []EncodedIndex `json:"-"`
	CallingFunction         string         `json:"callingFunction"`
}

// Rule is one condition plus its positive/negative effects (spec §6).
type Rule struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Condition       string   `json:"condition"`
	PositiveEffects []string `json:"positiveEffects"`
	NegativeEffects []string `json:"negativeEffects"`
	CallingFunction string   `json:"callingFunction"`
}

// Policy is the whole input record (spec §6).
type Policy struct {
	Policy           string            `json:"policy"`
	Description      string            `json:"description"`
	PolicyType       string            `json:"policyType"`
	CallingFunctions []CallingFunction `json:"callingFunctions"`
	ForeignCalls     []ForeignCall     `json:"foreignCalls"`
	Trackers         []Tracker         `json:"trackers"`
	MappedTrackers   []MappedTracker   `json:"mappedTrackers"`
	Rules            []Rule            `json:"rules"`
}
