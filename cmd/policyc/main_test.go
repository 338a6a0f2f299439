package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/forte-labs/policy-compiler/ast"
	"github.com/forte-labs/policy-compiler/policy"
)

// fixture exercises the top-level policy keys, calling functions
// (including the functionSignature rename), trackers, and rules, plus the
// string type tags that PrimitiveType's custom UnmarshalJSON must
// translate. It declares no foreign calls or mapped trackers.
const fixture = `{
	"policy": "capTransfer",
	"description": "cap outgoing transfers",
	"policyType": "guard",
	"callingFunctions": [
		{
			"name": "transfer",
			"functionSignature": "transfer(address,uint256)",
			"encodedValues": [
				{"type": "address", "name": "to"},
				{"type": "uint256", "name": "value"}
			]
		}
	],
	"trackers": [
		{"name": "totalSent", "type": "uint256", "initialValue": "0"}
	],
	"rules": [
		{
			"name": "capTransfer",
			"description": "",
			"condition": "value > 1000",
			"positiveEffects": ["revert(\"transfer too large\")"],
			"negativeEffects": ["TRU:totalSent += value"],
			"callingFunction": "transfer"
		}
	]
}`

func TestDecodePolicyJSON_BindsRenamedAndTypedFields(t *testing.T) {
	var p ast.Policy
	if err := json.Unmarshal([]byte(fixture), &p); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}

	if p.Policy != "capTransfer" {
		t.Errorf("Policy = %q, want capTransfer", p.Policy)
	}
	if len(p.CallingFunctions) != 1 {
		t.Fatalf("got %d calling functions, want 1", len(p.CallingFunctions))
	}
	fn := p.CallingFunctions[0]
	if fn.Signature != "transfer(address,uint256)" {
		t.Errorf("Signature = %q, want transfer(address,uint256) (decoded from the functionSignature key)", fn.Signature)
	}
	if len(fn.EncodedValues) != 2 || fn.EncodedValues[0].Type != ast.ADDRESS || fn.EncodedValues[1].Type != ast.UINT256 {
		t.Errorf("EncodedValues = %+v, want [ADDRESS to, UINT256 value]", fn.EncodedValues)
	}

	if len(p.Trackers) != 1 || p.Trackers[0].Type != ast.UINT256 {
		t.Errorf("Trackers = %+v, want one UINT256 tracker", p.Trackers)
	}
}

func TestDecodePolicyJSON_UnknownTypeTagErrors(t *testing.T) {
	var p ast.Policy
	bad := `{"trackers": [{"name": "t", "type": "int128", "initialValue": "0"}]}`
	if err := json.Unmarshal([]byte(bad), &p); err == nil {
		t.Error("expected an error decoding an unrecognized type tag")
	}
}

// End-to-end: decode the fixture exactly as runCompile does, then compile
// it, proving the JSON-to-ast.Policy path actually feeds the compiler.
func TestRunCompile_DecodesAndCompilesFixture(t *testing.T) {
	var p ast.Policy
	if err := json.Unmarshal([]byte(fixture), &p); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}

	artifact, errs := policy.Compile(&p)
	if errs.HasErrors() {
		t.Fatalf("Compile: %v", errs.Error())
	}
	if len(artifact.Rules) != 1 {
		t.Fatalf("got %d compiled rules, want 1", len(artifact.Rules))
	}

	var buf bytes.Buffer
	printStream(&buf, "condition", artifact.Rules[0].Condition)
	if buf.Len() == 0 {
		t.Error("printStream produced no output for a non-empty condition stream")
	}
}
