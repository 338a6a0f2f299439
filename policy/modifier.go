package policy

import (
	"fmt"

	"github.com/forte-labs/policy-compiler/ast"
	"github.com/forte-labs/policy-compiler/ir"
)

// ModifierSpec is the contract this compiler exposes to the (external,
// out-of-scope) guard-wrapper generator: everything it needs to splice a
// modifier into a calling function's source without this package
// performing any file I/O or text substitution itself (spec §1, §4.9).
type ModifierSpec struct {
	RuleName            string
	CallingFunctionName string
	CallingFunctionSig  string
	ParameterNames      []string // in calling-function slot order, for binding placeholder reads
	PlaceholderCount    int
	EffectPlaceholders  int
}

// BuildModifierSpecs derives one ModifierSpec per compiled rule. It is
// pure data assembly over an already-compiled Artifact and the source
// Policy's calling functions — it never touches the filesystem.
func BuildModifierSpecs(p *ast.Policy, artifact *ir.Artifact) ([]ModifierSpec, error) {
	callingFns := make(map[string]ast.CallingFunction, len(p.CallingFunctions))
	for _, fn := range p.CallingFunctions {
		callingFns[fn.Name] = fn
	}

	byName := make(map[string]ast.Rule, len(p.Rules))
	for _, r := range p.Rules {
		byName[r.Name] = r
	}

	specs := make([]ModifierSpec, 0, len(artifact.Rules))
	for _, cr := range artifact.Rules {
		rule, ok := byName[cr.Name]
		if !ok {
			return nil, fmt.Errorf("modifier: compiled rule %q has no matching source rule", cr.Name)
		}
		fn, ok := callingFns[rule.CallingFunction]
		if !ok {
			return nil, fmt.Errorf("modifier: rule %q references undeclared calling function %q", cr.Name, rule.CallingFunction)
		}

		names := make([]string, len(fn.EncodedValues))
		for i, param := range fn.EncodedValues {
			names[i] = param.Name
		}

		specs = append(specs, ModifierSpec{
			RuleName:            cr.Name,
			CallingFunctionName: fn.Name,
			CallingFunctionSig:  fn.Signature,
			ParameterNames:      names,
			PlaceholderCount:    len(cr.PlaceHolders),
			EffectPlaceholders:  len(cr.EffectPlaceHolders),
		})
	}
	return specs, nil
}
