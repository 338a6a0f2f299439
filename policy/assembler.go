// Package policy orchestrates compilation of a whole policy record (spec
// §4.8): id assignment, cross-reference resolution for foreign calls,
// and per-rule condition/effect compilation, producing one immutable
// compiled artifact or withholding it entirely in favor of an
// accumulated error list. It plays the role the teacher's parser.Parse
// two-pass orchestration plays for a whole assembly source file,
// generalized from one flat instruction list to a multi-entity policy.
package policy

import (
	"fmt"
	"strings"

	"github.com/forte-labs/policy-compiler/ast"
	"github.com/forte-labs/policy-compiler/emitter"
	"github.com/forte-labs/policy-compiler/encoding"
	"github.com/forte-labs/policy-compiler/errors"
	"github.com/forte-labs/policy-compiler/ir"
	"github.com/forte-labs/policy-compiler/parser"
	"github.com/forte-labs/policy-compiler/scope"
)

// Compilation states (spec §4.8): INIT -> PARSE_SCHEMA -> ASSIGN_IDS ->
// COMPILE_RULES -> EMIT_ARTIFACT. Failure in any state aborts with the
// accumulated error list; no partial artifact is emitted.
const (
	StateInit         = "INIT"
	StateParseSchema  = "PARSE_SCHEMA"
	StateAssignIDs    = "ASSIGN_IDS"
	StateCompileRules = "COMPILE_RULES"
	StateEmitArtifact = "EMIT_ARTIFACT"
)

// Compile compiles a whole policy record into an immutable artifact.
// The artifact is nil whenever the returned list has any error (spec §7
// "the artifact is withheld entirely if any rule fails"); a non-nil,
// error-free list may still carry warnings.
func Compile(p *ast.Policy) (*ir.Artifact, *errors.List) {
	errs := &errors.List{}

	validateSchema(p, errs)
	if errs.HasErrors() {
		return nil, errs
	}

	trackers, mapped, foreignCalls, callingFns := assignIDs(p)
	tables := scope.NewTables(trackers, mapped, foreignCalls)

	resolveForeignCallIndices(foreignCalls, callingFns, tables, errs)
	if errs.HasErrors() {
		return nil, errs
	}

	rules := compileRules(p.Rules, callingFns, tables, errs)
	if errs.HasErrors() {
		return nil, errs
	}

	warnUnreferencedCallingFunctions(p, callingFns, rules, errs)

	return &ir.Artifact{Rules: rules}, errs
}

// validateSchema is the PARSE_SCHEMA state: every tracker's initial
// value, and every mapped tracker's initial keys/values, must parse as a
// literal of the declared type (spec §3 invariants).
func validateSchema(p *ast.Policy, errs *errors.List) {
	state := StateParseSchema

	for i, tr := range p.Trackers {
		entity := fmt.Sprintf("Trackers[%d].initialValue", i)
		if _, err := encoding.Encode(tr.InitialValue, tr.Type); err != nil {
			errs.Addf(errors.Type, state, errors.AtOffset(entity, 0), "%v", err)
		}
	}

	for i, mt := range p.MappedTrackers {
		if len(mt.InitialKeys) != len(mt.InitialValues) {
			entity := fmt.Sprintf("MappedTrackers[%d]", i)
			errs.Addf(errors.Input, state, errors.AtOffset(entity, 0),
				"initialKeys and initialValues length mismatch: %d vs %d", len(mt.InitialKeys), len(mt.InitialValues))
			continue
		}
		for j, k := range mt.InitialKeys {
			entity := fmt.Sprintf("MappedTrackers[%d].initialKeys[%d]", i, j)
			if _, err := encoding.EncodePacked(k, mt.KeyType); err != nil {
				errs.Addf(errors.Type, state, errors.AtOffset(entity, 0), "%v", err)
			}
		}
		for j, v := range mt.InitialValues {
			entity := fmt.Sprintf("MappedTrackers[%d].initialValues[%d]", i, j)
			if _, err := encoding.EncodePacked(v, mt.ValueType); err != nil {
				errs.Addf(errors.Type, state, errors.AtOffset(entity, 0), "%v", err)
			}
		}
	}
}

// assignIDs is the ASSIGN_IDS state: trackers, mapped trackers, and
// foreign calls receive stable ids in declaration order starting at 1
// (spec §4.8 step 1).
func assignIDs(p *ast.Policy) (trackers []ast.Tracker, mapped []ast.MappedTracker, foreignCalls []ast.ForeignCall, callingFns map[string]ast.CallingFunction) {
	trackers = append([]ast.Tracker(nil), p.Trackers...)
	for i := range trackers {
		trackers[i].ID = i + 1
	}
	mapped = append([]ast.MappedTracker(nil), p.MappedTrackers...)
	for i := range mapped {
		mapped[i].ID = i + 1
	}
	foreignCalls = append([]ast.ForeignCall(nil), p.ForeignCalls...)
	for i := range foreignCalls {
		foreignCalls[i].ID = i + 1
	}

	callingFns = make(map[string]ast.CallingFunction, len(p.CallingFunctions))
	for _, fn := range p.CallingFunctions {
		callingFns[fn.Name] = fn
	}
	return
}

// resolveForeignCallIndices is spec §4.8 step 2: each foreign call's
// valuesToPass and mappedTrackerKeyValues comma lists are resolved into
// EncodedIndices/MappedTrackerKeyIndices by looking each token up across
// the parameter, tracker, and foreign-call scopes.
func resolveForeignCallIndices(foreignCalls []ast.ForeignCall, callingFns map[string]ast.CallingFunction, tables *scope.Tables, errs *errors.List) {
	state := StateAssignIDs
	for i := range foreignCalls {
		fc := &foreignCalls[i]
		entity := fmt.Sprintf("ForeignCalls[%d]", i)

		fn, ok := callingFns[fc.CallingFunction]
		if !ok {
			errs.Addf(errors.Resolution, state, errors.AtOffset(entity+".callingFunction", 0),
				"undeclared calling function: %s", fc.CallingFunction)
			continue
		}

		indices, err := resolveTokenList(fc.ValuesToPass, fn, tables)
		if err != nil {
			errs.Addf(errors.Resolution, state, errors.AtOffset(entity+".valuesToPass", 0), "%v", err)
		} else {
			fc.EncodedIndices = indices
		}

		keyIndices, err := resolveTokenList(fc.MappedTrackerKeyValues, fn, tables)
		if err != nil {
			errs.Addf(errors.Resolution, state, errors.AtOffset(entity+".mappedTrackerKeyValues", 0), "%v", err)
		} else {
			fc.MappedTrackerKeyIndices = keyIndices
		}
	}
}

func resolveTokenList(raw string, fn ast.CallingFunction, tables *scope.Tables) ([]ast.EncodedIndex, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []ast.EncodedIndex
	for _, tok := range strings.Split(raw, ",") {
		name := strings.TrimSpace(tok)
		if name == "" {
			continue
		}
		idx, err := resolveOneToken(name, fn, tables)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}

func resolveOneToken(name string, fn ast.CallingFunction, tables *scope.Tables) (ast.EncodedIndex, error) {
	for slot, param := range fn.EncodedValues {
		if param.Name == name {
			return ast.EncodedIndex{EType: ast.EParameter, Index: slot}, nil
		}
	}
	if id, mapped, _, _, ok := tables.TrackerID(name); ok {
		if mapped {
			return ast.EncodedIndex{EType: ast.EMappedTracker, Index: id}, nil
		}
		return ast.EncodedIndex{EType: ast.ETracker, Index: id}, nil
	}
	if id, ok := tables.ForeignCallID(name); ok {
		return ast.EncodedIndex{EType: ast.EForeignCall, Index: id}, nil
	}
	return ast.EncodedIndex{}, fmt.Errorf("unresolved identifier: %s", name)
}

// compileRules is the COMPILE_RULES state: each rule's condition and
// effects are compiled against its calling function's parameter scope.
// A rule that fails is excluded from the result and its errors are
// recorded (spec §7 "a rule that fails compilation is excluded from the
// artifact").
func compileRules(rules []ast.Rule, callingFns map[string]ast.CallingFunction, tables *scope.Tables, errs *errors.List) []ir.CompiledRule {
	state := StateCompileRules
	var out []ir.CompiledRule

	for ri, rule := range rules {
		entity := fmt.Sprintf("Rules[%d]", ri)

		fn, ok := callingFns[rule.CallingFunction]
		if !ok {
			errs.Addf(errors.Resolution, state, errors.AtOffset(entity+".callingFunction", 0),
				"undeclared calling function: %s", rule.CallingFunction)
			continue
		}

		condResolver := scope.NewResolver(tables, fn)
		condAST, err := parser.ParseCondition(rule.Condition)
		if err != nil {
			errs.Addf(errors.Grammar, state, errors.AtOffset(entity+".condition", 0), "%v", err)
			continue
		}
		condEm := emitter.New(condResolver, tables)
		condStream, condType, err := condEm.Emit(condAST)
		if err != nil {
			errs.Addf(errors.Type, state, errors.AtOffset(entity+".condition", 0), "%v", err)
			continue
		}
		if condType != ast.BOOL {
			errs.Addf(errors.Type, state, errors.AtOffset(entity+".condition", 0),
				"condition must evaluate to bool, got %s", condType)
			continue
		}

		effResolver := scope.NewResolver(tables, fn)
		failed := false

		posEffects := compileEffectList(rule.PositiveEffects, fmt.Sprintf("%s.positiveEffects", entity), effResolver, tables, state, errs, &failed)
		negEffects := compileEffectList(rule.NegativeEffects, fmt.Sprintf("%s.negativeEffects", entity), effResolver, tables, state, errs, &failed)
		if failed {
			continue
		}

		out = append(out, ir.CompiledRule{
			Name:               rule.Name,
			Condition:          condStream,
			PositiveEffects:    posEffects,
			NegativeEffects:    negEffects,
			PlaceHolders:       condResolver.Descriptors(),
			EffectPlaceHolders: effResolver.Descriptors(),
		})
	}

	return out
}

func compileEffectList(texts []string, entityPrefix string, resolver *scope.Resolver, tables *scope.Tables, state string, errs *errors.List, failed *bool) []ir.Effect {
	var out []ir.Effect
	for i, text := range texts {
		eff, err := emitter.CompileEffect(text, resolver, tables)
		if err != nil {
			entity := fmt.Sprintf("%s[%d]", entityPrefix, i)
			errs.Addf(errors.Grammar, state, errors.AtOffset(entity, 0), "%v", err)
			*failed = true
			continue
		}
		out = append(out, eff)
	}
	return out
}

// warnUnreferencedCallingFunctions emits the non-fatal warning spec §7
// calls out: a declared calling function matched by no rule.
func warnUnreferencedCallingFunctions(p *ast.Policy, callingFns map[string]ast.CallingFunction, rules []ir.CompiledRule, errs *errors.List) {
	used := make(map[string]bool, len(p.Rules))
	for _, r := range p.Rules {
		used[r.CallingFunction] = true
	}
	for name := range callingFns {
		if !used[name] {
			errs.AddWarning(errors.AtOffset("CallingFunctions", 0), "calling function %q is not referenced by any rule", name)
		}
	}
}
