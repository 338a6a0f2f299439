package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/forte-labs/policy-compiler/ast"
	"github.com/forte-labs/policy-compiler/encoding"
)

// LintLevel is the severity of a lint finding, adapted from the
// teacher's assembly linter to this compiler's entities: a tracker name
// instead of a label, a rule instead of an instruction.
type LintLevel int

const (
	LintError   LintLevel = iota // definite defect in the record; only some (an empty condition) also fail Compile
	LintWarning                  // best-practice violation, not fatal
	LintInfo                     // style suggestion
)

func (l LintLevel) String() string {
	switch l {
	case LintError:
		return "error"
	case LintWarning:
		return "warning"
	case LintInfo:
		return "info"
	default:
		return "unknown"
	}
}

// LintIssue is a single finding against a named policy entity.
type LintIssue struct {
	Level   LintLevel
	Entity  string
	Message string
	Code    string
}

func (i *LintIssue) String() string {
	return fmt.Sprintf("%s: %s: %s [%s]", i.Entity, i.Level, i.Message, i.Code)
}

// LintOptions controls which passes Lint runs.
type LintOptions struct {
	CheckUnusedTrackers   bool
	CheckDuplicateNames   bool
	CheckAddressChecksums bool
}

// DefaultLintOptions enables every pass.
func DefaultLintOptions() *LintOptions {
	return &LintOptions{
		CheckUnusedTrackers:   true,
		CheckDuplicateNames:   true,
		CheckAddressChecksums: true,
	}
}

// Linter finds problems in a policy record, most of which Compile itself
// does not catch (name collisions, dead trackers, invalid or non-canonical
// addresses) — the same complementary role the teacher's assembly
// Linter plays alongside its parser.
type Linter struct {
	options *LintOptions
	issues  []*LintIssue
}

// NewLinter creates a Linter. A nil options uses DefaultLintOptions.
func NewLinter(options *LintOptions) *Linter {
	if options == nil {
		options = DefaultLintOptions()
	}
	return &Linter{options: options}
}

// Lint analyzes a policy record and returns every finding, sorted by entity.
func (l *Linter) Lint(p *ast.Policy) []*LintIssue {
	l.issues = nil

	if l.options.CheckDuplicateNames {
		l.checkDuplicateNames(p)
	}
	if l.options.CheckUnusedTrackers {
		l.checkUnusedTrackers(p)
	}
	if l.options.CheckAddressChecksums {
		l.checkAddressChecksums(p)
	}
	l.checkEmptyRuleBodies(p)

	sort.Slice(l.issues, func(i, j int) bool {
		return l.issues[i].Entity < l.issues[j].Entity
	})
	return l.issues
}

func (l *Linter) add(level LintLevel, entity, code, format string, args ...any) {
	l.issues = append(l.issues, &LintIssue{
		Level:   level,
		Entity:  entity,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (l *Linter) checkDuplicateNames(p *ast.Policy) {
	seen := make(map[string]string) // name -> first entity kind seen
	record := func(name, kind, entity string) {
		if prior, ok := seen[name]; ok {
			l.add(LintError, entity, "DUPLICATE_NAME", "%q is declared as both a %s and a %s", name, prior, kind)
		} else {
			seen[name] = kind
		}
	}
	for i, tr := range p.Trackers {
		record(tr.Name, "tracker", fmt.Sprintf("Trackers[%d]", i))
	}
	for i, mt := range p.MappedTrackers {
		record(mt.Name, "mapped tracker", fmt.Sprintf("MappedTrackers[%d]", i))
	}
	for i, fc := range p.ForeignCalls {
		record(fc.Name, "foreign call", fmt.Sprintf("ForeignCalls[%d]", i))
	}
}

// checkUnusedTrackers warns about a tracker/mapped tracker never
// mentioned in any rule's condition or effects — a plausible sign of a
// stale declaration.
func (l *Linter) checkUnusedTrackers(p *ast.Policy) {
	referenced := make(map[string]bool)
	mark := func(text string) {
		if strings.Contains(text, "TR:") || strings.Contains(text, "TRU:") {
			for _, name := range append(collectNames(text, "TR:"), collectNames(text, "TRU:")...) {
				referenced[name] = true
			}
		}
	}
	for _, r := range p.Rules {
		mark(r.Condition)
		for _, e := range r.PositiveEffects {
			mark(e)
		}
		for _, e := range r.NegativeEffects {
			mark(e)
		}
	}
	for i, tr := range p.Trackers {
		if !referenced[tr.Name] {
			l.add(LintWarning, fmt.Sprintf("Trackers[%d]", i), "UNUSED_TRACKER", "tracker %q is never referenced by a rule", tr.Name)
		}
	}
	for i, mt := range p.MappedTrackers {
		if !referenced[mt.Name] {
			l.add(LintWarning, fmt.Sprintf("MappedTrackers[%d]", i), "UNUSED_TRACKER", "mapped tracker %q is never referenced by a rule", mt.Name)
		}
	}
}

// collectNames extracts bareword names following the given prefix in a
// source string; a coarse scan, not a full tokenization, sufficient for
// an advisory lint pass.
func collectNames(text, prefix string) []string {
	var names []string
	rest := text
	for {
		i := strings.Index(rest, prefix)
		if i < 0 {
			break
		}
		rest = rest[i+len(prefix):]
		j := 0
		for j < len(rest) && (isNameRune(rune(rest[j]))) {
			j++
		}
		if j > 0 {
			names = append(names, rest[:j])
		}
		rest = rest[j:]
	}
	return names
}

func isNameRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func (l *Linter) checkAddressChecksums(p *ast.Policy) {
	for i, tr := range p.Trackers {
		if tr.Type != ast.ADDRESS {
			continue
		}
		l.checkOneAddress(tr.InitialValue, fmt.Sprintf("Trackers[%d].initialValue", i))
	}
	for i, mt := range p.MappedTrackers {
		if mt.KeyType == ast.ADDRESS {
			for j, k := range mt.InitialKeys {
				l.checkOneAddress(k, fmt.Sprintf("MappedTrackers[%d].initialKeys[%d]", i, j))
			}
		}
		if mt.ValueType == ast.ADDRESS {
			for j, v := range mt.InitialValues {
				l.checkOneAddress(v, fmt.Sprintf("MappedTrackers[%d].initialValues[%d]", i, j))
			}
		}
	}
	for i, fc := range p.ForeignCalls {
		l.checkOneAddress(fc.Address, fmt.Sprintf("ForeignCalls[%d].address", i))
	}
}

func (l *Linter) checkOneAddress(raw, entity string) {
	addr, err := encoding.ParseAddress(raw)
	if err != nil {
		l.add(LintError, entity, "INVALID_ADDRESS", "%v", err)
		return
	}
	if addr.Hex() != raw {
		l.add(LintInfo, entity, "NON_CHECKSUM_ADDRESS", "address is not in EIP-55 checksum form (expected %s)", addr.Hex())
	}
}

func (l *Linter) checkEmptyRuleBodies(p *ast.Policy) {
	for i, r := range p.Rules {
		if strings.TrimSpace(r.Condition) == "" {
			l.add(LintError, fmt.Sprintf("Rules[%d].condition", i), "EMPTY_CONDITION", "rule %q has an empty condition", r.Name)
		}
		if len(r.PositiveEffects) == 0 && len(r.NegativeEffects) == 0 {
			l.add(LintWarning, fmt.Sprintf("Rules[%d]", i), "NO_EFFECTS", "rule %q declares no positive or negative effects", r.Name)
		}
	}
}
