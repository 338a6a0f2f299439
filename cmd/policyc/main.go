// Command policyc is a thin, explicitly non-normative front end over the
// policy package: it reads a JSON policy record, compiles it, and prints
// either the compiled artifact or the accumulated error list. It plays the
// role the teacher's main.go plays for the emulator, trading flag for
// cobra (spec.md's CLI is out of scope for correctness; this is a
// demonstration harness, not the compiler itself).
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forte-labs/policy-compiler/ast"
	"github.com/forte-labs/policy-compiler/config"
	"github.com/forte-labs/policy-compiler/ir"
	"github.com/forte-labs/policy-compiler/policy"
)

// Version information, overridable at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath   string
		outputFormat string
		prettyPrint  bool
		lintOnly     bool
	)

	root := &cobra.Command{
		Use:   "policyc <policy.json>",
		Short: "Compile a policy record into a flat instruction artifact",
		Long: "policyc reads a JSON policy record, compiles its rule conditions and\n" +
			"effects into the engine's flat instruction format, and prints the\n" +
			"resulting artifact or the accumulated compile errors.",
		Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if outputFormat != "" {
				cfg.Output.Format = outputFormat
			}
			if cmd.Flags().Changed("pretty") {
				cfg.Output.PrettyPrint = prettyPrint
			}
			return runCompile(cmd, args[0], cfg, lintOnly)
		},
	}

	root.Flags().StringVar(&configPath, "config", "", "path to config.toml (default: platform config dir)")
	root.Flags().StringVar(&outputFormat, "format", "", "output format: text or json (default: from config)")
	root.Flags().BoolVar(&prettyPrint, "pretty", true, "pretty-print the instruction stream")
	root.Flags().BoolVar(&lintOnly, "lint", false, "run the linter only; do not compile")

	return root
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func runCompile(cmd *cobra.Command, path string, cfg *config.Config, lintOnly bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading policy file: %w", err)
	}

	var p ast.Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decoding policy JSON: %w", err)
	}

	if lintOnly || cfg.Lint.CheckUnusedTrackers || cfg.Lint.CheckDuplicateNames || cfg.Lint.CheckAddressChecksums {
		issues := policy.NewLinter(&policy.LintOptions{
			CheckUnusedTrackers:   cfg.Lint.CheckUnusedTrackers,
			CheckDuplicateNames:   cfg.Lint.CheckDuplicateNames,
			CheckAddressChecksums: cfg.Lint.CheckAddressChecksums,
		}).Lint(&p)
		for _, issue := range issues {
			fmt.Fprintln(cmd.ErrOrStderr(), issue.String())
		}
		if lintOnly {
			return nil
		}
	}

	artifact, errs := policy.Compile(&p)
	if errs.HasErrors() {
		fmt.Fprint(cmd.ErrOrStderr(), errs.Error())
		return fmt.Errorf("compilation failed: %d error(s)", len(errs.Errors))
	}
	if warnings := errs.PrintWarnings(); warnings != "" {
		fmt.Fprint(cmd.ErrOrStderr(), warnings)
	}

	return printArtifact(cmd, artifact, cfg)
}

func printArtifact(cmd *cobra.Command, artifact *ir.Artifact, cfg *config.Config) error {
	out := cmd.OutOrStdout()

	if cfg.Output.Format == "json" {
		enc := json.NewEncoder(out)
		if cfg.Output.PrettyPrint {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(artifact)
	}

	for _, rule := range artifact.Rules {
		fmt.Fprintf(out, "rule %s\n", rule.Name)
		printStream(out, "  condition", rule.Condition)
		for i, eff := range rule.PositiveEffects {
			printEffect(out, fmt.Sprintf("  positiveEffects[%d]", i), eff)
		}
		for i, eff := range rule.NegativeEffects {
			printEffect(out, fmt.Sprintf("  negativeEffects[%d]", i), eff)
		}
	}
	return nil
}

func printEffect(out interface{ Write([]byte) (int, error) }, label string, eff ir.Effect) {
	switch eff.Type {
	case ir.EffectRevert:
		fmt.Fprintf(out, "%s: REVERT %q\n", label, eff.Text)
	case ir.EffectEvent:
		fmt.Fprintf(out, "%s: EVENT %s\n", label, eff.Text)
	default:
		printStream(out, label, eff.InstructionSet)
	}
}

func printStream(out interface{ Write([]byte) (int, error) }, label string, stream ir.Stream) {
	fmt.Fprintf(out, "%s:\n", label)
	for _, instr := range stream {
		operands := make([]string, len(instr.Operands))
		for i, o := range instr.Operands {
			operands[i] = o.String()
		}
		if instr.Op.IsProducer() {
			fmt.Fprintf(out, "    [%d] %s %v\n", instr.Memo, instr.Op, operands)
		} else {
			fmt.Fprintf(out, "    %s %v\n", instr.Op, operands)
		}
	}
}
