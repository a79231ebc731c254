// Command rulemorph is the CLI entrypoint for the rule-processing engine:
// validate, transform, test, and schema export, mirroring the verb set and
// flag conventions of the teacher's cmd/gert-kernel.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/input"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/pipeline"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/rulecache"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/trace"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/validate"
	ktesting "github.com/vinhphatfsg/rulemorph/pkg/testing"
)

var (
	version = "dev"
	commit  = "unknown"
)

// ruleCache memoizes parsed rule files by raw YAML text, per spec §3's
// "process-wide LRU cache keyed by raw YAML text" lifecycle note.
var ruleCache = rulecache.New[*schema.RuleFile](rulecache.DefaultCapacity)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rulemorph",
	Short: "Declarative rules engine: reshape CSV/JSON records via YAML-authored rules",
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [rule.yaml]",
	Short: "Validate a rule file (structural, semantic, domain phases)",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]
	rf, result, err := loadAndValidate(path)
	if err != nil {
		return err
	}
	if !result.OK() {
		fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n\n", len(result.Errors))
		for i, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Code, e.Message)
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
			}
			if e.Location != nil {
				fmt.Fprintf(os.Stderr, "     line %d, col %d\n", e.Location.Line, e.Location.Column)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", len(result.Errors))
	}
	fmt.Printf("✓ %s is valid (version %d, %d top-level mapping(s), %d step(s))\n",
		path, rf.Version, len(rf.Mappings), len(rf.Steps))
	return nil
}

// loadAndValidate validates path, consulting and populating the process
// cache keyed by raw source text.
func loadAndValidate(path string) (*schema.RuleFile, validate.Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, validate.Result{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if cached, ok := ruleCache.GetCloned(string(raw)); ok {
		return cached, validate.Result{}, nil
	}
	rf, result, err := validate.ValidateBytes(raw, path)
	if err != nil {
		return nil, validate.Result{}, err
	}
	if result.OK() {
		ruleCache.Insert(string(raw), rf)
	}
	return rf, result, nil
}

// --- transform ---

var (
	transformInputPath   string
	transformContextPath string
	transformTracePath   string
	transformStream      bool
)

var transformCmd = &cobra.Command{
	Use:   "transform [rule.yaml]",
	Short: "Transform records per a validated rule file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTransform,
}

func runTransform(cmd *cobra.Command, args []string) error {
	rulePath := args[0]
	rf, result, err := loadAndValidate(rulePath)
	if err != nil {
		return err
	}
	if !result.OK() {
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", e.Code, e.Message)
		}
		return fmt.Errorf("rule file failed validation")
	}

	in := os.Stdin
	if transformInputPath != "" {
		f, err := os.Open(transformInputPath)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		in = f
	}

	records, err := input.Read(rf, in)
	if err != nil {
		return err
	}

	var context map[string]any
	if transformContextPath != "" {
		ctxBytes, err := os.ReadFile(transformContextPath)
		if err != nil {
			return fmt.Errorf("reading context: %w", err)
		}
		if err := json.Unmarshal(ctxBytes, &context); err != nil {
			return fmt.Errorf("parsing context: %w", err)
		}
	}

	var tw *trace.Writer
	if transformTracePath != "" {
		tw, err = trace.NewFileWriter(transformTracePath, "")
		if err != nil {
			return err
		}
	}

	if transformStream {
		enc := json.NewEncoder(os.Stdout)
		pipeline.Stream(rf, records, context, tw, func(o pipeline.RecordOutcome) {
			if o.Err != nil {
				enc.Encode(map[string]any{"error": o.Err.Error(), "index": o.Index})
				return
			}
			if o.Skipped {
				return
			}
			enc.Encode(o.Output)
		})
		return nil
	}

	result2, warnings, err := pipeline.Batch(rf, records, context, tw)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: [%s] %s (at %s)\n", w.Code, w.Message, w.Path)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result2)
}

// --- test ---

var (
	testJSON     bool
	testFailFast bool
)

var testCmd = &cobra.Command{
	Use:   "test [rule.yaml...]",
	Short: "Run scenario tests against one or more rule files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	runner := &ktesting.Runner{FailFast: testFailFast}
	allPassed := true

	for _, path := range args {
		out, err := runner.RunAll(path)
		if err != nil {
			return err
		}
		if testJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(out)
		} else {
			printTestOutput(out)
		}
		if out.Summary.Failed > 0 || out.Summary.Errors > 0 {
			allPassed = false
		}
	}
	if !allPassed {
		return fmt.Errorf("tests failed")
	}
	return nil
}

func printTestOutput(out *ktesting.TestOutput) {
	fmt.Printf("\n  %s\n", out.Rule)
	for _, s := range out.Scenarios {
		icon := "✓"
		switch s.Status {
		case "failed":
			icon = "✗"
		case "error":
			icon = "!"
		}
		fmt.Printf("    %s %s (%dms)\n", icon, s.ScenarioName, s.DurationMs)
		if s.Error != "" {
			fmt.Printf("      error: %s\n", s.Error)
		}
		for _, a := range s.Assertions {
			if !a.Passed {
				fmt.Printf("      ✗ %s: %s\n", a.Type, a.Message)
			}
		}
	}
	fmt.Printf("\n  %d passed, %d failed, %d errors (total: %d)\n",
		out.Summary.Passed, out.Summary.Failed, out.Summary.Errors, out.Summary.Total)
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export JSON Schema documents",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the rule file JSON Schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.GenerateRuleFileJSONSchema()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version info",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rulemorph %s (%s)\n", version, commit)
	},
}

func init() {
	transformCmd.Flags().StringVar(&transformInputPath, "input", "", "Input file (default: stdin)")
	transformCmd.Flags().StringVar(&transformContextPath, "context", "", "JSON file to load as @context")
	transformCmd.Flags().StringVar(&transformTracePath, "trace", "", "Write a JSONL trace to this file")
	transformCmd.Flags().BoolVar(&transformStream, "stream", false, "Emit one JSON object per line, isolating per-record errors")

	testCmd.Flags().BoolVar(&testJSON, "json", false, "Output results as JSON")
	testCmd.Flags().BoolVar(&testFailFast, "fail-fast", false, "Stop after the first failing scenario")

	schemaCmd.AddCommand(schemaExportCmd)

	rootCmd.AddCommand(validateCmd, transformCmd, testCmd, schemaCmd, versionCmd)
}
