// Command rulemorph-repl is an interactive expression tester, grounded on
// the teacher's pkg/debugger REPL loop: load a rule and a sample record,
// then type v1/v2 expressions and see their Missing/Value result live.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/eval"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/input"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/validate"
)

func main() {
	rulePath := flag.String("rule", "", "Path to the rule YAML file")
	inputPath := flag.String("input", "", "Path to a sample input file (CSV/JSON, per the rule's input spec)")
	contextPath := flag.String("context", "", "Path to a JSON file loaded as @context")
	flag.Parse()

	if *rulePath == "" {
		fmt.Fprintln(os.Stderr, "usage: rulemorph-repl --rule rule.yaml [--input sample.csv] [--context ctx.json]")
		os.Exit(2)
	}

	rf, result, err := validate.ValidateFile(*rulePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if !result.OK() {
		fmt.Fprintln(os.Stderr, "rule file has validation errors; REPL will still run but refs may not resolve as expected:")
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Code, e.Message)
		}
	}

	var record map[string]any
	if *inputPath != "" {
		f, err := os.Open(*inputPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error opening input:", err)
			os.Exit(1)
		}
		defer f.Close()
		records, err := input.Read(rf, f)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error reading input:", err)
			os.Exit(1)
		}
		if len(records) > 0 {
			record = records[0]
		}
	}

	var context map[string]any
	if *contextPath != "" {
		raw, err := os.ReadFile(*contextPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error reading context:", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(raw, &context); err != nil {
			fmt.Fprintln(os.Stderr, "error parsing context:", err)
			os.Exit(1)
		}
	}

	if err := run(rf, record, context); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(rf *schema.RuleFile, record, context map[string]any) error {
	completer := readline.NewPrefixCompleter(
		readline.PcItem("@input"),
		readline.PcItem("@context"),
		readline.PcItem("@out"),
		readline.PcItem("help"),
		readline.PcItem("record"),
		readline.PcItem("quit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "rulemorph> ",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "rulemorph expression tester — %s\n", rf.SourcePath)
	fmt.Fprintln(rl.Stdout(), "Type an expression (e.g. @input.name, [\"@input.age\", {op: \">\", args: [18]}]) or 'help'.")

	out := map[string]any{}
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch line {
		case "quit", "exit":
			return nil
		case "help":
			printHelp(rl.Stdout())
			continue
		case "record":
			dumpJSON(rl.Stdout(), record)
			continue
		}

		result, err := evalLine(rf, record, context, out, line)
		if err != nil {
			fmt.Fprintf(rl.Stdout(), "parse error: %v\n", err)
			continue
		}
		fmt.Fprintln(rl.Stdout(), result)
	}
}

func evalLine(rf *schema.RuleFile, record, context, out map[string]any, line string) (string, error) {
	expr, err := schema.ParseExpr([]byte(line))
	if err != nil {
		return "", err
	}
	ctx := eval.New(record, context, out)
	v, err := eval.Eval(ctx, expr)
	if err != nil {
		return "", err
	}
	if v.IsMissing() {
		return "missing", nil
	}
	data, err := json.Marshal(v.Data())
	if err != nil {
		return fmt.Sprintf("%v", v.Data()), nil
	}
	return string(data), nil
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  record            show the loaded sample record")
	fmt.Fprintln(w, "  <expression>      evaluate a v1/v2 expression against @input/@context/@out")
	fmt.Fprintln(w, "  quit              exit the REPL")
}

func dumpJSON(w io.Writer, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(w, err)
		return
	}
	fmt.Fprintln(w, string(data))
}
