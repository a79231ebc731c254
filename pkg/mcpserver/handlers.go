package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vinhphatfsg/rulemorph/pkg/kernel/input"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/pipeline"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/schema"
	"github.com/vinhphatfsg/rulemorph/pkg/kernel/validate"
	ktesting "github.com/vinhphatfsg/rulemorph/pkg/testing"
)

// HandleValidate implements the rulemorph/validate MCP tool.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	rf, result, err := validate.ValidateFile(path)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if !result.OK() {
		return errorResult(formatErrors(result.Errors)), nil
	}
	return textResult(fmt.Sprintf("✓ %s is valid (version %d, %d mapping(s), %d step(s))",
		path, rf.Version, len(rf.Mappings), len(rf.Steps))), nil
}

// HandleTransform implements the rulemorph/transform MCP tool.
func HandleTransform(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	rulePath, _ := args["rule_path"].(string)
	inputPath, _ := args["input_path"].(string)
	contextPath, _ := args["context_path"].(string)
	if rulePath == "" || inputPath == "" {
		return errorResult("rule_path and input_path arguments are required"), nil
	}

	rf, result, err := validate.ValidateFile(rulePath)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if !result.OK() {
		return errorResult(formatErrors(result.Errors)), nil
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return errorResult(fmt.Sprintf("opening input: %s", err)), nil
	}
	defer f.Close()

	records, err := input.Read(rf, f)
	if err != nil {
		return errorResult(fmt.Sprintf("reading input: %s", err)), nil
	}

	var context map[string]any
	if contextPath != "" {
		raw, err := os.ReadFile(contextPath)
		if err != nil {
			return errorResult(fmt.Sprintf("reading context: %s", err)), nil
		}
		if err := json.Unmarshal(raw, &context); err != nil {
			return errorResult(fmt.Sprintf("parsing context: %s", err)), nil
		}
	}

	out, warnings, err := pipeline.Batch(rf, records, context, nil)
	if err != nil {
		return errorResult(fmt.Sprintf("transform failed: %s", err)), nil
	}

	response := map[string]any{"output": out}
	if len(warnings) > 0 {
		warningMsgs := make([]string, len(warnings))
		for i, w := range warnings {
			warningMsgs[i] = fmt.Sprintf("[%s] %s (at %s)", w.Code, w.Message, w.Path)
		}
		response["warnings"] = warningMsgs
	}

	data, _ := json.MarshalIndent(response, "", "  ")
	return textResult(string(data)), nil
}

// HandleTest implements the rulemorph/test MCP tool.
func HandleTest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	runner := &ktesting.Runner{}
	out, err := runner.RunAll(path)
	if err != nil {
		return errorResult(fmt.Sprintf("run tests: %s", err)), nil
	}

	data, _ := json.MarshalIndent(out, "", "  ")
	isErr := out.Summary.Failed > 0 || out.Summary.Errors > 0
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: isErr,
	}, nil
}

// HandleSchema implements the rulemorph/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := schema.GenerateRuleFileJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

func formatErrors(errs []*schema.RuleError) string {
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return msg
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(text)},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(msg)},
		IsError: true,
	}
}
