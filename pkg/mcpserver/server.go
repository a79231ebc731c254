// Package mcpserver exposes rulemorph's validate/transform operations as
// MCP tools, adapted from the teacher's pkg/ecosystem/mcp — same
// server/handler shape (mark3labs/mcp-go), new tool set bound to the
// rule-processing domain instead of runbook execution.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates an MCP server with rulemorph tools registered.
func NewServer(version string) *server.MCPServer {
	s := server.NewMCPServer(
		"rulemorph",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("rulemorph/validate",
			mcp.WithDescription("Validate a rulemorph rule file (structural, semantic, domain phases)"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the rule YAML file")),
		),
		HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("rulemorph/transform",
			mcp.WithDescription("Transform input records through a validated rule file and return the finalized JSON"),
			mcp.WithString("rule_path", mcp.Required(), mcp.Description("Path to the rule YAML file")),
			mcp.WithString("input_path", mcp.Required(), mcp.Description("Path to the input CSV/JSON file")),
			mcp.WithString("context_path", mcp.Description("Optional path to a JSON file loaded as @context")),
		),
		HandleTransform,
	)

	s.AddTool(
		mcp.NewTool("rulemorph/test",
			mcp.WithDescription("Run scenario tests discovered for a rule file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the rule YAML file")),
		),
		HandleTest,
	)

	s.AddTool(
		mcp.NewTool("rulemorph/schema",
			mcp.WithDescription("Export the rulemorph rule-file JSON Schema"),
		),
		HandleSchema,
	)

	return s
}
