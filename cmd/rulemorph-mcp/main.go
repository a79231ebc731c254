// Command rulemorph-mcp serves the rulemorph MCP tools over stdio, for AI
// agents that want to validate or transform rule files without shelling
// out to the CLI.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/vinhphatfsg/rulemorph/pkg/mcpserver"
)

var version = "dev"

func main() {
	s := mcpserver.NewServer(version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
