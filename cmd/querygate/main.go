// Command querygate runs the SQL admission and audit layer as an HTTP API,
// an MCP server or a one-shot CLI.
package main

import "github.com/cortexai/querygate/internal/cli"

func main() {
	cli.Execute()
}
