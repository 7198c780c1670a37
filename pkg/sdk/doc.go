// Package sdk provides a typed Go client for the crew MCP server.
//
// The client wraps mcp-go/client.CallTool with one method per crew tool.
// Read-only calls are retried via fortify; plan, code, run and reset are
// sent once, since repeating them would repeat LLM work.
//
// Usage:
//
//	transport, _ := client.NewStdioTransport("crew", "mcp")
//	c := sdk.NewClient(transport)
//	defer c.Close()
//
//	_, _ = c.Initialize(ctx)
//	summary, _ := c.Plan(ctx, "A CLI that converts CSV to JSON", false)
//	st, _ := c.Status(ctx)
//	fmt.Println(st.Lifecycle)
package sdk
