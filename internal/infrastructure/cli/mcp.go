package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	inframcp "github.com/felixgeelhaar/crew/internal/infrastructure/mcp"
	"github.com/felixgeelhaar/crew/internal/infrastructure/wiring"
)

var (
	mcpTransport string
	mcpAddr      string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the crew MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *wiring.AppServices) error {
			server := inframcp.NewServer(s)
			switch strings.ToLower(mcpTransport) {
			case "stdio", "":
				return server.ServeStdio(cmd.Context())
			case "http":
				return server.ServeHTTP(cmd.Context(), mcpAddr)
			default:
				return fmt.Errorf("unsupported transport: %s", mcpTransport)
			}
		})
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpTransport, "transport", "stdio", "Transport to use (stdio, http)")
	mcpCmd.Flags().StringVar(&mcpAddr, "addr", ":8080", "Address for the http transport")
	RootCmd.AddCommand(mcpCmd)
}
