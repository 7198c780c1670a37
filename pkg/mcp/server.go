// Package mcp lets other programs embed crew's MCP server.
package mcp

import (
	"fmt"

	infra "github.com/felixgeelhaar/crew/internal/infrastructure/mcp"
	"github.com/felixgeelhaar/crew/internal/infrastructure/wiring"
)

// Server exposes the MCP server implementation from the infrastructure layer.
type Server = infra.Server

// NewServer builds crew's services for root and an MCP server over them.
// Close the returned services when the server stops.
func NewServer(root string) (*Server, *wiring.AppServices, error) {
	services, err := wiring.BuildAppServices(root)
	if services == nil {
		return nil, nil, fmt.Errorf("build services: %w", err)
	}
	return infra.NewServer(services), services, nil
}
