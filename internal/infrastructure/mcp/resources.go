package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/felixgeelhaar/mcp-go"
)

// SchemaVersion is the current MCP tool schema version (semver).
const SchemaVersion = "1.0.0"

const (
	agentsURI = "crew://agents"
	schemaURI = "crew://schema"
)

// AgentInfo describes a registered agent to MCP clients.
type AgentInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Phase       string `json:"phase"`
}

type schemaResponse struct {
	SchemaVersion string   `json:"schema_version"`
	ServerVersion string   `json:"server_version"`
	Tools         []string `json:"tools"`
}

func (s *Server) registerResources() {
	s.jsonResource(agentsURI, "Registered agents, their phase and description", func() (any, error) {
		return s.agents(), nil
	})
	s.jsonResource(schemaURI, "MCP tool schema version", func() (any, error) {
		resp := schemaResponse{SchemaVersion: SchemaVersion, ServerVersion: Version}
		for _, t := range s.mcpServer.Tools() {
			resp.Tools = append(resp.Tools, t.Name)
		}
		return resp, nil
	})
}

func (s *Server) jsonResource(uri, description string, read func() (any, error)) {
	s.mcpServer.Resource(uri).
		Name(uri).
		Description(description).
		MimeType("application/json").
		Handler(func(_ context.Context, _ string, _ map[string]string) (*mcplib.ResourceContent, error) {
			v, err := read()
			if err != nil {
				return nil, err
			}
			data, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			return &mcplib.ResourceContent{
				URI:      uri,
				MimeType: "application/json",
				Text:     string(data),
			}, nil
		})
}

// agents lists the registry in id order.
func (s *Server) agents() []AgentInfo {
	reg := s.services.Registry
	ids := reg.IDs()
	out := make([]AgentInfo, 0, len(ids))
	for _, id := range ids {
		a, ok := reg.Get(id)
		if !ok {
			continue
		}
		out = append(out, AgentInfo{ID: id, Description: a.Description(), Phase: string(a.Phase())})
	}
	return out
}
