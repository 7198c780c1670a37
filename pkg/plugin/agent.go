// Package plugin runs agents as separate processes over go-plugin's net/rpc
// protocol.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"net/rpc"

	goplugin "github.com/hashicorp/go-plugin"

	"github.com/felixgeelhaar/crew/pkg/domain/agent"
)

// Info identifies a plugin agent.
type Info struct {
	ID          string
	Description string
	Phase       agent.Phase
}

// ExecuteArgs is the part of an agent.Context that crosses the process
// boundary. Extensions stay in the host.
type ExecuteArgs struct {
	UserRequest         string
	ConversationID      string
	ConversationHistory []agent.Message
	WorkspaceRoot       string
	EditMode            bool
	Mode                agent.Mode
	Stage               string
	PreviousOutputs     map[string]string
	CompletedStages     []string
}

func argsFromContext(ac *agent.Context) ExecuteArgs {
	return ExecuteArgs{
		UserRequest:         ac.UserRequest,
		ConversationID:      ac.ConversationID,
		ConversationHistory: ac.ConversationHistory,
		WorkspaceRoot:       ac.WorkspaceRoot,
		EditMode:            ac.EditMode,
		Mode:                ac.Mode,
		Stage:               ac.Stage,
		PreviousOutputs:     ac.PreviousOutputs,
		CompletedStages:     ac.CompletedStages,
	}
}

func (a ExecuteArgs) context() *agent.Context {
	return &agent.Context{
		UserRequest:         a.UserRequest,
		ConversationID:      a.ConversationID,
		ConversationHistory: a.ConversationHistory,
		WorkspaceRoot:       a.WorkspaceRoot,
		EditMode:            a.EditMode,
		Mode:                a.Mode,
		Stage:               a.Stage,
		PreviousOutputs:     a.PreviousOutputs,
		CompletedStages:     a.CompletedStages,
	}
}

// AgentPlugin is the goplugin.Plugin serving and consuming agents.
type AgentPlugin struct {
	Impl agent.Agent
}

func (p *AgentPlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	if p.Impl == nil {
		return nil, errors.New("plugin: no agent to serve")
	}
	return &RPCServer{Impl: p.Impl}, nil
}

func (p *AgentPlugin) Client(_ *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return NewRPCClient(c)
}

// RPCClient is the host side of a plugin agent. It implements agent.Agent.
type RPCClient struct {
	client *rpc.Client
	info   Info
}

// NewRPCClient asks the plugin for its identity once and caches it.
func NewRPCClient(c *rpc.Client) (*RPCClient, error) {
	var info Info
	if err := c.Call("Plugin.Info", new(interface{}), &info); err != nil {
		return nil, fmt.Errorf("plugin info: %w", err)
	}
	return &RPCClient{client: c, info: info}, nil
}

func (c *RPCClient) ID() string          { return c.info.ID }
func (c *RPCClient) Description() string { return c.info.Description }
func (c *RPCClient) Phase() agent.Phase  { return c.info.Phase }

// Execute runs the stage in the plugin process. Cancelling ctx abandons the
// call; the plugin is not interrupted.
func (c *RPCClient) Execute(ctx context.Context, ac *agent.Context) (string, error) {
	var out string
	call := c.client.Go("Plugin.Execute", argsFromContext(ac), &out, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-call.Done:
	}
	if call.Error != nil {
		return "", fmt.Errorf("plugin %s: %w", c.info.ID, call.Error)
	}
	return out, nil
}

// RPCServer is the plugin side, wrapping the real agent.
type RPCServer struct {
	Impl agent.Agent
}

func (s *RPCServer) Info(_ interface{}, resp *Info) error {
	*resp = Info{ID: s.Impl.ID(), Description: s.Impl.Description(), Phase: s.Impl.Phase()}
	return nil
}

func (s *RPCServer) Execute(args ExecuteArgs, resp *string) error {
	out, err := s.Impl.Execute(context.Background(), args.context())
	*resp = out
	return err
}
