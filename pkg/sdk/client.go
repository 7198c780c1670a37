package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/mcp-go/client"
)

// SupportedSchemaMajor is the server schema major version this client
// understands.
const SupportedSchemaMajor = "1"

// Client is a typed Go client for the crew MCP server.
type Client struct {
	mcp      *client.Client
	retryCfg retry.Config
}

type options struct {
	timeout      time.Duration
	maxAttempts  int
	initialDelay time.Duration
}

// Option configures the client.
type Option func(*options)

// WithTimeout sets the per-call timeout. Plan and code runs call an LLM
// for every stage, so the default is generous.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRetry configures retries of read-only calls.
func WithRetry(maxAttempts int, initialDelay time.Duration) Option {
	return func(o *options) {
		o.maxAttempts = maxAttempts
		o.initialDelay = initialDelay
	}
}

// NewClient creates a client over the given MCP transport.
func NewClient(transport client.Transport, opts ...Option) *Client {
	o := options{
		timeout:      30 * time.Minute,
		maxAttempts:  3,
		initialDelay: 500 * time.Millisecond,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return &Client{
		mcp: client.New(transport, client.WithTimeout(o.timeout)),
		retryCfg: retry.Config{
			MaxAttempts:   o.maxAttempts,
			InitialDelay:  o.initialDelay,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Initialize performs the MCP initialize handshake.
func (c *Client) Initialize(ctx context.Context) (*client.ServerInfo, error) {
	return c.mcp.Initialize(ctx)
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.mcp.Close()
}

// call invokes a tool once.
func (c *Client) call(ctx context.Context, tool string, args map[string]any) (*client.ToolResult, error) {
	result, err := c.mcp.CallTool(ctx, tool, args)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", tool, err)
	}
	return checkResult(tool, result)
}

// read invokes a read-only tool with retry.
func (c *Client) read(ctx context.Context, tool string, args map[string]any) (*client.ToolResult, error) {
	r := retry.New[*client.ToolResult](c.retryCfg)
	result, err := r.Do(ctx, func(ctx context.Context) (*client.ToolResult, error) {
		return c.mcp.CallTool(ctx, tool, args)
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", tool, err)
	}
	return checkResult(tool, result)
}

func checkResult(tool string, result *client.ToolResult) (*client.ToolResult, error) {
	if result.IsError {
		msg := ""
		if len(result.Content) > 0 {
			msg = result.Content[0].Text
		}
		return nil, &ToolError{Tool: tool, Message: msg}
	}
	return result, nil
}

// unmarshalText extracts Content[0].Text from a tool result and unmarshals it as JSON.
func unmarshalText[T any](result *client.ToolResult) (T, error) {
	var v T
	text, err := textResult(result)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return v, fmt.Errorf("unmarshal: %w", err)
	}
	return v, nil
}

// textResult extracts Content[0].Text from a tool result.
func textResult(result *client.ToolResult) (string, error) {
	if len(result.Content) == 0 {
		return "", ErrNoContent
	}
	return result.Content[0].Text, nil
}

func readResource[T any](ctx context.Context, c *Client, uri string) (T, error) {
	var v T
	rc, err := c.mcp.ReadResource(ctx, uri)
	if err != nil {
		return v, fmt.Errorf("read %s: %w", uri, err)
	}
	if err := json.Unmarshal([]byte(rc.Text), &v); err != nil {
		return v, fmt.Errorf("unmarshal %s: %w", uri, err)
	}
	return v, nil
}

// --- Schema ---

// GetSchema reads the crew://schema resource.
func (c *Client) GetSchema(ctx context.Context) (*SchemaInfo, error) {
	info, err := readResource[SchemaInfo](ctx, c, "crew://schema")
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Compatible returns nil when the server schema major version matches
// SupportedSchemaMajor.
func (c *Client) Compatible(ctx context.Context) error {
	info, err := c.GetSchema(ctx)
	if err != nil {
		return fmt.Errorf("check compatibility: %w", err)
	}
	if major := majorVersion(info.SchemaVersion); major != SupportedSchemaMajor {
		return fmt.Errorf("incompatible schema: server=%s (major %s), client supports major %s",
			info.SchemaVersion, major, SupportedSchemaMajor)
	}
	return nil
}

func majorVersion(v string) string {
	major, _, _ := strings.Cut(v, ".")
	return major
}

// Agents reads the crew://agents resource.
func (c *Client) Agents(ctx context.Context) ([]AgentInfo, error) {
	return readResource[[]AgentInfo](ctx, c, "crew://agents")
}

// --- Runs ---

// Plan runs the planning stages and returns the plan phase summary.
func (c *Client) Plan(ctx context.Context, request string, edit bool) (string, error) {
	res, err := c.call(ctx, "crew_plan", map[string]any{"request": request, "edit_mode": edit})
	if err != nil {
		return "", err
	}
	return textResult(res)
}

// Code resumes the pending coding stages. An empty request reuses the
// planned one.
func (c *Client) Code(ctx context.Context, request string, edit bool) (string, error) {
	args := map[string]any{"edit_mode": edit}
	if request != "" {
		args["request"] = request
	}
	res, err := c.call(ctx, "crew_code", args)
	if err != nil {
		return "", err
	}
	return textResult(res)
}

// Run executes stages as one pipeline and returns each stage's output.
// Nil stages runs the default plan and code stages.
func (c *Client) Run(ctx context.Context, request string, stages []string) (map[string]string, error) {
	args := map[string]any{"request": request}
	if len(stages) > 0 {
		args["stages"] = stages
	}
	res, err := c.call(ctx, "crew_run", args)
	if err != nil {
		return nil, err
	}
	return unmarshalText[map[string]string](res)
}

// Reset backs up and deletes the plan state.
func (c *Client) Reset(ctx context.Context) (string, error) {
	res, err := c.call(ctx, "crew_reset", nil)
	if err != nil {
		return "", err
	}
	return textResult(res)
}

// --- State ---

// Status returns the plan lifecycle and stage lists.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	res, err := c.read(ctx, "crew_status", nil)
	if err != nil {
		return nil, err
	}
	st, err := unmarshalText[Status](res)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// History lists plan state backups, oldest first.
func (c *Client) History(ctx context.Context) ([]string, error) {
	res, err := c.read(ctx, "crew_history", nil)
	if err != nil {
		return nil, err
	}
	return unmarshalText[[]string](res)
}

// --- Feedback ---

// FeedbackSummary returns the Markdown summary across agents.
func (c *Client) FeedbackSummary(ctx context.Context) (string, error) {
	res, err := c.read(ctx, "crew_feedback", nil)
	if err != nil {
		return "", err
	}
	return textResult(res)
}

// Feedback returns an agent's latest record.
func (c *Client) Feedback(ctx context.Context, agent string) (*AgentFeedback, error) {
	res, err := c.read(ctx, "crew_feedback", map[string]any{"agent": agent})
	if err != nil {
		return nil, err
	}
	fb, err := unmarshalText[AgentFeedback](res)
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

// CriticalIssues lists high and critical issues across agents.
func (c *Client) CriticalIssues(ctx context.Context) ([]AgentIssue, error) {
	res, err := c.read(ctx, "crew_critical_issues", nil)
	if err != nil {
		return nil, err
	}
	return unmarshalText[[]AgentIssue](res)
}
