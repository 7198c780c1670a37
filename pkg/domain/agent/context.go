package agent

// Mode selects which phase the orchestrator runs for a request.
type Mode string

const (
	ModePlan Mode = "plan"
	ModeCode Mode = "code"
)

// Message is a single turn of prior conversation passed through to prompts.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Context is the per-request input handed to every agent. It is built once by
// the caller and re-wrapped (never mutated) by the pipeline for each stage.
type Context struct {
	// WorkspaceRoot is the target directory for all writes. Empty disables persistence.
	WorkspaceRoot string

	UserRequest         string
	ConversationID      string
	ConversationHistory []Message

	// EditMode asks code-emitting agents to change existing files only.
	EditMode bool
	Mode     Mode

	// PreviousOutputs holds the full output of every earlier stage of the run,
	// keyed by stage id. CompletedStages lists the same ids in execution order.
	PreviousOutputs map[string]string
	CompletedStages []string

	// Stage is the id of the stage currently executing, empty outside a pipeline.
	Stage string

	// Extensions carries caller-specific values without changing this struct.
	Extensions map[string]any
}

// WithStage returns a shallow copy of c positioned at the given stage, with its
// own copies of the accumulated outputs so later stages cannot alias them.
func (c *Context) WithStage(stage string, outputs map[string]string, order []string) *Context {
	next := *c
	next.Stage = stage
	next.PreviousOutputs = make(map[string]string, len(outputs))
	for k, v := range outputs {
		next.PreviousOutputs[k] = v
	}
	next.CompletedStages = append([]string(nil), order...)
	return &next
}

// Extension returns a caller-supplied value.
func (c *Context) Extension(key string) (any, bool) {
	if c.Extensions == nil {
		return nil, false
	}
	v, ok := c.Extensions[key]
	return v, ok
}
