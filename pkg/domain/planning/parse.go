package planning

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidPlan is returned when a generated plan does not match the plan schema.
var ErrInvalidPlan = errors.New("invalid plan document")

const planSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["steps"],
  "properties": {
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["agentId"],
        "properties": {
          "agentId": { "type": "string", "minLength": 1 },
          "description": { "type": "string" }
        }
      }
    }
  }
}`

var planSchemaLoader = gojsonschema.NewStringLoader(planSchemaJSON)

// ParsePlan extracts and validates a plan JSON document from model output.
// Surrounding prose and markdown fences are tolerated. A plan without an
// id gets a fresh one.
func ParsePlan(text string) (*Plan, error) {
	payload := extractJSONObject(text)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidPlan)
	}

	result, err := gojsonschema.Validate(planSchemaLoader, gojsonschema.NewStringLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidPlan, strings.Join(msgs, "; "))
	}

	var plan Plan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	return &plan, nil
}

// Filter returns a copy of the plan keeping only steps accepted by keep,
// with duplicate agent ids removed.
func (p *Plan) Filter(keep func(agentID string) bool) *Plan {
	out := &Plan{ID: p.ID}
	seen := make(map[string]bool)
	for _, s := range p.Steps {
		id := strings.TrimSpace(s.AgentID)
		if id == "" || seen[id] || !keep(id) {
			continue
		}
		seen[id] = true
		out.Steps = append(out.Steps, PlanStep{AgentID: id, Description: s.Description})
	}
	return out
}

func extractJSONObject(text string) string {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start == -1 || end <= start {
		return ""
	}
	return strings.TrimSpace(clean[start : end+1])
}
