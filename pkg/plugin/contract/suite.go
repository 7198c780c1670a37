package contract

import (
	"fmt"

	"github.com/felixgeelhaar/crew/pkg/domain/agent"
	"github.com/felixgeelhaar/crew/pkg/plugin"
)

// ContractSuite runs all contract assertions against a plugin binary.
type ContractSuite struct {
	loader *plugin.Loader
}

// NewContractSuite creates a new contract suite.
func NewContractSuite() *ContractSuite {
	return &ContractSuite{
		loader: plugin.NewLoader(),
	}
}

// SuiteResult aggregates results from running the full contract suite.
type SuiteResult struct {
	Agent   string   `json:"agent"`
	Results []Result `json:"results"`
	Passed  int      `json:"passed"`
	Failed  int      `json:"failed"`
}

// OK reports whether every assertion passed.
func (r *SuiteResult) OK() bool { return r.Failed == 0 }

// RunWithAgent runs the contract suite against an already-loaded agent.
func (s *ContractSuite) RunWithAgent(a agent.Agent) *SuiteResult {
	assertions := []func(agent.Agent) Result{
		AssertID,
		AssertPhase,
		AssertDescription,
		AssertFirstStage,
		AssertLaterStage,
	}

	sr := &SuiteResult{Agent: a.ID()}
	for _, assert := range assertions {
		result := assert(a)
		sr.Results = append(sr.Results, result)
		if result.Passed {
			sr.Passed++
		} else {
			sr.Failed++
		}
	}
	return sr
}

// RunBinary loads a plugin binary and runs the full contract suite.
func (s *ContractSuite) RunBinary(path string) (*SuiteResult, error) {
	defer s.loader.Cleanup()

	a, err := s.loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load plugin: %w", err)
	}

	return s.RunWithAgent(a), nil
}
