package planning

// Lifecycle is the project phase inferred from a persisted PlanState.
type Lifecycle string

const (
	NoState                 Lifecycle = "no_state"
	PlanInProgress          Lifecycle = "plan_in_progress"
	PlanCompleteCodePending Lifecycle = "plan_complete_code_pending"
	AllComplete             Lifecycle = "all_complete"
)

// InferLifecycle derives the lifecycle from the state contents. A nil
// state means nothing has been planned yet.
func InferLifecycle(s *PlanState, isCoding CodingClassifier) Lifecycle {
	if s == nil {
		return NoState
	}
	if isCoding == nil {
		isCoding = IsDefaultCodingStep
	}
	codePending := false
	for _, id := range s.PendingSteps {
		if !isCoding(id) {
			return PlanInProgress
		}
		codePending = true
	}
	if codePending {
		return PlanCompleteCodePending
	}
	return AllComplete
}

func (l Lifecycle) String() string { return string(l) }
