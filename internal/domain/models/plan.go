package models

// PageTaskResult is the outcome of one page task inside a generation plan.
type PageTaskResult struct {
	PageID  string `json:"page_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// PlanResult is the externally-reported completion signal for a generation
// plan. The plan executor may deliver it more than once (retries, racing
// workers); the trigger deduplicates on PlanID.
type PlanResult struct {
	PlanID    string           `json:"plan_id"`
	SessionID string           `json:"session_id"`
	Tasks     []PageTaskResult `json:"tasks"`
}

// AllSucceeded reports whether every page task in the plan succeeded.
// A plan with no tasks did not produce anything worth snapshotting.
func (r *PlanResult) AllSucceeded() bool {
	if len(r.Tasks) == 0 {
		return false
	}
	for _, t := range r.Tasks {
		if !t.Success {
			return false
		}
	}
	return true
}
