package origination

import (
	"context"
	"sync"

	"github.com/loanflow/loanflow/internal/model"
)

// Decision is one persisted decision captured by a Recorder.
type Decision struct {
	RunID   string
	Inputs  model.Inputs
	Outcome model.Outcome
}

// Recorder is an in-memory Persister. It lets EXECUTE runs go through the
// full step sequence without a database.
type Recorder struct {
	mu        sync.Mutex
	decisions []Decision
}

// PersistDecision records the decision.
func (r *Recorder) PersistDecision(_ context.Context, runID string, in model.Inputs, out model.Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, Decision{RunID: runID, Inputs: in, Outcome: out})
	return nil
}

// Decisions returns a copy of everything recorded so far.
func (r *Recorder) Decisions() []Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Decision, len(r.decisions))
	copy(out, r.decisions)
	return out
}
