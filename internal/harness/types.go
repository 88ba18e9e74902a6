package harness

import "github.com/roach88/cropper/internal/crop"

// Trace event kinds added by the harness around the gesture kinds.
const (
	EventMount     = "mount"
	EventPersisted = "persisted"
)

// TraceEvent records one step of a scenario run.
type TraceEvent struct {
	Seq       int64           `json:"seq"`
	Kind      string          `json:"kind"`
	DX        float64         `json:"dx,omitempty"`
	DY        float64         `json:"dy,omitempty"`
	Factor    float64         `json:"factor,omitempty"`
	State     string          `json:"state,omitempty"`
	Transform *crop.Transform `json:"transform,omitempty"`
	Output    string          `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses match.
	Pass bool `json:"pass"`

	// Trace contains the mount, every step and the persisted session.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the live transform after the last step.
	Final *crop.Transform `json:"final,omitempty"`

	// Persisted is the stored session after the last step.
	Persisted *crop.Transform `json:"persisted,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
