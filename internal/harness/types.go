package harness

import (
	"github.com/roach88/choreo/internal/ir"
	"github.com/roach88/choreo/internal/store"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion holds.
	Pass bool `json:"pass"`

	// RunID is the store run the scenario was recorded under.
	RunID string `json:"run_id"`

	// Trace contains every command the engine emitted, in order, as read
	// back from the store.
	Trace []ir.Command `json:"trace"`

	// Timeline interleaves the scripted signals with the commands.
	// Used for golden comparison.
	Timeline []store.TimelineEvent `json:"-"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// ActiveCount is the number of live performances when the script ended.
	ActiveCount int `json:"active_count"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []ir.Command{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
