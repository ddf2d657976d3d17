// run.go defines the execution-result types for a pipeline run: the
// per-step and per-stage outcome records and the stage status state
// machine that governs them.
//
// A pipeline run is strictly sequential, so the state machine is small:
// stages move Pending → Running → (Succeeded | Failed), and stages after
// a fatal failure move Pending → Skipped. A stage can never re-enter a
// prior state. Validated transitions make executor bugs observable instead
// of producing silently inconsistent summaries.
package model

import (
	"fmt"
	"time"
)

// StageStatus represents the execution state of a single pipeline stage
// (and, reused, of a single step within a stage).
type StageStatus string

const (
	// StagePending indicates the stage has not started yet.
	StagePending StageStatus = "pending"

	// StageRunning indicates the stage is currently executing.
	StageRunning StageStatus = "running"

	// StageSucceeded indicates every step in the stage succeeded.
	StageSucceeded StageStatus = "succeeded"

	// StageFailed indicates at least one step in the stage failed.
	// The stage may still count as non-fatal if it was declared
	// continue_on_error in the pipeline file.
	StageFailed StageStatus = "failed"

	// StageSkipped indicates the stage never ran because an earlier
	// stage failed fatally. Stages marked "when: always" are exempt
	// from skipping.
	StageSkipped StageStatus = "skipped"
)

// String returns the string representation of StageStatus.
func (s StageStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status is a finished state.
func (s StageStatus) IsTerminal() bool {
	switch s {
	case StageSucceeded, StageFailed, StageSkipped:
		return true
	default:
		return false
	}
}

// allowedStageTransition reports whether moving from one status to another
// is a legal state machine transition.
func allowedStageTransition(from, to StageStatus) bool {
	switch from {
	case StagePending:
		return to == StageRunning || to == StageSkipped
	case StageRunning:
		return to == StageSucceeded || to == StageFailed
	default:
		// Terminal states have no outgoing transitions.
		return false
	}
}

// StepResult records the outcome of a single executed step.
type StepResult struct {
	// Kind is the step type (build, push, deploy, prune, run).
	Kind StepKind `json:"kind"`

	// Target is a short human-readable description of what the step acted
	// on: the image tag for build/push, the deployment name for deploy,
	// the command for run, "dangling images" for prune.
	Target string `json:"target"`

	// Status is the terminal status of the step.
	Status StageStatus `json:"status"`

	// Error holds the failure message when Status is failed.
	Error string `json:"error,omitempty"`

	// Duration is the wall-clock time the step took.
	Duration time.Duration `json:"duration"`
}

// StageResult records the outcome of a single pipeline stage, including
// the results of every step that ran within it.
type StageResult struct {
	// Name is the stage name from the pipeline file.
	Name string `json:"name"`

	// Status is the current (or terminal) status of the stage.
	Status StageStatus `json:"status"`

	// ContinueOnError mirrors the stage's continue_on_error setting so
	// the summary can distinguish tolerated failures from fatal ones.
	ContinueOnError bool `json:"continueOnError,omitempty"`

	// Steps holds the per-step results in execution order.
	// Empty for skipped stages.
	Steps []StepResult `json:"steps,omitempty"`

	// Duration is the wall-clock time the stage took. Zero for skipped stages.
	Duration time.Duration `json:"duration"`
}

// Transition moves the stage to a new status, validating the transition
// against the state machine. The executor calls this for every status
// change; an error here indicates an executor bug, not a user error.
func (r *StageResult) Transition(to StageStatus) error {
	if !allowedStageTransition(r.Status, to) {
		return fmt.Errorf("invalid stage transition for %q: %s → %s", r.Name, r.Status, to)
	}
	r.Status = to
	return nil
}

// RunRecord is the complete summary of one pipeline run. It is the JSON
// document printed by `stagehand run --json` and the source for the text
// summary table.
type RunRecord struct {
	// RunID uniquely identifies this run. It is also written into the
	// stagehand.run-id label of any deployment the run produces, linking
	// a running container back to the run that created it.
	RunID string `json:"runId"`

	// Pipeline is the pipeline name from the pipeline file.
	Pipeline string `json:"pipeline"`

	// StartedAt and FinishedAt bound the run in wall-clock time.
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	// Stages holds the per-stage results in pipeline order. Every stage
	// in the pipeline appears here exactly once, including skipped ones.
	Stages []StageResult `json:"stages"`

	// Succeeded is true when no stage failed fatally. Stages that failed
	// under continue_on_error do not clear this flag.
	Succeeded bool `json:"succeeded"`
}

// Duration returns the total wall-clock duration of the run.
func (r *RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedStages returns the names of all stages whose terminal status is
// failed, regardless of whether the failure was tolerated.
func (r *RunRecord) FailedStages() []string {
	var failed []string
	for _, st := range r.Stages {
		if st.Status == StageFailed {
			failed = append(failed, st.Name)
		}
	}
	return failed
}
