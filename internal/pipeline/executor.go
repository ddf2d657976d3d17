// executor.go drives the execution of a resolved pipeline: stages run
// strictly in file order, steps run strictly in stage order, and the
// whole run is summarized in a model.RunRecord.
//
// The executor is agnostic of Docker: it speaks to an Engine interface,
// which the CLI satisfies with DockerEngine and tests satisfy with a
// recording fake.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/stagehand-dev/stagehand/internal/model"
)

// Engine performs the side-effecting operations the pipeline steps need.
type Engine interface {
	// BuildImage builds a container image from a local context.
	BuildImage(ctx context.Context, spec model.BuildSpec) error

	// PushImage pushes an image to its registry and returns its digest.
	PushImage(ctx context.Context, spec model.PushSpec) (string, error)

	// Deploy replaces the named container with one running the given
	// image and returns the new container's ID.
	Deploy(ctx context.Context, spec model.DeploySpec) (string, error)

	// PruneImages removes unused images from the engine.
	PruneImages(ctx context.Context, danglingOnly bool) (model.PruneResult, error)

	// RunCommand runs an arbitrary shell command.
	RunCommand(ctx context.Context, spec model.CommandSpec) error
}

// Prober checks network reachability of freshly deployed containers.
type Prober interface {
	// WaitReachable blocks until host:port accepts a TCP connection or
	// the timeout elapses.
	WaitReachable(ctx context.Context, host string, port int, timeout time.Duration) error
}

// ExecuteOptions tunes a single pipeline run.
type ExecuteOptions struct {
	// OnlyStages, when non-empty, restricts the run to the named stages.
	// Stages not listed are recorded as skipped.
	OnlyStages []string

	// SkipStages names stages to leave out of the run. They are recorded
	// as skipped.
	SkipStages []string

	// DryRun resolves and plans but performs no engine calls. Every
	// selected stage is recorded as skipped.
	DryRun bool
}

// Executor runs resolved pipelines against an Engine.
type Executor struct {
	engine Engine
	prober Prober

	// progress receives one line per stage and step as the run advances.
	// Defaults to io.Discard.
	progress io.Writer

	// now is swappable in tests.
	now func() time.Time
}

// NewExecutor returns an Executor backed by the given engine and prober.
// progress may be nil to discard progress output.
func NewExecutor(engine Engine, prober Prober, progress io.Writer) *Executor {
	if progress == nil {
		progress = io.Discard
	}
	return &Executor{
		engine:   engine,
		prober:   prober,
		progress: progress,
		now:      time.Now,
	}
}

// Execute runs the pipeline and returns its run record.
//
// The record always covers every stage, including skipped ones. The
// returned error is the first fatal step failure (a failure in a stage
// without continue_on_error); stages marked "when: always" still run
// after a fatal failure. A non-nil error always accompanies a record
// with Succeeded set to false.
func (e *Executor) Execute(ctx context.Context, p *Pipeline, opts ExecuteOptions) (*model.RunRecord, error) {
	record := &model.RunRecord{
		RunID:     uuid.NewString(),
		Pipeline:  p.Name,
		StartedAt: e.now(),
		Stages:    make([]model.StageResult, len(p.Stages)),
		Succeeded: true,
	}
	for i, stage := range p.Stages {
		record.Stages[i] = model.StageResult{
			Name:            stage.Name,
			Status:          model.StagePending,
			ContinueOnError: stage.ContinueOnError,
		}
	}

	var fatal error
	for i := range p.Stages {
		stage := &p.Stages[i]
		result := &record.Stages[i]

		if !stageSelected(stage.Name, opts) || opts.DryRun || (fatal != nil && !stage.Always) {
			if err := result.Transition(model.StageSkipped); err != nil {
				return record, err
			}
			fmt.Fprintf(e.progress, "stage %s: skipped\n", stage.Name)
			continue
		}

		if err := e.runStage(ctx, p, stage, result, record.RunID); err != nil {
			if !stage.ContinueOnError && fatal == nil {
				fatal = err
			}
		}
	}

	record.FinishedAt = e.now()
	record.Succeeded = fatal == nil
	return record, fatal
}

// stageSelected applies the --only-stage/--skip-stage filters.
func stageSelected(name string, opts ExecuteOptions) bool {
	for _, skip := range opts.SkipStages {
		if skip == name {
			return false
		}
	}
	if len(opts.OnlyStages) == 0 {
		return true
	}
	for _, only := range opts.OnlyStages {
		if only == name {
			return true
		}
	}
	return false
}

// runStage executes every step of one stage, recording per-step results.
// The stage fails on its first failing step; later steps in the stage do
// not run.
func (e *Executor) runStage(ctx context.Context, p *Pipeline, stage *Stage, result *model.StageResult, runID string) error {
	if err := result.Transition(model.StageRunning); err != nil {
		return err
	}
	fmt.Fprintf(e.progress, "stage %s: running\n", stage.Name)
	start := e.now()

	var stageErr error
	for i := range stage.Steps {
		step := &stage.Steps[i]
		stepStart := e.now()
		err := e.runStep(ctx, p, step, runID)

		stepResult := model.StepResult{
			Kind:     step.Kind,
			Target:   step.Target(),
			Status:   model.StageSucceeded,
			Duration: e.now().Sub(stepStart),
		}
		if err != nil {
			stepResult.Status = model.StageFailed
			stepResult.Error = err.Error()
			stageErr = err
		}
		result.Steps = append(result.Steps, stepResult)
		fmt.Fprintf(e.progress, "  step %s %s: %s\n", step.Kind, step.Target(), stepResult.Status)

		if err != nil {
			break
		}
	}

	result.Duration = e.now().Sub(start)
	to := model.StageSucceeded
	if stageErr != nil {
		to = model.StageFailed
	}
	if err := result.Transition(to); err != nil {
		return err
	}
	fmt.Fprintf(e.progress, "stage %s: %s\n", stage.Name, result.Status)
	return stageErr
}

// runStep dispatches one step to the engine.
func (e *Executor) runStep(ctx context.Context, p *Pipeline, step *Step, runID string) error {
	switch step.Kind {
	case model.StepBuild:
		spec := *step.Build
		if !filepath.IsAbs(spec.Context) {
			spec.Context = filepath.Join(p.Dir, spec.Context)
		}
		if spec.Dockerfile != "" && !filepath.IsAbs(spec.Dockerfile) {
			spec.Dockerfile = filepath.Join(p.Dir, spec.Dockerfile)
		}
		return e.engine.BuildImage(ctx, spec)

	case model.StepPush:
		digest, err := e.engine.PushImage(ctx, *step.Push)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.progress, "  pushed %s (%s)\n", step.Push.Image, digest)
		return nil

	case model.StepDeploy:
		spec := *step.Deploy
		spec.RunID = runID
		id, err := e.engine.Deploy(ctx, spec)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.progress, "  deployed %s (%s)\n", spec.Name, shortID(id))
		return e.waitForDeployment(ctx, spec)

	case model.StepPrune:
		report, err := e.engine.PruneImages(ctx, step.Prune.DanglingOnly)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.progress, "  pruned %d images, reclaimed %d bytes\n", report.ImagesDeleted, report.SpaceReclaimed)
		return nil

	case model.StepRun:
		spec := *step.RunCmd
		switch {
		case spec.Dir == "":
			spec.Dir = p.Dir
		case !filepath.IsAbs(spec.Dir):
			spec.Dir = filepath.Join(p.Dir, spec.Dir)
		}
		return e.engine.RunCommand(ctx, spec)

	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

// waitForDeployment performs the post-deploy smoke check: when the deploy
// step declares wait_for, the first published TCP port must accept a
// connection within that many seconds.
func (e *Executor) waitForDeployment(ctx context.Context, spec model.DeploySpec) error {
	if spec.WaitForSeconds <= 0 || e.prober == nil {
		return nil
	}
	port, ok := firstTCPPort(spec.Ports)
	if !ok {
		return nil
	}
	timeout := time.Duration(spec.WaitForSeconds) * time.Second
	if err := e.prober.WaitReachable(ctx, "", port, timeout); err != nil {
		return model.WrapCLIError(model.ExitDeployFailed,
			fmt.Sprintf("deployment %q did not become reachable on port %d", spec.Name, port), err)
	}
	return nil
}

// firstTCPPort returns the first TCP host port in the mapping list.
func firstTCPPort(ports []model.PortMapping) (int, bool) {
	for _, p := range ports {
		if p.Protocol == "" || p.Protocol == "tcp" {
			return p.HostPort, true
		}
	}
	return 0, false
}

// shortID abbreviates a container ID for progress output.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
