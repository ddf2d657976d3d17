// resolve.go turns the raw on-disk pipeline schema into the executable
// form: variables expanded, port specifications parsed, defaults applied,
// and the whole structure validated. A resolved Pipeline is immutable
// input to the executor.
package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/stagehand-dev/stagehand/internal/model"
)

// Pipeline is the fully resolved, validated form of a pipeline file.
type Pipeline struct {
	// Name is the pipeline name.
	Name string

	// Dir is the absolute directory of the pipeline file. Relative build
	// contexts and run-step working directories resolve against it.
	Dir string

	// Stages is the ordered, resolved stage list.
	Stages []Stage
}

// Stage is a resolved pipeline stage.
type Stage struct {
	// Name identifies the stage.
	Name string

	// ContinueOnError makes failures in this stage non-fatal.
	ContinueOnError bool

	// Always makes the stage run even after an earlier fatal failure
	// (the "when: always" modifier).
	Always bool

	// Steps is the ordered, resolved step list.
	Steps []Step
}

// Step is a resolved pipeline step: a kind tag plus exactly one populated
// spec field matching it.
type Step struct {
	Kind model.StepKind

	Build  *model.BuildSpec
	Push   *model.PushSpec
	Deploy *model.DeploySpec
	Prune  *model.PruneSpec
	RunCmd *model.CommandSpec
}

// Target returns a short human-readable description of what the step
// acts on, used in progress output and step results.
func (s *Step) Target() string {
	switch s.Kind {
	case model.StepBuild:
		return s.Build.Image
	case model.StepPush:
		return s.Push.Image
	case model.StepDeploy:
		return s.Deploy.Name
	case model.StepPrune:
		if s.Prune.DanglingOnly {
			return "dangling images"
		}
		return "unused images"
	case model.StepRun:
		return s.RunCmd.Command
	default:
		return string(s.Kind)
	}
}

// Resolve expands and validates a raw pipeline into executable form.
//
// path is the pipeline file path (its directory anchors relative paths);
// envFileOverride, when non-empty, replaces the pipeline's env_file
// declaration. Resolution fails with ExitPipelineInvalid on any schema,
// expansion, or validation error.
func Resolve(raw *RawPipeline, path, envFileOverride string) (*Pipeline, error) {
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, model.WrapCLIError(model.ExitPipelineInvalid,
			"failed to resolve pipeline directory", err)
	}

	table, err := BuildVarTable(raw, dir, envFileOverride)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		Name: raw.Name,
		Dir:  dir,
	}

	for i := range raw.Stages {
		stage, err := resolveStage(&raw.Stages[i], table, raw.Name)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitPipelineInvalid,
				fmt.Sprintf("stage %q", raw.Stages[i].Name), err)
		}
		p.Stages = append(p.Stages, stage)
	}

	if err := ValidatePipeline(raw, p); err != nil {
		return nil, err
	}

	return p, nil
}

// resolveStage expands one raw stage and its steps.
func resolveStage(raw *RawStage, table VarTable, pipelineName string) (Stage, error) {
	stage := Stage{
		Name:            raw.Name,
		ContinueOnError: raw.ContinueOnError,
		Always:          raw.When == "always",
	}

	for i := range raw.Steps {
		step, err := resolveStep(&raw.Steps[i], table, pipelineName)
		if err != nil {
			return Stage{}, fmt.Errorf("step %d: %w", i+1, err)
		}
		stage.Steps = append(stage.Steps, step)
	}

	return stage, nil
}

// resolveStep expands one raw step into its resolved spec.
func resolveStep(raw *RawStep, table VarTable, pipelineName string) (Step, error) {
	kind, err := raw.Kind()
	if err != nil {
		return Step{}, err
	}

	switch kind {
	case model.StepBuild:
		return resolveBuildStep(raw.Build, table)
	case model.StepPush:
		return resolvePushStep(raw.Push, table)
	case model.StepDeploy:
		return resolveDeployStep(raw.Deploy, table, pipelineName)
	case model.StepPrune:
		return resolvePruneStep(raw.Prune), nil
	case model.StepRun:
		return resolveRunStep(raw.Run, table)
	default:
		return Step{}, fmt.Errorf("unsupported step kind %q", kind)
	}
}

func resolveBuildStep(raw *RawBuildStep, table VarTable) (Step, error) {
	image, err := table.Expand(raw.Image)
	if err != nil {
		return Step{}, err
	}
	buildContext, err := table.Expand(raw.Context)
	if err != nil {
		return Step{}, err
	}
	dockerfile, err := table.Expand(raw.Dockerfile)
	if err != nil {
		return Step{}, err
	}
	args, err := table.ExpandMap(raw.Args)
	if err != nil {
		return Step{}, err
	}

	return Step{
		Kind: model.StepBuild,
		Build: &model.BuildSpec{
			Image:      image,
			Context:    buildContext,
			Dockerfile: dockerfile,
			Args:       args,
			Pull:       raw.Pull,
			NoCache:    raw.NoCache,
		},
	}, nil
}

func resolvePushStep(raw *RawPushStep, table VarTable) (Step, error) {
	image, err := table.Expand(raw.Image)
	if err != nil {
		return Step{}, err
	}

	return Step{
		Kind: model.StepPush,
		Push: &model.PushSpec{Image: image},
	}, nil
}

func resolveDeployStep(raw *RawDeployStep, table VarTable, pipelineName string) (Step, error) {
	name, err := table.Expand(raw.Name)
	if err != nil {
		return Step{}, err
	}
	image, err := table.Expand(raw.Image)
	if err != nil {
		return Step{}, err
	}
	portSpecs, err := table.ExpandSlice(raw.Ports)
	if err != nil {
		return Step{}, err
	}
	env, err := table.ExpandMap(raw.Env)
	if err != nil {
		return Step{}, err
	}
	volumes, err := table.ExpandSlice(raw.Volumes)
	if err != nil {
		return Step{}, err
	}

	ports := make([]model.PortMapping, 0, len(portSpecs))
	for _, spec := range portSpecs {
		mapping, err := model.ParsePortMapping(spec)
		if err != nil {
			return Step{}, err
		}
		ports = append(ports, mapping)
	}

	return Step{
		Kind: model.StepDeploy,
		Deploy: &model.DeploySpec{
			Name:           name,
			Pipeline:       pipelineName,
			Image:          image,
			Ports:          ports,
			Env:            env,
			Volumes:        volumes,
			RestartPolicy:  raw.Restart,
			WaitForSeconds: raw.WaitFor,
		},
	}, nil
}

func resolvePruneStep(raw *RawPruneStep) Step {
	// Omitted `dangling` defaults to true: pruning only untagged images
	// is the safe default the original deploy pipelines used.
	danglingOnly := true
	if raw.Dangling != nil {
		danglingOnly = *raw.Dangling
	}

	return Step{
		Kind:  model.StepPrune,
		Prune: &model.PruneSpec{DanglingOnly: danglingOnly},
	}
}

func resolveRunStep(raw *RawRunStep, table VarTable) (Step, error) {
	command, err := table.Expand(raw.Command)
	if err != nil {
		return Step{}, err
	}
	dir, err := table.Expand(raw.Dir)
	if err != nil {
		return Step{}, err
	}
	env, err := table.ExpandMap(raw.Env)
	if err != nil {
		return Step{}, err
	}

	return Step{
		Kind:   model.StepRun,
		RunCmd: &model.CommandSpec{Command: command, Dir: dir, Env: env},
	}, nil
}
