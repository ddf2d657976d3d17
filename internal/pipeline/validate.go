// validate.go implements pipeline validation. Validation runs on the pair
// of raw and resolved forms: structural rules (version, names, emptiness)
// come from the raw schema, while value rules (port uniqueness, restart
// policies) need the resolved specs.
//
// Everything here fails with ExitPipelineInvalid — validation errors are
// always the user's file, never the environment.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/stagehand-dev/stagehand/internal/model"
)

// validRestartPolicies are the engine restart policies a deploy step
// may request.
var validRestartPolicies = map[string]bool{
	"no":             true,
	"always":         true,
	"on-failure":     true,
	"unless-stopped": true,
}

// ValidatePipeline checks a raw+resolved pipeline pair against all
// structural and value rules. Returns a CLIError with ExitPipelineInvalid
// describing the first violation.
func ValidatePipeline(raw *RawPipeline, p *Pipeline) error {
	if raw.Version != SupportedVersion {
		return model.NewCLIError(model.ExitPipelineInvalid,
			fmt.Sprintf("unsupported pipeline version %d (this build supports version %d)", raw.Version, SupportedVersion))
	}

	if err := model.ValidateName(p.Name); err != nil {
		return model.WrapCLIError(model.ExitPipelineInvalid, "invalid pipeline name", err)
	}

	if len(p.Stages) == 0 {
		return model.NewCLIError(model.ExitPipelineInvalid, "pipeline has no stages")
	}

	// Stage names must be unique: they are the handles for the
	// --only-stage/--skip-stage filters and for run summaries.
	seen := make(map[string]bool, len(p.Stages))
	for i := range p.Stages {
		stage := &p.Stages[i]
		rawStage := &raw.Stages[i]

		if stage.Name == "" {
			return model.NewCLIError(model.ExitPipelineInvalid,
				fmt.Sprintf("stage %d has no name", i+1))
		}
		if seen[stage.Name] {
			return model.NewCLIError(model.ExitPipelineInvalid,
				fmt.Sprintf("duplicate stage name %q", stage.Name))
		}
		seen[stage.Name] = true

		if rawStage.When != "" && rawStage.When != "always" {
			return model.NewCLIError(model.ExitPipelineInvalid,
				fmt.Sprintf("stage %q: unsupported when value %q (only \"always\" is supported)", stage.Name, rawStage.When))
		}

		if len(stage.Steps) == 0 {
			return model.NewCLIError(model.ExitPipelineInvalid,
				fmt.Sprintf("stage %q has no steps", stage.Name))
		}

		for j := range stage.Steps {
			if err := validateStep(&stage.Steps[j]); err != nil {
				return model.WrapCLIError(model.ExitPipelineInvalid,
					fmt.Sprintf("stage %q, step %d", stage.Name, j+1), err)
			}
		}
	}

	return nil
}

// validateStep checks one resolved step's required fields and value rules.
func validateStep(step *Step) error {
	switch step.Kind {
	case model.StepBuild:
		if step.Build.Image == "" {
			return fmt.Errorf("build step requires an image tag")
		}
		if step.Build.Context == "" {
			return fmt.Errorf("build step requires a context directory")
		}

	case model.StepPush:
		if step.Push.Image == "" {
			return fmt.Errorf("push step requires an image reference")
		}

	case model.StepDeploy:
		d := step.Deploy
		if d.Image == "" {
			return fmt.Errorf("deploy step requires an image reference")
		}
		if err := model.ValidateName(d.Name); err != nil {
			return fmt.Errorf("deploy step: %w", err)
		}
		if err := model.ValidatePortMappings(d.Ports); err != nil {
			return err
		}
		if d.RestartPolicy != "" && !validRestartPolicies[d.RestartPolicy] {
			return fmt.Errorf("deploy step: invalid restart policy %q (valid: %s)",
				d.RestartPolicy, strings.Join([]string{"no", "always", "on-failure", "unless-stopped"}, ", "))
		}
		if d.WaitForSeconds < 0 {
			return fmt.Errorf("deploy step: wait_for must not be negative")
		}
		if d.WaitForSeconds > 0 && len(d.Ports) == 0 {
			return fmt.Errorf("deploy step: wait_for requires at least one published port")
		}

	case model.StepPrune:
		// No value rules: the single flag is well-formed by construction.

	case model.StepRun:
		if strings.TrimSpace(step.RunCmd.Command) == "" {
			return fmt.Errorf("run step requires a command")
		}

	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}

	return nil
}
