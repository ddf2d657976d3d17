// Package cli — validate.go implements the "stagehand validate" command.
//
// The validate command loads and fully resolves the pipeline file without
// executing anything, then prints the resulting plan. It also performs a
// local port check: any host port a deploy step wants to publish that is
// already bound on this machine is reported as a warning, because the
// deploy would fail at container start time.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/model"
	"github.com/stagehand-dev/stagehand/internal/netprobe"
	"github.com/stagehand-dev/stagehand/internal/pipeline"
)

// validateFlags holds the flag values for the validate command.
type validateFlags struct {
	// file is an explicit pipeline file path.
	file string

	// envFile overrides the pipeline's env_file declaration.
	envFile string
}

// NewValidateCommand creates the "validate" cobra command.
func NewValidateCommand() *cobra.Command {
	flags := &validateFlags{}

	cmd := &cobra.Command{
		Use:   "validate [pipeline-file]",
		Short: "Validate the pipeline file",
		Long: `Load, expand, and validate the pipeline file without executing it.

Prints the resolved execution plan. Host ports that deploy steps want to
publish are probed locally; ports already in use produce a warning but
do not fail validation, since the conflicting process may be the very
container the deploy step will replace.

Examples:
  stagehand validate
  stagehand validate -f deploy/stagehand.yaml --json`,

		// The pipeline file may be given positionally or via --file.
		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				flags.file = args[0]
			}
			return runValidate(flags)
		},
	}

	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "Pipeline file path")
	cmd.Flags().StringVar(&flags.envFile, "env-file", "", "Override the pipeline's env_file")

	return cmd
}

// runValidate is the main logic function for the validate command.
func runValidate(flags *validateFlags) error {
	// Step 1: Load and resolve. Resolve runs the full validation pass,
	// so reaching the next step means the file is valid.
	p, err := loadPipeline(flags.file, flags.envFile)
	if err != nil {
		return err
	}

	// Step 2: Probe the host ports deploy steps want to publish.
	warnings := portWarnings(p)

	// Step 3: Output the plan.
	printValidateResult(p, warnings)
	return nil
}

// portWarnings probes every host port the pipeline's deploy steps would
// publish and returns a warning line for each one already in use.
func portWarnings(p *pipeline.Pipeline) []string {
	prober := netprobe.NewProber()

	var warnings []string
	for _, stage := range p.Stages {
		for _, step := range stage.Steps {
			if step.Kind != model.StepDeploy {
				continue
			}
			for _, pm := range step.Deploy.Ports {
				if !prober.IsPortAvailable(pm.HostPort, pm.Protocol) {
					warnings = append(warnings, fmt.Sprintf(
						"host port %d/%s (deployment %q) is already in use",
						pm.HostPort, pm.Protocol, step.Deploy.Name))
				}
			}
		}
	}
	return warnings
}

// printValidateResult outputs the resolved plan in text or JSON format.
func printValidateResult(p *pipeline.Pipeline, warnings []string) {
	if IsJSONOutput() {
		printValidateResultJSON(p, warnings)
	} else {
		printValidateResultText(p, warnings)
	}
}

// validateStageJSON is the JSON output structure for one stage of the plan.
type validateStageJSON struct {
	Name            string   `json:"name"`
	ContinueOnError bool     `json:"continueOnError,omitempty"`
	Always          bool     `json:"always,omitempty"`
	Steps           []string `json:"steps"`
}

// printValidateResultJSON outputs the plan as structured JSON.
func printValidateResultJSON(p *pipeline.Pipeline, warnings []string) {
	type resultJSON struct {
		Pipeline string              `json:"pipeline"`
		Valid    bool                `json:"valid"`
		Stages   []validateStageJSON `json:"stages"`
		Warnings []string            `json:"warnings"`
	}

	result := resultJSON{
		Pipeline: p.Name,
		Valid:    true,
		Stages:   make([]validateStageJSON, 0, len(p.Stages)),
		// Empty slice instead of nil so JSON output shows [] instead of
		// null when there are no warnings.
		Warnings: append([]string{}, warnings...),
	}

	for _, stage := range p.Stages {
		entry := validateStageJSON{
			Name:            stage.Name,
			ContinueOnError: stage.ContinueOnError,
			Always:          stage.Always,
			Steps:           make([]string, 0, len(stage.Steps)),
		}
		for i := range stage.Steps {
			step := &stage.Steps[i]
			entry.Steps = append(entry.Steps, fmt.Sprintf("%s %s", step.Kind, step.Target()))
		}
		result.Stages = append(result.Stages, entry)
	}

	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// printValidateResultText outputs the plan as human-readable text.
func printValidateResultText(p *pipeline.Pipeline, warnings []string) {
	fmt.Printf("Pipeline %q is valid (%d stages)\n\n", p.Name, len(p.Stages))

	for _, stage := range p.Stages {
		modifiers := ""
		if stage.ContinueOnError {
			modifiers += " [continue_on_error]"
		}
		if stage.Always {
			modifiers += " [always]"
		}
		fmt.Printf("stage %s%s\n", stage.Name, modifiers)

		for i := range stage.Steps {
			step := &stage.Steps[i]
			fmt.Printf("  %s %s\n", step.Kind, step.Target())
		}
	}

	if len(warnings) > 0 {
		fmt.Println()
		for _, w := range warnings {
			fmt.Printf("Warning: %s\n", w)
		}
	}
}
