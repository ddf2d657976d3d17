// Package cli — run.go implements the "stagehand run" command.
//
// The run command is the heart of stagehand: it loads the pipeline file,
// expands variables, validates the result, and executes every stage in
// order against the local Docker daemon. After the run it prints a
// per-stage summary as a text table or as the run record JSON.
//
// The --only-stage and --skip-stage flags narrow the run to a subset of
// stages; --dry-run resolves and validates without touching Docker.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/docker"
	"github.com/stagehand-dev/stagehand/internal/model"
	"github.com/stagehand-dev/stagehand/internal/netprobe"
	"github.com/stagehand-dev/stagehand/internal/pipeline"
)

// runCmdFlags holds the flag values for the run command.
type runCmdFlags struct {
	// file is an explicit pipeline file path. When empty the default
	// locations (stagehand.yaml and friends) are probed.
	file string

	// envFile overrides the pipeline's env_file declaration.
	envFile string

	// onlyStages restricts the run to the named stages.
	onlyStages []string

	// skipStages excludes the named stages from the run.
	skipStages []string

	// dryRun resolves and validates but performs no Docker operations.
	dryRun bool
}

// NewRunCommand creates the "run" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewRunCommand() *cobra.Command {
	flags := &runCmdFlags{}

	cmd := &cobra.Command{
		Use:   "run [pipeline-file]",
		Short: "Run the pipeline",
		Long: `Run the pipeline defined in the pipeline file.

Stages execute strictly in file order. A failing stage stops the run
unless it is marked continue_on_error; stages marked "when: always"
run even after a failure, which is how cleanup stages are expressed.

Examples:
  stagehand run
  stagehand run -f deploy/stagehand.yaml
  stagehand run --only-stage build --only-stage deploy
  stagehand run --dry-run`,

		// The pipeline file may be given positionally or via --file.
		Args: cobra.MaximumNArgs(1),

		// RunE returns an error to the root command's error handler.
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				flags.file = args[0]
			}
			return runRun(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "Pipeline file path")
	cmd.Flags().StringVar(&flags.envFile, "env-file", "", "Override the pipeline's env_file")
	cmd.Flags().StringArrayVar(&flags.onlyStages, "only-stage", nil, "Run only the named stage (repeatable)")
	cmd.Flags().StringArrayVar(&flags.skipStages, "skip-stage", nil, "Skip the named stage (repeatable)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Resolve and validate without executing")

	return cmd
}

// runRun is the main logic function for the run command.
func runRun(ctx context.Context, flags *runCmdFlags) error {
	// Step 1: Load, expand, and validate the pipeline file.
	p, err := loadPipeline(flags.file, flags.envFile)
	if err != nil {
		return err
	}
	VerboseLog("Loaded pipeline %q with %d stages", p.Name, len(p.Stages))

	opts := pipeline.ExecuteOptions{
		OnlyStages: flags.onlyStages,
		SkipStages: flags.skipStages,
		DryRun:     flags.dryRun,
	}

	// Step 2: Build the engine. A dry run never talks to Docker, so the
	// daemon does not need to be reachable for it.
	var engine pipeline.Engine
	if !flags.dryRun {
		cli, err := docker.NewClient()
		if err != nil {
			return err // NewClient already returns CLIError with ExitDockerNotRunning
		}
		// defer ensures the Docker client is closed when this function
		// returns, releasing the underlying HTTP connection.
		defer func() { _ = cli.Close() }()

		// Verify the daemon actually responds before starting a run that
		// would otherwise fail halfway through its first stage.
		if err := cli.Ping(ctx); err != nil {
			return err
		}
		VerboseLog("Connected to Docker daemon")

		engine = pipeline.NewDockerEngine(cli)
	}

	// Step 3: For a dry run, print the resolved plan. The executor still
	// runs to produce a run record, but marks every stage skipped.
	if flags.dryRun && !IsJSONOutput() {
		fmt.Printf("Dry run — execution plan for pipeline %q:\n", p.Name)
		for _, stage := range p.Stages {
			fmt.Printf("stage %s\n", stage.Name)
			for i := range stage.Steps {
				step := &stage.Steps[i]
				fmt.Printf("  %s %s\n", step.Kind, step.Target())
			}
		}
	}

	// Step 4: Execute. Progress lines go to stderr so stdout stays clean
	// for the summary (text or JSON).
	exec := pipeline.NewExecutor(engine, netprobe.NewProber(), os.Stderr)
	record, runErr := exec.Execute(ctx, p, opts)

	// Step 5: Print the summary. The summary is printed even for failed
	// runs — the per-stage breakdown is most useful exactly then.
	printRunResult(record)

	return runErr
}

// loadPipeline locates, loads, and resolves the pipeline file. Shared by
// the run and validate commands.
func loadPipeline(explicitPath, envFile string) (*pipeline.Pipeline, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to determine working directory", err)
	}

	path, err := pipeline.FindPipelineFile(cwd, explicitPath)
	if err != nil {
		return nil, err
	}
	VerboseLog("Using pipeline file %s", path)

	raw, err := pipeline.LoadPipelineFile(path)
	if err != nil {
		return nil, err
	}

	return pipeline.Resolve(raw, path, envFile)
}

// printRunResult outputs the run record in text or JSON format,
// depending on the global --json flag.
func printRunResult(record *model.RunRecord) {
	if IsJSONOutput() {
		// The run record marshals directly; no separate output struct is
		// needed because model.RunRecord carries json tags for exactly
		// this purpose.
		data, _ := json.MarshalIndent(record, "", "  ")
		fmt.Println(string(data))
	} else {
		printRunResultText(record)
	}
}

// printRunResultText outputs the run summary as a human-readable table.
//
// The table format is:
//
//	STAGE      STATUS      STEPS  DURATION
//	build      succeeded   2      41.2s
//	deploy     succeeded   1      3.1s
//	cleanup    skipped     0      -
func printRunResultText(record *model.RunRecord) {
	fmt.Printf("\nPipeline %q %s (run %s, %s)\n\n",
		record.Pipeline, runOutcomeWord(record), record.RunID, formatDuration(record.Duration()))

	fmt.Printf("%-20s %-11s %-6s %s\n", "STAGE", "STATUS", "STEPS", "DURATION")
	for _, stage := range record.Stages {
		fmt.Printf("%-20s %-11s %-6d %s\n",
			stage.Name,
			stage.Status.String(),
			len(stage.Steps),
			formatStageDuration(stage),
		)
	}

	if failed := record.FailedStages(); len(failed) > 0 {
		fmt.Println()
		for _, stage := range record.Stages {
			if stage.Status != model.StageFailed {
				continue
			}
			for _, step := range stage.Steps {
				if step.Status == model.StageFailed {
					fmt.Printf("stage %q, %s %s: %s\n", stage.Name, step.Kind, step.Target, step.Error)
				}
			}
		}
	}
}

// runOutcomeWord returns the one-word outcome for the summary headline.
func runOutcomeWord(record *model.RunRecord) string {
	if record.Succeeded {
		return "succeeded"
	}
	return "failed"
}

// formatStageDuration renders a stage duration, using "-" for stages
// that never ran.
func formatStageDuration(stage model.StageResult) string {
	if stage.Status == model.StageSkipped {
		return "-"
	}
	return formatDuration(stage.Duration)
}

// formatDuration rounds a duration for display. Sub-second precision
// beyond 100ms is noise in a pipeline summary.
func formatDuration(d time.Duration) string {
	return d.Round(100 * time.Millisecond).String()
}
