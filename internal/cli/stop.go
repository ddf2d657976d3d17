// Package cli — stop.go implements the "stagehand stop" command.
//
// The stop command gracefully stops a deployment's container without
// removing it. The container keeps its labels, so it still appears in
// `stagehand list` (as stopped) and the next pipeline run replaces it
// exactly as it would replace a running one.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/docker"
	"github.com/stagehand-dev/stagehand/internal/model"
)

// NewStopCommand creates the "stop" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewStopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop a deployment",
		Long: `Stop a deployment's container without removing it.

The container and its labels are preserved, so the deployment still
shows up in "stagehand list" and can be replaced by a later run.

Examples:
  stagehand stop webapp
  stagehand stop webapp --json`,

		// Exactly one positional argument (deployment name) is required.
		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd.Context(), args[0])
		},
	}

	return cmd
}

// runStop is the main logic function for the stop command.
func runStop(ctx context.Context, name string) error {
	// Step 1: Connect to Docker daemon.
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	VerboseLog("Connected to Docker daemon")

	// Step 2: Find the target deployment by its labels.
	dep, found, err := docker.FindDeployment(ctx, cli, name)
	if err != nil {
		return err
	}
	if !found {
		return model.NewCLIError(model.ExitDeploymentNotFound,
			fmt.Sprintf("deployment %q not found", name))
	}

	// Step 3: Stop the container. Stopping an already-stopped container
	// is a no-op for the daemon, so no status pre-check is needed.
	VerboseLog("Stopping container %s for deployment %q...", shortContainerID(dep.ContainerID), name)
	if err := docker.StopContainer(ctx, cli, dep.ContainerID); err != nil {
		return err
	}

	// Step 4: Output the result.
	printStopResult(name, dep.ContainerID)
	return nil
}

// printStopResult outputs the stop command result in text or JSON format.
func printStopResult(name, containerID string) {
	if IsJSONOutput() {
		result := map[string]interface{}{
			"name":        name,
			"action":      "stopped",
			"containerId": containerID,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("Stopped deployment %q\n", name)
	}
}

// shortContainerID abbreviates a container ID for log output.
func shortContainerID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
