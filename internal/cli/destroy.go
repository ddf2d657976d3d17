// Package cli — destroy.go implements the "stagehand destroy" command.
//
// The destroy command removes a deployment entirely: its container is
// stopped (if running) and force-removed. The deployment disappears from
// "stagehand list" because the labels live on the container.
//
// By default, the command prompts for confirmation before proceeding.
// The --force flag skips the confirmation prompt.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/docker"
	"github.com/stagehand-dev/stagehand/internal/model"
)

// destroyFlags holds the flag values for the destroy command.
type destroyFlags struct {
	// force skips the interactive confirmation prompt when true.
	force bool
}

// NewDestroyCommand creates the "destroy" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewDestroyCommand() *cobra.Command {
	flags := &destroyFlags{}

	cmd := &cobra.Command{
		Use:   "destroy <name>",
		Short: "Remove a deployment",
		Long: `Remove a deployment's container completely.

The container is force-removed, running or not. This does not remove
the deployment's image; use "stagehand prune" for image cleanup.

Unless --force is specified, the command prompts for confirmation.

Examples:
  stagehand destroy webapp
  stagehand destroy --force webapp`,

		// Exactly one positional argument (deployment name) is required.
		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDestroy(cmd.Context(), args[0], flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Remove without confirmation")

	return cmd
}

// runDestroy is the main logic function for the destroy command.
// It finds the deployment, optionally prompts for confirmation, and
// removes the container.
func runDestroy(ctx context.Context, name string, flags *destroyFlags) error {
	// Step 1: Connect to Docker daemon.
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	VerboseLog("Connected to Docker daemon")

	// Step 2: Find the target deployment.
	dep, found, err := docker.FindDeployment(ctx, cli, name)
	if err != nil {
		return err
	}
	if !found {
		return model.NewCLIError(model.ExitDeploymentNotFound,
			fmt.Sprintf("deployment %q not found", name))
	}

	VerboseLog("Found deployment %q (container %s, status %s)",
		name, shortContainerID(dep.ContainerID), dep.Status)

	// Step 3: Prompt for confirmation unless --force is specified.
	if !flags.force {
		confirmed, err := promptConfirmation(dep)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to read user input", err)
		}
		if !confirmed {
			return model.NewCLIError(model.ExitUserCancelled, "operation cancelled by user")
		}
	}

	// Step 4: Remove the container. force=true handles containers that
	// are still running without a separate stop round-trip.
	VerboseLog("Removing container %s...", shortContainerID(dep.ContainerID))
	if err := docker.RemoveContainer(ctx, cli, dep.ContainerID, true); err != nil {
		return err
	}

	// Step 5: Output the result.
	printDestroyResult(dep)
	return nil
}

// promptConfirmation asks the user to confirm the destroy operation.
// It reads a single line from stdin and checks for "y" or "yes".
// Returns true if the user confirmed, false otherwise.
func promptConfirmation(dep *model.Deployment) (bool, error) {
	fmt.Printf("About to destroy deployment %q:\n", dep.Name)
	fmt.Printf("  - container %s (%s) will be removed\n", shortContainerID(dep.ContainerID), dep.Image)
	fmt.Print("\nContinue? [y/N] ")

	// Read a line from stdin. bufio.Scanner handles different line
	// endings across platforms (LF on Unix, CRLF on Windows).
	scanner := bufio.NewScanner(os.Stdin)
	if scanner.Scan() {
		answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return answer == "y" || answer == "yes", nil
	}

	// If stdin is closed or an error occurred, treat it as "no".
	if err := scanner.Err(); err != nil {
		return false, err
	}

	return false, nil
}

// printDestroyResult outputs the destroy command result in text or JSON
// format.
func printDestroyResult(dep *model.Deployment) {
	if IsJSONOutput() {
		result := map[string]interface{}{
			"name":        dep.Name,
			"action":      "destroyed",
			"containerId": dep.ContainerID,
			"image":       dep.Image,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("Destroyed deployment %q\n", dep.Name)
	}
}
