// Package cli — prune.go implements the "stagehand prune" command.
//
// The prune command removes unused images from the Docker daemon,
// independent of any pipeline run. By default only dangling (untagged)
// images are removed — the layers left behind when a rebuild retags an
// image. The --all flag widens the prune to every image no container
// references.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/docker"
	"github.com/stagehand-dev/stagehand/internal/model"
)

// pruneFlags holds the flag values for the prune command.
type pruneFlags struct {
	// all widens the prune from dangling images to all unused images.
	all bool
}

// NewPruneCommand creates the "prune" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewPruneCommand() *cobra.Command {
	flags := &pruneFlags{}

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove unused images",
		Long: `Remove unused images from the Docker daemon.

By default only dangling (untagged) images are removed. These are the
layers left behind each time a pipeline rebuild takes over an image tag.
Use --all to also remove tagged images no container references.

Examples:
  stagehand prune
  stagehand prune --all`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.all, "all", false, "Remove all unused images, not just dangling ones")

	return cmd
}

// runPrune is the main logic function for the prune command.
func runPrune(ctx context.Context, flags *pruneFlags) error {
	// Step 1: Connect to Docker daemon.
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	VerboseLog("Connected to Docker daemon")

	// Step 2: Prune. danglingOnly is the inverse of --all.
	report, err := docker.PruneImages(ctx, cli, !flags.all)
	if err != nil {
		return err
	}

	// Step 3: Output the result.
	printPruneResult(report)
	return nil
}

// printPruneResult outputs the prune report in text or JSON format.
func printPruneResult(report model.PruneResult) {
	if IsJSONOutput() {
		result := map[string]interface{}{
			"imagesDeleted":  report.ImagesDeleted,
			"spaceReclaimed": report.SpaceReclaimed,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("Deleted %d images, reclaimed %s\n",
			report.ImagesDeleted, FormatBytes(report.SpaceReclaimed))
	}
}

// FormatBytes renders a byte count with a binary unit suffix.
//
// This function is exported for testing purposes (tested in list_test.go).
//
// Example:
//
//	1536      → "1.5 KiB"
//	0         → "0 B"
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	// The table covers the full uint64 range: 1<<63 is ~8 EiB, so exp
	// never exceeds the last entry.
	suffixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}
	return fmt.Sprintf("%.1f %s", float64(n)/float64(div), suffixes[exp])
}
