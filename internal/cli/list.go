// Package cli — list.go implements the "stagehand list" command.
//
// The list command displays all managed deployments by querying Docker
// for containers with the "stagehand.managed-by=stagehand" label.
// Deployments are presented as a text table or JSON array, depending on
// the --json flag.
//
// An optional --status flag allows filtering by deployment lifecycle
// state (running, stopped, exited, or all), and --pipeline filters by
// the pipeline that created the deployment.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stagehand-dev/stagehand/internal/docker"
	"github.com/stagehand-dev/stagehand/internal/model"
)

// listFlags holds the flag values for the list command.
type listFlags struct {
	// status filters deployments by their lifecycle state.
	// Valid values: "running", "stopped", "exited", "all" (default).
	status string

	// pipeline filters deployments by the pipeline that created them.
	pipeline string
}

// NewListCommand creates the "list" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewListCommand() *cobra.Command {
	flags := &listFlags{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all managed deployments",
		Long: `List all deployments managed by stagehand and their status.

Each deployment is shown with its name, the pipeline that created it,
its image, lifecycle status, and published ports.

Examples:
  stagehand list
  stagehand list --status running
  stagehand list --pipeline webapp --json`,

		// No positional arguments are required for the list command.
		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.status, "status", "all",
		"Filter by status: running, stopped, exited, all (default: all)")
	cmd.Flags().StringVar(&flags.pipeline, "pipeline", "",
		"Filter by the pipeline that created the deployment")

	return cmd
}

// runList is the main logic function for the list command.
// It connects to Docker, discovers managed deployments, applies the
// filters, and outputs results in the appropriate format.
func runList(ctx context.Context, flags *listFlags) error {
	// Step 1: Validate the --status flag value.
	statusFilter := flags.status
	if statusFilter != "all" {
		if _, err := model.ParseDeploymentStatus(statusFilter); err != nil {
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("invalid status filter %q: valid values are running, stopped, exited, all", statusFilter), nil)
		}
	}

	// Step 2: Connect to Docker and verify the daemon is available.
	cli, err := docker.NewClient()
	if err != nil {
		return err // NewClient already returns CLIError with ExitDockerNotRunning
	}
	defer func() { _ = cli.Close() }()

	VerboseLog("Connected to Docker daemon")

	// Step 3: List all containers that are managed by stagehand.
	containers, err := docker.ListManagedContainers(ctx, cli)
	if err != nil {
		return err // ListManagedContainers already returns CLIError
	}
	VerboseLog("Found %d managed containers", len(containers))

	// Step 4: Build Deployment domain objects from the container labels.
	var deployments []*model.Deployment
	for _, c := range containers {
		dep, err := docker.BuildDeployment(c)
		if err != nil {
			// Log the error but continue processing other deployments.
			// A single container with corrupted labels should not prevent
			// listing the rest.
			VerboseLog("Warning: skipping container %q: %v", c.ContainerName, err)
			continue
		}
		deployments = append(deployments, dep)
	}

	// Step 5: Sort deployments alphabetically by name for consistent output.
	sort.Slice(deployments, func(i, j int) bool {
		return deployments[i].Name < deployments[j].Name
	})

	// Step 6: Apply the filters.
	deployments = filterDeployments(deployments, statusFilter, flags.pipeline)

	// Step 7: Output results in the appropriate format.
	printListResult(deployments)
	return nil
}

// filterDeployments applies the --status and --pipeline filters.
func filterDeployments(deployments []*model.Deployment, status, pipelineName string) []*model.Deployment {
	filtered := make([]*model.Deployment, 0, len(deployments))
	for _, dep := range deployments {
		if status != "all" && dep.Status.String() != status {
			continue
		}
		if pipelineName != "" && dep.Pipeline != pipelineName {
			continue
		}
		filtered = append(filtered, dep)
	}
	return filtered
}

// printListResult outputs the list of deployments in text or JSON format,
// depending on the global --json flag.
func printListResult(deployments []*model.Deployment) {
	if IsJSONOutput() {
		printListResultJSON(deployments)
	} else {
		printListResultText(deployments)
	}
}

// listDeploymentJSON is the JSON output structure for a single deployment
// in the list command.
type listDeploymentJSON struct {
	Name        string   `json:"name"`
	Pipeline    string   `json:"pipeline"`
	Image       string   `json:"image"`
	Status      string   `json:"status"`
	ContainerID string   `json:"containerId"`
	Ports       []string `json:"ports"`
	RunID       string   `json:"runId,omitempty"`
}

// printListResultJSON outputs the deployment list as structured JSON.
// The top-level key is "deployments" containing an array of objects.
func printListResultJSON(deployments []*model.Deployment) {
	type resultJSON struct {
		Deployments []listDeploymentJSON `json:"deployments"`
	}

	result := resultJSON{
		// Use an empty slice instead of nil to ensure JSON output shows []
		// instead of null when no deployments are found.
		Deployments: make([]listDeploymentJSON, 0, len(deployments)),
	}

	for _, dep := range deployments {
		entry := listDeploymentJSON{
			Name:        dep.Name,
			Pipeline:    dep.Pipeline,
			Image:       dep.Image,
			Status:      dep.Status.String(),
			ContainerID: dep.ContainerID,
			Ports:       make([]string, 0, len(dep.Ports)),
			RunID:       dep.RunID,
		}
		for _, pm := range dep.Ports {
			entry.Ports = append(entry.Ports, pm.String())
		}
		result.Deployments = append(result.Deployments, entry)
	}

	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// printListResultText outputs the deployment list as a human-readable
// text table with aligned columns.
//
// The table format is:
//
//	NAME       PIPELINE   IMAGE           STATUS    PORTS
//	webapp     webapp     webapp:v1       running   8501:8501
//	worker     webapp     worker:v1       stopped   -
func printListResultText(deployments []*model.Deployment) {
	if len(deployments) == 0 {
		fmt.Println("No managed deployments found.")
		return
	}

	// Print header row.
	fmt.Printf("%-20s %-15s %-30s %-10s %s\n",
		"NAME", "PIPELINE", "IMAGE", "STATUS", "PORTS")

	for _, dep := range deployments {
		// Print one row per deployment with fixed-width columns.
		fmt.Printf("%-20s %-15s %-30s %-10s %s\n",
			dep.Name,
			dep.Pipeline,
			dep.Image,
			dep.Status.String(),
			FormatPortsList(dep.Ports),
		)
	}
}

// FormatPortsList converts a slice of port mappings into a comma-separated
// string in docker -p syntax, sorted by host port. Returns "-" when the
// deployment publishes no ports.
//
// This function is exported for testing purposes (tested in list_test.go).
//
// Example:
//
//	[{HostPort: 8501, ContainerPort: 8501}] → "8501:8501"
//	[]                                       → "-"
func FormatPortsList(ports []model.PortMapping) string {
	if len(ports) == 0 {
		return "-"
	}

	sorted := make([]model.PortMapping, len(ports))
	copy(sorted, ports)
	// Sort numerically by host port so 3000 orders before 15432.
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].HostPort < sorted[j].HostPort
	})

	parts := make([]string, 0, len(sorted))
	for _, pm := range sorted {
		parts = append(parts, pm.String())
	}
	return strings.Join(parts, ",")
}
