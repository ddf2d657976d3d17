// image.go implements image operations for the build and prune steps.
//
// Building delegates to the `docker build` CLI as a child process rather
// than the SDK's ImageBuild endpoint: the SDK requires the caller to tar
// the entire build context and stream it, while the CLI handles context
// upload, .dockerignore, and BuildKit selection exactly the way users'
// own builds do. Pruning uses the SDK directly because it is a single
// filtered API call.
package docker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/filters"

	"github.com/stagehand-dev/stagehand/internal/model"
)

// BuildImage builds a container image by running `docker build` with the
// spec's tag, context, and build arguments. Combined stdout/stderr is
// captured and surfaced in the error on failure, so a broken build shows
// the engine's own diagnostics instead of a bare exit status.
//
// Returns a CLIError with ExitBuildFailed when the build exits non-zero.
func BuildImage(ctx context.Context, spec model.BuildSpec) error {
	args := buildArgs(spec)

	cmd := exec.CommandContext(ctx, "docker", args...)
	// Inherit the caller's environment so DOCKER_HOST, DOCKER_BUILDKIT,
	// and credential helpers behave as they do in the user's terminal.
	cmd.Env = os.Environ()

	output, err := cmd.CombinedOutput()
	if err != nil {
		return model.WrapCLIError(
			model.ExitBuildFailed,
			fmt.Sprintf("docker build failed for %q: %s", spec.Image, strings.TrimSpace(string(output))),
			err,
		)
	}

	return nil
}

// buildArgs constructs the `docker build` argument list from a BuildSpec.
// Split out from BuildImage so the exact CLI invocation is unit-testable
// without a Docker daemon.
func buildArgs(spec model.BuildSpec) []string {
	args := []string{"build", "--tag", spec.Image}

	if spec.Dockerfile != "" {
		args = append(args, "--file", spec.Dockerfile)
	}
	if spec.Pull {
		args = append(args, "--pull")
	}
	if spec.NoCache {
		args = append(args, "--no-cache")
	}

	// Sort build-arg keys for a deterministic argument list. Map iteration
	// order would otherwise make the invocation differ run to run, which
	// breaks log diffing.
	keys := make([]string, 0, len(spec.Args))
	for k := range spec.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--build-arg", k+"="+spec.Args[k])
	}

	// The context directory is always the final argument.
	args = append(args, spec.Context)
	return args
}

// PruneImages removes dangling images via the engine API, mirroring
// `docker image prune -f`. When danglingOnly is false, unused tagged
// images are also removed (`docker image prune -a -f`).
//
// Returns the number of deleted image records and the bytes reclaimed.
func PruneImages(ctx context.Context, cli *Client, danglingOnly bool) (model.PruneResult, error) {
	// The dangling filter value is a string "true"/"false" in the
	// engine's filter grammar.
	pruneFilters := filters.NewArgs(
		filters.Arg("dangling", fmt.Sprintf("%t", danglingOnly)),
	)

	report, err := cli.Inner().ImagesPrune(ctx, pruneFilters)
	if err != nil {
		return model.PruneResult{}, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to prune images",
			err,
		)
	}

	return model.PruneResult{
		ImagesDeleted:  len(report.ImagesDeleted),
		SpaceReclaimed: report.SpaceReclaimed,
	}, nil
}
