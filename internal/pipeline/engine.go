// engine.go provides the production Engine implementation: a thin
// adapter from pipeline step specs to the docker and registry packages.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/stagehand-dev/stagehand/internal/docker"
	"github.com/stagehand-dev/stagehand/internal/model"
	"github.com/stagehand-dev/stagehand/internal/registry"
)

// DockerEngine implements Engine against a local Docker daemon.
type DockerEngine struct {
	cli *docker.Client
}

// NewDockerEngine returns an Engine backed by the given Docker client.
func NewDockerEngine(cli *docker.Client) *DockerEngine {
	return &DockerEngine{cli: cli}
}

// BuildImage builds an image via the docker CLI.
func (e *DockerEngine) BuildImage(ctx context.Context, spec model.BuildSpec) error {
	return docker.BuildImage(ctx, spec)
}

// PushImage pushes an image to its registry using the local daemon as the
// image source and the default keychain for credentials.
func (e *DockerEngine) PushImage(ctx context.Context, spec model.PushSpec) (string, error) {
	return registry.PushImage(ctx, spec.Image)
}

// Deploy replaces the named container with one running the spec's image.
// All stagehand labels are written onto the new container so later
// list/stop/destroy commands can find it.
func (e *DockerEngine) Deploy(ctx context.Context, spec model.DeploySpec) (string, error) {
	dep := model.Deployment{
		Name:      spec.Name,
		Pipeline:  spec.Pipeline,
		Image:     spec.Image,
		Ports:     spec.Ports,
		RunID:     spec.RunID,
		CreatedAt: time.Now(),
	}
	labels := docker.BuildLabels(&dep)
	return docker.ReplaceContainer(ctx, e.cli, spec, labels)
}

// PruneImages removes unused images from the daemon.
func (e *DockerEngine) PruneImages(ctx context.Context, danglingOnly bool) (model.PruneResult, error) {
	return docker.PruneImages(ctx, e.cli, danglingOnly)
}

// RunCommand runs a shell command step. The command executes through
// `sh -c` so pipeline files can use shell syntax; its combined output is
// surfaced on failure.
func (e *DockerEngine) RunCommand(ctx context.Context, spec model.CommandSpec) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", spec.Command)
	cmd.Dir = spec.Dir
	cmd.Env = os.Environ()
	for k, v := range spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := fmt.Sprintf("command failed: %s", spec.Command)
		if trimmed := strings.TrimSpace(string(out)); trimmed != "" {
			msg = fmt.Sprintf("%s\n%s", msg, trimmed)
		}
		return model.WrapCLIError(model.ExitGeneralError, msg, err)
	}
	return nil
}
