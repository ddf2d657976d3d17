// container.go implements container lifecycle operations for stagehand
// deployments: label-based discovery, status aggregation, and the
// replace-by-name operation that backs the deploy step.
//
// Replacing a container is a four-phase operation: stop the existing
// container if present, remove it, create the new container with the
// deployment's configuration and labels, and start it. Absence of the
// old container is never an error — the deploy step must succeed on a
// first deployment exactly like on a redeployment.
package docker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	// Docker API types for container listing results.
	"github.com/docker/docker/api/types"

	// container package provides Config, HostConfig, and the option
	// structs for container operations.
	"github.com/docker/docker/api/types/container"

	// filters package provides Args for building Docker API query filters.
	"github.com/docker/docker/api/types/filters"

	"github.com/docker/docker/errdefs"

	// nat provides the port set/map types the engine expects for
	// published ports.
	"github.com/docker/go-connections/nat"

	"github.com/stagehand-dev/stagehand/internal/model"
)

// ListManagedContainers queries the Docker daemon for all containers that
// carry the "stagehand.managed-by=stagehand" label. It returns a slice of
// ContainerInfo representing each managed container, including stopped ones.
//
// This is the primary entry point for discovering what deployments
// currently exist. All state is derived from Docker labels rather than
// any external database.
func ListManagedContainers(ctx context.Context, cli *Client) ([]model.ContainerInfo, error) {
	// Filter server-side on the management label; Docker performs the
	// filtering more efficiently than listing everything and filtering here.
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)

	// The All flag includes stopped/exited containers — a stopped
	// deployment is still a deployment.
	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	result := make([]model.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}

	return result, nil
}

// containerToInfo converts a Docker API Container struct to our domain
// ContainerInfo. Pure mapping, no side effects.
//
// The Docker API returns container names with a leading "/" prefix
// (e.g. "/webapp"), which we strip for cleaner display.
func containerToInfo(c types.Container) model.ContainerInfo {
	name := ""
	if len(c.Names) > 0 {
		// The leading "/" is an API artifact, not meaningful to users.
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	return model.ContainerInfo{
		ContainerID:   c.ID,
		ContainerName: name,
		Image:         c.Image,
		State:         c.State,
		Labels:        c.Labels,
	}
}

// FindDeployment looks up a managed deployment by name. The second return
// value reports whether the deployment exists; absence is not an error,
// per the replace-by-name contract.
func FindDeployment(ctx context.Context, cli *Client, name string) (*model.Deployment, bool, error) {
	containers, err := ListManagedContainers(ctx, cli)
	if err != nil {
		return nil, false, err
	}

	for _, c := range containers {
		if c.Labels[LabelName] != name {
			continue
		}
		dep, err := BuildDeployment(c)
		if err != nil {
			return nil, false, model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("failed to parse deployment %q metadata", name), err)
		}
		return dep, true, nil
	}

	return nil, false, nil
}

// BuildDeployment constructs a Deployment domain object from a managed
// container's runtime info. Label parsing supplies the static metadata;
// the container's runtime state supplies the status and container ID.
func BuildDeployment(info model.ContainerInfo) (*model.Deployment, error) {
	dep, err := ParseLabels(info.Labels)
	if err != nil {
		return nil, fmt.Errorf("failed to parse labels for container %q: %w", info.ContainerName, err)
	}

	dep.ContainerID = info.ContainerID
	dep.Status = StatusFromState(info.State)
	return dep, nil
}

// StatusFromState maps a Docker container state string to a
// DeploymentStatus. The engine reports a handful of states; anything that
// is not running is either a clean stop ("created", "paused" are treated
// as stopped) or an exit.
func StatusFromState(state string) model.DeploymentStatus {
	switch state {
	case "running", "restarting":
		return model.StatusRunning
	case "exited", "dead":
		return model.StatusExited
	default:
		// "created", "paused", "removing" — present but not running.
		return model.StatusStopped
	}
}

// ReplaceContainer implements the deploy step's container replacement:
// stop and remove any existing container with the deployment's name
// (tolerating absence), then create and start a new container from the
// spec. Returns the new container's ID.
//
// The stop/remove phase deliberately uses the container NAME rather than
// a previously discovered ID, so a container created outside stagehand
// under the same name is also replaced — matching the behavior of the CI
// pipelines this tool models.
func ReplaceContainer(ctx context.Context, cli *Client, spec model.DeploySpec, labels map[string]string) (string, error) {
	// Phase 1: stop the existing container if one exists. A not-found
	// error means there is nothing to stop — first deployment.
	err := cli.Inner().ContainerStop(ctx, spec.Name, container.StopOptions{})
	if err != nil && !errdefs.IsNotFound(err) {
		return "", model.WrapCLIError(
			model.ExitDeployFailed,
			fmt.Sprintf("failed to stop existing container %q", spec.Name),
			err,
		)
	}

	// Phase 2: remove it. Force handles the case where the stop did not
	// fully land (e.g. a restart policy raced the stop).
	err = cli.Inner().ContainerRemove(ctx, spec.Name, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return "", model.WrapCLIError(
			model.ExitDeployFailed,
			fmt.Sprintf("failed to remove existing container %q", spec.Name),
			err,
		)
	}

	// Phase 3: create the new container.
	exposedPorts, portBindings, err := PortConfig(spec.Ports)
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitDeployFailed,
			fmt.Sprintf("invalid port configuration for deployment %q", spec.Name),
			err,
		)
	}

	config := &container.Config{
		Image:        spec.Image,
		Env:          EnvSlice(spec.Env),
		Labels:       labels,
		ExposedPorts: exposedPorts,
	}

	hostConfig := &container.HostConfig{
		PortBindings: portBindings,
		Binds:        spec.Volumes,
	}
	if spec.RestartPolicy != "" {
		hostConfig.RestartPolicy = container.RestartPolicy{
			Name: container.RestartPolicyMode(spec.RestartPolicy),
		}
	}

	created, err := cli.Inner().ContainerCreate(ctx, config, hostConfig, nil, nil, spec.Name)
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitDeployFailed,
			fmt.Sprintf("failed to create container %q from image %q", spec.Name, spec.Image),
			err,
		)
	}

	// Phase 4: start it. A failed start leaves the created container in
	// place for inspection — removing it here would destroy the evidence
	// the user needs to debug the failure.
	err = cli.Inner().ContainerStart(ctx, created.ID, container.StartOptions{})
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitDeployFailed,
			fmt.Sprintf("failed to start container %q", spec.Name),
			err,
		)
	}

	return created.ID, nil
}

// PortConfig converts the deployment's port mappings into the engine's
// exposed-port set and host binding map. Pure conversion, exported for
// testing.
func PortConfig(mappings []model.PortMapping) (nat.PortSet, nat.PortMap, error) {
	exposed := make(nat.PortSet, len(mappings))
	bindings := make(nat.PortMap, len(mappings))

	for _, pm := range mappings {
		port, err := nat.NewPort(pm.Protocol, strconv.Itoa(pm.ContainerPort))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid container port %d/%s: %w", pm.ContainerPort, pm.Protocol, err)
		}

		exposed[port] = struct{}{}
		bindings[port] = append(bindings[port], nat.PortBinding{
			HostIP:   pm.HostIP,
			HostPort: strconv.Itoa(pm.HostPort),
		})
	}

	return exposed, bindings, nil
}

// EnvSlice converts an environment map to the KEY=VALUE slice form the
// engine expects. Map iteration order is not stable, but the engine does
// not care about env var ordering.
func EnvSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	return result
}

// StopContainer stops a running container by ID or name. The engine sends
// SIGTERM to the container's main process and escalates to SIGKILL after
// its default timeout (typically 10 seconds).
func StopContainer(ctx context.Context, cli *Client, containerID string) error {
	err := cli.Inner().ContainerStop(ctx, containerID, container.StopOptions{})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to stop container %q", containerID),
			err,
		)
	}
	return nil
}

// RemoveContainer removes a container by ID or name. When force is true
// the engine kills a still-running container before removing it.
func RemoveContainer(ctx context.Context, cli *Client, containerID string, force bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force: force,
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}
