// Package docker — container_test.go contains unit tests for the pure
// conversion helpers used by container operations: state-to-status
// mapping, port configuration, env slice conversion, and build argument
// construction. These tests require no Docker daemon.
package docker

import (
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-dev/stagehand/internal/model"
)

// TestStatusFromState verifies the Docker state → deployment status mapping.
func TestStatusFromState(t *testing.T) {
	tests := []struct {
		state string
		want  model.DeploymentStatus
	}{
		{state: "running", want: model.StatusRunning},
		{state: "restarting", want: model.StatusRunning},
		{state: "exited", want: model.StatusExited},
		{state: "dead", want: model.StatusExited},
		{state: "created", want: model.StatusStopped},
		{state: "paused", want: model.StatusStopped},
		{state: "removing", want: model.StatusStopped},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFromState(tt.state))
		})
	}
}

// TestPortConfig verifies conversion of port mappings into the engine's
// exposed-port set and host binding map.
func TestPortConfig(t *testing.T) {
	exposed, bindings, err := PortConfig([]model.PortMapping{
		{HostPort: 18501, ContainerPort: 8501, Protocol: "tcp"},
		{HostIP: "127.0.0.1", HostPort: 5000, ContainerPort: 5000, Protocol: "udp"},
	})
	require.NoError(t, err)

	tcpPort := nat.Port("8501/tcp")
	udpPort := nat.Port("5000/udp")

	assert.Contains(t, exposed, tcpPort)
	assert.Contains(t, exposed, udpPort)
	assert.Len(t, exposed, 2)

	require.Len(t, bindings[tcpPort], 1)
	assert.Equal(t, nat.PortBinding{HostPort: "18501"}, bindings[tcpPort][0])

	require.Len(t, bindings[udpPort], 1)
	assert.Equal(t, nat.PortBinding{HostIP: "127.0.0.1", HostPort: "5000"}, bindings[udpPort][0])
}

// TestPortConfigEmpty verifies that no mappings produce empty (but usable)
// engine structures.
func TestPortConfigEmpty(t *testing.T) {
	exposed, bindings, err := PortConfig(nil)
	require.NoError(t, err)
	assert.Empty(t, exposed)
	assert.Empty(t, bindings)
}

// TestEnvSlice verifies the map → KEY=VALUE slice conversion.
func TestEnvSlice(t *testing.T) {
	t.Run("empty map yields nil", func(t *testing.T) {
		assert.Nil(t, EnvSlice(nil))
		assert.Nil(t, EnvSlice(map[string]string{}))
	})

	t.Run("entries joined with equals", func(t *testing.T) {
		got := EnvSlice(map[string]string{
			"PORT":  "8501",
			"DEBUG": "false",
		})
		assert.ElementsMatch(t, []string{"PORT=8501", "DEBUG=false"}, got)
	})
}

// TestBuildArgs verifies the docker build argument list, including the
// deterministic ordering of --build-arg flags.
func TestBuildArgs(t *testing.T) {
	t.Run("minimal spec", func(t *testing.T) {
		got := buildArgs(model.BuildSpec{
			Image:   "mindwell-app:latest",
			Context: ".",
		})
		assert.Equal(t, []string{"build", "--tag", "mindwell-app:latest", "."}, got)
	})

	t.Run("full spec with sorted build args", func(t *testing.T) {
		got := buildArgs(model.BuildSpec{
			Image:      "mindwell-app:v2",
			Context:    "./app",
			Dockerfile: "docker/Dockerfile.prod",
			Pull:       true,
			NoCache:    true,
			Args: map[string]string{
				"VERSION": "2.0",
				"BASE":    "python:3.12-slim",
			},
		})
		assert.Equal(t, []string{
			"build", "--tag", "mindwell-app:v2",
			"--file", "docker/Dockerfile.prod",
			"--pull",
			"--no-cache",
			"--build-arg", "BASE=python:3.12-slim",
			"--build-arg", "VERSION=2.0",
			"./app",
		}, got)
	})
}

// TestBuildDeployment verifies assembling a deployment from container
// info: labels supply static metadata, runtime state supplies status.
func TestBuildDeployment(t *testing.T) {
	info := model.ContainerInfo{
		ContainerID:   "abc123def456",
		ContainerName: "mindwell-app",
		Image:         "mindwell-app:latest",
		State:         "running",
		Labels:        BuildLabels(testDeployment()),
	}

	dep, err := BuildDeployment(info)
	require.NoError(t, err)

	assert.Equal(t, "mindwell-app", dep.Name)
	assert.Equal(t, "abc123def456", dep.ContainerID)
	assert.Equal(t, model.StatusRunning, dep.Status)
}

// TestBuildDeploymentBadLabels verifies label errors propagate.
func TestBuildDeploymentBadLabels(t *testing.T) {
	info := model.ContainerInfo{
		ContainerName: "stray",
		State:         "running",
		Labels:        map[string]string{LabelManagedBy: ManagedByValue},
	}

	_, err := BuildDeployment(info)
	assert.Error(t, err)
}
