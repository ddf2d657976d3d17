// Package model defines the domain types for the stagehand CLI.
//
// All entities in this package represent the core data structures shared
// across the application: deployments, port mappings, pipeline step kinds,
// and the CLI error/exit-code scheme.
//
// Key design decision: all deployment state is persisted via Docker
// container labels, so these types are transient representations
// reconstructed from Docker API queries at runtime.
package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DeploymentStatus represents the lifecycle state of a managed deployment.
// A deployment is a named container created by a pipeline's deploy step.
//
// The state transitions are:
//
//	[Deployed] → Running → Stopped ⇄ Running → [Destroyed]
//	Running → Exited (container's main process terminated on its own)
//
// A container removed outside of stagehand simply disappears from the
// deployment list — its labels are gone with it, so there is no
// tombstone state to represent.
type DeploymentStatus string

const (
	// StatusRunning indicates the deployment's container is running.
	StatusRunning DeploymentStatus = "running"

	// StatusStopped indicates the container exists but was stopped.
	// Configuration and data are preserved.
	StatusStopped DeploymentStatus = "stopped"

	// StatusExited indicates the container's main process terminated
	// without stagehand stopping it (crash or normal exit).
	StatusExited DeploymentStatus = "exited"
)

// String returns the string representation of DeploymentStatus.
// This method satisfies the fmt.Stringer interface, enabling
// human-readable output in CLI commands.
func (s DeploymentStatus) String() string {
	return string(s)
}

// IsValid checks whether the DeploymentStatus value is one of the
// predefined valid states.
func (s DeploymentStatus) IsValid() bool {
	switch s {
	case StatusRunning, StatusStopped, StatusExited:
		return true
	default:
		return false
	}
}

// ParseDeploymentStatus converts a string to a DeploymentStatus.
// Returns an error if the string does not match any valid status.
func ParseDeploymentStatus(s string) (DeploymentStatus, error) {
	status := DeploymentStatus(strings.ToLower(s))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid deployment status: %q (valid: running, stopped, exited)", s)
	}
	return status, nil
}

// StepKind identifies the type of a pipeline step. Each step in a stage
// is exactly one of these kinds; the pipeline loader enforces mutual
// exclusion at parse time.
type StepKind string

const (
	// StepBuild builds a container image from a build context.
	StepBuild StepKind = "build"

	// StepPush publishes a built image tag to a container registry.
	StepPush StepKind = "push"

	// StepDeploy replaces a named container: stop and remove any existing
	// container with that name (tolerating absence), then create and start
	// a new one from the configured image.
	StepDeploy StepKind = "deploy"

	// StepPrune removes dangling images from the engine.
	StepPrune StepKind = "prune"

	// StepRun executes an arbitrary shell command. This is the escape
	// hatch equivalent to a plain `sh` step in CI pipelines.
	StepRun StepKind = "run"
)

// String returns the string representation of StepKind.
func (k StepKind) String() string {
	return string(k)
}

// IsValid checks whether the StepKind value is one of the predefined kinds.
func (k StepKind) IsValid() bool {
	switch k {
	case StepBuild, StepPush, StepDeploy, StepPrune, StepRun:
		return true
	default:
		return false
	}
}

// PortMapping represents a single published port: a container port exposed
// on a host port, optionally bound to a specific host IP.
//
// The canonical serialized forms accepted by ParsePortMapping are the same
// ones `docker run -p` accepts:
//
//	"8501:8501"            host → container, tcp
//	"8501:8501/udp"        host → container, udp
//	"127.0.0.1:8501:8501"  bound to a specific host interface
type PortMapping struct {
	// HostIP is the host interface address to bind to.
	// Empty means all interfaces (0.0.0.0).
	HostIP string `json:"hostIp,omitempty"`

	// HostPort is the port number on the host machine (1-65535).
	HostPort int `json:"hostPort"`

	// ContainerPort is the port number inside the container (1-65535).
	ContainerPort int `json:"containerPort"`

	// Protocol is the network protocol for the mapping.
	// Defaults to "tcp". Also supports "udp".
	Protocol string `json:"protocol"`
}

// Validate checks whether the PortMapping has valid field values.
// It verifies port number ranges and protocol values, and defaults
// the protocol to "tcp" when unset.
func (p *PortMapping) Validate() error {
	if p.HostPort < 1 || p.HostPort > 65535 {
		return fmt.Errorf("port mapping: host port %d out of range (1-65535)", p.HostPort)
	}
	if p.ContainerPort < 1 || p.ContainerPort > 65535 {
		return fmt.Errorf("port mapping: container port %d out of range (1-65535)", p.ContainerPort)
	}
	if p.Protocol == "" {
		p.Protocol = "tcp"
	}
	if p.Protocol != "tcp" && p.Protocol != "udp" {
		return fmt.Errorf("port mapping: invalid protocol %q (valid: tcp, udp)", p.Protocol)
	}
	return nil
}

// String returns the canonical `docker run -p` style representation
// of the mapping, e.g. "8501:8501", "127.0.0.1:5000:5000/udp".
// The protocol suffix is omitted for tcp, matching the accepted input form.
func (p *PortMapping) String() string {
	var sb strings.Builder
	if p.HostIP != "" {
		sb.WriteString(p.HostIP)
		sb.WriteString(":")
	}
	sb.WriteString(strconv.Itoa(p.HostPort))
	sb.WriteString(":")
	sb.WriteString(strconv.Itoa(p.ContainerPort))
	if p.Protocol != "" && p.Protocol != "tcp" {
		sb.WriteString("/")
		sb.WriteString(p.Protocol)
	}
	return sb.String()
}

// ParsePortMapping parses a `docker run -p` style port specification into
// a PortMapping. Accepted forms:
//
//	"host:container"
//	"host:container/protocol"
//	"ip:host:container"
//	"ip:host:container/protocol"
//
// A bare container port without a host port is rejected: the deployments
// this tool manages always publish on fixed host ports, and an implicit
// engine-chosen port would make the deployment unreachable at a
// predictable address.
func ParsePortMapping(spec string) (PortMapping, error) {
	if strings.TrimSpace(spec) == "" {
		return PortMapping{}, fmt.Errorf("port mapping must not be empty")
	}

	// Split off the optional protocol suffix first.
	// "8501:8501/udp" → ports part "8501:8501", protocol "udp".
	portsPart := spec
	protocol := "tcp"
	if idx := strings.LastIndex(spec, "/"); idx >= 0 {
		portsPart = spec[:idx]
		protocol = spec[idx+1:]
		if protocol == "" {
			return PortMapping{}, fmt.Errorf("invalid port mapping %q: empty protocol after /", spec)
		}
	}

	parts := strings.Split(portsPart, ":")

	var mapping PortMapping
	mapping.Protocol = protocol

	switch len(parts) {
	case 2:
		// "host:container"
		host, err := parsePortNumber(parts[0], spec)
		if err != nil {
			return PortMapping{}, err
		}
		cont, err := parsePortNumber(parts[1], spec)
		if err != nil {
			return PortMapping{}, err
		}
		mapping.HostPort = host
		mapping.ContainerPort = cont

	case 3:
		// "ip:host:container"
		mapping.HostIP = parts[0]
		if mapping.HostIP == "" {
			return PortMapping{}, fmt.Errorf("invalid port mapping %q: empty host IP", spec)
		}
		host, err := parsePortNumber(parts[1], spec)
		if err != nil {
			return PortMapping{}, err
		}
		cont, err := parsePortNumber(parts[2], spec)
		if err != nil {
			return PortMapping{}, err
		}
		mapping.HostPort = host
		mapping.ContainerPort = cont

	default:
		return PortMapping{}, fmt.Errorf(
			"invalid port mapping %q: expected host:container, optionally prefixed with a host IP", spec)
	}

	if err := mapping.Validate(); err != nil {
		return PortMapping{}, fmt.Errorf("invalid port mapping %q: %w", spec, err)
	}
	return mapping, nil
}

// parsePortNumber converts a single port field to an integer, producing
// an error that references the full original spec for context.
func parsePortNumber(s, spec string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port mapping %q: %q is not a port number", spec, s)
	}
	return port, nil
}

// ValidatePortMappings checks a slice of PortMappings for individual
// validity and host-port uniqueness within the same deployment.
// Two mappings may share a host port only if their protocols differ
// (e.g. 8501/tcp and 8501/udp).
func ValidatePortMappings(mappings []PortMapping) error {
	// Track seen host ports to detect duplicates within the deployment.
	// Key: "hostPort/protocol", Value: index of the mapping that owns it.
	seen := make(map[string]int)

	for i := range mappings {
		if err := mappings[i].Validate(); err != nil {
			return err
		}

		key := fmt.Sprintf("%d/%s", mappings[i].HostPort, mappings[i].Protocol)
		if prev, exists := seen[key]; exists {
			return fmt.Errorf("port mapping: host port %s is published twice (%s and %s)",
				key, mappings[prev].String(), mappings[i].String())
		}
		seen[key] = i
	}
	return nil
}

// Deployment represents a managed deployment — a named container created by
// a pipeline's deploy step. This is the primary aggregate entity in the
// domain.
//
// All fields are reconstructed at runtime from Docker container labels
// (see the label schema in internal/docker). There is no persistent state
// file on disk.
type Deployment struct {
	// Name is the unique identifier for this deployment. It doubles as
	// the container name on the engine. Must contain only alphanumeric
	// characters and hyphens.
	Name string `json:"name"`

	// Pipeline is the name of the pipeline that produced this deployment.
	Pipeline string `json:"pipeline"`

	// Image is the image reference the container was started from.
	Image string `json:"image"`

	// ContainerID is the engine container ID backing this deployment.
	ContainerID string `json:"containerId,omitempty"`

	// Status is the current lifecycle state of the deployment.
	Status DeploymentStatus `json:"status"`

	// Ports holds all published port mappings for this deployment.
	// May be empty if the container publishes no ports.
	Ports []PortMapping `json:"ports,omitempty"`

	// RunID is the pipeline run that produced this deployment.
	RunID string `json:"runId,omitempty"`

	// CreatedAt is the timestamp when this deployment was created.
	CreatedAt time.Time `json:"createdAt"`
}

// ContainerInfo holds runtime information about a Docker container.
// This data is fetched dynamically from the Docker API, not persisted.
// It decouples the rest of the application from the Docker SDK types.
type ContainerInfo struct {
	// ContainerID is the unique Docker container identifier.
	ContainerID string `json:"containerId"`

	// ContainerName is the human-readable Docker container name.
	ContainerName string `json:"containerName"`

	// Image is the image reference the container was created from.
	Image string `json:"image"`

	// State is the Docker container state (e.g. "running", "exited", "created").
	State string `json:"state"`

	// Labels is the full set of Docker labels on the container.
	// Includes stagehand management labels (stagehand.* prefix).
	Labels map[string]string `json:"labels,omitempty"`
}

// nameRegex validates deployment and pipeline names: alphanumeric + hyphens
// only, must start and end with alphanumeric. The single-character
// alternative covers names like "a".
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*[a-zA-Z0-9]$|^[a-zA-Z0-9]$`)

// ValidateName checks if the given name is a valid pipeline or deployment
// name. Valid names contain only alphanumeric characters and hyphens,
// and must start/end with an alphanumeric character. The same rule applies
// to both because deployment names become Docker container names.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid name %q: must contain only alphanumeric characters and hyphens, and start/end with alphanumeric", name)
	}
	return nil
}

// ExitCode defines standard CLI exit codes. These codes allow scripts and
// CI systems to programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitPipelineInvalid indicates the pipeline file was not found
	// or failed to parse/validate.
	ExitPipelineInvalid ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitBuildFailed indicates an image build step failed.
	ExitBuildFailed ExitCode = 4

	// ExitDeployFailed indicates a deploy step failed (container replace
	// or post-deploy reachability check).
	ExitDeployFailed ExitCode = 5

	// ExitDeploymentNotFound indicates the specified deployment
	// does not exist.
	ExitDeploymentNotFound ExitCode = 6

	// ExitUserCancelled indicates the user cancelled an interactive prompt.
	ExitUserCancelled ExitCode = 7

	// ExitPushFailed indicates an image push step failed.
	ExitPushFailed ExitCode = 8
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
// This follows Go's error wrapping convention introduced in Go 1.13.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
