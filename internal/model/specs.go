// specs.go defines the resolved inputs for each pipeline step kind.
// These are the values a step carries after variable expansion and
// validation — the shape the execution engine consumes, decoupled from
// the raw pipeline file schema in internal/pipeline.
package model

// BuildSpec is the resolved input of a build step.
type BuildSpec struct {
	// Image is the tag to apply to the built image (e.g. "mindwell-app:latest").
	Image string `json:"image"`

	// Context is the build context directory, relative to the pipeline
	// file's directory unless absolute.
	Context string `json:"context"`

	// Dockerfile is the path to the Dockerfile, relative to the context.
	// Empty means the engine default ("Dockerfile").
	Dockerfile string `json:"dockerfile,omitempty"`

	// Args are build-time variables passed via --build-arg.
	Args map[string]string `json:"args,omitempty"`

	// Pull forces the engine to attempt pulling newer versions of base images.
	Pull bool `json:"pull,omitempty"`

	// NoCache disables the engine's build cache.
	NoCache bool `json:"noCache,omitempty"`
}

// PushSpec is the resolved input of a push step.
type PushSpec struct {
	// Image is the local image tag to publish. The registry is part of
	// the reference (e.g. "registry.example.com/mindwell-app:latest").
	Image string `json:"image"`
}

// DeploySpec is the resolved input of a deploy step. Deploying replaces
// the named container: any existing container with this name is stopped
// and removed (absence is tolerated), then a new one is created and
// started from Image.
type DeploySpec struct {
	// Name is the deployment name, used as the container name.
	Name string `json:"name"`

	// Pipeline is the owning pipeline's name, recorded in labels.
	Pipeline string `json:"pipeline"`

	// Image is the image reference to run.
	Image string `json:"image"`

	// Ports are the host-to-container port mappings to publish.
	Ports []PortMapping `json:"ports,omitempty"`

	// Env sets environment variables inside the container.
	Env map[string]string `json:"env,omitempty"`

	// Volumes are bind mounts in "host:container[:mode]" form, passed
	// through to the engine unmodified.
	Volumes []string `json:"volumes,omitempty"`

	// RestartPolicy is the engine restart policy for the container:
	// "no", "always", "on-failure", or "unless-stopped".
	// Empty means the engine default ("no").
	RestartPolicy string `json:"restartPolicy,omitempty"`

	// WaitForSeconds, when positive, makes the deploy step wait until the
	// first mapped TCP host port accepts connections, failing the step if
	// the deadline passes. Zero disables the reachability check.
	WaitForSeconds int `json:"waitForSeconds,omitempty"`

	// RunID is the pipeline run creating this deployment.
	RunID string `json:"runId,omitempty"`
}

// CommandSpec is the resolved input of a run step.
type CommandSpec struct {
	// Command is the shell command line, executed with `sh -c`.
	Command string `json:"command"`

	// Dir is the working directory. Empty means the pipeline file's directory.
	Dir string `json:"dir,omitempty"`

	// Env sets additional environment variables for the command,
	// on top of the inherited process environment.
	Env map[string]string `json:"env,omitempty"`
}

// PruneSpec is the resolved input of a prune step.
type PruneSpec struct {
	// DanglingOnly restricts pruning to untagged images (the default).
	// When false, unused tagged images are removed as well, mirroring
	// `docker image prune -a`.
	DanglingOnly bool `json:"danglingOnly"`
}

// PruneResult summarizes an image prune operation.
type PruneResult struct {
	// ImagesDeleted is the number of image records the engine removed
	// (both untagged and deleted entries).
	ImagesDeleted int `json:"imagesDeleted"`

	// SpaceReclaimed is the number of bytes freed.
	SpaceReclaimed uint64 `json:"spaceReclaimed"`
}
