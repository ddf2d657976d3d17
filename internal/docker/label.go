package docker

import (
	"fmt"
	"strings"
	"time"

	"github.com/stagehand-dev/stagehand/internal/model"
)

// Label key constants define the Docker label keys used to persist
// deployment metadata on containers. These labels are the sole persistence
// mechanism — there is no external state file.
//
// All keys share the "stagehand." prefix to namespace them and avoid
// collisions with labels set by other tools (Compose, buildkit, etc.).
const (
	// LabelPrefix is the common prefix for all stagehand labels.
	// A consistent prefix enables efficient label-based filtering when
	// listing containers via the Docker API.
	LabelPrefix = "stagehand."

	// LabelManagedBy identifies containers managed by stagehand.
	// This is the primary label used for filtering and discovery.
	// Key: "stagehand.managed-by", Value: always "stagehand".
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelName stores the deployment's unique identifier, which is also
	// the container name. Key: "stagehand.name".
	LabelName = LabelPrefix + "name"

	// LabelPipeline stores the name of the pipeline that produced the
	// deployment. Key: "stagehand.pipeline".
	LabelPipeline = LabelPrefix + "pipeline"

	// LabelImage stores the image reference the container was started from.
	// The engine also records the image, but label-level storage keeps the
	// deployment reconstructable from labels alone. Key: "stagehand.image".
	LabelImage = LabelPrefix + "image"

	// LabelRunID stores the pipeline run that produced this deployment,
	// linking the container back to a RunRecord. Key: "stagehand.run-id".
	LabelRunID = LabelPrefix + "run-id"

	// LabelPortPrefix is the prefix for per-port labels. Each mapping gets
	// its own label with the container port appended:
	//
	//	"stagehand.port.8501" = "8501"
	//	"stagehand.port.5000" = "127.0.0.1:5000/udp"
	//
	// The value is "[hostIP:]hostPort[/protocol]" with tcp implied.
	// Per-port labels keep each mapping independently parseable and
	// human-readable under `docker inspect`.
	LabelPortPrefix = LabelPrefix + "port."

	// LabelCreatedAt stores the deployment creation timestamp.
	// Key: "stagehand.created-at", Value: RFC3339 formatted timestamp.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
// All containers created by this CLI are tagged with this value.
const ManagedByValue = "stagehand"

// BuildLabels constructs a Docker label map for a deployment. The labels
// are applied when the container is created and allow full reconstruction
// of the Deployment from container inspection alone.
func BuildLabels(dep *model.Deployment) map[string]string {
	labels := map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelName:      dep.Name,
		LabelPipeline:  dep.Pipeline,
		LabelImage:     dep.Image,
		LabelRunID:     dep.RunID,
		// RFC3339 in UTC keeps timestamps consistent regardless of the
		// host machine's timezone.
		LabelCreatedAt: dep.CreatedAt.UTC().Format(time.RFC3339),
	}

	for _, pm := range dep.Ports {
		labels[BuildPortLabel(pm.ContainerPort)] = formatPortLabelValue(pm)
	}

	return labels
}

// ParseLabels reconstructs a Deployment from Docker container labels.
// This is the inverse of BuildLabels and is used when listing or
// inspecting containers to rebuild the domain model.
//
// Required labels: managed-by, name, pipeline, image, created-at.
// Missing required labels cause an error. Status and ContainerID are NOT
// reconstructed from labels because they come from runtime container state.
func ParseLabels(labels map[string]string) (*model.Deployment, error) {
	// Check all required labels at once so the error message can list
	// every missing key instead of failing on the first.
	requiredKeys := []string{
		LabelManagedBy,
		LabelName,
		LabelPipeline,
		LabelImage,
		LabelCreatedAt,
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	ports, err := ParsePortLabels(labels)
	if err != nil {
		return nil, fmt.Errorf("failed to parse port labels: %w", err)
	}

	return &model.Deployment{
		Name:      labels[LabelName],
		Pipeline:  labels[LabelPipeline],
		Image:     labels[LabelImage],
		RunID:     labels[LabelRunID],
		Ports:     ports,
		CreatedAt: createdAt,
	}, nil
}

// BuildPortLabel generates a Docker label key for a specific container
// port, e.g. BuildPortLabel(8501) → "stagehand.port.8501".
func BuildPortLabel(containerPort int) string {
	return fmt.Sprintf("%s%d", LabelPortPrefix, containerPort)
}

// formatPortLabelValue renders the label value for one port mapping:
// "[hostIP:]hostPort[/protocol]" with the protocol omitted for tcp.
func formatPortLabelValue(pm model.PortMapping) string {
	var sb strings.Builder
	if pm.HostIP != "" {
		sb.WriteString(pm.HostIP)
		sb.WriteString(":")
	}
	fmt.Fprintf(&sb, "%d", pm.HostPort)
	if pm.Protocol != "" && pm.Protocol != "tcp" {
		sb.WriteString("/")
		sb.WriteString(pm.Protocol)
	}
	return sb.String()
}

// ParsePortLabels extracts all port mappings from a Docker label map.
// It scans for keys with the LabelPortPrefix and parses the container port
// from the key suffix and "[hostIP:]hostPort[/protocol]" from the value.
//
// Returns an empty slice (not nil) if no port labels are found.
// Returns an error if any port label has a malformed key or value.
func ParsePortLabels(labels map[string]string) ([]model.PortMapping, error) {
	// Pre-allocate for the common case of 1-4 published ports.
	mappings := make([]model.PortMapping, 0, 4)

	for key, value := range labels {
		if !strings.HasPrefix(key, LabelPortPrefix) {
			continue
		}

		// The key suffix is the container port:
		// "stagehand.port.8501" → "8501".
		portStr := strings.TrimPrefix(key, LabelPortPrefix)

		// Reuse the model parser by reassembling a full port spec from
		// "<value>:<containerPort>". The label value carries exactly the
		// host side of the mapping, so the composite is a valid spec:
		//
		//	value "8501",            port "8501" → "8501:8501"
		//	value "127.0.0.1:5000/udp", port "5000" → "127.0.0.1:5000:5000/udp"
		hostPart := value
		protocol := ""
		if idx := strings.LastIndex(value, "/"); idx >= 0 {
			hostPart = value[:idx]
			protocol = value[idx:]
		}

		mapping, err := model.ParsePortMapping(hostPart + ":" + portStr + protocol)
		if err != nil {
			return nil, fmt.Errorf("invalid port label %q=%q: %w", key, value, err)
		}

		mappings = append(mappings, mapping)
	}

	return mappings, nil
}
