// Package docker — label_test.go contains unit tests for the label
// schema: building labels from a deployment and reconstructing the
// deployment from labels. These tests require no Docker daemon.
package docker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-dev/stagehand/internal/model"
)

// testDeployment returns a representative deployment used across the
// label round-trip tests.
func testDeployment() *model.Deployment {
	return &model.Deployment{
		Name:     "mindwell-app",
		Pipeline: "mindwell",
		Image:    "mindwell-app:latest",
		RunID:    "f5b2a7c4-1111-2222-3333-444455556666",
		Ports: []model.PortMapping{
			{HostPort: 8501, ContainerPort: 8501, Protocol: "tcp"},
			{HostIP: "127.0.0.1", HostPort: 5000, ContainerPort: 5000, Protocol: "udp"},
		},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// TestBuildLabels verifies the label keys and values produced for a
// deployment, including per-port labels.
func TestBuildLabels(t *testing.T) {
	labels := BuildLabels(testDeployment())

	assert.Equal(t, "stagehand", labels[LabelManagedBy])
	assert.Equal(t, "mindwell-app", labels[LabelName])
	assert.Equal(t, "mindwell", labels[LabelPipeline])
	assert.Equal(t, "mindwell-app:latest", labels[LabelImage])
	assert.Equal(t, "f5b2a7c4-1111-2222-3333-444455556666", labels[LabelRunID])
	assert.Equal(t, "2026-03-01T12:00:00Z", labels[LabelCreatedAt])

	// Per-port labels: tcp omits the protocol suffix, udp keeps it,
	// host IP is carried in the value.
	assert.Equal(t, "8501", labels["stagehand.port.8501"])
	assert.Equal(t, "127.0.0.1:5000/udp", labels["stagehand.port.5000"])
}

// TestParseLabelsRoundTrip verifies that a deployment survives the
// BuildLabels → ParseLabels round trip. Status and ContainerID are
// runtime-only and are expected to be absent after parsing.
func TestParseLabelsRoundTrip(t *testing.T) {
	original := testDeployment()

	parsed, err := ParseLabels(BuildLabels(original))
	require.NoError(t, err)

	assert.Equal(t, original.Name, parsed.Name)
	assert.Equal(t, original.Pipeline, parsed.Pipeline)
	assert.Equal(t, original.Image, parsed.Image)
	assert.Equal(t, original.RunID, parsed.RunID)
	assert.True(t, original.CreatedAt.Equal(parsed.CreatedAt))
	assert.ElementsMatch(t, original.Ports, parsed.Ports)
}

// TestParseLabelsMissingRequired verifies that every missing required
// label is reported, not just the first.
func TestParseLabelsMissingRequired(t *testing.T) {
	labels := map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelName:      "mindwell-app",
	}

	_, err := ParseLabels(labels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), LabelPipeline)
	assert.Contains(t, err.Error(), LabelImage)
	assert.Contains(t, err.Error(), LabelCreatedAt)
}

// TestParseLabelsWrongManagedBy verifies that containers carrying the
// label keys but a foreign managed-by value are rejected.
func TestParseLabelsWrongManagedBy(t *testing.T) {
	labels := BuildLabels(testDeployment())
	labels[LabelManagedBy] = "some-other-tool"

	_, err := ParseLabels(labels)
	assert.Error(t, err)
}

// TestParseLabelsInvalidTimestamp verifies rejection of malformed
// created-at values.
func TestParseLabelsInvalidTimestamp(t *testing.T) {
	labels := BuildLabels(testDeployment())
	labels[LabelCreatedAt] = "yesterday"

	_, err := ParseLabels(labels)
	assert.Error(t, err)
}

// TestParsePortLabels verifies direct port label extraction, including
// the empty case and malformed values.
func TestParsePortLabels(t *testing.T) {
	t.Run("no port labels yields empty slice", func(t *testing.T) {
		ports, err := ParsePortLabels(map[string]string{
			LabelName: "mindwell-app",
		})
		require.NoError(t, err)
		assert.NotNil(t, ports)
		assert.Empty(t, ports)
	})

	t.Run("tcp and udp labels parsed", func(t *testing.T) {
		ports, err := ParsePortLabels(map[string]string{
			"stagehand.port.8501": "18501",
			"stagehand.port.5432": "5432/udp",
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []model.PortMapping{
			{HostPort: 18501, ContainerPort: 8501, Protocol: "tcp"},
			{HostPort: 5432, ContainerPort: 5432, Protocol: "udp"},
		}, ports)
	})

	t.Run("malformed key rejected", func(t *testing.T) {
		_, err := ParsePortLabels(map[string]string{
			"stagehand.port.web": "8501",
		})
		assert.Error(t, err)
	})

	t.Run("malformed value rejected", func(t *testing.T) {
		_, err := ParsePortLabels(map[string]string{
			"stagehand.port.8501": "not-a-port",
		})
		assert.Error(t, err)
	})
}

// TestBuildPortLabel verifies the label key format.
func TestBuildPortLabel(t *testing.T) {
	assert.Equal(t, "stagehand.port.8501", BuildPortLabel(8501))
}
