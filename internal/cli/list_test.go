package cli

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stagehand-dev/stagehand/internal/model"
)

func TestFormatPortsList(t *testing.T) {
	tests := []struct {
		name  string
		ports []model.PortMapping
		want  string
	}{
		{
			name:  "no ports",
			ports: nil,
			want:  "-",
		},
		{
			name: "single port",
			ports: []model.PortMapping{
				{HostPort: 8501, ContainerPort: 8501, Protocol: "tcp"},
			},
			want: "8501:8501",
		},
		{
			name: "sorted numerically by host port",
			ports: []model.PortMapping{
				{HostPort: 15432, ContainerPort: 5432, Protocol: "tcp"},
				{HostPort: 3000, ContainerPort: 3000, Protocol: "tcp"},
			},
			want: "3000:3000,15432:5432",
		},
		{
			name: "udp keeps protocol suffix",
			ports: []model.PortMapping{
				{HostPort: 5000, ContainerPort: 5000, Protocol: "udp"},
			},
			want: "5000:5000/udp",
		},
		{
			name: "host ip preserved",
			ports: []model.PortMapping{
				{HostIP: "127.0.0.1", HostPort: 8080, ContainerPort: 80, Protocol: "tcp"},
			},
			want: "127.0.0.1:8080:80",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatPortsList(tt.ports))
		})
	}
}

func TestFilterDeployments(t *testing.T) {
	deployments := []*model.Deployment{
		{Name: "webapp", Pipeline: "webapp", Status: model.StatusRunning},
		{Name: "worker", Pipeline: "webapp", Status: model.StatusStopped},
		{Name: "db", Pipeline: "infra", Status: model.StatusRunning},
	}

	tests := []struct {
		name     string
		status   string
		pipeline string
		want     []string
	}{
		{
			name:   "all",
			status: "all",
			want:   []string{"webapp", "worker", "db"},
		},
		{
			name:   "running only",
			status: "running",
			want:   []string{"webapp", "db"},
		},
		{
			name:     "by pipeline",
			status:   "all",
			pipeline: "webapp",
			want:     []string{"webapp", "worker"},
		},
		{
			name:     "status and pipeline",
			status:   "stopped",
			pipeline: "webapp",
			want:     []string{"worker"},
		},
		{
			name:     "no matches",
			status:   "running",
			pipeline: "missing",
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterDeployments(deployments, tt.status, tt.pipeline)
			names := make([]string, 0, len(got))
			for _, dep := range got {
				names = append(names, dep.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
		{1 << 50, "1.0 PiB"},
		{math.MaxUint64, "16.0 EiB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}
