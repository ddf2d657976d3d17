package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-dev/stagehand/internal/model"
)

// resolveErr runs a mutated fixture through Resolve and returns the error.
func resolveErr(t *testing.T, mutate func(*RawPipeline)) error {
	t.Helper()
	raw := rawFixture()
	mutate(raw)
	_, err := Resolve(raw, "stagehand.yaml", "")
	return err
}

func TestValidatePipeline(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RawPipeline)
		wantErr string
	}{
		{
			name:   "valid pipeline",
			mutate: func(raw *RawPipeline) {},
		},
		{
			name:    "unsupported version",
			mutate:  func(raw *RawPipeline) { raw.Version = 2 },
			wantErr: "unsupported pipeline version",
		},
		{
			name:    "missing pipeline name",
			mutate:  func(raw *RawPipeline) { raw.Name = "" },
			wantErr: "invalid pipeline name",
		},
		{
			name:    "no stages",
			mutate:  func(raw *RawPipeline) { raw.Stages = nil },
			wantErr: "no stages",
		},
		{
			name: "unnamed stage",
			mutate: func(raw *RawPipeline) {
				raw.Stages[0].Name = ""
			},
			wantErr: "has no name",
		},
		{
			name: "duplicate stage name",
			mutate: func(raw *RawPipeline) {
				raw.Stages[1].Name = raw.Stages[0].Name
			},
			wantErr: "duplicate stage name",
		},
		{
			name: "unsupported when value",
			mutate: func(raw *RawPipeline) {
				raw.Stages[0].When = "on_failure"
			},
			wantErr: "unsupported when value",
		},
		{
			name: "stage with no steps",
			mutate: func(raw *RawPipeline) {
				raw.Stages[0].Steps = nil
			},
			wantErr: "has no steps",
		},
		{
			name: "build step without image",
			mutate: func(raw *RawPipeline) {
				raw.Stages[0].Steps[0].Build.Image = ""
			},
			wantErr: "requires an image tag",
		},
		{
			name: "build step without context",
			mutate: func(raw *RawPipeline) {
				raw.Stages[0].Steps[0].Build.Context = ""
			},
			wantErr: "requires a context directory",
		},
		{
			name: "push step without image",
			mutate: func(raw *RawPipeline) {
				raw.Stages[0].Steps[1].Push.Image = ""
			},
			wantErr: "requires an image reference",
		},
		{
			name: "deploy step with invalid name",
			mutate: func(raw *RawPipeline) {
				raw.Stages[1].Steps[0].Deploy.Name = "-bad-"
			},
			wantErr: "deploy step",
		},
		{
			name: "deploy step with duplicate host port",
			mutate: func(raw *RawPipeline) {
				raw.Stages[1].Steps[0].Deploy.Ports = []string{"8501:8501", "8501:80"}
			},
			wantErr: "8501",
		},
		{
			name: "invalid restart policy",
			mutate: func(raw *RawPipeline) {
				raw.Stages[1].Steps[0].Deploy.Restart = "sometimes"
			},
			wantErr: "invalid restart policy",
		},
		{
			name: "negative wait_for",
			mutate: func(raw *RawPipeline) {
				raw.Stages[1].Steps[0].Deploy.WaitFor = -5
			},
			wantErr: "must not be negative",
		},
		{
			name: "wait_for without ports",
			mutate: func(raw *RawPipeline) {
				raw.Stages[1].Steps[0].Deploy.Ports = nil
			},
			wantErr: "wait_for requires at least one published port",
		},
		{
			name: "run step with blank command",
			mutate: func(raw *RawPipeline) {
				raw.Stages[1].Steps[1].Run.Command = "   "
			},
			wantErr: "requires a command",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := resolveErr(t, tt.mutate)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var cliErr *model.CLIError
			require.ErrorAs(t, err, &cliErr)
			assert.Equal(t, model.ExitPipelineInvalid, cliErr.Code)
		})
	}
}
