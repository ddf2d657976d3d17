package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-dev/stagehand/internal/model"
)

// rawFixture returns a valid two-stage raw pipeline covering every step kind.
func rawFixture() *RawPipeline {
	return &RawPipeline{
		Version: 1,
		Name:    "webapp",
		Vars:    map[string]string{"TAG": "v1"},
		Stages: []RawStage{
			{
				Name: "build",
				Steps: []RawStep{
					{Build: &RawBuildStep{
						Image:   "webapp:${TAG}",
						Context: ".",
						Args:    map[string]string{"VERSION": "${TAG}"},
					}},
					{Push: &RawPushStep{Image: "ghcr.io/acme/webapp:${TAG}"}},
				},
			},
			{
				Name:            "deploy",
				ContinueOnError: false,
				Steps: []RawStep{
					{Deploy: &RawDeployStep{
						Name:    "webapp",
						Image:   "webapp:${TAG}",
						Ports:   []string{"8501:8501", "127.0.0.1:9000:80/tcp"},
						Env:     map[string]string{"APP_VERSION": "${TAG}"},
						Restart: "unless-stopped",
						WaitFor: 30,
					}},
					{Run: &RawRunStep{Command: "echo deployed ${TAG}"}},
				},
			},
			{
				Name: "cleanup",
				When: "always",
				Steps: []RawStep{
					{Prune: &RawPruneStep{}},
				},
			},
		},
	}
}

func TestResolve(t *testing.T) {
	p, err := Resolve(rawFixture(), filepath.Join(t.TempDir(), "stagehand.yaml"), "")
	require.NoError(t, err)

	assert.Equal(t, "webapp", p.Name)
	assert.True(t, filepath.IsAbs(p.Dir))
	require.Len(t, p.Stages, 3)

	build := p.Stages[0]
	require.Len(t, build.Steps, 2)
	assert.Equal(t, model.StepBuild, build.Steps[0].Kind)
	assert.Equal(t, "webapp:v1", build.Steps[0].Build.Image)
	assert.Equal(t, map[string]string{"VERSION": "v1"}, build.Steps[0].Build.Args)
	assert.Equal(t, model.StepPush, build.Steps[1].Kind)
	assert.Equal(t, "ghcr.io/acme/webapp:v1", build.Steps[1].Push.Image)

	deploy := p.Stages[1]
	require.Len(t, deploy.Steps, 2)
	spec := deploy.Steps[0].Deploy
	require.NotNil(t, spec)
	assert.Equal(t, "webapp", spec.Name)
	assert.Equal(t, "webapp", spec.Pipeline)
	assert.Equal(t, "webapp:v1", spec.Image)
	require.Len(t, spec.Ports, 2)
	assert.Equal(t, model.PortMapping{HostPort: 8501, ContainerPort: 8501, Protocol: "tcp"}, spec.Ports[0])
	assert.Equal(t, model.PortMapping{HostIP: "127.0.0.1", HostPort: 9000, ContainerPort: 80, Protocol: "tcp"}, spec.Ports[1])
	assert.Equal(t, 30, spec.WaitForSeconds)
	assert.Equal(t, "echo deployed v1", deploy.Steps[1].RunCmd.Command)

	cleanup := p.Stages[2]
	assert.True(t, cleanup.Always)
	require.Len(t, cleanup.Steps, 1)
	assert.Equal(t, model.StepPrune, cleanup.Steps[0].Kind)
	assert.True(t, cleanup.Steps[0].Prune.DanglingOnly)
}

func TestResolvePruneDanglingExplicitFalse(t *testing.T) {
	raw := rawFixture()
	falseVal := false
	raw.Stages[2].Steps[0].Prune.Dangling = &falseVal

	p, err := Resolve(raw, "stagehand.yaml", "")
	require.NoError(t, err)
	assert.False(t, p.Stages[2].Steps[0].Prune.DanglingOnly)
}

func TestResolveUndefinedVariable(t *testing.T) {
	raw := rawFixture()
	raw.Stages[0].Steps[0].Build.Image = "webapp:${UNDEFINED_STAGEHAND_VAR}"

	_, err := Resolve(raw, "stagehand.yaml", "")
	require.Error(t, err)
	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitPipelineInvalid, cliErr.Code)
	assert.Contains(t, err.Error(), "UNDEFINED_STAGEHAND_VAR")
}

func TestResolveBadPortSpec(t *testing.T) {
	raw := rawFixture()
	raw.Stages[1].Steps[0].Deploy.Ports = []string{"8501"}

	_, err := Resolve(raw, "stagehand.yaml", "")
	assert.Error(t, err)
}

func TestStepTarget(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want string
	}{
		{
			name: "build targets image",
			step: Step{Kind: model.StepBuild, Build: &model.BuildSpec{Image: "webapp:v1"}},
			want: "webapp:v1",
		},
		{
			name: "deploy targets deployment name",
			step: Step{Kind: model.StepDeploy, Deploy: &model.DeploySpec{Name: "webapp"}},
			want: "webapp",
		},
		{
			name: "prune dangling",
			step: Step{Kind: model.StepPrune, Prune: &model.PruneSpec{DanglingOnly: true}},
			want: "dangling images",
		},
		{
			name: "prune all",
			step: Step{Kind: model.StepPrune, Prune: &model.PruneSpec{}},
			want: "unused images",
		},
		{
			name: "run targets command",
			step: Step{Kind: model.StepRun, RunCmd: &model.CommandSpec{Command: "make test"}},
			want: "make test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.step.Target())
		})
	}
}
