package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-dev/stagehand/internal/model"
)

const sampleYAML = `
version: 1
name: webapp
vars:
  TAG: latest
stages:
  - name: build
    steps:
      - build:
          image: webapp:${TAG}
          context: .
  - name: deploy
    steps:
      - deploy:
          name: webapp
          image: webapp:${TAG}
          ports:
            - "8501:8501"
`

const sampleJSONC = `{
	// the pipeline version
	"version": 1,
	"name": "webapp",
	"stages": [
		{
			"name": "build",
			"steps": [
				{"build": {"image": "webapp:latest", "context": "."}},
			],
		},
	],
}`

func TestParsePipelineYAML(t *testing.T) {
	raw, err := parsePipeline([]byte(sampleYAML), "stagehand.yaml")
	require.NoError(t, err)

	assert.Equal(t, 1, raw.Version)
	assert.Equal(t, "webapp", raw.Name)
	assert.Equal(t, map[string]string{"TAG": "latest"}, raw.Vars)
	require.Len(t, raw.Stages, 2)
	assert.Equal(t, "build", raw.Stages[0].Name)
	require.Len(t, raw.Stages[0].Steps, 1)
	require.NotNil(t, raw.Stages[0].Steps[0].Build)
	assert.Equal(t, "webapp:${TAG}", raw.Stages[0].Steps[0].Build.Image)
	require.NotNil(t, raw.Stages[1].Steps[0].Deploy)
	assert.Equal(t, []string{"8501:8501"}, raw.Stages[1].Steps[0].Deploy.Ports)
}

func TestParsePipelineJSONC(t *testing.T) {
	raw, err := parsePipeline([]byte(sampleJSONC), "stagehand.jsonc")
	require.NoError(t, err)

	assert.Equal(t, "webapp", raw.Name)
	require.Len(t, raw.Stages, 1)
	require.NotNil(t, raw.Stages[0].Steps[0].Build)
	assert.Equal(t, "webapp:latest", raw.Stages[0].Steps[0].Build.Image)
}

func TestParsePipelineUnknownField(t *testing.T) {
	yamlData := `
version: 1
name: webapp
stagez:
  - name: build
`
	_, err := parsePipeline([]byte(yamlData), "stagehand.yaml")
	assert.Error(t, err)

	jsonData := `{"version": 1, "name": "webapp", "stagez": []}`
	_, err = parsePipeline([]byte(jsonData), "stagehand.json")
	assert.Error(t, err)
}

func TestParsePipelineUnknownStepField(t *testing.T) {
	data := `
version: 1
name: webapp
stages:
  - name: deploy
    steps:
      - deploy:
          name: webapp
          image: webapp:latest
          prots:
            - "8501:8501"
`
	_, err := parsePipeline([]byte(data), "stagehand.yaml")
	assert.Error(t, err)
}

func TestRawStepKind(t *testing.T) {
	tests := []struct {
		name    string
		step    RawStep
		want    model.StepKind
		wantErr bool
	}{
		{
			name: "build",
			step: RawStep{Build: &RawBuildStep{}},
			want: model.StepBuild,
		},
		{
			name: "push",
			step: RawStep{Push: &RawPushStep{}},
			want: model.StepPush,
		},
		{
			name: "deploy",
			step: RawStep{Deploy: &RawDeployStep{}},
			want: model.StepDeploy,
		},
		{
			name: "prune",
			step: RawStep{Prune: &RawPruneStep{}},
			want: model.StepPrune,
		},
		{
			name: "run",
			step: RawStep{Run: &RawRunStep{}},
			want: model.StepRun,
		},
		{
			name:    "no kind",
			step:    RawStep{},
			wantErr: true,
		},
		{
			name:    "multiple kinds",
			step:    RawStep{Build: &RawBuildStep{}, Deploy: &RawDeployStep{}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := tt.step.Kind()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestFindPipelineFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stagehand.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	found, err := FindPipelineFile(dir, "")
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestFindPipelineFileFallback(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, ".stagehand")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	path := filepath.Join(nested, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	found, err := FindPipelineFile(dir, "")
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestFindPipelineFileExplicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	found, err := FindPipelineFile(dir, path)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestFindPipelineFileMissing(t *testing.T) {
	dir := t.TempDir()

	_, err := FindPipelineFile(dir, "")
	require.Error(t, err)
	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitPipelineInvalid, cliErr.Code)

	_, err = FindPipelineFile(dir, filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadPipelineFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stagehand.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	raw, err := LoadPipelineFile(path)
	require.NoError(t, err)
	assert.Equal(t, "webapp", raw.Name)
}
