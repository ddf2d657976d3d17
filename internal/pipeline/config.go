// Package pipeline handles loading, expanding, validating, and executing
// stagehand pipeline files.
//
// A pipeline file is YAML (or JSON with comments) describing an ordered
// list of stages, each holding an ordered list of steps. This file defines
// the raw on-disk schema and the loader; resolution into executable form
// happens in resolve.go, validation in validate.go, and execution in
// executor.go.
package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/stagehand-dev/stagehand/internal/model"
)

// SupportedVersion is the only pipeline file schema version this build
// understands. The version field exists so future schema changes can be
// detected instead of misparsed.
const SupportedVersion = 1

// defaultFileNames are the pipeline file locations probed, in order, when
// the user does not pass an explicit path.
var defaultFileNames = []string{
	"stagehand.yaml",
	"stagehand.yml",
	"stagehand.json",
	filepath.Join(".stagehand", "pipeline.yaml"),
}

// RawPipeline is the raw on-disk schema of a pipeline file, before
// variable expansion and validation. Field names carry both yaml and json
// tags because the loader accepts both formats.
type RawPipeline struct {
	// Version is the schema version. Must equal SupportedVersion.
	Version int `yaml:"version" json:"version"`

	// Name is the pipeline name. Deployments record it in their labels.
	Name string `yaml:"name" json:"name"`

	// EnvFile is an optional dotenv file loaded into the variable table,
	// resolved relative to the pipeline file's directory.
	EnvFile string `yaml:"env_file,omitempty" json:"env_file,omitempty"`

	// Vars are pipeline-level variables available for ${VAR} expansion.
	// They have the lowest precedence: env_file entries and the process
	// environment both override them.
	Vars map[string]string `yaml:"vars,omitempty" json:"vars,omitempty"`

	// Stages is the ordered stage list. At least one stage is required.
	Stages []RawStage `yaml:"stages" json:"stages"`
}

// RawStage is one stage in the raw schema.
type RawStage struct {
	// Name identifies the stage in output and in --only-stage/--skip-stage
	// filters. Must be unique within the pipeline.
	Name string `yaml:"name" json:"name"`

	// ContinueOnError makes a failure in this stage non-fatal: the
	// failure is recorded but later stages still run.
	ContinueOnError bool `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`

	// When controls conditional execution. The only supported value is
	// "always": the stage runs even after an earlier fatal failure
	// (the post-cleanup semantics of CI pipelines).
	When string `yaml:"when,omitempty" json:"when,omitempty"`

	// Steps is the ordered step list. At least one step is required.
	Steps []RawStep `yaml:"steps" json:"steps"`
}

// RawStep is one step in the raw schema. Exactly one of the kind fields
// must be set; the validator enforces mutual exclusion.
type RawStep struct {
	Build  *RawBuildStep  `yaml:"build,omitempty" json:"build,omitempty"`
	Push   *RawPushStep   `yaml:"push,omitempty" json:"push,omitempty"`
	Deploy *RawDeployStep `yaml:"deploy,omitempty" json:"deploy,omitempty"`
	Prune  *RawPruneStep  `yaml:"prune,omitempty" json:"prune,omitempty"`
	Run    *RawRunStep    `yaml:"run,omitempty" json:"run,omitempty"`
}

// Kind returns the step's kind, or an error when zero or multiple kind
// fields are set.
func (s *RawStep) Kind() (model.StepKind, error) {
	var kinds []model.StepKind
	if s.Build != nil {
		kinds = append(kinds, model.StepBuild)
	}
	if s.Push != nil {
		kinds = append(kinds, model.StepPush)
	}
	if s.Deploy != nil {
		kinds = append(kinds, model.StepDeploy)
	}
	if s.Prune != nil {
		kinds = append(kinds, model.StepPrune)
	}
	if s.Run != nil {
		kinds = append(kinds, model.StepRun)
	}

	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("step has no kind: expected one of build, push, deploy, prune, run")
	case 1:
		return kinds[0], nil
	default:
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = k.String()
		}
		return "", fmt.Errorf("step declares multiple kinds (%s): exactly one is allowed", strings.Join(names, ", "))
	}
}

// RawBuildStep mirrors model.BuildSpec in the on-disk schema.
type RawBuildStep struct {
	Image      string            `yaml:"image" json:"image"`
	Context    string            `yaml:"context" json:"context"`
	Dockerfile string            `yaml:"dockerfile,omitempty" json:"dockerfile,omitempty"`
	Args       map[string]string `yaml:"args,omitempty" json:"args,omitempty"`
	Pull       bool              `yaml:"pull,omitempty" json:"pull,omitempty"`
	NoCache    bool              `yaml:"no_cache,omitempty" json:"no_cache,omitempty"`
}

// RawPushStep mirrors model.PushSpec in the on-disk schema.
type RawPushStep struct {
	Image string `yaml:"image" json:"image"`
}

// RawDeployStep mirrors model.DeploySpec in the on-disk schema.
// Ports are written in `docker run -p` syntax and parsed during resolve.
type RawDeployStep struct {
	Name    string            `yaml:"name" json:"name"`
	Image   string            `yaml:"image" json:"image"`
	Ports   []string          `yaml:"ports,omitempty" json:"ports,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Volumes []string          `yaml:"volumes,omitempty" json:"volumes,omitempty"`
	Restart string            `yaml:"restart,omitempty" json:"restart,omitempty"`
	WaitFor int               `yaml:"wait_for,omitempty" json:"wait_for,omitempty"`
}

// RawPruneStep mirrors model.PruneSpec in the on-disk schema.
// Dangling is a pointer so that an omitted field defaults to true
// (prune only untagged images) while an explicit false means prune all.
type RawPruneStep struct {
	Dangling *bool `yaml:"dangling,omitempty" json:"dangling,omitempty"`
}

// RawRunStep mirrors model.CommandSpec in the on-disk schema.
type RawRunStep struct {
	Command string            `yaml:"command" json:"command"`
	Dir     string            `yaml:"dir,omitempty" json:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// FindPipelineFile locates the pipeline file. If explicitPath is
// non-empty it is used directly (and must exist). Otherwise the default
// locations are probed relative to dir, in order.
//
// Returns a CLIError with ExitPipelineInvalid when nothing is found.
func FindPipelineFile(dir, explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", model.WrapCLIError(model.ExitPipelineInvalid,
				fmt.Sprintf("pipeline file %q not found", explicitPath), err)
		}
		return explicitPath, nil
	}

	for _, name := range defaultFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", model.NewCLIError(model.ExitPipelineInvalid,
		fmt.Sprintf("no pipeline file found (looked for %s)", strings.Join(defaultFileNames, ", ")))
}

// LoadPipelineFile reads and parses a pipeline file into the raw schema.
// The format is chosen by extension: .json/.jsonc parse as JSON with
// comments (via tidwall/jsonc), everything else parses as YAML.
//
// Both parsers run in strict mode: unknown fields are an error, because a
// typoed key silently dropped from a deploy step is exactly the kind of
// mistake a pipeline tool must catch before touching containers.
func LoadPipelineFile(path string) (*RawPipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitPipelineInvalid,
			fmt.Sprintf("failed to read pipeline file %q", path), err)
	}

	raw, err := parsePipeline(data, path)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitPipelineInvalid,
			fmt.Sprintf("failed to parse pipeline file %q", path), err)
	}

	return raw, nil
}

// parsePipeline decodes pipeline bytes according to the file extension.
// Split from LoadPipelineFile so parsing is testable without touching
// the filesystem.
func parsePipeline(data []byte, path string) (*RawPipeline, error) {
	var raw RawPipeline

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// jsonc.ToJSON strips // and /* */ comments plus trailing commas,
		// producing plain JSON for the standard decoder.
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}

	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		// KnownFields makes the YAML decoder reject keys that do not map
		// to a struct field.
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
	}

	return &raw, nil
}
