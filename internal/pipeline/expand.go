// expand.go implements ${VAR} variable expansion for pipeline files.
//
// Variables come from three layers, lowest precedence first:
//
//  1. the pipeline's vars map
//  2. the env_file (dotenv format, loaded via joho/godotenv)
//  3. the process environment
//
// Expansion is strict: referencing an undefined variable is an error.
// A pipeline that silently expands ${REGISTRY} to the empty string would
// push images to the wrong place, so failing early is the only safe
// behavior.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/stagehand-dev/stagehand/internal/model"
)

// varPattern matches ${NAME} references. Only the braced form is
// recognized — bare $NAME is left untouched so shell fragments inside
// run steps (e.g. `echo $HOME` executed remotely) pass through verbatim.
var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// VarTable is the resolved variable environment for one pipeline load.
type VarTable map[string]string

// BuildVarTable assembles the variable table from the pipeline's vars,
// the optional env_file, and the process environment, applying the
// documented precedence order.
//
// envFilePath, when non-empty, overrides the pipeline's own env_file
// declaration (the --env-file CLI flag). Paths are resolved relative to
// dir, the pipeline file's directory. A declared env_file that does not
// exist is an error; an undeclared one is simply skipped.
func BuildVarTable(raw *RawPipeline, dir, envFilePath string) (VarTable, error) {
	table := make(VarTable, len(raw.Vars))

	// Layer 1: pipeline vars.
	for k, v := range raw.Vars {
		table[k] = v
	}

	// Layer 2: env_file.
	file := raw.EnvFile
	if envFilePath != "" {
		file = envFilePath
	}
	if file != "" {
		if !filepath.IsAbs(file) {
			file = filepath.Join(dir, file)
		}
		envVars, err := godotenv.Read(file)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitPipelineInvalid,
				fmt.Sprintf("failed to load env file %q", file), err)
		}
		for k, v := range envVars {
			table[k] = v
		}
	}

	// Layer 3: process environment. os.Environ entries are KEY=VALUE;
	// values may themselves contain '=' so only the first separator splits.
	for _, kv := range os.Environ() {
		if idx := strings.Index(kv, "="); idx > 0 {
			table[kv[:idx]] = kv[idx+1:]
		}
	}

	return table, nil
}

// Expand replaces every ${NAME} reference in s using the table.
// All undefined references are collected and reported together so the
// user fixes the file in one pass instead of one error at a time.
func (t VarTable) Expand(s string) (string, error) {
	var missing []string

	expanded := varPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Strip "${" and "}" to get the variable name.
		name := match[2 : len(match)-1]
		value, ok := t[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})

	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("undefined variable(s) in %q: %s", s, strings.Join(missing, ", "))
	}
	return expanded, nil
}

// ExpandMap expands every value of a string map, returning a new map.
// Keys are deliberately not expanded: an env var or build arg whose NAME
// is computed is a debugging hazard, not a feature.
func (t VarTable) ExpandMap(m map[string]string) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}
	result := make(map[string]string, len(m))
	for k, v := range m {
		expanded, err := t.Expand(v)
		if err != nil {
			return nil, err
		}
		result[k] = expanded
	}
	return result, nil
}

// ExpandSlice expands every element of a string slice, returning a new slice.
func (t VarTable) ExpandSlice(vals []string) ([]string, error) {
	if vals == nil {
		return nil, nil
	}
	result := make([]string, len(vals))
	for i, v := range vals {
		expanded, err := t.Expand(v)
		if err != nil {
			return nil, err
		}
		result[i] = expanded
	}
	return result, nil
}
