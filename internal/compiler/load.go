package compiler

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"

	"github.com/roach88/choreo/internal/ir"
)

// definitionFile is the YAML/JSON document shape: a top-level
// choreography list.
type definitionFile struct {
	Choreography []any `yaml:"choreography"`
}

// LoadPath loads definitions from a CUE package directory, a single .cue
// file, or a .yaml/.yml/.json file.
func LoadPath(path string) ([]ir.Definition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load definitions: %w", err)
	}
	if info.IsDir() {
		return LoadCUEDir(path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return LoadCUEFile(path)
	case ".yaml", ".yml", ".json":
		return LoadYAMLFile(path)
	default:
		return nil, fmt.Errorf("load definitions: unsupported file type %q", filepath.Ext(path))
	}
}

// LoadCUEDir loads and compiles the CUE package in dir.
func LoadCUEDir(dir string) ([]ir.Definition, error) {
	return loadCUE([]string{"."}, &load.Config{Dir: dir})
}

// LoadCUEFile loads and compiles a single .cue file.
func LoadCUEFile(path string) ([]ir.Definition, error) {
	return loadCUE([]string{filepath.Base(path)}, &load.Config{Dir: filepath.Dir(path)})
}

func loadCUE(args []string, cfg *load.Config) ([]ir.Definition, error) {
	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, fmt.Errorf("load definitions: no CUE instances loaded")
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	ctx := cuecontext.New()
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileCUEList(value)
}

// LoadYAMLFile reads and compiles a YAML (or JSON) definition file.
func LoadYAMLFile(path string) ([]ir.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load definitions: %w", err)
	}
	defs, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// ParseYAML compiles a YAML document with a top-level choreography list.
// Unknown top-level fields are rejected.
func ParseYAML(data []byte) ([]ir.Definition, error) {
	var file definitionFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return CompileDefinitions(file.Choreography)
}
