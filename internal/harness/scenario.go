package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a choreography test scenario: definitions, a script of
// signals and clock advances, and assertions on the resulting trace.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Definitions holds inline authored definitions, in the same shape as
	// a definition file's choreography list.
	Definitions []any `yaml:"definitions,omitempty"`

	// DefinitionsFile is a CUE directory, .cue file or YAML file holding
	// the definitions. Relative paths resolve against the scenario file.
	DefinitionsFile string `yaml:"definitions_file,omitempty"`

	// Script is executed in order against a fresh engine.
	Script []ScriptStep `yaml:"script"`

	// Assertions validate the final trace and engine state.
	// Supported types: command_count, command_order, command_contains,
	// progress_near, active_count
	Assertions []Assertion `yaml:"assertions"`
}

// ScriptStep is one scripted action. Exactly one of Signal, Advance,
// RunUntilIdle and Dispose is set.
type ScriptStep struct {
	// Signal is the type of a signal to feed to the engine.
	Signal string `yaml:"signal,omitempty"`

	// Payload is the signal payload.
	Payload map[string]any `yaml:"payload,omitempty"`

	// CorrelationID scopes interruption. Empty means none.
	CorrelationID string `yaml:"correlation_id,omitempty"`

	// Advance moves the clock forward by this many milliseconds and fires
	// one frame.
	Advance int `yaml:"advance,omitempty"`

	// Repeat runs an Advance step this many times. Default 1.
	Repeat int `yaml:"repeat,omitempty"`

	// RunUntilIdle advances in frames of this many milliseconds until no
	// frame is scheduled.
	RunUntilIdle int `yaml:"run_until_idle,omitempty"`

	// Dispose disposes the engine.
	Dispose bool `yaml:"dispose,omitempty"`
}

// Assertion validates the trace or final engine state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "command_count": exactly Count commands match the filters
	// - "command_order": Actions first appear in this order
	// - "command_contains": some command matches the filters and Params
	// - "progress_near": the Action update at At has Progress ± Tolerance
	// - "active_count": Count performances are live when the script ends
	Type string `yaml:"type"`

	// Kind filters commands by kind (start, update, complete, execute,
	// interrupt). Empty matches any kind.
	Kind string `yaml:"kind,omitempty"`

	// Action filters commands by action name. Empty matches any action.
	Action string `yaml:"action,omitempty"`

	// Entity filters commands by resolved entity ref.
	Entity string `yaml:"entity,omitempty"`

	// PerformanceID filters commands by performance.
	PerformanceID string `yaml:"performance_id,omitempty"`

	// CorrelationID filters interrupt commands by correlation ID.
	CorrelationID string `yaml:"correlation_id,omitempty"`

	// Params are expected command params (used by command_contains).
	// Subset match - only specified fields are validated.
	Params map[string]any `yaml:"params,omitempty"`

	// Count is the expected number (used by command_count, active_count).
	Count *int `yaml:"count,omitempty"`

	// Actions is the expected action order (used by command_order).
	Actions []string `yaml:"actions,omitempty"`

	// At is a clock time in milliseconds (used by progress_near).
	At *int `yaml:"at,omitempty"`

	// Progress is the expected eased progress (used by progress_near).
	Progress *float64 `yaml:"progress,omitempty"`

	// Tolerance bounds progress_near. Default DefaultTolerance.
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// Assertion type constants.
const (
	AssertCommandCount    = "command_count"
	AssertCommandOrder    = "command_order"
	AssertCommandContains = "command_contains"
	AssertProgressNear    = "progress_near"
	AssertActiveCount     = "active_count"
)

// DefaultTolerance is the progress_near tolerance when none is given.
const DefaultTolerance = 0.01

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// A relative definitions_file is resolved against the scenario file's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving a relative
// definitions_file against baseDir.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the definitions path BEFORE validation
	if scenario.DefinitionsFile != "" && !filepath.IsAbs(scenario.DefinitionsFile) && baseDir != "" {
		scenario.DefinitionsFile = filepath.Join(baseDir, scenario.DefinitionsFile)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks required fields and step/assertion shapes.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	hasInline := s.Definitions != nil
	hasFile := s.DefinitionsFile != ""
	if hasInline == hasFile {
		return fmt.Errorf("exactly one of definitions and definitions_file is required")
	}
	if hasFile {
		if _, err := os.Stat(s.DefinitionsFile); os.IsNotExist(err) {
			return fmt.Errorf("definitions file not found: %s", s.DefinitionsFile)
		}
	}

	if len(s.Script) == 0 {
		return fmt.Errorf("script list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Script {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("script[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}

	return nil
}

func validateStep(step ScriptStep) error {
	set := 0
	if step.Signal != "" {
		set++
	}
	if step.Advance != 0 {
		set++
	}
	if step.RunUntilIdle != 0 {
		set++
	}
	if step.Dispose {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one of signal, advance, run_until_idle and dispose is required")
	}

	if step.Signal == "" && (step.Payload != nil || step.CorrelationID != "") {
		return fmt.Errorf("payload and correlation_id require signal")
	}
	if step.Advance < 0 || step.RunUntilIdle < 0 {
		return fmt.Errorf("advance and run_until_idle must be positive")
	}
	if step.Repeat != 0 && step.Advance == 0 {
		return fmt.Errorf("repeat requires advance")
	}
	if step.Repeat < 0 {
		return fmt.Errorf("repeat must be positive")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertCommandCount, AssertActiveCount:
		if a.Count == nil {
			return fmt.Errorf("%s requires count", a.Type)
		}
	case AssertCommandOrder:
		if len(a.Actions) < 2 {
			return fmt.Errorf("command_order requires at least two actions")
		}
	case AssertCommandContains:
		if a.Kind == "" && a.Action == "" && a.Entity == "" && a.PerformanceID == "" &&
			a.CorrelationID == "" && len(a.Params) == 0 {
			return fmt.Errorf("command_contains requires at least one filter")
		}
	case AssertProgressNear:
		if a.Action == "" || a.At == nil || a.Progress == nil {
			return fmt.Errorf("progress_near requires action, at and progress")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
	return nil
}
