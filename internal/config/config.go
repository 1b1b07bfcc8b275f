// Package config holds the typed shapes the pipeline is driven by: the
// scenario payload (spec §6) and run options, both (de)serializable from
// YAML so a human-editable sibling of the wire JSON shape exists. TOML
// config parsing and CLI argument parsing are explicit external-collaborator
// Non-goals (spec §1); this package only owns the data shapes and their
// validation, not how they are sourced.
//
// Grounded on the teacher's config-loading shape and the pack's general use
// of gopkg.in/yaml.v3 for typed config structs.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/qsol-lang/qsol/internal/model"
)

// ScenarioPayload is the grounding input described in spec §4.9/§6: a
// named problem plus its set bindings and parameter values.
type ScenarioPayload struct {
	Problem string                 `json:"problem,omitempty" yaml:"problem,omitempty"`
	Sets    map[string][]string    `json:"sets" yaml:"sets"`
	Params  map[string]interface{} `json:"params" yaml:"params"`
}

// RunOptions configures targeting selection and runtime dispatch (spec
// §4.11/§4.12). Fields left zero-valued fall through to the next-lower
// precedence source (CLI > scenario > config > default); Merge layers two
// RunOptions this way, and internal/target resolves the runtime/backend ids.
type RunOptions struct {
	RuntimeID      string            `yaml:"runtime_id,omitempty"`
	BackendID      string            `yaml:"backend_id,omitempty"`
	Solutions      int               `yaml:"solutions,omitempty"`
	EnergyMin      *float64          `yaml:"energy_min,omitempty"`
	EnergyMax      *float64          `yaml:"energy_max,omitempty"`
	RuntimeOptions map[string]string `yaml:"runtime_options,omitempty"`
	Timeout        time.Duration     `yaml:"timeout,omitempty"`
}

// LoadScenarioYAML parses a scenario payload from YAML (or YAML-compatible
// JSON, since JSON is a YAML subset), wrapping parse failures as
// model.CodeConfigLoad diagnostics rather than raw errors so callers can
// fold them straight into a diagnostics collection.
func LoadScenarioYAML(data []byte) (*ScenarioPayload, *model.Diagnostic) {
	var p ScenarioPayload
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &model.Diagnostic{
			Severity: model.SevError,
			Code:     model.CodeConfigLoad,
			Message:  fmt.Sprintf("failed to parse scenario payload: %s", err),
		}
	}
	if p.Sets == nil {
		p.Sets = map[string][]string{}
	}
	if p.Params == nil {
		p.Params = map[string]interface{}{}
	}
	return &p, nil
}

// LoadRunOptionsYAML parses a RunOptions document.
func LoadRunOptionsYAML(data []byte) (*RunOptions, *model.Diagnostic) {
	var o RunOptions
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, &model.Diagnostic{
			Severity: model.SevError,
			Code:     model.CodeConfigLoad,
			Message:  fmt.Sprintf("failed to parse run options: %s", err),
		}
	}
	return &o, nil
}

// Merge layers higher-precedence options (cli) over lower-precedence ones
// (base), per-field: a zero-valued field in cli falls through to base.
func Merge(base, cli RunOptions) RunOptions {
	out := base
	if cli.RuntimeID != "" {
		out.RuntimeID = cli.RuntimeID
	}
	if cli.BackendID != "" {
		out.BackendID = cli.BackendID
	}
	if cli.Solutions != 0 {
		out.Solutions = cli.Solutions
	}
	if cli.EnergyMin != nil {
		out.EnergyMin = cli.EnergyMin
	}
	if cli.EnergyMax != nil {
		out.EnergyMax = cli.EnergyMax
	}
	if cli.Timeout != 0 {
		out.Timeout = cli.Timeout
	}
	if len(cli.RuntimeOptions) > 0 {
		merged := map[string]string{}
		for k, v := range base.RuntimeOptions {
			merged[k] = v
		}
		for k, v := range cli.RuntimeOptions {
			merged[k] = v
		}
		out.RuntimeOptions = merged
	}
	return out
}
