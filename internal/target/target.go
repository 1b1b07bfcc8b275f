// Package target implements target selection, compatibility, and capability
// gating (spec §4.11): a process-wide plugin registry of named backend/
// runtime plugins, precedence-based (runtime_id, backend_id) resolution,
// a runtime/backend compatibility check, and a capability-based
// compatibility gate producing a structured support report.
//
// Grounded on the teacher's internal/runtime/module.go RegisterModule /
// registry-with-sync.RWMutex pattern, generalized from "named Python
// modules" to "named runtime/backend plugins". Plugins are registered as
// plain BackendPlugin/RuntimePlugin values.
package target

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/qsol-lang/qsol/internal/model"
)

// Capability is a backend or runtime's declared support level for a named
// feature (spec §4.11).
type Capability int

const (
	CapNone Capability = iota
	CapPartial
	CapFull
)

// BackendPlugin is the protocol a concrete CQM/BQM-consuming sampler
// backend implements. No sampler library ships in this module (spec §1
// Non-goals); the only concrete runtime is cmd/qsolc's brute-force
// enumerator.
type BackendPlugin struct {
	ID           string
	Capabilities map[string]Capability
}

// RuntimePlugin is the protocol a concrete runtime (a thing that actually
// dispatches a compiled model to a sampler) implements.
type RuntimePlugin struct {
	ID                  string
	CompatibleBackendIDs []string
}

// registry is the process-wide plugin registry (spec §5 "shared resources
// ... initialized once; after freezing it is read-only").
type registry struct {
	mu       sync.RWMutex
	frozen   bool
	backends map[string]BackendPlugin
	runtimes map[string]RuntimePlugin
	order    []string // insertion order, built-in first, for stable dedup diagnostics
}

var global = newRegistry()

func newRegistry() *registry {
	return &registry{backends: map[string]BackendPlugin{}, runtimes: map[string]RuntimePlugin{}}
}

// RegisterBackend inserts a backend plugin. Built-ins are inserted first by
// this package's init(); entry-point, config, and CLI-supplied bundles are
// inserted afterward by their respective callers, in that precedence order
// (spec §4.11 "Built-in ... inserted first ... Config-supplied and
// CLI-supplied plugin bundles are applied last").
func RegisterBackend(b BackendPlugin) error {
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.frozen {
		return fmt.Errorf("plugin registry is frozen")
	}
	if _, dup := global.backends[b.ID]; dup {
		return &model.Diagnostic{Severity: model.SevError, Code: model.CodePluginLoad, Message: fmt.Sprintf("duplicate backend id %q", b.ID)}
	}
	global.backends[b.ID] = b
	global.order = append(global.order, "backend:"+b.ID)
	return nil
}

// RegisterRuntime inserts a runtime plugin, with the same duplicate-id
// rejection as RegisterBackend.
func RegisterRuntime(r RuntimePlugin) error {
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.frozen {
		return fmt.Errorf("plugin registry is frozen")
	}
	if _, dup := global.runtimes[r.ID]; dup {
		return &model.Diagnostic{Severity: model.SevError, Code: model.CodePluginLoad, Message: fmt.Sprintf("duplicate runtime id %q", r.ID)}
	}
	global.runtimes[r.ID] = r
	global.order = append(global.order, "runtime:"+r.ID)
	return nil
}

// Freeze makes the registry read-only for the remainder of the process
// (spec §5).
func Freeze() {
	global.mu.Lock()
	global.frozen = true
	global.mu.Unlock()
}

// Reset clears the registry and re-installs the built-ins; exported for
// test isolation only.
func Reset() {
	global.mu.Lock()
	global.frozen = false
	global.backends = map[string]BackendPlugin{}
	global.runtimes = map[string]RuntimePlugin{}
	global.order = nil
	global.mu.Unlock()
	registerBuiltins()
}

func init() {
	registerBuiltins()
}

// registerBuiltins installs the one backend this module actually knows how
// to codegen for: dimod-cqm-v1, the default (spec §4.11 "Backend defaults
// to dimod-cqm-v1"). Its capability catalog is declared full for every
// capability identifier internal/backend can emit.
func registerBuiltins() {
	_ = RegisterBackend(BackendPlugin{
		ID: "dimod-cqm-v1",
		Capabilities: map[string]Capability{
			"objective.sum.v1":          CapFull,
			"unknown.mapping.v1":        CapFull,
			"constraint.linear.v1":      CapFull,
			"constraint.quadratic.v1":   CapFull,
			"constraint.compare.eq.v1":  CapFull,
			"constraint.compare.ne.v1":  CapFull,
			"constraint.compare.lt.v1":  CapFull,
			"constraint.compare.le.v1":  CapFull,
			"constraint.compare.gt.v1":  CapFull,
			"constraint.compare.ge.v1":  CapFull,
			"bool.and.v1":               CapFull,
			"bool.or.v1":                CapFull,
			"bool.not.v1":               CapFull,
			"bool.implies.v1":           CapFull,
		},
	})
	_ = RegisterRuntime(RuntimePlugin{ID: "dimod-neighborhood-v1", CompatibleBackendIDs: []string{"dimod-cqm-v1"}})
}

// Selection is a resolved (runtime, backend) pair.
type Selection struct {
	RuntimeID string
	BackendID string
}

// SelectionSources layers the four precedence tiers spec §4.11 names:
// CLI > scenario execution > config entrypoint > default.
type SelectionSources struct {
	CLIRuntimeID, CLIBackendID       string
	ScenarioRuntimeID, ScenarioBackendID string
	ConfigRuntimeID, ConfigBackendID string
}

const defaultBackendID = "dimod-cqm-v1"

// Resolve picks (runtime_id, backend_id) per spec §4.11's precedence,
// validates both ids exist, and checks runtime/backend compatibility.
func Resolve(src SelectionSources) (Selection, *model.Diagnostic) {
	backendID := firstNonEmpty(src.CLIBackendID, src.ScenarioBackendID, src.ConfigBackendID, defaultBackendID)
	runtimeID := firstNonEmpty(src.CLIRuntimeID, src.ScenarioRuntimeID, src.ConfigRuntimeID)
	if runtimeID == "" {
		return Selection{}, &model.Diagnostic{Severity: model.SevError, Code: model.CodeSelectionUnresolved, Message: "no runtime_id resolved from CLI/scenario/config"}
	}

	global.mu.RLock()
	_, backendOK := global.backends[backendID]
	rt, runtimeOK := global.runtimes[runtimeID]
	global.mu.RUnlock()

	if !backendOK {
		return Selection{}, &model.Diagnostic{Severity: model.SevError, Code: model.CodeUnknownTargetID, Message: fmt.Sprintf("unknown backend id %q", backendID)}
	}
	if !runtimeOK {
		return Selection{}, &model.Diagnostic{Severity: model.SevError, Code: model.CodeUnknownTargetID, Message: fmt.Sprintf("unknown runtime id %q", runtimeID)}
	}
	if !contains(rt.CompatibleBackendIDs, backendID) {
		return Selection{}, &model.Diagnostic{Severity: model.SevError, Code: model.CodeIncompatiblePair, Message: fmt.Sprintf("runtime %q is not compatible with backend %q", runtimeID, backendID)}
	}
	return Selection{RuntimeID: runtimeID, BackendID: backendID}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func contains(vals []string, v string) bool {
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}

// SupportIssue is one capability gap or other support problem (spec §4.11).
type SupportIssue struct {
	Code       string
	Message    string
	Capability string
}

// SupportReport is the capability_report.json shape (spec §6).
type SupportReport struct {
	Supported            bool
	Selection            Selection
	RequiredCapabilities []string
	BackendCapabilities  map[string]string
	RuntimeCapabilities  map[string]string
	Issues               []SupportIssue
}

// CheckCapabilities cross-checks required against the selected backend's
// declared catalog (spec §4.11): any `none` fails the whole report with
// QSOL4010; `partial` is recorded as a note but still supported.
func CheckCapabilities(sel Selection, required []string, logger *zap.Logger) SupportReport {
	global.mu.RLock()
	backend := global.backends[sel.BackendID]
	global.mu.RUnlock()

	report := SupportReport{
		Selection:            sel,
		RequiredCapabilities: required,
		BackendCapabilities:  map[string]string{},
		RuntimeCapabilities:  map[string]string{"dispatch.sync.v1": "full"},
		Supported:            true,
	}
	sort.Strings(report.RequiredCapabilities)

	for _, capID := range required {
		level, declared := backend.Capabilities[capID]
		if !declared {
			level = CapNone
		}
		report.BackendCapabilities[capID] = capString(level)
		switch level {
		case CapNone:
			report.Supported = false
			report.Issues = append(report.Issues, SupportIssue{Code: model.CodeUnsupportedCapability, Message: fmt.Sprintf("backend %q does not support capability %q", sel.BackendID, capID), Capability: capID})
		case CapPartial:
			report.Issues = append(report.Issues, SupportIssue{Message: fmt.Sprintf("backend %q only partially supports capability %q", sel.BackendID, capID), Capability: capID})
		}
	}
	if logger != nil {
		logger.Info("capability check",
			zap.String("runtime", sel.RuntimeID),
			zap.String("backend", sel.BackendID),
			zap.Bool("supported", report.Supported),
			zap.Int("required", len(required)),
		)
	}
	return report
}

func capString(c Capability) string {
	switch c {
	case CapFull:
		return "full"
	case CapPartial:
		return "partial"
	default:
		return "none"
	}
}
