package target

import "testing"

func TestResolvePrecedenceCLIOverScenario(t *testing.T) {
	Reset()
	defer Reset()
	sel, diag := Resolve(SelectionSources{
		CLIRuntimeID:      "dimod-neighborhood-v1",
		ScenarioRuntimeID: "some-other-runtime",
	})
	if diag != nil {
		t.Fatalf("unexpected diagnostic: %v", diag)
	}
	if sel.RuntimeID != "dimod-neighborhood-v1" {
		t.Fatalf("expected CLI runtime id to win, got %q", sel.RuntimeID)
	}
	if sel.BackendID != defaultBackendID {
		t.Fatalf("expected default backend id, got %q", sel.BackendID)
	}
}

func TestResolveUnresolvedWithoutAnyRuntime(t *testing.T) {
	Reset()
	defer Reset()
	_, diag := Resolve(SelectionSources{})
	if diag == nil {
		t.Fatalf("expected a diagnostic when no runtime id resolves from any source")
	}
}

func TestResolveIncompatiblePair(t *testing.T) {
	Reset()
	defer Reset()
	if err := RegisterBackend(BackendPlugin{ID: "other-backend"}); err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}
	_, diag := Resolve(SelectionSources{CLIRuntimeID: "dimod-neighborhood-v1", CLIBackendID: "other-backend"})
	if diag == nil {
		t.Fatalf("expected an incompatible-pair diagnostic")
	}
}

func TestRegisterDuplicateBackendRejected(t *testing.T) {
	Reset()
	defer Reset()
	if err := RegisterBackend(BackendPlugin{ID: "dimod-cqm-v1"}); err == nil {
		t.Fatalf("expected duplicate backend id to be rejected")
	}
}

func TestCheckCapabilitiesNoneFailsReport(t *testing.T) {
	Reset()
	defer Reset()
	sel := Selection{RuntimeID: "dimod-neighborhood-v1", BackendID: "dimod-cqm-v1"}
	report := CheckCapabilities(sel, []string{"nonexistent.capability.v1"}, nil)
	if report.Supported {
		t.Fatalf("expected an undeclared capability to fail the report")
	}
	if len(report.Issues) != 1 {
		t.Fatalf("expected exactly one issue, got %d", len(report.Issues))
	}
}

func TestCheckCapabilitiesFullSupported(t *testing.T) {
	Reset()
	defer Reset()
	sel := Selection{RuntimeID: "dimod-neighborhood-v1", BackendID: "dimod-cqm-v1"}
	report := CheckCapabilities(sel, []string{"objective.sum.v1", "bool.and.v1"}, nil)
	if !report.Supported {
		t.Fatalf("expected declared full capabilities to be supported, issues: %v", report.Issues)
	}
}
