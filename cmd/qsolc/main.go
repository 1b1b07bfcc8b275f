// Command qsolc is the thin CLI driver for the qsol pipeline. Spec §1 names
// CLI argument parsing and terminal rendering as external-collaborator
// Non-goals, so this driver only wires stdlib flag, reads a .qsol file and
// a scenario payload, runs the pipeline through codegen, resolves a target,
// optionally dispatches against the driver's one built-in demonstration
// runtime, and writes the artifact set from spec §6 -- it never attempts
// table rendering, grounded on the teacher's cmd/rage/main.go, which is
// likewise a flat read-compile-run-exit driver with no subcommands.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/qsol-lang/qsol/internal/artifact"
	"github.com/qsol-lang/qsol/internal/config"
	"github.com/qsol-lang/qsol/internal/dispatch"
	"github.com/qsol-lang/qsol/internal/model"
	"github.com/qsol-lang/qsol/internal/qlog"
	"github.com/qsol-lang/qsol/internal/target"
	"github.com/qsol-lang/qsol/pkg/qsol"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		sourcePath   = flag.String("source", "", "path to a .qsol source file (required)")
		scenarioPath = flag.String("scenario", "", "path to a JSON or YAML scenario payload (required)")
		outDir       = flag.String("out", "qsol-out", "output directory for the artifact set")
		runtimeID    = flag.String("runtime", "", "runtime id to dispatch against (default: none, compile-only)")
		backendID    = flag.String("backend", "", "backend id to target (default: dimod-cqm-v1)")
		solutions    = flag.Int("solutions", 1, "number of top-ranked solutions to keep")
		energyMin    = flag.Float64("energy-min", 0, "inclusive minimum energy threshold (ignored unless -energy-min-set)")
		energyMinSet = flag.Bool("energy-min-set", false, "apply -energy-min")
		energyMax    = flag.Float64("energy-max", 0, "inclusive maximum energy threshold (ignored unless -energy-max-set)")
		energyMaxSet = flag.Bool("energy-max-set", false, "apply -energy-max")
		timeout      = flag.Duration("timeout", 0, "dispatch timeout (0 = no timeout)")
		verbose      = flag.Bool("verbose", false, "enable debug-level logging")
	)
	flag.Parse()

	if *sourcePath == "" || *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "usage: qsolc -source file.qsol -scenario scenario.json [-out dir] [-runtime id] [-backend id]")
		return 1
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output directory: %v\n", err)
		return 1
	}
	logger, err := qlog.NewToFile(*verbose, filepath.Join(*outDir, "qsol.log"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	source, err := os.ReadFile(*sourcePath)
	if err != nil {
		return fail(logger, *outDir, nil, model.Diagnostic{Severity: model.SevError, Code: model.CodeFileRead, Message: err.Error()})
	}
	scenarioData, err := os.ReadFile(*scenarioPath)
	if err != nil {
		return fail(logger, *outDir, nil, model.Diagnostic{Severity: model.SevError, Code: model.CodeFileRead, Message: err.Error()})
	}
	payload, diag := config.LoadScenarioYAML(scenarioData)
	if diag != nil {
		return fail(logger, *outDir, nil, *diag)
	}

	pipeline := qsol.NewPipeline(string(source), qsol.WithBaseDir(filepath.Dir(*sourcePath)))
	if diags := pipeline.Diagnostics(); hasErrors(diags) {
		return fail(logger, *outDir, diags)
	}

	ctx := context.Background()
	compiled, diags := pipeline.Ground(ctx, payload)
	if hasErrors(diags) {
		return fail(logger, *outDir, diags)
	}

	registerBruteForce()
	// Without -runtime only the backend is selected and dispatch is skipped.
	sel := target.Selection{BackendID: *backendID}
	if sel.BackendID == "" {
		sel.BackendID = "dimod-cqm-v1"
	}
	if *runtimeID != "" {
		var selErr *model.Diagnostic
		sel, selErr = target.Resolve(target.SelectionSources{CLIRuntimeID: *runtimeID, CLIBackendID: *backendID})
		if selErr != nil {
			return fail(logger, *outDir, diags, *selErr)
		}
	}

	report := target.CheckCapabilities(sel, compiled.RequiredCapabilities, logger)

	bundle := artifact.Bundle{
		CQM:         compiled.CQM,
		BQM:         compiled.BQM,
		Report:      report,
		Diagnostics: diags,
	}

	exitCode := 0
	if !report.Supported {
		exitCode = 1
	} else if sel.RuntimeID == bruteForceRuntimeID {
		opts := []dispatch.RunOption{
			dispatch.WithSolutions(*solutions),
			dispatch.WithLogger(logger),
		}
		if *timeout > 0 {
			opts = append(opts, dispatch.WithTimeout(*timeout))
		}
		if *energyMinSet || *energyMaxSet {
			var lo, hi *float64
			if *energyMinSet {
				lo = energyMin
			}
			if *energyMaxSet {
				hi = energyMax
			}
			opts = append(opts, dispatch.WithEnergyRange(lo, hi))
		}
		result, runErr := dispatch.Run(ctx, bruteForceRuntime{}, compiled.CQM, compiled.BQM, sel.RuntimeID, sel.BackendID, opts...)
		if runErr != nil {
			diags = append(diags, *runErr)
			exitCode = 1
		} else {
			bundle.RunResult = result
			if result.Status != "ok" {
				exitCode = 1
			}
		}
	} else {
		logger.Info("no dispatch runtime selected; writing compile-time artifacts only",
			zap.String("runtime", sel.RuntimeID))
	}
	bundle.Diagnostics = diags

	if err := artifact.WriteAll(*outDir, bundle); err != nil {
		fmt.Fprintf(os.Stderr, "error writing artifacts: %v\n", err)
		return 1
	}

	fmt.Println(model.Summary(diags))
	return exitCode
}

const bruteForceRuntimeID = "brute-force-v1"

func registerBruteForce() {
	_ = target.RegisterRuntime(target.RuntimePlugin{ID: bruteForceRuntimeID, CompatibleBackendIDs: []string{"dimod-cqm-v1"}})
}

func hasErrors(diags []model.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == model.SevError {
			return true
		}
	}
	return false
}

// fail prints diags, writes an explain-only artifact best-effort, and
// returns the non-zero exit code spec §7 requires on any error.
func fail(logger *zap.Logger, outDir string, diags []model.Diagnostic, extra ...model.Diagnostic) int {
	all := append(append([]model.Diagnostic{}, diags...), extra...)
	for _, d := range all {
		logger.Error(d.Message, zap.String("code", d.Code))
	}
	data := artifact.ExplainDoc{Diagnostics: all}
	_ = writeExplainOnly(outDir, data)
	fmt.Fprintln(os.Stderr, model.Summary(all))
	return 1
}

func writeExplainOnly(outDir string, doc artifact.ExplainDoc) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outDir, "explain.json"), data, 0o644)
}
