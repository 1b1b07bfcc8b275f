// Package qsol is the public embeddable API for compiling and grounding a
// QSOL program (spec §1, §3 "Compiled model (CompiledModel)"). It wraps the
// internal compiler/ground/backend pipeline the way pkg/rage/rage.go wraps
// the RAGE VM: a one-shot Compile entry point plus a Pipeline type for
// callers who want stage-by-stage control.
package qsol

import (
	"context"
	"os"
	"path/filepath"

	"github.com/qsol-lang/qsol/internal/backend"
	"github.com/qsol-lang/qsol/internal/compiler"
	"github.com/qsol-lang/qsol/internal/config"
	"github.com/qsol-lang/qsol/internal/ground"
	"github.com/qsol-lang/qsol/internal/kernel"
	"github.com/qsol-lang/qsol/internal/loader"
	"github.com/qsol-lang/qsol/internal/model"
)

// inlineRoot is the virtual path Compile's in-memory source is loaded as,
// so the module loader's `use` resolution (spec §4.1) still runs normally
// for sibling/stdlib imports even though the root itself has no file on
// disk.
const inlineRoot = "__inline__.qsol"

// CompiledModel is the fully codegen'd artifact spec §3 describes: a CQM,
// its BQM derivation, and the statistics/capability data the rest of the
// pipeline (internal/target, internal/dispatch) consumes.
type CompiledModel struct {
	CQM                  *backend.CQM
	BQM                  *backend.BQM
	Stats                backend.Stats
	RequiredCapabilities []string
}

// Option configures a Pipeline/Compile call.
type Option func(*pipelineConfig)

type pipelineConfig struct {
	baseDir  string
	scenario *config.ScenarioPayload
}

// WithBaseDir sets the directory sibling `use` imports are resolved
// against (spec §4.1); defaults to the process's working directory.
func WithBaseDir(dir string) Option {
	return func(c *pipelineConfig) { c.baseDir = dir }
}

// WithScenario supplies the grounding data (spec §4.9) Compile needs to
// produce a CompiledModel. Without it, Compile stops after the front end
// and returns a nil model plus the front-end diagnostics.
func WithScenario(payload *config.ScenarioPayload) Option {
	return func(c *pipelineConfig) { c.scenario = payload }
}

// Compile runs the whole pipeline -- parse, elaborate, resolve, typecheck,
// validate, desugar, lower, ground, codegen -- and returns the compiled
// model, or nil plus diagnostics on the first stage that fails.
//
// Equivalent to NewPipeline(source, opts...).Compile(ctx).
func Compile(ctx context.Context, source string, opts ...Option) (*CompiledModel, []model.Diagnostic) {
	return NewPipeline(source, opts...).Compile(ctx)
}

// Pipeline holds one compilation unit's intermediate stages, mirroring
// pkg/rage/rage.go's State: a value callers can drive one stage at a time
// (Pipeline.Diagnostics(), Pipeline.Kernel(), Pipeline.Ground(),
// Pipeline.Compile()) instead of
// only getting the end-to-end result.
type Pipeline struct {
	cfg   pipelineConfig
	prog  *model.Program
	prob  *model.ProblemDef
	scope *compiler.ProblemScope
	kern  *kernel.Program
	diags model.Diagnostics
}

// NewPipeline parses source (registering the stdlib builtin module tree
// first, spec §4.1) and runs every front-end stage through lowering,
// stopping at the first stage that reports errors.
func NewPipeline(source string, opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, o := range opts {
		o(&p.cfg)
	}

	baseDir := p.cfg.baseDir
	if baseDir == "" {
		baseDir, _ = os.Getwd()
	}
	// loader.LoadFile resolves rootPath against the process's actual working
	// directory (filepath.Abs), independent of baseDir, so the in-memory
	// reader must match against that same resolution rather than the bare
	// inlineRoot string.
	absRoot, _ := filepath.Abs(inlineRoot)
	ld := loader.NewWithReader(baseDir, baseDir, func(path string) ([]byte, error) {
		if path == absRoot {
			return []byte(source), nil
		}
		return os.ReadFile(path)
	})
	lr := ld.LoadFile(inlineRoot)
	p.diags.Extend(lr.Diags)
	p.prog = lr.Program
	if p.diags.HasErrors() {
		return p
	}

	prob, diags := compiler.ElaborateProgram(lr.Program)
	p.diags.Extend(diags)
	if p.diags.HasErrors() {
		return p
	}
	p.prob = prob

	scope, diags := compiler.Resolve(prob)
	p.diags.Extend(diags)
	p.scope = scope
	if p.diags.HasErrors() {
		return p
	}

	p.diags.Extend(compiler.TypeCheck(prob, scope))
	if p.diags.HasErrors() {
		return p
	}
	p.diags.Extend(compiler.Validate(prob, scope))
	if p.diags.HasErrors() {
		return p
	}

	desugared := compiler.Desugar(prob)
	p.kern = compiler.Lower(desugared)
	return p
}

// Diagnostics returns every diagnostic accumulated so far.
func (p *Pipeline) Diagnostics() []model.Diagnostic { return p.diags.All() }

// Kernel returns the Kernel IR, or nil if the front end failed.
func (p *Pipeline) Kernel() *kernel.Program { return p.kern }

// Ground binds the Kernel IR against payload and runs backend codegen,
// returning the compiled model. Safe to call multiple times with different
// payloads against the same front-end compile.
func (p *Pipeline) Ground(ctx context.Context, payload *config.ScenarioPayload) (*CompiledModel, []model.Diagnostic) {
	if p.kern == nil {
		return nil, p.diags.All()
	}
	groundProg, diags := ground.Ground(ctx, p.kern, payload)
	if hasErrors(diags) {
		return nil, append(p.diags.All(), diags...)
	}
	cqm, cdiags := backend.Build(groundProg)
	if hasErrors(cdiags) {
		return nil, append(p.diags.All(), append(diags, cdiags...)...)
	}
	bqm := backend.ToBQM(cqm)
	compiled := &CompiledModel{
		CQM:                  cqm,
		BQM:                  bqm,
		Stats:                cqm.Stats(),
		RequiredCapabilities: cqm.RequiredCapabilities(),
	}
	all := append(p.diags.All(), diags...)
	all = append(all, cdiags...)
	return compiled, all
}

// Compile is Ground using the scenario supplied via WithScenario.
func (p *Pipeline) Compile(ctx context.Context) (*CompiledModel, []model.Diagnostic) {
	if p.cfg.scenario == nil {
		return nil, p.diags.All()
	}
	return p.Ground(ctx, p.cfg.scenario)
}

func hasErrors(diags []model.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == model.SevError {
			return true
		}
	}
	return false
}
