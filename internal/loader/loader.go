// Package loader resolves a QSOL program's recursive `use` imports into one
// logical program, cycle-safe, grounded on the teacher's filesystem-module
// loader (internal/runtime/module.go in rage): a cache of loaded modules plus
// an in-progress "currently loading" set used to detect cycles, generalized
// from Python's dotted-module-to-.py-file mapping to QSOL's `a.b.c` →
// `a/b/c.qsol` mapping (spec §4.1).
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qsol-lang/qsol/internal/compiler"
	"github.com/qsol-lang/qsol/internal/model"
	"github.com/qsol-lang/qsol/internal/stdlib"
)

// FileReader abstracts source file access so tests can supply an in-memory
// filesystem without touching disk.
type FileReader func(path string) ([]byte, error)

// Loader resolves `use` imports starting from a root file.
type Loader struct {
	read    FileReader
	rootDir string
	cwd     string

	visited map[string]bool // canonical path -> true once fully loaded
	loading map[string]bool // canonical path -> true while in-progress (cycle detection)
}

func New(rootDir, cwd string) *Loader {
	return NewWithReader(rootDir, cwd, func(path string) ([]byte, error) {
		return os.ReadFile(path)
	})
}

func NewWithReader(rootDir, cwd string, read FileReader) *Loader {
	return &Loader{
		read:    read,
		rootDir: rootDir,
		cwd:     cwd,
		visited: map[string]bool{},
		loading: map[string]bool{},
	}
}

// modulePathToFile maps a dotted module path ("a.b.c") to a relative file
// path ("a/b/c.qsol"), spec §4.1/§6.
func modulePathToFile(path []string) string {
	return filepath.Join(path...) + ".qsol"
}

// resolveFile finds the concrete file backing a `use` path, trying (in
// order) the stdlib tree, the importing file's directory, then the process
// CWD, per spec §4.1.
func (l *Loader) resolveFile(path []string, fromDir string) (string, bool, error) {
	rel := modulePathToFile(path)

	if len(path) > 0 && path[0] == "stdlib" {
		if _, ok := stdlib.Lookup(strings.Join(path[1:], ".")); ok {
			return "stdlib:" + strings.Join(path, "."), true, nil
		}
		return "", false, fmt.Errorf("no stdlib module named %q", strings.Join(path, "."))
	}

	candidate := filepath.Join(fromDir, rel)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, false, nil
	}
	candidate = filepath.Join(l.cwd, rel)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, false, nil
	}
	return "", false, fmt.Errorf("module %q not found", strings.Join(path, "."))
}

// LoadResult is the concatenated program plus any diagnostics gathered while
// resolving every transitively imported module.
type LoadResult struct {
	Program *model.Program
	Diags   []model.Diagnostic
}

// LoadFile loads the root file and every transitively imported module,
// preserving declaration order with imports first (spec §4.1).
func (l *Loader) LoadFile(rootPath string) LoadResult {
	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return LoadResult{Diags: []model.Diagnostic{{
			Severity: model.SevError, Code: model.CodeFileRead, Message: err.Error(),
		}}}
	}
	prog := &model.Program{}
	var diags []model.Diagnostic
	l.loadInto(abs, filepath.Dir(abs), true, prog, &diags)
	return LoadResult{Program: prog, Diags: diags}
}

func (l *Loader) loadInto(canonical, dir string, isRoot bool, out *model.Program, diags *[]model.Diagnostic) {
	if l.visited[canonical] {
		return
	}
	if l.loading[canonical] {
		*diags = append(*diags, model.Diagnostic{
			Severity: model.SevError,
			Code:     model.CodeShape,
			Message:  fmt.Sprintf("import cycle detected at %q", canonical),
		})
		return
	}
	l.loading[canonical] = true
	defer func() {
		delete(l.loading, canonical)
		l.visited[canonical] = true
	}()

	var src []byte
	var err error
	if strings.HasPrefix(canonical, "stdlib:") {
		name := strings.TrimPrefix(canonical, "stdlib:")
		mod, ok := stdlib.Lookup(strings.TrimPrefix(name, "stdlib."))
		if !ok {
			*diags = append(*diags, model.Diagnostic{Severity: model.SevError, Code: model.CodeFileRead, Message: fmt.Sprintf("no stdlib module named %q", name)})
			return
		}
		src = []byte(mod.Source)
	} else {
		src, err = l.read(canonical)
		if err != nil {
			*diags = append(*diags, model.Diagnostic{Severity: model.SevError, Code: model.CodeFileRead, Message: err.Error()})
			return
		}
	}

	p := compiler.NewParserWithFilename(string(src), canonical)
	prog, parseDiags := p.Parse()
	if len(parseDiags) > 0 {
		*diags = append(*diags, parseDiags...)
		return
	}

	// Imports are resolved and appended first, then this file's own items,
	// so the concatenated program preserves "imports first" declaration
	// order (spec §4.1) even under recursive `use`.
	var ownItems []model.Item
	for _, item := range prog.Items {
		use, ok := item.(*model.UseImport)
		if !ok {
			if !isRoot {
				switch item.(type) {
				case *model.UnknownDef, *model.PredicateDef, *model.FunctionDef:
					ownItems = append(ownItems, item)
				default:
					*diags = append(*diags, model.Diagnostic{
						Severity: model.SevError,
						Code:     model.CodeShape,
						Message:  "imported modules may declare only use/unknown/predicate/function",
						Span:     item.Pos(),
					})
				}
				continue
			}
			ownItems = append(ownItems, item)
			continue
		}

		childPath, isStdlib, rerr := l.resolveFile(use.Path, dir)
		if rerr != nil {
			*diags = append(*diags, model.Diagnostic{
				Severity: model.SevError,
				Code:     model.CodeFileRead,
				Message:  rerr.Error(),
				Span:     use.Span,
			})
			continue
		}
		childDir := dir
		if !isStdlib {
			childDir = filepath.Dir(childPath)
		}
		l.loadInto(childPath, childDir, false, out, diags)
	}
	out.Items = append(out.Items, ownItems...)
}
