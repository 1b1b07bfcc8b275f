// Package artifact writes the output directory spec §6 describes: the
// delegated-format model.cqm/model.bqm blobs (via a pluggable ModelEncoder),
// the qubo.json/ising.json wire views, varmap.json, explain.json,
// capability_report.json, and run.json.
//
// Grounded on the teacher's test/integration/integration_test_runner.go and
// test/project/main.go, both of which serialize results with
// encoding/json.MarshalIndent -- the same stdlib choice is used here rather
// than a third-party codec, since no example repo in the pack reaches for
// one for this kind of plain structured-result serialization.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/qsol-lang/qsol/internal/backend"
	"github.com/qsol-lang/qsol/internal/dispatch"
	"github.com/qsol-lang/qsol/internal/model"
	"github.com/qsol-lang/qsol/internal/target"
)

// ModelEncoder produces the delegated-format bytes for model.cqm/model.bqm
// (spec §6 "serialized ... (delegated format)"); the format itself is an
// external-collaborator Non-goal, but the artifact contract still needs
// something written so it is testable end-to-end.
type ModelEncoder interface {
	EncodeCQM(cqm *backend.CQM) ([]byte, error)
	EncodeBQM(bqm *backend.BQM) ([]byte, error)
}

// JSONModelEncoder is the default ModelEncoder: a deterministic,
// self-describing JSON rendering of the CQM/BQM term maps.
type JSONModelEncoder struct{}

func (JSONModelEncoder) EncodeCQM(cqm *backend.CQM) ([]byte, error) {
	type row struct {
		Label string  `json:"label"`
		Sense string  `json:"sense"`
		RHS   float64 `json:"rhs"`
		Poly  polyView `json:"poly"`
	}
	doc := struct {
		Schema      string `json:"schema"`
		Objective   polyView `json:"objective"`
		Constraints []row  `json:"constraints"`
	}{Schema: "qsol.cqm.v1", Objective: newPolyView(cqm.Objective)}
	for _, c := range cqm.Constraints {
		doc.Constraints = append(doc.Constraints, row{Label: c.Label, Sense: c.Sense.String(), RHS: c.RHS, Poly: newPolyView(c.Poly)})
	}
	return json.MarshalIndent(doc, "", "  ")
}

func (JSONModelEncoder) EncodeBQM(bqm *backend.BQM) ([]byte, error) {
	doc := struct {
		Schema       string   `json:"schema"`
		PenaltyScale float64  `json:"penalty_scale"`
		Poly         polyView `json:"poly"`
	}{Schema: "qsol.bqm.v1", PenaltyScale: bqm.PenaltyScale, Poly: newPolyView(bqm.Poly)}
	return json.MarshalIndent(doc, "", "  ")
}

type polyView struct {
	Offset    float64            `json:"offset"`
	Linear    map[string]float64 `json:"linear"`
	Quadratic []quadTerm         `json:"quadratic"`
}

type quadTerm struct {
	U    string  `json:"u"`
	V    string  `json:"v"`
	Bias float64 `json:"bias"`
}

func newPolyView(p *backend.Polynomial) polyView {
	v := polyView{Offset: p.Offset, Linear: p.Linear}
	for k, bias := range p.Quadratic {
		v.Quadratic = append(v.Quadratic, quadTerm{U: k[0], V: k[1], Bias: bias})
	}
	sort.Slice(v.Quadratic, func(i, j int) bool {
		if v.Quadratic[i].U != v.Quadratic[j].U {
			return v.Quadratic[i].U < v.Quadratic[j].U
		}
		return v.Quadratic[i].V < v.Quadratic[j].V
	})
	return v
}

// QUBOTerm is one entry of qubo.json's terms array; u==v is a linear term
// (spec §6).
type QUBOTerm struct {
	U    string  `json:"u"`
	V    string  `json:"v"`
	Bias float64 `json:"bias"`
}

// QUBODoc is the qubo.json shape (spec §6).
type QUBODoc struct {
	Offset float64    `json:"offset"`
	Terms  []QUBOTerm `json:"terms"`
}

// BuildQUBO renders bqm's polynomial as the offset+terms view.
func BuildQUBO(bqm *backend.BQM) QUBODoc {
	doc := QUBODoc{Offset: bqm.Poly.Offset}
	for v, bias := range bqm.Poly.Linear {
		doc.Terms = append(doc.Terms, QUBOTerm{U: v, V: v, Bias: bias})
	}
	for k, bias := range bqm.Poly.Quadratic {
		doc.Terms = append(doc.Terms, QUBOTerm{U: k[0], V: k[1], Bias: bias})
	}
	return doc
}

// IsingDoc is the ising.json shape (spec §6): h/J keyed by variable and
// variable-pair respectively.
type IsingDoc struct {
	Offset float64            `json:"offset"`
	H      map[string]float64 `json:"h"`
	J      []IsingCoupling    `json:"j"`
}

// IsingCoupling is one (u,v)->bias entry of J; JSON object keys can't be
// tuples, so J is rendered as an array of {u,v,bias} triples like
// qubo.json's terms.
type IsingCoupling struct {
	U    string  `json:"u"`
	V    string  `json:"v"`
	Bias float64 `json:"bias"`
}

// BuildIsing converts a QUBO view into spin (+-1) form via the standard
// x = (s+1)/2 substitution, folding the resulting constant/linear shifts
// back into Offset/H.
func BuildIsing(bqm *backend.BQM) IsingDoc {
	doc := IsingDoc{H: map[string]float64{}}
	offset := bqm.Poly.Offset
	for v, bias := range bqm.Poly.Linear {
		offset += bias / 2
		doc.H[v] += bias / 2
	}
	for k, bias := range bqm.Poly.Quadratic {
		u, v := k[0], k[1]
		offset += bias / 4
		doc.H[u] += bias / 4
		doc.H[v] += bias / 4
		doc.J = append(doc.J, IsingCoupling{U: u, V: v, Bias: bias / 4})
	}
	doc.Offset = offset
	return doc
}

// ExplainDoc is the explain.json shape (spec §6).
type ExplainDoc struct {
	Diagnostics []model.Diagnostic `json:"diagnostics"`
}

// CapabilityReportDoc is the capability_report.json shape (spec §6), adding
// model_summary alongside target.SupportReport's fields.
type CapabilityReportDoc struct {
	Supported            bool                   `json:"supported"`
	Selection            target.Selection       `json:"selection"`
	RequiredCapabilities []string               `json:"required_capabilities"`
	BackendCapabilities  map[string]string      `json:"backend_capabilities"`
	RuntimeCapabilities  map[string]string      `json:"runtime_capabilities"`
	ModelSummary         backend.Stats          `json:"model_summary"`
	Issues               []target.SupportIssue `json:"issues"`
}

// Bundle is every piece of information WriteAll needs to produce the full
// artifact set. RunResult may be nil (no dispatch stage ran); run.json is
// skipped in that case.
type Bundle struct {
	CQM        *backend.CQM
	BQM        *backend.BQM
	Report     target.SupportReport
	Diagnostics []model.Diagnostic
	RunResult  *dispatch.StandardRunResult
	Encoder    ModelEncoder
}

// WriteAll writes every artifact spec §6 names (except qsol.log, which the
// caller's logger already owns) into dir, creating it if necessary.
func WriteAll(dir string, b Bundle) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	enc := b.Encoder
	if enc == nil {
		enc = JSONModelEncoder{}
	}

	cqmBytes, err := enc.EncodeCQM(b.CQM)
	if err != nil {
		return fmt.Errorf("encoding model.cqm: %w", err)
	}
	if err := writeFile(dir, "model.cqm", cqmBytes); err != nil {
		return err
	}

	bqmBytes, err := enc.EncodeBQM(b.BQM)
	if err != nil {
		return fmt.Errorf("encoding model.bqm: %w", err)
	}
	if err := writeFile(dir, "model.bqm", bqmBytes); err != nil {
		return err
	}

	if err := writeJSON(dir, "qubo.json", BuildQUBO(b.BQM)); err != nil {
		return err
	}
	if err := writeJSON(dir, "ising.json", BuildIsing(b.BQM)); err != nil {
		return err
	}
	if err := writeJSON(dir, "varmap.json", b.BQM.VarMap); err != nil {
		return err
	}
	if err := writeJSON(dir, "explain.json", ExplainDoc{Diagnostics: b.Diagnostics}); err != nil {
		return err
	}

	report := CapabilityReportDoc{
		Supported:            b.Report.Supported,
		Selection:            b.Report.Selection,
		RequiredCapabilities: b.Report.RequiredCapabilities,
		BackendCapabilities:  b.Report.BackendCapabilities,
		RuntimeCapabilities:  b.Report.RuntimeCapabilities,
		ModelSummary:         b.CQM.Stats(),
		Issues:               b.Report.Issues,
	}
	if err := writeJSON(dir, "capability_report.json", report); err != nil {
		return err
	}

	if b.RunResult != nil {
		if err := writeJSON(dir, "run.json", b.RunResult); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(dir, name string, data []byte) error {
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

func writeJSON(dir, name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return writeFile(dir, name, data)
}
