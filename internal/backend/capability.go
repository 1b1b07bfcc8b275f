package backend

import "sort"

// capabilitySet accumulates the capability identifiers a compiled model
// exercises (spec §4.11 "the backend scans the Ground IR and produces a set
// of capability identifiers").
type capabilitySet map[string]bool

func (c capabilitySet) add(id string) { c[id] = true }

// Sorted returns the accumulated ids in stable order.
func (c capabilitySet) Sorted() []string {
	out := make([]string, 0, len(c))
	for id := range c {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var compareCapability = map[compareOp]string{
	cmpEq: "constraint.compare.eq.v1",
	cmpNe: "constraint.compare.ne.v1",
	cmpLt: "constraint.compare.lt.v1",
	cmpLe: "constraint.compare.le.v1",
	cmpGt: "constraint.compare.gt.v1",
	cmpGe: "constraint.compare.ge.v1",
}

// RequiredCapabilities returns the capability ids the CQM's shape requires,
// used by internal/target's compatibility gate (spec §4.11). Computation is
// a pure scan of the already-built CQM, so it is idempotent and depends only
// on the Ground IR, as required.
func (c *CQM) RequiredCapabilities() []string {
	caps := capabilitySet{}
	for id := range c.caps {
		caps.add(id)
	}
	if c.Objective.Degree() > 0 {
		caps.add("objective.sum.v1")
	}
	for _, con := range c.Constraints {
		if con.Poly.Degree() == 2 {
			caps.add("constraint.quadratic.v1")
		} else {
			caps.add("constraint.linear.v1")
		}
	}
	return caps.Sorted()
}
