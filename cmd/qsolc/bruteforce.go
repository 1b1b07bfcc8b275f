package main

import (
	"context"
	"fmt"

	"github.com/qsol-lang/qsol/internal/backend"
	"github.com/qsol-lang/qsol/internal/dispatch"
)

// bruteForceRuntime is the one concrete dispatch.Runtime this driver ships:
// an exhaustive enumerator over the BQM's variables. Concrete sampler
// libraries are an external-collaborator Non-goal (spec §1); this exists
// only so the driver can demonstrate the dispatch stage end-to-end on the
// small seed-scale problems this module targets (SPEC_FULL.md §E.4).
type bruteForceRuntime struct {
	maxVars int
}

// maxBruteForceVars bounds the enumeration to 2^maxBruteForceVars
// iterations; beyond that the runtime refuses rather than hanging.
const maxBruteForceVars = 24

func (r bruteForceRuntime) Run(ctx context.Context, bqm *backend.BQM, options map[string]string) ([]dispatch.RawSample, error) {
	vars := bqm.Poly.Vars()
	limit := r.maxVars
	if limit == 0 {
		limit = maxBruteForceVars
	}
	if len(vars) > limit {
		return nil, fmt.Errorf("brute-force-v1: %d variables exceeds the %d-variable enumeration limit", len(vars), limit)
	}

	total := uint64(1) << uint(len(vars))
	samples := make([]dispatch.RawSample, 0, total)
	for mask := uint64(0); mask < total; mask++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		sample := make(map[string]int, len(vars))
		floatSample := make(map[string]float64, len(vars))
		for i, v := range vars {
			bit := int((mask >> uint(i)) & 1)
			sample[v] = bit
			floatSample[v] = float64(bit)
		}
		energy := bqm.Poly.Eval(floatSample)
		samples = append(samples, dispatch.RawSample{Sample: sample, Energy: energy, NumOccurrences: 1})
	}
	return samples, nil
}
