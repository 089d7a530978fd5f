package thermo

import "math"

const (
	// flashMaxIter caps the Newton iterations in RachfordRice.
	flashMaxIter = 50
	// flashTolerance is the residual magnitude accepted as converged.
	flashTolerance = 1.0e-6

	// Vapor-fraction boundaries below and above which a flash result is
	// treated as single-phase.
	liquidBoundary = 0.001
	vaporBoundary  = 0.999
)

// FlashResult holds the outcome of an isothermal flash.
type FlashResult struct {
	V         float64     // equilibrium vapor fraction
	Liquid    Composition // liquid-phase mole fractions
	Vapor     Composition // vapor-phase mole fractions
	Phase     Phase       // classification after boundary handling
	Converged bool
}

// RachfordRice solves Σ zᵢ(Kᵢ−1)/(1+V(Kᵢ−1)) = 0 for the vapor
// fraction V by Newton–Raphson starting from V=0.5, clamping each step
// into [0,1]. It returns the last iterate and whether the residual
// dropped below the convergence tolerance within the iteration cap; a
// capped result is reported, not hidden.
func RachfordRice(z Composition, K map[string]float64) (float64, bool) {
	V := 0.5
	for i := 0; i < flashMaxIter; i++ {
		var r, dr float64
		for id, zi := range z {
			Ki, ok := K[id]
			if !ok {
				Ki = KUnknown
			}
			km1 := Ki - 1
			den := 1 + V*km1
			if den == 0 {
				den = 1e-12
			}
			r += zi * km1 / den
			dr -= zi * km1 * km1 / (den * den)
		}
		if math.Abs(r) < flashTolerance {
			return V, true
		}
		if dr == 0 {
			return V, false
		}
		V -= r / dr
		if V < 0 {
			V = 0
		} else if V > 1 {
			V = 1
		}
	}
	return V, false
}

// FlashComposition back-computes the phase compositions for a solved
// vapor fraction: xᵢ = zᵢ/(1+V(Kᵢ−1)) and yᵢ = Kᵢ·xᵢ. The returned
// compositions are not renormalized.
func FlashComposition(z Composition, K map[string]float64, V float64) (liquid, vapor Composition) {
	liquid = make(Composition, len(z))
	vapor = make(Composition, len(z))
	for id, zi := range z {
		Ki, ok := K[id]
		if !ok {
			Ki = KUnknown
		}
		den := 1 + V*(Ki-1)
		if den == 0 {
			den = 1e-12
		}
		xi := zi / den
		liquid[id] = xi
		vapor[id] = Ki * xi
	}
	return liquid, vapor
}

// Flash performs an isothermal flash of the feed composition at T and
// P. Feeds whose K-values put them entirely on one side of equilibrium
// are classified directly without running the solver, so a cleanly
// single-phase feed never reports a convergence failure. Two-phase
// feeds are solved with RachfordRice and classified by the
// vapor-fraction boundaries.
func (db *ComponentDB) Flash(z Composition, T, P float64) FlashResult {
	K := make(map[string]float64, len(z))
	allAbove, allBelow := true, true
	for id, x := range z {
		Ki := db.KValue(id, T, P)
		K[id] = Ki
		if x <= 0 {
			continue
		}
		if Ki <= 1 {
			allAbove = false
		}
		if Ki >= 1 {
			allBelow = false
		}
	}
	if allAbove {
		liquid, _ := FlashComposition(z, K, 1)
		return FlashResult{V: 1, Liquid: liquid.Normalize(), Vapor: z.Clone(), Phase: Vapor, Converged: true}
	}
	if allBelow {
		_, vapor := FlashComposition(z, K, 0)
		return FlashResult{V: 0, Liquid: z.Clone(), Vapor: vapor.Normalize(), Phase: Liquid, Converged: true}
	}

	V, converged := RachfordRice(z, K)
	liquid, vapor := FlashComposition(z, K, V)
	phase := VaporLiquid
	switch {
	case V <= liquidBoundary:
		phase = Liquid
	case V >= vaporBoundary:
		phase = Vapor
	}
	return FlashResult{V: V, Liquid: liquid, Vapor: vapor, Phase: phase, Converged: converged}
}
