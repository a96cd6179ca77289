package genetics

import "github.com/cwbudde/nmcolony/internal/config"

// shrinkDomain re-bounds the search domain around the king's best params
// per cfg.ShrinkMode, then either leaves propagation to reseedAll (when
// ResetOnShrink) or pushes the new bounds straight to every worker.
func (g *Genetics) shrinkDomain(kingParams []float64) error {
	dim := len(g.simplexCfg.Upper)
	newLower := append([]float64(nil), g.simplexCfg.Lower...)
	newUpper := append([]float64(nil), g.simplexCfg.Upper...)

	switch g.cfg.ShrinkMode {
	case config.ShrinkAround:
		for i := 0; i < dim; i++ {
			r := g.simplexCfg.Upper[i] - g.simplexCfg.Lower[i]
			newUpper[i] = kingParams[i] + r*g.cfg.ShrinkFactorBoundary
			newLower[i] = kingParams[i] - r*g.cfg.ShrinkFactorBoundary
		}

	case config.ShrinkChangeLowerIfNeg:
		for i := 0; i < dim; i++ {
			if g.simplexCfg.Lower[i] < 0 {
				newLower[i] = kingParams[i]
			}
		}
	}

	g.simplexCfg.Lower = newLower
	g.simplexCfg.Upper = newUpper

	if g.cfg.ResetOnShrink {
		return nil
	}
	return g.colony.UpdateBounds(newLower, newUpper)
}
