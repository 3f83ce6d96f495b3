package allocation

import "github.com/rs/zerolog"

// VarianceCalculator annotates every cell with policy and effective variance,
// in currency and percentage terms. No special-casing: a cell with zero
// policy value gets a variance equal to its full actual value, which is the
// correct signal for an entirely unplanned holding.
type VarianceCalculator struct {
	log zerolog.Logger
}

// NewVarianceCalculator creates a new variance calculator
func NewVarianceCalculator(log zerolog.Logger) *VarianceCalculator {
	return &VarianceCalculator{
		log: log.With().Str("service", "variance_calculator").Logger(),
	}
}

// Annotate fills the variance fields of every cell in the arena
func (v *VarianceCalculator) Annotate(arena *Arena) {
	for _, cell := range arena.Cells() {
		cell.PolicyVarianceValue = cell.ActualValue.Sub(cell.PolicyValue)
		cell.PolicyVariancePct = cell.ActualPct - cell.PolicyPct
		cell.EffectiveVarianceValue = cell.ActualValue.Sub(cell.EffectiveValue)
		cell.EffectiveVariancePct = cell.ActualPct - cell.EffectivePct
	}
}
