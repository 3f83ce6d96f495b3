package allocation

import (
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/quantfolio/allocator/pkg/formulas"
)

var hundred = decimal.NewFromInt(100)

// Calculator builds the aggregation arena: account-level cells from holdings
// and resolved targets, then account-type and portfolio cells strictly by
// summing and weighting the level below. Rollup additivity holds by
// construction because no level is recomputed from raw holdings.
type Calculator struct {
	log zerolog.Logger
}

// NewCalculator creates a new aggregation calculator
func NewCalculator(log zerolog.Logger) *Calculator {
	return &Calculator{
		log: log.With().Str("service", "aggregation_calculator").Logger(),
	}
}

// Build computes the full cell arena for one snapshot
func (c *Calculator) Build(snap *Snapshot, resolved map[int64]ResolvedTarget) (*Arena, error) {
	arena := NewArena()

	// Holdings grouped by account and asset class
	holdingValues := make(map[int64]map[int64]decimal.Decimal)
	for _, h := range snap.Holdings {
		if holdingValues[h.AccountID] == nil {
			holdingValues[h.AccountID] = make(map[int64]decimal.Decimal)
		}
		holdingValues[h.AccountID][h.AssetClassID] = holdingValues[h.AccountID][h.AssetClassID].Add(h.Value)
	}

	// Account level: one cell per (account, asset class) appearing in either
	// holdings or the resolved target set. Policy and effective coincide here;
	// they can only drift apart once weighted averaging enters at the levels
	// above.
	for _, account := range snap.Accounts {
		target := resolved[account.ID]
		acIDs := unionIDs(holdingValues[account.ID], target.Pcts)
		total := account.TotalValue
		totalF := total.InexactFloat64()

		for _, acID := range acIDs {
			actual := holdingValues[account.ID][acID]

			actualPct := 0.0
			if totalF > 0 {
				actualPct = actual.InexactFloat64() / totalF * 100
			}

			policyPct := target.Pcts[acID]
			policyValue := total.Mul(decimal.NewFromFloat(policyPct)).Div(hundred).Round(2)

			arena.Put(&Cell{
				Level:          LevelAccount,
				EntityID:       account.ID,
				AssetClassID:   acID,
				ActualValue:    actual,
				ActualPct:      actualPct,
				PolicyValue:    policyValue,
				PolicyPct:      policyPct,
				EffectiveValue: policyValue,
				EffectivePct:   policyPct,
			})
		}
	}

	// Account-type level
	accountsByType := make(map[int64][]AccountRow)
	for _, account := range snap.Accounts {
		accountsByType[account.AccountTypeID] = append(accountsByType[account.AccountTypeID], account)
	}

	var typeChildren []childRef
	for _, at := range snap.AccountTypes {
		members := accountsByType[at.ID]
		if len(members) == 0 {
			continue
		}

		children := make([]childRef, len(members))
		for i, m := range members {
			children[i] = childRef{entityID: m.ID, total: m.TotalValue}
		}

		typeTotal := c.rollUp(arena, LevelAccountType, at.ID, LevelAccount, children)
		typeChildren = append(typeChildren, childRef{entityID: at.ID, total: typeTotal})
	}

	// Portfolio level: identical rollup one level up
	c.rollUp(arena, LevelPortfolio, PortfolioEntityID, LevelAccountType, typeChildren)

	c.log.Debug().Int("cells", len(arena.Cells())).Msg("Arena built")

	return arena, nil
}

// childRef points the rollup at one child entity and its total value
type childRef struct {
	total    decimal.Decimal
	entityID int64
}

// rollUp produces the parent entity's cells from its children's cells.
// Values are straight decimal sums. Percentages re-normalize against the
// parent total; target percentages are the value-weighted average of child
// targets, skipping zero-value children, with an unweighted mean fallback
// when the parent total is zero. Returns the parent total.
func (c *Calculator) rollUp(arena *Arena, level Level, entityID int64, childLevel Level, children []childRef) decimal.Decimal {
	parentTotal := decimal.Zero
	weights := make([]float64, len(children))
	childIndex := make(map[int64]int, len(children))
	for i, child := range children {
		parentTotal = parentTotal.Add(child.total)
		weights[i] = child.total.InexactFloat64()
		childIndex[child.entityID] = i
	}
	parentTotalF := parentTotal.InexactFloat64()

	// Child cells grouped by entity and asset class
	cellsByChild := make(map[int64]map[int64]*Cell, len(children))
	acSet := make(map[int64]bool)
	for _, cell := range arena.AtLevel(childLevel) {
		if _, ok := childIndex[cell.EntityID]; !ok {
			continue
		}
		if cellsByChild[cell.EntityID] == nil {
			cellsByChild[cell.EntityID] = make(map[int64]*Cell)
		}
		cellsByChild[cell.EntityID][cell.AssetClassID] = cell
		acSet[cell.AssetClassID] = true
	}

	acIDs := make([]int64, 0, len(acSet))
	for acID := range acSet {
		acIDs = append(acIDs, acID)
	}
	sort.Slice(acIDs, func(i, j int) bool { return acIDs[i] < acIDs[j] })

	for _, acID := range acIDs {
		actualValue := decimal.Zero
		policyValue := decimal.Zero
		effectiveValue := decimal.Zero
		policyPcts := make([]float64, len(children))
		effectivePcts := make([]float64, len(children))

		for _, child := range children {
			cell, ok := cellsByChild[child.entityID][acID]
			if !ok {
				// A child without this asset class contributes a 0% target
				// at its full weight, not a skipped sample.
				continue
			}
			actualValue = actualValue.Add(cell.ActualValue)
			policyValue = policyValue.Add(cell.PolicyValue)
			effectiveValue = effectiveValue.Add(cell.EffectiveValue)
			i := childIndex[child.entityID]
			policyPcts[i] = cell.PolicyPct
			effectivePcts[i] = cell.EffectivePct
		}

		var actualPct, policyPct, effectivePct float64
		if parentTotalF > 0 {
			actualPct = actualValue.InexactFloat64() / parentTotalF * 100
			policyPct = formulas.WeightedMean(policyPcts, weights)
			effectivePct = formulas.WeightedMean(effectivePcts, weights)
		} else {
			policyPct = formulas.Mean(policyPcts)
			effectivePct = formulas.Mean(effectivePcts)
		}

		arena.Put(&Cell{
			Level:          level,
			EntityID:       entityID,
			AssetClassID:   acID,
			ActualValue:    actualValue,
			ActualPct:      actualPct,
			PolicyValue:    policyValue,
			PolicyPct:      policyPct,
			EffectiveValue: effectiveValue,
			EffectivePct:   effectivePct,
		})
	}

	return parentTotal
}

// VerifyAdditivity checks that every portfolio cell equals the sum of its
// account-type children, which in turn equal the sums of their account
// children. Decimal sums make this exact; any mismatch is a defect.
func (c *Calculator) VerifyAdditivity(arena *Arena) error {
	sumByLevel := func(level Level) map[int64]decimal.Decimal {
		sums := make(map[int64]decimal.Decimal)
		for _, cell := range arena.AtLevel(level) {
			sums[cell.AssetClassID] = sums[cell.AssetClassID].Add(cell.ActualValue)
		}
		return sums
	}

	accountSums := sumByLevel(LevelAccount)
	typeSums := sumByLevel(LevelAccountType)

	for _, cell := range arena.AtLevel(LevelPortfolio) {
		if !cell.ActualValue.Equal(typeSums[cell.AssetClassID]) {
			return computationErrorf(
				"portfolio actual %s for asset class %d does not match account-type sum %s",
				cell.ActualValue, cell.AssetClassID, typeSums[cell.AssetClassID])
		}
		if !cell.ActualValue.Equal(accountSums[cell.AssetClassID]) {
			return computationErrorf(
				"portfolio actual %s for asset class %d does not match account sum %s",
				cell.ActualValue, cell.AssetClassID, accountSums[cell.AssetClassID])
		}
	}

	return nil
}

// unionIDs returns the sorted union of the two maps' keys
func unionIDs(a map[int64]decimal.Decimal, b map[int64]float64) []int64 {
	set := make(map[int64]bool, len(a)+len(b))
	for id := range a {
		set[id] = true
	}
	for id := range b {
		set[id] = true
	}

	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}
