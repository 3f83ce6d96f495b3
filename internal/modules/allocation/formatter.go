package allocation

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/quantfolio/allocator/internal/domain"
)

// Formatter flattens the annotated arena into ordered presentation rows:
// one row per asset class with a block per account type plus the portfolio
// block, grouped by category, with subtotal rows for categories holding more
// than one asset class. All numbers stay raw; string formatting belongs to
// the display layer.
type Formatter struct {
	log zerolog.Logger
}

// NewFormatter creates a new presentation formatter
func NewFormatter(log zerolog.Logger) *Formatter {
	return &Formatter{
		log: log.With().Str("service", "presentation_formatter").Logger(),
	}
}

// Rows produces the ordered presentation row sequence from the arena
func (f *Formatter) Rows(arena *Arena, snap *Snapshot) []Row {
	// Account types that actually have member accounts, in reference order
	withMembers := make(map[int64]bool)
	for _, account := range snap.Accounts {
		withMembers[account.AccountTypeID] = true
	}
	var accountTypes []domain.AccountType
	for _, at := range snap.AccountTypes {
		if withMembers[at.ID] {
			accountTypes = append(accountTypes, at)
		}
	}

	// Asset classes present in this calculation, ordered by category code
	// then name
	var classes []domain.AssetClass
	for _, cell := range arena.AtLevel(LevelPortfolio) {
		if ac, ok := snap.AssetClassByID(cell.AssetClassID); ok {
			classes = append(classes, ac)
		}
	}
	sort.SliceStable(classes, func(i, j int) bool {
		if classes[i].CategoryCode != classes[j].CategoryCode {
			return classes[i].CategoryCode < classes[j].CategoryCode
		}
		return classes[i].Name < classes[j].Name
	})

	typeCells := make(map[int64]map[int64]*Cell, len(accountTypes))
	for _, cell := range arena.AtLevel(LevelAccountType) {
		if typeCells[cell.EntityID] == nil {
			typeCells[cell.EntityID] = make(map[int64]*Cell)
		}
		typeCells[cell.EntityID][cell.AssetClassID] = cell
	}
	portfolioCells := make(map[int64]*Cell)
	for _, cell := range arena.AtLevel(LevelPortfolio) {
		portfolioCells[cell.AssetClassID] = cell
	}

	rows := make([]Row, 0, len(classes))
	for start := 0; start < len(classes); {
		end := start
		for end < len(classes) && classes[end].CategoryCode == classes[start].CategoryCode {
			end++
		}
		category := classes[start:end]

		for _, ac := range category {
			rows = append(rows, f.assetClassRow(ac, accountTypes, typeCells, portfolioCells))
		}

		// Subtotal only when the category holds more than one asset class,
		// summed from member cells rather than recomputed.
		if len(category) > 1 {
			rows = append(rows, f.subtotalRow(category, accountTypes, typeCells, portfolioCells))
		}

		start = end
	}

	return rows
}

func (f *Formatter) assetClassRow(
	ac domain.AssetClass,
	accountTypes []domain.AccountType,
	typeCells map[int64]map[int64]*Cell,
	portfolioCells map[int64]*Cell,
) Row {
	row := Row{
		RowType:        RowTypeAssetClass,
		AssetClassID:   ac.ID,
		AssetClassName: ac.Name,
		CategoryCode:   ac.CategoryCode,
		IsCash:         ac.IsCash,
		AccountTypes:   make([]TypeBlock, 0, len(accountTypes)),
	}

	for _, at := range accountTypes {
		block := TypeBlock{Code: at.Code, Label: at.Label}
		if cell, ok := typeCells[at.ID][ac.ID]; ok {
			block.Metrics = cellMetrics(cell)
		}
		row.AccountTypes = append(row.AccountTypes, block)
	}

	if cell, ok := portfolioCells[ac.ID]; ok {
		row.Portfolio = cellMetrics(cell)
	}

	return row
}

func (f *Formatter) subtotalRow(
	category []domain.AssetClass,
	accountTypes []domain.AccountType,
	typeCells map[int64]map[int64]*Cell,
	portfolioCells map[int64]*Cell,
) Row {
	row := Row{
		RowType:      RowTypeCategorySubtotal,
		CategoryCode: category[0].CategoryCode,
		AccountTypes: make([]TypeBlock, 0, len(accountTypes)),
	}

	for _, at := range accountTypes {
		block := TypeBlock{Code: at.Code, Label: at.Label}
		for _, ac := range category {
			if cell, ok := typeCells[at.ID][ac.ID]; ok {
				block.Metrics = addMetrics(block.Metrics, cellMetrics(cell))
			}
		}
		row.AccountTypes = append(row.AccountTypes, block)
	}

	for _, ac := range category {
		if cell, ok := portfolioCells[ac.ID]; ok {
			row.Portfolio = addMetrics(row.Portfolio, cellMetrics(cell))
		}
	}

	return row
}

// cellMetrics converts a cell to the presentation payload. Decimal money is
// handed out as float64 here, at the presentation boundary.
func cellMetrics(c *Cell) Metrics {
	return Metrics{
		ActualValue:            c.ActualValue.InexactFloat64(),
		ActualPct:              c.ActualPct,
		PolicyValue:            c.PolicyValue.InexactFloat64(),
		PolicyPct:              c.PolicyPct,
		EffectiveValue:         c.EffectiveValue.InexactFloat64(),
		EffectivePct:           c.EffectivePct,
		PolicyVarianceValue:    c.PolicyVarianceValue.InexactFloat64(),
		PolicyVariancePct:      c.PolicyVariancePct,
		EffectiveVarianceValue: c.EffectiveVarianceValue.InexactFloat64(),
		EffectiveVariancePct:   c.EffectiveVariancePct,
	}
}

// addMetrics sums two metric sets field by field. Percentages share a
// denominator within a block, so adding them is the correct subtotal.
func addMetrics(a, b Metrics) Metrics {
	return Metrics{
		ActualValue:            a.ActualValue + b.ActualValue,
		ActualPct:              a.ActualPct + b.ActualPct,
		PolicyValue:            a.PolicyValue + b.PolicyValue,
		PolicyPct:              a.PolicyPct + b.PolicyPct,
		EffectiveValue:         a.EffectiveValue + b.EffectiveValue,
		EffectivePct:           a.EffectivePct + b.EffectivePct,
		PolicyVarianceValue:    a.PolicyVarianceValue + b.PolicyVarianceValue,
		PolicyVariancePct:      a.PolicyVariancePct + b.PolicyVariancePct,
		EffectiveVarianceValue: a.EffectiveVarianceValue + b.EffectiveVarianceValue,
		EffectiveVariancePct:   a.EffectiveVariancePct + b.EffectiveVariancePct,
	}
}
