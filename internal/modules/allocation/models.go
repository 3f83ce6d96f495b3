package allocation

import (
	"github.com/shopspring/decimal"

	"github.com/quantfolio/allocator/internal/domain"
)

// Level identifies the aggregation level of a cell
type Level string

const (
	LevelAccount     Level = "account"
	LevelAccountType Level = "account_type"
	LevelPortfolio   Level = "portfolio"
)

// PortfolioEntityID is the entity id carried by portfolio-level cells
const PortfolioEntityID int64 = 0

// HoldingRow is one row of the holdings snapshot table: the market value one
// account holds in one asset class.
type HoldingRow struct {
	AccountID    int64
	AssetClassID int64
	Value        decimal.Decimal
}

// AccountRow is one row of the accounts snapshot table. TotalValue is derived
// from the holdings table of the same snapshot, so preview overrides stay
// internally consistent.
type AccountRow struct {
	Name          string
	ID            int64
	AccountTypeID int64
	TotalValue    decimal.Decimal
}

// PolicyTargetRow is one stored policy percentage at one scope.
type PolicyTargetRow struct {
	Scope        domain.ScopeType
	ScopeID      int64
	AssetClassID int64
	TargetPct    float64
}

// Snapshot is the read-only input of one engine run. It is assembled by the
// Provider in a fixed number of batched queries and never written back.
type Snapshot struct {
	Holdings      []HoldingRow
	Accounts      []AccountRow
	PolicyTargets []PolicyTargetRow
	AssetClasses  []domain.AssetClass
	AccountTypes  []domain.AccountType
}

// CashClass returns the asset class flagged as implicit cash
func (s *Snapshot) CashClass() (domain.AssetClass, bool) {
	for _, ac := range s.AssetClasses {
		if ac.IsCash {
			return ac, true
		}
	}
	return domain.AssetClass{}, false
}

// AssetClassByID returns the asset class with the given id
func (s *Snapshot) AssetClassByID(id int64) (domain.AssetClass, bool) {
	for _, ac := range s.AssetClasses {
		if ac.ID == id {
			return ac, true
		}
	}
	return domain.AssetClass{}, false
}

// Overrides carries transient holdings and policy targets for preview
// calculations. A non-nil slice replaces the corresponding snapshot table in
// full; the underlying store is never touched.
type Overrides struct {
	Holdings      []HoldingRow
	PolicyTargets []PolicyTargetRow
}

// ResolvedTarget is the effective target set for one account after the
// override/default and cash-plug rules. Pcts always sums to 100 within
// tolerance. Recomputed on every run, never persisted.
type ResolvedTarget struct {
	Pcts         map[int64]float64 // asset class id -> target pct
	AccountID    int64
	FromOverride bool
}

// CellKey addresses one cell in the arena
type CellKey struct {
	Level        Level
	EntityID     int64
	AssetClassID int64
}

// Cell is one row of the aggregation arena: every actual/policy/effective
// figure for one (level, entity, asset class) triple. Values above the
// account level are produced by summing the level below, never recomputed
// from raw holdings.
type Cell struct {
	ActualValue    decimal.Decimal
	PolicyValue    decimal.Decimal
	EffectiveValue decimal.Decimal

	PolicyVarianceValue    decimal.Decimal
	EffectiveVarianceValue decimal.Decimal

	Level        Level
	EntityID     int64
	AssetClassID int64

	ActualPct    float64
	PolicyPct    float64
	EffectivePct float64

	PolicyVariancePct    float64
	EffectiveVariancePct float64
}

// Arena holds all cells of one calculation, keyed by (level, entity, asset
// class) and iterable in insertion order so runs are deterministic.
type Arena struct {
	cells map[CellKey]*Cell
	order []CellKey
}

// NewArena creates an empty arena
func NewArena() *Arena {
	return &Arena{cells: make(map[CellKey]*Cell)}
}

// Put inserts a cell. Later inserts with the same key replace the cell but
// keep its original position.
func (a *Arena) Put(c *Cell) {
	key := CellKey{Level: c.Level, EntityID: c.EntityID, AssetClassID: c.AssetClassID}
	if _, exists := a.cells[key]; !exists {
		a.order = append(a.order, key)
	}
	a.cells[key] = c
}

// Get returns the cell at the given key
func (a *Arena) Get(key CellKey) (*Cell, bool) {
	c, ok := a.cells[key]
	return c, ok
}

// Cells returns all cells in insertion order
func (a *Arena) Cells() []*Cell {
	out := make([]*Cell, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, a.cells[key])
	}
	return out
}

// AtLevel returns all cells of one level in insertion order
func (a *Arena) AtLevel(level Level) []*Cell {
	var out []*Cell
	for _, key := range a.order {
		if key.Level == level {
			out = append(out, a.cells[key])
		}
	}
	return out
}

// Metrics is the numeric payload of one presentation block. All fields are
// raw numbers; currency/percent formatting belongs to the display layer.
type Metrics struct {
	ActualValue    float64 `json:"actual_value"`
	ActualPct      float64 `json:"actual_pct"`
	PolicyValue    float64 `json:"policy_value"`
	PolicyPct      float64 `json:"policy_pct"`
	EffectiveValue float64 `json:"effective_value"`
	EffectivePct   float64 `json:"effective_pct"`

	PolicyVarianceValue    float64 `json:"policy_variance_value"`
	PolicyVariancePct      float64 `json:"policy_variance_pct"`
	EffectiveVarianceValue float64 `json:"effective_variance_value"`
	EffectiveVariancePct   float64 `json:"effective_variance_pct"`
}

// TypeBlock is the per-account-type sub-block of a presentation row
type TypeBlock struct {
	Code  string `json:"account_type_code"`
	Label string `json:"account_type_label"`
	Metrics
}

// Row types emitted by the formatter
const (
	RowTypeAssetClass       = "asset_class"
	RowTypeCategorySubtotal = "category_subtotal"
)

// Row is one line of the presentation output: one asset class (or category
// subtotal) with a block per account type plus the portfolio block.
type Row struct {
	RowType        string      `json:"row_type"`
	AssetClassName string      `json:"asset_class_name,omitempty"`
	CategoryCode   string      `json:"category_code"`
	AccountTypes   []TypeBlock `json:"account_types"`
	Portfolio      Metrics     `json:"portfolio"`
	AssetClassID   int64       `json:"asset_class_id,omitempty"`
	IsCash         bool        `json:"is_cash"`
}
