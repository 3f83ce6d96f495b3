package allocation

import (
	"errors"
	"math"
	"sort"
)

// AccountSummary is one account's totals for the summary view.
// AbsoluteDeviationPct is half the L1 distance between actual and effective
// percentages, i.e. the share of the account that sits in the wrong asset
// class.
type AccountSummary struct {
	Name                 string  `json:"name"`
	ID                   int64   `json:"id"`
	TotalValue           float64 `json:"total_value"`
	AbsoluteDeviationPct float64 `json:"absolute_deviation_pct"`
}

// TypeGroup groups accounts under their account type
type TypeGroup struct {
	Code     string           `json:"code"`
	Label    string           `json:"label"`
	Accounts []AccountSummary `json:"accounts"`
	Total    float64          `json:"total"`
}

// Summary is the per-account rollup view: grand total plus accounts grouped
// by account type, largest account first within each group.
type Summary struct {
	Groups     []TypeGroup `json:"groups"`
	GrandTotal float64     `json:"grand_total"`
}

// Summary derives the account summary from the same snapshot and arena
// machinery as Compute. A user without accounts gets an empty summary.
func (e *Engine) Summary(userID int64) (*Summary, error) {
	arena, snap, err := e.buildArena(userID, nil)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			return &Summary{Groups: []TypeGroup{}}, nil
		}
		return nil, err
	}

	deviations := make(map[int64]float64)
	for _, cell := range arena.AtLevel(LevelAccount) {
		deviations[cell.EntityID] += math.Abs(cell.EffectiveVariancePct)
	}

	accountsByType := make(map[int64][]AccountSummary)
	grandTotal := 0.0
	for _, account := range snap.Accounts {
		total := account.TotalValue.InexactFloat64()
		grandTotal += total
		accountsByType[account.AccountTypeID] = append(accountsByType[account.AccountTypeID], AccountSummary{
			ID:                   account.ID,
			Name:                 account.Name,
			TotalValue:           total,
			AbsoluteDeviationPct: deviations[account.ID] / 2,
		})
	}

	summary := &Summary{GrandTotal: grandTotal, Groups: []TypeGroup{}}
	for _, at := range snap.AccountTypes {
		accounts := accountsByType[at.ID]
		if len(accounts) == 0 {
			continue
		}

		sort.SliceStable(accounts, func(i, j int) bool {
			return accounts[i].TotalValue > accounts[j].TotalValue
		})

		group := TypeGroup{Code: at.Code, Label: at.Label, Accounts: accounts}
		for _, a := range accounts {
			group.Total += a.TotalValue
		}
		summary.Groups = append(summary.Groups, group)
	}

	return summary, nil
}
