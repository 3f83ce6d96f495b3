package allocation

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/quantfolio/allocator/internal/domain"
	"github.com/quantfolio/allocator/pkg/logger"
)

// Asset class ids shared by the package tests. They mirror the seeded
// reference data: two equity classes, one bond class, one alternative, cash.
const (
	acUSEquities   int64 = 1
	acIntlEquities int64 = 2
	acBonds        int64 = 3
	acRealEstate   int64 = 4
	acCash         int64 = 5
)

func testLog() zerolog.Logger {
	return logger.New(logger.Config{Level: "error", Pretty: false})
}

func testAssetClasses() []domain.AssetClass {
	return []domain.AssetClass{
		{ID: acUSEquities, Name: "US Equities", CategoryCode: "EQ"},
		{ID: acIntlEquities, Name: "International Equities", CategoryCode: "EQ"},
		{ID: acBonds, Name: "Bonds", CategoryCode: "FI"},
		{ID: acRealEstate, Name: "Real Estate", CategoryCode: "ALT"},
		{ID: acCash, Name: "Cash", CategoryCode: "CASH", IsCash: true},
	}
}

func testAccountTypes() []domain.AccountType {
	return []domain.AccountType{
		{ID: 1, Code: "tax_deferred", Label: "Tax-Deferred"},
		{ID: 2, Code: "tax_free", Label: "Tax-Free"},
		{ID: 3, Code: "taxable", Label: "Taxable"},
	}
}

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// snapshotWith assembles a snapshot around the shared reference data and
// derives account totals from the holdings, the way the provider does.
func snapshotWith(accounts []AccountRow, holdings []HoldingRow, targets []PolicyTargetRow) *Snapshot {
	totals := make(map[int64]decimal.Decimal)
	for _, h := range holdings {
		totals[h.AccountID] = totals[h.AccountID].Add(h.Value)
	}
	for i := range accounts {
		accounts[i].TotalValue = totals[accounts[i].ID]
	}

	return &Snapshot{
		Holdings:      holdings,
		Accounts:      accounts,
		PolicyTargets: targets,
		AssetClasses:  testAssetClasses(),
		AccountTypes:  testAccountTypes(),
	}
}

// fakeProvider serves a canned snapshot (or error) to the engine. Overrides
// are applied the same way the sqlite provider applies them.
type fakeProvider struct {
	snap *Snapshot
	err  error
}

func (f *fakeProvider) Snapshot(userID int64, ov *Overrides) (*Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}

	snap := &Snapshot{
		Holdings:      f.snap.Holdings,
		Accounts:      append([]AccountRow(nil), f.snap.Accounts...),
		PolicyTargets: f.snap.PolicyTargets,
		AssetClasses:  f.snap.AssetClasses,
		AccountTypes:  f.snap.AccountTypes,
	}
	if ov != nil {
		if ov.Holdings != nil {
			snap.Holdings = ov.Holdings
		}
		if ov.PolicyTargets != nil {
			snap.PolicyTargets = ov.PolicyTargets
		}
	}

	totals := make(map[int64]decimal.Decimal)
	for _, h := range snap.Holdings {
		totals[h.AccountID] = totals[h.AccountID].Add(h.Value)
	}
	for i := range snap.Accounts {
		snap.Accounts[i].TotalValue = totals[snap.Accounts[i].ID]
	}

	return snap, nil
}
