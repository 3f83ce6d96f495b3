package allocation

import (
	"reflect"
	"testing"

	"github.com/quantfolio/allocator/internal/domain"
)

func testEngine(snap *Snapshot) *Engine {
	return NewEngine(&fakeProvider{snap: snap}, testLog())
}

func findRow(rows []Row, name string) (Row, bool) {
	for _, row := range rows {
		if row.RowType == RowTypeAssetClass && row.AssetClassName == name {
			return row, true
		}
	}
	return Row{}, false
}

func TestCompute_NoAccountsGivesEmptyRows(t *testing.T) {
	engine := NewEngine(&fakeProvider{err: ErrNoData}, testLog())

	rows, err := engine.Compute(1, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("Expected empty non-nil rows, got %v", rows)
	}
}

func TestCompute_EndToEnd(t *testing.T) {
	snap := snapshotWith(
		[]AccountRow{{ID: 1, Name: "IRA", AccountTypeID: 1}},
		[]HoldingRow{
			{AccountID: 1, AssetClassID: acUSEquities, Value: dec(50000)},
			{AccountID: 1, AssetClassID: acBonds, Value: dec(20000)},
			{AccountID: 1, AssetClassID: acCash, Value: dec(10000)},
		},
		[]PolicyTargetRow{
			{Scope: domain.ScopeAccountType, ScopeID: 1, AssetClassID: acUSEquities, TargetPct: 60},
			{Scope: domain.ScopeAccountType, ScopeID: 1, AssetClassID: acBonds, TargetPct: 30},
		},
	)

	rows, err := testEngine(snap).Compute(1, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	stocks, ok := findRow(rows, "US Equities")
	if !ok {
		t.Fatal("Expected a US Equities row")
	}
	if stocks.Portfolio.ActualPct != 62.5 {
		t.Errorf("Expected actual pct 62.5, got %v", stocks.Portfolio.ActualPct)
	}
	if stocks.Portfolio.PolicyVariancePct != 2.5 {
		t.Errorf("Expected variance pct 2.5, got %v", stocks.Portfolio.PolicyVariancePct)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	snap := snapshotWith(
		[]AccountRow{
			{ID: 1, Name: "IRA", AccountTypeID: 1},
			{ID: 2, Name: "Brokerage", AccountTypeID: 3},
		},
		[]HoldingRow{
			{AccountID: 1, AssetClassID: acUSEquities, Value: dec(12345.67)},
			{AccountID: 1, AssetClassID: acIntlEquities, Value: dec(2345.67)},
			{AccountID: 2, AssetClassID: acBonds, Value: dec(9999.99)},
		},
		[]PolicyTargetRow{
			{Scope: domain.ScopeAccountType, ScopeID: 1, AssetClassID: acUSEquities, TargetPct: 70},
			{Scope: domain.ScopeAccountType, ScopeID: 3, AssetClassID: acBonds, TargetPct: 50},
		},
	)
	engine := testEngine(snap)

	first, err := engine.Compute(1, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	second, err := engine.Compute(1, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("Identical inputs must produce identical rows")
	}
}

func TestCompute_PreviewOverridesTargets(t *testing.T) {
	snap := snapshotWith(
		[]AccountRow{{ID: 7, Name: "Brokerage", AccountTypeID: 3}},
		[]HoldingRow{{AccountID: 7, AssetClassID: acUSEquities, Value: dec(100000)}},
		[]PolicyTargetRow{
			{Scope: domain.ScopeAccountType, ScopeID: 3, AssetClassID: acUSEquities, TargetPct: 60},
			{Scope: domain.ScopeAccountType, ScopeID: 3, AssetClassID: acBonds, TargetPct: 30},
		},
	)
	engine := testEngine(snap)

	ov := &Overrides{
		PolicyTargets: []PolicyTargetRow{
			{Scope: domain.ScopeAccount, ScopeID: 7, AssetClassID: acUSEquities, TargetPct: 50},
		},
	}

	rows, err := engine.Compute(7, ov)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	stocks, _ := findRow(rows, "US Equities")
	if stocks.Portfolio.PolicyPct != 50 {
		t.Errorf("Expected overridden policy pct 50, got %v", stocks.Portfolio.PolicyPct)
	}
	cash, _ := findRow(rows, "Cash")
	if cash.Portfolio.PolicyPct != 50 {
		t.Errorf("Expected cash plug of 50, got %v", cash.Portfolio.PolicyPct)
	}
	if _, ok := findRow(rows, "Bonds"); ok {
		t.Error("Bonds default must not survive a full target override")
	}

	// A preview never leaks into the next plain computation.
	after, err := engine.Compute(7, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	stocks, _ = findRow(after, "US Equities")
	if stocks.Portfolio.PolicyPct != 60 {
		t.Errorf("Expected stored policy pct 60 after preview, got %v", stocks.Portfolio.PolicyPct)
	}
}

func TestCompute_PreviewOverridesHoldings(t *testing.T) {
	snap := snapshotWith(
		[]AccountRow{{ID: 1, Name: "IRA", AccountTypeID: 1}},
		[]HoldingRow{{AccountID: 1, AssetClassID: acUSEquities, Value: dec(80000)}},
		nil,
	)
	engine := testEngine(snap)

	ov := &Overrides{
		Holdings: []HoldingRow{
			{AccountID: 1, AssetClassID: acUSEquities, Value: dec(30000)},
			{AccountID: 1, AssetClassID: acBonds, Value: dec(70000)},
		},
	}

	rows, err := engine.Compute(1, ov)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	stocks, _ := findRow(rows, "US Equities")
	if stocks.Portfolio.ActualPct != 30 {
		t.Errorf("Expected actual pct 30 from overridden holdings, got %v", stocks.Portfolio.ActualPct)
	}
	if stocks.Portfolio.ActualValue != 30000 {
		t.Errorf("Expected actual value 30000, got %v", stocks.Portfolio.ActualValue)
	}
}

func TestCompute_ValidationErrorSurfaces(t *testing.T) {
	snap := snapshotWith(
		[]AccountRow{{ID: 1, Name: "IRA", AccountTypeID: 1}},
		nil,
		[]PolicyTargetRow{
			{Scope: domain.ScopeAccountType, ScopeID: 1, AssetClassID: acUSEquities, TargetPct: 90},
			{Scope: domain.ScopeAccountType, ScopeID: 1, AssetClassID: acBonds, TargetPct: 20},
		},
	)

	_, err := testEngine(snap).Compute(1, nil)
	if err == nil {
		t.Fatal("Expected a validation error for 110% of targets")
	}
}
