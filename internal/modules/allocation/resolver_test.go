package allocation

import (
	"errors"
	"math"
	"testing"

	"github.com/quantfolio/allocator/internal/domain"
)

func TestResolve_ImplicitCashPlug(t *testing.T) {
	// Stocks 60 + bonds 30 with no cash record: cash becomes the residual 10.
	snap := snapshotWith(
		[]AccountRow{{ID: 1, Name: "IRA", AccountTypeID: 1}},
		[]HoldingRow{{AccountID: 1, AssetClassID: acUSEquities, Value: dec(1000)}},
		[]PolicyTargetRow{
			{Scope: domain.ScopeAccountType, ScopeID: 1, AssetClassID: acUSEquities, TargetPct: 60},
			{Scope: domain.ScopeAccountType, ScopeID: 1, AssetClassID: acBonds, TargetPct: 30},
		},
	)

	resolver := NewResolver(testLog())
	resolved, err := resolver.Resolve(snap)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	target := resolved[1]
	if target.FromOverride {
		t.Error("Type defaults should not be flagged as override")
	}
	if got := target.Pcts[acCash]; got != 10 {
		t.Errorf("Expected cash plug of 10, got %v", got)
	}
	if got := target.Pcts[acUSEquities]; got != 60 {
		t.Errorf("Expected stocks 60, got %v", got)
	}
}

func TestResolve_ExplicitCashMustSumTo100(t *testing.T) {
	// Stocks 60 + bonds 25 + explicit cash 10 = 95: rejected, not plugged.
	snap := snapshotWith(
		[]AccountRow{{ID: 1, Name: "IRA", AccountTypeID: 1}},
		nil,
		[]PolicyTargetRow{
			{Scope: domain.ScopeAccountType, ScopeID: 1, AssetClassID: acUSEquities, TargetPct: 60},
			{Scope: domain.ScopeAccountType, ScopeID: 1, AssetClassID: acBonds, TargetPct: 25},
			{Scope: domain.ScopeAccountType, ScopeID: 1, AssetClassID: acCash, TargetPct: 10},
		},
	)

	resolver := NewResolver(testLog())
	_, err := resolver.Resolve(snap)

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if vErr.Scope != domain.ScopeAccountType || vErr.ScopeID != 1 {
		t.Errorf("Expected type scope 1, got %s scope %d", vErr.Scope, vErr.ScopeID)
	}
}

func TestResolve_ExplicitCashWithinTolerance(t *testing.T) {
	snap := snapshotWith(
		[]AccountRow{{ID: 1, Name: "IRA", AccountTypeID: 1}},
		nil,
		[]PolicyTargetRow{
			{Scope: domain.ScopeAccountType, ScopeID: 1, AssetClassID: acUSEquities, TargetPct: 60},
			{Scope: domain.ScopeAccountType, ScopeID: 1, AssetClassID: acCash, TargetPct: 40.005},
		},
	)

	resolver := NewResolver(testLog())
	resolved, err := resolver.Resolve(snap)
	if err != nil {
		t.Fatalf("Expected 100.005 within tolerance, got %v", err)
	}
	if got := resolved[1].Pcts[acCash]; math.Abs(got-40.005) > 1e-12 {
		t.Errorf("Expected explicit cash kept as 40.005, got %v", got)
	}
}

func TestResolve_OverrideReplacesDefaultsEntirely(t *testing.T) {
	// Type defaults carry stocks 60 + bonds 30. The account override sets only
	// stocks 50: bonds must NOT leak through, cash plugs to 50.
	snap := snapshotWith(
		[]AccountRow{{ID: 7, Name: "Brokerage", AccountTypeID: 3}},
		nil,
		[]PolicyTargetRow{
			{Scope: domain.ScopeAccountType, ScopeID: 3, AssetClassID: acUSEquities, TargetPct: 60},
			{Scope: domain.ScopeAccountType, ScopeID: 3, AssetClassID: acBonds, TargetPct: 30},
			{Scope: domain.ScopeAccount, ScopeID: 7, AssetClassID: acUSEquities, TargetPct: 50},
		},
	)

	resolver := NewResolver(testLog())
	resolved, err := resolver.Resolve(snap)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	target := resolved[7]
	if !target.FromOverride {
		t.Error("Expected target to come from the account override")
	}
	if got := target.Pcts[acUSEquities]; got != 50 {
		t.Errorf("Expected stocks 50, got %v", got)
	}
	if got := target.Pcts[acCash]; got != 50 {
		t.Errorf("Expected cash plug of 50, got %v", got)
	}
	if _, ok := target.Pcts[acBonds]; ok {
		t.Error("Bonds default must not be inherited alongside an override")
	}
}

func TestResolve_NoRecordsMeansAllCash(t *testing.T) {
	snap := snapshotWith(
		[]AccountRow{{ID: 1, Name: "IRA", AccountTypeID: 1}},
		nil,
		nil,
	)

	resolver := NewResolver(testLog())
	resolved, err := resolver.Resolve(snap)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := resolved[1].Pcts[acCash]; got != 100 {
		t.Errorf("Expected 100%% cash for an account without targets, got %v", got)
	}
}

func TestResolve_Over100Rejected(t *testing.T) {
	snap := snapshotWith(
		[]AccountRow{{ID: 1, Name: "IRA", AccountTypeID: 1}},
		nil,
		[]PolicyTargetRow{
			{Scope: domain.ScopeAccountType, ScopeID: 1, AssetClassID: acUSEquities, TargetPct: 70},
			{Scope: domain.ScopeAccountType, ScopeID: 1, AssetClassID: acBonds, TargetPct: 40},
		},
	)

	resolver := NewResolver(testLog())
	_, err := resolver.Resolve(snap)

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected ValidationError for 110%% of non-cash targets, got %v", err)
	}
}

func TestResolve_NoCashClassIsDefect(t *testing.T) {
	snap := snapshotWith(
		[]AccountRow{{ID: 1, Name: "IRA", AccountTypeID: 1}},
		nil,
		nil,
	)
	snap.AssetClasses = []domain.AssetClass{
		{ID: acUSEquities, Name: "US Equities", CategoryCode: "EQ"},
	}

	resolver := NewResolver(testLog())
	_, err := resolver.Resolve(snap)

	var cErr *ComputationError
	if !errors.As(err, &cErr) {
		t.Fatalf("Expected ComputationError without a cash class, got %v", err)
	}
}
