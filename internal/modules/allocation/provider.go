package allocation

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/quantfolio/allocator/internal/domain"
)

// Provider loads read-only calculation snapshots. Every snapshot costs a
// fixed number of queries regardless of holding count; nothing here writes.
type Provider struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewProvider creates a new snapshot provider
func NewProvider(db *sql.DB, log zerolog.Logger) *Provider {
	return &Provider{
		db:  db,
		log: log.With().Str("service", "allocation_provider").Logger(),
	}
}

// Snapshot assembles the input tables for one engine run. When overrides are
// supplied, the corresponding tables are replaced in the returned snapshot
// only; the store is untouched. Returns ErrNoData when the user has no
// accounts.
func (p *Provider) Snapshot(userID int64, ov *Overrides) (*Snapshot, error) {
	accounts, err := p.queryAccounts(userID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrNoData
	}

	holdings, err := p.queryHoldings(userID)
	if err != nil {
		return nil, err
	}

	targets, err := p.queryPolicyTargets(userID)
	if err != nil {
		return nil, err
	}

	assetClasses, err := p.queryAssetClasses()
	if err != nil {
		return nil, err
	}

	accountTypes, err := p.queryAccountTypes()
	if err != nil {
		return nil, err
	}

	if ov != nil {
		if ov.Holdings != nil {
			holdings = filterToAccounts(ov.Holdings, accounts)
		}
		if ov.PolicyTargets != nil {
			targets = ov.PolicyTargets
		}
	}

	// Account totals derive from the (possibly overridden) holdings table so
	// preview snapshots stay internally consistent.
	totals := make(map[int64]decimal.Decimal, len(accounts))
	for _, h := range holdings {
		totals[h.AccountID] = totals[h.AccountID].Add(h.Value)
	}
	for i := range accounts {
		accounts[i].TotalValue = totals[accounts[i].ID]
	}

	snap := &Snapshot{
		Holdings:      holdings,
		Accounts:      accounts,
		PolicyTargets: targets,
		AssetClasses:  assetClasses,
		AccountTypes:  accountTypes,
	}

	p.log.Debug().
		Int64("user_id", userID).
		Int("accounts", len(accounts)).
		Int("holdings", len(holdings)).
		Int("policy_targets", len(targets)).
		Bool("preview", ov != nil).
		Msg("Snapshot loaded")

	return snap, nil
}

func (p *Provider) queryAccounts(userID int64) ([]AccountRow, error) {
	rows, err := p.db.Query(`
		SELECT id, name, account_type_id
		FROM accounts
		WHERE user_id = ?
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []AccountRow
	for rows.Next() {
		var a AccountRow
		if err := rows.Scan(&a.ID, &a.Name, &a.AccountTypeID); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// queryHoldings returns one row per (account, asset class) with values
// already summed across securities. The join resolves each holding's asset
// class through its security.
func (p *Provider) queryHoldings(userID int64) ([]HoldingRow, error) {
	rows, err := p.db.Query(`
		SELECT h.account_id, s.asset_class_id, h.value
		FROM holdings h
		JOIN securities s ON s.id = h.security_id
		JOIN accounts a ON a.id = h.account_id
		WHERE a.user_id = ?
		ORDER BY h.account_id, s.asset_class_id, h.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []HoldingRow
	for rows.Next() {
		var h HoldingRow
		var value string
		if err := rows.Scan(&h.AccountID, &h.AssetClassID, &value); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		h.Value, err = decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("invalid holding value %q: %w", value, err)
		}
		holdings = append(holdings, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

func (p *Provider) queryPolicyTargets(userID int64) ([]PolicyTargetRow, error) {
	rows, err := p.db.Query(`
		SELECT scope_type, scope_id, asset_class_id, target_pct
		FROM policy_targets
		WHERE user_id = ?
		ORDER BY scope_type, scope_id, asset_class_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query policy targets: %w", err)
	}
	defer rows.Close()

	var targets []PolicyTargetRow
	for rows.Next() {
		var t PolicyTargetRow
		var scope string
		if err := rows.Scan(&scope, &t.ScopeID, &t.AssetClassID, &t.TargetPct); err != nil {
			return nil, fmt.Errorf("failed to scan policy target: %w", err)
		}
		t.Scope = domain.ScopeType(scope)
		targets = append(targets, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policy targets: %w", err)
	}

	return targets, nil
}

func (p *Provider) queryAssetClasses() ([]domain.AssetClass, error) {
	rows, err := p.db.Query(`
		SELECT id, name, category_code, is_cash
		FROM asset_classes
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset classes: %w", err)
	}
	defer rows.Close()

	var classes []domain.AssetClass
	for rows.Next() {
		var ac domain.AssetClass
		if err := rows.Scan(&ac.ID, &ac.Name, &ac.CategoryCode, &ac.IsCash); err != nil {
			return nil, fmt.Errorf("failed to scan asset class: %w", err)
		}
		classes = append(classes, ac)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset classes: %w", err)
	}

	return classes, nil
}

func (p *Provider) queryAccountTypes() ([]domain.AccountType, error) {
	rows, err := p.db.Query(`
		SELECT id, code, label
		FROM account_types
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query account types: %w", err)
	}
	defer rows.Close()

	var types []domain.AccountType
	for rows.Next() {
		var at domain.AccountType
		if err := rows.Scan(&at.ID, &at.Code, &at.Label); err != nil {
			return nil, fmt.Errorf("failed to scan account type: %w", err)
		}
		types = append(types, at)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account types: %w", err)
	}

	return types, nil
}

// filterToAccounts drops override holding rows that reference accounts the
// user does not own, and restores a deterministic order.
func filterToAccounts(holdings []HoldingRow, accounts []AccountRow) []HoldingRow {
	known := make(map[int64]bool, len(accounts))
	for _, a := range accounts {
		known[a.ID] = true
	}

	out := make([]HoldingRow, 0, len(holdings))
	for _, h := range holdings {
		if known[h.AccountID] {
			out = append(out, h)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AccountID != out[j].AccountID {
			return out[i].AccountID < out[j].AccountID
		}
		return out[i].AssetClassID < out[j].AssetClassID
	})

	return out
}
