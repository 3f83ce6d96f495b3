package allocation

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/quantfolio/allocator/internal/domain"
)

// explicitCashTolerance is how far an explicit-cash scope may sit from a
// 100% sum before it is rejected.
const explicitCashTolerance = 0.01

// sumEpsilon absorbs float accumulation noise when comparing against 100.
const sumEpsilon = 1e-9

// Resolver turns stored policy target records into one effective target set
// per account.
type Resolver struct {
	log zerolog.Logger
}

// NewResolver creates a new target resolver
func NewResolver(log zerolog.Logger) *Resolver {
	return &Resolver{
		log: log.With().Str("service", "target_resolver").Logger(),
	}
}

// Resolve computes the effective per-asset-class target percentages for every
// account in the snapshot. An account with any override records uses exactly
// those records; defaults are ignored entirely, including for asset classes
// the override omits. The cash rule then fills or checks the residual.
func (r *Resolver) Resolve(snap *Snapshot) (map[int64]ResolvedTarget, error) {
	cash, ok := snap.CashClass()
	if !ok {
		return nil, computationErrorf("no cash asset class in reference data")
	}

	typeDefaults := make(map[int64]map[int64]float64)
	accountOverrides := make(map[int64]map[int64]float64)

	for _, t := range snap.PolicyTargets {
		switch t.Scope {
		case domain.ScopeAccount:
			if accountOverrides[t.ScopeID] == nil {
				accountOverrides[t.ScopeID] = make(map[int64]float64)
			}
			accountOverrides[t.ScopeID][t.AssetClassID] = t.TargetPct
		case domain.ScopeAccountType:
			if typeDefaults[t.ScopeID] == nil {
				typeDefaults[t.ScopeID] = make(map[int64]float64)
			}
			typeDefaults[t.ScopeID][t.AssetClassID] = t.TargetPct
		default:
			return nil, computationErrorf("unknown policy target scope %q", t.Scope)
		}
	}

	resolved := make(map[int64]ResolvedTarget, len(snap.Accounts))
	for _, account := range snap.Accounts {
		var (
			records      map[int64]float64
			scope        domain.ScopeType
			scopeID      int64
			fromOverride bool
		)

		if o, ok := accountOverrides[account.ID]; ok {
			records, scope, scopeID, fromOverride = o, domain.ScopeAccount, account.ID, true
		} else {
			records, scope, scopeID = typeDefaults[account.AccountTypeID], domain.ScopeAccountType, account.AccountTypeID
		}

		pcts, err := applyCashRule(records, cash.ID, scope, scopeID)
		if err != nil {
			return nil, err
		}

		resolved[account.ID] = ResolvedTarget{
			AccountID:    account.ID,
			FromOverride: fromOverride,
			Pcts:         pcts,
		}
	}

	r.log.Debug().Int("accounts", len(resolved)).Msg("Targets resolved")

	return resolved, nil
}

// applyCashRule finalizes one scope's record set: implicit cash becomes the
// residual to 100, explicit cash requires the whole set to sum to 100 within
// tolerance.
func applyCashRule(records map[int64]float64, cashID int64, scope domain.ScopeType, scopeID int64) (map[int64]float64, error) {
	pcts := make(map[int64]float64, len(records)+1)

	sumOther := 0.0
	for acID, pct := range records {
		if acID == cashID {
			continue
		}
		pcts[acID] = pct
		sumOther += pct
	}

	if sumOther > 100+sumEpsilon {
		return nil, &ValidationError{
			Scope:   scope,
			ScopeID: scopeID,
			Reason:  "allocation exceeds 100%",
		}
	}

	cashPct, cashExplicit := records[cashID]
	if !cashExplicit {
		pcts[cashID] = 100 - sumOther
		return pcts, nil
	}

	if total := sumOther + cashPct; math.Abs(total-100) > explicitCashTolerance {
		return nil, &ValidationError{
			Scope:   scope,
			ScopeID: scopeID,
			Reason:  fmt.Sprintf("explicit percentages sum to %.2f, want 100", total),
		}
	}

	pcts[cashID] = cashPct
	return pcts, nil
}
