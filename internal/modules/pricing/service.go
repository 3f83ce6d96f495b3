package pricing

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/quantfolio/allocator/internal/database"
)

// RevaluationService recomputes stored holding values from shares and the
// latest stored prices. It never fetches prices itself.
type RevaluationService struct {
	db     *sql.DB
	prices PriceProvider
	log    zerolog.Logger
}

// NewRevaluationService creates a new revaluation service
func NewRevaluationService(db *sql.DB, prices PriceProvider, log zerolog.Logger) *RevaluationService {
	return &RevaluationService{
		db:     db,
		prices: prices,
		log:    log.With().Str("service", "revaluation").Logger(),
	}
}

// RevaluationResult reports one revaluation run
type RevaluationResult struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// holdingRef is one holding due for revaluation
type holdingRef struct {
	shares     decimal.Decimal
	id         int64
	securityID int64
}

// RevalueHoldings sets every holding's value to shares times the latest
// stored price, in a single transaction. Holdings whose security has no
// stored price keep their current value and are counted as skipped.
func (s *RevaluationService) RevalueHoldings() (*RevaluationResult, error) {
	start := time.Now()

	holdings, err := s.queryHoldings()
	if err != nil {
		return nil, err
	}

	// Prices resolved before the transaction opens; the write itself is
	// all-or-nothing.
	type update struct {
		id    int64
		value decimal.Decimal
	}
	var updates []update
	skipped := 0
	for _, h := range holdings {
		price, ok, err := s.prices.LatestPrice(h.securityID)
		if err != nil {
			return nil, err
		}
		if !ok {
			skipped++
			continue
		}
		updates = append(updates, update{id: h.id, value: h.shares.Mul(price).Round(2)})
	}

	err = database.WithTransaction(s.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`UPDATE holdings SET value = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("failed to prepare update: %w", err)
		}
		defer stmt.Close()

		for _, u := range updates {
			if _, err := stmt.Exec(u.value.String(), u.id); err != nil {
				return fmt.Errorf("failed to update holding %d: %w", u.id, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &RevaluationResult{Updated: len(updates), Skipped: skipped}

	s.log.Info().
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Dur("duration", time.Since(start)).
		Msg("Holdings revalued")

	return result, nil
}

func (s *RevaluationService) queryHoldings() ([]holdingRef, error) {
	rows, err := s.db.Query(`SELECT id, security_id, shares FROM holdings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []holdingRef
	for rows.Next() {
		var h holdingRef
		var shares string
		if err := rows.Scan(&h.id, &h.securityID, &shares); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		h.shares, err = decimal.NewFromString(shares)
		if err != nil {
			return nil, fmt.Errorf("invalid shares %q: %w", shares, err)
		}
		holdings = append(holdings, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}
