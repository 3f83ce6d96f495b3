package pricing

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceProvider hands out the latest stored price for a security. Price
// retrieval from external sources sits behind this boundary; everything on
// this side only reads what has already been stored.
type PriceProvider interface {
	LatestPrice(securityID int64) (decimal.Decimal, bool, error)
}

// Repository implements PriceProvider over the prices table
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new price repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// LatestPrice returns the stored price for a security. The second return is
// false when no price has ever been stored.
func (r *Repository) LatestPrice(securityID int64) (decimal.Decimal, bool, error) {
	var raw string
	err := r.db.QueryRow(`SELECT price FROM prices WHERE security_id = ?`, securityID).Scan(&raw)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to query price: %w", err)
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("invalid stored price %q: %w", raw, err)
	}

	return price, true, nil
}

// UpsertPrice stores the latest price for a security
func (r *Repository) UpsertPrice(securityID int64, price decimal.Decimal) error {
	_, err := r.db.Exec(`
		INSERT INTO prices (security_id, price, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(security_id) DO UPDATE SET
			price = excluded.price,
			updated_at = excluded.updated_at
	`, securityID, price.String(), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert price: %w", err)
	}

	return nil
}
