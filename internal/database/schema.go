package database

import "fmt"

// schema is the single source of truth for the database layout.
// Statements are idempotent so Migrate can run on every boot.
const schema = `
CREATE TABLE IF NOT EXISTS account_types (
    id    INTEGER PRIMARY KEY AUTOINCREMENT,
    code  TEXT NOT NULL UNIQUE,
    label TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS asset_classes (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    name          TEXT NOT NULL UNIQUE,
    category_code TEXT NOT NULL,
    is_cash       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS accounts (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id         INTEGER NOT NULL,
    name            TEXT NOT NULL,
    account_type_id INTEGER NOT NULL REFERENCES account_types(id)
);
CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id);

CREATE TABLE IF NOT EXISTS securities (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    ticker         TEXT NOT NULL UNIQUE,
    name           TEXT NOT NULL,
    asset_class_id INTEGER NOT NULL REFERENCES asset_classes(id)
);

CREATE TABLE IF NOT EXISTS holdings (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id  INTEGER NOT NULL REFERENCES accounts(id),
    security_id INTEGER NOT NULL REFERENCES securities(id),
    shares      TEXT NOT NULL DEFAULT '0',
    value       TEXT NOT NULL DEFAULT '0'
);
CREATE INDEX IF NOT EXISTS idx_holdings_account ON holdings(account_id);

CREATE TABLE IF NOT EXISTS prices (
    security_id INTEGER PRIMARY KEY REFERENCES securities(id),
    price       TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS policy_targets (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id        INTEGER NOT NULL,
    scope_type     TEXT NOT NULL CHECK (scope_type IN ('type', 'account')),
    scope_id       INTEGER NOT NULL,
    asset_class_id INTEGER NOT NULL REFERENCES asset_classes(id),
    target_pct     REAL NOT NULL,
    UNIQUE (user_id, scope_type, scope_id, asset_class_id)
);
CREATE INDEX IF NOT EXISTS idx_policy_targets_user ON policy_targets(user_id);
`

// seed holds the reference data every installation needs. Account types and
// asset classes are fixed vocabulary; INSERT OR IGNORE keeps reruns harmless.
const seed = `
INSERT OR IGNORE INTO account_types (code, label) VALUES
    ('tax_deferred', 'Tax-Deferred'),
    ('tax_free',     'Tax-Free'),
    ('taxable',      'Taxable');

INSERT OR IGNORE INTO asset_classes (name, category_code, is_cash) VALUES
    ('US Equities',            'EQ',   0),
    ('International Equities', 'EQ',   0),
    ('Bonds',                  'FI',   0),
    ('Real Estate',            'ALT',  0),
    ('Cash',                   'CASH', 1);
`

// Migrate applies the schema and seeds reference data
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	if _, err := db.conn.Exec(seed); err != nil {
		return fmt.Errorf("failed to seed reference data: %w", err)
	}

	return nil
}
