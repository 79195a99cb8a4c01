// Package history persists session and transaction outcomes to a local
// SQLite database. Writes are best-effort: the mining loop logs and ignores
// recording failures.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/xueshanjianke/fct-miner/pkg/miner"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	started_at   TIMESTAMP NOT NULL,
	ended_at     TIMESTAMP,
	spend_cap    TEXT NOT NULL,
	size_bytes   INTEGER NOT NULL,
	tx_submitted INTEGER NOT NULL DEFAULT 0,
	tx_failed    INTEGER NOT NULL DEFAULT 0,
	total_spent  TEXT NOT NULL DEFAULT '0',
	total_minted TEXT NOT NULL DEFAULT '0'
);
CREATE TABLE IF NOT EXISTS transactions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	nonce      INTEGER NOT NULL,
	tx_hash    TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	phase      TEXT NOT NULL,
	spent      TEXT NOT NULL,
	minted     TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_session ON transactions(session_id);
`

// Store implements miner.Recorder over SQLite.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the default database location under the user's home
// directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".fct-miner", "history.db"), nil
}

// NewStore opens or creates the history database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// RecordSessionStart inserts a session row.
func (s *Store) RecordSessionStart(ctx context.Context, sessionID string, spendCap *big.Int, sizeBytes int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, spend_cap, size_bytes) VALUES (?, ?, ?, ?)`,
		sessionID, time.Now().UTC(), spendCap.String(), sizeBytes)
	return err
}

// RecordSessionEnd finalizes a session row with its totals.
func (s *Store) RecordSessionEnd(ctx context.Context, sessionID string, totals miner.SessionTotals) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ?, tx_submitted = ?, tx_failed = ?, total_spent = ?, total_minted = ? WHERE id = ?`,
		time.Now().UTC(), totals.TransactionsSubmitted, totals.TransactionsFailed,
		totals.TotalSpent.String(), totals.TotalMinted.String(), sessionID)
	return err
}

// RecordTransaction appends one transaction outcome.
func (s *Store) RecordTransaction(ctx context.Context, sessionID string, tx miner.TxRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (session_id, nonce, tx_hash, size_bytes, phase, spent, minted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, tx.Nonce, tx.Hash.Hex(), tx.SizeBytes, string(tx.Phase),
		tx.Spent.String(), tx.Minted.String(), time.Now().UTC())
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
