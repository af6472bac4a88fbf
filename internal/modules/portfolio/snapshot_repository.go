package portfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/maksimww/papertrader/internal/database"
)

// SnapshotRepository persists ledger balance snapshots. One row is
// appended on every mutation so restart recovery can read the latest.
type SnapshotRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *database.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "snapshot").Logger(),
	}
}

// saveTx appends a new balance snapshot inside an open transaction
func (r *SnapshotRepository) saveTx(tx *sql.Tx, cashBalance, totalValue float64) error {
	_, err := tx.Exec(`
		INSERT INTO ledger_snapshots (cash_balance, total_value, created_at)
		VALUES (?, ?, ?)`,
		cashBalance, totalValue, time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LatestCashBalance returns the most recent cash balance.
// The boolean is false when no snapshot has been written yet.
func (r *SnapshotRepository) LatestCashBalance() (float64, bool, error) {
	var cash float64
	err := r.db.QueryRow(`
		SELECT cash_balance FROM ledger_snapshots
		ORDER BY id DESC LIMIT 1`).Scan(&cash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return cash, true, nil
}

// ValueHistory returns total portfolio values for the last N days,
// oldest first, one sample per snapshot.
func (r *SnapshotRepository) ValueHistory(days int) ([]float64, error) {
	since := time.Now().AddDate(0, 0, -days).Format(time.RFC3339)

	rows, err := r.db.Query(`
		SELECT total_value FROM ledger_snapshots
		WHERE created_at >= ?
		ORDER BY id ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load value history: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot value: %w", err)
		}
		values = append(values, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}

	return values, nil
}
