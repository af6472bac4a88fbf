package portfolio

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/maksimww/papertrader/internal/database"
)

// TradeRepository handles trade database operations
type TradeRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *database.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		db:  db,
		log: log.With().Str("repo", "trade").Logger(),
	}
}

// insertTx inserts a new trade record inside an open transaction
func (r *TradeRepository) insertTx(tx *sql.Tx, trade Trade) error {
	now := time.Now().Format(time.RFC3339)

	query := `
		INSERT INTO trades
		(id, instrument, side, quantity, price, commission, source, executed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := tx.Exec(query,
		trade.ID,
		strings.ToUpper(strings.TrimSpace(trade.Instrument)),
		string(trade.Side),
		trade.Quantity,
		trade.Price,
		trade.Commission,
		trade.Source,
		trade.ExecutedAt.Format(time.RFC3339),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}

	return nil
}

// ListRecent returns the most recent trades, newest first
func (r *TradeRepository) ListRecent(limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, instrument, side, quantity, price, commission, source, executed_at
		FROM trades
		ORDER BY executed_at DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var trades []Trade
	for rows.Next() {
		var trade Trade
		var side, executedAt string
		if err := rows.Scan(&trade.ID, &trade.Instrument, &side, &trade.Quantity,
			&trade.Price, &trade.Commission, &trade.Source, &executedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trade.Side = TradeSide(side)
		if ts, err := time.Parse(time.RFC3339, executedAt); err == nil {
			trade.ExecutedAt = ts
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trades: %w", err)
	}

	return trades, nil
}

// CountSince returns the number of trades executed at or after a timestamp
func (r *TradeRepository) CountSince(since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM trades WHERE executed_at >= ?`,
		since.Format(time.RFC3339)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return count, nil
}
