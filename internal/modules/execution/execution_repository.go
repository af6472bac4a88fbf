package execution

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/maksimww/papertrader/internal/database"
	"github.com/maksimww/papertrader/internal/domain"
)

// Repository handles execution record database operations
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a new execution repository
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "execution").Logger(),
	}
}

// Create inserts a new execution record
func (r *Repository) Create(record Record) error {
	query := `
		INSERT INTO executions
		(id, instrument, strategy_id, action, confidence, status,
		 quantity, price, commission, portfolio_impact, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		record.ID,
		record.Instrument,
		record.StrategyID,
		string(record.Action),
		record.Confidence,
		string(record.Status),
		record.Quantity,
		record.Price,
		record.Commission,
		record.PortfolioImpact,
		record.Reason,
		record.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create execution record: %w", err)
	}

	return nil
}

// ListRecent returns the most recent execution records, newest first
func (r *Repository) ListRecent(limit int) ([]Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT id, instrument, strategy_id, action, confidence, status,
		       quantity, price, commission, portfolio_impact, reason, created_at
		FROM executions
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var action, status, createdAt string
		if err := rows.Scan(&rec.ID, &rec.Instrument, &rec.StrategyID, &action,
			&rec.Confidence, &status, &rec.Quantity, &rec.Price, &rec.Commission,
			&rec.PortfolioImpact, &rec.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution record: %w", err)
		}
		rec.Action = domain.SignalAction(action)
		rec.Status = Status(status)
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			rec.CreatedAt = ts
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution records: %w", err)
	}

	return records, nil
}

// CountByStatus returns how many records exist per status
func (r *Repository) CountByStatus() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM executions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count executions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan execution count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution counts: %w", err)
	}

	return counts, nil
}
