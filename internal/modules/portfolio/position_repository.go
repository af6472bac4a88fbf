package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/maksimww/papertrader/internal/database"
)

// PositionRepository handles position database operations
type PositionRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *database.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repo", "position").Logger(),
	}
}

// upsertTx inserts or replaces a position row inside an open transaction
func (r *PositionRepository) upsertTx(tx *sql.Tx, position Position) error {
	query := `
		INSERT INTO positions (instrument, quantity, avg_price, current_price, sector, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(instrument) DO UPDATE SET
			quantity = excluded.quantity,
			avg_price = excluded.avg_price,
			current_price = excluded.current_price,
			sector = excluded.sector,
			last_updated = excluded.last_updated
	`

	_, err := tx.Exec(query,
		position.Instrument,
		position.Quantity,
		position.AvgPrice,
		position.CurrentPrice,
		nullString(position.Sector),
		position.LastUpdated.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}

	return nil
}

// deleteTx removes a position row inside an open transaction
func (r *PositionRepository) deleteTx(tx *sql.Tx, instrument string) error {
	if _, err := tx.Exec(`DELETE FROM positions WHERE instrument = ?`, instrument); err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	return nil
}

// List returns all persisted positions
func (r *PositionRepository) List() ([]Position, error) {
	rows, err := r.db.Query(`
		SELECT instrument, quantity, avg_price, current_price, sector, last_updated
		FROM positions
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var pos Position
		var currentPrice sql.NullFloat64
		var sector, lastUpdated sql.NullString

		if err := rows.Scan(&pos.Instrument, &pos.Quantity, &pos.AvgPrice,
			&currentPrice, &sector, &lastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}

		if currentPrice.Valid {
			pos.CurrentPrice = currentPrice.Float64
		} else {
			pos.CurrentPrice = pos.AvgPrice
		}
		if sector.Valid {
			pos.Sector = sector.String
		}
		if lastUpdated.Valid {
			if ts, err := time.Parse(time.RFC3339, lastUpdated.String); err == nil {
				pos.LastUpdated = ts
			}
		}

		positions = append(positions, pos)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate positions: %w", err)
	}

	return positions, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
