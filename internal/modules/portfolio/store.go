package portfolio

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/maksimww/papertrader/internal/database"
)

// LedgerStore is the persistence surface the ledger writes through.
// ApplyTrade must be atomic: either the trade, the position change and
// the balance snapshot all land, or none of them do.
type LedgerStore interface {
	ApplyTrade(trade Trade, position *Position, removeInstrument string, cashBalance, totalValue float64) error
	ListPositions() ([]Position, error)
	LatestCashBalance() (float64, bool, error)
}

// Store persists ledger mutations across the trade, position and
// snapshot tables inside a single transaction.
type Store struct {
	db        *database.DB
	trades    *TradeRepository
	positions *PositionRepository
	snapshots *SnapshotRepository
	log       zerolog.Logger
}

// NewStore creates a transactional ledger store over the repositories
func NewStore(db *database.DB, trades *TradeRepository, positions *PositionRepository, snapshots *SnapshotRepository, log zerolog.Logger) *Store {
	return &Store{
		db:        db,
		trades:    trades,
		positions: positions,
		snapshots: snapshots,
		log:       log.With().Str("component", "ledger_store").Logger(),
	}
}

// ApplyTrade writes one trade with its position change and balance
// snapshot. Exactly one of position and removeInstrument is set for a
// sell; buys always carry a position and no removal.
func (s *Store) ApplyTrade(trade Trade, position *Position, removeInstrument string, cashBalance, totalValue float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin trade transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.trades.insertTx(tx, trade); err != nil {
		return err
	}
	if position != nil {
		if err := s.positions.upsertTx(tx, *position); err != nil {
			return err
		}
	}
	if removeInstrument != "" {
		if err := s.positions.deleteTx(tx, removeInstrument); err != nil {
			return err
		}
	}
	if err := s.snapshots.saveTx(tx, cashBalance, totalValue); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trade transaction: %w", err)
	}
	return nil
}

// ListPositions returns all persisted positions
func (s *Store) ListPositions() ([]Position, error) {
	return s.positions.List()
}

// LatestCashBalance returns the most recent persisted cash balance
func (s *Store) LatestCashBalance() (float64, bool, error) {
	return s.snapshots.LatestCashBalance()
}
