// Package db keeps a PostgreSQL history of competitions: day results and
// settled trades. It is never read back to resume a game.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xtrntr/farmduel/internal/models"
)

// Competition statuses
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusStopped  = "stopped"
)

// ErrNotFound is returned when a competition does not exist
var ErrNotFound = errors.New("competition not found")

// DB wraps a PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Competition is one ledger row
type Competition struct {
	ID         string     `json:"id"`
	Seed       int64      `json:"seed"`
	Status     string     `json:"status"`
	DaysPlayed int        `json:"days_played"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TradeRecord is a settled trade as stored
type TradeRecord struct {
	ID            int64     `json:"id"`
	CompetitionID string    `json:"competition_id"`
	ExecutedAt    time.Time `json:"executed_at"`
	models.Trade
}

// NewDB initializes a new database connection pool
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close(ctx context.Context) error {
	db.Pool.Close()
	return nil
}

// Migrate applies a schema script such as migrations/001_init.sql
func (db *DB) Migrate(ctx context.Context, script string) error {
	if _, err := db.Pool.Exec(ctx, script); err != nil {
		return fmt.Errorf("failed to apply migration: %w", err)
	}
	return nil
}

// CreateCompetition inserts a running competition and returns its id
func (db *DB) CreateCompetition(ctx context.Context, seed int64, rules any) (string, error) {
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return "", fmt.Errorf("failed to encode rules: %w", err)
	}
	id := uuid.NewString()
	_, err = db.Pool.Exec(ctx,
		"INSERT INTO competitions (id, seed, rules, status) VALUES ($1, $2, $3, $4)",
		id, seed, rulesJSON, StatusRunning)
	if err != nil {
		return "", fmt.Errorf("failed to create competition: %w", err)
	}
	return id, nil
}

// RecordDay stores both farm results and the day's trades in one transaction
func (db *DB) RecordDay(ctx context.Context, competitionID string, snap models.Snapshot) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]string, 0, len(snap.Farms))
	for id := range snap.Farms {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		fs := snap.Farms[id]
		crops, err := json.Marshal(fs.Crops)
		if err != nil {
			return fmt.Errorf("failed to encode crops: %w", err)
		}
		log, err := json.Marshal(fs.Log)
		if err != nil {
			return fmt.Errorf("failed to encode log: %w", err)
		}
		_, err = tx.Exec(ctx,
			"INSERT INTO farm_days (competition_id, day, farm_id, decision, money, reserved_money, energy, crops, log) "+
				"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
			competitionID, snap.Day, id, fs.Decision, fs.Money, fs.ReservedMoney, fs.Energy, crops, log)
		if err != nil {
			return fmt.Errorf("failed to record farm day: %w", err)
		}
	}

	for _, t := range snap.Trades {
		if _, err := insertTrade(ctx, tx, competitionID, t); err != nil {
			return err
		}
	}

	tag, err := tx.Exec(ctx,
		"UPDATE competitions SET days_played = $1 WHERE id = $2",
		snap.Day, competitionID)
	if err != nil {
		return fmt.Errorf("failed to update competition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateTrade inserts a single settled trade
func (db *DB) CreateTrade(ctx context.Context, competitionID string, trade models.Trade) (*TradeRecord, error) {
	return insertTrade(ctx, db.Pool, competitionID, trade)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertTrade(ctx context.Context, q querier, competitionID string, t models.Trade) (*TradeRecord, error) {
	rec := &TradeRecord{CompetitionID: competitionID, Trade: t}
	err := q.QueryRow(ctx,
		"INSERT INTO trades (competition_id, day, buy_order_id, sell_order_id, buyer, seller, crop_type, amount, value, fee) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id, executed_at",
		competitionID, t.Day, t.BuyOrderID, t.SellOrderID, t.Buyer, t.Seller, t.CropType, t.Amount, t.Value, t.Fee).Scan(
		&rec.ID, &rec.ExecutedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create trade: %w", err)
	}
	return rec, nil
}

// GetCompetitionTrades retrieves all trades of a competition in day order
func (db *DB) GetCompetitionTrades(ctx context.Context, competitionID string) ([]TradeRecord, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, competition_id, day, buy_order_id, sell_order_id, buyer, seller, crop_type, amount, value, fee, executed_at "+
			"FROM trades WHERE competition_id = $1 ORDER BY day, id",
		competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get competition trades: %w", err)
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.ID, &t.CompetitionID, &t.Day, &t.BuyOrderID, &t.SellOrderID,
			&t.Buyer, &t.Seller, &t.CropType, &t.Amount, &t.Value, &t.Fee, &t.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trades: %w", err)
	}
	return trades, nil
}

// FinishCompetition stores the final snapshot and closes the competition
func (db *DB) FinishCompetition(ctx context.Context, competitionID, status string, final models.Snapshot) error {
	finalJSON, err := json.Marshal(final)
	if err != nil {
		return fmt.Errorf("failed to encode final snapshot: %w", err)
	}
	tag, err := db.Pool.Exec(ctx,
		"UPDATE competitions SET status = $1, final = $2, finished_at = NOW() WHERE id = $3 AND status = $4",
		status, finalJSON, competitionID, StatusRunning)
	if err != nil {
		return fmt.Errorf("failed to finish competition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetCompetition retrieves one competition
func (db *DB) GetCompetition(ctx context.Context, competitionID string) (*Competition, error) {
	c := &Competition{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, seed, status, days_played, started_at, finished_at FROM competitions WHERE id = $1",
		competitionID).Scan(&c.ID, &c.Seed, &c.Status, &c.DaysPlayed, &c.StartedAt, &c.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get competition: %w", err)
	}
	return c, nil
}

// LatestCompetition returns the most recently started competition
func (db *DB) LatestCompetition(ctx context.Context) (*Competition, error) {
	c := &Competition{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, seed, status, days_played, started_at, finished_at FROM competitions ORDER BY started_at DESC LIMIT 1").Scan(
		&c.ID, &c.Seed, &c.Status, &c.DaysPlayed, &c.StartedAt, &c.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest competition: %w", err)
	}
	return c, nil
}
