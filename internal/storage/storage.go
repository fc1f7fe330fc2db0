// Package storage is the append-only local trade-record log every
// executor writes to, grounded on the teacher-adjacent
// stadam23-Eve-flipper's internal/db package: a single *sql.DB over
// modernc.org/sqlite, WAL mode, a tiny versioned migration table run at
// Open, and plain database/sql calls rather than an ORM.
// RecentStopLossTrades reads back stop-loss-family sells for cooldown
// reconstruction; no component calls it at startup, so cooldown keys
// lost from Redis are not rebuilt from this log.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"

	"github.com/korea-trading-core/core/internal/model"
)

// Store wraps the trade-record database every executor process opens
// against its own CORE_DB_PATH file; there is no cross-process sharing
// of this store, unlike Redis.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "core.db"
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);
		CREATE TABLE IF NOT EXISTS trades (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			stock_code    TEXT NOT NULL,
			side          TEXT NOT NULL,
			quantity      INTEGER NOT NULL,
			price         TEXT NOT NULL,
			sell_reason   TEXT NOT NULL DEFAULT '',
			order_no      TEXT NOT NULL DEFAULT '',
			profit_pct    REAL NOT NULL DEFAULT 0,
			profit_amount TEXT NOT NULL DEFAULT '0',
			holding_days  INTEGER NOT NULL DEFAULT 0,
			executed_at   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_code_time ON trades(stock_code, executed_at);
	`)
	return err
}

// RecordTrade appends rec to the log. Called by the Buy Executor on every
// confirmed fill (feeding the duplicate-order window check) and by the
// Sell Executor on every fill, partial or full (feeding
// RecentStopLossTrades and the profit/loss audit trail).
func (s *Store) RecordTrade(ctx context.Context, rec model.TradeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (stock_code, side, quantity, price, sell_reason, order_no, profit_pct, profit_amount, holding_days, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.StockCode.String(), string(rec.Side), rec.Quantity, rec.Price.String(),
		string(rec.SellReason), rec.OrderNo, rec.ProfitPct, rec.ProfitAmount.String(),
		rec.HoldingDays, rec.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("storage: record trade for %s: %w", rec.StockCode, err)
	}
	return nil
}

// HasRecentTrade reports whether any trade for code (buy or sell) was
// recorded within window of now — the Buy Executor's duplicate-order
// window check (spec §4.4 step 5).
func (s *Store) HasRecentTrade(ctx context.Context, code model.StockCode, now time.Time, window time.Duration) (bool, error) {
	since := now.Add(-window).UnixMilli()
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM trades WHERE stock_code = ? AND executed_at >= ?`,
		code.String(), since,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("storage: check recent trade for %s: %w", code, err)
	}
	return n > 0, nil
}

// RecentStopLossTrades returns every sell trade recorded within window
// whose reason is in the stop-loss family, for rebuilding the
// cooldown:stoploss:{code} set after a restart that lost the Redis TTL
// (e.g. a Redis flush); ordinarily the cache TTL is authoritative and
// this is only a recovery path.
func (s *Store) RecentStopLossTrades(ctx context.Context, now time.Time, window time.Duration) ([]model.TradeRecord, error) {
	since := now.Add(-window).UnixMilli()
	rows, err := s.db.QueryContext(ctx, `
		SELECT stock_code, side, quantity, price, sell_reason, order_no, profit_pct, profit_amount, holding_days, executed_at
		FROM trades WHERE side = 'sell' AND executed_at >= ?`, since)
	if err != nil {
		return nil, fmt.Errorf("storage: query recent sells: %w", err)
	}
	defer rows.Close()

	var out []model.TradeRecord
	for rows.Next() {
		var rec model.TradeRecord
		var code, side, priceStr, profitAmountStr string
		if err := rows.Scan(&code, &side, &rec.Quantity, &priceStr, &rec.SellReason, &rec.OrderNo, &rec.ProfitPct, &profitAmountStr, &rec.HoldingDays, &rec.ExecutedAt); err != nil {
			return nil, fmt.Errorf("storage: scan trade row: %w", err)
		}
		sc, err := model.NewStockCode(code)
		if err != nil {
			continue
		}
		rec.StockCode = sc
		rec.Side = model.OrderSide(side)
		rec.Price, _ = decimal.NewFromString(priceStr)
		rec.ProfitAmount, _ = decimal.NewFromString(profitAmountStr)
		if !rec.SellReason.StopLossFamily() {
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
