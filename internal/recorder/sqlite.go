package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/andreapianidev/OpenTradingMT4bot/internal/model"
)

// SQLiteRecorder persists historical data to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	log zerolog.Logger
	mu  sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance (dashboards read while
	// the executor writes).
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			symbol    TEXT NOT NULL,
			direction TEXT NOT NULL,
			entry     REAL,
			sl        REAL,
			tp        REAL,
			lot       REAL,
			degraded  INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals(timestamp)`,

		`CREATE TABLE IF NOT EXISTS orders (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			op         TEXT NOT NULL,
			symbol     TEXT NOT NULL,
			ticket     TEXT,
			direction  TEXT,
			lots       REAL,
			price      REAL,
			sl         REAL,
			attempts   INTEGER,
			error_code INTEGER,
			error      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_ts ON orders(timestamp)`,

		`CREATE TABLE IF NOT EXISTS account_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			balance     REAL,
			equity      REAL,
			margin      REAL,
			free_margin REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_account_ts ON account_history(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordSignal(sig model.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	degraded := 0
	if sig.Degraded {
		degraded = 1
	}
	_, err := r.db.Exec(`INSERT INTO signals
		(timestamp, symbol, direction, entry, sl, tp, lot, degraded)
		VALUES (?,?,?,?,?,?,?,?)`,
		sig.Timestamp, sig.Symbol, string(sig.Direction),
		sig.Entry, sig.StopLoss, sig.TakeProfit, sig.Lot, degraded,
	)
	return err
}

func (r *SQLiteRecorder) RecordOrder(evt *OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO orders
		(timestamp, op, symbol, ticket, direction, lots, price, sl, attempts, error_code, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		time.Now().Unix(), evt.Op, evt.Symbol, evt.Ticket, evt.Direction,
		evt.Lots, evt.Price, evt.StopLoss, evt.Attempts, evt.ErrorCode, evt.Error,
	)
	return err
}

func (r *SQLiteRecorder) RecordAccount(snap model.AccountSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO account_history
		(timestamp, balance, equity, margin, free_margin)
		VALUES (?,?,?,?,?)`,
		snap.Timestamp, snap.Balance, snap.Equity, snap.Margin, snap.FreeMargin,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
