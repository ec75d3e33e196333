package data

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ridopark/JonBuhReplay/pkg/event"
	"github.com/ridopark/JonBuhReplay/pkg/feed"
	"github.com/ridopark/JonBuhReplay/pkg/logging"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteProvider serves bars from a single-file SQLite store, for offline
// runs without a database server. Timestamps are stored as RFC3339 strings
// and prices as decimal strings.
type SQLiteProvider struct {
	db     *sql.DB
	logger zerolog.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ohlcv_data (
	symbol    TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	open      TEXT NOT NULL,
	high      TEXT NOT NULL,
	low       TEXT NOT NULL,
	close     TEXT NOT NULL,
	volume    INTEGER NOT NULL,
	timeframe TEXT NOT NULL,
	PRIMARY KEY (symbol, timeframe, timestamp)
);
CREATE INDEX IF NOT EXISTS idx_ohlcv_lookup ON ohlcv_data (symbol, timeframe, timestamp);
`

// NewSQLiteProvider opens (creating if needed) the bar store at path.
func NewSQLiteProvider(path string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to bootstrap sqlite schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		logger: logging.GetLogger("sqlite-provider"),
	}, nil
}

// IngestBars upserts bars into the store.
func (p *SQLiteProvider) IngestBars(bars []event.Bar) error {
	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin ingest transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO ohlcv_data (symbol, timestamp, open, high, low, close, volume, timeframe)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, timeframe, timestamp) DO UPDATE SET
			open = excluded.open, high = excluded.high,
			low = excluded.low, close = excluded.close,
			volume = excluded.volume
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare ingest statement: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		_, err := stmt.Exec(
			bar.Symbol,
			bar.Timestamp.UTC().Format(time.RFC3339),
			bar.Open.String(),
			bar.High.String(),
			bar.Low.String(),
			bar.Close.String(),
			bar.Volume,
			bar.Timeframe,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to ingest bar %s @ %s: %w", bar.Symbol, bar.Timestamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ingest: %w", err)
	}
	p.logger.Info().Int("bars", len(bars)).Msg("Ingested bars")
	return nil
}

// GetBars retrieves validated bars within [start, end], oldest first.
func (p *SQLiteProvider) GetBars(symbol string, timeframe string, start, end time.Time) ([]event.Bar, error) {
	query := `
		SELECT symbol, timestamp, open, high, low, close, volume, timeframe
		FROM ohlcv_data
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`
	rows, err := p.db.Query(query, symbol, timeframe,
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query sqlite ohlcv_data: %w", err)
	}
	defer rows.Close()

	return p.scan(rows)
}

// GetBarsBefore retrieves up to limit bars strictly before the given
// instant, oldest first.
func (p *SQLiteProvider) GetBarsBefore(symbol string, timeframe string, before time.Time, limit int) ([]event.Bar, error) {
	query := `
		SELECT symbol, timestamp, open, high, low, close, volume, timeframe
		FROM ohlcv_data
		WHERE symbol = ? AND timeframe = ? AND timestamp < ?
		ORDER BY timestamp DESC
		LIMIT ?
	`
	rows, err := p.db.Query(query, symbol, timeframe, before.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sqlite ohlcv_data: %w", err)
	}
	defer rows.Close()

	bars, err := p.scan(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

func (p *SQLiteProvider) scan(rows *sql.Rows) ([]event.Bar, error) {
	var bars []event.Bar
	for rows.Next() {
		var (
			symbol, timeframe      string
			tsText                 string
			open, high, low, close string
			volume                 int64
		)
		if err := rows.Scan(&symbol, &tsText, &open, &high, &low, &close, &volume, &timeframe); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		timestamp, err := time.Parse(time.RFC3339, tsText)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp %q: %w", tsText, err)
		}

		bar, err := parseBar(symbol, timestamp, open, high, low, close, volume, timeframe)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return bars, nil
}

// Close closes the store.
func (p *SQLiteProvider) Close() error {
	return p.db.Close()
}

var _ feed.BarProvider = (*SQLiteProvider)(nil)
