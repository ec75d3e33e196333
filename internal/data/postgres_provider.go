package data

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/ridopark/JonBuhReplay/pkg/event"
	"github.com/ridopark/JonBuhReplay/pkg/feed"
	"github.com/ridopark/JonBuhReplay/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PostgresProvider serves historical bars from a Postgres/TimescaleDB
// ohlcv_data hypertable. Prices are read as strings so they reach decimal
// without passing through binary floats.
type PostgresProvider struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewPostgresProvider opens and pings a connection.
func NewPostgresProvider(connectionString string) (*PostgresProvider, error) {
	logger := logging.GetLogger("data-provider")

	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().Msg("Connected to Postgres")
	return &PostgresProvider{db: db, logger: logger}, nil
}

const barColumns = "symbol, timestamp, open, high, low, close, volume, timeframe"

// GetBars retrieves validated OHLCV bars within [start, end], oldest first.
func (p *PostgresProvider) GetBars(symbol string, timeframe string, start, end time.Time) ([]event.Bar, error) {
	query := `
		SELECT ` + barColumns + `
		FROM ohlcv_data
		WHERE symbol = $1 AND timeframe = $2 AND timestamp >= $3 AND timestamp <= $4
		ORDER BY timestamp ASC
	`

	rows, err := p.db.Query(query, symbol, timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query ohlcv_data: %w", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}

	p.logger.Debug().
		Str("symbol", symbol).
		Str("timeframe", timeframe).
		Int("bars_count", len(bars)).
		Msg("Fetched bars from database")
	return bars, nil
}

// GetBarsBefore retrieves up to limit bars strictly before the given
// instant, oldest first.
func (p *PostgresProvider) GetBarsBefore(symbol string, timeframe string, before time.Time, limit int) ([]event.Bar, error) {
	query := `
		SELECT ` + barColumns + `
		FROM ohlcv_data
		WHERE symbol = $1 AND timeframe = $2 AND timestamp < $3
		ORDER BY timestamp DESC
		LIMIT $4
	`

	rows, err := p.db.Query(query, symbol, timeframe, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ohlcv_data: %w", err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}

	// Rows arrived newest first; flip to chronological order.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

func scanBars(rows *sql.Rows) ([]event.Bar, error) {
	var bars []event.Bar
	for rows.Next() {
		var (
			symbol, timeframe      string
			timestamp              time.Time
			open, high, low, close string
			volume                 int64
		)
		if err := rows.Scan(&symbol, &timestamp, &open, &high, &low, &close, &volume, &timeframe); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
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

func parseBar(symbol string, timestamp time.Time, open, high, low, close string, volume int64, timeframe string) (event.Bar, error) {
	prices := make([]decimal.Decimal, 4)
	for i, field := range []string{open, high, low, close} {
		d, err := decimal.NewFromString(field)
		if err != nil {
			return event.Bar{}, fmt.Errorf("failed to parse price %q for %s: %w", field, symbol, err)
		}
		prices[i] = d
	}
	return event.NewBar(symbol, timestamp, prices[0], prices[1], prices[2], prices[3], volume, timeframe)
}

// Close closes the database connection.
func (p *PostgresProvider) Close() error {
	return p.db.Close()
}

var _ feed.BarProvider = (*PostgresProvider)(nil)
