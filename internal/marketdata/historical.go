package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/rxtech-lab/helix-trading/internal/logger"
	"github.com/rxtech-lab/helix-trading/internal/types"
	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

// HistoricalSource stores candles in DuckDB and serves range queries
// for backtests. The base resolution is one minute; coarser intervals
// are aggregated at query time. The (symbol, time) primary key makes
// ingestion idempotent.
type HistoricalSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewHistoricalSource opens or creates the DuckDB database at path.
// An empty path opens an in-memory database.
func NewHistoricalSource(path string, log *logger.Logger) (*HistoricalSource, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open DuckDB", err)
	}

	_, err = db.Exec(`
		SET memory_limit='4GB';
		SET threads=4;
	`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to set DuckDB options", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS market_data (
			symbol VARCHAR NOT NULL,
			time TIMESTAMP NOT NULL,
			open DOUBLE NOT NULL,
			high DOUBLE NOT NULL,
			low DOUBLE NOT NULL,
			close DOUBLE NOT NULL,
			volume DOUBLE NOT NULL,
			PRIMARY KEY (symbol, time)
		);
	`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to create market_data table", err)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &HistoricalSource{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// ImportParquet loads bars from a parquet file. Rows already present
// are skipped.
func (s *HistoricalSource) ImportParquet(path string) error {
	s.logger.Debug("Importing parquet file", zap.String("path", path))

	// Squirrel cannot express read_parquet, so this stays raw SQL.
	query := fmt.Sprintf(`
		INSERT OR IGNORE INTO market_data (symbol, time, open, high, low, close, volume)
		SELECT symbol, time, open, high, low, close, volume
		FROM read_parquet('%s');
	`, path)

	if _, err := s.db.Exec(query); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to import parquet file", err)
	}

	return nil
}

// Ingest inserts bars, silently skipping (symbol, time) pairs that are
// already stored. Re-running an ingest is safe.
func (s *HistoricalSource) Ingest(ctx context.Context, bars []types.MarketData) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to begin transaction", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO market_data (symbol, time, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		_ = tx.Rollback()

		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to prepare insert", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		_, err := stmt.ExecContext(ctx, bar.Symbol, bar.Time, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)
		if err != nil {
			_ = tx.Rollback()

			return errors.Wrap(errors.ErrCodeQueryFailed, "failed to insert bar", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to commit ingest", err)
	}

	return nil
}

// Count returns the number of stored bars for a symbol.
func (s *HistoricalSource) Count(ctx context.Context, symbol string) (int, error) {
	query, args, err := s.sq.
		Select("COUNT(*)").
		From("market_data").
		Where(squirrel.Eq{"symbol": symbol}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// Fetch returns bars for the symbol in [from, to], sorted by time with
// no duplicates. Intervals coarser than the stored base resolution are
// aggregated with time_bucket.
func (s *HistoricalSource) Fetch(ctx context.Context, symbol string, interval Interval, from, to time.Time) ([]types.MarketData, error) {
	minutes, err := interval.Minutes()
	if err != nil {
		return nil, err
	}

	if minutes == 1 {
		return s.fetchRaw(ctx, symbol, from, to)
	}

	return s.fetchAggregated(ctx, symbol, minutes, from, to)
}

func (s *HistoricalSource) fetchRaw(ctx context.Context, symbol string, from, to time.Time) ([]types.MarketData, error) {
	query, args, err := s.sq.
		Select("time", "symbol", "open", "high", "low", "close", "volume").
		From("market_data").
		Where(squirrel.And{
			squirrel.Eq{"symbol": symbol},
			squirrel.GtOrEq{"time": from},
			squirrel.LtOrEq{"time": to},
		}).
		OrderBy("time ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build fetch query", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query bars", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

func (s *HistoricalSource) fetchAggregated(ctx context.Context, symbol string, minutes int, from, to time.Time) ([]types.MarketData, error) {
	// Window functions and time_bucket are beyond squirrel, raw SQL here.
	query := fmt.Sprintf(`
		WITH time_buckets AS MATERIALIZED (
			SELECT
				time_bucket(INTERVAL '%d minutes', time) as bucket_time,
				symbol,
				FIRST_VALUE(open) OVER (PARTITION BY time_bucket(INTERVAL '%d minutes', time) ORDER BY time) as open,
				MAX(high) OVER (PARTITION BY time_bucket(INTERVAL '%d minutes', time)) as high,
				MIN(low) OVER (PARTITION BY time_bucket(INTERVAL '%d minutes', time)) as low,
				LAST_VALUE(close) OVER (PARTITION BY time_bucket(INTERVAL '%d minutes', time) ORDER BY time ROWS BETWEEN UNBOUNDED PRECEDING AND UNBOUNDED FOLLOWING) as close,
				SUM(volume) OVER (PARTITION BY time_bucket(INTERVAL '%d minutes', time)) as volume
			FROM market_data
			WHERE symbol = $1 AND time >= $2 AND time <= $3
		)
		SELECT DISTINCT
			bucket_time as time,
			symbol,
			open,
			high,
			low,
			close,
			volume
		FROM time_buckets
		ORDER BY bucket_time ASC
	`, minutes, minutes, minutes, minutes, minutes, minutes)

	rows, err := s.db.QueryContext(ctx, query, symbol, from, to)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query aggregated bars", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// Series fetches a range directly into a BarSeries.
func (s *HistoricalSource) Series(ctx context.Context, symbol string, interval Interval, from, to time.Time) (*types.BarSeries, error) {
	bars, err := s.Fetch(ctx, symbol, interval, from, to)
	if err != nil {
		return nil, err
	}

	series := types.NewBarSeries(symbol, string(interval))
	for _, bar := range bars {
		series.Append(bar)
	}

	return series, nil
}

// Close releases the database handle.
func (s *HistoricalSource) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

func scanBars(rows *sql.Rows) ([]types.MarketData, error) {
	result := make([]types.MarketData, 0, 1000)

	for rows.Next() {
		var (
			timestamp                      time.Time
			open, high, low, close, volume float64
			symbol                         string
		)

		if err := rows.Scan(&timestamp, &symbol, &open, &high, &low, &close, &volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar", err)
		}

		result = append(result, types.MarketData{
			Symbol: symbol,
			Time:   timestamp,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: volume,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating bars", err)
	}

	return result, nil
}
