package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trademon/internal/domain"
	"trademon/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.CandleRepository interface using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trademon.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("%w: failed to open database at '%s': %w", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %w", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite serializes writes internally; the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Candle database ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id TEXT NOT NULL,
		granularity_seconds INTEGER NOT NULL,
		bucket_time TIMESTAMP NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		UNIQUE (product_id, granularity_seconds, bucket_time)
	);
	CREATE INDEX IF NOT EXISTS idx_candles_product_bucket
		ON candles (product_id, granularity_seconds, bucket_time);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: %w", ports.ErrQueryFailed, err)
	}
	return nil
}

// SaveCandle persists one closed candle, replacing any earlier record for
// the same bucket.
func (r *Repository) SaveCandle(ctx context.Context, c domain.Candle) error {
	const query = `
	INSERT OR REPLACE INTO candles
		(product_id, granularity_seconds, bucket_time, open, high, low, close, volume)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		c.ProductID, int64(c.Granularity.Seconds()), c.Time.UTC(),
		c.Open, c.High, c.Low, c.Close, c.Volume,
	)
	if err != nil {
		err = fmt.Errorf("%w: saving candle: %w", ports.ErrQueryFailed, err)
		r.logger.Error(ctx, err, "Failed to save candle", map[string]interface{}{
			"product": c.ProductID,
			"bucket":  c.Time,
		})
		return err
	}
	return nil
}

// RecentByProduct retrieves the most recent closed candles, oldest first.
func (r *Repository) RecentByProduct(ctx context.Context, productID string, granularity time.Duration, limit int) ([]domain.Candle, error) {
	const query = `
	SELECT bucket_time, open, high, low, close, volume
	FROM candles
	WHERE product_id = ? AND granularity_seconds = ?
	ORDER BY bucket_time DESC
	LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, productID, int64(granularity.Seconds()), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: querying candles: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var candles []domain.Candle
	for rows.Next() {
		c := domain.Candle{ProductID: productID, Granularity: granularity}
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("%w: scanning candle: %w", ports.ErrQueryFailed, err)
		}
		c.Time = c.Time.UTC()
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrQueryFailed, err)
	}

	// Reverse to oldest-first order.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// Close releases the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}
