package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mohamedkhairy/squeeze-scanner/internal/config"
	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
	"github.com/mohamedkhairy/squeeze-scanner/pkg/logger"
)

const pushLogSchema = `
	CREATE TABLE IF NOT EXISTS push_log (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		ticker     TEXT NOT NULL,
		trigger    TEXT NOT NULL,
		channels   TEXT[] NOT NULL DEFAULT '{}',
		status     TEXT NOT NULL,
		error      TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS push_log_user_created_idx ON push_log (user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS push_log_ticker_created_idx ON push_log (ticker, created_at DESC);
`

// PostgresPushLogStorage implements PushLogStorage on PostgreSQL
type PostgresPushLogStorage struct {
	db       *sql.DB
	dbConfig config.DatabaseConfig
}

// NewPostgresPushLogStorage opens the database and ensures the push_log table exists
func NewPostgresPushLogStorage(dbConfig config.DatabaseConfig) (*PostgresPushLogStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.Database,
		dbConfig.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(dbConfig.MaxConnections)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, pushLogSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create push_log table: %w", err)
	}

	logger.Info("Push log storage initialized",
		logger.String("host", dbConfig.Host),
		logger.Int("port", dbConfig.Port),
		logger.String("database", dbConfig.Database),
	)

	return &PostgresPushLogStorage{db: db, dbConfig: dbConfig}, nil
}

// WritePush inserts one delivery attempt
func (s *PostgresPushLogStorage) WritePush(ctx context.Context, record *models.PushRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid push record: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO push_log (id, user_id, ticker, trigger, channels, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		record.ID,
		record.UserID,
		record.Ticker,
		string(record.Trigger),
		pq.Array(record.Channels),
		string(record.Status),
		record.Error,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert push record: %w", err)
	}
	return nil
}

// GetPushes retrieves delivery attempts, newest first
func (s *PostgresPushLogStorage) GetPushes(ctx context.Context, filter PushFilter) ([]*models.PushRecord, error) {
	query, args := buildPushQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query push log: %w", err)
	}
	defer rows.Close()

	var records []*models.PushRecord
	for rows.Next() {
		var r models.PushRecord
		var trigger, status string
		if err := rows.Scan(
			&r.ID,
			&r.UserID,
			&r.Ticker,
			&trigger,
			pq.Array(&r.Channels),
			&status,
			&r.Error,
			&r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan push record: %w", err)
		}
		r.Trigger = models.TriggerKind(trigger)
		r.Status = models.PushStatus(status)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

func buildPushQuery(filter PushFilter) (string, []interface{}) {
	query := `
		SELECT id, user_id, ticker, trigger, channels, status, error, created_at
		FROM push_log
		WHERE 1=1
	`
	args := []interface{}{}
	argIndex := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIndex)
		args = append(args, filter.UserID)
		argIndex++
	}

	if filter.Ticker != "" {
		query += fmt.Sprintf(" AND ticker = $%d", argIndex)
		args = append(args, filter.Ticker)
		argIndex++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, string(filter.Status))
		argIndex++
	}

	if !filter.StartTime.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIndex)
		args = append(args, filter.StartTime)
		argIndex++
	}

	if !filter.EndTime.IsZero() {
		query += fmt.Sprintf(" AND created_at <= $%d", argIndex)
		args = append(args, filter.EndTime)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
		argIndex++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	return query, args
}

// Close closes the database connection
func (s *PostgresPushLogStorage) Close() error {
	return s.db.Close()
}
