package health

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL health record repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Insert stores a new health record.
func (r *PostgresRepository) Insert(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO endpoint_health_records (
			id, endpoint_id, path, status, latency_ms, error, snapshot, checked_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.EndpointID, rec.Path, rec.Status,
		rec.LatencyMS, rec.Error, rec.Snapshot, rec.CheckedAt,
	)
	return err
}

// LatestByEndpoint returns the most recent record per path for the endpoint.
func (r *PostgresRepository) LatestByEndpoint(ctx context.Context, endpointID uuid.UUID) ([]*Record, error) {
	query := `
		SELECT DISTINCT ON (path)
			id, endpoint_id, path, status, latency_ms, error, snapshot, checked_at
		FROM endpoint_health_records
		WHERE endpoint_id = $1
		ORDER BY path, checked_at DESC
	`
	return r.query(ctx, query, endpointID)
}

// ListRecent returns records checked after the given time, newest first.
func (r *PostgresRepository) ListRecent(ctx context.Context, since time.Time, limit int) ([]*Record, error) {
	query := `
		SELECT id, endpoint_id, path, status, latency_ms, error, snapshot, checked_at
		FROM endpoint_health_records
		WHERE checked_at > $1
		ORDER BY checked_at DESC
		LIMIT $2
	`
	return r.query(ctx, query, since, limit)
}

// Prune removes records older than the given time.
func (r *PostgresRepository) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM endpoint_health_records WHERE checked_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.EndpointID,
		&rec.Path,
		&rec.Status,
		&rec.LatencyMS,
		&rec.Error,
		&rec.Snapshot,
		&rec.CheckedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
