package endpoint

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL endpoint repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const endpointColumns = `
	id, name, base_url, source_domain, priority, active,
	success_count, last_used_at, created_at, updated_at
`

// Insert stores a new endpoint.
func (r *PostgresRepository) Insert(ctx context.Context, ep *Endpoint) error {
	query := `
		INSERT INTO api_endpoints (
			id, name, base_url, source_domain, priority, active,
			success_count, last_used_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		ep.ID, ep.Name, ep.BaseURL, ep.SourceDomain, ep.Priority, ep.Active,
		ep.SuccessCount, ep.LastUsedAt, ep.CreatedAt, ep.UpdatedAt,
	)
	return err
}

// Update replaces a stored endpoint's mutable fields.
func (r *PostgresRepository) Update(ctx context.Context, ep *Endpoint) error {
	query := `
		UPDATE api_endpoints SET
			name = $2,
			base_url = $3,
			source_domain = $4,
			priority = $5,
			active = $6,
			updated_at = $7
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query,
		ep.ID, ep.Name, ep.BaseURL, ep.SourceDomain, ep.Priority, ep.Active, ep.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEndpointNotFound
	}
	return nil
}

// Get retrieves a single endpoint by id.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Endpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM api_endpoints WHERE id = $1`

	ep, err := scanEndpoint(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEndpointNotFound
		}
		return nil, err
	}
	return ep, nil
}

// ListActive returns active endpoints in fallback order.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]*Endpoint, error) {
	query := `
		SELECT ` + endpointColumns + `
		FROM api_endpoints
		WHERE active = true
		ORDER BY priority DESC, id ASC
	`
	return r.list(ctx, query)
}

// ListAll returns every endpoint in fallback order.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]*Endpoint, error) {
	query := `
		SELECT ` + endpointColumns + `
		FROM api_endpoints
		ORDER BY priority DESC, id ASC
	`
	return r.list(ctx, query)
}

func (r *PostgresRepository) list(ctx context.Context, query string) ([]*Endpoint, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []*Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return endpoints, nil
}

// Delete removes an endpoint permanently.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM api_endpoints WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEndpointNotFound
	}
	return nil
}

// RecordSuccess increments the success counter and stamps last_used_at.
func (r *PostgresRepository) RecordSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE api_endpoints SET
			success_count = success_count + 1,
			last_used_at = $2
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEndpointNotFound
	}
	return nil
}

func scanEndpoint(row pgx.Row) (*Endpoint, error) {
	var ep Endpoint
	err := row.Scan(
		&ep.ID,
		&ep.Name,
		&ep.BaseURL,
		&ep.SourceDomain,
		&ep.Priority,
		&ep.Active,
		&ep.SuccessCount,
		&ep.LastUsedAt,
		&ep.CreatedAt,
		&ep.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ep, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
