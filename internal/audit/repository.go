package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides persistence for security audit entries.
type Repository interface {
	Insert(ctx context.Context, entry Entry) error
	List(ctx context.Context, filters ListFilters) ([]Entry, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert writes one audit entry. The calling transaction scope is the
// worker's, never a request handler's.
func (r *PGRepository) Insert(ctx context.Context, entry Entry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO security_audit_log (timestamp, username, resource, action, context, outcome, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ts, entry.Username, entry.Resource, entry.Action,
		optionalText(entry.Context), entry.Outcome, optionalText(entry.Details))
	if err != nil {
		return insertError(err)
	}
	return nil
}

// insertError tags server-reported failures with the SQLSTATE code so the
// worker log distinguishes schema drift from transient outages.
func insertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("audit: insert (%s): %w", pgErr.Code, err)
	}
	return fmt.Errorf("audit: insert: %w", err)
}

// List returns a page of entries, newest first. One extra row is fetched to
// detect whether a next page exists.
func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Entry, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT id, timestamp, username, COALESCE(resource, ''), COALESCE(action, ''),
		COALESCE(context, ''), outcome, COALESCE(details, '')
		FROM security_audit_log WHERE 1=1`)
	args := []any{}
	if !filters.From.IsZero() {
		args = append(args, filters.From)
		fmt.Fprintf(&query, " AND timestamp >= $%d", len(args))
	}
	if !filters.To.IsZero() {
		args = append(args, filters.To)
		fmt.Fprintf(&query, " AND timestamp <= $%d", len(args))
	}
	if filters.Username != "" {
		args = append(args, filters.Username)
		fmt.Fprintf(&query, " AND username = $%d", len(args))
	}
	if filters.Outcome != "" {
		args = append(args, filters.Outcome)
		fmt.Fprintf(&query, " AND outcome = $%d", len(args))
	}
	args = append(args, filters.PageSize+1)
	fmt.Fprintf(&query, " ORDER BY timestamp DESC, id DESC LIMIT $%d", len(args))
	args = append(args, (filters.Page-1)*filters.PageSize)
	fmt.Fprintf(&query, " OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts pgtype.Timestamptz
		if err := rows.Scan(&e.ID, &ts, &e.Username, &e.Resource, &e.Action, &e.Context, &e.Outcome, &e.Details); err != nil {
			return nil, err
		}
		if ts.Valid {
			e.Timestamp = ts.Time
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func optionalText(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}
