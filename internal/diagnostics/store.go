// Package diagnostics keeps a record of every grade retrieval so operators can
// find institutions whose pages no longer parse.
package diagnostics

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

//go:embed schema.sql
var Schema string

var tracer = otel.Tracer("portalproxy/diagnostics")

type Attempt struct {
	Institution string    `json:"institution"`
	Region      string    `json:"region,omitempty"`
	BaseUrl     string    `json:"baseUrl"`
	Path        string    `json:"path"`
	Format      string    `json:"format"`
	Strategy    string    `json:"strategy"`
	RecordCount int       `json:"recordCount"`
	Degraded    bool      `json:"degraded"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Store struct {
	db *sql.DB
}

// NewStore expects `db` to already have Schema applied.
func NewStore(db *sql.DB) Store {
	return Store{db: db}
}

func (s Store) Record(ctx context.Context, a Attempt) error {
	ctx, span := tracer.Start(ctx, "Record")
	defer span.End()

	_, err := s.db.ExecContext(
		ctx,
		`insert into parse_attempt (
			institution, region, base_url, source_path, format,
			strategy, record_count, degraded, created_at
		) values (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Institution, a.Region, a.BaseUrl, a.Path, a.Format,
		a.Strategy, a.RecordCount, a.Degraded, a.CreatedAt.Unix(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to insert parse attempt")
		return err
	}
	return nil
}

type Filter struct {
	Institution  string
	DegradedOnly bool
	// Limit defaults to 50
	Limit int
}

// Recent lists attempts newest first.
func (s Store) Recent(ctx context.Context, filter Filter) ([]Attempt, error) {
	ctx, span := tracer.Start(ctx, "Recent")
	defer span.End()

	var where []string
	var args []any
	if filter.Institution != "" {
		where = append(where, "institution = ?")
		args = append(args, filter.Institution)
	}
	if filter.DegradedOnly {
		where = append(where, "degraded = 1")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `select
		institution, region, base_url, source_path, format,
		strategy, record_count, degraded, created_at
	from parse_attempt`
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	query += " order by created_at desc, id desc limit ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query parse attempts")
		return nil, err
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var createdAt int64
		err := rows.Scan(
			&a.Institution, &a.Region, &a.BaseUrl, &a.Path, &a.Format,
			&a.Strategy, &a.RecordCount, &a.Degraded, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan parse attempt: %w", err)
		}
		a.CreatedAt = time.Unix(createdAt, 0).UTC()
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// LastAlert returns when operators were last alerted about an institution.
func (s Store) LastAlert(ctx context.Context, institution string) (time.Time, bool, error) {
	var sentAt int64
	err := s.db.QueryRowContext(
		ctx,
		"select sent_at from degraded_alert where institution = ?",
		institution,
	).Scan(&sentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(sentAt, 0).UTC(), true, nil
}

func (s Store) MarkAlerted(ctx context.Context, institution string, at time.Time) error {
	_, err := s.db.ExecContext(
		ctx,
		`insert into degraded_alert (institution, sent_at) values (?, ?)
		on conflict (institution) do update set sent_at = excluded.sent_at`,
		institution, at.Unix(),
	)
	return err
}
