package database

import (
	"context"
	"fmt"
	"time"

	"github.com/CoreyFoshee/thatsamorepizza/internal/domain"
)

// AuditRepo appends accepted votes to the vote_records table.
type AuditRepo struct {
	db *DB
}

var _ domain.AuditSink = (*AuditRepo)(nil)

func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Record inserts one vote record.
func (r *AuditRepo) Record(ctx context.Context, rec domain.VoteRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO vote_records (choice, session_id, created_at)
		VALUES ($1, $2, $3)
	`, string(rec.Choice), rec.SessionID, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}
	return nil
}

// CountSince returns how many votes were recorded after the cutoff.
// Handy for ad-hoc queries against the trail; the serving path never
// reads it.
func (r *AuditRepo) CountSince(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM vote_records WHERE created_at > $1
	`, cutoff).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return count, nil
}

// NoopAuditSink discards records. Used when no database is configured.
type NoopAuditSink struct{}

var _ domain.AuditSink = NoopAuditSink{}

func (NoopAuditSink) Record(context.Context, domain.VoteRecord) error { return nil }
