package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends events to the audit_events table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, type, actor_id, actor_kind, target_user_id, ip_address, user_agent,
  refresh_token_hash, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		e.ActorID,
		e.ActorKind,
		e.TargetUserID,
		e.IPAddress,
		e.UserAgent,
		e.RefreshTokenHash,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
