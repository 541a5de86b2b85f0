package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - Session events are keyed by refresh token hash, so concurrent logins by one
//   user produce independent records.
// - The raw refresh token is never stored.
//
// Storage (Postgres): table audit_events, INSERT-only.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorID and ActorKind identify who caused the event ("user" or "admin").
	ActorID   string `json:"actor_id,omitempty" db:"actor_id"`
	ActorKind string `json:"actor_kind,omitempty" db:"actor_kind"`

	TargetUserID string `json:"target_user_id,omitempty" db:"target_user_id"`

	// Device metadata, best-effort.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string `json:"user_agent,omitempty" db:"user_agent"`

	RefreshTokenHash string `json:"refresh_token_hash,omitempty" db:"refresh_token_hash"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeSessionIssued EventType = "session_issued"
	EventTypeUserBanned    EventType = "user_banned"
	EventTypeUserUnbanned  EventType = "user_unbanned"
)
