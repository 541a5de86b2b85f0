package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Records are never exposed through the public APIs.
// - Callers decide whether a failed append fails the surrounding operation.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.TargetUserID == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// Device is the client metadata captured when a session is issued.
type Device struct {
	IP        string
	UserAgent string
}

// LogSession records the device a refresh token was issued to.
func (s *Service) LogSession(ctx context.Context, userID, refreshTokenHash string, d Device) error {
	if refreshTokenHash == "" {
		return ErrInvalidEvent
	}
	return s.Append(ctx, Event{
		Type:             EventTypeSessionIssued,
		ActorID:          userID,
		ActorKind:        "user",
		TargetUserID:     userID,
		IPAddress:        d.IP,
		UserAgent:        d.UserAgent,
		RefreshTokenHash: refreshTokenHash,
		Message:          "session issued",
	})
}

// LogModeration records an admin banning or unbanning a user.
func (s *Service) LogModeration(ctx context.Context, adminID, targetUserID string, banned bool, ip string) error {
	e := Event{
		Type:         EventTypeUserUnbanned,
		ActorID:      adminID,
		ActorKind:    "admin",
		TargetUserID: targetUserID,
		IPAddress:    ip,
		Message:      "user unbanned",
	}
	if banned {
		e.Type = EventTypeUserBanned
		e.Message = "user banned"
	}
	return s.Append(ctx, e)
}
