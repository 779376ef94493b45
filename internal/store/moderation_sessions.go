package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bountypix/bounty-service/internal/domain"
)

var (
	ErrModerationSessionNotFound  = errors.New("moderation session not found")
	ErrModerationSessionsDisabled = errors.New("moderation session store is not configured")
)

// ModerationSessionStore keeps in-flight multi-step moderator state in redis
// under a TTL, keyed by moderator id. It replaces the in-process map the
// gateway would otherwise have to hold: the state survives gateway restarts
// and expires on its own.
type ModerationSessionStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewModerationSessionStore creates a session store over the given redis
// client. A nil client yields a disabled store whose methods return
// ErrModerationSessionsDisabled.
func NewModerationSessionStore(client redis.UniversalClient, prefix string, ttl time.Duration) *ModerationSessionStore {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "bounty:modsession"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &ModerationSessionStore{
		client: client,
		prefix: trimmedPrefix,
		ttl:    ttl,
	}
}

// Enabled reports whether a redis backend is wired in.
func (s *ModerationSessionStore) Enabled() bool {
	return s != nil && s.client != nil
}

func (s *ModerationSessionStore) key(moderatorID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, strings.TrimSpace(moderatorID))
}

// SaveModerationSession stores the moderator's session, resetting its TTL.
func (s *ModerationSessionStore) SaveModerationSession(ctx context.Context, session domain.ModerationSession) error {
	if !s.Enabled() {
		return ErrModerationSessionsDisabled
	}
	if strings.TrimSpace(session.ModeratorID) == "" {
		return fmt.Errorf("moderation session requires a moderator id")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal moderation session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(session.ModeratorID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store moderation session: %w", err)
	}
	return nil
}

// GetModerationSession fetches the moderator's current session, if any.
func (s *ModerationSessionStore) GetModerationSession(ctx context.Context, moderatorID string) (*domain.ModerationSession, error) {
	if !s.Enabled() {
		return nil, ErrModerationSessionsDisabled
	}

	raw, err := s.client.Get(ctx, s.key(moderatorID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrModerationSessionNotFound
		}
		return nil, fmt.Errorf("failed to load moderation session: %w", err)
	}

	var session domain.ModerationSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode moderation session: %w", err)
	}
	return &session, nil
}

// ClearModerationSession removes the moderator's session. Clearing a session
// that already expired is not an error.
func (s *ModerationSessionStore) ClearModerationSession(ctx context.Context, moderatorID string) error {
	if !s.Enabled() {
		return ErrModerationSessionsDisabled
	}
	if err := s.client.Del(ctx, s.key(moderatorID)).Err(); err != nil {
		return fmt.Errorf("failed to clear moderation session: %w", err)
	}
	return nil
}
