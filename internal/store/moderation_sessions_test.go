package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bountypix/bounty-service/internal/domain"
)

func TestModerationSessionStore_DisabledWithoutRedis(t *testing.T) {
	sessions := NewModerationSessionStore(nil, "", 0)

	if sessions.Enabled() {
		t.Fatal("a store without a redis client must report disabled")
	}

	ctx := context.Background()
	err := sessions.SaveModerationSession(ctx, domain.ModerationSession{ModeratorID: "mod-1", Action: "reject"})
	if !errors.Is(err, ErrModerationSessionsDisabled) {
		t.Fatalf("Save: expected ErrModerationSessionsDisabled, got %v", err)
	}
	if _, err := sessions.GetModerationSession(ctx, "mod-1"); !errors.Is(err, ErrModerationSessionsDisabled) {
		t.Fatalf("Get: expected ErrModerationSessionsDisabled, got %v", err)
	}
	if err := sessions.ClearModerationSession(ctx, "mod-1"); !errors.Is(err, ErrModerationSessionsDisabled) {
		t.Fatalf("Clear: expected ErrModerationSessionsDisabled, got %v", err)
	}
}

func TestModerationSessionStore_KeyDefaults(t *testing.T) {
	sessions := NewModerationSessionStore(nil, "", 0)
	if got := sessions.key("mod-1"); got != "bounty:modsession:mod-1" {
		t.Fatalf("expected the default prefix, got %q", got)
	}
	if sessions.ttl != 5*time.Minute {
		t.Fatalf("expected the default ttl, got %v", sessions.ttl)
	}

	custom := NewModerationSessionStore(nil, "svc:sessions:", 30*time.Second)
	if got := custom.key(" mod-2 "); got != "svc:sessions:mod-2" {
		t.Fatalf("expected trimmed key, got %q", got)
	}
}
