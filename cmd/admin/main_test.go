package main

import (
	"buddychat/backend/internal/chathub"
	"buddychat/backend/internal/models"
	"buddychat/backend/internal/storage"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Commands(t *testing.T) {
	ctx := context.Background()
	hub := chathub.NewManagerService(storage.NewMemoryStore(), storage.NewMemoryStore())

	res, err := hub.Join(ctx, "user_A", models.RoleSeeker)
	require.NoError(t, err)
	require.NoError(t, hub.ProposeFriend(ctx, "user_B", "user_A", res.SessionID))

	assert.NoError(t, run(ctx, hub, "waiting", nil))
	assert.NoError(t, run(ctx, hub, "transcript", []string{res.SessionID}))
	assert.NoError(t, run(ctx, hub, "saved", []string{"user_A"}))
	assert.NoError(t, run(ctx, hub, "requests", []string{"user_A"}))
	assert.NoError(t, run(ctx, hub, "kick", []string{"user_A"}))

	waiting, err := hub.Registry.Waiting(ctx)
	require.NoError(t, err)
	assert.Empty(t, waiting)
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()
	hub := chathub.NewManagerService(storage.NewMemoryStore(), storage.NewMemoryStore())

	assert.ErrorContains(t, run(ctx, hub, "transcript", nil), "usage")
	assert.ErrorContains(t, run(ctx, hub, "transcript", []string{"missing"}), "not found")
	assert.ErrorContains(t, run(ctx, hub, "ban", nil), "unknown command")
}
