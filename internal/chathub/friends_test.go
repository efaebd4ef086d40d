package chathub_test

import (
	"buddychat/backend/internal/chathub"
	"buddychat/backend/internal/models"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pairedSession joins A as seeker and B as listener and returns the shared
// session id.
func pairedSession(t *testing.T, hub *chathub.ManagerService) string {
	t.Helper()
	ctx := context.Background()

	_, err := hub.Join(ctx, "user_A", models.RoleSeeker)
	require.NoError(t, err)
	res, err := hub.Join(ctx, "user_B", models.RoleListener)
	require.NoError(t, err)
	require.True(t, res.Matched)
	return res.SessionID
}

func TestFriendFlow_AcceptSavesTranscriptForBoth(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()
	sessionID := pairedSession(t, hub)

	for _, m := range []struct{ from, text string }{
		{"user_A", "hi"},
		{"user_B", "hey, I'm listening"},
		{"user_A", "thanks, that helped"},
	} {
		_, err := hub.SendMessage(ctx, sessionID, m.from, m.text)
		require.NoError(t, err)
	}
	transcript := hub.GetMessages(ctx, sessionID)
	require.Len(t, transcript, 3)

	require.NoError(t, hub.ProposeFriend(ctx, "user_A", "user_B", sessionID))

	req := hub.FriendRequestStatus(ctx, "user_B")
	require.NotNil(t, req)
	assert.Equal(t, "user_A", req.FromUserID)
	assert.Equal(t, sessionID, req.SessionID)
	assert.Equal(t, models.FriendPending, req.Status)
	assert.Nil(t, hub.FriendRequestStatus(ctx, "user_A"), "requests are directional")

	require.NoError(t, hub.AcceptFriend(ctx, "user_A", "user_B", sessionID))

	savedB := hub.ListSavedChats(ctx, "user_B")
	require.Len(t, savedB, 1)
	assert.Equal(t, sessionID, savedB[0].SessionID)
	assert.Equal(t, "user_A", savedB[0].FriendID)
	assert.Equal(t, transcript, savedB[0].Messages)
	assert.Equal(t, "thanks, that helped", savedB[0].Preview)

	savedA := hub.ListSavedChats(ctx, "user_A")
	require.Len(t, savedA, 1)
	assert.Equal(t, "user_B", savedA[0].FriendID)
	assert.Equal(t, transcript, savedA[0].Messages)

	assert.Nil(t, hub.FriendRequestStatus(ctx, "user_B"))

	// Continuing one copy touches neither the session nor the other copy.
	_, err := hub.AppendSavedMessage(ctx, "user_B", sessionID, "user_B", "note to self")
	require.NoError(t, err)

	assert.Len(t, hub.ListSavedChats(ctx, "user_B")[0].Messages, 4)
	assert.Len(t, hub.ListSavedChats(ctx, "user_A")[0].Messages, 3)
	assert.Equal(t, transcript, hub.GetMessages(ctx, sessionID))
}

func TestAcceptFriend_Twice_NoDuplicates(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()
	sessionID := pairedSession(t, hub)

	require.NoError(t, hub.ProposeFriend(ctx, "user_A", "user_B", sessionID))
	require.NoError(t, hub.AcceptFriend(ctx, "user_A", "user_B", sessionID))
	require.NoError(t, hub.AcceptFriend(ctx, "user_A", "user_B", sessionID))

	assert.Len(t, hub.ListSavedChats(ctx, "user_A"), 1)
	assert.Len(t, hub.ListSavedChats(ctx, "user_B"), 1)

	// Re-proposing the accepted session does not reopen it.
	require.NoError(t, hub.ProposeFriend(ctx, "user_A", "user_B", sessionID))
	assert.Nil(t, hub.FriendRequestStatus(ctx, "user_B"))
}

func TestAcceptFriend_UnknownSessionSavesEmptyChat(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()

	require.NoError(t, hub.ProposeFriend(ctx, "user_A", "user_B", "gone"))
	require.NoError(t, hub.AcceptFriend(ctx, "user_A", "user_B", "gone"))

	saved := hub.ListSavedChats(ctx, "user_B")
	require.Len(t, saved, 1)
	assert.Empty(t, saved[0].Messages)
	assert.False(t, saved[0].LastMessageAt.IsZero())
}

func TestDeclineFriend_Idempotent(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()

	hub.DeclineFriend(ctx, "user_A", "user_B")

	require.NoError(t, hub.ProposeFriend(ctx, "user_A", "user_B", "s1"))
	hub.DeclineFriend(ctx, "user_A", "user_B")
	assert.Nil(t, hub.FriendRequestStatus(ctx, "user_B"))

	hub.DeclineFriend(ctx, "user_A", "user_B")
	assert.Nil(t, hub.FriendRequestStatus(ctx, "user_B"))
	assert.Empty(t, hub.ListSavedChats(ctx, "user_B"))
}

func TestProposeFriend_OverwriteAndOrdering(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()

	require.NoError(t, hub.ProposeFriend(ctx, "user_A", "user_X", "s1"))
	require.NoError(t, hub.ProposeFriend(ctx, "user_B", "user_X", "s2"))

	req := hub.FriendRequestStatus(ctx, "user_X")
	require.NotNil(t, req)
	assert.Equal(t, "user_A", req.FromUserID, "the oldest pending request comes first")

	// Re-proposing resets the timestamp and replaces the session.
	require.NoError(t, hub.ProposeFriend(ctx, "user_A", "user_X", "s3"))
	pending, err := hub.Friends.Incoming(ctx, "user_X")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "user_B", pending[0].FromUserID)
	assert.Equal(t, "s3", pending[1].SessionID)
}

func TestFriendRequestStatus_IgnoresIDsSharingAPrefix(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()

	require.NoError(t, hub.ProposeFriend(ctx, "user_A", "u1:x", "s1"))

	assert.Nil(t, hub.FriendRequestStatus(ctx, "u1"))
	assert.NotNil(t, hub.FriendRequestStatus(ctx, "u1:x"))
}

func TestProposeFriend_InvalidInput(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()

	assert.ErrorIs(t, hub.ProposeFriend(ctx, "", "user_B", "s1"), chathub.ErrInvalidInput)
	assert.ErrorIs(t, hub.ProposeFriend(ctx, "user_A", "", "s1"), chathub.ErrInvalidInput)
	assert.ErrorIs(t, hub.ProposeFriend(ctx, "user_A", "user_A", "s1"), chathub.ErrInvalidInput)
	assert.ErrorIs(t, hub.ProposeFriend(ctx, "user_A", "user_B", ""), chathub.ErrInvalidInput)
	assert.ErrorIs(t, hub.AcceptFriend(ctx, "user_A", "user_B", ""), chathub.ErrInvalidInput)
}

func TestAcceptFriend_RequiresPendingRequest(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()
	sessionID := pairedSession(t, hub)

	assert.ErrorIs(t, hub.AcceptFriend(ctx, "user_A", "user_B", sessionID), chathub.ErrNotFound)

	require.NoError(t, hub.ProposeFriend(ctx, "user_A", "user_B", sessionID))
	assert.ErrorIs(t, hub.AcceptFriend(ctx, "user_A", "user_B", "other"), chathub.ErrNotFound)
	assert.ErrorIs(t, hub.AcceptFriend(ctx, "user_B", "user_A", sessionID), chathub.ErrNotFound, "requests are directional")

	hub.DeclineFriend(ctx, "user_A", "user_B")
	assert.ErrorIs(t, hub.AcceptFriend(ctx, "user_A", "user_B", sessionID), chathub.ErrNotFound)

	assert.Empty(t, hub.ListSavedChats(ctx, "user_A"))
	assert.Empty(t, hub.ListSavedChats(ctx, "user_B"))
}

func TestFriendRequests_IDsWithSeparatorDoNotCollide(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()

	require.NoError(t, hub.ProposeFriend(ctx, "c", "a:b", "s1"))
	require.NoError(t, hub.ProposeFriend(ctx, "b:c", "a", "s2"))

	hub.DeclineFriend(ctx, "b:c", "a")

	req := hub.FriendRequestStatus(ctx, "a:b")
	require.NotNil(t, req, "declining b:c -> a must not touch c -> a:b")
	assert.Equal(t, "c", req.FromUserID)
	assert.Equal(t, "s1", req.SessionID)
	assert.Nil(t, hub.FriendRequestStatus(ctx, "a"))

	require.NoError(t, hub.AcceptFriend(ctx, "c", "a:b", "s1"))
	assert.Len(t, hub.ListSavedChats(ctx, "a:b"), 1)
	assert.Empty(t, hub.ListSavedChats(ctx, "a"))
}

func TestProposeFriend_OnlyBetweenParticipants(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()
	sessionID := pairedSession(t, hub)

	assert.ErrorIs(t, hub.ProposeFriend(ctx, "user_A", "user_Z", sessionID), chathub.ErrInvalidInput)
	assert.ErrorIs(t, hub.ProposeFriend(ctx, "user_Z", "user_B", sessionID), chathub.ErrInvalidInput)
	assert.Nil(t, hub.FriendRequestStatus(ctx, "user_Z"))
	assert.Nil(t, hub.FriendRequestStatus(ctx, "user_B"))
}
