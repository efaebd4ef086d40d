package chathub

import (
	"buddychat/backend/internal/models"
	"buddychat/backend/internal/storage"
	"context"
	"errors"
	"log"
	"sort"
	"time"
)

var errNoRequest = errors.New("no matching friend request")

// FriendService runs the propose/accept/decline handshake that turns a
// session into saved chats. Requests live in the durable store, one record
// per ordered (from, to) pair.
type FriendService struct {
	Store    storage.KVStore
	Sessions *SessionStore
	Archive  *ArchiveService
}

// NewFriendService creates a friend service. kv is the durable store that
// also backs archive.
func NewFriendService(kv storage.KVStore, sessions *SessionStore, archive *ArchiveService) *FriendService {
	return &FriendService{
		Store:    kv,
		Sessions: sessions,
		Archive:  archive,
	}
}

func validatePair(from, to string) error {
	switch {
	case from == "":
		return invalidf("from user id is required")
	case to == "":
		return invalidf("to user id is required")
	case from == to:
		return invalidf("cannot send a friend request to yourself")
	}
	return nil
}

// Propose creates a pending request from -> to for sessionID. Proposing again
// overwrites the previous request and resets its timestamp, except that a
// request already accepted for the same session is left as it is. When the
// session is still around, both users must have taken part in it.
func (f *FriendService) Propose(ctx context.Context, from, to, sessionID string) error {
	if err := validatePair(from, to); err != nil {
		return err
	}
	if sessionID == "" {
		return invalidf("session id is required")
	}

	session, err := f.Sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session != nil && session.Kind == models.SessionHumanPaired &&
		(!session.HasParticipant(from) || !session.HasParticipant(to)) {
		return invalidf("%s and %s did not share session %s", from, to, sessionID)
	}

	err = storage.UpdateJSON(ctx, f.Store, friendRequestKey(from, to), func(cur *models.FriendRequest) (*models.FriendRequest, error) {
		if cur != nil && cur.Status == models.FriendAccepted && cur.SessionID == sessionID {
			return cur, nil
		}
		return &models.FriendRequest{
			FromUserID: from,
			ToUserID:   to,
			SessionID:  sessionID,
			Status:     models.FriendPending,
			Timestamp:  time.Now().UTC(),
		}, nil
	})
	if err != nil {
		return storeErr("propose friend", err)
	}
	log.Printf("INFO: Friend request %s -> %s for session %s", from, to, sessionID)
	return nil
}

// Incoming lists the pending requests addressed to userID, oldest first.
func (f *FriendService) Incoming(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	all, skipped, err := storage.ScanJSON[models.FriendRequest](ctx, f.Store, friendRequestInboxPrefix(userID))
	if err != nil {
		return nil, storeErr("scan friend requests", err)
	}
	if skipped > 0 {
		log.Printf("WARNING: Skipped %d undecodable friend requests for %s", skipped, userID)
	}

	pending := make([]models.FriendRequest, 0, len(all))
	for _, r := range all {
		// The prefix of one user id can be the whole of another's.
		if r.Status == models.FriendPending && r.ToUserID == userID {
			pending = append(pending, r)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].Timestamp.Equal(pending[j].Timestamp) {
			return pending[i].Timestamp.Before(pending[j].Timestamp)
		}
		return pending[i].FromUserID < pending[j].FromUserID
	})
	return pending, nil
}

// Status returns the oldest pending request addressed to userID, or nil.
// Store failures are logged and read as "no request".
func (f *FriendService) Status(ctx context.Context, userID string) *models.FriendRequest {
	if userID == "" {
		return nil
	}
	pending, err := f.Incoming(ctx, userID)
	if err != nil {
		log.Printf("ERROR: Failed to read friend requests for %s: %v", userID, err)
		return nil
	}
	if len(pending) == 0 {
		return nil
	}
	return &pending[0]
}

// Accept moves the pending request from -> to for sessionID to accepted,
// then saves the session transcript as a chat for both parties. A missing
// session yields empty saved chats. Accepting an already accepted request
// for the same session only re-saves missing entries, so a retry after a
// failed save completes it and never duplicates anything.
func (f *FriendService) Accept(ctx context.Context, from, to, sessionID string) error {
	if err := validatePair(from, to); err != nil {
		return err
	}
	if sessionID == "" {
		return invalidf("session id is required")
	}

	err := storage.UpdateJSON(ctx, f.Store, friendRequestKey(from, to), func(cur *models.FriendRequest) (*models.FriendRequest, error) {
		if cur == nil || !cur.Between(from, to) || cur.SessionID != sessionID {
			return nil, errNoRequest
		}
		switch cur.Status {
		case models.FriendAccepted:
			return cur, nil
		case models.FriendPending:
			next := *cur
			next.Status = models.FriendAccepted
			next.Timestamp = time.Now().UTC()
			return &next, nil
		}
		return nil, errNoRequest
	})
	if errors.Is(err, errNoRequest) {
		return notFoundf("no friend request %s -> %s for session %s", from, to, sessionID)
	}
	if err != nil {
		return storeErr("accept friend", err)
	}

	session, err := f.Sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	var transcript []models.Message
	if session != nil {
		transcript = session.Messages
	}

	// Each side gets its own copy; later appends stay private.
	if _, err := f.Archive.AddEntry(ctx, to, models.NewSavedChat(sessionID, from, transcript)); err != nil {
		return err
	}
	if _, err := f.Archive.AddEntry(ctx, from, models.NewSavedChat(sessionID, to, transcript)); err != nil {
		return err
	}

	log.Printf("INFO: %s accepted friend request from %s, saved %d messages of session %s", to, from, len(transcript), sessionID)
	return nil
}

// Decline drops a pending request from -> to. It never fails; store errors
// are logged.
func (f *FriendService) Decline(ctx context.Context, from, to string) {
	if from == "" || to == "" {
		return
	}
	err := storage.UpdateJSON(ctx, f.Store, friendRequestKey(from, to), func(cur *models.FriendRequest) (*models.FriendRequest, error) {
		if cur != nil && (!cur.Between(from, to) || cur.Status != models.FriendPending) {
			return cur, nil
		}
		return nil, nil
	})
	if err != nil {
		log.Printf("ERROR: Failed to decline friend request %s -> %s: %v", from, to, err)
	}
}
