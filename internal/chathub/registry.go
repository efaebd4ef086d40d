package chathub

import (
	"buddychat/backend/internal/config"
	"buddychat/backend/internal/models"
	"buddychat/backend/internal/storage"
	"context"
	"errors"
	"log"
	"sort"
	"time"
)

var errNotClaimable = errors.New("presence not claimable")

// Registry tracks participants waiting for a partner. Every state change of
// a presence record is a single-key atomic update, so a waiting record can be
// claimed by at most one joiner.
type Registry struct {
	Store storage.KVStore
}

// NewRegistry creates a registry on kv.
func NewRegistry(kv storage.KVStore) *Registry {
	return &Registry{Store: kv}
}

// Join upserts userID as waiting in role. A user who re-joins in the same
// role keeps their original place in line. A record that has already been
// claimed is left alone; the claiming joiner owns it until the pairing is
// finished.
func (r *Registry) Join(ctx context.Context, userID string, role models.Role) error {
	if userID == "" {
		return invalidf("user id is required")
	}
	if !role.Valid() {
		return invalidf("unknown role %q", role)
	}

	return r.enqueue(ctx, models.Presence{
		UserID:   userID,
		Role:     role,
		Status:   models.PresenceWaiting,
		JoinedAt: time.Now().UTC(),
	})
}

// enqueue writes p unless the user already has a claimed record or is
// already waiting in the same role.
func (r *Registry) enqueue(ctx context.Context, p models.Presence) error {
	err := storage.UpdateJSON(ctx, r.Store, presenceKey(p.UserID), func(cur *models.Presence) (*models.Presence, error) {
		if cur != nil && cur.Status == models.PresenceMatched {
			return cur, nil
		}
		if cur != nil && cur.Role == p.Role {
			return cur, nil
		}
		return &p, nil
	})
	if err != nil {
		return storeErr("join", err)
	}
	return nil
}

// Leave removes userID's presence record and any unread match notice.
// It always succeeds from the caller's point of view.
func (r *Registry) Leave(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	if err := r.Store.Del(ctx, presenceKey(userID), matchNoticeKey(userID)); err != nil {
		log.Printf("ERROR: Failed to remove presence for %s: %v", userID, err)
	}
}

// Get returns userID's presence record, or nil if there is none.
func (r *Registry) Get(ctx context.Context, userID string) (*models.Presence, error) {
	var p models.Presence
	found, err := storage.GetJSON(ctx, r.Store, presenceKey(userID), &p)
	if err != nil {
		return nil, storeErr("get presence", err)
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}

// Waiting lists waiting participants, earliest arrival first.
func (r *Registry) Waiting(ctx context.Context) ([]models.Presence, error) {
	all, skipped, err := storage.ScanJSON[models.Presence](ctx, r.Store, config.PresenceKeyPrefix)
	if err != nil {
		return nil, storeErr("scan presence", err)
	}
	if skipped > 0 {
		log.Printf("WARNING: Skipped %d undecodable presence records", skipped)
	}

	waiting := all[:0]
	for _, p := range all {
		if p.Status == models.PresenceWaiting {
			waiting = append(waiting, p)
		}
	}
	sort.Slice(waiting, func(i, j int) bool {
		if !waiting[i].JoinedAt.Equal(waiting[j].JoinedAt) {
			return waiting[i].JoinedAt.Before(waiting[j].JoinedAt)
		}
		return waiting[i].UserID < waiting[j].UserID
	})
	return waiting, nil
}

// Claim atomically moves userID from waiting to matched, recording the
// session it is being paired into. It returns nil if the record is gone,
// already claimed, or no longer in the expected role.
func (r *Registry) Claim(ctx context.Context, userID string, role models.Role, sessionID string) (*models.Presence, error) {
	var claimed *models.Presence
	err := storage.UpdateJSON(ctx, r.Store, presenceKey(userID), func(cur *models.Presence) (*models.Presence, error) {
		if cur == nil || cur.Status != models.PresenceWaiting || cur.Role != role {
			return nil, errNotClaimable
		}
		next := *cur
		next.Status = models.PresenceMatched
		next.SessionID = sessionID
		claimed = &next
		return &next, nil
	})
	if errors.Is(err, errNotClaimable) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("claim presence", err)
	}
	return claimed, nil
}

// Withdraw takes userID out of the waiting pool so nobody can claim it
// while it searches for a partner itself. It returns the prior record. A
// record that was already claimed is kept and returned unchanged, which
// tells the caller it has been paired.
func (r *Registry) Withdraw(ctx context.Context, userID string) (*models.Presence, error) {
	var prior *models.Presence
	err := storage.UpdateJSON(ctx, r.Store, presenceKey(userID), func(cur *models.Presence) (*models.Presence, error) {
		prior = cur
		if cur != nil && cur.Status == models.PresenceMatched {
			return cur, nil
		}
		return nil, nil
	})
	if err != nil {
		return nil, storeErr("withdraw presence", err)
	}
	return prior, nil
}

// release returns a record claimed for sessionID to the waiting pool. It is
// used when a pairing could not be completed.
func (r *Registry) release(ctx context.Context, userID, sessionID string) error {
	err := storage.UpdateJSON(ctx, r.Store, presenceKey(userID), func(cur *models.Presence) (*models.Presence, error) {
		if cur == nil || cur.Status != models.PresenceMatched || cur.SessionID != sessionID {
			return cur, nil
		}
		next := *cur
		next.Status = models.PresenceWaiting
		next.SessionID = ""
		return &next, nil
	})
	if err != nil {
		return storeErr("release presence", err)
	}
	return nil
}

// Remove deletes userID's presence record.
func (r *Registry) Remove(ctx context.Context, userID string) error {
	if err := r.Store.Del(ctx, presenceKey(userID)); err != nil {
		return storeErr("remove presence", err)
	}
	return nil
}

// Notify leaves a match notice for userID.
func (r *Registry) Notify(ctx context.Context, userID string, notice models.MatchNotice) error {
	if err := storage.SetJSON(ctx, r.Store, matchNoticeKey(userID), notice); err != nil {
		return storeErr("write match notice", err)
	}
	return nil
}

// TakeNotice removes and returns userID's match notice, or nil.
func (r *Registry) TakeNotice(ctx context.Context, userID string) (*models.MatchNotice, error) {
	var taken *models.MatchNotice
	err := storage.UpdateJSON(ctx, r.Store, matchNoticeKey(userID), func(cur *models.MatchNotice) (*models.MatchNotice, error) {
		taken = cur
		return nil, nil
	})
	if err != nil {
		return nil, storeErr("take match notice", err)
	}
	return taken, nil
}
