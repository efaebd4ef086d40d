package chathub

import (
	"buddychat/backend/internal/config"
	"buddychat/backend/internal/models"
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// JoinResult is the session handle returned to a joining participant.
type JoinResult struct {
	Matched   bool   `json:"matched"`
	SessionID string `json:"session_id"`
	PartnerID string `json:"partner_id,omitempty"`
}

// MatcherService pairs seekers with listeners.
//
// Pairing never takes a global lock. A joiner first withdraws its own
// presence record so nobody can claim it mid-search, then claims candidates
// one at a time with a single-key compare-and-set. A candidate can therefore
// be claimed by at most one joiner.
type MatcherService struct {
	Registry *Registry
	Sessions *SessionStore
}

// NewMatcherService creates a matcher over registry and sessions.
func NewMatcherService(registry *Registry, sessions *SessionStore) *MatcherService {
	return &MatcherService{
		Registry: registry,
		Sessions: sessions,
	}
}

// RequestJoin pairs userID with the longest-waiting participant of the
// complementary role, or hands out an ai_fallback session when nobody is
// waiting. In the fallback case the user stays in the waiting pool and can
// still be claimed later; Poll reports that.
func (m *MatcherService) RequestJoin(ctx context.Context, userID string, role models.Role) (JoinResult, error) {
	if userID == "" {
		return JoinResult{}, invalidf("user id is required")
	}
	if !role.Valid() {
		return JoinResult{}, invalidf("unknown role %q", role)
	}

	// 1. Someone may already have paired with us.
	if res, err := m.Poll(ctx, userID); err != nil || res != nil {
		if res != nil {
			return *res, nil
		}
		return JoinResult{}, err
	}

	// 2. Leave the pool while searching.
	prior, err := m.Registry.Withdraw(ctx, userID)
	if err != nil {
		return JoinResult{}, err
	}
	if prior != nil && prior.Status == models.PresenceMatched {
		// Claimed between Poll and Withdraw.
		return m.claimedResult(ctx, userID, prior.SessionID), nil
	}

	joinedAt := time.Now().UTC()
	if prior != nil && prior.Role == role {
		joinedAt = prior.JoinedAt
	}
	self := models.Presence{UserID: userID, Role: role, Status: models.PresenceWaiting, JoinedAt: joinedAt}

	// 3. Claim the first free candidate.
	candidates, err := m.Registry.Waiting(ctx)
	if err != nil {
		m.requeue(ctx, self)
		return JoinResult{}, err
	}
	want := role.Complement()
	for _, c := range candidates {
		if c.UserID == userID || c.Role != want {
			continue
		}
		sessionID := uuid.New().String()
		claimed, err := m.Registry.Claim(ctx, c.UserID, want, sessionID)
		if err != nil {
			m.requeue(ctx, self)
			return JoinResult{}, err
		}
		if claimed == nil {
			continue // taken by a concurrent joiner
		}
		res, err := m.pair(ctx, userID, *claimed)
		if err != nil {
			m.requeue(ctx, self)
			return JoinResult{}, err
		}
		return res, nil
	}

	// 4. Nobody to pair with.
	sessionID := config.AISessionPrefix + uuid.New().String()
	if _, err := m.Sessions.Create(ctx, sessionID, models.SessionAIFallback, userID); err != nil {
		m.requeue(ctx, self)
		return JoinResult{}, err
	}
	if err := m.Registry.enqueue(ctx, self); err != nil {
		return JoinResult{}, err
	}
	log.Printf("INFO: No %s waiting for %s, started fallback session %s", want, userID, sessionID)
	return JoinResult{Matched: false, SessionID: sessionID}, nil
}

// Poll reports a pairing made by another joiner while userID was waiting,
// or nil if there is none. The match notice is consumed.
func (m *MatcherService) Poll(ctx context.Context, userID string) (*JoinResult, error) {
	if userID == "" {
		return nil, invalidf("user id is required")
	}

	notice, err := m.Registry.TakeNotice(ctx, userID)
	if err != nil {
		return nil, err
	}
	if notice != nil {
		// The claimed record is normally gone by now; make sure.
		if err := m.Registry.Remove(ctx, userID); err != nil {
			log.Printf("WARNING: Failed to clear presence of %s after match: %v", userID, err)
		}
		return &JoinResult{Matched: true, SessionID: notice.SessionID, PartnerID: notice.PartnerID}, nil
	}

	p, err := m.Registry.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p != nil && p.Status == models.PresenceMatched && p.SessionID != "" {
		res := m.claimedResult(ctx, userID, p.SessionID)
		return &res, nil
	}
	return nil, nil
}

// pair finishes a pairing after candidate has been claimed for
// candidate.SessionID.
func (m *MatcherService) pair(ctx context.Context, userID string, candidate models.Presence) (JoinResult, error) {
	sessionID := candidate.SessionID
	if _, err := m.Sessions.Create(ctx, sessionID, models.SessionHumanPaired, candidate.UserID, userID); err != nil {
		if rerr := m.Registry.release(ctx, candidate.UserID, sessionID); rerr != nil {
			log.Printf("ERROR: Failed to release %s after aborted pairing: %v", candidate.UserID, rerr)
		}
		return JoinResult{}, err
	}

	notice := models.MatchNotice{SessionID: sessionID, PartnerID: userID, MatchedAt: time.Now().UTC()}
	if err := m.Registry.Notify(ctx, candidate.UserID, notice); err != nil {
		// The claimed record still carries the session id and serves as
		// the notice.
		log.Printf("WARNING: Failed to notify %s of session %s: %v", candidate.UserID, sessionID, err)
	} else if err := m.Registry.Remove(ctx, candidate.UserID); err != nil {
		log.Printf("WARNING: Failed to remove presence of %s: %v", candidate.UserID, err)
	}

	log.Printf("INFO: Paired %s (%s) with %s in session %s", candidate.UserID, candidate.Role, userID, sessionID)
	return JoinResult{Matched: true, SessionID: sessionID, PartnerID: candidate.UserID}, nil
}

// claimedResult builds the handle for a user whose presence record was
// claimed into sessionID. The partner is looked up from the session when
// it has been written already.
func (m *MatcherService) claimedResult(ctx context.Context, userID, sessionID string) JoinResult {
	res := JoinResult{Matched: true, SessionID: sessionID}
	if session, err := m.Sessions.Get(ctx, sessionID); err == nil && session != nil {
		res.PartnerID = session.PartnerOf(userID)
	}
	return res
}

func (m *MatcherService) requeue(ctx context.Context, p models.Presence) {
	if err := m.Registry.enqueue(ctx, p); err != nil {
		log.Printf("ERROR: Failed to requeue %s: %v", p.UserID, err)
	}
}
