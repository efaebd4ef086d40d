package chathub

import (
	"buddychat/backend/internal/models"
	"buddychat/backend/internal/storage"
	"context"
	"log"
	"strings"
	"time"
)

// SessionStore owns session transcripts. Appends are atomic per session, so
// concurrent senders never lose each other's messages.
type SessionStore struct {
	Store storage.KVStore
}

// NewSessionStore creates a session store on kv.
func NewSessionStore(kv storage.KVStore) *SessionStore {
	return &SessionStore{Store: kv}
}

// Create records a session with its kind and participants. If messages were
// already sent to sessionID (see SendMessage), they are kept.
func (s *SessionStore) Create(ctx context.Context, sessionID string, kind models.SessionKind, participantIDs ...string) (*models.Session, error) {
	if sessionID == "" {
		return nil, invalidf("session id is required")
	}

	var created models.Session
	err := storage.UpdateJSON(ctx, s.Store, sessionKey(sessionID), func(cur *models.Session) (*models.Session, error) {
		next := models.Session{
			SessionID:      sessionID,
			ParticipantIDs: participantIDs,
			Kind:           kind,
			Messages:       []models.Message{},
			CreatedAt:      time.Now().UTC(),
		}
		if cur != nil {
			next.Messages = cur.Messages
			next.CreatedAt = cur.CreatedAt
		}
		created = next
		return &next, nil
	})
	if err != nil {
		return nil, storeErr("create session", err)
	}
	return &created, nil
}

// Get returns the session, or nil if it does not exist.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	found, err := storage.GetJSON(ctx, s.Store, sessionKey(sessionID), &session)
	if err != nil {
		return nil, storeErr("get session", err)
	}
	if !found {
		return nil, nil
	}
	return &session, nil
}

// GetMessages returns the transcript in send order. Unknown sessions and
// store failures both yield an empty transcript.
func (s *SessionStore) GetMessages(ctx context.Context, sessionID string) []models.Message {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		log.Printf("ERROR: Failed to get messages for session %s: %v", sessionID, err)
		return []models.Message{}
	}
	if session == nil || session.Messages == nil {
		return []models.Message{}
	}
	return session.Messages
}

// SendMessage appends a message from senderID.
//
// Sending to a session id that has no record creates it on the spot as an
// ai_fallback session owned by the sender. Fallback session ids handed out
// before the record is written, and clients that resume a session after it
// was collected, both rely on this.
func (s *SessionStore) SendMessage(ctx context.Context, sessionID, senderID, text string) (models.Message, error) {
	msg, _, err := s.appendMessage(ctx, sessionID, senderID, text)
	return msg, err
}

// appendMessage is SendMessage that also returns the session as written.
func (s *SessionStore) appendMessage(ctx context.Context, sessionID, senderID, text string) (models.Message, *models.Session, error) {
	switch {
	case sessionID == "":
		return models.Message{}, nil, invalidf("session id is required")
	case senderID == "":
		return models.Message{}, nil, invalidf("sender id is required")
	case strings.TrimSpace(text) == "":
		return models.Message{}, nil, invalidf("message text is empty")
	}

	var (
		msg     models.Message
		written models.Session
	)
	err := storage.UpdateJSON(ctx, s.Store, sessionKey(sessionID), func(cur *models.Session) (*models.Session, error) {
		if cur == nil {
			cur = &models.Session{
				SessionID:      sessionID,
				ParticipantIDs: []string{senderID},
				Kind:           models.SessionAIFallback,
				CreatedAt:      time.Now().UTC(),
			}
		}
		msg = models.NewMessage(senderID, text, cur.LastTimestamp())
		cur.Messages = append(cur.Messages, msg)
		written = *cur
		return cur, nil
	})
	if err != nil {
		return models.Message{}, nil, storeErr("append message", err)
	}
	return msg, &written, nil
}
