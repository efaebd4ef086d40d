package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionKind says how a session was allocated.
type SessionKind string

const (
	SessionHumanPaired SessionKind = "human_paired"
	SessionAIFallback  SessionKind = "ai_fallback"
)

// Session is an ephemeral conversation between one or two participants.
// Its message list is append-only.
type Session struct {
	SessionID      string      `json:"session_id"`
	ParticipantIDs []string    `json:"participant_ids"`
	Kind           SessionKind `json:"kind"`
	Messages       []Message   `json:"messages"`
	CreatedAt      time.Time   `json:"created_at"`
}

// HasParticipant reports whether userID takes part in the session.
func (s *Session) HasParticipant(userID string) bool {
	for _, id := range s.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// PartnerOf returns the other participant of a paired session, or "" if
// there is none.
func (s *Session) PartnerOf(userID string) string {
	for _, id := range s.ParticipantIDs {
		if id != userID {
			return id
		}
	}
	return ""
}

// LastTimestamp returns the timestamp of the newest message, or the zero
// time for an empty transcript.
func (s *Session) LastTimestamp() time.Time {
	return lastTimestamp(s.Messages)
}

// Message is a single immutable chat line.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	SenderID  string    `json:"sender_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage builds a message with a fresh id. The timestamp is the current
// time, but never earlier than notBefore, which keeps timestamps
// non-decreasing inside a container even if the wall clock steps back.
func NewMessage(senderID, text string, notBefore time.Time) Message {
	now := time.Now().UTC()
	if now.Before(notBefore) {
		now = notBefore
	}
	return Message{
		ID:        uuid.New().String(),
		Text:      text,
		SenderID:  senderID,
		Timestamp: now,
	}
}

func lastTimestamp(messages []Message) time.Time {
	if len(messages) == 0 {
		return time.Time{}
	}
	return messages[len(messages)-1].Timestamp
}
