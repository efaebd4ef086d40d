package models

import "time"

// FriendRequestStatus is the state of a directional friend request.
type FriendRequestStatus string

const (
	FriendPending  FriendRequestStatus = "pending"
	FriendAccepted FriendRequestStatus = "accepted"
	FriendDeclined FriendRequestStatus = "declined"
)

// FriendRequest proposes turning a session into saved chats for both parties.
// There is at most one record per ordered (FromUserID, ToUserID) pair.
type FriendRequest struct {
	FromUserID string              `json:"from_user_id"`
	ToUserID   string              `json:"to_user_id"`
	SessionID  string              `json:"session_id"`
	Status     FriendRequestStatus `json:"status"`
	Timestamp  time.Time           `json:"timestamp"`
}

// Between reports whether the request runs from -> to.
func (r *FriendRequest) Between(from, to string) bool {
	return r.FromUserID == from && r.ToUserID == to
}

// SavedChat is one user's private copy of a promoted session.
// After the snapshot, only its owner appends to it.
type SavedChat struct {
	SessionID     string    `json:"session_id"`
	FriendID      string    `json:"friend_id"`
	Messages      []Message `json:"messages"`
	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	Preview       string    `json:"preview"`
}

// NewSavedChat snapshots messages into a new entry owned by someone whose
// friend is friendID. The slice is copied so later appends never reach the
// source transcript.
func NewSavedChat(sessionID, friendID string, messages []Message) SavedChat {
	snapshot := make([]Message, len(messages))
	copy(snapshot, messages)

	chat := SavedChat{
		SessionID: sessionID,
		FriendID:  friendID,
		Messages:  snapshot,
		CreatedAt: time.Now().UTC(),
	}
	if n := len(snapshot); n > 0 {
		chat.LastMessageAt = snapshot[n-1].Timestamp
		chat.Preview = snapshot[n-1].Text
	} else {
		chat.LastMessageAt = chat.CreatedAt
	}
	return chat
}

// Append adds msg and refreshes the preview fields.
func (c *SavedChat) Append(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.LastMessageAt = msg.Timestamp
	c.Preview = msg.Text
}

// LastTimestamp returns the timestamp of the newest message.
func (c *SavedChat) LastTimestamp() time.Time {
	return lastTimestamp(c.Messages)
}

// SavedChatList is the stored value of a user's archive, in creation order.
type SavedChatList struct {
	Chats []SavedChat `json:"chats"`
}

// Find returns the index of the entry for sessionID, or -1.
func (l *SavedChatList) Find(sessionID string) int {
	for i := range l.Chats {
		if l.Chats[i].SessionID == sessionID {
			return i
		}
	}
	return -1
}
