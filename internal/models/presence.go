package models

import "time"

// Role is the side a participant declares when joining.
type Role string

const (
	RoleSeeker   Role = "seeker"
	RoleListener Role = "listener"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleSeeker || r == RoleListener
}

// Complement returns the role a participant of role r is paired with.
// It returns the empty role for unknown values.
func (r Role) Complement() Role {
	switch r {
	case RoleSeeker:
		return RoleListener
	case RoleListener:
		return RoleSeeker
	default:
		return ""
	}
}

// PresenceStatus tracks whether a waiting participant has been claimed.
type PresenceStatus string

const (
	PresenceWaiting PresenceStatus = "waiting"
	PresenceMatched PresenceStatus = "matched"
)

// Presence is a waiting participant's entry in the registry.
// It exists from join until leave or until a pairing removes it.
type Presence struct {
	UserID   string         `json:"user_id"`
	Role     Role           `json:"role"`
	Status   PresenceStatus `json:"status"`
	JoinedAt time.Time      `json:"joined_at"`
	// SessionID is set together with Status=matched by the joiner that
	// claimed this record, so the waiting party can discover its session
	// before the record is removed.
	SessionID string `json:"session_id,omitempty"`
}

// MatchNotice tells a previously waiting participant which session it was
// paired into. It is consumed on the participant's next join or poll.
type MatchNotice struct {
	SessionID string    `json:"session_id"`
	PartnerID string    `json:"partner_id"`
	MatchedAt time.Time `json:"matched_at"`
}
