package chathub

import (
	"buddychat/backend/internal/config"
	"errors"
	"fmt"
	"net/url"
)

var (
	// ErrInvalidInput marks a missing or malformed required field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a referenced session or saved chat that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStore marks a failure of the underlying key-value store.
	ErrStore = errors.New("store failure")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// storeErr wraps err so that both ErrStore and err match with errors.Is.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

func presenceKey(userID string) string    { return config.PresenceKeyPrefix + userID }
func matchNoticeKey(userID string) string { return config.MatchNoticeKeyPrefix + userID }
func sessionKey(sessionID string) string  { return config.SessionKeyPrefix + sessionID }
func savedChatsKey(userID string) string  { return config.SavedChatsKeyPrefix + userID }

// friendRequestKey orders the recipient first so a user's incoming requests
// share the prefix friendRequestInboxPrefix(to). Both ids are escaped, so a
// ':' inside an id cannot shift the separator.
func friendRequestKey(from, to string) string {
	return friendRequestInboxPrefix(to) + url.QueryEscape(from)
}

func friendRequestInboxPrefix(to string) string {
	return config.FriendRequestKeyPrefix + url.QueryEscape(to) + ":"
}
