// Package companion talks to the chat-completions service that stands in
// for a human partner in fallback sessions.
package companion

import (
	"context"
	"errors"
	"fmt"
)

// Roles used in a completion transcript.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrProvider marks any failure of the completions service: transport,
// non-200 status, or an unusable body. Callers degrade instead of failing.
var ErrProvider = errors.New("completions provider failure")

// Message is one role-tagged turn of a completion transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider returns one reply for an ordered transcript.
type Provider interface {
	Complete(ctx context.Context, messages []Message) (Message, error)
}

// StatusError is returned when the service answers with a non-200 status.
// It matches ErrProvider.
type StatusError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("completions: HTTP %d: %s: %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("completions: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Is(target error) bool { return target == ErrProvider }

// IsRateLimited reports whether the service answered 429.
func (e *StatusError) IsRateLimited() bool { return e.StatusCode == 429 }

// IsRateLimited reports whether err carries a 429 from the service.
func IsRateLimited(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.IsRateLimited()
}
