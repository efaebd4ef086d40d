package chathub

import (
	"buddychat/backend/internal/companion"
	"buddychat/backend/internal/config"
	"buddychat/backend/internal/localization"
	"buddychat/backend/internal/models"
	"buddychat/backend/internal/storage"
	"context"
	"log"
	"time"
)

// SendResult is what a sender gets back. Reply is the automated partner's
// answer in a fallback session; Notice is set instead when that partner
// could not answer.
type SendResult struct {
	Message models.Message  `json:"message"`
	Reply   *models.Message `json:"reply,omitempty"`
	Notice  string          `json:"notice,omitempty"`
}

// ManagerService is the single entry point the HTTP and Telegram adapters
// use. It wires the registry, matcher, sessions, friend handshake and
// archive over the two stores, and drives the automated partner.
type ManagerService struct {
	Registry *Registry
	Sessions *SessionStore
	Matcher  *MatcherService
	Friends  *FriendService
	Archive  *ArchiveService

	Companion         companion.Provider
	SystemPrompt      string
	CompletionTimeout time.Duration

	Localizer *localization.Localizer
	Language  string
}

// NewManagerService builds the coordination core. Presence, notices and
// sessions go to ephemeral; friend requests and saved chats to durable.
func NewManagerService(ephemeral, durable storage.KVStore) *ManagerService {
	registry := NewRegistry(ephemeral)
	sessions := NewSessionStore(ephemeral)
	archive := NewArchiveService(durable)

	return &ManagerService{
		Registry:          registry,
		Sessions:          sessions,
		Matcher:           NewMatcherService(registry, sessions),
		Friends:           NewFriendService(durable, sessions, archive),
		Archive:           archive,
		SystemPrompt:      config.DefaultSystemPrompt,
		CompletionTimeout: 15 * time.Second,
		Language:          "en",
	}
}

// SetCompanion enables automated replies in fallback sessions.
func (m *ManagerService) SetCompanion(p companion.Provider, systemPrompt string, timeout time.Duration) {
	m.Companion = p
	if systemPrompt != "" {
		m.SystemPrompt = systemPrompt
	}
	if timeout > 0 {
		m.CompletionTimeout = timeout
	}
}

// SetLocalizer sets the table used for system notices.
func (m *ManagerService) SetLocalizer(l *localization.Localizer, lang string) {
	m.Localizer = l
	if lang != "" {
		m.Language = lang
	}
}

// Join pairs userID or hands out a fallback session.
func (m *ManagerService) Join(ctx context.Context, userID string, role models.Role) (JoinResult, error) {
	return m.Matcher.RequestJoin(ctx, userID, role)
}

// PollMatch reports a pairing made while userID was waiting, or nil.
func (m *ManagerService) PollMatch(ctx context.Context, userID string) (*JoinResult, error) {
	return m.Matcher.Poll(ctx, userID)
}

// Leave drops userID from the waiting pool. It never fails.
func (m *ManagerService) Leave(ctx context.Context, userID string) {
	m.Registry.Leave(ctx, userID)
}

// GetMessages returns a session transcript, empty for unknown ids.
func (m *ManagerService) GetMessages(ctx context.Context, sessionID string) []models.Message {
	return m.Sessions.GetMessages(ctx, sessionID)
}

// SendMessage appends text to the session. In a fallback session the
// automated partner answers within CompletionTimeout; if it cannot, the send
// still succeeds and the result carries a notice.
func (m *ManagerService) SendMessage(ctx context.Context, sessionID, userID, text string) (SendResult, error) {
	msg, session, err := m.Sessions.appendMessage(ctx, sessionID, userID, text)
	if err != nil {
		return SendResult{}, err
	}

	res := SendResult{Message: msg}
	if session.Kind != models.SessionAIFallback || userID == config.BotSenderID {
		return res, nil
	}

	reply, err := m.companionReply(ctx, session)
	if err != nil {
		log.Printf("WARNING: Automated reply failed in session %s: %v", sessionID, err)
		res.Notice = m.text("buddy_unavailable")
		if companion.IsRateLimited(err) {
			res.Notice = m.text("buddy_busy")
		}
		return res, nil
	}
	res.Reply = &reply
	return res, nil
}

// Complete asks the automated partner directly, bounded by
// CompletionTimeout. Without a configured partner it fails with
// companion.ErrProvider.
func (m *ManagerService) Complete(ctx context.Context, messages []companion.Message) (companion.Message, error) {
	if m.Companion == nil {
		return companion.Message{}, companion.ErrProvider
	}
	cctx, cancel := context.WithTimeout(ctx, m.CompletionTimeout)
	defer cancel()
	return m.Companion.Complete(cctx, messages)
}

func (m *ManagerService) companionReply(ctx context.Context, session *models.Session) (models.Message, error) {
	history := session.Messages
	if len(history) > config.MaxHistoryForCompletion {
		history = history[len(history)-config.MaxHistoryForCompletion:]
	}
	prompt := make([]companion.Message, 0, len(history)+1)
	prompt = append(prompt, companion.Message{Role: companion.RoleSystem, Content: m.SystemPrompt})
	for _, msg := range history {
		role := companion.RoleUser
		if msg.SenderID == config.BotSenderID {
			role = companion.RoleAssistant
		}
		prompt = append(prompt, companion.Message{Role: role, Content: msg.Text})
	}

	answer, err := m.Complete(ctx, prompt)
	if err != nil {
		return models.Message{}, err
	}

	reply, _, err := m.Sessions.appendMessage(ctx, session.SessionID, config.BotSenderID, answer.Content)
	return reply, err
}

func (m *ManagerService) text(key string) string {
	if m.Localizer == nil {
		return key
	}
	return m.Localizer.GetString(m.Language, key)
}

// ProposeFriend records a pending request from -> to.
func (m *ManagerService) ProposeFriend(ctx context.Context, from, to, sessionID string) error {
	return m.Friends.Propose(ctx, from, to, sessionID)
}

// FriendRequestStatus returns the oldest pending request for userID, or nil.
func (m *ManagerService) FriendRequestStatus(ctx context.Context, userID string) *models.FriendRequest {
	return m.Friends.Status(ctx, userID)
}

// AcceptFriend saves the session for both parties.
func (m *ManagerService) AcceptFriend(ctx context.Context, from, to, sessionID string) error {
	return m.Friends.Accept(ctx, from, to, sessionID)
}

// DeclineFriend drops a pending request. It never fails.
func (m *ManagerService) DeclineFriend(ctx context.Context, from, to string) {
	m.Friends.Decline(ctx, from, to)
}

// ListSavedChats returns userID's archive, empty on any failure.
func (m *ManagerService) ListSavedChats(ctx context.Context, userID string) []models.SavedChat {
	return m.Archive.List(ctx, userID)
}

// AppendSavedMessage continues a saved chat privately.
func (m *ManagerService) AppendSavedMessage(ctx context.Context, userID, chatID, senderID, text string) (models.Message, error) {
	return m.Archive.AppendMessage(ctx, userID, chatID, senderID, text)
}
