// Package telegram handles the integration with the Telegram Bot API.
// It is responsible for receiving updates from Telegram, processing them,
// and communicating with the central chat hub.
package telegram

import (
	"buddychat/backend/internal/chathub"
	"buddychat/backend/internal/config"
	"buddychat/backend/internal/localization"
	"buddychat/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI the service needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// chatState is what the bot remembers about one Telegram chat.
type chatState struct {
	SessionID string
	PartnerID string
	Lang      string
	// WaitingForHuman is set while the chat talks to the buddy bot but is
	// still in the waiting pool.
	WaitingForHuman bool
	// Relayed counts transcript messages already looked at by relay.
	// Own and bot messages are skipped there, not counted here.
	Relayed int
}

// BotService is responsible for receiving Telegram updates and routing them to the hub.
// chats is only touched from the Run goroutine.
type BotService struct {
	BotAPI    *tgbotapi.BotAPI
	Bot       Sender
	Hub       *chathub.ManagerService
	Localizer *localization.Localizer
	Language  string
	PollEvery time.Duration

	chats map[int64]*chatState
}

// NewBotService creates a new BotService instance.
func NewBotService(cfg config.TelegramConfig, hub *chathub.ManagerService, localizer *localization.Localizer, lang string) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("INFO: Authorized on account %s", bot.Self.UserName)

	s := newBotService(bot, hub, localizer, lang, cfg.PollEvery)
	s.BotAPI = bot
	return s, nil
}

func newBotService(bot Sender, hub *chathub.ManagerService, localizer *localization.Localizer, lang string, pollEvery time.Duration) *BotService {
	if pollEvery <= 0 {
		pollEvery = config.DefaultPollEvery
	}
	return &BotService{
		Bot:       bot,
		Hub:       hub,
		Localizer: localizer,
		Language:  lang,
		PollEvery: pollEvery,
		chats:     make(map[int64]*chatState),
	}
}

// UserID maps a Telegram chat to a hub user id.
func UserID(chatID int64) string {
	return config.TelegramUserPrefix + strconv.FormatInt(chatID, 10)
}

// ChatID is the inverse of UserID. It reports false for users that did not
// come from Telegram.
func ChatID(userID string) (int64, bool) {
	raw, ok := strings.CutPrefix(userID, config.TelegramUserPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil
}

// Run is the main loop for receiving Telegram updates. Partner messages
// are picked up by polling the hub every PollEvery.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)
	defer s.BotAPI.StopReceivingUpdates()

	s.loop(ctx, updates)
}

func (s *BotService) loop(ctx context.Context, updates <-chan tgbotapi.Update) {
	ticker := time.NewTicker(s.PollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				s.handleMessage(ctx, update.Message)
			}
		case <-ticker.C:
			s.relay(ctx)
		}
	}
}

func (s *BotService) state(chatID int64) *chatState {
	st, ok := s.chats[chatID]
	if !ok {
		st = &chatState{}
		s.chats[chatID] = st
	}
	return st
}

func (s *BotService) lang(chatID int64) string {
	if st, ok := s.chats[chatID]; ok && st.Lang != "" {
		return st.Lang
	}
	return s.Language
}

func (s *BotService) send(chatID int64, text string) {
	if _, err := s.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("ERROR: Failed to send message to chat %d: %v", chatID, err)
	}
}

func (s *BotService) reply(chatID int64, key string, args ...any) {
	s.send(chatID, s.Localizer.Format(s.lang(chatID), key, args...))
}

// replyTo sends key to another hub user, if that user is a Telegram chat.
func (s *BotService) replyTo(userID, key string, args ...any) {
	if chatID, ok := ChatID(userID); ok {
		s.reply(chatID, key, args...)
	}
}

// handleMessage routes a message from a Telegram chat.
func (s *BotService) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	st := s.state(chatID)
	if msg.From != nil && msg.From.LanguageCode != "" {
		st.Lang = msg.From.LanguageCode
	}

	if !msg.IsCommand() {
		s.handleText(ctx, chatID, st, extractMessageContent(msg))
		return
	}

	switch msg.Command() {
	case "start":
		s.reply(chatID, "tg_welcome")
	case "seek":
		s.handleJoin(ctx, chatID, st, models.RoleSeeker)
	case "listen":
		s.handleJoin(ctx, chatID, st, models.RoleListener)
	case "leave":
		s.handleLeave(ctx, chatID, st)
	case "friend":
		s.handleFriend(ctx, chatID, st)
	case "accept":
		s.handleAccept(ctx, chatID)
	case "decline":
		s.handleDecline(ctx, chatID)
	case "saved":
		s.handleSaved(ctx, chatID)
	case "note":
		s.handleNote(ctx, chatID, msg.CommandArguments())
	default:
		s.reply(chatID, "tg_unknown_command")
	}
}

// extractMessageContent uniformly extracts text or a caption from a message.
func extractMessageContent(msg *tgbotapi.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

func (s *BotService) handleJoin(ctx context.Context, chatID int64, st *chatState, role models.Role) {
	userID := UserID(chatID)
	s.reply(chatID, "tg_searching", role.Complement())

	res, err := s.Hub.Join(ctx, userID, role)
	if err != nil {
		log.Printf("ERROR: Join failed for %s: %v", userID, err)
		s.reply(chatID, "tg_error")
		return
	}

	enterSession(st, res)
	if res.Matched {
		// The partner finds out on its next relay poll.
		s.reply(chatID, "tg_matched")
		return
	}
	s.reply(chatID, "tg_fallback")
}

func enterSession(st *chatState, res chathub.JoinResult) {
	st.SessionID = res.SessionID
	st.PartnerID = res.PartnerID
	st.WaitingForHuman = !res.Matched
	st.Relayed = 0
}

func (s *BotService) handleLeave(ctx context.Context, chatID int64, st *chatState) {
	s.Hub.Leave(ctx, UserID(chatID))
	*st = chatState{Lang: st.Lang}
	s.reply(chatID, "tg_left")
}

func (s *BotService) handleText(ctx context.Context, chatID int64, st *chatState, text string) {
	if st.SessionID == "" {
		s.reply(chatID, "tg_no_session")
		return
	}

	res, err := s.Hub.SendMessage(ctx, st.SessionID, UserID(chatID), text)
	if err != nil {
		if errors.Is(err, chathub.ErrInvalidInput) {
			return // stickers and other content without text
		}
		log.Printf("ERROR: Send failed in session %s: %v", st.SessionID, err)
		s.reply(chatID, "tg_error")
		return
	}

	switch {
	case res.Reply != nil:
		s.send(chatID, res.Reply.Text)
	case res.Notice != "":
		s.send(chatID, res.Notice)
	}
}

func (s *BotService) handleFriend(ctx context.Context, chatID int64, st *chatState) {
	if st.SessionID == "" || st.PartnerID == "" {
		s.reply(chatID, "tg_friend_needs_partner")
		return
	}

	if err := s.Hub.ProposeFriend(ctx, UserID(chatID), st.PartnerID, st.SessionID); err != nil {
		log.Printf("ERROR: Friend request from %d failed: %v", chatID, err)
		s.reply(chatID, "tg_error")
		return
	}
	s.reply(chatID, "tg_friend_sent")
	s.replyTo(st.PartnerID, "tg_friend_incoming")
}

func (s *BotService) handleAccept(ctx context.Context, chatID int64) {
	userID := UserID(chatID)
	req := s.Hub.FriendRequestStatus(ctx, userID)
	if req == nil {
		s.reply(chatID, "tg_no_friend_request")
		return
	}

	if err := s.Hub.AcceptFriend(ctx, req.FromUserID, userID, req.SessionID); err != nil {
		log.Printf("ERROR: Accept by %s failed: %v", userID, err)
		s.reply(chatID, "tg_error")
		return
	}
	s.reply(chatID, "tg_friend_accepted")
	s.replyTo(req.FromUserID, "tg_friend_accepted")
}

func (s *BotService) handleDecline(ctx context.Context, chatID int64) {
	userID := UserID(chatID)
	req := s.Hub.FriendRequestStatus(ctx, userID)
	if req == nil {
		s.reply(chatID, "tg_no_friend_request")
		return
	}
	s.Hub.DeclineFriend(ctx, req.FromUserID, userID)
	s.reply(chatID, "tg_friend_declined")
}

func (s *BotService) handleSaved(ctx context.Context, chatID int64) {
	chats := s.Hub.ListSavedChats(ctx, UserID(chatID))
	if len(chats) == 0 {
		s.reply(chatID, "tg_saved_empty")
		return
	}

	lang := s.lang(chatID)
	var b strings.Builder
	for i, chat := range chats {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s.Localizer.Format(lang, "tg_saved_item", i+1, chat.FriendID, chat.Preview))
	}
	s.send(chatID, b.String())
}

func (s *BotService) handleNote(ctx context.Context, chatID int64, args string) {
	n, text, err := parseNoteArgs(args)
	if err != nil {
		s.reply(chatID, "tg_note_usage")
		return
	}

	userID := UserID(chatID)
	chats := s.Hub.ListSavedChats(ctx, userID)
	if n > len(chats) {
		s.reply(chatID, "tg_chat_not_found")
		return
	}

	_, err = s.Hub.AppendSavedMessage(ctx, userID, chats[n-1].SessionID, userID, text)
	switch {
	case errors.Is(err, chathub.ErrNotFound):
		s.reply(chatID, "tg_chat_not_found")
	case err != nil:
		log.Printf("ERROR: Note by %s failed: %v", userID, err)
		s.reply(chatID, "tg_error")
	default:
		s.reply(chatID, "tg_note_saved")
	}
}

// parseNoteArgs splits "<n> <text>" with n >= 1.
func parseNoteArgs(args string) (int, string, error) {
	head, text, _ := strings.Cut(strings.TrimSpace(args), " ")
	n, err := strconv.Atoi(head)
	if err != nil || n < 1 {
		return 0, "", fmt.Errorf("bad chat number %q", head)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, "", errors.New("empty note")
	}
	return n, text, nil
}

// relay picks up pairings made while a chat was waiting and forwards
// messages written by partners.
func (s *BotService) relay(ctx context.Context) {
	for chatID, st := range s.chats {
		if st.SessionID == "" {
			continue
		}
		userID := UserID(chatID)

		if st.WaitingForHuman {
			res, err := s.Hub.PollMatch(ctx, userID)
			if err != nil {
				log.Printf("WARNING: Match poll failed for %s: %v", userID, err)
				continue
			}
			if res != nil {
				enterSession(st, *res)
				s.reply(chatID, "tg_matched")
			}
			continue
		}

		if st.PartnerID == "" {
			if session, err := s.Hub.Sessions.Get(ctx, st.SessionID); err == nil && session != nil {
				st.PartnerID = session.PartnerOf(userID)
			}
		}

		msgs := s.Hub.GetMessages(ctx, st.SessionID)
		for _, m := range msgs[min(st.Relayed, len(msgs)):] {
			if m.SenderID == userID || m.SenderID == config.BotSenderID {
				continue
			}
			s.reply(chatID, "tg_partner_message", m.Text)
		}
		st.Relayed = len(msgs)
	}
}
