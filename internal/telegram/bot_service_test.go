package telegram

import (
	"buddychat/backend/internal/chathub"
	"buddychat/backend/internal/localization"
	"buddychat/backend/internal/storage"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	ChatID int64
	Text   string
}

// fakeSender records outgoing text messages.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, sentMessage{ChatID: m.ChatID, Text: m.Text})
	}
	return tgbotapi.Message{}, nil
}

// take returns and forgets everything sent to chatID.
func (f *fakeSender) take(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	kept := f.sent[:0]
	for _, m := range f.sent {
		if m.ChatID == chatID {
			out = append(out, m.Text)
		} else {
			kept = append(kept, m)
		}
	}
	f.sent = kept
	return out
}

func newTestBot(t *testing.T) (*BotService, *fakeSender, *localization.Localizer) {
	t.Helper()
	loc, err := localization.NewDefault("en")
	require.NoError(t, err)

	hub := chathub.NewManagerService(storage.NewMemoryStore(), storage.NewMemoryStore())
	hub.SetLocalizer(loc, "en")
	sender := &fakeSender{}
	return newBotService(sender, hub, loc, "en", time.Hour), sender, loc
}

func command(chatID int64, text string) *tgbotapi.Message {
	cmd, _, _ := strings.Cut(text, " ")
	return &tgbotapi.Message{
		Chat:     tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}
}

func text(chatID int64, body string) *tgbotapi.Message {
	return &tgbotapi.Message{Chat: tgbotapi.Chat{ID: chatID}, Text: body}
}

func TestUserIDRoundTrip(t *testing.T) {
	assert.Equal(t, "tg_42", UserID(42))

	id, ok := ChatID("tg_42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = ChatID("5f0c-anon")
	assert.False(t, ok)
	_, ok = ChatID("tg_abc")
	assert.False(t, ok)
}

func TestParseNoteArgs(t *testing.T) {
	n, note, err := parseNoteArgs(" 2  call mom tomorrow ")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "call mom tomorrow", note)

	for _, bad := range []string{"", "x hello", "0 hello", "3", "3   "} {
		_, _, err := parseNoteArgs(bad)
		assert.Error(t, err, bad)
	}
}

func TestBot_PairRelayAndSave(t *testing.T) {
	ctx := context.Background()
	bot, sender, loc := newTestBot(t)
	const seeker, listener = int64(1), int64(2)

	bot.handleMessage(ctx, command(seeker, "/seek"))
	assert.Contains(t, sender.take(seeker), loc.GetString("en", "tg_fallback"))

	bot.handleMessage(ctx, command(listener, "/listen"))
	assert.Contains(t, sender.take(listener), loc.GetString("en", "tg_matched"))

	// The seeker learns about the pairing on the next poll.
	bot.relay(ctx)
	assert.Equal(t, []string{loc.GetString("en", "tg_matched")}, sender.take(seeker))
	assert.False(t, bot.chats[seeker].WaitingForHuman)
	assert.Equal(t, bot.chats[listener].SessionID, bot.chats[seeker].SessionID)

	bot.handleMessage(ctx, text(listener, "I'm here for you"))
	bot.handleMessage(ctx, text(seeker, "thank you"))
	bot.relay(ctx)
	assert.Equal(t, []string{loc.Format("en", "tg_partner_message", "I'm here for you")}, sender.take(seeker))
	assert.Equal(t, []string{loc.Format("en", "tg_partner_message", "thank you")}, sender.take(listener))

	bot.relay(ctx)
	assert.Empty(t, sender.take(seeker), "messages are relayed once")

	bot.handleMessage(ctx, command(seeker, "/friend"))
	assert.Equal(t, []string{loc.GetString("en", "tg_friend_sent")}, sender.take(seeker))
	assert.Equal(t, []string{loc.GetString("en", "tg_friend_incoming")}, sender.take(listener))

	bot.handleMessage(ctx, command(listener, "/accept"))
	assert.Equal(t, []string{loc.GetString("en", "tg_friend_accepted")}, sender.take(listener))
	assert.Equal(t, []string{loc.GetString("en", "tg_friend_accepted")}, sender.take(seeker))

	bot.handleMessage(ctx, command(listener, "/saved"))
	listed := sender.take(listener)
	require.Len(t, listed, 1)
	assert.Equal(t, loc.Format("en", "tg_saved_item", 1, UserID(seeker), "thank you"), listed[0])

	bot.handleMessage(ctx, command(listener, "/note 1 check in on them"))
	assert.Equal(t, []string{loc.GetString("en", "tg_note_saved")}, sender.take(listener))
	chats := bot.Hub.ListSavedChats(ctx, UserID(listener))
	require.Len(t, chats, 1)
	assert.Equal(t, "check in on them", chats[0].Preview)

	bot.handleMessage(ctx, command(listener, "/note 5 nope"))
	assert.Equal(t, []string{loc.GetString("en", "tg_chat_not_found")}, sender.take(listener))
}

func TestBot_FallbackNoticeWithoutCompanion(t *testing.T) {
	ctx := context.Background()
	bot, sender, loc := newTestBot(t)

	bot.handleMessage(ctx, command(7, "/listen"))
	sender.take(7)

	bot.handleMessage(ctx, text(7, "anyone?"))
	assert.Equal(t, []string{loc.GetString("en", "buddy_unavailable")}, sender.take(7))

	bot.handleMessage(ctx, command(7, "/friend"))
	assert.Equal(t, []string{loc.GetString("en", "tg_friend_needs_partner")}, sender.take(7))
}

func TestBot_TextOutsideSessionAndLeave(t *testing.T) {
	ctx := context.Background()
	bot, sender, loc := newTestBot(t)

	bot.handleMessage(ctx, text(9, "hello"))
	assert.Equal(t, []string{loc.GetString("en", "tg_no_session")}, sender.take(9))

	bot.handleMessage(ctx, command(9, "/seek"))
	sender.take(9)
	bot.handleMessage(ctx, command(9, "/leave"))
	assert.Equal(t, []string{loc.GetString("en", "tg_left")}, sender.take(9))
	assert.Empty(t, bot.chats[9].SessionID)

	waiting, err := bot.Hub.Registry.Waiting(ctx)
	require.NoError(t, err)
	assert.Empty(t, waiting)
}

func TestBot_DeclineAndUnknownCommand(t *testing.T) {
	ctx := context.Background()
	bot, sender, loc := newTestBot(t)

	bot.handleMessage(ctx, command(3, "/decline"))
	assert.Equal(t, []string{loc.GetString("en", "tg_no_friend_request")}, sender.take(3))

	require.NoError(t, bot.Hub.ProposeFriend(ctx, "web_user", UserID(3), "s1"))
	bot.handleMessage(ctx, command(3, "/decline"))
	assert.Equal(t, []string{loc.GetString("en", "tg_friend_declined")}, sender.take(3))
	assert.Nil(t, bot.Hub.FriendRequestStatus(ctx, UserID(3)))

	bot.handleMessage(ctx, command(3, "/dance"))
	assert.Equal(t, []string{loc.GetString("en", "tg_unknown_command")}, sender.take(3))
}

func TestBot_LoopStopsOnContextCancel(t *testing.T) {
	bot, sender, loc := newTestBot(t)
	bot.PollEvery = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan tgbotapi.Update, 1)
	updates <- tgbotapi.Update{Message: command(5, "/start")}

	done := make(chan struct{})
	go func() {
		bot.loop(ctx, updates)
		close(done)
	}()

	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) > 0
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
	assert.Equal(t, []string{loc.GetString("en", "tg_welcome")}, sender.take(5))
}
