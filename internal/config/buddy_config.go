package config

import "time"

const (
	// Automated partner
	BotSenderID             = "buddy_bot"
	AISessionPrefix         = "ai_session_"
	DefaultModel            = "gpt-4.1-mini"
	MaxHistoryForCompletion = 40

	// Storage
	MaxUpdateRetries = 32
	ScanBatchSize    = 200

	// Keys
	PresenceKeyPrefix      = "presence:"
	MatchNoticeKeyPrefix   = "match:"
	SessionKeyPrefix       = "session:"
	FriendRequestKeyPrefix = "friend_request:"
	SavedChatsKeyPrefix    = "saved_chats:"

	// Telegram
	TelegramUserPrefix = "tg_"
	DefaultPollEvery   = 2 * time.Second
)

// DefaultSystemPrompt steers the automated partner when BUDDY_SYSTEM_PROMPT is unset.
const DefaultSystemPrompt = "You are a warm, patient peer-support buddy. Listen, reflect feelings back, " +
	"and keep replies short. You are not a therapist; if someone is in danger, " +
	"encourage them to contact local emergency services."
