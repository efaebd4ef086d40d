package chathub

import (
	"buddychat/backend/internal/models"
	"buddychat/backend/internal/storage"
	"context"
	"errors"
	"log"
	"strings"
)

var errChatMissing = errors.New("saved chat missing")

// ArchiveService keeps each user's saved chats as one list value. Every
// change rewrites the whole list under the per-key update, so two appends
// to the same user's archive cannot overwrite each other.
type ArchiveService struct {
	Store storage.KVStore
}

// NewArchiveService creates an archive on kv.
func NewArchiveService(kv storage.KVStore) *ArchiveService {
	return &ArchiveService{Store: kv}
}

// List returns userID's saved chats in creation order. A store failure is
// logged and reported as an empty archive.
func (a *ArchiveService) List(ctx context.Context, userID string) []models.SavedChat {
	if userID == "" {
		return []models.SavedChat{}
	}

	var list models.SavedChatList
	if _, err := storage.GetJSON(ctx, a.Store, savedChatsKey(userID), &list); err != nil {
		log.Printf("ERROR: Failed to load saved chats for %s: %v", userID, err)
		return []models.SavedChat{}
	}
	if list.Chats == nil {
		return []models.SavedChat{}
	}
	return list.Chats
}

// Get returns one saved chat, or nil if userID has no entry for chatID.
func (a *ArchiveService) Get(ctx context.Context, userID, chatID string) (*models.SavedChat, error) {
	var list models.SavedChatList
	if _, err := storage.GetJSON(ctx, a.Store, savedChatsKey(userID), &list); err != nil {
		return nil, storeErr("get saved chat", err)
	}
	if i := list.Find(chatID); i >= 0 {
		return &list.Chats[i], nil
	}
	return nil, nil
}

// AddEntry appends chat to userID's archive unless an entry for the same
// session is already there. It reports whether the entry was added.
func (a *ArchiveService) AddEntry(ctx context.Context, userID string, chat models.SavedChat) (bool, error) {
	if userID == "" || chat.SessionID == "" {
		return false, invalidf("user id and session id are required")
	}

	added := false
	err := storage.UpdateJSON(ctx, a.Store, savedChatsKey(userID), func(cur *models.SavedChatList) (*models.SavedChatList, error) {
		if cur == nil {
			cur = &models.SavedChatList{}
		}
		if cur.Find(chat.SessionID) >= 0 {
			return cur, nil
		}
		cur.Chats = append(cur.Chats, chat)
		added = true
		return cur, nil
	})
	if err != nil {
		return false, storeErr("add saved chat", err)
	}
	return added, nil
}

// AppendMessage adds a message to the owner's copy of a saved chat. The
// originating session and the friend's copy are not touched.
func (a *ArchiveService) AppendMessage(ctx context.Context, userID, chatID, senderID, text string) (models.Message, error) {
	switch {
	case userID == "":
		return models.Message{}, invalidf("user id is required")
	case chatID == "":
		return models.Message{}, invalidf("chat id is required")
	case senderID == "":
		return models.Message{}, invalidf("sender id is required")
	case strings.TrimSpace(text) == "":
		return models.Message{}, invalidf("message text is empty")
	}

	var msg models.Message
	err := storage.UpdateJSON(ctx, a.Store, savedChatsKey(userID), func(cur *models.SavedChatList) (*models.SavedChatList, error) {
		if cur == nil {
			return nil, errChatMissing
		}
		i := cur.Find(chatID)
		if i < 0 {
			return nil, errChatMissing
		}
		chat := &cur.Chats[i]
		msg = models.NewMessage(senderID, text, chat.LastTimestamp())
		chat.Append(msg)
		return cur, nil
	})
	if errors.Is(err, errChatMissing) {
		return models.Message{}, notFoundf("saved chat %s for user %s", chatID, userID)
	}
	if err != nil {
		return models.Message{}, storeErr("append saved message", err)
	}
	return msg, nil
}
