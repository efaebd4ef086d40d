package handler

import (
	"buddychat/backend/internal/chathub"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler містить посилання на ChatHub
type Handler struct {
	Hub    *chathub.ManagerService
	Tokens *TokenIssuer
}

func NewHandler(hub *chathub.ManagerService, tokens *TokenIssuer) *Handler {
	return &Handler{Hub: hub, Tokens: tokens}
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/anonid", h.GetAnonID)
	r.POST("/api/chat", h.Chat)

	buddy := r.Group("/buddy")
	buddy.POST("/join", h.Join)
	buddy.GET("/match", h.Match)
	buddy.GET("/messages", h.Messages)
	buddy.POST("/send", h.Send)
	buddy.POST("/leave", h.Leave)
	buddy.POST("/friend-request", h.FriendRequest)
	buddy.GET("/friend-request-status", h.FriendRequestStatus)
	buddy.POST("/accept-friend", h.AcceptFriend)
	buddy.POST("/decline-friend", h.DeclineFriend)
	buddy.GET("/saved-chats", h.SavedChats)
	buddy.POST("/send-saved", h.SendSaved)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UnixMilli()})
}

// respondError maps core errors to status codes. Store and provider details
// stay in the log.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chathub.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chathub.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
