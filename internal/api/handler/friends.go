package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type friendRequest struct {
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	SessionID  string `json:"session_id"`
}

type sendSavedRequest struct {
	UserID  string `json:"user_id"`
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

// FriendRequest handles POST /buddy/friend-request.
func (h *Handler) FriendRequest(c *gin.Context) {
	var req friendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	from := h.userID(c, req.FromUserID)
	if err := h.Hub.ProposeFriend(c.Request.Context(), from, req.ToUserID, req.SessionID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// FriendRequestStatus handles GET /buddy/friend-request-status.
func (h *Handler) FriendRequestStatus(c *gin.Context) {
	userID := h.userID(c, c.Query("user_id"))
	c.JSON(http.StatusOK, gin.H{"request": h.Hub.FriendRequestStatus(c.Request.Context(), userID)})
}

// AcceptFriend handles POST /buddy/accept-friend. The caller is the
// recipient, so a token fills in to_user_id.
func (h *Handler) AcceptFriend(c *gin.Context) {
	var req friendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	to := h.userID(c, req.ToUserID)
	if err := h.Hub.AcceptFriend(c.Request.Context(), req.FromUserID, to, req.SessionID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeclineFriend handles POST /buddy/decline-friend. It always reports
// success.
func (h *Handler) DeclineFriend(c *gin.Context) {
	var req friendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("WARNING: Ignoring malformed decline request: %v", err)
	}
	h.Hub.DeclineFriend(c.Request.Context(), req.FromUserID, h.userID(c, req.ToUserID))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// SavedChats handles GET /buddy/saved-chats.
func (h *Handler) SavedChats(c *gin.Context) {
	userID := h.userID(c, c.Query("user_id"))
	c.JSON(http.StatusOK, gin.H{"chats": h.Hub.ListSavedChats(c.Request.Context(), userID)})
}

// SendSaved handles POST /buddy/send-saved. The owner is also the sender.
func (h *Handler) SendSaved(c *gin.Context) {
	var req sendSavedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	userID := h.userID(c, req.UserID)
	msg, err := h.Hub.AppendSavedMessage(c.Request.Context(), userID, req.ChatID, userID, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}
