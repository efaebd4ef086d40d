package handler

import (
	"buddychat/backend/internal/companion"
	"buddychat/backend/internal/models"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type joinRequest struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
}

type sendRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
}

type leaveRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

type chatRequest struct {
	Messages []companion.Message `json:"messages"`
}

// Join handles POST /buddy/join.
func (h *Handler) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := h.Hub.Join(c.Request.Context(), h.userID(c, req.UserID), req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Match handles GET /buddy/match: has someone paired with me while I was
// waiting?
func (h *Handler) Match(c *gin.Context) {
	res, err := h.Hub.PollMatch(c.Request.Context(), h.userID(c, c.Query("user_id")))
	if err != nil {
		respondError(c, err)
		return
	}
	if res == nil {
		c.JSON(http.StatusOK, gin.H{"matched": false})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Messages handles GET /buddy/messages.
func (h *Handler) Messages(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session_id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": h.Hub.GetMessages(c.Request.Context(), sessionID)})
}

// Send handles POST /buddy/send.
func (h *Handler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := h.Hub.SendMessage(c.Request.Context(), req.SessionID, h.userID(c, req.UserID), req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": res.Message, "reply": res.Reply, "notice": res.Notice})
}

// Leave handles POST /buddy/leave. It always reports success.
func (h *Handler) Leave(c *gin.Context) {
	var req leaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("WARNING: Ignoring malformed leave request: %v", err)
	}
	h.Hub.Leave(c.Request.Context(), h.userID(c, req.UserID))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Chat handles POST /api/chat, a direct pass-through to the automated
// partner.
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages are required"})
		return
	}

	reply, err := h.Hub.Complete(c.Request.Context(), req.Messages)
	if err != nil {
		log.Printf("ERROR: AI response failed: %v", err)
		if companion.IsRateLimited(err) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "AI is busy, try again later"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "AI response failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
