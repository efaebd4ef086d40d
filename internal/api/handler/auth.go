package handler

import (
	"buddychat/backend/internal/config"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jwt "github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "buddychat-service"

// TokenIssuer signs and reads anonymous id tokens. The token only saves a
// client from repeating its id; it is not an identity check.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(cfg config.AuthConfig) *TokenIssuer {
	return &TokenIssuer{secret: []byte(cfg.JWTSecret), ttl: cfg.TokenTTL}
}

// Issue генерує JWT з анонімним ID
func (t *TokenIssuer) Issue(anonID string) (string, error) {
	claims := jwt.MapClaims{
		"anon_id": anonID,
		"exp":     time.Now().Add(t.ttl).Unix(),
		"iss":     tokenIssuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse returns the anonymous id carried by a valid token.
func (t *TokenIssuer) Parse(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("parse anon token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("parse anon token: unexpected claims")
	}
	anonID, _ := claims["anon_id"].(string)
	if anonID == "" {
		return "", errors.New("parse anon token: no anon_id")
	}
	return anonID, nil
}

// GetAnonID створює AnonID та повертає JWT
func (h *Handler) GetAnonID(c *gin.Context) {
	anonID := uuid.New().String()

	token, err := h.Tokens.Issue(anonID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "anon_id": anonID})
}

// userID returns supplied, or the id from a valid bearer token when the
// client left it out.
func (h *Handler) userID(c *gin.Context, supplied string) string {
	if supplied != "" || h.Tokens == nil {
		return supplied
	}
	raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return ""
	}
	anonID, err := h.Tokens.Parse(raw)
	if err != nil {
		return ""
	}
	return anonID
}
