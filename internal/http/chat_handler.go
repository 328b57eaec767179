package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voice-chat/internal/domain"
	"voice-chat/internal/service"
)

// ChatHandler mantiene dependencias para endpoints de sesiones y mensajes.
type ChatHandler struct {
	logger     *zap.Logger
	chatServ   *service.ChatService
	dispatcher *Dispatcher
}

// NewChatHandler crea una instancia de ChatHandler con dependencias necesarias.
func NewChatHandler(logger *zap.Logger, chatServ *service.ChatService, dispatcher *Dispatcher) *ChatHandler {
	return &ChatHandler{
		logger:     logger,
		chatServ:   chatServ,
		dispatcher: dispatcher,
	}
}

// ListSessions maneja GET /sessions.
func (h *ChatHandler) ListSessions(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	sessions, err := h.chatServ.ListSessions(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list sessions failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// CreateSession maneja POST /sessions.
func (h *ChatHandler) CreateSession(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("invalid create session request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}

	session, err := h.chatServ.CreateSession(c.Request.Context(), userID, req.Title)
	if err != nil {
		h.logger.Error("create session failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// RenameSession maneja PATCH /sessions/:id.
func (h *ChatHandler) RenameSession(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing title"})
		return
	}
	err := h.chatServ.RenameSession(c.Request.Context(), c.Param("id"), userID, req.Title)
	if err != nil {
		h.writeSessionError(c, "rename session failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session title updated"})
}

// DeleteSession maneja DELETE /sessions/:id.
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	if err := h.chatServ.DeleteSession(c.Request.Context(), c.Param("id"), userID); err != nil {
		h.writeSessionError(c, "delete session failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMessages maneja GET /sessions/:id/messages.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	messages, err := h.chatServ.ListMessages(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.writeSessionError(c, "list messages failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// PostMessage maneja POST /sessions/:id/messages. El turno corre en segundo
// plano; la respuesta llega por el socket del usuario.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var req struct {
		Text           string `json:"text" binding:"required"`
		IsFirstMessage bool   `json:"is_first_message"`
		AutoTTS        bool   `json:"auto_tts"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing text"})
		return
	}

	session, err := h.chatServ.AuthorizeSession(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.writeSessionError(c, "post message failed", err)
		return
	}

	turn := domain.Turn{
		SessionID:      session.ID,
		UserID:         userID,
		Text:           req.Text,
		IsFirstMessage: req.IsFirstMessage,
		AutoSpeech:     req.AutoTTS,
	}
	if err := h.dispatcher.SubmitTurn(userID, turn, nil); err != nil {
		if errors.Is(err, ErrTurnRateLimited) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many messages"})
			return
		}
		h.logger.Error("submit turn failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not submit message"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "session_id": session.ID})
}

func (h *ChatHandler) userID(c *gin.Context) (string, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok || claims.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing claims"})
		return "", false
	}
	return claims.UserID, true
}

func (h *ChatHandler) writeSessionError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, service.ErrSessionInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
