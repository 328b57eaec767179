package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voice-chat/internal/domain"
	"voice-chat/internal/realtime"
	"voice-chat/internal/service"
)

// Códigos del frame "error" que responde a un evento entrante inválido.
const (
	socketErrInvalidFrame = "INVALID_FRAME"
	socketErrUnknownEvent = "UNKNOWN_EVENT"
	socketErrForbidden    = "FORBIDDEN"
	socketErrRateLimited  = "RATE_LIMITED"
	socketErrTurnFailed   = "TURN_FAILED"
)

// defaultSessionCheckTimeout acota la consulta de propiedad de sesión en el read loop.
const defaultSessionCheckTimeout = 3 * time.Second

// SessionAuthorizer confirma que una sesión pertenece al usuario.
type SessionAuthorizer interface {
	AuthorizeSession(ctx context.Context, sessionID, userID string) (domain.ChatSession, error)
}

// SocketHandler atiende GET /ws: autentica, suscribe la conexión al canal de
// su identidad y despacha los eventos entrantes.
type SocketHandler struct {
	logger     *zap.Logger
	hub        *realtime.Hub
	jwtServ    *service.JWTService
	dispatcher *Dispatcher
	sessions   SessionAuthorizer
	upgrader   websocket.Upgrader

	sessionCheckTimeout time.Duration
}

type socketError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinData struct {
	UserID string `json:"user_id"`
}

type userMessageData struct {
	SessionID      string  `json:"session_id"`
	UserID         string  `json:"user_id"`
	Text           string  `json:"text"`
	IsFirstMessage bool    `json:"is_first_message"`
	AutoTTS        bool    `json:"auto_tts"`
	Voice          string  `json:"voice"`
	SpeakingRate   float64 `json:"speaking_rate"`
	Pitch          float64 `json:"pitch"`
}

type ttsStartData struct {
	MessageID    string  `json:"messageId"`
	Text         string  `json:"text"`
	UserID       string  `json:"userId"`
	Voice        string  `json:"voice"`
	SpeakingRate float64 `json:"speakingRate"`
	Pitch        float64 `json:"pitch"`
}

type ttsStopData struct {
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

func NewSocketHandler(
	logger *zap.Logger,
	hub *realtime.Hub,
	jwtServ *service.JWTService,
	dispatcher *Dispatcher,
	sessions SessionAuthorizer,
	allowedOrigin string,
) *SocketHandler {
	return &SocketHandler{
		logger:     logger,
		hub:        hub,
		jwtServ:    jwtServ,
		dispatcher: dispatcher,
		sessions:   sessions,

		sessionCheckTimeout: defaultSessionCheckTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigin),
		},
	}
}

// Connect maneja GET /ws. El token llega por query (?token=) o por header Bearer.
func (h *SocketHandler) Connect(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		token, _ = bearerToken(c.GetHeader("Authorization"))
	}
	if token == "" || h.jwtServ == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := h.jwtServ.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	identity := claims.UserID
	client := realtime.NewClient(conn, identity)
	h.hub.Join(realtime.ResolveChannel(identity), client)
	go client.WritePump()

	h.logger.Info("socket connected",
		zap.String("user_id", identity),
		zap.Int("channel_connections", h.hub.Members(realtime.ResolveChannel(identity))),
	)
	h.readLoop(client)
	h.hub.Leave(client)
	h.logger.Info("socket disconnected", zap.String("user_id", identity))
}

func (h *SocketHandler) readLoop(client *realtime.Client) {
	client.PrepareRead()
	for {
		data, err := client.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("socket read failed", zap.String("user_id", client.Identity()), zap.Error(err))
			}
			return
		}
		h.handleFrame(client, data)
	}
}

// handleFrame nunca corta el loop de lectura: los errores vuelven como frame "error".
func (h *SocketHandler) handleFrame(client *realtime.Client, data []byte) {
	identity := client.Identity()

	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
		h.logger.Warn("malformed socket frame", zap.String("user_id", identity), zap.Error(err))
		h.sendError(client, "", socketErrInvalidFrame, "frame must be {\"event\", \"data\"}")
		return
	}

	switch frame.Event {
	case domain.EventUserJoin:
		var payload joinData
		if !h.decode(client, frame, &payload) {
			return
		}
		userID := strings.TrimSpace(payload.UserID)
		if userID != "" && userID != identity {
			h.sendError(client, frame.Event, socketErrForbidden, "cannot join another user's channel")
			return
		}
		h.hub.Join(realtime.ResolveChannel(identity), client)

	case domain.EventUserMessage:
		var payload userMessageData
		if !h.decode(client, frame, &payload) {
			return
		}
		if !h.ownsIdentity(client, frame.Event, payload.UserID) {
			return
		}
		h.submitTurn(client, domain.Turn{
			SessionID:      payload.SessionID,
			UserID:         identity,
			Text:           payload.Text,
			IsFirstMessage: payload.IsFirstMessage,
			AutoSpeech:     payload.AutoTTS,
			Voice: domain.VoiceParams{
				Voice:        payload.Voice,
				SpeakingRate: payload.SpeakingRate,
				Pitch:        payload.Pitch,
			},
		})

	case domain.EventTTSStart:
		var payload ttsStartData
		if !h.decode(client, frame, &payload) {
			return
		}
		if payload.UserID != "" && !h.ownsIdentity(client, frame.Event, payload.UserID) {
			return
		}
		h.dispatcher.StartSpeech(identity, service.SpeechRequest{
			MessageID:    payload.MessageID,
			Text:         payload.Text,
			UserID:       payload.UserID,
			Voice:        payload.Voice,
			SpeakingRate: payload.SpeakingRate,
			Pitch:        payload.Pitch,
		})

	case domain.EventTTSStop:
		var payload ttsStopData
		if !h.decode(client, frame, &payload) {
			return
		}
		if payload.UserID != "" && !h.ownsIdentity(client, frame.Event, payload.UserID) {
			return
		}
		h.dispatcher.StopSpeech(identity, service.StopRequest{
			MessageID: payload.MessageID,
			UserID:    payload.UserID,
		})

	default:
		h.logger.Warn("unknown socket event", zap.String("user_id", identity), zap.String("event", frame.Event))
		h.sendError(client, frame.Event, socketErrUnknownEvent, "unknown event")
	}
}

func (h *SocketHandler) submitTurn(client *realtime.Client, turn domain.Turn) {
	onFailure := func(err error) {
		var perr *service.PersistenceError
		switch {
		case errors.Is(err, service.ErrValidation):
			h.sendError(client, domain.EventUserMessage, socketErrInvalidFrame, err.Error())
		case errors.As(err, &perr) && perr.Stage == domain.StagePersistUser:
			h.sendError(client, domain.EventUserMessage, socketErrTurnFailed, "message could not be stored")
		}
	}

	if h.sessions != nil && strings.TrimSpace(turn.SessionID) != "" {
		ctx, cancel := context.WithTimeout(context.Background(), h.sessionCheckTimeout)
		_, err := h.sessions.AuthorizeSession(ctx, turn.SessionID, turn.UserID)
		cancel()
		if err != nil {
			h.logger.Warn("turn for unauthorized session",
				zap.String("user_id", turn.UserID),
				zap.String("session_id", turn.SessionID),
				zap.Error(err),
			)
			h.sendError(client, domain.EventUserMessage, socketErrForbidden, "session not found")
			return
		}
	}

	if err := h.dispatcher.SubmitTurn(turn.UserID, turn, onFailure); err != nil {
		h.sendError(client, domain.EventUserMessage, socketErrRateLimited, "too many messages")
	}
}

func (h *SocketHandler) decode(client *realtime.Client, frame inboundFrame, dst any) bool {
	if len(frame.Data) == 0 {
		h.sendError(client, frame.Event, socketErrInvalidFrame, "missing data")
		return false
	}
	if err := json.Unmarshal(frame.Data, dst); err != nil {
		h.logger.Warn("invalid socket payload", zap.String("event", frame.Event), zap.Error(err))
		h.sendError(client, frame.Event, socketErrInvalidFrame, "invalid data")
		return false
	}
	return true
}

func (h *SocketHandler) ownsIdentity(client *realtime.Client, event, userID string) bool {
	userID = strings.TrimSpace(userID)
	if userID == "" || userID == client.Identity() {
		return true
	}
	h.sendError(client, event, socketErrForbidden, "user id does not match token")
	return false
}

func (h *SocketHandler) sendError(client *realtime.Client, event, code, msg string) {
	h.hub.SendTo(client, domain.EventError, socketError{Code: code, Message: msg, Event: event})
}

func originChecker(allowed string) func(r *http.Request) bool {
	allowed = strings.TrimSpace(allowed)
	return func(r *http.Request) bool {
		if allowed == "" || allowed == "*" {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowed
	}
}
