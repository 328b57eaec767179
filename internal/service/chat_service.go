package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"voice-chat/internal/domain"
	"voice-chat/internal/repository"
)

// ChatService encapsula las operaciones REST sobre sesiones e historial.
type ChatService struct {
	sessions repository.SessionRepository
	messages repository.MessageRepository
	now      func() time.Time
}

var (
	ErrChatServiceNotConfigured = errors.New("chat service not configured")
	ErrSessionNotFound          = errors.New("session not found")
	ErrSessionInvalidInput      = errors.New("session invalid input")
)

func NewChatService(sessions repository.SessionRepository, messages repository.MessageRepository) *ChatService {
	return &ChatService{
		sessions: sessions,
		messages: messages,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ChatService) ListSessions(ctx context.Context, userID string) ([]domain.ChatSession, error) {
	if s == nil || s.sessions == nil {
		return nil, ErrChatServiceNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrSessionInvalidInput
	}
	return s.sessions.ListByUserID(ctx, userID)
}

// CreateSession usa el título por defecto cuando llega vacío.
func (s *ChatService) CreateSession(ctx context.Context, userID, title string) (domain.ChatSession, error) {
	if s == nil || s.sessions == nil {
		return domain.ChatSession{}, ErrChatServiceNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.ChatSession{}, ErrSessionInvalidInput
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultSessionTitle
	}
	session := domain.ChatSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: s.now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return domain.ChatSession{}, err
	}
	return session, nil
}

func (s *ChatService) RenameSession(ctx context.Context, sessionID, userID, title string) error {
	if s == nil || s.sessions == nil {
		return ErrChatServiceNotConfigured
	}
	title = strings.TrimSpace(title)
	if strings.TrimSpace(sessionID) == "" || title == "" {
		return ErrSessionInvalidInput
	}
	ok, err := s.sessions.UpdateTitle(ctx, strings.TrimSpace(sessionID), strings.TrimSpace(userID), title)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (s *ChatService) DeleteSession(ctx context.Context, sessionID, userID string) error {
	if s == nil || s.sessions == nil {
		return ErrChatServiceNotConfigured
	}
	if strings.TrimSpace(sessionID) == "" {
		return ErrSessionInvalidInput
	}
	ok, err := s.sessions.Delete(ctx, strings.TrimSpace(sessionID), strings.TrimSpace(userID))
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// AuthorizeSession devuelve la sesión solo si pertenece al usuario.
func (s *ChatService) AuthorizeSession(ctx context.Context, sessionID, userID string) (domain.ChatSession, error) {
	if s == nil || s.sessions == nil {
		return domain.ChatSession{}, ErrChatServiceNotConfigured
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.ChatSession{}, ErrSessionInvalidInput
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ChatSession{}, ErrSessionNotFound
		}
		return domain.ChatSession{}, err
	}
	if session.UserID != strings.TrimSpace(userID) {
		return domain.ChatSession{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *ChatService) ListMessages(ctx context.Context, sessionID, userID string) ([]domain.Message, error) {
	if s == nil || s.messages == nil {
		return nil, ErrChatServiceNotConfigured
	}
	session, err := s.AuthorizeSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	return s.messages.ListBySessionID(ctx, session.ID)
}
