package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voice-chat/internal/domain"
	"voice-chat/internal/service"
)

type fakeCoordinator struct {
	mu     sync.Mutex
	turns  []domain.Turn
	starts []service.SpeechRequest
	stops  []service.StopRequest
	err    error
}

func (f *fakeCoordinator) HandleTurn(_ context.Context, turn domain.Turn) (domain.TurnResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turn)
	return domain.TurnResult{State: domain.TurnDone}, f.err
}

func (f *fakeCoordinator) StartSpeech(_ context.Context, _ string, req service.SpeechRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, req)
}

func (f *fakeCoordinator) StopSpeech(_ context.Context, _ string, req service.StopRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, req)
}

func (f *fakeCoordinator) Turns() []domain.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Turn(nil), f.turns...)
}

type chatFixture struct {
	router     *gin.Engine
	jwt        *service.JWTService
	sessions   *mockSessionRepo
	messages   *mockMessageRepo
	coord      *fakeCoordinator
	dispatcher *Dispatcher
}

func setupChatRouter(limiter service.TurnRateLimiter) *chatFixture {
	gin.SetMode(gin.TestMode)
	f := &chatFixture{
		jwt:      newTestJWT(),
		sessions: newMockSessionRepo(),
		messages: &mockMessageRepo{},
		coord:    &fakeCoordinator{},
	}
	f.dispatcher = NewDispatcher(context.Background(), zap.NewNop(), f.coord, limiter)
	h := NewChatHandler(zap.NewNop(), service.NewChatService(f.sessions, f.messages), f.dispatcher)

	r := gin.New()
	g := r.Group("/sessions", JWTAuthMiddleware(f.jwt))
	g.GET("", h.ListSessions)
	g.POST("", h.CreateSession)
	g.PATCH("/:id", h.RenameSession)
	g.DELETE("/:id", h.DeleteSession)
	g.GET("/:id/messages", h.ListMessages)
	g.POST("/:id/messages", h.PostMessage)
	f.router = r
	return f
}

func (f *chatFixture) createSession(t *testing.T, token, title string) domain.ChatSession {
	t.Helper()
	rec := performRequest(f.router, http.MethodPost, "/sessions", token, map[string]string{"title": title})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d", rec.Code)
	}
	var resp struct {
		Session domain.ChatSession `json:"session"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return resp.Session
}

func TestChatHandler_SessionLifecycle(t *testing.T) {
	f := setupChatRouter(nil)
	token := accessTokenFor(t, f.jwt, "u1")

	session := f.createSession(t, token, "")
	if session.Title != domain.DefaultSessionTitle || session.UserID != "u1" {
		t.Fatalf("unexpected session %+v", session)
	}

	rec := performRequest(f.router, http.MethodGet, "/sessions", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var list struct {
		Sessions []domain.ChatSession `json:"sessions"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list.Sessions) != 1 {
		t.Fatalf("expected one session, got %+v", list.Sessions)
	}

	rec = performRequest(f.router, http.MethodPatch, "/sessions/"+session.ID, token, map[string]string{"title": "Renamed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename: expected 200, got %d", rec.Code)
	}
	rec = performRequest(f.router, http.MethodPatch, "/sessions/"+session.ID, token, map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("rename without title: expected 400, got %d", rec.Code)
	}

	rec = performRequest(f.router, http.MethodDelete, "/sessions/"+session.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	rec = performRequest(f.router, http.MethodDelete, "/sessions/"+session.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestChatHandler_OtherUserCannotReadSession(t *testing.T) {
	f := setupChatRouter(nil)
	owner := accessTokenFor(t, f.jwt, "u1")
	other := accessTokenFor(t, f.jwt, "u2")
	session := f.createSession(t, owner, "Mine")

	rec := performRequest(f.router, http.MethodGet, "/sessions/"+session.ID+"/messages", other, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for other user, got %d", rec.Code)
	}
	rec = performRequest(f.router, http.MethodGet, "/sessions/"+session.ID+"/messages", owner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d", rec.Code)
	}
}

func TestChatHandler_PostMessageDispatchesTurn(t *testing.T) {
	f := setupChatRouter(nil)
	token := accessTokenFor(t, f.jwt, "u1")
	session := f.createSession(t, token, "")

	rec := performRequest(f.router, http.MethodPost, "/sessions/"+session.ID+"/messages", token, map[string]any{
		"text":             "hola",
		"is_first_message": true,
		"auto_tts":         true,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.dispatcher.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	turns := f.coord.Turns()
	if len(turns) != 1 {
		t.Fatalf("expected one turn, got %d", len(turns))
	}
	turn := turns[0]
	if turn.SessionID != session.ID || turn.UserID != "u1" || turn.Text != "hola" || !turn.IsFirstMessage || !turn.AutoSpeech {
		t.Fatalf("unexpected turn %+v", turn)
	}
}

func TestChatHandler_PostMessageValidation(t *testing.T) {
	f := setupChatRouter(nil)
	token := accessTokenFor(t, f.jwt, "u1")
	session := f.createSession(t, token, "")

	rec := performRequest(f.router, http.MethodPost, "/sessions/"+session.ID+"/messages", token, map[string]string{"text": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = performRequest(f.router, http.MethodPost, "/sessions/missing/messages", token, map[string]string{"text": "hola"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if len(f.coord.Turns()) != 0 {
		t.Fatalf("expected no turns dispatched")
	}
}

func TestChatHandler_PostMessageRateLimited(t *testing.T) {
	f := setupChatRouter(&mockLimiter{allow: false})
	token := accessTokenFor(t, f.jwt, "u1")
	session := f.createSession(t, token, "")

	rec := performRequest(f.router, http.MethodPost, "/sessions/"+session.ID+"/messages", token, map[string]string{"text": "hola"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestChatHandler_RequiresToken(t *testing.T) {
	f := setupChatRouter(nil)
	rec := performRequest(f.router, http.MethodGet, "/sessions", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
