package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"voice-chat/internal/domain"
	"voice-chat/internal/service"
)

type cliConfig struct {
	ServerURL string `env:"CLI_SERVER_URL" envDefault:"http://localhost:8080"`
	Email     string `env:"CLI_EMAIL" envDefault:"cli_test@example.com"`
	Password  string `env:"CLI_PASSWORD" envDefault:"cli-test-password"`
	AutoTTS   bool   `env:"CLI_AUTO_TTS" envDefault:"false"`
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Seq   uint64          `json:"seq"`
}

type authResponse struct {
	User   domain.User       `json:"user"`
	Tokens service.TokenPair `json:"tokens"`
}

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	var cfg cliConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	auth, err := ensureUser(ctx, cfg)
	if err != nil {
		log.Fatalf("autenticar: %v", err)
	}
	session, err := createSession(ctx, cfg, auth.Tokens.AccessToken)
	if err != nil {
		log.Fatalf("crear sesion: %v", err)
	}

	conn, err := dial(ctx, cfg, auth.Tokens.AccessToken)
	if err != nil {
		log.Fatalf("conectar socket: %v", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		readFrames(conn, logger)
	}()

	fmt.Printf("Sesion %s (usuario %s)\n", session.ID, auth.User.Email)
	fmt.Println("---- Modo Chat (escribe 'salir' para terminar chat) ----")
	first := true
	for {
		fmt.Print("Tu > ")
		text, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if strings.EqualFold(text, "salir") {
			break
		}
		frame := map[string]any{
			"event": domain.EventUserMessage,
			"data": map[string]any{
				"session_id":       session.ID,
				"user_id":          auth.User.ID,
				"text":             text,
				"is_first_message": first,
				"auto_tts":         cfg.AutoTTS,
			},
		}
		if err := conn.WriteJSON(frame); err != nil {
			log.Printf("enviar mensaje: %v", err)
			break
		}
		first = false
	}

	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

// readFrames imprime los eventos del canal hasta que el socket se cierra.
func readFrames(conn *websocket.Conn, logger *zap.Logger) {
	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Debug("socket closed", zap.Error(err))
			}
			return
		}
		switch frame.Event {
		case domain.EventResponseChunk:
			var p domain.ResponseChunkPayload
			if json.Unmarshal(frame.Data, &p) == nil {
				fmt.Print(p.Chunk)
			}
		case domain.EventResponseEnd:
			var p domain.ResponseEndPayload
			if json.Unmarshal(frame.Data, &p) == nil {
				fmt.Printf("\n[fin] mensaje %s\n", p.Message.ID)
			}
		case domain.EventTitleUpdate:
			var p domain.TitleUpdatePayload
			if json.Unmarshal(frame.Data, &p) == nil {
				fmt.Printf("[titulo] %s\n", p.Title)
			}
		case domain.EventAudioChunk:
			var p domain.AudioChunkPayload
			if json.Unmarshal(frame.Data, &p) == nil {
				fmt.Printf("[audio] %s #%d (%d bytes base64)\n", p.MessageID, p.ChunkSeq, len(p.Bytes))
			}
		default:
			fmt.Printf("[%s] %s\n", frame.Event, string(frame.Data))
		}
	}
}

func ensureUser(ctx context.Context, cfg cliConfig) (authResponse, error) {
	creds := map[string]string{"email": cfg.Email, "password": cfg.Password}
	var out authResponse
	status, err := postJSON(ctx, cfg.ServerURL+"/auth/login", "", creds, &out)
	if err != nil {
		return authResponse{}, err
	}
	if status == http.StatusOK {
		return out, nil
	}
	status, err = postJSON(ctx, cfg.ServerURL+"/auth/register", "", creds, &out)
	if err != nil {
		return authResponse{}, err
	}
	if status != http.StatusCreated {
		return authResponse{}, fmt.Errorf("register status %d", status)
	}
	return out, nil
}

func createSession(ctx context.Context, cfg cliConfig, token string) (domain.ChatSession, error) {
	var out struct {
		Session domain.ChatSession `json:"session"`
	}
	status, err := postJSON(ctx, cfg.ServerURL+"/sessions", token, map[string]string{}, &out)
	if err != nil {
		return domain.ChatSession{}, err
	}
	if status != http.StatusCreated {
		return domain.ChatSession{}, fmt.Errorf("create session status %d", status)
	}
	return out.Session, nil
}

func postJSON(ctx context.Context, endpoint, token string, body, out any) (int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func dial(ctx context.Context, cfg cliConfig, token string) (*websocket.Conn, error) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return nil, errors.New("server url must be http or https")
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	return conn, err
}
