package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGoogleClient_SynthesizeDefaults(t *testing.T) {
	var got synthesizeRequest
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Goog-Api-Key")
		if r.URL.Path != "/text:synthesize" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"audioContent": base64.StdEncoding.EncodeToString([]byte("mp3-bytes")),
		})
	}))
	defer srv.Close()

	c := NewGoogleClient(srv.URL, "key", nil)
	audio, err := c.Synthesize(context.Background(), SynthesisRequest{Text: "hola"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Fatalf("unexpected audio %q", audio)
	}
	if gotKey != "key" {
		t.Fatalf("expected api key header, got %q", gotKey)
	}
	if got.Voice.Name != DefaultVoice || got.Voice.LanguageCode != "en-US" {
		t.Fatalf("expected default voice, got %+v", got.Voice)
	}
	if got.AudioConfig.SpeakingRate != DefaultSpeakingRate || got.AudioConfig.Pitch != DefaultPitch {
		t.Fatalf("expected default rate/pitch, got %+v", got.AudioConfig)
	}
	if got.AudioConfig.AudioEncoding != "MP3" || got.Input.Text != "hola" {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestGoogleClient_CustomVoice(t *testing.T) {
	var got synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"audioContent":"AAEC"}`))
	}))
	defer srv.Close()

	c := NewGoogleClient(srv.URL, "key", nil)
	_, err := c.Synthesize(context.Background(), SynthesisRequest{Text: "x", Voice: "es-ES-Standard-A", SpeakingRate: 1.5, Pitch: -2})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if got.Voice.LanguageCode != "es-ES" || got.Voice.Name != "es-ES-Standard-A" {
		t.Fatalf("unexpected voice %+v", got.Voice)
	}
	if got.AudioConfig.SpeakingRate != 1.5 || got.AudioConfig.Pitch != -2 {
		t.Fatalf("unexpected audio config %+v", got.AudioConfig)
	}
}

func TestGoogleClient_MissingCredential(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewGoogleClient(srv.URL, "  ", nil)
	if _, err := c.Synthesize(context.Background(), SynthesisRequest{Text: "x"}); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if called {
		t.Fatalf("expected no upstream call without credential")
	}
}

func TestGoogleClient_UpstreamFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"non 2xx", http.StatusForbidden, `{"error":"denied"}`},
		{"missing audio", http.StatusOK, `{}`},
		{"bad base64", http.StatusOK, `{"audioContent":"***"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewGoogleClient(srv.URL, "key", nil).Synthesize(context.Background(), SynthesisRequest{Text: "x"})
			var upErr *UpstreamError
			if !errors.As(err, &upErr) {
				t.Fatalf("expected UpstreamError, got %v", err)
			}
			if upErr.Status != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, upErr.Status)
			}
		})
	}
}
