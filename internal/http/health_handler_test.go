package http

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		db     Pinger
		status int
	}{
		{name: "no db", db: nil, status: http.StatusOK},
		{name: "db up", db: pingerFunc(func(context.Context) error { return nil }), status: http.StatusOK},
		{name: "db down", db: pingerFunc(func(context.Context) error { return errors.New("refused") }), status: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/healthz", NewHealthHandler(zap.NewNop(), tc.db).Health)
			rec := performRequest(r, http.MethodGet, "/healthz", "", nil)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}
}
