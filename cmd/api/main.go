package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"voice-chat/internal/config"
	"voice-chat/internal/db"
	apihttp "voice-chat/internal/http"
	"voice-chat/internal/llm"
	"voice-chat/internal/realtime"
	"voice-chat/internal/repository"
	"voice-chat/internal/service"
	"voice-chat/internal/tts"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.Ping(ctx, pool); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}
	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("db schema", zap.Error(err))
	}

	userRepo := repository.NewPgUserRepository(pool)
	sessionRepo := repository.NewPgSessionRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)

	llmClient, err := llm.NewClient(cfg.LLMProvider, cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, logger)
	if err != nil {
		logger.Fatal("llm client", zap.Error(err))
	}
	if cfg.TTSAPIKey == "" {
		logger.Warn("tts api key not configured; speech requests will fail")
	}
	ttsClient := tts.NewGoogleClient(cfg.TTSBaseURL, cfg.TTSAPIKey, logger)

	var (
		turnLimiter service.TurnRateLimiter
		tokenStore  service.RefreshTokenStore
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			turnLimiter = service.NewRedisTurnRateLimiter(redisClient, cfg.TurnRateWindow(), cfg.TurnRateLimit)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
		}
		cancel()
	}
	if turnLimiter == nil {
		turnLimiter = service.NewTurnRateLimiter(cfg.TurnRateWindow(), cfg.TurnRateLimit)
	}
	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	hub := realtime.NewHub(logger)
	coordinator := service.NewResponseCoordinator(logger, llmClient, ttsClient, messageRepo, sessionRepo, hub, service.CoordinatorOptions{
		StreamDelay:      cfg.StreamDelay(),
		TextFragmentSize: cfg.TextFragmentSize,
		AudioChunkSize:   cfg.AudioChunkSize,
	})

	// Los turnos usan un contexto que sobrevive al cierre del socket y solo se
	// cancela cuando vence el plazo de apagado.
	turnCtx, cancelTurns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelTurns()
	dispatcher := apihttp.NewDispatcher(turnCtx, logger, coordinator, turnLimiter)

	userSvc := service.NewUserService(logger, userRepo)
	chatSvc := service.NewChatService(sessionRepo, messageRepo)
	router := apihttp.NewRouter(logger, jwtSvc, cfg.CORSAllowedOrigin, apihttp.Handlers{
		User:   apihttp.NewUserHandler(logger, userSvc, jwtSvc),
		Chat:   apihttp.NewChatHandler(logger, chatSvc, dispatcher),
		Socket: apihttp.NewSocketHandler(logger, hub, jwtSvc, dispatcher, chatSvc, cfg.CORSAllowedOrigin),
		Health: apihttp.NewHealthHandler(logger, pool),
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn("in-flight turns did not finish", zap.Error(err))
		cancelTurns()
	}
	hub.CloseAll()
}
