package http

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"voice-chat/internal/domain"
	"voice-chat/internal/service"
)

// Coordinator es lo que el transporte necesita del coordinador de respuestas.
type Coordinator interface {
	HandleTurn(ctx context.Context, turn domain.Turn) (domain.TurnResult, error)
	StartSpeech(ctx context.Context, identity string, req service.SpeechRequest)
	StopSpeech(ctx context.Context, identity string, req service.StopRequest)
}

var ErrTurnRateLimited = errors.New("turn rate limited")

// Dispatcher corre cada evento entrante en su propia goroutine con el contexto
// base del servidor, no el de la conexión: si el socket se cierra a mitad de un
// turno, la persistencia igual termina.
type Dispatcher struct {
	baseCtx     context.Context
	logger      *zap.Logger
	coordinator Coordinator
	limiter     service.TurnRateLimiter
	wg          sync.WaitGroup
}

func NewDispatcher(baseCtx context.Context, logger *zap.Logger, coordinator Coordinator, limiter service.TurnRateLimiter) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		baseCtx:     baseCtx,
		logger:      logger,
		coordinator: coordinator,
		limiter:     limiter,
	}
}

// SubmitTurn aplica el rate limit por identidad y lanza el turno. onFailure,
// si no es nil, recibe el error con el que terminó el turno.
func (d *Dispatcher) SubmitTurn(identity string, turn domain.Turn, onFailure func(error)) error {
	if d.limiter != nil && !d.limiter.Allow(identity) {
		return ErrTurnRateLimited
	}
	d.spawn(func(ctx context.Context) {
		result, err := d.coordinator.HandleTurn(ctx, turn)
		if err == nil {
			return
		}
		d.logger.Warn("turn failed",
			zap.String("session_id", turn.SessionID),
			zap.String("failed_stage", result.FailedStage),
			zap.Error(err),
		)
		if onFailure != nil {
			onFailure(err)
		}
	})
	return nil
}

func (d *Dispatcher) StartSpeech(identity string, req service.SpeechRequest) {
	d.spawn(func(ctx context.Context) {
		d.coordinator.StartSpeech(ctx, identity, req)
	})
}

func (d *Dispatcher) StopSpeech(identity string, req service.StopRequest) {
	d.spawn(func(ctx context.Context) {
		d.coordinator.StopSpeech(ctx, identity, req)
	})
}

// Wait espera las unidades en curso o hasta que ctx venza.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) spawn(fn func(ctx context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("dispatch panic", zap.Any("panic", r))
			}
		}()
		fn(d.baseCtx)
	}()
}
