package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voice-chat/internal/domain"
	"voice-chat/internal/llm"
	"voice-chat/internal/realtime"
	"voice-chat/internal/repository"
	"voice-chat/internal/textproc"
	"voice-chat/internal/tts"
)

const (
	apiErrorPrefix = "[API Error]: "
	stopReasonUser = "user_requested"
	// audioFailureMessage es lo único que ve el cliente; el detalle queda en el log.
	audioFailureMessage = "Failed to generate audio"

	defaultStreamDelay      = 500 * time.Millisecond
	defaultTextFragmentSize = 20
)

const titlePromptTemplate = "Generate strictly only one concise chat title, 3-4 words only, plain text, no symbols for this conversation: %s"

// CoordinatorOptions agrupa los parámetros de ritmo y troceado.
type CoordinatorOptions struct {
	StreamDelay      time.Duration
	TextFragmentSize int
	AudioChunkSize   int
}

// SpeechRequest es una solicitud de audio a demanda para un mensaje ya existente.
type SpeechRequest struct {
	MessageID    string
	Text         string
	UserID       string
	Voice        string
	SpeakingRate float64
	Pitch        float64
}

// StopRequest pide al cliente que deje de reproducir un mensaje.
type StopRequest struct {
	MessageID string
	UserID    string
}

// ResponseCoordinator orquesta un turno completo: persistencia, respuesta del
// LLM emitida por fragmentos, título de la sesión y audio opcional.
type ResponseCoordinator struct {
	logger      *zap.Logger
	llmClient   llm.LLMClient
	synthesizer tts.Synthesizer
	messages    repository.MessageRepository
	sessions    repository.SessionRepository
	publisher   realtime.Publisher
	opts        CoordinatorOptions

	pause func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	newID func() string
}

func NewResponseCoordinator(
	logger *zap.Logger,
	llmClient llm.LLMClient,
	synthesizer tts.Synthesizer,
	messages repository.MessageRepository,
	sessions repository.SessionRepository,
	publisher realtime.Publisher,
	opts CoordinatorOptions,
) *ResponseCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.StreamDelay < 0 {
		opts.StreamDelay = defaultStreamDelay
	}
	if opts.TextFragmentSize <= 0 {
		opts.TextFragmentSize = defaultTextFragmentSize
	}
	if opts.AudioChunkSize <= 0 {
		opts.AudioChunkSize = tts.DefaultChunkSize
	}
	return &ResponseCoordinator{
		logger:      logger,
		llmClient:   llmClient,
		synthesizer: synthesizer,
		messages:    messages,
		sessions:    sessions,
		publisher:   publisher,
		opts:        opts,
		pause:       sleepContext,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// HandleTurn ejecuta las etapas del turno en orden. Solo devuelve error cuando el
// turno termina en TurnFailed; las fallas del LLM, del título o del audio se
// degradan a eventos visibles para el cliente.
func (c *ResponseCoordinator) HandleTurn(ctx context.Context, turn domain.Turn) (domain.TurnResult, error) {
	result := domain.TurnResult{State: domain.TurnReceived}

	turn.SessionID = strings.TrimSpace(turn.SessionID)
	turn.UserID = strings.TrimSpace(turn.UserID)
	if turn.SessionID == "" || turn.UserID == "" || strings.TrimSpace(turn.Text) == "" {
		result.State = domain.TurnFailed
		result.FailedStage = domain.StageValidate
		return result, fmt.Errorf("%w: session_id, user_id and text are required", ErrValidation)
	}

	logger := c.logger.With(
		zap.String("session_id", turn.SessionID),
		zap.String("user_id", turn.UserID),
	)
	channel := realtime.ResolveChannel(turn.UserID)

	userMsg := domain.Message{
		ID:        c.newID(),
		SessionID: turn.SessionID,
		Sender:    domain.SenderUser,
		Text:      turn.Text,
		CreatedAt: c.now(),
	}
	if err := c.messages.Create(ctx, userMsg); err != nil {
		logger.Error("persist user message failed", zap.Error(err))
		result.State = domain.TurnFailed
		result.FailedStage = domain.StagePersistUser
		return result, &PersistenceError{Stage: domain.StagePersistUser, Err: err}
	}
	result.UserMessageID = userMsg.ID
	advance(logger, &result, domain.TurnUserPersisted)

	advance(logger, &result, domain.TurnCompleting)
	aiText := c.complete(ctx, logger, turn.Text)
	result.AIText = aiText

	c.emitFragments(ctx, logger, channel, turn.SessionID, aiText)
	advance(logger, &result, domain.TurnTextEmitted)

	aiMsg := domain.Message{
		ID:        c.newID(),
		SessionID: turn.SessionID,
		Sender:    domain.SenderAI,
		Text:      aiText,
		CreatedAt: c.now(),
	}
	persistErr := c.messages.Create(ctx, aiMsg)
	if persistErr != nil {
		logger.Error("persist ai message failed", zap.Error(persistErr))
		aiMsg.ID = ""
	}
	c.publisher.Publish(channel, domain.EventResponseEnd, domain.ResponseEndPayload{
		SessionID: turn.SessionID,
		Message: domain.ResponseMessage{
			ID:     aiMsg.ID,
			Sender: domain.SenderAI,
			Text:   aiText,
		},
	})
	if persistErr != nil {
		result.State = domain.TurnFailed
		result.FailedStage = domain.StagePersistAI
		return result, &PersistenceError{Stage: domain.StagePersistAI, Err: persistErr}
	}
	result.AIMessageID = aiMsg.ID
	advance(logger, &result, domain.TurnAIPersisted)

	if turn.IsFirstMessage {
		advance(logger, &result, domain.TurnRetitling)
		result.Title = c.retitle(ctx, logger, channel, turn, aiText)
	}

	if turn.AutoSpeech {
		advance(logger, &result, domain.TurnAudioEmitting)
		c.emitAudio(ctx, logger, channel, aiMsg.ID, aiText, turn.Voice, true, domain.AudioErrAuto)
	}

	advance(logger, &result, domain.TurnDone)
	logger.Info("turn completed",
		zap.String("ai_message_id", result.AIMessageID),
		zap.Int("ai_text_len", len(aiText)),
	)
	return result, nil
}

// StartSpeech sintetiza el texto de un mensaje a pedido del cliente.
func (c *ResponseCoordinator) StartSpeech(ctx context.Context, identity string, req SpeechRequest) {
	req.MessageID = strings.TrimSpace(req.MessageID)
	req.UserID = strings.TrimSpace(req.UserID)

	channel := realtime.ResolveChannel(identity)
	if req.UserID != "" {
		channel = realtime.ResolveChannel(req.UserID)
	}

	if req.MessageID == "" || strings.TrimSpace(req.Text) == "" || req.UserID == "" {
		c.logger.Warn("tts start missing fields",
			zap.String("identity", identity),
			zap.String("message_id", req.MessageID),
		)
		c.publisher.Publish(channel, domain.EventAudioError, domain.AudioErrorPayload{
			MessageID: req.MessageID,
			Code:      domain.AudioErrValidation,
			Message:   "messageId, text and userId are required",
		})
		return
	}

	logger := c.logger.With(zap.String("user_id", req.UserID), zap.String("message_id", req.MessageID))
	voice := domain.VoiceParams{Voice: req.Voice, SpeakingRate: req.SpeakingRate, Pitch: req.Pitch}
	c.emitAudio(ctx, logger, channel, req.MessageID, req.Text, voice, false, domain.AudioErrOnDemand)
}

// StopSpeech avisa al cliente que deje de reproducir. No cancela una síntesis
// ni una emisión de audio que ya esté en curso.
func (c *ResponseCoordinator) StopSpeech(_ context.Context, identity string, req StopRequest) {
	req.MessageID = strings.TrimSpace(req.MessageID)
	req.UserID = strings.TrimSpace(req.UserID)
	if req.MessageID == "" || req.UserID == "" {
		c.logger.Warn("tts stop missing fields",
			zap.String("identity", identity),
			zap.String("message_id", req.MessageID),
		)
		return
	}
	c.publisher.Publish(realtime.ResolveChannel(req.UserID), domain.EventAudioStopped, domain.AudioStoppedPayload{
		MessageID: req.MessageID,
		Reason:    stopReasonUser,
	})
}

func (c *ResponseCoordinator) complete(ctx context.Context, logger *zap.Logger, prompt string) string {
	text, err := c.llmClient.Generate(ctx, prompt)
	if err == nil {
		return text
	}
	if errors.Is(err, llm.ErrMalformedResponse) {
		logger.Warn("llm response without text", zap.Error(err))
		return ""
	}
	logger.Error("llm completion failed", zap.Error(err))
	return apiErrorPrefix + err.Error()
}

func (c *ResponseCoordinator) emitFragments(ctx context.Context, logger *zap.Logger, channel, sessionID, text string) {
	fragments, err := textproc.Segment(text, c.opts.TextFragmentSize)
	if err != nil {
		logger.Error("segment response failed", zap.Error(err))
		return
	}
	paced := c.opts.StreamDelay > 0
	for _, fragment := range fragments {
		c.publisher.Publish(channel, domain.EventResponseChunk, domain.ResponseChunkPayload{
			SessionID: sessionID,
			Chunk:     fragment.Text,
		})
		if !paced {
			continue
		}
		if err := c.pause(ctx, c.opts.StreamDelay); err != nil {
			// Sin contexto vivo el resto se emite sin ritmo.
			logger.Warn("stream pacing interrupted", zap.Error(err))
			paced = false
		}
	}
}

func (c *ResponseCoordinator) retitle(ctx context.Context, logger *zap.Logger, channel string, turn domain.Turn, aiText string) string {
	raw, err := c.llmClient.Generate(ctx, fmt.Sprintf(titlePromptTemplate, aiText))
	if err != nil {
		logger.Warn("generate title failed", zap.Error(err))
		return ""
	}
	title := strings.TrimSpace(raw)
	if title == "" {
		logger.Warn("generate title returned empty text")
		return ""
	}
	updated, err := c.sessions.UpdateTitle(ctx, turn.SessionID, turn.UserID, title)
	if err != nil {
		logger.Warn("persist title failed", zap.Error(err))
		return ""
	}
	if !updated {
		logger.Warn("persist title skipped: session not found for user")
		return ""
	}
	c.publisher.Publish(channel, domain.EventTitleUpdate, domain.TitleUpdatePayload{
		SessionID: turn.SessionID,
		Title:     title,
	})
	return title
}

// advance registra la transición del turno al nuevo estado.
func advance(logger *zap.Logger, result *domain.TurnResult, state domain.TurnState) {
	result.State = state
	logger.Debug("turn state", zap.String("state", string(state)))
}

// emitAudio publica tts:audio por cada chunk y luego tts:ready, o un único tts:error.
func (c *ResponseCoordinator) emitAudio(
	ctx context.Context,
	logger *zap.Logger,
	channel, messageID, text string,
	voice domain.VoiceParams,
	autoPlay bool,
	failureCode string,
) {
	fail := func(code, msg string) {
		c.publisher.Publish(channel, domain.EventAudioError, domain.AudioErrorPayload{
			MessageID: messageID,
			Code:      code,
			Message:   msg,
		})
	}

	spoken := textproc.NormalizeForSpeech(text)
	if spoken == "" {
		logger.Warn("no speakable text after normalization")
		fail(domain.AudioErrValidation, "no speakable text")
		return
	}
	if c.synthesizer == nil {
		logger.Error("speech synthesis unavailable", zap.Error(tts.ErrMissingCredential))
		fail(failureCode, audioFailureMessage)
		return
	}

	audio, err := c.synthesizer.Synthesize(ctx, tts.SynthesisRequest{
		Text:         spoken,
		Voice:        voice.Voice,
		SpeakingRate: voice.SpeakingRate,
		Pitch:        voice.Pitch,
	})
	if err != nil {
		logger.Error("speech synthesis failed", zap.Error(err))
		fail(failureCode, audioFailureMessage)
		return
	}
	if len(audio) == 0 {
		logger.Error("speech synthesis returned empty audio")
		fail(failureCode, audioFailureMessage)
		return
	}

	chunks, err := tts.ChunkAudio(messageID, audio, c.opts.AudioChunkSize, autoPlay)
	if err != nil {
		logger.Error("chunk audio failed", zap.Error(err))
		fail(failureCode, audioFailureMessage)
		return
	}
	for _, chunk := range chunks {
		c.publisher.Publish(channel, domain.EventAudioChunk, domain.AudioChunkPayload{
			MessageID: chunk.MessageID,
			ChunkSeq:  chunk.Seq,
			Bytes:     chunk.Bytes,
			IsLast:    chunk.IsLast,
			AutoPlay:  chunk.AutoPlay,
		})
	}
	c.publisher.Publish(channel, domain.EventAudioReady, domain.AudioReadyPayload{
		MessageID: messageID,
		AutoPlay:  autoPlay,
	})
	logger.Info("audio emitted", zap.Int("chunks", len(chunks)), zap.Bool("auto_play", autoPlay))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
