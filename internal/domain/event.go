package domain

// Nombres de eventos en el socket; los clientes dependen de estos literales.
const (
	EventResponseChunk = "ai:response:chunk"
	EventResponseEnd   = "ai:response:end"
	EventTitleUpdate   = "session:title:update"
	EventAudioChunk    = "tts:audio"
	EventAudioReady    = "tts:ready"
	EventAudioError    = "tts:error"
	EventAudioStopped  = "tts:stopped"

	EventUserJoin    = "user:join"
	EventUserMessage = "user:message"
	EventTTSStart    = "tts:start"
	EventTTSStop     = "tts:stop"
	EventError       = "error"
)

// Códigos enviados en tts:error.
const (
	AudioErrValidation = "VALIDATION_ERROR"
	AudioErrAuto       = "AUTO_TTS_ERROR"
	AudioErrOnDemand   = "TTS_ERROR"
)

type ResponseChunkPayload struct {
	SessionID string `json:"session_id"`
	Chunk     string `json:"chunk"`
}

type ResponseMessage struct {
	ID     string `json:"id"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type ResponseEndPayload struct {
	SessionID string          `json:"session_id"`
	Message   ResponseMessage `json:"message"`
}

type TitleUpdatePayload struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
}

type AudioChunkPayload struct {
	MessageID string `json:"messageId"`
	ChunkSeq  int    `json:"chunkSeq"`
	Bytes     string `json:"bytes"`
	IsLast    bool   `json:"isLast"`
	AutoPlay  bool   `json:"autoPlay"`
}

type AudioReadyPayload struct {
	MessageID string `json:"messageId"`
	AutoPlay  bool   `json:"autoPlay"`
}

type AudioErrorPayload struct {
	MessageID string `json:"messageId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

type AudioStoppedPayload struct {
	MessageID string `json:"messageId"`
	Reason    string `json:"reason"`
}
