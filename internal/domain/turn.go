package domain

// TurnState es la etapa alcanzada por un turno dentro del coordinador.
type TurnState string

const (
	TurnReceived      TurnState = "received"
	TurnUserPersisted TurnState = "user_persisted"
	TurnCompleting    TurnState = "completing"
	TurnTextEmitted   TurnState = "text_emitted"
	TurnAIPersisted   TurnState = "ai_persisted"
	TurnRetitling     TurnState = "retitling"
	TurnAudioEmitting TurnState = "audio_emitting"
	TurnDone          TurnState = "done"
	TurnFailed        TurnState = "failed"
)

// Etapas que pueden dejar un turno en TurnFailed.
const (
	StageValidate    = "validate"
	StagePersistUser = "persist_user"
	StagePersistAI   = "persist_ai"
)

// Turn es un mensaje de usuario entrante junto con las opciones de respuesta.
type Turn struct {
	SessionID      string
	UserID         string
	Text           string
	IsFirstMessage bool
	// AutoSpeech pide que la respuesta se sintetice y se envíe como audio.
	AutoSpeech bool
	Voice      VoiceParams
}

// TurnResult resume lo que ocurrió con un turno.
type TurnResult struct {
	State         TurnState
	FailedStage   string
	UserMessageID string
	AIMessageID   string
	AIText        string
	Title         string
}

// VoiceParams son parámetros opcionales de síntesis; los valores cero usan defaults.
type VoiceParams struct {
	Voice        string
	SpeakingRate float64
	Pitch        float64
}

// TextFragment es un tramo contiguo del texto de respuesta.
type TextFragment struct {
	Seq    int
	Text   string
	Start  int
	End    int
	IsLast bool
}

// AudioChunk es un tramo del audio sintetizado, ya codificado en base64.
type AudioChunk struct {
	MessageID string
	Seq       int
	Bytes     string
	IsLast    bool
	AutoPlay  bool
}
