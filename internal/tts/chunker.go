package tts

import (
	"encoding/base64"
	"errors"

	"voice-chat/internal/domain"
)

const DefaultChunkSize = 8192

var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// ChunkAudio divide payload en trozos de size bytes codificados en base64.
// Un payload vacío devuelve una lista vacía; el llamador decide qué emitir.
func ChunkAudio(messageID string, payload []byte, size int, autoPlay bool) ([]domain.AudioChunk, error) {
	if size <= 0 {
		return nil, ErrInvalidChunkSize
	}
	total := (len(payload) + size - 1) / size
	chunks := make([]domain.AudioChunk, 0, total)
	for i := 0; i < total; i++ {
		end := (i + 1) * size
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, domain.AudioChunk{
			MessageID: messageID,
			Seq:       i,
			Bytes:     base64.StdEncoding.EncodeToString(payload[i*size : end]),
			IsLast:    i == total-1,
			AutoPlay:  autoPlay,
		})
	}
	return chunks, nil
}
