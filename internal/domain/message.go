package domain

import "time"

const (
	SenderUser = "USER"
	SenderAI   = "AI"
)

type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
