package domain

import "time"

// DefaultSessionTitle se usa cuando el cliente no envía título.
const DefaultSessionTitle = "New Chat"

// ChatSession agrupa los mensajes de una conversación de un usuario.
type ChatSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
