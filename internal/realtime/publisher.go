// Package realtime entrega eventos a los canales por identidad sobre WebSocket.
package realtime

// Publisher publica un evento en un canal. Es fire-and-forget: no hay ack,
// no hay reintento y publicar en un canal sin oyentes no hace nada.
type Publisher interface {
	Publish(channel, event string, payload any)
}

// ResolveChannel mapea una identidad a su canal. Los clientes dependen de
// este valor para unirse, así que debe mantenerse estable.
func ResolveChannel(identity string) string {
	return identity
}

// Frame es el sobre JSON que viaja por el socket.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	Seq   uint64 `json:"seq,omitempty"`
}

// PublisherFunc adapta una función a Publisher.
type PublisherFunc func(channel, event string, payload any)

func (f PublisherFunc) Publish(channel, event string, payload any) {
	f(channel, event, payload)
}
