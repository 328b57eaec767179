package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendQueueSize  = 256
	maxMessageSize = 64 * 1024
)

// Hub registra qué clientes escuchan cada canal y encola los frames.
// El número de secuencia por canal se asigna bajo el mismo lock que encola,
// así el orden de seq coincide con el orden de entrega en cada conexión.
type Hub struct {
	mu       sync.Mutex
	channels map[string]map[*Client]struct{}
	seq      map[string]uint64
	logger   *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		channels: make(map[string]map[*Client]struct{}),
		seq:      make(map[string]uint64),
		logger:   logger,
	}
}

// Client es una conexión suscrita a uno o más canales. Solo WritePump escribe
// en la conexión.
type Client struct {
	conn     *websocket.Conn
	identity string
	send     chan []byte
	joined   map[string]struct{}
	closed   bool
}

func NewClient(conn *websocket.Conn, identity string) *Client {
	return &Client{
		conn:     conn,
		identity: identity,
		send:     make(chan []byte, sendQueueSize),
		joined:   make(map[string]struct{}),
	}
}

func (c *Client) Identity() string { return c.identity }

// Join suscribe c a channel. Repetir la llamada no tiene efecto.
func (h *Hub) Join(channel string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	members, ok := h.channels[channel]
	if !ok {
		members = make(map[*Client]struct{})
		h.channels[channel] = members
	}
	members[c] = struct{}{}
	c.joined[channel] = struct{}{}
}

// Leave quita a c de todos sus canales y cierra su cola de salida.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	if c.closed {
		return
	}
	for channel := range c.joined {
		members := h.channels[channel]
		delete(members, c)
		if len(members) == 0 {
			delete(h.channels, channel)
			delete(h.seq, channel)
		}
	}
	c.joined = map[string]struct{}{}
	c.closed = true
	close(c.send)
}

// Publish implementa Publisher.
func (h *Hub) Publish(channel, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal event payload", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.channels[channel]
	if len(members) == 0 {
		return
	}
	h.seq[channel]++
	frame, err := json.Marshal(Frame{Event: event, Data: json.RawMessage(raw), Seq: h.seq[channel]})
	if err != nil {
		h.logger.Error("marshal frame", zap.String("event", event), zap.Error(err))
		return
	}
	for c := range members {
		if !c.enqueue(frame) {
			h.logger.Warn("dropping slow client", zap.String("channel", channel), zap.String("identity", c.identity))
			h.removeLocked(c)
		}
	}
}

// SendTo envía un frame solo a c, fuera de la secuencia del canal.
func (h *Hub) SendTo(c *Client, event string, payload any) {
	frame, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("marshal direct frame", zap.String("event", event), zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return
	}
	if !c.enqueue(frame) {
		h.removeLocked(c)
	}
}

// Members devuelve cuántas conexiones escuchan channel.
func (h *Hub) Members(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[channel])
}

// CloseAll desconecta a todos los clientes; se usa al apagar el servidor.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, members := range h.channels {
		for c := range members {
			h.removeLocked(c)
		}
	}
}

func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// WritePump drena la cola de salida hacia la conexión y envía pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// PrepareRead configura límites y deadlines de lectura al estilo keepalive.
func (c *Client) PrepareRead() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// ReadMessage lee el siguiente mensaje y renueva el deadline.
func (c *Client) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	return data, nil
}
