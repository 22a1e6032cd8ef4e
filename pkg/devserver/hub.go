package devserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
	// Subscribers only listen; anything they send beyond pongs and close frames is discarded.
	maxInboundSize = 512
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type subscriber struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans messages out to every connected stream subscriber. A subscriber that
// falls sendBufferSize messages behind is disconnected.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Serve upgrades the request and keeps the subscriber registered until it goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("[hub] failed to upgrade the websocket: %v", err)
		return
	}

	id, _ := uuid.NewV4()
	s := &subscriber{id: id.String(), conn: conn, send: make(chan []byte, sendBufferSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()

	log.Infof("[hub] subscriber %s connected from %v, %d total", shorten(s.id), r.RemoteAddr, n)

	go s.writeLoop()
	s.readLoop()

	h.remove(s)
	log.Infof("[hub] subscriber %s disconnected", shorten(s.id))
}

// Broadcast sends v as a JSON text frame to every subscriber.
func (h *Hub) Broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Errorf("[hub] failed to marshal broadcast: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		select {
		case s.send <- b:
		default:
			log.Warnf("[hub] subscriber %s is too slow, dropping it", shorten(s.id))
			delete(h.subs, s)
			close(s.send)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.send)
	}
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
}

// readLoop returns once the connection fails. It must run for pings and close frames to be answered.
func (s *subscriber) readLoop() {
	s.conn.SetReadLimit(maxInboundSize)
	for {
		if _, _, err := s.conn.NextReader(); err != nil {
			return
		}
	}
}

func (s *subscriber) writeLoop() {
	defer s.conn.Close()

	for msg := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Debugf("[hub] write to subscriber %s failed: %v", shorten(s.id), err)
			return
		}
	}

	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
