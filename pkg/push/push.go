// Package push keeps one WebSocket connection to the backend's comment stream and
// fans newly created comments out to subscribers.
//
// The connection is a best-effort enhancement: failures are logged, never returned
// to subscribers, and an unexpected close schedules a single reconnect attempt
// after Config.ReconnectInterval.
package push

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/models"
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

type Config struct {
	// APIBase is the HTTP base of the backend API; the stream lives at {APIBase}/ws.
	APIBase           string
	ReconnectInterval time.Duration
	HandshakeTimeout  time.Duration
	PingInterval      time.Duration
	// ReadTimeout is how long the connection may stay silent, pongs included.
	ReadTimeout time.Duration
}

func DefaultConfig(apiBase string) Config {
	return Config{
		APIBase:           apiBase,
		ReconnectInterval: 5 * time.Second,
		HandshakeTimeout:  5 * time.Second,
		PingInterval:      20 * time.Second,
		ReadTimeout:       45 * time.Second,
	}
}

// KeyProvider supplies the tenant API key the stream is opened with.
type KeyProvider interface {
	APIKey() string
}

type Listener func(models.Comment)

type SubscriptionID uint64

type subscriber struct {
	id SubscriptionID
	fn Listener
}

type Channel struct {
	conf   Config
	keys   KeyProvider
	codec  Codec
	dialer *websocket.Dialer

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	gen        uint64 // bumped on every dial and Disconnect; goroutines of an older gen stand down
	cancelDial context.CancelFunc
	reconnect  *time.Timer

	lmu       sync.RWMutex
	listeners []subscriber
	nextID    SubscriptionID
}

func New(conf Config, keys KeyProvider, codec Codec) *Channel {
	if conf.ReconnectInterval <= 0 {
		conf.ReconnectInterval = 5 * time.Second
	}
	if conf.PingInterval <= 0 {
		conf.PingInterval = 20 * time.Second
	}
	if conf.ReadTimeout <= conf.PingInterval {
		conf.ReadTimeout = conf.PingInterval * 2
	}

	return &Channel{
		conf:  conf,
		keys:  keys,
		codec: codec,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: conf.HandshakeTimeout,
		},
	}
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the stream in the background. It does nothing unless the channel is
// Disconnected, and stays Disconnected when no API key is stored.
func (c *Channel) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectLocked()
}

func (c *Channel) connectLocked() {
	if c.state != Disconnected {
		return
	}

	key := c.keys.APIKey()
	if key == "" {
		log.Warn("[push] no API key stored, comment stream stays disconnected")
		return
	}

	target, err := StreamURL(c.conf.APIBase, key)
	if err != nil {
		log.Errorf("[push] invalid stream address: %v", err)
		return
	}

	c.stopReconnectLocked()
	c.gen++
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel
	c.state = Connecting

	go c.dial(ctx, c.gen, target)
}

func (c *Channel) dial(ctx context.Context, gen uint64, target string) {
	conn, _, err := c.dialer.DialContext(ctx, target, nil)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	c.cancelDial()
	c.cancelDial = nil

	if err != nil {
		c.state = Disconnected
		c.armReconnectLocked()
		c.mu.Unlock()
		log.Warnf("[push] failed to connect to comment stream: %v", err)
		return
	}

	c.conn = conn
	c.state = Connected
	c.stopReconnectLocked()
	c.mu.Unlock()

	log.Info("[push] connected to comment stream")
	c.readLoop(gen, conn)
}

func (c *Channel) readLoop(gen uint64, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(c.conf.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.conf.ReadTimeout))
	})
	go c.keepalive(conn, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.lost(gen, conn, err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.conf.ReadTimeout))

		comment, ok, err := c.codec.Decode(data)
		if err != nil {
			log.Warnf("[push] dropping message: %v", err)
			continue
		}
		if !ok {
			log.Debugf("[push] ignoring message without a created comment")
			continue
		}

		c.broadcast(comment)
	}
}

func (c *Channel) keepalive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.conf.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.conf.PingInterval)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Debugf("[push] ping failed: %v", err)
				return
			}
		}
	}
}

// lost handles the end of a connection that was not closed by Disconnect.
func (c *Channel) lost(gen uint64, conn *websocket.Conn, err error) {
	conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}
	log.Warnf("[push] comment stream closed: %v", err)
	c.conn = nil
	c.state = Disconnected
	c.armReconnectLocked()
}

// armReconnectLocked schedules one reconnect attempt. A pending timer is left as is.
func (c *Channel) armReconnectLocked() {
	if c.reconnect != nil {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(c.conf.ReconnectInterval, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.reconnect != t {
			return
		}
		c.reconnect = nil
		log.Debug("[push] reconnecting to comment stream")
		c.connectLocked()
	})
	c.reconnect = t
	log.Debugf("[push] reconnect scheduled in %v", c.conf.ReconnectInterval)
}

func (c *Channel) stopReconnectLocked() {
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
}

// Disconnect cancels a pending reconnect, closes the connection and leaves the
// channel Disconnected. Calling it again is harmless.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.stopReconnectLocked()
	c.gen++
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = Disconnected
	c.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
		log.Info("[push] disconnected from comment stream")
	}
}

// Subscribe registers fn for every comment delivered from now on.
func (c *Channel) Subscribe(fn Listener) SubscriptionID {
	c.lmu.Lock()
	defer c.lmu.Unlock()

	c.nextID++
	c.listeners = append(c.listeners, subscriber{id: c.nextID, fn: fn})
	return c.nextID
}

func (c *Channel) Unsubscribe(id SubscriptionID) {
	c.lmu.Lock()
	defer c.lmu.Unlock()

	for i, s := range c.listeners {
		if s.id == id {
			c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
			return
		}
	}
}

func (c *Channel) broadcast(comment models.Comment) {
	c.lmu.RLock()
	listeners := make([]subscriber, len(c.listeners))
	copy(listeners, c.listeners)
	c.lmu.RUnlock()

	for _, s := range listeners {
		deliver(s, comment)
	}
}

func deliver(s subscriber, comment models.Comment) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[push] subscriber %d panicked on comment %s: %v", s.id, comment.ID, r)
		}
	}()
	s.fn(comment)
}

// StreamURL derives the stream address from the HTTP API base: the scheme becomes
// ws or wss and the key travels in the apiKey query parameter.
func StreamURL(apiBase, apiKey string) (string, error) {
	u, err := url.Parse(apiBase)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in %q", u.Scheme, apiBase)
	}

	u = u.JoinPath("ws")
	q := u.Query()
	q.Set("apiKey", apiKey)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
