package lavalink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// ErrNotConnected is returned by player operations before the node has sent
// its ready message.
var ErrNotConnected = errors.New("lavalink node not connected")

const (
	defaultClientName  = "wavebot"
	defaultBackoffBase = time.Second
	defaultBackoffMax  = 60 * time.Second
)

// NodeConfig describes how to reach one Lavalink node.
type NodeConfig struct {
	Name     string
	Address  string // host:port
	Password string
	Secure   bool
	// UserID is the bot's Discord user id, sent on the websocket handshake.
	UserID     string
	ClientName string
}

func (c NodeConfig) restURL() string {
	if c.Secure {
		return "https://" + c.Address
	}
	return "http://" + c.Address
}

func (c NodeConfig) websocketURL() string {
	if c.Secure {
		return "wss://" + c.Address + "/v4/websocket"
	}
	return "ws://" + c.Address + "/v4/websocket"
}

// Listener receives every event the node pushes. It runs on the node's read
// goroutine and must not block for long.
type Listener func(Event)

// Node is a connection to a single Lavalink server.
type Node struct {
	cfg    NodeConfig
	rest   *restClient
	dialer *websocket.Dialer
	logger *log.Entry

	backoffBase time.Duration
	backoffMax  time.Duration

	mu        sync.RWMutex
	sessionID string
	listener  Listener
}

// NewNode creates a node. Nothing is dialed until Run.
func NewNode(cfg NodeConfig, logger *log.Entry) *Node {
	if cfg.ClientName == "" {
		cfg.ClientName = defaultClientName
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Node{
		cfg:         cfg,
		rest:        newRESTClient(cfg.restURL(), cfg.Password),
		dialer:      websocket.DefaultDialer,
		logger:      logger.WithField("node", cfg.Name),
		backoffBase: defaultBackoffBase,
		backoffMax:  defaultBackoffMax,
	}
}

// Name returns the configured node name.
func (n *Node) Name() string { return n.cfg.Name }

// SetListener installs the event listener. Set it before Run.
func (n *Node) SetListener(l Listener) {
	n.mu.Lock()
	n.listener = l
	n.mu.Unlock()
}

// SetUserID sets the bot user id sent on the next handshake.
func (n *Node) SetUserID(id string) {
	n.mu.Lock()
	n.cfg.UserID = id
	n.mu.Unlock()
}

// Connected reports whether the websocket session is established.
func (n *Node) Connected() bool {
	return n.SessionID() != ""
}

// SessionID returns the current session id, empty while disconnected.
func (n *Node) SessionID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sessionID
}

func (n *Node) setSessionID(id string) {
	n.mu.Lock()
	n.sessionID = id
	n.mu.Unlock()
}

// LoadTracks resolves an identifier (URL or "ytsearch:..." query).
func (n *Node) LoadTracks(ctx context.Context, identifier string) (*LoadResult, error) {
	return n.rest.loadTracks(ctx, identifier)
}

// Search resolves identifier and returns its tracks. Loading only needs REST,
// so it works while the websocket is reconnecting.
func (n *Node) Search(ctx context.Context, identifier string) ([]Track, error) {
	result, err := n.rest.loadTracks(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return result.Tracks()
}

// UpdatePlayer patches the guild's player on the current session.
func (n *Node) UpdatePlayer(ctx context.Context, guildID string, update PlayerUpdate) error {
	sid := n.SessionID()
	if sid == "" {
		return ErrNotConnected
	}
	return n.rest.updatePlayer(ctx, sid, guildID, update)
}

// DestroyPlayer removes the guild's player from the node.
func (n *Node) DestroyPlayer(ctx context.Context, guildID string) error {
	sid := n.SessionID()
	if sid == "" {
		return ErrNotConnected
	}
	return n.rest.destroyPlayer(ctx, sid, guildID)
}

// Run keeps the websocket connected until ctx is done, reconnecting with
// exponential backoff. It always returns ctx.Err().
func (n *Node) Run(ctx context.Context) error {
	attempt := 0
	for {
		ready, err := n.connect(ctx)
		n.setSessionID("")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if ready {
			attempt = 0
		}

		wait := backoff(attempt, n.backoffBase, n.backoffMax)
		attempt++
		n.logger.WithError(err).WithField("retry_in", wait).Warn("lavalink connection lost")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// backoff returns base * 2^attempt, capped at max.
func backoff(attempt int, base, maxWait time.Duration) time.Duration {
	d := base
	for range attempt {
		d *= 2
		if d >= maxWait {
			return maxWait
		}
	}
	return min(d, maxWait)
}

// connect runs one websocket session. ready reports whether the node got as
// far as sending its ready message.
func (n *Node) connect(ctx context.Context) (ready bool, err error) {
	n.mu.RLock()
	header := http.Header{}
	header.Set("Authorization", n.cfg.Password)
	header.Set("User-Id", n.cfg.UserID)
	header.Set("Client-Name", n.cfg.ClientName)
	n.mu.RUnlock()

	conn, resp, err := n.dialer.DialContext(ctx, n.cfg.websocketURL(), header)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial %s: %s: %w", n.cfg.websocketURL(), resp.Status, err)
		}
		return false, fmt.Errorf("dial %s: %w", n.cfg.websocketURL(), err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return ready, fmt.Errorf("read: %w", err)
		}

		ev, err := parseMessage(data)
		if err != nil {
			n.logger.WithError(err).Debug("skipping malformed lavalink message")
			continue
		}
		if ev == nil {
			continue
		}
		if r, ok := ev.(ReadyEvent); ok {
			ready = true
			n.setSessionID(r.SessionID)
			n.logger.WithFields(log.Fields{
				"session": r.SessionID,
				"resumed": r.Resumed,
			}).Info("lavalink node ready")
		}
		n.dispatch(ev)
	}
}

func (n *Node) dispatch(ev Event) {
	n.mu.RLock()
	l := n.listener
	n.mu.RUnlock()
	if l != nil {
		l(ev)
	}
}
