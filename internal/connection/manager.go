// Package connection owns the lifecycle of the persistent realtime
// channel. The websocket handle is exclusively owned by the Manager: the
// rest of the client sends through it and consumes its decoded event
// stream, never touching the connection directly.
package connection

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"taskchat/internal/protocol"
	taskchat_errors "taskchat/pkg/errors"
	"taskchat/pkg/logger"
)

// Status is the connectivity state surfaced to the view layer.
type Status int32

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Config tunes a Manager. Zero values fall back to defaults suitable for
// production; tests shrink the intervals.
type Config struct {
	// URL is the websocket endpoint, e.g. ws://host:port/ws.
	URL string

	Logger *logger.Logger

	// OnStatus is invoked on every connectivity transition.
	OnStatus func(Status)

	// OnAuthError is invoked when the server rejects the credential after
	// the channel was established. Credential errors are terminal: the
	// manager suppresses redialing and the application must log out.
	OnAuthError func(error)

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration

	// InitialBackoff and MaxBackoff bound the redial schedule after a
	// transport-level drop.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c *Config) applyDefaults() {
	if c.Logger == nil {
		c.Logger = logger.NewNop()
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 30 * time.Second
	}
}

// Manager maintains at most one live channel per session. Connect
// establishes it, Disconnect tears it down and is idempotent. A transport
// drop after a successful Connect is redialed with exponential backoff;
// credential rejections and explicit disconnects are terminal.
type Manager struct {
	cfg    Config
	log    *logger.Logger
	events chan protocol.ServerEvent
	status atomic.Int32

	mu       sync.Mutex
	conn     *websocket.Conn
	token    string
	gen      int
	terminal bool
}

// NewManager creates a manager for the given endpoint. The decoded event
// stream is created once and survives reconnects, so consumers attach
// exactly one listener for the lifetime of the session.
func NewManager(cfg Config) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:    cfg,
		log:    cfg.Logger,
		events: make(chan protocol.ServerEvent, 256),
	}
}

// Events returns the stream of decoded inbound events.
func (m *Manager) Events() <-chan protocol.ServerEvent {
	return m.events
}

// Connected reports whether the channel is live.
func (m *Manager) Connected() bool {
	return Status(m.status.Load()) == StatusConnected
}

// Status returns the current connectivity state.
func (m *Manager) Status() Status {
	return Status(m.status.Load())
}

// Connect establishes the channel using the session credential. Calling
// it while a channel is live is an error: at most one live channel per
// session, and reconnecting requires an explicit new Connect after a
// Disconnect. A handshake rejected with 401/403 maps to ErrAuthFailed.
func (m *Manager) Connect(token string) error {
	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		return fmt.Errorf("channel already live: %w", taskchat_errors.ErrConflict)
	}
	m.token = token
	m.terminal = false
	m.mu.Unlock()

	m.setStatus(StatusConnecting)
	conn, err := m.dial(token)
	if err != nil {
		m.setStatus(StatusDisconnected)
		return err
	}

	m.install(conn)
	return nil
}

func (m *Manager) dial(token string) (*websocket.Conn, error) {
	endpoint, err := url.Parse(m.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse socket url: %w", err)
	}
	q := endpoint.Query()
	q.Set("token", token)
	endpoint.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.HandshakeTimeout}
	conn, resp, err := dialer.Dial(endpoint.String(), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("handshake rejected with %d: %w", resp.StatusCode, taskchat_errors.ErrAuthFailed)
		}
		return nil, fmt.Errorf("dial %s: %w", m.cfg.URL, err)
	}
	return conn, nil
}

// install hands the fresh connection to a new read pump generation. A
// Disconnect that landed while the dial was in flight wins: the fresh
// connection is closed and never installed.
func (m *Manager) install(conn *websocket.Conn) {
	m.mu.Lock()
	if m.terminal {
		m.mu.Unlock()
		_ = conn.Close()
		m.setStatus(StatusDisconnected)
		return
	}
	m.conn = conn
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	m.setStatus(StatusConnected)
	go m.readPump(conn, gen)
	go m.pinger(conn)
}

// Disconnect tears the channel down. Idempotent: repeated calls and calls
// without a live channel are no-ops. Suppresses any redialing.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.terminal = true
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	m.setStatus(StatusDisconnected)
}

// Send encodes and writes one outbound event. Returns ErrNotConnected
// when no channel is live; the caller decides whether dropping the action
// is acceptable.
func (m *Manager) Send(event string, payload interface{}) error {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil || !m.Connected() {
		return taskchat_errors.ErrNotConnected
	}
	_ = m.conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

func (m *Manager) readPump(conn *websocket.Conn, gen int) {
	_ = conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.pumpClosed(conn, gen, err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))

		ev, err := protocol.ParseServerEvent(data)
		if err != nil {
			m.log.Warnf("dropping inbound frame: %v", err)
			continue
		}

		if ce, ok := ev.(protocol.ConnectError); ok {
			if m.handleConnectError(ce) {
				return
			}
			continue
		}

		select {
		case m.events <- ev:
		default:
			m.log.Warnf("event buffer full, dropping %T", ev)
		}
	}
}

// handleConnectError applies the reconnection-suppression policy: a
// credential rejection is terminal and forces a logout, anything else is
// a transient transport condition left to the redial loop. Reports
// whether the pump should stop.
func (m *Manager) handleConnectError(ce protocol.ConnectError) bool {
	if !isCredentialError(ce.Message) {
		m.log.Warnf("transient connect error: %s", ce.Message)
		return false
	}

	m.log.Errorf("credential rejected by server: %s", ce.Message)
	m.Disconnect()
	if m.cfg.OnAuthError != nil {
		m.cfg.OnAuthError(fmt.Errorf("%s: %w", ce.Message, taskchat_errors.ErrAuthFailed))
	}
	return true
}

// pumpClosed runs when a read pump exits. Superseded generations and
// terminal states stop here; an abnormal drop of the current generation
// starts the redial loop.
func (m *Manager) pumpClosed(conn *websocket.Conn, gen int, cause error) {
	_ = conn.Close()

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	terminal := m.terminal
	token := m.token
	m.mu.Unlock()

	m.setStatus(StatusDisconnected)
	if terminal {
		return
	}

	m.log.Warnf("channel dropped: %v", cause)
	go m.redial(token)
}

func (m *Manager) redial(token string) {
	backoff := m.cfg.InitialBackoff
	for {
		time.Sleep(backoff)

		m.mu.Lock()
		stop := m.terminal || m.conn != nil
		m.mu.Unlock()
		if stop {
			return
		}

		m.setStatus(StatusConnecting)
		conn, err := m.dial(token)
		if err == nil {
			m.install(conn)
			return
		}

		m.setStatus(StatusDisconnected)
		if isAuthError(err) {
			m.mu.Lock()
			m.terminal = true
			m.mu.Unlock()
			if m.cfg.OnAuthError != nil {
				m.cfg.OnAuthError(err)
			}
			return
		}

		m.log.Warnf("redial failed: %v", err)
		backoff *= 2
		if backoff > m.cfg.MaxBackoff {
			backoff = m.cfg.MaxBackoff
		}
	}
}

func (m *Manager) pinger(conn *websocket.Conn) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		if m.conn != conn {
			m.mu.Unlock()
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		m.mu.Unlock()
		if err != nil {
			return
		}
	}
}

func (m *Manager) setStatus(s Status) {
	if Status(m.status.Swap(int32(s))) == s {
		return
	}
	if m.cfg.OnStatus != nil {
		m.cfg.OnStatus(s)
	}
}

func isAuthError(err error) bool {
	return errors.Is(err, taskchat_errors.ErrAuthFailed)
}

func isCredentialError(message string) bool {
	msg := strings.ToLower(message)
	for _, marker := range []string{"unauthorized", "credential", "token", "auth"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
