// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package channel owns the single real-time notification connection: its
// lifecycle, reconnection backoff, and heartbeat handling. The connection
// handle is private to the Manager; other components see only
// open/close/state.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/localbasket/marketsync/internal/metrics"
	"github.com/localbasket/marketsync/internal/model"
)

// State is the connection state of the channel.
type State string

// Channel states.
const (
	StateClosed     State = "closed"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
)

// CloseAuthRejected is the server's close code for an unauthenticated or
// rejected channel handshake. 1000 (normal closure) and this code never
// trigger a reconnect.
const CloseAuthRejected = 4001

// Reconnection policy for abnormal closures.
const (
	reconnectBase        = 2 * time.Second
	reconnectCap         = 30 * time.Second
	reconnectMaxAttempts = 5
)

// Terminal channel errors.
var (
	// ErrAuthRejected means the server refused the channel session; the
	// session itself may be gone, so the caller should recheck it.
	ErrAuthRejected = errors.New("channel authentication rejected")

	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// heartbeatAck is the fixed reply to inbound heartbeat frames.
var heartbeatAck = []byte(`{"type":"heartbeat","message":"pong"}`)

// Sink receives inbound notifications. The notification store implements it.
type Sink interface {
	Ingest(n model.Notification)
}

// Conn is the subset of *websocket.Conn the manager uses; test doubles
// implement it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer establishes a connection. The default wraps gorilla's dialer.
type Dialer func(ctx context.Context, url string, header http.Header) (Conn, error)

func gorillaDial(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Options configures a Manager.
type Options struct {
	// URL is the channel endpoint.
	URL string

	// InstanceID is sent on the handshake for server-side correlation.
	InstanceID string

	// Authenticated reports the live session state. It is consulted before
	// every reconnect attempt, never captured as a snapshot.
	Authenticated func() bool

	// Sink receives parsed notification frames.
	Sink Sink

	// OnAuthRejected runs when the server closes with CloseAuthRejected.
	OnAuthRejected func()

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Dialer and Wait are test seams. Wait blocks for the backoff delay and
	// returns false when cancelled.
	Dialer Dialer
	Wait   func(d time.Duration, cancel <-chan struct{}) bool
}

// Manager maintains at most one live channel connection process-wide.
type Manager struct {
	url            string
	instanceID     string
	authenticated  func() bool
	sink           Sink
	onAuthRejected func()
	logger         *slog.Logger
	metrics        *metrics.Metrics
	dial           Dialer
	wait           func(d time.Duration, cancel <-chan struct{}) bool

	mu      sync.Mutex
	state   State
	conn    Conn
	gen     int // connection generation; bumping it detaches the run loop
	cancel  chan struct{}
	lastErr error
}

// NewManager creates a closed Manager.
func NewManager(opts Options) *Manager {
	m := &Manager{
		url:            opts.URL,
		instanceID:     opts.InstanceID,
		authenticated:  opts.Authenticated,
		sink:           opts.Sink,
		onAuthRejected: opts.OnAuthRejected,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		dial:           opts.Dialer,
		wait:           opts.Wait,
		state:          StateClosed,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.metrics == nil {
		m.metrics = metrics.New()
	}
	if m.dial == nil {
		m.dial = gorillaDial
	}
	if m.wait == nil {
		m.wait = sleepWait
	}
	if m.authenticated == nil {
		m.authenticated = func() bool { return false }
	}
	return m
}

func sleepWait(d time.Duration, cancel <-chan struct{}) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-cancel:
		return false
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the terminal error of the last connection, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// HandleLifecycle adapts session lifecycle events onto open/close. Subscribe
// this before any cache subscriber so teardown precedes purges on logout.
func (m *Manager) HandleLifecycle(ev model.LifecycleEvent) {
	switch ev.Kind {
	case model.EventAuthenticated:
		m.Open()
	case model.EventDeauthenticated:
		m.Close()
	}
}

// Open starts a connection attempt. It is a no-op while a connection is
// already open or being established; otherwise any stale handle is torn
// down first so at most one live connection ever exists.
func (m *Manager) Open() {
	m.mu.Lock()
	if m.state == StateOpen || m.state == StateConnecting {
		m.mu.Unlock()
		return
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.gen++
	gen := m.gen
	m.state = StateConnecting
	m.lastErr = nil
	cancel := make(chan struct{})
	m.cancel = cancel
	m.mu.Unlock()

	m.metrics.ChannelState.Set(metrics.StateConnecting)
	go m.run(gen, cancel)
}

// Close detaches the run loop before closing the underlying connection, so
// the resulting read error cannot schedule a reconnect. The closed state is
// observable synchronously.
func (m *Manager) Close() {
	m.mu.Lock()
	m.gen++
	if m.cancel != nil {
		close(m.cancel)
		m.cancel = nil
	}
	conn := m.conn
	m.conn = nil
	m.state = StateClosed
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	m.metrics.ChannelState.Set(metrics.StateClosed)
}

// run owns one connection generation: dial, read until closure, and retry
// with backoff on abnormal closures.
func (m *Manager) run(gen int, cancel <-chan struct{}) {
	attempt := 0

	for {
		conn, err := m.dial(context.Background(), m.url, m.header())
		if err == nil {
			m.mu.Lock()
			if gen != m.gen {
				m.mu.Unlock()
				_ = conn.Close()
				return
			}
			m.conn = conn
			m.state = StateOpen
			m.mu.Unlock()

			m.metrics.ChannelState.Set(metrics.StateOpen)
			m.logger.Info("notification channel open", "category", model.EventCategoryChannel)
			attempt = 0

			err = m.readLoop(conn)

			m.mu.Lock()
			detached := gen != m.gen
			if !detached {
				m.conn = nil
			}
			m.mu.Unlock()
			if detached {
				return
			}

			if code, ok := closeCode(err); ok {
				switch code {
				case websocket.CloseNormalClosure:
					m.settleClosed(gen, nil)
					return
				case CloseAuthRejected:
					m.logger.Warn("channel rejected session authentication",
						"category", model.EventCategoryChannel)
					m.settleClosed(gen, ErrAuthRejected)
					if m.onAuthRejected != nil {
						m.onAuthRejected()
					}
					return
				}
			}
		}

		// Abnormal closure or dial failure: back off and retry.
		attempt++
		if attempt > reconnectMaxAttempts {
			m.logger.Warn("reconnect attempts exhausted",
				"category", model.EventCategoryChannel, "attempts", reconnectMaxAttempts)
			m.settleClosed(gen, ErrReconnectExhausted)
			return
		}

		m.mu.Lock()
		if gen != m.gen {
			m.mu.Unlock()
			return
		}
		m.state = StateConnecting
		m.mu.Unlock()
		m.metrics.ChannelState.Set(metrics.StateConnecting)
		m.metrics.ReconnectAttempts.Inc()

		if !m.wait(backoffDelay(attempt), cancel) {
			return
		}
		// Live check, not a snapshot: a logout during the backoff window
		// must not be resurrected by this retry.
		if !m.authenticated() {
			m.logger.Info("session no longer authenticated, abandoning reconnect",
				"category", model.EventCategoryChannel)
			m.settleClosed(gen, nil)
			return
		}
	}
}

// readLoop pumps inbound frames until the connection errors out.
func (m *Manager) readLoop(conn Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		m.handleFrame(conn, data)
	}
}

// frame is the inbound wire shape; Type discriminates heartbeats from
// notification payloads.
type frame struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// handleFrame answers heartbeats and forwards notifications. A malformed
// payload is dropped and logged; it must never terminate the connection.
func (m *Manager) handleFrame(conn Conn, data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		m.metrics.FramesDropped.Inc()
		m.logger.Warn("dropping malformed channel frame",
			"category", model.EventCategoryChannel, "error", err.Error())
		return
	}

	if f.Type == "heartbeat" {
		if err := conn.WriteMessage(websocket.TextMessage, heartbeatAck); err != nil {
			m.logger.Warn("heartbeat ack failed",
				"category", model.EventCategoryChannel, "error", err.Error())
			return
		}
		m.metrics.HeartbeatsAnswered.Inc()
		return
	}

	if f.ID == "" {
		m.metrics.FramesDropped.Inc()
		m.logger.Warn("dropping channel frame without id",
			"category", model.EventCategoryChannel, "type", f.Type)
		return
	}

	m.sink.Ingest(model.Notification{
		ID:        f.ID,
		Type:      model.NormalizeNotificationType(f.Type),
		Message:   f.Message,
		Timestamp: f.Timestamp,
		Read:      f.Read,
	})
	m.metrics.NotificationsIngested.Inc()
}

// settleClosed records the terminal state for a generation, unless an
// explicit Close or newer Open already superseded it.
func (m *Manager) settleClosed(gen int, err error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.state = StateClosed
	m.conn = nil
	m.lastErr = err
	m.mu.Unlock()
	m.metrics.ChannelState.Set(metrics.StateClosed)
}

func (m *Manager) header() http.Header {
	h := http.Header{}
	if m.instanceID != "" {
		h.Set("X-Client-Instance", m.instanceID)
	}
	return h
}

// backoffDelay doubles from the base per attempt, capped.
func backoffDelay(attempt int) time.Duration {
	d := reconnectBase << (attempt - 1)
	if d > reconnectCap {
		return reconnectCap
	}
	return d
}

func closeCode(err error) (int, bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return 0, false
}
