package channel

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/scanwatch/pkg/types"
)

var (
	// ErrConnectRefused is returned when the server rejects the namespace connect
	ErrConnectRefused = errors.New("server refused connection")
	// ErrServerDisconnect is returned when the server closes the session
	ErrServerDisconnect = errors.New("server closed the session")
	// ErrNotConnected is returned by Emit without an established session
	ErrNotConnected = errors.New("not connected")
)

const (
	// DefaultPath is the Socket.IO endpoint on the server
	DefaultPath = "/socket.io/"
	// handshakeTimeout bounds the open and namespace connect exchange
	handshakeTimeout = 10 * time.Second
	// eventBuffer is the capacity of the ordered event channel
	eventBuffer = 256
)

// Options configures a Manager
type Options struct {
	// Server is the http(s) base URL of the scan server
	Server    string
	Path      string
	Namespace string
	Header    http.Header
	TLSConfig *tls.Config
	Backoff   Backoff
	// Room is sent with a subscribe event after every connect
	Room string
}

// Manager owns the live channel
type Manager struct {
	options Options
	url     string
	dialer  *websocket.Dialer
	events  chan types.Event
	now     func() time.Time

	connected atomic.Bool
	attempts  atomic.Int64

	writeMu sync.Mutex
	conn    *websocket.Conn
}

// New validates options and creates a manager. Nothing is dialed until Run.
func New(options Options) (*Manager, error) {
	wsURL, err := socketURL(options.Server, options.Path)
	if err != nil {
		return nil, err
	}
	if options.Backoff.Min <= 0 {
		options.Backoff = DefaultBackoff()
	}
	return &Manager{
		options: options,
		url:     wsURL,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			TLSClientConfig:  options.TLSConfig,
		},
		events: make(chan types.Event, eventBuffer),
		now:    time.Now,
	}, nil
}

// URL returns the websocket endpoint
func (m *Manager) URL() string {
	return m.url
}

// Events returns the ordered stream of received events
func (m *Manager) Events() <-chan types.Event {
	return m.events
}

// Connected reports whether a session is established
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// Run connects and reconnects until ctx ends. It never gives up on its own.
func (m *Manager) Run(ctx context.Context) {
	for {
		err := m.session(ctx)
		if ctx.Err() != nil {
			return
		}

		attempt := int(m.attempts.Add(1) - 1)
		delay := m.options.Backoff.Duration(attempt)
		if err != nil {
			gologger.Verbose().Msgf("live channel: %v, reconnecting in %s (attempt %d)", err, delay, attempt+1)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Emit sends an event on the current session
func (m *Manager) Emit(name types.EventName, payload any) error {
	frame, err := EncodeNamespaceEvent(m.options.Namespace, name.String(), payload)
	if err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if m.conn == nil || !m.connected.Load() {
		return ErrNotConnected
	}
	return m.conn.WriteMessage(websocket.TextMessage, frame)
}

func (m *Manager) session(ctx context.Context) error {
	conn, resp, err := m.dialer.DialContext(ctx, m.url, m.options.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("could not dial %s: %w", m.url, err)
	}
	defer conn.Close()

	// unblock reads when the process shuts down
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	handshake, err := m.handshake(conn)
	if err != nil {
		return err
	}

	m.writeMu.Lock()
	m.conn = conn
	m.writeMu.Unlock()
	m.connected.Store(true)
	m.attempts.Store(0)

	defer func() {
		m.writeMu.Lock()
		m.conn = nil
		m.writeMu.Unlock()
		m.connected.Store(false)
		m.deliver(ctx, types.Event{Name: types.EventDisconnect, ReceivedAt: m.now()})
	}()

	m.deliver(ctx, types.Event{Name: types.EventConnect, ReceivedAt: m.now()})
	if m.options.Room != "" {
		if err := m.Emit(types.EventSubscribe, types.SubscribePayload{Room: m.options.Room}); err != nil {
			gologger.Warning().Msgf("could not subscribe to room %s: %v", m.options.Room, err)
		}
	}

	return m.readLoop(ctx, conn, handshake)
}

func (m *Manager) handshake(conn *websocket.Conn) (Handshake, error) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	packet, err := m.readPacket(conn)
	if err != nil {
		return Handshake{}, fmt.Errorf("could not read open packet: %w", err)
	}
	if packet.Kind != PacketOpen {
		return Handshake{}, fmt.Errorf("expected open packet, got kind %d", packet.Kind)
	}
	handshake, err := DecodeHandshake(packet.Data)
	if err != nil {
		return Handshake{}, err
	}

	if err := m.write(conn, EncodeConnect(m.options.Namespace)); err != nil {
		return Handshake{}, fmt.Errorf("could not send connect packet: %w", err)
	}

	for {
		packet, err := m.readPacket(conn)
		if err != nil {
			return Handshake{}, fmt.Errorf("could not read connect ack: %w", err)
		}
		if packet.namespaced() && !m.ours(packet) {
			continue
		}
		switch packet.Kind {
		case PacketConnect:
			return handshake, nil
		case PacketConnectError:
			return Handshake{}, fmt.Errorf("%w: %s", ErrConnectRefused, string(packet.Data))
		case PacketPing:
			if err := m.write(conn, EncodePong(packet.Data)); err != nil {
				return Handshake{}, err
			}
		case PacketClose, PacketDisconnect:
			return Handshake{}, ErrServerDisconnect
		}
	}
}

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn, handshake Handshake) error {
	deadline := time.Duration(handshake.PingInterval+handshake.PingTimeout) * time.Millisecond
	for {
		if deadline > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(deadline))
		} else {
			_ = conn.SetReadDeadline(time.Time{})
		}

		packet, err := m.readPacket(conn)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var decodeErr *decodeError
			if errors.As(err, &decodeErr) {
				gologger.Debug().Msgf("live channel: skipping frame: %v", err)
				continue
			}
			return fmt.Errorf("transport lost: %w", err)
		}

		if packet.namespaced() && !m.ours(packet) {
			gologger.Debug().Msgf("live channel: skipping frame for namespace %s", packet.Namespace)
			continue
		}
		switch packet.Kind {
		case PacketPing:
			if err := m.write(conn, EncodePong(packet.Data)); err != nil {
				return fmt.Errorf("could not answer ping: %w", err)
			}
		case PacketEvent:
			m.deliver(ctx, types.Event{
				Name:       types.EventName(packet.Event),
				Payload:    packet.Data,
				ReceivedAt: m.now(),
			})
		case PacketClose, PacketDisconnect:
			return ErrServerDisconnect
		}
	}
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func (m *Manager) ours(packet Packet) bool {
	return SameNamespace(packet.Namespace, m.options.Namespace)
}

func (m *Manager) readPacket(conn *websocket.Conn) (Packet, error) {
	messageType, frame, err := conn.ReadMessage()
	if err != nil {
		return Packet{}, err
	}
	if messageType != websocket.TextMessage {
		return Packet{Kind: PacketUnknown}, nil
	}
	packet, err := DecodePacket(frame)
	if err != nil {
		return Packet{}, &decodeError{err: err}
	}
	return packet, nil
}

func (m *Manager) write(conn *websocket.Conn, frame []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// deliver keeps arrival order; it blocks while the consumer is busy
func (m *Manager) deliver(ctx context.Context, event types.Event) {
	select {
	case m.events <- event:
	case <-ctx.Done():
	}
}

func socketURL(server, path string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(server))
	if err != nil {
		return "", fmt.Errorf("invalid server %q: %w", server, err)
	}
	switch parsed.Scheme {
	case "http", "ws":
		parsed.Scheme = "ws"
	case "https", "wss":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server %q: scheme must be http or https", server)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("invalid server %q: missing host", server)
	}
	if path == "" {
		path = DefaultPath
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	parsed.RawQuery = url.Values{"EIO": {"4"}, "transport": {"websocket"}}.Encode()
	parsed.Fragment = ""
	return parsed.String(), nil
}
