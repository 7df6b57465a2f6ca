package channel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/projectdiscovery/scanwatch/pkg/types"
)

// fakeServer speaks just enough Socket.IO to drive a Manager
type fakeServer struct {
	upgrader  websocket.Upgrader
	refuse    bool
	namespace string

	mu         sync.Mutex
	sessions   int
	subscribed []string
	// frames sent to each session after the namespace connect
	script func(session int, conn *websocket.Conn)
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("EIO") != "4" || r.URL.Query().Get("transport") != "websocket" {
		http.Error(w, "bad transport", http.StatusBadRequest)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.sessions++
	session := s.sessions
	s.mu.Unlock()

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"s1","upgrades":[],"pingInterval":25000,"pingTimeout":20000}`))
	_, frame, err := conn.ReadMessage()
	if err != nil || string(frame) != string(EncodeConnect(s.namespace)) {
		return
	}
	if s.refuse {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`44{"message":"Not authorized"}`))
		return
	}
	_ = conn.WriteMessage(websocket.TextMessage, append(EncodeConnect(s.namespace), `{"sid":"n1"}`...))

	// collect client frames until the client hangs up
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if strings.Contains(string(frame), `["subscribe"`) {
				s.mu.Lock()
				s.subscribed = append(s.subscribed, string(frame))
				s.mu.Unlock()
			}
		}
	}()

	if s.script != nil {
		s.script(session, conn)
	}

	// closing first would reset the connection and drop frames the client
	// has not read yet
	select {
	case <-clientGone:
	case <-time.After(10 * time.Second):
	}
}

func (s *fakeServer) subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.subscribed...)
}

func waitSubscription(t *testing.T, s *fakeServer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if subscribed := s.subscriptions(); len(subscribed) > 0 {
			if subscribed[0] != want {
				t.Errorf("subscribe frame = %s, want %s", subscribed[0], want)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("room subscription was never sent")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (s *fakeServer) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions
}

func testBackoff() Backoff {
	return Backoff{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond, Factor: 2}
}

func nextEvent(t *testing.T, m *Manager) types.Event {
	t.Helper()
	select {
	case ev := <-m.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return types.Event{}
	}
}

func TestManagerDeliversEventsInOrderAndReconnects(t *testing.T) {
	fake := &fakeServer{}
	fake.script = func(session int, conn *websocket.Conn) {
		if session == 1 {
			frames := []string{
				`2`,
				`42["scan_started",{"task_id":"abc","target":"example.com"}]`,
				`42["scan_output",{"task_id":"abc","output":"port 80 open"}]`,
				`42["scan_complete",{"task_id":"abc","success":true}]`,
			}
			for _, f := range frames {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(f))
			}
			// end the session from the server side
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`41`))
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`42["config_updated"]`))
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	m, err := New(Options{Server: srv.URL, Room: "global", Backoff: testBackoff()})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	want := []types.EventName{
		types.EventConnect,
		types.EventScanStarted,
		types.EventScanOutput,
		types.EventScanComplete,
		types.EventDisconnect,
		types.EventConnect,
		types.EventConfigUpdated,
	}
	for i, name := range want {
		ev := nextEvent(t, m)
		if ev.Name != name {
			t.Fatalf("event %d = %s, want %s", i, ev.Name, name)
		}
		if ev.ReceivedAt.IsZero() {
			t.Errorf("event %d has no receive time", i)
		}
		if name == types.EventScanOutput && string(ev.Payload) != `{"task_id":"abc","output":"port 80 open"}` {
			t.Errorf("unexpected payload %s", ev.Payload)
		}
	}
	if !m.Connected() {
		t.Error("expected manager to be connected after reconnect")
	}
	if got := fake.sessionCount(); got != 2 {
		t.Errorf("sessions = %d, want 2", got)
	}

	waitSubscription(t, fake, `42["subscribe",{"room":"global"}]`)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if m.Connected() {
		t.Error("expected manager to be disconnected after shutdown")
	}
}

func TestManagerFollowsConfiguredNamespace(t *testing.T) {
	fake := &fakeServer{namespace: "/scans"}
	fake.script = func(session int, conn *websocket.Conn) {
		if session > 1 {
			return
		}
		frames := []string{
			`42["scan_started",{"task_id":"other"}]`,
			`42/scans,["scan_output",{"task_id":"abc","output":"port 80 open"}]`,
			`41`,
			`42/admin,["scan_error",{"task_id":"abc"}]`,
			`42/scans,["scan_complete",{"task_id":"abc","success":true}]`,
			`41/scans,`,
		}
		for _, f := range frames {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	m, err := New(Options{Server: srv.URL, Namespace: "/scans", Room: "global", Backoff: testBackoff()})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	want := []types.EventName{
		types.EventConnect,
		types.EventScanOutput,
		types.EventScanComplete,
		types.EventDisconnect,
	}
	for i, name := range want {
		if ev := nextEvent(t, m); ev.Name != name {
			t.Fatalf("event %d = %s, want %s", i, ev.Name, name)
		}
	}
	waitSubscription(t, fake, `42/scans,["subscribe",{"room":"global"}]`)
}

func TestManagerRefusedConnectRetries(t *testing.T) {
	fake := &fakeServer{refuse: true}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	m, err := New(Options{Server: srv.URL, Backoff: testBackoff()})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for fake.sessionCount() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("expected repeated attempts, got %d", fake.sessionCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if m.Connected() {
		t.Error("refused sessions must not report connected")
	}
	select {
	case ev := <-m.Events():
		t.Fatalf("refused sessions must not emit events, got %s", ev.Name)
	default:
	}
}

func TestManagerEmitWithoutSession(t *testing.T) {
	m, err := New(Options{Server: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	if err := m.Emit(types.EventSubscribe, types.SubscribePayload{Room: "x"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Emit() err=%v, want ErrNotConnected", err)
	}
}

func TestNewRejectsBadServer(t *testing.T) {
	if _, err := New(Options{Server: "not a url"}); err == nil {
		t.Fatal("expected error for invalid server")
	}
}
