package handshake

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"wsgate/internal/session"
)

func TestUpgraderRejectsNonUpgradeRequest(t *testing.T) {
	up := NewUpgrader(UpgraderConfig{})

	req := httptest.NewRequest("GET", "/ws", nil)
	rec := httptest.NewRecorder()

	err := up.Negotiate(rec, req, &session.MockHandler{}, map[string]any{})

	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("Negotiate() = %v, want *Failure", err)
	}
	if !strings.Contains(f.Message, "not a websocket upgrade") {
		t.Errorf("Failure message = %q", f.Message)
	}
}

func TestUpgraderEndToEnd(t *testing.T) {
	opened := make(chan map[string]any, 1)

	handler := &session.MockHandler{
		OnOpenFunc: func(p session.Peer) error {
			opened <- p.Attributes()
			return nil
		},
		OnMessageFunc: func(p session.Peer, msg session.Message) error {
			return p.Send(msg)
		},
	}

	up := NewUpgrader(UpgraderConfig{
		Subprotocols: []Protocol{{Name: "chat", Versions: []string{"v2.0"}}},
	})

	u := New(handler, up, discardLogger(), WithDecorator(func(h session.Handler) session.Handler {
		return h
	}))
	u.SetInterceptors(NewHeaderInterceptor("User-Agent"))

	srv := httptest.NewServer(u)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	dialer := websocket.Dialer{Subprotocols: []string{"chat.v2.0"}}
	header := http.Header{"User-Agent": {"dial-test"}}

	conn, resp, err := dialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	if got := conn.Subprotocol(); got != "chat.v2.0" {
		t.Errorf("Subprotocol = %q, want chat.v2.0", got)
	}

	// The attribute bag carries interceptor and negotiator values into the session
	select {
	case attrs := <-opened:
		if attrs["User-Agent"] != "dial-test" {
			t.Errorf("attrs[User-Agent] = %v, want dial-test", attrs["User-Agent"])
		}
		if attrs[AttrSubprotocol] != "chat.v2.0" {
			t.Errorf("attrs[%s] = %v, want chat.v2.0", AttrSubprotocol, attrs[AttrSubprotocol])
		}
		if _, present := attrs[AttrCompression]; !present {
			t.Errorf("attrs[%s] missing", AttrCompression)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnOpen was not called")
	}

	// Echo round trip
	if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
		t.Fatalf("WriteMessage() error: %v", err)
	}
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error: %v", err)
	}
	if mt != websocket.TextMessage || string(data) != "ping" {
		t.Errorf("Echo = (%d, %q), want (%d, %q)", mt, data, websocket.TextMessage, "ping")
	}

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func TestUpgraderNoMatchingSubprotocol(t *testing.T) {
	handler := &session.MockHandler{}
	up := NewUpgrader(UpgraderConfig{
		Subprotocols: []Protocol{{Name: "chat", Versions: []string{"v2.0"}}},
	})
	u := New(handler, up, discardLogger())

	srv := httptest.NewServer(u)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	dialer := websocket.Dialer{Subprotocols: []string{"mqtt"}}

	conn, resp, err := dialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	// Upgrade proceeds without a subprotocol rather than failing
	if got := conn.Subprotocol(); got != "" {
		t.Errorf("Subprotocol = %q, want none", got)
	}
}

func TestUpgraderVetoOverHTTP(t *testing.T) {
	up := NewUpgrader(UpgraderConfig{})
	u := New(&session.MockHandler{}, up, discardLogger())
	u.SetInterceptors(NewOriginInterceptor("https://app.example.com"))

	srv := httptest.NewServer(u)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": {"https://evil.example.com"}}

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("Dial() should fail against a vetoed handshake")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Status = %v, want %d", resp, http.StatusForbidden)
	}
	resp.Body.Close()
}
