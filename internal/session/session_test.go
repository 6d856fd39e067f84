package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gorilla/websocket"
)

func TestTextMessage(t *testing.T) {
	msg := Text("hello")
	if msg.Type != TextMessage {
		t.Errorf("Type = %d, want %d", msg.Type, TextMessage)
	}
	if string(msg.Data) != "hello" {
		t.Errorf("Data = %s, want hello", msg.Data)
	}
}

func TestBinaryMessage(t *testing.T) {
	msg := Binary([]byte{0x01, 0x02})
	if msg.Type != BinaryMessage {
		t.Errorf("Type = %d, want %d", msg.Type, BinaryMessage)
	}
	if len(msg.Data) != 2 {
		t.Errorf("Data length = %d, want 2", len(msg.Data))
	}
}

func TestCloseStatusFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want CloseStatus
	}{
		{
			name: "close error",
			err:  &websocket.CloseError{Code: websocket.CloseGoingAway, Text: "bye"},
			want: CloseStatus{Code: websocket.CloseGoingAway, Reason: "bye"},
		},
		{
			name: "wrapped close error",
			err:  fmt.Errorf("read: %w", &websocket.CloseError{Code: websocket.CloseNormalClosure}),
			want: CloseStatus{Code: websocket.CloseNormalClosure},
		},
		{
			name: "transport error",
			err:  errors.New("connection reset"),
			want: CloseAbnormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := closeStatusFromError(tt.err)
			if got != tt.want {
				t.Errorf("closeStatusFromError() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestIsExpectedClose(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"normal closure", &websocket.CloseError{Code: websocket.CloseNormalClosure}, true},
		{"going away", &websocket.CloseError{Code: websocket.CloseGoingAway}, true},
		{"no status", &websocket.CloseError{Code: websocket.CloseNoStatusReceived}, true},
		{"protocol error", &websocket.CloseError{Code: websocket.CloseProtocolError}, false},
		{"plain error", errors.New("broken pipe"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isExpectedClose(tt.err); got != tt.want {
				t.Errorf("isExpectedClose() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMockPeerAttributes(t *testing.T) {
	p := &MockPeer{}

	// Nil map should be lazily initialized so tests can write into it
	p.Attributes()["key"] = "value"

	if p.Attributes()["key"] != "value" {
		t.Error("Attributes should persist writes")
	}
}
