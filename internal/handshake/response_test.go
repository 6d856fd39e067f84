package handshake

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResponseWriteHeaderOnce(t *testing.T) {
	rec := httptest.NewRecorder()
	resp := NewResponse(rec)

	resp.WriteHeader(http.StatusUnauthorized)
	resp.WriteHeader(http.StatusTeapot)

	if resp.Status() != http.StatusUnauthorized {
		t.Errorf("Status() = %d, want %d", resp.Status(), http.StatusUnauthorized)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Underlying status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if !resp.Written() {
		t.Error("Written() should be true after WriteHeader")
	}
}

func TestResponseImplicitStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	resp := NewResponse(rec)

	if resp.Written() {
		t.Error("Written() should be false before any write")
	}

	resp.Write([]byte("body"))

	if resp.Status() != http.StatusOK {
		t.Errorf("Status() = %d, want %d", resp.Status(), http.StatusOK)
	}
	if !resp.Written() {
		t.Error("Written() should be true after Write")
	}
}

func TestResponseFlush(t *testing.T) {
	rec := httptest.NewRecorder()
	resp := NewResponse(rec)

	resp.Flush()

	if !rec.Flushed {
		t.Error("Flush should reach the underlying writer")
	}
}

func TestResponseHijackUnsupported(t *testing.T) {
	resp := NewResponse(httptest.NewRecorder())

	if _, _, err := resp.Hijack(); err == nil {
		t.Error("Hijack() should fail when the underlying writer is not a Hijacker")
	}
	if resp.Hijacked() {
		t.Error("Failed hijack should not mark the response hijacked")
	}
}

func TestResponseHijack(t *testing.T) {
	rec := &hijackRecorder{ResponseRecorder: httptest.NewRecorder()}
	resp := NewResponse(rec)

	conn, _, err := resp.Hijack()
	if err != nil {
		t.Fatalf("Hijack() error: %v", err)
	}
	defer conn.Close()

	if !resp.Hijacked() {
		t.Error("Hijacked() should be true")
	}
	if resp.Status() != http.StatusSwitchingProtocols {
		t.Errorf("Status() = %d, want %d", resp.Status(), http.StatusSwitchingProtocols)
	}

	// Once hijacked the HTTP stack has nothing left to flush
	resp.Flush()
	if rec.Flushed {
		t.Error("Flush after hijack should be a no-op")
	}
}

// hijackRecorder adds a working Hijack to httptest.ResponseRecorder.
type hijackRecorder struct {
	*httptest.ResponseRecorder
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	go client.Close()
	return server, bufio.NewReadWriter(bufio.NewReader(server), bufio.NewWriter(server)), nil
}
