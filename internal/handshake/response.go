package handshake

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

// Response adapts the transport http.ResponseWriter for the handshake
// pipeline. It tracks status, written state, and hijacking, and passes
// through the optional interfaces the websocket upgrade depends on.
type Response struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	hijacked    bool
}

// NewResponse wraps a transport response writer.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{ResponseWriter: w, status: http.StatusOK}
}

func (r *Response) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
		r.ResponseWriter.WriteHeader(status)
	}
}

func (r *Response) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// Status returns the response status code, or 200 if none was set.
func (r *Response) Status() int {
	return r.status
}

// Written reports whether a status or body has been written.
func (r *Response) Written() bool {
	return r.wroteHeader
}

// Hijacked reports whether the connection was taken over by an upgrade.
func (r *Response) Hijacked() bool {
	return r.hijacked
}

// Hijack hands the underlying connection to the upgrade. A successful
// upgrade responds with 101 directly on the wire, so the status is recorded
// here for anything still watching the response.
func (r *Response) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	conn, rw, err := hj.Hijack()
	if err == nil {
		r.hijacked = true
		r.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

// Flush finalizes the response. Once hijacked the connection no longer
// belongs to the HTTP stack, so there is nothing to flush.
func (r *Response) Flush() {
	if r.hijacked {
		return
	}
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
