// Package logger records what a handler wrote so request logs can report it.
package logger

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

var ErrHijackUnsupported = errors.New("underlying ResponseWriter does not support hijacking")

type ResponseLogger struct {
	w        http.ResponseWriter
	status   int
	written  int
	hijacked bool
}

func New(w http.ResponseWriter) *ResponseLogger {
	return &ResponseLogger{w: w, status: http.StatusOK}
}

func (l *ResponseLogger) WriteHeader(code int) {
	l.status = code
	l.w.WriteHeader(code)
}

func (l *ResponseLogger) Write(b []byte) (int, error) {
	n, err := l.w.Write(b)
	l.written += n
	return n, err
}

func (l *ResponseLogger) Header() http.Header {
	return l.w.Header()
}

// Hijack lets WebSocket upgrades pass through the logging middleware.
func (l *ResponseLogger) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := l.w.(http.Hijacker)
	if !ok {
		return nil, nil, ErrHijackUnsupported
	}
	conn, rw, err := h.Hijack()
	if err == nil {
		l.hijacked = true
		l.status = http.StatusSwitchingProtocols
	}
	return conn, rw, err
}

func (l *ResponseLogger) Flush() {
	if f, ok := l.w.(http.Flusher); ok {
		f.Flush()
	}
}

func (l *ResponseLogger) Status() int {
	return l.status
}

// Written is the number of body bytes written, zero for hijacked connections.
func (l *ResponseLogger) Written() int {
	return l.written
}

func (l *ResponseLogger) Hijacked() bool {
	return l.hijacked
}
