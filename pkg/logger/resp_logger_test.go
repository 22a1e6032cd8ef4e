package logger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResponseLogger(t *testing.T) {
	rr := httptest.NewRecorder()
	lw := New(rr)

	if lw.Status() != http.StatusOK {
		t.Errorf("want default status %d, got %d", http.StatusOK, lw.Status())
	}

	lw.Header().Set("X-Test", "1")
	lw.WriteHeader(http.StatusCreated)
	if _, err := lw.Write([]byte("hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if lw.Status() != http.StatusCreated || rr.Code != http.StatusCreated {
		t.Errorf("want status %d, got logger %d recorder %d", http.StatusCreated, lw.Status(), rr.Code)
	}
	if lw.Written() != 5 || rr.Body.String() != "hello" {
		t.Errorf("want 5 bytes written, got %d (%q)", lw.Written(), rr.Body.String())
	}
	if rr.Header().Get("X-Test") != "1" {
		t.Error("want header passed through")
	}
}

func TestResponseLogger_HijackUnsupported(t *testing.T) {
	lw := New(httptest.NewRecorder())

	if _, _, err := lw.Hijack(); !errors.Is(err, ErrHijackUnsupported) {
		t.Errorf("want error %v, got %v", ErrHijackUnsupported, err)
	}
	if lw.Hijacked() {
		t.Error("want hijacked false")
	}
}

func TestResponseLogger_Hijack(t *testing.T) {
	hijacked := make(chan bool, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lw := New(w)
		conn, _, err := lw.Hijack()
		if err != nil {
			hijacked <- false
			return
		}
		conn.Close()
		hijacked <- lw.Hijacked() && lw.Status() == http.StatusSwitchingProtocols
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err == nil {
		resp.Body.Close()
	}

	if !<-hijacked {
		t.Error("want connection hijacked through the logger")
	}
}
