package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeDaemon is an httptest server that counts hits per path.
type fakeDaemon struct {
	*httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

func newFakeDaemon(t *testing.T, routes map[string]http.HandlerFunc) *fakeDaemon {
	t.Helper()
	fd := &fakeDaemon{hits: map[string]int{}}
	mux := http.NewServeMux()
	for path, h := range routes {
		h := h
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			fd.mu.Lock()
			fd.hits[r.URL.Path]++
			fd.mu.Unlock()
			h(w, r)
		})
	}
	fd.Server = httptest.NewServer(mux)
	t.Cleanup(fd.Close)
	return fd
}

func (fd *fakeDaemon) count(path string) int {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.hits[path]
}

func (fd *fakeDaemon) client(t *testing.T) *Client {
	t.Helper()
	tr := &http.Transport{}
	t.Cleanup(tr.CloseIdleConnections)
	return New(Options{BaseURL: fd.URL, HTTPClient: &http.Client{Transport: tr}, ProbeTimeout: time.Second})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { writeJSON(w, status, body) }
}

// sequence returns a handler that replies with each handler in turn, repeating the last.
func sequence(hs ...http.HandlerFunc) http.HandlerFunc {
	var mu sync.Mutex
	i := 0
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		h := hs[i]
		if i < len(hs)-1 {
			i++
		}
		mu.Unlock()
		h(w, r)
	}
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}
