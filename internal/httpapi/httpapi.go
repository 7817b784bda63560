// Package httpapi is a thin HTTP adapter over an engine: it maps each
// request onto exactly one engine operation and translates the result into
// a status code. It holds no storage logic of its own.
package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rezkam/kashk/internal/kverrors"
)

// Engine is the subset of *kashk.Engine the adapter depends on. Declared
// here (rather than imported directly) so handlers can be tested against a
// fake without touching disk.
type Engine interface {
	Set(key, value []byte) error
	Get(key []byte) (value []byte, ok bool, err error)
	Delete(key []byte) error
}

// Handler returns an http.Handler exposing:
//
//	GET    /            health check, always 200
//	POST   /set?key=K    body is the value
//	GET    /get/{key}
//	DELETE /del/{key}
func Handler(e Engine) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/set", func(w http.ResponseWriter, r *http.Request) { handleSet(e, w, r) })
	mux.HandleFunc("/get/", func(w http.ResponseWriter, r *http.Request) { handleGet(e, w, r) })
	mux.HandleFunc("/del/", func(w http.ResponseWriter, r *http.Request) { handleDel(e, w, r) })
	return mux
}

func handleSet(e Engine, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "missing key", http.StatusBadRequest)
		return
	}
	value, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if err := e.Set([]byte(key), value); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func handleGet(e Engine, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/get/")
	if key == "" {
		http.Error(w, "missing key", http.StatusBadRequest)
		return
	}
	value, ok, err := e.Get([]byte(key))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(value)
}

func handleDel(e Engine, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/del/")
	if key == "" {
		http.Error(w, "missing key", http.StatusBadRequest)
		return
	}
	if err := e.Delete([]byte(key)); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// writeEngineError logs the error's kind server-side and returns an opaque
// 500 body: the error's Kind and cause are never echoed to the client.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	kind, _ := kverrors.KindOf(err)
	slog.Error("httpapi: engine error", "path", r.URL.Path, "kind", kind.String(), "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
