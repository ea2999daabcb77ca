// Package api exposes the terminal, log tail, preset and history
// operations over HTTP.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/user/cloudmux/internal/history"
	"github.com/user/cloudmux/internal/logtail"
	"github.com/user/cloudmux/internal/presets"
	"github.com/user/cloudmux/internal/pty"
)

type terminalManager interface {
	Create(req pty.CreateRequest) (pty.CreateResult, error)
	Write(id, data string) error
	Resize(id string, cols, rows uint16) error
	Close(id string) (pty.SessionInfo, bool)
	Get(id string) (pty.SessionInfo, error)
	List() []pty.SessionInfo
}

type tailRegistry interface {
	Start(req logtail.StartRequest) (logtail.SessionInfo, error)
	Stop(id string) (logtail.SessionInfo, error)
	Get(id string) (logtail.SessionInfo, error)
	List() []logtail.SessionInfo
}

// Deps are the services the router dispatches to. Presets and History may
// be nil; their routes then answer 503.
type Deps struct {
	Terminals terminalManager
	Tails     tailRegistry
	Presets   *presets.Registry
	History   *history.Store
	Token     string
}

type handler struct {
	terminals terminalManager
	tails     tailRegistry
	presets   *presets.Registry
	history   *history.Store
}

func NewRouter(deps Deps) http.Handler {
	h := &handler{
		terminals: deps.Terminals,
		tails:     deps.Tails,
		presets:   deps.Presets,
		history:   deps.History,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/terminal/sessions", h.createTerminal)
	mux.HandleFunc("GET /api/terminal/sessions", h.listTerminals)
	mux.HandleFunc("GET /api/terminal/sessions/{id}", h.getTerminal)
	mux.HandleFunc("POST /api/terminal/sessions/{id}/write", h.writeTerminal)
	mux.HandleFunc("POST /api/terminal/sessions/{id}/resize", h.resizeTerminal)
	mux.HandleFunc("DELETE /api/terminal/sessions/{id}", h.closeTerminal)

	mux.HandleFunc("POST /api/logs/tails", h.startTail)
	mux.HandleFunc("GET /api/logs/tails", h.listTails)
	mux.HandleFunc("GET /api/logs/tails/{id}", h.getTail)
	mux.HandleFunc("DELETE /api/logs/tails/{id}", h.stopTail)

	mux.HandleFunc("GET /api/presets", h.listPresets)
	mux.HandleFunc("GET /api/presets/{id}", h.getPreset)
	mux.HandleFunc("PUT /api/presets/{id}", h.savePreset)
	mux.HandleFunc("DELETE /api/presets/{id}", h.deletePreset)
	mux.HandleFunc("POST /api/presets/{id}/launch", h.launchPreset)

	mux.HandleFunc("GET /api/history/sessions", h.listTerminalHistory)
	mux.HandleFunc("DELETE /api/history/sessions/{id}", h.deleteTerminalHistory)
	mux.HandleFunc("GET /api/history/tails", h.listTailHistory)

	return authMiddleware(deps.Token)(jsonMiddleware(corsMiddleware(mux)))
}

func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				if tokenMatches(strings.TrimSpace(authHeader[7:]), token) {
					next.ServeHTTP(w, r)
					return
				}
			}

			if tokenMatches(r.URL.Query().Get("token"), token) {
				next.ServeHTTP(w, r)
				return
			}

			jsonError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

func tokenMatches(got, want string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return io.ErrUnexpectedEOF
	}
	return nil
}
