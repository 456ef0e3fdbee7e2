package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "ok", map[string]any{
		"status":  "ok",
		"service": "loanforge-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, codeInternal, "not ready")
		return
	}
	writeData(w, http.StatusOK, "ready", map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "info", map[string]any{
		"name":    "loanforge-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// handleLogin is a public pass-through: credential issuance belongs to the
// identity provider, not this service. It exists so unauthenticated traffic
// to the login path reaches a handler instead of the gate.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
		return
	}
	writeData(w, http.StatusOK, "authentication is delegated to the identity provider", nil)
}

// --- helpers ---

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
