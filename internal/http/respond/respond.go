// Package respond writes the JSON bodies served next to the HTML pages,
// currently the health probe.
package respond

import (
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Envelope is the body shape of every JSON response. RequestID echoes the
// id chi assigned so a probe failure can be matched to its log line.
type Envelope struct {
	OK        bool   `json:"ok"`
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// JSON writes data with status.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, r, status, Envelope{OK: status < http.StatusBadRequest, Data: data})
}

// Error writes a failure with its message and optional data.
func Error(w http.ResponseWriter, r *http.Request, status int, err error, data any) {
	write(w, r, status, Envelope{Error: err.Error(), Data: data})
}

func write(w http.ResponseWriter, r *http.Request, status int, env Envelope) {
	env.RequestID = chimw.GetReqID(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Int("status", status).Msg("encode response")
	}
}
