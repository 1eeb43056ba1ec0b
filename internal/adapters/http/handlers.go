package web

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"nammabody/internal/adapters/http/middleware"
	"nammabody/internal/adapters/http/perf"
	"nammabody/internal/application/orchestrators"
	"nammabody/internal/domain/contact"
)

// MaxContactBody caps the bytes read from one relay request.
const MaxContactBody = 64 << 10

// perfWindow is how far back /debug/perf aggregates.
const perfWindow = time.Hour

// handleContact relays one contact submission as an email.
func handleContact(deps orchestrators.RelayContactDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Method == http.MethodPost {
			b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxContactBody))
			if err != nil {
				slog.Info("relay_rejected", "reason", contact.KindMissingFields, "error", err)
				writeFailure(w, r, contact.ErrRequiredFields)
				return
			}
			body = b
		}

		res, f := orchestrators.ExecuteRelayContact(r.Context(), orchestrators.RelayContactInput{
			Method: r.Method,
			Body:   body,
		}, deps)
		if f != nil {
			writeFailure(w, r, f)
			return
		}
		writeJSON(w, http.StatusOK, contact.SentBody{
			OK:        true,
			Message:   contact.MsgRelaySent,
			MessageID: res.MessageID,
		})
	}
}

type healthBody struct {
	OK   bool `json:"ok"`
	Mail bool `json:"mail"`
}

// handleHealth reports liveness and whether a mail transport is wired.
func handleHealth(deps orchestrators.RelayContactDeps) http.HandlerFunc {
	ready := deps.Sender != nil && deps.Recipient != "" && deps.FromAddress != ""
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthBody{OK: true, Mail: ready})
	}
}

// handlePerf serves the request and send timing snapshot for the last hour.
func handlePerf(c *perf.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, c.Snapshot(time.Now().Add(-perfWindow), 10))
	}
}

func writeFailure(w http.ResponseWriter, r *http.Request, f *contact.Failure) {
	middleware.NoteReason(r.Context(), string(f.Kind))
	if f.Kind == contact.KindMethodNotAllowed {
		w.Header().Set("Allow", "POST, OPTIONS")
	}
	writeJSON(w, f.Status, f.Body())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response_encode_failed", "error", err)
	}
}
