package fakebackend

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-brief-portal/model"
)

type apiError struct {
	Code    model.ErrorCode `json:"code"`
	Message string          `json:"message"`
}

type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Message string    `json:"message,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

func (b *Backend) writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		b.logger.Err(err).Msg("error writing response")
	}
}

func (b *Backend) writeData(w http.ResponseWriter, status int, data any) {
	b.writeJSON(w, status, envelope{Success: true, Data: data})
}

func (b *Backend) writeMessage(w http.ResponseWriter, message string) {
	b.writeJSON(w, http.StatusOK, envelope{Success: true, Message: message})
}

func (b *Backend) writeError(w http.ResponseWriter, status int, code model.ErrorCode, message string) {
	b.writeJSON(w, status, envelope{Error: &apiError{Code: code, Message: message}})
}

func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}
