package gateway

import (
	"encoding/json"

	"github.com/jrsteele09/go-brief-portal/model"
)

const unknownAPIError = "Unknown API error"

// Envelope is the uniform body of every backend response.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   *APIError       `json:"error,omitempty"`
}

type APIError struct {
	Code    model.ErrorCode `json:"code"`
	Message string          `json:"message"`
}

func (e *Envelope) errorMessage() string {
	switch {
	case e.Error != nil && e.Error.Message != "":
		return e.Error.Message
	case e.Message != "":
		return e.Message
	}
	return unknownAPIError
}

func (e *Envelope) errorCode() model.ErrorCode {
	if e.Error == nil {
		return ""
	}
	return e.Error.Code
}

// HandleResponse unwraps a successful envelope's data into out. An envelope
// without success fails with the embedded message, as does one without data
// when out expects some.
func HandleResponse(env *Envelope, out any) error {
	if env == nil {
		return &Error{Kind: KindDecode, Message: unknownAPIError}
	}
	if !env.Success {
		return &Error{Kind: KindAPI, Code: env.errorCode(), Message: env.errorMessage()}
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &Error{Kind: KindAPI, Code: env.errorCode(), Message: env.errorMessage()}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{Kind: KindDecode, Message: "unexpected response data", Err: err}
	}
	return nil
}
