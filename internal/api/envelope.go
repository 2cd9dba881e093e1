package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// envelope is the uniform response wrapper. Code 0 means success. The
// backend has shipped the human message as both "message" and "msg".
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func (e *envelope) text() string {
	if e.Message != "" {
		return e.Message
	}

	return e.Msg
}

// Decode reads and closes resp.Body, unwraps the envelope, and decodes its
// data into out. out may be nil when the caller only needs the status.
// A non-zero envelope code yields an *Error wrapping ErrRejected.
func Decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", ErrNetwork, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("api: decoding envelope: %w", err)
	}

	if env.Code != 0 {
		var reqID string
		if resp.Request != nil {
			reqID = resp.Request.Header.Get(HeaderRequestID)
		}

		return &Error{
			StatusCode: resp.StatusCode,
			Code:       env.Code,
			RequestID:  reqID,
			Message:    env.text(),
			Err:        ErrRejected,
		}
	}

	if out == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("api: decoding data: %w", err)
	}

	return nil
}

// parseErrorBody pulls the envelope code and message out of an error
// response. Non-JSON bodies are returned verbatim as the message.
func parseErrorBody(body []byte) (int, string) {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && (env.Code != 0 || env.text() != "") {
		return env.Code, env.text()
	}

	return 0, string(bytes.TrimSpace(body))
}
