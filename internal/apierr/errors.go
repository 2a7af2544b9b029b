// Package apierr defines the error taxonomy surfaced by the session and
// messaging layers. Callers branch on error type with errors.As; every type
// preserves its cause for diagnostics.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// NetworkError indicates that no HTTP response reached the client: connection
// failure, DNS failure or a timed-out round trip. Network errors are never
// retried by the session layer.
type NetworkError struct {
	Op      string
	Cause   error
	Timeout bool
	At      time.Time
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: request timed out: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("%s: network failure: %v", e.Op, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// ServerError carries a non-2xx status and whatever detail message the
// backend attached. It surfaces to the caller untouched unless the status is
// 401 on an authenticated call, which the interceptor intercepts.
type ServerError struct {
	StatusCode int
	Detail     string
	Body       []byte
}

func (e *ServerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("server returned %d", e.StatusCode)
}

// AuthRejected is a 401 on a login, registration or refresh call: the
// presented credentials are bad and there is no session to renew.
type AuthRejected struct {
	Detail string
}

func (e *AuthRejected) Error() string {
	if e.Detail != "" {
		return "credentials rejected: " + e.Detail
	}
	return "credentials rejected"
}

// SessionExpired is terminal for the session: an authenticated call hit 401
// and the single renewal attempt also failed. The credential store has been
// cleared by the time this error is observed.
type SessionExpired struct {
	Cause error
}

func (e *SessionExpired) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("session expired: %v", e.Cause)
	}
	return "session expired"
}

func (e *SessionExpired) Unwrap() error { return e.Cause }

// FieldError is one structured field-level failure from the backend's
// request validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field-level errors from registration and other
// structured-input endpoints (a FastAPI 422 payload).
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("validation failed: %s: %s", e.Fields[0].Field, e.Fields[0].Message)
	}
	return fmt.Sprintf("validation failed: %d invalid fields", len(e.Fields))
}

// detailPayload matches the backend's standard error body.
type detailPayload struct {
	Detail json.RawMessage `json:"detail"`
}

// fastAPIFieldError matches one entry of a FastAPI 422 detail array.
type fastAPIFieldError struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// Detail extracts the backend's human-readable detail string from an error
// response body. It returns "" when the body carries no parsable detail.
func Detail(body []byte) string {
	var payload detailPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	return ""
}

// FromStatus builds the taxonomy error for a non-2xx response body. 422
// bodies with a structured detail array become ValidationError; everything
// else becomes ServerError with the extracted detail.
func FromStatus(status int, body []byte) error {
	if status == 422 {
		if ve := parseValidation(body); ve != nil {
			return ve
		}
	}
	return &ServerError{StatusCode: status, Detail: Detail(body), Body: body}
}

func parseValidation(body []byte) *ValidationError {
	var payload detailPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	var raw []fastAPIFieldError
	if err := json.Unmarshal(payload.Detail, &raw); err != nil || len(raw) == 0 {
		return nil
	}
	ve := &ValidationError{}
	for _, fe := range raw {
		field := ""
		if len(fe.Loc) > 0 {
			if s, ok := fe.Loc[len(fe.Loc)-1].(string); ok {
				field = s
			}
		}
		ve.Fields = append(ve.Fields, FieldError{Field: field, Message: fe.Msg})
	}
	return ve
}

// IsUnauthorized reports whether err is a 401 ServerError.
func IsUnauthorized(err error) bool {
	var se *ServerError
	return errors.As(err, &se) && se.StatusCode == 401
}

// IsSessionExpired reports whether err terminated the session.
func IsSessionExpired(err error) bool {
	var se *SessionExpired
	return errors.As(err, &se)
}

// UserMessage renders err as a short message fit for the UI.
func UserMessage(err error) string {
	var (
		ne *NetworkError
		ar *AuthRejected
		sx *SessionExpired
		ve *ValidationError
		se *ServerError
	)
	switch {
	case errors.As(err, &ne):
		if ne.Timeout {
			return "The server took too long to respond."
		}
		return "Could not reach the server. Check your connection."
	case errors.As(err, &ar):
		return "Invalid username or password."
	case errors.As(err, &sx):
		return "Your session has expired. Please log in again."
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &se):
		if se.Detail != "" {
			return se.Detail
		}
		return "The server reported an error."
	case err != nil:
		return err.Error()
	}
	return ""
}
