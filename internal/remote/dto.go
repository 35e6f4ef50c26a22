package remote

import (
	"encoding/json"
	"strings"

	"github.com/mmcdole/rolo/internal/domain"
)

// refreshRequest is the body of /auth/refresh and /auth/logout
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// errorResponse is the service's error envelope. Detail is either a plain
// string or a list of field errors.
type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// fieldError is one entry of a 422 detail list
type fieldError struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// validationError converts an error body into a *domain.ValidationError.
// Only the first field error is kept.
func validationError(body []byte) *domain.ValidationError {
	var env errorResponse
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 {
		return &domain.ValidationError{Reason: strings.TrimSpace(string(body))}
	}

	var msg string
	if err := json.Unmarshal(env.Detail, &msg); err == nil {
		return &domain.ValidationError{Reason: msg}
	}

	var fields []fieldError
	if err := json.Unmarshal(env.Detail, &fields); err == nil && len(fields) > 0 {
		return &domain.ValidationError{Field: fieldName(fields[0].Loc), Reason: fields[0].Msg}
	}

	return &domain.ValidationError{Reason: string(env.Detail)}
}

// fieldName picks the last string element of a loc path like ["body", "name"]
func fieldName(loc []any) string {
	for i := len(loc) - 1; i >= 0; i-- {
		if s, ok := loc[i].(string); ok && s != "body" {
			return s
		}
	}
	return ""
}
