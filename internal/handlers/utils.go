package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/fanvault/apiserver/types"
	"github.com/go-chi/chi/v5"
)

type contextKey string

const (
	contextIdentityKey contextKey = "identity"
	contextUserKey     contextKey = "user"
)

// Identity is the token-derived caller before any database lookup. The role
// is as of token issue time; mutating routes re-check against the store.
type Identity struct {
	UserID int
	Role   string
}

func identityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextIdentityKey).(Identity)
	return identity, ok
}

func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

// ErrorResponse is the error payload for every failure. Errors is set only
// for validation failures.
type ErrorResponse struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}

func writeFieldErrors(w http.ResponseWriter, fieldErrors []FieldError) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Message: "Validation failed",
		Errors:  fieldErrors,
	})
}

// writeInternalError logs the cause and hands the client a generic message.
func writeInternalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	slog.Error(message, "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func parseIDParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func parseLimitOffset(r *http.Request) (limit, offset int, err error) {
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, errors.New("invalid limit")
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("invalid offset")
		}
	}

	return limit, offset, nil
}
