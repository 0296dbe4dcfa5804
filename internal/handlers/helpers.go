package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/asagiri/genbamon/internal/entities"
)

// errorBody is the JSON error envelope returned for every failed request.
type errorBody struct {
	Error string `json:"error"`

	// ReferenceCount is populated only for in-use delete rejections so the
	// caller can render "reassign N users first".
	ReferenceCount *int `json:"referenceCount,omitempty"`
}

// respondJSON writes a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// respondError maps a domain error to an HTTP status and writes the error
// envelope. Policy violations keep their kind; everything unknown is a 500.
func respondError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}

	var inUse *entities.TemplateInUseError
	if errors.As(err, &inUse) {
		count := inUse.Count
		body.ReferenceCount = &count
		respondJSON(w, http.StatusConflict, body)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entities.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, entities.ErrDuplicateName), errors.Is(err, entities.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, entities.ErrProtectedTemplate), errors.Is(err, entities.ErrSystemDefaultTemplate):
		status = http.StatusForbidden
	case errors.Is(err, entities.ErrScopeMismatch),
		errors.Is(err, entities.ErrInvalidScope),
		errors.Is(err, entities.ErrUnknownTool),
		errors.Is(err, entities.ErrNotAssignedToProject):
		status = http.StatusBadRequest
	case errors.Is(err, entities.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, body)
}

// respondBadRequest writes a 400 with the given message.
func respondBadRequest(w http.ResponseWriter, format string, args ...interface{}) {
	respondJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf(format, args...)})
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// normalizeToolID canonicalizes a tool identifier to snake_case. Clients
// written against the camelCase wire convention send "dailyLogs"; the engine
// only ever sees "daily_logs".
func normalizeToolID(tool string) string {
	tool = strings.TrimSpace(tool)
	var b strings.Builder
	b.Grow(len(tool) + 4)
	for i, r := range tool {
		if unicode.IsUpper(r) {
			if i > 0 && tool[i-1] != '_' {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// normalizeToolPermissions canonicalizes tool identifiers and parses access
// levels case-insensitively. Granular permission maps are deliberately not
// touched here; their keys are opaque pass-through.
func normalizeToolPermissions(raw map[string]string) (map[string]entities.AccessLevel, error) {
	if raw == nil {
		return nil, nil
	}
	normalized := make(map[string]entities.AccessLevel, len(raw))
	for tool, levelStr := range raw {
		level, err := entities.ParseAccessLevel(levelStr)
		if err != nil {
			return nil, err
		}
		key := normalizeToolID(tool)
		if _, dup := normalized[key]; dup {
			return nil, fmt.Errorf("tool %q appears more than once after normalization", key)
		}
		normalized[key] = level
	}
	return normalized, nil
}
