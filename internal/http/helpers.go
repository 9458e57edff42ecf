package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"splitledger/internal/core"
)

// memberIDHeader identifies the calling member on mutating requests.
const memberIDHeader = "X-Member-ID"

const maxBodyBytes = 1 << 20

var errMissingCaller = fmt.Errorf("missing %s header", memberIDHeader)

// requireMember resolves the caller from the header against the group
// roster. Unknown callers are treated as non-members, not as missing rows.
func (s *Server) requireMember(r *http.Request, groupID string) (core.Member, error) {
	id := strings.TrimSpace(r.Header.Get(memberIDHeader))
	if id == "" {
		return core.Member{}, errMissingCaller
	}
	m, err := s.roster.Member(r.Context(), groupID, id)
	if errors.Is(err, core.ErrMemberNotFound) {
		return core.Member{}, core.ErrNotGroupMember
	}
	return m, err
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP statuses. Internal consistency
// failures are never detailed to callers.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var exceeds *core.ExceedsOwedError
	var conservation *core.ConservationError

	var status int
	msg := err.Error()
	switch {
	case errors.As(err, &exceeds),
		errors.Is(err, core.ErrAlreadyMember):
		status = http.StatusConflict

	case errors.Is(err, core.ErrGroupNotFound),
		errors.Is(err, core.ErrMemberNotFound),
		errors.Is(err, core.ErrExpenseNotFound),
		errors.Is(err, core.ErrSettlementNotFound):
		status = http.StatusNotFound

	case errors.Is(err, errMissingCaller):
		status = http.StatusUnauthorized

	case errors.Is(err, core.ErrNotGroupMember),
		errors.Is(err, core.ErrNotExpenseOwner):
		status = http.StatusForbidden

	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrSelfSettlement),
		errors.Is(err, core.ErrMissingIdempotencyKey),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrDescriptionTooLong),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidEmail),
		errors.Is(err, core.ErrEmptyMessage):
		status = http.StatusUnprocessableEntity

	case strings.HasPrefix(msg, "invalid request body"):
		status = http.StatusBadRequest

	case errors.As(err, &conservation),
		errors.Is(err, core.ErrGroupQuarantined):
		// The details stay in the logs.
		slog.ErrorContext(r.Context(), "Ledger consistency failure",
			"error", err,
			"path", r.URL.Path)
		status = http.StatusInternalServerError
		msg = "internal consistency error"

	default:
		slog.ErrorContext(r.Context(), "Unhandled request error",
			"error", err,
			"path", r.URL.Path)
		status = http.StatusInternalServerError
		msg = "internal server error"
	}

	writeJSON(w, status, errorResponse{Error: msg})
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseLimit reads a positive "limit" query parameter, with a default.
func parseLimit(r *http.Request, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get("limit"))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
