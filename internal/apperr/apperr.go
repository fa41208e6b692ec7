// Package apperr defines the closed error taxonomy used across the
// workspace server and the HTTP mapping for each class.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Code is a machine-readable error identifier, stable across releases so
// clients can branch on it instead of parsing Message.
type Code string

const (
	CodeWorkspaceNotFound Code = "workspace_not_found"
	CodeBadPath           Code = "bad_path"
	CodeBadRequest        Code = "bad_request"
	CodeActiveRun         Code = "active_run"
	CodeRunBlockedCycle   Code = "run_blocked_cycle"
	CodeNodeNotFound      Code = "node_not_found"
	CodeEdgeNotFound      Code = "edge_not_found"
	CodeEndpointMissing   Code = "endpoint_missing"
	CodeBadKind           Code = "bad_kind"
	CodeNotFound          Code = "not_found"
	CodeInternal          Code = "internal_error"
)

// Error is a taxonomy error carrying the HTTP status it maps to.
type Error struct {
	Code    Code
	Message string
	Status  int
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

// New builds a taxonomy error with an explicit HTTP status.
func New(code Code, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

// Sentinel errors for graph-store failures (§4.A), wrapped with context via
// fmt.Errorf("%w: node %q", ErrNodeNotFound, id) and recovered with
// errors.Is, mirroring the teacher's errors.Is(err, pgx.ErrNoRows) idiom.
var (
	ErrNodeNotFound    = New(CodeNodeNotFound, "node not found", http.StatusNotFound)
	ErrEdgeNotFound    = New(CodeEdgeNotFound, "edge not found", http.StatusNotFound)
	ErrEndpointMissing = New(CodeEndpointMissing, "edge endpoint missing", http.StatusNotFound)
	ErrBadKind         = New(CodeBadKind, "unknown element kind", http.StatusBadRequest)
	ErrWorkspaceGone   = New(CodeWorkspaceNotFound, "workspace not found", http.StatusNotFound)
	ErrRunBlockedCycle = New(CodeRunBlockedCycle, "blocking edges form a cycle", http.StatusBadRequest)
	ErrActiveRun       = New(CodeActiveRun, "a run is active for this workspace", http.StatusConflict)
)

// WriteJSON writes a structured {code,message} error body with the status
// carried by err, falling back to 500/internal_error for plain errors.
func WriteJSON(w http.ResponseWriter, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = New(CodeInternal, err.Error(), http.StatusInternalServerError)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    string(appErr.Code),
		"message": appErr.Message,
	})
}

// Write is a convenience for handlers that only have a code+message+status,
// generalizing the teacher's writeErrorJSON helper.
func Write(w http.ResponseWriter, code Code, message string, status int) {
	WriteJSON(w, New(code, message, status))
}
