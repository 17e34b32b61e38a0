package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable code and a readable message.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type errorClass struct {
	err    error
	status int
	code   string
}

// errorClasses is checked in order with errors.Is.
var errorClasses = []errorClass{
	{editorbridge.ErrNodeNotFound, http.StatusNotFound, "not_found"},
	{editorbridge.ErrNoContent, http.StatusNotFound, "no_content"},
	{editorbridge.ErrNotEditable, http.StatusNotFound, "not_editable"},
	{editorbridge.ErrPreviewUnavailable, http.StatusNotFound, "preview_unavailable"},
	{editorbridge.ErrLockUnavailable, http.StatusForbidden, "lock_unavailable"},
	{editorbridge.ErrPermissionDenied, http.StatusForbidden, "permission_denied"},
	{editorbridge.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
	{editorbridge.ErrInvalidDocumentContext, http.StatusBadRequest, "invalid_document_context"},
	{editorbridge.ErrChainFailed, http.StatusInternalServerError, "chain_failed"},
	{editorbridge.ErrChainNotRegistered, http.StatusInternalServerError, "chain_not_registered"},
	{editorbridge.ErrNoContainer, http.StatusInternalServerError, "no_container"},
	{editorbridge.ErrMimeDetection, http.StatusInternalServerError, "mime_detection_failed"},
	{editorbridge.ErrMissingFilename, http.StatusInternalServerError, "missing_filename"},
}

// statusFor maps a service error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	for _, c := range errorClasses {
		if errors.Is(err, c.err) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError renders err in the error envelope. Internal errors are logged and
// their message is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		message = http.StatusText(status)
		if code != "internal_error" {
			message = codeMessage(err)
		}
	} else {
		logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorBody{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	}})
}

// codeMessage returns the sentinel text of a classified internal error.
func codeMessage(err error) string {
	for _, c := range errorClasses {
		if errors.Is(err, c.err) {
			return c.err.Error()
		}
	}
	return http.StatusText(http.StatusInternalServerError)
}

func badRequest(w http.ResponseWriter, r *http.Request, logger *slog.Logger, msg string) {
	writeError(w, r, logger, &requestError{msg: msg})
}

// requestError is a decoding or validation failure of an incoming request.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func (e *requestError) Unwrap() error { return editorbridge.ErrInvalidRequest }
