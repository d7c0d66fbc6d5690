package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"tams/internal/api"
	"tams/internal/models"
	"tams/internal/objectstore"
	"tams/internal/segindex"
	"tams/internal/store"
	"tams/internal/timestamp"
	"tams/internal/webhook"
)

const defaultJSONMaxBody = 1 << 20 // 1 MiB

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeErrorReq(w, nil, status, err)
}

func (s *Server) writeErrorReq(w http.ResponseWriter, r *http.Request, status int, err error) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	code := errorCode(status, err)
	numericCode := errorNumericCode(status, err)
	message := err.Error()

	fields := []any{"status", status, "code", code, "error_code", numericCode, "error", err}
	if r != nil {
		fields = append(fields, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		if id := requestIDFromContext(r.Context()); id != "" {
			fields = append(fields, "request_id", id)
		}
	}

	switch {
	case status >= 500:
		s.log().Error("request error", fields...)
		message = "internal error"
	case status >= 400 && shouldWarnClientError(status):
		s.log().Warn("request rejected", fields...)
	case status >= 400:
		s.log().Debug("request rejected", fields...)
	}

	s.writeJSON(w, status, api.ErrorResponse{Error: message, Code: code, ErrorCode: numericCode})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("write json response", "status", status, "error", err)
	}
}

type apiError struct {
	status  int
	code    string
	errCode int
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

func makeAPIError(status int, code string, errCode int, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	var existing apiError
	if errors.As(err, &existing) {
		if existing.status != 0 {
			return existing
		}
	}

	return apiError{status: status, code: code, errCode: errCode, err: err}
}

func badRequest(err error) error {
	return badRequestCode(err, ErrCodeInvalidArgument)
}

func badRequestCode(err error, code int) error {
	return makeAPIError(http.StatusBadRequest, "invalid_argument", code, err)
}

func invalidFormat(err error) error {
	return makeAPIError(http.StatusBadRequest, "invalid_format", ErrCodeInvalidFormat, err)
}

func invalidRange(err error) error {
	return makeAPIError(http.StatusBadRequest, "invalid_range", ErrCodeInvalidRange, err)
}

func missingField(name string) error {
	return makeAPIError(http.StatusBadRequest, "missing_field", ErrCodeMissingField, fmt.Errorf("%s is required", name))
}

func notFoundCode(err error, code int) error {
	return makeAPIError(http.StatusNotFound, "not_found", code, err)
}

func conflictCode(err error, code int) error {
	return makeAPIError(http.StatusConflict, "conflict", code, err)
}

func forbiddenCode(err error, code int) error {
	return makeAPIError(http.StatusForbidden, "forbidden", code, err)
}

func internalError(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeInternal, err)
}

// classifyError maps package sentinels onto API errors. Errors that are
// already classified pass through; anything unknown is internal.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var existing apiError
	if errors.As(err, &existing) && existing.status != 0 {
		return existing
	}

	switch {
	case errors.Is(err, segindex.ErrFlowNotFound):
		return notFoundCode(err, ErrCodeFlowNotFound)
	case errors.Is(err, objectstore.ErrNotFound):
		return notFoundCode(err, ErrCodeObjectNotFound)
	case errors.Is(err, store.ErrNotFound):
		return notFoundCode(err, ErrCodeNotFound)
	case errors.Is(err, objectstore.ErrInvalidObjectID):
		return badRequestCode(err, ErrCodeInvalidObjectID)
	case errors.Is(err, timestamp.ErrInvalidFormat), errors.Is(err, models.ErrInvalidContentFormat):
		return invalidFormat(err)
	case errors.Is(err, timestamp.ErrInvalidRange):
		return invalidRange(err)
	case errors.Is(err, segindex.ErrInvalidCursor):
		return badRequestCode(err, ErrCodeInvalidCursor)
	case errors.Is(err, models.ErrInvalidEventType):
		return badRequestCode(err, ErrCodeInvalidEventType)
	case errors.Is(err, models.ErrInvalidStatus):
		return badRequestCode(err, ErrCodeInvalidQuery)
	case errors.Is(err, webhook.ErrInvalidURL):
		return badRequestCode(err, ErrCodeInvalidWebhookURL)
	case errors.Is(err, segindex.ErrReadOnlyFlow):
		return forbiddenCode(err, ErrCodeReadOnlyFlow)
	case errors.Is(err, segindex.ErrSegmentOverlap):
		return makeAPIError(http.StatusConflict, "segment_overlap", ErrCodeSegmentOverlap, err)
	case errors.Is(err, objectstore.ErrFileTooLarge):
		return makeAPIError(http.StatusRequestEntityTooLarge, "file_too_large", ErrCodeFileTooLarge, err)
	default:
		return internalError(err)
	}
}

func httpStatusFromError(err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return apiErr.status
	}
	return http.StatusInternalServerError
}

func errorCode(status int, err error) string {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.code != "" {
		return apiErr.code
	}
	switch status {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "file_too_large"
	case http.StatusTooManyRequests:
		return "resource_exhausted"
	case http.StatusInternalServerError:
		return "internal"
	default:
		return ""
	}
}

func errorNumericCode(status int, err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.errCode > 0 {
		return apiErr.errCode
	}
	return defaultErrorCodeByStatus(status)
}

func shouldWarnClientError(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, defaultJSONMaxBody)
	return json.NewDecoder(r.Body).Decode(dst)
}

func classifyDecodeJSONError(err error) error {
	if err == nil {
		return nil
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return badRequestCode(fmt.Errorf("invalid JSON payload"), ErrCodeInvalidJSON)
	}

	// Field types with text unmarshalers report their own sentinels.
	if errors.Is(err, timestamp.ErrInvalidFormat) || errors.Is(err, models.ErrInvalidContentFormat) {
		return invalidFormat(err)
	}
	if errors.Is(err, timestamp.ErrInvalidRange) {
		return invalidRange(err)
	}

	return badRequestCode(err, ErrCodeInvalidJSON)
}

func (s *Server) decodeJSONReq(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyDecodeJSONError(err))
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	err = classifyError(err)
	s.writeErrorReq(w, r, httpStatusFromError(err), err)
}

func (s *Server) withLimiter(w http.ResponseWriter, r *http.Request, limiter chan struct{}, name string, fn func()) {
	if !s.acquireLimiter(limiter, w, r, name) {
		return
	}
	defer s.releaseLimiter(limiter)
	fn()
}

// pathIDOrBadRequest reads the {id} path value as a catalog uuid.
func (s *Server) pathIDOrBadRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := requirePathID(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return "", false
	}
	return id, true
}

// pathObjectIDOrBadRequest reads the {id} path value as an object id.
func (s *Server) pathObjectIDOrBadRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if err := objectstore.ValidateID(id); err != nil {
		s.writeServiceError(w, r, err)
		return "", false
	}
	return id, true
}

func (s *Server) requireConfirm(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("X-Confirm") == "true" {
		return true
	}
	s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("this operation requires X-Confirm: true header"), ErrCodeMissingConfirm))
	return false
}
