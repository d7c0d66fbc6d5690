package main

import (
	"context"
	"errors"
	"net"
	"slices"

	"tams/internal/api"
	"tams/internal/server"
)

// errorCodeHints maps server error_code values to the next thing to try.
var errorCodeHints = map[int]string{
	server.ErrCodeUnauthorized:      "hint: set TAMS_API_TOKEN, or auth.jwt_secret so the cli can mint one (tams token).",
	server.ErrCodeForbidden:         "hint: the token is valid but lacks access to this resource.",
	server.ErrCodeReadOnlyFlow:      "hint: the flow is read-only; clear it by updating the flow with read_only=false.",
	server.ErrCodeSegmentOverlap:    "hint: inspect existing segments with: tams segments <flow-id> --start <ts> --end <ts>",
	server.ErrCodeFlowNotFound:      "hint: list known flows with: tams flow list",
	server.ErrCodeFileTooLarge:      "hint: the payload exceeds storage.max_file_size on the server.",
	server.ErrCodeResourceExhausted: "hint: retry shortly or reduce concurrent uploads and admin jobs.",
	server.ErrCodeMissingConfirm:    "hint: destructive admin jobs need --force.",
}

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}
	lines := []string{err.Error()}
	add := func(hint string) {
		if hint != "" && !slices.Contains(lines, hint) {
			lines = append(lines, hint)
		}
	}

	var apiErr *api.APIError
	switch {
	case errors.As(err, &apiErr):
		add(errorCodeHints[apiErr.ErrorCode])
		if apiErr.Code == "" && apiErr.ErrorCode == 0 {
			add("hint: verify TAMS_API_URL points to a tams server.")
		}
		if apiErr.Status >= 500 {
			add("hint: server returned an internal error; check server logs for details.")
		}
	case errors.Is(err, context.DeadlineExceeded):
		add("hint: request timed out; check server health or increase TAMS_HTTP_TIMEOUT.")
	case errors.Is(err, errServerUnreachable), isNetError(err):
		add("hint: ensure a tams server is running at TAMS_API_URL.")
		add("hint: start a local server with: tams srv")
	}
	return lines
}

func isNetError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
