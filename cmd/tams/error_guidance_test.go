package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"testing"

	"tams/internal/api"
	"tams/internal/server"
)

func TestFormatCLIErrorHints(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "dns failure",
			err:  &net.DNSError{Err: "no such host", Name: "tams.invalid"},
			want: "hint: ensure a tams server is running at TAMS_API_URL.",
		},
		{
			name: "unreachable",
			err:  fmt.Errorf("%w at http://127.0.0.1:5800: %w", errServerUnreachable, errors.New("refused")),
			want: "hint: start a local server with: tams srv",
		},
		{
			name: "not a tams server",
			err:  &api.APIError{Status: 404, Message: "api error: 404 Not Found"},
			want: "hint: verify TAMS_API_URL points to a tams server.",
		},
		{
			name: "unauthorized",
			err:  &api.APIError{Status: 401, Code: "unauthorized", ErrorCode: server.ErrCodeUnauthorized},
			want: errorCodeHints[server.ErrCodeUnauthorized],
		},
		{
			name: "read-only flow",
			err:  &api.APIError{Status: 403, Code: "forbidden", ErrorCode: server.ErrCodeReadOnlyFlow},
			want: errorCodeHints[server.ErrCodeReadOnlyFlow],
		},
		{
			name: "segment overlap",
			err:  &api.APIError{Status: 409, Code: "conflict", ErrorCode: server.ErrCodeSegmentOverlap},
			want: errorCodeHints[server.ErrCodeSegmentOverlap],
		},
		{
			name: "internal",
			err:  &api.APIError{Status: 500, Code: "internal", ErrorCode: server.ErrCodeInternal},
			want: "hint: server returned an internal error; check server logs for details.",
		},
		{
			name: "timeout",
			err:  fmt.Errorf("list flows: %w", context.DeadlineExceeded),
			want: "hint: request timed out; check server health or increase TAMS_HTTP_TIMEOUT.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := formatCLIError(tt.err)
			if len(lines) == 0 || lines[0] != tt.err.Error() {
				t.Fatalf("expected the error first, got %v", lines)
			}
			if !slices.Contains(lines, tt.want) {
				t.Fatalf("expected %q, got %v", tt.want, lines)
			}
		})
	}
}

func TestFormatCLIErrorWithoutHint(t *testing.T) {
	lines := formatCLIError(errors.New("boom"))
	if len(lines) != 1 || lines[0] != "boom" {
		t.Fatalf("expected the bare error, got %v", lines)
	}
	if formatCLIError(nil) != nil {
		t.Fatal("expected nil for a nil error")
	}
}
