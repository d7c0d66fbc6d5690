package server

import (
	"context"

	"tams/internal/auth"
)

type authContextKey struct{}

type requestInfoContextKey struct{}

// requestInfo is shared by the middleware chain of one request so outer
// layers can log what inner layers learned.
type requestInfo struct {
	ID      string
	Subject string
}

func contextWithPrincipal(ctx context.Context, principal auth.Principal) context.Context {
	if info := requestInfoFromContext(ctx); info != nil {
		info.Subject = principal.Subject
	}
	return context.WithValue(ctx, authContextKey{}, principal)
}

func principalFromContext(ctx context.Context) (auth.Principal, bool) {
	if ctx == nil {
		return auth.Principal{}, false
	}
	principal, ok := ctx.Value(authContextKey{}).(auth.Principal)
	return principal, ok
}

func contextWithRequestInfo(ctx context.Context, info *requestInfo) context.Context {
	return context.WithValue(ctx, requestInfoContextKey{}, info)
}

func requestInfoFromContext(ctx context.Context) *requestInfo {
	if ctx == nil {
		return nil
	}
	info, _ := ctx.Value(requestInfoContextKey{}).(*requestInfo)
	return info
}

func requestIDFromContext(ctx context.Context) string {
	if info := requestInfoFromContext(ctx); info != nil {
		return info.ID
	}
	return ""
}
