// Package auth resolves the bearer token forwarded to the task backend.
//
// Callers pass "authorization: Bearer <token>" metadata on each request. When
// absent, the token from ZS_BACKEND_TOKEN is used. The resolved token is
// attached to the request context for handlers.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AuthorizationKey is the metadata key carrying the bearer token.
const AuthorizationKey = "authorization"

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

const tokenKey = contextKey("bearer_token")

// ParseBearer extracts the token from an authorization value.
func ParseBearer(value string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrInvalidAuthorization
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidAuthorization
	}
	return token, nil
}

// Resolver attaches the caller's token, or the fallback, to each request.
type Resolver struct {
	fallback func() string
}

// NewResolver creates a resolver. fallback may be nil.
func NewResolver(fallback func() string) *Resolver {
	if fallback == nil {
		fallback = func() string { return "" }
	}
	return &Resolver{fallback: fallback}
}

// Resolve returns ctx carrying the request token.
func (r *Resolver) Resolve(ctx context.Context) (context.Context, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get(AuthorizationKey)
	if len(values) == 0 {
		return WithToken(ctx, r.fallback()), nil
	}
	token, err := ParseBearer(values[0])
	if err != nil {
		return ctx, err
	}
	return WithToken(ctx, token), nil
}

// UnaryInterceptor returns a gRPC interceptor that resolves tokens.
func (r *Resolver) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := r.Resolve(ctx)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(ctx, req)
	}
}

// StreamInterceptor is UnaryInterceptor for streaming calls.
func (r *Resolver) StreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := r.Resolve(ss.Context())
		if err != nil {
			return status.Error(codes.Unauthenticated, err.Error())
		}
		return handler(srv, &tokenStream{ServerStream: ss, ctx: ctx})
	}
}

type tokenStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tokenStream) Context() context.Context {
	return s.ctx
}

// WithToken returns ctx carrying token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext extracts the token. Returns "" if none was resolved.
func TokenFromContext(ctx context.Context) string {
	if token, ok := ctx.Value(tokenKey).(string); ok {
		return token
	}
	return ""
}

// Fingerprint identifies a token in logs without revealing it.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}
