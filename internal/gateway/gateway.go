// Package gateway runs remote operations with the current access token and
// renews the session at most once per logical call when the service
// rejects the credential.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mmcdole/rolo/internal/domain"
)

// Tokens is the slice of the session manager the gateway needs
type Tokens interface {
	// AccessToken returns the current access token, if a session exists
	AccessToken() (string, bool)

	// RefreshIfStale renews the session unless the token that was rejected
	// has already been replaced. Concurrent callers share one renewal.
	RefreshIfStale(ctx context.Context, rejected string) (domain.Session, error)
}

// Attempt is the invocation context of one try of an operation
type Attempt struct {
	Number      int    // 1 for the first try, 2 for the retry after renewal
	AccessToken string // "" when no session exists
	RequestID   string // shared by all attempts of one logical call
}

// Operation is one logical remote call. It must be safe to invoke twice.
type Operation func(ctx context.Context, attempt Attempt) error

// Gateway wraps every authenticated call
type Gateway struct {
	tokens Tokens
	logger *slog.Logger
}

// New creates a gateway backed by the given token source
func New(tokens Tokens, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{tokens: tokens, logger: logger}
}

// Execute runs op with the current token. An unauthorized first attempt
// triggers one session renewal followed by exactly one retry. Renewal
// failure surfaces domain.ErrAuthExpired; an unauthorized retry surfaces
// domain.ErrAuthRejected. All other errors are returned as-is.
func (g *Gateway) Execute(ctx context.Context, name string, op Operation) error {
	requestID := uuid.NewString()
	ctx = WithRequestID(ctx, requestID)

	token, _ := g.tokens.AccessToken()
	err := op(ctx, Attempt{Number: 1, AccessToken: token, RequestID: requestID})
	if !errors.Is(err, domain.ErrUnauthorized) {
		return err
	}

	g.logger.Debug("credential rejected, renewing session", "op", name, "requestID", requestID)

	sess, err := g.tokens.RefreshIfStale(ctx, token)
	if err != nil {
		g.logger.Warn("session renewal failed", "op", name, "requestID", requestID, "error", err)
		if errors.Is(err, domain.ErrAuthExpired) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrAuthExpired, err)
	}

	err = op(ctx, Attempt{Number: 2, AccessToken: sess.AccessToken, RequestID: requestID})
	if errors.Is(err, domain.ErrUnauthorized) {
		g.logger.Warn("credential rejected after renewal", "op", name, "requestID", requestID)
		return fmt.Errorf("%s: %w: %w", name, domain.ErrAuthRejected, err)
	}
	return err
}

// Call is Execute for operations that produce a value
func Call[T any](ctx context.Context, g *Gateway, name string, fn func(ctx context.Context, attempt Attempt) (T, error)) (T, error) {
	var out T
	err := g.Execute(ctx, name, func(ctx context.Context, attempt Attempt) error {
		v, err := fn(ctx, attempt)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

type requestIDKey struct{}

// WithRequestID attaches a correlation id to ctx
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the correlation id attached by the gateway, or ""
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
