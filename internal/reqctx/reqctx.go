// Package reqctx carries the per-session identity through a context.
package reqctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type key int

const sessionKey key = 0

// SessionContext identifies one scraping session
type SessionContext struct {
	SessionID string
	URL       string
	StartTime time.Time
}

// WithSession returns a context carrying a fresh session identity for url
func WithSession(ctx context.Context, url string) context.Context {
	return context.WithValue(ctx, sessionKey, &SessionContext{
		SessionID: uuid.NewString(),
		URL:       url,
		StartTime: time.Now(),
	})
}

// FromContext returns the session identity, or an "unknown" placeholder
func FromContext(ctx context.Context) *SessionContext {
	if sc, ok := ctx.Value(sessionKey).(*SessionContext); ok {
		return sc
	}
	return &SessionContext{
		SessionID: "unknown",
		StartTime: time.Now(),
	}
}

// SessionError wraps an error with the session it happened in
type SessionError struct {
	SessionID string
	Err       error
}

// Error implements the error interface
func (e *SessionError) Error() string {
	return fmt.Sprintf("[%s] %v", e.SessionID, e.Err)
}

// Unwrap returns the underlying error
func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewSessionError creates a new SessionError from context
func NewSessionError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	return &SessionError{
		SessionID: FromContext(ctx).SessionID,
		Err:       err,
	}
}
