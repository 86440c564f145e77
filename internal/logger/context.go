package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for one NM/SS/client
// operation.
type LogContext struct {
	TraceID     string // correlates a client command across NM->SS hops
	Component   string // NM, SS, CLIENT
	Op          string // command name: CREATE, WRITE_BEGIN, REGISTER, ...
	User        string // acting username, if known
	Filename    string
	SessionID   string // opaque per-connection token
	SentenceIdx int
	WordIdx     int
	ClientIP    string
	StartTime   time.Time
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a freshly accepted connection.
func NewLogContext(component, clientIP string) *LogContext {
	return &LogContext{
		Component: component,
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithOp returns a copy with the operation name set
func (lc *LogContext) WithOp(op string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Op = op
	}
	return clone
}

// WithUser returns a copy with the acting user set
func (lc *LogContext) WithUser(user string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.User = user
	}
	return clone
}

// WithFile returns a copy with the target filename set
func (lc *LogContext) WithFile(filename string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Filename = filename
	}
	return clone
}

// WithSentence returns a copy with the sentence/word indices set
func (lc *LogContext) WithSentence(sidx, widx int) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SentenceIdx = sidx
		clone.WordIdx = widx
	}
	return clone
}

// WithSession returns a copy with the session token set
func (lc *LogContext) WithSession(sessionID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SessionID = sessionID
	}
	return clone
}

// WithTrace returns a copy with the trace id set
func (lc *LogContext) WithTrace(traceID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
