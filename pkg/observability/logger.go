package observability

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/platinummonkey/rolegate/pkg/contextkeys"
	"github.com/sirupsen/logrus"
)

// ParseLevel converts a config string into a logrus level, defaulting to info
func ParseLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

// NewLogger creates a JSON logger writing to output (stdout when nil)
func NewLogger(level string, output io.Writer) *logrus.Logger {
	if output == nil {
		output = os.Stdout
	}

	logger := logrus.New()
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(ParseLevel(level))
	return logger
}

// WithLogger adds a request-scoped entry to the context
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return contextkeys.WithLogger(ctx, entry)
}

var fallback = logrus.NewEntry(logrus.StandardLogger())

// FromContext returns the request-scoped entry, enriched with request and user IDs
// and the active trace
func FromContext(ctx context.Context) *logrus.Entry {
	entry, ok := ctx.Value(contextkeys.LoggerKey).(*logrus.Entry)
	if !ok || entry == nil {
		entry = fallback
		if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
			entry = entry.WithField("request_id", requestID)
		}
	}

	if userID := contextkeys.GetUserID(ctx); userID != "" {
		entry = entry.WithField("user_id", userID)
	}
	if fields := TraceFields(ctx); len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	return entry
}
