package push

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/coltonswapp/nest-note-sub009/pkg/logger"
)

// ErrInvalidToken marks a send failure where the transport reported the
// device token as permanently invalid or unregistered. Callers should prune
// the token; this is not a delivery failure.
var ErrInvalidToken = errors.New("push: token invalid")

// Message is one notification addressed to a single device token.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Sender delivers one message to one token, best effort. Implementations
// return an error wrapping ErrInvalidToken when the token should be pruned.
type Sender interface {
	Send(ctx context.Context, token string, msg Message) error
}

// IsInvalidToken reports whether the send failure identifies a dead token.
func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}

// LoggingSender is a stand-in transport used when push delivery is disabled.
// It logs each message instead of sending it.
type LoggingSender struct {
	log *zap.Logger
}

// NewLoggingSender constructs a LoggingSender.
func NewLoggingSender() *LoggingSender {
	return &LoggingSender{log: logger.WithModule("push")}
}

// Send logs the message and reports success.
func (s *LoggingSender) Send(ctx context.Context, token string, msg Message) error {
	s.log.Debug("push delivery disabled; dropping message",
		zap.String("token_suffix", tokenSuffix(token)),
		zap.String("title", msg.Title),
	)
	return nil
}

// tokenSuffix keeps logs useful without writing whole device tokens to them.
func tokenSuffix(token string) string {
	const keep = 6
	if len(token) <= keep {
		return token
	}
	return "..." + token[len(token)-keep:]
}
