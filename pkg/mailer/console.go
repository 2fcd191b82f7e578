package mailer

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ConsoleSender writes messages to the log instead of sending them. Used in
// development so OTPs can be read from the terminal.
type ConsoleSender struct {
	appName string
	logger  *zap.Logger

	mu   sync.Mutex
	sent []Message
}

func NewConsoleSender(appName string, logger *zap.Logger) *ConsoleSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSender{appName: appName, logger: logger}
}

func (s *ConsoleSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := msg.Render(s.appName); err != nil {
		return err
	}
	s.mu.Lock()
	s.sent = append(s.sent, *msg)
	s.mu.Unlock()

	s.logger.Info("email (console driver)",
		zap.String("to", msg.To),
		zap.String("subject", subjectWithPrefix(s.appName, msg.Subject)),
		zap.String("body", msg.Text),
	)
	return nil
}

// Sent returns a copy of everything delivered so far.
func (s *ConsoleSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
