package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/attendease-api/pkg/jobs"
	"github.com/noah-isme/attendease-api/pkg/mailer"
)

const mailJobType = "mail.send"

// MailService delivers e-mail either inline (OTPs, where the caller must know
// the outcome) or through a background queue with retries (welcome mail).
type MailService struct {
	sender  mailer.Sender
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewMailService wires a sender to a worker queue. The queue is idle until
// Start is called; Enqueue falls back to inline delivery when it is not running.
func NewMailService(sender mailer.Sender, queueCfg jobs.QueueConfig, metrics *MetricsService, logger *zap.Logger) *MailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MailService{sender: sender, metrics: metrics, logger: logger}
	if queueCfg.Logger == nil {
		queueCfg.Logger = logger
	}
	s.queue = jobs.NewQueue("mail", s.handle, queueCfg)
	return s
}

// Start launches the delivery workers.
func (s *MailService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains queued mail, giving up when ctx expires.
func (s *MailService) Stop(ctx context.Context) error {
	return s.queue.Stop(ctx)
}

// Stats exposes queue counters.
func (s *MailService) Stats() jobs.Stats {
	return s.queue.Stats()
}

// SendNow delivers msg synchronously.
func (s *MailService) SendNow(ctx context.Context, msg *mailer.Message) error {
	err := s.sender.Send(ctx, msg)
	s.metrics.RecordMail(msg.Template, err)
	return err
}

// Enqueue schedules msg for background delivery. When the queue is full or
// not running the message is sent inline instead of being lost.
func (s *MailService) Enqueue(ctx context.Context, msg *mailer.Message) error {
	err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: mailJobType, Payload: msg})
	if err == nil {
		return nil
	}
	if errors.Is(err, jobs.ErrQueueFull) || errors.Is(err, jobs.ErrQueueClosed) {
		s.logger.Warn("mail queue unavailable, sending inline", zap.String("to", msg.To), zap.Error(err))
		return s.SendNow(ctx, msg)
	}
	return err
}

func (s *MailService) handle(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(*mailer.Message)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	return s.SendNow(ctx, msg)
}
