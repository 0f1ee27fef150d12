package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"eventform/internal/mailer"
	"eventform/internal/metrics"
)

// Pool delivers queued messages with a fixed number of workers. Each message
// gets exactly one send attempt.
type Pool struct {
	sender      mailer.Sender
	jobs        chan mailer.Message
	workers     int
	sendTimeout time.Duration
	log         *zerolog.Logger
	metrics     *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(sender mailer.Sender, workers, queueSize int, sendTimeout time.Duration, log *zerolog.Logger, m *metrics.Metrics) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		sender:      sender,
		jobs:        make(chan mailer.Message, queueSize),
		workers:     workers,
		sendTimeout: sendTimeout,
		log:         log,
		metrics:     m,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for msg := range p.jobs {
				Deliver(ctx, p.sender, msg, p.sendTimeout, p.log, p.metrics)
			}
		}()
	}
	p.log.Info().Int("workers", p.workers).Msg("📬 Notification pool started")
}

func (p *Pool) Enqueue(ctx context.Context, msg mailer.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrQueueClosed
	}
	select {
	case p.jobs <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new messages and waits for the queued ones to be attempted.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info().Msg("🛑 Notification pool stopped")
}

// Deliver makes one send attempt and logs the outcome.
func Deliver(ctx context.Context, sender mailer.Sender, msg mailer.Message, timeout time.Duration, log *zerolog.Logger, m *metrics.Metrics) {
	sendCtx := context.WithoutCancel(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(sendCtx, timeout)
		defer cancel()
	}

	if err := sender.Send(sendCtx, msg); err != nil {
		log.Warn().Err(err).
			Str("kind", msg.Kind).
			Str("application_id", msg.RefID).
			Msg("Failed to send notification on e-mail")
		m.ObserveNotification(msg.Kind, "failed")
		return
	}
	m.ObserveNotification(msg.Kind, "sent")
}
