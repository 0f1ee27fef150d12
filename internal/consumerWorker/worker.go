package consumerWorker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"eventform/internal/mailer"
	"eventform/internal/metrics"
	"eventform/internal/notify"
	"eventform/internal/rabbit"
)

type Reader struct {
	RMQ         rabbit.Consumer
	sender      mailer.Sender
	sendTimeout time.Duration
	log         *zerolog.Logger
	metrics     *metrics.Metrics
	done        chan struct{}
	cancel      context.CancelFunc
}

func NewReader(rmq rabbit.Consumer, sender mailer.Sender, sendTimeout time.Duration, log *zerolog.Logger, m *metrics.Metrics) *Reader {
	return &Reader{
		RMQ:         rmq,
		sender:      sender,
		sendTimeout: sendTimeout,
		log:         log,
		metrics:     m,
		done:        make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.log.Info().Msg("🐇 RabbitMQ Reader started")

	go func() {
		defer close(r.done)

		if err := r.RMQ.Consume(func(body []byte) error { return r.Handle(cctx, body) }); err != nil {
			r.log.Error().Err(err).Msg("Failed to start consuming")
			return
		}

		<-cctx.Done()
		r.log.Info().Msg("🛑 RabbitMQ Reader stopped by context")
	}()
}

// Handle makes one delivery attempt for a queued notification. Only an
// undecodable payload is reported as an error; send failures are logged.
func (r *Reader) Handle(ctx context.Context, body []byte) error {
	var msg mailer.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		r.log.Error().Err(err).Msgf("Failed to unmarshal message: %s", string(body))
		return fmt.Errorf("decode notification: %w", err)
	}

	r.log.Info().
		Str("kind", msg.Kind).
		Str("application_id", msg.RefID).
		Msg("📩 Received notification from RabbitMQ")

	notify.Deliver(ctx, r.sender, msg, r.sendTimeout, r.log, r.metrics)
	return nil
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
