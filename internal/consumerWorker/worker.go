package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"eventhub/internal/mailer"
	"eventhub/internal/rabbit"
)

const (
	defaultMaxAttempts  = 5
	defaultRetryDelayS  = 30
	maxRetryDelayFactor = 16
)

// Reader drains the mail queue and delivers through an SMTP sender. Failed
// deliveries are re-published with a growing x-delay until MaxAttempts.
type Reader struct {
	queue       rabbit.Queue
	retry       *rabbit.MailSender
	sender      mailer.Sender
	log         *zerolog.Logger
	MaxAttempts int
	RetryDelayS int
	done        chan struct{}
	cancel      context.CancelFunc
}

func NewReader(q rabbit.Queue, sender mailer.Sender, log *zerolog.Logger) *Reader {
	return &Reader{
		queue:       q,
		retry:       rabbit.NewMailSender(q),
		sender:      sender,
		log:         log,
		MaxAttempts: defaultMaxAttempts,
		RetryDelayS: defaultRetryDelayS,
		done:        make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.log.Info().Msg("mail reader started")

	go func() {
		defer close(r.done)

		if err := r.queue.Consume(func(body []byte) error { return r.handle(cctx, body) }); err != nil {
			r.log.Error().Err(err).Msg("failed to start consuming")
			return
		}

		<-cctx.Done()
		r.log.Info().Msg("mail reader stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

// handle always acks. A job whose retry cannot be scheduled is dropped, since
// requeueing it as is would redeliver it at once with the same attempt count.
func (r *Reader) handle(ctx context.Context, body []byte) error {
	var job rabbit.MailJob
	if err := json.Unmarshal(body, &job); err != nil {
		r.log.Error().Err(err).Str("body", string(body)).Msg("dropping undecodable mail job")
		return nil
	}

	err := r.sender.Send(ctx, job.Message)
	if err == nil {
		return nil
	}

	job.Attempt++
	if job.Attempt >= r.MaxAttempts {
		r.log.Error().Err(err).
			Str("to", job.Message.To).
			Int("attempts", job.Attempt).
			Msg("giving up on email")
		return nil
	}

	delay := r.RetryDelayS * min(1<<(job.Attempt-1), maxRetryDelayFactor)
	r.log.Warn().Err(err).
		Str("to", job.Message.To).
		Int("attempt", job.Attempt).
		Int("delay_s", delay).
		Msg("email failed, scheduling retry")
	if err := r.retry.Enqueue(job, delay); err != nil {
		r.log.Error().Err(err).
			Str("to", job.Message.To).
			Int("attempt", job.Attempt).
			Msg("failed to schedule email retry, dropping")
	}
	return nil
}
