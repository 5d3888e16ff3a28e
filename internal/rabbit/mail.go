package rabbit

import (
	"context"
	"encoding/json"
	"fmt"

	"eventhub/internal/mailer"
)

// MailJob is the queued envelope around an email.
type MailJob struct {
	Message mailer.Message `json:"message"`
	Attempt int            `json:"attempt"`
}

// MailSender hands emails to the queue instead of sending them inline.
type MailSender struct {
	queue Queue
}

var _ mailer.Sender = (*MailSender)(nil)

func NewMailSender(q Queue) *MailSender {
	return &MailSender{queue: q}
}

func (s *MailSender) Send(ctx context.Context, msg mailer.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Enqueue(MailJob{Message: msg}, 0)
}

func (s *MailSender) Enqueue(job MailJob, delaySeconds int) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode mail job: %w", err)
	}
	if err := s.queue.Publish(body, delaySeconds); err != nil {
		return fmt.Errorf("enqueue mail job: %w", err)
	}
	return nil
}
