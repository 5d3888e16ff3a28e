package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"eventhub/internal/apperr"
	"eventhub/internal/guard"
	"eventhub/internal/mailer"
	"eventhub/internal/model"
	"eventhub/internal/payment"
	"eventhub/internal/repo"
)

type RecordPaymentInput struct {
	AssignmentID  string `json:"assignmentId" validate:"required"`
	Amount        int64  `json:"amount" validate:"positive,max=100000000000"`
	Currency      string `json:"currency" validate:"required,len=3"`
	Method        string `json:"method" validate:"notblank"`
	TransactionID string `json:"transactionId" validate:"notblank"`
}

// PaymentIntent is what the client needs to finish a card payment.
type PaymentIntent struct {
	IntentID     string `json:"intentId"`
	ClientSecret string `json:"clientSecret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// CreatePaymentIntent opens a card payment for a completed booking.
func (s *Service) CreatePaymentIntent(ctx context.Context, p guard.Principal, assignmentID string) (pi PaymentIntent, err error) {
	defer s.track("create_payment_intent", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return pi, err
	}

	var a model.VendorAssignment
	err = s.inView(ctx, func(r *repo.Set) error {
		a, err = guard.LoadOwned(ctx, r.Assignments.FindByID, assignmentID, p)
		return err
	})
	if err != nil {
		return pi, err
	}
	if a.Status != model.AssignmentCompleted {
		return pi, apperr.Validation("only completed assignments can be paid")
	}

	intent, err := s.payments.CreateIntent(ctx, a.Amount, s.cfg.Currency, map[string]string{
		payment.MetadataBookingID: a.ID,
	})
	if err != nil {
		return pi, gatewayError(err)
	}
	s.log.Info().Str("assignment_id", a.ID).Str("intent_id", intent.ID).Msg("payment intent created")
	return PaymentIntent{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
	}, nil
}

// ConfirmPayment records a payment the gateway reports as succeeded. The
// intent id is the idempotency key, so confirming twice is harmless.
func (s *Service) ConfirmPayment(ctx context.Context, p guard.Principal, assignmentID, intentID string) (pay model.Payment, err error) {
	defer s.track("confirm_payment", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return pay, err
	}

	err = s.inView(ctx, func(r *repo.Set) error {
		_, err := guard.LoadOwned(ctx, r.Assignments.FindByID, assignmentID, p)
		return err
	})
	if err != nil {
		return pay, err
	}

	intent, err := s.payments.RetrieveIntent(ctx, intentID)
	if err != nil {
		return pay, gatewayError(err)
	}
	if intent.Status != payment.StatusSucceeded {
		return pay, apperr.Validation("payment has not succeeded: " + string(intent.Status))
	}
	if intent.Metadata[payment.MetadataBookingID] != assignmentID {
		return pay, apperr.Validation("payment does not belong to this assignment")
	}

	method := intent.Method
	if method == "" {
		method = "card"
	}
	pay, _, err = s.RecordPayment(ctx, RecordPaymentInput{
		AssignmentID:  assignmentID,
		Amount:        intent.Amount,
		Currency:      intent.Currency,
		Method:        method,
		TransactionID: intent.ID,
	})
	return pay, err
}

// RecordPayment appends a payment to the ledger and marks the assignment
// Paid, in one transaction. A transaction id that is already recorded
// returns the existing entry with created=false and changes nothing.
func (s *Service) RecordPayment(ctx context.Context, in RecordPaymentInput) (pay model.Payment, created bool, err error) {
	defer s.track("record_payment", time.Now(), &err)

	in.Currency = strings.ToLower(strings.TrimSpace(in.Currency))
	if err := validate(ctx, in); err != nil {
		return pay, false, err
	}
	var outbox []mailer.Message
	err = s.inTx(ctx, func(r *repo.Set) error {
		// The assignment row lock serializes concurrent confirmations, so the
		// ledger is read after it.
		d, err := r.AssignmentDetails(ctx, in.AssignmentID, repo.WithAll)
		if err != nil {
			return err
		}

		existing, err := r.Payments.FindByTransaction(ctx, in.TransactionID)
		switch {
		case err == nil:
			if existing.BookingID != in.AssignmentID {
				return apperr.Validation("transactionId is recorded for another assignment")
			}
			pay = existing
			return nil
		case !isNotFound(err):
			return err
		}

		if d.Status == model.AssignmentPaid {
			return apperr.Validation("assignment is already paid")
		}
		if in.Amount != d.Amount {
			return apperr.Validation("amount does not match the assignment amount")
		}

		pay = model.Payment{
			BookingID:     d.ID,
			Amount:        in.Amount,
			Currency:      in.Currency,
			PaymentMethod: in.Method,
			TransactionID: in.TransactionID,
			Status:        string(payment.StatusSucceeded),
			CreatedAt:     s.now().UTC(),
		}
		if err := r.Payments.Create(ctx, &pay); err != nil {
			return err
		}
		msg, err := s.transition(ctx, r, &d, model.AssignmentPaid, model.RoleUser)
		if err != nil {
			return err
		}
		created = true
		outbox = append(outbox, msg)
		return nil
	})
	if err != nil {
		return model.Payment{}, false, err
	}
	if created {
		s.log.Info().Str("payment_id", pay.ID).Str("assignment_id", pay.BookingID).Str("transaction_id", pay.TransactionID).Msg("payment recorded")
		s.notify(ctx, outbox...)
	} else {
		s.log.Info().Str("transaction_id", in.TransactionID).Msg("payment already recorded")
	}
	return pay, created, nil
}

func (s *Service) ListPayments(ctx context.Context, p guard.Principal, assignmentID string) (out []model.Payment, err error) {
	defer s.track("list_payments", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return out, err
	}

	err = s.inView(ctx, func(r *repo.Set) error {
		d, err := r.AssignmentDetails(ctx, assignmentID, repo.WithVendor)
		if err != nil {
			return err
		}
		if _, err := partyRole(d, p); err != nil {
			return err
		}
		out, err = r.Payments.FindByBooking(ctx, assignmentID)
		return err
	})
	return out, err
}

func gatewayError(err error) error {
	if errors.Is(err, payment.ErrNotConfigured) {
		return apperr.Wrap(apperr.KindValidation, err, "online payments are not enabled")
	}
	return apperr.Server(err, "payment gateway request failed")
}
