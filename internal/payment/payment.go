// Package payment wraps the card payment provider behind a small Gateway
// interface.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type Status string

const (
	StatusSucceeded      Status = "succeeded"
	StatusProcessing     Status = "processing"
	StatusRequiresAction Status = "requires_action"
	StatusCanceled       Status = "canceled"
)

// MetadataBookingID links an intent to the vendor assignment it pays for.
const MetadataBookingID = "bookingId"

var ErrNotConfigured = errors.New("payment gateway is not configured")

type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       Status
	Method       string
	Metadata     map[string]string
}

type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (Intent, error)
	RetrieveIntent(ctx context.Context, id string) (Intent, error)
}

type StripeGateway struct {
	api *client.API
}

var _ Gateway = (*StripeGateway)(nil)

func NewStripeGateway(secretKey string) *StripeGateway {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeGateway{api: sc}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	return fromStripe(pi), nil
}

func (g *StripeGateway) RetrieveIntent(ctx context.Context, id string) (Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return Intent{}, fmt.Errorf("retrieve payment intent %s: %w", id, err)
	}
	return fromStripe(pi), nil
}

func fromStripe(pi *stripe.PaymentIntent) Intent {
	in := Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       Status(pi.Status),
		Metadata:     pi.Metadata,
		Method:       "card",
	}
	if pi.PaymentMethod != nil && pi.PaymentMethod.Type != "" {
		in.Method = string(pi.PaymentMethod.Type)
	} else if len(pi.PaymentMethodTypes) > 0 {
		in.Method = pi.PaymentMethodTypes[0]
	}
	return in
}

// Disabled rejects every call. It is wired when no provider key is set.
type Disabled struct{}

func (Disabled) CreateIntent(context.Context, int64, string, map[string]string) (Intent, error) {
	return Intent{}, ErrNotConfigured
}

func (Disabled) RetrieveIntent(context.Context, string) (Intent, error) {
	return Intent{}, ErrNotConfigured
}
