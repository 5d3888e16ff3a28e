package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v76"
)

func TestFromStripe(t *testing.T) {
	pi := &stripe.PaymentIntent{
		ID:                 "pi_1",
		ClientSecret:       "secret",
		Amount:             5000,
		Currency:           stripe.CurrencyUSD,
		Status:             stripe.PaymentIntentStatusSucceeded,
		Metadata:           map[string]string{MetadataBookingID: "VA001"},
		PaymentMethodTypes: []string{"link"},
	}
	in := fromStripe(pi)
	if in.Status != StatusSucceeded || in.Amount != 5000 || in.Currency != "usd" {
		t.Fatalf("unexpected intent %+v", in)
	}
	if in.Metadata[MetadataBookingID] != "VA001" {
		t.Fatalf("metadata lost")
	}
	if in.Method != "link" {
		t.Fatalf("expected method from payment method types, got %q", in.Method)
	}

	pi.PaymentMethod = &stripe.PaymentMethod{Type: stripe.PaymentMethodTypeCard}
	if got := fromStripe(pi).Method; got != "card" {
		t.Fatalf("expected attached method type, got %q", got)
	}
}

func TestDisabled(t *testing.T) {
	var g Gateway = Disabled{}
	if _, err := g.CreateIntent(context.Background(), 1, "usd", nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := g.RetrieveIntent(context.Background(), "pi_1"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
