package guard

import (
	"context"
	"testing"

	"eventhub/internal/apperr"
	"eventhub/internal/model"
)

func TestLoadOwned(t *testing.T) {
	events := map[string]model.Event{"E001": {ID: "E001", UserID: "U001"}}
	load := func(_ context.Context, id string) (model.Event, error) {
		ev, ok := events[id]
		if !ok {
			return model.Event{}, apperr.NotFound("event", id)
		}
		return ev, nil
	}
	ctx := context.Background()

	if _, err := LoadOwned(ctx, load, "E001", Principal{UserID: "U001"}); err != nil {
		t.Fatalf("owner rejected: %v", err)
	}
	if _, err := LoadOwned(ctx, load, "E001", Principal{UserID: "U002"}); !apperr.Is(err, apperr.KindNotAuthorized) {
		t.Fatalf("expected NOT_AUTHORIZED, got %v", err)
	}
	if _, err := LoadOwned(ctx, load, "E002", Principal{UserID: "U002"}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("missing entity must be NOT_FOUND before ownership, got %v", err)
	}
}

func TestAssertRole(t *testing.T) {
	p := Principal{UserID: "U001", Role: model.RoleVendor}
	if err := AssertRole(p, model.RoleVendor); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if err := AssertRole(p, model.RoleUser, model.RoleAdmin); !apperr.Is(err, apperr.KindNotAuthorized) {
		t.Fatalf("expected NOT_AUTHORIZED, got %v", err)
	}
}
