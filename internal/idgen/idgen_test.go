package idgen_test

import (
	"context"
	"encoding/json"
	"testing"

	"eventhub/internal/apperr"
	"eventhub/internal/docstore"
	"eventhub/internal/docstore/memory"
	"eventhub/internal/idgen"
)

func TestParse(t *testing.T) {
	cases := []struct {
		prefix, id string
		want       int
		ok         bool
	}{
		{"U", "U001", 1, true},
		{"U", "U1234", 1234, true},
		{"VA", "VA012", 12, true},
		{"V", "VA001", 0, false},
		{"E", "E", 0, false},
		{"E", "E1x", 0, false},
		{"E", "e001", 0, false},
		{"G", "G-01", 0, false},
	}
	for _, tc := range cases {
		got, ok := idgen.Parse(tc.prefix, tc.id)
		if ok != tc.ok || got != tc.want {
			t.Errorf("Parse(%q, %q) = %d, %v; want %d, %v", tc.prefix, tc.id, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFormatPadsToWidth(t *testing.T) {
	if got := idgen.Format("E", 7); got != "E007" {
		t.Fatalf("got %q", got)
	}
	if got := idgen.Format("VA", 1234); got != "VA1234" {
		t.Fatalf("got %q", got)
	}
}

func TestValidate(t *testing.T) {
	if err := idgen.Validate(idgen.Event, "E010"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := idgen.Validate(idgen.Event, "G010"); !apperr.Is(err, apperr.KindInvalidID) {
		t.Fatalf("expected INVALID_ID_FORMAT, got %v", err)
	}
}

func TestMaxSequence(t *testing.T) {
	highest, skipped := idgen.MaxSequence("M", []string{"M002", "M010", "legacy", "M009"})
	if highest != 10 {
		t.Fatalf("expected 10, got %d", highest)
	}
	if len(skipped) != 1 || skipped[0] != "legacy" {
		t.Fatalf("unexpected skipped %v", skipped)
	}
}

func TestAllocatorNeverReusesDeletedIDs(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	alloc := idgen.New(nil)

	next := func() string {
		t.Helper()
		var id string
		err := store.RunInTx(ctx, func(tx docstore.Tx) error {
			var err error
			id, err = alloc.Next(ctx, tx, idgen.Guest)
			if err != nil {
				return err
			}
			return tx.Insert(ctx, docstore.Guests, id, json.RawMessage(`{}`))
		})
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		return id
	}

	if id := next(); id != "G001" {
		t.Fatalf("expected G001, got %s", id)
	}
	second := next()
	if err := store.RunInTx(ctx, func(tx docstore.Tx) error {
		return tx.Delete(ctx, docstore.Guests, second)
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if id := next(); id != "G003" {
		t.Fatalf("expected G003 after deleting %s, got %s", second, id)
	}
}

func TestAllocatorRespectsImportedIDs(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	alloc := idgen.New(nil)

	var id string
	err := store.RunInTx(ctx, func(tx docstore.Tx) error {
		if err := tx.Insert(ctx, docstore.VendorAssignments, "VA041", json.RawMessage(`{}`)); err != nil {
			return err
		}
		var err error
		id, err = alloc.Next(ctx, tx, idgen.VendorAssignment)
		return err
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if id != "VA042" {
		t.Fatalf("expected VA042, got %s", id)
	}
}

func TestAllocatorRolledBackWithTx(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	alloc := idgen.New(nil)

	_ = store.RunInTx(ctx, func(tx docstore.Tx) error {
		if _, err := alloc.Next(ctx, tx, idgen.User); err != nil {
			return err
		}
		return apperr.Validation("abort")
	})
	var id string
	if err := store.RunInTx(ctx, func(tx docstore.Tx) error {
		var err error
		id, err = alloc.Next(ctx, tx, idgen.User)
		return err
	}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if id != "U001" {
		t.Fatalf("aborted allocation must not consume a number, got %s", id)
	}
}
