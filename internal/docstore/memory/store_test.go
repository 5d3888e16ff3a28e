package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"eventhub/internal/docstore"
)

func insert(t *testing.T, s *Store, c docstore.Collection, id, doc string) error {
	t.Helper()
	return s.RunInTx(context.Background(), func(tx docstore.Tx) error {
		return tx.Insert(context.Background(), c, id, json.RawMessage(doc))
	})
}

func TestRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(tx docstore.Tx) error {
		if err := tx.Insert(ctx, docstore.Events, "E001", json.RawMessage(`{"name":"x"}`)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	err = s.View(ctx, func(tx docstore.Tx) error {
		_, err := tx.Get(ctx, docstore.Events, "E001")
		return err
	})
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected the insert to be rolled back, got %v", err)
	}
}

func TestUniqueIndex(t *testing.T) {
	s := NewStore()
	if err := insert(t, s, docstore.Users, "U001", `{"email":"a@example.com"}`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := insert(t, s, docstore.Users, "U002", `{"email":"a@example.com"}`)
	var dup *docstore.DuplicateKeyError
	if !errors.As(err, &dup) || dup.Field != "email" {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	if err := insert(t, s, docstore.Users, "U003", `{"email":""}`); err != nil {
		t.Fatalf("empty values are not indexed: %v", err)
	}
	if err := insert(t, s, docstore.Users, "U004", `{"email":""}`); err != nil {
		t.Fatalf("empty values are not indexed: %v", err)
	}
	if err := insert(t, s, docstore.Users, "U001", `{"email":"b@example.com"}`); !errors.As(err, &dup) {
		t.Fatalf("expected duplicate id, got %v", err)
	}
}

func TestReplaceMayKeepOwnUniqueValue(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if err := insert(t, s, docstore.Users, "U001", `{"email":"a@example.com","name":"A"}`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := s.RunInTx(ctx, func(tx docstore.Tx) error {
		return tx.Replace(ctx, docstore.Users, "U001", json.RawMessage(`{"email":"a@example.com","name":"B"}`))
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
}

func TestViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	err := s.View(ctx, func(tx docstore.Tx) error {
		return tx.Insert(ctx, docstore.Events, "E001", json.RawMessage(`{}`))
	})
	if !errors.Is(err, docstore.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	err = s.View(ctx, func(tx docstore.Tx) error {
		_, err := tx.NextSequence(ctx, "event", 0)
		return err
	})
	if !errors.Is(err, docstore.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestFindMatchesTypedValues(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = insert(t, s, docstore.Guests, "G001", `{"eventId":"E001","isInvited":true,"count":2}`)
	_ = insert(t, s, docstore.Guests, "G002", `{"eventId":"E001","isInvited":false,"count":2}`)
	_ = insert(t, s, docstore.Guests, "G003", `{"eventId":"E002","isInvited":true,"count":3}`)

	type eventID string
	err := s.View(ctx, func(tx docstore.Tx) error {
		docs, err := tx.Find(ctx, docstore.Guests, docstore.Filter{"eventId": eventID("E001"), "isInvited": true})
		if err != nil {
			return err
		}
		if len(docs) != 1 {
			t.Fatalf("expected 1 match, got %d", len(docs))
		}
		docs, err = tx.Find(ctx, docstore.Guests, docstore.Filter{"count": 2})
		if err != nil {
			return err
		}
		if len(docs) != 2 {
			t.Fatalf("expected 2 numeric matches, got %d", len(docs))
		}
		all, err := tx.Find(ctx, docstore.Guests, nil)
		if len(all) != 3 {
			t.Fatalf("empty filter matches everything, got %d", len(all))
		}
		return err
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestNextSequenceRaisesToFloor(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	var got []int
	err := s.RunInTx(ctx, func(tx docstore.Tx) error {
		for _, floor := range []int{0, 0, 10, 3} {
			n, err := tx.NextSequence(ctx, "guest", floor)
			if err != nil {
				return err
			}
			got = append(got, n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("sequence: %v", err)
	}
	want := []int{1, 2, 11, 12}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewStore()
	err := s.RunInTx(ctx, func(docstore.Tx) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
