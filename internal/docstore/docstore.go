// Package docstore defines the transactional document store the repositories
// run on. Documents are JSON objects keyed by a string id and grouped into
// collections; a small set of top-level fields carry unique indexes.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

type Collection string

const (
	Users             Collection = "users"
	Events            Collection = "events"
	Guests            Collection = "guests"
	Budgets           Collection = "budgets"
	VendorProfiles    Collection = "vendor_profiles"
	VendorAssignments Collection = "vendor_assignments"
	Messages          Collection = "messages"
	Payments          Collection = "payments"
)

// Collections lists every collection the stores provision.
var Collections = []Collection{
	Users, Events, Guests, Budgets, VendorProfiles, VendorAssignments, Messages, Payments,
}

// UniqueIndex enforces that no two documents of Collection share a non-empty
// value of the top-level JSON Field.
type UniqueIndex struct {
	Collection Collection
	Field      string
}

var UniqueIndexes = []UniqueIndex{
	{Collection: Users, Field: "email"},
	{Collection: Budgets, Field: "eventId"},
	{Collection: VendorProfiles, Field: "userId"},
	{Collection: Payments, Field: "transactionId"},
}

var (
	ErrNotFound = errors.New("document not found")
	ErrReadOnly = errors.New("read-only transaction")
)

type DuplicateKeyError struct {
	Collection Collection
	Field      string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate %s.%s", e.Collection, e.Field)
}

// Filter matches documents whose top-level fields equal the given scalar
// values. An empty filter matches everything.
type Filter map[string]any

// Tx is a unit of work. Nothing done through a Tx is visible to others until
// the surrounding RunInTx returns nil.
type Tx interface {
	Insert(ctx context.Context, c Collection, id string, doc json.RawMessage) error
	Get(ctx context.Context, c Collection, id string) (json.RawMessage, error)
	Replace(ctx context.Context, c Collection, id string, doc json.RawMessage) error
	Delete(ctx context.Context, c Collection, id string) error
	Find(ctx context.Context, c Collection, f Filter) ([]json.RawMessage, error)
	IDs(ctx context.Context, c Collection) ([]string, error)
	// NextSequence atomically sets the named counter to max(counter, floor)+1
	// and returns the new value.
	NextSequence(ctx context.Context, name string, floor int) (int, error)
}

type Store interface {
	// RunInTx commits every write made by fn when it returns nil and discards
	// all of them otherwise.
	RunInTx(ctx context.Context, fn func(Tx) error) error
	// View runs fn against a consistent snapshot; writes fail with ErrReadOnly.
	View(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// UniqueFields returns the unique-indexed fields of c.
func UniqueFields(c Collection) []string {
	var out []string
	for _, idx := range UniqueIndexes {
		if idx.Collection == c {
			out = append(out, idx.Field)
		}
	}
	return out
}
