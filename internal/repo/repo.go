// Package repo provides typed repositories over a docstore transaction.
// Every lookup returns (T, error); a missing document is an apperr NotFound.
package repo

import (
	"context"
	"encoding/json"
	"errors"

	"eventhub/internal/apperr"
	"eventhub/internal/docstore"
	"eventhub/internal/idgen"
	"eventhub/internal/model"
)

// Set groups the repositories that share one transaction.
type Set struct {
	Users       *Users
	Events      *Events
	Guests      *Guests
	Budgets     *Budgets
	Vendors     *VendorProfiles
	Assignments *VendorAssignments
	Messages    *Messages
	Payments    *Payments
}

func New(tx docstore.Tx, ids *idgen.Allocator) *Set {
	return &Set{
		Users:       &Users{newCollection[model.User](tx, ids, idgen.User, "user")},
		Events:      &Events{newCollection[model.Event](tx, ids, idgen.Event, "event")},
		Guests:      &Guests{newCollection[model.Guest](tx, ids, idgen.Guest, "guest")},
		Budgets:     &Budgets{newCollection[model.Budget](tx, ids, idgen.Budget, "budget")},
		Vendors:     &VendorProfiles{newCollection[model.VendorProfile](tx, ids, idgen.VendorProfile, "vendor profile")},
		Assignments: &VendorAssignments{newCollection[model.VendorAssignment](tx, ids, idgen.VendorAssignment, "vendor assignment")},
		Messages:    &Messages{newCollection[model.Message](tx, ids, idgen.Message, "message")},
		Payments: &Payments{collection[model.Payment]{
			tx: tx, coll: docstore.Payments, entity: "payment",
		}},
	}
}

type collection[T any] struct {
	tx     docstore.Tx
	ids    *idgen.Allocator
	kind   idgen.Kind
	coll   docstore.Collection
	entity string
}

func newCollection[T any](tx docstore.Tx, ids *idgen.Allocator, kind idgen.Kind, entity string) collection[T] {
	return collection[T]{tx: tx, ids: ids, kind: kind, coll: kind.Collection, entity: entity}
}

func (c collection[T]) nextID(ctx context.Context) (string, error) {
	id, err := c.ids.Next(ctx, c.tx, c.kind)
	if err != nil {
		return "", apperr.Server(err, "allocate "+c.entity+" id")
	}
	return id, nil
}

func (c collection[T]) insert(ctx context.Context, id string, doc T) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperr.Server(err, "encode "+c.entity)
	}
	return c.translate(c.tx.Insert(ctx, c.coll, id, raw), id)
}

func (c collection[T]) get(ctx context.Context, id string) (T, error) {
	var out T
	if c.kind.Prefix != "" {
		if err := idgen.Validate(c.kind, id); err != nil {
			return out, err
		}
	}
	raw, err := c.tx.Get(ctx, c.coll, id)
	if err != nil {
		return out, c.translate(err, id)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, apperr.Server(err, "decode "+c.entity)
	}
	return out, nil
}

func (c collection[T]) find(ctx context.Context, f docstore.Filter) ([]T, error) {
	raws, err := c.tx.Find(ctx, c.coll, f)
	if err != nil {
		return nil, c.translate(err, "")
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, apperr.Server(err, "decode "+c.entity)
		}
		out = append(out, v)
	}
	return out, nil
}

func (c collection[T]) findOne(ctx context.Context, f docstore.Filter) (T, error) {
	var zero T
	found, err := c.find(ctx, f)
	if err != nil {
		return zero, err
	}
	if len(found) == 0 {
		return zero, apperr.NotFound(c.entity, "")
	}
	return found[0], nil
}

func (c collection[T]) replace(ctx context.Context, id string, doc T) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return apperr.Server(err, "encode "+c.entity)
	}
	return c.translate(c.tx.Replace(ctx, c.coll, id, raw), id)
}

func (c collection[T]) delete(ctx context.Context, id string) error {
	return c.translate(c.tx.Delete(ctx, c.coll, id), id)
}

func (c collection[T]) translate(err error, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.NotFound(c.entity, id)
	}
	var dup *docstore.DuplicateKeyError
	if errors.As(err, &dup) {
		return apperr.Duplicate(c.entity + " " + dup.Field)
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Server(err, c.entity+" store operation failed")
}
