// Package memory provides an in-memory docstore used for tests and
// single-process deployments. Transactions run against a cloned state that
// replaces the committed state only when the callback succeeds.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"eventhub/internal/docstore"
)

var _ docstore.Store = (*Store)(nil)

type state struct {
	docs map[docstore.Collection]map[string]json.RawMessage
	seqs map[string]int
}

func newState() state {
	s := state{
		docs: make(map[docstore.Collection]map[string]json.RawMessage, len(docstore.Collections)),
		seqs: make(map[string]int),
	}
	for _, c := range docstore.Collections {
		s.docs[c] = make(map[string]json.RawMessage)
	}
	return s
}

// clone copies the maps only. Document bytes are never mutated in place, so
// sharing them between states is safe.
func (s state) clone() state {
	out := state{
		docs: make(map[docstore.Collection]map[string]json.RawMessage, len(s.docs)),
		seqs: make(map[string]int, len(s.seqs)),
	}
	for c, docs := range s.docs {
		m := make(map[string]json.RawMessage, len(docs))
		for id, d := range docs {
			m[id] = d
		}
		out.docs[c] = m
	}
	for k, v := range s.seqs {
		out.seqs[k] = v
	}
	return out
}

type Store struct {
	mu    sync.RWMutex
	state state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

func (s *Store) RunInTx(ctx context.Context, fn func(docstore.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &transaction{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *Store) View(ctx context.Context, fn func(docstore.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&transaction{state: s.state, readOnly: true})
}

func (s *Store) Close() error { return nil }

type transaction struct {
	state    state
	readOnly bool
}

func (t *transaction) collection(c docstore.Collection) (map[string]json.RawMessage, error) {
	docs, ok := t.state.docs[c]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", c)
	}
	return docs, nil
}

func (t *transaction) Insert(_ context.Context, c docstore.Collection, id string, doc json.RawMessage) error {
	if t.readOnly {
		return docstore.ErrReadOnly
	}
	docs, err := t.collection(c)
	if err != nil {
		return err
	}
	if _, exists := docs[id]; exists {
		return &docstore.DuplicateKeyError{Collection: c, Field: "id"}
	}
	if err := t.checkUnique(c, id, doc); err != nil {
		return err
	}
	docs[id] = bytes.Clone(doc)
	return nil
}

func (t *transaction) Get(_ context.Context, c docstore.Collection, id string) (json.RawMessage, error) {
	docs, err := t.collection(c)
	if err != nil {
		return nil, err
	}
	doc, ok := docs[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return bytes.Clone(doc), nil
}

func (t *transaction) Replace(_ context.Context, c docstore.Collection, id string, doc json.RawMessage) error {
	if t.readOnly {
		return docstore.ErrReadOnly
	}
	docs, err := t.collection(c)
	if err != nil {
		return err
	}
	if _, ok := docs[id]; !ok {
		return docstore.ErrNotFound
	}
	if err := t.checkUnique(c, id, doc); err != nil {
		return err
	}
	docs[id] = bytes.Clone(doc)
	return nil
}

func (t *transaction) Delete(_ context.Context, c docstore.Collection, id string) error {
	if t.readOnly {
		return docstore.ErrReadOnly
	}
	docs, err := t.collection(c)
	if err != nil {
		return err
	}
	if _, ok := docs[id]; !ok {
		return docstore.ErrNotFound
	}
	delete(docs, id)
	return nil
}

func (t *transaction) Find(_ context.Context, c docstore.Collection, f docstore.Filter) ([]json.RawMessage, error) {
	docs, err := t.collection(c)
	if err != nil {
		return nil, err
	}
	want, err := normalize(f)
	if err != nil {
		return nil, err
	}
	ids := sortedIDs(docs)
	out := make([]json.RawMessage, 0)
	for _, id := range ids {
		doc := docs[id]
		if len(want) > 0 {
			fields, err := decodeFields(doc)
			if err != nil {
				return nil, fmt.Errorf("decode %s/%s: %w", c, id, err)
			}
			if !matches(fields, want) {
				continue
			}
		}
		out = append(out, bytes.Clone(doc))
	}
	return out, nil
}

func (t *transaction) IDs(_ context.Context, c docstore.Collection) ([]string, error) {
	docs, err := t.collection(c)
	if err != nil {
		return nil, err
	}
	return sortedIDs(docs), nil
}

func (t *transaction) NextSequence(_ context.Context, name string, floor int) (int, error) {
	if t.readOnly {
		return 0, docstore.ErrReadOnly
	}
	cur := t.state.seqs[name]
	if floor > cur {
		cur = floor
	}
	cur++
	t.state.seqs[name] = cur
	return cur, nil
}

func (t *transaction) checkUnique(c docstore.Collection, id string, doc json.RawMessage) error {
	fields := docstore.UniqueFields(c)
	if len(fields) == 0 {
		return nil
	}
	incoming, err := decodeFields(doc)
	if err != nil {
		return fmt.Errorf("decode %s/%s: %w", c, id, err)
	}
	for _, field := range fields {
		val, ok := incoming[field]
		if !ok || isEmpty(val) {
			continue
		}
		for otherID, other := range t.state.docs[c] {
			if otherID == id {
				continue
			}
			existing, err := decodeFields(other)
			if err != nil {
				return fmt.Errorf("decode %s/%s: %w", c, otherID, err)
			}
			if fmt.Sprint(existing[field]) == fmt.Sprint(val) {
				return &docstore.DuplicateKeyError{Collection: c, Field: field}
			}
		}
	}
	return nil
}

func decodeFields(doc json.RawMessage) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// normalize round-trips filter values through JSON so they compare equal to
// decoded document fields (numbers become float64, typed strings plain).
func normalize(f docstore.Filter) (map[string]any, error) {
	if len(f) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	return decodeFields(raw)
}

func matches(fields, want map[string]any) bool {
	for k, v := range want {
		got, ok := fields[k]
		if !ok || !reflect.DeepEqual(got, v) {
			return false
		}
	}
	return true
}

func isEmpty(v any) bool {
	return v == nil || v == ""
}

func sortedIDs(docs map[string]json.RawMessage) []string {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
