// Package postgres stores documents as JSONB rows, one table per collection,
// on top of the wbf dbpg master/replica pool.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"eventhub/internal/docstore"
)

var _ docstore.Store = (*Store)(nil)

const uniqueViolation = "23505"

type Store struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewStore(db *dbpg.DB, log *zerolog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) MigrateUp(ctx context.Context, migrationsDir string) error {
	return s.applyMigrations(ctx, migrationsDir, "*.up.sql", false)
}

func (s *Store) MigrateDown(ctx context.Context, migrationsDir string) error {
	return s.applyMigrations(ctx, migrationsDir, "*.down.sql", true)
}

func (s *Store) applyMigrations(ctx context.Context, dir, pattern string, reverse bool) error {
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	sort.Strings(files)
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}
		if _, err := s.db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	s.log.Info().Int("files", len(files)).Str("dir", dir).Msgf("migrations %s applied", pattern)
	return nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(docstore.Tx) error) error {
	return s.run(ctx, nil, true, fn)
}

func (s *Store) View(ctx context.Context, fn func(docstore.Tx) error) error {
	return s.run(ctx, &sql.TxOptions{ReadOnly: true}, false, fn)
}

func (s *Store) run(ctx context.Context, opts *sql.TxOptions, forUpdate bool, fn func(docstore.Tx) error) (err error) {
	tx, err := s.db.Master.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&transaction{tx: tx, forUpdate: forUpdate, readOnly: !forUpdate}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Master.Close()
}

type transaction struct {
	tx        *sql.Tx
	forUpdate bool
	readOnly  bool
}

// table quotes a collection name; collections are package constants, never
// user input.
func table(c docstore.Collection) string {
	return pq.QuoteIdentifier(string(c))
}

func (t *transaction) Insert(ctx context.Context, c docstore.Collection, id string, doc json.RawMessage) error {
	if t.readOnly {
		return docstore.ErrReadOnly
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)`, table(c))
	if _, err := t.tx.ExecContext(ctx, q, id, string(doc)); err != nil {
		return translate(c, err)
	}
	return nil
}

func (t *transaction) Get(ctx context.Context, c docstore.Collection, id string) (json.RawMessage, error) {
	q := fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1`, table(c))
	if t.forUpdate {
		q += ` FOR UPDATE`
	}
	var raw []byte
	if err := t.tx.QueryRowContext(ctx, q, id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, docstore.ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", c, id, err)
	}
	return json.RawMessage(raw), nil
}

func (t *transaction) Replace(ctx context.Context, c docstore.Collection, id string, doc json.RawMessage) error {
	if t.readOnly {
		return docstore.ErrReadOnly
	}
	q := fmt.Sprintf(`UPDATE %s SET doc = $2::jsonb WHERE id = $1`, table(c))
	res, err := t.tx.ExecContext(ctx, q, id, string(doc))
	if err != nil {
		return translate(c, err)
	}
	return expectOne(res)
}

func (t *transaction) Delete(ctx context.Context, c docstore.Collection, id string) error {
	if t.readOnly {
		return docstore.ErrReadOnly
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table(c))
	res, err := t.tx.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c, id, err)
	}
	return expectOne(res)
}

func (t *transaction) Find(ctx context.Context, c docstore.Collection, f docstore.Filter) ([]json.RawMessage, error) {
	filter, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	if len(f) == 0 {
		filter = []byte("{}")
	}
	q := fmt.Sprintf(`SELECT doc FROM %s WHERE doc @> $1::jsonb ORDER BY id`, table(c))
	rows, err := t.tx.QueryContext(ctx, q, string(filter))
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c, err)
	}
	defer rows.Close()

	out := make([]json.RawMessage, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c, err)
		}
		out = append(out, json.RawMessage(raw))
	}
	return out, rows.Err()
}

func (t *transaction) IDs(ctx context.Context, c docstore.Collection) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s ORDER BY id`, table(c)))
	if err != nil {
		return nil, fmt.Errorf("list ids %s: %w", c, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id %s: %w", c, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *transaction) NextSequence(ctx context.Context, name string, floor int) (int, error) {
	if t.readOnly {
		return 0, docstore.ErrReadOnly
	}
	const q = `
		INSERT INTO id_sequences (name, value) VALUES ($1, $2::integer + 1)
		ON CONFLICT (name) DO UPDATE
		SET value = GREATEST(id_sequences.value, $2::integer) + 1
		RETURNING value`
	var next int
	if err := t.tx.QueryRowContext(ctx, q, name, floor).Scan(&next); err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", name, err)
	}
	return next, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// translate maps unique violations to DuplicateKeyError. Index names follow
// the <collection>_<field>_key convention of the migrations.
func translate(c docstore.Collection, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		field := "id"
		prefix := string(c) + "_"
		if name := pqErr.Constraint; strings.HasPrefix(name, prefix) && strings.HasSuffix(name, "_key") {
			field = strings.TrimSuffix(strings.TrimPrefix(name, prefix), "_key")
		}
		return &docstore.DuplicateKeyError{Collection: c, Field: field}
	}
	return fmt.Errorf("write %s: %w", c, err)
}
