// Package blob stores uploaded files (vendor portfolio images) and hands back
// a URL clients can fetch them from.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrNotFound = errors.New("blob not found")

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

type Info struct {
	Key          string
	Size         int64
	ContentType  string
	URL          string
	LastModified time.Time
}

type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Delete(ctx context.Context, key string) error
	// KeyFromURL reverses the URL returned by Put. ok is false for URLs this
	// store did not produce.
	KeyFromURL(url string) (key string, ok bool)
}
