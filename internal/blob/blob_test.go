package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMemoryPutDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	info, err := m.Put(ctx, "portfolio/V001/a.jpg", strings.NewReader("img"), PutOptions{ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 3 || info.ContentType != "image/jpeg" {
		t.Fatalf("unexpected info %+v", info)
	}
	key, ok := m.KeyFromURL(info.URL)
	if !ok || key != "portfolio/V001/a.jpg" {
		t.Fatalf("url did not round trip: %q -> %q", info.URL, key)
	}
	r, err := m.Open(key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if data, _ := io.ReadAll(r); string(data) != "img" {
		t.Fatalf("unexpected data %q", data)
	}
	if _, err := m.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err == nil {
		t.Fatalf("expected duplicate key error")
	}
	if err := m.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.Delete(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPublicBase(t *testing.T) {
	cases := []struct {
		cfg  S3Config
		want string
	}{
		{S3Config{Bucket: "b", Region: "eu-west-1"}, "https://b.s3.eu-west-1.amazonaws.com"},
		{S3Config{Bucket: "b", Endpoint: "http://minio:9000/"}, "http://minio:9000/b"},
		{S3Config{Bucket: "b", PublicBaseURL: "https://cdn.example.com/"}, "https://cdn.example.com"},
	}
	for _, tc := range cases {
		if got := publicBase(tc.cfg); got != tc.want {
			t.Fatalf("publicBase(%+v) = %q, want %q", tc.cfg, got, tc.want)
		}
	}
}
