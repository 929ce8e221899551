/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package storage

import (
	"context"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestPreviewsPutGetAndEvict(t *testing.T) {
	d := openTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// tiny cap to force eviction quickly
	d.SetPreviewCap(64)

	for _, key := range []string{"a", "b", "c"} {
		if err := d.PutPreview(ctx, key, 320, make([]byte, 40)); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	total, err := d.TotalPreviewBytes(ctx)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total > 64 {
		t.Fatalf("expected eviction to <=64 bytes, got %d", total)
	}
	if b, _ := d.GetPreview(ctx, "c", 320); b == nil {
		t.Fatalf("most recent preview should survive")
	}
	if b, _ := d.GetPreview(ctx, "a", 320); b != nil {
		t.Fatalf("oldest preview should be evicted")
	}

	// touching c makes the new row evict nothing but older ones
	if err := d.PutPreview(ctx, "d", 320, make([]byte, 20)); err != nil {
		t.Fatalf("put d: %v", err)
	}
	if b, _ := d.GetPreview(ctx, "c", 320); b == nil {
		t.Fatalf("c should still fit next to d")
	}
	if total2, err := d.TotalPreviewBytes(ctx); err != nil || total2 > 64 {
		t.Fatalf("post total: %v / %d", err, total2)
	}
}

func TestPreviewWidthsAreSeparateVariants(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	if err := d.PutPreview(ctx, "k", 160, []byte("small")); err != nil {
		t.Fatal(err)
	}
	if err := d.PutPreview(ctx, "k", 320, []byte("large")); err != nil {
		t.Fatal(err)
	}
	b, err := d.GetPreview(ctx, "k", 160)
	if err != nil || string(b) != "small" {
		t.Fatalf("160: %q %v", b, err)
	}
	if err := d.DeletePreviews(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if b, _ := d.GetPreview(ctx, "k", 320); b != nil {
		t.Fatalf("expected all widths deleted")
	}
	if err := d.PutPreview(ctx, "k", 320, nil); err == nil {
		t.Fatalf("expected error for empty blob")
	}
}

func TestGetOrCreatePreview(t *testing.T) {
	d := openTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	calls := 0
	gen := func(context.Context) ([]byte, error) { calls++; return []byte("abcd"), nil }
	b, err := d.GetOrCreatePreview(ctx, "/lib/a.cbz", 320, gen)
	if err != nil {
		t.Fatalf("getOrCreate: %v", err)
	}
	if string(b) != "abcd" {
		t.Fatalf("unexpected data: %q", string(b))
	}
	// second call hits the cache
	if _, err = d.GetOrCreatePreview(ctx, "/lib/a.cbz", 320, gen); err != nil {
		t.Fatalf("getOrCreate 2: %v", err)
	}
	if calls != 1 {
		t.Fatalf("generator should be called once, got %d", calls)
	}
}

func TestMaxPreviewsBytesFromEnv(t *testing.T) {
	t.Setenv(PreviewsMaxBytesEnv, "")
	if got := MaxPreviewsBytesFromEnv(); got != DefaultPreviewsMaxBytes {
		t.Fatalf("default: %d", got)
	}
	t.Setenv(PreviewsMaxBytesEnv, "1024")
	if got := MaxPreviewsBytesFromEnv(); got != 1024 {
		t.Fatalf("override: %d", got)
	}
	t.Setenv(PreviewsMaxBytesEnv, "-5")
	if got := MaxPreviewsBytesFromEnv(); got != DefaultPreviewsMaxBytes {
		t.Fatalf("invalid: %d", got)
	}
}
