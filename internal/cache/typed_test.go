// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/localbasket/marketsync/internal/model"
)

func newTypedFixture(t *testing.T) (*TypedCache[[]model.Category], Cacher) {
	t.Helper()
	backend := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour})
	t.Cleanup(func() { _ = backend.Close() })
	return NewTypedCache[[]model.Category](backend, time.Hour), backend
}

func TestTypedCacheRoundTrip(t *testing.T) {
	typed, _ := newTypedFixture(t)
	ctx := context.Background()

	want := []model.Category{
		{ID: 1, Name: "Vegetables", Slug: "vegetables"},
		{ID: 2, Name: "Dairy", Slug: "dairy"},
	}
	if err := typed.Set(ctx, "categories", &want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := typed.Get(ctx, "categories")
	if !ok {
		t.Fatal("expected hit")
	}
	if len(*got) != 2 || (*got)[0].Slug != "vegetables" {
		t.Errorf("Get = %+v, want %+v", *got, want)
	}
}

func TestTypedCacheMiss(t *testing.T) {
	typed, _ := newTypedFixture(t)
	if _, ok := typed.Get(context.Background(), "absent"); ok {
		t.Error("expected miss")
	}
}

func TestTypedCacheCorruptEntryIsMiss(t *testing.T) {
	typed, backend := newTypedFixture(t)
	ctx := context.Background()

	_ = backend.Set(ctx, "categories", []byte("{not json"), 0)
	if _, ok := typed.Get(ctx, "categories"); ok {
		t.Error("corrupt entry must read as a miss")
	}
}

func TestTypedCacheGetOrSet(t *testing.T) {
	typed, _ := newTypedFixture(t)
	ctx := context.Background()

	calls := 0
	fetch := func() (*[]model.Category, error) {
		calls++
		return &[]model.Category{{ID: 1, Name: "Fruit", Slug: "fruit"}}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := typed.GetOrSet(ctx, "categories", fetch)
		if err != nil {
			t.Fatalf("GetOrSet failed: %v", err)
		}
		if len(*got) != 1 {
			t.Fatalf("unexpected value: %+v", *got)
		}
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
}

func TestTypedCacheGetOrSetPropagatesError(t *testing.T) {
	typed, _ := newTypedFixture(t)

	wantErr := errors.New("upstream down")
	_, err := typed.GetOrSet(context.Background(), "categories", func() (*[]model.Category, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}
