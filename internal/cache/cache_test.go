package cache

import (
	"context"
	"testing"
	"time"
)

func TestCache_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	c := New(time.Minute)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, "k", []byte("v"), 10*time.Second); err != nil {
		t.Fatal(err)
	}

	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("got %q ok=%v err=%v", got, ok, err)
	}

	now = now.Add(11 * time.Second)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestCache_SetCopiesValue(t *testing.T) {
	ctx := context.Background()
	c := New(time.Minute)

	buf := []byte("abc")
	_ = c.Set(ctx, "k", buf, 0)
	buf[0] = 'z'

	got, _, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("cache aliased caller buffer: %q", got)
	}
}

func TestCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := New(0)

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	_ = c.Delete(ctx, "a", "b")

	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Fatalf("a should be gone")
	}
	if _, ok, _ := c.Get(ctx, "b"); ok {
		t.Fatalf("b should be gone")
	}
}
