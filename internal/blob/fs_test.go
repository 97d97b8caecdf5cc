package blob

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestFSStoreRoundTrip(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	ctx := context.Background()
	data := []byte("encrypted bytes")

	if err := store.Put(ctx, "medical-records/mr-1/abc123.pdf.enc", data); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, "medical-records/mr-1/abc123.pdf.enc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("stored bytes differ")
	}
	if err := store.Remove(ctx, "medical-records/mr-1/abc123.pdf.enc"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.Get(ctx, "medical-records/mr-1/abc123.pdf.enc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Remove: %v, want ErrNotFound", err)
	}
}

func TestFSStorePutRejectsDuplicateLocator(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "a/b.enc", []byte("one")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, "a/b.enc", []byte("two")); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("duplicate Put: %v, want ErrAlreadyExists", err)
	}
	got, err := store.Get(ctx, "a/b.enc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("one")) {
		t.Fatal("original blob must be untouched")
	}
}

func TestFSStoreRejectsEscapingLocators(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	ctx := context.Background()

	bad := []string{
		"",
		"   ",
		"/etc/passwd",
		"../outside.enc",
		"a/../../outside.enc",
		".",
	}
	for _, locator := range bad {
		if err := store.Put(ctx, locator, []byte("x")); !errors.Is(err, ErrInvalidLocator) {
			t.Errorf("Put(%q): %v, want ErrInvalidLocator", locator, err)
		}
		if _, err := store.Get(ctx, locator); !errors.Is(err, ErrInvalidLocator) {
			t.Errorf("Get(%q): %v, want ErrInvalidLocator", locator, err)
		}
		if err := store.Remove(ctx, locator); !errors.Is(err, ErrInvalidLocator) {
			t.Errorf("Remove(%q): %v, want ErrInvalidLocator", locator, err)
		}
	}
}

func TestFSStoreRemoveMissing(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	if err := store.Remove(context.Background(), "never/was.enc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Remove missing: %v, want ErrNotFound", err)
	}
}

func TestFSStoreHonorsContextCancel(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Put(ctx, "a.enc", []byte("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Put with cancelled ctx: %v, want context.Canceled", err)
	}
}
