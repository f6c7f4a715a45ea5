package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	if Key("openai", "Japan", "population") != Key("OpenAI", " japan", "POPULATION") {
		t.Error("Expected keys to ignore case and surrounding space")
	}
	if Key("ab", "c") == Key("a", "bc") {
		t.Error("Expected part boundaries to matter")
	}
}

func TestMemoryCache_CopiesValues(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	value := []byte("125 million")
	if err := c.Set("k", value, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value[0] = 'X'

	got, ok := c.Get("k")
	if !ok || string(got) != "125 million" {
		t.Fatalf("Expected stored copy, got %q (ok=%v)", got, ok)
	}
	got[0] = 'Y'
	if again, _ := c.Get("k"); string(again) != "125 million" {
		t.Errorf("Expected cached entry unaffected by caller, got %q", again)
	}

	if err := c.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("Expected key to be gone")
	}
}

func TestDiskCache_RoundTripAndExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	key := Key("k")
	if err := c.Set(key, []byte(`{"value":1}`), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := c.Get(key)
	if !ok || string(got) != `{"value":1}` {
		t.Fatalf("Expected cached value, got %q (ok=%v)", got, ok)
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get(key); ok {
		t.Error("Expected entry to expire")
	}
	if _, err := os.Stat(filepath.Join(dir, key+".cache")); !os.IsNotExist(err) {
		t.Error("Expected expired file to be removed")
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(leftovers) != 0 {
		t.Errorf("Expected no temporary files, got %v", leftovers)
	}
}

func TestDiskCache_CorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	if err := os.WriteFile(filepath.Join(dir, "bad.cache"), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Error("Expected corrupt entry to miss")
	}
	if err := c.Delete("missing"); err != nil {
		t.Errorf("Expected deleting a missing key to succeed, got %v", err)
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()

	first := NewLayeredCache(time.Minute, dir, time.Hour)
	if err := first.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// A new process sees only the disk layer
	second := NewLayeredCache(time.Minute, dir, time.Hour)
	got, ok := second.Get("k")
	if !ok || string(got) != "v" {
		t.Fatalf("Expected disk hit, got %q (ok=%v)", got, ok)
	}
	if v, ok := second.memory.Get("k"); !ok || string(v) != "v" {
		t.Error("Expected disk hit to be promoted to memory")
	}

	if err := second.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := second.Get("k"); ok {
		t.Error("Expected key to be gone")
	}
}
