package settings

import (
	"testing"

	"github.com/dshills/ideshell/internal/storage"
)

func TestStoreIsolation(t *testing.T) {
	s := NewStore(nil)
	s.Set("a", "theme", "dark")
	s.Set("b", "theme", "light")

	if v, _ := s.Get("a", "theme"); v != "dark" {
		t.Errorf("a.theme = %v, want dark", v)
	}
	if v, _ := s.Get("b", "theme"); v != "light" {
		t.Errorf("b.theme = %v, want light", v)
	}
	if _, ok := s.Get("c", "theme"); ok {
		t.Error("unknown plugin has settings")
	}

	all := s.All("a")
	all["theme"] = "mutated"
	if v, _ := s.Get("a", "theme"); v != "dark" {
		t.Error("All() returned the live map")
	}
}

func TestStoreDefaultsAndDelete(t *testing.T) {
	s := NewStore(nil)
	s.Set("p", "kept", 1)
	s.Defaults("p", map[string]any{"kept": 99, "fresh": true})

	if v, _ := s.Get("p", "kept"); v != 1 {
		t.Errorf("Defaults() overwrote existing value: %v", v)
	}
	if v, _ := s.Get("p", "fresh"); v != true {
		t.Errorf("Defaults() did not fill missing key: %v", v)
	}

	s.Delete("p", "fresh")
	if _, ok := s.Get("p", "fresh"); ok {
		t.Error("Delete() left the key")
	}
	if err := s.Delete("nobody", "k"); err != nil {
		t.Errorf("Delete() on unknown plugin error = %v", err)
	}
}

func TestStorePersistence(t *testing.T) {
	local := storage.NewMemory()
	s := NewStore(local)
	if err := s.Set("rss-plugin", "feed", "sample"); err != nil {
		t.Fatal(err)
	}

	reloaded := NewStore(local)
	if err := reloaded.Load("rss-plugin"); err != nil {
		t.Fatal(err)
	}
	if v, _ := reloaded.Get("rss-plugin", "feed"); v != "sample" {
		t.Errorf("reloaded feed = %v, want sample", v)
	}
	if err := reloaded.Load("never-saved"); err != nil {
		t.Errorf("Load() of unsaved plugin error = %v", err)
	}
}
