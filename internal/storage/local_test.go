package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalSaveLoad(t *testing.T) {
	s := NewMemory()

	type prefs struct {
		Theme string `json:"theme"`
		Size  int    `json:"size"`
	}
	if err := s.Save("prefs", prefs{Theme: "dark", Size: 14}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var got prefs
	ok, err := s.Load("prefs", &got)
	if err != nil || !ok {
		t.Fatalf("Load() = %v, %v", ok, err)
	}
	if got.Theme != "dark" || got.Size != 14 {
		t.Errorf("Load() = %+v", got)
	}

	var missing string
	if ok, _ := s.Load("missing", &missing); ok {
		t.Error("Load() of missing key reported ok")
	}
}

func TestLocalNilRemoves(t *testing.T) {
	s := NewMemory()
	s.Save("k", "v")

	if err := s.Save("k", nil); err != nil {
		t.Fatalf("Save(nil) error = %v", err)
	}
	if _, ok := s.Raw("k"); ok {
		t.Error("Save(nil) stored a value instead of removing the key")
	}

	var typedNil *struct{}
	s.Save("k2", "v")
	s.Save("k2", typedNil)
	if _, ok := s.Raw("k2"); ok {
		t.Error("Save(typed nil) stored null")
	}

	// Removing a missing key is fine.
	if err := s.Remove("never"); err != nil {
		t.Errorf("Remove() error = %v", err)
	}
}

func TestLocalSpecialKeys(t *testing.T) {
	s := NewMemory()
	keys := []string{"plugin.hello", "a*b", "what?", "settings/hello-plugin", "x:1"}
	for i, k := range keys {
		if err := s.Save(k, i); err != nil {
			t.Fatalf("Save(%q) error = %v", k, err)
		}
	}
	for i, k := range keys {
		var got int
		if ok, err := s.Load(k, &got); !ok || err != nil || got != i {
			t.Errorf("Load(%q) = %d, %v, %v; want %d", k, got, ok, err, i)
		}
	}
	if got := s.Keys(); len(got) != len(keys) {
		t.Errorf("Keys() = %v, want %d keys", got, len(keys))
	}
}

func TestLocalPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.Save("counter", 3)
	s.Save("gone", true)
	s.Remove("gone")

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	var n int
	if ok, _ := reopened.Load("counter", &n); !ok || n != 3 {
		t.Errorf("persisted counter = %d (ok=%v), want 3", n, ok)
	}
	if _, ok := reopened.Raw("gone"); ok {
		t.Error("removed key persisted")
	}

	if err := reopened.Clear(); err != nil {
		t.Fatal(err)
	}
	if len(reopened.Keys()) != 0 {
		t.Error("Clear() left keys")
	}
}

func TestOpenCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	os.WriteFile(path, []byte("[1,2,3]"), 0644)

	if _, err := Open(path); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Open() error = %v, want ErrCorrupt", err)
	}
}
