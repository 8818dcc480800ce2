// Package storage provides the host's persistent key/value store, the
// equivalent of browser local storage. Values are stored as JSON inside a
// single JSON document; a nil value removes its key.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrCorrupt is returned when the backing file is not a JSON object.
var ErrCorrupt = errors.New("storage: document is not a JSON object")

// Local is a JSON document key/value store. With an empty path it lives in
// memory only.
type Local struct {
	mu   sync.Mutex
	path string
	doc  []byte
}

// Open loads the store at path, creating an empty document if the file does
// not exist yet.
func Open(path string) (*Local, error) {
	s := &Local{path: path, doc: []byte("{}")}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading storage %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return s, nil
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return nil, fmt.Errorf("%s: %w", path, ErrCorrupt)
	}
	s.doc = data
	return s, nil
}

// NewMemory returns a store that is never written to disk.
func NewMemory() *Local {
	s, _ := Open("")
	return s
}

// Path returns the backing file path, or "" for memory stores.
func (s *Local) Path() string {
	return s.path
}

// Load decodes the value stored at key into dst. It reports whether the key exists.
func (s *Local) Load(key string, dst any) (bool, error) {
	raw, ok := s.Raw(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return true, fmt.Errorf("decoding %q: %w", key, err)
	}
	return true, nil
}

// Raw returns the JSON text stored at key.
func (s *Local) Raw(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := gjson.GetBytes(s.doc, escapeKey(key))
	if !res.Exists() {
		return "", false
	}
	return res.Raw, true
}

// Save stores value at key as JSON. A nil value, or one that encodes to
// JSON null, removes the key instead of storing null.
func (s *Local) Save(key string, value any) error {
	if key == "" {
		return errors.New("storage: empty key")
	}
	if value == nil {
		return s.Remove(key)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	if string(raw) == "null" {
		return s.Remove(key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := sjson.SetRawBytes(s.doc, escapeKey(key), raw)
	if err != nil {
		return fmt.Errorf("storing %q: %w", key, err)
	}
	return s.commit(doc)
}

// Remove deletes key. Missing keys are not an error.
func (s *Local) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !gjson.GetBytes(s.doc, escapeKey(key)).Exists() {
		return nil
	}
	doc, err := sjson.DeleteBytes(s.doc, escapeKey(key))
	if err != nil {
		return fmt.Errorf("removing %q: %w", key, err)
	}
	return s.commit(doc)
}

// Keys returns every stored key in document order.
func (s *Local) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	gjson.ParseBytes(s.doc).ForEach(func(k, _ gjson.Result) bool {
		keys = append(keys, k.String())
		return true
	})
	return keys
}

// Clear removes every key.
func (s *Local) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit([]byte("{}"))
}

// commit replaces the document and writes it through.
// Must be called with mu held.
func (s *Local) commit(doc []byte) error {
	if s.path != "" {
		if err := writeAtomic(s.path, doc); err != nil {
			return err
		}
	}
	s.doc = doc
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating storage dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".storage-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing storage: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing storage: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing storage: %w", err)
	}
	return nil
}

// pathSpecial are the characters gjson/sjson treat as path syntax.
const pathSpecial = `\.*?|#@!=<>%:`

// escapeKey makes key a single literal path component.
func escapeKey(key string) string {
	if !strings.ContainsAny(key, pathSpecial) {
		return key
	}
	var b strings.Builder
	b.Grow(len(key) + 4)
	for _, r := range key {
		if strings.ContainsRune(pathSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
