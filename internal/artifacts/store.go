// Package artifacts persists compiled output under the configured
// output_dir when Options.SaveCompiled is set (spec.md §6): the emitted
// executable buffer and an optional disassembly listing, keyed by the
// section number and the closure's bytecode entry offset.
//
// Unlike wazero's internal/compilationcache (which caches content across
// process runs keyed by a content hash, to avoid re-compiling a Wasm
// binary it has seen before), every on_bytecode_loaded call here is a
// fresh compile — there is no cache-reuse concern, so this store is a
// simpler append-only writer rather than a Get/Add/Delete cache.
package artifacts

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"sync"

	"github.com/camljit/camljit/internal/u32"
)

// Key identifies one compiled closure's artifacts.
type Key struct {
	Section uint32
	Offset  uint32
}

func (k Key) filename(suffix string) string {
	raw := append(u32.LeBytes(k.Section), u32.LeBytes(k.Offset)...)
	return fmt.Sprintf("%s%s", hex.EncodeToString(raw), suffix)
}

// Store writes compiled artifacts under dirPath. Safe for concurrent use,
// though the JIT's single global mutex (spec.md §5) means callers never
// actually contend on it.
type Store struct {
	dirPath string
	dirOk   bool
	mux     sync.Mutex
}

// NewStore returns a Store rooted at dir. The directory is created lazily
// on the first write.
func NewStore(dir string) *Store {
	return &Store{dirPath: dir}
}

func (s *Store) path(key Key, suffix string) string {
	return path.Join(s.dirPath, key.filename(suffix))
}

// SaveCode writes the raw executable buffer for key.
func (s *Store) SaveCode(key Key, code []byte) error {
	return s.write(key, ".bin", code)
}

// SaveListing writes a human-readable disassembly listing for key.
func (s *Store) SaveListing(key Key, listing string) error {
	return s.write(key, ".asm", []byte(listing))
}

func (s *Store) write(key Key, suffix string, content []byte) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	if err := s.requireDir(); err != nil {
		return err
	}
	return os.WriteFile(s.path(key, suffix), content, 0o600)
}

func (s *Store) requireDir() error {
	if s.dirOk {
		return nil
	}
	if st, err := os.Stat(s.dirPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(s.dirPath, 0o700); err != nil {
			return fmt.Errorf("artifacts: couldn't create dir %s: %w", s.dirPath, err)
		}
	} else if err != nil {
		return fmt.Errorf("artifacts: couldn't open dir %s: %w", s.dirPath, err)
	} else if !st.IsDir() {
		return fmt.Errorf("artifacts: expected dir at %s", s.dirPath)
	}
	s.dirOk = true
	return nil
}
