package bridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSlot stores each key as a file in a directory. Writes go to a temporary
// file in the same directory followed by a rename, so a concurrent reader
// sees either the old record or the new one, never a torn write.
type FileSlot struct {
	Dir string
}

// NewFileSlot creates the backing directory if needed.
func NewFileSlot(dir string) (*FileSlot, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create bridge dir: %w", err)
	}
	return &FileSlot{Dir: dir}, nil
}

func (f *FileSlot) Write(_ context.Context, key string, data []byte) error {
	final := filepath.Join(f.Dir, key)
	tmp, err := os.CreateTemp(f.Dir, key+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp record: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish record: %w", err)
	}
	return nil
}

func (f *FileSlot) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(f.Dir, key))
	if os.IsNotExist(err) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	return data, nil
}
