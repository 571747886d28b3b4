package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/drakos74/case-studies/internal/storage"
)

// Save saves the given json struct into the given path with the provided filename.
func Save(filePath string, fileName string, value interface{}) error {
	// check if filepath exists
	info, err := os.Stat(filePath)
	if err != nil {
		err := os.MkdirAll(filePath, os.ModePerm)
		if err != nil {
			return fmt.Errorf("could not make dir: %s: %w", filePath, err)
		}
	} else if !info.IsDir() {
		return fmt.Errorf("path given is not a dir: %s", filePath)
	}

	b, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode '%s': %w", fileName, err)
	}

	p := filepath.Join(filePath, fileName)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		return fmt.Errorf("could not write file '%s': %w", p, err)
	}
	return nil
}

// Load loads the payload from the given filePath and fileName.
func Load(filePath string, fileName string, value interface{}) error {
	p := filepath.Join(filePath, fileName)

	data, err := os.ReadFile(p)
	if err != nil {
		return fmt.Errorf("could not read file '%s' %s: %w", p, err.Error(), storage.ErrNotFound)
	}

	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("could not decode '%s' %s: %w", p, err.Error(), storage.ErrCouldNotLoad)
	}
	return nil
}

// FileShard creates json file storages under the given root, one dir per shard.
func FileShard(root string) storage.Shard {
	return func(shard string) (storage.Persistence, error) {
		return NewFileStorage(filepath.Join(root, shard)), nil
	}
}

// FileStorage keeps one json file per key, grouped by study.
type FileStorage struct {
	dir string
}

// NewFileStorage creates a new file storage rooted at dir.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

func (f *FileStorage) Store(k storage.Key, value interface{}) error {
	if err := k.Validate(); err != nil {
		return err
	}
	return Save(filepath.Join(f.dir, k.Study), k.Path()+".json", value)
}

func (f *FileStorage) Load(k storage.Key, value interface{}) error {
	if err := k.Validate(); err != nil {
		return err
	}
	return Load(filepath.Join(f.dir, k.Study), k.Path()+".json", value)
}
