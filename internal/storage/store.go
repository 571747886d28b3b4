package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Shard creates a new storage implementation for the given shard.
type Shard func(shard string) (Persistence, error)

var (
	ErrNotFound     = errors.New("not found")
	ErrCouldNotLoad = errors.New("could not load")
	ErrInvalidKey   = errors.New("invalid key")
)

// Key identifies a stored run report.
type Key struct {
	Study string `json:"study"`
	Run   string `json:"run"`
	Label string `json:"label"`
}

// NewKey creates a key for a new run of the given study.
func NewKey(study, label string) Key {
	return Key{
		Study: study,
		Run:   uuid.New().String(),
		Label: label,
	}
}

// Validate checks that the key can be turned into a file name.
func (k Key) Validate() error {
	for _, part := range []string{k.Study, k.Run, k.Label} {
		if part == "" || strings.ContainsAny(part, `/\`) || part == "." || part == ".." {
			return fmt.Errorf("'%+v': %w", k, ErrInvalidKey)
		}
	}
	return nil
}

// Path returns the file name for the key within its study.
func (k Key) Path() string {
	return fmt.Sprintf("%s_%s", k.Label, k.Run)
}

// Persistence stores and loads values by key.
type Persistence interface {
	Store(k Key, value interface{}) error
	Load(k Key, value interface{}) error
}
