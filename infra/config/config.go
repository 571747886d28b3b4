package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Path is the directory the named configs are resolved against.
var Path = "infra/config"

// ErrInvalidConfig is returned when a loaded config does not pass validation.
var ErrInvalidConfig = errors.New("invalid config")

// Validator is implemented by configs that can check their own values.
type Validator interface {
	Validate() error
}

// Invalid wraps ErrInvalidConfig with the offending field.
func Invalid(field string, value interface{}) error {
	return fmt.Errorf("field '%s' has value '%v': %w", field, value, ErrInvalidConfig)
}

// MustLoad loads the config for the given key
func MustLoad(key string, v interface{}) []byte {
	b, err := Load(filepath.Join(Path, fmt.Sprintf("%s.json", key)), v)
	if err != nil {
		panic(fmt.Sprintf("could not load config for %s: %s", key, err.Error()))
	}
	log.Info().Str("study", key).Msg("loaded default config")
	return b
}

// Load reads the json file at the given path into v and validates it, if v knows how to.
func Load(path string, v interface{}) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config '%s': %w", path, err)
	}

	err = json.Unmarshal(b, v)
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal config '%s': %w", path, err)
	}

	if validator, ok := v.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("config '%s': %w", path, err)
		}
	}

	log.Debug().Str("path", path).Msg("loaded config")
	return b, nil
}
