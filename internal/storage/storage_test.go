package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	type test struct {
		key   Key
		valid bool
		path  string
	}

	tests := map[string]test{
		"valid": {
			key:   Key{Study: "churn", Run: "abc", Label: "summary"},
			valid: true,
			path:  "summary_abc",
		},
		"empty-run": {
			key: Key{Study: "churn", Label: "summary"},
		},
		"path-traversal": {
			key: Key{Study: "..", Run: "abc", Label: "summary"},
		},
		"separator": {
			key: Key{Study: "churn", Run: "a/b", Label: "summary"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.key.Validate()
			if !tt.valid {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.path, tt.key.Path())
		})
	}
}

func TestNewKey(t *testing.T) {
	a := NewKey("fashion", "summary")
	b := NewKey("fashion", "summary")
	assert.NoError(t, a.Validate())
	assert.NotEqual(t, a.Run, b.Run)
	assert.Equal(t, "fashion", a.Study)
}

func TestVoidStorage(t *testing.T) {
	store, err := VoidShard()("any")
	require.NoError(t, err)

	k := NewKey("churn", "summary")
	assert.NoError(t, store.Store(k, map[string]int{"a": 1}))
	var v map[string]int
	assert.ErrorIs(t, store.Load(k, &v), ErrNotFound)
}
