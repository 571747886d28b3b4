package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiBuffer_Push(t *testing.T) {
	b := NewMultiBuffer(3)

	for i := 0; i < 10; i++ {
		evicted, ok := b.Push(float64(i), float64(i*i))
		if i < 3 {
			assert.False(t, ok)
			assert.Nil(t, evicted)
		} else {
			assert.True(t, ok)
			assert.Equal(t, []float64{float64(i - 3), float64((i - 3) * (i - 3))}, evicted)
		}
		assert.LessOrEqual(t, b.Len(), 3)
	}

	assert.True(t, b.Full())
	assert.Equal(t, []float64{7, 8, 9}, b.Column(0))
	assert.Equal(t, []float64{49, 64, 81}, b.Column(1))
}

func TestMultiBuffer_Stale(t *testing.T) {
	type test struct {
		values []float64
		stale  bool
	}

	tests := map[string]test{
		"not-full": {
			values: []float64{0.9, 0.5},
		},
		"improving": {
			values: []float64{0.5, 0.6, 0.7},
		},
		"late-improvement": {
			values: []float64{0.8, 0.7, 0.81},
		},
		"plateau": {
			values: []float64{0.8, 0.8, 0.8},
			stale:  true,
		},
		"decreasing": {
			values: []float64{0.9, 0.85, 0.7},
			stale:  true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			b := NewMultiBuffer(3)
			for _, v := range tt.values {
				b.Push(0, v)
			}
			assert.Equal(t, tt.stale, b.Stale(1))
		})
	}
}

func TestMultiBuffer_Empty(t *testing.T) {
	b := NewMultiBuffer(2)
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Column(0))
	assert.False(t, b.Stale(0))
}
