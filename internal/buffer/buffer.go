package buffer

// MultiBuffer keeps the last observations, each a slice of values,
// and acts like a constant size queue.
type MultiBuffer struct {
	size   int
	values [][]float64
}

// NewMultiBuffer creates a new buffer.
func NewMultiBuffer(size int) *MultiBuffer {
	return &MultiBuffer{
		size:   size,
		values: make([][]float64, 0),
	}
}

// Push adds an element to the buffer and returns the evicted one, if any.
func (b *MultiBuffer) Push(x ...float64) ([]float64, bool) {
	b.values = append(b.values, x)
	if len(b.values) > b.size {
		value := b.values[0]
		b.values = b.values[1:]
		return value, true
	}
	return nil, false
}

// Column returns the i-th value of every element.
func (b *MultiBuffer) Column(i int) []float64 {
	col := make([]float64, len(b.values))
	for j, v := range b.values {
		col[j] = v[i]
	}
	return col
}

// Len returns the current length of the buffer.
func (b *MultiBuffer) Len() int {
	return len(b.values)
}

// Full checks if the buffer reached its capacity.
func (b *MultiBuffer) Full() bool {
	return len(b.values) == b.size
}

// Stale checks if the buffer is full and none of the later elements
// improved on the first one in the given column.
func (b *MultiBuffer) Stale(i int) bool {
	if !b.Full() {
		return false
	}
	col := b.Column(i)
	for _, v := range col[1:] {
		if v > col[0] {
			return false
		}
	}
	return true
}
