package mnist

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idxImages(n int) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, []int32{imagesMagic, int32(n), ImgSize, ImgSize})
	for i := 0; i < n; i++ {
		img := make([]byte, Pixels)
		for p := range img {
			img[p] = byte((i + p) % 256)
		}
		buf.Write(img)
	}
	return buf.Bytes()
}

func idxLabels(n int) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.BigEndian, []int32{labelsMagic, int32(n)})
	for i := 0; i < n; i++ {
		buf.WriteByte(byte(i % 10))
	}
	return buf.Bytes()
}

// claim overwrites the count in an idx header.
func claim(b []byte, n int32) []byte {
	binary.BigEndian.PutUint32(b[4:8], uint32(n))
	return b
}

func gz(b []byte) []byte {
	buf := new(bytes.Buffer)
	w := gzip.NewWriter(buf)
	_, _ = w.Write(b)
	_ = w.Close()
	return buf.Bytes()
}

func writeDataset(t *testing.T, dir string, train, test int, compress bool) {
	files := map[string][]byte{
		TrainImages: idxImages(train),
		TrainLabels: idxLabels(train),
		TestImages:  idxImages(test),
		TestLabels:  idxLabels(test),
	}
	for name, content := range files {
		if compress {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name+".gz"), gz(content), 0644))
		} else {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), content, 0644))
		}
	}
}

func TestReadImages(t *testing.T) {

	type test struct {
		input []byte
		count int
		err   error
	}

	tests := map[string]test{
		"valid": {
			input: idxImages(3),
			count: 3,
		},
		"empty": {
			input: idxImages(0),
			count: 0,
		},
		"wrong-magic": {
			input: idxLabels(3),
			err:   ErrFormat,
		},
		"truncated": {
			input: idxImages(3)[:100],
			err:   ErrFormat,
		},
		"corrupt-count": {
			input: claim(idxImages(2), math.MaxInt32),
			err:   ErrFormat,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			images, err := ReadImages(bytes.NewReader(tt.input))
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.count, len(images))
		})
	}
}

func TestReadLabels(t *testing.T) {
	labels, err := ReadLabels(bytes.NewReader(idxLabels(25)))
	assert.NoError(t, err)
	assert.Equal(t, 25, len(labels))
	assert.Equal(t, uint8(4), labels[14])

	_, err = ReadLabels(bytes.NewReader(idxImages(1)))
	assert.True(t, errors.Is(err, ErrFormat))

	_, err = ReadLabels(bytes.NewReader(claim(idxLabels(5), math.MaxInt32)))
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestLoad(t *testing.T) {
	for name, compress := range map[string]bool{"gzip": true, "raw": false} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeDataset(t, dir, 20, 5, compress)

			ds, err := Load(dir)
			require.NoError(t, err)
			assert.Equal(t, [3]int{20, ImgSize, ImgSize}, ds.Train.Shape())
			assert.Equal(t, 5, ds.Test.Len())
			assert.Equal(t, 10, len(ds.Classes))
			assert.Equal(t, []int{2, 2, 2, 2, 2, 2, 2, 2, 2, 2}, ds.Train.Counts(10))

			pixels := ds.Train.Pixels(1)
			assert.Equal(t, Pixels, len(pixels))
			assert.InDelta(t, 1.0/255.0, pixels[0], 1e-9)
			for _, p := range pixels {
				assert.True(t, p >= 0 && p <= 1)
			}
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoad_Mismatch(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, 10, 5, false)
	require.NoError(t, os.WriteFile(filepath.Join(dir, TestLabels), idxLabels(4), 0644))
	_, err := Load(dir)
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestSet_Slice(t *testing.T) {
	set := Set{Images: make([]Image, 10), Labels: make([]uint8, 10)}
	assert.Equal(t, 3, set.Slice(3).Len())
	assert.Equal(t, 10, set.Slice(0).Len())
	assert.Equal(t, 10, set.Slice(100).Len())
}

func TestDownload(t *testing.T) {

	content := map[string][]byte{
		TrainImages + ".gz": gz(idxImages(4)),
		TrainLabels + ".gz": gz(idxLabels(4)),
		TestImages + ".gz":  gz(idxImages(2)),
		TestLabels + ".gz":  gz(idxLabels(2)),
	}

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		b, ok := content[filepath.Base(r.URL.Path)]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(b)
	}))
	defer srv.Close()

	dir := t.TempDir()
	err := Download(context.Background(), srv.Client(), srv.URL+"/", dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, calls)

	ds, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Train.Len())

	// present files are not fetched again
	err = Download(context.Background(), srv.Client(), srv.URL, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, calls)

	err = Download(context.Background(), srv.Client(), srv.URL, t.TempDir(), map[string]string{
		TrainImages + ".gz": "0000",
	})
	assert.True(t, errors.Is(err, ErrChecksum))
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, 12, 4, true)
	ds, err := Load(dir)
	require.NoError(t, err)

	sliced := &Dataset{Train: ds.Train.Slice(6), Test: ds.Test.Slice(2), Classes: ds.Classes}
	out := filepath.Join(t.TempDir(), "subset")
	require.NoError(t, Save(out, sliced))

	loaded, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, sliced.Train, loaded.Train)
	assert.Equal(t, sliced.Test, loaded.Test)
}

func TestSet_Sample(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, 12, 4, false)
	ds, err := Load(dir)
	require.NoError(t, err)

	x, y := ds.Train.Sample(3)
	assert.Equal(t, 3, y)
	assert.Equal(t, ds.Train.Pixels(3), x)
}

func TestSet_Subset(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, 12, 4, false)
	ds, err := Load(dir)
	require.NoError(t, err)

	sub := ds.Train.Subset([]int{11, 2})
	assert.Equal(t, 2, sub.Len())
	assert.Equal(t, []uint8{1, 2}, sub.Labels)
	assert.Equal(t, ds.Train.Images[11], sub.Images[0])
	assert.Equal(t, []string{"1", "2"}, sub.Strata())
}
