// Package mnist loads 28x28 grayscale image datasets stored in the idx format
// (MNIST, Fashion-MNIST) into memory.
package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
)

const (
	// ImgSize is the width and height of every image.
	ImgSize = 28
	// Pixels is the number of pixels per image.
	Pixels = ImgSize * ImgSize

	imagesMagic = 0x00000803
	labelsMagic = 0x00000801

	maxPrealloc = 1 << 16
)

const (
	TrainImages = "train-images-idx3-ubyte"
	TrainLabels = "train-labels-idx1-ubyte"
	TestImages  = "t10k-images-idx3-ubyte"
	TestLabels  = "t10k-labels-idx1-ubyte"
)

// Files lists the four dataset files, without the compression suffix.
var Files = []string{TrainImages, TrainLabels, TestImages, TestLabels}

var (
	ErrNotFound = errors.New("dataset file not found")
	ErrFormat   = errors.New("invalid idx format")
	ErrChecksum = errors.New("checksum mismatch")
)

// ClassNames are the Fashion-MNIST labels in index order.
var ClassNames = []string{
	"T-shirt/top",
	"Trouser",
	"Pullover",
	"Dress",
	"Coat",
	"Sandal",
	"Shirt",
	"Sneaker",
	"Bag",
	"Ankle boot",
}

// Image is a row-major grayscale image.
type Image [Pixels]byte

// Set is a collection of images paired with their labels.
type Set struct {
	Images []Image
	Labels []uint8
}

// Dataset holds the train and test partitions.
type Dataset struct {
	Train   Set
	Test    Set
	Classes []string
}

// Len returns the number of images in the set.
func (s Set) Len() int {
	return len(s.Images)
}

// Shape returns the dimensions of the image tensor.
func (s Set) Shape() [3]int {
	return [3]int{len(s.Images), ImgSize, ImgSize}
}

// Slice returns the first limit samples of the set, or the whole set if limit is not positive.
func (s Set) Slice(limit int) Set {
	if limit <= 0 || limit >= s.Len() {
		return s
	}
	return Set{
		Images: s.Images[:limit],
		Labels: s.Labels[:limit],
	}
}

// Subset returns the samples at the given indices.
func (s Set) Subset(idx []int) Set {
	sub := Set{
		Images: make([]Image, len(idx)),
		Labels: make([]uint8, len(idx)),
	}
	for i, j := range idx {
		sub.Images[i], sub.Labels[i] = s.Images[j], s.Labels[j]
	}
	return sub
}

// Strata returns the labels as strings, for stratified splits.
func (s Set) Strata() []string {
	strata := make([]string, len(s.Labels))
	for i, l := range s.Labels {
		strata[i] = strconv.Itoa(int(l))
	}
	return strata
}

// Pixels returns the image at index i with values scaled to [0,1].
func (s Set) Pixels(i int) []float64 {
	return s.Images[i].Scaled()
}

// Sample returns the scaled pixels and the label at index i.
func (s Set) Sample(i int) ([]float64, int) {
	return s.Pixels(i), int(s.Labels[i])
}

// Counts returns the number of samples per class.
func (s Set) Counts(classes int) []int {
	counts := make([]int, classes)
	for _, l := range s.Labels {
		if int(l) < classes {
			counts[l]++
		}
	}
	return counts
}

// Scaled returns the pixel values divided by 255.
func (img Image) Scaled() []float64 {
	x := make([]float64, Pixels)
	for i, p := range img {
		x[i] = float64(p) / 255.0
	}
	return x
}

// ReadImages parses an idx3 image file.
func ReadImages(r io.Reader) ([]Image, error) {
	var header struct {
		Magic, N, Rows, Cols int32
	}
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("could not read image header: %w", ErrFormat)
	}
	if header.Magic != imagesMagic {
		return nil, fmt.Errorf("unexpected image magic number %x: %w", header.Magic, ErrFormat)
	}
	if header.Rows != ImgSize || header.Cols != ImgSize {
		return nil, fmt.Errorf("unexpected image size %dx%d: %w", header.Rows, header.Cols, ErrFormat)
	}
	if header.N < 0 {
		return nil, fmt.Errorf("negative image count %d: %w", header.N, ErrFormat)
	}
	// the header count is not trusted for allocation, the slice grows as images arrive
	images := make([]Image, 0, capacity(header.N))
	for i := 0; i < int(header.N); i++ {
		var img Image
		if _, err := io.ReadFull(r, img[:]); err != nil {
			return nil, fmt.Errorf("could not read image %d of %d: %w", i, header.N, ErrFormat)
		}
		images = append(images, img)
	}
	return images, nil
}

// ReadLabels parses an idx1 label file.
func ReadLabels(r io.Reader) ([]uint8, error) {
	var header struct {
		Magic, N int32
	}
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("could not read label header: %w", ErrFormat)
	}
	if header.Magic != labelsMagic {
		return nil, fmt.Errorf("unexpected label magic number %x: %w", header.Magic, ErrFormat)
	}
	if header.N < 0 {
		return nil, fmt.Errorf("negative label count %d: %w", header.N, ErrFormat)
	}
	labels, err := io.ReadAll(io.LimitReader(r, int64(header.N)))
	if err != nil {
		return nil, fmt.Errorf("could not read %d labels: %w", header.N, err)
	}
	if len(labels) != int(header.N) {
		return nil, fmt.Errorf("read %d of %d labels: %w", len(labels), header.N, ErrFormat)
	}
	return labels, nil
}

// capacity bounds the preallocation for a count read from a file header.
func capacity(n int32) int {
	if n > maxPrealloc {
		return maxPrealloc
	}
	return int(n)
}

// Load reads the train and test partitions from the given directory.
// Both gzipped (.gz) and uncompressed files are accepted, gzipped ones take precedence.
func Load(dir string) (*Dataset, error) {
	train, err := loadSet(dir, TrainImages, TrainLabels)
	if err != nil {
		return nil, err
	}
	test, err := loadSet(dir, TestImages, TestLabels)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("dir", dir).
		Int("train", train.Len()).
		Int("test", test.Len()).
		Msg("loaded image dataset")
	return &Dataset{
		Train:   train,
		Test:    test,
		Classes: ClassNames,
	}, nil
}

func loadSet(dir, imagesFile, labelsFile string) (Set, error) {
	var set Set
	err := withFile(dir, imagesFile, func(r io.Reader) error {
		images, err := ReadImages(r)
		set.Images = images
		return err
	})
	if err != nil {
		return set, fmt.Errorf("could not load '%s': %w", imagesFile, err)
	}
	err = withFile(dir, labelsFile, func(r io.Reader) error {
		labels, err := ReadLabels(r)
		set.Labels = labels
		return err
	})
	if err != nil {
		return set, fmt.Errorf("could not load '%s': %w", labelsFile, err)
	}
	if len(set.Images) != len(set.Labels) {
		return set, fmt.Errorf("%d images vs %d labels: %w", len(set.Images), len(set.Labels), ErrFormat)
	}
	return set, nil
}

func withFile(dir, name string, read func(r io.Reader) error) error {
	gz := filepath.Join(dir, name+".gz")
	if f, err := os.Open(gz); err == nil {
		defer f.Close()
		zr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("could not open gzip stream '%s': %w", gz, err)
		}
		defer zr.Close()
		return read(zr)
	}
	raw := filepath.Join(dir, name)
	f, err := os.Open(raw)
	if err != nil {
		return fmt.Errorf("no '%s' in '%s': %w", name, dir, ErrNotFound)
	}
	defer f.Close()
	return read(f)
}
