package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteImages encodes the images as an idx3 file.
func WriteImages(w io.Writer, images []Image) error {
	header := []int32{imagesMagic, int32(len(images)), ImgSize, ImgSize}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return fmt.Errorf("could not write image header: %w", err)
	}
	for i := range images {
		if _, err := w.Write(images[i][:]); err != nil {
			return fmt.Errorf("could not write image %d: %w", i, err)
		}
	}
	return nil
}

// WriteLabels encodes the labels as an idx1 file.
func WriteLabels(w io.Writer, labels []uint8) error {
	if err := binary.Write(w, binary.BigEndian, []int32{labelsMagic, int32(len(labels))}); err != nil {
		return fmt.Errorf("could not write label header: %w", err)
	}
	if _, err := w.Write(labels); err != nil {
		return fmt.Errorf("could not write labels: %w", err)
	}
	return nil
}

// Save writes the dataset as the four gzipped idx files Load expects.
func Save(dir string, ds *Dataset) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("could not make dir '%s': %w", dir, err)
	}
	writers := map[string]func(w io.Writer) error{
		TrainImages: func(w io.Writer) error { return WriteImages(w, ds.Train.Images) },
		TrainLabels: func(w io.Writer) error { return WriteLabels(w, ds.Train.Labels) },
		TestImages:  func(w io.Writer) error { return WriteImages(w, ds.Test.Images) },
		TestLabels:  func(w io.Writer) error { return WriteLabels(w, ds.Test.Labels) },
	}
	for name, write := range writers {
		if err := saveGzip(filepath.Join(dir, name+".gz"), write); err != nil {
			return err
		}
	}
	return nil
}

func saveGzip(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create '%s': %w", path, err)
	}
	defer f.Close()
	zw := gzip.NewWriter(f)
	if err := write(zw); err != nil {
		return fmt.Errorf("could not encode '%s': %w", path, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("could not flush '%s': %w", path, err)
	}
	return f.Close()
}
