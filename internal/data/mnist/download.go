package mnist

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Download fetches the gzipped dataset files missing from dir out of baseURL.
// When checksums holds a sha256 digest for a file, the downloaded content must match it.
func Download(ctx context.Context, client *http.Client, baseURL, dir string, checksums map[string]string) error {
	if client == nil {
		client = http.DefaultClient
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("could not make dir '%s': %w", dir, err)
	}
	for _, name := range Files {
		file := name + ".gz"
		target := filepath.Join(dir, file)
		if _, err := os.Stat(target); err == nil {
			log.Debug().Str("file", target).Msg("dataset file present")
			continue
		}
		url := strings.TrimSuffix(baseURL, "/") + "/" + file
		if err := fetch(ctx, client, url, target, checksums[file]); err != nil {
			return err
		}
		log.Info().Str("url", url).Str("file", target).Msg("downloaded dataset file")
	}
	return nil
}

func fetch(ctx context.Context, client *http.Client, url, target, checksum string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("could not create request for '%s': %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("could not fetch '%s': %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("could not fetch '%s' status %d: %w", url, resp.StatusCode, ErrNotFound)
	}

	tmp := target + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("could not create file '%s': %w", tmp, err)
	}
	h := sha256.New()
	_, err = io.Copy(io.MultiWriter(f, h), resp.Body)
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("could not write '%s': %w", tmp, err)
	}
	if sum := fmt.Sprintf("%x", h.Sum(nil)); checksum != "" && sum != checksum {
		_ = os.Remove(tmp)
		return fmt.Errorf("file '%s' has digest %s: %w", url, sum, ErrChecksum)
	}
	return os.Rename(tmp, target)
}
