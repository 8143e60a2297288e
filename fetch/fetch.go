// Package fetch downloads interpreter builds: a bare .wasm module or a
// .tar.gz archive holding the module and its standard library.
package fetch

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

var (
	ErrChecksum   = errors.New("checksum mismatch")
	ErrStatus     = errors.New("unexpected HTTP status")
	ErrPathEscape = errors.New("archive entry escapes destination")
)

// Options tune a download.
type Options struct {
	SHA256 string       // Expected hex digest of the downloaded bytes, if known
	Force  bool         // Download even if dest already exists
	Client *http.Client // Defaults to http.DefaultClient
}

// IsArchive reports whether url names a gzipped tarball.
func IsArchive(url string) bool {
	return strings.HasSuffix(url, ".tar.gz") || strings.HasSuffix(url, ".tgz")
}

// Download fetches url into dest. For archives dest is a directory the
// archive is extracted into; otherwise it is the file to write. An existing
// dest is left alone unless opts.Force is set. Returns whether anything
// was downloaded.
func Download(ctx context.Context, url, dest string, opts Options) (bool, error) {
	if !opts.Force {
		if _, err := os.Stat(dest); err == nil {
			return false, nil
		}
	}

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	tmp, err := fetchToTemp(ctx, client, url, filepath.Dir(dest), opts.SHA256)
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp)

	if IsArchive(url) {
		if err := install(tmp, dest); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := os.Rename(tmp, dest); err != nil {
		return false, fmt.Errorf("install %s: %w", dest, err)
	}
	return true, nil
}

func fetchToTemp(ctx context.Context, client *http.Client, url, dir, want string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".wasipy-download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	h := sha256.New()
	_, copyErr := io.Copy(io.MultiWriter(f, h), resp.Body)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("download %s: %w", url, err)
	}

	if want != "" {
		got := hex.EncodeToString(h.Sum(nil))
		if !strings.EqualFold(got, want) {
			os.Remove(f.Name())
			return "", fmt.Errorf("%w: got %s, want %s", ErrChecksum, got, want)
		}
	}

	return f.Name(), nil
}

// install extracts archive next to dest and moves the result into place,
// so dest only ever holds a complete tree.
func install(archive, dest string) error {
	staging, err := os.MkdirTemp(filepath.Dir(dest), ".wasipy-extract-*")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := extract(archive, staging); err != nil {
		return err
	}
	if err := os.Chmod(staging, 0755); err != nil {
		return err
	}
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("replace %s: %w", dest, err)
	}
	if err := os.Rename(staging, dest); err != nil {
		return fmt.Errorf("install %s: %w", dest, err)
	}
	return nil
}

func extract(archive, dest string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}

		target := filepath.Join(root, filepath.FromSlash(hdr.Name))
		if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s", ErrPathEscape, hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		default:
			// Links and devices are not needed to run an interpreter.
		}
	}
}

func writeFile(path string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm|0200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", path, err)
	}
	return out.Close()
}
