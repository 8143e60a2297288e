package fetch

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type entry struct {
	name, body string
}

func tarball(t *testing.T, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for _, e := range entries {
		name, body := e.name, e.body
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestDownloadFile(t *testing.T) {
	module := []byte("\x00asm\x01\x00\x00\x00")
	srv := serve(t, map[string][]byte{"/python.wasm": module})
	dest := filepath.Join(t.TempDir(), "python", "python.wasm")

	got, err := Download(context.Background(), srv.URL+"/python.wasm", dest, Options{SHA256: digest(module)})
	require.NoError(t, err)
	assert.True(t, got)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, module, data)
}

func TestDownloadSkipsExisting(t *testing.T) {
	srv := serve(t, map[string][]byte{"/python.wasm": []byte("new")})
	dest := filepath.Join(t.TempDir(), "python.wasm")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

	got, err := Download(context.Background(), srv.URL+"/python.wasm", dest, Options{})
	require.NoError(t, err)
	assert.False(t, got)
	data, _ := os.ReadFile(dest)
	assert.Equal(t, "old", string(data))

	got, err = Download(context.Background(), srv.URL+"/python.wasm", dest, Options{Force: true})
	require.NoError(t, err)
	assert.True(t, got)
	data, _ = os.ReadFile(dest)
	assert.Equal(t, "new", string(data))
}

func TestDownloadChecksumMismatch(t *testing.T) {
	srv := serve(t, map[string][]byte{"/python.wasm": []byte("tampered")})
	dir := t.TempDir()
	dest := filepath.Join(dir, "python.wasm")

	_, err := Download(context.Background(), srv.URL+"/python.wasm", dest, Options{SHA256: digest([]byte("original"))})
	assert.ErrorIs(t, err, ErrChecksum)
	assert.NoFileExists(t, dest)

	leftovers, _ := os.ReadDir(dir)
	assert.Empty(t, leftovers, "temp file should be removed")
}

func TestDownloadNotFound(t *testing.T) {
	srv := serve(t, nil)
	_, err := Download(context.Background(), srv.URL+"/missing.wasm", filepath.Join(t.TempDir(), "x"), Options{})
	assert.ErrorIs(t, err, ErrStatus)
}

func TestDownloadArchive(t *testing.T) {
	archive := tarball(t,
		entry{"bin/python.wasm", "module"},
		entry{"lib/python3.12/os.py", "# os"},
		entry{"lib/python3.12/encodings/x.py", "# x"},
	)
	srv := serve(t, map[string][]byte{"/python-3.12.tar.gz": archive})
	dest := filepath.Join(t.TempDir(), "python")

	got, err := Download(context.Background(), srv.URL+"/python-3.12.tar.gz", dest, Options{})
	require.NoError(t, err)
	assert.True(t, got)

	assert.FileExists(t, filepath.Join(dest, "bin", "python.wasm"))
	data, err := os.ReadFile(filepath.Join(dest, "lib", "python3.12", "os.py"))
	require.NoError(t, err)
	assert.Equal(t, "# os", string(data))
}

func TestDownloadArchiveRejectsEscape(t *testing.T) {
	archive := tarball(t, entry{"../evil.txt", "x"})
	srv := serve(t, map[string][]byte{"/evil.tgz": archive})
	base := t.TempDir()

	_, err := Download(context.Background(), srv.URL+"/evil.tgz", filepath.Join(base, "python"), Options{})
	assert.ErrorIs(t, err, ErrPathEscape)
	assert.NoFileExists(t, filepath.Join(base, "evil.txt"))
}

func TestDownloadArchiveFailureLeavesNoPartialInstall(t *testing.T) {
	archive := tarball(t,
		entry{"bin/python.wasm", "module"},
		entry{"../evil.txt", "x"},
	)
	srv := serve(t, map[string][]byte{"/python.tar.gz": archive})
	base := t.TempDir()
	dest := filepath.Join(base, "python")

	got, err := Download(context.Background(), srv.URL+"/python.tar.gz", dest, Options{})
	assert.ErrorIs(t, err, ErrPathEscape)
	assert.False(t, got)
	assert.NoDirExists(t, dest)

	leftovers, _ := os.ReadDir(base)
	assert.Empty(t, leftovers, "staging files should be removed")

	// A retry must not mistake a broken install for a finished one.
	_, err = Download(context.Background(), srv.URL+"/python.tar.gz", dest, Options{})
	assert.ErrorIs(t, err, ErrPathEscape)
}

func TestDownloadArchiveForceReplaces(t *testing.T) {
	srv := serve(t, map[string][]byte{"/python.tgz": tarball(t, entry{"bin/python.wasm", "new"})})
	dest := filepath.Join(t.TempDir(), "python")
	require.NoError(t, os.MkdirAll(filepath.Join(dest, "stale"), 0755))

	got, err := Download(context.Background(), srv.URL+"/python.tgz", dest, Options{Force: true})
	require.NoError(t, err)
	assert.True(t, got)
	assert.NoDirExists(t, filepath.Join(dest, "stale"))
	data, err := os.ReadFile(filepath.Join(dest, "bin", "python.wasm"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestIsArchive(t *testing.T) {
	assert.True(t, IsArchive("https://example.com/python.tar.gz"))
	assert.True(t, IsArchive("https://example.com/python.tgz"))
	assert.False(t, IsArchive("https://example.com/python.wasm"))
}
