package wasmtest

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
)

var (
	guestOnce sync.Once
	guestWasm []byte
	guestErr  error
)

// Guest returns the scripted WASI guest in testdata/guest, compiled with
// the host Go toolchain on first use. It runs code passed as "-c code"
// one command per line (ls, cat, write, env, exit), which is enough to
// observe mounts, environment and exit status end to end.
//
// Tests are skipped when no Go toolchain is available.
func Guest(tb testing.TB) []byte {
	tb.Helper()
	guestOnce.Do(func() {
		guestWasm, guestErr = buildGuest()
	})
	if guestErr == errNoToolchain {
		tb.Skip("go toolchain not available to build the wasip1 guest")
	}
	if guestErr != nil {
		tb.Fatalf("build guest: %v", guestErr)
	}
	return guestWasm
}

var errNoToolchain = errors.New("no go toolchain")

func buildGuest() ([]byte, error) {
	goBin, err := exec.LookPath("go")
	if err != nil {
		goBin = filepath.Join(runtime.GOROOT(), "bin", "go")
		if _, err := os.Stat(goBin); err != nil {
			return nil, errNoToolchain
		}
	}

	_, self, _, ok := runtime.Caller(0)
	if !ok {
		return nil, fmt.Errorf("locate guest source")
	}
	srcDir := filepath.Join(filepath.Dir(self), "testdata", "guest")

	outDir, err := os.MkdirTemp("", "wasipy-guest-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(outDir)
	out := filepath.Join(outDir, "guest.wasm")

	cmd := exec.Command(goBin, "build", "-o", out, "main.go")
	cmd.Dir = srcDir
	cmd.Env = append(os.Environ(), "GOOS=wasip1", "GOARCH=wasm", "CGO_ENABLED=0")
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%w: %s", err, output)
	}
	return os.ReadFile(out)
}
