// Package mount describes host directories exposed inside the interpreter's
// sandboxed filesystem.
//
// Mounts are applied as WASI preopens, so guest code sees them through the
// regular os and io APIs of the interpreter:
//
//	m, _ := mount.Parse("/package_dir:./my-package:rw")
//	fsConfig, _ := mount.Apply(wazero.NewFSConfig(), m)
package mount

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tetratelabs/wazero"
)

var (
	ErrNotDirectory  = errors.New("mount source is not a directory")
	ErrNotExist      = errors.New("mount source does not exist")
	ErrRelativeGuest = errors.New("guest path must be absolute")
	ErrDuplicate     = errors.New("guest path mounted twice")
)

// Mode defines the permission level for a mount point.
type Mode int

const (
	// ReadWrite allows the guest to create, modify and delete entries.
	ReadWrite Mode = iota
	// ReadOnly rejects every write from the guest.
	ReadOnly
)

func (m Mode) String() string {
	if m == ReadOnly {
		return "ro"
	}
	return "rw"
}

// ParseMode accepts "ro" or "rw".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "ro":
		return ReadOnly, nil
	case "rw", "":
		return ReadWrite, nil
	default:
		return ReadWrite, fmt.Errorf("invalid mount mode %q (expected ro or rw)", s)
	}
}

// Mount maps a host directory to a path inside the sandbox.
type Mount struct {
	GuestPath string // Path as seen by guest code (e.g. "/package_dir")
	HostPath  string // Directory on the host filesystem
	Mode      Mode
}

func (m Mount) String() string {
	return m.GuestPath + ":" + m.HostPath + ":" + m.Mode.String()
}

// Parse reads a mount spec of the form guest:host[:mode].
func Parse(spec string) (Mount, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Mount{}, fmt.Errorf("invalid mount spec %q (expected guest:host[:mode])", spec)
	}
	if parts[0] == "" || parts[1] == "" {
		return Mount{}, fmt.Errorf("invalid mount spec %q (empty path)", spec)
	}

	var mode Mode
	if len(parts) == 3 {
		var err error
		if mode, err = ParseMode(parts[2]); err != nil {
			return Mount{}, err
		}
	}

	return Mount{GuestPath: parts[0], HostPath: parts[1], Mode: mode}, nil
}

// Normalize cleans the guest path and resolves the host path to an existing
// absolute directory.
func (m Mount) Normalize() (Mount, error) {
	if !strings.HasPrefix(m.GuestPath, "/") {
		return Mount{}, fmt.Errorf("%w: %q", ErrRelativeGuest, m.GuestPath)
	}
	guest := path.Clean(m.GuestPath)

	host, err := filepath.Abs(m.HostPath)
	if err != nil {
		return Mount{}, fmt.Errorf("resolve %q: %w", m.HostPath, err)
	}

	info, err := os.Stat(host)
	if err != nil {
		if os.IsNotExist(err) {
			return Mount{}, fmt.Errorf("%w: %s", ErrNotExist, host)
		}
		return Mount{}, fmt.Errorf("stat %s: %w", host, err)
	}
	if !info.IsDir() {
		return Mount{}, fmt.Errorf("%w: %s", ErrNotDirectory, host)
	}

	return Mount{GuestPath: guest, HostPath: host, Mode: m.Mode}, nil
}

// Apply normalizes each mount and registers it on cfg.
func Apply(cfg wazero.FSConfig, mounts ...Mount) (wazero.FSConfig, error) {
	seen := make(map[string]bool, len(mounts))
	for _, m := range mounts {
		n, err := m.Normalize()
		if err != nil {
			return nil, err
		}
		if seen[n.GuestPath] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, n.GuestPath)
		}
		seen[n.GuestPath] = true

		if n.Mode == ReadOnly {
			cfg = cfg.WithReadOnlyDirMount(n.HostPath, n.GuestPath)
		} else {
			cfg = cfg.WithDirMount(n.HostPath, n.GuestPath)
		}
	}
	return cfg, nil
}
