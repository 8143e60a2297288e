// Package sysconfig renders the _sysconfigdata module that lets build tools
// running on the host compile extension modules for a wasm interpreter.
package sysconfig

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed default.toml
var defaultProfile string

var ErrInvalidProfile = errors.New("invalid profile")

// Profile describes a cross-compilation target.
type Profile struct {
	Platform      string            `toml:"platform"`       // sys.platform of the target, e.g. "emscripten"
	Multiarch     string            `toml:"multiarch"`      // e.g. "wasm32-emscripten"
	PythonVersion string            `toml:"python_version"` // major.minor
	Vars          map[string]string `toml:"vars"`
}

// DefaultProfile returns the built-in emscripten wasm32 profile.
func DefaultProfile() Profile {
	p, err := ParseProfile(defaultProfile)
	if err != nil {
		panic("sysconfig: embedded profile: " + err.Error())
	}
	return p
}

// LoadProfile reads a TOML profile from path.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(string(data))
}

// ParseProfile decodes and validates a TOML profile.
func ParseProfile(data string) (Profile, error) {
	var p Profile
	md, err := toml.Decode(data, &p)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Profile{}, fmt.Errorf("%w: unknown key %s", ErrInvalidProfile, undecoded[0])
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks the fields every derived variable depends on.
func (p Profile) Validate() error {
	switch {
	case p.Platform == "":
		return fmt.Errorf("%w: platform is required", ErrInvalidProfile)
	case p.Multiarch == "":
		return fmt.Errorf("%w: multiarch is required", ErrInvalidProfile)
	case p.PythonVersion == "":
		return fmt.Errorf("%w: python_version is required", ErrInvalidProfile)
	}
	major, minor, ok := strings.Cut(p.PythonVersion, ".")
	if !ok || major == "" || minor == "" || strings.Contains(minor, ".") {
		return fmt.Errorf("%w: python_version %q is not major.minor", ErrInvalidProfile, p.PythonVersion)
	}
	return nil
}

// ModuleName is the name sysconfig imports for this target.
func (p Profile) ModuleName() string {
	return "_sysconfigdata__" + p.Platform + "_" + p.Multiarch
}

// BuildVars returns the explicit variables plus the ones derived from the
// profile's identity. Explicit values win.
func (p Profile) BuildVars() map[string]string {
	nodot := strings.ReplaceAll(p.PythonVersion, ".", "")
	vars := map[string]string{
		"ABIFLAGS":         "",
		"EXT_SUFFIX":       ".cpython-" + nodot + "-" + p.Multiarch + ".so",
		"HOST_GNU_TYPE":    hostGNUType(p.Multiarch),
		"MULTIARCH":        p.Multiarch,
		"py_version_nodot": nodot,
	}
	for k, v := range p.Vars {
		vars[k] = v
	}
	return vars
}

// wasm32-emscripten -> wasm32-unknown-emscripten
func hostGNUType(multiarch string) string {
	arch, system, ok := strings.Cut(multiarch, "-")
	if !ok {
		return multiarch
	}
	return arch + "-unknown-" + system
}

// Render writes the module source to w.
func (p Profile) Render(w io.Writer) error {
	vars := p.BuildVars()
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("# system configuration generated and used by the sysconfig module\n")
	b.WriteString("build_time_vars = {\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "    %s: %s,\n", quote(k), quote(vars[k]))
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// quote returns s as a double-quoted Python string literal.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\x%02x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
