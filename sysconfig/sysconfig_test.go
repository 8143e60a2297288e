package sysconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile()
	assert.Equal(t, "_sysconfigdata__emscripten_wasm32-emscripten", p.ModuleName())

	vars := p.BuildVars()
	assert.Equal(t, ".cpython-310-wasm32-emscripten.so", vars["EXT_SUFFIX"])
	assert.Equal(t, "wasm32-unknown-emscripten", vars["HOST_GNU_TYPE"])
	assert.Equal(t, "310", vars["py_version_nodot"])
	assert.Equal(t, "emcc -sSIDE_MODULE=1", vars["LDSHARED"])
	assert.Equal(t, "", vars["ABIFLAGS"])
}

func TestExplicitVarsWin(t *testing.T) {
	p := Profile{
		Platform:      "wasi",
		Multiarch:     "wasm32-wasi",
		PythonVersion: "3.12",
		Vars:          map[string]string{"EXT_SUFFIX": ".so"},
	}
	assert.Equal(t, ".so", p.BuildVars()["EXT_SUFFIX"])
	assert.Equal(t, "312", p.BuildVars()["py_version_nodot"])
}

func TestRender(t *testing.T) {
	p := Profile{
		Platform:      "wasi",
		Multiarch:     "wasm32-wasi",
		PythonVersion: "3.12",
		Vars:          map[string]string{"CC": `clang "quoted" \path`},
	}

	var b strings.Builder
	require.NoError(t, p.Render(&b))
	out := b.String()

	assert.True(t, strings.HasPrefix(out, "# system configuration generated and used by the sysconfig module\n"))
	assert.Contains(t, out, "build_time_vars = {\n")
	assert.Contains(t, out, `    "CC": "clang \"quoted\" \\path",`)
	assert.Contains(t, out, `    "EXT_SUFFIX": ".cpython-312-wasm32-wasi.so",`)
	assert.True(t, strings.HasSuffix(out, "}\n"))

	// keys are sorted
	abi := strings.Index(out, `"ABIFLAGS"`)
	cc := strings.Index(out, `"CC"`)
	assert.Less(t, abi, cc)
}

func TestParseProfileErrors(t *testing.T) {
	tests := map[string]string{
		"bad toml":        "platform = ",
		"unknown key":     "platform = \"wasi\"\nmultiarch = \"wasm32-wasi\"\npython_version = \"3.12\"\nextra = 1\n",
		"missing version": "platform = \"wasi\"\nmultiarch = \"wasm32-wasi\"\n",
		"bad version":     "platform = \"wasi\"\nmultiarch = \"wasm32-wasi\"\npython_version = \"3.12.1\"\n",
		"missing arch":    "platform = \"wasi\"\npython_version = \"3.12\"\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProfile(data)
			assert.ErrorIs(t, err, ErrInvalidProfile)
		})
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wasi.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
platform = "wasi"
multiarch = "wasm32-wasi"
python_version = "3.12"

[vars]
CC = "clang --target=wasm32-wasi"
`), 0644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "clang --target=wasm32-wasi", p.Vars["CC"])
	assert.Equal(t, "_sysconfigdata__wasi_wasm32-wasi", p.ModuleName())

	_, err = LoadProfile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `""`, quote(""))
	assert.Equal(t, `"a\nb"`, quote("a\nb"))
	assert.Equal(t, `"\x01"`, quote("\x01"))
}
