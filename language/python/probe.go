package python

// Probe is a fixed snippet whose stdout is the value being asked for.
type Probe struct {
	Name string
	Code string
}

// PythonVersion prints the interpreter's major.minor version, e.g. "3.12".
var PythonVersion = Probe{
	Name: "python-version",
	Code: `import sys
major, minor = sys.version_info[:2]
print(f"{major}.{minor}")
`,
}

// PlatformVersion prints the release field of platform.platform(), which
// for a wasm build is the version of the toolchain's platform layer.
var PlatformVersion = Probe{
	Name: "platform-version",
	Code: `import platform
print(platform.platform().split("-")[1])
`,
}

// Probes lists every known probe by name.
var Probes = map[string]Probe{
	PythonVersion.Name:   PythonVersion,
	PlatformVersion.Name: PlatformVersion,
}
