// Package wasipy runs a WebAssembly (WASI) build of CPython under wazero.
//
// # Overview
//
// The interpreter sees only what is mounted explicitly: its standard
// library, read-only at /, and any host directories the caller adds.
//
// # Basic Usage
//
//	lang, _ := python.Load("python.wasm", python.WithHome("./usr/local"))
//	exec, _ := executor.New(executor.WithDiskCache())
//	defer exec.Close()
//
//	result := exec.Run(ctx, lang, `print("hello")`)
//	fmt.Print(result.Output)
//	os.Exit(result.Status())
//
// # Test Bootstrap
//
//	outcome, err := harness.Run(ctx, exec, lang, harness.Config{
//	    PackageDir: "./mypkg", // visible at /package_dir
//	}, logger)
//
// See the [executor], [mount], [harness], [probe] and [sysconfig] packages
// for detailed API documentation.
package wasipy
