// Package executor runs WASM-compiled interpreters under wazero.
//
// # Overview
//
// The executor owns one wazero runtime, compiles each interpreter module
// once and instantiates a fresh module per Run. Every run gets its own
// arguments, environment, standard streams and preopened directories, and
// reports the status the guest exited with.
//
// # Basic Usage
//
//	exec, err := executor.New(executor.WithDiskCache())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	py, _ := python.Load("python.wasm", python.WithHome("./python-home"))
//	result := exec.Run(ctx, py, `print("hello")`)
//	fmt.Println(result.Output, result.ExitCode)
//
// # Exit Status
//
// A guest that calls proc_exit reports its code in [Result.ExitCode];
// that is not an error. [Result.Error] is reserved for failures on the
// host side such as compile errors, traps and timeouts.
//
// # Mounts
//
// Host directories are exposed as WASI preopens:
//
//	exec.Run(ctx, py, code,
//	    executor.WithMount("/package_dir", "./pkg", mount.ReadWrite))
//
// # Language Interface
//
// To run another interpreter, implement the [Language] interface.
// See [github.com/caffeineduck/wasipy/language/python] for an example.
package executor
