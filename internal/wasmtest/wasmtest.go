// Package wasmtest assembles tiny WASI modules for tests that need a guest
// without shipping an interpreter binary.
package wasmtest

const wasi = "wasi_snapshot_preview1"

// EchoExit returns a module whose _start writes msg to stdout and then
// calls proc_exit(code). msg must be shorter than 32 bytes and code
// below 64.
func EchoExit(msg string, code byte) []byte {
	if len(msg) >= 32 || code >= 64 {
		panic("wasmtest: message or exit code out of range")
	}

	types := vec(
		funcType([]byte{i32, i32, i32, i32}, []byte{i32}), // fd_write
		funcType([]byte{i32}, nil),                        // proc_exit
		funcType(nil, nil),                                // _start
	)
	imports := vec(
		importFunc(wasi, "fd_write", 0),
		importFunc(wasi, "proc_exit", 1),
	)

	body := []byte{
		0x00,       // no locals
		0x41, 0x01, // i32.const 1 (stdout)
		0x41, 0x00, // i32.const 0 (iovec)
		0x41, 0x01, // i32.const 1 (iovec count)
		0x41, 0x30, // i32.const 48 (nwritten)
		0x10, 0x00, // call fd_write
		0x1a,       // drop
		0x41, code, // i32.const code
		0x10, 0x01, // call proc_exit
		0x0b,
	}

	// iovec {buf: 8, len: len(msg)} followed by the message at offset 8.
	data := []byte{8, 0, 0, 0, byte(len(msg)), 0, 0, 0}
	data = append(data, msg...)
	segment := append([]byte{0x00, 0x41, 0x00, 0x0b}, bytes(data)...)

	return module(types, imports, 2, body, vec(segment))
}

// Exit returns a module that calls proc_exit(code) without output.
func Exit(code byte) []byte {
	if code >= 64 {
		panic("wasmtest: exit code out of range")
	}
	types := vec(funcType([]byte{i32}, nil), funcType(nil, nil))
	imports := vec(importFunc(wasi, "proc_exit", 0))
	body := []byte{0x00, 0x41, code, 0x10, 0x00, 0x0b}
	return module(types, imports, 1, body, nil)
}

// Loop returns a module whose _start never returns.
func Loop() []byte {
	types := vec(funcType([]byte{i32}, nil), funcType(nil, nil))
	imports := vec(importFunc(wasi, "proc_exit", 0))
	body := []byte{
		0x00,
		0x03, 0x40, // loop
		0x0c, 0x00, // br 0
		0x0b, // end loop
		0x0b,
	}
	return module(types, imports, 1, body, nil)
}

const i32 = 0x7f

func module(types, imports []byte, startType byte, body, data []byte) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(1, types)...)
	out = append(out, section(2, imports)...)
	out = append(out, section(3, vec([]byte{startType}))...)
	out = append(out, section(5, vec([]byte{0x00, 0x01}))...)

	startIndex := startType // imported functions precede _start
	out = append(out, section(7, vec(
		append(name("memory"), 0x02, 0x00),
		append(name("_start"), 0x00, startIndex),
	))...)
	out = append(out, section(10, vec(bytes(body)))...)
	if data != nil {
		out = append(out, section(11, data)...)
	}
	return out
}

func funcType(params, results []byte) []byte {
	t := []byte{0x60}
	t = append(t, bytes(params)...)
	return append(t, bytes(results)...)
}

func importFunc(mod, field string, typeIndex byte) []byte {
	out := append(name(mod), name(field)...)
	return append(out, 0x00, typeIndex)
}

func section(id byte, content []byte) []byte {
	return append([]byte{id}, bytes(content)...)
}

func name(s string) []byte {
	return bytes([]byte(s))
}

// bytes prefixes b with its length as a LEB128 u32.
func bytes(b []byte) []byte {
	return append(uleb(uint32(len(b))), b...)
}

func vec(items ...[]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}
