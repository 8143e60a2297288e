//go:build wasip1

// Scripted guest for exercising mounts and exit codes without CPython.
// It accepts the interpreter's "-c code" calling convention and runs code
// as one command per line:
//
//	ls <dir>            print entry names
//	cat <file>          copy a file to stdout
//	write <file> <text> write text and a newline to file
//	env <name>          print an environment variable
//	exit <n>            exit with status n
//
// Any failure is reported on stderr with status 1.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func main() {
	if len(os.Args) < 3 || os.Args[1] != "-c" {
		fmt.Fprintln(os.Stderr, "usage: guest -c script")
		os.Exit(2)
	}

	for _, line := range strings.Split(os.Args[2], "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := run(fields[0], fields[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", fields[0], err)
			os.Exit(1)
		}
	}
}

func run(cmd string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing argument")
	}

	switch cmd {
	case "ls":
		entries, err := os.ReadDir(args[0])
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Println(e.Name())
		}
	case "cat":
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		os.Stdout.Write(data)
	case "write":
		return os.WriteFile(args[0], []byte(strings.Join(args[1:], " ")+"\n"), 0644)
	case "env":
		fmt.Println(os.Getenv(args[0]))
	case "exit":
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		os.Exit(n)
	default:
		return fmt.Errorf("unknown command")
	}
	return nil
}
