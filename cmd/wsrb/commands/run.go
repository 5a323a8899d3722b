// Package commands implements the three CLI subcommands. Each
// returns a process exit code: 0 on success, non-zero only on host-level
// failure. A raise inside compiled user code prints its formatted line and
// still exits 0 unless -strict-exit is given.
package commands

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"wsrb/internal/compiler"
	"wsrb/internal/ir"
	"wsrb/internal/vm"
	"wsrb/internal/wsformat"
)

// Run interprets an already-compiled Whitespace file.
func Run(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	strict := fs.Bool("strict-exit", false, "exit 1 when the program terminates via raise")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: wsrb run [-strict-exit] <file.ws>")
		return 2
	}
	src, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		glog.Errorf("%v", err)
		return 1
	}
	prog, err := wsformat.Decode(src)
	if err != nil {
		glog.Errorf("%v", err)
		return 1
	}
	glog.V(1).Infof("decoded %s: %d instructions", fs.Arg(0), len(prog))
	return execute(prog, *strict)
}

// execute runs an IR program on stdin/stdout and maps its outcome to an
// exit code.
func execute(prog ir.Program, strict bool) int {
	m, err := vm.New(prog, os.Stdin, os.Stdout)
	if err != nil {
		glog.Errorf("%v", err)
		return 1
	}
	if err := m.Run(); err != nil {
		glog.Errorf("%v", err)
		return 1
	}
	if strict && m.HeapCell(vm.TmpAddr).Cmp(compiler.RaiseSentinel) == 0 {
		glog.V(1).Info("program terminated via raise; -strict-exit maps it to exit 1")
		return 1
	}
	return 0
}
