package commands

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"wsrb/internal/compiler"
)

// Exec compiles a Wsrb file and interprets it immediately, skipping the
// round trip through Whitespace text.
func Exec(args []string) int {
	fs := flag.NewFlagSet("exec", flag.ExitOnError)
	strict := fs.Bool("strict-exit", false, "exit 1 when the program terminates via raise")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: wsrb exec [-strict-exit] <file.wsrb>")
		return 2
	}
	file := fs.Arg(0)
	src, err := os.ReadFile(file)
	if err != nil {
		glog.Errorf("%v", err)
		return 1
	}
	prog, err := compiler.CompileSource(file, string(src))
	if err != nil {
		glog.Errorf("%v", err)
		return 1
	}
	glog.V(1).Infof("compiled %s: %d instructions", file, len(prog))
	return execute(prog, *strict)
}
