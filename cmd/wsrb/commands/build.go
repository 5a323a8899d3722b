package commands

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"wsrb/internal/compiler"
	"wsrb/internal/wsformat"
)

// Build compiles a Wsrb file and writes the Whitespace source to stdout
// or to the -o path.
func Build(args []string) int {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	out := fs.String("o", "", "write Whitespace output to this file instead of stdout")
	fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: wsrb build [-o out.ws] <file.wsrb>")
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
	encoded := wsformat.Encode(prog)
	glog.V(1).Infof("compiled %s: %d instructions, %d bytes of Whitespace", file, len(prog), len(encoded))
	if *out == "" {
		os.Stdout.Write(encoded)
		return 0
	}
	if err := os.WriteFile(*out, encoded, 0o644); err != nil {
		glog.Errorf("%v", err)
		return 1
	}
	return 0
}
