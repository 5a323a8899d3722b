// cmd/wsrb/main.go
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"

	"wsrb/cmd/wsrb/commands"
)

// Command aliases mapping
var commandAliases = map[string]string{
	"r": "run",
	"b": "build",
	"x": "exec",
}

func main() {
	// Global flags (including glog's -v, -logtostderr, ...) come before the
	// subcommand; each subcommand parses its own flags after its name.
	flag.Parse()

	code := dispatch(flag.Args())
	glog.Flush()
	os.Exit(code)
}

func dispatch(args []string) int {
	if len(args) == 0 {
		showUsage()
		return 2
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "help", "-h", "--help", "-help":
		showUsage()
		return 0
	case "run":
		return commands.Run(args[1:])
	case "build":
		return commands.Build(args[1:])
	case "exec":
		return commands.Exec(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "wsrb: unknown command %q\n\n", cmd)
		showUsage()
		return 2
	}
}

func showUsage() {
	fmt.Println(`wsrb - Whitespace toolchain and Wsrb compiler

Usage:
  wsrb run   [-strict-exit] <file.ws>    interpret a Whitespace program
  wsrb build [-o out.ws] <file.wsrb>     compile Wsrb to Whitespace source
  wsrb exec  [-strict-exit] <file.wsrb>  compile and interpret immediately

Aliases: r = run, b = build, x = exec`)
}
