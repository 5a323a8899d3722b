// compile.go ties the front half of the toolchain together: scan, parse,
// register the prelude's definitions, lower everything to IR.
package compiler

import (
	"wsrb/internal/ir"
	"wsrb/internal/prelude"
	"wsrb/internal/wsast"
	"wsrb/internal/wslexer"
	"wsrb/internal/wsparser"
)

// CompileSource lowers Wsrb source text to a complete IR program. The
// prelude's class definitions are parsed first so user code can call them;
// like every definition they only produce code when actually called.
func CompileSource(file, source string) (ir.Program, error) {
	preStmts, err := parse("<prelude>", prelude.Source)
	if err != nil {
		return nil, err
	}
	userStmts, err := parse(file, source)
	if err != nil {
		return nil, err
	}
	return NewState(file).Compile(append(preStmts, userStmts...))
}

func parse(file, source string) ([]wsast.Stmt, error) {
	tokens := wslexer.NewScanner(source).ScanTokens()
	return wsparser.NewParser(tokens, file).Parse()
}
