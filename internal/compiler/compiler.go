// Package compiler lowers a Wsrb AST (wsast) to the shared IR (ir).
// Orchestration and literal/variable lowering live here; control flow,
// dispatch and the calling convention are split into controlflow.go,
// dispatch.go and calls.go respectively.
package compiler

import (
	"fmt"
	"math/big"

	"wsrb/internal/ir"
	"wsrb/internal/runtime"
	"wsrb/internal/wsast"
	"wsrb/internal/wserr"
)

// Reserved heap addresses, shared with internal/vm.
const (
	NoneAddr  int64 = 0
	TmpAddr   int64 = 1
	HeapCount int64 = 2
	firstFree int64 = 3
)

// RaiseSentinel is stashed at TmpAddr immediately before a raise-triggered
// EXIT, so the host can distinguish a raise from ordinary completion when
// -strict-exit is requested.
var RaiseSentinel = big.NewInt(-1)

// FuncInfo describes one compiled (or not-yet-compiled) procedure: either
// a top-level `def` (Class == "") or a class method.
type FuncInfo struct {
	Def        *wsast.DefStmt
	Label      ir.Label
	SelfAddr   int64
	ParamAddrs []int64
	Reserved   bool // label/addresses allocated
	Compiled   bool // body emitted (or queued) into state.funcBodies
	Builtin    bool // provided by internal/runtime, body supplied externally
}

// State holds every piece of compile-time bookkeeping the lowering needs.
type State struct {
	file string

	labelSeq int64
	addrSeq  int64

	main       ir.Program
	funcBodies ir.Program

	functions map[string]*FuncInfo       // funcKey -> info
	dispatch  map[string]map[string]bool // class -> method name set
	pending   []*FuncInfo                // reserved but not yet emitted bodies
	scope     map[string]int64           // active local name -> address
	curClass  string                     // class of method currently being compiled ("" = top-level)
	curSelf   int64                      // self-slot address of current compilation context
	hasSelf   bool

	rt *runtime.Routines // Array/Hash primitives, installed at construction
}

func NewState(file string) *State {
	s := &State{
		file:      file,
		addrSeq:   firstFree,
		functions: make(map[string]*FuncInfo),
		dispatch:  make(map[string]map[string]bool),
		scope:     make(map[string]int64),
	}
	s.rt = runtime.Build(s, s)
	return s
}

func funcKey(class, name string) string {
	if class == "" {
		return "::" + name
	}
	return class + "::" + name
}

// RegisterBuiltin pre-populates the dispatch table and function registry
// for a runtime-support routine emitted once by internal/runtime. Its body
// is appended directly by the caller via AppendBuiltinBody.
func (s *State) RegisterBuiltin(class, name string, label ir.Label, selfAddr int64, paramAddrs []int64) {
	key := funcKey(class, name)
	s.functions[key] = &FuncInfo{
		Label: label, SelfAddr: selfAddr, ParamAddrs: paramAddrs,
		Reserved: true, Compiled: true, Builtin: true,
	}
	s.markDispatch(class, name)
}

func (s *State) markDispatch(class, name string) {
	set, ok := s.dispatch[class]
	if !ok {
		set = make(map[string]bool)
		s.dispatch[class] = set
	}
	set[name] = true
}

// AppendBuiltinBody appends an already-lowered routine (DEF label .. END)
// to the function-body segment emitted after the main program.
func (s *State) AppendBuiltinBody(body ir.Program) {
	s.funcBodies = append(s.funcBodies, body...)
}

func (s *State) NewLabel() ir.Label {
	s.labelSeq++
	return ir.Label(minimalBits(s.labelSeq))
}

// minimalBits is the minimal-width binary representation of n (n >= 1),
// with no leading zero, guaranteeing an injective label allocator.
func minimalBits(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf []byte
	for n > 0 {
		if n&1 == 1 {
			buf = append([]byte{'1'}, buf...)
		} else {
			buf = append([]byte{'0'}, buf...)
		}
		n >>= 1
	}
	return string(buf)
}

func (s *State) NewAddr() int64 {
	a := s.addrSeq
	s.addrSeq++
	return a
}

func (s *State) emit(instrs ...ir.Instr) {
	s.main = append(s.main, instrs...)
}

func (s *State) errorf(line, col int, format string, args ...interface{}) {
	panic(wserr.NewParseError(s.file, line, col, format, args...))
}

// Compile lowers the full top-level statement list (prelude statements
// prepended by the caller) to a flat IR program.
func (s *State) Compile(stmts []wsast.Stmt) (prog ir.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*wserr.Error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	s.predeclare(stmts)
	for _, st := range stmts {
		s.compileStmt(st)
	}
	s.drainPending()
	// Initialize the bump pointer to the last statically assigned address
	// ahead of everything else, so dynamic allocations never collide
	// with compiler-assigned cells.
	prog = ir.Program{ir.PushInt(s.addrSeq - 1), ir.PushInt(HeapCount), ir.Simple(ir.SAVE)}
	prog = append(prog, s.main...)
	prog = append(prog, ir.Simple(ir.EXIT))
	prog = append(prog, s.funcBodies...)
	return prog, nil
}

// predeclare registers every def/class in the program before compiling any
// call sites, so forward references and mutual recursion resolve. Bodies
// are NOT compiled here — only the first call site triggers that.
func (s *State) predeclare(stmts []wsast.Stmt) {
	for _, st := range stmts {
		switch n := st.(type) {
		case *wsast.DefStmt:
			s.queueDef(n)
		case *wsast.ClassStmt:
			switch n.Name {
			case "Array", "Hash", "Integer":
			default:
				s.errorf(n.Line, n.Col, "cannot reopen unknown class %q", n.Name)
			}
			for _, m := range n.Methods {
				s.queueDef(m)
			}
		}
	}
}

func (s *State) queueDef(d *wsast.DefStmt) {
	key := funcKey(d.Class, d.Name)
	s.functions[key] = &FuncInfo{Def: d}
	s.markDispatch(d.Class, d.Name)
}

func (s *State) compileStmt(st wsast.Stmt) {
	switch n := st.(type) {
	case *wsast.ExprStmt:
		s.compileExpr(n.Expr)
		s.emit(ir.Simple(ir.POP))
	case *wsast.DefStmt, *wsast.ClassStmt:
		// already predeclared; bodies compile lazily from call sites.
	default:
		panic(fmt.Sprintf("compiler: unhandled stmt %T", st))
	}
}

// compileBlock compiles a sequence of statements; the value left on the
// stack is that of the last statement (or NIL if the block is empty).
func (s *State) compileBlock(b *wsast.BlockExpr) {
	if len(b.Stmts) == 0 {
		s.emit(ir.Push(ir.Nil))
		return
	}
	for i, st := range b.Stmts {
		last := i == len(b.Stmts)-1
		es, ok := st.(*wsast.ExprStmt)
		if !ok {
			s.compileStmt(st)
			if last {
				s.emit(ir.Push(ir.Nil))
			}
			continue
		}
		s.compileExpr(es.Expr)
		if !last {
			s.emit(ir.Simple(ir.POP))
		}
	}
}

// --- ExprVisitor dispatch ---

func (s *State) compileExpr(e wsast.Expr) { e.Accept(s) }

func (s *State) VisitIntLit(n *wsast.IntLit) interface{} {
	s.emit(ir.Push(ir.WrapInt64(n.Value, ir.TagInt)))
	return nil
}

func (s *State) VisitCharLit(n *wsast.CharLit) interface{} {
	s.emit(ir.Push(ir.WrapInt64(int64(n.Value), ir.TagInt)))
	return nil
}

func (s *State) VisitBoolLit(n *wsast.BoolLit) interface{} {
	if n.Value {
		s.emit(ir.Push(ir.True))
	} else {
		s.emit(ir.Push(ir.False))
	}
	return nil
}

func (s *State) VisitNilLit(n *wsast.NilLit) interface{} {
	s.emit(ir.Push(ir.Nil))
	return nil
}

func (s *State) VisitSelfExpr(n *wsast.SelfExpr) interface{} {
	if !s.hasSelf {
		s.emit(ir.Push(ir.None))
		return nil
	}
	s.loadAddr(s.curSelf)
	return nil
}

func (s *State) VisitVarExpr(n *wsast.VarExpr) interface{} {
	if addr, ok := s.scope[n.Name]; ok {
		s.loadAddr(addr)
		return nil
	}
	// A bareword with no parens can still be a zero-argument call.
	if s.isCallable(n.Name) {
		s.compileCall(nil, false, n.Name, nil, n.Line, n.Col)
		return nil
	}
	s.errorf(n.Line, n.Col, "undefined local variable or method %q", n.Name)
	return nil
}

func (s *State) isCallable(name string) bool {
	if s.functions[funcKey("", name)] != nil {
		return true
	}
	for _, set := range s.dispatch {
		if set[name] {
			return true
		}
	}
	return false
}

func (s *State) VisitAssignExpr(n *wsast.AssignExpr) interface{} {
	s.compileExpr(n.Value)
	addr, ok := s.scope[n.Name]
	if !ok {
		addr = s.NewAddr()
		s.scope[n.Name] = addr
	}
	s.emit(ir.Simple(ir.DUP))
	s.storeTOS(addr)
	return nil
}

func (s *State) VisitArrayLit(n *wsast.ArrayLit) interface{} {
	s.compileArrayLiteral(n)
	return nil
}

func (s *State) VisitHashLit(n *wsast.HashLit) interface{} {
	s.compileHashLiteral(n)
	return nil
}

func (s *State) VisitUnaryExpr(n *wsast.UnaryExpr) interface{} {
	s.compileExpr(n.Operand)
	if n.Operator == "!" {
		s.emitTruthyNegate()
	}
	return nil
}

func (s *State) VisitBlockExpr(n *wsast.BlockExpr) interface{} {
	s.compileBlock(n)
	return nil
}

func (s *State) VisitRaiseExpr(n *wsast.RaiseExpr) interface{} {
	s.compileRaise(n)
	return nil
}

func (s *State) VisitExitExpr(n *wsast.ExitExpr) interface{} {
	s.emit(ir.Simple(ir.EXIT))
	s.emit(ir.Push(ir.Nil)) // unreachable, keeps expression-stack shape uniform
	return nil
}

func (s *State) VisitIOExpr(n *wsast.IOExpr) interface{} {
	s.compileIO(n)
	return nil
}

// loadAddr/storeTOS implement the convention used throughout this package:
// LOAD pops an address and pushes heap[address]; SAVE pops an address and
// then the value beneath it, storing heap[address] = value. So to store
// whatever is currently on top of the stack at addr, push addr and SAVE;
// the addr push lands on top without disturbing the value beneath it.
func (s *State) loadAddr(addr int64) {
	s.emit(ir.PushInt(addr), ir.Simple(ir.LOAD))
}

func (s *State) storeTOS(addr int64) {
	s.emit(ir.PushInt(addr), ir.Simple(ir.SAVE))
}

// storeCellAt stores the value on top of the stack into a heap cell at a
// fixed offset from a local that holds a base address (an array/hash
// descriptor, typically), mirroring internal/runtime's own emitter helpers.
func (s *State) storeCellAt(baseAddr int64, offset int64) {
	s.loadAddr(baseAddr)
	if offset != 0 {
		s.emit(ir.PushInt(offset), ir.Simple(ir.ADD))
	}
	s.emit(ir.Simple(ir.SAVE))
}

func (s *State) wrapTag(tag ir.Tag) {
	s.emit(ir.PushInt(4), ir.Simple(ir.MUL), ir.PushInt(int64(tag)), ir.Simple(ir.ADD))
}
