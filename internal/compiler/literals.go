// literals.go lowers array/hash literals and the four I/O built-ins and
// `raise`, all of which construct their IR directly rather than through the
// method-call machinery in calls.go/dispatch.go.
package compiler

import (
	"wsrb/internal/ir"
	"wsrb/internal/runtime"
	"wsrb/internal/wsast"
	"wsrb/internal/wserr"
)

// minArrayCap is the minimum capacity reserved for a freshly built array,
// so a handful of subsequent pushes don't immediately force a realloc.
const minArrayCap = 10

func (s *State) compileArrayLiteral(n *wsast.ArrayLit) {
	size := int64(len(n.Elements))
	capacity := size * 2
	if capacity < minArrayCap {
		capacity = minArrayCap
	}
	descAddr := s.NewAddr()

	s.emit(ir.PushInt(3 + capacity))
	s.emit(ir.Call(s.rt.Alloc))
	s.storeTOS(descAddr)

	s.loadAddr(descAddr)
	s.emit(ir.PushInt(3), ir.Simple(ir.ADD))
	s.storeCellAt(descAddr, 0)
	s.emit(ir.PushInt(size))
	s.storeCellAt(descAddr, 1)
	s.emit(ir.PushInt(capacity))
	s.storeCellAt(descAddr, 2)

	for i, elem := range n.Elements {
		s.compileExpr(elem)
		s.loadAddr(descAddr)
		s.emit(ir.PushInt(3+int64(i)), ir.Simple(ir.ADD))
		s.emit(ir.Simple(ir.SAVE))
	}

	s.loadAddr(descAddr)
	s.wrapTag(ir.TagArray)
}

func (s *State) compileHashLiteral(n *wsast.HashLit) {
	descAddr := s.NewAddr()
	s.emit(ir.PushInt(int64(runtime.HashBuckets * 3)))
	s.emit(ir.Call(s.rt.Alloc))
	s.storeTOS(descAddr)

	for i := int64(0); i < runtime.HashBuckets; i++ {
		base := i * 3
		s.emit(ir.Push(ir.None))
		s.storeCellAt(descAddr, base)
		s.emit(ir.PushInt(0))
		s.storeCellAt(descAddr, base+2)
	}

	hashAddr := s.NewAddr()
	s.loadAddr(descAddr)
	s.wrapTag(ir.TagHash)
	s.storeTOS(hashAddr)

	for i := range n.Keys {
		keyAddr := s.NewAddr()
		valAddr := s.NewAddr()
		s.compileExpr(n.Keys[i])
		s.storeTOS(keyAddr)
		s.compileExpr(n.Values[i])
		s.storeTOS(valAddr)

		s.loadAddr(keyAddr)
		s.loadAddr(hashAddr)
		s.emit(ir.Call(s.rt.HashFindOrCreate))
		targetAddr := s.NewAddr()
		s.storeTOS(targetAddr)

		s.loadAddr(keyAddr)
		s.storeCellAt(targetAddr, 0)
		s.loadAddr(valAddr)
		s.storeCellAt(targetAddr, 1)
	}

	s.loadAddr(hashAddr)
}

// compileIO lowers the four I/O built-ins. WRITE_CHAR/WRITE_NUM and
// READ_CHAR/READ_NUM operate on raw untagged integers, so every value
// crossing the boundary is unwrapped/wrapped here.
func (s *State) compileIO(n *wsast.IOExpr) {
	switch n.Kind {
	case wsast.IOPutNumber:
		s.compileExpr(n.Arg)
		s.unwrapInt()
		s.emit(ir.Simple(ir.WRITE_NUM))
		s.emit(ir.Push(ir.Nil))
	case wsast.IOPutChar:
		s.compileExpr(n.Arg)
		s.unwrapInt()
		s.emit(ir.Simple(ir.WRITE_CHAR))
		s.emit(ir.Push(ir.Nil))
	case wsast.IOGetNumber, wsast.IOGetChar:
		v, ok := n.Arg.(*wsast.VarExpr)
		if !ok {
			s.errorf(n.Line, n.Col, "%s requires a variable destination", n.Kind)
		}
		addr, ok := s.scope[v.Name]
		if !ok {
			addr = s.NewAddr()
			s.scope[v.Name] = addr
		}
		if n.Kind == wsast.IOGetNumber {
			s.emit(ir.PushInt(addr), ir.Simple(ir.READ_NUM))
		} else {
			s.emit(ir.PushInt(addr), ir.Simple(ir.READ_CHAR))
		}
		s.loadAddr(addr)
		s.wrapInt()
		s.emit(ir.Simple(ir.DUP))
		s.storeTOS(addr)
	default:
		s.errorf(n.Line, n.Col, "unknown IO kind %q", n.Kind)
	}
}

// compileRaise lowers `raise "msg"`: the message and location are
// both known at compile time, so the entire user-visible line is rendered
// into WRITE_CHAR instructions ahead of an EXIT, with RaiseSentinel stashed
// at TmpAddr first so -strict-exit can tell a raise from ordinary
// completion.
func (s *State) compileRaise(n *wsast.RaiseExpr) {
	line := wserr.DispatchLine(s.file, n.Line, n.Col, n.Message)
	s.emit(ir.Push(RaiseSentinel))
	s.storeTOS(TmpAddr)
	for _, r := range line {
		s.emit(ir.PushInt(int64(r)))
		s.emit(ir.Simple(ir.WRITE_CHAR))
	}
	s.emit(ir.Simple(ir.EXIT))
	s.emit(ir.Push(ir.Nil)) // unreachable, keeps expression-stack shape uniform
}

// compileDispatchRaise lowers the raise triggered by a failed dispatch
//: same wire shape as compileRaise, but the message is
// synthesized from the call site rather than user-supplied.
func (s *State) compileDispatchRaise(line, col int, msg string) {
	out := wserr.DispatchLine(s.file, line, col, msg)
	s.emit(ir.Push(RaiseSentinel))
	s.storeTOS(TmpAddr)
	for _, r := range out {
		s.emit(ir.PushInt(int64(r)))
		s.emit(ir.Simple(ir.WRITE_CHAR))
	}
	s.emit(ir.Simple(ir.EXIT))
}
