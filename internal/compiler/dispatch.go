// dispatch.go encodes method dispatch: a call site classifies its receiver by tag at
// run time, while the choice between the typed method and the top-level
// fallback inside each tag branch is made purely from the compile-time
// dispatch table. Index reads/writes lower through the same path as `[]`
// and `[]=` calls.
package compiler

import (
	"wsrb/internal/ir"
	"wsrb/internal/wsast"
)

const unknownReceiverMsg = "Unknown type of receiver"

// classTags maps a class name to the tag its instances carry. The class
// codes are laid out so that code mod 4 equals the tag, which is
// what makes is_a? a plain subtraction.
var classTags = map[string]ir.Tag{
	"Special": ir.Tag(ir.ClassSpecial - ir.ClassSpecial),
	"Integer": ir.Tag(ir.ClassInt - ir.ClassSpecial),
	"Array":   ir.Tag(ir.ClassArray - ir.ClassSpecial),
	"Hash":    ir.Tag(ir.ClassHash - ir.ClassSpecial),
}

var tagClasses = map[ir.Tag]string{
	ir.TagInt:   "Integer",
	ir.TagArray: "Array",
	ir.TagHash:  "Hash",
}

func (s *State) VisitCallExpr(n *wsast.CallExpr) interface{} {
	s.compileCall(n.Receiver, n.ExplicitReceiver, n.Name, n.Args, n.Line, n.Col)
	return nil
}

func (s *State) VisitIndexExpr(n *wsast.IndexExpr) interface{} {
	s.compileCall(n.Object, true, "[]", []wsast.Expr{n.Index}, n.Line, n.Col)
	return nil
}

func (s *State) VisitIndexSetExpr(n *wsast.IndexSetExpr) interface{} {
	s.compileCall(n.Object, true, "[]=", []wsast.Expr{n.Index, n.Value}, n.Line, n.Col)
	return nil
}

func (s *State) VisitIsAExpr(n *wsast.IsAExpr) interface{} {
	tag, ok := classTags[n.ClassName]
	if !ok {
		s.errorf(n.Line, n.Col, "unknown class %q in is_a?", n.ClassName)
	}
	s.compileExpr(n.Object)
	s.emit(ir.PushInt(4), ir.Simple(ir.MOD))
	s.emit(ir.PushInt(int64(tag)), ir.Simple(ir.SUB))
	s.emitBoolFromZero(false)
	return nil
}

// compileCall lowers any call site. recv is nil for barewords, which
// dispatch as self.name(args); self at top level is NONE.
func (s *State) compileCall(recv wsast.Expr, explicit bool, name string, args []wsast.Expr, line, col int) {
	topFn := s.functions[funcKey("", name)]
	anyTyped := false
	for _, class := range []string{"Integer", "Array", "Hash"} {
		if s.dispatch[class][name] {
			anyTyped = true
		}
	}
	if topFn == nil && !anyTyped {
		s.errorf(line, col, "undefined method %q", name)
	}

	// A bareword at top level has NONE for a receiver, so the whole
	// classification collapses at compile time into a direct call.
	if !explicit && recv == nil && !s.hasSelf {
		if topFn == nil {
			s.errorf(line, col, "undefined method %q for main", name)
		}
		s.require(topFn)
		s.checkArity(topFn, len(args), line, col, name)
		locals := s.liveLocals()
		s.saveLocals(locals)
		for _, a := range args {
			s.compileExpr(a)
		}
		s.emit(ir.Push(ir.None))
		s.emit(ir.Call(topFn.Label))
		s.restoreLocals(locals)
		return
	}

	locals := s.liveLocals()
	s.saveLocals(locals)
	for _, a := range args {
		s.compileExpr(a)
	}
	if recv != nil {
		s.compileExpr(recv)
	} else if s.hasSelf {
		s.loadAddr(s.curSelf)
	} else {
		s.emit(ir.Push(ir.None))
	}

	// Stash the receiver in TMP and classify it by tag. Every branch in
	// the chain leaves the stack at [args..., receiver] before its CALL.
	s.emit(ir.Simple(ir.DUP))
	s.storeTOS(TmpAddr)
	s.loadAddr(TmpAddr)
	s.emit(ir.PushInt(4), ir.Simple(ir.MOD))

	intL, arrL, hashL := s.NewLabel(), s.NewLabel(), s.NewLabel()
	noneL, endL := s.NewLabel(), s.NewLabel()

	s.emit(ir.Simple(ir.DUP), ir.PushInt(int64(ir.TagInt)), ir.Simple(ir.SUB), ir.JumpIfZero(intL))
	s.emit(ir.Simple(ir.DUP), ir.PushInt(int64(ir.TagArray)), ir.Simple(ir.SUB), ir.JumpIfZero(arrL))
	s.emit(ir.Simple(ir.DUP), ir.PushInt(int64(ir.TagHash)), ir.Simple(ir.SUB), ir.JumpIfZero(hashL))
	s.emit(ir.Simple(ir.POP))

	// SPECIAL tag: NONE dispatches to the top-level table; any other
	// special receiver has no methods of its own.
	s.loadAddr(TmpAddr)
	s.emit(ir.Push(ir.None), ir.Simple(ir.SUB), ir.JumpIfZero(noneL))
	if explicit {
		s.compileDispatchRaise(line, col, unknownReceiverMsg)
	} else {
		s.emit(ir.Jump(noneL))
	}

	branches := []struct {
		tag   ir.Tag
		label ir.Label
	}{{ir.TagInt, intL}, {ir.TagArray, arrL}, {ir.TagHash, hashL}}
	for _, br := range branches {
		s.emit(ir.Def(br.label))
		s.emit(ir.Simple(ir.POP)) // the duped tag
		s.emitTypedTarget(tagClasses[br.tag], name, explicit, topFn, len(args), line, col, endL)
	}

	s.emit(ir.Def(noneL))
	if topFn != nil {
		s.require(topFn)
		s.checkArity(topFn, len(args), line, col, name)
		s.emit(ir.Simple(ir.POP), ir.Push(ir.None))
		s.emit(ir.Call(topFn.Label))
		s.emit(ir.Jump(endL))
	} else {
		s.compileDispatchRaise(line, col, "undefined method `"+name+"'")
	}

	s.emit(ir.Def(endL))
	s.restoreLocals(locals)
}

// emitTypedTarget emits the body of one tag branch: call the class's own
// method if it has one, fall back to the top-level procedure for barewords,
// raise otherwise.
func (s *State) emitTypedTarget(class, name string, explicit bool, topFn *FuncInfo, argc, line, col int, endL ir.Label) {
	if fi := s.functions[funcKey(class, name)]; fi != nil {
		s.require(fi)
		s.checkArity(fi, argc, line, col, name)
		s.emit(ir.Call(fi.Label))
		s.emit(ir.Jump(endL))
		return
	}
	if !explicit && topFn != nil {
		s.require(topFn)
		s.checkArity(topFn, argc, line, col, name)
		s.emit(ir.Simple(ir.POP), ir.Push(ir.None))
		s.emit(ir.Call(topFn.Label))
		s.emit(ir.Jump(endL))
		return
	}
	s.compileDispatchRaise(line, col, unknownReceiverMsg)
}
