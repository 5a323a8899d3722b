// controlflow.go lowers if/unless/while/case and binary/unary operators,
// including the zero/negative-comparison shortcut.
package compiler

import (
	"math/big"

	"wsrb/internal/ir"
	"wsrb/internal/wsast"
)

func (s *State) unwrapInt() {
	s.emit(ir.PushInt(1), ir.Simple(ir.SUB), ir.PushInt(4), ir.Simple(ir.DIV))
}

func (s *State) wrapInt() {
	s.emit(ir.PushInt(4), ir.Simple(ir.MUL), ir.PushInt(1), ir.Simple(ir.ADD))
}

func (s *State) VisitBinaryExpr(n *wsast.BinaryExpr) interface{} {
	switch n.Operator {
	case "+", "-", "*", "/", "%":
		s.compileExpr(n.Left)
		s.unwrapInt()
		s.compileExpr(n.Right)
		s.unwrapInt()
		s.emit(ir.Simple(arithOp(n.Operator)))
		s.wrapInt()
	case "==":
		s.diff(n.Left, n.Right)
		s.emitBoolFromZero(false)
	case "!=":
		s.diff(n.Left, n.Right)
		s.emitBoolFromZero(true)
	case "<":
		s.diff(n.Left, n.Right)
		s.emitBoolFromNeg(false)
	case ">":
		s.diff(n.Right, n.Left)
		s.emitBoolFromNeg(false)
	case "<=":
		s.diff(n.Right, n.Left)
		s.emitBoolFromNeg(true)
	case ">=":
		s.diff(n.Left, n.Right)
		s.emitBoolFromNeg(true)
	case "<=>":
		s.compileSpaceship(n.Left, n.Right)
	default:
		s.errorf(n.Line, n.Col, "unknown operator %q", n.Operator)
	}
	return nil
}

func arithOp(op string) ir.Op {
	switch op {
	case "+":
		return ir.ADD
	case "-":
		return ir.SUB
	case "*":
		return ir.MUL
	case "/":
		return ir.DIV
	default:
		return ir.MOD
	}
}

// diff pushes (wrapped(a) - wrapped(b)) without unwrapping. For two
// operands with the same tag t this is (pa*4+t) - (pb*4+t) = 4*(pa-pb),
// which is zero exactly when the payloads are equal and has the sign of
// pa-pb, so equality and ordering on the raw difference agree with payload
// equality and ordering. The zero/negative shortcut in emitCond is
// different: it tests a single operand, so it unwraps that operand first.
func (s *State) diff(a, b wsast.Expr) {
	s.compileExpr(a)
	s.compileExpr(b)
	s.emit(ir.Simple(ir.SUB))
}

func boolVal(v bool) *big.Int {
	if v {
		return ir.True
	}
	return ir.False
}

func (s *State) emitBoolFromZero(invert bool) {
	lt, le := s.NewLabel(), s.NewLabel()
	s.emit(ir.JumpIfZero(lt))
	s.emit(ir.Push(boolVal(invert)))
	s.emit(ir.Jump(le))
	s.emit(ir.Def(lt))
	s.emit(ir.Push(boolVal(!invert)))
	s.emit(ir.Def(le))
}

func (s *State) emitBoolFromNeg(invert bool) {
	lt, le := s.NewLabel(), s.NewLabel()
	s.emit(ir.JumpIfNeg(lt))
	s.emit(ir.Push(boolVal(invert)))
	s.emit(ir.Jump(le))
	s.emit(ir.Def(lt))
	s.emit(ir.Push(boolVal(!invert)))
	s.emit(ir.Def(le))
}

func (s *State) compileSpaceship(left, right wsast.Expr) {
	s.diff(left, right)
	lneg, lzero, lend := s.NewLabel(), s.NewLabel(), s.NewLabel()
	s.emit(ir.Simple(ir.DUP))
	s.emit(ir.JumpIfNeg(lneg))
	s.emit(ir.JumpIfZero(lzero))
	s.emit(ir.Push(ir.WrapInt64(1, ir.TagInt)))
	s.emit(ir.Jump(lend))
	s.emit(ir.Def(lneg))
	s.emit(ir.Simple(ir.POP))
	s.emit(ir.Push(ir.WrapInt64(-1, ir.TagInt)))
	s.emit(ir.Jump(lend))
	s.emit(ir.Def(lzero))
	s.emit(ir.Push(ir.WrapInt64(0, ir.TagInt)))
	s.emit(ir.Def(lend))
}

// emitTruthyNegate implements unary `!`: rtest leaves raw 0 for truthy
// and 1 for falsy, which maps straight onto the two boolean pushes.
func (s *State) emitTruthyNegate() {
	ltruthy, lend := s.NewLabel(), s.NewLabel()
	s.emit(ir.Call(s.rt.RTest))
	s.emit(ir.JumpIfZero(ltruthy))
	s.emit(ir.Push(ir.True))
	s.emit(ir.Jump(lend))
	s.emit(ir.Def(ltruthy))
	s.emit(ir.Push(ir.False))
	s.emit(ir.Def(lend))
}

// emitBranchIfFalsy pops TOS and jumps to label if it is falsy, falling
// through with a clean stack otherwise. Truthiness is decided by the
// shared rtest routine: only NIL and FALSE are falsy.
func (s *State) emitBranchIfFalsy(label ir.Label) {
	thru := s.NewLabel()
	s.emit(ir.Call(s.rt.RTest))
	s.emit(ir.JumpIfZero(thru))
	s.emit(ir.Jump(label))
	s.emit(ir.Def(thru))
}

func isZeroLit(e wsast.Expr) bool {
	n, ok := e.(*wsast.IntLit)
	return ok && n.Value == 0
}

// zeroShortcut reports whether bin is `x == 0`/`0 == x` or `x < 0`/`0 < x`.
func zeroShortcut(bin *wsast.BinaryExpr) (other wsast.Expr, literalOnLeft bool, ok bool) {
	if bin.Operator != "==" && bin.Operator != "<" {
		return nil, false, false
	}
	if isZeroLit(bin.Right) {
		return bin.Left, false, true
	}
	if isZeroLit(bin.Left) {
		return bin.Right, true, true
	}
	return nil, false, false
}

// emitCond compiles a condition and jumps to falseLabel when it is falsy,
// applying the shortcut for the literal shapes above. The shortcut
// tests must run on the unwrapped integer: a wrapped INT is 4x+1, which is
// never zero and shares only its sign with x.
func (s *State) emitCond(cond wsast.Expr, falseLabel ir.Label) {
	if b, ok := cond.(*wsast.BoolLit); ok && b.Value {
		return // `while true` and `if true` need no test at all
	}
	if bin, ok := cond.(*wsast.BinaryExpr); ok {
		if other, literalOnLeft, ok := zeroShortcut(bin); ok {
			s.compileExpr(other)
			s.unwrapInt()
			truthy := s.NewLabel()
			switch bin.Operator {
			case "==":
				s.emit(ir.JumpIfZero(truthy))
			case "<":
				if literalOnLeft {
					// 0 < x  <=>  -x < 0
					s.emit(ir.PushInt(0), ir.Simple(ir.SWAP), ir.Simple(ir.SUB))
				}
				s.emit(ir.JumpIfNeg(truthy))
			}
			s.emit(ir.Jump(falseLabel))
			s.emit(ir.Def(truthy))
			return
		}
	}
	s.compileExpr(cond)
	s.emitBranchIfFalsy(falseLabel)
}

func (s *State) VisitIfExpr(n *wsast.IfExpr) interface{} {
	if n.Unless {
		// unless swaps the branches: falsy runs Then, truthy runs Else.
		thenLabel, endLabel := s.NewLabel(), s.NewLabel()
		s.compileExpr(n.Cond)
		s.emitBranchIfFalsy(thenLabel)
		if n.Else != nil {
			s.compileBlock(n.Else)
		} else {
			s.emit(ir.Push(ir.Nil))
		}
		s.emit(ir.Jump(endLabel))
		s.emit(ir.Def(thenLabel))
		s.compileBlock(n.Then)
		s.emit(ir.Def(endLabel))
		return nil
	}
	elseLabel, endLabel := s.NewLabel(), s.NewLabel()
	s.emitCond(n.Cond, elseLabel)
	s.compileBlock(n.Then)
	s.emit(ir.Jump(endLabel))
	s.emit(ir.Def(elseLabel))
	if n.Else != nil {
		s.compileBlock(n.Else)
	} else {
		s.emit(ir.Push(ir.Nil))
	}
	s.emit(ir.Def(endLabel))
	return nil
}

func (s *State) VisitWhileExpr(n *wsast.WhileExpr) interface{} {
	top, end := s.NewLabel(), s.NewLabel()
	s.emit(ir.Def(top))
	s.emitCond(n.Cond, end)
	s.compileBlock(n.Body)
	s.emit(ir.Simple(ir.POP)) // discard body value; while always yields NIL
	s.emit(ir.Jump(top))
	s.emit(ir.Def(end))
	s.emit(ir.Push(ir.Nil))
	return nil
}

func (s *State) VisitCaseExpr(n *wsast.CaseExpr) interface{} {
	subjAddr := s.NewAddr()
	s.compileExpr(n.Subject)
	s.storeTOS(subjAddr)
	end := s.NewLabel()
	for _, when := range n.Whens {
		body := s.NewLabel()
		nextWhen := s.NewLabel()
		for _, pat := range when.Patterns {
			s.loadAddr(subjAddr)
			s.compileExpr(pat)
			s.emit(ir.Simple(ir.SUB))
			s.emit(ir.JumpIfZero(body))
		}
		s.emit(ir.Jump(nextWhen))
		s.emit(ir.Def(body))
		s.compileBlock(when.Body)
		s.emit(ir.Jump(end))
		s.emit(ir.Def(nextWhen))
	}
	if n.Else != nil {
		s.compileBlock(n.Else)
	} else {
		s.emit(ir.Push(ir.Nil))
	}
	s.emit(ir.Def(end))
	return nil
}
