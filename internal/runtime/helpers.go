package runtime

import "wsrb/internal/ir"

// buildRTest emits the shared truthiness helper: pops a wrapped
// value and pushes the raw machine integer 0 when it is truthy, 1 when it
// is falsy. Only NIL and FALSE are falsy; every integer (including 0),
// array, hash and TRUE is truthy. Callers branch on the result with
// JUMP_IF_ZERO.
func buildRTest(a Allocator, reg Registrar) ir.Label {
	label := a.NewLabel()
	vAddr := a.NewAddr()

	e := &emitter{}
	e.emit(ir.Def(label))
	e.storeTOS(vAddr)

	falsy, done := a.NewLabel(), a.NewLabel()
	e.loadAddr(vAddr)
	e.emit(ir.Push(ir.False), ir.Simple(ir.SUB), ir.JumpIfZero(falsy))
	e.loadAddr(vAddr)
	e.emit(ir.Push(ir.Nil), ir.Simple(ir.SUB), ir.JumpIfZero(falsy))
	e.emit(ir.PushInt(0))
	e.emit(ir.Jump(done))
	e.emit(ir.Def(falsy))
	e.emit(ir.PushInt(1))
	e.emit(ir.Def(done))
	e.emit(ir.Simple(ir.END))

	reg.AppendBuiltinBody(e.prog)
	return label
}
