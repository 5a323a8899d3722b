package runtime

import "wsrb/internal/ir"

// Hash descriptor layout: a fixed HashBuckets-wide bucket array,
// each bucket 3 cells — key (a full wrapped value, or NONE if the slot has
// never been used), value, next (the chain-extension bucket's base
// address, or 0 if this is the chain's tail). Collisions extend the chain
// with freshly allocated buckets; nothing is ever rehashed or freed.
//
// buildHashFind and buildHashFindOrCreate are called directly (not through
// the dispatch table) with the key pushed first and the wrapped hash value
// pushed last, so both share the same self-like/arg-like prologue order as
// every other routine in this package.
func buildHash(a Allocator, reg Registrar, r *Routines) {
	buildHashGet(a, reg, r)
	buildHashSet(a, reg, r)
}

func buildHashFind(a Allocator, reg Registrar) ir.Label {
	label := a.NewLabel()
	hashAddr := a.NewAddr()
	keyAddr := a.NewAddr()
	descAddr := a.NewAddr()
	curAddr := a.NewAddr()

	e := &emitter{}
	e.emit(ir.Def(label))
	e.storeTOS(hashAddr)
	e.storeTOS(keyAddr)

	e.loadAddr(hashAddr)
	e.unwrapTag(ir.TagHash)
	e.storeTOS(descAddr)

	e.loadAddr(keyAddr)
	e.unwrapTag(ir.TagInt)
	e.emit(ir.PushInt(HashBuckets), ir.Simple(ir.MOD))
	e.emit(ir.PushInt(3), ir.Simple(ir.MUL))
	e.loadAddr(descAddr)
	e.emit(ir.Simple(ir.ADD))
	e.storeTOS(curAddr)

	loopTop := a.NewLabel()
	foundLabel := a.NewLabel()
	notFoundLabel := a.NewLabel()
	nextZeroLabel := a.NewLabel()
	doneLabel := a.NewLabel()

	e.emit(ir.Def(loopTop))
	e.loadAddr(curAddr)
	e.emit(ir.Simple(ir.LOAD))
	e.emit(ir.Push(ir.None))
	e.emit(ir.Simple(ir.SUB))
	e.emit(ir.JumpIfZero(notFoundLabel))

	e.loadAddr(curAddr)
	e.emit(ir.Simple(ir.LOAD))
	e.loadAddr(keyAddr)
	e.emit(ir.Simple(ir.SUB))
	e.emit(ir.JumpIfZero(foundLabel))

	e.loadCell(curAddr, 2)
	e.emit(ir.Simple(ir.DUP))
	e.emit(ir.JumpIfZero(nextZeroLabel))
	e.storeTOS(curAddr)
	e.emit(ir.Jump(loopTop))

	e.emit(ir.Def(nextZeroLabel))
	e.emit(ir.Simple(ir.POP))
	e.emit(ir.Jump(notFoundLabel))

	e.emit(ir.Def(foundLabel))
	e.loadAddr(curAddr)
	e.emit(ir.Jump(doneLabel))

	e.emit(ir.Def(notFoundLabel))
	e.emit(ir.PushInt(NoneAddr))

	e.emit(ir.Def(doneLabel))
	e.emit(ir.Simple(ir.END))

	reg.AppendBuiltinBody(e.prog)
	return label
}

func buildHashFindOrCreate(a Allocator, reg Registrar, allocLabel ir.Label) ir.Label {
	label := a.NewLabel()
	hashAddr := a.NewAddr()
	keyAddr := a.NewAddr()
	descAddr := a.NewAddr()
	curAddr := a.NewAddr()
	newBaseAddr := a.NewAddr()

	e := &emitter{}
	e.emit(ir.Def(label))
	e.storeTOS(hashAddr)
	e.storeTOS(keyAddr)

	e.loadAddr(hashAddr)
	e.unwrapTag(ir.TagHash)
	e.storeTOS(descAddr)

	e.loadAddr(keyAddr)
	e.unwrapTag(ir.TagInt)
	e.emit(ir.PushInt(HashBuckets), ir.Simple(ir.MOD))
	e.emit(ir.PushInt(3), ir.Simple(ir.MUL))
	e.loadAddr(descAddr)
	e.emit(ir.Simple(ir.ADD))
	e.storeTOS(curAddr)

	loopTop := a.NewLabel()
	useSlotLabel := a.NewLabel()
	nextZeroLabel := a.NewLabel()
	foundSlot := a.NewLabel()

	e.emit(ir.Def(loopTop))
	e.loadAddr(curAddr)
	e.emit(ir.Simple(ir.LOAD))
	e.emit(ir.Push(ir.None))
	e.emit(ir.Simple(ir.SUB))
	e.emit(ir.JumpIfZero(useSlotLabel))

	e.loadAddr(curAddr)
	e.emit(ir.Simple(ir.LOAD))
	e.loadAddr(keyAddr)
	e.emit(ir.Simple(ir.SUB))
	e.emit(ir.JumpIfZero(useSlotLabel))

	e.loadCell(curAddr, 2)
	e.emit(ir.Simple(ir.DUP))
	e.emit(ir.JumpIfZero(nextZeroLabel))
	e.storeTOS(curAddr)
	e.emit(ir.Jump(loopTop))

	e.emit(ir.Def(nextZeroLabel))
	e.emit(ir.Simple(ir.POP))
	e.emit(ir.PushInt(3))
	e.emit(ir.Call(allocLabel))
	e.storeTOS(newBaseAddr)
	e.emit(ir.PushInt(0))
	e.storeCellFromTOS(newBaseAddr, 2)
	e.emit(ir.Push(ir.None))
	e.storeCellFromTOS(newBaseAddr, 0)
	e.loadAddr(newBaseAddr)
	e.storeCellFromTOS(curAddr, 2)
	e.loadAddr(newBaseAddr)
	e.storeTOS(curAddr)
	e.emit(ir.Jump(foundSlot))

	e.emit(ir.Def(useSlotLabel))
	e.emit(ir.Def(foundSlot))
	e.loadAddr(curAddr)
	e.emit(ir.Simple(ir.END))

	reg.AppendBuiltinBody(e.prog)
	return label
}

func buildHashGet(a Allocator, reg Registrar, r *Routines) {
	label := a.NewLabel()
	selfAddr := a.NewAddr()
	keyAddr := a.NewAddr()
	addrAddr := a.NewAddr()

	e := &emitter{}
	e.emit(ir.Def(label))
	e.storeTOS(selfAddr)
	e.storeTOS(keyAddr)

	e.loadAddr(keyAddr)
	e.loadAddr(selfAddr)
	e.emit(ir.Call(r.HashFind))
	e.storeTOS(addrAddr)

	notFound, done := a.NewLabel(), a.NewLabel()
	e.loadAddr(addrAddr)
	e.emit(ir.JumpIfZero(notFound))
	e.loadCell(addrAddr, 1)
	e.emit(ir.Jump(done))
	e.emit(ir.Def(notFound))
	e.emit(ir.Push(ir.Nil))
	e.emit(ir.Def(done))
	e.emit(ir.Simple(ir.END))

	reg.RegisterBuiltin("Hash", "[]", label, selfAddr, []int64{keyAddr})
	reg.AppendBuiltinBody(e.prog)
}

func buildHashSet(a Allocator, reg Registrar, r *Routines) {
	label := a.NewLabel()
	selfAddr := a.NewAddr()
	keyAddr := a.NewAddr()
	valueAddr := a.NewAddr()
	addrAddr := a.NewAddr()

	e := &emitter{}
	e.emit(ir.Def(label))
	e.storeTOS(selfAddr)
	e.storeTOS(valueAddr)
	e.storeTOS(keyAddr)

	e.loadAddr(keyAddr)
	e.loadAddr(selfAddr)
	e.emit(ir.Call(r.HashFindOrCreate))
	e.storeTOS(addrAddr)

	e.loadAddr(keyAddr)
	e.storeCellFromTOS(addrAddr, 0)
	e.loadAddr(valueAddr)
	e.storeCellFromTOS(addrAddr, 1)

	e.loadAddr(valueAddr)
	e.emit(ir.Simple(ir.END))

	reg.RegisterBuiltin("Hash", "[]=", label, selfAddr, []int64{keyAddr, valueAddr})
	reg.AppendBuiltinBody(e.prog)
}
