package runtime

import "wsrb/internal/ir"

// Array descriptor layout: 3 header cells — pointer, size,
// capacity — followed by `capacity` contiguous element cells, each holding
// a full wrapped runtime value. Growth doubles capacity and copies
// elements into a freshly bump-allocated block; nothing is ever freed.
func buildArray(a Allocator, reg Registrar, r *Routines) {
	buildArrayPush(a, reg, r)
	buildArrayPop(a, reg, r)
	buildArrayGet(a, reg, r)
	buildArraySet(a, reg, r)
	buildArraySize(a, reg, r)
}

func buildArrayPush(a Allocator, reg Registrar, r *Routines) {
	label := a.NewLabel()
	selfAddr := a.NewAddr()
	valueAddr := a.NewAddr()
	descAddr := a.NewAddr()
	sizeAddr := a.NewAddr()
	capAddr := a.NewAddr()
	elemBaseAddr := a.NewAddr()
	newCapAddr := a.NewAddr()
	newBlockAddr := a.NewAddr()
	oldBlockAddr := a.NewAddr()
	idxAddr := a.NewAddr()

	e := &emitter{}
	e.emit(ir.Def(label))
	e.storeTOS(selfAddr)
	e.storeTOS(valueAddr)

	e.loadAddr(selfAddr)
	e.unwrapTag(ir.TagArray)
	e.storeTOS(descAddr)

	e.loadCell(descAddr, 1)
	e.storeTOS(sizeAddr)
	e.loadCell(descAddr, 2)
	e.storeTOS(capAddr)

	growLabel, noGrowLabel, joinLabel := a.NewLabel(), a.NewLabel(), a.NewLabel()
	e.loadAddr(sizeAddr)
	e.loadAddr(capAddr)
	e.emit(ir.Simple(ir.SUB))
	e.emit(ir.JumpIfZero(growLabel))
	e.emit(ir.Jump(noGrowLabel))

	e.emit(ir.Def(growLabel))
	e.loadAddr(capAddr)
	e.emit(ir.PushInt(2), ir.Simple(ir.MUL))
	e.storeTOS(newCapAddr)
	e.loadAddr(newCapAddr)
	e.emit(ir.Call(r.Alloc))
	e.storeTOS(newBlockAddr)
	e.loadCell(descAddr, 0)
	e.storeTOS(oldBlockAddr)
	e.emit(ir.PushInt(0))
	e.storeTOS(idxAddr)

	copyTop, copyEnd := a.NewLabel(), a.NewLabel()
	e.emit(ir.Def(copyTop))
	e.loadAddr(idxAddr)
	e.loadAddr(sizeAddr)
	e.emit(ir.Simple(ir.SUB))
	e.emit(ir.JumpIfZero(copyEnd))
	e.loadAddr(oldBlockAddr)
	e.loadAddr(idxAddr)
	e.emit(ir.Simple(ir.ADD), ir.Simple(ir.LOAD))
	e.loadAddr(newBlockAddr)
	e.loadAddr(idxAddr)
	e.emit(ir.Simple(ir.ADD), ir.Simple(ir.SAVE))
	e.loadAddr(idxAddr)
	e.emit(ir.PushInt(1), ir.Simple(ir.ADD))
	e.storeTOS(idxAddr)
	e.emit(ir.Jump(copyTop))
	e.emit(ir.Def(copyEnd))

	e.loadAddr(newBlockAddr)
	e.storeCellFromTOS(descAddr, 0)
	e.loadAddr(newCapAddr)
	e.storeCellFromTOS(descAddr, 2)
	e.loadAddr(newBlockAddr)
	e.storeTOS(elemBaseAddr)
	e.emit(ir.Jump(joinLabel))

	e.emit(ir.Def(noGrowLabel))
	e.loadCell(descAddr, 0)
	e.storeTOS(elemBaseAddr)

	e.emit(ir.Def(joinLabel))
	e.loadAddr(valueAddr)
	e.loadAddr(elemBaseAddr)
	e.loadAddr(sizeAddr)
	e.emit(ir.Simple(ir.ADD), ir.Simple(ir.SAVE))

	e.loadAddr(sizeAddr)
	e.emit(ir.PushInt(1), ir.Simple(ir.ADD))
	e.storeCellFromTOS(descAddr, 1)

	e.loadAddr(selfAddr)
	e.emit(ir.Simple(ir.END))

	reg.RegisterBuiltin("Array", "push", label, selfAddr, []int64{valueAddr})
	reg.AppendBuiltinBody(e.prog)
}

func buildArrayPop(a Allocator, reg Registrar, r *Routines) {
	label := a.NewLabel()
	selfAddr := a.NewAddr()
	descAddr := a.NewAddr()
	sizeAddr := a.NewAddr()
	ptrAddr := a.NewAddr()

	e := &emitter{}
	e.emit(ir.Def(label))
	e.storeTOS(selfAddr)
	e.loadAddr(selfAddr)
	e.unwrapTag(ir.TagArray)
	e.storeTOS(descAddr)
	e.loadCell(descAddr, 1)
	e.storeTOS(sizeAddr)

	emptyLabel, doneLabel := a.NewLabel(), a.NewLabel()
	e.loadAddr(sizeAddr)
	e.emit(ir.JumpIfZero(emptyLabel))

	e.loadAddr(sizeAddr)
	e.emit(ir.PushInt(1), ir.Simple(ir.SUB))
	e.emit(ir.Simple(ir.DUP))
	e.storeTOS(sizeAddr)
	e.storeCellFromTOS(descAddr, 1)
	e.loadCell(descAddr, 0)
	e.storeTOS(ptrAddr)
	e.loadAddr(ptrAddr)
	e.loadAddr(sizeAddr)
	e.emit(ir.Simple(ir.ADD), ir.Simple(ir.LOAD))
	e.emit(ir.Jump(doneLabel))

	e.emit(ir.Def(emptyLabel))
	e.emit(ir.Push(ir.Nil))

	e.emit(ir.Def(doneLabel))
	e.emit(ir.Simple(ir.END))

	reg.RegisterBuiltin("Array", "pop", label, selfAddr, nil)
	reg.AppendBuiltinBody(e.prog)
}

// buildArrayGet implements `[]`: no bounds check, matching the raw heap
// access the rest of the dialect's descriptor model assumes.
func buildArrayGet(a Allocator, reg Registrar, r *Routines) {
	label := a.NewLabel()
	selfAddr := a.NewAddr()
	idxAddr := a.NewAddr()
	descAddr := a.NewAddr()
	ptrAddr := a.NewAddr()

	e := &emitter{}
	e.emit(ir.Def(label))
	e.storeTOS(selfAddr)
	e.storeTOS(idxAddr)
	e.loadAddr(selfAddr)
	e.unwrapTag(ir.TagArray)
	e.storeTOS(descAddr)
	e.loadCell(descAddr, 0)
	e.storeTOS(ptrAddr)
	e.loadAddr(ptrAddr)
	e.loadAddr(idxAddr)
	e.unwrapTag(ir.TagInt)
	e.emit(ir.Simple(ir.ADD), ir.Simple(ir.LOAD))
	e.emit(ir.Simple(ir.END))

	reg.RegisterBuiltin("Array", "[]", label, selfAddr, []int64{idxAddr})
	reg.AppendBuiltinBody(e.prog)
}

func buildArraySet(a Allocator, reg Registrar, r *Routines) {
	label := a.NewLabel()
	selfAddr := a.NewAddr()
	idxAddr := a.NewAddr()
	valueAddr := a.NewAddr()
	descAddr := a.NewAddr()
	ptrAddr := a.NewAddr()

	e := &emitter{}
	e.emit(ir.Def(label))
	e.storeTOS(selfAddr)
	e.storeTOS(valueAddr)
	e.storeTOS(idxAddr)
	e.loadAddr(selfAddr)
	e.unwrapTag(ir.TagArray)
	e.storeTOS(descAddr)
	e.loadCell(descAddr, 0)
	e.storeTOS(ptrAddr)

	e.loadAddr(valueAddr)
	e.loadAddr(ptrAddr)
	e.loadAddr(idxAddr)
	e.unwrapTag(ir.TagInt)
	e.emit(ir.Simple(ir.ADD), ir.Simple(ir.SAVE))

	e.loadAddr(valueAddr)
	e.emit(ir.Simple(ir.END))

	reg.RegisterBuiltin("Array", "[]=", label, selfAddr, []int64{idxAddr, valueAddr})
	reg.AppendBuiltinBody(e.prog)
}

func buildArraySize(a Allocator, reg Registrar, r *Routines) {
	label := a.NewLabel()
	selfAddr := a.NewAddr()
	descAddr := a.NewAddr()

	e := &emitter{}
	e.emit(ir.Def(label))
	e.storeTOS(selfAddr)
	e.loadAddr(selfAddr)
	e.unwrapTag(ir.TagArray)
	e.storeTOS(descAddr)
	e.loadCell(descAddr, 1)
	e.wrapTag(ir.TagInt)
	e.emit(ir.Simple(ir.END))

	reg.RegisterBuiltin("Array", "size", label, selfAddr, nil)
	reg.AppendBuiltinBody(e.prog)
}
