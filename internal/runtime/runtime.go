// Package runtime emits the support routines the compiler leans on: the
// bump allocator, array and hash primitives, and the truthiness helper.
// Each is built once per program and referenced by CALL from compiled
// user code, exactly like an ordinary class method. The VM's opcode set
// stays minimal; all container behavior lives in these emitted routines.
package runtime

import "wsrb/internal/ir"

// Reserved heap addresses. Duplicated from internal/compiler's own copy
// rather than shared, since this package must not import the compiler (it
// is built by the compiler, not the reverse).
const (
	NoneAddr      int64 = 0
	TmpAddr       int64 = 1
	HeapCountAddr int64 = 2
)

// HashBuckets is the fixed bucket-array width of every hash object.
const HashBuckets = 11

// Allocator supplies fresh labels and heap addresses. compiler.State
// satisfies this directly.
type Allocator interface {
	NewLabel() ir.Label
	NewAddr() int64
}

// Registrar wires an emitted routine into the compiler's method-dispatch
// table. compiler.State satisfies this directly.
type Registrar interface {
	RegisterBuiltin(class, name string, label ir.Label, selfAddr int64, paramAddrs []int64)
	AppendBuiltinBody(body ir.Program)
}

// Routines holds the labels of the handful of support routines that are
// CALLed directly rather than through the class-method dispatch table:
// Alloc and HashFindOrCreate by array/hash literal construction, RTest by
// conditions and `!`, and HashFind by the Hash#[] routine.
type Routines struct {
	Alloc            ir.Label // (n) -> address of the first of n freshly bump-allocated cells
	RTest            ir.Label // (value) -> raw 0 if truthy, raw 1 if falsy
	HashFind         ir.Label // (key, hash) -> key-cell address, or 0 if absent
	HashFindOrCreate ir.Label // (key, hash) -> key-cell address, allocating a bucket if needed
}

// Build emits every runtime-support routine and registers the class-method
// ones (Array#push/pop/[]/[]=/size, Hash#[]/[]=) into reg.
func Build(a Allocator, reg Registrar) *Routines {
	r := &Routines{}
	r.Alloc = buildAlloc(a, reg)
	r.RTest = buildRTest(a, reg)
	buildArray(a, reg, r)
	r.HashFind = buildHashFind(a, reg)
	r.HashFindOrCreate = buildHashFindOrCreate(a, reg, r.Alloc)
	buildHash(a, reg, r)
	return r
}

// emitter is a tiny local mirror of compiler.State's emit/loadAddr/storeTOS
// idiom, since this package cannot depend on the compiler
// package that depends on it.
type emitter struct {
	prog ir.Program
}

func (e *emitter) emit(instrs ...ir.Instr) { e.prog = append(e.prog, instrs...) }

func (e *emitter) loadAddr(addr int64) {
	e.emit(ir.PushInt(addr), ir.Simple(ir.LOAD))
}

// storeTOS stores the value currently on top of the stack into heap[addr].
func (e *emitter) storeTOS(addr int64) {
	e.emit(ir.PushInt(addr), ir.Simple(ir.SAVE))
}

// loadCell pushes heap[baseScratch+offset], where baseScratch is a local
// holding a runtime-computed base address.
func (e *emitter) loadCell(baseScratch int64, offset int64) {
	e.loadAddr(baseScratch)
	if offset != 0 {
		e.emit(ir.PushInt(offset), ir.Simple(ir.ADD))
	}
	e.emit(ir.Simple(ir.LOAD))
}

// storeCellFromTOS stores the value already on top of the stack into
// heap[baseScratch+offset].
func (e *emitter) storeCellFromTOS(baseScratch int64, offset int64) {
	e.loadAddr(baseScratch)
	if offset != 0 {
		e.emit(ir.PushInt(offset), ir.Simple(ir.ADD))
	}
	e.emit(ir.Simple(ir.SAVE))
}

func (e *emitter) unwrapTag(tag ir.Tag) {
	e.emit(ir.PushInt(int64(tag)), ir.Simple(ir.SUB), ir.PushInt(4), ir.Simple(ir.DIV))
}

func (e *emitter) wrapTag(tag ir.Tag) {
	e.emit(ir.PushInt(4), ir.Simple(ir.MUL), ir.PushInt(int64(tag)), ir.Simple(ir.ADD))
}

// buildAlloc emits the single shared bump allocator: pops a cell
// count, advances HEAP_COUNT by that many, and returns the first address of
// the new block.
func buildAlloc(a Allocator, reg Registrar) ir.Label {
	label := a.NewLabel()
	nAddr := a.NewAddr()

	e := &emitter{}
	e.emit(ir.Def(label))
	e.storeTOS(nAddr)

	e.loadAddr(HeapCountAddr)
	e.emit(ir.PushInt(1), ir.Simple(ir.ADD)) // first = old+1
	e.emit(ir.Simple(ir.DUP))                // keep a copy to return
	e.loadAddr(nAddr)
	e.emit(ir.PushInt(1), ir.Simple(ir.SUB)) // n-1
	e.emit(ir.Simple(ir.ADD))                // first + (n-1) = old+n
	e.storeTOS(HeapCountAddr)

	e.emit(ir.Simple(ir.END))
	reg.AppendBuiltinBody(e.prog)
	return label
}
