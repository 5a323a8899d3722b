// Package vm interprets the shared IR: a stack of
// arbitrary-precision integers, an integer-keyed integer heap, a call
// stack of return addresses, and byte/decimal I/O on the supplied
// streams. Execution is strictly sequential; the only exits are EXIT, a
// fallen-through program end (an error), or a host-level failure.
package vm

import (
	"bufio"
	"io"
	"math/big"
	"strings"

	"github.com/golang/glog"

	"wsrb/internal/ir"
	"wsrb/internal/wserr"
)

// Reserved heap addresses, shared with the compiler.
const (
	NoneAddr  int64 = 0
	TmpAddr   int64 = 1
	HeapCount int64 = 2
)

// VM executes one IR program against one stack, one call stack and one
// heap. Heap cells are keyed by the decimal string of their address, so
// addresses are as unbounded as every other number in the machine.
type VM struct {
	prog      ir.Program
	labels    map[ir.Label]int
	stack     []*big.Int
	callStack []int
	heap      map[string]*big.Int
	in        *bufio.Reader
	out       io.Writer
}

// New builds a VM over prog, resolving every DEF to its position up
// front. Duplicate labels are a wire-level defect.
func New(prog ir.Program, in io.Reader, out io.Writer) (*VM, error) {
	labels := make(map[ir.Label]int)
	for pc, instr := range prog {
		if instr.Op == ir.DEF {
			if _, dup := labels[instr.Label]; dup {
				return nil, wserr.NewWireError("duplicate label %q", instr.Label)
			}
			labels[instr.Label] = pc
		}
	}
	return &VM{
		prog:   prog,
		labels: labels,
		heap:   make(map[string]*big.Int),
		in:     bufio.NewReader(in),
		out:    out,
	}, nil
}

// Run executes until EXIT. Any host-level failure (stack underflow,
// undefined label, division by zero, I/O exhaustion) is returned as a
// *wserr.Error.
func (m *VM) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*wserr.Error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	pc := 0
	for pc < len(m.prog) {
		instr := m.prog[pc]
		pc++
		if glog.V(2) {
			glog.Infof("pc=%d %s stack=%d calls=%d", pc-1, instr.Op, len(m.stack), len(m.callStack))
		}
		switch instr.Op {
		case ir.PUSH:
			m.push(instr.Arg)
		case ir.DUP:
			v := m.pop()
			m.push(v)
			m.push(v)
		case ir.SWAP:
			a := m.pop()
			b := m.pop()
			m.push(a)
			m.push(b)
		case ir.POP:
			m.pop()
		case ir.ADD, ir.SUB, ir.MUL, ir.DIV, ir.MOD:
			m.arith(instr.Op)
		case ir.SAVE:
			addr := m.pop()
			val := m.pop()
			m.heap[addr.String()] = val
		case ir.LOAD:
			addr := m.pop()
			m.push(m.cell(addr))
		case ir.WRITE_CHAR:
			v := m.pop()
			m.write(string(rune(v.Int64())))
		case ir.WRITE_NUM:
			v := m.pop()
			m.write(v.String())
		case ir.READ_CHAR:
			addr := m.pop()
			b, err := m.in.ReadByte()
			if err != nil {
				m.fail("read past end of input")
			}
			m.heap[addr.String()] = big.NewInt(int64(b))
		case ir.READ_NUM:
			addr := m.pop()
			m.heap[addr.String()] = m.readNumber()
		case ir.DEF:
			// label marker only
		case ir.CALL:
			m.callStack = append(m.callStack, pc)
			pc = m.target(instr.Label)
		case ir.JUMP:
			pc = m.target(instr.Label)
		case ir.JUMP_IF_ZERO:
			if m.pop().Sign() == 0 {
				pc = m.target(instr.Label)
			}
		case ir.JUMP_IF_NEG:
			if m.pop().Sign() < 0 {
				pc = m.target(instr.Label)
			}
		case ir.END:
			if len(m.callStack) == 0 {
				m.fail("return with an empty call stack")
			}
			pc = m.callStack[len(m.callStack)-1]
			m.callStack = m.callStack[:len(m.callStack)-1]
		case ir.EXIT:
			return nil
		}
	}
	m.fail("program ran past its final instruction without EXIT")
	return nil
}

// HeapCell reads a heap cell by small address, for post-run inspection
// (the raise sentinel check behind -strict-exit).
func (m *VM) HeapCell(addr int64) *big.Int {
	return m.cell(big.NewInt(addr))
}

// arith pops b then a and pushes a op b. Division and modulo are
// Euclidean (big.Int Div/Mod): the remainder is never negative for a
// positive modulus, which the emitted hash-bucket and tag arithmetic
// relies on for negative operands.
func (m *VM) arith(op ir.Op) {
	b := m.pop()
	a := m.pop()
	r := new(big.Int)
	switch op {
	case ir.ADD:
		r.Add(a, b)
	case ir.SUB:
		r.Sub(a, b)
	case ir.MUL:
		r.Mul(a, b)
	case ir.DIV:
		if b.Sign() == 0 {
			m.fail("division by zero")
		}
		r.Div(a, b)
	case ir.MOD:
		if b.Sign() == 0 {
			m.fail("division by zero")
		}
		r.Mod(a, b)
	}
	m.push(r)
}

func (m *VM) readNumber() *big.Int {
	line, err := m.in.ReadString('\n')
	if err != nil && line == "" {
		m.fail("read past end of input")
	}
	n, ok := new(big.Int).SetString(strings.TrimSpace(line), 10)
	if !ok {
		m.fail("malformed number on input: %q", strings.TrimSpace(line))
	}
	return n
}

func (m *VM) cell(addr *big.Int) *big.Int {
	if v, ok := m.heap[addr.String()]; ok {
		return v
	}
	return new(big.Int)
}

func (m *VM) target(l ir.Label) int {
	pc, ok := m.labels[l]
	if !ok {
		m.fail("undefined label %q", l)
	}
	return pc
}

func (m *VM) push(v *big.Int) {
	m.stack = append(m.stack, v)
}

func (m *VM) pop() *big.Int {
	if len(m.stack) == 0 {
		m.fail("stack underflow")
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

func (m *VM) write(s string) {
	if _, err := io.WriteString(m.out, s); err != nil {
		m.fail("write failed: %v", err)
	}
}

func (m *VM) fail(format string, args ...interface{}) {
	panic(wserr.NewHostError(nil, format, args...))
}
