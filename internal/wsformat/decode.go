package wsformat

import (
	"math/big"

	"wsrb/internal/ir"
	"wsrb/internal/wserr"
)

// decoder walks the source bytes, yielding only the three significant
// characters and skipping everything else as comment text.
type decoder struct {
	src []byte
	pos int
}

// Decode parses Whitespace source into an IR program. An illegal
// IMP/command combination or EOF inside an instruction is a wire error.
func Decode(src []byte) (ir.Program, error) {
	d := &decoder{src: src}
	var prog ir.Program
	for {
		c, ok := d.next()
		if !ok {
			return prog, nil
		}
		instr, err := d.instruction(c)
		if err != nil {
			return nil, err
		}
		prog = append(prog, instr)
	}
}

func (d *decoder) instruction(c byte) (ir.Instr, error) {
	switch c {
	case space:
		return d.stackInstr()
	case tab:
		c2, err := d.mustNext()
		if err != nil {
			return ir.Instr{}, err
		}
		switch c2 {
		case space:
			return d.arithInstr()
		case tab:
			return d.heapInstr()
		case lf:
			return d.ioInstr()
		}
	case lf:
		return d.flowInstr()
	}
	return ir.Instr{}, wserr.NewWireError("unreachable IMP byte %q", c)
}

func (d *decoder) stackInstr() (ir.Instr, error) {
	c, err := d.mustNext()
	if err != nil {
		return ir.Instr{}, err
	}
	switch c {
	case space:
		n, err := d.number()
		if err != nil {
			return ir.Instr{}, err
		}
		return ir.Push(n), nil
	case lf:
		c2, err := d.mustNext()
		if err != nil {
			return ir.Instr{}, err
		}
		switch c2 {
		case space:
			return ir.Simple(ir.DUP), nil
		case tab:
			return ir.Simple(ir.SWAP), nil
		case lf:
			return ir.Simple(ir.POP), nil
		}
	}
	return ir.Instr{}, wserr.NewWireError("illegal stack instruction at offset %d", d.pos)
}

func (d *decoder) arithInstr() (ir.Instr, error) {
	c, err := d.mustNext()
	if err != nil {
		return ir.Instr{}, err
	}
	c2, err := d.mustNext()
	if err != nil {
		return ir.Instr{}, err
	}
	switch {
	case c == space && c2 == space:
		return ir.Simple(ir.ADD), nil
	case c == space && c2 == tab:
		return ir.Simple(ir.SUB), nil
	case c == space && c2 == lf:
		return ir.Simple(ir.MUL), nil
	case c == tab && c2 == space:
		return ir.Simple(ir.DIV), nil
	case c == tab && c2 == tab:
		return ir.Simple(ir.MOD), nil
	}
	return ir.Instr{}, wserr.NewWireError("illegal arithmetic instruction at offset %d", d.pos)
}

func (d *decoder) heapInstr() (ir.Instr, error) {
	c, err := d.mustNext()
	if err != nil {
		return ir.Instr{}, err
	}
	switch c {
	case space:
		return ir.Simple(ir.SAVE), nil
	case tab:
		return ir.Simple(ir.LOAD), nil
	}
	return ir.Instr{}, wserr.NewWireError("illegal heap instruction at offset %d", d.pos)
}

func (d *decoder) ioInstr() (ir.Instr, error) {
	c, err := d.mustNext()
	if err != nil {
		return ir.Instr{}, err
	}
	c2, err := d.mustNext()
	if err != nil {
		return ir.Instr{}, err
	}
	switch {
	case c == space && c2 == space:
		return ir.Simple(ir.WRITE_CHAR), nil
	case c == space && c2 == tab:
		return ir.Simple(ir.WRITE_NUM), nil
	case c == tab && c2 == space:
		return ir.Simple(ir.READ_CHAR), nil
	case c == tab && c2 == tab:
		return ir.Simple(ir.READ_NUM), nil
	}
	return ir.Instr{}, wserr.NewWireError("illegal I/O instruction at offset %d", d.pos)
}

func (d *decoder) flowInstr() (ir.Instr, error) {
	c, err := d.mustNext()
	if err != nil {
		return ir.Instr{}, err
	}
	c2, err := d.mustNext()
	if err != nil {
		return ir.Instr{}, err
	}
	switch {
	case c == space && c2 == space:
		return d.labeled(ir.DEF)
	case c == space && c2 == tab:
		return d.labeled(ir.CALL)
	case c == space && c2 == lf:
		return d.labeled(ir.JUMP)
	case c == tab && c2 == space:
		return d.labeled(ir.JUMP_IF_ZERO)
	case c == tab && c2 == tab:
		return d.labeled(ir.JUMP_IF_NEG)
	case c == tab && c2 == lf:
		return ir.Simple(ir.END), nil
	case c == lf && c2 == lf:
		return ir.Simple(ir.EXIT), nil
	}
	return ir.Instr{}, wserr.NewWireError("illegal flow instruction at offset %d", d.pos)
}

func (d *decoder) labeled(op ir.Op) (ir.Instr, error) {
	l, err := d.label()
	if err != nil {
		return ir.Instr{}, err
	}
	return ir.Instr{Op: op, Label: l}, nil
}

// number reads sign bit, magnitude bits, LF terminator.
func (d *decoder) number() (*big.Int, error) {
	sign, err := d.mustNext()
	if err != nil {
		return nil, err
	}
	if sign == lf {
		return nil, wserr.NewWireError("number with no sign bit at offset %d", d.pos)
	}
	n := new(big.Int)
	for {
		c, err := d.mustNext()
		if err != nil {
			return nil, wserr.NewWireError("EOF inside number at offset %d", d.pos)
		}
		if c == lf {
			break
		}
		n.Lsh(n, 1)
		if c == tab {
			n.SetBit(n, 0, 1)
		}
	}
	if sign == tab {
		n.Neg(n)
	}
	return n, nil
}

// label reads bits up to the LF terminator and keeps them as a raw
// '0'/'1' string, preserving leading zeros.
func (d *decoder) label() (ir.Label, error) {
	var bits []byte
	for {
		c, err := d.mustNext()
		if err != nil {
			return "", wserr.NewWireError("EOF inside label at offset %d", d.pos)
		}
		if c == lf {
			return ir.Label(bits), nil
		}
		if c == tab {
			bits = append(bits, '1')
		} else {
			bits = append(bits, '0')
		}
	}
}

// next returns the following significant character, skipping comments.
func (d *decoder) next() (byte, bool) {
	for d.pos < len(d.src) {
		c := d.src[d.pos]
		d.pos++
		if c == space || c == tab || c == lf {
			return c, true
		}
	}
	return 0, false
}

func (d *decoder) mustNext() (byte, error) {
	c, ok := d.next()
	if !ok {
		return 0, wserr.NewWireError("unexpected EOF mid-instruction at offset %d", d.pos)
	}
	return c, nil
}
