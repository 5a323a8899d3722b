// Package wsformat implements the bit-exact Whitespace wire format.
// Only SPACE, TAB and LINEFEED are significant; the decoder discards
// every other byte as a comment. Numbers carry a sign bit and an MSB-first
// magnitude; labels are raw unsigned bit strings. Both are LF-terminated.
package wsformat

import (
	"bytes"
	"math/big"

	"wsrb/internal/ir"
)

const (
	space = ' '
	tab   = '\t'
	lf    = '\n'
)

// Encode renders an IR program as Whitespace source bytes. Each
// instruction yields a deterministic sequence; numbers use the minimal
// magnitude encoding (zero is an empty bit string), and labels are written
// exactly as carried in the IR, so decoding an encoded program reproduces
// it instruction for instruction.
func Encode(p ir.Program) []byte {
	var b bytes.Buffer
	for _, instr := range p {
		switch instr.Op {
		case ir.PUSH:
			b.WriteString("  ")
			writeNumber(&b, instr.Arg)
		case ir.DUP:
			b.WriteString(" \n ")
		case ir.SWAP:
			b.WriteString(" \n\t")
		case ir.POP:
			b.WriteString(" \n\n")
		case ir.ADD:
			b.WriteString("\t   ")
		case ir.SUB:
			b.WriteString("\t  \t")
		case ir.MUL:
			b.WriteString("\t  \n")
		case ir.DIV:
			b.WriteString("\t \t ")
		case ir.MOD:
			b.WriteString("\t \t\t")
		case ir.SAVE:
			b.WriteString("\t\t ")
		case ir.LOAD:
			b.WriteString("\t\t\t")
		case ir.WRITE_CHAR:
			b.WriteString("\t\n  ")
		case ir.WRITE_NUM:
			b.WriteString("\t\n \t")
		case ir.READ_CHAR:
			b.WriteString("\t\n\t ")
		case ir.READ_NUM:
			b.WriteString("\t\n\t\t")
		case ir.DEF:
			b.WriteString("\n  ")
			writeLabel(&b, instr.Label)
		case ir.CALL:
			b.WriteString("\n \t")
			writeLabel(&b, instr.Label)
		case ir.JUMP:
			b.WriteString("\n \n")
			writeLabel(&b, instr.Label)
		case ir.JUMP_IF_ZERO:
			b.WriteString("\n\t ")
			writeLabel(&b, instr.Label)
		case ir.JUMP_IF_NEG:
			b.WriteString("\n\t\t")
			writeLabel(&b, instr.Label)
		case ir.END:
			b.WriteString("\n\t\n")
		case ir.EXIT:
			b.WriteString("\n\n\n")
		}
	}
	return b.Bytes()
}

// writeNumber emits one sign bit (S=+, T=-), the MSB-first binary
// magnitude (S=0, T=1) and the LF terminator. Zero's magnitude is empty.
func writeNumber(b *bytes.Buffer, n *big.Int) {
	if n == nil {
		n = new(big.Int)
	}
	if n.Sign() < 0 {
		b.WriteByte(tab)
	} else {
		b.WriteByte(space)
	}
	mag := new(big.Int).Abs(n)
	for i := mag.BitLen() - 1; i >= 0; i-- {
		if mag.Bit(i) == 1 {
			b.WriteByte(tab)
		} else {
			b.WriteByte(space)
		}
	}
	b.WriteByte(lf)
}

// writeLabel emits the label's bit pattern verbatim: no sign bit, LF
// terminated. Equivalent labels therefore always encode identically.
func writeLabel(b *bytes.Buffer, l ir.Label) {
	for i := 0; i < len(l); i++ {
		if l[i] == '1' {
			b.WriteByte(tab)
		} else {
			b.WriteByte(space)
		}
	}
	b.WriteByte(lf)
}
