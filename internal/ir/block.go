package ir

// Block is a basic block: a named straight-line run of instructions ending
// in a terminator.
type Block struct {
	Name   string
	Instrs []*Instr
}

// Append adds an instruction at the end of the block.
func (b *Block) Append(i *Instr) *Instr {
	b.Instrs = append(b.Instrs, i)
	return i
}

// Terminated reports whether the block ends with a terminator.
func (b *Block) Terminated() bool {
	if b == nil || len(b.Instrs) == 0 {
		return false
	}
	return b.Instrs[len(b.Instrs)-1].IsTerminator()
}
