// Package ilasm is the emitter substrate's instruction builder: a
// stack-machine bytecode modeled on internal/lir's tagged
// Insn-interface-with-Op()-string pattern, except instructions carry
// operands addressed by index rather than by symbolic register name,
// since the substrate below is a bytecode VM (internal/ilvm), not a
// text assembler.
package ilasm

import "fmt"

// Insn is any instruction kind; Op returns its mnemonic for disassembly.
type Insn interface{ Op() string }

// Program is one compiled lambda body: a flat instruction stream plus the
// locals/labels/try-regions it references by index.
type Program struct {
	Name      string
	NumArgs   int
	NumLocals int
	Consts    []interface{} // the bound-constants pool, indexed by LoadConst.Index
	Insns     []Insn
	Labels    map[string]int // label name -> instruction index, recorded by DefineLabel
	TryTable  []TryRegion
}

// TryRegion describes one structured exception region's instruction-index
// extents, mirroring spec.md §4.4's Try/Catch/Finally/Fault/Filter shape.
// HandlerKind distinguishes Catch/Finally/Fault handlers sharing one Try.
type TryRegion struct {
	TryStart, TryEnd int // body instruction extents [TryStart, TryEnd)
	End              int // instruction index where control resumes after the whole construct
	Handlers         []HandlerRegion
}

type HandlerKind byte

const (
	HandlerCatch HandlerKind = iota
	HandlerFinally
	HandlerFault
)

// HandlerRegion is one handler attached to a TryRegion. ExceptionType is
// nil for Finally/Fault and for a catch-all Catch. FilterStart/FilterEnd
// bound an optional Filter sub-program evaluated (with the exception
// already bound to LocalIndex) before HandlerStart is allowed to run;
// FilterStart < 0 means "no filter."
type HandlerRegion struct {
	Kind                     HandlerKind
	ExceptionType            interface{} // reflect.Type, kept as interface{} to avoid an import cycle with exprtree
	LocalIndex               int         // local slot the caught exception payload is stored into, -1 if unbound
	FilterStart, FilterEnd   int
	HandlerStart, HandlerEnd int
}

func NewProgram(name string, numArgs int) *Program {
	return &Program{Name: name, NumArgs: numArgs, Labels: map[string]int{}}
}

// Emit appends insn and returns its index, so callers can patch branch
// targets once the destination's index is known (forward references).
func (p *Program) Emit(insn Insn) int {
	p.Insns = append(p.Insns, insn)
	return len(p.Insns) - 1
}

// NewLocal allocates a fresh local slot and returns its index.
func (p *Program) NewLocal() int {
	idx := p.NumLocals
	p.NumLocals++

	return idx
}

// NewConst interns value into the bound-constants pool, returning its
// index. Interning (rather than appending unconditionally) is the
// Constant Allocator's job in internal/compiler/constants.go; Program
// itself performs no deduplication.
func (p *Program) NewConst(value interface{}) int {
	p.Consts = append(p.Consts, value)
	return len(p.Consts) - 1
}

// DefineLabel declares name at the current end of the instruction stream.
// Call it immediately before emitting the instruction the label should
// target.
func (p *Program) DefineLabel(name string) {
	p.Labels[name] = len(p.Insns)
}

// ResolveLabel returns the instruction index name was (or will be)
// defined at. Callers emitting a forward branch look the label index up
// after DefineLabel has run for every label (internal/compiler/lambda.go's
// resolvePatches does this once the whole body is emitted, filling in the
// placeholder target of every branch recorded along the way).
func (p *Program) ResolveLabel(name string) (int, bool) {
	idx, ok := p.Labels[name]
	return idx, ok
}

func (p *Program) String() string {
	s := fmt.Sprintf("func %s(%d args, %d locals):\n", p.Name, p.NumArgs, p.NumLocals)
	for i, insn := range p.Insns {
		if st, ok := insn.(fmt.Stringer); ok {
			s += fmt.Sprintf("  %4d: %s\n", i, st.String())
		} else {
			s += fmt.Sprintf("  %4d: %s\n", i, insn.Op())
		}
	}

	return s
}
