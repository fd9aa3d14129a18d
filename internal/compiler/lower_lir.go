package compiler

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/lambdatree/lct/internal/ilasm"
	"github.com/lambdatree/lct/internal/ilvm"
	"github.com/lambdatree/lct/internal/lir"
)

// lowerToLIR is a diagnostic-only lowering of a compiled Program's
// bytecode into internal/lir's target-like three-operand form, purely so
// cmd/exprc's -emit-x64 flag has something genuine to hand
// internal/codegen.EmitX64/EmitX64WithRegisterAllocation: those two
// files (plus regalloc.go and builtins.go) otherwise have no caller left
// in this repo once the teacher's HIR/MIR pipeline that used to feed them
// was cut (see DESIGN.md).
//
// This is not a correctness-critical code path — internal/ilvm is the
// only execution substrate Compile relies on — so the lowering takes a
// simplification the emitter substrate itself cannot: it tracks the
// abstract bytecode stack as a list of virtual register names and does
// not attempt SSA-correct merging of that stack across a branch's join
// point. A Program with irreducible control flow (a backward branch
// whose target's stack depth a later forward path disagrees with) still
// lowers, and the resulting x64 text is valid to read as "what each
// straight-line segment computes," just not meaningful as a single
// linearly executable function across the joins. Good enough for the
// CLI's stated purpose (a diagnostic dump), not meant to round-trip.
func lowerToLIR(p *ilasm.Program, helpers ilvm.HelperTable) *lir.Function {
	fn := &lir.Function{Name: p.Name}

	starts := branchTargets(p)
	starts[0] = true

	var cur *lir.BasicBlock
	newBlock := func(idx int) *lir.BasicBlock {
		bb := &lir.BasicBlock{Label: fmt.Sprintf("pc_%d", idx)}
		fn.Blocks = append(fn.Blocks, bb)

		return bb
	}

	lw := &lirWriter{helpers: helpers}

	for i, insn := range p.Insns {
		if starts[i] || cur == nil {
			cur = newBlock(i)
		}

		lw.lower(cur, p, insn)
	}

	return fn
}

// helperName resolves a HelperTable entry's Go function name for the x64
// dump's Call.Callee, so internal/codegen.DescribeHelper can look it back
// up against the fixed helper set lambda.go/quote.go register (makeQuoted,
// boxedGet, ...) instead of emitting an opaque "helper3". Falls back to the
// positional form when the runtime can't resolve a symbol name (a bound
// method value or a helper built via reflect.MakeFunc has no PC entry).
func helperName(helpers ilvm.HelperTable, index int) string {
	if index < 0 || index >= len(helpers) {
		return fmt.Sprintf("helper%d", index)
	}

	fn := runtime.FuncForPC(helpers[index].Pointer())
	if fn == nil {
		return fmt.Sprintf("helper%d", index)
	}

	name := fn.Name()
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}

	return name
}

// branchTargets returns the set of instruction indices any branch in p
// can land on, each becoming its own lir.BasicBlock so the emitted x64
// carries a label a Br/BrCond can reference by name.
func branchTargets(p *ilasm.Program) map[int]bool {
	targets := map[int]bool{}

	for _, insn := range p.Insns {
		switch v := insn.(type) {
		case ilasm.Br:
			targets[v.Target] = true
		case ilasm.BrTrue:
			targets[v.Target] = true
		case ilasm.BrFalse:
			targets[v.Target] = true
		case ilasm.Leave:
			targets[v.Target] = true
		}
	}

	for _, tr := range p.TryTable {
		targets[tr.TryStart] = true
		targets[tr.End] = true

		for _, h := range tr.Handlers {
			targets[h.HandlerStart] = true
		}
	}

	return targets
}

// lirWriter tracks the abstract value stack while translating one
// Program's instructions into lir.Insn values. Temporary names carry the
// "%" sigil internal/codegen/regalloc.isVirtualRegister requires to tell a
// spillable SSA-like value apart from a symbolic operand (argN/locN/constN,
// a closure field, or a helper's display name) that the diagnostic emitter
// addresses directly by name instead.
type lirWriter struct {
	stack   []string
	tempSeq int
	helpers ilvm.HelperTable
}

func (w *lirWriter) push(name string) { w.stack = append(w.stack, name) }

func (w *lirWriter) pop() string {
	n := len(w.stack) - 1
	v := w.stack[n]
	w.stack = w.stack[:n]

	return v
}

func (w *lirWriter) fresh() string {
	w.tempSeq++
	return fmt.Sprintf("%%t%d", w.tempSeq)
}

func (w *lirWriter) lower(bb *lir.BasicBlock, p *ilasm.Program, insn ilasm.Insn) {
	emit := func(i lir.Insn) { bb.Insns = append(bb.Insns, i) }

	switch v := insn.(type) {
	case ilasm.LoadArg:
		dst := w.fresh()
		emit(lir.Mov{Dst: dst, Src: fmt.Sprintf("arg%d", v.Index)})
		w.push(dst)

	case ilasm.LoadLocal:
		dst := w.fresh()
		emit(lir.Mov{Dst: dst, Src: fmt.Sprintf("loc%d", v.Index)})
		w.push(dst)

	case ilasm.StoreLocal:
		emit(lir.Mov{Dst: fmt.Sprintf("loc%d", v.Index), Src: w.pop()})

	case ilasm.LoadConst:
		dst := w.fresh()
		emit(lir.Mov{Dst: dst, Src: fmt.Sprintf("const%d", v.Index)})
		w.push(dst)

	case ilasm.LoadField:
		dst := w.fresh()
		emit(lir.Load{Dst: dst, Addr: "closure." + v.Field})
		w.push(dst)

	case ilasm.StoreField:
		emit(lir.Store{Addr: "closure." + v.Field, Val: w.pop()})

	case ilasm.Arith:
		rhs, lhs := w.pop(), w.pop()
		dst := w.fresh()
		w.lowerArith(emit, dst, v, lhs, rhs)
		w.push(dst)

	case ilasm.UnaryArith:
		src := w.pop()
		dst := w.fresh()
		emit(lir.Sub{Dst: dst, LHS: "0", RHS: src}) // negate/not both modeled as a subtract-from-zero for diagnostic purposes
		w.push(dst)

	case ilasm.Dup:
		top := w.stack[len(w.stack)-1]
		w.push(top)

	case ilasm.Pop:
		w.pop()

	case ilasm.Call, ilasm.CallClosure:
		argCount := callArgCount(v)
		args := make([]string, argCount)

		for i := argCount - 1; i >= 0; i-- {
			args[i] = w.pop()
		}

		callee := "helper"
		if c, ok := v.(ilasm.Call); ok {
			callee = helperName(w.helpers, c.HelperIndex)
		} else {
			w.pop() // the callee reflect.Value itself
			callee = "closure"
		}

		dst := w.fresh()
		emit(lir.Call{Dst: dst, Callee: callee, Args: args})
		w.push(dst)

	case ilasm.NewObj:
		args := make([]string, v.ArgCount)
		for i := v.ArgCount - 1; i >= 0; i-- {
			args[i] = w.pop()
		}

		dst := w.fresh()
		emit(lir.Call{Dst: dst, Callee: "new:" + v.TypeKey, Args: args})
		w.push(dst)

	case ilasm.NewClosure:
		args := make([]string, v.FieldCount)
		for i := v.FieldCount - 1; i >= 0; i-- {
			args[i] = w.pop()
		}

		dst := w.fresh()
		emit(lir.Call{Dst: dst, Callee: "newclosure:" + v.RecordTypeKey, Args: args})
		w.push(dst)

	case ilasm.MakeDelegate:
		src := w.pop()
		dst := w.fresh()
		emit(lir.Mov{Dst: dst, Src: src})
		w.push(dst)

	case ilasm.Br:
		emit(lir.Br{Target: fmt.Sprintf("pc_%d", v.Target)})

	case ilasm.BrTrue:
		cond := w.pop()
		emit(lir.BrCond{Cond: cond, True: fmt.Sprintf("pc_%d", v.Target), False: "fallthrough"})

	case ilasm.BrFalse:
		cond := w.pop()
		emit(lir.BrCond{Cond: cond, True: "fallthrough", False: fmt.Sprintf("pc_%d", v.Target)})

	case ilasm.Ret:
		if v.HasValue {
			emit(lir.Ret{Src: w.pop()})
		} else {
			emit(lir.Ret{})
		}

	case ilasm.Throw, ilasm.Rethrow, ilasm.EnterTry, ilasm.Leave, ilasm.EndFinally:
		// Structured exception regions have no flat x64 analogue in this
		// diagnostic lowering; internal/ilvm is the only substrate that
		// actually executes Try/Catch/Finally/Fault (see package doc).
		emit(lir.Call{Callee: v.Op()})

	case ilasm.Convert:
		src := w.pop()
		dst := w.fresh()
		emit(lir.Mov{Dst: dst, Src: src})
		w.push(dst)

	default:
		emit(lir.Call{Callee: "unknown:" + insn.Op()})
	}
}

func callArgCount(insn ilasm.Insn) int {
	switch v := insn.(type) {
	case ilasm.Call:
		return v.ArgCount
	case ilasm.CallClosure:
		return v.ArgCount
	default:
		return 0
	}
}

func (w *lirWriter) lowerArith(emit func(lir.Insn), dst string, a ilasm.Arith, lhs, rhs string) {
	switch a.Kind {
	case ilasm.BinAdd:
		emit(lir.Add{Dst: dst, LHS: lhs, RHS: rhs})
	case ilasm.BinSub:
		emit(lir.Sub{Dst: dst, LHS: lhs, RHS: rhs})
	case ilasm.BinMul:
		emit(lir.Mul{Dst: dst, LHS: lhs, RHS: rhs})
	case ilasm.BinDiv, ilasm.BinMod:
		emit(lir.Div{Dst: dst, LHS: lhs, RHS: rhs})
	default:
		emit(lir.Cmp{Dst: dst, Pred: a.Op(), LHS: lhs, RHS: rhs})
	}
}
