package compiler

import (
	"fmt"
	"strings"

	"github.com/lambdatree/lct/internal/codegen"
	"github.com/lambdatree/lct/internal/errors"
	"github.com/lambdatree/lct/internal/exprtree"
	"github.com/lambdatree/lct/internal/lir"
)

// Diagnostics runs the same pipeline Compile does (spill, bind, emit)
// but keeps the compileContext around instead of discarding it into a
// single Callable, so cmd/exprc's -emit-il/-emit-x64/-emit-bound-constants
// flags can inspect what the Lambda Compiler actually produced.
type Diagnostics struct {
	cc *compileContext
}

// Analyze runs the pipeline up through bytecode emission and returns a
// Diagnostics handle over the result, without building an Environment
// (reflect.MakeFunc is skipped entirely — a diagnostic dump never calls
// the compiled lambda).
func Analyze(tree *exprtree.Lambda) (*Diagnostics, *errors.StandardError) {
	if tree == nil || tree.Node == nil {
		return nil, errors.MalformedTree("NIL_LAMBDA", "Analyze requires a non-nil lambda tree", nil)
	}

	spilled := spill(tree.Node)

	scopes, err := bindVariables(spilled)
	if err != nil {
		return nil, err
	}

	cc := newCompileContext(scopes)

	cr := compileOnGuardedStack(func() compileResult {
		idx, cerr := cc.compileLambda(spilled)
		return compileResult{idx: idx, err: cerr}
	})

	if cr.err != nil {
		return nil, cr.err
	}

	return &Diagnostics{cc: cc}, nil
}

// EmitIL disassembles every Program the Lambda Compiler produced (the
// outer lambda and any nested lambda literals), in compilation order.
func (d *Diagnostics) EmitIL() string {
	var b strings.Builder

	for _, p := range d.cc.programs {
		b.WriteString(p.String())
		b.WriteByte('\n')
	}

	return b.String()
}

// EmitBoundConstants pretty-prints each Program's bound-constants pool
// alongside its name, so a reader can see exactly what the Constant
// Allocator decided to share in one slot versus give one slot per use.
func (d *Diagnostics) EmitBoundConstants() string {
	var b strings.Builder

	for _, p := range d.cc.programs {
		fmt.Fprintf(&b, "%s: %d constants\n", p.Name, len(p.Consts))

		for i, c := range p.Consts {
			fmt.Fprintf(&b, "  #%d = %#v\n", i, c)
		}
	}

	return b.String()
}

// EmitX64 lowers every Program to internal/lir and runs it through
// internal/codegen's register-allocating x64 text emitter, falling back
// to the non-allocating emitter if register allocation reports a
// failure (e.g. an unsupported instruction shape in the diagnostic
// lowering — see lowerToLIR's doc comment in lower_lir.go on its own
// limitations).
func (d *Diagnostics) EmitX64() string {
	mod := &lir.Module{Name: "exprc"}

	for _, p := range d.cc.programs {
		mod.Functions = append(mod.Functions, lowerToLIR(p, d.cc.helpers))
	}

	if text, err := codegen.EmitX64WithRegisterAllocation(mod); err == nil {
		return text
	}

	return codegen.EmitX64(mod)
}
