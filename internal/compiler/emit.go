package compiler

import (
	"fmt"

	"github.com/lambdatree/lct/internal/errors"
	"github.com/lambdatree/lct/internal/exprtree"
	"github.com/lambdatree/lct/internal/ilasm"
)

// emit lowers n into s.program's instruction stream. Every node leaves
// exactly one value on the stack (nil for a void-context node), which is
// what keeps composition uniform across Block/Conditional/Loop without a
// separate "statement vs expression" distinction — the same convention
// internal/ilvm's executor relies on.
func (s *emitScope) emit(n *exprtree.Node) *errors.StandardError {
	switch n.Kind {
	case exprtree.KindConstant:
		s.program.Emit(ilasm.LoadConst{Index: s.constAlloc.slotOf[n]})

	case exprtree.KindVariable:
		s.emitLoad(n.Variable.Var)

	case exprtree.KindAssign:
		if err := s.emit(n.Assign.Value); err != nil {
			return err
		}

		s.program.Emit(ilasm.Dup{})

		if err := s.emitStore(n.Assign.Target); err != nil {
			return err
		}

	case exprtree.KindBlock:
		return s.emitBlock(n)

	case exprtree.KindLambda:
		return s.emitNestedLambda(n)

	case exprtree.KindInvoke:
		if err := s.emit(n.Invoke.Target); err != nil {
			return err
		}

		for _, a := range n.Invoke.Arguments {
			if err := s.emit(a); err != nil {
				return err
			}
		}

		s.program.Emit(ilasm.CallClosure{ArgCount: len(n.Invoke.Arguments)})

	case exprtree.KindCall:
		for _, a := range n.Call.Arguments {
			if err := s.emit(a); err != nil {
				return err
			}
		}

		s.program.Emit(ilasm.Call{HelperIndex: s.cc.helperIndexFor(n.Call.Target), ArgCount: len(n.Call.Arguments)})

	case exprtree.KindNew:
		for _, a := range n.New.Arguments {
			if err := s.emit(a); err != nil {
				return err
			}
		}

		s.program.Emit(ilasm.NewObj{TypeKey: s.cc.typeKey(n.New.DeclaredType), ArgCount: len(n.New.Arguments)})

	case exprtree.KindBinary:
		return s.emitBinary(n)

	case exprtree.KindUnary:
		return s.emitUnary(n)

	case exprtree.KindConditional:
		return s.emitConditional(n)

	case exprtree.KindLoop:
		return s.emitLoop(n)

	case exprtree.KindLabel:
		s.defineLabel(n.Label.Target)

		if n.Label.Target.ReturnType != nil {
			s.program.Emit(ilasm.LoadLocal{Index: s.labelSlot(n.Label.Target)})
		} else {
			s.program.Emit(ilasm.LoadConst{Index: s.literalConst(nil)})
		}

	case exprtree.KindGoto:
		if n.Goto.Value != nil {
			if err := s.emit(n.Goto.Value); err != nil {
				return err
			}

			s.program.Emit(ilasm.StoreLocal{Index: s.labelSlot(n.Goto.Target)})
		}

		s.branch(func(target int) ilasm.Insn { return ilasm.Br{Target: target} }, s.nameOf(n.Goto.Target))

	case exprtree.KindTry:
		return s.emitTry(n)

	case exprtree.KindSwitch:
		return s.emitSwitch(n)

	case exprtree.KindQuote:
		return s.emitQuote(n)

	case exprtree.KindRuntimeVariables:
		return s.emitRuntimeVariables(n)

	default:
		return errors.UnsupportedConstruct("UNKNOWN_NODE_KIND",
			fmt.Sprintf("the lambda compiler has no emission rule for node kind %d", n.Kind), nil)
	}

	return nil
}

// emitBlock initializes any boxed locals declared directly by n, then
// emits each body statement, discarding every value but the last.
func (s *emitScope) emitBlock(n *exprtree.Node) *errors.StandardError {
	for _, local := range n.Block.Locals {
		if slot, ok := s.boxSlot[local]; ok {
			s.program.Emit(ilasm.LoadConst{Index: s.literalConst(nil)})
			s.program.Emit(ilasm.Call{HelperIndex: s.cc.helperIndexFor(newBoxFn), ArgCount: 1})
			s.program.Emit(ilasm.StoreLocal{Index: slot})
		}
	}

	if len(n.Block.Body) == 0 {
		s.program.Emit(ilasm.LoadConst{Index: s.literalConst(nil)})
		return nil
	}

	for i, stmt := range n.Block.Body {
		if err := s.emit(stmt); err != nil {
			return err
		}

		if i < len(n.Block.Body)-1 {
			s.program.Emit(ilasm.Pop{})
		}
	}

	return nil
}

func (s *emitScope) emitBinary(n *exprtree.Node) *errors.StandardError {
	if err := s.emit(n.Binary.Left); err != nil {
		return err
	}

	if err := s.emit(n.Binary.Right); err != nil {
		return err
	}

	s.program.Emit(ilasm.Arith{Kind: binOpOf(n.Binary.Op), Checked: n.Binary.Checked})

	return nil
}

func binOpOf(op exprtree.BinaryOp) ilasm.BinOp {
	switch op {
	case exprtree.OpAdd:
		return ilasm.BinAdd
	case exprtree.OpSub:
		return ilasm.BinSub
	case exprtree.OpMul:
		return ilasm.BinMul
	case exprtree.OpDiv:
		return ilasm.BinDiv
	case exprtree.OpMod:
		return ilasm.BinMod
	case exprtree.OpEqual:
		return ilasm.BinEq
	case exprtree.OpNotEqual:
		return ilasm.BinNe
	case exprtree.OpLessThan:
		return ilasm.BinLt
	case exprtree.OpLessOrEqual:
		return ilasm.BinLe
	case exprtree.OpGreaterThan:
		return ilasm.BinGt
	case exprtree.OpGreaterOrEqual:
		return ilasm.BinGe
	case exprtree.OpAnd:
		return ilasm.BinAnd
	default:
		return ilasm.BinOr
	}
}

// emitUnary handles the four increment/decrement variants specially,
// since they read-modify-write their operand (spec.md §8's
// post-increment-in-void-context elision scenario depends on
// OpPostIncrement's value being the OLD value, discarded when the Unary
// node itself is an intermediate — non-last — Block statement).
func (s *emitScope) emitUnary(n *exprtree.Node) *errors.StandardError {
	switch n.Unary.Op {
	case exprtree.OpNegate, exprtree.OpNot:
		if err := s.emit(n.Unary.Operand); err != nil {
			return err
		}

		if n.Unary.Op == exprtree.OpNegate {
			s.program.Emit(ilasm.UnaryArith{Kind: ilasm.UnNeg})
		} else {
			s.program.Emit(ilasm.UnaryArith{Kind: ilasm.UnNot})
		}

		return nil
	default:
		return s.emitIncrementDecrement(n)
	}
}

func (s *emitScope) emitIncrementDecrement(n *exprtree.Node) *errors.StandardError {
	target := n.Unary.Operand
	if target.Kind != exprtree.KindVariable {
		return errors.MalformedTree("INVALID_INCREMENT_TARGET",
			"increment/decrement operators require a Variable operand", nil)
	}

	v := target.Variable.Var
	one := s.literalConst(1)

	isIncrement := n.Unary.Op == exprtree.OpPreIncrement || n.Unary.Op == exprtree.OpPostIncrement
	isPost := n.Unary.Op == exprtree.OpPostIncrement || n.Unary.Op == exprtree.OpPostDecrement

	s.emitLoad(v) // old value

	if isPost {
		s.program.Emit(ilasm.Dup{}) // keep a copy to return
	}

	s.program.Emit(ilasm.LoadConst{Index: one})

	if isIncrement {
		s.program.Emit(ilasm.Arith{Kind: ilasm.BinAdd})
	} else {
		s.program.Emit(ilasm.Arith{Kind: ilasm.BinSub})
	}

	if !isPost {
		s.program.Emit(ilasm.Dup{}) // keep a copy to return (the NEW value)
	}

	if err := s.emitStore(target); err != nil {
		return err
	}

	return nil
}

func (s *emitScope) emitConditional(n *exprtree.Node) *errors.StandardError {
	if err := s.emit(n.Conditional.Test); err != nil {
		return err
	}

	elseLabel := s.freshLabel("else")
	endLabel := s.freshLabel("endif")

	s.branch(func(t int) ilasm.Insn { return ilasm.BrFalse{Target: t} }, elseLabel)

	if err := s.emit(n.Conditional.IfTrue); err != nil {
		return err
	}

	s.branch(func(t int) ilasm.Insn { return ilasm.Br{Target: t} }, endLabel)

	s.program.DefineLabel(elseLabel)

	if n.Conditional.IfFalse != nil {
		if err := s.emit(n.Conditional.IfFalse); err != nil {
			return err
		}
	} else {
		s.program.Emit(ilasm.LoadConst{Index: s.literalConst(nil)})
	}

	s.program.DefineLabel(endLabel)

	return nil
}

// emitLoop emits Body repeatedly; BreakLabel/ContinueLabel (if used by a
// Goto inside Body) are plain labels the Goto machinery already handles,
// so the loop construct itself only needs a back-edge to its own start
// and a label marking where a break lands.
func (s *emitScope) emitLoop(n *exprtree.Node) *errors.StandardError {
	startLabel := s.freshLabel("loop_start")

	s.program.DefineLabel(startLabel)

	if n.Loop.ContinueLabel != nil {
		s.defineLabel(n.Loop.ContinueLabel)
	}

	if err := s.emit(n.Loop.Body); err != nil {
		return err
	}

	s.program.Emit(ilasm.Pop{}) // loop body's per-iteration value is discarded
	s.branch(func(t int) ilasm.Insn { return ilasm.Br{Target: t} }, startLabel)

	if n.Loop.BreakLabel != nil {
		s.defineLabel(n.Loop.BreakLabel)

		if n.Loop.BreakLabel.ReturnType != nil {
			s.program.Emit(ilasm.LoadLocal{Index: s.labelSlot(n.Loop.BreakLabel)})
		} else {
			s.program.Emit(ilasm.LoadConst{Index: s.literalConst(nil)})
		}
	} else {
		s.program.Emit(ilasm.LoadConst{Index: s.literalConst(nil)})
	}

	return nil
}

func (s *emitScope) emitSwitch(n *exprtree.Node) *errors.StandardError {
	if err := s.emit(n.Switch.Value); err != nil {
		return err
	}

	valueSlot := s.program.NewLocal()
	s.program.Emit(ilasm.StoreLocal{Index: valueSlot})

	endLabel := s.freshLabel("endswitch")

	for _, c := range n.Switch.Cases {
		caseLabel := s.freshLabel("case")
		nextLabel := s.freshLabel("nextcase")

		for _, t := range c.Tests {
			s.program.Emit(ilasm.LoadLocal{Index: valueSlot})

			if err := s.emit(t); err != nil {
				return err
			}

			s.program.Emit(ilasm.Arith{Kind: ilasm.BinEq})
			s.branch(func(tg int) ilasm.Insn { return ilasm.BrTrue{Target: tg} }, caseLabel)
		}

		s.branch(func(tg int) ilasm.Insn { return ilasm.Br{Target: tg} }, nextLabel)
		s.program.DefineLabel(caseLabel)

		if err := s.emit(c.Body); err != nil {
			return err
		}

		s.branch(func(tg int) ilasm.Insn { return ilasm.Br{Target: tg} }, endLabel)
		s.program.DefineLabel(nextLabel)
	}

	if n.Switch.Default != nil {
		if err := s.emit(n.Switch.Default); err != nil {
			return err
		}
	} else {
		s.program.Emit(ilasm.LoadConst{Index: s.literalConst(nil)})
	}

	s.program.DefineLabel(endLabel)

	return nil
}

// emitLoad pushes v's current value, unwrapping a boxed cell or reading
// a closure field through the parent-depth chain as needed.
func (s *emitScope) emitLoad(v *exprtree.Variable) {
	switch {
	case s.isOwnedHere(v):
		if slot, ok := s.boxSlot[v]; ok {
			s.program.Emit(ilasm.LoadLocal{Index: slot})
			s.program.Emit(ilasm.Call{HelperIndex: s.cc.helperIndexFor(boxedGetFn), ArgCount: 1})

			return
		}

		if _, ok := s.argIndex[v]; ok {
			s.reloadParam(v)
			return
		}

		s.program.Emit(ilasm.LoadLocal{Index: s.localSlot[v]})
	default:
		// Captured from an enclosing lambda: this lambda's own closure
		// record carries it as a field (recordCaptureChain guarantees every
		// intermediate lambda has it too).
		s.program.Emit(ilasm.LoadField{Field: fieldName(s.fieldIndex[v])})

		if s.cc.scopes.isBoxed(v) {
			s.program.Emit(ilasm.Call{HelperIndex: s.cc.helperIndexFor(boxedGetFn), ArgCount: 1})
		}
	}
}

// emitStore consumes the top-of-stack value and assigns it to target
// (must be a Variable reference — field/indexer assignment targets are
// not part of this tree's scope).
func (s *emitScope) emitStore(target *exprtree.Node) *errors.StandardError {
	if target.Kind != exprtree.KindVariable {
		return errors.MalformedTree("INVALID_ASSIGN_TARGET", "Assign.Target must be a Variable reference", nil)
	}

	v := target.Variable.Var

	switch {
	case s.isOwnedHere(v):
		if slot, ok := s.boxSlot[v]; ok {
			// stack: value -> need (box, value) order for the helper call.
			tmp := s.program.NewLocal()
			s.program.Emit(ilasm.StoreLocal{Index: tmp})
			s.program.Emit(ilasm.LoadLocal{Index: slot})
			s.program.Emit(ilasm.LoadLocal{Index: tmp})
			s.program.Emit(ilasm.Call{HelperIndex: s.cc.helperIndexFor(boxedSetFn), ArgCount: 2})
			s.program.Emit(ilasm.Pop{}) // ilvm pushes nil for the void boxedSet

			return nil
		}

		if _, isParam := s.argIndex[v]; isParam {
			// Parameters are not directly re-storable as arguments in this
			// substrate (LoadArg has no Store counterpart); a mutated,
			// non-captured parameter still gets a shadow local so writes are
			// observable to later reads within the same lambda.
			slot, ok := s.localSlot[v]
			if !ok {
				slot = s.program.NewLocal()
				s.localSlot[v] = slot
			}

			s.program.Emit(ilasm.StoreLocal{Index: slot})

			return nil
		}

		s.program.Emit(ilasm.StoreLocal{Index: s.localSlot[v]})

		return nil
	default:
		if s.cc.scopes.isBoxed(v) {
			tmp := s.program.NewLocal()
			s.program.Emit(ilasm.StoreLocal{Index: tmp})
			s.program.Emit(ilasm.LoadField{Field: fieldName(s.fieldIndex[v])})
			s.program.Emit(ilasm.LoadLocal{Index: tmp})
			s.program.Emit(ilasm.Call{HelperIndex: s.cc.helperIndexFor(boxedSetFn), ArgCount: 2})
			s.program.Emit(ilasm.Pop{}) // ilvm pushes nil for the void boxedSet

			return nil
		}

		s.program.Emit(ilasm.StoreField{Field: fieldName(s.fieldIndex[v])})

		return nil
	}
}

func (s *emitScope) isOwnedHere(v *exprtree.Variable) bool {
	return s.cc.scopes.ownerLambda[v] == s.lambdaNode
}

func fieldName(index int) string { return fmt.Sprintf("Item%d", index+1) }

// emitLoad for a mutated, non-captured parameter reads from its shadow
// local once one has been created by emitStore; until then it still reads
// the incoming argument. This asymmetry (read-before-first-write reads
// LoadArg, every subsequent read/write uses the shadow local) matches the
// reference's own "locals start at their parameter's initial value"
// semantics without needing a prologue copy for every parameter.
func (s *emitScope) reloadParam(v *exprtree.Variable) {
	if slot, ok := s.localSlot[v]; ok {
		s.program.Emit(ilasm.LoadLocal{Index: slot})
		return
	}

	s.program.Emit(ilasm.LoadArg{Index: s.argIndex[v]})
}

func (s *emitScope) freshLabel(prefix string) string {
	s.cc.labelSeq++
	return fmt.Sprintf("%s_%d", prefix, s.cc.labelSeq)
}

func (s *emitScope) nameOf(l *exprtree.Label) string {
	if n, ok := s.labelName[l]; ok {
		return n
	}

	n := s.freshLabel(l.Name)
	s.labelName[l] = n

	return n
}

func (s *emitScope) defineLabel(l *exprtree.Label) {
	s.program.DefineLabel(s.nameOf(l))
}

func (s *emitScope) labelSlot(l *exprtree.Label) int {
	if slot, ok := s.labelValueSlot[l]; ok {
		return slot
	}

	slot := s.program.NewLocal()
	s.labelValueSlot[l] = slot

	return slot
}

// branch emits a placeholder branch instruction targeting labelName,
// recording a patch site resolved once the whole body has been emitted
// (labels may be defined after the branch that targets them).
func (s *emitScope) branch(makeInsn func(target int) ilasm.Insn, labelName string) {
	idx := s.program.Emit(makeInsn(-1))
	s.patches = append(s.patches, branchPatch{insnIndex: idx, labelName: labelName})
}

// literalConst interns a compiler-synthesized value (the nil result of a
// void branch, the 1 an increment/decrement needs) directly into the
// program's constant pool. Unlike a source Constant node these never
// repeat enough to be worth the constantAllocator's cache-threshold
// bookkeeping.
func (s *emitScope) literalConst(v interface{}) int {
	return s.program.NewConst(v)
}

// emitNestedLambda compiles node's own Program (memoized by
// compileLambda), then at this site builds its closure record from the
// enclosing lambda's current variable bindings and wraps it as a callable
// via MakeDelegate.
func (s *emitScope) emitNestedLambda(node *exprtree.Node) *errors.StandardError {
	progIndex, err := s.cc.compileLambda(node)
	if err != nil {
		return err
	}

	fields := s.cc.scopes.closureFields[node]
	for _, v := range fields {
		s.emitCaptureValue(v)
	}

	s.program.Emit(ilasm.NewClosure{RecordTypeKey: s.cc.closureKey(len(fields)), FieldCount: len(fields)})
	s.program.Emit(ilasm.MakeDelegate{ProgramIndex: progIndex})

	return nil
}

// emitCaptureValue pushes the value a closure field (or a Quote/
// RuntimeVariables binding) should hold for v: the raw *box pointer for a
// boxed variable, so every holder shares the same aliasing cell, or the
// plain value otherwise.
func (s *emitScope) emitCaptureValue(v *exprtree.Variable) {
	if s.cc.scopes.isBoxed(v) {
		if s.isOwnedHere(v) {
			s.program.Emit(ilasm.LoadLocal{Index: s.boxSlot[v]})
		} else {
			s.program.Emit(ilasm.LoadField{Field: fieldName(s.fieldIndex[v])})
		}

		return
	}

	s.emitLoad(v)
}

// emitTry builds the TryRegion/HandlerRegion table entries for n and
// emits its body/handlers in sequence; internal/ilvm's execTry runs them
// out of that table rather than by falling through the instruction
// stream, so the only layout requirement here is that each range's
// instructions are contiguous and TryRegion.End lands exactly where
// execution should resume. The Try's own result value (the body's or
// whichever handler ran) is threaded through resultSlot exactly like a
// value-carrying Label, since region.End's continuation is ordinary
// straight-line execution within the same frame.
func (s *emitScope) emitTry(n *exprtree.Node) *errors.StandardError {
	resultSlot := s.program.NewLocal()
	regionIndex := len(s.program.TryTable)
	s.program.TryTable = append(s.program.TryTable, ilasm.TryRegion{})

	s.program.Emit(ilasm.EnterTry{RegionIndex: regionIndex})

	tryStart := len(s.program.Insns)

	if err := s.emit(n.Try.Body); err != nil {
		return err
	}

	s.program.Emit(ilasm.StoreLocal{Index: resultSlot})

	tryEnd := len(s.program.Insns)

	var handlers []ilasm.HandlerRegion

	for _, c := range n.Try.Catches {
		filterStart, filterEnd := -1, -1
		localIndex := -1

		// internal/ilvm binds the raw caught payload straight into
		// fr.locals[LocalIndex] (tryregion.go's runTryBody) — it knows
		// nothing about boxed cells. So LocalIndex always names a plain
		// local; if this variable needs a *box (because it's captured or
		// reified), that box is built from the plain local's value as the
		// very first thing the handler does.
		var boxSlot int

		needsBox := c.Variable != nil && s.cc.scopes.isBoxed(c.Variable)

		if c.Variable != nil {
			localIndex = s.program.NewLocal()

			if needsBox {
				boxSlot = s.program.NewLocal()
				s.boxSlot[c.Variable] = boxSlot
			} else {
				s.localSlot[c.Variable] = localIndex
			}
		}

		if c.Filter != nil {
			filterStart = len(s.program.Insns)

			if needsBox {
				s.program.Emit(ilasm.LoadLocal{Index: localIndex})
				s.program.Emit(ilasm.Call{HelperIndex: s.cc.helperIndexFor(newBoxFn), ArgCount: 1})
				s.program.Emit(ilasm.StoreLocal{Index: boxSlot})
			}

			if err := s.emit(c.Filter); err != nil {
				return err
			}

			filterEnd = len(s.program.Insns)
		}

		handlerStart := len(s.program.Insns)

		if needsBox && c.Filter == nil {
			s.program.Emit(ilasm.LoadLocal{Index: localIndex})
			s.program.Emit(ilasm.Call{HelperIndex: s.cc.helperIndexFor(newBoxFn), ArgCount: 1})
			s.program.Emit(ilasm.StoreLocal{Index: boxSlot})
		}

		if err := s.emit(c.Body); err != nil {
			return err
		}

		s.program.Emit(ilasm.StoreLocal{Index: resultSlot})

		handlerEnd := len(s.program.Insns)

		var exceptionType interface{}
		if c.ExceptionType != nil {
			exceptionType = c.ExceptionType
		}

		handlers = append(handlers, ilasm.HandlerRegion{
			Kind:          ilasm.HandlerCatch,
			ExceptionType: exceptionType,
			LocalIndex:    localIndex,
			FilterStart:   filterStart,
			FilterEnd:     filterEnd,
			HandlerStart:  handlerStart,
			HandlerEnd:    handlerEnd,
		})
	}

	if n.Try.Finally != nil {
		handlerStart := len(s.program.Insns)

		if err := s.emit(n.Try.Finally); err != nil {
			return err
		}

		s.program.Emit(ilasm.Pop{})

		handlers = append(handlers, ilasm.HandlerRegion{
			Kind: ilasm.HandlerFinally, LocalIndex: -1, FilterStart: -1, FilterEnd: -1,
			HandlerStart: handlerStart, HandlerEnd: len(s.program.Insns),
		})
	}

	if n.Try.Fault != nil {
		handlerStart := len(s.program.Insns)

		if err := s.emit(n.Try.Fault); err != nil {
			return err
		}

		s.program.Emit(ilasm.Pop{})

		handlers = append(handlers, ilasm.HandlerRegion{
			Kind: ilasm.HandlerFault, LocalIndex: -1, FilterStart: -1, FilterEnd: -1,
			HandlerStart: handlerStart, HandlerEnd: len(s.program.Insns),
		})
	}

	s.program.TryTable[regionIndex] = ilasm.TryRegion{
		TryStart: tryStart, TryEnd: tryEnd, End: len(s.program.Insns), Handlers: handlers,
	}

	s.program.Emit(ilasm.LoadLocal{Index: resultSlot})

	return nil
}

// emitQuote reifies n's body as data: the *exprtree.Node subtree itself
// (immutable, safe to share) plus a binding for every free variable it
// references, each keyed by name and holding that variable's shared *box
// cell so a later RuntimeVariables merge sees the same mutations the
// owning lambda does (spec.md §4.6).
func (s *emitScope) emitQuote(n *exprtree.Node) *errors.StandardError {
	vars := freeVariablesOf(n.Quote.Body)

	s.program.Emit(ilasm.LoadConst{Index: s.literalConst(n.Quote.Body)})

	for _, v := range vars {
		s.program.Emit(ilasm.LoadConst{Index: s.literalConst(v.Name)})
		s.emitCaptureValue(v)
	}

	s.program.Emit(ilasm.Call{HelperIndex: s.cc.helperIndexFor(makeQuotedFn), ArgCount: 1 + 2*len(vars)})

	return nil
}

// emitRuntimeVariables builds the indexable handle spec.md §4.7 describes:
// an ordered list of the named variables' shared *box cells, gettable and
// settable by position across a lambda boundary.
func (s *emitScope) emitRuntimeVariables(n *exprtree.Node) *errors.StandardError {
	for _, v := range n.RuntimeVariables.Variables {
		s.emitCaptureValue(v)
	}

	s.program.Emit(ilasm.Call{
		HelperIndex: s.cc.helperIndexFor(makeRuntimeVariablesFn),
		ArgCount:    len(n.RuntimeVariables.Variables),
	})

	return nil
}

// freeVariablesOf lists, in first-reference order, every distinct
// Variable n refers to — the same traversal markReifiedVars (binder.go)
// uses to decide which variables a Quote forces into boxed storage.
func freeVariablesOf(n *exprtree.Node) []*exprtree.Variable {
	seen := map[*exprtree.Variable]bool{}

	var out []*exprtree.Variable

	exprtree.Walk(n, func(c *exprtree.Node) bool {
		if c.Kind == exprtree.KindVariable {
			v := c.Variable.Var
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}

		return true
	})

	return out
}
