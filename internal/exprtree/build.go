package exprtree

import "reflect"

// This file is the tree's only construction surface: a set of plain
// constructor functions, not a fluent/public builder API. Callers (tests,
// and any future front end) build a tree by composing these.

func Constant(declaredType reflect.Type, value interface{}) *Node {
	return &Node{Kind: KindConstant, Constant: &ConstantPayload{DeclaredType: declaredType, Value: value}}
}

func VariableRef(v *Variable) *Node {
	return &Node{Kind: KindVariable, Variable: &VariablePayload{Var: v}}
}

func NewVariable(name string, declaredType reflect.Type, byRef bool) *Variable {
	return &Variable{Name: name, DeclaredType: declaredType, IsByRef: byRef}
}

func Assign(target, value *Node) *Node {
	return &Node{Kind: KindAssign, Assign: &AssignPayload{Target: target, Value: value}}
}

func Block(locals []*Variable, body ...*Node) *Node {
	return &Node{Kind: KindBlock, Block: &BlockPayload{Locals: locals, Body: body}}
}

func LambdaNode(name string, params []*Variable, returnType reflect.Type, body *Node) *Node {
	return &Node{Kind: KindLambda, Lambda: &LambdaPayload{
		Name: name, Parameters: params, ReturnType: returnType, Body: body,
	}}
}

func Invoke(target *Node, args ...*Node) *Node {
	return &Node{Kind: KindInvoke, Invoke: &InvokePayload{Target: target, Arguments: args}}
}

func Call(target reflect.Value, args ...*Node) *Node {
	return &Node{Kind: KindCall, Call: &CallPayload{Target: target, Arguments: args}}
}

func New(declaredType reflect.Type, args ...*Node) *Node {
	return &Node{Kind: KindNew, New: &NewPayload{DeclaredType: declaredType, Arguments: args}}
}

func Binary(op BinaryOp, left, right *Node) *Node {
	return &Node{Kind: KindBinary, Binary: &BinaryPayload{Op: op, Left: left, Right: right}}
}

// CheckedBinary is Binary with overflow checking enabled (spec.md §4.4);
// meaningful only for OpAdd/OpSub/OpMul, where a checked integer overflow
// raises a runtime exception instead of wrapping.
func CheckedBinary(op BinaryOp, left, right *Node) *Node {
	return &Node{Kind: KindBinary, Binary: &BinaryPayload{Op: op, Left: left, Right: right, Checked: true}}
}

func Unary(op UnaryOp, operand *Node) *Node {
	return &Node{Kind: KindUnary, Unary: &UnaryPayload{Op: op, Operand: operand}}
}

func Conditional(test, ifTrue, ifFalse *Node) *Node {
	return &Node{Kind: KindConditional, Conditional: &ConditionalPayload{Test: test, IfTrue: ifTrue, IfFalse: ifFalse}}
}

func NewLabel(name string, returnType reflect.Type) *Label {
	return &Label{Name: name, ReturnType: returnType}
}

func Loop(body *Node, breakLabel, continueLabel *Label) *Node {
	return &Node{Kind: KindLoop, Loop: &LoopPayload{Body: body, BreakLabel: breakLabel, ContinueLabel: continueLabel}}
}

func LabelNode(target *Label) *Node {
	return &Node{Kind: KindLabel, Label: &LabelPayload{Target: target}}
}

func Goto(target *Label, value *Node) *Node {
	return &Node{Kind: KindGoto, Goto: &GotoPayload{Target: target, Value: value}}
}

func Try(body *Node, catches []*CatchClause, finally, fault *Node) *Node {
	return &Node{Kind: KindTry, Try: &TryPayload{Body: body, Catches: catches, Finally: finally, Fault: fault}}
}

func Catch(exceptionType reflect.Type, v *Variable, filter, body *Node) *CatchClause {
	return &CatchClause{ExceptionType: exceptionType, Variable: v, Filter: filter, Body: body}
}

func Switch(value *Node, cases []*SwitchCase, def *Node) *Node {
	return &Node{Kind: KindSwitch, Switch: &SwitchPayload{Value: value, Cases: cases, Default: def}}
}

func Case(body *Node, tests ...*Node) *SwitchCase {
	return &SwitchCase{Tests: tests, Body: body}
}

func Quote(body *Node) *Node {
	return &Node{Kind: KindQuote, Quote: &QuotePayload{Body: body}}
}

func RuntimeVariables(vars ...*Variable) *Node {
	return &Node{Kind: KindRuntimeVariables, RuntimeVariables: &RuntimeVariablesPayload{Variables: vars}}
}

// AsLambda wraps a KindLambda node as the Compile entry-point type. It
// panics if n is not a lambda node: this is a programmer error at tree
// construction time, not a runtime condition Compile needs to recover
// from.
func AsLambda(n *Node) *Lambda {
	if n == nil || n.Kind != KindLambda {
		panic("exprtree: AsLambda requires a KindLambda node")
	}

	return &Lambda{Node: n}
}
