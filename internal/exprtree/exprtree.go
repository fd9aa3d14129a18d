// Package exprtree is the tree data model every compiler stage operates
// over: a tagged union of node kinds (NodeKind plus a kind-specific payload
// struct), not an open interface hierarchy. Visitors exhaustively switch on
// Kind rather than dispatching through a polymorphic Accept method.
//
// This package exposes only the constructors a compiler front end needs to
// hand the core a tree to compile; it is not a general tree-construction
// API (no source parser sits on top of it).
package exprtree

import "reflect"

// NodeKind tags the payload a Node carries.
type NodeKind byte

const (
	KindConstant NodeKind = iota
	KindVariable
	KindAssign
	KindBlock
	KindLambda
	KindInvoke
	KindCall
	KindNew
	KindBinary
	KindUnary
	KindConditional
	KindLoop
	KindLabel
	KindGoto
	KindTry
	KindSwitch
	KindQuote
	KindRuntimeVariables
	KindDefault // a default(T)-style zero-value expression
)

// BinaryOp enumerates the binary operators a Binary node can carry.
type BinaryOp byte

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEqual
	OpNotEqual
	OpLessThan
	OpLessOrEqual
	OpGreaterThan
	OpGreaterOrEqual
	OpAnd
	OpOr
)

// UnaryOp enumerates the unary operators a Unary node can carry.
type UnaryOp byte

const (
	OpNegate UnaryOp = iota
	OpNot
	OpPreIncrement
	OpPreDecrement
	OpPostIncrement
	OpPostDecrement
)

// Node is the tagged-union tree node. Exactly one of the payload fields
// matching Kind is populated; visitors must switch over Kind, never
// type-assert across payloads.
type Node struct {
	Kind NodeKind

	// Constant
	Constant *ConstantPayload
	// Variable (a Parameter or Local reference)
	Variable *VariablePayload
	// Assign
	Assign *AssignPayload
	// Block
	Block *BlockPayload
	// Lambda
	Lambda *LambdaPayload
	// Invoke (invoking a compiled/quoted lambda value)
	Invoke *InvokePayload
	// Call (a direct Go function call target)
	Call *CallPayload
	// New (constructing a value of a declared type)
	New *NewPayload
	// Binary
	Binary *BinaryPayload
	// Unary
	Unary *UnaryPayload
	// Conditional (if/else, ternary)
	Conditional *ConditionalPayload
	// Loop
	Loop *LoopPayload
	// Label (declares a jump target)
	Label *LabelPayload
	// Goto
	Goto *GotoPayload
	// Try (Try/Catch/Finally/Fault/Filter)
	Try *TryPayload
	// Switch
	Switch *SwitchPayload
	// Quote
	Quote *QuotePayload
	// RuntimeVariables
	RuntimeVariables *RuntimeVariablesPayload
}

// ConstantPayload holds a literal value folded into the bound-constants
// pool at compile time (spec.md §4.2).
type ConstantPayload struct {
	DeclaredType reflect.Type
	Value        interface{}
}

// VariablePayload references a Parameter or Local declared by an
// enclosing Lambda or Block.
type VariablePayload struct {
	Var *Variable
}

// Variable is a declaration site: a Lambda parameter or a Block-scoped
// local. Identity (pointer equality) is what the Variable Binder keys its
// side tables on — Variable carries no mutable classification fields.
type Variable struct {
	Name         string
	DeclaredType reflect.Type
	IsByRef      bool // true for a Lambda parameter passed by reference
}

// AssignPayload assigns Value to Target (must be a Variable or field
// access reachable through Target).
type AssignPayload struct {
	Target *Node
	Value  *Node
}

// BlockPayload sequences Body, introducing Locals into scope for its
// extent; the Block's own value is the last expression's value (or void).
type BlockPayload struct {
	Locals []*Variable
	Body   []*Node
}

// LambdaPayload declares a nested (or top-level) lambda. ReturnType is
// nil for a void-returning lambda.
type LambdaPayload struct {
	Name       string
	Parameters []*Variable
	ReturnType reflect.Type
	Body       *Node
}

// InvokePayload invokes a lambda-valued expression (Target) that has
// already been compiled or quoted.
type InvokePayload struct {
	Target    *Node
	Arguments []*Node
}

// CallPayload calls a named, statically-known Go function (a runtime
// helper or host-supplied callback), resolved to a reflect.Value at
// compile time — never by name at runtime.
type CallPayload struct {
	Target    reflect.Value
	Arguments []*Node
}

// NewPayload constructs a zero value of DeclaredType, optionally invoking
// a constructor-shaped Call against it.
type NewPayload struct {
	DeclaredType reflect.Type
	Arguments    []*Node
}

// BinaryPayload is a two-operand arithmetic/comparison/logical node.
// Checked marks an arithmetic node (Add/Sub/Mul) that must raise a runtime
// exception on integer overflow rather than silently wrap (spec.md §4.4);
// false (the common case) wraps the way Go's own int64 arithmetic does.
type BinaryPayload struct {
	Op      BinaryOp
	Left    *Node
	Right   *Node
	Checked bool
}

// UnaryPayload is a single-operand node, including the four
// increment/decrement variants used by the post-increment-in-void-context
// elision scenario (spec.md §8).
type UnaryPayload struct {
	Op      UnaryOp
	Operand *Node
}

// ConditionalPayload is an if/then/else; IfFalse may be nil for a
// void-context "if" with no else branch.
type ConditionalPayload struct {
	Test    *Node
	IfTrue  *Node
	IfFalse *Node
}

// LoopPayload is an unconditional loop; termination happens via a Goto to
// a Label outside the loop body (break) or via the loop's own exhaustion
// (there is no implicit condition — callers build conditions with
// Conditional + Goto, matching the reference implementation's primitive
// LoopExpression).
type LoopPayload struct {
	Body        *Node
	BreakLabel  *Label
	ContinueLabel *Label
}

// LabelPayload declares a jump target usable by a Goto anywhere within
// its enclosing Lambda (forward or backward).
type LabelPayload struct {
	Target *Label
}

// Label is a named jump-target declaration site, referenced by both
// LabelPayload (where it's declared) and GotoPayload (where it's jumped
// to). Identity, not Name, is what the binder/emitter key on.
type Label struct {
	Name       string
	ReturnType reflect.Type // non-nil for a Goto-with-value (like "return")
}

// GotoPayload transfers control to Target, optionally carrying Value when
// Target.ReturnType is non-nil.
type GotoPayload struct {
	Target *Label
	Value  *Node
}

// TryPayload is a structured exception region: Body runs, any of Catches
// may intercept a matching exception, Finally always runs on the way out,
// Fault runs only when Body exits via exception.
type TryPayload struct {
	Body    *Node
	Catches []*CatchClause
	Finally *Node
	Fault   *Node
}

// CatchClause handles exceptions assignable to ExceptionType (nil means
// catch-all). Variable is nil when the catch doesn't bind the exception
// value. Filter, when non-nil, must evaluate to a bool and is evaluated
// with Variable already bound before Body is allowed to run.
type CatchClause struct {
	ExceptionType reflect.Type
	Variable      *Variable
	Filter        *Node
	Body          *Node
}

// SwitchPayload dispatches on Value's equality to each Case's Tests.
type SwitchPayload struct {
	Value   *Node
	Cases   []*SwitchCase
	Default *Node
}

// SwitchCase fires Body when Value equals any of Tests.
type SwitchCase struct {
	Tests []*Node
	Body  *Node
}

// QuotePayload reifies Body as a data value (the quote facility, spec.md
// §4.6): compiling a Quote node yields the tree itself, with its free
// variables rewritten to share aliasing cells with the enclosing scope.
type QuotePayload struct {
	Body *Node
}

// RuntimeVariablesPayload reifies the listed Variables as an indexable
// runtime handle (spec.md §4.7), usable across lambda boundaries.
type RuntimeVariablesPayload struct {
	Variables []*Variable
}

// Lambda is the top-level unit Compile accepts: a Node whose Kind is
// KindLambda, exposed as its own type so Compile's signature states the
// entry-point contract directly instead of accepting any *Node.
type Lambda struct {
	Node *Node
}
