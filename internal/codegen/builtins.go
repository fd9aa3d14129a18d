package codegen

// KnownHelper documents one of the Lambda Compiler's fixed Call targets —
// the small set of Go functions internal/compiler/lambda.go and quote.go
// intern once per process (boxedGet, makeQuoted, ...) and every compiled
// Program indexes into by HelperIndex rather than calling by name. The x64
// diagnostic emitter has no way to recover argument types from a bare
// "call boxedGet" line, so this table supplies the arity and purpose a
// reader needs, the same role BuiltinFunctions historically played for a
// fixed set of runtime entry points.
type KnownHelper struct {
	Name  string
	Arity int
	Doc   string
}

// KnownHelpers is keyed by the trimmed function name internal/compiler's
// lowerToLIR resolves a HelperTable entry to (helperName there strips the
// package path, leaving e.g. "boxedGet"). A Call whose Callee isn't in this
// table is either a closure invocation or a tree-level Call node's
// arbitrary Go func target — both genuinely unbounded, so they're left
// undocumented rather than guessed at.
var KnownHelpers = map[string]KnownHelper{
	"boxedGet": {
		Name: "boxedGet", Arity: 1,
		Doc: "reads a captured variable through its shared *box cell",
	},
	"boxedSet": {
		Name: "boxedSet", Arity: 2,
		Doc: "writes a captured variable through its shared *box cell",
	},
	"newBox": {
		Name: "newBox", Arity: 1,
		Doc: "allocates the *box cell a HoistedBoxed variable's storage aliases into",
	},
	"makeQuoted": {
		Name: "makeQuoted", Arity: -1,
		Doc: "builds a QuotedExpression from a Quote node's body plus its free-variable bindings",
	},
	"makeRuntimeVariables": {
		Name: "makeRuntimeVariables", Arity: -1,
		Doc: "builds the indexable RuntimeVariables handle a RuntimeVariables node produces",
	},
}

// DescribeHelper looks up callee against KnownHelpers, returning ok=false
// for a closure invocation, a user Call node's target, or anything else
// with no fixed identity.
func DescribeHelper(callee string) (KnownHelper, bool) {
	h, ok := KnownHelpers[callee]
	return h, ok
}

// annotateCall returns the trailing comment x64emit.go/x64emit_regalloc.go
// append to a call instruction's emitted assembly when callee resolves to
// a KnownHelper, empty otherwise.
func annotateCall(callee string) string {
	h, ok := DescribeHelper(callee)
	if !ok {
		return ""
	}

	return "  ; " + h.Name + ": " + h.Doc + "\n"
}
