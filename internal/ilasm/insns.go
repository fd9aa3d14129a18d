package ilasm

import "fmt"

// Each instruction kind below mirrors one of internal/lir's tagged
// structs: a plain struct carrying typed operands plus an Op() string,
// and (where useful for -emit-il dumps) a String() for disassembly.

type LoadArg struct{ Index int }

func (LoadArg) Op() string       { return "ldarg" }
func (i LoadArg) String() string { return fmt.Sprintf("ldarg %d", i.Index) }

type LoadLocal struct{ Index int }

func (LoadLocal) Op() string       { return "ldloc" }
func (i LoadLocal) String() string { return fmt.Sprintf("ldloc %d", i.Index) }

type StoreLocal struct{ Index int }

func (StoreLocal) Op() string       { return "stloc" }
func (i StoreLocal) String() string { return fmt.Sprintf("stloc %d", i.Index) }

type LoadConst struct{ Index int }

func (LoadConst) Op() string       { return "ldc" }
func (i LoadConst) String() string { return fmt.Sprintf("ldc #%d", i.Index) }

// LoadField/StoreField address a closure record's boxed-or-plain field
// (spec.md §3's closure-record family), field identified by name since the
// record's concrete reflect.Type is only known at compile time, not a
// fixed offset like a native struct.
type LoadField struct{ Field string }

func (LoadField) Op() string       { return "ldfld" }
func (i LoadField) String() string { return fmt.Sprintf("ldfld %s", i.Field) }

type StoreField struct{ Field string }

func (StoreField) Op() string       { return "stfld" }
func (i StoreField) String() string { return fmt.Sprintf("stfld %s", i.Field) }

// NewClosure allocates FieldCount slots of a closure-record type cached
// by internal/compiler/closure.go for this arity, then pops FieldCount
// stack values (in order) to populate it.
type NewClosure struct {
	RecordTypeKey string // arity cache key, resolved by internal/ilvm against the closure registry
	FieldCount    int
}

func (NewClosure) Op() string { return "newclosure" }
func (i NewClosure) String() string {
	return fmt.Sprintf("newclosure %s/%d", i.RecordTypeKey, i.FieldCount)
}

// CallClosure invokes a closure value (a reflect.Value produced by
// Environment & Delegate Builder) already on the stack, consuming ArgCount
// further stack values as arguments.
type CallClosure struct{ ArgCount int }

func (CallClosure) Op() string       { return "callclosure" }
func (i CallClosure) String() string { return fmt.Sprintf("callclosure %d", i.ArgCount) }

// Call invokes a fixed helper resolved at compile time (CallPayload.Target
// in internal/exprtree), identified by an index into the Program's helper
// table built by internal/compiler/lambda.go.
type Call struct {
	HelperIndex int
	ArgCount    int
}

func (Call) Op() string       { return "call" }
func (i Call) String() string { return fmt.Sprintf("call helper#%d/%d", i.HelperIndex, i.ArgCount) }

type NewObj struct {
	TypeKey  string
	ArgCount int
}

func (NewObj) Op() string       { return "newobj" }
func (i NewObj) String() string { return fmt.Sprintf("newobj %s/%d", i.TypeKey, i.ArgCount) }

// Arithmetic/comparison opcodes operate on the top two stack values.
type BinOp byte

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinAnd
	BinOr
)

var binOpNames = [...]string{"add", "sub", "mul", "div", "mod", "ceq", "cne", "clt", "cle", "cgt", "cge", "and", "or"}

// Arith.Checked marks a binary arithmetic node that must raise a runtime
// exception on integer overflow rather than silently wrap (spec.md §4.4's
// "integer overflow follows whether the node is marked checked").
type Arith struct {
	Kind    BinOp
	Checked bool
}

func (a Arith) Op() string {
	if a.Checked {
		return binOpNames[a.Kind] + ".ovf"
	}

	return binOpNames[a.Kind]
}

func (a Arith) String() string { return a.Op() }

type UnOp byte

const (
	UnNeg UnOp = iota
	UnNot
)

func (o UnOp) String() string {
	if o == UnNeg {
		return "neg"
	}

	return "lnot"
}

type UnaryArith struct{ Kind UnOp }

func (u UnaryArith) Op() string     { return u.Kind.String() }
func (u UnaryArith) String() string { return u.Kind.String() }

// Convert coerces the top stack value's dynamic type to ToTypeKey (a
// reflect.Type registry key resolved by internal/ilvm), mirroring the
// reference's UnaryExpression Convert node.
type Convert struct{ ToTypeKey string }

func (Convert) Op() string       { return "conv" }
func (i Convert) String() string { return fmt.Sprintf("conv %s", i.ToTypeKey) }

// Br is an unconditional branch to Target, an instruction index patched in
// once the label's position is known; LabelName is kept for disassembly.
type Br struct {
	Target    int
	LabelName string
}

func (Br) Op() string       { return "br" }
func (i Br) String() string { return fmt.Sprintf("br %s", i.LabelName) }

// BrTrue/BrFalse pop the top stack value and branch if it is (not) the
// zero value of bool.
type BrTrue struct {
	Target    int
	LabelName string
}

func (BrTrue) Op() string       { return "brtrue" }
func (i BrTrue) String() string { return fmt.Sprintf("brtrue %s", i.LabelName) }

type BrFalse struct {
	Target    int
	LabelName string
}

func (BrFalse) Op() string       { return "brfalse" }
func (i BrFalse) String() string { return fmt.Sprintf("brfalse %s", i.LabelName) }

type Dup struct{}

func (Dup) Op() string { return "dup" }

type Pop struct{}

func (Pop) Op() string { return "pop" }

// Ret pops and returns the top stack value if HasValue, otherwise returns
// void.
type Ret struct{ HasValue bool }

func (Ret) Op() string { return "ret" }
func (r Ret) String() string {
	if r.HasValue {
		return "ret <value>"
	}

	return "ret"
}

// Throw pops the top stack value (an exception payload) and raises it.
// Rethrow carries no operand. internal/ilvm raises a plain Go panic for it
// in every context, so it does not re-raise the exception a Catch is
// handling, and internal/compiler never emits it.
type Throw struct{}

func (Throw) Op() string { return "throw" }

type Rethrow struct{}

func (Rethrow) Op() string { return "rethrow" }

// EnterTry starts a structured exception region whose extents are recorded
// in Program.TryTable, not inline in the instruction stream; internal/ilvm
// hands the region to execTry when it reaches EnterTry. Leave and
// EndFinally are never emitted by internal/compiler, and internal/ilvm
// panics if it meets one.
type EnterTry struct{ RegionIndex int }

func (EnterTry) Op() string       { return "try" }
func (i EnterTry) String() string { return fmt.Sprintf("try #%d", i.RegionIndex) }

type Leave struct {
	Target    int
	LabelName string
}

func (Leave) Op() string       { return "leave" }
func (i Leave) String() string { return fmt.Sprintf("leave %s", i.LabelName) }

type EndFinally struct{}

func (EndFinally) Op() string { return "endfinally" }

// MakeDelegate packs the top stack value (a closure record, or nil for a
// static lambda) into a genuinely-typed Go func via
// internal/compiler/environment.go's reflect.MakeFunc path, identified by
// the target lambda's compiled-program index.
type MakeDelegate struct{ ProgramIndex int }

func (MakeDelegate) Op() string       { return "mkdelegate" }
func (i MakeDelegate) String() string { return fmt.Sprintf("mkdelegate #%d", i.ProgramIndex) }
