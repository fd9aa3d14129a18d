package compiler

import (
	"fmt"
	"reflect"

	"github.com/lambdatree/lct/internal/exprtree"
	"github.com/lambdatree/lct/internal/ilasm"
	"github.com/lambdatree/lct/internal/ilvm"
)

// compileContext is threaded through one Compile call: it owns every
// ilasm.Program produced for the outer lambda and each lambda nested
// within it, plus the fixed helper/type tables internal/ilvm resolves
// Call/NewObj/Convert instructions against.
type compileContext struct {
	scopes       *scopeInfo
	programs     []*ilasm.Program
	lambdaNodes  []*exprtree.Node // parallel to programs: the KindLambda node each Program was emitted for
	helpers      ilvm.HelperTable
	types        ilvm.TypeTable
	machine      *ilvm.Machine

	helperIndex map[uintptr]int
	typeKeys    map[reflect.Type]string
	progIndex   map[*exprtree.Node]int
	typeSeq     int
	labelSeq    int
}

func newCompileContext(scopes *scopeInfo) *compileContext {
	return &compileContext{
		scopes:      scopes,
		types:       ilvm.TypeTable{},
		helperIndex: map[uintptr]int{},
		typeKeys:    map[reflect.Type]string{},
		progIndex:   map[*exprtree.Node]int{},
	}
}

// typeKey interns t into the type table, returning the string key
// NewObj/Convert instructions carry.
func (cc *compileContext) typeKey(t reflect.Type) string {
	if t == nil {
		return ""
	}

	if k, ok := cc.typeKeys[t]; ok {
		return k
	}

	cc.typeSeq++
	k := fmt.Sprintf("T%d_%s", cc.typeSeq, t.String())
	cc.typeKeys[t] = k
	cc.types[k] = t

	return k
}

// helperIndexFor interns a fixed Call target, returning its index into
// HelperTable. Indexed by the function's code pointer (fn.Pointer()) so
// repeated calls to the same Go function share one slot.
func (cc *compileContext) helperIndexFor(fn reflect.Value) int {
	ptr := fn.Pointer()
	if idx, ok := cc.helperIndex[ptr]; ok {
		return idx
	}

	cc.helpers = append(cc.helpers, fn)
	idx := len(cc.helpers) - 1
	cc.helperIndex[ptr] = idx

	return idx
}

// closureKey returns the disassembly-facing key for an arity-n closure
// record. The Closure Record Factory (closure.go) derives the actual
// reflect.Type purely from n, so this key is informational only.
func (cc *compileContext) closureKey(n int) string {
	return fmt.Sprintf("closure_%d", n)
}
