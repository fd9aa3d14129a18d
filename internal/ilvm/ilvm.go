// Package ilvm is the emitter substrate's executor: a bytecode
// interpreter loop over internal/ilasm.Program, modeled on
// internal/codegen.emitFunc's switch-per-instruction-kind shape (there,
// each case emits x64 text; here, each case executes against a value
// stack). This package plays the role the spec assigns to "the target
// code-generation substrate" — see DESIGN.md Open Question O1 — and is
// deliberately distinct from internal/treeinterp, which walks the
// original tree and exists solely as an independent reference oracle.
package ilvm

import (
	"fmt"
	"reflect"

	"github.com/lambdatree/lct/internal/errors"
	"github.com/lambdatree/lct/internal/exception"
	"github.com/lambdatree/lct/internal/ilasm"
)

// HelperTable resolves the fixed call targets a Program's Call
// instructions index into; built once per compiled Lambda by
// internal/compiler/lambda.go from the tree's Call nodes.
type HelperTable []reflect.Value

// TypeTable resolves the string keys NewObj/Convert/NewClosure carry back
// to a reflect.Type, built alongside HelperTable.
type TypeTable map[string]reflect.Type

// ClosureFactory creates a new closure-record value for the arity/type
// key a NewClosure instruction names, mirroring
// internal/compiler/closure.go's cache. It is injected rather than
// imported directly to avoid an import cycle (internal/compiler depends
// on internal/ilvm, not the reverse).
type ClosureFactory func(key string, fields []interface{}) (reflect.Value, error)

// DelegateMaker produces a genuinely typed Go func for a nested Program,
// mirroring internal/compiler/environment.go's reflect.MakeFunc path.
// Also injected to avoid an import cycle.
type DelegateMaker func(programIndex int, closure reflect.Value) (reflect.Value, error)

// Machine executes one or more related Programs (a lambda and any nested
// lambdas it declares), sharing the Programs slice so MakeDelegate can
// address a sibling program by index.
type Machine struct {
	Programs []*ilasm.Program
	Helpers  HelperTable
	Types    TypeTable
	NewClosure ClosureFactory
	MakeDelegate DelegateMaker
}

// frame is one activation of Run: its own value stack, argument/local
// slots, and the closure record it was invoked with.
type frame struct {
	program *ilasm.Program
	args    []interface{}
	locals  []interface{}
	stack   []interface{}
	closure reflect.Value // the closure record this activation was invoked with, or zero Value
}

func (f *frame) push(v interface{}) { f.stack = append(f.stack, v) }

func (f *frame) pop() interface{} {
	n := len(f.stack) - 1
	v := f.stack[n]
	f.stack = f.stack[:n]

	return v
}

// Run executes programIndex's Program with args, returning its result
// (nil for a void-returning lambda) or an error. A runtime exception
// raised by the bytecode (Throw) that escapes every Try region in this
// activation is returned as *errors.StandardError wrapping the
// *exception.Exception, per spec.md §7's "no wrapping of the underlying
// failure beyond attaching compiler-known context" policy — the
// StandardError's Context carries the original *exception.Exception
// un-stringified so a caller can type-assert it back out.
func (m *Machine) Run(programIndex int, args []interface{}, closure reflect.Value) (result interface{}, err *errors.StandardError) {
	p := m.Programs[programIndex]
	fr := &frame{program: p, args: args, locals: make([]interface{}, p.NumLocals), closure: closure}

	defer func() {
		if r := recover(); r != nil {
			e := exception.RecoverException(r)
			err = errors.NewStandardError(errors.CategorySystem, "UNCAUGHT_RUNTIME_EXCEPTION",
				e.Message, map[string]interface{}{"exception": e})
		}
	}()

	result = m.execRange(fr, 0, len(p.Insns))

	return result, nil
}

// execRange executes p.Insns[start:end] against fr, returning the value
// left on the stack by a Ret instruction (nil if none executed, i.e. the
// range fell through — callers at the top level always end in Ret).
func (m *Machine) execRange(fr *frame, start, end int) interface{} {
	pc := start

	for pc < end {
		insn := fr.program.Insns[pc]
		next := pc + 1

		switch v := insn.(type) {
		case ilasm.LoadArg:
			fr.push(fr.args[v.Index])
		case ilasm.LoadLocal:
			fr.push(fr.locals[v.Index])
		case ilasm.StoreLocal:
			fr.locals[v.Index] = fr.pop()
		case ilasm.LoadConst:
			fr.push(fr.program.Consts[v.Index])
		case ilasm.LoadField:
			fr.push(m.loadField(fr.closure, v.Field))
		case ilasm.StoreField:
			m.storeField(fr.closure, v.Field, fr.pop())
		case ilasm.NewClosure:
			fields := make([]interface{}, v.FieldCount)
			for i := v.FieldCount - 1; i >= 0; i-- {
				fields[i] = fr.pop()
			}

			rec, cerr := m.NewClosure(v.RecordTypeKey, fields)
			if cerr != nil {
				exception.AsGoPanic(&exception.Exception{Kind: exception.ExceptionPanic, Message: cerr.Error()})
			}

			fr.push(rec)
		case ilasm.CallClosure:
			args := popN(fr, v.ArgCount)
			callee := fr.pop().(reflect.Value)
			fr.push(callReflect(callee, args))
		case ilasm.Call:
			args := popN(fr, v.ArgCount)
			fr.push(callReflect(m.Helpers[v.HelperIndex], args))
		case ilasm.NewObj:
			args := popN(fr, v.ArgCount)
			fr.push(m.newObj(v.TypeKey, args))
		case ilasm.Arith:
			rhs := fr.pop()
			lhs := fr.pop()
			fr.push(evalBinOp(v.Kind, v.Checked, lhs, rhs))
		case ilasm.UnaryArith:
			fr.push(evalUnOp(v.Kind, fr.pop()))
		case ilasm.Convert:
			fr.push(convert(fr.pop(), m.Types[v.ToTypeKey]))
		case ilasm.Br:
			next = v.Target
		case ilasm.BrTrue:
			if truthy(fr.pop()) {
				next = v.Target
			}
		case ilasm.BrFalse:
			if !truthy(fr.pop()) {
				next = v.Target
			}
		case ilasm.Dup:
			top := fr.stack[len(fr.stack)-1]
			fr.push(top)
		case ilasm.Pop:
			fr.pop()
		case ilasm.Ret:
			if v.HasValue {
				return fr.pop()
			}

			return nil
		case ilasm.Throw:
			payload := fr.pop()
			raiseUser(payload)
		case ilasm.Rethrow:
			panic("ilvm: rethrow outside an active catch handler")
		case ilasm.EnterTry:
			return m.execTry(fr, v.RegionIndex, next, end)
		case ilasm.MakeDelegate:
			closureVal, _ := fr.pop().(reflect.Value)

			d, derr := m.MakeDelegate(v.ProgramIndex, closureVal)
			if derr != nil {
				exception.AsGoPanic(&exception.Exception{Kind: exception.ExceptionPanic, Message: derr.Error()})
			}

			fr.push(d)
		case ilasm.Leave, ilasm.EndFinally:
			// Only meaningful inside execTry's bookkeeping; reaching one here
			// means a Try region's extents were computed incorrectly.
			panic(fmt.Sprintf("ilvm: stray %s outside its try region", v.Op()))
		default:
			panic(fmt.Sprintf("ilvm: unhandled instruction %T", v))
		}

		pc = next
	}

	return nil
}

func popN(fr *frame, n int) []interface{} {
	args := make([]interface{}, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = fr.pop()
	}

	return args
}

// callReflect marshals args into reflect.Values and invokes fn. A literal
// nil (e.g. a void branch's synthesized result, or an uninitialized
// local) has no reflect.Value of its own — reflect.ValueOf(nil) is the
// invalid zero Value and Call rejects it — so a nil argument is passed as
// the zero value of whatever parameter type fn actually expects there.
func callReflect(fn reflect.Value, args []interface{}) interface{} {
	t := fn.Type()

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			if pt := paramTypeAt(t, i); pt != nil {
				in[i] = reflect.Zero(pt)
				continue
			}
		}

		in[i] = reflect.ValueOf(a)
	}

	out := fn.Call(in)
	if len(out) == 0 {
		return nil
	}

	return out[0].Interface()
}

// paramTypeAt returns the type fn's i-th argument must satisfy, following
// a variadic function's trailing parameter out past its declared arity.
func paramTypeAt(t reflect.Type, i int) reflect.Type {
	n := t.NumIn()

	if t.IsVariadic() && i >= n-1 {
		return t.In(n - 1).Elem()
	}

	if i < n {
		return t.In(i)
	}

	return nil
}

func (m *Machine) newObj(typeKey string, args []interface{}) interface{} {
	t := m.Types[typeKey]
	v := reflect.New(t).Elem()

	for i := 0; i < v.NumField() && i < len(args); i++ {
		assignReflect(v.Field(i), args[i])
	}

	return v.Interface()
}

// assignReflect sets f from val, the way every site that writes a dynamic
// value into a reflect.Value slot (a closure field, a struct field, an
// Environment's return slot) needs to: val==nil zeroes the slot, and a val
// that is itself a reflect.Value (a delegate MakeDelegate produced, pushed
// back onto the stack or returned from a nested lambda) is assigned
// directly rather than re-wrapped, since reflect.ValueOf(aReflectValue)
// would produce a reflect.Value *describing* the reflect.Value struct
// instead of unwrapping to the function it holds.
func assignReflect(f reflect.Value, val interface{}) {
	if val == nil {
		f.Set(reflect.Zero(f.Type()))
		return
	}

	if rv, ok := val.(reflect.Value); ok {
		f.Set(rv)
		return
	}

	f.Set(reflect.ValueOf(val))
}

func (m *Machine) loadField(v reflect.Value, field string) interface{} {
	rv := v
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}

	return rv.FieldByName(field).Interface()
}

func (m *Machine) storeField(v reflect.Value, field string, val interface{}) {
	rv := v
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}

	assignReflect(rv.FieldByName(field), val)
}

func truthy(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

func convert(v interface{}, to reflect.Type) interface{} {
	if to == nil {
		return v
	}

	return reflect.ValueOf(v).Convert(to).Interface()
}

// raiseUser panics with an *exception.Exception carrying payload, letting
// internal/ilvm's own Try-region handling (execTry) or an outer Go
// recover() intercept it.
func raiseUser(payload interface{}) {
	var payloadType reflect.Type
	if payload != nil {
		payloadType = reflect.TypeOf(payload)
	}

	exception.AsGoPanic(&exception.Exception{
		Kind:        exception.ExceptionUser,
		Message:     fmt.Sprintf("%v", payload),
		PayloadType: payloadType,
		Payload:     payload,
	})
}
