package ilvm

import (
	"reflect"
	"testing"

	"github.com/lambdatree/lct/internal/ilasm"
)

func addProgram() *ilasm.Program {
	p := ilasm.NewProgram("add", 2)
	p.Emit(ilasm.LoadArg{Index: 0})
	p.Emit(ilasm.LoadArg{Index: 1})
	p.Emit(ilasm.Arith{Kind: ilasm.BinAdd})
	p.Emit(ilasm.Ret{HasValue: true})

	return p
}

func TestRunSimpleArithmetic(t *testing.T) {
	m := &Machine{Programs: []*ilasm.Program{addProgram()}}

	result, err := m.Run(0, []interface{}{int64(3), int64(4)}, reflect.Value{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result != int64(7) {
		t.Fatalf("expected 7, got %v (%T)", result, result)
	}
}

func TestRunConditionalBranch(t *testing.T) {
	p := ilasm.NewProgram("abs", 1)
	p.Emit(ilasm.LoadArg{Index: 0})
	zero := p.NewConst(int64(0))
	p.Emit(ilasm.LoadConst{Index: zero})
	p.Emit(ilasm.Arith{Kind: ilasm.BinLt})
	p.Emit(ilasm.BrFalse{Target: 7})
	p.Emit(ilasm.LoadArg{Index: 0})
	p.Emit(ilasm.UnaryArith{Kind: ilasm.UnNeg})
	p.Emit(ilasm.Br{Target: 8})
	p.Emit(ilasm.LoadArg{Index: 0})
	p.Emit(ilasm.Ret{HasValue: true})

	m := &Machine{Programs: []*ilasm.Program{p}}

	neg, err := m.Run(0, []interface{}{int64(-5)}, reflect.Value{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if neg != int64(5) {
		t.Fatalf("expected abs(-5) == 5, got %v", neg)
	}

	pos, err := m.Run(0, []interface{}{int64(5)}, reflect.Value{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pos != int64(5) {
		t.Fatalf("expected abs(5) == 5, got %v", pos)
	}
}

func TestRunLocalsRoundTrip(t *testing.T) {
	p := ilasm.NewProgram("double", 1)
	loc := p.NewLocal()

	p.Emit(ilasm.LoadArg{Index: 0})
	p.Emit(ilasm.Dup{})
	p.Emit(ilasm.Arith{Kind: ilasm.BinAdd})
	p.Emit(ilasm.StoreLocal{Index: loc})
	p.Emit(ilasm.LoadLocal{Index: loc})
	p.Emit(ilasm.Ret{HasValue: true})

	m := &Machine{Programs: []*ilasm.Program{p}}

	result, err := m.Run(0, []interface{}{int64(21)}, reflect.Value{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result != int64(42) {
		t.Fatalf("expected 42, got %v", result)
	}
}

func TestRunDivisionByZeroRaisesException(t *testing.T) {
	p := ilasm.NewProgram("div", 2)
	p.Emit(ilasm.LoadArg{Index: 0})
	p.Emit(ilasm.LoadArg{Index: 1})
	p.Emit(ilasm.Arith{Kind: ilasm.BinDiv})
	p.Emit(ilasm.Ret{HasValue: true})

	m := &Machine{Programs: []*ilasm.Program{p}}

	_, err := m.Run(0, []interface{}{int64(1), int64(0)}, reflect.Value{})
	if err == nil {
		t.Fatal("expected division by zero to raise a runtime error")
	}
}
