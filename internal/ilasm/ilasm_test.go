package ilasm

import "testing"

func TestEmitReturnsItsOwnIndex(t *testing.T) {
	p := NewProgram("f", 1)

	i0 := p.Emit(LoadArg{Index: 0})
	i1 := p.Emit(Ret{HasValue: true})

	if i0 != 0 || i1 != 1 {
		t.Fatalf("expected indices 0 and 1, got %d and %d", i0, i1)
	}
}

func TestNewLocalAllocatesSequentially(t *testing.T) {
	p := NewProgram("f", 0)

	if got := p.NewLocal(); got != 0 {
		t.Errorf("expected first local index 0, got %d", got)
	}

	if got := p.NewLocal(); got != 1 {
		t.Errorf("expected second local index 1, got %d", got)
	}

	if p.NumLocals != 2 {
		t.Errorf("expected NumLocals 2, got %d", p.NumLocals)
	}
}

func TestNewConstDoesNotDeduplicate(t *testing.T) {
	p := NewProgram("f", 0)

	i0 := p.NewConst(42)
	i1 := p.NewConst(42)

	if i0 == i1 {
		t.Error("expected Program.NewConst to intern unconditionally, deduplication is the Constant Allocator's job")
	}

	if len(p.Consts) != 2 {
		t.Fatalf("expected 2 pool entries, got %d", len(p.Consts))
	}
}

func TestDefineLabelAndResolveLabel(t *testing.T) {
	p := NewProgram("f", 0)

	p.Emit(LoadConst{Index: 0})
	p.DefineLabel("target")
	p.Emit(Ret{HasValue: true})

	idx, ok := p.ResolveLabel("target")
	if !ok {
		t.Fatal("expected label to resolve")
	}

	if idx != 1 {
		t.Errorf("expected label to resolve to instruction index 1, got %d", idx)
	}
}

func TestResolveLabelUnknownNameFails(t *testing.T) {
	p := NewProgram("f", 0)

	if _, ok := p.ResolveLabel("nope"); ok {
		t.Error("expected ResolveLabel to fail for an undefined label")
	}
}

func TestStringDisassemblesEveryInstruction(t *testing.T) {
	p := NewProgram("add", 2)
	p.Emit(LoadArg{Index: 0})
	p.Emit(LoadArg{Index: 1})
	p.Emit(Arith{Kind: BinAdd})
	p.Emit(Ret{HasValue: true})

	out := p.String()
	if out == "" {
		t.Fatal("expected non-empty disassembly")
	}

	for _, want := range []string{"add", "2 args", "0 locals"} {
		if !contains(out, want) {
			t.Errorf("expected disassembly header to contain %q, got %q", want, out)
		}
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}

	return false
}
