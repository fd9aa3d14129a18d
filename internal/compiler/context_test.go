package compiler

import (
	"reflect"
	"testing"
)

func TestTypeKeyInternsByReflectType(t *testing.T) {
	cc := newCompileContext(nil)

	k1 := cc.typeKey(intType)
	k2 := cc.typeKey(intType)

	if k1 != k2 {
		t.Fatalf("expected the same reflect.Type to intern to the same key, got %q and %q", k1, k2)
	}

	stringType := reflect.TypeOf("")
	k3 := cc.typeKey(stringType)

	if k3 == k1 {
		t.Fatalf("expected a distinct reflect.Type to get a distinct key, both got %q", k1)
	}

	if cc.types[k1] != intType {
		t.Fatalf("expected the type table to resolve %q back to intType, got %v", k1, cc.types[k1])
	}
}

func TestTypeKeyOfNilIsEmpty(t *testing.T) {
	cc := newCompileContext(nil)

	if k := cc.typeKey(nil); k != "" {
		t.Fatalf("expected typeKey(nil) to return an empty key, got %q", k)
	}
}

func TestHelperIndexForDedupsByFunctionPointer(t *testing.T) {
	cc := newCompileContext(nil)

	fn := reflect.ValueOf(func() int { return 1 })

	i1 := cc.helperIndexFor(fn)
	i2 := cc.helperIndexFor(fn)

	if i1 != i2 {
		t.Fatalf("expected the same function value to reuse its helper index, got %d and %d", i1, i2)
	}

	other := reflect.ValueOf(func() int { return 2 })
	i3 := cc.helperIndexFor(other)

	if i3 == i1 {
		t.Fatalf("expected a distinct function to get a distinct helper index, both got %d", i1)
	}

	if len(cc.helpers) != 2 {
		t.Fatalf("expected 2 distinct helpers registered, got %d", len(cc.helpers))
	}
}
