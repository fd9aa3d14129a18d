package compiler

import (
	"fmt"
	"reflect"
)

// box is the boxed-field representation for StorageHoistedBoxed captures:
// a single-field struct addressed by pointer, so every closure that
// shares a HoistedBoxed variable holds the same *box and observes writes
// through it, mirroring a captured variable's storage in the reference
// implementation.
type box struct{ Value interface{} }

// makeClosureRecord builds (or fetches from the process-wide cache) a
// reflect.Type for an arity-`len(fields)` closure record and populates a
// new instance with the given field values, matching
// ilvm.ClosureFactory's signature so internal/ilvm can create closure
// records without importing internal/compiler.
func (cc *compileContext) makeClosureRecord(key string, fields []interface{}) (reflect.Value, error) {
	t := closureRecordType(len(fields))

	v := reflect.New(t).Elem()
	for i, f := range fields {
		if f == nil {
			continue
		}

		// A captured field that is itself a delegate (a nested lambda's
		// MakeDelegate result) arrives here as a reflect.Value already;
		// assigning it directly avoids reflect.ValueOf wrapping a
		// reflect.Value inside another reflect.Value.
		if rv, ok := f.(reflect.Value); ok {
			v.Field(i).Set(rv)
			continue
		}

		v.Field(i).Set(reflect.ValueOf(f))
	}

	return v, nil
}

// closureRecordType returns the cached reflect.Type for an n-field
// closure record, generating (via reflect.StructOf, uniformly regardless
// of n — spec.md §8's 18-variable big-closure scenario exercises the same
// path any smaller closure does) and caching it on first use. Protected
// by processMu exactly as spec.md §5 requires of the process-wide cache;
// grounded on internal/codegen/builtins.go's name-keyed map shape
// (there: built-in name -> descriptor; here: arity -> generated type).
func closureRecordType(n int) reflect.Type {
	processMu.Lock()
	defer processMu.Unlock()

	if t, ok := closureRecords[n]; ok && abiCompatible(cacheABIVersion[n]) {
		return t
	}

	fields := make([]reflect.StructField, n)
	for i := 0; i < n; i++ {
		fields[i] = reflect.StructField{
			Name: fmt.Sprintf("Item%d", i+1),
			Type: reflect.TypeOf((*interface{})(nil)).Elem(),
		}
	}

	t := reflect.StructOf(fields)
	closureRecords[n] = t
	cacheABIVersion[n] = ABIVersion

	return t
}

// boxedGet/boxedSet implement the indexer the Runtime-Variables facility
// (quote.go's RuntimeVariables) and the HoistedBoxed storage kind both
// need: reading or writing through a *box field without the caller needing
// to know it's boxed versus a plain Itemk field.
func boxedGet(b *box) interface{} { return b.Value }

func boxedSet(b *box, v interface{}) { b.Value = v }

func newBox(initial interface{}) *box { return &box{Value: initial} }
