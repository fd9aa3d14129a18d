package main

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// reflectValuesOf converts the plain Go values produced by -args into the
// reflect.Value arguments reflect.Value.Call requires.
func reflectValuesOf(args []interface{}) []reflect.Value {
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
	}

	return in
}

func formatResults(out []reflect.Value) []interface{} {
	vals := make([]interface{}, len(out))
	for i, v := range out {
		vals[i] = v.Interface()
	}

	return vals
}

func printResult(label string, out []reflect.Value, asJSON bool) {
	vals := formatResults(out)

	if asJSON {
		b, _ := json.Marshal(map[string]interface{}{"label": label, "result": vals})
		fmt.Println(string(b))

		return
	}

	if len(vals) == 0 {
		fmt.Printf("%s: (no return value)\n", label)
		return
	}

	fmt.Printf("%s result: %v\n", label, vals[0])
}
