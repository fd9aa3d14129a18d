package compiler

import (
	"fmt"
	"reflect"

	"github.com/lambdatree/lct/internal/errors"
	"github.com/lambdatree/lct/internal/exprtree"
	"github.com/lambdatree/lct/internal/ilasm"
)

var (
	boxedGetFn             = reflect.ValueOf(boxedGet)
	boxedSetFn             = reflect.ValueOf(boxedSet)
	newBoxFn               = reflect.ValueOf(newBox)
	makeQuotedFn           = reflect.ValueOf(makeQuoted)
	makeRuntimeVariablesFn = reflect.ValueOf(makeRuntimeVariables)
)

// emitScope holds the per-lambda state the Lambda Compiler threads
// through emission: argument/local slot assignment, which owned
// variables are boxed, this lambda's own closure-field layout, and the
// forward-branch patch list resolved once the whole body is emitted.
type emitScope struct {
	cc         *compileContext
	program    *ilasm.Program
	lambdaNode *exprtree.Node

	argIndex   map[*exprtree.Variable]int
	localSlot  map[*exprtree.Variable]int
	boxSlot    map[*exprtree.Variable]int // owned vars needing a *box cell
	fieldIndex map[*exprtree.Variable]int // this lambda's own closure record layout

	labelName      map[*exprtree.Label]string
	labelValueSlot map[*exprtree.Label]int
	patches        []branchPatch

	constAlloc *constantAllocator
}

type branchPatch struct {
	insnIndex int
	labelName string
}

// compileLambda emits a Program for node (a KindLambda node) and, as it
// encounters nested lambda literals in the body, recursively compiles
// those too, returning node's own Program index.
func (cc *compileContext) compileLambda(node *exprtree.Node) (int, *errors.StandardError) {
	if idx, ok := cc.progIndex[node]; ok {
		return idx, nil
	}

	name := node.Lambda.Name
	if name == "" {
		name = fmt.Sprintf("lambda_%d", len(cc.programs))
	}

	p := ilasm.NewProgram(name, len(node.Lambda.Parameters))
	idx := len(cc.programs)
	cc.programs = append(cc.programs, p)
	cc.lambdaNodes = append(cc.lambdaNodes, node)
	cc.progIndex[node] = idx

	alloc := newConstantAllocator()
	alloc.scan(node.Lambda.Body)
	alloc.allocate(p, node.Lambda.Body)

	scope := &emitScope{
		cc:             cc,
		program:        p,
		lambdaNode:     node,
		argIndex:       map[*exprtree.Variable]int{},
		localSlot:      map[*exprtree.Variable]int{},
		boxSlot:        map[*exprtree.Variable]int{},
		fieldIndex:     map[*exprtree.Variable]int{},
		labelName:      map[*exprtree.Label]string{},
		labelValueSlot: map[*exprtree.Label]int{},
		constAlloc:     alloc,
	}

	for i, f := range cc.scopes.closureFields[node] {
		scope.fieldIndex[f] = i
	}

	var paramBoxes []*exprtree.Variable

	for i, v := range node.Lambda.Parameters {
		scope.argIndex[v] = i

		if cc.scopes.isBoxed(v) {
			scope.boxSlot[v] = p.NewLocal()
			paramBoxes = append(paramBoxes, v)
		}
	}

	for _, v := range cc.scopes.ownedVars[node] {
		if _, isParam := scope.argIndex[v]; isParam {
			continue
		}

		if cc.scopes.isBoxed(v) {
			scope.boxSlot[v] = p.NewLocal()
		} else {
			scope.localSlot[v] = p.NewLocal()
		}
	}

	// Prologue: box every parameter isBoxed reports (captured and mutated,
	// or reified by a Quote/RuntimeVariables) once, at entry, from its
	// incoming argument value.
	for _, v := range paramBoxes {
		p.Emit(ilasm.LoadArg{Index: scope.argIndex[v]})
		p.Emit(ilasm.Call{HelperIndex: cc.helperIndexFor(newBoxFn), ArgCount: 1})
		p.Emit(ilasm.StoreLocal{Index: scope.boxSlot[v]})
	}

	if err := scope.emit(node.Lambda.Body); err != nil {
		return 0, err
	}

	p.Emit(ilasm.Ret{HasValue: true})

	scope.resolvePatches()

	return idx, nil
}

func (s *emitScope) resolvePatches() {
	for _, pat := range s.patches {
		target, ok := s.program.ResolveLabel(pat.labelName)
		if !ok {
			continue
		}

		// Branch instructions are plain structs stored by value in the
		// []ilasm.Insn slice, so patching the target means replacing the
		// slice element outright rather than mutating through the interface.
		switch v := s.program.Insns[pat.insnIndex].(type) {
		case ilasm.Br:
			v.Target = target
			s.program.Insns[pat.insnIndex] = v
		case ilasm.BrTrue:
			v.Target = target
			s.program.Insns[pat.insnIndex] = v
		case ilasm.BrFalse:
			v.Target = target
			s.program.Insns[pat.insnIndex] = v
		case ilasm.Leave:
			v.Target = target
			s.program.Insns[pat.insnIndex] = v
		}
	}
}
