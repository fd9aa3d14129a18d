package compiler

import (
	"github.com/lambdatree/lct/internal/errors"
	"github.com/lambdatree/lct/internal/exprtree"
)

// StorageKind is one of the five ways the Variable Binder can decide to
// store a Variable's value (spec.md §3/§4.3).
type StorageKind byte

const (
	// StorageArgument: a lambda parameter read only within its own lambda,
	// never captured by a nested lambda.
	StorageArgument StorageKind = iota
	// StorageLocal: a block-scoped local, same constraint as StorageArgument.
	StorageLocal
	// StorageBoxed: a parameter or local never captured by a nested lambda,
	// but reified by a Quote or RuntimeVariables node within its own lambda
	// and therefore needs a shared aliasing cell rather than a plain slot.
	StorageBoxed
	// StorageHoisted: declared in one lambda, read (never reassigned) from a
	// nested lambda — lifted into the closure record as a plain field.
	StorageHoisted
	// StorageHoistedBoxed: declared in one lambda, captured by a nested
	// lambda, and reassigned by the owner, the capturer, or both — lifted
	// into the closure record as a boxed field so every side observes
	// writes (this is the storage kind the 18-variable big-closure and
	// nested-closure-mutation scenarios in spec.md §8 exercise).
	StorageHoistedBoxed
)

// scopeInfo is the Variable Binder's output: per-variable storage
// decisions plus the data the Closure Record Factory and Lambda Compiler
// need to lay out and address closure records.
type scopeInfo struct {
	storage      map[*exprtree.Variable]StorageKind
	ownerLambda  map[*exprtree.Variable]*exprtree.Node
	lambdaParent map[*exprtree.Node]*exprtree.Node // nested lambda -> enclosing lambda, nil for the outermost
	// closureFields lists, in stable order, the outer variables a given
	// lambda node needs lifted into its closure record (its own captures,
	// not its parent's — the chain is walked via lambdaParent).
	closureFields map[*exprtree.Node][]*exprtree.Variable
	// ownedVars lists, in declaration order (parameters first), every
	// Variable whose ownerLambda is this lambda node — what the Lambda
	// Compiler allocates argument indices / local slots for.
	ownedVars map[*exprtree.Node][]*exprtree.Variable
}

func (s *scopeInfo) isCaptured(v *exprtree.Variable) bool {
	switch s.storage[v] {
	case StorageHoisted, StorageHoistedBoxed:
		return true
	default:
		return false
	}
}

func (s *scopeInfo) isBoxed(v *exprtree.Variable) bool {
	switch s.storage[v] {
	case StorageBoxed, StorageHoistedBoxed:
		return true
	default:
		return false
	}
}

// bindVariables runs the Free-Variable Scanner and Variable Binder
// together: a first pass collects every Variable's declaring lambda, a
// second pass classifies storage from how each Variable is actually used
// (spec.md §4.3's two concerns share this function's declaration/usage
// tables; emit.go's freeVariablesOf separately collects the variables a
// Quote body reifies).
func bindVariables(root *exprtree.Node) (*scopeInfo, *errors.StandardError) {
	s := &scopeInfo{
		storage:       map[*exprtree.Variable]StorageKind{},
		ownerLambda:   map[*exprtree.Variable]*exprtree.Node{},
		lambdaParent:  map[*exprtree.Node]*exprtree.Node{},
		closureFields: map[*exprtree.Node][]*exprtree.Variable{},
		ownedVars:     map[*exprtree.Node][]*exprtree.Variable{},
	}

	isParam := map[*exprtree.Variable]bool{}

	// Pass 1: record declarations and lambda nesting. Uses an explicit
	// recursive descent (rather than exprtree.Walk) because it must pop the
	// enclosing-lambda stack on the way back out of a nested lambda —
	// Walk's visit callback has no matching "leaving node n" hook.
	var declare func(n *exprtree.Node, stack []*exprtree.Node)
	declare = func(n *exprtree.Node, stack []*exprtree.Node) {
		if n == nil {
			return
		}

		switch n.Kind {
		case exprtree.KindLambda:
			s.lambdaParent[n] = currentLambda(stack)
			stack = append(stack, n)

			for _, p := range n.Lambda.Parameters {
				s.ownerLambda[p] = n
				isParam[p] = true
				s.ownedVars[n] = append(s.ownedVars[n], p)
			}
		case exprtree.KindBlock:
			owner := currentLambda(stack)
			for _, l := range n.Block.Locals {
				s.ownerLambda[l] = owner
				s.ownedVars[owner] = append(s.ownedVars[owner], l)
			}
		case exprtree.KindTry:
			// A Catch's bound exception variable is declared (not merely
			// referenced) here, same as a Block local — except the Lambda
			// Compiler allocates its storage itself (emit.go's emitTry, not
			// compileLambda's generic ownedVars loop), since a caught
			// exception's slot is bound directly by internal/ilvm rather than
			// assigned like an ordinary local. Recording ownerLambda here (but
			// deliberately not ownedVars) is what lets usage-outside-owner and
			// boxed-by-reification classification see it correctly.
			owner := currentLambda(stack)
			for _, c := range n.Try.Catches {
				if c.Variable != nil {
					s.ownerLambda[c.Variable] = owner
				}
			}
		}

		for _, c := range exprtree.Children(n) {
			declare(c, stack)
		}
	}

	declare(root, nil)

	// Walk again, popping the lambda stack on the way out, so usage
	// tracking below (pass 2) can reuse the same descent order. Children()
	// doesn't report exits, so instead of a second raw Walk we track nesting
	// with an explicit recursive helper that mirrors Children's structure.
	mutated := map[*exprtree.Variable]bool{}
	usedOutsideOwner := map[*exprtree.Variable]bool{}
	boxedByReification := map[*exprtree.Variable]bool{}

	var visit func(n *exprtree.Node, stack []*exprtree.Node)
	visit = func(n *exprtree.Node, stack []*exprtree.Node) {
		if n == nil {
			return
		}

		switch n.Kind {
		case exprtree.KindLambda:
			stack = append(stack, n)
		case exprtree.KindVariable:
			v := n.Variable.Var
			owner := s.ownerLambda[v]
			here := currentLambda(stack)

			if owner != here {
				usedOutsideOwner[v] = true
				recordCaptureChain(s, v, owner, stack)
			}
		case exprtree.KindAssign:
			if n.Assign.Target.Kind == exprtree.KindVariable {
				mutated[n.Assign.Target.Variable.Var] = true
			}
		case exprtree.KindQuote:
			markReifiedVars(n.Quote.Body, boxedByReification)
		case exprtree.KindRuntimeVariables:
			here := currentLambda(stack)

			for _, v := range n.RuntimeVariables.Variables {
				boxedByReification[v] = true

				if owner := s.ownerLambda[v]; owner != here {
					usedOutsideOwner[v] = true
					recordCaptureChain(s, v, owner, stack)
				}
			}
		}

		for _, c := range exprtree.Children(n) {
			visit(c, stack)
		}
	}

	visit(root, nil)

	for v, owner := range s.ownerLambda {
		switch {
		case usedOutsideOwner[v] && mutated[v]:
			s.storage[v] = StorageHoistedBoxed
		case usedOutsideOwner[v]:
			s.storage[v] = StorageHoisted
		case boxedByReification[v]:
			s.storage[v] = StorageBoxed
		case isParam[v]:
			s.storage[v] = StorageArgument
		default:
			s.storage[v] = StorageLocal
		}

		_ = owner
	}

	return s, nil
}

func currentLambda(stack []*exprtree.Node) *exprtree.Node {
	if len(stack) == 0 {
		return nil
	}

	return stack[len(stack)-1]
}

// recordCaptureChain lists v as a closure field on every lambda between
// (and including) the lambda that directly references it and the one
// immediately nested inside v's owner, so each intermediate lambda's
// closure record carries the field forward to the one that actually uses
// it (spec.md §3's closure-record chain).
func recordCaptureChain(s *scopeInfo, v *exprtree.Variable, owner *exprtree.Node, stack []*exprtree.Node) {
	for i := len(stack) - 1; i >= 0; i-- {
		lam := stack[i]
		if lam == owner {
			return
		}

		if !containsVar(s.closureFields[lam], v) {
			s.closureFields[lam] = append(s.closureFields[lam], v)
		}
	}
}

func containsVar(list []*exprtree.Variable, v *exprtree.Variable) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}

	return false
}

// markReifiedVars marks every free Variable referenced within a quoted
// body as needing a boxed cell, since the quote facility shares aliasing
// cells between the quoted tree and the enclosing scope (spec.md §4.6).
func markReifiedVars(n *exprtree.Node, out map[*exprtree.Variable]bool) {
	exprtree.Walk(n, func(c *exprtree.Node) bool {
		if c.Kind == exprtree.KindVariable {
			out[c.Variable.Var] = true
		}

		return true
	})
}
