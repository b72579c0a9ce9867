package sched

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Action is a unit of work bound at submission time.
//
// Two actions built from the same target, the same method and equal
// arguments share an identity; the immediate queue keeps only one of
// them. Actions built with Func have no identity and never collapse.
//
// Method, Method1 and Method2 accept only top-level functions and
// method expressions. A func literal or method value captures state
// that is not part of the identity, so it is rejected with
// ErrUnhashableKey; pass the captured state as arguments instead.
type Action struct {
	name string
	key  any
	run  func() error
	err  error
}

// identity compares receiver, method code and bound arguments by value.
type identity struct {
	target any
	method uintptr
	args   any
}

// Func binds a plain function. Each call gives a distinct action, even
// for the same top-level function: RunLater(Func(fn)) twice queues fn
// twice. Use Keyed or Method when duplicates must collapse.
func Func(fn func() error) Action {
	if fn == nil {
		return Action{err: ErrNilAction}
	}

	return Action{name: funcName(fn), run: fn}
}

// Keyed binds fn under an explicit identity key.
func Keyed(key any, fn func() error) Action {
	if fn == nil {
		return Action{err: ErrNilAction}
	}

	if key == nil {
		return Action{err: fmt.Errorf("%w: nil key", ErrUnhashableKey)}
	}

	return Action{name: fmt.Sprintf("%v", key), key: key, run: fn}.checkKey()
}

// Method binds a method expression to its receiver:
//
//	sched.Method(chunk, (*Chunk).RebuildMesh)
func Method[T comparable](target T, fn func(T) error) Action {
	if fn == nil {
		return Action{err: ErrNilAction}
	}

	return bindMethod(fn, target, nil, func() error { return fn(target) })
}

func Method1[T comparable, A comparable](target T, fn func(T, A) error, a A) Action {
	if fn == nil {
		return Action{err: ErrNilAction}
	}

	return bindMethod(fn, target, a, func() error { return fn(target, a) })
}

func Method2[T comparable, A comparable, B comparable](target T, fn func(T, A, B) error, a A, b B) Action {
	if fn == nil {
		return Action{err: ErrNilAction}
	}

	return bindMethod(fn, target, [2]any{a, b}, func() error { return fn(target, a, b) })
}

func bindMethod(fn any, target any, args any, run func() error) Action {
	pc := codePointer(fn)
	name := funcNameOf(pc)

	if capturesState(name) {
		return Action{
			name: name,
			err:  fmt.Errorf("%w: %s is a closure or method value", ErrUnhashableKey, name),
		}
	}

	return Action{
		name: name,
		key:  identity{target: target, method: pc, args: args},
		run:  run,
	}.checkKey()
}

// Named overrides the name used in logs.
func (a Action) Named(name string) Action {
	a.name = name
	return a
}

// Err reports a binding problem. Submitting such an action fails.
func (a Action) Err() error {
	return a.err
}

// checkKey rejects keys that would panic when used as a map key.
// Comparable type parameters may still hold interface values with
// slices or maps inside.
func (a Action) checkKey() Action {
	if a.err != nil || a.key == nil {
		return a
	}

	if !hashable(a.key) {
		a.err = fmt.Errorf("%w: %T", ErrUnhashableKey, a.key)
	}

	return a
}

func hashable(key any) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	seen := map[any]struct{}{}
	seen[key] = struct{}{}

	return true
}

func codePointer(fn any) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

func funcName(fn any) string {
	return funcNameOf(codePointer(fn))
}

func funcNameOf(pc uintptr) string {
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}

	name := fn.Name()
	if slash := strings.LastIndexByte(name, '/'); slash >= 0 {
		name = name[slash+1:]
	}

	return name
}

// capturesState reports whether a runtime function name belongs to a
// func literal ("pkg.Fn.func1", "pkg.Fn.func1.2") or a method value
// wrapper ("pkg.(*T).M-fm"). Both share code between instances.
func capturesState(name string) bool {
	if strings.HasSuffix(name, "-fm") {
		return true
	}

	for _, part := range strings.Split(name, ".") {
		if part == "" {
			continue
		}

		if strings.HasPrefix(part, "func") && isDigits(part[len("func"):]) {
			return true
		}

		if isDigits(part) {
			return true
		}
	}

	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
