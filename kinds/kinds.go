// Package kinds tags transition contexts with an integer kind so callers can
// narrow a context back to its concrete type by comparing kinds.
package kinds

import "reflect"

const (
	idLength = 8
	idMask   = (1 << idLength) - 1
)

// Null is the kind of an untagged value.
const Null uint64 = 0

// Tagged is implemented by every value that carries a kind.
type Tagged interface {
	Kind() uint64
}

// Variant is a concrete Tagged type that declares its own constant kind.
// Variant must not dereference its receiver: Is calls it on the zero value.
type Variant interface {
	Tagged
	Variant() uint64
}

// Tag is embedded into concrete contexts. The kind is fixed by NewTag.
type Tag struct {
	kind uint64
}

func NewTag(kind uint64) Tag {
	return Tag{kind: kind}
}

func (tag Tag) Kind() uint64 {
	return tag.kind
}

// Kind masks id into the range usable as a variant kind.
func Kind(id uint64) uint64 {
	return id & idMask
}

// IsKind reports whether kind equals any of the given kinds.
func IsKind(kind uint64, kinds ...uint64) bool {
	for _, k := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// Is reports whether value carries the kind declared by T.
func Is[T Variant](value Tagged) bool {
	if isNil(value) {
		return false
	}
	var variant T
	return value.Kind() == variant.Variant()
}

// As narrows value to T when its kind matches.
func As[T Variant](value Tagged) (T, bool) {
	var zero T
	if !Is[T](value) {
		return zero, false
	}
	narrowed, ok := value.(T)
	if !ok {
		return zero, false
	}
	return narrowed, true
}

// isNil also catches a nil pointer stored in a non-nil interface, whose
// promoted Kind would dereference it.
func isNil(value Tagged) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
