package set

// Set keeps the order in which items were first added.
type Set[T comparable] struct {
	index map[T]struct{}
	items []T
}

func New[T comparable](items ...T) *Set[T] {
	s := &Set[T]{index: make(map[T]struct{}, len(items))}
	s.Add(items...)
	return s
}

// Add appends items not yet present
func (s *Set[T]) Add(items ...T) {
	if s.index == nil {
		s.index = map[T]struct{}{}
	}
	for _, item := range items {
		if _, ok := s.index[item]; ok {
			continue
		}
		s.index[item] = struct{}{}
		s.items = append(s.items, item)
	}
}

// Contains checks if an item exists in the set
func (s *Set[T]) Contains(item T) bool {
	_, exists := s.index[item]
	return exists
}

// Size returns the number of items in the set
func (s *Set[T]) Size() int {
	return len(s.items)
}

// Slice returns a copy of the items in insertion order
func (s *Set[T]) Slice() []T {
	return append([]T(nil), s.items...)
}
