package sharded

// Set is a concurrent set of strings: a Map without values.
type Set struct {
	m *Map[struct{}]
}

func NewSet() *Set {
	return NewSetWithShards(DefaultShards)
}

// NewSetWithShards returns an empty Set. numShards must be a power of two.
func NewSetWithShards(numShards int) *Set {
	return &Set{m: NewMapWithShards[struct{}](numShards)}
}

func (s *Set) Store(key string) { s.m.Store(key, struct{}{}) }

func (s *Set) Has(key string) bool {
	_, ok := s.m.Load(key)
	return ok
}

// Take removes key and reports whether it was present. Of several goroutines
// taking the same key, exactly one observes true.
func (s *Set) Take(key string) bool {
	_, ok := s.m.LoadAndDelete(key)
	return ok
}

func (s *Set) Count() int { return s.m.Count() }

// Keys returns all keys in no particular order.
func (s *Set) Keys() []string { return s.m.Keys() }
