package descriptor

import (
	"sort"
	"sync"
)

// Store holds the registered descriptors of one run. It is safe for
// concurrent use.
type Store struct {
	mu    sync.RWMutex
	items map[string]*Descriptor
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{items: make(map[string]*Descriptor)}
}

// NewStoreFrom creates a Store and registers every descriptor in order,
// stopping at the first error.
func NewStoreFrom(descriptors ...*Descriptor) (*Store, error) {
	s := NewStore()
	for _, d := range descriptors {
		if err := s.Register(d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register validates and adds a copy of the descriptor.
func (s *Store) Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[d.Name]; exists {
		return &DuplicateNameError{Name: d.Name}
	}
	s.items[d.Name] = d.clone()
	return nil
}

// Get returns a copy of the named descriptor.
func (s *Store) Get(name string) (*Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.items[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return d.clone(), nil
}

// Has reports whether a descriptor with the name is registered.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[name]
	return ok
}

// Len returns the number of registered descriptors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Names returns the registered names in ascending order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.items))
	for name := range s.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns copies of every descriptor, sorted by name.
func (s *Store) All() []*Descriptor {
	names := s.Names()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Descriptor, 0, len(names))
	for _, name := range names {
		if d, ok := s.items[name]; ok {
			out = append(out, d.clone())
		}
	}
	return out
}
