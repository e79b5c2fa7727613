package gpu

// Scope collects resources so they can be released together, in reverse
// order of creation. A Scope is typically closed with defer on a
// constructor's error path and disarmed once ownership moves elsewhere.
type Scope struct {
	dev  Device
	held []Resource
}

func NewScope(dev Device) *Scope {
	return &Scope{dev: dev}
}

// Hold adds r to the scope and returns it.
func (s *Scope) Hold(r Resource) Resource {
	s.held = append(s.held, r)
	return r
}

// Len returns the number of resources held.
func (s *Scope) Len() int {
	return len(s.held)
}

// Close releases every held resource, newest first. It is safe to call
// more than once.
func (s *Scope) Close() {
	for i := len(s.held) - 1; i >= 0; i-- {
		s.dev.Release(s.held[i])
	}
	s.held = nil
}

// Move returns a new Scope owning the held resources and leaves s empty.
func (s *Scope) Move() *Scope {
	m := &Scope{dev: s.dev, held: s.held}
	s.held = nil
	return m
}

// Disarm forgets the held resources without releasing them.
func (s *Scope) Disarm() {
	s.held = nil
}

// Slot holds at most one live resource of type T. Replacing the content
// always releases the previous resource first, so two generations never
// coexist.
type Slot[T Resource] struct {
	dev  Device
	res  T
	full bool
}

func NewSlot[T Resource](dev Device) *Slot[T] {
	return &Slot[T]{dev: dev}
}

// Get returns the current resource and whether the slot is occupied.
func (s *Slot[T]) Get() (T, bool) {
	return s.res, s.full
}

// Release empties the slot, releasing its resource if present.
func (s *Slot[T]) Release() {
	if !s.full {
		return
	}
	s.dev.Release(s.res)
	var zero T
	s.res = zero
	s.full = false
}

// Replace releases the current resource, then calls create and stores its
// result. On error the slot stays empty.
func (s *Slot[T]) Replace(create func() (T, error)) (T, error) {
	s.Release()
	r, err := create()
	if err != nil {
		var zero T
		return zero, err
	}
	s.res = r
	s.full = true
	return r, nil
}
