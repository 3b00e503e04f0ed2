package access

// Cell is a reference-counted heap slot guarding T with an Access counter,
// grounded on runestick's Shared<T> (shared.rs). In Rust this manages raw
// memory by hand because there is no GC; in Go the backing store is
// ordinary garbage-collected memory, but the strong count and borrow
// counter are still tracked explicitly so the invariant "freeing occurs
// only when strong count reaches zero AND no borrows are outstanding"
// holds and is observable — a host embedder relying on deterministic
// drop order (e.g. to release an external resource) gets the same
// guarantees it would from the original.
type Cell[T any] struct {
	access Access
	strong int
	data   T
	onFree func(*T)
}

// NewCell wraps data with a strong count of one.
func NewCell[T any](data T) *Cell[T] {
	return &Cell[T]{strong: 1, data: data}
}

// OnFree registers a callback invoked exactly once, when the strong count
// drops to zero. Used by host-owned External values to release native
// resources deterministically.
func (c *Cell[T]) OnFree(fn func(*T)) { c.onFree = fn }

// StrongCount returns the current strong reference count.
func (c *Cell[T]) StrongCount() int { return c.strong }

// Peek returns a pointer to the interior value without acquiring a borrow
// guard. It serves read paths that cannot fail, like Value.String()
// default Display formatting, which would otherwise need to thread
// impossible errors through fmt.Stringer. Value equality
// (value.Equal/StructuralEqual) also reads through Peek, so it neither
// checks nor reports a live exclusive borrow; only BorrowShared and
// BorrowExclusive callers see borrow conflicts.
func (c *Cell[T]) Peek() *T { return &c.data }

// Clone increments the strong count and returns c, mirroring
// Shared<T>::clone. Cells are always handled through pointers so "clone"
// is bumping the counter, not copying T.
func (c *Cell[T]) Clone() *Cell[T] {
	if c.strong == 0 {
		panic("access: clone of a freed cell")
	}
	c.strong++
	return c
}

// Release decrements the strong count and invokes the free callback, if
// any, when it reaches zero. Every Clone (including the one implicit in
// NewCell) must be matched by exactly one Release.
func (c *Cell[T]) Release() {
	if c.strong == 0 {
		panic("access: double release of a freed cell")
	}
	c.strong--
	if c.strong == 0 && c.onFree != nil {
		c.onFree(&c.data)
		c.onFree = nil
	}
}

// Ref is a shared borrow tied to the lifetime of the borrow call; callers
// must call Release exactly once.
type Ref[T any] struct {
	cell    *Cell[T]
	release ReleaseFunc
}

func (r Ref[T]) Get() *T       { return &r.cell.data }
func (r Ref[T]) Release()      { r.release() }

// Mut is an exclusive borrow tied to the lifetime of the borrow call.
type Mut[T any] struct {
	cell    *Cell[T]
	release ReleaseFunc
}

func (m Mut[T]) Get() *T  { return &m.cell.data }
func (m Mut[T]) Release() { m.release() }

// BorrowShared acquires a Ref, failing with ErrNotAccessibleShared if an
// exclusive borrow is outstanding.
func (c *Cell[T]) BorrowShared() (Ref[T], error) {
	release, err := c.access.Shared()
	if err != nil {
		return Ref[T]{}, err
	}
	return Ref[T]{cell: c, release: release}, nil
}

// BorrowExclusive acquires a Mut, failing with ErrNotAccessibleExclusive
// if any borrow is outstanding.
func (c *Cell[T]) BorrowExclusive() (Mut[T], error) {
	release, err := c.access.Exclusive()
	if err != nil {
		return Mut[T]{}, err
	}
	return Mut[T]{cell: c, release: release}, nil
}

// StrongRef is a shared borrow that additionally holds its own strong
// reference, so the value can safely outlive the Cell handle it was
// produced from (grounded on Shared::strong_ref).
type StrongRef[T any] struct {
	cell    *Cell[T]
	release ReleaseFunc
}

func (r StrongRef[T]) Get() *T { return &r.cell.data }

// Release drops both the borrow and the strong reference it was holding.
func (r StrongRef[T]) Release() {
	r.release()
	r.cell.Release()
}

// StrongMut is the exclusive counterpart of StrongRef.
type StrongMut[T any] struct {
	cell    *Cell[T]
	release ReleaseFunc
}

func (m StrongMut[T]) Get() *T { return &m.cell.data }

func (m StrongMut[T]) Release() {
	m.release()
	m.cell.Release()
}

// StrongBorrowShared acquires a StrongRef, bumping the strong count atop
// the shared borrow.
func (c *Cell[T]) StrongBorrowShared() (StrongRef[T], error) {
	release, err := c.access.Shared()
	if err != nil {
		return StrongRef[T]{}, err
	}
	c.Clone()
	return StrongRef[T]{cell: c, release: release}, nil
}

// StrongBorrowExclusive acquires a StrongMut, bumping the strong count
// atop the exclusive borrow.
func (c *Cell[T]) StrongBorrowExclusive() (StrongMut[T], error) {
	release, err := c.access.Exclusive()
	if err != nil {
		return StrongMut[T]{}, err
	}
	c.Clone()
	return StrongMut[T]{cell: c, release: release}, nil
}

// Take consumes the cell's value if the strong count is exactly one and
// no borrow is outstanding, mirroring Shared::take.
func (c *Cell[T]) Take() (T, error) {
	var zero T
	if c.strong != 1 || !c.access.IsExclusive() {
		return zero, ErrNotOwned
	}
	c.strong = 0
	c.onFree = nil
	return c.data, nil
}
