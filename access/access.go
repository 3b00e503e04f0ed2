// Package access implements the dynamic shared/exclusive borrow accounting
// grounded on runestick's access.rs: a single signed counter standing in
// for a borrow-checker the dynamic value model can't have statically.
//
//	a == 0: idle, either kind of borrow may be acquired.
//	a <  0: |a| outstanding shared borrows; more shared borrows are fine,
//	        an exclusive borrow is refused.
//	a == 1: one exclusive borrow; every other borrow is refused.
package access

import "errors"

// ErrNotAccessibleShared is returned by BorrowShared when an exclusive
// borrow is already outstanding.
var ErrNotAccessibleShared = errors.New("not accessible for shared access")

// ErrNotAccessibleExclusive is returned by BorrowExclusive when any borrow
// (shared or exclusive) is already outstanding.
var ErrNotAccessibleExclusive = errors.New("not accessible for exclusive access")

// ErrNotOwned is returned by Take when the cell has outstanding borrows or
// more than one strong reference.
var ErrNotOwned = errors.New("not accessible for taking")

// Access is the bare counter. It is not safe for concurrent use: the VM is
// single-threaded cooperative, so no synchronization is needed.
type Access struct {
	a int
}

// IsShared reports whether the cell currently has at least one shared
// borrow outstanding, without acquiring one.
func (ac *Access) IsShared() bool { return ac.a < 0 }

// IsExclusive reports whether the cell is idle (so an exclusive borrow
// could be acquired), without acquiring one.
func (ac *Access) IsExclusive() bool { return ac.a == 0 }

// Shared acquires one shared borrow, or fails if an exclusive borrow is
// outstanding.
func (ac *Access) Shared() (ReleaseFunc, error) {
	b := ac.a - 1
	if b >= 0 {
		return nil, ErrNotAccessibleShared
	}
	ac.a = b
	return ac.releaseShared, nil
}

// Exclusive acquires the single exclusive borrow, or fails if any borrow
// is already outstanding.
func (ac *Access) Exclusive() (ReleaseFunc, error) {
	b := ac.a + 1
	if b != 1 {
		return nil, ErrNotAccessibleExclusive
	}
	ac.a = b
	return ac.releaseExclusive, nil
}

func (ac *Access) releaseShared() {
	ac.a++
}

func (ac *Access) releaseExclusive() {
	ac.a--
}

// ReleaseFunc restores the counter acquired by Shared/Exclusive. Guards
// built on top of Access call it exactly once, on drop.
type ReleaseFunc func()
