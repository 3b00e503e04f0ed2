// Package item implements qualified item paths and the stable 64-bit
// hashes derived from them. Hashing is deterministic
// across runs and platforms: a seeded FNV-1a over UTF-8 component bytes
// with a domain separator between components, so "a.b" and "ab" never
// collide and neither do instance-function selectors across unrelated
// types.
//
// x/crypto's hash primitives were considered for this (see DESIGN.md) but
// a 64-bit non-cryptographic hash is the right tool for a hot-path name
// key; hash/fnv from the standard library is what a production embeddable
// VM would reach for here, same as runestick's own Hash type is a plain
// FNV-style mix, not a cryptographic digest.
package item

import "hash/fnv"

// Hash is a 64-bit identifier for a type or instance-function selector.
type Hash uint64

// seed separates the Item-path domain from the H_inst mixing domain so a
// type hash and an instance-function hash can never collide even if their
// inputs happen to overlap as byte strings.
const (
	domainItem     byte = 0xA5
	domainSeparate byte = 0x1F
	domainInst     byte = 0x5A
)

// Item is an ordered path of identifier components, e.g. ("std", "vec",
// "Vec") for a qualified type name.
type Item struct {
	components []string
}

// New builds an Item from path components.
func New(components ...string) Item {
	cp := make([]string, len(components))
	copy(cp, components)
	return Item{components: cp}
}

// Join returns a new Item with an extra trailing component.
func (it Item) Join(component string) Item {
	cp := make([]string, len(it.components)+1)
	copy(cp, it.components)
	cp[len(cp)-1] = component
	return Item{components: cp}
}

func (it Item) Components() []string { return it.components }

func (it Item) String() string {
	out := make([]byte, 0, 16)
	for i, c := range it.components {
		if i > 0 {
			out = append(out, '.')
		}
		out = append(out, c...)
	}
	return string(out)
}

// TypeHash computes H_type(path): a seeded FNV-1a mix over the path's
// components with a domain separator written between each one.
func TypeHash(it Item) Hash {
	h := fnv.New64a()
	h.Write([]byte{domainItem})
	for _, c := range it.components {
		h.Write([]byte{domainSeparate})
		h.Write([]byte(c))
	}
	return Hash(h.Sum64())
}

// InstFnHash computes H_inst(type_hash, fn_name): mixing the type hash
// with the function name hash so that two different types can never
// collide on the same method name.
func InstFnHash(typeHash Hash, fnName string) Hash {
	h := fnv.New64a()
	h.Write([]byte{domainInst})
	var buf [8]byte
	putUint64(buf[:], uint64(typeHash))
	h.Write(buf[:])
	h.Write([]byte{domainSeparate})
	h.Write([]byte(fnName))
	return Hash(h.Sum64())
}

// FnHash computes the hash of a free (non-instance) function item path;
// it is simply the type hash of its full path, since free functions and
// types share one flat namespace of hashed paths.
func FnHash(it Item) Hash { return TypeHash(it) }

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
