// Package hashmod wires golang.org/x/crypto's blake2b/sha3
// implementations into script-callable "hash::blake2b"/"hash::sha3"
// functions, each returning the digest as a Value.Bytes. This is the
// cryptographic-digest counterpart to weft/item's hash/fnv-based
// structural hashing: item identity hashing is a hot-path, non-security
// concern (see DESIGN.md), whereas a script asking for a hash VALUE
// wants a real, named digest algorithm.
package hashmod

import (
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/aledsdavies/weft/module"
	"github.com/aledsdavies/weft/value"
)

// Module returns the "hash" module, ready for Context.Install.
func Module() *module.Module {
	return module.New("hash").
		Function("blake2b", 1, func(args []value.Value) (value.Value, error) {
			b, err := bytesOf(args[0])
			if err != nil {
				return nil, err
			}
			sum := blake2b.Sum256(b)
			return value.NewBytes(sum[:]), nil
		}).
		Function("sha3", 1, func(args []value.Value) (value.Value, error) {
			b, err := bytesOf(args[0])
			if err != nil {
				return nil, err
			}
			sum := sha3.Sum256(b)
			return value.NewBytes(sum[:]), nil
		})
}

func bytesOf(v value.Value) ([]byte, error) {
	if s, err := value.AsString(v); err == nil {
		return []byte(s), nil
	}
	bs, err := value.IntoBytes(v)
	if err != nil {
		return nil, err
	}
	return *bs.Cell.Peek(), nil
}
