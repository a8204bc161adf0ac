package octree

import (
	"cmp"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/robert-malhotra/go-copc/internal/binary"
)

// KeySize is the encoded size of a Key in bytes.
const KeySize = 16

// Key addresses one octree node by refinement level and integer
// coordinates at that level. A negative level marks an invalid key.
type Key struct {
	Level int32
	X     int32
	Y     int32
	Z     int32
}

// InvalidKey is the sentinel for "no such node".
var InvalidKey = Key{Level: -1, X: -1, Y: -1, Z: -1}

// RootKey is the key of the octree root node.
var RootKey = Key{}

// NewKey returns the key (level, x, y, z).
func NewKey(level, x, y, z int32) Key {
	return Key{Level: level, X: x, Y: y, Z: z}
}

// Valid reports whether k addresses a node.
func (k Key) Valid() bool {
	return k.Level >= 0
}

// Child returns the child of k in octant (dx, dy, dz). Each selector
// must be 0 or 1.
func (k Key) Child(dx, dy, dz int) Key {
	if dx|dy|dz > 1 || dx < 0 || dy < 0 || dz < 0 {
		panic(fmt.Sprintf("octree: invalid octant (%d,%d,%d)", dx, dy, dz))
	}
	return Key{
		Level: k.Level + 1,
		X:     2*k.X + int32(dx),
		Y:     2*k.Y + int32(dy),
		Z:     2*k.Z + int32(dz),
	}
}

// Children returns the eight children of k, ordered by octant index
// (dx + 2*dy + 4*dz).
func (k Key) Children() [8]Key {
	var out [8]Key
	for i := range out {
		out[i] = k.Child(i&1, (i>>1)&1, (i>>2)&1)
	}
	return out
}

// Parent returns the parent of k, or InvalidKey if k is the root or is
// itself invalid.
func (k Key) Parent() Key {
	if k.Level <= 0 {
		return InvalidKey
	}
	return Key{Level: k.Level - 1, X: k.X >> 1, Y: k.Y >> 1, Z: k.Z >> 1}
}

// String formats k as "level-x-y-z".
func (k Key) String() string {
	return fmt.Sprintf("%d-%d-%d-%d", k.Level, k.X, k.Y, k.Z)
}

// ParseKey parses a key in "level-x-y-z" form, the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	var k Key
	if _, err := fmt.Sscanf(s, "%d-%d-%d-%d", &k.Level, &k.X, &k.Y, &k.Z); err != nil {
		return InvalidKey, errors.Wrapf(err, "octree: invalid key %q: want level-x-y-z", s)
	}
	if k.String() != s {
		return InvalidKey, errors.Newf("octree: invalid key %q: want level-x-y-z", s)
	}
	return k, nil
}

// DecodeKey decodes a key from the first KeySize bytes of b.
func DecodeKey(b []byte) Key {
	_ = b[KeySize-1]
	return Key{
		Level: int32(binary.ByteOrder.Uint32(b[0:])),
		X:     int32(binary.ByteOrder.Uint32(b[4:])),
		Y:     int32(binary.ByteOrder.Uint32(b[8:])),
		Z:     int32(binary.ByteOrder.Uint32(b[12:])),
	}
}

// AppendKey appends the encoding of k to b.
func AppendKey(b []byte, k Key) []byte {
	b = binary.ByteOrder.AppendUint32(b, uint32(k.Level))
	b = binary.ByteOrder.AppendUint32(b, uint32(k.X))
	b = binary.ByteOrder.AppendUint32(b, uint32(k.Y))
	return binary.ByteOrder.AppendUint32(b, uint32(k.Z))
}

// Compare orders keys by level, then x, y, z.
func Compare(a, b Key) int {
	return cmp.Or(
		cmp.Compare(a.Level, b.Level),
		cmp.Compare(a.X, b.X),
		cmp.Compare(a.Y, b.Y),
		cmp.Compare(a.Z, b.Z),
	)
}
