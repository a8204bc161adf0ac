package octree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyChild(t *testing.T) {
	keys := []Key{
		RootKey,
		NewKey(1, 1, 0, 1),
		NewKey(5, 17, 3, 30),
		NewKey(12, 4095, 0, 2048),
	}
	for _, k := range keys {
		for dx := 0; dx <= 1; dx++ {
			for dy := 0; dy <= 1; dy++ {
				for dz := 0; dz <= 1; dz++ {
					c := k.Child(dx, dy, dz)
					require.Equal(t, k.Level+1, c.Level)
					require.Equal(t, 2*k.X+int32(dx), c.X)
					require.Equal(t, 2*k.Y+int32(dy), c.Y)
					require.Equal(t, 2*k.Z+int32(dz), c.Z)
					require.Equal(t, k, c.Parent())
					require.Equal(t, c, k.Children()[dx|dy<<1|dz<<2])
				}
			}
		}
	}
}

func TestKeyChildInvalidOctant(t *testing.T) {
	require.Panics(t, func() { RootKey.Child(2, 0, 0) })
	require.Panics(t, func() { RootKey.Child(0, -1, 0) })
}

func TestKeyChildren(t *testing.T) {
	children := NewKey(1, 1, 1, 1).Children()
	seen := map[Key]bool{}
	for _, c := range children {
		require.Equal(t, NewKey(1, 1, 1, 1), c.Parent())
		seen[c] = true
	}
	require.Len(t, seen, 8)
}

func TestKeyValidity(t *testing.T) {
	require.True(t, RootKey.Valid())
	require.False(t, InvalidKey.Valid())
	require.False(t, NewKey(-3, 0, 0, 0).Valid())
	require.Equal(t, InvalidKey, RootKey.Parent())
	require.Equal(t, InvalidKey, InvalidKey.Parent())
}

func TestKeyString(t *testing.T) {
	k := NewKey(3, 1, 2, -4)
	require.Equal(t, "3-1-2--4", k.String())

	parsed, err := ParseKey("3-1-2-4")
	require.NoError(t, err)
	require.Equal(t, NewKey(3, 1, 2, 4), parsed)

	for _, k := range []Key{k, NewKey(1, -1, 0, 0), NewKey(0, -7, -8, -9), InvalidKey} {
		parsed, err := ParseKey(k.String())
		require.NoError(t, err, k.String())
		require.Equal(t, k, parsed)
	}

	for _, bad := range []string{"", "1-2-3", "a-b-c-d", "1-2-3-4-5", "1-2-3-99999999999", "1-2-3-4x", " 1-2-3-4", "1-+2-3-4"} {
		_, err := ParseKey(bad)
		require.Error(t, err, bad)
	}
}

func TestKeyCodec(t *testing.T) {
	k := NewKey(4, 9, -1, 15)
	b := AppendKey(nil, k)
	require.Len(t, b, KeySize)
	require.Equal(t, k, DecodeKey(b))
}

func TestCompare(t *testing.T) {
	require.Equal(t, 0, Compare(NewKey(1, 2, 3, 4), NewKey(1, 2, 3, 4)))
	require.Equal(t, -1, Compare(NewKey(1, 9, 9, 9), NewKey(2, 0, 0, 0)))
	require.Equal(t, 1, Compare(NewKey(1, 0, 1, 0), NewKey(1, 0, 0, 9)))
}

func TestKeyBounds(t *testing.T) {
	root := Cube(Bounds{Min: [3]float64{0, 0, 0}, Max: [3]float64{8, 4, 2}})
	require.Equal(t, [3]float64{0, -2, -3}, root.Min)
	require.Equal(t, [3]float64{8, 6, 5}, root.Max)

	b := NewKey(2, 3, 0, 1).Bounds(root)
	require.Equal(t, [3]float64{6, -2, -1}, b.Min)
	require.Equal(t, [3]float64{8, 0, 1}, b.Max)
	require.True(t, b.Contains([3]float64{6, -2, 0}))
	require.True(t, b.Contains([3]float64{8, -2, 0}))
	require.False(t, b.Contains([3]float64{8.5, -2, 0}))
	require.False(t, b.Contains([3]float64{7, -2.1, 0}))

	require.Equal(t, root, RootKey.Bounds(root))
}
