package octree

import "math"

// Bounds is an axis-aligned box.
type Bounds struct {
	Min [3]float64
	Max [3]float64
}

// Cube returns the smallest cube sharing b's center that contains b.
func Cube(b Bounds) Bounds {
	var side float64
	for i := 0; i < 3; i++ {
		side = math.Max(side, b.Max[i]-b.Min[i])
	}
	var out Bounds
	for i := 0; i < 3; i++ {
		mid := (b.Min[i] + b.Max[i]) / 2
		out.Min[i] = mid - side/2
		out.Max[i] = mid + side/2
	}
	return out
}

// Bounds returns the extent of node k inside the root cube.
func (k Key) Bounds(root Bounds) Bounds {
	if !k.Valid() {
		return Bounds{}
	}
	cells := math.Ldexp(1, int(k.Level))
	xyz := [3]int32{k.X, k.Y, k.Z}
	var out Bounds
	for i := 0; i < 3; i++ {
		step := (root.Max[i] - root.Min[i]) / cells
		out.Min[i] = root.Min[i] + float64(xyz[i])*step
		out.Max[i] = out.Min[i] + step
	}
	return out
}

// Contains reports whether p lies inside b or on its boundary. A point on
// a face shared by two sibling nodes is contained in both.
func (b Bounds) Contains(p [3]float64) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}
