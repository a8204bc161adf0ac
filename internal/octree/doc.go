// Package octree models the addressing scheme of a COPC octree.
//
// A [Key] names one node by its refinement level and its integer x, y and z
// coordinates at that level. Level 0 is the single root node covering the
// whole cube; each level halves the node size along every axis, so a node
// (L, X, Y, Z) has the eight children (L+1, 2X+dx, 2Y+dy, 2Z+dz) with
// dx, dy, dz in {0, 1}.
//
// Keys are small comparable values and are used directly as map keys by the
// hierarchy index. A key with a negative level is the sentinel [InvalidKey].
//
// On disk a key is four little-endian int32 values (level, x, y, z); see
// [DecodeKey] and [AppendKey]. The textual form used by tools is
// "level-x-y-z" ([Key.String], [ParseKey]).
package octree
