// Package mcjson implements the compact JSON interchange format for mesh,
// armature, animation and camera data.
package mcjson

import "math"

// FormatAttributes is the value of the "format"/"armature_format" keys when
// transforms are stored decomposed. Matrix form omits the key.
const FormatAttributes = "attributes"

// PartNoGroups is the bucket for triangles without any part group.
const PartNoGroups = "noGroups"

// ArrayRecord is the universal encoding for bulk numeric data: a flat value
// array with its stride and logical element count.
type ArrayRecord struct {
	Stride int       `json:"stride"`
	Count  int       `json:"count"`
	Array  []float64 `json:"array"`
}

func NewArrayRecord(stride, count int, array []float64) *ArrayRecord {
	return &ArrayRecord{Stride: stride, Count: count, Array: array}
}

// Transform is either a 16-element row-major matrix or a decomposed
// loc/rot/sca triple. Rot is stored W,X,Y,Z.
type Transform struct {
	Matrix []float64
	Loc    []float64
	Rot    []float64
	Sca    []float64
}

func (t *Transform) IsAttr() bool {
	return t.Matrix == nil
}

func (t *Transform) Equals(o *Transform) bool {
	return sliceEquals(t.Matrix, o.Matrix) && sliceEquals(t.Loc, o.Loc) &&
		sliceEquals(t.Rot, o.Rot) && sliceEquals(t.Sca, o.Sca)
}

func sliceEquals(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// BoneNode is one bone of the exported hierarchy. Nesting encodes the
// deform-parent relation.
type BoneNode struct {
	Name      string     `json:"name"`
	Transform *Transform `json:"transform"`
	Children  []*BoneNode `json:"children"`
}

type Armature struct {
	Joints    []string    `json:"joints"`
	Hierarchy []*BoneNode `json:"hierarchy"`
}

// Track is one bone's sampled animation: timestamps in seconds and one
// transform per timestamp.
type Track struct {
	Name      string       `json:"name"`
	Time      []float64    `json:"time"`
	Transform []*Transform `json:"transform"`
}

// CameraTrack is the single camera timeline. Transforms are always
// decomposed.
type CameraTrack struct {
	Time      []float64    `json:"time"`
	Transform []*Transform `json:"transform"`
}

// Mesh is the flattened, deduplicated mesh record. Each part maps to a
// stride-3 list of (vertex, uv, normal) index triples per triangle corner.
type Mesh struct {
	Positions *ArrayRecord
	UVs       *ArrayRecord
	Normals   *ArrayRecord
	VCounts   *ArrayRecord
	Weights   *ArrayRecord
	VIndices  *ArrayRecord
	Parts     map[string]*ArrayRecord

	// PartOrder preserves document order of the parts object.
	PartOrder []string
}

type Document struct {
	Vertices       *Mesh
	ArmatureFormat string
	Armature       *Armature
	Format         string
	Animation      []*Track
	Camera         *CameraTrack
	FPS            float64
}

// Round rounds v to the given number of decimal places.
func Round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // avoid -0 in the output
	}
	return r
}

// Round6 is the precision used for positions, normals and transform values.
func Round6(v float64) float64 {
	return Round(v, 6)
}

// Round4 is the precision used for UVs, weights and timestamps.
func Round4(v float64) float64 {
	return Round(v, 4)
}

func RoundSlice(a []float64, digits int) []float64 {
	r := make([]float64, len(a))
	for i, v := range a {
		r[i] = Round(v, digits)
	}
	return r
}
