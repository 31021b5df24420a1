package mcjson

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityMatrix() []float64 {
	return []float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

func testDocument() *Document {
	return &Document{
		Vertices: &Mesh{
			Positions: NewArrayRecord(3, 2, []float64{0, 0, 0, 1, 0, 0}),
			UVs:       NewArrayRecord(2, 1, []float64{0.5, 0.5}),
			Normals:   NewArrayRecord(3, 1, []float64{0, 0, 1}),
			Parts: map[string]*ArrayRecord{
				"noGroups": NewArrayRecord(3, 3, []float64{0, 0, 0, 1, 0, 0, 1, 0, 0}),
			},
			PartOrder: []string{"noGroups"},
		},
		Armature: &Armature{
			Joints: []string{"Root", "Spine"},
			Hierarchy: []*BoneNode{
				{
					Name:      "Root",
					Transform: &Transform{Matrix: identityMatrix()},
					Children: []*BoneNode{
						{
							Name:      "Spine",
							Transform: &Transform{Loc: []float64{0, 1, 0}, Rot: []float64{1, 0, 0, 0}, Sca: []float64{1, 1, 1}},
							Children:  []*BoneNode{},
						},
					},
				},
			},
		},
		Format: FormatAttributes,
		Animation: []*Track{
			{
				Name: "Root",
				Time: []float64{0, 0.0333},
				Transform: []*Transform{
					{Loc: []float64{0, 0, 0}, Rot: []float64{1, 0, 0, 0}, Sca: []float64{1, 1, 1}},
					{Loc: []float64{1, 0, 0}, Rot: []float64{1, 0, 0, 0}, Sca: []float64{1, 1, 1}},
				},
			},
		},
		FPS: 30,
	}
}

func TestWriteKeyOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testDocument()))
	out := buf.String()

	order := []string{`"vertices"`, `"armature"`, `"format"`, `"animation"`, `"fps"`}
	last := -1
	for _, key := range order {
		idx := strings.Index(out, key)
		require.NotEqual(t, -1, idx, "missing key %s", key)
		assert.Greater(t, idx, last, "key %s out of order", key)
		last = idx
	}
}

func TestWriteInlineArrays(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testDocument()))
	out := buf.String()

	assert.Contains(t, out, `"joints": ["Root","Spine"]`)
	assert.Contains(t, out, `"array": [0,0,0,1,0,0]`)
	assert.Contains(t, out, `"time": [0,0.0333]`)
	// decomposed transforms are single inline objects
	assert.Contains(t, out, `{"loc":[0,1,0],"rot":[1,0,0,0],"sca":[1,1,1]}`)
	// the document itself is indented
	assert.Contains(t, out, "    \"vertices\": {\n")
}

func TestWriteMatrixFormatOmitsKey(t *testing.T) {
	doc := testDocument()
	doc.Format = ""
	doc.ArmatureFormat = ""
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, doc))
	out := buf.String()
	assert.NotContains(t, out, `"format"`)
	assert.NotContains(t, out, `"armature_format"`)
}

func TestRoundTripDocument(t *testing.T) {
	doc := testDocument()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, doc))

	parsed, err := Parse(&buf)
	require.NoError(t, err)

	assert.Equal(t, doc.FPS, parsed.FPS)
	assert.Equal(t, doc.Format, parsed.Format)
	require.NotNil(t, parsed.Armature)
	assert.Equal(t, doc.Armature.Joints, parsed.Armature.Joints)
	require.Len(t, parsed.Armature.Hierarchy, 1)
	root := parsed.Armature.Hierarchy[0]
	assert.Equal(t, "Root", root.Name)
	assert.Equal(t, identityMatrix(), root.Transform.Matrix)
	require.Len(t, root.Children, 1)
	assert.True(t, root.Children[0].Transform.IsAttr())
	assert.Equal(t, []float64{0, 1, 0}, root.Children[0].Transform.Loc)

	require.NotNil(t, parsed.Vertices)
	assert.Equal(t, doc.Vertices.Positions.Array, parsed.Vertices.Positions.Array)
	assert.Equal(t, []string{"noGroups"}, parsed.Vertices.PartOrder)

	require.Len(t, parsed.Animation, 1)
	assert.Equal(t, doc.Animation[0].Time, parsed.Animation[0].Time)
	assert.Equal(t, doc.Animation[0].Transform[1].Loc, parsed.Animation[0].Transform[1].Loc)
}

func TestPartsOrderPreserved(t *testing.T) {
	input := `{
		"vertices": {
			"positions": {"stride": 3, "count": 1, "array": [0,0,0]},
			"uvs": {"stride": 2, "count": 1, "array": [0,0]},
			"normals": {"stride": 3, "count": 1, "array": [0,0,1]},
			"parts": {
				"zebra": {"stride": 3, "count": 0, "array": []},
				"apple": {"stride": 3, "count": 0, "array": []}
			}
		},
		"fps": 30
	}`
	doc, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"zebra", "apple"}, doc.Vertices.PartOrder)
}

func TestTransformUnmarshalErrors(t *testing.T) {
	var tr Transform
	err := tr.UnmarshalJSON([]byte(`[1,2,3]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "16 elements")

	err = tr.UnmarshalJSON([]byte(`{"rot":[1,0,0,0],"sca":[1,1,1]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loc")
}

func TestTransformEquals(t *testing.T) {
	a := &Transform{Loc: []float64{1, 2, 3}, Rot: []float64{1, 0, 0, 0}, Sca: []float64{1, 1, 1}}
	b := &Transform{Loc: []float64{1, 2, 3}, Rot: []float64{1, 0, 0, 0}, Sca: []float64{1, 1, 1}}
	c := &Transform{Loc: []float64{1, 2, 4}, Rot: []float64{1, 0, 0, 0}, Sca: []float64{1, 1, 1}}
	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
	assert.False(t, a.Equals(&Transform{Matrix: identityMatrix()}))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 0.123457, Round6(0.1234567))
	assert.Equal(t, 0.1235, Round4(0.12345678))
	assert.Equal(t, 1.0, Round4(0.99996))
	// negative zero never leaks into the output
	assert.False(t, math.Signbit(Round6(-0.0000001)))
	assert.False(t, math.Signbit(Round4(-0.00001)))
}
