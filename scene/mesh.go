package scene

import (
	"strings"

	"github.com/miniscene/mcanim/geom"
)

type Mesh struct {
	Name     string
	Vertexes []*geom.Vector3
	Faces    []*Face
}

// Face is a polygon. UVs and Normals are per corner, parallel to Verts.
type Face struct {
	Verts   []int
	UVs     []geom.Vector2
	Normals []geom.Vector3
}

func NewMesh(name string) *Mesh {
	return &Mesh{Name: name}
}

func (f *Face) HasUVs() bool {
	return len(f.UVs) == len(f.Verts)
}

func (m *Mesh) Clone() *Mesh {
	r := &Mesh{Name: m.Name}
	r.Vertexes = make([]*geom.Vector3, len(m.Vertexes))
	for i, v := range m.Vertexes {
		c := *v
		r.Vertexes[i] = &c
	}
	r.Faces = make([]*Face, len(m.Faces))
	for i, f := range m.Faces {
		r.Faces[i] = &Face{
			Verts:   append([]int(nil), f.Verts...),
			UVs:     append([]geom.Vector2(nil), f.UVs...),
			Normals: append([]geom.Vector3(nil), f.Normals...),
		}
	}
	return r
}

// FaceNormal computes the polygon normal (Newell's method).
func (m *Mesh) FaceNormal(f *Face) *geom.Vector3 {
	n := &geom.Vector3{}
	for i := range f.Verts {
		v0 := m.Vertexes[f.Verts[(i+len(f.Verts)-1)%len(f.Verts)]]
		v1 := m.Vertexes[f.Verts[i]]
		v2 := m.Vertexes[f.Verts[(i+1)%len(f.Verts)]]
		n = n.Add(v0.Sub(v1).Cross(v2.Sub(v1)))
	}
	return n.Normalize()
}

// CornerNormal returns the loop normal for corner i of f, falling back to
// the flat face normal.
func (m *Mesh) CornerNormal(f *Face, i int) *geom.Vector3 {
	if len(f.Normals) == len(f.Verts) {
		n := f.Normals[i]
		return &n
	}
	return m.FaceNormal(f)
}

type VertexGroup struct {
	Name    string
	Weights map[int]float64
}

func NewVertexGroup(name string) *VertexGroup {
	return &VertexGroup{Name: name, Weights: map[int]float64{}}
}

func (g *VertexGroup) Add(verts []int, weight float64) {
	for _, v := range verts {
		g.Weights[v] = weight
	}
}

func (g *VertexGroup) Weight(vert int) (float64, bool) {
	w, ok := g.Weights[vert]
	return w, ok
}

// IsPartGroup reports whether the group selects a mesh part rather than
// skinning weights.
func (g *VertexGroup) IsPartGroup() bool {
	return strings.HasSuffix(g.Name, PartGroupSuffix)
}

// PartName is the group name without the part suffix.
func (g *VertexGroup) PartName() string {
	return strings.TrimSuffix(g.Name, PartGroupSuffix)
}
