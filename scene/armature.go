package scene

import "github.com/miniscene/mcanim/geom"

// Bone is a rest-pose bone. Matrix is the rest transform in armature space
// (matrix_local). Head/Tail/Length describe the edit-time representation and
// are filled in by the importer.
type Bone struct {
	Name      string
	Deform    bool
	Hidden    bool
	Connected bool
	Matrix    *geom.Matrix4
	Head      geom.Vector3
	Tail      geom.Vector3
	Length    float64
	Parent    *Bone
	Children  []*Bone
}

type Armature struct {
	Name  string
	Bones []*Bone

	byName map[string]*Bone
}

func NewArmature(name string) *Armature {
	return &Armature{Name: name, byName: map[string]*Bone{}}
}

func NewBone(name string) *Bone {
	return &Bone{Name: name, Deform: true, Matrix: geom.NewMatrix4()}
}

// AddBone appends b under parent (nil for a root bone). Bones keep insertion
// order in Armature.Bones.
func (a *Armature) AddBone(b *Bone, parent *Bone) *Bone {
	b.Parent = parent
	if parent != nil {
		parent.Children = append(parent.Children, b)
	}
	a.Bones = append(a.Bones, b)
	if a.byName == nil {
		a.byName = map[string]*Bone{}
	}
	a.byName[b.Name] = b
	return b
}

func (a *Armature) Bone(name string) *Bone {
	if a.byName != nil {
		if b, ok := a.byName[name]; ok {
			return b
		}
	}
	for _, b := range a.Bones {
		if b.Name == name {
			return b
		}
	}
	return nil
}

func (a *Armature) Roots() []*Bone {
	var roots []*Bone
	for _, b := range a.Bones {
		if b.Parent == nil {
			roots = append(roots, b)
		}
	}
	return roots
}

// DeformParent returns the nearest deform ancestor, skipping any non-deform
// bones in between.
func (b *Bone) DeformParent() *Bone {
	for p := b.Parent; p != nil; p = p.Parent {
		if p.Deform {
			return p
		}
	}
	return nil
}
