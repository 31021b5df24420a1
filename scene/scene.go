// Package scene holds the in-memory scene graph the codec reads and writes:
// meshes with per-corner loop data, armatures, keyframed actions and camera
// objects. Scenes can be loaded from and saved to a YAML document.
package scene

import "github.com/miniscene/mcanim/geom"

// PartGroupSuffix marks a vertex group as a part selector instead of a
// skinning group.
const PartGroupSuffix = "_mesh"

// ClothingGroupName is always excluded from the skin-weight candidate set.
const ClothingGroupName = "Clothing"

type Scene struct {
	FPS        float64
	FrameStart int
	FrameEnd   int
	Objects    []*Object
	Actions    []*Action

	// Camera is the active camera object, if any.
	Camera *Object
}

func NewScene() *Scene {
	return &Scene{FPS: 30}
}

func (s *Scene) AddObject(o *Object) *Object {
	s.Objects = append(s.Objects, o)
	return o
}

func (s *Scene) ObjectByName(name string) *Object {
	for _, o := range s.Objects {
		if o.Name == name {
			return o
		}
	}
	return nil
}

func (s *Scene) AddAction(a *Action) *Action {
	s.Actions = append(s.Actions, a)
	return a
}

func (s *Scene) ActionByName(name string) *Action {
	for _, a := range s.Actions {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// ExpandFrameRange grows the scene frame range to include frames.
func (s *Scene) ExpandFrameRange(frames []int) {
	for _, f := range frames {
		if f < s.FrameStart {
			s.FrameStart = f
		}
		if f > s.FrameEnd {
			s.FrameEnd = f
		}
	}
}

type Camera struct{}

type AnimData struct {
	Action *Action
}

type Object struct {
	Name         string
	Mesh         *Mesh
	VertexGroups []*VertexGroup
	Armature     *Armature
	Camera       *Camera
	Modifiers    []Modifier
	Anim         *AnimData
	Parent       *Object

	// Object-level base transform, overridden by action channels.
	Location geom.Vector3
	Rotation geom.Quaternion
	Scale    geom.Vector3
}

func NewObject(name string) *Object {
	return &Object{
		Name:     name,
		Rotation: geom.Quaternion{W: 1},
		Scale:    geom.Vector3{X: 1, Y: 1, Z: 1},
	}
}

func (o *Object) EnsureAnimData() *AnimData {
	if o.Anim == nil {
		o.Anim = &AnimData{}
	}
	return o.Anim
}

// Action returns the active action, or nil.
func (o *Object) Action() *Action {
	if o.Anim == nil {
		return nil
	}
	return o.Anim.Action
}

func (o *Object) VertexGroup(name string) *VertexGroup {
	for _, g := range o.VertexGroups {
		if g.Name == name {
			return g
		}
	}
	return nil
}

func (o *Object) EnsureVertexGroup(name string) *VertexGroup {
	if g := o.VertexGroup(name); g != nil {
		return g
	}
	g := NewVertexGroup(name)
	o.VertexGroups = append(o.VertexGroups, g)
	return g
}

// Modifier is a mesh-deforming modifier on an object.
type Modifier interface {
	ModifierName() string
	Apply(m *Mesh) *Mesh
}

// ArmatureModifier binds a mesh to an armature. The mesh itself is exported
// in rest pose; skinning happens in the runtime.
type ArmatureModifier struct {
	Target *Object
}

func (m *ArmatureModifier) ModifierName() string { return "Armature" }

func (m *ArmatureModifier) Apply(mesh *Mesh) *Mesh { return mesh }

// EvaluateMesh returns a throwaway copy of the object's mesh, with deform
// modifiers applied when applyModifiers is set.
func (o *Object) EvaluateMesh(applyModifiers bool) *Mesh {
	m := o.Mesh.Clone()
	if applyModifiers {
		for _, mod := range o.Modifiers {
			m = mod.Apply(m)
		}
	}
	return m
}
