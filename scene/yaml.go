package scene

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/miniscene/mcanim/geom"
)

// YAML scene documents are the tooling-facing representation of a scene:
// the CLI exports from them and the importer writes reconstructed scenes
// back out.

type sceneFile struct {
	FPS        float64       `yaml:"fps"`
	FrameStart int           `yaml:"frame_start"`
	FrameEnd   int           `yaml:"frame_end"`
	Objects    []*objectFile `yaml:"objects"`
	Actions    []*actionFile `yaml:"actions,omitempty"`
}

type objectFile struct {
	Name         string             `yaml:"name"`
	Mesh         *meshFile          `yaml:"mesh,omitempty"`
	VertexGroups []*vertexGroupFile `yaml:"vertex_groups,omitempty"`
	Armature     *armatureFile      `yaml:"armature,omitempty"`
	Camera       bool               `yaml:"camera,omitempty"`
	Parent       string             `yaml:"parent,omitempty"`
	Action       string             `yaml:"action,omitempty"`
	Location     []float64          `yaml:"location,omitempty,flow"`
	Rotation     []float64          `yaml:"rotation,omitempty,flow"` // w,x,y,z
	Scale        []float64          `yaml:"scale,omitempty,flow"`
}

type meshFile struct {
	Vertices [][]float64 `yaml:"vertices,flow"`
	Faces    []*faceFile `yaml:"faces"`
}

type faceFile struct {
	Verts   []int       `yaml:"verts,flow"`
	UVs     [][]float64 `yaml:"uvs,omitempty,flow"`
	Normals [][]float64 `yaml:"normals,omitempty,flow"`
}

type vertexGroupFile struct {
	Name    string          `yaml:"name"`
	Weights map[int]float64 `yaml:"weights,flow"`
}

type armatureFile struct {
	Bones []*boneFile `yaml:"bones"`
}

type boneFile struct {
	Name   string    `yaml:"name"`
	Parent string    `yaml:"parent,omitempty"`
	Deform *bool     `yaml:"deform,omitempty"` // default true
	Hidden bool      `yaml:"hidden,omitempty"`
	Matrix []float64 `yaml:"matrix,omitempty,flow"` // row-major, identity default
}

type actionFile struct {
	Name   string       `yaml:"name"`
	Curves []*curveFile `yaml:"curves"`
}

type curveFile struct {
	Bone      string      `yaml:"bone,omitempty"`
	Path      string      `yaml:"path"`
	Index     int         `yaml:"index"`
	Group     string      `yaml:"group,omitempty"`
	Keyframes [][]float64 `yaml:"keyframes,flow"` // [frame, value] pairs
}

func Load(r io.Reader) (*Scene, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var sf sceneFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	return sf.toScene()
}

func LoadFile(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func Save(w io.Writer, s *Scene) error {
	data, err := yaml.Marshal(fromScene(s))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func SaveFile(path string, s *Scene) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Save(f, s)
}

func (sf *sceneFile) toScene() (*Scene, error) {
	s := NewScene()
	if sf.FPS != 0 {
		s.FPS = sf.FPS
	}
	s.FrameStart = sf.FrameStart
	s.FrameEnd = sf.FrameEnd

	for _, af := range sf.Actions {
		action := NewAction(af.Name)
		for _, cf := range af.Curves {
			c := action.EnsureCurve(cf.Bone, cf.Path, cf.Index)
			if cf.Group != "" {
				c.Group = cf.Group
			}
			for _, kf := range cf.Keyframes {
				if len(kf) != 2 {
					return nil, fmt.Errorf("scene: action %q: keyframe must be a [frame, value] pair", af.Name)
				}
				c.InsertKeyframe(kf[0], kf[1], InterpolationLinear)
			}
		}
		s.AddAction(action)
	}

	for _, of := range sf.Objects {
		o := NewObject(of.Name)
		if len(of.Location) == 3 {
			o.Location = geom.Vector3{X: of.Location[0], Y: of.Location[1], Z: of.Location[2]}
		}
		if len(of.Rotation) == 4 {
			o.Rotation = geom.Quaternion{W: of.Rotation[0], X: of.Rotation[1], Y: of.Rotation[2], Z: of.Rotation[3]}
		}
		if len(of.Scale) == 3 {
			o.Scale = geom.Vector3{X: of.Scale[0], Y: of.Scale[1], Z: of.Scale[2]}
		}
		if of.Mesh != nil {
			m, err := of.Mesh.toMesh(of.Name)
			if err != nil {
				return nil, err
			}
			o.Mesh = m
		}
		for _, gf := range of.VertexGroups {
			g := o.EnsureVertexGroup(gf.Name)
			for v, w := range gf.Weights {
				g.Weights[v] = w
			}
		}
		if of.Armature != nil {
			arm, err := of.Armature.toArmature(of.Name)
			if err != nil {
				return nil, err
			}
			o.Armature = arm
		}
		if of.Camera {
			o.Camera = &Camera{}
			if s.Camera == nil {
				s.Camera = o
			}
		}
		if of.Action != "" {
			action := s.ActionByName(of.Action)
			if action == nil {
				return nil, fmt.Errorf("scene: object %q references unknown action %q", of.Name, of.Action)
			}
			o.EnsureAnimData().Action = action
		}
		s.AddObject(o)
	}

	// second pass: object parents and armature modifiers
	for i, of := range sf.Objects {
		if of.Parent == "" {
			continue
		}
		parent := s.ObjectByName(of.Parent)
		if parent == nil {
			return nil, fmt.Errorf("scene: object %q references unknown parent %q", of.Name, of.Parent)
		}
		s.Objects[i].Parent = parent
		if parent.Armature != nil && s.Objects[i].Mesh != nil {
			s.Objects[i].Modifiers = append(s.Objects[i].Modifiers, &ArmatureModifier{Target: parent})
		}
	}
	return s, nil
}

func (mf *meshFile) toMesh(name string) (*Mesh, error) {
	m := NewMesh(name)
	for _, v := range mf.Vertices {
		if len(v) != 3 {
			return nil, fmt.Errorf("scene: mesh %q: vertex must have 3 components", name)
		}
		m.Vertexes = append(m.Vertexes, geom.NewVector3FromSlice(v))
	}
	for fi, ff := range mf.Faces {
		face := &Face{Verts: append([]int(nil), ff.Verts...)}
		for _, uv := range ff.UVs {
			if len(uv) != 2 {
				return nil, fmt.Errorf("scene: mesh %q face %d: uv must have 2 components", name, fi)
			}
			face.UVs = append(face.UVs, geom.Vector2{X: uv[0], Y: uv[1]})
		}
		for _, n := range ff.Normals {
			if len(n) != 3 {
				return nil, fmt.Errorf("scene: mesh %q face %d: normal must have 3 components", name, fi)
			}
			face.Normals = append(face.Normals, geom.Vector3{X: n[0], Y: n[1], Z: n[2]})
		}
		m.Faces = append(m.Faces, face)
	}
	return m, nil
}

func (af *armatureFile) toArmature(name string) (*Armature, error) {
	arm := NewArmature(name)
	bones := map[string]*Bone{}
	for _, bf := range af.Bones {
		b := NewBone(bf.Name)
		if bf.Deform != nil {
			b.Deform = *bf.Deform
		}
		b.Hidden = bf.Hidden
		if len(bf.Matrix) == 16 {
			b.Matrix = geom.NewMatrix4FromRowMajor(bf.Matrix)
		} else if len(bf.Matrix) != 0 {
			return nil, fmt.Errorf("scene: bone %q: matrix must have 16 elements", bf.Name)
		}
		bones[bf.Name] = b
	}
	for _, bf := range af.Bones {
		var parent *Bone
		if bf.Parent != "" {
			parent = bones[bf.Parent]
			if parent == nil {
				return nil, fmt.Errorf("scene: bone %q references unknown parent %q", bf.Name, bf.Parent)
			}
		}
		arm.AddBone(bones[bf.Name], parent)
	}
	return arm, nil
}

func fromScene(s *Scene) *sceneFile {
	sf := &sceneFile{FPS: s.FPS, FrameStart: s.FrameStart, FrameEnd: s.FrameEnd}
	for _, a := range s.Actions {
		af := &actionFile{Name: a.Name}
		for _, c := range a.Curves {
			cf := &curveFile{Bone: c.Bone, Path: c.Path, Index: c.Index}
			if c.Group != c.Bone {
				cf.Group = c.Group
			}
			for _, kf := range c.Keyframes {
				cf.Keyframes = append(cf.Keyframes, []float64{kf.Frame, kf.Value})
			}
			af.Curves = append(af.Curves, cf)
		}
		sf.Actions = append(sf.Actions, af)
	}
	for _, o := range s.Objects {
		of := &objectFile{Name: o.Name}
		if o.Mesh != nil {
			of.Mesh = fromMesh(o.Mesh)
		}
		for _, g := range o.VertexGroups {
			of.VertexGroups = append(of.VertexGroups, &vertexGroupFile{Name: g.Name, Weights: g.Weights})
		}
		if o.Armature != nil {
			of.Armature = fromArmature(o.Armature)
		}
		of.Camera = o.Camera != nil
		if o.Location != (geom.Vector3{}) {
			of.Location = []float64{o.Location.X, o.Location.Y, o.Location.Z}
		}
		if o.Rotation != (geom.Quaternion{W: 1}) {
			of.Rotation = []float64{o.Rotation.W, o.Rotation.X, o.Rotation.Y, o.Rotation.Z}
		}
		if o.Scale != (geom.Vector3{X: 1, Y: 1, Z: 1}) {
			of.Scale = []float64{o.Scale.X, o.Scale.Y, o.Scale.Z}
		}
		if o.Parent != nil {
			of.Parent = o.Parent.Name
		}
		if a := o.Action(); a != nil {
			of.Action = a.Name
		}
		sf.Objects = append(sf.Objects, of)
	}
	return sf
}

func fromMesh(m *Mesh) *meshFile {
	mf := &meshFile{}
	for _, v := range m.Vertexes {
		mf.Vertices = append(mf.Vertices, []float64{v.X, v.Y, v.Z})
	}
	for _, f := range m.Faces {
		ff := &faceFile{Verts: f.Verts}
		for _, uv := range f.UVs {
			ff.UVs = append(ff.UVs, []float64{uv.X, uv.Y})
		}
		for _, n := range f.Normals {
			ff.Normals = append(ff.Normals, []float64{n.X, n.Y, n.Z})
		}
		mf.Faces = append(mf.Faces, ff)
	}
	return mf
}

func fromArmature(a *Armature) *armatureFile {
	af := &armatureFile{}
	for _, b := range a.Bones {
		bf := &boneFile{Name: b.Name, Hidden: b.Hidden}
		if b.Parent != nil {
			bf.Parent = b.Parent.Name
		}
		if !b.Deform {
			deform := false
			bf.Deform = &deform
		}
		bf.Matrix = b.Matrix.ToRowMajor()
		af.Bones = append(af.Bones, bf)
	}
	return af
}
