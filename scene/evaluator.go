package scene

import "github.com/miniscene/mcanim/geom"

// Evaluator reads evaluated poses at a given frame. Sampling mutates a
// single timeline cursor, so frames are evaluated strictly sequentially:
// SetFrame, then read poses.
type Evaluator struct {
	scene *Scene
	frame float64
}

func NewEvaluator(s *Scene) *Evaluator {
	return &Evaluator{scene: s}
}

func (e *Evaluator) SetFrame(frame int) {
	e.frame = float64(frame)
}

func (e *Evaluator) Frame() int {
	return int(e.frame)
}

// PoseMatrix returns the armature-space pose matrix of the named bone on an
// armature object at the current frame.
func (e *Evaluator) PoseMatrix(obj *Object, bone string) *geom.Matrix4 {
	b := obj.Armature.Bone(bone)
	if b == nil {
		return geom.NewMatrix4()
	}
	return e.poseMatrix(obj, b)
}

func (e *Evaluator) poseMatrix(obj *Object, b *Bone) *geom.Matrix4 {
	basis := e.boneBasis(obj, b.Name)
	if b.Parent == nil {
		return b.Matrix.Mul(basis)
	}
	local := b.Parent.Matrix.Inverse().Mul(b.Matrix)
	return e.poseMatrix(obj, b.Parent).Mul(local).Mul(basis)
}

// boneBasis is the pose-channel TRS of one bone at the current frame.
func (e *Evaluator) boneBasis(obj *Object, bone string) *geom.Matrix4 {
	loc, rot, sca := e.channels(obj.Action(), bone)
	return geom.NewTRSMatrix4(loc, rot, sca)
}

// WorldMatrix returns the object-level transform at the current frame.
func (e *Evaluator) WorldMatrix(obj *Object) *geom.Matrix4 {
	action := obj.Action()
	if action == nil || !e.hasObjectCurves(action) {
		loc, rot, sca := obj.Location, obj.Rotation, obj.Scale
		return geom.NewTRSMatrix4(&loc, &rot, &sca)
	}
	loc, rot, sca := e.channels(action, "")
	return geom.NewTRSMatrix4(loc, rot, sca)
}

func (e *Evaluator) hasObjectCurves(action *Action) bool {
	for _, c := range action.Curves {
		if c.Bone == "" {
			return true
		}
	}
	return false
}

func (e *Evaluator) channels(action *Action, bone string) (*geom.Vector3, *geom.Quaternion, *geom.Vector3) {
	loc := &geom.Vector3{}
	rot := &geom.Quaternion{W: 1}
	sca := &geom.Vector3{X: 1, Y: 1, Z: 1}
	if action == nil {
		return loc, rot, sca
	}
	e.sample3(action, bone, PathLocation, &loc.X, &loc.Y, &loc.Z)
	e.sample3(action, bone, PathScale, &sca.X, &sca.Y, &sca.Z)
	// rotation indices are w,x,y,z
	e.sampleChannel(action, bone, PathRotation, 0, &rot.W)
	e.sampleChannel(action, bone, PathRotation, 1, &rot.X)
	e.sampleChannel(action, bone, PathRotation, 2, &rot.Y)
	e.sampleChannel(action, bone, PathRotation, 3, &rot.Z)
	return loc, rot, sca
}

func (e *Evaluator) sample3(action *Action, bone, path string, x, y, z *float64) {
	e.sampleChannel(action, bone, path, 0, x)
	e.sampleChannel(action, bone, path, 1, y)
	e.sampleChannel(action, bone, path, 2, z)
}

func (e *Evaluator) sampleChannel(action *Action, bone, path string, index int, dst *float64) {
	if c := action.Curve(bone, path, index); c != nil {
		if v, ok := c.Evaluate(e.frame); ok {
			*dst = v
		}
	}
}
