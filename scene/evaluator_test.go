package scene

import (
	"math"
	"testing"

	"github.com/miniscene/mcanim/geom"
)

func buildRig() (*Scene, *Object) {
	s := NewScene()
	o := NewObject("rig")
	o.Armature = NewArmature("rig")
	root := o.Armature.AddBone(NewBone("Root"), nil)
	child := NewBone("Child")
	child.Matrix = geom.NewTranslateMatrix4(0, 1, 0)
	o.Armature.AddBone(child, root)
	s.AddObject(o)
	return s, o
}

func TestPoseMatrixRest(t *testing.T) {
	s, o := buildRig()
	ev := NewEvaluator(s)
	ev.SetFrame(0)

	pose := ev.PoseMatrix(o, "Child")
	if !pose.NearEquals(geom.NewTranslateMatrix4(0, 1, 0), 1e-9) {
		t.Errorf("rest pose = %v", pose)
	}
}

func TestPoseMatrixPropagation(t *testing.T) {
	s, o := buildRig()
	action := s.AddAction(NewAction("walk"))
	o.EnsureAnimData().Action = action
	c := action.EnsureCurve("Root", PathLocation, 0)
	c.InsertKeyframe(0, 0, InterpolationLinear)
	c.InsertKeyframe(10, 1, InterpolationLinear)

	ev := NewEvaluator(s)
	ev.SetFrame(10)
	// root translation carries into the child pose
	pos := ev.PoseMatrix(o, "Child").Translation()
	if math.Abs(pos.X-1) > 1e-9 || math.Abs(pos.Y-1) > 1e-9 {
		t.Errorf("child pose translation = %v", pos)
	}

	ev.SetFrame(5)
	pos = ev.PoseMatrix(o, "Root").Translation()
	if math.Abs(pos.X-0.5) > 1e-9 {
		t.Errorf("interpolated root x = %v, want 0.5", pos.X)
	}
}

func TestPoseMatrixRotation(t *testing.T) {
	s, o := buildRig()
	action := s.AddAction(NewAction("turn"))
	o.EnsureAnimData().Action = action

	// 90 degrees about Z on the root, stored w,x,y,z
	q := geom.NewQuaternionFromAxisAngle(geom.NewVector3(0, 0, 1), math.Pi/2)
	for i, v := range []float64{q.W, q.X, q.Y, q.Z} {
		action.EnsureCurve("Root", PathRotation, i).InsertKeyframe(1, v, InterpolationLinear)
	}

	ev := NewEvaluator(s)
	ev.SetFrame(1)
	pos := ev.PoseMatrix(o, "Child").Translation()
	// the child head (0,1,0) rotates onto -x
	if math.Abs(pos.X+1) > 1e-9 || math.Abs(pos.Y) > 1e-9 {
		t.Errorf("rotated child pose translation = %v", pos)
	}
}

func TestWorldMatrix(t *testing.T) {
	s := NewScene()
	o := s.AddObject(NewObject("cam"))
	o.Location = geom.Vector3{X: 1, Y: 2, Z: 3}

	ev := NewEvaluator(s)
	pos := ev.WorldMatrix(o).Translation()
	if pos.X != 1 || pos.Y != 2 || pos.Z != 3 {
		t.Errorf("base world translation = %v", pos)
	}

	// object-level curves override the base transform
	action := s.AddAction(NewAction("move"))
	o.EnsureAnimData().Action = action
	action.EnsureCurve("", PathLocation, 0).InsertKeyframe(0, 7, InterpolationLinear)
	pos = ev.WorldMatrix(o).Translation()
	if pos.X != 7 {
		t.Errorf("animated world x = %v, want 7", pos.X)
	}
}

func TestDeformParent(t *testing.T) {
	a := NewArmature("rig")
	root := a.AddBone(NewBone("Root"), nil)
	helper := NewBone("Helper")
	helper.Deform = false
	a.AddBone(helper, root)
	tip := a.AddBone(NewBone("Tip"), helper)

	if dp := tip.DeformParent(); dp != root {
		t.Errorf("deform parent = %v, want Root", dp)
	}
	if dp := root.DeformParent(); dp != nil {
		t.Errorf("root deform parent = %v, want nil", dp)
	}
}
