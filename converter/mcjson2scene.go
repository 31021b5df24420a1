package converter

import (
	"fmt"
	"log"
	"math"
	"path/filepath"
	"strings"

	"github.com/miniscene/mcanim/geom"
	"github.com/miniscene/mcanim/mcjson"
	"github.com/miniscene/mcanim/scene"
)

// cameraGroupName is the keyframe group assigned to imported camera curves
// so a re-export sees a single group.
const cameraGroupName = "Object Transforms"

func composeTransform(t *mcjson.Transform) (*geom.Matrix4, error) {
	if t.Matrix != nil {
		if len(t.Matrix) != 16 {
			return nil, fmt.Errorf("matrix data must have 16 elements, got %d", len(t.Matrix))
		}
		return geom.NewMatrix4FromRowMajor(t.Matrix), nil
	}
	if len(t.Loc) != 3 || len(t.Rot) != 4 || len(t.Sca) != 3 {
		return nil, fmt.Errorf("decomposed transform must have loc[3], rot[4] and sca[3]")
	}
	loc := geom.NewVector3(t.Loc[0], t.Loc[1], t.Loc[2])
	rot := &geom.Quaternion{W: t.Rot[0], X: t.Rot[1], Y: t.Rot[2], Z: t.Rot[3]}
	sca := geom.NewVector3(t.Sca[0], t.Sca[1], t.Sca[2])
	return geom.NewTRSMatrix4(loc, rot, sca), nil
}

func timestampToFrame(seconds, fps float64) int {
	return int(math.Round(seconds * fps))
}

type boneImport struct {
	absMatrix     *geom.Matrix4
	parentName    string
	childrenNames []string
	length        float64
}

func parseHierarchy(node *mcjson.BoneNode, parentName string, parentAbs *geom.Matrix4,
	bones map[string]*boneImport, order *[]string) error {
	if node.Name == "" {
		return fmt.Errorf("hierarchy node missing name")
	}
	if node.Transform == nil {
		return fmt.Errorf("bone %q has no transform data", node.Name)
	}
	relative, err := composeTransform(node.Transform)
	if err != nil {
		return fmt.Errorf("bone %q: %w", node.Name, err)
	}
	absolute := relative
	if parentAbs != nil {
		absolute = parentAbs.Mul(relative)
	}

	var childrenNames []string
	for _, c := range node.Children {
		if c.Name != "" {
			childrenNames = append(childrenNames, c.Name)
		}
	}
	bones[node.Name] = &boneImport{
		absMatrix:     absolute,
		parentName:    parentName,
		childrenNames: childrenNames,
		length:        -1,
	}
	*order = append(*order, node.Name)

	for _, c := range node.Children {
		if err := parseHierarchy(c, node.Name, absolute, bones, order); err != nil {
			return err
		}
	}
	return nil
}

// bone length is the minimum distance to a child head; bones without a
// usable child inherit the parent's length, then fall back to a default
func estimateBoneLengths(bones map[string]*boneImport, order []string) {
	for _, name := range order {
		b := bones[name]
		if len(b.childrenNames) == 0 {
			continue
		}
		head := b.absMatrix.Translation()
		best := -1.0
		for _, cname := range b.childrenNames {
			c, ok := bones[cname]
			if !ok {
				continue
			}
			d := c.absMatrix.Translation().Sub(head).Len()
			if d > 0.001 && (best < 0 || d < best) {
				best = d
			}
		}
		if best > 0 {
			b.length = best
		} else {
			b.length = 0.1
		}
	}
	for _, name := range order {
		b := bones[name]
		if b.length > 0 {
			continue
		}
		if p, ok := bones[b.parentName]; ok && p.length > 0 {
			b.length = p.length
		} else {
			b.length = 0.1
		}
	}
}

// ImportArmature rebuilds an armature object from the exported hierarchy.
// All imported bones are deformable and unconnected.
func ImportArmature(arm *mcjson.Armature, name string) (*scene.Object, error) {
	if len(arm.Hierarchy) == 0 {
		return nil, fmt.Errorf("armature has an empty hierarchy")
	}

	bones := map[string]*boneImport{}
	var order []string
	for _, root := range arm.Hierarchy {
		if err := parseHierarchy(root, "", nil, bones, &order); err != nil {
			return nil, err
		}
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("no bones found in armature hierarchy")
	}
	estimateBoneLengths(bones, order)

	armature := scene.NewArmature(name)
	for _, bname := range order {
		data := bones[bname]
		b := scene.NewBone(bname)
		b.Matrix = data.absMatrix
		b.Length = data.length

		loc, rot, _ := data.absMatrix.Decompose()
		yAxis := rot.ApplyTo(geom.NewVector3(0, 1, 0)).Normalize()
		b.Head = *loc
		b.Tail = *loc.Add(yAxis.Scale(data.length))
		b.Deform = true
		b.Connected = false

		var parent *scene.Bone
		if data.parentName != "" {
			parent = armature.Bone(data.parentName)
		}
		armature.AddBone(b, parent)
	}

	obj := scene.NewObject(name)
	obj.Armature = armature
	return obj, nil
}

func restRelative(b *scene.Bone) *geom.Matrix4 {
	if dp := b.DeformParent(); dp != nil {
		return dp.Matrix.Inverse().Mul(b.Matrix)
	}
	return b.Matrix
}

// ImportAnimation rebuilds channel keyframes from sampled tracks and makes
// the new action the armature's active one. Tracks referencing unknown
// bones are skipped with a warning.
func ImportAnimation(s *scene.Scene, armObj *scene.Object, tracks []*mcjson.Track, actionName string, r *Result) (*scene.Action, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("animation data is empty")
	}
	fps := s.FPS

	action := scene.NewAction(actionName)
	s.AddAction(action)
	armObj.EnsureAnimData().Action = action

	allFrames := map[int]bool{}
	imported := 0

	for _, track := range tracks {
		bone := armObj.Armature.Bone(track.Name)
		if bone == nil {
			r.warnf("bone %q not in armature - skipped", track.Name)
			continue
		}
		if len(track.Time) != len(track.Transform) || len(track.Time) == 0 {
			if len(track.Time) > 0 || len(track.Transform) > 0 {
				r.warnf("bone %q time/transform mismatch - skipped", track.Name)
			}
			continue
		}

		frames := make([]int, len(track.Time))
		for i, t := range track.Time {
			frames[i] = timestampToFrame(t, fps)
			allFrames[frames[i]] = true
		}

		locs := make([]*geom.Vector3, len(track.Transform))
		rots := make([]*geom.Quaternion, len(track.Transform))
		scas := make([]*geom.Vector3, len(track.Transform))
		restRelInv := restRelative(bone).Inverse()
		for i, tr := range track.Transform {
			if tr.IsAttr() {
				if len(tr.Loc) != 3 || len(tr.Rot) != 4 || len(tr.Sca) != 3 {
					return nil, fmt.Errorf("bone %q: decomposed transform must have loc[3], rot[4] and sca[3]", track.Name)
				}
				locs[i] = geom.NewVector3(tr.Loc[0], tr.Loc[1], tr.Loc[2])
				rots[i] = &geom.Quaternion{W: tr.Rot[0], X: tr.Rot[1], Y: tr.Rot[2], Z: tr.Rot[3]}
				scas[i] = geom.NewVector3(tr.Sca[0], tr.Sca[1], tr.Sca[2])
			} else {
				stored, err := composeTransform(tr)
				if err != nil {
					return nil, fmt.Errorf("bone %q: %w", track.Name, err)
				}
				locs[i], rots[i], scas[i] = restRelInv.Mul(stored).Decompose()
			}
		}

		// flip quaternions to avoid interpolation artifacts
		for i := 1; i < len(rots); i++ {
			if rots[i-1].Dot(rots[i]) < 0 {
				rots[i] = rots[i].Negate()
			}
		}

		for ki, frame := range frames {
			f := float64(frame)
			insertVec3(action, bone.Name, scene.PathLocation, f, locs[ki])
			insertQuat(action, bone.Name, f, rots[ki])
			insertVec3(action, bone.Name, scene.PathScale, f, scas[ki])
		}
		imported++
	}

	frames := make([]int, 0, len(allFrames))
	for f := range allFrames {
		frames = append(frames, f)
	}
	s.ExpandFrameRange(frames)

	log.Printf("INFO: imported animation for %d bones, %d unique frames", imported, len(allFrames))
	return action, nil
}

func insertVec3(action *scene.Action, bone, path string, frame float64, v *geom.Vector3) {
	action.EnsureCurve(bone, path, 0).InsertKeyframe(frame, v.X, scene.InterpolationLinear)
	action.EnsureCurve(bone, path, 1).InsertKeyframe(frame, v.Y, scene.InterpolationLinear)
	action.EnsureCurve(bone, path, 2).InsertKeyframe(frame, v.Z, scene.InterpolationLinear)
}

func insertQuat(action *scene.Action, bone string, frame float64, q *geom.Quaternion) {
	action.EnsureCurve(bone, scene.PathRotation, 0).InsertKeyframe(frame, q.W, scene.InterpolationLinear)
	action.EnsureCurve(bone, scene.PathRotation, 1).InsertKeyframe(frame, q.X, scene.InterpolationLinear)
	action.EnsureCurve(bone, scene.PathRotation, 2).InsertKeyframe(frame, q.Y, scene.InterpolationLinear)
	action.EnsureCurve(bone, scene.PathRotation, 3).InsertKeyframe(frame, q.Z, scene.InterpolationLinear)
}

// ImportMesh rebuilds a mesh object from the flattened record. joints maps
// weight bone indices back to vertex group names.
func ImportMesh(m *mcjson.Mesh, joints []string, armObj *scene.Object, name string, r *Result) (*scene.Object, error) {
	if m.Positions == nil {
		return nil, fmt.Errorf("mesh has no position data")
	}
	if len(m.Parts) == 0 {
		return nil, fmt.Errorf("mesh has no parts data (no faces)")
	}

	hasWeights := m.VCounts != nil && m.Weights != nil && m.VIndices != nil
	if hasWeights && len(joints) == 0 {
		r.warnf("mesh has weight data but no joints list - weights skipped")
		hasWeights = false
	}

	mesh := scene.NewMesh(name)
	positions := m.Positions.Array
	for i := 0; i+2 < len(positions); i += 3 {
		mesh.Vertexes = append(mesh.Vertexes, geom.NewVector3(positions[i], positions[i+1], positions[i+2]))
	}

	partOrder := m.PartOrder
	if len(partOrder) == 0 {
		for k := range m.Parts {
			partOrder = append(partOrder, k)
		}
	}

	for _, partName := range partOrder {
		arr := m.Parts[partName].Array
		for i := 0; i+8 < len(arr); i += 9 {
			face := &scene.Face{
				Verts: []int{int(arr[i]), int(arr[i+3]), int(arr[i+6])},
			}
			if m.UVs != nil {
				for c := 0; c < 3; c++ {
					ui := int(arr[i+c*3+1])
					u, v := m.UVs.Array[ui*2], m.UVs.Array[ui*2+1]
					face.UVs = append(face.UVs, geom.Vector2{X: u, Y: 1 - v})
				}
			}
			if m.Normals != nil {
				for c := 0; c < 3; c++ {
					ni := int(arr[i+c*3+2])
					face.Normals = append(face.Normals, geom.Vector3{
						X: m.Normals.Array[ni*3],
						Y: m.Normals.Array[ni*3+1],
						Z: m.Normals.Array[ni*3+2],
					})
				}
			}
			mesh.Faces = append(mesh.Faces, face)
		}
	}
	if len(mesh.Faces) == 0 {
		return nil, fmt.Errorf("mesh parts contain no faces")
	}

	obj := scene.NewObject(name)
	obj.Mesh = mesh

	if hasWeights {
		vcounts := m.VCounts.Array
		palette := m.Weights.Array
		vindices := m.VIndices.Array

		expected := 0
		for _, c := range vcounts {
			expected += int(c) * 2
		}
		if expected != len(vindices) {
			r.warnf("vindices length mismatch - weights skipped")
		} else {
			for _, bname := range joints {
				obj.EnsureVertexGroup(bname)
			}
			ptr := 0
			for vi := 0; vi < len(vcounts); vi++ {
				count := int(vcounts[vi])
				for k := 0; k < count; k++ {
					bi := int(vindices[ptr])
					wi := int(vindices[ptr+1])
					ptr += 2
					if bi >= 0 && bi < len(joints) && wi >= 0 && wi < len(palette) {
						obj.EnsureVertexGroup(joints[bi]).Weights[vi] = palette[wi]
					}
				}
			}
		}
	}

	for _, partName := range partOrder {
		if partName == mcjson.PartNoGroups {
			continue
		}
		g := obj.EnsureVertexGroup(partName + scene.PartGroupSuffix)
		arr := m.Parts[partName].Array
		for i := 0; i+8 < len(arr); i += 9 {
			g.Weights[int(arr[i])] = 1
			g.Weights[int(arr[i+3])] = 1
			g.Weights[int(arr[i+6])] = 1
		}
	}

	if armObj != nil {
		obj.Parent = armObj
		obj.Modifiers = append(obj.Modifiers, &scene.ArmatureModifier{Target: armObj})
	}
	return obj, nil
}

// ImportCamera rebuilds the camera object and its action, undoing the
// export-side coordinate correction. The object is linked into the scene
// and made the active camera.
func ImportCamera(s *scene.Scene, c *mcjson.CameraTrack, name string) (*scene.Object, error) {
	if len(c.Time) == 0 || len(c.Transform) == 0 {
		return nil, fmt.Errorf("camera has no keyframe data")
	}
	if len(c.Time) != len(c.Transform) {
		return nil, fmt.Errorf("camera time/transform length mismatch (%d vs %d)", len(c.Time), len(c.Transform))
	}

	frames := make([]int, len(c.Time))
	for i, t := range c.Time {
		frames[i] = timestampToFrame(t, s.FPS)
	}

	correction := geom.NewQuaternionFromAxisAngle(geom.NewVector3(1, 0, 0), math.Pi/2)
	eyeOffset := geom.NewTranslateMatrix4(0, 0, 1.62)

	locs := make([]*geom.Vector3, len(c.Transform))
	rots := make([]*geom.Quaternion, len(c.Transform))
	scas := make([]*geom.Vector3, len(c.Transform))
	for i, tr := range c.Transform {
		if !tr.IsAttr() || len(tr.Loc) != 3 || len(tr.Rot) != 4 || len(tr.Sca) != 3 {
			return nil, fmt.Errorf("camera transform must be decomposed with loc[3], rot[4] and sca[3]")
		}
		loc := correction.ApplyTo(geom.NewVector3(tr.Loc[0], tr.Loc[1], tr.Loc[2]))
		rot := correction.Mul(&geom.Quaternion{W: tr.Rot[0], X: tr.Rot[1], Y: tr.Rot[2], Z: tr.Rot[3]})
		sca := geom.NewVector3(tr.Sca[0], tr.Sca[1], tr.Sca[2])
		world := eyeOffset.Mul(geom.NewTRSMatrix4(loc, rot, sca))
		locs[i], rots[i], scas[i] = world.Decompose()
	}

	for i := 1; i < len(rots); i++ {
		if rots[i-1].Dot(rots[i]) < 0 {
			rots[i] = rots[i].Negate()
		}
	}

	obj := scene.NewObject(name)
	obj.Camera = &scene.Camera{}

	action := scene.NewAction(name + "_action")
	s.AddAction(action)
	obj.EnsureAnimData().Action = action

	for ki, frame := range frames {
		f := float64(frame)
		insertVec3(action, "", scene.PathLocation, f, locs[ki])
		insertQuat(action, "", f, rots[ki])
		insertVec3(action, "", scene.PathScale, f, scas[ki])
	}
	for _, curve := range action.Curves {
		curve.Group = cameraGroupName
	}

	s.AddObject(obj)
	s.Camera = obj
	s.ExpandFrameRange(frames)
	return obj, nil
}

// Import materializes a document into the scene: armature, animation, mesh
// and camera, in that order. An existing lone armature in the scene is
// reused instead of creating a new one.
func Import(s *scene.Scene, doc *mcjson.Document, baseName string) (*Result, error) {
	r := &Result{}

	hasMesh := doc.Vertices != nil
	hasArmature := doc.Armature != nil
	hasAnimation := doc.Animation != nil
	hasCamera := doc.Camera != nil
	if !hasMesh && !hasArmature && !hasAnimation && !hasCamera {
		return r, fmt.Errorf("file contains no importable data")
	}

	if doc.FPS != 0 {
		s.FPS = doc.FPS
		log.Printf("INFO: scene FPS set to %g (from file)", s.FPS)
	}

	var armObj *scene.Object
	for _, o := range s.Objects {
		if o.Armature != nil {
			if armObj != nil {
				armObj = nil // ambiguous, build a fresh one
				break
			}
			armObj = o
		}
	}

	if armObj == nil && hasArmature {
		obj, err := ImportArmature(doc.Armature, baseName)
		if err != nil {
			return r, fmt.Errorf("armature import: %w", err)
		}
		armObj = obj
		s.AddObject(armObj)
		log.Printf("INFO: created armature %q", armObj.Name)
	} else if armObj != nil {
		log.Printf("INFO: using existing armature %q", armObj.Name)
	}

	var joints []string
	if hasArmature {
		joints = doc.Armature.Joints
	}

	if hasAnimation {
		if armObj == nil {
			return r, fmt.Errorf("cannot import animation: no armature available")
		}
		if _, err := ImportAnimation(s, armObj, doc.Animation, baseName, r); err != nil {
			return r, fmt.Errorf("animation import: %w", err)
		}
	}

	if hasMesh {
		obj, err := ImportMesh(doc.Vertices, joints, armObj, baseName+"_mesh", r)
		if err != nil {
			return r, fmt.Errorf("mesh import: %w", err)
		}
		s.AddObject(obj)
		log.Printf("INFO: imported mesh %q", obj.Name)
	}

	if hasCamera {
		obj, err := ImportCamera(s, doc.Camera, baseName+"_camera")
		if err != nil {
			return r, fmt.Errorf("camera import: %w", err)
		}
		log.Printf("INFO: imported camera %q", obj.Name)
	}
	return r, nil
}

// ImportFile loads a .json document into the scene.
func ImportFile(s *scene.Scene, path string) (*Result, error) {
	doc, err := mcjson.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	r, err := Import(s, doc, base)
	if err != nil {
		return r, err
	}
	log.Println("INFO: import completed:", path)
	return r, nil
}
