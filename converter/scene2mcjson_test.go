package converter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniscene/mcanim/geom"
	"github.com/miniscene/mcanim/mcjson"
	"github.com/miniscene/mcanim/scene"
)

// rig: Root -> Spine -> Helper (non-deform) -> Tip, with rest heads stacked
// along +y. Helper must be elided on export with Tip promoted under Spine.
func buildRigObject() *scene.Object {
	rig := scene.NewObject("rig")
	rig.Armature = scene.NewArmature("rig")
	root := rig.Armature.AddBone(scene.NewBone("Root"), nil)
	spine := scene.NewBone("Spine")
	spine.Matrix = geom.NewTranslateMatrix4(0, 1, 0)
	rig.Armature.AddBone(spine, root)
	helper := scene.NewBone("Helper")
	helper.Deform = false
	helper.Matrix = geom.NewTranslateMatrix4(0, 2, 0)
	rig.Armature.AddBone(helper, spine)
	tip := scene.NewBone("Tip")
	tip.Matrix = geom.NewTranslateMatrix4(0, 3, 0)
	rig.Armature.AddBone(tip, helper)
	return rig
}

func quadMesh() *scene.Mesh {
	m := scene.NewMesh("body")
	m.Vertexes = []*geom.Vector3{
		geom.NewVector3(0, 0, 0),
		geom.NewVector3(1, 0, 0),
		geom.NewVector3(1, 1, 0),
		geom.NewVector3(0, 1, 0),
	}
	up := geom.Vector3{Z: 1}
	m.Faces = []*scene.Face{{
		Verts:   []int{0, 1, 2, 3},
		UVs:     []geom.Vector2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		Normals: []geom.Vector3{up, up, up, up},
	}}
	return m
}

func buildExportScene() *scene.Scene {
	s := scene.NewScene()
	rig := s.AddObject(buildRigObject())

	body := scene.NewObject("body")
	body.Mesh = quadMesh()
	rootG := body.EnsureVertexGroup("Root")
	rootG.Weights = map[int]float64{0: 1, 1: 0.5, 3: 1}
	spineG := body.EnsureVertexGroup("Spine")
	spineG.Weights = map[int]float64{1: 0.25, 2: 1}
	headG := body.EnsureVertexGroup("Head" + scene.PartGroupSuffix)
	headG.Add([]int{0, 1, 2, 3}, 1)
	body.Parent = rig
	body.Modifiers = append(body.Modifiers, &scene.ArmatureModifier{Target: rig})
	s.AddObject(body)

	walk := s.AddAction(scene.NewAction("walk"))
	c := walk.EnsureCurve("Spine", scene.PathLocation, 0)
	c.InsertKeyframe(1, 0, scene.InterpolationLinear)
	c.InsertKeyframe(5, 2, scene.InterpolationLinear)
	walk.EnsureCurve("Tip", scene.PathLocation, 1).InsertKeyframe(3, 0.5, scene.InterpolationLinear)
	rig.EnsureAnimData().Action = walk
	return s
}

func TestExportArmatureHierarchy(t *testing.T) {
	rig := buildRigObject()
	arm, err := ExportArmature(rig, false, FormatMatrix)
	require.NoError(t, err)

	assert.Equal(t, []string{"Root", "Spine", "Tip"}, arm.Joints)
	require.Len(t, arm.Hierarchy, 1)
	root := arm.Hierarchy[0]
	require.Len(t, root.Children, 1)
	spine := root.Children[0]
	assert.Equal(t, "Spine", spine.Name)
	// Helper is elided; Tip hangs directly off Spine
	require.Len(t, spine.Children, 1)
	tip := spine.Children[0]
	assert.Equal(t, "Tip", tip.Name)
	// row-major relative transform: Tip sits 2 above Spine
	require.Len(t, tip.Transform.Matrix, 16)
	assert.InDelta(t, 2.0, tip.Transform.Matrix[7], 1e-9)
}

func TestExportArmatureAttributes(t *testing.T) {
	rig := buildRigObject()
	arm, err := ExportArmature(rig, false, FormatAttributes)
	require.NoError(t, err)

	spine := arm.Hierarchy[0].Children[0]
	require.True(t, spine.Transform.IsAttr())
	assert.Equal(t, []float64{0, 1, 0}, spine.Transform.Loc)
	assert.Equal(t, []float64{1, 0, 0, 0}, spine.Transform.Rot)
}

func TestExportArmatureHidden(t *testing.T) {
	rig := buildRigObject()
	rig.Armature.Bone("Spine").Hidden = true

	arm, err := ExportArmature(rig, true, FormatMatrix)
	require.NoError(t, err)
	// hiding Spine prunes its whole subtree in visible-only mode
	assert.Equal(t, []string{"Root"}, arm.Joints)

	arm, err = ExportArmature(rig, false, FormatMatrix)
	require.NoError(t, err)
	assert.Equal(t, []string{"Root", "Spine", "Tip"}, arm.Joints)
}

func TestExportArmatureNoDeformBones(t *testing.T) {
	rig := scene.NewObject("rig")
	rig.Armature = scene.NewArmature("rig")
	b := scene.NewBone("Helper")
	b.Deform = false
	rig.Armature.AddBone(b, nil)

	_, err := ExportArmature(rig, false, FormatMatrix)
	require.Error(t, err)
}

func TestCorrectedJoints(t *testing.T) {
	rig := buildRigObject()
	body := scene.NewObject("body")
	body.EnsureVertexGroup("Spine")
	body.EnsureVertexGroup(scene.ClothingGroupName)
	body.EnsureVertexGroup("Head" + scene.PartGroupSuffix)
	body.EnsureVertexGroup("Root")
	body.EnsureVertexGroup("Helper") // non-deform, dropped
	body.EnsureVertexGroup("Unknown")

	assert.Equal(t, []string{"Spine", "Root"}, correctedJoints(body, rig))
}

func TestExportMeshFullPartMembership(t *testing.T) {
	s := buildExportScene()
	body := s.ObjectByName("body")

	record, err := ExportMesh(body, []string{"Root", "Spine"}, false, &Result{})
	require.NoError(t, err)

	assert.Equal(t, 4, record.Positions.Count)
	// every vertex of the quad is in Head_mesh, so both triangles land in Head
	assert.Equal(t, []string{"Head"}, record.PartOrder)
	head := record.Parts["Head"]
	assert.Equal(t, 6, head.Count)
	assert.Len(t, head.Array, 18)

	// quad corners share one normal and four distinct UVs, V flipped
	assert.Equal(t, 1, record.Normals.Count)
	assert.Equal(t, []float64{0, 0, 1}, record.Normals.Array)
	assert.Equal(t, 4, record.UVs.Count)
	assert.Contains(t, [][]float64{record.UVs.Array[:2], record.UVs.Array[2:4], record.UVs.Array[4:6], record.UVs.Array[6:8]}, []float64{0, 1})
}

func TestExportMeshPartialPartMembership(t *testing.T) {
	body := scene.NewObject("body")
	body.Mesh = quadMesh()
	half := body.EnsureVertexGroup("Half" + scene.PartGroupSuffix)
	half.Add([]int{0, 1}, 1)

	record, err := ExportMesh(body, nil, false, &Result{})
	require.NoError(t, err)
	// the quad is only partially inside Half, so all triangles fall back
	assert.Equal(t, []string{mcjson.PartNoGroups}, record.PartOrder)
	assert.Equal(t, 6, record.Parts[mcjson.PartNoGroups].Count)
}

func TestExportMeshMissingUVs(t *testing.T) {
	body := scene.NewObject("body")
	m := quadMesh()
	m.Faces[0].UVs = nil
	body.Mesh = m

	_, err := ExportMesh(body, nil, false, &Result{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UV")
}

func TestExportMeshWeights(t *testing.T) {
	body := scene.NewObject("body")
	m := scene.NewMesh("body")
	m.Vertexes = []*geom.Vector3{
		geom.NewVector3(0, 0, 0),
		geom.NewVector3(1, 0, 0),
		geom.NewVector3(0, 1, 0),
	}
	up := geom.Vector3{Z: 1}
	m.Faces = []*scene.Face{{
		Verts:   []int{0, 1, 2},
		UVs:     []geom.Vector2{{}, {X: 1}, {Y: 1}},
		Normals: []geom.Vector3{up, up, up},
	}}
	body.Mesh = m
	body.EnsureVertexGroup("Root").Weights = map[int]float64{0: 0.5, 1: 1}
	body.EnsureVertexGroup("Spine").Weights = map[int]float64{0: 0.25}

	r := &Result{}
	record, err := ExportMesh(body, []string{"Root", "Spine"}, false, r)
	require.NoError(t, err)

	vcounts := record.VCounts.Array
	assert.Equal(t, []float64{2, 1, 1}, vcounts)

	// v0 weights normalize to 2/3 and 1/3
	palette := record.Weights.Array
	assert.Contains(t, palette, 0.6667)
	assert.Contains(t, palette, 0.3333)
	assert.Contains(t, palette, 1.0)

	// v2 had no weights: defaulted to Root with weight 1, with a warning
	require.NotEmpty(t, r.Warnings)
	assert.Contains(t, r.Warnings[0], "no weights")
	vindices := record.VIndices.Array
	// last pair is v2: bone 0 (Root), weight index of 1.0
	bi, wi := vindices[len(vindices)-2], vindices[len(vindices)-1]
	assert.Equal(t, 0.0, bi)
	assert.Equal(t, 1.0, palette[int(wi)])
}

func TestExportAnimationSampling(t *testing.T) {
	s := buildExportScene()
	rig := s.ObjectByName("rig")
	ev := scene.NewEvaluator(s)

	tracks, err := ExportAnimation(rig, ev, []string{"Root", "Spine", "Tip"}, FormatAttributes, false, s.FPS, &Result{})
	require.NoError(t, err)
	require.Len(t, tracks, 3)

	byName := map[string]*mcjson.Track{}
	for _, tr := range tracks {
		byName[tr.Name] = tr
	}
	// Spine keyed at 1 and 5, which are also the timeline endpoints
	assert.Equal(t, []float64{0.0333, 0.1667}, byName["Spine"].Time)
	// Tip keyed at 3 plus both endpoints
	assert.Equal(t, []float64{0.0333, 0.1, 0.1667}, byName["Tip"].Time)
	// Root has no keys, so only the endpoints
	assert.Equal(t, []float64{0.0333, 0.1667}, byName["Root"].Time)
}

func TestExportAnimationMath(t *testing.T) {
	s := buildExportScene()
	rig := s.ObjectByName("rig")
	ev := scene.NewEvaluator(s)

	tracks, err := ExportAnimation(rig, ev, []string{"Root", "Spine", "Tip"}, FormatAttributes, false, s.FPS, &Result{})
	require.NoError(t, err)
	byName := map[string]*mcjson.Track{}
	for _, tr := range tracks {
		byName[tr.Name] = tr
	}
	// the decomposed sample is exactly the pose channel value
	last := byName["Spine"].Transform[len(byName["Spine"].Transform)-1]
	require.True(t, last.IsAttr())
	assert.InDelta(t, 2.0, last.Loc[0], 1e-6)
	assert.InDelta(t, 0.0, last.Loc[1], 1e-6)

	ev2 := scene.NewEvaluator(s)
	tracks, err = ExportAnimation(rig, ev2, []string{"Root", "Spine", "Tip"}, FormatMatrix, false, s.FPS, &Result{})
	require.NoError(t, err)
	for _, tr := range tracks {
		if tr.Name != "Spine" {
			continue
		}
		// matrix form is the parent-relative pose: rest offset plus channels
		m := tr.Transform[len(tr.Transform)-1].Matrix
		require.Len(t, m, 16)
		assert.InDelta(t, 2.0, m[3], 1e-6)
		assert.InDelta(t, 1.0, m[7], 1e-6)
	}
}

func TestExportAnimationBaked(t *testing.T) {
	s := buildExportScene()
	rig := s.ObjectByName("rig")
	ev := scene.NewEvaluator(s)

	tracks, err := ExportAnimation(rig, ev, []string{"Root", "Spine", "Tip"}, FormatAttributes, true, s.FPS, &Result{})
	require.NoError(t, err)
	for _, tr := range tracks {
		assert.Len(t, tr.Time, 5, "baking samples frames 1-5 for %s", tr.Name)
	}
}

func TestExportAnimationNoAction(t *testing.T) {
	rig := buildRigObject()
	s := scene.NewScene()
	s.AddObject(rig)
	ev := scene.NewEvaluator(s)

	_, err := ExportAnimation(rig, ev, []string{"Root"}, FormatAttributes, false, s.FPS, &Result{})
	require.Error(t, err)
}

func TestOptimizeKeyframes(t *testing.T) {
	a := &mcjson.Transform{Loc: []float64{0, 0, 0}, Rot: []float64{1, 0, 0, 0}, Sca: []float64{1, 1, 1}}
	b := &mcjson.Transform{Loc: []float64{1, 0, 0}, Rot: []float64{1, 0, 0, 0}, Sca: []float64{1, 1, 1}}
	c := &mcjson.Transform{Loc: []float64{2, 0, 0}, Rot: []float64{1, 0, 0, 0}, Sca: []float64{1, 1, 1}}
	track := &mcjson.Track{
		Name:      "Spine",
		Time:      []float64{1, 2, 3, 4, 5},
		Transform: []*mcjson.Transform{a, b, b, b, c},
	}

	removed := OptimizeKeyframes([]*mcjson.Track{track})
	assert.Equal(t, 1, removed)
	// the middle of the identical run goes, both run endpoints stay
	assert.Equal(t, []float64{1, 2, 4, 5}, track.Time)
	require.Len(t, track.Transform, 4)
	assert.Same(t, b, track.Transform[1])
	assert.Same(t, b, track.Transform[2])

	// a second pass changes nothing
	assert.Equal(t, 0, OptimizeKeyframes([]*mcjson.Track{track}))
}

func TestExportDocument(t *testing.T) {
	s := buildExportScene()
	doc, r, err := Export(s, nil)
	require.NoError(t, err)
	assert.Empty(t, r.Warnings)

	require.NotNil(t, doc.Vertices)
	require.NotNil(t, doc.Armature)
	require.NotNil(t, doc.Animation)
	assert.Equal(t, 30.0, doc.FPS)
	assert.Equal(t, mcjson.FormatAttributes, doc.Format)
	assert.Equal(t, "", doc.ArmatureFormat)

	// joints corrected to the mesh's skin vertex groups, in group order
	assert.Equal(t, []string{"Root", "Spine"}, doc.Armature.Joints)
	// tracks were built before the correction and still cover all deform bones
	assert.Len(t, doc.Animation, 3)
}

func TestExportNothing(t *testing.T) {
	s := scene.NewScene()
	s.AddObject(scene.NewObject("empty"))
	_, _, err := Export(s, nil)
	require.Error(t, err)
}

func TestExportFileAddsExtension(t *testing.T) {
	s := buildExportScene()
	dir := t.TempDir()
	out := filepath.Join(dir, "out")

	_, err := ExportFile(s, out, nil)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "out.json"))
	assert.NoError(t, err)
}

func TestExportActionBatch(t *testing.T) {
	s := buildExportScene()
	rig := s.ObjectByName("rig")
	original := rig.Action()

	// an object-only action must be skipped
	slide := s.AddAction(scene.NewAction("slide"))
	slide.EnsureCurve("", scene.PathLocation, 0).InsertKeyframe(1, 0, scene.InterpolationLinear)
	// unsafe characters in action names are replaced in filenames
	run := s.AddAction(scene.NewAction("run/fast"))
	run.EnsureCurve("Spine", scene.PathLocation, 0).InsertKeyframe(2, 1, scene.InterpolationLinear)

	dir := t.TempDir()
	res, err := ExportActionBatch(s, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Exported)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Errors)

	for _, name := range []string{"walk.json", "run_fast.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
	// the armature's active action is restored afterwards
	assert.Same(t, original, rig.Action())
}

func TestExportCameraGroups(t *testing.T) {
	s := scene.NewScene()
	cam := scene.NewObject("cam")
	cam.Camera = &scene.Camera{}
	s.AddObject(cam)
	s.Camera = cam

	action := s.AddAction(scene.NewAction("camact"))
	cam.EnsureAnimData().Action = action
	c0 := action.EnsureCurve("", scene.PathLocation, 0)
	c0.Group = "A"
	c0.InsertKeyframe(1, 0, scene.InterpolationLinear)
	c1 := action.EnsureCurve("", scene.PathLocation, 1)
	c1.Group = "B"
	c1.InsertKeyframe(1, 0, scene.InterpolationLinear)

	ev := scene.NewEvaluator(s)
	_, err := ExportCamera(cam, ev, s.FPS)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "group")

	// a single shared group is fine
	c1.Group = "A"
	_, err = ExportCamera(cam, ev, s.FPS)
	assert.NoError(t, err)
}
