package converter

import (
	"fmt"
	"log"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/miniscene/mcanim/geom"
	"github.com/miniscene/mcanim/mcjson"
	"github.com/miniscene/mcanim/scene"
)

// TransformFormat selects how transforms are written: raw 4x4 matrices or
// decomposed loc/rot/sca attributes.
type TransformFormat string

const (
	FormatMatrix     TransformFormat = "MAT"
	FormatAttributes TransformFormat = "ATTR"
)

// ExportOptions mirror the per-export switches of the host tool.
type ExportOptions struct {
	Mesh      bool
	Armature  bool
	Animation bool
	Camera    bool

	ApplyModifiers    bool
	ArmatureFormat    TransformFormat // default: FormatMatrix
	AnimationFormat   TransformFormat // default: FormatAttributes
	VisibleBonesOnly  bool
	OptimizeKeyframes bool
	BakeAnimation     bool
}

func DefaultExportOptions() *ExportOptions {
	return &ExportOptions{
		Mesh:            true,
		Armature:        true,
		Animation:       true,
		ArmatureFormat:  FormatMatrix,
		AnimationFormat: FormatAttributes,
	}
}

// Result collects recoverable warnings of one export or import.
type Result struct {
	Warnings []string
}

func (r *Result) warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Println("WARNING:", msg)
	if r != nil {
		r.Warnings = append(r.Warnings, msg)
	}
}

func transformOf(m *geom.Matrix4, format TransformFormat) *mcjson.Transform {
	if format == FormatAttributes {
		loc, rot, sca := m.Decompose()
		return &mcjson.Transform{
			Loc: mcjson.RoundSlice([]float64{loc.X, loc.Y, loc.Z}, 6),
			Rot: mcjson.RoundSlice([]float64{rot.W, rot.X, rot.Y, rot.Z}, 6),
			Sca: mcjson.RoundSlice([]float64{sca.X, sca.Y, sca.Z}, 6),
		}
	}
	return &mcjson.Transform{Matrix: mcjson.RoundSlice(m.ToRowMajor(), 6)}
}

// ExportMesh flattens a mesh object into the deduplicated wire record.
// joints is the bone name list used for weight indices; nil disables weight
// export.
func ExportMesh(obj *scene.Object, joints []string, applyModifiers bool, r *Result) (*mcjson.Mesh, error) {
	mesh := obj.EvaluateMesh(applyModifiers)

	// snapshot polygon topology before triangulation
	originalPolyVerts := make([][]int, len(mesh.Faces))
	for i, f := range mesh.Faces {
		originalPolyVerts[i] = append([]int(nil), f.Verts...)
	}

	type corner struct {
		vert   int
		face   *scene.Face
		loop   int // corner index within face
	}
	type triangle struct {
		corners [3]corner
		owner   int // original polygon index
	}

	var triangles []*triangle
	for _, f := range mesh.Faces {
		if len(f.Verts) < 3 {
			continue
		}
		if !f.HasUVs() {
			return nil, fmt.Errorf("mesh %q has no active UV layer: unwrap the mesh before exporting", obj.Name)
		}
		var tris [][3]int
		if len(f.Verts) == 3 {
			tris = [][3]int{{0, 1, 2}}
		} else {
			points := make([]*geom.Vector3, len(f.Verts))
			for i, vi := range f.Verts {
				points[i] = mesh.Vertexes[vi]
			}
			tris = geom.Triangulate(points)
		}
		for _, tr := range tris {
			t := &triangle{owner: -1}
			for i, ci := range tr {
				t.corners[i] = corner{vert: f.Verts[ci], face: f, loop: ci}
			}
			// match the triangle back to its original polygon
			owners := 0
			for pi, pv := range originalPolyVerts {
				if containsAll(pv, t.corners[0].vert, t.corners[1].vert, t.corners[2].vert) {
					t.owner = pi
					owners++
				}
			}
			if owners != 1 {
				return nil, fmt.Errorf("triangulation error: a triangulated face could not be matched to exactly one original polygon. Check the mesh %q for overlapping or degenerate faces", obj.Name)
			}
			triangles = append(triangles, t)
		}
	}

	positions := make([]float64, 0, len(mesh.Vertexes)*3)
	for _, v := range mesh.Vertexes {
		positions = append(positions, mcjson.Round6(v.X), mcjson.Round6(v.Y), mcjson.Round6(v.Z))
	}

	// per-vertex part group membership
	partNames := map[int][]string{}
	var partOrder []string
	for _, g := range obj.VertexGroups {
		if !g.IsPartGroup() {
			continue
		}
		partOrder = append(partOrder, g.PartName())
		for vi := range g.Weights {
			partNames[vi] = append(partNames[vi], g.PartName())
		}
	}

	var normalArray, uvArray []float64
	normalIndex := map[[3]float64]int{}
	uvIndex := map[[2]float64]int{}

	parts := map[string][]float64{}
	order := append([]string{mcjson.PartNoGroups}, partOrder...)

	for _, t := range triangles {
		var indices [9]float64
		for i, c := range t.corners {
			n := mesh.CornerNormal(c.face, c.loop)
			nk := [3]float64{mcjson.Round6(n.X), mcjson.Round6(n.Y), mcjson.Round6(n.Z)}
			ni, ok := normalIndex[nk]
			if !ok {
				ni = len(normalArray) / 3
				normalIndex[nk] = ni
				normalArray = append(normalArray, nk[0], nk[1], nk[2])
			}
			uv := c.face.UVs[c.loop]
			uk := [2]float64{mcjson.Round4(uv.X), mcjson.Round4(1 - uv.Y)}
			ui, ok := uvIndex[uk]
			if !ok {
				ui = len(uvArray) / 2
				uvIndex[uk] = ui
				uvArray = append(uvArray, uk[0], uk[1])
			}
			indices[i*3] = float64(c.vert)
			indices[i*3+1] = float64(ui)
			indices[i*3+2] = float64(ni)
		}

		// part membership is decided by the owning original polygon's
		// vertices, not the triangle's own corners
		ownerVerts := originalPolyVerts[t.owner]
		grouped := false
		for _, name := range partOrder {
			if allInPart(ownerVerts, partNames, name) {
				parts[name] = append(parts[name], indices[:]...)
				grouped = true
			}
		}
		if !grouped {
			parts[mcjson.PartNoGroups] = append(parts[mcjson.PartNoGroups], indices[:]...)
		}
	}

	out := &mcjson.Mesh{
		Positions: mcjson.NewArrayRecord(3, len(positions)/3, positions),
		UVs:       mcjson.NewArrayRecord(2, len(uvArray)/2, uvArray),
		Normals:   mcjson.NewArrayRecord(3, len(normalArray)/3, normalArray),
		Parts:     map[string]*mcjson.ArrayRecord{},
	}
	for _, name := range order {
		if arr := parts[name]; len(arr) > 0 {
			out.Parts[name] = mcjson.NewArrayRecord(3, len(arr)/3, arr)
			out.PartOrder = append(out.PartOrder, name)
		}
	}

	if joints != nil {
		vcounts, weights, vindices := exportWeights(obj, mesh, joints, r)
		out.VCounts = mcjson.NewArrayRecord(1, len(vcounts), vcounts)
		out.Weights = mcjson.NewArrayRecord(1, len(weights), weights)
		out.VIndices = mcjson.NewArrayRecord(1, len(vindices), vindices)
	}

	return out, nil
}

func containsAll(verts []int, a, b, c int) bool {
	found := 0
	for _, v := range verts {
		if v == a || v == b || v == c {
			found++
		}
	}
	// verts has no duplicates; a/b/c are distinct corners of one triangle
	return found >= 3
}

func allInPart(verts []int, partNames map[int][]string, part string) bool {
	for _, v := range verts {
		in := false
		for _, n := range partNames[v] {
			if n == part {
				in = true
				break
			}
		}
		if !in {
			return false
		}
	}
	return true
}

func exportWeights(obj *scene.Object, mesh *scene.Mesh, joints []string, r *Result) ([]float64, []float64, []float64) {
	jointIndex := map[string]int{}
	for i, n := range joints {
		jointIndex[n] = i
	}

	var vcounts, weights, vindices []float64
	paletteIndex := map[float64]int{}

	for vi := range mesh.Vertexes {
		type boneWeight struct {
			name   string
			weight float64
		}
		var list []boneWeight
		total := 0.0
		for _, g := range obj.VertexGroups {
			w, ok := g.Weights[vi]
			if !ok || g.IsPartGroup() {
				continue
			}
			if w > 1 {
				w = 1
			} else if w < 0 {
				w = 0
			}
			if w == 0 {
				continue
			}
			if _, known := jointIndex[g.Name]; !known {
				continue
			}
			list = append(list, boneWeight{g.Name, w})
			total += w
		}

		if total == 0 {
			total = 1
			list = append(list, boneWeight{"Root", 1})
			r.warnf("vertex %d in mesh %q has no weights to any deform bone - defaulting to Root", vi, obj.Name)
		}

		for _, bw := range list {
			w := mcjson.Round4(bw.weight / total)
			bi, ok := jointIndex[bw.name]
			if !ok {
				bi = 0
			}
			wi, ok := paletteIndex[w]
			if !ok {
				wi = len(weights)
				paletteIndex[w] = wi
				weights = append(weights, w)
			}
			vindices = append(vindices, float64(bi), float64(wi))
		}
		vcounts = append(vcounts, float64(len(list)))
	}
	return vcounts, weights, vindices
}

// ExportArmature flattens the deform-bone tree. Non-deform bones are elided
// with their deform descendants promoted to the nearest deform ancestor.
func ExportArmature(obj *scene.Object, visibleOnly bool, format TransformFormat) (*mcjson.Armature, error) {
	var joints []string
	var skipped []string

	var walk func(b *scene.Bone) []*mcjson.BoneNode
	walk = func(b *scene.Bone) []*mcjson.BoneNode {
		if visibleOnly && b.Hidden {
			return nil
		}
		if !b.Deform {
			skipped = append(skipped, b.Name)
			var promoted []*mcjson.BoneNode
			for _, c := range b.Children {
				promoted = append(promoted, walk(c)...)
			}
			return promoted
		}
		joints = append(joints, b.Name)
		rel := b.Matrix
		if dp := b.DeformParent(); dp != nil {
			rel = dp.Matrix.Inverse().Mul(rel)
		}
		node := &mcjson.BoneNode{
			Name:      b.Name,
			Transform: transformOf(rel, format),
			Children:  []*mcjson.BoneNode{},
		}
		for _, c := range b.Children {
			node.Children = append(node.Children, walk(c)...)
		}
		return []*mcjson.BoneNode{node}
	}

	var hierarchy []*mcjson.BoneNode
	for _, root := range obj.Armature.Roots() {
		hierarchy = append(hierarchy, walk(root)...)
	}

	if len(skipped) > 0 {
		log.Printf("INFO: skipped %d non-deform bone(s): %s", len(skipped), strings.Join(skipped, ", "))
	}
	if len(joints) == 0 {
		return nil, fmt.Errorf("armature %q produced no exportable bones: ensure deform bones exist and, with visible-only export, that some bones are visible", obj.Name)
	}
	return &mcjson.Armature{Joints: joints, Hierarchy: hierarchy}, nil
}

type boneSamples struct {
	frames     []int
	transforms []*mcjson.Transform
}

func (s *boneSamples) hasFrame(f int) bool {
	for _, v := range s.frames {
		if v == f {
			return true
		}
	}
	return false
}

// ExportAnimation samples the armature's active action into per-bone tracks.
// Non-baked mode samples each bone at its own integer keyframes plus the
// first and last frame of the timeline; baked mode samples every frame of
// the action range.
func ExportAnimation(obj *scene.Object, ev *scene.Evaluator, joints []string, format TransformFormat, bake bool, fps float64, r *Result) ([]*mcjson.Track, error) {
	if obj.Anim == nil {
		return nil, fmt.Errorf("armature %q has no animation data: create an action or disable animation export", obj.Name)
	}
	action := obj.Anim.Action
	if action == nil {
		return nil, fmt.Errorf("armature %q has no active action: assign an action or disable animation export", obj.Name)
	}

	deformSet := map[string]bool{}
	for _, n := range joints {
		deformSet[n] = true
	}

	dopeSheet := map[string]*boneSamples{}
	var timelines []int

	if bake {
		start, end := action.FrameRange()
		if end < start {
			return nil, fmt.Errorf("action %q on armature %q has an empty frame range: make sure the action has keyframes", action.Name, obj.Name)
		}
		for t := start; t <= end; t++ {
			timelines = append(timelines, t)
		}
		log.Printf("INFO: baking visual transforms: frames %d - %d (%d frames)", start, end, len(timelines))
	} else {
		seen := map[int]bool{}
		for _, c := range action.Curves {
			if c.Bone == "" || !deformSet[c.Bone] {
				continue
			}
			entry := dopeSheet[c.Bone]
			if entry == nil {
				entry = &boneSamples{}
				dopeSheet[c.Bone] = entry
			}
			for _, f := range c.Frames() {
				if !entry.hasFrame(f) {
					entry.frames = append(entry.frames, f)
				}
				if !seen[f] {
					seen[f] = true
					timelines = append(timelines, f)
				}
			}
		}
		if len(timelines) == 0 {
			return nil, fmt.Errorf("action %q on armature %q contains no keyframes for deform bones", action.Name, obj.Name)
		}
		sort.Ints(timelines)
	}

	// keyframe sets are known up front; samples must be read in frame order
	// because the evaluator is a sequential timeline cursor
	sampled := map[string][]int{}
	first, last := timelines[0], timelines[len(timelines)-1]
	for _, t := range timelines {
		ev.SetFrame(t)
		for _, b := range obj.Armature.Bones {
			if !b.Deform {
				continue
			}
			entry := dopeSheet[b.Name]
			if entry == nil {
				entry = &boneSamples{}
				dopeSheet[b.Name] = entry
			}
			if !(bake || entry.hasFrame(t) || t == first || t == last) {
				continue
			}

			pose := ev.PoseMatrix(obj, b.Name)
			m := pose
			dp := b.DeformParent()
			if dp != nil {
				m = ev.PoseMatrix(obj, dp.Name).Inverse().Mul(pose)
			}
			if format == FormatAttributes {
				rest := b.Matrix
				if dp != nil {
					rest = dp.Matrix.Inverse().Mul(rest)
				}
				m = rest.Inverse().Mul(m)
			}
			sampled[b.Name] = append(sampled[b.Name], t)
			entry.transforms = append(entry.transforms, transformOf(m, format))
		}
	}

	var tracks []*mcjson.Track
	for _, name := range joints {
		entry := dopeSheet[name]
		if entry == nil || len(entry.transforms) == 0 {
			r.warnf("bone %q has no animation data - skipped", name)
			continue
		}
		times := make([]float64, len(sampled[name]))
		for i, t := range sampled[name] {
			times[i] = mcjson.Round4(float64(t) / fps)
		}
		tracks = append(tracks, &mcjson.Track{Name: name, Time: times, Transform: entry.transforms})
	}
	return tracks, nil
}

// collapseRuns removes the interior of every run of >=3 identical
// transforms, keeping both endpoints.
func collapseRuns(times []float64, transforms []*mcjson.Transform) ([]float64, []*mcjson.Transform, int) {
	if len(times) <= 2 || len(times) != len(transforms) {
		return times, transforms, 0
	}
	var keep []int
	for i := 0; i < len(times); i++ {
		start := i
		for i+1 < len(times) && transforms[i+1].Equals(transforms[start]) {
			i++
		}
		if i-start+1 >= 3 {
			keep = append(keep, start, i)
		} else {
			for j := start; j <= i; j++ {
				keep = append(keep, j)
			}
		}
	}
	if len(keep) == len(times) {
		return times, transforms, 0
	}
	newTimes := make([]float64, len(keep))
	newTransforms := make([]*mcjson.Transform, len(keep))
	for i, k := range keep {
		newTimes[i] = times[k]
		newTransforms[i] = transforms[k]
	}
	return newTimes, newTransforms, len(times) - len(keep)
}

// OptimizeKeyframes collapses runs of identical samples in every track and
// returns the number of removed keyframes. Applying it twice is a no-op.
func OptimizeKeyframes(tracks []*mcjson.Track) int {
	total := 0
	for _, tr := range tracks {
		times, transforms, removed := collapseRuns(tr.Time, tr.Transform)
		if removed > 0 {
			tr.Time = times
			tr.Transform = transforms
			total += removed
			log.Printf("INFO: optimized %q: removed %d redundant keyframe(s)", tr.Name, removed)
		}
	}
	if total > 0 {
		log.Printf("INFO: total redundant keyframes removed: %d", total)
	}
	return total
}

// OptimizeCameraTrack applies the same run collapsing to the camera track.
func OptimizeCameraTrack(c *mcjson.CameraTrack) int {
	times, transforms, removed := collapseRuns(c.Time, c.Transform)
	if removed > 0 {
		c.Time = times
		c.Transform = transforms
		log.Printf("INFO: optimized camera track: removed %d redundant keyframe(s)", removed)
	}
	return removed
}

// ExportCamera samples the camera object's action into a single decomposed
// track, applying the eye-height offset and up-axis correction.
func ExportCamera(obj *scene.Object, ev *scene.Evaluator, fps float64) (*mcjson.CameraTrack, error) {
	if obj.Anim == nil {
		return nil, fmt.Errorf("camera %q has no animation data: add keyframes or disable camera export", obj.Name)
	}
	action := obj.Anim.Action
	if action == nil {
		return nil, fmt.Errorf("camera %q has no active action: assign an action or disable camera export", obj.Name)
	}

	groups := map[string]bool{}
	hasGroups := false
	for _, c := range action.Curves {
		if c.Group != "" {
			hasGroups = true
			groups[c.Group] = true
		}
	}
	if hasGroups && len(groups) != 1 {
		var names []string
		for n := range groups {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("camera action %q has %d keyframe group(s) (%s), but exactly 1 is expected: consolidate all camera curves into a single group", action.Name, len(groups), strings.Join(names, ", "))
	}

	var frames []int
	seen := map[int]bool{}
	for _, c := range action.Curves {
		for _, f := range c.Frames() {
			if !seen[f] {
				seen[f] = true
				frames = append(frames, f)
			}
		}
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("camera %q action %q contains no keyframes", obj.Name, action.Name)
	}
	sort.Ints(frames)

	correction := geom.NewQuaternionFromAxisAngle(geom.NewVector3(1, 0, 0), -math.Pi/2)
	eyeOffset := geom.NewTranslateMatrix4(0, 0, -1.62)

	track := &mcjson.CameraTrack{}
	for _, f := range frames {
		ev.SetFrame(f)
		world := eyeOffset.Mul(ev.WorldMatrix(obj))
		loc, rot, sca := world.Decompose()
		loc = correction.ApplyTo(loc)
		rot = correction.Mul(rot)
		track.Time = append(track.Time, mcjson.Round4(float64(f)/fps))
		track.Transform = append(track.Transform, &mcjson.Transform{
			Loc: mcjson.RoundSlice([]float64{loc.X, loc.Y, loc.Z}, 6),
			Rot: mcjson.RoundSlice([]float64{rot.W, rot.X, rot.Y, rot.Z}, 6),
			Sca: mcjson.RoundSlice([]float64{sca.X, sca.Y, sca.Z}, 6),
		})
	}
	return track, nil
}

// correctedJoints filters the joint list down to names that are usable skin
// vertex groups on the mesh object, in vertex group order.
func correctedJoints(meshObj, armObj *scene.Object) []string {
	deform := map[string]bool{}
	for _, b := range armObj.Armature.Bones {
		if b.Deform {
			deform[b.Name] = true
		}
	}
	var corrected []string
	for _, g := range meshObj.VertexGroups {
		if g.IsPartGroup() || g.Name == scene.ClothingGroupName {
			continue
		}
		if deform[g.Name] {
			corrected = append(corrected, g.Name)
		}
	}
	return corrected
}

// Export assembles a document from the first mesh, armature and camera
// objects of the scene according to opts.
func Export(s *scene.Scene, opts *ExportOptions) (*mcjson.Document, *Result, error) {
	if opts == nil {
		opts = DefaultExportOptions()
	}
	armFmt := opts.ArmatureFormat
	if armFmt == "" {
		armFmt = FormatMatrix
	}
	animFmt := opts.AnimationFormat
	if animFmt == "" {
		animFmt = FormatAttributes
	}

	var meshObj, armObj, camObj *scene.Object
	for _, o := range s.Objects {
		switch {
		case o.Mesh != nil && meshObj == nil:
			meshObj = o
		case o.Armature != nil && armObj == nil:
			armObj = o
		case o.Camera != nil && camObj == nil:
			camObj = o
		}
	}
	if s.Camera != nil {
		camObj = s.Camera
	}

	r := &Result{}
	exportMesh := opts.Mesh
	exportArm := opts.Armature
	exportAnim := opts.Animation

	if exportMesh && meshObj == nil {
		r.warnf("no mesh object found in the scene; mesh export skipped")
		exportMesh = false
	}
	if armObj == nil {
		if exportArm {
			r.warnf("no armature object found; armature export skipped")
			exportArm = false
		}
		if exportAnim {
			r.warnf("no armature object found; animation export skipped")
			exportAnim = false
		}
	} else if exportAnim {
		if armObj.Anim == nil {
			r.warnf("armature %q has no animation data; animation export skipped", armObj.Name)
			exportAnim = false
		} else if armObj.Anim.Action == nil {
			r.warnf("armature %q has no active action; animation export skipped", armObj.Name)
			exportAnim = false
		}
	}
	if opts.Camera {
		if camObj == nil {
			return nil, r, fmt.Errorf("no camera object found: add a camera or disable camera export")
		}
		if camObj.Anim == nil {
			return nil, r, fmt.Errorf("camera %q has no animation data: add keyframes or disable camera export", camObj.Name)
		}
		if camObj.Anim.Action == nil {
			return nil, r, fmt.Errorf("camera %q has no active action: assign an action or disable camera export", camObj.Name)
		}
	}

	ev := scene.NewEvaluator(s)
	doc := &mcjson.Document{}

	var armRes *mcjson.Armature
	var tracks []*mcjson.Track
	if armObj != nil {
		var err error
		armRes, err = ExportArmature(armObj, opts.VisibleBonesOnly, armFmt)
		if err != nil {
			return nil, r, err
		}
		if exportAnim {
			tracks, err = ExportAnimation(armObj, ev, armRes.Joints, animFmt, opts.BakeAnimation, s.FPS, r)
			if err != nil {
				return nil, r, err
			}
			if opts.OptimizeKeyframes {
				OptimizeKeyframes(tracks)
			}
		}
	}

	if meshObj != nil {
		if armRes != nil {
			armRes.Joints = correctedJoints(meshObj, armObj)
		}
		if exportMesh {
			var joints []string
			if armRes != nil {
				joints = armRes.Joints
			}
			mesh, err := ExportMesh(meshObj, joints, opts.ApplyModifiers, r)
			if err != nil {
				return nil, r, err
			}
			doc.Vertices = mesh
		}
	}

	if opts.Camera {
		cam, err := ExportCamera(camObj, ev, s.FPS)
		if err != nil {
			return nil, r, err
		}
		if opts.OptimizeKeyframes {
			OptimizeCameraTrack(cam)
		}
		doc.Camera = cam
	}

	if armRes != nil && exportArm {
		if armFmt == FormatAttributes {
			doc.ArmatureFormat = mcjson.FormatAttributes
		}
		doc.Armature = armRes
	}
	if tracks != nil && exportAnim {
		if animFmt == FormatAttributes {
			doc.Format = mcjson.FormatAttributes
		}
		doc.Animation = tracks
	}

	if doc.Vertices == nil && doc.Armature == nil && doc.Animation == nil && doc.Camera == nil {
		return nil, r, fmt.Errorf("nothing to export: enable at least one export option and make sure the required objects exist in the scene")
	}
	doc.FPS = s.FPS
	return doc, r, nil
}

func ensureExtension(path, ext string) string {
	if !strings.HasSuffix(strings.ToLower(path), ext) {
		path += ext
	}
	return path
}

// ExportFile exports the scene to a .json document file.
func ExportFile(s *scene.Scene, path string, opts *ExportOptions) (*Result, error) {
	path = ensureExtension(path, ".json")
	doc, r, err := Export(s, opts)
	if err != nil {
		return r, err
	}
	if err := mcjson.WriteFile(path, doc); err != nil {
		return r, fmt.Errorf("failed to write file %q: %w", path, err)
	}
	log.Println("INFO: export completed:", path)
	return r, nil
}

// BatchResult is the aggregate outcome of a per-action batch export.
type BatchResult struct {
	Exported int
	Skipped  int
	Errors   []string
}

var unsafeFilename = regexp.MustCompile(`[<>:"/\\|?*]`)

// ExportActionBatch writes one document per action that drives pose bones,
// temporarily making each action the armature's active one. Failures are
// isolated per action.
func ExportActionBatch(s *scene.Scene, dir string, opts *ExportOptions) (*BatchResult, error) {
	if opts == nil {
		opts = DefaultExportOptions()
	}
	armFmt := opts.ArmatureFormat
	if armFmt == "" {
		armFmt = FormatMatrix
	}
	animFmt := opts.AnimationFormat
	if animFmt == "" {
		animFmt = FormatAttributes
	}

	var armObj *scene.Object
	for _, o := range s.Objects {
		if o.Armature != nil {
			armObj = o
			break
		}
	}
	if armObj == nil {
		return nil, fmt.Errorf("no armature found in the scene")
	}

	armRes, err := ExportArmature(armObj, opts.VisibleBonesOnly, armFmt)
	if err != nil {
		return nil, err
	}

	anim := armObj.EnsureAnimData()
	originalAction := anim.Action
	defer func() { anim.Action = originalAction }()

	ev := scene.NewEvaluator(s)
	res := &BatchResult{}

	for _, action := range s.Actions {
		if !action.HasPoseCurves() {
			res.Skipped++
			continue
		}
		anim.Action = action

		tracks, err := ExportAnimation(armObj, ev, armRes.Joints, animFmt, opts.BakeAnimation, s.FPS, &Result{})
		if err != nil {
			log.Printf("WARNING: skipping action %q: %v", action.Name, err)
			res.Skipped++
			continue
		}
		if opts.OptimizeKeyframes {
			OptimizeKeyframes(tracks)
		}

		doc := &mcjson.Document{FPS: s.FPS}
		if opts.Armature {
			if armFmt == FormatAttributes {
				doc.ArmatureFormat = mcjson.FormatAttributes
			}
			doc.Armature = armRes
		}
		if animFmt == FormatAttributes {
			doc.Format = mcjson.FormatAttributes
		}
		doc.Animation = tracks

		safeName := unsafeFilename.ReplaceAllString(action.Name, "_")
		path := filepath.Join(dir, safeName+".json")
		if err := mcjson.WriteFile(path, doc); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("failed to write %q: %v", path, err))
			continue
		}
		res.Exported++
		log.Printf("INFO: exported action %q -> %s", action.Name, path)
	}

	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			log.Println("ERROR:", e)
		}
	}
	if res.Exported == 0 {
		return res, fmt.Errorf("no actions exported: make sure actions contain pose-bone keyframes")
	}
	log.Printf("INFO: batch export: %d action(s) exported, %d skipped", res.Exported, res.Skipped)
	return res, nil
}
