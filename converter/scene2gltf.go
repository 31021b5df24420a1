package converter

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/miniscene/mcanim/geom"
	"github.com/miniscene/mcanim/mcjson"
	"github.com/miniscene/mcanim/scene"
)

// SceneToGLTF builds a glTF preview of the scene: skinned mesh primitives
// per part, bone nodes and a linear-sampled animation. Intended for quick
// visual checks, not as a full interchange path.
func SceneToGLTF(s *scene.Scene) (*gltf.Document, error) {
	g := &sceneToGltf{Document: gltf.NewDocument()}
	return g.convert(s)
}

// SaveGLB writes the scene preview as a binary glTF file.
func SaveGLB(s *scene.Scene, path string) error {
	doc, err := SceneToGLTF(s)
	if err != nil {
		return err
	}
	return gltf.SaveBinary(doc, path)
}

type sceneToGltf struct {
	*gltf.Document
	nodeByBone map[string]uint32
}

func (g *sceneToGltf) convert(s *scene.Scene) (*gltf.Document, error) {
	var meshObj, armObj *scene.Object
	for _, o := range s.Objects {
		if o.Mesh != nil && meshObj == nil {
			meshObj = o
		}
		if o.Armature != nil && armObj == nil {
			armObj = o
		}
	}
	if meshObj == nil && armObj == nil {
		return nil, fmt.Errorf("scene has no mesh or armature to preview")
	}

	var joints []string
	if armObj != nil {
		joints = g.addBoneNodes(armObj)
	}

	if meshObj != nil {
		var skinJoints []string
		if armObj != nil {
			skinJoints = correctedJoints(meshObj, armObj)
		}
		if err := g.addMesh(meshObj, armObj, skinJoints); err != nil {
			return nil, err
		}
	}

	if armObj != nil && armObj.Action() != nil {
		ev := scene.NewEvaluator(s)
		tracks, err := ExportAnimation(armObj, ev, joints, FormatMatrix, false, s.FPS, &Result{})
		if err == nil {
			g.addAnimation(armObj.Action().Name, tracks)
		}
	}

	if s.Camera != nil {
		g.addCameraNode(s.Camera)
	}
	return g.Document, nil
}

// addBoneNodes creates one node per deform bone, parented along the
// deform-ancestor relation, and returns the joint names in node order.
func (g *sceneToGltf) addBoneNodes(armObj *scene.Object) []string {
	g.nodeByBone = map[string]uint32{}
	var joints []string

	for _, b := range armObj.Armature.Bones {
		if !b.Deform {
			continue
		}
		idx := uint32(len(g.Nodes))
		g.nodeByBone[b.Name] = idx
		joints = append(joints, b.Name)

		head := b.Matrix.Translation()
		node := &gltf.Node{Name: b.Name, Rotation: [4]float32{0, 0, 0, 1}}
		if dp := b.DeformParent(); dp != nil {
			p := dp.Matrix.Translation()
			node.Translation = [3]float32{float32(head.X - p.X), float32(head.Y - p.Y), float32(head.Z - p.Z)}
			parent := g.Nodes[g.nodeByBone[dp.Name]]
			parent.Children = append(parent.Children, idx)
		} else {
			node.Translation = [3]float32{float32(head.X), float32(head.Y), float32(head.Z)}
			g.Scenes[0].Nodes = append(g.Scenes[0].Nodes, idx)
		}
		g.Nodes = append(g.Nodes, node)
	}
	return joints
}

func (g *sceneToGltf) addMatrices(mat [][4][4]float32) uint32 {
	a := make([][4]float32, len(mat)*4)
	for i, m := range mat {
		a[i*4+0] = m[0]
		a[i*4+1] = m[1]
		a[i*4+2] = m[2]
		a[i*4+3] = m[3]
	}
	acc := modeler.WriteTangent(g.Document, a)
	g.Accessors[acc].Type = gltf.AccessorMat4
	g.Accessors[acc].Count /= 4
	g.BufferViews[*g.Accessors[acc].BufferView].ByteStride *= 4
	return acc
}

func (g *sceneToGltf) addSkin(armObj *scene.Object, skinJoints []string) uint32 {
	var nodes []uint32
	invmats := make([][4][4]float32, 0, len(skinJoints))
	for _, name := range skinJoints {
		nodes = append(nodes, g.nodeByBone[name])
		head := armObj.Armature.Bone(name).Matrix.Translation()
		invmats = append(invmats, [4][4]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0, 0, 1, 0},
			{float32(-head.X), float32(-head.Y), float32(-head.Z), 1},
		})
	}
	g.Skins = append(g.Skins, &gltf.Skin{
		Joints:              nodes,
		InverseBindMatrices: gltf.Index(g.addMatrices(invmats)),
	})
	return uint32(len(g.Skins) - 1)
}

func (g *sceneToGltf) addMesh(meshObj, armObj *scene.Object, skinJoints []string) error {
	record, err := ExportMesh(meshObj, skinJoints, true, &Result{})
	if err != nil {
		return err
	}

	// per-vertex joint/weight sets from the weight palette
	var baseJoints [][4]uint16
	var baseWeights [][4]float32
	skinned := record.VCounts != nil && record.VIndices != nil && record.Weights != nil
	if skinned {
		n := record.Positions.Count
		baseJoints = make([][4]uint16, n)
		baseWeights = make([][4]float32, n)
		ptr := 0
		for vi := 0; vi < n && vi < len(record.VCounts.Array); vi++ {
			count := int(record.VCounts.Array[vi])
			for k := 0; k < count && ptr+1 < len(record.VIndices.Array); k++ {
				if k < 4 {
					baseJoints[vi][k] = uint16(record.VIndices.Array[ptr])
					baseWeights[vi][k] = float32(record.Weights.Array[int(record.VIndices.Array[ptr+1])])
				}
				ptr += 2
			}
		}
	}

	// expand (vertex, uv, normal) index triples into a unified vertex stream
	var positions [][3]float32
	var texcoords [][2]float32
	var normals [][3]float32
	var joints0 [][4]uint16
	var weights0 [][4]float32
	combos := map[[3]int]uint32{}

	addVertex := func(v, uv, n int) uint32 {
		key := [3]int{v, uv, n}
		if idx, ok := combos[key]; ok {
			return idx
		}
		idx := uint32(len(positions))
		combos[key] = idx
		pa := record.Positions.Array
		positions = append(positions, [3]float32{float32(pa[v*3]), float32(pa[v*3+1]), float32(pa[v*3+2])})
		ua := record.UVs.Array
		texcoords = append(texcoords, [2]float32{float32(ua[uv*2]), float32(ua[uv*2+1])})
		na := record.Normals.Array
		normals = append(normals, [3]float32{float32(na[n*3]), float32(na[n*3+1]), float32(na[n*3+2])})
		if skinned {
			joints0 = append(joints0, baseJoints[v])
			weights0 = append(weights0, baseWeights[v])
		}
		return idx
	}

	partIndices := map[string][]uint32{}
	for _, partName := range record.PartOrder {
		arr := record.Parts[partName].Array
		for i := 0; i+8 < len(arr); i += 9 {
			partIndices[partName] = append(partIndices[partName],
				addVertex(int(arr[i]), int(arr[i+1]), int(arr[i+2])),
				addVertex(int(arr[i+3]), int(arr[i+4]), int(arr[i+5])),
				addVertex(int(arr[i+6]), int(arr[i+7]), int(arr[i+8])))
		}
	}

	attributes := map[string]uint32{
		"POSITION":   modeler.WritePosition(g.Document, positions),
		"TEXCOORD_0": modeler.WriteTextureCoord(g.Document, texcoords),
		"NORMAL":     modeler.WriteNormal(g.Document, normals),
	}
	if skinned {
		attributes["JOINTS_0"] = modeler.WriteJoints(g.Document, joints0)
		attributes["WEIGHTS_0"] = modeler.WriteWeights(g.Document, weights0)
	}

	// primitive per part
	var primitives []*gltf.Primitive
	for _, partName := range record.PartOrder {
		primitives = append(primitives, &gltf.Primitive{
			Indices:    gltf.Index(modeler.WriteIndices(g.Document, partIndices[partName])),
			Attributes: attributes,
			Extras:     map[string]interface{}{"part": partName},
		})
	}

	meshIdx := uint32(len(g.Meshes))
	g.Meshes = append(g.Meshes, &gltf.Mesh{Name: meshObj.Name, Primitives: primitives})

	node := &gltf.Node{Name: meshObj.Name, Mesh: gltf.Index(meshIdx)}
	if skinned && armObj != nil {
		node.Skin = gltf.Index(g.addSkin(armObj, skinJoints))
	}
	nodeIdx := uint32(len(g.Nodes))
	g.Nodes = append(g.Nodes, node)
	g.Scenes[0].Nodes = append(g.Scenes[0].Nodes, nodeIdx)
	return nil
}

// addAnimation converts parent-relative matrix tracks into per-node TRS
// samplers. The matrix form of a track sample is exactly the glTF node's
// local transform.
func (g *sceneToGltf) addAnimation(name string, tracks []*mcjson.Track) {
	a := &gltf.Animation{Name: name}

	for _, track := range tracks {
		node, ok := g.nodeByBone[track.Name]
		if !ok {
			continue
		}
		keys := make([]float32, len(track.Time))
		for i, t := range track.Time {
			keys[i] = float32(t)
		}
		translations := make([][3]float32, len(track.Transform))
		rotations := make([][4]float32, len(track.Transform))
		scales := make([][3]float32, len(track.Transform))
		for i, tr := range track.Transform {
			m, err := composeTransform(tr)
			if err != nil {
				m = geom.NewMatrix4()
			}
			loc, rot, sca := m.Decompose()
			translations[i] = [3]float32{float32(loc.X), float32(loc.Y), float32(loc.Z)}
			rotations[i] = [4]float32{float32(rot.X), float32(rot.Y), float32(rot.Z), float32(rot.W)}
			scales[i] = [3]float32{float32(sca.X), float32(sca.Y), float32(sca.Z)}
		}

		keysAcc := modeler.WriteAccessor(g.Document, gltf.TargetArrayBuffer, keys)
		addChannel := func(output uint32, path gltf.TRSProperty) {
			a.Samplers = append(a.Samplers, &gltf.AnimationSampler{
				Input:         keysAcc,
				Output:        output,
				Interpolation: gltf.InterpolationLinear,
			})
			a.Channels = append(a.Channels, &gltf.Channel{
				Sampler: gltf.Index(uint32(len(a.Samplers) - 1)),
				Target:  gltf.ChannelTarget{Node: gltf.Index(node), Path: path},
			})
		}
		addChannel(modeler.WritePosition(g.Document, translations), gltf.TRSTranslation)
		addChannel(modeler.WriteTangent(g.Document, rotations), gltf.TRSRotation)
		addChannel(modeler.WritePosition(g.Document, scales), gltf.TRSScale)
	}

	if len(a.Channels) > 0 {
		g.Animations = append(g.Animations, a)
	}
}

func (g *sceneToGltf) addCameraNode(camObj *scene.Object) {
	loc := camObj.Location
	idx := uint32(len(g.Nodes))
	g.Nodes = append(g.Nodes, &gltf.Node{
		Name:        camObj.Name,
		Translation: [3]float32{float32(loc.X), float32(loc.Y), float32(loc.Z)},
		Rotation: [4]float32{
			float32(camObj.Rotation.X), float32(camObj.Rotation.Y),
			float32(camObj.Rotation.Z), float32(camObj.Rotation.W),
		},
	})
	g.Scenes[0].Nodes = append(g.Scenes[0].Nodes, idx)
}
