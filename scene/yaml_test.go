package scene

import (
	"bytes"
	"strings"
	"testing"
)

const sampleSceneYAML = `
fps: 24
frame_start: 1
frame_end: 20
actions:
  - name: walk
    curves:
      - bone: Root
        path: location
        index: 0
        keyframes: [[1, 0], [20, 2]]
objects:
  - name: rig
    action: walk
    armature:
      bones:
        - name: Root
        - name: Helper
          parent: Root
          deform: false
        - name: Tip
          parent: Helper
          matrix: [1, 0, 0, 0, 0, 1, 0, 2, 0, 0, 1, 0, 0, 0, 0, 1]
  - name: body
    parent: rig
    mesh:
      vertices: [[0, 0, 0], [1, 0, 0], [0, 1, 0]]
      faces:
        - verts: [0, 1, 2]
          uvs: [[0, 0], [1, 0], [0, 1]]
    vertex_groups:
      - name: Root
        weights: {0: 1, 1: 0.5}
  - name: cam
    camera: true
    location: [1, 2, 3]
`

func TestLoadScene(t *testing.T) {
	s, err := Load(strings.NewReader(sampleSceneYAML))
	if err != nil {
		t.Fatal(err)
	}
	if s.FPS != 24 || s.FrameStart != 1 || s.FrameEnd != 20 {
		t.Errorf("timeline: fps=%v range=(%d,%d)", s.FPS, s.FrameStart, s.FrameEnd)
	}

	rig := s.ObjectByName("rig")
	if rig == nil || rig.Armature == nil {
		t.Fatal("rig not loaded")
	}
	helper := rig.Armature.Bone("Helper")
	if helper == nil || helper.Deform {
		t.Error("Helper should be a non-deform bone")
	}
	tip := rig.Armature.Bone("Tip")
	if tip == nil || tip.Parent != helper {
		t.Fatal("Tip parent not linked")
	}
	// row-major input: translation y = 2
	if tip.Matrix.Translation().Y != 2 {
		t.Errorf("Tip translation = %v", tip.Matrix.Translation())
	}
	if rig.Action() == nil || rig.Action().Name != "walk" {
		t.Error("action not attached")
	}

	body := s.ObjectByName("body")
	if body == nil || body.Mesh == nil {
		t.Fatal("body not loaded")
	}
	if body.Parent != rig {
		t.Error("body parent not linked")
	}
	if len(body.Modifiers) != 1 {
		t.Error("armature modifier not added for parented mesh")
	}
	if w, ok := body.VertexGroup("Root").Weight(1); !ok || w != 0.5 {
		t.Errorf("weight = %v, %v", w, ok)
	}

	if s.Camera == nil || s.Camera.Name != "cam" {
		t.Error("camera object not detected")
	}
	if s.Camera.Location.Z != 3 {
		t.Errorf("camera location = %v", s.Camera.Location)
	}
}

func TestSceneRoundTrip(t *testing.T) {
	s, err := Load(strings.NewReader(sampleSceneYAML))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Save(&buf, s); err != nil {
		t.Fatal(err)
	}
	s2, err := Load(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if len(s2.Objects) != len(s.Objects) || len(s2.Actions) != len(s.Actions) {
		t.Fatalf("objects=%d actions=%d", len(s2.Objects), len(s2.Actions))
	}
	rig := s2.ObjectByName("rig")
	if rig.Armature.Bone("Tip").Matrix.Translation().Y != 2 {
		t.Error("bone matrix lost in round trip")
	}
	c := s2.ActionByName("walk").Curve("Root", PathLocation, 0)
	if c == nil || len(c.Keyframes) != 2 || c.Keyframes[1].Value != 2 {
		t.Error("curve lost in round trip")
	}
	body := s2.ObjectByName("body")
	if len(body.Mesh.Faces) != 1 || !body.Mesh.Faces[0].HasUVs() {
		t.Error("mesh lost in round trip")
	}
	if s2.Camera == nil || s2.Camera.Location.Y != 2 {
		t.Error("camera base transform lost in round trip")
	}
}

func TestLoadSceneErrors(t *testing.T) {
	cases := []string{
		"objects:\n  - name: a\n    parent: missing\n",
		"objects:\n  - name: a\n    action: missing\n",
		"objects:\n  - name: a\n    armature:\n      bones:\n        - name: b\n          parent: missing\n",
	}
	for i, src := range cases {
		if _, err := Load(strings.NewReader(src)); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}
