package mcjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Parse reads a document. Unknown top-level keys are ignored.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Vertices       *Mesh        `json:"vertices"`
		ArmatureFormat string       `json:"armature_format"`
		Armature       *Armature    `json:"armature"`
		Format         string       `json:"format"`
		Animation      []*Track     `json:"animation"`
		Camera         *CameraTrack `json:"camera"`
		FPS            float64      `json:"fps"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("mcjson: %w", err)
	}
	return &Document{
		Vertices:       raw.Vertices,
		ArmatureFormat: raw.ArmatureFormat,
		Armature:       raw.Armature,
		Format:         raw.Format,
		Animation:      raw.Animation,
		Camera:         raw.Camera,
		FPS:            raw.FPS,
	}, nil
}

func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// UnmarshalJSON accepts either a 16-element flat matrix array or a
// {loc, rot, sca} object.
func (t *Transform) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty transform")
	}
	if trimmed[0] == '[' {
		var mat []float64
		if err := json.Unmarshal(trimmed, &mat); err != nil {
			return err
		}
		if len(mat) != 16 {
			return fmt.Errorf("matrix data must have 16 elements, got %d", len(mat))
		}
		t.Matrix = mat
		return nil
	}
	var attr attrValue
	if err := json.Unmarshal(trimmed, &attr); err != nil {
		return err
	}
	if attr.Loc == nil {
		return fmt.Errorf("transform missing 'loc'")
	}
	if attr.Rot == nil {
		return fmt.Errorf("transform missing 'rot'")
	}
	if attr.Sca == nil {
		return fmt.Errorf("transform missing 'sca'")
	}
	t.Loc, t.Rot, t.Sca = attr.Loc, attr.Rot, attr.Sca
	return nil
}

// UnmarshalJSON keeps the document order of the parts object.
func (m *Mesh) UnmarshalJSON(data []byte) error {
	var raw struct {
		Positions *ArrayRecord    `json:"positions"`
		UVs       *ArrayRecord    `json:"uvs"`
		Normals   *ArrayRecord    `json:"normals"`
		VCounts   *ArrayRecord    `json:"vcounts"`
		Weights   *ArrayRecord    `json:"weights"`
		VIndices  *ArrayRecord    `json:"vindices"`
		Parts     json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Positions = raw.Positions
	m.UVs = raw.UVs
	m.Normals = raw.Normals
	m.VCounts = raw.VCounts
	m.Weights = raw.Weights
	m.VIndices = raw.VIndices
	m.Parts = map[string]*ArrayRecord{}
	m.PartOrder = nil
	if raw.Parts == nil {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw.Parts))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("parts must be an object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name := tok.(string)
		var rec ArrayRecord
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("part %q: %w", name, err)
		}
		m.Parts[name] = &rec
		m.PartOrder = append(m.PartOrder, name)
	}
	return nil
}
