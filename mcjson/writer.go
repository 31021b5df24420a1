package mcjson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// The document is pretty-printed with 4-space indentation, but flat numeric
// arrays must stay on a single line. The writer first builds a value tree
// with typed inline leaves, then prints it, emitting inline leaves compactly.

const indentUnit = "    "

type inline struct {
	value interface{}
}

type member struct {
	key   string
	value interface{}
}

type object []member

type attrValue struct {
	Loc []float64 `json:"loc"`
	Rot []float64 `json:"rot"`
	Sca []float64 `json:"sca"`
}

// Write serializes the document.
func Write(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	if err := writeValue(bw, encodeDocument(doc), 0); err != nil {
		return err
	}
	return bw.Flush()
}

func WriteFile(path string, doc *Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Write(f, doc)
}

func encodeDocument(doc *Document) object {
	var o object
	if doc.Vertices != nil {
		o = append(o, member{"vertices", encodeMesh(doc.Vertices)})
	}
	if doc.ArmatureFormat != "" {
		o = append(o, member{"armature_format", doc.ArmatureFormat})
	}
	if doc.Armature != nil {
		o = append(o, member{"armature", encodeArmature(doc.Armature)})
	}
	if doc.Format != "" {
		o = append(o, member{"format", doc.Format})
	}
	if doc.Animation != nil {
		tracks := make([]interface{}, len(doc.Animation))
		for i, t := range doc.Animation {
			tracks[i] = encodeTrack(t)
		}
		o = append(o, member{"animation", tracks})
	}
	if doc.Camera != nil {
		o = append(o, member{"camera", object{
			{"time", inline{doc.Camera.Time}},
			{"transform", encodeTransforms(doc.Camera.Transform)},
		}})
	}
	o = append(o, member{"fps", doc.FPS})
	return o
}

func encodeMesh(m *Mesh) object {
	var o object
	o = append(o, member{"positions", encodeArray(m.Positions)})
	o = append(o, member{"uvs", encodeArray(m.UVs)})
	o = append(o, member{"normals", encodeArray(m.Normals)})
	if m.VCounts != nil {
		o = append(o, member{"vcounts", encodeArray(m.VCounts)})
	}
	if m.Weights != nil {
		o = append(o, member{"weights", encodeArray(m.Weights)})
	}
	if m.VIndices != nil {
		o = append(o, member{"vindices", encodeArray(m.VIndices)})
	}
	var parts object
	for _, name := range m.partNames() {
		parts = append(parts, member{name, encodeArray(m.Parts[name])})
	}
	o = append(o, member{"parts", parts})
	return o
}

func (m *Mesh) partNames() []string {
	if len(m.PartOrder) == len(m.Parts) {
		return m.PartOrder
	}
	names := make([]string, 0, len(m.Parts))
	for name := range m.Parts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func encodeArray(rec *ArrayRecord) object {
	return object{
		{"stride", rec.Stride},
		{"count", rec.Count},
		{"array", inline{rec.Array}},
	}
}

func encodeArmature(a *Armature) object {
	nodes := make([]interface{}, len(a.Hierarchy))
	for i, n := range a.Hierarchy {
		nodes[i] = encodeBoneNode(n)
	}
	return object{
		{"joints", inline{a.Joints}},
		{"hierarchy", nodes},
	}
}

func encodeBoneNode(n *BoneNode) object {
	children := make([]interface{}, len(n.Children))
	for i, c := range n.Children {
		children[i] = encodeBoneNode(c)
	}
	return object{
		{"name", n.Name},
		{"transform", encodeTransform(n.Transform)},
		{"children", children},
	}
}

func encodeTrack(t *Track) object {
	return object{
		{"name", t.Name},
		{"time", inline{t.Time}},
		{"transform", encodeTransforms(t.Transform)},
	}
}

func encodeTransforms(ts []*Transform) []interface{} {
	out := make([]interface{}, len(ts))
	for i, t := range ts {
		out[i] = encodeTransform(t)
	}
	return out
}

func encodeTransform(t *Transform) interface{} {
	if t.IsAttr() {
		return inline{attrValue{Loc: t.Loc, Rot: t.Rot, Sca: t.Sca}}
	}
	return inline{t.Matrix}
}

func writeValue(w *bufio.Writer, v interface{}, depth int) error {
	switch v := v.(type) {
	case object:
		if len(v) == 0 {
			_, err := w.WriteString("{}")
			return err
		}
		w.WriteString("{\n")
		for i, m := range v {
			writeIndent(w, depth+1)
			key, err := json.Marshal(m.key)
			if err != nil {
				return err
			}
			w.Write(key)
			w.WriteString(": ")
			if err := writeValue(w, m.value, depth+1); err != nil {
				return err
			}
			if i != len(v)-1 {
				w.WriteString(",")
			}
			w.WriteString("\n")
		}
		writeIndent(w, depth)
		_, err := w.WriteString("}")
		return err
	case []interface{}:
		if len(v) == 0 {
			_, err := w.WriteString("[]")
			return err
		}
		w.WriteString("[\n")
		for i, e := range v {
			writeIndent(w, depth+1)
			if err := writeValue(w, e, depth+1); err != nil {
				return err
			}
			if i != len(v)-1 {
				w.WriteString(",")
			}
			w.WriteString("\n")
		}
		writeIndent(w, depth)
		_, err := w.WriteString("]")
		return err
	case inline:
		b, err := json.Marshal(v.value)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("mcjson: unsupported value %T: %w", v, err)
		}
		_, err = w.Write(b)
		return err
	}
}

func writeIndent(w *bufio.Writer, depth int) {
	for i := 0; i < depth; i++ {
		w.WriteString(indentUnit)
	}
}
