package scene

import (
	"math"
	"sort"
)

const (
	PathLocation = "location"
	PathRotation = "rotation_quaternion"
	PathScale    = "scale"
)

const InterpolationLinear = "LINEAR"

type Keyframe struct {
	Frame         float64
	Value         float64
	Interpolation string
}

// FCurve animates one component of one channel. Bone is empty for
// object-level channels. Rotation indices are w,x,y,z.
type FCurve struct {
	Bone      string
	Path      string
	Index     int
	Group     string
	Keyframes []*Keyframe
}

// InsertKeyframe adds or replaces the key at frame, keeping keys sorted.
func (c *FCurve) InsertKeyframe(frame, value float64, interpolation string) {
	kf := &Keyframe{Frame: frame, Value: value, Interpolation: interpolation}
	i := sort.Search(len(c.Keyframes), func(i int) bool {
		return c.Keyframes[i].Frame >= frame
	})
	if i < len(c.Keyframes) && c.Keyframes[i].Frame == frame {
		c.Keyframes[i] = kf
		return
	}
	c.Keyframes = append(c.Keyframes, nil)
	copy(c.Keyframes[i+1:], c.Keyframes[i:])
	c.Keyframes[i] = kf
}

// Evaluate samples the curve at frame with linear interpolation and constant
// extrapolation. ok is false when the curve has no keyframes.
func (c *FCurve) Evaluate(frame float64) (float64, bool) {
	if len(c.Keyframes) == 0 {
		return 0, false
	}
	if frame <= c.Keyframes[0].Frame {
		return c.Keyframes[0].Value, true
	}
	last := c.Keyframes[len(c.Keyframes)-1]
	if frame >= last.Frame {
		return last.Value, true
	}
	i := sort.Search(len(c.Keyframes), func(i int) bool {
		return c.Keyframes[i].Frame >= frame
	})
	k0, k1 := c.Keyframes[i-1], c.Keyframes[i]
	t := (frame - k0.Frame) / (k1.Frame - k0.Frame)
	return k0.Value + (k1.Value-k0.Value)*t, true
}

// Frames returns the integer keyframe times in curve order.
func (c *FCurve) Frames() []int {
	frames := make([]int, len(c.Keyframes))
	for i, kf := range c.Keyframes {
		frames[i] = int(kf.Frame)
	}
	return frames
}

type Action struct {
	Name   string
	Curves []*FCurve
}

func NewAction(name string) *Action {
	return &Action{Name: name}
}

func (a *Action) Curve(bone, path string, index int) *FCurve {
	for _, c := range a.Curves {
		if c.Bone == bone && c.Path == path && c.Index == index {
			return c
		}
	}
	return nil
}

func (a *Action) EnsureCurve(bone, path string, index int) *FCurve {
	if c := a.Curve(bone, path, index); c != nil {
		return c
	}
	c := &FCurve{Bone: bone, Path: path, Index: index, Group: bone}
	a.Curves = append(a.Curves, c)
	return c
}

// FrameRange returns the lowest and highest keyframe times over all curves.
func (a *Action) FrameRange() (int, int) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, c := range a.Curves {
		for _, kf := range c.Keyframes {
			lo = math.Min(lo, kf.Frame)
			hi = math.Max(hi, kf.Frame)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, -1
	}
	return int(lo), int(hi)
}

// HasPoseCurves reports whether any curve targets a pose bone.
func (a *Action) HasPoseCurves() bool {
	for _, c := range a.Curves {
		if c.Bone != "" {
			return true
		}
	}
	return false
}
