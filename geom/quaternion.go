package geom

import "math"

type Vector4 struct {
	X Element
	Y Element
	Z Element
	W Element
}

type Quaternion = Vector4

func NewQuaternion(x, y, z, w Element) *Quaternion {
	return &Vector4{X: x, Y: y, Z: z, W: w}
}

func NewIdentityQuaternion() *Quaternion {
	return &Vector4{W: 1}
}

// NewQuaternionFromAxisAngle returns a rotation of angle radians around axis.
func NewQuaternionFromAxisAngle(axis *Vector3, angle Element) *Quaternion {
	s := math.Sin(angle / 2)
	return &Vector4{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: math.Cos(angle / 2),
	}
}

// NewQuaternionFromMatrix extracts the rotation of mat. The upper 3x3 part
// must be orthonormal.
func NewQuaternionFromMatrix(mat *Matrix4) *Quaternion {
	m11, m12, m13 := mat[0], mat[4], mat[8]
	m21, m22, m23 := mat[1], mat[5], mat[9]
	m31, m32, m33 := mat[2], mat[6], mat[10]
	trace := m11 + m22 + m33

	q := &Vector4{}
	if trace > 0 {
		s := 0.5 / math.Sqrt(trace+1)
		q.W = 0.25 / s
		q.X = (m32 - m23) * s
		q.Y = (m13 - m31) * s
		q.Z = (m21 - m12) * s
	} else if m11 > m22 && m11 > m33 {
		s := 2 * math.Sqrt(1+m11-m22-m33)
		q.W = (m32 - m23) / s
		q.X = 0.25 * s
		q.Y = (m12 + m21) / s
		q.Z = (m13 + m31) / s
	} else if m22 > m33 {
		s := 2 * math.Sqrt(1+m22-m11-m33)
		q.W = (m13 - m31) / s
		q.X = (m12 + m21) / s
		q.Y = 0.25 * s
		q.Z = (m23 + m32) / s
	} else {
		s := 2 * math.Sqrt(1+m33-m11-m22)
		q.W = (m21 - m12) / s
		q.X = (m13 + m31) / s
		q.Y = (m23 + m32) / s
		q.Z = 0.25 * s
	}
	return q
}

func (v *Vector4) Add(v2 *Vector4) *Vector4 {
	return &Vector4{X: v.X + v2.X, Y: v.Y + v2.Y, Z: v.Z + v2.Z, W: v.W + v2.W}
}

func (v *Vector4) Sub(v2 *Vector4) *Vector4 {
	return &Vector4{X: v.X - v2.X, Y: v.Y - v2.Y, Z: v.Z - v2.Z, W: v.W - v2.W}
}

func (v *Vector4) Dot(v2 *Vector4) Element {
	return v.X*v2.X + v.Y*v2.Y + v.Z*v2.Z + v.W*v2.W
}

func (v *Vector4) Len() Element {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z + v.W*v.W)
}

func (v *Vector4) Normalize() *Vector4 {
	l := v.Len()
	if l > 0 {
		v.X /= l
		v.Y /= l
		v.Z /= l
		v.W /= l
	} else {
		v.W = 1
	}
	return v
}

func (v *Vector4) Negate() *Vector4 {
	return &Vector4{X: -v.X, Y: -v.Y, Z: -v.Z, W: -v.W}
}

// Inverse returns the conjugate. Valid as an inverse for unit quaternions.
func (v *Vector4) Inverse() *Vector4 {
	return &Vector4{X: -v.X, Y: -v.Y, Z: -v.Z, W: v.W}
}

// Returns Hamilton product
func (a *Vector4) Mul(b *Vector4) *Vector4 {
	return &Vector4{
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z, // 1
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y, // i
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X, // j
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W, // k
	}
}

// ApplyTo rotates v by the quaternion: q * v * q^-1.
func (q *Vector4) ApplyTo(v *Vector3) *Vector3 {
	p := &Vector4{X: v.X, Y: v.Y, Z: v.Z}
	r := q.Mul(p).Mul(q.Inverse())
	return &Vector3{X: r.X, Y: r.Y, Z: r.Z}
}
