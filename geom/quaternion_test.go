package geom

import (
	"math"
	"testing"
)

func TestQuaternionMul(t *testing.T) {
	const eps = 0.000001

	a := NewQuaternionFromAxisAngle(NewVector3(0, 0, 1), math.Pi/4)
	b := NewQuaternionFromAxisAngle(NewVector3(0, 0, 1), math.Pi/4)
	c := a.Mul(b)

	half := NewQuaternionFromAxisAngle(NewVector3(0, 0, 1), math.Pi/2)
	if c.Sub(half).Len() > eps {
		t.Error("45+45 != 90: ", c, half)
	}

	ident := a.Mul(a.Inverse())
	if ident.Sub(NewIdentityQuaternion()).Len() > eps {
		t.Error("q * q^-1 != identity: ", ident)
	}
}

func TestQuaternionFromMatrix(t *testing.T) {
	const eps = 0.000001

	axes := []*Vector3{
		NewVector3(1, 0, 0),
		NewVector3(0, 1, 0),
		NewVector3(0, 0, 1),
		NewVector3(1, 1, 0.5).Normalize(),
	}
	for _, axis := range axes {
		for _, angle := range []Element{0.1, 1.5, math.Pi - 0.1, -2.0} {
			q := NewQuaternionFromAxisAngle(axis, angle)
			q2 := NewQuaternionFromMatrix(NewRotationMatrix4FromQuaternion(q))
			if q2.Dot(q) < 0 {
				q2 = q2.Negate()
			}
			if q.Sub(q2).Len() > eps {
				t.Error("axis:", axis, "angle:", angle, q, q2)
			}
		}
	}
}

func TestQuaternionApplyTo(t *testing.T) {
	const eps = 0.000001

	q := NewQuaternionFromAxisAngle(NewVector3(1, 0, 0), math.Pi/2)
	v := q.ApplyTo(NewVector3(0, 1, 0))
	if v.Sub(NewVector3(0, 0, 1)).Len() > eps {
		t.Error("rotate y into z: ", v)
	}
}
