package geom

import (
	"math"
	"testing"
)

func TestDecomposeMatrix(t *testing.T) {
	const eps = 0.000001

	pos := NewVector3(1, 2, 3)
	rot := NewQuaternionFromAxisAngle(NewVector3(0, 0, 1), 30*math.Pi/180)
	scale := NewVector3(1.5, 1.6, 1.7)

	mat := NewTRSMatrix4(pos, rot, scale)
	pos1, rot1, scale1 := mat.Decompose()

	if pos.Sub(pos1).Len() > eps {
		t.Error("pos: ", pos, pos1)
	}
	if rot.Sub(rot1).Len() > eps {
		t.Error("rot: ", rot, rot1)
	}
	if scale.Sub(scale1).Len() > eps {
		t.Error("scale: ", scale, scale1)
	}

	mat2 := NewRotationMatrix4FromQuaternion(rot)
	pos1, rot1, scale1 = mat2.Decompose()
	if rot.Sub(rot1).Len() > eps {
		t.Error("rot: ", rot, rot1)
	}
	if pos1.Len() > eps {
		t.Error("pos: ", pos1)
	}
	if scale1.Sub(NewVector3(1, 1, 1)).Len() > eps {
		t.Error("scale: ", scale1)
	}
}

func TestMatrixInverse(t *testing.T) {
	const eps = 0.000001

	mat := NewTRSMatrix4(
		NewVector3(1, -2, 0.5),
		NewQuaternionFromAxisAngle(NewVector3(1, 0, 0).Normalize(), 0.4),
		NewVector3(2, 2, 2))

	ident := mat.Mul(mat.Inverse())
	if !ident.NearEquals(NewMatrix4(), eps) {
		t.Error("mat * mat^-1 != I: ", ident)
	}
}

func TestMatrixRowMajor(t *testing.T) {
	mat := NewTranslateMatrix4(1, 2, 3)
	rows := mat.ToRowMajor()

	// translation is the last column in row-major order
	if rows[3] != 1 || rows[7] != 2 || rows[11] != 3 {
		t.Error("rows: ", rows)
	}

	mat2 := NewMatrix4FromRowMajor(rows)
	if *mat2 != *mat {
		t.Error("round trip: ", mat, mat2)
	}
}

func TestMatrixApplyTo(t *testing.T) {
	const eps = 0.000001

	rot := NewQuaternionFromAxisAngle(NewVector3(0, 0, 1), math.Pi/2)
	mat := NewRotationMatrix4FromQuaternion(rot)

	v := mat.ApplyTo(NewVector3(1, 0, 0))
	if v.Sub(NewVector3(0, 1, 0)).Len() > eps {
		t.Error("rotate x into y: ", v)
	}

	v2 := rot.ApplyTo(NewVector3(1, 0, 0))
	if v.Sub(v2).Len() > eps {
		t.Error("matrix and quaternion rotation disagree: ", v, v2)
	}
}
