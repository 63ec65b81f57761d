package mathutil

import "math"

// Translate returns a translation by (tx, ty).
func Translate(tx, ty float64) Mat3 {
	return Mat3{
		1, 0, tx,
		0, 1, ty,
		0, 0, 1,
	}
}

// Rotate returns a rotation by deg degrees. With y pointing down (screen
// space) positive angles turn clockwise, matching CSS rotate().
func Rotate(deg float64) Mat3 {
	c, s := math.Cos(Deg2Rad(deg)), math.Sin(Deg2Rad(deg))
	return Mat3{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	}
}

// Scale returns a uniform scale.
func Scale(s float64) Mat3 {
	return Mat3{
		s, 0, 0,
		0, s, 0,
		0, 0, 1,
	}
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(d float64) float64 {
	return d * math.Pi / 180
}

// Rad2Deg converts radians to degrees.
func Rad2Deg(r float64) float64 {
	return r * 180 / math.Pi
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
