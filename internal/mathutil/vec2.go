package mathutil

import "math"

// Vec2 is a 2-component vector in screen pixels (y down).
type Vec2 struct {
	X, Y float64
}

func (a Vec2) Add(b Vec2) Vec2 {
	return Vec2{a.X + b.X, a.Y + b.Y}
}

func (a Vec2) Sub(b Vec2) Vec2 {
	return Vec2{a.X - b.X, a.Y - b.Y}
}

func (v Vec2) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Dist returns the Euclidean distance between a and b.
func Dist(a, b Vec2) float64 {
	return b.Sub(a).Len()
}

// AngleDeg returns the angle of the vector from a to b in degrees (atan2).
func AngleDeg(a, b Vec2) float64 {
	d := b.Sub(a)
	return Rad2Deg(math.Atan2(d.Y, d.X))
}
