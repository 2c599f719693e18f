// Package physics simulates the bouncing balls: gravity, a square ground
// plane and sphere contacts.
package physics

import "math"

// Vec3 is a point or direction in world space. Y is up.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v * k.
func (v Vec3) Scale(k float64) Vec3 { return Vec3{v.X * k, v.Y * k, v.Z * k} }

// Dot returns the dot product.
func (v Vec3) Dot(o Vec3) float64 { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }

// Len returns the length of v.
func (v Vec3) Len() float64 { return math.Sqrt(v.Dot(v)) }

// Lerp interpolates from a to b by t.
func Lerp(a, b Vec3, t float64) Vec3 {
	return a.Add(b.Sub(a).Scale(t))
}

// DistanceSquared calculates the squared distance between two points.
// Use this when comparing distances to avoid the sqrt cost.
func DistanceSquared(a, b Vec3) float64 {
	d := b.Sub(a)
	return d.Dot(d)
}

// SpheresOverlap checks if two spheres overlap.
func SpheresOverlap(a Vec3, ra float64, b Vec3, rb float64) bool {
	minDist := ra + rb
	return DistanceSquared(a, b) < minDist*minDist
}
