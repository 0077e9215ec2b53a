package domain

import "math"

// Vec3 - позиция в мире. Мир непрерывный, без тайловой сетки.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Origin возвращает нулевую точку мира (место появления новых сущностей).
func Origin() Vec3 {
	return Vec3{}
}

// DistanceTo возвращает точное евклидово расстояние до другой точки (по всем трем осям)
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// IsFinite проверяет, что все координаты - конечные числа.
// NaN и Inf приходят из сломанных решений оракула, их нельзя пускать в стейт.
func (v Vec3) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

// Add возвращает новую позицию со смещением (не меняя текущую, т.к. Go передает структуры по значению)
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}
