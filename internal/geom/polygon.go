// Package geom implements the bounding-box-to-center conversion and the
// ray-casting point-in-polygon test the fence engine runs against every
// detection.
package geom

// Space tags a bounding box as already normalized to [0,1] on both axes
// or as pixel-space relative to a declared camera resolution. Coordinate
// space is detected by range check, not declared by the sender, but
// callers that already know which they have can skip the detection step
// by constructing the tag directly.
type Space int

const (
	Normalized Space = iota
	Pixel
)

// Point is a normalized ([0,1]) 2-D coordinate.
type Point struct {
	X float64
	Y float64
}

const epsilon = 1e-9

// DetectSpace reports whether all four bbox values already lie in
// [0,1], in which case the box is Normalized; otherwise it is Pixel.
func DetectSpace(x1, y1, x2, y2 float64) Space {
	if inUnit(x1) && inUnit(y1) && inUnit(x2) && inUnit(y2) {
		return Normalized
	}
	return Pixel
}

func inUnit(v float64) bool {
	return v >= 0.0 && v <= 1.0
}

// Center computes the normalized center of a bounding box. If space is
// Pixel, each axis is divided by the corresponding camera dimension
// before clamping; width/height of zero or less yields a center of 0 on
// that axis rather than dividing by zero.
func Center(x1, y1, x2, y2 float64, space Space, width, height int) Point {
	cx := (x1 + x2) / 2
	cy := (y1 + y2) / 2
	if space == Pixel {
		if width > 0 {
			cx = cx / float64(width)
		} else {
			cx = 0
		}
		if height > 0 {
			cy = cy / float64(height)
		} else {
			cy = 0
		}
	}
	return Point{X: clamp01(cx), Y: clamp01(cy)}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Inside runs the standard ray-casting point-in-polygon test: for each
// edge (xi,yi)->(xj,yj), a crossing counts iff (yi > y) != (yj > y) and
// the horizontal intersection of the edge with the ray lies strictly
// right of the test point. The polygon must have at least 3 points;
// callers are expected to have already enforced that invariant at load
// time (see internal/config).
func Inside(poly []Point, p Point) bool {
	inside := false
	n := len(poly)
	if n < 3 {
		return false
	}
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := poly[i].X, poly[i].Y
		xj, yj := poly[j].X, poly[j].Y
		if (yi > p.Y) != (yj > p.Y) {
			denom := yj - yi
			if denom > -epsilon && denom < epsilon {
				continue
			}
			xIntersect := xi + (p.Y-yi)/denom*(xj-xi)
			if p.X < xIntersect {
				inside = !inside
			}
		}
	}
	return inside
}
