package geom

import "testing"

func TestDetectSpace(t *testing.T) {
	cases := []struct {
		name           string
		x1, y1, x2, y2 float64
		want           Space
	}{
		{"all normalized", 0.1, 0.2, 0.8, 0.9, Normalized},
		{"all pixel", 960, 540, 1920, 1080, Pixel},
		{"mixed range is pixel", 0.5, 0.5, 1600, 900, Pixel},
		{"boundary one is normalized", 0, 0, 1, 1, Normalized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectSpace(tc.x1, tc.y1, tc.x2, tc.y2); got != tc.want {
				t.Fatalf("DetectSpace(%v,%v,%v,%v) = %v, want %v", tc.x1, tc.y1, tc.x2, tc.y2, got, tc.want)
			}
		})
	}
}

func TestCenter(t *testing.T) {
	t.Run("pixel space at 1920x1080", func(t *testing.T) {
		c := Center(960, 540, 1920, 1080, Pixel, 1920, 1080)
		if c.X != 0.75 || c.Y != 0.75 {
			t.Fatalf("got %+v, want (0.75, 0.75)", c)
		}
	})

	t.Run("normalized space passthrough", func(t *testing.T) {
		c := Center(0.1, 0.1, 0.3, 0.3, Normalized, 0, 0)
		if c.X != 0.2 || c.Y != 0.2 {
			t.Fatalf("got %+v, want (0.2, 0.2)", c)
		}
	})

	t.Run("clamped beyond unit range", func(t *testing.T) {
		c := Center(0, 0, 4000, 4000, Pixel, 1920, 1080)
		if c.X != 1.0 || c.Y != 1.0 {
			t.Fatalf("got %+v, want (1, 1)", c)
		}
	})

	t.Run("zero dimension avoids divide by zero", func(t *testing.T) {
		c := Center(100, 100, 200, 200, Pixel, 0, 0)
		if c.X != 0 || c.Y != 0 {
			t.Fatalf("got %+v, want (0, 0)", c)
		}
	})

	t.Run("every computed center lies in unit square", func(t *testing.T) {
		inputs := [][4]float64{
			{-100, -100, 5000, 5000},
			{0, 0, 0, 0},
			{1920, 0, 1920, 1080},
		}
		for _, in := range inputs {
			c := Center(in[0], in[1], in[2], in[3], Pixel, 1920, 1080)
			if c.X < 0 || c.X > 1 || c.Y < 0 || c.Y > 1 {
				t.Fatalf("center %+v escaped unit square for input %v", c, in)
			}
		}
	})
}

func triangleFixture() []Point {
	return []Point{{X: 0.2, Y: 0.2}, {X: 0.8, Y: 0.2}, {X: 0.5, Y: 0.8}}
}

func TestInsideTriangle(t *testing.T) {
	poly := triangleFixture()

	if !Inside(poly, Point{X: 0.5, Y: 0.3}) {
		t.Error("(0.5, 0.3) should be inside")
	}
	if Inside(poly, Point{X: 0.1, Y: 0.3}) {
		t.Error("(0.1, 0.3) should be outside")
	}

	// Vertex behavior is implementation-defined but must be stable
	// across repeated evaluations.
	first := Inside(poly, poly[0])
	for i := 0; i < 5; i++ {
		if Inside(poly, poly[0]) != first {
			t.Fatalf("vertex point-in-polygon result is not stable across runs")
		}
	}
}

func TestInsideSquare(t *testing.T) {
	square := []Point{{0.1, 0.1}, {0.9, 0.1}, {0.9, 0.9}, {0.1, 0.9}}

	if !Inside(square, Point{X: 0.5, Y: 0.5}) {
		t.Error("center of square should be inside")
	}
	if Inside(square, Point{X: 0.95, Y: 0.5}) {
		t.Error("point to the right of square should be outside")
	}
	if Inside(square, Point{X: 0.05, Y: 0.05}) {
		t.Error("point outside the lower-left corner should be outside")
	}
}

func TestInsideDegeneratePolygon(t *testing.T) {
	if Inside([]Point{{0, 0}, {1, 1}}, Point{X: 0.5, Y: 0.5}) {
		t.Error("a polygon with fewer than 3 points can never contain a point")
	}
}

func TestInsideHorizontalEdgeDoesNotDivideByZero(t *testing.T) {
	// A polygon with perfectly horizontal edges: those edges fail the
	// (yi > y) != (yj > y) crossing test, so Inside never divides by
	// their zero vertical extent; it must not panic and must return a
	// stable result.
	poly := []Point{{0.1, 0.1}, {0.9, 0.1}, {0.9, 0.5}, {0.1, 0.5}}
	if !Inside(poly, Point{X: 0.5, Y: 0.3}) {
		t.Error("point inside rectangle with horizontal edges should be inside")
	}
}
