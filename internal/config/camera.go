package config

import (
	"strconv"
	"strings"
)

// Point is a polygon vertex. It may be normalized ([0,1] on both axes) or
// pixel-space before NormalizePoints runs; after loading it is always
// normalized.
type Point struct {
	X float64
	Y float64
}

// VirtualFence is a named polygon zone with the set of detection class
// names (case-folded) that trigger it.
type VirtualFence struct {
	Name          string
	Enabled       bool
	Points        []Point
	DetectObjects map[string]struct{}
}

// HasClass reports whether the case-folded class name is watched by this
// fence.
func (f *VirtualFence) HasClass(classFolded string) bool {
	_, ok := f.DetectObjects[classFolded]
	return ok
}

// Camera is the parsed, read-only view of one cameras.json entry. Width
// and Height are only valid when ResolutionOK is true; Fences is only
// populated when ResolutionOK is true (fences cannot be normalized
// without a resolution).
type Camera struct {
	ID           string
	StreamURL    string
	RTSPURL      string
	Resolution   string
	Width        int
	Height       int
	ResolutionOK bool
	Enabled      bool
	ModelID      string
	Fences       []VirtualFence
}

type cameraFile struct {
	Cameras []cameraJSON `json:"cameras"`
}

type cameraJSON struct {
	ID            string      `json:"id"`
	StreamURL     string      `json:"streamUrl"`
	RTSPURL       string      `json:"rtspUrl"`
	Resolution    string      `json:"resolution"`
	Enabled       *bool       `json:"enabled"`
	ModelID       string      `json:"modelID"`
	VirtualFences []fenceJSON `json:"virtualFences"`
}

type fenceJSON struct {
	Name          string      `json:"name"`
	Enabled       *bool       `json:"enabled"`
	Points        []pointJSON `json:"points"`
	DetectObjects []string    `json:"detectObjects"`
}

type pointJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ParseResolution parses a "WxH" string, lowercase and whitespace
// tolerant. It returns ok=false for anything that doesn't yield two
// positive integers.
func ParseResolution(resolution string) (width, height int, ok bool) {
	if resolution == "" {
		return 0, 0, false
	}
	lower := strings.ToLower(resolution)
	parts := strings.SplitN(lower, "x", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

// NormalizePoints converts a polygon's points to normalized [0,1]
// coordinates. If every point already lies in [0,1] on both axes the
// polygon is treated as already-normalized (round-trip idempotent);
// otherwise each point is divided by width/height. Results are always
// clamped to [0,1].
func NormalizePoints(points []pointJSON, width, height int) []Point {
	if len(points) == 0 {
		return nil
	}
	looksNormalized := true
	for _, pt := range points {
		if pt.X < 0.0 || pt.X > 1.0 || pt.Y < 0.0 || pt.Y > 1.0 {
			looksNormalized = false
			break
		}
	}
	out := make([]Point, 0, len(points))
	for _, pt := range points {
		x, y := pt.X, pt.Y
		if !looksNormalized {
			if width > 0 {
				x = x / float64(width)
			} else {
				x = 0
			}
			if height > 0 {
				y = y / float64(height)
			} else {
				y = 0
			}
		}
		out = append(out, Point{X: clamp01(x), Y: clamp01(y)})
	}
	return out
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
