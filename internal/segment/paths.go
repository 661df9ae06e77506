// Package segment builds and maintains the on-disk layout recordings
// are written to: <recordings_dir>/<camera_id>/<YYYY-MM>/<DD>/<HH-MM-SS>.<ext>.
package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FloorToSegment floors ts to the nearest segmentSeconds boundary since
// the Unix epoch, in UTC. A camera recording continuously therefore
// always starts a new segment at the same wall-clock offsets.
func FloorToSegment(ts time.Time, segmentSeconds int) time.Time {
	if segmentSeconds <= 0 {
		return ts.UTC()
	}
	epoch := ts.Unix()
	floored := epoch - (epoch % int64(segmentSeconds))
	return time.Unix(floored, 0).UTC()
}

func dayDir(recordingsDir, cameraID string, ts time.Time) string {
	ts = ts.UTC()
	return filepath.Join(recordingsDir, cameraID, ts.Format("2006-01"), ts.Format("02"))
}

func timePath(recordingsDir, cameraID string, ts time.Time, ext string) string {
	ts = ts.UTC()
	return filepath.Join(dayDir(recordingsDir, cameraID, ts), ts.Format("15-04-05")+"."+ext)
}

// PathMKV returns the .mkv segment path for a recording starting at ts.
func PathMKV(recordingsDir, cameraID string, startTS time.Time) string {
	return timePath(recordingsDir, cameraID, startTS, "mkv")
}

// PathTS returns the .ts segment path for a recording starting at ts,
// the format segments are written in before postprocess remuxes them.
func PathTS(recordingsDir, cameraID string, startTS time.Time) string {
	return timePath(recordingsDir, cameraID, startTS, "ts")
}

// PathMP4 returns the .mp4 sibling of an .mkv segment, produced by the
// optional remux-to-mp4 postprocess step.
func PathMP4(recordingsDir, cameraID string, startTS time.Time) string {
	return timePath(recordingsDir, cameraID, startTS, "mp4")
}

// EnsureDirsForTS creates the day directory a recording at ts would
// land in, if it does not already exist.
func EnsureDirsForTS(recordingsDir, cameraID string, ts time.Time) error {
	dir := dayDir(recordingsDir, cameraID, ts)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("segment: ensure dir %s: %w", dir, err)
	}
	return nil
}
