package clipper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vigil/internal/detectmsg"
	"vigil/internal/muxer"
	"vigil/internal/segment"
)

// handleSegmentPath is the fallback clip path: walk the long rolling
// segments that intersect the clip window, waiting up to
// SegmentMaxWait for missing or not-yet-closed segments to appear.
func (c *Clipper) handleSegmentPath(ctx context.Context, payload detectmsg.EventPayload, eventTime time.Time) {
	clipStart := eventTime.Add(-time.Duration(c.cfg.PreSeconds) * time.Second)
	clipEnd := eventTime.Add(time.Duration(c.cfg.PostSeconds) * time.Second)

	outputPath := filepath.Join(c.cfg.EventsDir, payload.EventID+".mp4")
	if c.existingClipOK(outputPath) {
		c.logger.Printf("[clipper] event clip already exists for %s", payload.EventID)
		c.updateThumbnail(ctx, payload.EventID, filepath.Base(outputPath))
		return
	}

	segTimes := segmentTimes(clipStart, clipEnd, c.cfg.SegmentSeconds)
	c.logger.Printf("[clipper] event %s needs %d segment(s) from %s to %s", payload.EventID, len(segTimes), segTimes[0], segTimes[len(segTimes)-1])

	deadline := time.Now().Add(c.cfg.SegmentMaxWait)
	var files []string
	var fileTimes []time.Time
	var missingDetail []string

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}
		files, fileTimes, missingDetail = c.scanSegments(payload.CameraID, segTimes, clipEnd)
		if len(missingDetail) == 0 && len(files) > 0 {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}

	if len(files) == 0 {
		c.logger.Printf("[clipper] no segment files found for event %s (camera=%s ts=%s clip=[%s..%s]) missing=%v",
			payload.EventID, payload.CameraID, eventTime, clipStart, clipEnd, missingDetail)
		return
	}

	concatPath := filepath.Join(os.TempDir(), fmt.Sprintf("concat_%s.txt", payload.EventID))
	if err := writeConcatManifest(concatPath, files); err != nil {
		c.logger.Printf("[clipper] write concat manifest for %s: %v", payload.EventID, err)
		return
	}
	defer os.Remove(concatPath)

	offset := clipStart.Sub(fileTimes[0]).Seconds()
	if offset < 0 {
		offset = 0
	}
	duration := clipEnd.Sub(clipStart).Seconds()
	if duration <= 0 {
		c.logger.Printf("[clipper] event clip duration is non-positive for %s", payload.EventID)
		return
	}

	outputTmp := outputPath + ".tmp"
	encCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	if err := muxer.Run(encCtx, concatEncodeArgs(concatPath, offset, duration, outputTmp)...); err != nil {
		os.Remove(outputTmp)
		c.logger.Printf("[clipper] ffmpeg failed for event %s: %v", payload.EventID, err)
		return
	}

	c.finalizeClip(ctx, payload.EventID, outputTmp, outputPath)
}

// segmentTimes enumerates the clock-aligned segment start times whose
// [start, start+segmentSeconds) interval could overlap [clipStart,
// clipEnd], from floor(clipStart) through floor(clipEnd) inclusive.
func segmentTimes(clipStart, clipEnd time.Time, segmentSeconds int) []time.Time {
	start := segment.FloorToSegment(clipStart, segmentSeconds)
	end := segment.FloorToSegment(clipEnd, segmentSeconds)
	step := time.Duration(segmentSeconds) * time.Second

	var out []time.Time
	for cur := start; !cur.After(end); cur = cur.Add(step) {
		out = append(out, cur)
	}
	return out
}

// scanSegments resolves each candidate segment start time to an
// on-disk file, preferring .ts, then .mp4, then .mkv. A segment is
// "ready" only once now is at or past its close time (bounded by
// clipEnd) plus the configured grace window; segments not yet ready,
// missing, or zero-length are reported as missing.
func (c *Clipper) scanSegments(cameraID string, segTimes []time.Time, clipEnd time.Time) (files []string, fileTimes []time.Time, missing []string) {
	now := time.Now().UTC()
	for _, ts := range segTimes {
		segmentEnd := ts.Add(time.Duration(c.cfg.SegmentSeconds) * time.Second)
		readyAt := segmentEnd
		if segmentEnd.After(clipEnd) {
			readyAt = clipEnd
		}
		readyAt = readyAt.Add(c.cfg.SegmentReadyGrace)
		if now.Before(readyAt) {
			missing = append(missing, fmt.Sprintf("not_ready ts=%s ready_after=%s", ts, readyAt))
			continue
		}

		var path string
		for _, candidate := range []string{
			segment.PathTS(c.cfg.RecordingsDir, cameraID, ts),
			segment.PathMP4(c.cfg.RecordingsDir, cameraID, ts),
			segment.PathMKV(c.cfg.RecordingsDir, cameraID, ts),
		} {
			if info, err := os.Stat(candidate); err == nil {
				if info.Size() == 0 {
					continue
				}
				path = candidate
				break
			}
		}
		if path == "" {
			missing = append(missing, fmt.Sprintf("missing_file ts=%s", ts))
			continue
		}
		files = append(files, path)
		fileTimes = append(fileTimes, ts)
	}
	return files, fileTimes, missing
}
