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

// handleBufferPath is the preferred clip path: enumerate the expected
// pre-roll buffer segments, record a fresh post-roll live, and concat
// the two into the final clip. Returns true once it has handled the
// event (including "handled but gave up"); false only when it has no
// camera config at all and must fall through to the segment path.
func (c *Clipper) handleBufferPath(ctx context.Context, payload detectmsg.EventPayload, eventTime time.Time) bool {
	cam, ok := c.cameras[payload.CameraID]
	if !ok {
		c.logger.Printf("[clipper] no camera config for event %s camera=%s", payload.EventID, payload.CameraID)
		return false
	}

	clipStart := eventTime.Add(-time.Duration(c.cfg.PreSeconds) * time.Second)
	clipEnd := eventTime.Add(time.Duration(c.cfg.PostSeconds) * time.Second)
	c.logger.Printf("[clipper] event received (buffer) id=%s camera=%s ts=%s clip=[%s..%s]",
		payload.EventID, payload.CameraID, eventTime, clipStart, clipEnd)

	outputPath := filepath.Join(c.cfg.EventsDir, payload.EventID+".mp4")
	if c.existingClipOK(outputPath) {
		c.logger.Printf("[clipper] event clip already exists for %s", payload.EventID)
		c.updateThumbnail(ctx, payload.EventID, filepath.Base(outputPath))
		return true
	}

	expected := expectedPreTimes(clipStart, eventTime, c.cfg.BufferSegmentSeconds)
	pairs, missing := c.scanPreSegments(payload.CameraID, expected)
	if len(missing) > 0 {
		c.logger.Printf("[clipper] missing pre-buffer segments for %s (camera=%s): %d of %d", payload.EventID, payload.CameraID, len(missing), len(expected))
	}

	postTmp := filepath.Join(os.TempDir(), fmt.Sprintf("post_%s.ts", payload.EventID))
	if !c.recordPostRoll(ctx, cam, postTmp) {
		os.Remove(postTmp)
		return true
	}
	defer os.Remove(postTmp)

	if len(missing) > 0 && c.cfg.BufferReadyGrace > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(c.cfg.BufferReadyGrace):
		}
	}
	pairs, _ = c.scanPreSegments(payload.CameraID, expected)

	concatPath := filepath.Join(os.TempDir(), fmt.Sprintf("concat_%s.txt", payload.EventID))
	if err := writeConcatManifest(concatPath, append(pathsOf(pairs), postTmp)); err != nil {
		c.logger.Printf("[clipper] write concat manifest for %s: %v", payload.EventID, err)
		return true
	}
	defer os.Remove(concatPath)

	var offset, duration float64
	if len(pairs) > 0 {
		first := pairs[0].ts
		offset = clipStart.Sub(first).Seconds()
		if offset < 0 {
			offset = 0
		}
		duration = float64(c.cfg.PreSeconds + c.cfg.PostSeconds)
	} else {
		offset = 0
		duration = float64(c.cfg.PostSeconds)
	}

	outputTmp := outputPath + ".tmp"
	encCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	if err := muxer.Run(encCtx, concatEncodeArgs(concatPath, offset, duration, outputTmp)...); err != nil {
		os.Remove(outputTmp)
		c.logger.Printf("[clipper] ffmpeg failed for buffered event %s: %v", payload.EventID, err)
		return true
	}

	c.finalizeClip(ctx, payload.EventID, outputTmp, outputPath)
	return true
}

type segPair struct {
	ts   time.Time
	path string
}

func expectedPreTimes(clipStart, eventTime time.Time, bufferSegmentSeconds int) []time.Time {
	var out []time.Time
	cur := segment.FloorToSegment(clipStart, bufferSegmentSeconds)
	step := time.Duration(bufferSegmentSeconds) * time.Second
	for cur.Before(eventTime) {
		out = append(out, cur)
		cur = cur.Add(step)
	}
	return out
}

func (c *Clipper) scanPreSegments(cameraID string, expected []time.Time) ([]segPair, []time.Time) {
	var pairs []segPair
	var missing []time.Time
	for _, ts := range expected {
		path := segment.PathTS(c.cfg.BufferDir, cameraID, ts)
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			pairs = append(pairs, segPair{ts: ts, path: path})
			continue
		}
		missing = append(missing, ts)
	}
	return pairs, missing
}

func pathsOf(pairs []segPair) []string {
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.path
	}
	return out
}

// recordPostRoll spawns a single ffmpeg pass reading the camera's live
// RTSP URL for exactly PostSeconds, writing an MPEG-TS scratch file.
func (c *Clipper) recordPostRoll(ctx context.Context, cam Camera, outPath string) bool {
	args := []string{
		"-hide_banner", "-loglevel", "warning",
		"-rtsp_transport", "tcp",
		"-i", cam.RTSPURL,
		"-an",
	}
	if c.cfg.BufferReencode {
		gop := c.cfg.BufferGOP
		if gop <= 0 {
			gop = 10
		}
		args = append(args,
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-tune", "zerolatency",
			"-g", fmt.Sprint(gop),
			"-keyint_min", fmt.Sprint(gop),
			"-sc_threshold", "0",
			"-pix_fmt", "yuv420p",
		)
	} else {
		args = append(args, "-c", "copy")
	}
	args = append(args, "-t", fmt.Sprint(c.cfg.PostSeconds), "-f", "mpegts", outPath)

	deadline := time.Duration(c.cfg.PostSeconds+10) * time.Second
	recCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	if err := muxer.Run(recCtx, args...); err != nil {
		c.logger.Printf("[clipper] failed to record post buffer: %v", err)
		return false
	}
	if info, err := os.Stat(outPath); err != nil || info.Size() == 0 {
		c.logger.Printf("[clipper] post buffer file missing or empty: %s", outPath)
		return false
	}
	return true
}
