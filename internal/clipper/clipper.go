// Package clipper implements the event clipper: drain the event-topic
// queue, and for each event materialize a pre/post-roll
// MP4 clip either by concatenating pre-buffer segments plus a freshly
// recorded post-roll (Path 1, preferred) or by concatenating the long
// rolling segments that intersect the clip window (Path 2, fallback).
package clipper

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vigil/internal/detectmsg"
	"vigil/internal/pgstore"
)

// Camera is the subset of camera config the clipper needs: its live
// RTSP URL for post-roll recording.
type Camera struct {
	ID      string
	RTSPURL string
}

// Config holds every timing/feature parameter the clipper needs beyond
// its collaborators.
type Config struct {
	RecordingsDir string
	BufferDir     string
	EventsDir     string

	SegmentSeconds       int
	PreSeconds           int
	PostSeconds          int
	BufferSegmentSeconds int
	BufferEnabled        bool
	BufferReencode       bool
	BufferGOP            int
	SegmentReadyGrace    time.Duration
	SegmentMaxWait       time.Duration
	BufferReadyGrace     time.Duration
	MinEventBytes        int64
}

// Clipper is the clipper's top-level coordinator: one internal FIFO,
// one draining worker.
type Clipper struct {
	cfg     Config
	cameras map[string]Camera
	store   *pgstore.Store
	logger  *log.Logger
	queue   *eventQueue
}

// New builds a Clipper bound to cameras (keyed by id) and a store used
// only for the post-clip thumbnail update.
func New(cfg Config, cameras map[string]Camera, store *pgstore.Store, logger *log.Logger) *Clipper {
	if logger == nil {
		logger = log.Default()
	}
	return &Clipper{cfg: cfg, cameras: cameras, store: store, logger: logger, queue: newEventQueue()}
}

// HandleMQTT unmarshals a vision/<camera>/events payload and enqueues
// it. Invalid JSON is logged and dropped.
func (c *Clipper) HandleMQTT(topic string, payload []byte) {
	var ev detectmsg.EventPayload
	if err := json.Unmarshal(payload, &ev); err != nil {
		c.logger.Printf("[clipper] invalid JSON on %s: %v", topic, err)
		return
	}
	c.queue.push(ev)
}

// Run drains the queue with a single worker until ctx is canceled.
func (c *Clipper) Run(ctx context.Context) {
	if err := os.MkdirAll(c.cfg.EventsDir, 0o755); err != nil {
		c.logger.Printf("[clipper] ensure events dir: %v", err)
	}
	for {
		payload, ok := c.queue.popWait(ctx, time.Second)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		c.handleEvent(ctx, payload)
	}
}

func (c *Clipper) handleEvent(ctx context.Context, payload detectmsg.EventPayload) {
	if payload.EventID == "" || payload.CameraID == "" || payload.Timestamp == "" {
		c.logger.Printf("[clipper] skipping event payload with missing fields: %+v", payload)
		return
	}
	eventTime, err := parseEventTimestamp(payload.Timestamp)
	if err != nil {
		c.logger.Printf("[clipper] bad timestamp for event %s: %v", payload.EventID, err)
		return
	}

	if c.cfg.BufferEnabled {
		if c.handleBufferPath(ctx, payload, eventTime) {
			return
		}
	}
	c.handleSegmentPath(ctx, payload, eventTime)
}

func parseEventTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}

// finalizeClip validates the ffmpeg-produced temp file against the
// minimum size threshold and atomically renames it into place, then
// updates the thumbnail column. Returns true on success.
func (c *Clipper) finalizeClip(ctx context.Context, eventID, outputTmp, outputPath string) bool {
	info, err := os.Stat(outputTmp)
	if err != nil {
		c.logger.Printf("[clipper] stat temp clip for %s: %v", eventID, err)
		os.Remove(outputTmp)
		return false
	}
	if info.Size() < c.cfg.MinEventBytes {
		c.logger.Printf("[clipper] clip too small after encode for %s (%d bytes)", eventID, info.Size())
		os.Remove(outputTmp)
		return false
	}
	if err := os.Rename(outputTmp, outputPath); err != nil {
		c.logger.Printf("[clipper] finalize clip for %s: %v", eventID, err)
		os.Remove(outputTmp)
		return false
	}
	c.logger.Printf("[clipper] wrote event clip %s", outputPath)
	c.updateThumbnail(ctx, eventID, filepath.Base(outputPath))
	return true
}

// existingClipOK reports whether outputPath already exists and meets
// the minimum size threshold. Re-processing an event whose clip is
// already in place leaves the file untouched; only the thumbnail
// column is re-updated.
func (c *Clipper) existingClipOK(outputPath string) bool {
	info, err := os.Stat(outputPath)
	if err != nil {
		return false
	}
	return info.Size() >= c.cfg.MinEventBytes
}

func (c *Clipper) updateThumbnail(ctx context.Context, eventID, outputName string) {
	if c.store == nil {
		return
	}
	updCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.store.UpdateThumbnail(updCtx, eventID, outputName); err != nil {
		c.logger.Printf("[clipper] failed to update thumbnail for %s: %v", eventID, err)
	}
}
