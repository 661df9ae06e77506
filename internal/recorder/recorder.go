// Package recorder implements the per-camera rolling segment recorder:
// a clock-aligned MPEG-TS segment writer, a directory-
// ensure loop that stays ahead of date rollover, and a postprocess loop
// that remuxes stabilized .ts segments to .mkv and then .mp4.
package recorder

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"vigil/internal/muxer"
	"vigil/internal/segment"
)

// Config holds the timing and feature flags the recorder needs beyond
// its camera identity, read from the centralized env.
type Config struct {
	RecordingsDir        string
	SegmentSeconds       int
	PostprocessStable    time.Duration
	PostprocessFaststart bool
	PostprocessRemuxMP4  bool
}

// Worker records one camera's continuous stream to clock-aligned
// segments and postprocesses them as they stabilize.
type Worker struct {
	cameraID string
	rtspURL  string
	cfg      Config
	logger   *log.Logger
	mux      *muxer.Supervised

	mu        sync.Mutex
	tsState   map[string]tsStat
	processed map[string]struct{}
	order     []string
}

type tsStat struct {
	size  int64
	mtime time.Time
}

// New builds a Worker for one camera. rtspURL is the already-rewritten,
// in-network-reachable RTSP pull URL.
func New(cameraID, rtspURL string, cfg Config, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.PostprocessStable <= 0 {
		cfg.PostprocessStable = 2 * time.Second
	}
	w := &Worker{
		cameraID:  cameraID,
		rtspURL:   rtspURL,
		cfg:       cfg,
		logger:    logger,
		tsState:   make(map[string]tsStat),
		processed: make(map[string]struct{}),
	}
	w.mux = muxer.NewSupervised("recorder:"+cameraID, 3*time.Second, logger, w.buildArgs)
	return w
}

func (w *Worker) buildArgs() []string {
	pattern := filepath.Join(w.cfg.RecordingsDir, w.cameraID, "%Y-%m", "%d", "%H-%M-%S.ts")
	return []string{
		"-hide_banner", "-loglevel", "warning",
		"-rtsp_transport", "tcp",
		"-i", w.rtspURL,
		"-an", "-c", "copy",
		"-f", "segment",
		"-segment_time", fmt.Sprint(w.cfg.SegmentSeconds),
		"-segment_atclocktime", "1",
		"-reset_timestamps", "1",
		"-segment_format", "mpegts",
		"-strftime", "1",
		pattern,
	}
}

// Run starts the directory-ensure loop, the postprocess loop and the
// segment-writing muxer, blocking until ctx is canceled. The muxer's
// own Run only returns once its subprocess exits, so ctx cancellation
// is turned into an explicit Stop() rather than relied on to unblock
// cmd.Wait() by itself.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.ensureDirsLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		w.postprocessLoop(ctx)
	}()

	muxDone := make(chan struct{})
	go func() {
		defer close(muxDone)
		w.mux.Run(ctx)
	}()

	<-ctx.Done()
	w.mux.Stop()
	<-muxDone
	wg.Wait()
}

// ensureDirsLoop creates today's and tomorrow's directories every 60 s
// so the muxer never fails its first write of a new day.
func (w *Worker) ensureDirsLoop(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	ensure := func() {
		now := time.Now().UTC()
		if err := segment.EnsureDirsForTS(w.cfg.RecordingsDir, w.cameraID, now); err != nil {
			w.logger.Printf("[recorder] %s: %v", w.cameraID, err)
		}
		if err := segment.EnsureDirsForTS(w.cfg.RecordingsDir, w.cameraID, now.Add(24*time.Hour)); err != nil {
			w.logger.Printf("[recorder] %s: %v", w.cameraID, err)
		}
	}
	ensure()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ensure()
		}
	}
}

// postprocessLoop scans today's and yesterday's directories (UTC) every
// second for .ts files, tracking a (size, mtime) pair per path across
// two consecutive polls before declaring it stable.
func (w *Worker) postprocessLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scanOnce()
		}
	}
}

func (w *Worker) scanOnce() {
	now := time.Now().UTC()
	dirs := []string{
		dayDir(w.cfg.RecordingsDir, w.cameraID, now),
		dayDir(w.cfg.RecordingsDir, w.cameraID, now.Add(-24*time.Hour)),
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	seen := make(map[string]struct{})
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".ts") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			seen[path] = struct{}{}
			info, err := e.Info()
			if err != nil {
				continue
			}
			stat := tsStat{size: info.Size(), mtime: info.ModTime()}
			prev, tracked := w.tsState[path]
			if tracked && prev.size == stat.size && prev.mtime.Equal(stat.mtime) {
				if time.Since(stat.mtime) >= w.cfg.PostprocessStable {
					w.postprocessSegment(path)
					delete(w.tsState, path)
				}
				continue
			}
			w.tsState[path] = stat
		}
	}
	for path := range w.tsState {
		if _, ok := seen[path]; !ok {
			delete(w.tsState, path)
		}
	}
}

func dayDir(recordingsDir, cameraID string, ts time.Time) string {
	return filepath.Join(recordingsDir, cameraID, ts.Format("2006-01"), ts.Format("02"))
}

// postprocessSegment remuxes a stable .ts to .mkv (stream copy), then
// optionally on to .mp4 with +faststart. When PostprocessFaststart is
// false the whole pipeline is skipped and the segment stays raw .ts.
// Caller holds w.mu.
func (w *Worker) postprocessSegment(path string) {
	if !w.cfg.PostprocessFaststart {
		return
	}
	if _, done := w.processed[path]; done {
		return
	}

	output := strings.TrimSuffix(path, filepath.Ext(path)) + ".mkv"
	tmp := output + ".tmp"
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	args := []string{
		"-hide_banner", "-loglevel", "warning", "-y",
		"-fflags", "+genpts+discardcorrupt",
		"-err_detect", "ignore_err",
		"-i", path,
		"-c", "copy",
		"-f", "matroska",
		tmp,
	}
	if err := muxer.Run(ctx, args...); err != nil {
		os.Remove(tmp)
		w.logger.Printf("[recorder] postprocess failed for %s: %v", path, err)
		return
	}
	if err := os.Rename(tmp, output); err != nil {
		w.logger.Printf("[recorder] rename %s -> %s: %v", tmp, output, err)
		return
	}
	if err := os.Remove(path); err != nil {
		w.logger.Printf("[recorder] remove source %s: %v", path, err)
	}

	w.memoize(path)
	w.logger.Printf("[recorder] recorded segment %s", output)

	if mp4, ok := w.remuxToMP4(output); ok {
		w.logger.Printf("[recorder] remuxed segment to %s", mp4)
	}
}

// memoize records path as processed, dropping the oldest-inserted
// members once the set exceeds 500 entries so only the 250 most recent
// remain.
func (w *Worker) memoize(path string) {
	w.processed[path] = struct{}{}
	w.order = append(w.order, path)
	if len(w.order) > 500 {
		drop := w.order[:len(w.order)-250]
		w.order = w.order[len(w.order)-250:]
		for _, p := range drop {
			delete(w.processed, p)
		}
	}
}

// remuxToMP4 remuxes a stabilized .mkv segment to .mp4, always with
// +faststart, gated only by PostprocessRemuxMP4. Returns the mp4 path
// and true on success.
func (w *Worker) remuxToMP4(mkvPath string) (string, bool) {
	if !w.cfg.PostprocessRemuxMP4 || filepath.Ext(mkvPath) != ".mkv" {
		return "", false
	}
	mp4Path := strings.TrimSuffix(mkvPath, ".mkv") + ".mp4"
	if info, err := os.Stat(mp4Path); err == nil && info.Size() > 0 {
		return mp4Path, true
	}
	tmp := mp4Path + ".tmp"
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	args := []string{
		"-hide_banner", "-loglevel", "warning", "-y",
		"-fflags", "+genpts+discardcorrupt",
		"-err_detect", "ignore_err",
		"-i", mkvPath,
		"-c", "copy",
		"-movflags", "+faststart",
		"-f", "mp4", tmp,
	}
	if err := muxer.Run(ctx, args...); err != nil {
		os.Remove(tmp)
		w.logger.Printf("[recorder] mp4 remux failed for %s: %v", mkvPath, err)
		return "", false
	}
	if err := os.Rename(tmp, mp4Path); err != nil {
		w.logger.Printf("[recorder] rename %s -> %s: %v", tmp, mp4Path, err)
		return "", false
	}
	if err := os.Remove(mkvPath); err != nil {
		w.logger.Printf("[recorder] remove %s after mp4 remux: %v", mkvPath, err)
	}
	return mp4Path, true
}
