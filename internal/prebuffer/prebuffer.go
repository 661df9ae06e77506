// Package prebuffer implements the short-segment rolling pre-buffer:
// the same clock-aligned segment shape as
// internal/recorder but with a much shorter segment duration, optional
// fixed-GOP re-encoding so every segment opens on a keyframe, and a
// retention enforcer instead of a postprocess/remux loop.
package prebuffer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vigil/internal/muxer"
	"vigil/internal/segment"
)

// Config holds the pre-buffer's timing and encoding parameters.
type Config struct {
	BufferDir      string
	SegmentSeconds int
	Retention      time.Duration
	Reencode       bool
	GOP            int
}

// Worker records one camera's short-segment pre-roll buffer.
type Worker struct {
	cameraID string
	rtspURL  string
	cfg      Config
	logger   *log.Logger
	mux      *muxer.Supervised
}

// New builds a Worker for one camera.
func New(cameraID, rtspURL string, cfg Config, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.GOP <= 0 {
		cfg.GOP = 10
	}
	w := &Worker{cameraID: cameraID, rtspURL: rtspURL, cfg: cfg, logger: logger}
	w.mux = muxer.NewSupervised("prebuffer:"+cameraID, 3*time.Second, logger, w.buildArgs)
	return w
}

func (w *Worker) buildArgs() []string {
	now := time.Now().UTC()
	_ = segment.EnsureDirsForTS(w.cfg.BufferDir, w.cameraID, now)

	args := []string{
		"-hide_banner", "-loglevel", "warning",
		"-rtsp_transport", "tcp",
		"-i", w.rtspURL,
		"-an",
	}
	if w.cfg.Reencode {
		args = append(args,
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-tune", "zerolatency",
			"-g", fmt.Sprint(w.cfg.GOP),
			"-keyint_min", fmt.Sprint(w.cfg.GOP),
			"-sc_threshold", "0",
			"-pix_fmt", "yuv420p",
		)
	} else {
		args = append(args, "-c", "copy")
	}
	pattern := filepath.Join(w.cfg.BufferDir, w.cameraID, "%Y-%m", "%d", "%H-%M-%S.ts")
	args = append(args,
		"-f", "segment",
		"-segment_time", fmt.Sprint(w.cfg.SegmentSeconds),
		"-segment_atclocktime", "1",
		"-reset_timestamps", "1",
		"-segment_format", "mpegts",
		"-strftime", "1",
		pattern,
	)
	return args
}

// Run starts the retention enforcer and the segment-writing muxer,
// blocking until ctx is canceled. The muxer's own Run only returns once
// its subprocess exits, so ctx cancellation is turned into an explicit
// Stop() rather than relied on to unblock cmd.Wait() by itself.
func (w *Worker) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.retentionLoop(ctx)
	}()

	muxDone := make(chan struct{})
	go func() {
		defer close(muxDone)
		w.mux.Run(ctx)
	}()

	<-ctx.Done()
	w.mux.Stop()
	<-muxDone
	<-done
}

// retentionLoop deletes .ts files older than the configured retention
// horizon every 5 s, walking the buffer tree.
func (w *Worker) retentionLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *Worker) sweep() {
	cutoff := time.Now().UTC().Add(-w.cfg.Retention)
	base := filepath.Join(w.cfg.BufferDir, w.cameraID)
	_ = filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".ts") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().UTC().Before(cutoff) {
			_ = os.Remove(path)
		}
		return nil
	})
}
