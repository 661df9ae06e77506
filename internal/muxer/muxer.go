// Package muxer wraps the ffmpeg subprocess invocations shared by the
// segment recorder, the pre-buffer recorder and the event clipper: a
// one-shot blocking command (remux, concat-encode) and a long-running
// supervised process (continuous segment capture).
package muxer

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Run executes ffmpeg with args and blocks until it exits, returning an
// error that includes captured stderr on non-zero exit.
func Run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w (stderr: %s)", err, stderr.String())
	}
	return nil
}

// Supervised runs an ffmpeg process continuously, restarting it a fixed
// delay after any exit, until Stop is called. Typical for segment and
// pre-buffer capture where the process is expected to run forever.
type Supervised struct {
	label        string
	buildArgs    func() []string
	restartDelay time.Duration
	logger       *log.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	procDone chan struct{}
	stopped  bool
}

// NewSupervised builds a Supervised process. buildArgs is called before
// every (re)start so callers can vary the output path by current time.
func NewSupervised(label string, restartDelay time.Duration, logger *log.Logger, buildArgs func() []string) *Supervised {
	if logger == nil {
		logger = log.Default()
	}
	return &Supervised{
		label:        label,
		buildArgs:    buildArgs,
		restartDelay: restartDelay,
		logger:       logger,
	}
}

// Run blocks, restarting ffmpeg after restartDelay whenever it exits,
// until ctx is canceled or Stop is called.
func (s *Supervised) Run(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		args := s.buildArgs()
		cmd := exec.Command("ffmpeg", args...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Start(); err != nil {
			s.mu.Unlock()
			s.logger.Printf("[muxer] %s: failed to start ffmpeg: %v", s.label, err)
			if !s.sleepOrStop(ctx, s.restartDelay) {
				return
			}
			continue
		}
		procDone := make(chan struct{})
		s.cmd = cmd
		s.procDone = procDone
		s.mu.Unlock()

		err := cmd.Wait()
		close(procDone)

		s.mu.Lock()
		stopped := s.stopped
		s.cmd = nil
		s.procDone = nil
		s.mu.Unlock()

		if stopped {
			return
		}
		if err != nil {
			s.logger.Printf("[muxer] %s exited: %v (stderr: %s)", s.label, err, stderr.String())
		} else {
			s.logger.Printf("[muxer] %s exited", s.label)
		}
		s.logger.Printf("[muxer] %s restarting in %s", s.label, s.restartDelay)
		if !s.sleepOrStop(ctx, s.restartDelay) {
			return
		}
	}
}

func (s *Supervised) sleepOrStop(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Stop terminates the running ffmpeg process, sending SIGTERM and
// escalating to SIGKILL if it has not exited within 5 s. Safe to call
// even if no process is currently running.
func (s *Supervised) Stop() {
	s.mu.Lock()
	s.stopped = true
	cmd := s.cmd
	procDone := s.procDone
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil || procDone == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-procDone:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		<-procDone
	}
}
