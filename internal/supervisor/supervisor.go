// Package supervisor expands a camera x model configuration into a
// launch plan and supervises one inference-worker child process per
// (model, camera) pair: build the plan once, spawn every child, then
// poll liveness until shutdown. Each child is reaped by its own
// goroutine so one wedged runner cannot stall exit detection for the
// rest.
package supervisor

import (
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"vigil/internal/config"
	"vigil/internal/rewriter"
)

// PlanEntry is one (model, camera) pair to launch, with stream URLs
// already rewritten to the in-network host and overlay tail.
type PlanEntry struct {
	ModelID   string
	Model     config.ModelSpec
	CameraID  string
	InputURL  string
	OutputURL string
}

// MQTTArgs carries the broker connection parameters passed through to
// every spawned runner.
type MQTTArgs struct {
	Host     string
	Port     int
	Topic    string
	Username string
	Password string
	QoS      int
}

// BuildPlan groups enabled cameras by their declared modelID, matches
// each group against the model catalog, and rewrites stream URLs.
// Cameras with no modelID or empty rtspUrl are skipped entirely.
func BuildPlan(cameras []*config.Camera, models []config.ModelSpec, internalHost string, internalPort int, logger *log.Logger) []PlanEntry {
	if logger == nil {
		logger = log.Default()
	}

	type camEntry struct {
		cameraID string
		in       string
		out      string
	}
	byModelID := make(map[string][]camEntry)
	var order []string
	for _, cam := range cameras {
		if !cam.Enabled || cam.ModelID == "" || cam.RTSPURL == "" {
			continue
		}
		in := rewriter.RewriteLoopback(cam.RTSPURL, internalHost, internalPort)
		out := rewriter.OverlayURL(in)
		if _, ok := byModelID[cam.ModelID]; !ok {
			order = append(order, cam.ModelID)
		}
		byModelID[cam.ModelID] = append(byModelID[cam.ModelID], camEntry{cameraID: cam.ID, in: in, out: out})
	}

	var plan []PlanEntry
	for _, modelID := range order {
		entries := byModelID[modelID]
		model, ok := config.MatchModel(modelID, models)
		if !ok {
			ids := make([]string, 0, len(entries))
			for _, e := range entries {
				ids = append(ids, e.cameraID)
			}
			logger.Printf("[launcher] WARNING: modelId %q referenced by cameras %v not found in models.json", modelID, ids)
			continue
		}
		for _, e := range entries {
			plan = append(plan, PlanEntry{
				ModelID:   modelID,
				Model:     model,
				CameraID:  e.cameraID,
				InputURL:  e.in,
				OutputURL: e.out,
			})
		}
	}
	return plan
}

// BuildArgs constructs the runner's command-line arguments from a plan
// entry.
func BuildArgs(p PlanEntry, mqtt MQTTArgs) []string {
	name := p.Model.Name
	if name == "" {
		name = p.ModelID
	}
	args := []string{
		"--weights", p.Model.Weights,
		"--input-width", strconv.Itoa(p.Model.Width),
		"--input-height", strconv.Itoa(p.Model.Height),
		"--model-name", name,
		"--model-id", p.ModelID,
		"--cameras", p.CameraID,
		"--input-url", p.InputURL,
		"--output-url", p.OutputURL,
	}
	if p.Model.Device != "" {
		args = append(args, "--device", p.Model.Device)
	}
	if p.Model.ClassFile != "" {
		args = append(args, "--class-file", p.Model.ClassFile)
	}
	if mqtt.Host != "" {
		args = append(args, "--mqtt-host", mqtt.Host)
		if mqtt.Port != 0 {
			args = append(args, "--mqtt-port", strconv.Itoa(mqtt.Port))
		}
		if mqtt.Topic != "" {
			args = append(args, "--mqtt-topic", mqtt.Topic)
		}
		if mqtt.Username != "" {
			args = append(args, "--mqtt-username", mqtt.Username)
			if mqtt.Password != "" {
				args = append(args, "--mqtt-password", mqtt.Password)
			}
		}
		if mqtt.QoS != 0 {
			args = append(args, "--mqtt-qos", strconv.Itoa(mqtt.QoS))
		}
	}
	return args
}

type child struct {
	key       string
	modelID   string
	cameraID  string
	cmd       *exec.Cmd
	startedAt time.Time
	done      chan struct{}
	exitErr   error
}

// Supervisor tracks every spawned runner child by (model_id, camera_id).
type Supervisor struct {
	logger *log.Logger
	mu     sync.Mutex
	kids   []*child
}

// New builds an empty Supervisor.
func New(logger *log.Logger) *Supervisor {
	if logger == nil {
		logger = log.Default()
	}
	return &Supervisor{logger: logger}
}

// Launch spawns one child per plan entry. A child that fails to start
// is logged and skipped; the rest of the plan still launches.
func (s *Supervisor) Launch(plan []PlanEntry, mqtt MQTTArgs) {
	for _, p := range plan {
		args := BuildArgs(p, mqtt)
		cmd := exec.Command(p.Model.Runner, args...)

		key := fmt.Sprintf("%s_%s", p.ModelID, p.CameraID)
		s.logger.Printf("[launcher] starting model %q for camera %q with runner %s", p.ModelID, p.CameraID, p.Model.Runner)
		if err := cmd.Start(); err != nil {
			s.logger.Printf("[launcher] ERROR: failed to start runner for %q camera %q: %v", p.ModelID, p.CameraID, err)
			continue
		}

		c := &child{
			key:       key,
			modelID:   p.ModelID,
			cameraID:  p.CameraID,
			cmd:       cmd,
			startedAt: time.Now(),
			done:      make(chan struct{}),
		}
		s.mu.Lock()
		s.kids = append(s.kids, c)
		s.mu.Unlock()

		go func(c *child) {
			c.exitErr = c.cmd.Wait()
			close(c.done)
			s.logger.Printf("[launcher] runner %s exited with code %d", c.key, exitCode(c.exitErr))
		}(c)
	}
	if len(s.activeSnapshot()) == 0 {
		s.logger.Printf("[launcher] no runner processes were launched")
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func (s *Supervisor) activeSnapshot() []*child {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*child, len(s.kids))
	copy(out, s.kids)
	return out
}

func (s *Supervisor) isAlive(c *child) bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Wait polls child liveness once per second until every child has
// exited or until stop is closed. It does not restart exited children:
// restart responsibility belongs to an external orchestrator.
func (s *Supervisor) Wait(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			anyAlive := false
			for _, c := range s.activeSnapshot() {
				if s.isAlive(c) {
					anyAlive = true
				}
			}
			if !anyAlive {
				s.logger.Printf("[launcher] all runner processes exited")
				return
			}
		}
	}
}

// Shutdown terminates every still-running child: SIGTERM, wait up to
// 5 s, then force-kill.
func (s *Supervisor) Shutdown() {
	kids := s.activeSnapshot()
	for _, c := range kids {
		if !s.isAlive(c) {
			continue
		}
		s.logger.Printf("[launcher] stopping runner for %q...", c.key)
		_ = c.cmd.Process.Signal(syscall.SIGTERM)
	}
	for _, c := range kids {
		if !s.isAlive(c) {
			continue
		}
		select {
		case <-c.done:
		case <-time.After(5 * time.Second):
			_ = c.cmd.Process.Kill()
			<-c.done
		}
	}
}
