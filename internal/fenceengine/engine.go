// Package fenceengine implements the detection-to-event pipeline:
// subscribe to the detection topic, evaluate each detection against a
// camera's virtual fences, deduplicate via cooldown, and persist
// admitted events.
package fenceengine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vigil/internal/config"
	"vigil/internal/detectmsg"
	"vigil/internal/geom"
	"vigil/internal/mqttbus"
	"vigil/internal/pgstore"
)

// State is one of the engine's four lifecycle states.
type State int32

const (
	Initializing State = iota
	Connected
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Connected:
		return "connected"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config holds everything the engine needs beyond its collaborators.
type Config struct {
	MQTT            mqttbus.Config
	DetectionsTopic string
	EventsTopicFmt  string
	MQTTQoS         byte
	CooldownSeconds int
	PositionDigits  int
}

// eventsTopic builds the concrete publish topic for cameraID. The
// clipper and any other subscriber listen on the vision/+/events
// wildcard, so each admitted event is published to its camera's own
// vision/<camera_id>/events leaf.
func (c Config) eventsTopic(cameraID string) string {
	if c.EventsTopicFmt != "" {
		return strings.ReplaceAll(c.EventsTopicFmt, "+", cameraID)
	}
	return "vision/" + cameraID + "/events"
}

type persistFunc func(cameraID, className string, score float64, ts time.Time)

// Engine is the fence engine's top-level coordinator.
type Engine struct {
	cfg      Config
	logger   *log.Logger
	store    *pgstore.Store
	cameras  map[string]*config.Camera
	cooldown *cooldownTable
	persist  persistFunc

	mqtt  *mqttbus.Client
	state atomic.Int32
}

// New builds an Engine bound to cameras (keyed by id) and a store.
// MQTT is connected lazily by Start.
func New(cfg Config, cameras []*config.Camera, store *pgstore.Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	byID := make(map[string]*config.Camera, len(cameras))
	for _, c := range cameras {
		byID[c.ID] = c
	}
	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		cameras:  byID,
		cooldown: newCooldownTable(time.Duration(cfg.CooldownSeconds) * time.Second),
	}
	e.persist = e.persistToStore
	e.state.Store(int32(Initializing))
	return e
}

// persistEventHook returns the function currently used to persist
// admitted events. Exposed for tests that want to observe admissions
// without a live Postgres connection.
func (e *Engine) persistEventHook() persistFunc {
	return e.persist
}

func (e *Engine) setPersistEventHook(fn persistFunc) persistFunc {
	prev := e.persist
	e.persist = fn
	return prev
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Start connects MQTT and subscribes to the detections topic. On
// success the engine transitions to Connected.
func (e *Engine) Start(ctx context.Context) error {
	client, err := mqttbus.Connect(e.cfg.MQTT, e.logger)
	if err != nil {
		return fmt.Errorf("fenceengine: connect mqtt: %w", err)
	}
	e.mqtt = client

	if err := e.mqtt.Subscribe(e.cfg.DetectionsTopic, e.cfg.MQTTQoS, e.handleMessage); err != nil {
		return fmt.Errorf("fenceengine: subscribe %s: %w", e.cfg.DetectionsTopic, err)
	}
	e.logger.Printf("[fence] subscribed to %s, monitoring %d cameras", e.cfg.DetectionsTopic, len(e.cameras))
	e.state.Store(int32(Connected))
	return nil
}

// RunEvictionLoop periodically sweeps stale cooldown entries until ctx
// is canceled. Callers run this in its own goroutine.
func (e *Engine) RunEvictionLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := e.cooldown.evictStale(now.UTC()); n > 0 {
				e.logger.Printf("[fence] cooldown sweep evicted %d stale entries", n)
			}
		}
	}
}

// Stop disconnects MQTT and closes the store, transitioning
// Connected -> Draining -> Stopped.
func (e *Engine) Stop() {
	e.state.Store(int32(Draining))
	if e.mqtt != nil {
		e.mqtt.Disconnect(250)
	}
	if e.store != nil {
		e.store.Close()
	}
	e.state.Store(int32(Stopped))
}

func (e *Engine) handleMessage(topic string, payload []byte) {
	var msg detectmsg.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		e.logger.Printf("[fence] invalid JSON on %s: %v", topic, err)
		return
	}

	cameraID := msg.CameraID
	if cameraID == "" {
		cameraID = cameraIDFromTopic(topic)
	}
	if cameraID == "" {
		return
	}

	cam, ok := e.cameras[cameraID]
	if !ok || len(cam.Fences) == 0 {
		return
	}

	ts := parseTimestamp(msg.Timestamp)
	for _, det := range msg.Detections {
		e.handleDetection(cam, det, ts)
	}
}

func cameraIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 3 && parts[0] == "vision" && parts[len(parts)-1] == "detections" {
		return parts[1]
	}
	return ""
}

func parseTimestamp(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC()
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}

func (e *Engine) handleDetection(cam *config.Camera, det detectmsg.Detection, ts time.Time) {
	if len(det.BBox) != 4 || det.ClassName == "" {
		return
	}
	x1, y1, x2, y2 := det.BBox[0], det.BBox[1], det.BBox[2], det.BBox[3]
	space := geom.DetectSpace(x1, y1, x2, y2)
	center := geom.Center(x1, y1, x2, y2, space, cam.Width, cam.Height)
	classFolded := strings.ToLower(det.ClassName)

	for i := range cam.Fences {
		fence := &cam.Fences[i]
		if !fence.Enabled || !fence.HasClass(classFolded) {
			continue
		}
		poly := make([]geom.Point, len(fence.Points))
		for j, p := range fence.Points {
			poly[j] = geom.Point{X: p.X, Y: p.Y}
		}
		if !geom.Inside(poly, center) {
			continue
		}
		key := newCooldownKey(cam.ID, fence.Name, classFolded, center.X, center.Y, e.cfg.PositionDigits)
		if !e.cooldown.admit(key, ts) {
			continue
		}
		e.persist(cam.ID, det.ClassName, det.Confidence, ts)
		e.logger.Printf("[fence] %s triggered on %s by %s (score=%.3f)", fence.Name, cam.ID, det.ClassName, det.Confidence)
	}
}

func (e *Engine) persistToStore(cameraID, className string, score float64, ts time.Time) {
	id := newEventID()

	if e.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		ev := pgstore.Event{ID: id, CameraID: cameraID, ClassName: className, Timestamp: ts, Score: &score}
		if err := e.store.InsertEvent(ctx, ev); err != nil {
			e.logger.Printf("[fence] failed to insert event into Postgres: %v", err)
		}
		cancel()
	}

	e.publishEvent(id, cameraID, className, score, ts)
}

// publishEvent republishes the admitted event on its per-camera events
// topic so the clipper (and any other vision/+/events subscriber) can
// pick it up. Publish failures are logged, not propagated: a dropped
// event message still leaves the DB row in place.
func (e *Engine) publishEvent(id, cameraID, className string, score float64, ts time.Time) {
	if e.mqtt == nil {
		return
	}
	payload, err := json.Marshal(detectmsg.EventPayload{
		EventID:   id,
		CameraID:  cameraID,
		ClassName: className,
		Timestamp: ts.Format(time.RFC3339Nano),
		Score:     score,
	})
	if err != nil {
		e.logger.Printf("[fence] marshal event payload for %s: %v", id, err)
		return
	}
	topic := e.cfg.eventsTopic(cameraID)
	if err := e.mqtt.Publish(topic, e.cfg.MQTTQoS, false, payload); err != nil {
		e.logger.Printf("[fence] publish event %s to %s: %v", id, topic, err)
	}
}

func newEventID() string {
	return "evt_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}
