package config

import (
	"os"
	"strconv"
	"strings"
)

// Env centralizes every environment variable recognized across the
// fence, recorder and launcher services. Each cmd/*/main.go builds one
// of these with LoadEnv instead of reading os.Getenv ad hoc.
type Env struct {
	CamerasJSON    string
	ModelsJSON     string
	RecordingsDir  string
	EventsDir      string
	EventBufferDir string

	SegmentSeconds           int
	EventPreSeconds          int
	EventPostSeconds         int
	EventBufferSegmentSecs   int
	EventBufferSeconds       int
	PostprocessStableSeconds int
	SegmentReadyGrace        int
	SegmentMaxWait           int
	EventBufferReadyGrace    int
	FenceCooldownSeconds     int
	FencePositionDigits      int

	PostprocessFaststart bool
	PostprocessRemuxMP4  bool
	EventBufferEnabled   bool
	EventBufferReencode  bool
	EventBufferGOP       int
	EventMinBytes        int64

	StreamHostInternal string
	StreamPortInternal int

	MQTTHost     string
	MQTTPort     int
	MQTTTopicRaw string
	MQTTUsername string
	MQTTPassword string
	MQTTQoS      int

	DatabaseURL      string
	DatabaseHost     string
	DatabasePort     int
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string

	LogLevel string
}

// LoadEnv builds an Env from the process environment, applying each
// variable's documented default.
func LoadEnv() Env {
	return Env{
		CamerasJSON:    getString("CAMERAS_JSON", "/config/cameras.json"),
		ModelsJSON:     getString("MODELS_JSON", "/config/models.json"),
		RecordingsDir:  getString("RECORDINGS_DIR", "/recordings"),
		EventsDir:      getString("EVENTS_DIR", "/events"),
		EventBufferDir: getString("EVENT_BUFFER_DIR", "/event_buffer"),

		SegmentSeconds:           getInt("SEGMENT_SECONDS", 300),
		EventPreSeconds:          getInt("EVENT_PRE_SECONDS", 10),
		EventPostSeconds:         getInt("EVENT_POST_SECONDS", 10),
		EventBufferSegmentSecs:   getInt("EVENT_BUFFER_SEGMENT_SECONDS", 1),
		EventBufferSeconds:       getInt("EVENT_BUFFER_SECONDS", getInt("EVENT_PRE_SECONDS", 10)),
		PostprocessStableSeconds: getInt("POSTPROCESS_STABLE_SECONDS", 2),
		SegmentReadyGrace:        getInt("SEGMENT_READY_GRACE", 2),
		SegmentMaxWait:           getInt("SEGMENT_MAX_WAIT", 15),
		EventBufferReadyGrace:    getInt("EVENT_BUFFER_READY_GRACE", 2),
		FenceCooldownSeconds:     getInt("FENCE_COOLDOWN_SEC", 30),
		FencePositionDigits:      getInt("FENCE_POSITION_DIGITS", 2),

		PostprocessFaststart: getBool("POSTPROCESS_FASTSTART", true),
		PostprocessRemuxMP4:  getBool("POSTPROCESS_REMUX_MP4", true),
		EventBufferEnabled:   getBool("EVENT_BUFFER_ENABLED", true),
		EventBufferReencode:  getBool("EVENT_BUFFER_REENCODE", true),
		EventBufferGOP:       getInt("EVENT_BUFFER_GOP", 10),
		EventMinBytes:        getInt64("EVENT_MIN_BYTES", 4096),

		StreamHostInternal: getString("STREAM_HOST_INTERNAL", "go2rtc"),
		StreamPortInternal: getInt("STREAM_PORT_INTERNAL", 8554),

		MQTTHost:     getString("MQTT_HOST", "mqtt"),
		MQTTPort:     getInt("MQTT_PORT", 1883),
		MQTTTopicRaw: os.Getenv("MQTT_TOPIC"),
		MQTTUsername: getString("MQTT_USERNAME", ""),
		MQTTPassword: getString("MQTT_PASSWORD", ""),
		MQTTQoS:      getInt("MQTT_QOS", 0),

		DatabaseURL:      getString("DATABASE_URL", ""),
		DatabaseHost:     getString("DATABASE_HOST", "postgres"),
		DatabasePort:     getInt("DATABASE_PORT", 5432),
		DatabaseName:     getString("DATABASE_NAME", "vision"),
		DatabaseUser:     getString("DATABASE_USER", "vision_user"),
		DatabasePassword: getString("DATABASE_PASSWORD", "vision_pass"),

		LogLevel: getString("LOG_LEVEL", "info"),
	}
}

// DetectionsTopic returns the MQTT_TOPIC override if set, otherwise the
// fence engine's detection-subscription default.
func (e Env) DetectionsTopic() string {
	if e.MQTTTopicRaw != "" {
		return e.MQTTTopicRaw
	}
	return "vision/+/detections"
}

// EventsTopic returns the MQTT_TOPIC override if set, otherwise the
// clipper's event-subscription default. The same MQTT_TOPIC variable is
// recognized by both services with a different per-service default,
// matching the two original processes each reading it independently.
func (e Env) EventsTopic() string {
	if e.MQTTTopicRaw != "" {
		return e.MQTTTopicRaw
	}
	return "vision/+/events"
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func getInt64(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}
