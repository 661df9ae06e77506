// Package detectmsg defines the JSON wire shapes published on the
// detection and event MQTT topics.
package detectmsg

// Detection is one detected object within a frame. Field names mirror
// the runner's wire format (snake_case).
type Detection struct {
	ClassID    int       `json:"class_id"`
	ClassName  string    `json:"class_name"`
	Confidence float64   `json:"score"`
	BBox       []float64 `json:"bbox"`
}

// Message is the payload published to vision/<camera_id>/detections.
type Message struct {
	CameraID   string      `json:"cameraId"`
	ModelID    string      `json:"modelId"`
	ModelName  string      `json:"modelName"`
	FrameID    string      `json:"frameId"`
	Timestamp  string      `json:"timestamp"`
	Detections []Detection `json:"detections"`
}

// EventPayload is the payload published to vision/<camera_id>/events,
// consumed by the event clipper.
type EventPayload struct {
	EventID   string  `json:"eventId"`
	CameraID  string  `json:"cameraId"`
	ClassName string  `json:"className"`
	Timestamp string  `json:"timestamp"`
	Score     float64 `json:"score,omitempty"`
}
