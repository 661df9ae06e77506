package supervisor

import (
	"log"
	"testing"

	"vigil/internal/config"
)

func testCamera(id, modelID, rtspURL string, enabled bool) *config.Camera {
	return &config.Camera{ID: id, ModelID: modelID, RTSPURL: rtspURL, Enabled: enabled}
}

func TestBuildPlanSkipsDisabledMissingModelAndMissingURL(t *testing.T) {
	cameras := []*config.Camera{
		testCamera("camA", "yolo", "rtsp://127.0.0.1:8554/camA_raw", true),
		testCamera("camB", "yolo", "rtsp://host/camB_raw", false),
		testCamera("camC", "", "rtsp://host/camC_raw", true),
		testCamera("camD", "yolo", "", true),
	}
	models := []config.ModelSpec{{Name: "yolo", Runner: "/bin/true", Weights: "/w.pt", Width: 640, Height: 640}}

	plan := BuildPlan(cameras, models, "go2rtc", 8554, log.New(testWriter{t}, "", 0))
	if len(plan) != 1 {
		t.Fatalf("expected 1 plan entry, got %d: %+v", len(plan), plan)
	}
	if plan[0].CameraID != "camA" {
		t.Fatalf("expected camA, got %s", plan[0].CameraID)
	}
	if plan[0].InputURL != "rtsp://go2rtc:8554/camA_raw" {
		t.Fatalf("expected loopback rewrite, got %s", plan[0].InputURL)
	}
	if plan[0].OutputURL != "rtsp://go2rtc:8554/camAoverlay" {
		t.Fatalf("expected overlay derivation, got %s", plan[0].OutputURL)
	}
}

func TestBuildPlanWarnsOnUnmatchedModel(t *testing.T) {
	cameras := []*config.Camera{testCamera("camA", "unknown-model", "rtsp://host/camA", true)}
	plan := BuildPlan(cameras, nil, "go2rtc", 8554, log.New(testWriter{t}, "", 0))
	if len(plan) != 0 {
		t.Fatalf("expected no plan entries for unmatched model, got %d", len(plan))
	}
}

func TestBuildArgsIncludesOptionalFields(t *testing.T) {
	p := PlanEntry{
		ModelID:   "yolo",
		Model:     config.ModelSpec{Name: "yolo", Weights: "/w.pt", Width: 640, Height: 480, Device: "cuda:0", ClassFile: "/classes.txt"},
		CameraID:  "camA",
		InputURL:  "rtsp://in",
		OutputURL: "rtsp://out",
	}
	args := BuildArgs(p, MQTTArgs{Host: "mqtt", Port: 1883, Topic: "vision/+/detections", QoS: 1})

	want := []string{
		"--weights", "/w.pt",
		"--input-width", "640",
		"--input-height", "480",
		"--model-name", "yolo",
		"--model-id", "yolo",
		"--cameras", "camA",
		"--input-url", "rtsp://in",
		"--output-url", "rtsp://out",
		"--device", "cuda:0",
		"--class-file", "/classes.txt",
		"--mqtt-host", "mqtt",
		"--mqtt-port", "1883",
		"--mqtt-topic", "vision/+/detections",
		"--mqtt-qos", "1",
	}
	if len(args) != len(want) {
		t.Fatalf("got %d args, want %d: %v", len(args), len(want), args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("arg[%d] = %q, want %q (full: %v)", i, args[i], want[i], args)
		}
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
