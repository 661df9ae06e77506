package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseResolution(t *testing.T) {
	cases := []struct {
		name   string
		in     string
		wantW  int
		wantH  int
		wantOK bool
	}{
		{"simple", "1920x1080", 1920, 1080, true},
		{"uppercase", "1280X720", 1280, 720, true},
		{"whitespace", " 640 x 480 ", 640, 480, true},
		{"empty", "", 0, 0, false},
		{"no separator", "1920", 0, 0, false},
		{"zero height", "1920x0", 0, 0, false},
		{"negative", "-1x10", 0, 0, false},
		{"garbage", "abcxdef", 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h, ok := ParseResolution(tc.in)
			if ok != tc.wantOK || w != tc.wantW || h != tc.wantH {
				t.Fatalf("ParseResolution(%q) = (%d, %d, %v), want (%d, %d, %v)",
					tc.in, w, h, ok, tc.wantW, tc.wantH, tc.wantOK)
			}
		})
	}
}

func TestNormalizePoints(t *testing.T) {
	t.Run("already normalized passes through", func(t *testing.T) {
		in := []pointJSON{{X: 0.1, Y: 0.2}, {X: 0.9, Y: 0.8}}
		out := NormalizePoints(in, 1920, 1080)
		if len(out) != 2 || out[0].X != 0.1 || out[0].Y != 0.2 {
			t.Fatalf("got %+v", out)
		}
	})

	t.Run("pixel space divides by resolution", func(t *testing.T) {
		in := []pointJSON{{X: 960, Y: 540}}
		out := NormalizePoints(in, 1920, 1080)
		if len(out) != 1 || out[0].X != 0.5 || out[0].Y != 0.5 {
			t.Fatalf("got %+v", out)
		}
	})

	t.Run("clamped to unit range", func(t *testing.T) {
		in := []pointJSON{{X: 2000, Y: -10}}
		out := NormalizePoints(in, 1920, 1080)
		if out[0].X != 1.0 || out[0].Y != 0.0 {
			t.Fatalf("got %+v", out)
		}
	})

	t.Run("empty points returns nil", func(t *testing.T) {
		if out := NormalizePoints(nil, 100, 100); out != nil {
			t.Fatalf("want nil, got %+v", out)
		}
	})

	t.Run("zero resolution treated as zero coordinate when pixel-space", func(t *testing.T) {
		in := []pointJSON{{X: 50, Y: 50}}
		out := NormalizePoints(in, 0, 0)
		if out[0].X != 0 || out[0].Y != 0 {
			t.Fatalf("got %+v", out)
		}
	})
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"YOLOv8 Nano":   "yolov8_nano",
		"best.pt":       "best_pt",
		"  spaced out ": "spaced_out",
		"already_slug":  "already_slug",
		"---":           "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMatchModel(t *testing.T) {
	models := []ModelSpec{
		{Name: "YOLOv8 Nano", Weights: "/weights/yolov8n.pt", Type: "yolo"},
		{Name: "MobileNet SSD", Weights: "/weights/mobilenet_ssd.onnx", Type: "ssd"},
	}

	cases := []struct {
		name    string
		modelID string
		wantIdx int
		wantOK  bool
	}{
		{"exact name match", "YOLOv8 Nano", 0, true},
		{"slug match", "yolov8-nano", 0, true},
		{"weights stem match", "yolov8n", 0, true},
		{"type match", "ssd", 1, true},
		{"prefix containment", "yolov8n-custom", 0, true},
		{"no match", "resnet50", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := MatchModel(tc.modelID, models)
			if ok != tc.wantOK {
				t.Fatalf("MatchModel(%q) ok = %v, want %v", tc.modelID, ok, tc.wantOK)
			}
			if ok && got.Name != models[tc.wantIdx].Name {
				t.Fatalf("MatchModel(%q) = %q, want %q", tc.modelID, got.Name, models[tc.wantIdx].Name)
			}
		})
	}
}

func TestLoadCameras(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cameras.json")
	body := `{
		"cameras": [
			{
				"id": "front-door",
				"streamUrl": "rtsp://host/front",
				"rtspUrl": "rtsp://host/front_raw",
				"resolution": "1920x1080",
				"modelID": "yolov8n",
				"virtualFences": [
					{"name": "Porch", "points": [{"x":0.1,"y":0.1},{"x":0.9,"y":0.1},{"x":0.9,"y":0.9}], "detectObjects": ["Person", "Car"]}
				]
			},
			{
				"id": "",
				"streamUrl": "rtsp://host/ignored"
			},
			{
				"id": "bad-res",
				"resolution": "not-a-resolution"
			}
		]
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cameras, err := LoadCameras(path, nil)
	if err != nil {
		t.Fatalf("LoadCameras: %v", err)
	}
	if len(cameras) != 2 {
		t.Fatalf("want 2 cameras (blank id dropped), got %d", len(cameras))
	}
	if cameras[0].ID != "front-door" || !cameras[0].ResolutionOK {
		t.Fatalf("unexpected first camera: %+v", cameras[0])
	}
	if len(cameras[0].Fences) != 1 || cameras[0].Fences[0].Name != "Porch" {
		t.Fatalf("unexpected fences: %+v", cameras[0].Fences)
	}
	if !cameras[0].Fences[0].HasClass("person") || !cameras[0].Fences[0].HasClass("car") {
		t.Fatalf("expected case-folded class lookup to succeed")
	}
	if cameras[1].ID != "bad-res" || cameras[1].ResolutionOK {
		t.Fatalf("malformed-resolution camera should load without resolution: %+v", cameras[1])
	}
}

func TestLoadCamerasMissingFile(t *testing.T) {
	if _, err := LoadCameras("/no/such/file.json", nil); err == nil {
		t.Fatal("want error for missing file")
	}
}

func TestLoadModels(t *testing.T) {
	dir := t.TempDir()
	runnerPath := filepath.Join(dir, "runner.sh")
	if err := os.WriteFile(runnerPath, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	modelsPath := filepath.Join(dir, "models.json")
	body := `{
		"models": [
			{"name": "good", "weights": "/w/good.pt", "runner": "` + runnerPath + `", "inputSize": [320, 320]},
			{"name": "no-runner", "weights": "/w/x.pt", "runner": ""},
			{"name": "missing-runner-file", "weights": "/w/x.pt", "runner": "/no/such/runner"},
			{"name": "no-weights", "weights": "", "runner": "` + runnerPath + `"},
			{"name": "bad-size", "weights": "/w/y.pt", "runner": "` + runnerPath + `", "inputSize": ["x", "y"]}
		]
	}`
	if err := os.WriteFile(modelsPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	models, err := LoadModels(modelsPath, nil)
	if err != nil {
		t.Fatalf("LoadModels: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("want 2 enabled models, got %d: %+v", len(models), models)
	}
	if models[0].Width != 320 || models[0].Height != 320 {
		t.Fatalf("want explicit inputSize honored, got %+v", models[0])
	}
	if models[1].Name != "bad-size" || models[1].Width != 640 || models[1].Height != 640 {
		t.Fatalf("want default 640x640 fallback for bad inputSize, got %+v", models[1])
	}
}

func TestClassNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "classes.yaml")
	body := "nc: 3\nnames:\n  0: person\n  1: car\n  5: dog\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	names, err := ClassNames(path)
	if err != nil {
		t.Fatalf("ClassNames: %v", err)
	}
	want := map[int]string{0: "person", 1: "car", 5: "dog"}
	if len(names) != len(want) {
		t.Fatalf("got %+v, want %+v", names, want)
	}
	for id, name := range want {
		if names[id] != name {
			t.Fatalf("names[%d] = %q, want %q", id, names[id], name)
		}
	}
}

func TestLoadEnvDefaults(t *testing.T) {
	for _, key := range []string{"SEGMENT_SECONDS", "MQTT_HOST", "FENCE_COOLDOWN_SEC", "MQTT_TOPIC"} {
		os.Unsetenv(key)
	}
	env := LoadEnv()
	if env.SegmentSeconds != 300 {
		t.Errorf("SegmentSeconds default = %d, want 300", env.SegmentSeconds)
	}
	if env.MQTTHost != "mqtt" {
		t.Errorf("MQTTHost default = %q, want mqtt", env.MQTTHost)
	}
	if env.FenceCooldownSeconds != 30 {
		t.Errorf("FenceCooldownSeconds default = %d, want 30", env.FenceCooldownSeconds)
	}
	if got := env.DetectionsTopic(); got != "vision/+/detections" {
		t.Errorf("DetectionsTopic() = %q, want vision/+/detections", got)
	}
	if got := env.EventsTopic(); got != "vision/+/events" {
		t.Errorf("EventsTopic() = %q, want vision/+/events", got)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	os.Setenv("SEGMENT_SECONDS", "90")
	defer os.Unsetenv("SEGMENT_SECONDS")
	env := LoadEnv()
	if env.SegmentSeconds != 90 {
		t.Errorf("SegmentSeconds = %d, want 90", env.SegmentSeconds)
	}
}
