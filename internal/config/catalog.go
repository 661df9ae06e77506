// Package config loads the cameras.json and models.json catalogs shared
// by every Vigil service and centralizes the environment variables
// recognized across the fleet.
package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// LoadCameras reads cameras.json and returns every camera entry that has
// a non-empty id. Resolution and enabled are NOT enforced here: a
// camera with a malformed resolution is kept without fences, and each
// consumer (fence engine, recorder, supervisor) applies its own
// requirements on top of this catalog. Fences are validated here:
// disabled fences, fences with fewer than 3 points and fences with an
// empty detectObjects set are dropped.
func LoadCameras(path string, logger *log.Logger) ([]*Camera, error) {
	logger = orDefault(logger)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cameras.json: %w", err)
	}
	var parsed cameraFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse cameras.json: %w", err)
	}

	cameras := make([]*Camera, 0, len(parsed.Cameras))
	for _, raw := range parsed.Cameras {
		if raw.ID == "" {
			continue
		}
		cam := &Camera{
			ID:         raw.ID,
			StreamURL:  raw.StreamURL,
			RTSPURL:    raw.RTSPURL,
			Resolution: raw.Resolution,
			ModelID:    raw.ModelID,
			Enabled:    raw.Enabled == nil || *raw.Enabled,
		}
		if w, h, ok := ParseResolution(raw.Resolution); ok {
			cam.Width, cam.Height, cam.ResolutionOK = w, h, true
			cam.Fences = parseFences(raw.ID, raw.VirtualFences, w, h, logger)
		} else if raw.Resolution != "" {
			logger.Printf("camera %s has malformed resolution %q", raw.ID, raw.Resolution)
		}
		cameras = append(cameras, cam)
	}
	return cameras, nil
}

func parseFences(cameraID string, fences []fenceJSON, width, height int, logger *log.Logger) []VirtualFence {
	out := make([]VirtualFence, 0, len(fences))
	for _, f := range fences {
		if f.Enabled != nil && !*f.Enabled {
			continue
		}
		name := f.Name
		if name == "" {
			name = "Zone"
		}
		points := NormalizePoints(f.Points, width, height)
		if len(points) < 3 {
			logger.Printf("camera %s fence %s ignored: fewer than 3 points", cameraID, name)
			continue
		}
		detect := make(map[string]struct{}, len(f.DetectObjects))
		for _, obj := range f.DetectObjects {
			if obj == "" {
				continue
			}
			detect[strings.ToLower(obj)] = struct{}{}
		}
		if len(detect) == 0 {
			logger.Printf("camera %s fence %s ignored: empty detectObjects", cameraID, name)
			continue
		}
		out = append(out, VirtualFence{
			Name:          name,
			Enabled:       true,
			Points:        points,
			DetectObjects: detect,
		})
	}
	return out
}

// LoadModels reads models.json. A model missing its runner path, a
// runner path that does not exist on disk, or a missing weights path
// disables the entry (it is dropped from the returned slice, logged).
// An invalid or absent inputSize falls back to 640x640.
func LoadModels(path string, logger *log.Logger) ([]ModelSpec, error) {
	logger = orDefault(logger)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read models.json: %w", err)
	}
	var parsed modelFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse models.json: %w", err)
	}

	models := make([]ModelSpec, 0, len(parsed.Models))
	for _, raw := range parsed.Models {
		if raw.Runner == "" {
			logger.Printf("model %q missing runner path, disabled", raw.Name)
			continue
		}
		if _, err := os.Stat(raw.Runner); err != nil {
			logger.Printf("model %q runner path %q does not exist, disabled", raw.Name, raw.Runner)
			continue
		}
		if raw.Weights == "" {
			logger.Printf("model %q missing weights path, disabled", raw.Name)
			continue
		}
		width, height := 640, 640
		if len(raw.InputSize) >= 2 {
			if w, okW := toInt(raw.InputSize[0]); okW {
				if h, okH := toInt(raw.InputSize[1]); okH {
					width, height = w, h
				} else {
					logger.Printf("model %q has invalid inputSize, using default 640x640", raw.Name)
				}
			} else {
				logger.Printf("model %q has invalid inputSize, using default 640x640", raw.Name)
			}
		}
		models = append(models, ModelSpec{
			Name:      raw.Name,
			Type:      raw.Type,
			Weights:   raw.Weights,
			Runner:    raw.Runner,
			Width:     width,
			Height:    height,
			Device:    raw.Device,
			ClassFile: raw.ClassFile,
		})
	}
	return models, nil
}

func toInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	default:
		return 0, false
	}
}

// ClassNames parses a YOLO-style class file: a `names:` header line
// followed by `<int>: <name>` lines. IDs may be sparse.
func ClassNames(path string) (map[int]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open class file: %w", err)
	}
	defer f.Close()

	names := make(map[int]string)
	scanner := bufio.NewScanner(f)
	inNames := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !inNames {
			if strings.HasPrefix(line, "names:") {
				inNames = true
			}
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		names[id] = strings.TrimSpace(parts[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan class file: %w", err)
	}
	return names, nil
}

func orDefault(logger *log.Logger) *log.Logger {
	if logger != nil {
		return logger
	}
	return log.Default()
}
