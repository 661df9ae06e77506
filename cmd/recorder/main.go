// Command recorder runs the segment recorder, the pre-buffer recorder
// and the event clipper for every enabled camera: rolling segments to
// disk, a short pre-roll buffer, and MP4 clip synthesis on each event
// received over MQTT.
package main

import (
	"context"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"vigil/internal/clipper"
	"vigil/internal/config"
	"vigil/internal/mqttbus"
	"vigil/internal/pgstore"
	"vigil/internal/prebuffer"
	"vigil/internal/recorder"
	"vigil/internal/rewriter"
	"vigil/internal/shutdown"
)

func main() {
	logger := log.New(os.Stderr, "[recorder] ", log.Ltime)

	env := config.LoadEnv()

	rawCameras, err := config.LoadCameras(env.CamerasJSON, logger)
	if err != nil {
		logger.Fatalf("load cameras: %v", err)
	}
	cameras := recordableCameras(rawCameras, env.StreamHostInternal, env.StreamPortInternal)
	if len(cameras) == 0 {
		logger.Printf("no cameras enabled for recording")
	}

	ctx := context.Background()
	store, err := pgstore.Open(ctx, pgstore.Config{
		URL:      env.DatabaseURL,
		Host:     env.DatabaseHost,
		Port:     env.DatabasePort,
		Name:     env.DatabaseName,
		User:     env.DatabaseUser,
		Password: env.DatabasePassword,
		MinConns: 1,
		MaxConns: 3,
	})
	if err != nil {
		logger.Printf("postgres unavailable; thumbnail updates disabled: %v", err)
		store = nil
	}

	clipCameras := make(map[string]clipper.Camera, len(cameras))
	for _, c := range cameras {
		clipCameras[c.id] = clipper.Camera{ID: c.id, RTSPURL: c.rtspURL}
	}

	bufferSeconds := env.EventBufferSeconds
	retention := time.Duration(maxInt(bufferSeconds+env.EventPostSeconds+5, env.EventBufferSegmentSecs*3)) * time.Second

	clip := clipper.New(clipper.Config{
		RecordingsDir:        env.RecordingsDir,
		BufferDir:            env.EventBufferDir,
		EventsDir:            env.EventsDir,
		SegmentSeconds:       env.SegmentSeconds,
		PreSeconds:           env.EventPreSeconds,
		PostSeconds:          env.EventPostSeconds,
		BufferSegmentSeconds: env.EventBufferSegmentSecs,
		BufferEnabled:        env.EventBufferEnabled,
		BufferReencode:       env.EventBufferReencode,
		BufferGOP:            env.EventBufferGOP,
		SegmentReadyGrace:    time.Duration(env.SegmentReadyGrace) * time.Second,
		SegmentMaxWait:       time.Duration(env.SegmentMaxWait) * time.Second,
		BufferReadyGrace:     time.Duration(env.EventBufferReadyGrace) * time.Second,
		MinEventBytes:        env.EventMinBytes,
	}, clipCameras, store, logger)

	coord := shutdown.New()
	ctxRun := coord.Context()

	var wg sync.WaitGroup

	for _, c := range cameras {
		cam := c
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := recorder.New(cam.id, cam.rtspURL, recorder.Config{
				RecordingsDir:        env.RecordingsDir,
				SegmentSeconds:       env.SegmentSeconds,
				PostprocessStable:    time.Duration(env.PostprocessStableSeconds) * time.Second,
				PostprocessFaststart: env.PostprocessFaststart,
				PostprocessRemuxMP4:  env.PostprocessRemuxMP4,
			}, logger)
			w.Run(ctxRun)
		}()

		if env.EventBufferEnabled {
			wg.Add(1)
			go func() {
				defer wg.Done()
				w := prebuffer.New(cam.id, cam.rtspURL, prebuffer.Config{
					BufferDir:      env.EventBufferDir,
					SegmentSeconds: env.EventBufferSegmentSecs,
					Retention:      retention,
					Reencode:       env.EventBufferReencode,
					GOP:            env.EventBufferGOP,
				}, logger)
				w.Run(ctxRun)
			}()
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		clip.Run(ctxRun)
	}()

	mqttClient, err := mqttbus.Connect(mqttbus.Config{
		Host:     env.MQTTHost,
		Port:     env.MQTTPort,
		Username: env.MQTTUsername,
		Password: env.MQTTPassword,
		ClientID: "vigil-recorder",
	}, logger)
	if err != nil {
		logger.Fatalf("connect mqtt: %v", err)
	}
	if err := mqttClient.Subscribe(env.EventsTopic(), byte(env.MQTTQoS), clip.HandleMQTT); err != nil {
		logger.Fatalf("subscribe %s: %v", env.EventsTopic(), err)
	}
	logger.Printf("subscribed to %s", env.EventsTopic())

	<-ctxRun.Done()
	logger.Printf("shutting down")
	mqttClient.Disconnect(250)
	if store != nil {
		store.Close()
	}
	wg.Wait()
}

type recordableCamera struct {
	id      string
	rtspURL string
}

// recordableCameras filters the catalog down to what the recorder
// touches: disabled cameras are skipped, as is any camera/stream id
// ending in "overlay" (the synthetic overlay stream is not recorded as
// if it were a raw camera). Each survivor gets its effective RTSP URL
// resolved.
func recordableCameras(cameras []*config.Camera, streamHost string, streamPort int) []recordableCamera {
	var out []recordableCamera
	for _, c := range cameras {
		if !c.Enabled {
			continue
		}
		streamID := c.StreamURL
		if streamID == "" {
			streamID = c.ID
		}
		if c.ID == "" || streamID == "" {
			continue
		}
		if strings.HasSuffix(c.ID, "overlay") || strings.HasSuffix(streamID, "overlay") {
			continue
		}
		rtspURL := rewriter.BuildRTSPURL(streamHost, streamPort, streamID, c.RTSPURL)
		out = append(out, recordableCamera{id: c.ID, rtspURL: rtspURL})
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
