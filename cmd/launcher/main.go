// Command launcher expands the camera x model configuration into a
// launch plan and supervises one inference-worker child process per
// (model, camera) pair.
package main

import (
	"log"
	"os"

	"vigil/internal/config"
	"vigil/internal/shutdown"
	"vigil/internal/supervisor"
)

func main() {
	logger := log.New(os.Stderr, "[launcher] ", log.Ltime)

	env := config.LoadEnv()

	cameras, err := config.LoadCameras(env.CamerasJSON, logger)
	if err != nil {
		logger.Fatalf("load cameras: %v", err)
	}
	models, err := config.LoadModels(env.ModelsJSON, logger)
	if err != nil {
		logger.Fatalf("load models: %v", err)
	}

	plan := supervisor.BuildPlan(cameras, models, env.StreamHostInternal, env.StreamPortInternal, logger)
	if len(plan) == 0 {
		logger.Printf("no cameras require a model. Nothing to launch.")
		os.Exit(1)
	}

	sup := supervisor.New(logger)
	sup.Launch(plan, supervisor.MQTTArgs{
		Host:     env.MQTTHost,
		Port:     env.MQTTPort,
		Topic:    env.MQTTTopicRaw,
		Username: env.MQTTUsername,
		Password: env.MQTTPassword,
		QoS:      env.MQTTQoS,
	})

	coord := shutdown.New()
	done := make(chan struct{})
	go func() {
		sup.Wait(coord.Context().Done())
		close(done)
	}()

	select {
	case <-coord.Context().Done():
		logger.Printf("shutting down")
		sup.Shutdown()
	case <-done:
	}
}
