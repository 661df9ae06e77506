// Command fenceengine runs the fence evaluation engine: it subscribes
// to the detection topic, evaluates every detection against each
// camera's virtual fences, deduplicates by cooldown, and persists
// admitted events.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"vigil/internal/config"
	"vigil/internal/fenceengine"
	"vigil/internal/mqttbus"
	"vigil/internal/pgstore"
	"vigil/internal/shutdown"
)

func main() {
	logger := log.New(os.Stderr, "[fence] ", log.Ltime)

	env := config.LoadEnv()

	cameras, err := config.LoadCameras(env.CamerasJSON, logger)
	if err != nil {
		logger.Fatalf("load cameras: %v", err)
	}
	withFences := 0
	for _, c := range cameras {
		if len(c.Fences) > 0 {
			withFences++
		}
	}
	logger.Printf("loaded %d cameras (%d with fences)", len(cameras), withFences)

	ctx := context.Background()
	store, err := pgstore.Open(ctx, pgstore.Config{
		URL:      env.DatabaseURL,
		Host:     env.DatabaseHost,
		Port:     env.DatabasePort,
		Name:     env.DatabaseName,
		User:     env.DatabaseUser,
		Password: env.DatabasePassword,
		MinConns: 1,
		MaxConns: 5,
	})
	if err != nil {
		logger.Fatalf("open postgres: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		logger.Fatalf("migrate postgres: %v", err)
	}

	engine := fenceengine.New(fenceengine.Config{
		MQTT: mqttbus.Config{
			Host:     env.MQTTHost,
			Port:     env.MQTTPort,
			Username: env.MQTTUsername,
			Password: env.MQTTPassword,
			ClientID: "vigil-fence",
		},
		DetectionsTopic: env.DetectionsTopic(),
		EventsTopicFmt:  env.EventsTopic(),
		MQTTQoS:         byte(env.MQTTQoS),
		CooldownSeconds: env.FenceCooldownSeconds,
		PositionDigits:  env.FencePositionDigits,
	}, cameras, store, logger)

	if err := engine.Start(ctx); err != nil {
		logger.Fatalf("start fence engine: %v", err)
	}

	coord := shutdown.New()
	go engine.RunEvictionLoop(coord.Context(), time.Duration(env.FenceCooldownSeconds)*time.Second)

	<-coord.Context().Done()
	logger.Printf("shutting down")
	engine.Stop()
}
