// Package main provides the entry point for the pose aligner.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"pose-aligner/internal/app"
	"pose-aligner/internal/config"
	"pose-aligner/internal/telemetry"
	"pose-aligner/internal/version"
	"pose-aligner/pkg/colorutil"
	"pose-aligner/ui/prefs"
)

const appTitle = "Pose Aligner"

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to the settings file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (%s, built %s)\n", appTitle, version.Version, version.GitCommit, version.BuildTime)
		return
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s v%s", appTitle, version.Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	appPrefs := prefs.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pub, closePub := setupTelemetry(ctx, cfg)
	defer closePub()

	live := &app.Live{
		Config:    cfg,
		Palette:   colorutil.DefaultPalette(),
		Publisher: pub,
		Out:       os.Stdout,
	}
	menu := app.New(cfg, appPrefs, os.Stdin, os.Stdout, live)
	live.Ask = menu.Ask

	if err := menu.Run(ctx); err != nil && ctx.Err() == nil {
		log.Printf("Menu: %v", err)
	}
	if err := appPrefs.Save(); err != nil {
		log.Printf("Failed to save preferences: %v", err)
	}
}

// setupTelemetry starts the deviation publishers the settings ask for.
func setupTelemetry(ctx context.Context, cfg *config.Config) (telemetry.Publisher, func()) {
	var pubs telemetry.Multi
	var closers []func() error

	if cfg.MQTTBroker != "" {
		p, err := telemetry.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
		if err != nil {
			log.Printf("Telemetry: MQTT disabled: %v", err)
		} else {
			log.Printf("Telemetry: publishing to %s on %s", cfg.MQTTTopic, cfg.MQTTBroker)
			pubs = append(pubs, p)
			closers = append(closers, p.Close)
		}
	}

	if cfg.WSAddr != "" {
		hub := telemetry.NewHub()
		go func() {
			if err := hub.ListenAndServe(ctx, cfg.WSAddr); err != nil {
				log.Printf("Telemetry: websocket server: %v", err)
			}
		}()
		log.Printf("Telemetry: websocket stream on ws://%s/ws", cfg.WSAddr)
		pubs = append(pubs, hub)
	}

	if len(pubs) == 0 {
		return telemetry.Nop{}, func() {}
	}
	return pubs, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Printf("Telemetry: %v", err)
			}
		}
	}
}
