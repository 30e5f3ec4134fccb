package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"auv-ng/internal/config"
	"auv-ng/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to YAML config (empty uses built-in defaults)")
	flag.Parse()

	logBuf := web.NewLogBuffer(2000)
	log.SetOutput(io.MultiWriter(os.Stderr, logBuf))

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("auv-ng starting")

	rt := newRuntime(ctx, cfg)

	if rt.degraded != "" {
		log.Printf("hardware degraded: %s (dives disabled, web stays up)", rt.degraded)
	}

	opts := web.Options{
		Gate:           rt.loop,
		HardwareOK:     rt.degraded == "",
		DegradedReason: rt.degraded,
		Logs:           logBuf,
		Dives:          rt.dives,
	}
	if rt.actuator != nil {
		opts.Motors = rt.actuator
	}
	if rt.plant != nil {
		opts.SimState = rt.plant.State
	}

	log.Printf("web listening on %s", cfg.Web.Listen)
	err := web.Serve(ctx, cfg.Web.Listen, opts)

	// Close before any exit so the motors are left in neutral.
	rt.Close()

	if err != nil && ctx.Err() == nil {
		log.Fatalf("web server failed: %v", err)
	}
	log.Printf("auv-ng stopping")
}
