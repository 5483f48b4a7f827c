// kcplus runs the sensor-fusion core of a live generative-art piece:
// biosignal and motion data in, normalized feature vectors out, for the
// configured duration of the performance.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/DigiScore/kc-plus/internal/config"
	"github.com/DigiScore/kc-plus/internal/log"
	"github.com/DigiScore/kc-plus/pkg/datalog"
	"github.com/DigiScore/kc-plus/pkg/director"
	"github.com/DigiScore/kc-plus/pkg/hivemind"
	"github.com/DigiScore/kc-plus/pkg/ingest"
	"github.com/DigiScore/kc-plus/pkg/sensor"
	"github.com/DigiScore/kc-plus/pkg/stream"
	"github.com/DigiScore/kc-plus/pkg/web"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.{yaml,toml,json}")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kcplus: %v\n", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	fmt.Println("🎭 kc-plus: starting sensor-fusion core")

	mind, err := hivemind.New(1, cfg.WindowLength)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kcplus: %v\n", err)
		os.Exit(1)
	}

	adapter := openAdapter(cfg)
	extents := ingest.Extents{
		X: sensor.Range{Lo: cfg.DancerX.Min, Hi: cfg.DancerX.Max},
		Y: sensor.Range{Lo: cfg.DancerY.Min, Hi: cfg.DancerY.Max},
		Z: sensor.Range{Lo: cfg.DancerZ.Min, Hi: cfg.DancerZ.Max},
	}
	loop, err := ingest.New(mind, adapter, cfg.SampleEvery, cfg.WindowLength, extents)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kcplus: %v\n", err)
		os.Exit(1)
	}

	d, err := director.New(mind, cfg.Duration)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kcplus: %v\n", err)
		os.Exit(1)
	}

	register := func(name string, r director.Runner) {
		if err := d.Register(name, r); err != nil {
			fmt.Fprintf(os.Stderr, "kcplus: %v\n", err)
			os.Exit(1)
		}
	}
	register("ingest", loop)
	register("web", web.NewServer(cfg.WebPort, d.Session(), mind, loop, cfg.SampleEvery))
	if cfg.StreamURL != "" {
		register("stream", stream.NewClient(cfg.StreamURL, d.Session(), mind, cfg.SampleEvery))
	}
	if cfg.DataWriter {
		register("datalog", datalog.NewWriter(cfg.DataDir, d.Session(), mind, cfg.SampleEvery))
	}

	if err := d.Start(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "kcplus: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("🎬 Piece started (session %s, %v, dashboard on :%s)\n",
		d.Session(), cfg.Duration, cfg.WebPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\n👋 Stopping the piece...")
	case <-d.Done():
	}

	if err := d.Terminate(); err != nil {
		fmt.Fprintf(os.Stderr, "kcplus: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("🎬 Piece finished")
}

// openAdapter connects the board when eda_live is set, falling back to
// synthetic sampling if the performer declines to keep retrying.
func openAdapter(cfg config.Config) sensor.Adapter {
	synthetic := sensor.NewSynthetic(
		sensor.Range{Lo: cfg.DancerX.Min, Hi: cfg.DancerX.Max},
		sensor.Range{Lo: cfg.DancerY.Min, Hi: cfg.DancerY.Max},
		sensor.Range{Lo: cfg.DancerZ.Min, Hi: cfg.DancerZ.Max},
	)
	if !cfg.EDALive {
		fmt.Println("🎲 Synthetic sampling (eda_live = false)")
		return synthetic
	}

	for {
		hw, err := sensor.Dial(sensor.DialOptions{
			Address:     cfg.Adapter.Address,
			Baud:        cfg.Adapter.Baud,
			Channels:    cfg.Adapter.Channels,
			DialTimeout: cfg.Adapter.DialTimeout,
			ReadTimeout: cfg.Adapter.ReadTimeout,
			Retries:     cfg.Adapter.Retries,
		})
		if err == nil {
			return hw
		}
		fmt.Printf("⚠️  Unable to connect to the board: %v\n", err)
		if !promptYes("Retry (y/N)? ") {
			fmt.Println("🎲 Falling back to synthetic sampling")
			return synthetic
		}
	}
}

func promptYes(prompt string) bool {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
