// Package main is the entry point for the timelit daemon.
//
// Usage:
//
//	timelit          - Start the sampling daemon
//	timelit daemon   - Start the sampling daemon
//	timelit stats    - Show today's per-app totals
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timelit/timelit/internal/config"
	"github.com/timelit/timelit/internal/daemon"
	"github.com/timelit/timelit/internal/monitor"
	"github.com/timelit/timelit/internal/platform"
	"github.com/timelit/timelit/internal/recorder"
	"github.com/timelit/timelit/internal/storage"
)

func main() {
	cmd := "daemon"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "daemon", "d":
		runDaemon()
	case "stats", "s":
		runStats()
	case "help", "-h", "--help":
		printHelp()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printHelp()
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println(`timelit - foreground activity tracker

Usage:
  timelit [command]

Commands:
  daemon, d    Start the sampling daemon (default)
  stats, s     Show today's per-app totals
  help         Show this help

Configuration is read from ~/.config/timelit/config.yaml.`)
}

func runDaemon() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("timelit starting...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	lock, err := daemon.AcquireLock(cfg.DBPath + ".lock")
	if err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			log.Println("Another instance is already running, exiting")
			return
		}
		log.Fatalf("Failed to acquire instance lock: %v", err)
	}
	defer lock.Release()

	plat, err := platform.Detect()
	if err != nil {
		log.Fatalf("Failed to detect platform: %v", err)
	}
	log.Printf("Platform detected: %s (%v)", plat, plat.SupportedFeatures())

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()
	log.Printf("Storage initialized at: %s", cfg.DBPath)

	mon := monitor.New(plat, cfg.IdleThreshold())
	rec := recorder.New(store, cfg.RotateSegmentEvery())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	manager := daemon.NewManager(cfg, mon, rec)
	manager.Start(ctx)

	log.Printf("timelit running | poll=%s | idle=%s | rotate=%s",
		cfg.PollInterval(), cfg.IdleThreshold(), cfg.RotateSegmentEvery())

	sig := <-sigChan
	log.Printf("Received signal %v, shutting down...", sig)

	cancel()
	manager.Stop()

	if stats, err := store.StatsFor(cfg.DBPath); err == nil {
		log.Printf("Session stats: %d segments stored", stats.TotalSegments)
	}
	log.Println("timelit stopped")
}

func runStats() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		fmt.Printf("Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	totals, err := store.TotalsByApp(dayStart.Unix(), now.Unix())
	if err != nil {
		fmt.Printf("Failed to query totals: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Activity since %s\n\n", dayStart.Format("2006-01-02 15:04"))
	if len(totals) == 0 {
		fmt.Println("  no activity recorded yet")
	}
	for _, t := range totals {
		fmt.Printf("  %-30s %s\n", t.ExeName, formatDuration(t.Seconds))
	}

	if stats, err := store.StatsFor(cfg.DBPath); err == nil {
		fmt.Printf("\n%d segments, %d apps, %d titles, %.1f MB on disk\n",
			stats.TotalSegments, stats.TotalApps, stats.TotalTitles,
			float64(stats.DatabaseSize)/(1024*1024))
	}
}

// formatDuration renders seconds as "2h 15m" / "3m 12s".
func formatDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d >= time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	if d >= time.Minute {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
