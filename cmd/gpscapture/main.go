// Command gpscapture records reference line waypoints from a GNSS feed. It
// subscribes to the sentence stream, thins fixes through the recorder, and
// writes the waypoint CSV when the capture duration elapses or on SIGINT.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/pathframe/internal/fsutil"
	"github.com/banshee-data/pathframe/internal/gpsfeed"
	"github.com/banshee-data/pathframe/internal/timeutil"
	"github.com/banshee-data/pathframe/refline"
)

// Config holds the capture settings.
type Config struct {
	Serial      string
	Baud        int
	MinSpacingM float64
	OutputFile  string
	Duration    time.Duration
}

func main() {
	cfg := parseFlags()

	if cfg.Serial == "" {
		fmt.Fprintln(os.Stderr, "Error: serial port is required")
		flag.Usage()
		os.Exit(1)
	}

	feed, err := buildFeed(cfg)
	if err != nil {
		log.Fatalf("Failed to open GPS feed: %v", err)
	}
	defer feed.Close()

	rec := gpsfeed.NewRecorder(cfg.MinSpacingM, timeutil.RealClock{}, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := rec.Stats()
				log.Printf("Capturing: %d fixes, %d waypoints, %d dropped", s.Fixes, s.Waypoints, s.Dropped)
			}
		}
	}()

	log.Printf("Capturing from %s; stop with Ctrl-C", cfg.Serial)
	capture(ctx, feed, rec)

	stats := rec.Stats()
	log.Printf("Capture finished: %d fixes, %d waypoints, %d dropped", stats.Fixes, stats.Waypoints, stats.Dropped)

	if err := writeWaypointsFile(fsutil.OSFileSystem{}, cfg.OutputFile, rec.Waypoints()); err != nil {
		log.Fatalf("Failed to write %s: %v", cfg.OutputFile, err)
	}
	log.Printf("Wrote %d waypoints to %s", stats.Waypoints, cfg.OutputFile)
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.Serial, "serial", "", "GNSS serial port; 'replay' streams a synthetic drive (required)")
	flag.IntVar(&cfg.Baud, "baud", 9600, "Serial baud rate")
	flag.Float64Var(&cfg.MinSpacingM, "min-spacing", 0.25, "Minimum spacing between waypoints in meters")
	flag.StringVar(&cfg.OutputFile, "o", "waypoints.csv", "Output waypoints CSV path")
	flag.DurationVar(&cfg.Duration, "duration", 0, "Stop after this long; 0 captures until interrupted")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Records reference line waypoints from a live GNSS feed.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -serial /dev/ttyUSB0 -o loop.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -serial replay -duration 35s\n", os.Args[0])
	}

	flag.Parse()
	return cfg
}

func buildFeed(cfg Config) (gpsfeed.FeedInterface, error) {
	if cfg.Serial == "replay" {
		return gpsfeed.NewReplayFeed(nil, time.Second), nil
	}
	return gpsfeed.NewSerialFeed(cfg.Serial, gpsfeed.PortOptions{BaudRate: cfg.Baud})
}

// capture runs the feed monitor and the recorder loop until ctx is done.
func capture(ctx context.Context, feed gpsfeed.FeedInterface, rec *gpsfeed.Recorder) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		err := gpsfeed.RunFeed(ctx, feed, nil, 0, nil)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			log.Printf("GPS monitor error: %v", err)
		}
	}()

	go func() {
		defer wg.Done()
		id, lines := feed.Subscribe()
		defer feed.Unsubscribe(id)
		_ = rec.Run(ctx, lines)
	}()

	wg.Wait()
}

// writeWaypointsFile encodes waypoints and writes them through fs, creating
// the parent directory when needed.
func writeWaypointsFile(fs fsutil.FileSystem, path string, wpts []refline.Waypoint) error {
	if len(wpts) == 0 {
		return fmt.Errorf("no waypoints recorded")
	}
	var buf bytes.Buffer
	if err := refline.WriteWaypoints(&buf, wpts); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return fs.WriteFile(path, buf.Bytes(), 0644)
}
