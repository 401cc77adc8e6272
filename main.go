// Command pathframe runs the path service: a GNSS feed recorded into
// reference line waypoints, a Cartesian/road-relative path pair served over
// HTTP, and SQLite-backed cycle history.
package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/pathframe/internal/api"
	"github.com/banshee-data/pathframe/internal/config"
	"github.com/banshee-data/pathframe/internal/gpsfeed"
	"github.com/banshee-data/pathframe/internal/store"
	"github.com/banshee-data/pathframe/internal/timeutil"
	"github.com/banshee-data/pathframe/internal/version"
)

var (
	//go:embed static/*
	staticFiles embed.FS

	devMode     = flag.Bool("dev", false, "Serve UI and migrations from disk instead of the embedded copies")
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	dbFile      = flag.String("db", "cycles.db", "SQLite database path")
	serialPort  = flag.String("serial", "", "GNSS serial port; 'replay' streams a synthetic drive, empty disables capture")
	configFile  = flag.String("config", "", "Tuning config JSON file")
	plotsDir    = flag.String("plots-dir", "plots", "Directory for cycle plot exports; empty disables the endpoint")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func loadTuning() *config.PathTuning {
	if *configFile != "" {
		tuning, err := config.LoadPathTuning(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configFile, err)
		}
		return tuning
	}
	if tuning, err := config.LoadPathTuning(config.DefaultConfigPath); err == nil {
		return tuning
	}
	log.Printf("no %s found, using built-in defaults", config.DefaultConfigPath)
	return config.EmptyPathTuning()
}

func newFeed(tuning *config.PathTuning) (gpsfeed.FeedInterface, error) {
	switch *serialPort {
	case "":
		return gpsfeed.NewDisabledFeed(), nil
	case "replay":
		return gpsfeed.NewReplayFeed(nil, time.Second), nil
	default:
		return gpsfeed.NewSerialFeed(*serialPort, gpsfeed.PortOptions{
			BaudRate: tuning.GetGPSBaud(),
		})
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("pathframe %s\n", version.String())
		return
	}

	if flag.Arg(0) == "migrate" {
		store.RunMigrateCommand(flag.Args()[1:], *dbFile)
		return
	}
	if flag.NArg() > 0 {
		log.Fatalf("Unknown command: %s", flag.Arg(0))
	}

	if *listen == "" {
		log.Fatal("a listen address is required")
	}

	log.Printf("pathframe %s", version.String())

	tuning := loadTuning()
	if err := tuning.Validate(); err != nil {
		log.Fatalf("Invalid tuning config: %v", err)
	}

	feed, err := newFeed(tuning)
	if err != nil {
		log.Fatalf("failed to open GNSS feed: %v", err)
	}
	defer feed.Close()

	st, err := store.NewStoreWithMigrationCheck(*dbFile, *devMode)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer st.Close()

	recorder := gpsfeed.NewRecorder(tuning.GetMinSpacingM(), timeutil.RealClock{}, nil)

	// Create a wait group for the HTTP server, feed monitor, and recorder routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port, reopening
	// the port after failures at the configured backoff
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := gpsfeed.RunFeed(ctx, feed, timeutil.RealClock{}, tuning.GetReconnectBackoff(), nil)
		if err != nil && err != context.Canceled {
			log.Printf("failed to monitor GNSS feed: %v", err)
		}
		log.Print("feed supervisor stopped")
	}()

	// subscribe to the feed and turn fixes into waypoints
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := feed.Subscribe()
		defer feed.Unsubscribe(id)
		if err := recorder.Run(ctx, c); err != nil && err != context.Canceled {
			log.Printf("recorder terminated: %v", err)
		}
		log.Printf("recorder stopped")
	}()

	// serve the API, the admin pages, and the UI
	wg.Add(1)
	go func() {
		defer wg.Done()

		apiServer := api.NewServer(st, recorder, tuning, timeutil.RealClock{})
		apiServer.SetPlotsDir(*plotsDir)
		mux := apiServer.ServeMux()

		// mount the admin debugging routes
		st.AttachAdminRoutes(mux)
		feed.AttachAdminRoutes(mux)

		// Embedded assets serve production; -dev reads ./static off disk
		// so UI edits show up on reload.
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./static"))
		} else {
			sub, err := fs.Sub(staticFiles, "static")
			if err != nil {
				log.Fatalf("failed to mount embedded static files: %v", err)
			}
			staticHandler = http.FileServer(http.FS(sub))
		}
		mux.Handle("/", staticHandler)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// ListenAndServe blocks until Shutdown, so it runs aside while
		// this routine waits for the stop signal.
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("stopping http server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}

		log.Printf("http server stopped")
	}()

	wg.Wait()
	log.Printf("shutdown complete")
}
