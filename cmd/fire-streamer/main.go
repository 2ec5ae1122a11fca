package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"
	"github.com/sudorandom/fire-stream/pkg/config"
	"github.com/sudorandom/fire-stream/pkg/dataset"
	"github.com/sudorandom/fire-stream/pkg/firesim"
	"github.com/sudorandom/fire-stream/pkg/hub"
	"github.com/sudorandom/fire-stream/pkg/server"
	"github.com/sudorandom/fire-stream/pkg/utils"
)

var cli struct {
	Dataset     string         `arg:"" help:"Time series JSON file or http(s) URL."`
	CacheDir    string         `help:"Download cache for remote datasets." default:"${cache_dir}" type:"path"`
	Addr        string         `help:"HTTP listen address." default:":8080" env:"FIRE_ADDR"`
	MapboxToken string         `help:"Mapbox access token for the map page." env:"MAPBOX_TOKEN"`
	Debug       bool           `help:"Verbose HTTP logging."`
	Sim         config.Options `embed:"" prefix:"sim-"`
}

func main() {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	kong.Parse(&cli,
		kong.Name("fire-streamer"),
		kong.Description("Streams a fire spread time series to browsers over websocket."),
		kong.Vars{"cache_dir": utils.DefaultCacheDir},
	)
	if !cli.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	series, err := dataset.Load(cli.Dataset, cli.CacheDir)
	switch {
	case errors.Is(err, dataset.ErrEmptySeries):
		log.Printf("Dataset %s has no records, serving an empty map", cli.Dataset)
	case err != nil:
		log.Fatalf("Failed to load dataset: %v", err)
	}
	log.Printf("Loaded %d steps with %d polygons", series.Len(), series.PolygonCount())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.New()
	go h.Run(ctx)

	sim := firesim.New(series, cli.Sim, h)
	sim.Start()

	srv := &http.Server{
		Addr:              cli.Addr,
		Handler:           server.New(sim, h, cli.MapboxToken).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Listening on %s", cli.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")
	sim.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
}
