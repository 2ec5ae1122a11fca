package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/paulmach/orb"
	_ "github.com/silbinarywolf/preferdiscretegpu"
	"github.com/sudorandom/fire-stream/pkg/config"
	"github.com/sudorandom/fire-stream/pkg/dataset"
	"github.com/sudorandom/fire-stream/pkg/fireengine"
	"github.com/sudorandom/fire-stream/pkg/firesim"
	"github.com/sudorandom/fire-stream/pkg/utils"
)

var cli struct {
	Dataset      string         `arg:"" help:"Time series JSON file or http(s) URL."`
	CacheDir     string         `help:"Download cache for remote datasets." default:"${cache_dir}" type:"path"`
	Width        int            `help:"Internal rendering width." default:"1920"`
	Height       int            `help:"Internal rendering height." default:"1080"`
	WindowWidth  int            `help:"Initial window width (non-headless only)." default:"1280"`
	WindowHeight int            `help:"Initial window height (non-headless only)." default:"720"`
	TPS          int            `name:"tps" help:"Ticks per second (engine updates)." default:"30"`
	Headless     bool           `help:"Run without a local window."`
	Capture      string         `help:"Write one PNG per step into this directory." type:"path"`
	Sim          config.Options `embed:"" prefix:"sim-"`
}

// Shown when the dataset has no usable geometry.
var fallbackBound = orb.Bound{Min: orb.Point{-116.1, 33.8}, Max: orb.Point{-115.9, 34.0}}

func main() {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	kong.Parse(&cli,
		kong.Name("fire-viewer"),
		kong.Description("Plays a fire spread time series in a desktop window."),
		kong.Vars{"cache_dir": utils.DefaultCacheDir},
	)

	series, err := dataset.Load(cli.Dataset, cli.CacheDir)
	switch {
	case errors.Is(err, dataset.ErrEmptySeries):
		log.Printf("Dataset %s has no records", cli.Dataset)
	case err != nil:
		log.Fatalf("Failed to load dataset: %v", err)
	}

	bound, ok := series.Bound()
	if !ok {
		bound = fallbackBound
	}

	engine := fireengine.NewEngine(cli.Width, cli.Height, bound, cli.Sim.IntensityWindow)
	engine.FrameCaptureDir = cli.Capture

	sim := firesim.New(series, cli.Sim, engine)
	sim.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		engine.Close()
	}()

	ebiten.SetTPS(cli.TPS)
	if cli.Headless {
		log.Println("Running in HEADLESS mode (Rendering active).")
	} else {
		ebiten.SetWindowSize(cli.WindowWidth, cli.WindowHeight)
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
		ebiten.SetWindowTitle("Fire Spread Viewer")
	}
	err = ebiten.RunGame(engine)

	sim.Stop()
	engine.Close()
	if err != nil {
		log.Fatal(err)
	}
}
