// Package fireengine renders the fire simulation in an ebiten window.
package fireengine

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/paulmach/orb"
	"github.com/sudorandom/fire-stream/pkg/firefeed"
	"github.com/sudorandom/fire-stream/pkg/firesim"
	"github.com/sudorandom/fire-stream/pkg/raster"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// Engine is both the ebiten game and the simulation's render sink. Frames
// are rasterized on the CPU during Update and uploaded once per new frame.
type Engine struct {
	Width, Height int

	// FrameCaptureDir, when set, receives one PNG per rendered step.
	FrameCaptureDir string

	window     int
	proj       *raster.Projector
	background *image.RGBA
	canvas     *image.RGBA
	mapImage   *ebiten.Image

	fontSource *text.GoTextFaceSource
	monoSource *text.GoTextFaceSource

	ready  atomic.Bool
	closed atomic.Bool

	mu       sync.Mutex
	latest   *firesim.Frame
	drawnSeq uint64
	shown    *firesim.Frame
}

// NewEngine returns an engine showing bound on a width x height canvas.
// window is the intensity window used for the colour ramp.
func NewEngine(width, height int, bound orb.Bound, window int) *Engine {
	s, _ := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	m, _ := text.NewGoTextFaceSource(bytes.NewReader(gomono.TTF))
	if window <= 0 {
		window = firefeed.DefaultIntensityWindow
	}

	padding := float64(width) * 0.05
	proj := raster.NewProjector(bound, width, height, padding)

	bg := image.NewRGBA(image.Rect(0, 0, width, height))
	raster.Clear(bg, raster.ColorBackground)
	raster.Graticule(bg, proj, graticuleStep(proj, width), raster.ColorGraticule)

	return &Engine{
		Width:      width,
		Height:     height,
		window:     window,
		proj:       proj,
		background: bg,
		canvas:     image.NewRGBA(bg.Rect),
		fontSource: s,
		monoSource: m,
	}
}

// graticuleStep picks a round spacing that gives roughly ten lines across
// the canvas.
func graticuleStep(p *raster.Projector, width int) float64 {
	west, _ := p.Unproject(0, 0)
	east, _ := p.Unproject(float64(width), 0)
	span := east - west
	for _, step := range []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10} {
		if span/step <= 12 {
			return step
		}
	}
	return 30
}

// SetData stores frame for the next Update. It returns
// firesim.ErrSinkUnavailable until the game loop has started and after
// Close.
func (e *Engine) SetData(frame *firesim.Frame) error {
	if !e.ready.Load() || e.closed.Load() {
		return firesim.ErrSinkUnavailable
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latest != nil && frame.Seq <= e.latest.Seq {
		return nil
	}
	e.latest = frame
	return nil
}

// Close detaches the engine. The game loop ends on the next Update.
func (e *Engine) Close() {
	e.closed.Store(true)
}

// pending returns the newest frame not yet rasterized.
func (e *Engine) pending() *firesim.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.latest == nil || e.latest.Seq == e.drawnSeq {
		return nil
	}
	e.drawnSeq = e.latest.Seq
	return e.latest
}

// rasterize draws frame into the CPU canvas.
func (e *Engine) rasterize(frame *firesim.Frame) {
	copy(e.canvas.Pix, e.background.Pix)
	raster.Render(e.canvas, e.proj, frame.Collection, e.window)
}

func (e *Engine) Update() error {
	if e.closed.Load() {
		return ebiten.Termination
	}
	e.ready.Store(true)

	if e.mapImage == nil {
		e.mapImage = ebiten.NewImage(e.Width, e.Height)
		e.mapImage.WritePixels(e.background.Pix)
	}

	if frame := e.pending(); frame != nil {
		e.rasterize(frame)
		e.mapImage.WritePixels(e.canvas.Pix)
		e.shown = frame
		e.captureFrame(e.canvas, frame.Step)
	}
	return nil
}

func (e *Engine) Draw(screen *ebiten.Image) {
	if e.mapImage != nil {
		screen.DrawImage(e.mapImage, nil)
	}
	e.drawHUD(screen)
	e.drawLegend(screen)
}

func (e *Engine) Layout(w, h int) (int, int) { return e.Width, e.Height }

func (e *Engine) drawHUD(screen *ebiten.Image) {
	if e.monoSource == nil {
		return
	}
	margin, fontSize := 40.0, 18.0
	if e.Width > 2000 {
		margin, fontSize = 80.0, 36.0
	}

	lines := []string{"waiting for data..."}
	if f := e.shown; f != nil {
		lines = []string{
			fmt.Sprintf("STEP     %d", f.Step),
			fmt.Sprintf("TIME     %s", f.Time),
			fmt.Sprintf("POLYGONS %d", f.Features),
			fmt.Sprintf("FRONT    %.2f km²", f.AreaKm2),
		}
	}

	lineH := fontSize * 1.5
	boxW, boxH := fontSize*16, lineH*float64(len(lines))+20
	x, y := margin, float64(e.Height)-margin-boxH
	vector.DrawFilledRect(screen, float32(x-10), float32(y), float32(boxW), float32(boxH), color.RGBA{0, 0, 0, 140}, false)
	vector.DrawFilledRect(screen, float32(x-10), float32(y), 4, float32(boxH), raster.HeatColor(e.window, e.window), false)

	face := &text.GoTextFace{Source: e.monoSource, Size: fontSize}
	for i, line := range lines {
		op := &text.DrawOptions{}
		op.GeoM.Translate(x+5, y+10+float64(i)*lineH)
		op.ColorScale.Scale(1, 1, 1, 0.85)
		text.Draw(screen, line, face, op)
	}
}

func (e *Engine) drawLegend(screen *ebiten.Image) {
	if e.fontSource == nil {
		return
	}
	margin, fontSize, swatch := 40.0, 16.0, 16.0
	if e.Width > 2000 {
		margin, fontSize, swatch = 80.0, 32.0, 32.0
	}

	items := []struct {
		Label     string
		Intensity int
	}{
		{"Active front", e.window},
		{"Cooling", e.window / 2},
		{"Burned", 0},
	}

	face := &text.GoTextFace{Source: e.fontSource, Size: fontSize}
	lx := float64(e.Width) - margin - swatch - fontSize*8
	for i, it := range items {
		ty := margin + float64(i)*(swatch+12)
		vector.DrawFilledRect(screen, float32(lx), float32(ty), float32(swatch), float32(swatch), raster.HeatColor(it.Intensity, e.window), false)
		vector.StrokeRect(screen, float32(lx), float32(ty), float32(swatch), float32(swatch), 1, raster.ColorOutline, false)

		op := &text.DrawOptions{}
		op.GeoM.Translate(lx+swatch+10, ty+(swatch-fontSize)/2)
		op.ColorScale.Scale(1, 1, 1, 0.8)
		text.Draw(screen, it.Label, face, op)
	}
}
