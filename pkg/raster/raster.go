// Package raster draws fire feature collections into CPU images. Geometry is
// projected with a local equirectangular projection fitted to the series
// extent, filled with a scanline rasterizer and outlined with Bresenham lines.
package raster

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"

	"github.com/paulmach/orb"
	geojson "github.com/paulmach/go.geojson"
	"github.com/sudorandom/fire-stream/pkg/firefeed"
)

var (
	ColorBackground = color.RGBA{8, 10, 15, 255}
	ColorGraticule  = color.RGBA{36, 42, 53, 255}
	ColorOutline    = color.RGBA{255, 255, 255, 178}
)

// Projector maps lon/lat to pixel coordinates.
type Projector struct {
	Width, Height int

	origin orb.Point
	cosLat float64
	scale  float64
	offX   float64
	offY   float64
}

// NewProjector fits bound into a width x height canvas, leaving padding
// pixels on every side. The aspect ratio is corrected for the latitude of
// the bound centre.
func NewProjector(bound orb.Bound, width, height int, padding float64) *Projector {
	center := bound.Center()
	p := &Projector{
		Width:  width,
		Height: height,
		origin: orb.Point{bound.Min.Lon(), bound.Max.Lat()},
		cosLat: math.Cos(center.Lat() * math.Pi / 180),
	}
	if p.cosLat < 0.01 {
		p.cosLat = 0.01
	}

	spanX := (bound.Max.Lon() - bound.Min.Lon()) * p.cosLat
	spanY := bound.Max.Lat() - bound.Min.Lat()
	availX := math.Max(float64(width)-2*padding, 1)
	availY := math.Max(float64(height)-2*padding, 1)

	switch {
	case spanX <= 0 && spanY <= 0:
		// A single point; show roughly a kilometre around it.
		p.scale = math.Min(availX, availY) / 0.01
	case spanX <= 0:
		p.scale = availY / spanY
	case spanY <= 0:
		p.scale = availX / spanX
	default:
		p.scale = math.Min(availX/spanX, availY/spanY)
	}

	p.offX = (float64(width) - spanX*p.scale) / 2
	p.offY = (float64(height) - spanY*p.scale) / 2
	return p
}

// Project returns the pixel position of lon/lat.
func (p *Projector) Project(lon, lat float64) (x, y float64) {
	x = p.offX + (lon-p.origin.Lon())*p.cosLat*p.scale
	y = p.offY + (p.origin.Lat()-lat)*p.scale
	return x, y
}

// Unproject is the inverse of Project.
func (p *Projector) Unproject(x, y float64) (lon, lat float64) {
	lon = p.origin.Lon() + (x-p.offX)/(p.cosLat*p.scale)
	lat = p.origin.Lat() - (y-p.offY)/p.scale
	return lon, lat
}

// Clear paints the whole image with c.
func Clear(img *image.RGBA, c color.RGBA) {
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
}

// blend composites c over the pixel at off using c's alpha.
func blend(img *image.RGBA, off int, c color.RGBA) {
	if c.A == 255 {
		img.Pix[off], img.Pix[off+1], img.Pix[off+2], img.Pix[off+3] = c.R, c.G, c.B, 255
		return
	}
	a := uint32(c.A)
	inv := 255 - a
	img.Pix[off] = uint8((uint32(c.R)*a + uint32(img.Pix[off])*inv) / 255)
	img.Pix[off+1] = uint8((uint32(c.G)*a + uint32(img.Pix[off+1])*inv) / 255)
	img.Pix[off+2] = uint8((uint32(c.B)*a + uint32(img.Pix[off+2])*inv) / 255)
	img.Pix[off+3] = uint8(a + uint32(img.Pix[off+3])*inv/255)
}

// FillPolygon fills rings (outer ring first, holes after) with the even-odd
// rule.
func FillPolygon(img *image.RGBA, p *Projector, rings [][][]float64, c color.RGBA) {
	if len(rings) == 0 || c.A == 0 {
		return
	}
	type point struct{ x, y float64 }
	w, h := img.Bounds().Dx(), img.Bounds().Dy()

	projected := make([][]point, len(rings))
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i, ring := range rings {
		projected[i] = make([]point, len(ring))
		for j, pt := range ring {
			x, y := p.Project(pt[0], pt[1])
			projected[i][j] = point{x, y}
			minY = math.Min(minY, y)
			maxY = math.Max(maxY, y)
		}
	}
	if math.IsInf(minY, 0) {
		return
	}

	var nodes []int
	for y := int(math.Max(minY, 0)); y <= int(math.Min(maxY, float64(h-1))); y++ {
		nodes = nodes[:0]
		fy := float64(y) + 0.5
		for _, ring := range projected {
			for i := 0; i < len(ring); i++ {
				j := (i + 1) % len(ring)
				if (ring[i].y < fy && ring[j].y >= fy) || (ring[j].y < fy && ring[i].y >= fy) {
					nodeX := ring[i].x + (fy-ring[i].y)/(ring[j].y-ring[i].y)*(ring[j].x-ring[i].x)
					nodes = append(nodes, int(math.Round(nodeX)))
				}
			}
		}
		sort.Ints(nodes)
		for i := 0; i < len(nodes)-1; i += 2 {
			xs, xe := nodes[i], nodes[i+1]
			if xs < 0 {
				xs = 0
			}
			if xe > w {
				xe = w
			}
			for x := xs; x < xe; x++ {
				blend(img, y*img.Stride+x*4, c)
			}
		}
	}
}

// StrokeRing draws the edges of ring.
func StrokeRing(img *image.RGBA, p *Projector, ring [][]float64, c color.RGBA) {
	for i := 0; i < len(ring)-1; i++ {
		x1, y1 := p.Project(ring[i][0], ring[i][1])
		x2, y2 := p.Project(ring[i+1][0], ring[i+1][1])
		DrawLine(img, int(x1), int(y1), int(x2), int(y2), c)
	}
}

// DrawLine draws a one pixel Bresenham line, clipped to the image.
func DrawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	dx, dy := abs(x2-x1), abs(y2-y1)
	sx, sy := -1, -1
	if x1 < x2 {
		sx = 1
	}
	if y1 < y2 {
		sy = 1
	}
	err := dx - dy
	for {
		if x1 >= 0 && x1 < w && y1 >= 0 && y1 < h {
			blend(img, y1*img.Stride+x1*4, c)
		}
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Graticule draws meridians and parallels every step degrees across the
// visible area.
func Graticule(img *image.RGBA, p *Projector, step float64, c color.RGBA) {
	if step <= 0 {
		return
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	minLon, maxLat := p.Unproject(0, 0)
	maxLon, minLat := p.Unproject(float64(w), float64(h))

	for lon := math.Ceil(minLon/step) * step; lon <= maxLon; lon += step {
		x, _ := p.Project(lon, 0)
		DrawLine(img, int(x), 0, int(x), h-1, c)
	}
	for lat := math.Ceil(minLat/step) * step; lat <= maxLat; lat += step {
		_, y := p.Project(0, lat)
		DrawLine(img, 0, int(y), w-1, int(y), c)
	}
}

type heatStop struct {
	t float64
	c color.RGBA
}

// Fresh fronts burn yellow, then red, then settle into a dark scar.
var heatRamp = []heatStop{
	{0, color.RGBA{0, 0, 0, 230}},
	{0.4, color.RGBA{146, 0, 0, 247}},
	{0.75, color.RGBA{221, 54, 4, 250}},
	{1, color.RGBA{255, 217, 0, 230}},
}

// HeatColor maps an intensity in [0, window] onto the fire colour ramp.
func HeatColor(intensity, window int) color.RGBA {
	if window <= 0 {
		window = firefeed.DefaultIntensityWindow
	}
	t := math.Max(0, math.Min(1, float64(intensity)/float64(window)))
	for i := 1; i < len(heatRamp); i++ {
		lo, hi := heatRamp[i-1], heatRamp[i]
		if t > hi.t {
			continue
		}
		f := (t - lo.t) / (hi.t - lo.t)
		return color.RGBA{
			R: lerp(lo.c.R, hi.c.R, f),
			G: lerp(lo.c.G, hi.c.G, f),
			B: lerp(lo.c.B, hi.c.B, f),
			A: lerp(lo.c.A, hi.c.A, f),
		}
	}
	return heatRamp[len(heatRamp)-1].c
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*f))
}

// Render draws every polygon of fc in order, so newer fronts end up on top
// of older ones. Features without an intensity property are drawn as fresh.
func Render(img *image.RGBA, p *Projector, fc *geojson.FeatureCollection, window int) {
	if fc == nil {
		return
	}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		intensity, err := f.PropertyInt(firefeed.PropIntensity)
		if err != nil {
			intensity = window
		}
		var polys [][][][]float64
		switch {
		case f.Geometry.IsPolygon():
			polys = [][][][]float64{f.Geometry.Polygon}
		case f.Geometry.IsMultiPolygon():
			polys = f.Geometry.MultiPolygon
		}
		fill := HeatColor(intensity, window)
		for _, poly := range polys {
			FillPolygon(img, p, poly, fill)
			for _, ring := range poly {
				StrokeRing(img, p, ring, ColorOutline)
			}
		}
	}
}
