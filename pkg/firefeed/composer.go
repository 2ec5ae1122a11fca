// Package firefeed turns the fire time series into the GeoJSON feature
// collection shown for one simulation step.
package firefeed

import (
	"log"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/sudorandom/fire-stream/pkg/dataset"
	"github.com/sudorandom/fire-stream/pkg/geometry"
	"github.com/sudorandom/fire-stream/pkg/perturb"
)

// DefaultIntensityWindow is the number of steps over which a polygon fades.
const DefaultIntensityWindow = 20

// Feature property keys.
const (
	PropStep      = "step"
	PropTime      = "time"
	PropIntensity = "intensity"
)

// Intensity is the visual weight of a polygon first seen at recordStep when
// the simulation is at step. It decays linearly to zero over window steps.
func Intensity(window, step, recordStep int) int {
	v := window - (step - recordStep)
	if v < 0 {
		return 0
	}
	return v
}

// Composer builds feature collections. It holds no state between calls
// besides its configuration.
type Composer struct {
	perturber *perturb.Engine
	window    int
}

// NewComposer returns a Composer. A nil perturber leaves rings untouched; a
// non-positive window uses DefaultIntensityWindow.
func NewComposer(p *perturb.Engine, window int) *Composer {
	if window <= 0 {
		window = DefaultIntensityWindow
	}
	return &Composer{perturber: p, window: window}
}

// Window returns the intensity decay window.
func (c *Composer) Window() int { return c.window }

// Build selects every record with Step <= step and returns one feature per
// decodable polygon. Faded polygons stay in the collection at intensity 0.
// Malformed polygons are logged and skipped. The result is never nil.
func (c *Composer) Build(records []dataset.Record, step int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, rec := range records {
		if rec.Step > step {
			continue
		}
		intensity := Intensity(c.window, step, rec.Step)
		for i, w := range rec.PolygonsWKT {
			ring, err := geometry.Decode(w)
			if err != nil {
				log.Printf("[firefeed] Skipping polygon %d of step %d: %v", i, rec.Step, err)
				continue
			}
			if c.perturber != nil {
				ring = c.perturber.Perturb(ring)
			}
			fc.AddFeature(newFeature(ring, rec, intensity))
		}
	}
	return fc
}

func newFeature(ring orb.Ring, rec dataset.Record, intensity int) *geojson.Feature {
	coords := make([][]float64, len(ring))
	for i, p := range ring {
		coords[i] = []float64{p[0], p[1]}
	}
	f := geojson.NewPolygonFeature([][][]float64{coords})

	b := ring.Bound()
	f.BoundingBox = []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
	f.SetProperty(PropStep, rec.Step)
	f.SetProperty(PropTime, string(rec.Time))
	f.SetProperty(PropIntensity, intensity)
	return f
}

// Ring returns the outer ring of a feature built by Composer.
func Ring(f *geojson.Feature) orb.Ring {
	if f == nil || f.Geometry == nil || !f.Geometry.IsPolygon() || len(f.Geometry.Polygon) == 0 {
		return nil
	}
	coords := f.Geometry.Polygon[0]
	ring := make(orb.Ring, len(coords))
	for i, c := range coords {
		if len(c) >= 2 {
			ring[i] = orb.Point{c[0], c[1]}
		}
	}
	return ring
}
