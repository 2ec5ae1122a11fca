package firefeed

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"testing"

	geojson "github.com/paulmach/go.geojson"
	"github.com/sudorandom/fire-stream/pkg/dataset"
	"github.com/sudorandom/fire-stream/pkg/perturb"
)

const squareWKT = "POLYGON((0 0,0 1,1 1,1 0,0 0))"

func series() []dataset.Record {
	return []dataset.Record{
		{Step: 0, Time: "t0", PolygonsWKT: []string{squareWKT}},
		{Step: 3, Time: "t3", PolygonsWKT: []string{"POLYGON((1 1,1 2,2 2,2 1))", squareWKT}},
		{Step: 7, Time: "t7", PolygonsWKT: []string{squareWKT}},
		{Step: 30, Time: "t30", PolygonsWKT: []string{squareWKT}},
	}
}

func newTestComposer() *Composer {
	return NewComposer(perturb.New(perturb.DefaultConfig(), rand.New(rand.NewSource(1))), DefaultIntensityWindow)
}

func props(t *testing.T, f *geojson.Feature) (step, intensity int) {
	t.Helper()
	step, err := f.PropertyInt(PropStep)
	if err != nil {
		t.Fatalf("step property: %v", err)
	}
	intensity, err = f.PropertyInt(PropIntensity)
	if err != nil {
		t.Fatalf("intensity property: %v", err)
	}
	return step, intensity
}

func TestBuildEndToEnd(t *testing.T) {
	records := []dataset.Record{{Step: 0, Time: "t0", PolygonsWKT: []string{squareWKT}}}
	fc := newTestComposer().Build(records, 0)

	if len(fc.Features) != 1 {
		t.Fatalf("got %d features, want 1", len(fc.Features))
	}
	f := fc.Features[0]
	step, intensity := props(t, f)
	if step != 0 || intensity != 20 {
		t.Errorf("properties step=%d intensity=%d, want 0 and 20", step, intensity)
	}
	if tm, _ := f.PropertyString(PropTime); tm != "t0" {
		t.Errorf("time = %q, want t0", tm)
	}
	if !f.Geometry.IsPolygon() || len(f.Geometry.Polygon) != 1 {
		t.Fatalf("geometry is not a single-ring polygon: %+v", f.Geometry)
	}
	ring := f.Geometry.Polygon[0]
	if len(ring) < 5 {
		t.Errorf("ring has %d points, want >= 5", len(ring))
	}
	first, last := ring[0], ring[len(ring)-1]
	if first[0] != last[0] || first[1] != last[1] {
		t.Errorf("ring not closed: %v .. %v", first, last)
	}
	if len(f.BoundingBox) != 4 {
		t.Errorf("bbox = %v, want 4 values", f.BoundingBox)
	}
}

func TestBuildOnlyPastSteps(t *testing.T) {
	c := newTestComposer()
	for step := -1; step <= 35; step++ {
		fc := c.Build(series(), step)
		for _, f := range fc.Features {
			if s, _ := props(t, f); s > step {
				t.Fatalf("step %d: feature from step %d leaked", step, s)
			}
		}
	}
}

func TestBuildCounts(t *testing.T) {
	c := newTestComposer()
	tests := []struct {
		step, want int
	}{
		{-1, 0},
		{0, 1},
		{2, 1},
		{3, 3},
		{7, 4},
		{29, 4},
		{30, 5},
		{100, 5},
	}
	for _, tt := range tests {
		if got := len(c.Build(series(), tt.step).Features); got != tt.want {
			t.Errorf("Build(step %d) has %d features, want %d", tt.step, got, tt.want)
		}
	}
}

func TestBuildRetainsFaded(t *testing.T) {
	fc := newTestComposer().Build(series(), 100)
	for _, f := range fc.Features {
		if _, intensity := props(t, f); intensity != 0 {
			t.Errorf("intensity at step 100 = %d, want 0", intensity)
		}
	}
}

func TestBuildSkipsMalformed(t *testing.T) {
	records := []dataset.Record{{
		Step:        0,
		PolygonsWKT: []string{"POLYGON((0 0,0 x,1 1,0 0))", squareWKT, "garbage", squareWKT},
	}}
	fc := newTestComposer().Build(records, 0)
	if len(fc.Features) != 2 {
		t.Errorf("got %d features, want 2 siblings to survive", len(fc.Features))
	}
}

func TestBuildEmpty(t *testing.T) {
	c := newTestComposer()
	for _, records := range [][]dataset.Record{nil, {}} {
		fc := c.Build(records, 5)
		if fc == nil || fc.Features == nil || len(fc.Features) != 0 {
			t.Fatalf("empty series gave %+v", fc)
		}
		b, err := json.Marshal(fc)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Contains(b, []byte(`"features":[]`)) {
			t.Errorf("empty collection JSON = %s", b)
		}
	}
}

func TestBuildIdempotentModuloPerturbation(t *testing.T) {
	c := newTestComposer()
	for _, step := range []int{0, 3, 12, 40} {
		a := c.Build(series(), step)
		b := c.Build(series(), step)
		if len(a.Features) != len(b.Features) {
			t.Fatalf("step %d: counts differ %d vs %d", step, len(a.Features), len(b.Features))
		}
		for i := range a.Features {
			as, ai := props(t, a.Features[i])
			bs, bi := props(t, b.Features[i])
			if as != bs || ai != bi {
				t.Errorf("step %d feature %d: (%d,%d) vs (%d,%d)", step, i, as, ai, bs, bi)
			}
		}
	}
}

func TestBuildRerollsGeometry(t *testing.T) {
	c := newTestComposer()
	a := Ring(c.Build(series(), 0).Features[0])
	b := Ring(c.Build(series(), 0).Features[0])
	if a.Equal(b) {
		t.Errorf("consecutive builds produced identical geometry")
	}
}

func TestBuildWithoutPerturber(t *testing.T) {
	fc := NewComposer(nil, 0).Build(series(), 0)
	ring := Ring(fc.Features[0])
	if len(ring) != 5 || ring[2][0] != 1 || ring[2][1] != 1 {
		t.Errorf("unperturbed ring = %v", ring)
	}
}

func TestIntensity(t *testing.T) {
	const window = DefaultIntensityWindow
	for recordStep := 0; recordStep < 5; recordStep++ {
		prev := window + 1
		for step := recordStep; step < recordStep+40; step++ {
			got := Intensity(window, step, recordStep)
			if got < 0 {
				t.Fatalf("negative intensity %d", got)
			}
			if got > prev {
				t.Fatalf("intensity increased from %d to %d at step %d", prev, got, step)
			}
			if step-recordStep >= window && got != 0 {
				t.Fatalf("intensity %d at age %d, want 0", got, step-recordStep)
			}
			prev = got
		}
	}
	if got := Intensity(window, 5, 5); got != window {
		t.Errorf("fresh intensity = %d, want %d", got, window)
	}
	if got := Intensity(window, 15, 5); got != 10 {
		t.Errorf("half-aged intensity = %d, want 10", got)
	}
}
