package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
)

const sample = `[
  {"step": 2, "time": "2025-01-07T12:00", "polygons_wkt": ["POLYGON((1 1,1 2,2 2,2 1,1 1))"]},
  {"step": 0, "time": "2025-01-07T10:00", "polygons_wkt": ["POLYGON((0 0,0 1,1 1,1 0,0 0))", "bogus"]},
  {"step": 1, "time": 1736244000, "polygons_wkt": []}
]`

func TestDecode(t *testing.T) {
	s, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	for i, want := range []int{0, 1, 2} {
		if s.Records[i].Step != want {
			t.Errorf("record %d step = %d, want %d", i, s.Records[i].Step, want)
		}
	}
	if s.Records[1].Time != "1736244000" {
		t.Errorf("numeric time = %q, want 1736244000", s.Records[1].Time)
	}
	if s.MaxStep() != 2 {
		t.Errorf("MaxStep = %d, want 2", s.MaxStep())
	}
	if s.PolygonCount() != 3 {
		t.Errorf("PolygonCount = %d, want 3", s.PolygonCount())
	}
}

func TestDecodeRejectsNegativeStep(t *testing.T) {
	_, err := Decode(strings.NewReader(`[{"step": -1, "time": "t", "polygons_wkt": []}]`))
	if !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("error = %v, want ErrInvalidRecord", err)
	}
}

func TestDecodeRejectsBadTime(t *testing.T) {
	if _, err := Decode(strings.NewReader(`[{"step": 0, "time": {"a": 1}}]`)); err == nil {
		t.Errorf("object time accepted")
	}
}

func TestTimeAt(t *testing.T) {
	s, _ := Decode(strings.NewReader(sample))
	tests := []struct {
		step int
		want string
	}{
		{-1, ""},
		{0, "2025-01-07T10:00"},
		{1, "1736244000"},
		{7, "2025-01-07T12:00"},
	}
	for _, tt := range tests {
		if got := s.TimeAt(tt.step); got != tt.want {
			t.Errorf("TimeAt(%d) = %q, want %q", tt.step, got, tt.want)
		}
	}
}

func TestBoundSkipsMalformed(t *testing.T) {
	s, _ := Decode(strings.NewReader(sample))
	b, ok := s.Bound()
	if !ok {
		t.Fatal("Bound not ok")
	}
	want := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}}
	if !b.Equal(want) {
		t.Errorf("Bound = %v, want %v", b, want)
	}

	var empty *Series
	if _, ok := empty.Bound(); ok {
		t.Errorf("nil series reported a bound")
	}
}

func TestNilSeries(t *testing.T) {
	var s *Series
	if s.Len() != 0 || s.MaxStep() != -1 || s.TimeAt(3) != "" {
		t.Errorf("nil series accessors misbehave")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fireTimeSeries.json")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3", s.Len())
	}

	emptyPath := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(emptyPath, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err = Load(emptyPath, "")
	if !errors.Is(err, ErrEmptySeries) {
		t.Errorf("empty Load error = %v, want ErrEmptySeries", err)
	}
	if s == nil || s.Len() != 0 {
		t.Errorf("empty Load should still return an empty series")
	}
}
