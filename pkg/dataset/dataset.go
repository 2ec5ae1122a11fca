// Package dataset loads the fire-spread time series: one record per
// simulation step, each holding the WKT fire-front polygons of that step.
package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/sudorandom/fire-stream/pkg/geometry"
	"github.com/sudorandom/fire-stream/pkg/utils"
)

var (
	// ErrEmptySeries means the dataset holds no records.
	ErrEmptySeries = errors.New("empty time series")
	// ErrInvalidRecord means a record violates the dataset invariants.
	ErrInvalidRecord = errors.New("invalid record")
)

// Timestamp is the display time of a record. The dataset may carry it as a
// JSON string or number; either way it is kept as text.
type Timestamp string

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Timestamp(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("time must be a string or number, got %s", b)
	}
	*t = Timestamp(b)
	return nil
}

// Record is one simulation step.
type Record struct {
	Step        int       `json:"step"`
	Time        Timestamp `json:"time"`
	PolygonsWKT []string  `json:"polygons_wkt"`
}

// Series is the immutable, step-ordered time series.
type Series struct {
	Records []Record
}

// Decode reads a JSON array of records. Records are stably sorted by step.
func Decode(r io.Reader) (*Series, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding time series: %w", err)
	}
	for i, rec := range records {
		if rec.Step < 0 {
			return nil, fmt.Errorf("%w: record %d has negative step %d", ErrInvalidRecord, i, rec.Step)
		}
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Step < records[j].Step })
	return &Series{Records: records}, nil
}

// Load reads a series from a local path or an http(s) URL. Remote files are
// cached in cacheDir.
func Load(source, cacheDir string) (*Series, error) {
	r, err := utils.Open(source, cacheDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Printf("[dataset] Error closing %s: %v", source, err)
		}
	}()

	s, err := Decode(r)
	if err != nil {
		return nil, err
	}
	log.Printf("[dataset] Loaded %d records (%d polygons) from %s", s.Len(), s.PolygonCount(), source)
	if s.Len() == 0 {
		return s, ErrEmptySeries
	}
	return s, nil
}

// Len returns the number of records. A nil series has none.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// PolygonCount is the number of WKT polygons across all records.
func (s *Series) PolygonCount() int {
	n := 0
	for i := 0; i < s.Len(); i++ {
		n += len(s.Records[i].PolygonsWKT)
	}
	return n
}

// MaxStep returns the largest step, or -1 for an empty series.
func (s *Series) MaxStep() int {
	if s.Len() == 0 {
		return -1
	}
	return s.Records[len(s.Records)-1].Step
}

// TimeAt returns the time of the newest record whose step is <= step.
func (s *Series) TimeAt(step int) string {
	t := ""
	for i := 0; i < s.Len(); i++ {
		if s.Records[i].Step > step {
			break
		}
		t = string(s.Records[i].Time)
	}
	return t
}

// Bound returns the extent of every decodable polygon. ok is false when no
// polygon decodes.
func (s *Series) Bound() (b orb.Bound, ok bool) {
	for i := 0; i < s.Len(); i++ {
		for _, w := range s.Records[i].PolygonsWKT {
			ring, err := geometry.Decode(w)
			if err != nil {
				continue
			}
			if !ok {
				b, ok = ring.Bound(), true
				continue
			}
			b = b.Union(ring.Bound())
		}
	}
	return b, ok
}
