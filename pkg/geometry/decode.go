// Package geometry decodes the fire-front polygons stored in the simulation
// dataset and measures them.
package geometry

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// ErrMalformedGeometry is returned for any WKT string that is not a
// single-ring POLYGON with numeric lon/lat pairs.
var ErrMalformedGeometry = errors.New("malformed geometry")

// MinRingPoints is the smallest closed ring Decode accepts.
const MinRingPoints = 4

// Decode parses a "POLYGON((lon lat, lon lat, ...))" string into a closed
// ring. Longitude comes first in every pair.
func Decode(s string) (orb.Ring, error) {
	if err := checkPairs(s); err != nil {
		return nil, err
	}

	poly, err := wkt.UnmarshalPolygon(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGeometry, err)
	}
	if len(poly) != 1 {
		return nil, fmt.Errorf("%w: want 1 ring, got %d", ErrMalformedGeometry, len(poly))
	}

	ring := make(orb.Ring, len(poly[0]), len(poly[0])+1)
	copy(ring, poly[0])
	for _, p := range ring {
		if !finite(p[0]) || !finite(p[1]) {
			return nil, fmt.Errorf("%w: non-finite coordinate %v", ErrMalformedGeometry, p)
		}
	}

	ring = Close(ring)
	if len(ring) < MinRingPoints {
		return nil, fmt.Errorf("%w: ring has %d points, need %d", ErrMalformedGeometry, len(ring), MinRingPoints)
	}
	return ring, nil
}

// Close appends a copy of the first point when the ring is open.
func Close(ring orb.Ring) orb.Ring {
	if len(ring) == 0 || ring.Closed() {
		return ring
	}
	return append(ring, ring[0])
}

// checkPairs verifies the wrapper and that every pair holds exactly two
// tokens. The wkt decoder tolerates Z/M ordinates, the dataset never has them.
func checkPairs(s string) error {
	body := strings.TrimSpace(s)
	upper := strings.ToUpper(body)
	if !strings.HasPrefix(upper, "POLYGON") || !strings.HasSuffix(body, "))") {
		return fmt.Errorf("%w: missing POLYGON((...)) wrapper", ErrMalformedGeometry)
	}
	body = strings.TrimSpace(body[len("POLYGON"):])
	if !strings.HasPrefix(body, "((") {
		return fmt.Errorf("%w: missing POLYGON((...)) wrapper", ErrMalformedGeometry)
	}
	body = body[2 : len(body)-2]

	for i, ring := range strings.Split(body, "),") {
		ring = strings.Trim(strings.TrimSpace(ring), "()")
		for j, pair := range strings.Split(ring, ",") {
			if n := len(strings.Fields(pair)); n != 2 {
				return fmt.Errorf("%w: ring %d pair %d has %d tokens", ErrMalformedGeometry, i, j, n)
			}
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
