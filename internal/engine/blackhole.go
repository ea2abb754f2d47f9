package engine

import (
	"math"

	"github.com/haricheung/hadron/internal/phase"
	"github.com/haricheung/hadron/internal/types"
)

// Black-hole grid: 10×10 cells over (φ_t, φ_s). Because φ_s is derived from
// φ_t, a cell's j index is the mirror of i except when φ_t lies on a cell
// boundary; region centers follow the time axis.
const (
	gridSize            = 10
	blackHoleMinSamples = 5
	blackHoleFailRate   = 0.7
)

type cellTally struct {
	samples  int
	failures int
}

// DetectBlackHoles bins collapsed phases into a 10×10 grid and reports every
// cell with at least 5 samples and a failure rate above 0.7. Regions are
// ordered by cell, time axis first.
//
// Expectations:
//   - A cell with 5 samples, all failures, is reported
//   - A cell with 4 samples is never reported
//   - A cell at exactly 70% failures is not reported
//   - Region center is phase.New at the time-axis cell center, so it is dual;
//     radius is π/10
func DetectBlackHoles(history []types.CollapseResult) []types.BlackHoleRegion {
	var grid [gridSize][gridSize]cellTally
	for _, res := range history {
		i, j := GridCell(res.Phase)
		grid[i][j].samples++
		if !res.Success {
			grid[i][j].failures++
		}
	}

	width := phase.TwoPi / gridSize
	var regions []types.BlackHoleRegion
	for i := range grid {
		for j := range grid[i] {
			c := grid[i][j]
			if c.samples < blackHoleMinSamples {
				continue
			}
			rate := float64(c.failures) / float64(c.samples)
			if rate <= blackHoleFailRate {
				continue
			}
			regions = append(regions, types.BlackHoleRegion{
				Center:      phase.New((float64(i) + 0.5) * width),
				Radius:      math.Pi / gridSize,
				FailureRate: rate,
				Samples:     c.samples,
			})
		}
	}
	return regions
}

// GridCell returns the black-hole grid cell of p.
func GridCell(p phase.Point) (i, j int) {
	width := phase.TwoPi / gridSize
	i = int(phase.Normalize(p.T) / width)
	j = int(phase.Normalize(p.S) / width)
	return min(i, gridSize-1), min(j, gridSize-1)
}

func (e *Engine) refreshBlackHoles(cycleNo uint64) {
	prev := len(e.blackHoles)
	e.blackHoles = DetectBlackHoles(e.history.items())
	if len(e.blackHoles) != prev {
		e.log.Info("[ENGINE] black holes changed", "cycle", cycleNo, "before", prev, "after", len(e.blackHoles))
	}
	regions := make([]types.BlackHoleRegion, len(e.blackHoles))
	copy(regions, e.blackHoles)
	e.publish(types.SourceEngine, types.MsgBlackHoles, types.BlackHoleEvent{Cycle: cycleNo, Regions: regions})
}
