package terrain

import (
	"fmt"
	"math"
	"sort"

	"towerkeep.ai/internal/sim/tuning"
)

// SiteCell is the ground height of one footprint column.
type SiteCell struct {
	X, Z   int
	Ground int
}

// BuildPlane is the analyzed base of one footprint.
type BuildPlane struct {
	Footprint Footprint
	// Elevation is the Y of the block layer the structure stands on.
	Elevation int
	Median    int
	Min, Max  int
	Stddev    float64
	Inliers   int
	Outliers  int
	// CutVolume and FillVolume count blocks above and below Elevation.
	CutVolume  int
	FillVolume int
	Site       []SiteCell

	steepLimit float64
}

// Steep returns a warning when the footprint is rougher than the configured
// limit, or "" otherwise.
func (p BuildPlane) Steep() string {
	if p.steepLimit <= 0 || p.Stddev <= p.steepLimit {
		return ""
	}
	return fmt.Sprintf("steep terrain under %s: stddev %.1f > %.1f (cut %d, fill %d)", p.Footprint, p.Stddev, p.steepLimit, p.CutVolume, p.FillVolume)
}

type Analyzer struct {
	Tuning tuning.Terrain
}

func NewAnalyzer(t tuning.Terrain) *Analyzer { return &Analyzer{Tuning: t} }

// Analyze computes the base elevation of fp from hm. Heights whose distance
// to the median exceeds OutlierK*max(MAD, MinMAD) are ignored, and the
// elevation is the lower median of what remains.
func (a *Analyzer) Analyze(hm *HeightMap, fp Footprint) (BuildPlane, error) {
	if hm == nil || fp.Rect.Empty() || !hm.Rect().ContainsRect(fp.Rect) {
		area := fp.Rect
		if hm != nil {
			area = hm.Rect()
		}
		return BuildPlane{}, &InsufficientAreaError{Footprint: fp, Area: area}
	}

	var site []SiteCell
	var samples []int
	for x, z := range fp.Cells() {
		h, _ := hm.At(x, z)
		site = append(site, SiteCell{X: x, Z: z, Ground: h})
		samples = append(samples, h)
	}
	if len(samples) == 0 {
		return BuildPlane{}, &InsufficientAreaError{Footprint: fp, Area: hm.Rect()}
	}

	sorted := append([]int(nil), samples...)
	sort.Ints(sorted)
	med := lowerMedian(sorted)

	dev := make([]int, len(samples))
	for i, h := range samples {
		dev[i] = absInt(h - med)
	}
	sort.Ints(dev)
	mad := float64(lowerMedian(dev))
	limit := a.outlierK() * math.Max(mad, a.Tuning.MinMAD)

	inliers := make([]int, 0, len(sorted))
	for _, h := range sorted {
		if math.Abs(float64(h-med)) <= limit {
			inliers = append(inliers, h)
		}
	}
	elev := lowerMedian(inliers)

	p := BuildPlane{
		Footprint:  fp,
		Elevation:  elev,
		Median:     med,
		Min:        sorted[0],
		Max:        sorted[len(sorted)-1],
		Inliers:    len(inliers),
		Outliers:   len(sorted) - len(inliers),
		Site:       site,
		steepLimit: a.Tuning.SteepStddev,
	}
	var sum, sumSq float64
	for _, h := range samples {
		sum += float64(h)
		sumSq += float64(h) * float64(h)
		if h > elev {
			p.CutVolume += h - elev
		} else {
			p.FillVolume += elev - h
		}
	}
	n := float64(len(samples))
	mean := sum / n
	p.Stddev = math.Sqrt(math.Max(0, sumSq/n-mean*mean))
	return p, nil
}

func (a *Analyzer) outlierK() float64 {
	if a.Tuning.OutlierK <= 0 {
		return 3
	}
	return a.Tuning.OutlierK
}

func lowerMedian(sorted []int) int {
	return sorted[(len(sorted)-1)/2]
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
