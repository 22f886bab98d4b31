package streamprobe

import (
	"fmt"
	"math"
)

// DefaultTolerance is the relative bitrate and size difference under which two
// streams count as the same file.
const DefaultTolerance = 0.05

// Options tunes Compare.
type Options struct {
	BitrateTolerance float64 `json:"bitrateTolerance"`
	SizeTolerance    float64 `json:"sizeTolerance"`
}

func (o Options) withDefaults() Options {
	if o.BitrateTolerance <= 0 {
		o.BitrateTolerance = DefaultTolerance
	}
	if o.SizeTolerance <= 0 {
		o.SizeTolerance = DefaultTolerance
	}
	return o
}

// Comparison is the verdict over a set of probed streams.
type Comparison struct {
	// Identical is true when every valid stream matches the first one.
	Identical   bool     `json:"identical"`
	Reference   string   `json:"reference"`
	Valid       []Result `json:"valid"`
	Failed      []Result `json:"failed,omitempty"`
	Differences []string `json:"differences,omitempty"`
	Options     Options  `json:"options"`
}

// Compare decides whether the probed streams are duplicates. The first valid
// stream is the reference: the others must share its resolution and stay
// within the bitrate and file size tolerances.
func Compare(results []Result, opts Options) (*Comparison, error) {
	opts = opts.withDefaults()
	cmp := &Comparison{Options: opts}

	for _, r := range results {
		if r.Info == nil {
			cmp.Failed = append(cmp.Failed, r)
			continue
		}
		cmp.Valid = append(cmp.Valid, r)
	}
	if len(cmp.Valid) < 2 {
		return cmp, ErrNotEnoughStreams
	}

	first := cmp.Valid[0]
	cmp.Reference = first.Label
	for _, r := range cmp.Valid[1:] {
		cmp.Differences = append(cmp.Differences, differences(first, r, opts)...)
	}
	cmp.Identical = len(cmp.Differences) == 0
	return cmp, nil
}

func differences(ref, other Result, opts Options) []string {
	a, b := ref.Info, other.Info
	var diffs []string
	if a.Resolution != b.Resolution {
		diffs = append(diffs, fmt.Sprintf("%s: resolution %s vs %s", other.Label, b.Resolution, a.Resolution))
	}
	if !withinTolerance(a.Bitrate, b.Bitrate, opts.BitrateTolerance) {
		diffs = append(diffs, fmt.Sprintf("%s: bitrate %d kbps vs %d kbps", other.Label, b.Bitrate/1000, a.Bitrate/1000))
	}
	if !withinTolerance(a.FileSize, b.FileSize, opts.SizeTolerance) {
		diffs = append(diffs, fmt.Sprintf("%s: size %.1f MB vs %.1f MB", other.Label, megabytes(b.FileSize), megabytes(a.FileSize)))
	}
	return diffs
}

// withinTolerance compares relative to the reference value, so a zero
// reference only matches zero.
func withinTolerance(ref, v int64, tolerance float64) bool {
	return math.Abs(float64(v-ref)) <= float64(ref)*tolerance
}

func megabytes(n int64) float64 {
	return float64(n) / (1024 * 1024)
}
