package domain

import "fmt"

// HeightRange is an inclusive block range enumerated from Start down to End.
type HeightRange struct {
	Start int64 `json:"start" yaml:"start"`
	End   int64 `json:"end"   yaml:"end"`
}

// Validate checks that the range is non-negative and descending.
func (r HeightRange) Validate() error {
	if r.End < 0 {
		return configErrorf("end height must not be negative, got %d", r.End)
	}
	if r.Start < r.End {
		return configErrorf("start height %d must be greater than or equal to end height %d", r.Start, r.End)
	}
	return nil
}

// Size returns the number of heights in the range.
func (r HeightRange) Size() int64 {
	if r.Start < r.End {
		return 0
	}
	return r.Start - r.End + 1
}

// Heights returns every height in the range, descending.
func (r HeightRange) Heights() []int64 {
	heights := make([]int64, 0, r.Size())
	for h := r.Start; h >= r.End; h-- {
		heights = append(heights, h)
	}
	return heights
}

// Contains reports whether h lies inside the range.
func (r HeightRange) Contains(h int64) bool {
	return h <= r.Start && h >= r.End
}

// String returns the range in "start_end" format, used for directory and log names.
func (r HeightRange) String() string {
	return fmt.Sprintf("%d_%d", r.Start, r.End)
}
