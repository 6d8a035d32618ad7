package calibrate

import (
	"errors"
	"math"
)

var ErrProductOverflow = errors.New("product size overflows int")

// Size returns the number of combinations in the Cartesian product of dims.
// It is zero when there are no dimensions or any dimension is empty.
func Size(dims [][]int64) (int, error) {
	if len(dims) == 0 {
		return 0, nil
	}
	for _, d := range dims {
		if len(d) == 0 {
			return 0, nil
		}
	}
	n := 1
	for _, d := range dims {
		if n > math.MaxInt/len(d) {
			return 0, ErrProductOverflow
		}
		n *= len(d)
	}
	return n, nil
}

// Combination decodes the idx-th combination in nested-iteration order: the
// first dimension varies slowest, the last fastest.
func Combination(dims [][]int64, idx int, dst []int64) []int64 {
	if cap(dst) < len(dims) {
		dst = make([]int64, len(dims))
	}
	dst = dst[:len(dims)]
	for i := len(dims) - 1; i >= 0; i-- {
		n := len(dims[i])
		dst[i] = dims[i][idx%n]
		idx /= n
	}
	return dst
}
