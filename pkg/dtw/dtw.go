// Package dtw scores feature sequences against templates with dynamic time
// warping over a bounded, reusable cost matrix.
package dtw

import (
	"errors"
	"fmt"
	"math"

	"github.com/chewxy/math32"
)

var (
	// ErrBoundsExceeded is returned when a sequence is longer than the matrix.
	ErrBoundsExceeded = errors.New("sequence exceeds matcher size")
	// ErrEmptySequence is returned when either sequence has no vectors.
	ErrEmptySequence = errors.New("empty sequence")
	// ErrInvalidParams is returned for a non-positive matcher size.
	ErrInvalidParams = errors.New("invalid matcher parameters")
)

// DefaultDistanceScale converts Euclidean distances to fixed point.
const DefaultDistanceScale = 65536

// Cost is an accumulated fixed-point distance.
type Cost uint64

// infinity marks the matrix border cells that have no predecessor.
const infinity = Cost(math.MaxUint64)

// Distance returns the fixed-point distance between two feature vectors.
type Distance func(a, b []float32) Cost

// Euclidean returns a Distance computing ‖b−a‖ × scale, truncated.
func Euclidean(scale float32) Distance {
	return func(a, b []float32) Cost {
		var sum float32
		for i := range a {
			d := b[i] - a[i]
			sum += d * d
		}
		return Cost(math32.Sqrt(sum) * scale)
	}
}

// Matcher compares sequences using a cost matrix of (maxSize+1)² cells
// allocated once. Row 0 and column 0 are the border: the corner is zero and
// every other border cell is unreachable, so the first real row and column
// accumulate plain running sums. A Matcher is not safe for concurrent use.
type Matcher struct {
	maxSize  int
	distance Distance
	cost     []Cost
}

// New creates a matcher for sequences of up to maxSize vectors. A nil
// distance selects Euclidean with DefaultDistanceScale.
func New(maxSize int, distance Distance) (*Matcher, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: max size must be positive, got %d", ErrInvalidParams, maxSize)
	}
	if distance == nil {
		distance = Euclidean(DefaultDistanceScale)
	}
	return &Matcher{
		maxSize:  maxSize,
		distance: distance,
		cost:     make([]Cost, (maxSize+1)*(maxSize+1)),
	}, nil
}

// MaxSize returns the longest sequence the matcher accepts.
func (m *Matcher) MaxSize() int {
	return m.maxSize
}

// Compare returns the DTW cost of aligning a and b, divided by
// len(a)+len(b).
func (m *Matcher) Compare(a, b [][]float32) (Cost, error) {
	lenA, lenB := len(a), len(b)
	if lenA == 0 || lenB == 0 {
		return 0, fmt.Errorf("%w: lengths %d and %d", ErrEmptySequence, lenA, lenB)
	}
	if lenA > m.maxSize || lenB > m.maxSize {
		return 0, fmt.Errorf("%w: lengths %d and %d, max %d", ErrBoundsExceeded, lenA, lenB, m.maxSize)
	}

	stride := lenB + 1
	cost := m.cost[:(lenA+1)*stride]

	cost[0] = 0
	for j := 1; j <= lenB; j++ {
		cost[j] = infinity
	}
	for i := 1; i <= lenA; i++ {
		cost[i*stride] = infinity
	}

	for i := 1; i <= lenA; i++ {
		row := cost[i*stride : (i+1)*stride]
		prev := cost[(i-1)*stride : i*stride]
		for j := 1; j <= lenB; j++ {
			cheapest := min(prev[j], row[j-1], prev[j-1])
			row[j] = cheapest + m.distance(a[i-1], b[j-1])
		}
	}

	return cost[lenA*stride+lenB] / Cost(lenA+lenB), nil
}

// Best returns the index of the lowest score. Equal scores resolve to the
// later index. It returns -1 for no scores.
func Best(scores []Cost) int {
	best := -1
	bestScore := infinity
	for i, s := range scores {
		if s <= bestScore {
			bestScore = s
			best = i
		}
	}
	return best
}
