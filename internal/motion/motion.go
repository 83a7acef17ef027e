// Package motion finds motion segments in an ordered grayscale frame sequence
// by fixed-threshold differencing of consecutive frames.
//
// A transition between frames i-1 and i is motion when more than
// MotionPixelCount pixels differ by more than PixelDiff. A segment opens at
// i-1 on the first motion transition and closes at i-1 on the first quiet
// one; a segment still open after the last transition closes at N-1.
package motion

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
)

const (
	DefaultPixelDiff        = 25
	DefaultMotionPixelCount = 5000
)

var (
	ErrDimensionMismatch = errors.New("frame dimensions differ")
	ErrInvalidThresholds = errors.New("invalid thresholds")
)

type Thresholds struct {
	// PixelDiff is the absolute intensity difference a pixel must exceed
	// to count as changed.
	PixelDiff uint8
	// MotionPixelCount is the number of changed pixels a transition must
	// exceed to count as motion.
	MotionPixelCount int
}

func DefaultThresholds() Thresholds {
	return Thresholds{PixelDiff: DefaultPixelDiff, MotionPixelCount: DefaultMotionPixelCount}
}

func (t Thresholds) Validate() error {
	if t.MotionPixelCount < 0 {
		return fmt.Errorf("%w: motion pixel count %d", ErrInvalidThresholds, t.MotionPixelCount)
	}
	return nil
}

// Segment is a closed interval of 0-based frame indices.
type Segment struct {
	Start int
	End   int
}

// MarshalJSON encodes the segment as [start, end].
func (s Segment) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{s.Start, s.End})
}

func (s *Segment) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	s.Start, s.End = pair[0], pair[1]
	return nil
}

type Result struct {
	MotionDetected bool
	Motions        []Segment
}

// ChangedPixels counts pixels whose absolute difference between a and b
// exceeds pixelDiff.
func ChangedPixels(a, b *image.Gray, pixelDiff uint8) (int, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 0, fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy())
	}

	w, h := ab.Dx(), ab.Dy()
	count := 0
	for y := 0; y < h; y++ {
		ra := a.Pix[y*a.Stride : y*a.Stride+w]
		rb := b.Pix[y*b.Stride : y*b.Stride+w]
		for x := range ra {
			d := int(ra[x]) - int(rb[x])
			if d < 0 {
				d = -d
			}
			if d > int(pixelDiff) {
				count++
			}
		}
	}
	return count, nil
}

// Detect scans frames left to right and returns the motion segments.
// Sequences shorter than two frames never contain motion.
func Detect(frames []*image.Gray, t Thresholds) (Result, error) {
	if err := t.Validate(); err != nil {
		return Result{}, err
	}

	var sc Scanner
	for i := 1; i < len(frames); i++ {
		changed, err := ChangedPixels(frames[i-1], frames[i], t.PixelDiff)
		if err != nil {
			return Result{}, fmt.Errorf("compare frames %d and %d: %w", i-1, i, err)
		}
		sc.Observe(i, changed > t.MotionPixelCount)
	}
	return sc.Finish(len(frames)), nil
}
