// Package frames loads the ordered grayscale frame sequence of a video from
// the shared frame store.
package frames

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os"

	"github.com/disintegration/gift"

	"github.com/heimdex/heimdex-motion/internal/framestore"
)

// maxPrealloc caps the up-front slice capacity; the frame count comes from
// the caller and is only checked against the store as files are opened.
const maxPrealloc = 256

// ErrFrameNotFound is matched by every FrameNotFoundError.
var ErrFrameNotFound = errors.New("frame not found or unreadable")

// FrameNotFoundError reports the first frame of a sequence that could not be
// opened or decoded. Index is 1-based, matching the file name.
type FrameNotFoundError struct {
	Index int
	Path  string
	Err   error
}

func (e *FrameNotFoundError) Error() string {
	return fmt.Sprintf("frame %d not found or unreadable: %s: %v", e.Index, e.Path, e.Err)
}

func (e *FrameNotFoundError) Unwrap() error { return e.Err }

func (e *FrameNotFoundError) Is(target error) bool { return target == ErrFrameNotFound }

// Loader reads frames from a frame store root. It holds no state between calls.
type Loader struct {
	Root string
}

func NewLoader(root string) *Loader {
	return &Loader{Root: root}
}

// Load returns frames 1..n of stem, in order, as grayscale images. Any
// missing or undecodable frame fails the whole load.
func (l *Loader) Load(ctx context.Context, stem string, n int) ([]*image.Gray, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid frame count %d", n)
	}

	seq := make([]*image.Gray, 0, min(n, maxPrealloc))
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := framestore.FramePath(l.Root, stem, i)
		frame, err := readGray(path)
		if err != nil {
			return nil, &FrameNotFoundError{Index: i, Path: path, Err: err}
		}
		seq = append(seq, frame)
	}
	return seq, nil
}

func readGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return ToGray(img), nil
}

// ToGray converts img to a single-channel image anchored at the origin.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	g := gift.New(gift.Grayscale())
	dst := image.NewGray(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}
