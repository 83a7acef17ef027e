package frames

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heimdex/heimdex-motion/internal/framestore"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func uniformGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestLoader_LoadsInOrder(t *testing.T) {
	root := t.TempDir()
	for i := 1; i <= 3; i++ {
		writePNG(t, framestore.FramePath(root, "clip", i), uniformGray(4, 3, uint8(i*10)))
	}

	seq, err := NewLoader(root).Load(context.Background(), "clip", 3)
	require.NoError(t, err)
	require.Len(t, seq, 3)

	for i, frame := range seq {
		assert.Equal(t, image.Rect(0, 0, 4, 3), frame.Bounds())
		assert.Equal(t, uint8((i+1)*10), frame.GrayAt(0, 0).Y, "frame %d", i)
	}
}

func TestLoader_ZeroFrames(t *testing.T) {
	seq, err := NewLoader(t.TempDir()).Load(context.Background(), "clip", 0)
	require.NoError(t, err)
	assert.Empty(t, seq)
}

func TestLoader_NegativeCount(t *testing.T) {
	_, err := NewLoader(t.TempDir()).Load(context.Background(), "clip", -1)
	assert.Error(t, err)
}

func TestLoader_MissingFrameFailsWholeLoad(t *testing.T) {
	root := t.TempDir()
	for i := 1; i <= 4; i++ {
		writePNG(t, framestore.FramePath(root, "clip", i), uniformGray(2, 2, 0))
	}

	seq, err := NewLoader(root).Load(context.Background(), "clip", 5)
	require.Error(t, err)
	assert.Nil(t, seq)
	assert.True(t, errors.Is(err, ErrFrameNotFound))

	var nf *FrameNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, 5, nf.Index)
	assert.Equal(t, filepath.Join(root, "clip_5.png"), nf.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoader_HugeCountAgainstEmptyStore(t *testing.T) {
	seq, err := NewLoader(t.TempDir()).Load(context.Background(), "clip", 1_000_000_000_000)
	assert.Nil(t, seq)

	var nf *FrameNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, 1, nf.Index)
}

func TestLoader_GapInSequence(t *testing.T) {
	root := t.TempDir()
	writePNG(t, framestore.FramePath(root, "clip", 1), uniformGray(2, 2, 0))
	writePNG(t, framestore.FramePath(root, "clip", 3), uniformGray(2, 2, 0))

	_, err := NewLoader(root).Load(context.Background(), "clip", 3)

	var nf *FrameNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, 2, nf.Index)
}

func TestLoader_UndecodableFrame(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(framestore.FramePath(root, "clip", 1), []byte("not a png"), 0644))

	_, err := NewLoader(root).Load(context.Background(), "clip", 1)
	assert.True(t, errors.Is(err, ErrFrameNotFound))
}

func TestLoader_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writePNG(t, framestore.FramePath(root, "clip", 1), uniformGray(2, 2, 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(root).Load(ctx, "clip", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToGray_ConvertsColor(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	src.Set(1, 0, color.RGBA{A: 255})

	dst := ToGray(src)
	require.Equal(t, image.Rect(0, 0, 2, 1), dst.Bounds())
	assert.InDelta(t, 255, int(dst.GrayAt(0, 0).Y), 1)
	assert.Equal(t, uint8(0), dst.GrayAt(1, 0).Y)
}

// Pure primaries where float and fixed-point BT.601 luma agree.
func TestToGray_PrimaryLuma(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 1))
	src.Set(0, 0, color.RGBA{R: 255, A: 255})
	src.Set(1, 0, color.RGBA{B: 255, A: 255})
	src.Set(2, 0, color.RGBA{A: 255})

	dst := ToGray(src)
	assert.Equal(t, uint8(76), dst.GrayAt(0, 0).Y, "red")
	assert.Equal(t, uint8(29), dst.GrayAt(1, 0).Y, "blue")
	assert.Equal(t, uint8(0), dst.GrayAt(2, 0).Y, "black")
}

func TestToGray_KeepsGrayInput(t *testing.T) {
	src := uniformGray(3, 3, 77)
	assert.Same(t, src, ToGray(src))
}
