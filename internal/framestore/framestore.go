// Package framestore holds the naming convention shared by the extractor and
// the detector. Frames for a video live in one flat directory as
// "<stem>_<i>.png", numbered from 1.
package framestore

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const Ext = ".png"

var ErrInvalidFilename = errors.New("invalid video filename")

// Stem returns the filename without its final extension.
func Stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FrameName returns the file name of the 1-based frame i.
func FrameName(stem string, i int) string {
	return fmt.Sprintf("%s_%d%s", stem, i, Ext)
}

func FramePath(root, stem string, i int) string {
	return filepath.Join(root, FrameName(stem, i))
}

// OutputPattern is the ffmpeg image2 muxer pattern producing FrameName files.
func OutputPattern(root, stem string) string {
	return filepath.Join(root, stem+"_%d"+Ext)
}

// VideoPath resolves dir/filename to an absolute, cleaned path. The filename
// must be a single path element.
func VideoPath(dir, filename string) (string, error) {
	if filename == "" || filename == "." || filename == ".." ||
		strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	abs, err := filepath.Abs(filepath.Join(dir, filename))
	if err != nil {
		return "", err
	}
	return abs, nil
}
