package detection

import (
	"errors"
	"fmt"

	"github.com/heimdex/heimdex-motion/internal/motion"
)

var ErrInvalidRequest = errors.New("invalid request")

// VideoIdentity is echoed back untouched. LastModified is opaque.
type VideoIdentity struct {
	Filename     string
	AbsolutePath string
	LastModified string
}

func (v VideoIdentity) Validate() error {
	switch {
	case v.Filename == "":
		return fmt.Errorf("%w: filename is required", ErrInvalidRequest)
	case v.AbsolutePath == "":
		return fmt.Errorf("%w: absolute_path is required", ErrInvalidRequest)
	case v.LastModified == "":
		return fmt.Errorf("%w: file_lastModifiedTime is required", ErrInvalidRequest)
	}
	return nil
}

type Request struct {
	VideoIdentity
	FrameCount int
}

func (r Request) Validate() error {
	if err := r.VideoIdentity.Validate(); err != nil {
		return err
	}
	if r.FrameCount < 0 {
		return fmt.Errorf("%w: frame_count must not be negative", ErrInvalidRequest)
	}
	return nil
}

type Response struct {
	VideoIdentity
	FrameCount     int
	MotionDetected bool
	Motions        []motion.Segment
}

// Assemble merges the request identity with a detection result.
func Assemble(req Request, res motion.Result) *Response {
	motions := res.Motions
	if motions == nil {
		motions = []motion.Segment{}
	}
	return &Response{
		VideoIdentity:  req.VideoIdentity,
		FrameCount:     req.FrameCount,
		MotionDetected: res.MotionDetected,
		Motions:        motions,
	}
}
