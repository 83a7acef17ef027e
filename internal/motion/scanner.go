package motion

// Scanner is the IDLE/IN_MOTION state machine behind Detect. The zero value
// is an idle scanner with no segments. A Scanner belongs to one scan.
type Scanner struct {
	inMotion bool
	start    int
	motions  []Segment
}

// Observe records whether the transition from frame i-1 to frame i was motion.
// Transitions must be observed in increasing order of i starting at 1.
func (s *Scanner) Observe(i int, motion bool) {
	switch {
	case motion && !s.inMotion:
		s.inMotion = true
		s.start = i - 1
	case !motion && s.inMotion:
		s.motions = append(s.motions, Segment{Start: s.start, End: i - 1})
		s.inMotion = false
	}
}

// InMotion reports whether a segment is currently open.
func (s *Scanner) InMotion() bool {
	return s.inMotion
}

// Finish closes any open segment at frame n-1 and returns the result.
func (s *Scanner) Finish(n int) Result {
	if s.inMotion {
		s.motions = append(s.motions, Segment{Start: s.start, End: n - 1})
		s.inMotion = false
	}

	motions := s.motions
	if motions == nil {
		motions = []Segment{}
	}
	return Result{MotionDetected: len(motions) > 0, Motions: motions}
}
