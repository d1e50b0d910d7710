package bytetrack

import (
	"fmt"
	"math"
)

// Config holds the parameters fixed at tracker construction (spec section 6).
type Config struct {
	// TrackThresh is the high-confidence detection cutoff. det_thresh for
	// spawning new tracks is TrackThresh + 0.1.
	TrackThresh float64
	// TrackBuffer is the baseline frame count a lost track is retained for,
	// before frame-rate scaling.
	TrackBuffer int
	// MatchThresh gates the first (high-confidence) association stage.
	MatchThresh float64
	// FrameRate scales MaxTimeLost = floor(FrameRate/30 * TrackBuffer).
	FrameRate int
}

// DefaultConfig returns the reference ByteTrack defaults.
func DefaultConfig() Config {
	return Config{
		TrackThresh: 0.25,
		TrackBuffer: 30,
		MatchThresh: 0.8,
		FrameRate:   30,
	}
}

// validate checks Config against the invalid-configuration rules in spec
// section 7, returning ErrInvalidConfig (wrapped with detail) on failure.
func (c Config) validate() error {
	if c.FrameRate <= 0 {
		return fmt.Errorf("%w: frame_rate must be positive, got %d", ErrInvalidConfig, c.FrameRate)
	}
	if c.TrackBuffer <= 0 {
		return fmt.Errorf("%w: track_buffer must be positive, got %d", ErrInvalidConfig, c.TrackBuffer)
	}
	if c.TrackThresh <= 0 || c.TrackThresh >= 1 {
		return fmt.Errorf("%w: track_thresh must be in (0, 1), got %f", ErrInvalidConfig, c.TrackThresh)
	}
	if c.MatchThresh <= 0 || c.MatchThresh > 1 {
		return fmt.Errorf("%w: match_thresh must be in (0, 1], got %f", ErrInvalidConfig, c.MatchThresh)
	}
	return nil
}

// detThresh is the admission threshold for spawning brand-new tracks.
func (c Config) detThresh() float64 {
	return c.TrackThresh + 0.1
}

// maxTimeLost is the number of frames a Lost track survives before being
// moved to Removed.
func (c Config) maxTimeLost() int {
	return int(math.Floor(float64(c.FrameRate) / 30.0 * float64(c.TrackBuffer)))
}
