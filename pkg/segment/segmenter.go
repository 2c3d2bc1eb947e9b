package segment

import (
	"errors"
	"fmt"
)

// ErrInvalidParams is returned for a non-positive quiet gap or capacity.
var ErrInvalidParams = errors.New("invalid segmenter parameters")

// State of the segmenter.
type State int

const (
	Silence State = iota // No word in progress
	Active               // Word in progress, including the trailing hangover
)

func (s State) String() string {
	switch s {
	case Silence:
		return "silence"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event describes what the caller must do with the frame passed to Update.
type Event struct {
	Active   bool // Amplitude is above the threshold (drives the status indicator)
	Store    bool // The frame's feature vector belongs to the word
	Index    int  // WordBuffer slot for the feature vector when Store is set
	Finished bool // The word ended on this frame
	Length   int  // Trimmed word length when Finished is set
}

// Segmenter delimits words by RMS amplitude. A word starts with the first
// frame above the threshold and ends after maxQuietGap consecutive frames at
// or below it. The hangover frames are counted while the word is in progress
// and trimmed from the reported length.
type Segmenter struct {
	threshold   float32
	maxQuietGap int

	wordLength int
	quietGap   int
}

// NewSegmenter creates a segmenter in the Silence state.
func NewSegmenter(threshold float32, maxQuietGap int) (*Segmenter, error) {
	if maxQuietGap <= 0 {
		return nil, fmt.Errorf("%w: max quiet gap must be positive, got %d", ErrInvalidParams, maxQuietGap)
	}
	return &Segmenter{
		threshold:   threshold,
		maxQuietGap: maxQuietGap,
	}, nil
}

// Update advances the state machine by one frame.
func (s *Segmenter) Update(amplitude float32) Event {
	var ev Event

	if amplitude > s.threshold {
		ev.Active = true
		s.wordLength++
		s.quietGap = s.maxQuietGap
	} else if s.wordLength > 0 {
		s.quietGap--
		s.wordLength++
		if s.quietGap == 0 {
			ev.Finished = true
			ev.Length = s.wordLength - s.maxQuietGap
			s.wordLength = 0
			return ev
		}
	}

	if s.wordLength > 0 {
		ev.Store = true
		ev.Index = s.wordLength - 1
	}
	return ev
}

// State reports whether a word is in progress.
func (s *Segmenter) State() State {
	if s.wordLength > 0 {
		return Active
	}
	return Silence
}

// WordLength returns the number of frames counted for the current word,
// hangover included.
func (s *Segmenter) WordLength() int {
	return s.wordLength
}

// Threshold returns the amplitude threshold.
func (s *Segmenter) Threshold() float32 {
	return s.threshold
}

// Reset drops any word in progress.
func (s *Segmenter) Reset() {
	s.wordLength = 0
	s.quietGap = 0
}
