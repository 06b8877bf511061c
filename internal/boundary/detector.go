package boundary

import (
	"sync"
	"time"

	"clipwatch/internal/phash"
)

// State is the detector's position relative to reference sequences.
type State int

const (
	Outside State = iota
	Inside
)

func (s State) String() string {
	if s == Inside {
		return "inside"
	}
	return "outside"
}

// Transition is the state change produced by a tick, if any.
type Transition int

const (
	NoTransition Transition = iota
	Entered
	Exited
)

func (t Transition) String() string {
	switch t {
	case Entered:
		return "entered"
	case Exited:
		return "exited"
	default:
		return "none"
	}
}

// Defaults used when Config fields are unset. A zero Threshold is a valid
// exact-match setting; only a negative one falls back.
const (
	DefaultThreshold = 10
	DefaultMinGap    = 10 * time.Second
	DefaultInterval  = 2 * time.Second
)

// Config tunes the detector.
type Config struct {
	// Threshold is the largest Hamming distance that still counts as a match.
	Threshold int
	MinGap    time.Duration
}

// Observation is the outcome of one tick.
type Observation struct {
	At         time.Time
	Matched    bool
	Distance   int
	Reference  string
	State      State
	Transition Transition
	// LastMatch is the time of the most recent matching tick, zero if none.
	LastMatch time.Time
}

// Detector is safe for concurrent use.
type Detector struct {
	refs      *phash.ReferenceSet
	threshold int
	minGap    time.Duration

	mu        sync.Mutex
	state     State
	lastMatch time.Time
}

// NewDetector builds a detector over refs. A nil or empty set never matches.
func NewDetector(refs *phash.ReferenceSet, cfg Config) *Detector {
	threshold := cfg.Threshold
	if threshold < 0 {
		threshold = DefaultThreshold
	}
	minGap := cfg.MinGap
	if minGap <= 0 {
		minGap = DefaultMinGap
	}
	return &Detector{refs: refs, threshold: threshold, minGap: minGap}
}

// Enabled reports whether any reference can match.
func (d *Detector) Enabled() bool {
	return d.refs.Len() > 0
}

// Observe feeds one frame hash taken at now.
func (d *Detector) Observe(now time.Time, h phash.Hash) Observation {
	d.mu.Lock()
	defer d.mu.Unlock()

	obs := Observation{At: now}
	if sig, distance, ok := d.refs.Nearest(h); ok {
		obs.Distance = distance
		obs.Reference = sig.Path
		obs.Matched = distance <= d.threshold
	}

	switch {
	case obs.Matched:
		d.lastMatch = now
		if d.state == Outside {
			d.state = Inside
			obs.Transition = Entered
		}
	case d.state == Inside && now.Sub(d.lastMatch) >= d.minGap:
		d.state = Outside
		obs.Transition = Exited
	}
	obs.State = d.state
	obs.LastMatch = d.lastMatch
	return obs
}

// State returns the current state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Reset returns the detector to Outside and forgets the last match.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = Outside
	d.lastMatch = time.Time{}
}
