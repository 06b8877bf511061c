// Package boundary decides when a video feed is inside a known reference
// sequence.
//
// Detector is a two-state machine (Outside, Inside) driven by one aHash per
// tick. It enters on the first tick whose nearest reference is within the
// threshold and leaves only after MinGap has passed without a matching tick.
// Sampler runs the detector against a live frame source on a ticker; Scan
// replays it over a recorded file on a virtual clock.
package boundary
