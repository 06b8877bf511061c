// Package media holds the filesystem and ffmpeg plumbing around video files:
// which extensions count as video, oldest-first directory listings with a
// retention cap, 8x8 grayscale frame grabs for perceptual hashing, and
// re-encoding cuts for offline segmentation.
package media
