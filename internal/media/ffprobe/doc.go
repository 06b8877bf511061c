// Package ffprobe runs ffprobe and decodes the stream and container metadata
// clipwatch needs: whether a file carries video, its dimensions and its
// duration. Offline segmentation uses the duration to lay out its sampling
// clock.
package ffprobe
