// Package recorder turns a continuous capture into discrete segment files and
// hands each finished segment to the gateway.
//
// One Encoder is active at a time. Stopping it flushes everything buffered
// into exactly one file before another start is allowed. Segments are cut on a
// fixed timer or on boundary detector transitions, and uploads run in the
// background so the capture loop only pauses for the encoder restart.
package recorder
