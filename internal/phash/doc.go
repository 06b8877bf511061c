// Package phash computes 64-bit average hashes of 8x8 grayscale frames and
// keeps the reference signatures the boundary detector compares against.
//
// Bits are packed most significant first in row-major cell order: cell 0 is
// bit 63. A reference signature is the per-bit majority of several hashes
// sampled across the reference clip.
package phash
