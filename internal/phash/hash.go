package phash

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// GridCells is the number of luminance cells in one frame.
const GridCells = 64

// Hash is a 64-bit average hash.
type Hash uint64

// AverageHash sets one bit per cell whose value is strictly greater than the
// mean of all cells.
func AverageHash(gray []byte) (Hash, error) {
	if len(gray) != GridCells {
		return 0, fmt.Errorf("average hash: want %d cells, got %d", GridCells, len(gray))
	}
	var sum int
	for _, v := range gray {
		sum += int(v)
	}
	// cell > sum/64 without losing the fraction.
	var h Hash
	for _, v := range gray {
		h <<= 1
		if int(v)*GridCells > sum {
			h |= 1
		}
	}
	return h, nil
}

// Hamming counts differing bits.
func Hamming(a, b Hash) int {
	return bits.OnesCount64(uint64(a ^ b))
}

// MajorityVote sets each bit that is set in more than half of hashes.
// An empty input yields zero.
func MajorityVote(hashes []Hash) Hash {
	if len(hashes) == 0 {
		return 0
	}
	var ones [GridCells]int
	for _, h := range hashes {
		for i := 0; i < GridCells; i++ {
			if h&(1<<uint(i)) != 0 {
				ones[i]++
			}
		}
	}
	var out Hash
	for i := 0; i < GridCells; i++ {
		if ones[i]*2 > len(hashes) {
			out |= 1 << uint(i)
		}
	}
	return out
}

func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// ParseHash reads the 16-digit hex form produced by String.
func ParseHash(s string) (Hash, error) {
	s = strings.TrimPrefix(strings.TrimSpace(strings.ToLower(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hash %q: %w", s, err)
	}
	return Hash(v), nil
}
