package duplicates

import (
	"encoding/binary"
	"sort"

	"github.com/zeebo/blake3"
)

// MinHash and LSH parameters: 128 hash functions split into 32 bands of 4
// rows. A pair at or above the semantic threshold collides in at least one
// band with near certainty; the Jaccard estimate makes the final call.
const (
	shingleSize = 4
	numHashes   = 128
	numBands    = 32
	rowsPerBand = 4
)

// signature is a MinHash sketch of a fragment's shingle set. The fraction
// of positions on which two sketches agree estimates the Jaccard similarity
// of the underlying sets.
type signature struct {
	values []uint64
}

// newSignature sketches a shingle set. Returns nil for an empty set so
// callers can exclude fragments with nothing to compare.
func newSignature(shingles []uint64) *signature {
	if len(shingles) == 0 {
		return nil
	}

	sig := &signature{values: make([]uint64, numHashes)}
	for i := range sig.values {
		sig.values[i] = ^uint64(0)
	}
	for _, shingle := range shingles {
		for i := 0; i < numHashes; i++ {
			if h := mixHash(shingle, uint64(i)); h < sig.values[i] {
				sig.values[i] = h
			}
		}
	}
	return sig
}

func (s *signature) jaccard(o *signature) float64 {
	if s == nil || o == nil || len(s.values) == 0 || len(s.values) != len(o.values) {
		return 0
	}
	matches := 0
	for i := range s.values {
		if s.values[i] == o.values[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(s.values))
}

// shingle hashes every k-gram of the token sequence with blake3. Sequences
// shorter than k collapse to a single shingle over the whole sequence.
func shingle(tokens []string, k int) []uint64 {
	if len(tokens) == 0 {
		return nil
	}

	h := blake3.New()
	if len(tokens) < k {
		for _, t := range tokens {
			h.Write([]byte(t))
		}
		sum := h.Sum(nil)
		return []uint64{binary.LittleEndian.Uint64(sum[:8])}
	}

	set := make(map[uint64]struct{})
	for i := 0; i+k <= len(tokens); i++ {
		h.Reset()
		for j := i; j < i+k; j++ {
			h.Write([]byte(tokens[j]))
		}
		sum := h.Sum(nil)
		set[binary.LittleEndian.Uint64(sum[:8])] = struct{}{}
	}

	shingles := make([]uint64, 0, len(set))
	for v := range set {
		shingles = append(shingles, v)
	}
	return shingles
}

// mixHash combines a shingle hash with a seed murmur-style without
// allocating in the MinHash inner loop.
func mixHash(value, seed uint64) uint64 {
	h := value ^ seed
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// hashBand folds one band of a signature FNV-style for LSH bucketing.
func hashBand(values []uint64, seed uint64) uint64 {
	const prime = 0x00000100000001B3
	h := seed ^ 0xcbf29ce484222325
	for _, v := range values {
		h ^= v
		h *= prime
	}
	return h
}

// candidatePairs buckets signatures band by band and returns every pair
// that collides in at least one band, sorted so verification order is
// deterministic. sigs is indexed by fragment; nil entries do not
// participate.
func candidatePairs(sigs []*signature) [][2]int {
	buckets := make([]map[uint64][]int, numBands)
	for band := range buckets {
		buckets[band] = make(map[uint64][]int)
	}

	for idx, sig := range sigs {
		if sig == nil {
			continue
		}
		for band := 0; band < numBands; band++ {
			start := band * rowsPerBand
			end := start + rowsPerBand
			if end > len(sig.values) {
				end = len(sig.values)
			}
			if start >= end {
				continue
			}
			key := hashBand(sig.values[start:end], uint64(band))
			buckets[band][key] = append(buckets[band][key], idx)
		}
	}

	seen := make(map[[2]int]struct{})
	for _, bandBuckets := range buckets {
		for _, bucket := range bandBuckets {
			for i := 0; i < len(bucket); i++ {
				for j := i + 1; j < len(bucket); j++ {
					a, b := bucket[i], bucket[j]
					if a > b {
						a, b = b, a
					}
					seen[[2]int{a, b}] = struct{}{}
				}
			}
		}
	}

	pairs := make([][2]int, 0, len(seen))
	for p := range seen {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}
