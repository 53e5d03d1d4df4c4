// Package payload produces pseudo-random payload bytes for throughput
// measurement. The output is not cryptographically random; it only has to
// defeat compression and caching along the path so that measured speed
// reflects the wire, not an intermediary.
package payload

import (
	"encoding/binary"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

var generatorSeq atomic.Uint64

// Generator yields a pseudo-random byte stream. Each generator owns its own
// PRNG stream, so distinct generators produce distinct payloads and a single
// generator never repeats a fixed pattern across calls.
//
// A Generator is not safe for concurrent use; create one per transfer.
type Generator struct {
	rng *rand.Rand
}

// New returns a generator with a unique seed. Two generators created in the
// same nanosecond still diverge because of the process-wide sequence counter.
func New() *Generator {
	return NewSeeded(uint64(time.Now().UnixNano()), generatorSeq.Add(1))
}

// NewSeeded returns a deterministic generator. Intended for tests.
func NewSeeded(seed1, seed2 uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// Next returns a buffer of exactly n pseudo-random bytes.
// n <= 0 yields an empty buffer. Never fails.
func (g *Generator) Next(n int) []byte {
	if n <= 0 {
		return []byte{}
	}
	buf := make([]byte, n)
	g.Fill(buf)
	return buf
}

// Fill overwrites p with pseudo-random bytes, eight bytes per PRNG draw so
// generation keeps up with the network rates being measured.
func (g *Generator) Fill(p []byte) {
	i := 0
	for ; i+8 <= len(p); i += 8 {
		binary.LittleEndian.PutUint64(p[i:], g.rng.Uint64())
	}
	if i < len(p) {
		var tail [8]byte
		binary.LittleEndian.PutUint64(tail[:], g.rng.Uint64())
		copy(p[i:], tail[:])
	}
}
