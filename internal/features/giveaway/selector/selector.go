// Package selector draws giveaway winners from an entrant pool.
package selector

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
)

// NewSource returns a math/rand source seeded from crypto/rand.
func NewSource() *rand.Rand {
	var seed int64
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(buf[:]))
	}
	return rand.New(rand.NewSource(seed))
}

// Pick selects up to count distinct winners from entrants, skipping any
// id in exclude. When the eligible pool is not larger than count, the
// whole pool is returned in entry order. Otherwise winners come from a
// partial Fisher-Yates shuffle over a copy of the pool.
//
// Pick never mutates its inputs and performs no I/O.
func Pick(entrants []int64, count int, exclude []int64, rng *rand.Rand) []int64 {
	if count <= 0 {
		return []int64{}
	}

	excluded := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	pool := make([]int64, 0, len(entrants))
	for _, id := range entrants {
		if _, skip := excluded[id]; !skip {
			pool = append(pool, id)
		}
	}

	if len(pool) <= count {
		return pool
	}

	for i := 0; i < count; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:count]
}
