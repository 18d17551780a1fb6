// Package matchmaking partitions an eligible pool into randomized groups.
//
// The package is pure: it holds no storage and draws randomness only from the
// Shuffler it is given, so a fixed seed yields a fixed grouping.
package matchmaking

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
)

// MinGroupSize is the smallest group size a run may request.
const MinGroupSize = 2

var (
	// ErrGroupSize is returned when the requested group size is below MinGroupSize.
	ErrGroupSize = errors.New("group size must be at least 2")

	// ErrPoolTooSmall is returned when fewer users are eligible than one group needs.
	ErrPoolTooSmall = errors.New("not enough eligible participants")
)

// Shuffler is a mutex-guarded source of uniform permutations.
type Shuffler struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewShuffler returns a Shuffler seeded with seed. A zero seed draws a fresh
// seed from crypto/rand.
func NewShuffler(seed uint64) (*Shuffler, error) {
	if seed == 0 {
		s, err := NewSeed()
		if err != nil {
			return nil, err
		}
		seed = s
	}
	return &Shuffler{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}, nil
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Shuffle permutes ids in place with Fisher-Yates; every permutation is
// equally likely.
func (s *Shuffler) Shuffle(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(ids) - 1; i > 0; i-- {
		j := s.r.IntN(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
}

// Partition splits ids into consecutive chunks of size. Only the last chunk
// can be short: a short chunk of two or more is kept as an undersized group,
// while a lone member is folded into the first group so no group of one
// survives.
func Partition(ids []string, size int) ([][]string, error) {
	if size < MinGroupSize {
		return nil, ErrGroupSize
	}
	if len(ids) < size {
		return nil, ErrPoolTooSmall
	}

	groups := make([][]string, 0, len(ids)/size+1)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunk := make([]string, end-start, size+1)
		copy(chunk, ids[start:end])
		groups = append(groups, chunk)
	}

	if last := groups[len(groups)-1]; len(last) == 1 && len(groups) > 1 {
		groups = groups[:len(groups)-1]
		groups[0] = append(groups[0], last[0])
	}
	return groups, nil
}

// Plan shuffles a copy of pool and partitions it into groups of size.
func Plan(pool []string, size int, s *Shuffler) ([][]string, error) {
	if size < MinGroupSize {
		return nil, ErrGroupSize
	}
	if len(pool) < size {
		return nil, ErrPoolTooSmall
	}
	ids := append([]string(nil), pool...)
	s.Shuffle(ids)
	return Partition(ids, size)
}
