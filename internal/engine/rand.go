package engine

import (
	crand "crypto/rand"
	"math/rand/v2"
	"sync"
)

// Rand is the source of randomness for draws.
type Rand interface {
	// IntN returns a uniform value in [0, n).  n is always positive.
	IntN(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// NewCryptoRand returns a ChaCha8 generator seeded from crypto/rand.  It
// is safe for concurrent use.
func NewCryptoRand() Rand {
	var seed [32]byte
	_, _ = crand.Read(seed[:]) // never fails since Go 1.24
	return &lockedRand{r: rand.New(rand.NewChaCha8(seed))}
}

// NewSeededRand returns a reproducible generator for tests and replays.
func NewSeededRand(seed uint64) Rand {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// sample picks k distinct indexes out of [0, n) with a partial
// Fisher-Yates shuffle.  Every k-subset is equally likely.
func sample(r Rand, n, k int) []int {
	if k > n {
		k = n
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + r.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}
