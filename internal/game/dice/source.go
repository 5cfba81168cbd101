package dice

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
	"sync"
)

// randSource adapts a math/rand/v2 generator to Source. The generator is not
// goroutine safe, so every draw holds mu.
type randSource struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// Intn returns a uniform int in [0, n).
//
// Precondition: n > 0; panics otherwise.
func (s *randSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// NewSeededSource returns a reproducible PCG Source: equal seeds give equal
// sequences, which is what a seeded battle replays.
func NewSeededSource(seed uint64) Source {
	return &randSource{rng: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// cryptoBits feeds math/rand/v2 from crypto/rand.
type cryptoBits struct{}

func (cryptoBits) Uint64() uint64 {
	var b [8]byte
	_, _ = rand.Read(b[:]) // never fails; crashes the program instead
	return binary.LittleEndian.Uint64(b[:])
}

// NewCryptoSource returns an unseeded Source drawing from crypto/rand. It is
// used when a battle has no seed.
func NewCryptoSource() Source {
	return &randSource{rng: mrand.New(cryptoBits{})}
}
