package policies

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

// Rand is a rand.Rand shared by the concurrent trials of a player
type Rand struct {
	lock sync.Mutex
	r    *rand.Rand
}

func NewRand(seed uint64) *Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Rand{r: rand.New(rand.NewSource(seed))}
}

func (r *Rand) Intn(n int) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.r.Intn(n)
}

func (r *Rand) Float64() float64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.r.Float64()
}

// Source returns a source seeded from r, for single goroutine use
func (r *Rand) Source() rand.Source {
	r.lock.Lock()
	defer r.lock.Unlock()
	return rand.NewSource(r.r.Uint64())
}
