package dqn

import "golang.org/x/exp/rand"

// Transition is one step of a trial from the point of view of the player
type Transition struct {
	State     []float64
	Action    int
	Reward    float64
	NextState []float64
}

// ReplayBuffer keeps the last capacity transitions
type ReplayBuffer struct {
	capacity int
	items    []Transition
	next     int
	total    int
}

func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &ReplayBuffer{capacity: capacity, items: make([]Transition, 0)}
}

// Add transitions, discarding the oldest ones beyond the capacity
func (b *ReplayBuffer) Add(ts ...Transition) {
	for _, t := range ts {
		b.total++
		if len(b.items) < b.capacity {
			b.items = append(b.items, t)
			continue
		}
		b.items[b.next] = t
		b.next = (b.next + 1) % b.capacity
	}
}

func (b *ReplayBuffer) Len() int {
	return len(b.items)
}

// Collected is the number of transitions ever added
func (b *ReplayBuffer) Collected() int {
	return b.total
}

// Sample n transitions uniformly, with replacement
func (b *ReplayBuffer) Sample(r *rand.Rand, n int) []Transition {
	if len(b.items) == 0 {
		return nil
	}
	out := make([]Transition, n)
	for i := range out {
		out[i] = b.items[r.Intn(len(b.items))]
	}
	return out
}
