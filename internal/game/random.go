package game

import (
	"math/rand"
	"time"
)

// Random is the source of every random choice the engine makes.
// *rand.Rand satisfies it.
type Random interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// NewRandom returns a seeded source. A seed of 0 means a clock-derived seed.
func NewRandom(seed int64) Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
