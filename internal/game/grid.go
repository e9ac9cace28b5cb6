package game

const (
	minGridSize = 8
	maxGridSize = 10
	gridPadding = 2

	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// GridSize returns the number of tiles generated for word:
// clamp(len(word)+2, 8, 10), or the distinct-letter count when that is larger.
func GridSize(word string) int {
	n := len(word) + gridPadding
	if n < minGridSize {
		n = minGridSize
	}
	if n > maxGridSize {
		n = maxGridSize
	}
	if d := len(distinctLetters(word)); d > n {
		return d
	}
	return n
}

// GenerateRound builds the grid for word: each distinct letter once, filler
// letters from the rest of the alphabet without repeats, then shuffled.
func GenerateRound(word string, rng Random) Round {
	letters := distinctLetters(word)
	grid := make([]byte, 0, GridSize(word))
	grid = append(grid, letters...)

	if need := GridSize(word) - len(grid); need > 0 {
		used := make(map[byte]bool, len(letters))
		for _, c := range letters {
			used[c] = true
		}
		pool := make([]byte, 0, len(alphabet))
		for i := 0; i < len(alphabet); i++ {
			if !used[alphabet[i]] {
				pool = append(pool, alphabet[i])
			}
		}
		for ; need > 0 && len(pool) > 0; need-- {
			j := rng.Intn(len(pool))
			grid = append(grid, pool[j])
			pool[j] = pool[len(pool)-1]
			pool = pool[:len(pool)-1]
		}
	}

	rng.Shuffle(len(grid), func(i, j int) { grid[i], grid[j] = grid[j], grid[i] })
	return Round{Target: word, Grid: grid}
}

// distinctLetters returns the uppercase letters of word in first-occurrence order.
func distinctLetters(word string) []byte {
	var seen [26]bool
	out := make([]byte, 0, len(word))
	for i := 0; i < len(word); i++ {
		c := upper(word[i])
		if c < 'A' || c > 'Z' || seen[c-'A'] {
			continue
		}
		seen[c-'A'] = true
		out = append(out, c)
	}
	return out
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
