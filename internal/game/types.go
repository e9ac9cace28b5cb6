// internal/game/types.go
//
// Core type definitions for the Word Collector engine.
// Defines:
//   - Outcome: result of submitting the tapped sequence (target/meaningful/wrong).
//   - Round: the target word plus its generated letter grid.
//   - CollectedLetter: a correct tap bound to one position of the target word.
//   - Snapshot: read-only copy of engine state handed to observers and callers.

package game

// Outcome represents the evaluation result of a submitted word.
// Possible values:
//   - "target":     the submission spelled the round's target word.
//   - "meaningful": the submission is a dictionary word other than the target.
//   - "wrong":      neither.
type Outcome string

const (
	OutcomeNone       Outcome = ""
	OutcomeTarget     Outcome = "target"
	OutcomeMeaningful Outcome = "meaningful"
	OutcomeWrong      Outcome = "wrong"
)

// Great reports whether the outcome earns the "great" popup.
func (o Outcome) Great() bool {
	return o == OutcomeTarget || o == OutcomeMeaningful
}

// Round is the active unit of play.
type Round struct {
	Target string // word to spell (lowercase)
	Grid   []byte // uppercase tiles, addressed by their position
}

// CollectedLetter records a correct tap.
type CollectedLetter struct {
	Letter    string `json:"letter"`    // tapped character as shown on the tile
	GridIndex int    `json:"gridIndex"` // tile it came from
	WordIndex int    `json:"wordIndex"` // position of the target word it fills
}

// TapResult describes what a single tap did.
type TapResult struct {
	Letter    string `json:"letter"`
	Correct   bool   `json:"correct"`
	WordIndex int    `json:"wordIndex"` // -1 for a wrong tap
	Score     int    `json:"score"`     // score after the tap
}

// Popup is the outcome banner shown for the display delay after a submission.
type Popup struct {
	Outcome  Outcome `json:"outcome"`
	IsTarget bool    `json:"isTarget"`
}

// Tile is one grid cell as seen by a caller.
type Tile struct {
	Index     int    `json:"index"`
	Letter    string `json:"letter"`
	Collected bool   `json:"collected"`
	Wrong     bool   `json:"wrong"`
}

// Snapshot is a point-in-time copy of everything a presentation layer reads.
type Snapshot struct {
	Score        int               `json:"score"`
	WordIndex    int               `json:"wordIndex"`
	TotalWords   int               `json:"totalWords"`
	Progress     float64           `json:"progress"`
	TargetWord   string            `json:"targetWord"`
	Grid         []Tile            `json:"grid"`
	Collected    []CollectedLetter `json:"collected"`
	Wrong        []int             `json:"wrong"`
	Typed        string            `json:"typed"`        // raw tapped sequence
	TypedDisplay string            `json:"typedDisplay"` // "B O Y"
	WordDisplay  string            `json:"wordDisplay"`  // "BO " while y is missing
	Popup        *Popup            `json:"popup,omitempty"`
	LastOutcome  Outcome           `json:"lastOutcome,omitempty"`
	GameOver     bool              `json:"gameOver"`
	Epoch        uint64            `json:"epoch"`
}
