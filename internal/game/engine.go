// internal/game/engine.go
//
// Core game engine for a single Word Collector session.
// Responsibilities:
//   - Keep the session word order and reshuffle it on reset / new word.
//   - Generate a Round (target word + letter grid) for the current word.
//   - Validate taps: fill the first open matching position or penalize.
//   - Score submissions: target word, other dictionary word, or wrong.
//   - Track lifecycle: next round after a target match, game over after the last word.
//
// Notes:
//   - All randomness goes through Config.Rand; all delays through Config.Scheduler.
//   - Delayed effects capture the epoch they were scheduled under and are dropped
//     if a reset, new word, or round advance happened in between.
//   - Every exported method holds e.mu for its whole duration. Observers run
//     after the lock is released and may call back into the engine.
package game

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	tapReward     = 2
	tapPenalty    = 5
	targetReward  = 10
	meaningReward = 5
	wrongPenalty  = 2
	letterBonus   = 10 // per letter of the target, added when the round advances

	WrongMarkDelay = 1 * time.Second
	OutcomeDelay   = 1500 * time.Millisecond
)

var (
	ErrGameOver       = errors.New("game over")
	ErrTileOutOfRange = errors.New("tile index out of range")
	ErrOutcomePending = errors.New("outcome pending")
)

// Dictionary is the set of words accepted as meaningful submissions.
type Dictionary interface {
	Contains(word string) bool
}

// Config wires an Engine to its word list and host.
type Config struct {
	Words      []string   // target words, at least one
	Dictionary Dictionary // nil accepts no alternate words
	Rand       Random     // nil means NewRandom(0)
	Scheduler  Scheduler  // nil means WallClock
}

// Engine owns all mutable state of one game session.
type Engine struct {
	mu    sync.Mutex
	words []string
	dict  Dictionary
	rng   Random
	sched Scheduler

	score     int
	wordIndex int
	round     Round
	collected []CollectedLetter
	wrong     map[int]uint64 // gridIndex -> mark token of the latest wrong tap
	tapped    []byte
	popup     *Popup
	last      Outcome
	gameOver  bool

	epoch     uint64
	markSeq   uint64
	timerSeq  uint64
	timers    map[uint64]Timer
	observers map[uint64]func(Snapshot)
	obsSeq    uint64
}

// New constructs an engine. Call Start before playing.
// It panics if cfg.Words is empty.
func New(cfg Config) *Engine {
	if len(cfg.Words) == 0 {
		panic("game: word list is empty")
	}
	words := make([]string, len(cfg.Words))
	for i, w := range cfg.Words {
		words[i] = strings.ToLower(strings.TrimSpace(w))
	}
	if cfg.Rand == nil {
		cfg.Rand = NewRandom(0)
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = WallClock
	}
	return &Engine{
		words:     words,
		dict:      cfg.Dictionary,
		rng:       cfg.Rand,
		sched:     cfg.Scheduler,
		wrong:     make(map[int]uint64),
		timers:    make(map[uint64]Timer),
		observers: make(map[uint64]func(Snapshot)),
	}
}

// Start begins a fresh game. It is the same operation as Reset.
func (e *Engine) Start() { e.Reset() }

// Reset reshuffles the word order and returns every counter to its initial value.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.shuffleWords()
	e.score = 0
	e.wordIndex = 0
	e.gameOver = false
	e.newRound()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	log.Debug().Str("word", snap.TargetWord).Msg("game reset")
	e.notify(snap)
}

// RequestNewWord skips to the next word of a freshly shuffled order, wrapping
// to the first word after the last. The score is kept and the game never ends here.
func (e *Engine) RequestNewWord() error {
	e.mu.Lock()
	if e.gameOver {
		e.mu.Unlock()
		return ErrGameOver
	}
	e.shuffleWords()
	if e.wordIndex < len(e.words)-1 {
		e.wordIndex++
	} else {
		e.wordIndex = 0
	}
	e.newRound()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	log.Debug().Str("word", snap.TargetWord).Int("wordIndex", snap.WordIndex).Msg("new word requested")
	e.notify(snap)
	return nil
}

// Tap evaluates the tile at gridIndex.
//
// A correct tap fills the lowest unfilled position of the target holding the
// tile's letter and scores +2. Otherwise the score drops by 5 (never below 0)
// and the tile is marked wrong for WrongMarkDelay. The letter is appended to
// the tapped sequence either way.
func (e *Engine) Tap(gridIndex int) (TapResult, error) {
	e.mu.Lock()
	if e.gameOver {
		e.mu.Unlock()
		return TapResult{}, ErrGameOver
	}
	if gridIndex < 0 || gridIndex >= len(e.round.Grid) {
		n := len(e.round.Grid)
		e.mu.Unlock()
		return TapResult{}, fmt.Errorf("%w: %d not in [0,%d)", ErrTileOutOfRange, gridIndex, n)
	}
	if e.popup != nil {
		e.mu.Unlock()
		return TapResult{}, ErrOutcomePending
	}

	letter := e.round.Grid[gridIndex]
	res := TapResult{Letter: string(letter), WordIndex: e.openPosition(letter)}
	if res.WordIndex >= 0 {
		res.Correct = true
		e.collected = append(e.collected, CollectedLetter{
			Letter:    res.Letter,
			GridIndex: gridIndex,
			WordIndex: res.WordIndex,
		})
		e.addScore(tapReward)
	} else {
		e.addScore(-tapPenalty)
		e.markWrong(gridIndex)
	}
	e.tapped = append(e.tapped, letter)
	res.Score = e.score
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(snap)
	return res, nil
}

// Submit judges the tapped sequence and shows the outcome popup for OutcomeDelay.
//
// Priority: the target word (case-insensitive) scores +10 and advances the
// round when the popup clears; another dictionary word scores +5; anything
// else costs 2. Non-target outcomes only clear the tapped sequence afterwards.
func (e *Engine) Submit() (Outcome, error) {
	e.mu.Lock()
	if e.gameOver {
		e.mu.Unlock()
		return OutcomeNone, ErrGameOver
	}
	if e.popup != nil {
		e.mu.Unlock()
		return OutcomeNone, ErrOutcomePending
	}

	submitted := string(e.tapped)
	var out Outcome
	switch {
	case strings.EqualFold(submitted, e.round.Target):
		out = OutcomeTarget
		e.addScore(targetReward)
		e.after(OutcomeDelay, func() {
			e.popup = nil
			e.advance()
		})
	case e.dict != nil && submitted != "" && e.dict.Contains(strings.ToLower(submitted)):
		out = OutcomeMeaningful
		e.addScore(meaningReward)
		e.after(OutcomeDelay, func() {
			e.popup = nil
			e.tapped = e.tapped[:0]
		})
	default:
		out = OutcomeWrong
		e.addScore(-wrongPenalty)
		e.after(OutcomeDelay, func() {
			e.popup = nil
			e.tapped = e.tapped[:0]
		})
	}
	e.popup = &Popup{Outcome: out, IsTarget: out == OutcomeTarget}
	e.last = out
	snap := e.snapshotLocked()
	e.mu.Unlock()

	log.Debug().Str("submitted", submitted).Str("outcome", string(out)).Int("score", snap.Score).Msg("word submitted")
	e.notify(snap)
	return out, nil
}

// Close cancels pending delayed effects and drops every observer. The
// engine stays readable; further commands still work but notify no one.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.invalidate()
	e.observers = make(map[uint64]func(Snapshot))
}

// Subscribe registers fn to receive a snapshot after every state change.
// The returned function removes the subscription.
func (e *Engine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.obsSeq++
	id := e.obsSeq
	e.observers[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.observers, id)
	}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Score returns the current score.
func (e *Engine) Score() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score
}

// GameOver reports whether the last word has been completed.
func (e *Engine) GameOver() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gameOver
}

// IsCollected reports whether the tile at gridIndex filled a word position.
func (e *Engine) IsCollected(gridIndex int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isCollected(gridIndex)
}

// IsWrong reports whether the tile at gridIndex is currently marked wrong.
func (e *Engine) IsWrong(gridIndex int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.wrong[gridIndex]
	return ok
}

// WordDisplay renders the target with collected letters and blanks.
func (e *Engine) WordDisplay() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wordDisplay()
}

// TypedDisplay renders the tapped sequence as space-separated uppercase letters.
func (e *Engine) TypedDisplay() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.typedDisplay()
}

// Progress is the fraction of words completed.
func (e *Engine) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress()
}

// ----------------------------- internals -----------------------------------
// Everything below expects e.mu to be held.

// openPosition finds the first position of the target that holds letter and
// is not yet filled, or -1.
func (e *Engine) openPosition(letter byte) int {
	target := e.round.Target
	for i := 0; i < len(target); i++ {
		if upper(target[i]) != upper(letter) {
			continue
		}
		filled := false
		for _, c := range e.collected {
			if c.WordIndex == i {
				filled = true
				break
			}
		}
		if !filled {
			return i
		}
	}
	return -1
}

func (e *Engine) addScore(delta int) {
	e.score += delta
	if e.score < 0 {
		e.score = 0
	}
}

// markWrong flags the tile. Only the timer of the most recent wrong tap on a
// tile clears it.
func (e *Engine) markWrong(gridIndex int) {
	e.markSeq++
	token := e.markSeq
	e.wrong[gridIndex] = token
	e.after(WrongMarkDelay, func() {
		if e.wrong[gridIndex] == token {
			delete(e.wrong, gridIndex)
		}
	})
}

// advance completes the current word after a target match.
func (e *Engine) advance() {
	e.addScore(len(e.round.Target) * letterBonus)
	e.wordIndex++
	if e.wordIndex >= len(e.words) {
		e.gameOver = true
		e.invalidate()
		log.Debug().Int("score", e.score).Msg("game over")
		return
	}
	e.newRound()
}

// newRound clears round-scoped state and generates the grid for the current word.
func (e *Engine) newRound() {
	e.invalidate()
	e.collected = nil
	e.wrong = make(map[int]uint64)
	e.tapped = nil
	e.popup = nil
	e.last = OutcomeNone
	e.round = GenerateRound(e.words[e.wordIndex], e.rng)
	log.Debug().Str("word", e.round.Target).Str("grid", string(e.round.Grid)).Msg("round generated")
}

// invalidate bumps the epoch and stops pending timers.
func (e *Engine) invalidate() {
	e.epoch++
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

func (e *Engine) shuffleWords() {
	e.rng.Shuffle(len(e.words), func(i, j int) { e.words[i], e.words[j] = e.words[j], e.words[i] })
	log.Debug().Strs("words", e.words).Msg("words reshuffled")
}

// after schedules fn under the current epoch. fn runs with e.mu held and is
// skipped if the epoch moved on before it fired.
func (e *Engine) after(d time.Duration, fn func()) {
	e.timerSeq++
	id := e.timerSeq
	epoch := e.epoch
	e.timers[id] = e.sched.AfterFunc(d, func() {
		e.mu.Lock()
		delete(e.timers, id)
		if e.epoch != epoch {
			e.mu.Unlock()
			return
		}
		fn()
		snap := e.snapshotLocked()
		e.mu.Unlock()
		e.notify(snap)
	})
}

func (e *Engine) isCollected(gridIndex int) bool {
	for _, c := range e.collected {
		if c.GridIndex == gridIndex {
			return true
		}
	}
	return false
}

func (e *Engine) wordDisplay() string {
	b := []byte(strings.Repeat(" ", len(e.round.Target)))
	for _, c := range e.collected {
		b[c.WordIndex] = upper(c.Letter[0])
	}
	return string(b)
}

func (e *Engine) typedDisplay() string {
	parts := make([]string, len(e.tapped))
	for i, c := range e.tapped {
		parts[i] = string(upper(c))
	}
	return strings.Join(parts, " ")
}

func (e *Engine) progress() float64 {
	return float64(e.wordIndex) / float64(len(e.words))
}

func (e *Engine) snapshotLocked() Snapshot {
	grid := make([]Tile, len(e.round.Grid))
	for i, c := range e.round.Grid {
		_, wrong := e.wrong[i]
		grid[i] = Tile{Index: i, Letter: string(c), Collected: e.isCollected(i), Wrong: wrong}
	}
	wrong := make([]int, 0, len(e.wrong))
	for i := range grid {
		if grid[i].Wrong {
			wrong = append(wrong, i)
		}
	}
	var popup *Popup
	if e.popup != nil {
		p := *e.popup
		popup = &p
	}
	return Snapshot{
		Score:        e.score,
		WordIndex:    e.wordIndex,
		TotalWords:   len(e.words),
		Progress:     e.progress(),
		TargetWord:   e.round.Target,
		Grid:         grid,
		Collected:    append([]CollectedLetter(nil), e.collected...),
		Wrong:        wrong,
		Typed:        string(e.tapped),
		TypedDisplay: e.typedDisplay(),
		WordDisplay:  e.wordDisplay(),
		Popup:        popup,
		LastOutcome:  e.last,
		GameOver:     e.gameOver,
		Epoch:        e.epoch,
	}
}

// notify delivers snap to every observer. Must be called without e.mu.
func (e *Engine) notify(snap Snapshot) {
	e.mu.Lock()
	fns := make([]func(Snapshot), 0, len(e.observers))
	for _, fn := range e.observers {
		fns = append(fns, fn)
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}
