package game

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
)

type wordSet map[string]bool

func (s wordSet) Contains(w string) bool { return s[w] }

func newTestEngine(t *testing.T, words []string, dict wordSet) (*Engine, *ManualScheduler) {
	t.Helper()
	sched := NewManualScheduler()
	e := New(Config{
		Words:      words,
		Dictionary: dict,
		Rand:       rand.New(rand.NewSource(1)),
		Scheduler:  sched,
	})
	e.Start()
	return e, sched
}

// tileOf returns the grid index holding letter.
func tileOf(t *testing.T, e *Engine, letter byte) int {
	t.Helper()
	for _, tile := range e.Snapshot().Grid {
		if tile.Letter == string(upper(letter)) {
			return tile.Index
		}
	}
	t.Fatalf("letter %c not in grid", letter)
	return -1
}

// fillerTile returns a grid index whose letter is not in the target.
func fillerTile(t *testing.T, e *Engine) int {
	t.Helper()
	snap := e.Snapshot()
	for _, tile := range snap.Grid {
		if !strings.Contains(strings.ToUpper(snap.TargetWord), tile.Letter) {
			return tile.Index
		}
	}
	t.Fatal("grid has no filler tile")
	return -1
}

func tapWord(t *testing.T, e *Engine, word string) {
	t.Helper()
	for i := 0; i < len(word); i++ {
		if _, err := e.Tap(tileOf(t, e, word[i])); err != nil {
			t.Fatalf("Tap(%c) error = %v", word[i], err)
		}
	}
}

func TestNewPanicsOnEmptyWordList(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New() with no words did not panic")
		}
	}()
	New(Config{})
}

func TestStartState(t *testing.T) {
	e, _ := newTestEngine(t, []string{"boy", "ring"}, nil)
	snap := e.Snapshot()

	if snap.Score != 0 || snap.WordIndex != 0 || snap.GameOver {
		t.Errorf("start: score=%d wordIndex=%d gameOver=%v, want 0 0 false", snap.Score, snap.WordIndex, snap.GameOver)
	}
	if len(snap.Grid) != 8 {
		t.Errorf("grid size = %d, want 8", len(snap.Grid))
	}
	if snap.Typed != "" || len(snap.Collected) != 0 || len(snap.Wrong) != 0 {
		t.Errorf("round state not empty: %+v", snap)
	}
	if snap.Progress != 0 {
		t.Errorf("Progress = %v, want 0", snap.Progress)
	}
}

func TestBoyScenario(t *testing.T) {
	e, sched := newTestEngine(t, []string{"boy", "ring"}, wordSet{"boy": true})
	for s := e.Snapshot(); s.TargetWord != "boy" || s.WordIndex != 0; s = e.Snapshot() {
		if err := e.RequestNewWord(); err != nil {
			t.Fatal(err)
		}
	}

	tapWord(t, e, "boy")
	if got := e.Score(); got != 6 {
		t.Errorf("score after B O Y = %d, want 6", got)
	}
	if got := e.Snapshot().Typed; got != "BOY" {
		t.Errorf("typed = %q, want %q", got, "BOY")
	}

	out, err := e.Submit()
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if out != OutcomeTarget {
		t.Errorf("Submit() = %q, want %q", out, OutcomeTarget)
	}
	if got := e.Score(); got != 16 {
		t.Errorf("score after submit = %d, want 16", got)
	}
	before := e.Snapshot().WordIndex

	sched.Advance(OutcomeDelay)

	snap := e.Snapshot()
	if snap.Score != 46 {
		t.Errorf("score after advance = %d, want 46", snap.Score)
	}
	if snap.WordIndex != before+1 || snap.GameOver {
		t.Errorf("wordIndex = %d gameOver = %v, want %d false", snap.WordIndex, snap.GameOver, before+1)
	}
	if snap.Popup != nil {
		t.Errorf("popup still shown: %+v", snap.Popup)
	}
	if snap.Typed != "" || len(snap.Collected) != 0 {
		t.Errorf("round state not cleared: typed=%q collected=%v", snap.Typed, snap.Collected)
	}
}

func TestWrongTapScoreFloor(t *testing.T) {
	e, sched := newTestEngine(t, []string{"boy"}, wordSet{"b": true})

	// Reach a score of 3: +2 tap, +5 meaningful, -2 wrong, -2 wrong.
	tapWord(t, e, "b")
	if out, _ := e.Submit(); out != OutcomeMeaningful {
		t.Fatalf("Submit(B) = %q, want meaningful", out)
	}
	sched.Advance(OutcomeDelay)
	for i := 0; i < 2; i++ {
		if out, _ := e.Submit(); out != OutcomeWrong {
			t.Fatalf("Submit(\"\") = %q, want wrong", out)
		}
		sched.Advance(OutcomeDelay)
	}
	if got := e.Score(); got != 3 {
		t.Fatalf("score = %d, want 3", got)
	}

	res, err := e.Tap(fillerTile(t, e))
	if err != nil {
		t.Fatal(err)
	}
	if res.Correct || res.WordIndex != -1 {
		t.Errorf("filler tap = %+v, want wrong", res)
	}
	if got := e.Score(); got != 0 {
		t.Errorf("score = %d, want 0", got)
	}
}

func TestRepeatedLetterFillsLowestPosition(t *testing.T) {
	e, _ := newTestEngine(t, []string{"book"}, nil)
	o := tileOf(t, e, 'o')

	for _, want := range []int{1, 2} {
		res, err := e.Tap(o)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Correct || res.WordIndex != want {
			t.Errorf("Tap(O) = %+v, want correct at %d", res, want)
		}
	}

	res, _ := e.Tap(o)
	if res.Correct {
		t.Errorf("third Tap(O) = %+v, want wrong (both positions filled)", res)
	}
	if got := e.Score(); got != 0 {
		t.Errorf("score = %d, want 0 (4 - 5 floored)", got)
	}
	if !e.IsWrong(o) {
		t.Error("tile not marked wrong")
	}

	seen := make(map[int]bool)
	for _, c := range e.Snapshot().Collected {
		if seen[c.WordIndex] {
			t.Errorf("word position %d filled twice", c.WordIndex)
		}
		seen[c.WordIndex] = true
	}
	if got := e.Snapshot().Typed; got != "OOO" {
		t.Errorf("typed = %q, want %q", got, "OOO")
	}
}

func TestRetapFilledLetterIsPenalized(t *testing.T) {
	e, _ := newTestEngine(t, []string{"boy"}, nil)
	b := tileOf(t, e, 'b')

	e.Tap(b)
	res, _ := e.Tap(b)
	if res.Correct {
		t.Error("retapping a filled letter counted as correct")
	}
	if got := e.Score(); got != 0 {
		t.Errorf("score = %d, want 0", got)
	}
	if !e.IsCollected(b) {
		t.Error("tile lost its collected flag")
	}
}

func TestWrongMarkClearsAfterDelay(t *testing.T) {
	e, sched := newTestEngine(t, []string{"boy"}, nil)
	f := fillerTile(t, e)

	e.Tap(f)
	if !e.IsWrong(f) {
		t.Fatal("tile not marked wrong")
	}
	sched.Advance(WrongMarkDelay - 1)
	if !e.IsWrong(f) {
		t.Error("mark cleared before the delay")
	}
	sched.Advance(1)
	if e.IsWrong(f) {
		t.Error("mark still set after the delay")
	}
}

func TestWrongMarkRetapExtends(t *testing.T) {
	e, sched := newTestEngine(t, []string{"boy"}, nil)
	f := fillerTile(t, e)

	e.Tap(f)
	sched.Advance(WrongMarkDelay / 2)
	e.Tap(f)
	sched.Advance(WrongMarkDelay / 2)
	if !e.IsWrong(f) {
		t.Error("earlier timer cleared a newer mark")
	}
	sched.Advance(WrongMarkDelay / 2)
	if e.IsWrong(f) {
		t.Error("mark still set after the latest delay")
	}
}

func TestResetDropsStaleWrongMark(t *testing.T) {
	e, sched := newTestEngine(t, []string{"boy", "ring"}, nil)
	e.Tap(fillerTile(t, e))
	sched.Advance(WrongMarkDelay / 2)

	e.Reset()
	if len(e.Snapshot().Wrong) != 0 {
		t.Fatal("reset kept wrong marks")
	}
	f := fillerTile(t, e)
	e.Tap(f)

	sched.Advance(WrongMarkDelay / 2)
	if !e.IsWrong(f) {
		t.Error("timer from the previous round cleared a new mark")
	}
	sched.Advance(WrongMarkDelay / 2)
	if e.IsWrong(f) {
		t.Error("new mark not cleared")
	}
}

func TestSubmitTargetBeatsDictionary(t *testing.T) {
	e, _ := newTestEngine(t, []string{"boy"}, wordSet{"boy": true})
	tapWord(t, e, "boy")

	out, _ := e.Submit()
	if out != OutcomeTarget {
		t.Errorf("Submit() = %q, want target even though the word is in the dictionary", out)
	}
	if p := e.Snapshot().Popup; p == nil || !p.IsTarget {
		t.Errorf("popup = %+v, want target popup", p)
	}
}

func TestSubmitMeaningfulKeepsRound(t *testing.T) {
	e, sched := newTestEngine(t, []string{"boy"}, wordSet{"yo": true})
	tapWord(t, e, "yo")

	out, _ := e.Submit()
	if out != OutcomeMeaningful {
		t.Fatalf("Submit() = %q, want meaningful", out)
	}
	if got := e.Score(); got != 9 {
		t.Errorf("score = %d, want 9", got)
	}
	if p := e.Snapshot().Popup; p == nil || p.IsTarget {
		t.Errorf("popup = %+v, want non-target great popup", p)
	}

	sched.Advance(OutcomeDelay)
	snap := e.Snapshot()
	if snap.Typed != "" {
		t.Errorf("typed = %q, want cleared", snap.Typed)
	}
	if len(snap.Collected) != 2 || snap.TargetWord != "boy" || snap.WordIndex != 0 {
		t.Errorf("round changed: collected=%v target=%q index=%d", snap.Collected, snap.TargetWord, snap.WordIndex)
	}
	if snap.WordDisplay != " OY" {
		t.Errorf("WordDisplay = %q, want %q", snap.WordDisplay, " OY")
	}
}

func TestSubmitWrong(t *testing.T) {
	e, sched := newTestEngine(t, []string{"boy"}, wordSet{})
	tapWord(t, e, "ob")

	out, _ := e.Submit()
	if out != OutcomeWrong {
		t.Fatalf("Submit() = %q, want wrong", out)
	}
	if got := e.Score(); got != 2 {
		t.Errorf("score = %d, want 2", got)
	}
	sched.Advance(OutcomeDelay)
	if snap := e.Snapshot(); snap.Typed != "" || snap.Popup != nil || len(snap.Collected) != 2 {
		t.Errorf("after wrong: typed=%q popup=%v collected=%d", snap.Typed, snap.Popup, len(snap.Collected))
	}
}

func TestSubmitEmptyIsWrong(t *testing.T) {
	e, _ := newTestEngine(t, []string{"boy"}, wordSet{"": true})
	out, err := e.Submit()
	if err != nil || out != OutcomeWrong {
		t.Errorf("Submit() = %q, %v; want wrong, nil", out, err)
	}
	if got := e.Score(); got != 0 {
		t.Errorf("score = %d, want 0", got)
	}
}

func TestOutcomePendingFreezesRound(t *testing.T) {
	e, sched := newTestEngine(t, []string{"boy"}, nil)
	e.Submit()

	if _, err := e.Tap(tileOf(t, e, 'b')); !errors.Is(err, ErrOutcomePending) {
		t.Errorf("Tap() during popup error = %v, want ErrOutcomePending", err)
	}
	if _, err := e.Submit(); !errors.Is(err, ErrOutcomePending) {
		t.Errorf("Submit() during popup error = %v, want ErrOutcomePending", err)
	}
	sched.Advance(OutcomeDelay)
	if _, err := e.Tap(tileOf(t, e, 'b')); err != nil {
		t.Errorf("Tap() after popup error = %v", err)
	}
}

func TestLastWordSetsGameOver(t *testing.T) {
	e, sched := newTestEngine(t, []string{"boy"}, nil)
	tapWord(t, e, "boy")
	e.Submit()
	sched.Advance(OutcomeDelay)

	if !e.GameOver() {
		t.Fatal("GameOver() = false after completing the last word")
	}
	if got := e.Progress(); got != 1 {
		t.Errorf("Progress() = %v, want 1", got)
	}
	score := e.Score()

	if _, err := e.Tap(0); !errors.Is(err, ErrGameOver) {
		t.Errorf("Tap() error = %v, want ErrGameOver", err)
	}
	if _, err := e.Submit(); !errors.Is(err, ErrGameOver) {
		t.Errorf("Submit() error = %v, want ErrGameOver", err)
	}
	if err := e.RequestNewWord(); !errors.Is(err, ErrGameOver) {
		t.Errorf("RequestNewWord() error = %v, want ErrGameOver", err)
	}
	if e.Score() != score || e.Snapshot().Typed != "BOY" {
		t.Errorf("state changed after game over: score=%d typed=%q", e.Score(), e.Snapshot().Typed)
	}

	e.Reset()
	if e.GameOver() || e.Score() != 0 {
		t.Errorf("Reset(): gameOver=%v score=%d, want false 0", e.GameOver(), e.Score())
	}
}

func TestRequestNewWordWraps(t *testing.T) {
	e, _ := newTestEngine(t, []string{"boy", "ring", "swim"}, nil)
	e.Tap(tileOf(t, e, e.Snapshot().TargetWord[0]))

	for _, want := range []int{1, 2, 0} {
		if err := e.RequestNewWord(); err != nil {
			t.Fatal(err)
		}
		snap := e.Snapshot()
		if snap.WordIndex != want {
			t.Errorf("wordIndex = %d, want %d", snap.WordIndex, want)
		}
		if snap.GameOver {
			t.Error("RequestNewWord set gameOver")
		}
		if snap.Typed != "" || len(snap.Collected) != 0 || len(snap.Wrong) != 0 {
			t.Errorf("round state not cleared: %+v", snap)
		}
	}
	if got := e.Score(); got != 2 {
		t.Errorf("score = %d, want 2 (kept across new words)", got)
	}
}

func TestNewRoundClearsLastOutcome(t *testing.T) {
	e, sched := newTestEngine(t, []string{"boy", "ring", "swim"}, nil)
	e.Submit()
	sched.Advance(OutcomeDelay)
	if got := e.Snapshot().LastOutcome; got != OutcomeWrong {
		t.Fatalf("LastOutcome = %q, want wrong", got)
	}

	if err := e.RequestNewWord(); err != nil {
		t.Fatal(err)
	}
	if got := e.Snapshot().LastOutcome; got != OutcomeNone {
		t.Errorf("LastOutcome after new word = %q, want none", got)
	}

	tapWord(t, e, e.Snapshot().TargetWord)
	e.Submit()
	sched.Advance(OutcomeDelay)
	snap := e.Snapshot()
	if snap.WordIndex != 2 || snap.LastOutcome != OutcomeNone {
		t.Errorf("after advance: wordIndex=%d lastOutcome=%q, want 2 none", snap.WordIndex, snap.LastOutcome)
	}
}

func TestResetDuringPopupDropsAdvance(t *testing.T) {
	e, sched := newTestEngine(t, []string{"boy", "ring"}, nil)
	tapWord(t, e, e.Snapshot().TargetWord)
	e.Submit()

	e.Reset()
	sched.Advance(OutcomeDelay)

	snap := e.Snapshot()
	if snap.WordIndex != 0 || snap.Score != 0 || snap.Popup != nil {
		t.Errorf("stale advance applied: index=%d score=%d popup=%v", snap.WordIndex, snap.Score, snap.Popup)
	}
	if sched.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 after reset", sched.Pending())
	}
}

func TestTapOutOfRange(t *testing.T) {
	e, _ := newTestEngine(t, []string{"boy"}, nil)
	for _, i := range []int{-1, 8, 100} {
		if _, err := e.Tap(i); !errors.Is(err, ErrTileOutOfRange) {
			t.Errorf("Tap(%d) error = %v, want ErrTileOutOfRange", i, err)
		}
	}
	if snap := e.Snapshot(); snap.Score != 0 || snap.Typed != "" || len(snap.Wrong) != 0 {
		t.Errorf("out-of-range tap changed state: %+v", snap)
	}
}

func TestDisplays(t *testing.T) {
	e, _ := newTestEngine(t, []string{"boy"}, nil)
	e.Tap(tileOf(t, e, 'y'))
	e.Tap(fillerTile(t, e))
	e.Tap(tileOf(t, e, 'b'))

	if got := e.WordDisplay(); got != "B Y" {
		t.Errorf("WordDisplay() = %q, want %q", got, "B Y")
	}
	typed := e.TypedDisplay()
	if len(typed) != 5 || typed[0] != 'Y' || typed[4] != 'B' {
		t.Errorf("TypedDisplay() = %q, want \"Y ? B\"", typed)
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	e, sched := newTestEngine(t, []string{"boy"}, nil)
	var got []Snapshot
	unsubscribe := e.Subscribe(func(s Snapshot) { got = append(got, s) })

	f := fillerTile(t, e)
	e.Tap(f)
	sched.Advance(WrongMarkDelay)

	if len(got) != 2 {
		t.Fatalf("observer called %d times, want 2 (tap + mark cleared)", len(got))
	}
	if len(got[0].Wrong) != 1 || len(got[1].Wrong) != 0 {
		t.Errorf("wrong marks = %v then %v", got[0].Wrong, got[1].Wrong)
	}

	unsubscribe()
	e.Tap(f)
	if len(got) != 2 {
		t.Errorf("observer called after unsubscribe")
	}
}

func TestSameSeedSameGame(t *testing.T) {
	words := []string{"ring", "dream", "swim", "boy", "doctor", "song"}
	a := New(Config{Words: words, Rand: NewRandom(99), Scheduler: NewManualScheduler()})
	b := New(Config{Words: words, Rand: NewRandom(99), Scheduler: NewManualScheduler()})
	a.Start()
	b.Start()

	for i := 0; i < len(words); i++ {
		sa, sb := a.Snapshot(), b.Snapshot()
		if sa.TargetWord != sb.TargetWord {
			t.Fatalf("word %d: %q != %q", i, sa.TargetWord, sb.TargetWord)
		}
		for j := range sa.Grid {
			if sa.Grid[j].Letter != sb.Grid[j].Letter {
				t.Fatalf("word %d tile %d: %q != %q", i, j, sa.Grid[j].Letter, sb.Grid[j].Letter)
			}
		}
		a.RequestNewWord()
		b.RequestNewWord()
	}
}

func TestCloseCancelsEffectsAndObservers(t *testing.T) {
	e, sched := newTestEngine(t, []string{"boy"}, nil)
	calls := 0
	e.Subscribe(func(Snapshot) { calls++ })

	f := fillerTile(t, e)
	e.Tap(f)
	e.Close()
	if sched.Pending() != 0 {
		t.Errorf("Pending() = %d after Close, want 0", sched.Pending())
	}
	sched.Advance(WrongMarkDelay)
	if !e.IsWrong(f) {
		t.Error("wrong mark cleared after Close")
	}
	e.Tap(f)
	if calls != 1 {
		t.Errorf("observer called %d times, want 1", calls)
	}
}
