// internal/words/words.go
//
// Provides word list management for the game engine.
//
// Responsibilities:
//   - Load the target list and the meaningful-word dictionary from
//     environment-provided files or fall back to the embedded defaults.
//   - Keep the dictionary as a set for quick lookups.
//   - Supply Targets, Dictionary and Stats.
//
// Word Lists:
//   - "targets":    words a session must spell (lowercase a–z).
//   - "dictionary": words accepted as meaningful alternate submissions.
//
// Initialization behavior (Init):
//   1. WORDS_TARGETS_FILE, when set, replaces the embedded target list.
//   2. WORDS_DICTIONARY_FILE, when set, replaces the embedded dictionary.
//   3. Targets are always added to the dictionary.
//
// Environment variables:
//   WORDS_TARGETS_FILE=/path/to/targets.txt
//   WORDS_DICTIONARY_FILE=/path/to/dictionary.txt
//
// Constraints:
//   • Words must be alphabetic (a–z); other lines are skipped.
//   • Lists are normalized to lowercase and de-duplicated.
//   • Initialization is run once (sync.Once).

package words

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/robalobadob/wordcollector/assets"
)

var (
	initOnce   sync.Once
	targets    []string
	dictionary Set
	initialErr error
)

// Set is a lookup set of lowercase words.
type Set map[string]struct{}

// NewSet builds a set from list, lowercasing every entry.
func NewSet(list []string) Set {
	s := make(Set, len(list))
	for _, w := range list {
		s[strings.ToLower(w)] = struct{}{}
	}
	return s
}

// Contains reports whether w is in the set (case-insensitive).
func (s Set) Contains(w string) bool {
	_, ok := s[strings.ToLower(w)]
	return ok
}

// Init loads word lists exactly once.
// Returns an error if the target list ends up empty.
func Init() error {
	initOnce.Do(func() {
		targets, dictionary, initialErr = load(os.Getenv("WORDS_TARGETS_FILE"), os.Getenv("WORDS_DICTIONARY_FILE"))
	})
	return initialErr
}

// load reads both lists, preferring the given paths over the embedded defaults.
func load(targetsPath, dictPath string) ([]string, Set, error) {
	var tl, dl []string
	var err error

	if targetsPath != "" {
		tl, err = readWordFile(targetsPath)
	} else {
		tl, err = assets.TargetsList()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("words: targets: %w", err)
	}
	tl = normalize(tl)

	if dictPath != "" {
		dl, err = readWordFile(dictPath)
	} else {
		dl, err = assets.DictionaryList()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("words: dictionary: %w", err)
	}

	dict := NewSet(normalize(dl))
	for _, w := range tl {
		dict[w] = struct{}{}
	}
	if len(tl) == 0 {
		return nil, nil, errors.New("words: target list is empty")
	}
	return tl, dict, nil
}

// readWordFile loads one word per line from a file.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readWords(f)
}

func readWords(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out, sc.Err()
}

// normalize lowercases and trims, dropping comments, non-alphabetic lines
// and duplicates while keeping first-seen order.
func normalize(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, line := range list {
		w := strings.TrimSpace(strings.ToLower(line))
		if w == "" || strings.HasPrefix(w, "#") || !isAlpha(w) || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// isAlpha reports whether s is all lowercase ASCII letters.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// Targets returns a copy of the target list, safe for the caller to shuffle.
// Falls back to the six built-in words if Init has not succeeded.
func Targets() []string {
	if len(targets) == 0 {
		return []string{"ring", "dream", "swim", "boy", "doctor", "song"}
	}
	return append([]string(nil), targets...)
}

// Dictionary returns the meaningful-word set.
func Dictionary() Set {
	return dictionary
}

// Stats returns counts of loaded words: (targets, dictionary).
func Stats() (targetCount int, dictionaryCount int) {
	return len(targets), len(dictionary)
}
