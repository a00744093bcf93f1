/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: interfaces.go
Description: Shared types for the sflearn transducer learner. Defines the symbol and
word types, the oracle function signatures, and the learner configuration used across
all packages to break import cycles and enable proper modular design.
*/

package interfaces

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Symbol is a single element of the finite input alphabet.
type Symbol int32

// Word is an ordered sequence of input or output symbols.
type Word []Symbol

// Model is the learner-facing view of a hypothesis transducer. The
// equivalence oracle receives hypotheses through this interface so oracle
// implementations do not depend on the concrete transducer package.
type Model interface {
	// ConsumeInput returns the output of the machine on the given input.
	ConsumeInput(input Word) (Word, error)
	// NumStates returns the number of states in the model.
	NumStates() int
}

// MembershipOracle answers membership queries: given an input word it returns
// the output of the unknown target program on that word. The oracle is
// assumed deterministic and authoritative; failures are propagated, never
// retried.
type MembershipOracle func(input Word) (Word, error)

// EquivalenceOracle answers equivalence queries: given a hypothesis it
// returns nil if the hypothesis is believed correct, or a counterexample on
// which hypothesis and target disagree together with the target's output.
type EquivalenceOracle func(hypothesis Model) (*Counterexample, error)

// Counterexample is an input on which a hypothesis and the target disagree,
// paired with the target's actual output on that input.
type Counterexample struct {
	Input        Word
	TargetOutput Word
}

// Counterexample processing modes
const (
	CEModeRivestSchapire = "rivest-schapire"
	CEModeShahbazGroz    = "shahbaz-groz"
)

// LearnerConfig represents the configuration for a learning run
type LearnerConfig struct {
	Alphabet     []Symbol // Finite input alphabet, in deterministic order
	CEProcessing string   // Counterexample processing mode
	MaxLookahead int      // Safety bound on per-state lookahead window length
	MaxRounds    int      // Safety bound on refinement rounds (0 = unbounded)
	LogLevel     string   // Logging level (debug, info, warn, error)
	JSONLogs     bool     // Use JSON log format
	CachePath    string   // Optional bbolt file backing the query cache
}

// Validate checks the LearnerConfig for invalid or missing values.
// Returns an error if the config is invalid, or nil if valid.
func (c *LearnerConfig) Validate() error {
	if len(c.Alphabet) == 0 {
		return fmt.Errorf("alphabet must not be empty")
	}
	seen := make(map[Symbol]bool, len(c.Alphabet))
	for _, s := range c.Alphabet {
		if seen[s] {
			return fmt.Errorf("duplicate alphabet symbol: %d", s)
		}
		seen[s] = true
	}
	switch c.CEProcessing {
	case CEModeRivestSchapire, CEModeShahbazGroz:
		// ok
	default:
		return fmt.Errorf("unsupported counterexample processing mode: %s", c.CEProcessing)
	}
	if c.MaxLookahead < 1 {
		return fmt.Errorf("max_lookahead must be positive")
	}
	if c.MaxRounds < 0 {
		return fmt.Errorf("max_rounds must not be negative")
	}
	return nil
}

// DefaultLearnerConfig returns a configuration with sensible defaults for
// the given alphabet.
func DefaultLearnerConfig(alphabet []Symbol) *LearnerConfig {
	return &LearnerConfig{
		Alphabet:     alphabet,
		CEProcessing: CEModeRivestSchapire,
		MaxLookahead: 16,
		LogLevel:     "info",
	}
}

// Equal reports whether two words are identical.
func (w Word) Equal(other Word) bool {
	if len(w) != len(other) {
		return false
	}
	for i := range w {
		if w[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether the word starts with prefix.
func (w Word) HasPrefix(prefix Word) bool {
	if len(prefix) > len(w) {
		return false
	}
	return w[:len(prefix)].Equal(prefix)
}

// CommonPrefixLen returns the length of the longest common prefix of the
// two words.
func (w Word) CommonPrefixLen(other Word) int {
	n := len(w)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if w[i] != other[i] {
			return i
		}
	}
	return n
}

// Concat returns a new word consisting of w followed by the given words.
func (w Word) Concat(words ...Word) Word {
	total := len(w)
	for _, other := range words {
		total += len(other)
	}
	out := make(Word, 0, total)
	out = append(out, w...)
	for _, other := range words {
		out = append(out, other...)
	}
	return out
}

// Clone returns a copy of the word.
func (w Word) Clone() Word {
	out := make(Word, len(w))
	copy(out, w)
	return out
}

// Compare orders words by length first, then lexicographically. This is the
// deterministic tie-break order used when promoting boundary rows.
func (w Word) Compare(other Word) int {
	if len(w) != len(other) {
		if len(w) < len(other) {
			return -1
		}
		return 1
	}
	for i := range w {
		if w[i] != other[i] {
			if w[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Key returns a compact byte-exact encoding of the word, usable as a map key.
func (w Word) Key() string {
	buf := make([]byte, 4*len(w))
	for i, s := range w {
		binary.BigEndian.PutUint32(buf[4*i:], uint32(s))
	}
	return string(buf)
}

// WordFromKey decodes a word previously encoded with Key.
func WordFromKey(key string) Word {
	buf := []byte(key)
	w := make(Word, len(buf)/4)
	for i := range w {
		w[i] = Symbol(binary.BigEndian.Uint32(buf[4*i:]))
	}
	return w
}

// String renders the word as comma-separated symbol values. Printable ASCII
// words are additionally rendered as a quoted string for readability.
func (w Word) String() string {
	if len(w) == 0 {
		return "ε"
	}
	var sb strings.Builder
	printable := true
	for i, s := range w {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", s)
		if s < 0x20 || s > 0x7e {
			printable = false
		}
	}
	if printable {
		sb.WriteString(" (\"")
		for _, s := range w {
			sb.WriteByte(byte(s))
		}
		sb.WriteString("\")")
	}
	return sb.String()
}

// WordFromString builds a word from the runes of a string. Convenient for
// targets over character alphabets.
func WordFromString(s string) Word {
	w := make(Word, 0, len(s))
	for _, r := range s {
		w = append(w, Symbol(r))
	}
	return w
}
