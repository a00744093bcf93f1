/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: alphabet.go
Description: Enumerable finite input alphabet. Keeps symbols in a fixed, deterministic
order so table construction and boundary-row promotion are reproducible across runs.
*/

package cache

import (
	"fmt"

	"github.com/kleascm/sflearn/pkg/interfaces"
)

// Alphabet is a finite, ordered set of input symbols.
type Alphabet struct {
	symbols []interfaces.Symbol
	index   map[interfaces.Symbol]int
}

// NewAlphabet creates an alphabet from the given symbols, preserving their
// order. Duplicate symbols are rejected.
func NewAlphabet(symbols []interfaces.Symbol) (*Alphabet, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("alphabet must not be empty")
	}
	a := &Alphabet{
		symbols: make([]interfaces.Symbol, len(symbols)),
		index:   make(map[interfaces.Symbol]int, len(symbols)),
	}
	copy(a.symbols, symbols)
	for i, s := range symbols {
		if _, dup := a.index[s]; dup {
			return nil, fmt.Errorf("duplicate alphabet symbol: %d", s)
		}
		a.index[s] = i
	}
	return a, nil
}

// AlphabetFromString creates an alphabet from the runes of a string.
func AlphabetFromString(s string) (*Alphabet, error) {
	return NewAlphabet(interfaces.WordFromString(s))
}

// Len returns the number of symbols in the alphabet.
func (a *Alphabet) Len() int {
	return len(a.symbols)
}

// Symbols returns the symbols in their fixed order. The returned slice is a
// copy and may be mutated freely.
func (a *Alphabet) Symbols() []interfaces.Symbol {
	out := make([]interfaces.Symbol, len(a.symbols))
	copy(out, a.symbols)
	return out
}

// Symbol returns the i-th symbol of the alphabet.
func (a *Alphabet) Symbol(i int) interfaces.Symbol {
	return a.symbols[i]
}

// Contains reports whether the symbol belongs to the alphabet.
func (a *Alphabet) Contains(s interfaces.Symbol) bool {
	_, ok := a.index[s]
	return ok
}

// Index returns the position of the symbol in the alphabet, or -1 if the
// symbol is not a member.
func (a *Alphabet) Index(s interfaces.Symbol) int {
	if i, ok := a.index[s]; ok {
		return i
	}
	return -1
}

// ContainsWord reports whether every symbol of the word belongs to the
// alphabet.
func (a *Alphabet) ContainsWord(w interfaces.Word) bool {
	for _, s := range w {
		if !a.Contains(s) {
			return false
		}
	}
	return true
}
