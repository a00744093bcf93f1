/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: targets.go
Description: Simulated target programs for tests and demos. Each target exposes a
membership oracle; the concrete machines mirror the shapes real sanitizers take:
identity, single-sequence replacement, idempotent encoders that skip already-encoded
runs, and an HTML special-character escaper.
*/

package oracles

import (
	"html"

	"github.com/kleascm/sflearn/pkg/interfaces"
	"github.com/kleascm/sflearn/pkg/transducer"
)

// Membership returns a membership oracle answering from a concrete
// transducer, the ground-truth pattern used to exercise the learner.
func Membership(target *transducer.Transducer) interfaces.MembershipOracle {
	return func(input interfaces.Word) (interfaces.Word, error) {
		return target.ConsumeInput(input)
	}
}

// IdentityTarget builds a one-state transducer mapping every alphabet symbol
// to itself.
func IdentityTarget(alphabet []interfaces.Symbol) *transducer.Transducer {
	t := transducer.New()
	for _, s := range alphabet {
		t.AddArc(0, 0, interfaces.Word{s}, interfaces.Word{s})
	}
	return t
}

// LookaheadReplaceTarget builds a one-state transducer that replaces the
// given symbol sequence with the replacement output and copies every other
// symbol unchanged. Deciding the first symbol of the sequence requires a
// window as long as the sequence.
func LookaheadReplaceTarget(alphabet []interfaces.Symbol, sequence, replacement interfaces.Word) *transducer.Transducer {
	t := transducer.New()
	for _, s := range alphabet {
		t.AddArc(0, 0, interfaces.Word{s}, interfaces.Word{s})
	}
	t.AddArc(0, 0, sequence, replacement)
	return t
}

// IdempotentEncoderTarget builds an idempotent encoder machine: over
// alphabet {0,1,2,3} it encodes symbol 0 as 0,1,1 while leaving the
// already-encoded runs 0,1,1 / 0,2,2 / 0,3,3 untouched, the way idempotent
// escapers avoid double-encoding.
func IdempotentEncoderTarget() *transducer.Transducer {
	t := transducer.New()
	t.AddArc(0, 0, interfaces.Word{1}, interfaces.Word{1})
	t.AddArc(0, 0, interfaces.Word{0}, interfaces.Word{0, 1, 1})
	t.AddArc(0, 0, interfaces.Word{2}, interfaces.Word{2})
	t.AddArc(0, 0, interfaces.Word{3}, interfaces.Word{3})
	t.AddArc(0, 0, interfaces.Word{0, 1, 1}, interfaces.Word{0, 1, 1})
	t.AddArc(0, 0, interfaces.Word{0, 2, 2}, interfaces.Word{0, 2, 2})
	t.AddArc(0, 0, interfaces.Word{0, 3, 3}, interfaces.Word{0, 3, 3})
	return t
}

// IdempotentEncoderAlphabet is the alphabet of IdempotentEncoderTarget.
func IdempotentEncoderAlphabet() []interfaces.Symbol {
	return []interfaces.Symbol{0, 1, 2, 3}
}

// HTMLEscapeOracle returns a membership oracle backed by the standard HTML
// special-character escaper, a real string-processing program rather than a
// simulated machine.
func HTMLEscapeOracle() interfaces.MembershipOracle {
	return func(input interfaces.Word) (interfaces.Word, error) {
		runes := make([]rune, len(input))
		for i, s := range input {
			runes[i] = rune(s)
		}
		return interfaces.WordFromString(html.EscapeString(string(runes))), nil
	}
}
