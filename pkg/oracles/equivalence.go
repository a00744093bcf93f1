/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: equivalence.go
Description: Equivalence oracle implementations. A brute-force comparator checks the
hypothesis against the target on every word up to a length bound; a random-sampling
comparator draws seeded random inputs, optionally splicing in attack vectors the way
sanitizer probing does. Both report the first disagreement as a counterexample with
the target's actual output.
*/

package oracles

import (
	"math/rand"

	"github.com/kleascm/sflearn/pkg/interfaces"
)

// BruteForceEquivalence returns an equivalence oracle comparing the
// hypothesis with the target membership oracle on every word of length 1 up
// to maxLen, in deterministic order.
func BruteForceEquivalence(target interfaces.MembershipOracle, alphabet []interfaces.Symbol, maxLen int) interfaces.EquivalenceOracle {
	return func(hypothesis interfaces.Model) (*interfaces.Counterexample, error) {
		word := make(interfaces.Word, 0, maxLen)
		var search func() (*interfaces.Counterexample, error)
		search = func() (*interfaces.Counterexample, error) {
			if len(word) > 0 {
				want, err := target(word)
				if err != nil {
					return nil, err
				}
				got, err := hypothesis.ConsumeInput(word)
				if err != nil || !got.Equal(want) {
					return &interfaces.Counterexample{
						Input:        word.Clone(),
						TargetOutput: want,
					}, nil
				}
			}
			if len(word) == maxLen {
				return nil, nil
			}
			for _, s := range alphabet {
				word = append(word, s)
				ce, err := search()
				word = word[:len(word)-1]
				if ce != nil || err != nil {
					return ce, err
				}
			}
			return nil, nil
		}
		return search()
	}
}

// RandomEquivalence returns an equivalence oracle drawing seeded random
// words up to maxLen symbols and comparing hypothesis and target on each.
// Attack vectors, when given, are spliced into the random stream so known
// interesting sequences (escaped entities, encoded runs) are exercised.
func RandomEquivalence(target interfaces.MembershipOracle, alphabet []interfaces.Symbol, tests, maxLen int, seed int64, vectors []interfaces.Word) interfaces.EquivalenceOracle {
	return func(hypothesis interfaces.Model) (*interfaces.Counterexample, error) {
		rng := rand.New(rand.NewSource(seed))
		for n := 0; n < tests; n++ {
			var input interfaces.Word
			length := 1 + rng.Intn(maxLen)
			for i := 0; i < length; i++ {
				input = append(input, alphabet[rng.Intn(len(alphabet))])
				if len(vectors) > 0 && rng.Intn(10) == 5 {
					input = append(input, vectors[rng.Intn(len(vectors))]...)
				}
			}
			want, err := target(input)
			if err != nil {
				return nil, err
			}
			got, err := hypothesis.ConsumeInput(input)
			if err != nil || !got.Equal(want) {
				return &interfaces.Counterexample{
					Input:        input.Clone(),
					TargetOutput: want,
				}, nil
			}
		}
		return nil, nil
	}
}
