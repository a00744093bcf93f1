/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: learner_test.go
Description: End-to-end tests for the learner driver. Covers convergence on targets
with and without lookahead behavior, both counterexample processing modes, the
lookahead safety bound, round budgets, cancellation, and oracle contract violations.
*/

package learner_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kleascm/sflearn/pkg/interfaces"
	"github.com/kleascm/sflearn/pkg/learner"
	"github.com/kleascm/sflearn/pkg/oracles"
	"github.com/kleascm/sflearn/pkg/transducer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(alphabet string) *interfaces.LearnerConfig {
	return &interfaces.LearnerConfig{
		Alphabet:     interfaces.WordFromString(alphabet),
		CEProcessing: interfaces.CEModeRivestSchapire,
		MaxLookahead: 8,
		MaxRounds:    50,
		LogLevel:     "error",
	}
}

// counterMachine emits x on the first two a-steps and y afterwards, so
// distinguishing its states needs a two-symbol suffix.
func counterMachine() *transducer.Transducer {
	m := transducer.New()
	m.AddArc(0, 1, word("a"), word("x"))
	m.AddArc(0, 0, word("b"), word("z"))
	m.AddArc(1, 2, word("a"), word("x"))
	m.AddArc(1, 1, word("b"), word("z"))
	m.AddArc(2, 2, word("a"), word("y"))
	m.AddArc(2, 2, word("b"), word("z"))
	return m
}

// assertAgrees checks the learned model against the target oracle on every
// word over the alphabet up to the given length.
func assertAgrees(t *testing.T, model *transducer.Transducer, target interfaces.MembershipOracle, alphabet string, maxLen int) {
	t.Helper()
	symbols := interfaces.WordFromString(alphabet)
	var walk func(prefix interfaces.Word)
	walk = func(prefix interfaces.Word) {
		if len(prefix) > 0 {
			want, err := target(prefix)
			require.NoError(t, err)
			got, err := model.ConsumeInput(prefix)
			require.NoError(t, err, "model rejects %s", prefix)
			assert.True(t, got.Equal(want), "input %s: expected %s, got %s", prefix, want, got)
		}
		if len(prefix) == maxLen {
			return
		}
		for _, s := range symbols {
			walk(append(prefix.Clone(), s))
		}
	}
	walk(interfaces.Word{})
}

func TestLearnIdentity(t *testing.T) {
	target := oracles.Membership(oracles.IdentityTarget(word("ab")))
	l, err := learner.New(testConfig("ab"), target, oracles.BruteForceEquivalence(target, word("ab"), 4))
	require.NoError(t, err)
	defer l.Close()

	result, err := l.Learn(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, 1, result.States)
	assert.Equal(t, 0, result.Rounds)
	assert.NotEmpty(t, result.RunID)
	assertAgrees(t, result.Model, target, "ab", 4)
}

func TestLearnTwoStateMachine(t *testing.T) {
	target := oracles.Membership(parityMachine())
	l, err := learner.New(testConfig("ab"), target, oracles.BruteForceEquivalence(target, word("ab"), 4))
	require.NoError(t, err)
	defer l.Close()

	result, err := l.Learn(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, 2, result.States)
	assertAgrees(t, result.Model, target, "ab", 4)
}

func TestLearnDelayedDivergence(t *testing.T) {
	// The divergence only shows two steps in, so refinement must mine a
	// two-symbol distinguishing suffix from the counterexample.
	target := oracles.Membership(counterMachine())
	l, err := learner.New(testConfig("ab"), target, oracles.BruteForceEquivalence(target, word("ab"), 4))
	require.NoError(t, err)
	defer l.Close()

	result, err := l.Learn(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, 3, result.States)
	assert.GreaterOrEqual(t, result.Rounds, 1)
	assert.GreaterOrEqual(t, result.Columns, 3)
	assertAgrees(t, result.Model, target, "ab", 5)
}

func TestLearnDelayedDivergenceShahbazGroz(t *testing.T) {
	target := oracles.Membership(counterMachine())
	config := testConfig("ab")
	config.CEProcessing = interfaces.CEModeShahbazGroz
	l, err := learner.New(config, target, oracles.BruteForceEquivalence(target, word("ab"), 4))
	require.NoError(t, err)
	defer l.Close()

	result, err := l.Learn(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, 3, result.States)
	assertAgrees(t, result.Model, target, "ab", 5)
}

func TestLearnLookaheadReplace(t *testing.T) {
	machine := oracles.LookaheadReplaceTarget(word("ab"), word("ab"), word("X"))
	target := oracles.Membership(machine)
	l, err := learner.New(testConfig("ab"), target, oracles.BruteForceEquivalence(target, word("ab"), 4))
	require.NoError(t, err)
	defer l.Close()

	result, err := l.Learn(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.GreaterOrEqual(t, result.Lookaheads, 1, "replacing a sequence needs a lookahead window")
	assert.Equal(t, 2, result.Model.WindowLength(0), "the initial state must examine two symbols")
	assertAgrees(t, result.Model, target, "ab", 5)
}

// windowedPairMachine combines a lookahead window with a second state, so
// refinement must both install a window and stride past it when it walks
// the hypothesis.
func windowedPairMachine() *transducer.Transducer {
	m := transducer.New()
	m.AddArc(0, 1, word("a"), word("x"))
	m.AddArc(0, 0, word("b"), word("y"))
	m.AddArc(0, 0, word("ab"), word("Z"))
	m.AddArc(1, 0, word("a"), word("x"))
	m.AddArc(1, 1, word("b"), word("y"))
	return m
}

func TestLearnWindowedPairMachine(t *testing.T) {
	target := oracles.Membership(windowedPairMachine())
	l, err := learner.New(testConfig("ab"), target, oracles.BruteForceEquivalence(target, word("ab"), 5))
	require.NoError(t, err)
	defer l.Close()

	result, err := l.Learn(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, 2, result.States)
	assert.GreaterOrEqual(t, result.Lookaheads, 1)
	assert.GreaterOrEqual(t, result.Rounds, 1)
	assertAgrees(t, result.Model, target, "ab", 5)
}

func TestLearnIdempotentEncoder(t *testing.T) {
	target := oracles.Membership(oracles.IdempotentEncoderTarget())
	alphabet := oracles.IdempotentEncoderAlphabet()
	l, err := learner.New(&interfaces.LearnerConfig{
		Alphabet:     alphabet,
		CEProcessing: interfaces.CEModeRivestSchapire,
		MaxLookahead: 8,
		MaxRounds:    50,
		LogLevel:     "error",
	}, target, oracles.BruteForceEquivalence(target, alphabet, 4))
	require.NoError(t, err)
	defer l.Close()

	result, err := l.Learn(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.GreaterOrEqual(t, result.Lookaheads, 1)

	cases := []struct {
		input, want interfaces.Word
	}{
		{interfaces.Word{0}, interfaces.Word{0, 1, 1}},
		{interfaces.Word{0, 1, 1}, interfaces.Word{0, 1, 1}},
		{interfaces.Word{0, 2, 2}, interfaces.Word{0, 2, 2}},
		{interfaces.Word{0, 3, 3}, interfaces.Word{0, 3, 3}},
		{interfaces.Word{1, 0}, interfaces.Word{1, 0, 1, 1}},
		{interfaces.Word{0, 1}, interfaces.Word{0, 1, 1, 1}},
	}
	for _, c := range cases {
		got, err := result.Model.ConsumeInput(c.input)
		require.NoError(t, err)
		assert.True(t, got.Equal(c.want), "input %s: expected %s, got %s", c.input, c.want, got)
	}
}

func TestLearnRespectsLookaheadBound(t *testing.T) {
	machine := oracles.LookaheadReplaceTarget(word("ab"), word("ab"), word("X"))
	target := oracles.Membership(machine)
	config := testConfig("ab")
	config.MaxLookahead = 1
	l, err := learner.New(config, target, oracles.BruteForceEquivalence(target, word("ab"), 4))
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Learn(context.Background())
	require.Error(t, err)
	var oerr *interfaces.LookaheadOverflowError
	assert.True(t, errors.As(err, &oerr), "expected lookahead overflow, got %v", err)
}

func TestLearnRespectsRoundBudget(t *testing.T) {
	machine := oracles.LookaheadReplaceTarget(word("ab"), word("ab"), word("X"))
	target := oracles.Membership(machine)
	config := testConfig("ab")
	config.MaxRounds = 1
	l, err := learner.New(config, target, oracles.BruteForceEquivalence(target, word("ab"), 4))
	require.NoError(t, err)
	defer l.Close()

	result, err := l.Learn(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budget")
	assert.False(t, result.Completed)
}

func TestLearnCancelled(t *testing.T) {
	target := oracles.Membership(oracles.IdentityTarget(word("ab")))
	l, err := learner.New(testConfig("ab"), target, oracles.BruteForceEquivalence(target, word("ab"), 4))
	require.NoError(t, err)
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := l.Learn(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result, "cancellation must still return partial progress")
	assert.False(t, result.Completed)
	assert.GreaterOrEqual(t, result.Rows, 1, "the seeded table survives cancellation")
}

func TestLearnMalformedCounterexample(t *testing.T) {
	target := oracles.Membership(oracles.IdentityTarget(word("ab")))
	// An oracle violating its contract: the reported target output agrees
	// with any correct hypothesis.
	broken := func(hypothesis interfaces.Model) (*interfaces.Counterexample, error) {
		return &interfaces.Counterexample{Input: word("a"), TargetOutput: word("a")}, nil
	}
	l, err := learner.New(testConfig("ab"), target, broken)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Learn(context.Background())
	require.Error(t, err)
	var merr *interfaces.MalformedCounterexampleError
	assert.True(t, errors.As(err, &merr), "expected malformed counterexample, got %v", err)
}

func TestLearnEquivalenceFailure(t *testing.T) {
	target := oracles.Membership(oracles.IdentityTarget(word("ab")))
	failing := func(hypothesis interfaces.Model) (*interfaces.Counterexample, error) {
		return nil, fmt.Errorf("target unreachable")
	}
	l, err := learner.New(testConfig("ab"), target, failing)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Learn(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "equivalence query failed")
}

func TestLearnPropagatesOracleError(t *testing.T) {
	cause := fmt.Errorf("target crashed")
	target := func(input interfaces.Word) (interfaces.Word, error) {
		return nil, cause
	}
	l, err := learner.New(testConfig("ab"), target, oracles.BruteForceEquivalence(target, word("ab"), 2))
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Learn(context.Background())
	require.Error(t, err)
	var oerr *interfaces.OracleError
	assert.True(t, errors.As(err, &oerr))
	assert.True(t, errors.Is(err, cause))
}

func TestNewRejectsBadConfig(t *testing.T) {
	target := oracles.Membership(oracles.IdentityTarget(word("ab")))
	eq := oracles.BruteForceEquivalence(target, word("ab"), 2)

	_, err := learner.New(nil, target, eq)
	assert.Error(t, err)

	config := testConfig("ab")
	config.CEProcessing = "bisect"
	_, err = learner.New(config, target, eq)
	assert.Error(t, err)

	_, err = learner.New(testConfig("ab"), nil, eq)
	assert.Error(t, err)

	_, err = learner.New(testConfig("ab"), target, nil)
	assert.Error(t, err)
}

func TestLearnWithPersistentCache(t *testing.T) {
	target := oracles.Membership(parityMachine())
	config := testConfig("ab")
	config.CachePath = t.TempDir() + "/queries.db"
	l, err := learner.New(config, target, oracles.BruteForceEquivalence(target, word("ab"), 3))
	require.NoError(t, err)

	result, err := l.Learn(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Completed)
	issued := result.Queries.Issued
	assert.Greater(t, issued, int64(0))
	require.NoError(t, l.Close())

	// A second run over the same cache file answers every membership query
	// from disk.
	l2, err := learner.New(config, target, oracles.BruteForceEquivalence(target, word("ab"), 3))
	require.NoError(t, err)
	defer l2.Close()
	result2, err := l2.Learn(context.Background())
	require.NoError(t, err)
	assert.True(t, result2.Completed)
	assert.Equal(t, int64(0), result2.Queries.Issued, "all queries persisted by the first run")
}

func TestBuilderRequiresClosedTable(t *testing.T) {
	table := newTable(t, parityMachine(), "ab")
	require.NoError(t, table.Init())

	_, err := learner.NewHypothesisBuilder(nil).Build(table)
	require.Error(t, err)
	var cerr *interfaces.NotClosedError
	require.True(t, errors.As(err, &cerr))
	assert.True(t, cerr.Escaping.Equal(word("a")))
}

func TestBuilderIsDeterministic(t *testing.T) {
	table := newTable(t, parityMachine(), "ab")
	require.NoError(t, table.Init())
	require.NoError(t, table.Promote(word("a")))

	builder := learner.NewHypothesisBuilder(nil)
	first, err := builder.Build(table)
	require.NoError(t, err)
	second, err := builder.Build(table)
	require.NoError(t, err)

	var a, b bytes.Buffer
	require.NoError(t, first.Save(&a))
	require.NoError(t, second.Save(&b))
	assert.Equal(t, a.String(), b.String(), "building twice on an unchanged table must agree")
}

func TestProcessorRejectsAgreeingCounterexample(t *testing.T) {
	table := newTable(t, oracles.IdentityTarget(word("ab")), "ab")
	require.NoError(t, table.Init())
	manager := learner.NewLookaheadManager(8, nil)
	processor := learner.NewCounterexampleProcessor(table, manager, interfaces.CEModeRivestSchapire, nil)

	hyp := oracles.IdentityTarget(word("ab"))
	_, err := processor.Process(hyp, word("a"), word("a"))
	require.Error(t, err)
	var merr *interfaces.MalformedCounterexampleError
	require.True(t, errors.As(err, &merr))
	assert.True(t, merr.Input.Equal(word("a")))
}

func TestLookaheadManagerBounds(t *testing.T) {
	m := learner.NewLookaheadManager(3, nil)
	state := word("a")

	assert.Equal(t, 1, m.WindowLength(state))
	require.NoError(t, m.Observe(state, 3))
	assert.Equal(t, 3, m.WindowLength(state))

	// Window lengths never shrink.
	require.NoError(t, m.Observe(state, 2))
	assert.Equal(t, 3, m.WindowLength(state))

	err := m.Observe(state, 4)
	require.Error(t, err)
	var oerr *interfaces.LookaheadOverflowError
	require.True(t, errors.As(err, &oerr))
	assert.Equal(t, 4, oerr.Window)
	assert.Equal(t, 3, oerr.Limit)

	assert.Error(t, m.RecordAmbiguity(state), "growth past the bound must fail")
}
