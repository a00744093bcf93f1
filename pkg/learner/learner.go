/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: learner.go
Description: Learner driver for transducer inference. Orchestrates the learning
loop as a state machine: fill the table, close and make it consistent, build a
hypothesis, run an equivalence query, then either terminate or refine from the
counterexample. Cancellation between iterations yields a partial-progress result
instead of discarding state.
*/

package learner

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/kleascm/sflearn/pkg/cache"
	"github.com/kleascm/sflearn/pkg/interfaces"
	"github.com/kleascm/sflearn/pkg/transducer"
	"github.com/sirupsen/logrus"
)

// Phase identifies a stage of the learner driver's state machine.
type Phase string

const (
	PhaseBuildingTable    Phase = "building-table"
	PhaseHypothesizing    Phase = "hypothesizing"
	PhaseEquivalenceCheck Phase = "equivalence-check"
	PhaseRefining         Phase = "refining"
	PhaseDone             Phase = "done"
)

// Result is the outcome of a learning run. On cancellation it carries the
// best-known hypothesis and the table's progress so the caller can inspect
// or resume.
type Result struct {
	Model      *transducer.Transducer // Final or best-known hypothesis (may be nil before round one)
	Completed  bool                   // True when the equivalence oracle accepted the hypothesis
	Rounds     int                    // Number of refinement rounds processed
	States     int                    // Discovered states
	Rows       int                    // Observation table rows
	Columns    int                    // Observation table columns
	Lookaheads int                    // Discovered lookahead windows
	Queries    cache.Stats            // Membership query counters
	RunID      string                 // Unique identifier of the run
}

// Learner drives the inference of a deterministic transducer with bounded
// lookahead from membership and equivalence oracles. The oracles are plain
// function values supplied by the caller; there is no subclassing.
type Learner struct {
	config      *interfaces.LearnerConfig
	alphabet    *cache.Alphabet
	queries     *cache.QueryCache
	persist     *cache.BoltCache
	table       *ObservationTable
	manager     *LookaheadManager
	builder     *HypothesisBuilder
	processor   *CounterexampleProcessor
	equivalence interfaces.EquivalenceOracle

	logger     *logrus.Logger
	runID      string
	hypothesis *transducer.Transducer
	rounds     int
}

// New creates a learner for the given configuration and oracle pair.
func New(config *interfaces.LearnerConfig, membership interfaces.MembershipOracle, equivalence interfaces.EquivalenceOracle) (*Learner, error) {
	if config == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if membership == nil {
		return nil, fmt.Errorf("membership oracle must not be nil")
	}
	if equivalence == nil {
		return nil, fmt.Errorf("equivalence oracle must not be nil")
	}

	alphabet, err := cache.NewAlphabet(config.Alphabet)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(config.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if config.JSONLogs {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	queries := cache.NewQueryCache(membership)
	queries.SetLogger(logger)

	l := &Learner{
		config:      config,
		alphabet:    alphabet,
		queries:     queries,
		equivalence: equivalence,
		logger:      logger,
		runID:       uuid.New().String(),
	}

	if config.CachePath != "" {
		persist, err := cache.OpenBoltCache(config.CachePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open query cache at %s: %w", config.CachePath, err)
		}
		l.persist = persist
		queries.SetPersistence(persist)
	}

	l.table = NewObservationTable(alphabet, queries, logger)
	l.manager = NewLookaheadManager(config.MaxLookahead, logger)
	l.builder = NewHypothesisBuilder(logger)
	l.processor = NewCounterexampleProcessor(l.table, l.manager, config.CEProcessing, logger)
	return l, nil
}

// SetLogger replaces the learner's logger. Must be called before Learn.
func (l *Learner) SetLogger(logger *logrus.Logger) {
	if logger == nil {
		return
	}
	l.logger = logger
	l.queries.SetLogger(logger)
	l.table.logger = logger
	l.manager.logger = logger
	l.builder.logger = logger
	l.processor.logger = logger
}

// Close releases resources held by the learner, closing the persistent
// query cache if one is attached.
func (l *Learner) Close() error {
	if l.persist != nil {
		return l.persist.Close()
	}
	return nil
}

// Table exposes the observation table for read-only inspection.
func (l *Learner) Table() *ObservationTable {
	return l.table
}

// LookaheadManager exposes the lookahead manager for read-only inspection.
func (l *Learner) LookaheadManager() *LookaheadManager {
	return l.manager
}

// result snapshots the run's progress.
func (l *Learner) result(completed bool) *Result {
	return &Result{
		Model:      l.hypothesis,
		Completed:  completed,
		Rounds:     l.rounds,
		States:     l.table.NumStates(),
		Rows:       l.table.NumRows(),
		Columns:    l.table.NumColumns(),
		Lookaheads: len(l.table.lookaheads),
		Queries:    l.queries.Stats(),
		RunID:      l.runID,
	}
}

func (l *Learner) logPhase(phase Phase) {
	l.logger.WithFields(logrus.Fields{
		"run_id": l.runID,
		"phase":  string(phase),
		"round":  l.rounds,
	}).Debug("Entering phase")
}

// buildTable fills missing cells and repeats closure and consistency fixes
// until both hold. Each fix may reopen the other, so both are re-checked
// after any change.
func (l *Learner) buildTable() error {
	if err := l.table.FillAll(); err != nil {
		return err
	}
	for {
		closed, escaping := l.table.IsClosed()
		if !closed {
			if err := l.table.Promote(escaping); err != nil {
				return err
			}
			continue
		}
		consistent, suffix := l.table.IsConsistent()
		if !consistent {
			added, err := l.table.AddSuffix(suffix)
			if err != nil {
				return err
			}
			if !added {
				return fmt.Errorf("consistency fix suffix %s already present; table cannot converge", suffix)
			}
			continue
		}
		return nil
	}
}

// Learn runs the learning loop until the equivalence oracle accepts the
// hypothesis, an error occurs, or the context is cancelled. On cancellation
// the partial-progress result is returned together with the context error.
func (l *Learner) Learn(ctx context.Context) (*Result, error) {
	l.logger.WithFields(logrus.Fields{
		"run_id":        l.runID,
		"alphabet_size": l.alphabet.Len(),
		"ce_processing": l.config.CEProcessing,
		"max_lookahead": l.config.MaxLookahead,
	}).Info("Initializing learning procedure")

	if err := l.table.Init(); err != nil {
		return l.result(false), err
	}

	for {
		if err := ctx.Err(); err != nil {
			l.logger.Warnf("Learning cancelled after %d rounds, returning partial result", l.rounds)
			return l.result(false), err
		}

		l.logPhase(PhaseBuildingTable)
		if err := l.buildTable(); err != nil {
			return l.result(false), err
		}

		l.logPhase(PhaseHypothesizing)
		hyp, err := l.builder.Build(l.table)
		if err != nil {
			return l.result(false), err
		}
		l.hypothesis = hyp
		l.logger.WithFields(logrus.Fields{
			"run_id": l.runID,
			"states": hyp.NumStates(),
			"round":  l.rounds,
		}).Info("Generated conjecture machine")

		if err := ctx.Err(); err != nil {
			l.logger.Warnf("Learning cancelled after %d rounds, returning partial result", l.rounds)
			return l.result(false), err
		}

		l.logPhase(PhaseEquivalenceCheck)
		ce, err := l.equivalence(hyp)
		if err != nil {
			return l.result(false), fmt.Errorf("equivalence query failed: %w", err)
		}
		if ce == nil {
			l.logPhase(PhaseDone)
			l.logger.WithFields(logrus.Fields{
				"run_id":     l.runID,
				"states":     hyp.NumStates(),
				"rounds":     l.rounds,
				"queries":    l.queries.Stats().Issued,
				"lookaheads": len(l.table.lookaheads),
			}).Info("No counterexample found, hypothesis is correct")
			return l.result(true), nil
		}

		l.logPhase(PhaseRefining)
		l.rounds++
		if l.config.MaxRounds > 0 && l.rounds > l.config.MaxRounds {
			return l.result(false), fmt.Errorf("refinement round budget %d exceeded", l.config.MaxRounds)
		}
		l.logger.WithFields(logrus.Fields{
			"run_id": l.runID,
			"length": len(ce.Input),
			"input":  ce.Input.String(),
		}).Info("Processing counterexample")
		changed, err := l.processor.Process(hyp, ce.Input, ce.TargetOutput)
		if err != nil {
			return l.result(false), err
		}
		if !changed {
			// Every refinement must grow the table or a lookahead window,
			// otherwise the loop is no longer well-founded.
			return l.result(false), fmt.Errorf("counterexample %s produced no refinement", ce.Input)
		}
	}
}
