/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: lookahead.go
Description: Lookahead manager for the transducer learner. Tracks, per discovered
state, the minimum window length a transition must examine before its output is
fixed, grows it only on recorded evidence, and enforces the configured safety
bound. Also implements the prefix-closed counterexample scan that discovers new
lookahead windows.
*/

package learner

import (
	"github.com/kleascm/sflearn/pkg/interfaces"
	"github.com/kleascm/sflearn/pkg/transducer"
	"github.com/sirupsen/logrus"
)

// LookaheadManager tracks per-state lookahead window lengths. Window lengths
// start at 1, never decrease, and may not exceed the configured limit.
type LookaheadManager struct {
	limit   int
	windows map[string]int // access-string key -> window length
	logger  *logrus.Logger
}

// NewLookaheadManager creates a manager with the given window-length limit.
func NewLookaheadManager(limit int, logger *logrus.Logger) *LookaheadManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &LookaheadManager{
		limit:   limit,
		windows: make(map[string]int),
		logger:  logger,
	}
}

// WindowLength returns the window length recorded for the state reached by
// the given access sequence. Always at least 1.
func (m *LookaheadManager) WindowLength(state interfaces.Word) int {
	if w, ok := m.windows[state.Key()]; ok {
		return w
	}
	return 1
}

// Observe records evidence that the state needs at least the given window
// length. Growth past the configured limit fails with
// LookaheadOverflowError.
func (m *LookaheadManager) Observe(state interfaces.Word, window int) error {
	if window > m.limit {
		return &interfaces.LookaheadOverflowError{
			State:  state.Clone(),
			Window: window,
			Limit:  m.limit,
		}
	}
	if window > m.WindowLength(state) {
		m.logger.Debugf("State %s window length raised to %d", state, window)
		m.windows[state.Key()] = window
	}
	return nil
}

// RecordAmbiguity grows the state's window by one symbol, used when an
// inconsistency is attributable to insufficient lookahead.
func (m *LookaheadManager) RecordAmbiguity(state interfaces.Word) error {
	return m.Observe(state, m.WindowLength(state)+1)
}

// ScanCounterexample checks a counterexample for lookahead behavior using
// prefix-closed membership queries. The output of the target on each prefix
// of the counterexample must extend the output on the previous prefix; a
// position where it does not marks a lookahead window. The window is located
// by backing up to the latest prefix whose output the full output still
// extends, attributed to the hypothesis state reached there, verified
// against the state's access sequence, and installed in the table. Returns
// true when a new window was installed.
func (m *LookaheadManager) ScanCounterexample(t *ObservationTable, hyp *transducer.Transducer, ce interfaces.Word) (bool, error) {
	prefixOuts := make([]interfaces.Word, len(ce)+1)
	prefixOuts[0] = interfaces.Word{}
	for i := 1; i <= len(ce); i++ {
		out, err := t.queries.Query(ce[:i])
		if err != nil {
			return false, err
		}
		prefixOuts[i] = out
	}

	for i := 1; i <= len(ce); i++ {
		if prefixOuts[i].HasPrefix(prefixOuts[i-1]) {
			continue
		}
		m.logger.Debugf("Lookahead detected at position %d: %s does not extend %s",
			i, prefixOuts[i], prefixOuts[i-1])

		// Back up to the latest earlier prefix whose output is still a
		// prefix of the current one. j = 0 always qualifies.
		j := 0
		for jj := i - 1; jj >= 0; jj-- {
			if prefixOuts[i].HasPrefix(prefixOuts[jj]) {
				j = jj
				break
			}
		}
		laInput := ce[j:i].Clone()
		laOutput := prefixOuts[i][len(prefixOuts[j]):].Clone()

		state, _, err := hyp.Walk(ce, j)
		if err != nil {
			return false, err
		}
		acc := t.AccessString(state)

		// The window is only installed if the access sequence reproduces
		// it. If the access sequence for the state is still wrong, the
		// window will be added once a later refinement fixes it.
		outAcc, err := t.queries.Query(acc)
		if err != nil {
			return false, err
		}
		outComplete, err := t.queries.Query(acc.Concat(laInput))
		if err != nil {
			return false, err
		}
		common := outComplete.CommonPrefixLen(outAcc)
		if !outComplete[common:].Equal(laOutput) {
			m.logger.Debug("Lookahead detected but access sequence is wrong, skipping")
			continue
		}

		// A window that properly extends one already known at this state
		// is the ambiguity signal of insufficient lookahead.
		for _, known := range t.Lookaheads() {
			if known.Src.Equal(acc) &&
				(laInput.HasPrefix(known.Input) || known.Input.HasPrefix(laInput)) &&
				!known.Input.Equal(laInput) {
				if err := m.RecordAmbiguity(acc); err != nil {
					return false, err
				}
			}
		}
		if err := m.Observe(acc, len(laInput)); err != nil {
			return false, err
		}

		added, err := t.AddLookahead(acc, laInput, laOutput)
		if err != nil {
			return false, err
		}
		if added {
			m.logger.WithFields(logrus.Fields{
				"state":  acc.String(),
				"window": laInput.String(),
				"output": laOutput.String(),
			}).Info("Lookahead window installed")
			return true, nil
		}
	}
	return false, nil
}
