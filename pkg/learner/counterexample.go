/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: counterexample.go
Description: Counterexample processing for the transducer learner. A counterexample
is first checked for lookahead behavior; when none is found, a new distinguishing
suffix is mined either by the adapted Rivest-Schapire binary search (default) or by
Shahbaz-Groz suffix processing. A counterexample on which the hypothesis already
agrees with the target output is a caller-contract violation and aborts the run.
*/

package learner

import (
	"fmt"

	"github.com/kleascm/sflearn/pkg/interfaces"
	"github.com/kleascm/sflearn/pkg/transducer"
	"github.com/sirupsen/logrus"
)

// CounterexampleProcessor refines the observation table from counterexamples
// returned by the equivalence oracle.
type CounterexampleProcessor struct {
	table   *ObservationTable
	manager *LookaheadManager
	mode    string
	logger  *logrus.Logger
}

// NewCounterexampleProcessor creates a processor using the given processing
// mode (CEModeRivestSchapire or CEModeShahbazGroz).
func NewCounterexampleProcessor(table *ObservationTable, manager *LookaheadManager, mode string, logger *logrus.Logger) *CounterexampleProcessor {
	if logger == nil {
		logger = logrus.New()
	}
	return &CounterexampleProcessor{
		table:   table,
		manager: manager,
		mode:    mode,
		logger:  logger,
	}
}

// Process refines the table from a counterexample. Returns true if the
// refinement changed the table (a new lookahead window or distinguishing
// suffix). Fails with MalformedCounterexampleError when the hypothesis
// already agrees with the target output on the counterexample.
func (p *CounterexampleProcessor) Process(hyp *transducer.Transducer, ce, targetOutput interfaces.Word) (bool, error) {
	hypOut, err := hyp.ConsumeInput(ce)
	if err != nil {
		return false, fmt.Errorf("hypothesis cannot consume counterexample: %w", err)
	}
	if hypOut.Equal(targetOutput) {
		return false, &interfaces.MalformedCounterexampleError{
			Input:            ce.Clone(),
			HypothesisOutput: hypOut,
			TargetOutput:     targetOutput.Clone(),
		}
	}

	// Divergences attributable to insufficient lookahead are fixed by
	// growing a window, not by adding a suffix.
	added, err := p.manager.ScanCounterexample(p.table, hyp, ce)
	if err != nil {
		return false, err
	}
	if added {
		return true, nil
	}

	switch p.mode {
	case interfaces.CEModeRivestSchapire:
		changed, err := p.processRivestSchapire(hyp, ce)
		if err != nil {
			return false, err
		}
		if changed {
			return true, nil
		}
		// The mined suffix was already a column; fall back to Shahbaz-Groz
		// processing, which keeps the suffix set suffix-closed and always
		// makes progress on a genuine counterexample.
		return p.processShahbazGroz(ce)
	case interfaces.CEModeShahbazGroz:
		return p.processShahbazGroz(ce)
	default:
		return false, fmt.Errorf("unsupported counterexample processing mode: %s", p.mode)
	}
}

// processRivestSchapire locates the divergence point with a binary search
// over the counterexample's symbol positions. The hypothesis walk strides
// over multi-symbol windows, so the search works on symbol indices while the
// simulated run advances in per-state window lengths. The counterexample
// suffix past the divergence point becomes the new distinguishing suffix.
func (p *CounterexampleProcessor) processRivestSchapire(hyp *transducer.Transducer, ce interfaces.Word) (bool, error) {
	same, diff := 0, len(ce)
	for diff-same > 1 {
		i := (same + diff) / 2
		state, consumed, err := hyp.Walk(ce, i)
		if err != nil {
			return false, err
		}
		// The access string represents ce[:consumed], which runs past i when
		// a multi-symbol window straddles the midpoint. Snap the probe to
		// the stride boundary so the comparison replays no consumed symbols.
		if consumed > i {
			i = consumed
		}
		if i >= diff {
			// The window spans the rest of the search interval; no stride
			// boundary remains strictly inside it.
			break
		}
		disagrees, err := p.suffixDisagrees(ce, p.table.AccessString(state), i)
		if err != nil {
			return false, err
		}
		if disagrees {
			diff = i
		} else {
			same = i
		}
	}
	suffix := ce[diff:].Clone()
	if len(suffix) == 0 {
		return false, nil
	}
	p.logger.Debugf("Rivest-Schapire divergence at position %d, new suffix %s", diff, suffix)
	return p.table.AddSuffix(suffix)
}

// suffixDisagrees checks whether the target's suffix output after the access
// sequence differs from its suffix output after the counterexample prefix of
// length index. A difference means the hypothesis run already diverged
// before this position.
func (p *CounterexampleProcessor) suffixDisagrees(ce, access interfaces.Word, index int) (bool, error) {
	prefixAcc, err := p.table.queries.Query(access)
	if err != nil {
		return false, err
	}
	fullAcc, err := p.table.queries.Query(access.Concat(ce[index:]))
	if err != nil {
		return false, err
	}
	prefixInp, err := p.table.queries.Query(ce[:index])
	if err != nil {
		return false, err
	}
	fullInp, err := p.table.queries.Query(ce)
	if err != nil {
		return false, err
	}
	accSuffix := fullAcc[fullAcc.CommonPrefixLen(prefixAcc):]
	inpSuffix := fullInp[fullInp.CommonPrefixLen(prefixInp):]
	return !accSuffix.Equal(inpSuffix), nil
}

// processShahbazGroz adds every suffix of the counterexample beyond its
// longest common prefix with an existing representative, keeping the suffix
// set suffix-closed.
func (p *CounterexampleProcessor) processShahbazGroz(ce interfaces.Word) (bool, error) {
	maxlen := 0
	for _, acc := range p.table.accessStrings {
		if len(acc) == 0 {
			continue
		}
		n := ce.CommonPrefixLen(acc)
		if n > maxlen {
			maxlen = n
		}
	}
	changed := false
	suffix := interfaces.Word{}
	for k := len(ce) - 1; k >= maxlen; k-- {
		suffix = interfaces.Word{ce[k]}.Concat(suffix)
		added, err := p.table.AddSuffix(suffix)
		if err != nil {
			return changed, err
		}
		if added {
			changed = true
		}
	}
	return changed, nil
}
