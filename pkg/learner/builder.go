/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: builder.go
Description: Hypothesis builder for the transducer learner. Converts a closed and
consistent observation table into a candidate transducer: states are the
row-equivalence classes of the representatives, transitions come from the boundary
rows, lookahead windows become multi-symbol arcs. Pure function of the table's
contents; building twice on an unchanged table yields structurally identical
machines.
*/

package learner

import (
	"fmt"

	"github.com/kleascm/sflearn/pkg/interfaces"
	"github.com/kleascm/sflearn/pkg/transducer"
	"github.com/sirupsen/logrus"
)

// HypothesisBuilder constructs hypothesis transducers from observation
// tables.
type HypothesisBuilder struct {
	logger *logrus.Logger
}

// NewHypothesisBuilder creates a builder.
func NewHypothesisBuilder(logger *logrus.Logger) *HypothesisBuilder {
	if logger == nil {
		logger = logrus.New()
	}
	return &HypothesisBuilder{logger: logger}
}

// Build converts the table into a transducer. The table must be closed and
// consistent; invoking Build out of order fails with NotClosedError or
// NotConsistentError.
func (b *HypothesisBuilder) Build(t *ObservationTable) (*transducer.Transducer, error) {
	if closed, escaping := t.IsClosed(); !closed {
		return nil, &interfaces.NotClosedError{Escaping: escaping.Clone()}
	}
	if consistent, suffix := t.IsConsistent(); !consistent {
		return nil, &interfaces.NotConsistentError{Suffix: suffix.Clone()}
	}

	hyp := transducer.New()
	for src, acc := range t.accessStrings {
		for _, s := range t.alphabet.Symbols() {
			window := interfaces.Word{s}
			dst, ok := t.classOf(acc.Concat(window))
			if !ok {
				return nil, fmt.Errorf("no equivalence class for boundary row %s", acc.Concat(window))
			}
			out, ok := t.Cell(acc, window)
			if !ok {
				return nil, fmt.Errorf("unpopulated cell (%s, %s)", acc, window)
			}
			hyp.AddArc(src, dst, window, out)
		}
	}
	for _, la := range t.lookaheads {
		src, ok := t.accessIndex[la.Src.Key()]
		if !ok {
			return nil, fmt.Errorf("lookahead source %s is not a representative", la.Src)
		}
		dst, ok := t.classOf(la.Src.Concat(la.Input))
		if !ok {
			return nil, fmt.Errorf("no equivalence class for lookahead row %s", la.Src.Concat(la.Input))
		}
		hyp.AddArc(src, dst, la.Input, la.Output)
	}
	hyp.SortArcs()
	if err := hyp.Validate(); err != nil {
		return nil, fmt.Errorf("constructed hypothesis is malformed: %w", err)
	}
	b.logger.Debugf("Constructed hypothesis with %d states and %d lookahead windows",
		hyp.NumStates(), len(t.lookaheads))
	return hyp, nil
}
