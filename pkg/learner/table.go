/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: table.go
Description: Observation table for the transducer learner. Rows are indexed by access
sequences (state representatives plus one-window boundary extensions), columns by
distinguishing suffixes, cells by the suffix-attributable output observed through
membership queries. Rows, columns, and lookahead windows grow monotonically; a cell
value never changes once written. Closure and consistency checks walk boundary rows
in a fixed shortest-then-lexicographic order so runs are reproducible.
*/

package learner

import (
	"fmt"
	"sort"

	"github.com/kleascm/sflearn/pkg/cache"
	"github.com/kleascm/sflearn/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// Lookahead is a discovered multi-symbol window: from the state reached by
// Src, consuming Input emits Output.
type Lookahead struct {
	Src    interfaces.Word
	Input  interfaces.Word
	Output interfaces.Word
}

func (l Lookahead) key() string {
	return fmt.Sprintf("%d:%s%d:%s%d:%s",
		len(l.Src), l.Src.Key(), len(l.Input), l.Input.Key(), len(l.Output), l.Output.Key())
}

// ObservationTable is the central data structure of the learner.
type ObservationTable struct {
	alphabet *cache.Alphabet
	queries  *cache.QueryCache
	logger   *logrus.Logger

	// Representatives, one per discovered state. The slice index is the
	// state identity used by the hypothesis builder.
	accessStrings []interfaces.Word
	accessIndex   map[string]int

	// Boundary rows: one-window extensions of representatives, including
	// the extensions contributed by lookahead windows.
	transitions   []interfaces.Word
	transitionSet map[string]bool

	// Distinguishing suffixes (columns).
	suffixes    []interfaces.Word
	suffixIndex map[string]int

	// Dense cell arena: cells[rowIndex][columnIndex] holds the observed
	// suffix output; filled marks populated cells so an empty output is
	// distinguishable from a missing one.
	rowWords []interfaces.Word
	rowIndex map[string]int
	cells    [][]interfaces.Word
	filled   [][]bool

	lookaheads   []Lookahead
	lookaheadSet map[string]bool

	// equiv maps each boundary row to the representative state it is
	// row-equivalent to. Rebuilt by IsClosed.
	equiv map[string]int
}

// NewObservationTable creates an empty observation table over the given
// alphabet, answering cells through the given query cache.
func NewObservationTable(alphabet *cache.Alphabet, queries *cache.QueryCache, logger *logrus.Logger) *ObservationTable {
	if logger == nil {
		logger = logrus.New()
	}
	return &ObservationTable{
		alphabet:      alphabet,
		queries:       queries,
		logger:        logger,
		accessIndex:   make(map[string]int),
		transitionSet: make(map[string]bool),
		suffixIndex:   make(map[string]int),
		rowIndex:      make(map[string]int),
		lookaheadSet:  make(map[string]bool),
		equiv:         make(map[string]int),
	}
}

// Init seeds the table: the empty access sequence as the sole representative,
// one boundary row and one distinguishing suffix per alphabet symbol, and
// fills every cell.
func (t *ObservationTable) Init() error {
	t.addAccessString(interfaces.Word{})
	for _, s := range t.alphabet.Symbols() {
		t.addSuffixColumn(interfaces.Word{s})
	}
	for _, s := range t.alphabet.Symbols() {
		t.addTransition(interfaces.Word{s})
	}
	return t.FillAll()
}

func (t *ObservationTable) addAccessString(w interfaces.Word) {
	t.accessIndex[w.Key()] = len(t.accessStrings)
	t.accessStrings = append(t.accessStrings, w.Clone())
	t.ensureRow(w)
}

func (t *ObservationTable) addTransition(w interfaces.Word) {
	key := w.Key()
	if t.transitionSet[key] {
		return
	}
	t.transitionSet[key] = true
	t.transitions = append(t.transitions, w.Clone())
	t.ensureRow(w)
}

func (t *ObservationTable) addSuffixColumn(s interfaces.Word) {
	t.suffixIndex[s.Key()] = len(t.suffixes)
	t.suffixes = append(t.suffixes, s.Clone())
	for i := range t.cells {
		t.cells[i] = append(t.cells[i], nil)
		t.filled[i] = append(t.filled[i], false)
	}
}

func (t *ObservationTable) ensureRow(w interfaces.Word) int {
	key := w.Key()
	if idx, ok := t.rowIndex[key]; ok {
		return idx
	}
	idx := len(t.rowWords)
	t.rowIndex[key] = idx
	t.rowWords = append(t.rowWords, w.Clone())
	t.cells = append(t.cells, make([]interfaces.Word, len(t.suffixes)))
	t.filled = append(t.filled, make([]bool, len(t.suffixes)))
	return idx
}

// fillCell populates a single cell: the output attributable to the suffix
// after the row's own output prefix is removed. Populated cells are never
// overwritten.
func (t *ObservationTable) fillCell(rowIdx, colIdx int) error {
	if t.filled[rowIdx][colIdx] {
		return nil
	}
	row := t.rowWords[rowIdx]
	prefix, err := t.queries.Query(row)
	if err != nil {
		return err
	}
	full, err := t.queries.Query(row.Concat(t.suffixes[colIdx]))
	if err != nil {
		return err
	}
	common := full.CommonPrefixLen(prefix)
	t.cells[rowIdx][colIdx] = full[common:].Clone()
	t.filled[rowIdx][colIdx] = true
	return nil
}

// FillAll populates every missing cell in the current row x column domain.
// Invoked before closure or consistency are evaluated.
func (t *ObservationTable) FillAll() error {
	for r := range t.rowWords {
		for c := range t.suffixes {
			if err := t.fillCell(r, c); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *ObservationTable) rowsEqual(a, b int) bool {
	for c := range t.suffixes {
		if !t.cells[a][c].Equal(t.cells[b][c]) {
			return false
		}
	}
	return true
}

// boundaryRows returns the boundary rows in the deterministic promotion
// order: shortest first, then lexicographic.
func (t *ObservationTable) boundaryRows() []interfaces.Word {
	rows := make([]interfaces.Word, len(t.transitions))
	copy(rows, t.transitions)
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Compare(rows[j]) < 0
	})
	return rows
}

// IsClosed checks table closure: every boundary row must be row-equivalent
// to some representative. On success the boundary-to-representative map is
// rebuilt. On failure the first escaping boundary row (in promotion order)
// is returned.
func (t *ObservationTable) IsClosed() (bool, interfaces.Word) {
	for _, trans := range t.boundaryRows() {
		ti := t.rowIndex[trans.Key()]
		found := false
		for si, acc := range t.accessStrings {
			if t.rowsEqual(ti, t.rowIndex[acc.Key()]) {
				t.equiv[trans.Key()] = si
				found = true
				break
			}
		}
		if !found {
			t.logger.Debugf("Boundary row %s is escaping", trans)
			return false, trans
		}
	}
	return true, nil
}

// IsConsistent checks table consistency: representatives with equal rows
// must have equal rows on every shared one-window extension. On failure the
// window-prefixed suffix that exposed the mismatch is returned; adding it as
// a column separates the two rows.
func (t *ObservationTable) IsConsistent() (bool, interfaces.Word) {
	for i := 0; i < len(t.accessStrings); i++ {
		ri := t.rowIndex[t.accessStrings[i].Key()]
		for j := i + 1; j < len(t.accessStrings); j++ {
			rj := t.rowIndex[t.accessStrings[j].Key()]
			if !t.rowsEqual(ri, rj) {
				continue
			}
			for _, w := range t.sharedWindows(t.accessStrings[i], t.accessStrings[j]) {
				ei, iok := t.rowIndex[t.accessStrings[i].Concat(w).Key()]
				ej, jok := t.rowIndex[t.accessStrings[j].Concat(w).Key()]
				if !iok || !jok {
					continue
				}
				for c := range t.suffixes {
					if !t.cells[ei][c].Equal(t.cells[ej][c]) {
						suffix := w.Concat(t.suffixes[c])
						t.logger.Debugf("Rows %s and %s are inconsistent on window %s, suffix %s",
							t.accessStrings[i], t.accessStrings[j], w, t.suffixes[c])
						return false, suffix
					}
				}
			}
		}
	}
	return true, nil
}

// sharedWindows returns the input windows on which both representatives have
// boundary extensions: every alphabet symbol, plus any lookahead window
// discovered at both states.
func (t *ObservationTable) sharedWindows(a, b interfaces.Word) []interfaces.Word {
	windows := make([]interfaces.Word, 0, t.alphabet.Len())
	for _, s := range t.alphabet.Symbols() {
		windows = append(windows, interfaces.Word{s})
	}
	atA := make(map[string]interfaces.Word)
	for _, la := range t.lookaheads {
		if la.Src.Equal(a) {
			atA[la.Input.Key()] = la.Input
		}
	}
	for _, la := range t.lookaheads {
		if la.Src.Equal(b) {
			if w, ok := atA[la.Input.Key()]; ok {
				windows = append(windows, w)
			}
		}
	}
	return windows
}

// Promote turns the escaping boundary row into a new representative and
// creates its one-symbol boundary extensions, filling their cells.
func (t *ObservationTable) Promote(escaping interfaces.Word) error {
	if _, ok := t.accessIndex[escaping.Key()]; ok {
		return fmt.Errorf("row %s is already a representative", escaping)
	}
	t.logger.Debugf("Promoting escaping row %s to state %d", escaping, len(t.accessStrings))
	t.addAccessString(escaping)
	for _, s := range t.alphabet.Symbols() {
		t.addTransition(escaping.Concat(interfaces.Word{s}))
	}
	return t.FillAll()
}

// AddSuffix adds a distinguishing suffix column and populates it for every
// existing row. Returns false if the suffix is already a column.
func (t *ObservationTable) AddSuffix(suffix interfaces.Word) (bool, error) {
	if _, ok := t.suffixIndex[suffix.Key()]; ok {
		return false, nil
	}
	t.logger.Debugf("Adding distinguishing suffix %s", suffix)
	t.addSuffixColumn(suffix)
	return true, t.FillAll()
}

// HasSuffix reports whether the suffix is already a column.
func (t *ObservationTable) HasSuffix(suffix interfaces.Word) bool {
	_, ok := t.suffixIndex[suffix.Key()]
	return ok
}

// AddLookahead records a discovered lookahead window and its boundary row.
// Acts as a no-op when the identical window is already known. A window that
// contradicts an already-recorded output for the same (state, input) pair
// indicates a non-deterministic target and is rejected.
func (t *ObservationTable) AddLookahead(src, input, output interfaces.Word) (bool, error) {
	la := Lookahead{Src: src.Clone(), Input: input.Clone(), Output: output.Clone()}
	if t.lookaheadSet[la.key()] {
		t.logger.Debugf("Lookahead (%s, %s, %s) already in table, skipping", src, input, output)
		return false, nil
	}
	for _, known := range t.lookaheads {
		if known.Src.Equal(src) && known.Input.Equal(input) {
			return false, fmt.Errorf("conflicting outputs for lookahead window %s at state %s: %s vs %s",
				input, src, known.Output, output)
		}
	}
	t.logger.Debugf("Adding lookahead (%s, %s, %s)", src, input, output)
	t.lookaheadSet[la.key()] = true
	t.lookaheads = append(t.lookaheads, la)
	t.addTransition(src.Concat(input))
	return true, t.FillAll()
}

// Lookaheads returns the discovered lookahead windows in discovery order.
func (t *ObservationTable) Lookaheads() []Lookahead {
	out := make([]Lookahead, len(t.lookaheads))
	copy(out, t.lookaheads)
	return out
}

// AccessString returns the representative access sequence for the given
// state index.
func (t *ObservationTable) AccessString(state int) interfaces.Word {
	return t.accessStrings[state]
}

// NumStates returns the number of representatives (discovered states).
func (t *ObservationTable) NumStates() int {
	return len(t.accessStrings)
}

// NumRows returns the total number of rows (representatives plus boundary).
func (t *ObservationTable) NumRows() int {
	return len(t.rowWords)
}

// NumColumns returns the number of distinguishing suffixes.
func (t *ObservationTable) NumColumns() int {
	return len(t.suffixes)
}

// Cell returns the observed output for (row, suffix) if populated.
func (t *ObservationTable) Cell(row, suffix interfaces.Word) (interfaces.Word, bool) {
	ri, rok := t.rowIndex[row.Key()]
	ci, cok := t.suffixIndex[suffix.Key()]
	if !rok || !cok || !t.filled[ri][ci] {
		return nil, false
	}
	return t.cells[ri][ci], true
}

// classOf returns the representative state index a boundary row belongs to,
// per the map built by the last successful IsClosed.
func (t *ObservationTable) classOf(row interfaces.Word) (int, bool) {
	if si, ok := t.accessIndex[row.Key()]; ok {
		return si, true
	}
	si, ok := t.equiv[row.Key()]
	return si, ok
}
