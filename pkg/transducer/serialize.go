/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: serialize.go
Description: Text serialization for transducers. Arcs are written one per line as
"src<TAB>dst<TAB>input<TAB>output" with comma-separated symbol values; an empty
output is written as the epsilon sentinel; final states are written as bare state
index lines. Save and Load round-trip exactly.
*/

package transducer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kleascm/sflearn/pkg/interfaces"
)

// formatLabel renders a word as comma-separated symbol values. Empty output
// labels are rendered as the epsilon sentinel.
func formatLabel(w interfaces.Word, epsilonForEmpty bool) string {
	if len(w) == 0 {
		if epsilonForEmpty {
			return strconv.Itoa(int(Epsilon))
		}
		return ""
	}
	parts := make([]string, len(w))
	for i, s := range w {
		parts[i] = strconv.Itoa(int(s))
	}
	return strings.Join(parts, ",")
}

// parseLabel parses a comma-separated symbol list. The epsilon sentinel is
// decoded as an empty word.
func parseLabel(text string) (interfaces.Word, error) {
	parts := strings.Split(text, ",")
	w := make(interfaces.Word, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid symbol %q: %w", p, err)
		}
		w = append(w, interfaces.Symbol(v))
	}
	if len(w) == 1 && w[0] == Epsilon {
		return interfaces.Word{}, nil
	}
	return w, nil
}

// Save writes the transducer in text format. The initial state is written
// first so Load reconstructs the same state numbering.
func (t *Transducer) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	order := make([]int, 0, len(t.states))
	for i := range t.states {
		if t.states[i].Initial {
			order = append(order, i)
		}
	}
	for i := range t.states {
		if !t.states[i].Initial {
			order = append(order, i)
		}
	}
	for _, si := range order {
		state := &t.states[si]
		for _, arc := range state.Arcs {
			_, err := fmt.Fprintf(bw, "%d\t%d\t%s\t%s\n", state.ID, arc.Next,
				formatLabel(arc.Input, false), formatLabel(arc.Output, true))
			if err != nil {
				return fmt.Errorf("write arc: %w", err)
			}
		}
		if state.Final {
			if _, err := fmt.Fprintf(bw, "%d\n", state.ID); err != nil {
				return fmt.Errorf("write final state: %w", err)
			}
		}
	}
	return bw.Flush()
}

// Load reads a transducer saved in text format (see Save) into t,
// replacing its current contents.
func (t *Transducer) Load(r io.Reader) error {
	t.states = []State{{ID: 0, Initial: true}}
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch len(fields) {
		case 1:
			id, err := strconv.Atoi(fields[0])
			if err != nil {
				return fmt.Errorf("line %d: invalid state index: %w", lineno, err)
			}
			for len(t.states) <= id {
				t.states = append(t.states, State{ID: len(t.states)})
			}
			t.states[id].Final = true
		case 4:
			src, err := strconv.Atoi(fields[0])
			if err != nil {
				return fmt.Errorf("line %d: invalid source state: %w", lineno, err)
			}
			dst, err := strconv.Atoi(fields[1])
			if err != nil {
				return fmt.Errorf("line %d: invalid destination state: %w", lineno, err)
			}
			input, err := parseLabel(fields[2])
			if err != nil {
				return fmt.Errorf("line %d: invalid input label: %w", lineno, err)
			}
			output, err := parseLabel(fields[3])
			if err != nil {
				return fmt.Errorf("line %d: invalid output label: %w", lineno, err)
			}
			t.AddArc(src, dst, input, output)
		default:
			return fmt.Errorf("line %d: malformed entry %q", lineno, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read transducer: %w", err)
	}
	return nil
}

// SaveFile saves the transducer to the named file.
func (t *Transducer) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := t.Save(f); err != nil {
		return err
	}
	return f.Close()
}

// LoadFile loads a transducer from the named file.
func (t *Transducer) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return t.Load(f)
}
