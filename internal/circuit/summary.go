package circuit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Summary is a compact description of a circuit used for reporting and
// run persistence.
type Summary struct {
	NQubits       int            `json:"nqubits"`
	NGates        int            `json:"ngates"`
	DensityMatrix bool           `json:"density_matrix"`
	GateCounts    map[string]int `json:"gate_counts"`
	Measured      []int          `json:"measured,omitempty"`
	Digest        string         `json:"digest"`
}

// Summarize builds the circuit's summary. The digest hashes the queue
// in application order, so structurally identical circuits share it.
func (c *Circuit) Summarize() Summary {
	counts := make(map[string]int)
	var sb strings.Builder
	fmt.Fprintf(&sb, "n=%d density=%t;", c.nqubits, c.density)
	for _, g := range c.queue {
		counts[g.Name()]++
		fmt.Fprintf(&sb, "%s%v;", g.Name(), g.Qubits())
	}
	var measured []int
	if c.measure != nil {
		measured = c.measure.Targets()
		fmt.Fprintf(&sb, "measure%v;", measured)
	}
	sum := sha256.Sum256([]byte(sb.String()))

	return Summary{
		NQubits:       c.nqubits,
		NGates:        len(c.queue),
		DensityMatrix: c.density,
		GateCounts:    counts,
		Measured:      measured,
		Digest:        hex.EncodeToString(sum[:8]),
	}
}

// GateNames lists queued gate names with counts, sorted by name. Used
// for human-readable output.
func (s Summary) GateNames() []string {
	names := make([]string, 0, len(s.GateCounts))
	for name := range s.GateCounts {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = fmt.Sprintf("%s x%d", name, s.GateCounts[name])
	}
	return out
}
