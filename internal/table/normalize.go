package table

import (
	"regexp"
	"strings"

	"github.com/HikariJones/Inclusive-AI-UMKM/internal/common"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/entity"
)

var reInnerSpace = regexp.MustCompile(`[ \t]+`)

// Normalize cleans a reconstructed table: cells are trimmed, internal runs
// of whitespace collapse to one space (line breaks survive), and consecutive
// duplicate rows are dropped. Non-consecutive repeats are legitimate data
// and stay. The fixed-width invariant is asserted last; a violation is a
// reconstruction bug, surfaced as ErrStructuralInvariant, never swallowed.
func Normalize(t entity.Table) (entity.Table, error) {
	out := make(entity.Table, 0, len(t))
	for _, row := range t {
		clean := make([]string, len(row))
		for i, cell := range row {
			clean[i] = normalizeCell(cell)
		}
		if len(out) > 0 && equalRows(out[len(out)-1], clean) {
			continue
		}
		out = append(out, clean)
	}

	if !out.Rectangular() {
		return nil, common.ErrStructuralInvariant
	}
	return out, nil
}

func normalizeCell(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(reInnerSpace.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func equalRows(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
